package config

import (
	"fmt"
	"time"
)

// ValidBlocking lists the supported blocking strategies.
var ValidBlocking = []string{"auto", "subset", "equality"}

// Validate checks that limits and enumerations are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Tableaux.MaxSteps < 1 {
		return fmt.Errorf("tableaux.max_steps must be >= 1")
	}
	if c.Tableaux.Timeout != "0" {
		if _, err := time.ParseDuration(c.Tableaux.Timeout); err != nil {
			return fmt.Errorf("tableaux.timeout %q: %w", c.Tableaux.Timeout, err)
		}
	}

	validBlocking := false
	for _, b := range ValidBlocking {
		if c.Tableaux.Blocking == b {
			validBlocking = true
			break
		}
	}
	if !validBlocking {
		return fmt.Errorf("invalid tableaux.blocking: %s (valid: %v)", c.Tableaux.Blocking, ValidBlocking)
	}

	if c.Classification.Workers < 1 {
		return fmt.Errorf("classification.workers must be >= 1")
	}
	if c.Query.Workers < 1 {
		return fmt.Errorf("query.workers must be >= 1")
	}
	if c.Query.ParallelThreshold < 1 {
		return fmt.Errorf("query.parallel_threshold must be >= 1")
	}
	if c.Rules.DerivedFactLimit < 1000 {
		return fmt.Errorf("rules.derived_fact_limit must be >= 1000")
	}

	for name, ttl := range map[string]string{
		"consistency_ttl":    c.Cache.Consistency,
		"satisfiability_ttl": c.Cache.Satisfiability,
		"subclass_ttl":       c.Cache.Subclass,
		"instances_ttl":      c.Cache.Instances,
		"classification_ttl": c.Cache.Classification,
	} {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return fmt.Errorf("cache.%s %q: %w", name, ttl, err)
		}
		if d <= 0 {
			return fmt.Errorf("cache.%s must be positive", name)
		}
	}
	return nil
}
