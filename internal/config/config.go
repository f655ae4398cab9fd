// Package config provides configuration management for the reasoning core.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all reasoner configuration.
type Config struct {
	// Core identity
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Subsystems
	Ontology       OntologyConfig       `yaml:"ontology"`
	Tableaux       TableauxConfig       `yaml:"tableaux"`
	Classification ClassificationConfig `yaml:"classification"`
	Cache          CacheConfig          `yaml:"cache"`
	Query          QueryConfig          `yaml:"query"`
	Rules          RulesConfig          `yaml:"rules"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// OntologyConfig configures the ontology store.
type OntologyConfig struct {
	// Strict rejects axioms referencing undeclared entities. When false,
	// missing entities are declared automatically.
	Strict bool `yaml:"strict"`
}

// TableauxConfig configures tableau sessions.
type TableauxConfig struct {
	MaxSteps int    `yaml:"max_steps"` // rule applications per session
	Timeout  string `yaml:"timeout"`   // wall-clock budget per session, "0" disables
	Blocking string `yaml:"blocking"`  // auto, subset, equality
}

// ClassificationConfig configures the classification engine.
type ClassificationConfig struct {
	Workers int `yaml:"workers"` // parallel subsumption tests
}

// CacheConfig configures TTLs of the result cache buckets.
type CacheConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Consistency    string `yaml:"consistency_ttl"`
	Satisfiability string `yaml:"satisfiability_ttl"`
	Subclass       string `yaml:"subclass_ttl"`
	Instances      string `yaml:"instances_ttl"`
	Classification string `yaml:"classification_ttl"`
}

// QueryConfig configures the query engine.
type QueryConfig struct {
	ParallelThreshold int  `yaml:"parallel_threshold"` // min UNION branches before going parallel
	Workers           int  `yaml:"workers"`
	Entailment        bool `yaml:"entailment"` // resolve patterns against inferred facts
}

// RulesConfig configures the Datalog materializer.
type RulesConfig struct {
	DerivedFactLimit int `yaml:"derived_fact_limit"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "owlr",
		Version: "0.1.0",

		Ontology: OntologyConfig{
			Strict: true,
		},

		Tableaux: TableauxConfig{
			MaxSteps: 100000,
			Timeout:  "30s",
			Blocking: "auto",
		},

		Classification: ClassificationConfig{
			Workers: 4,
		},

		Cache: CacheConfig{
			Enabled:        true,
			Consistency:    "1h",
			Satisfiability: "20m",
			Subclass:       "10m",
			Instances:      "30s",
			Classification: "1h",
		},

		Query: QueryConfig{
			ParallelThreshold: 2,
			Workers:           4,
			Entailment:        false,
		},

		Rules: RulesConfig{
			DerivedFactLimit: 500000,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("OWLR_MAX_STEPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid OWLR_MAX_STEPS %q: %w", v, err)
		}
		c.Tableaux.MaxSteps = n
	}
	if v := os.Getenv("OWLR_TIMEOUT"); v != "" {
		c.Tableaux.Timeout = v
	}
	if v := os.Getenv("OWLR_QUERY_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid OWLR_QUERY_WORKERS %q: %w", v, err)
		}
		c.Query.Workers = n
	}
	if v := os.Getenv("OWLR_STRICT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OWLR_STRICT %q: %w", v, err)
		}
		c.Ontology.Strict = b
	}
	if v := os.Getenv("OWLR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// GetTableauxTimeout returns the tableau session budget as a duration.
// Zero means no wall-clock limit.
func (c *Config) GetTableauxTimeout() time.Duration {
	return parseDuration(c.Tableaux.Timeout, 30*time.Second)
}

// CacheTTLs returns the parsed TTL of every cache bucket.
func (c *Config) CacheTTLs() CacheTTLs {
	return CacheTTLs{
		Consistency:    parseDuration(c.Cache.Consistency, time.Hour),
		Satisfiability: parseDuration(c.Cache.Satisfiability, 20*time.Minute),
		Subclass:       parseDuration(c.Cache.Subclass, 10*time.Minute),
		Instances:      parseDuration(c.Cache.Instances, 30*time.Second),
		Classification: parseDuration(c.Cache.Classification, time.Hour),
	}
}

// CacheTTLs is the parsed form of CacheConfig.
type CacheTTLs struct {
	Consistency    time.Duration
	Satisfiability time.Duration
	Subclass       time.Duration
	Instances      time.Duration
	Classification time.Duration
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "0" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
