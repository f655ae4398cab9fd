package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"owlreasoner/internal/query"
	"owlreasoner/internal/reasoner"
)

var (
	queryTriples  []string
	queryEntail   bool
	queryDistinct bool
)

// queryCmd evaluates a basic graph pattern
var queryCmd = &cobra.Command{
	Use:   "query [manifest]",
	Short: "Match triple patterns against the ontology",
	Long: `Evaluates a conjunction of triple patterns. Terms are ?variables,
prefix:local names, <full IRIs>, "literals" (optionally @lang or ^^type),
integers, true/false, and "a" for rdf:type.

Without --entail only told facts match; with it, the rule closure and the
classified instance sets are used.

Example:
  owlr query zoo.yaml --triple "?x a ex:Animal" --triple "?x ex:hasOwner ?o" --entail`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringArrayVarP(&queryTriples, "triple", "t", nil, `Triple pattern "s p o" (repeatable)`)
	queryCmd.Flags().BoolVar(&queryEntail, "entail", false, "Match entailed facts, not only told ones")
	queryCmd.Flags().BoolVar(&queryDistinct, "distinct", false, "Drop duplicate rows")
	_ = queryCmd.MarkFlagRequired("triple")
}

func runQuery(cmd *cobra.Command, args []string) error {
	s, err := openManifest(args[0])
	if err != nil {
		return err
	}

	var bgp query.BGP
	for _, line := range queryTriples {
		t, err := query.ParseTriple(s.reg, line)
		if err != nil {
			return err
		}
		bgp.Triples = append(bgp.Triples, t)
	}
	var p query.Pattern = bgp
	if queryDistinct {
		p = query.Distinct{Pattern: bgp}
	}

	entail := queryEntail || cfg.Query.Entailment
	res, err := s.r.ExecuteQuery(p,
		reasoner.WithEntailment(entail),
		reasoner.WithContext(cmd.Context()))
	if err != nil {
		return reportReasoningError(err)
	}
	logger.Info("Query complete",
		zap.Int("rows", res.Stats.Rows),
		zap.Bool("entailment", entail),
		zap.Duration("duration", res.Stats.Duration))

	query.Sort(res.Bindings, res.Variables)
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	header := make([]string, len(res.Variables))
	for i, v := range res.Variables {
		header[i] = "?" + v
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, b := range res.Bindings {
		row := make([]string, len(res.Variables))
		for i, v := range res.Variables {
			if t, ok := b.Get(v); ok {
				row[i] = t.String()
			}
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
