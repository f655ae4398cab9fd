package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"owlreasoner/internal/errs"
	"owlreasoner/internal/iri"
)

// checkCmd runs the consistency check
var checkCmd = &cobra.Command{
	Use:   "check [manifest]",
	Short: "Check whether the ontology is consistent",
	Long: `Runs the tableau consistency check over the manifest.

Exits non-zero when the ontology is inconsistent, so the command can gate
CI pipelines.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

// classifyCmd prints the class hierarchy
var classifyCmd = &cobra.Command{
	Use:   "classify [manifest]",
	Short: "Compute and print the class hierarchy",
	Args:  cobra.ExactArgs(1),
	RunE:  runClassify,
}

// subsumesCmd tests one subsumption
var subsumesCmd = &cobra.Command{
	Use:   "subsumes [manifest] [sub] [super]",
	Short: "Test whether sub is a subclass of super",
	Long: `Tests an entailed subsumption between two named classes.

Example:
  owlr subsumes zoo.yaml ex:Dog ex:Animal`,
	Args: cobra.ExactArgs(3),
	RunE: runSubsumes,
}

// instancesCmd lists class instances
var instancesCmd = &cobra.Command{
	Use:   "instances [manifest] [class]",
	Short: "List the instances of a class",
	Args:  cobra.ExactArgs(2),
	RunE:  runInstances,
}

// errInconsistent makes check exit non-zero without printing a usage error.
var errInconsistent = errors.New("ontology is inconsistent")

func runCheck(cmd *cobra.Command, args []string) error {
	s, err := openManifest(args[0])
	if err != nil {
		return err
	}
	ok, err := s.r.IsConsistent()
	if err != nil {
		return reportReasoningError(err)
	}
	m := s.r.SessionMetrics()
	logger.Info("Consistency check",
		zap.Bool("consistent", ok),
		zap.Int("steps", m.Steps),
		zap.Int("backtracks", m.Backtracks))

	out := cmd.OutOrStdout()
	if !ok {
		fmt.Fprintln(out, "inconsistent")
		return errInconsistent
	}
	fmt.Fprintln(out, "consistent")
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	s, err := openManifest(args[0])
	if err != nil {
		return err
	}
	h, err := s.r.ClassifyContext(cmd.Context())
	if err != nil {
		return reportReasoningError(err)
	}

	out := cmd.OutOrStdout()
	if !h.Consistent {
		fmt.Fprintln(out, "ontology is inconsistent: every class is unsatisfiable")
	}
	for _, c := range h.Classes() {
		supers := h.DirectSuperClasses(c)
		if len(supers) == 0 {
			fmt.Fprintln(out, c.Compact())
			continue
		}
		fmt.Fprintf(out, "%s ⊑ %s\n", c.Compact(), joinIRIs(supers))
	}
	if unsat := h.Unsatisfiable(); len(unsat) > 0 && h.Consistent {
		fmt.Fprintf(out, "unsatisfiable: %s\n", joinIRIs(unsat))
	}

	st := h.Stats()
	logger.Info("Classification complete",
		zap.Int("classes", st.Classes),
		zap.Bool("told_complete", st.ToldComplete),
		zap.Int("subsumption_tests", st.SubsumptionTests),
		zap.Duration("duration", st.Duration))
	return nil
}

func runSubsumes(cmd *cobra.Command, args []string) error {
	s, err := openManifest(args[0])
	if err != nil {
		return err
	}
	sub, err := s.name(args[1])
	if err != nil {
		return err
	}
	sup, err := s.name(args[2])
	if err != nil {
		return err
	}
	ok, err := s.r.IsSubClassOf(sub, sup)
	if err != nil {
		return reportReasoningError(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), ok)
	return nil
}

func runInstances(cmd *cobra.Command, args []string) error {
	s, err := openManifest(args[0])
	if err != nil {
		return err
	}
	class, err := s.name(args[1])
	if err != nil {
		return err
	}
	set, err := s.r.GetClassInstances(class)
	if err != nil {
		return reportReasoningError(err)
	}
	out := cmd.OutOrStdout()
	for _, i := range set.Sorted() {
		fmt.Fprintln(out, i.Compact())
	}
	return nil
}

// reportReasoningError adds a hint for budget exhaustion, which the user can
// fix through configuration.
func reportReasoningError(err error) error {
	if errs.KindOf(err) == errs.KindResourceExceeded {
		return fmt.Errorf("%w (raise tableaux.max_steps or tableaux.timeout)", err)
	}
	return err
}

func joinIRIs(list []*iri.IRI) string {
	parts := make([]string, len(list))
	for i, x := range list {
		parts[i] = x.Compact()
	}
	return strings.Join(parts, ", ")
}
