package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"owlreasoner/internal/config"
	"owlreasoner/internal/iri"
	"owlreasoner/internal/logging"
	"owlreasoner/internal/ontology"
	"owlreasoner/internal/reasoner"
)

const version = "0.4.0"

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "owlr",
	Short: "owlr - OWL2 description-logic reasoner",
	Long: `owlr loads an ontology manifest (YAML) and answers reasoning requests
over it: consistency, classification, subsumption, instance retrieval and
pattern queries.

Every subcommand that takes a manifest reads it fresh; nothing is persisted.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		zcfg := zap.NewProductionConfig()
		if cfg.Logging.Format == "console" {
			zcfg = zap.NewDevelopmentConfig()
		}
		if verbose || cfg.Logging.DebugMode {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else if cfg.Logging.Level != "" {
			if err := zcfg.Level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
				return fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
			}
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.SetLogger(logger, cfg.Logging.Categories)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the owlr version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "owlr %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		checkCmd,
		classifyCmd,
		subsumesCmd,
		instancesCmd,
		queryCmd,
		watchCmd,
		versionCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// session is a loaded manifest with a reasoner over it.
type session struct {
	reg *iri.Registry
	r   *reasoner.Reasoner
}

// openManifest loads path and builds a reasoner using the global config.
// The config's strict flag only relaxes the manifest; a manifest that asks
// for auto-declaration keeps it.
func openManifest(path string) (*session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	var opts []ontology.Option
	if !cfg.Ontology.Strict {
		opts = append(opts, ontology.WithMode(ontology.ModeAutoDeclare))
	}
	reg := iri.NewRegistry()
	ont, err := ontology.LoadManifest(f, reg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	r, err := reasoner.New(ont, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create reasoner: %w", err)
	}
	logger.Debug("Manifest loaded",
		zap.String("path", path),
		zap.Int("axioms", len(ont.Axioms())),
		zap.Uint64("version", ont.Version()))
	return &session{reg: reg, r: r}, nil
}

// name resolves a CLI argument (prefix:local or a full IRI) to an IRI.
func (s *session) name(arg string) (*iri.IRI, error) {
	return s.reg.Expand(arg)
}
