package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/coolbeans/normtree/internal/config"
	"github.com/coolbeans/normtree/internal/logging"
	"github.com/coolbeans/normtree/pkg/pattern"
	"github.com/coolbeans/normtree/pkg/placeholder"
	"github.com/coolbeans/normtree/pkg/structure"
	"github.com/coolbeans/normtree/pkg/text"
)

var version = "0.1.0"

// app carries what every command needs once flags and configuration are
// resolved.
type app struct {
	configPath string
	patterns   string
	logLevel   string
	logFormat  string

	cfg      *config.Config
	registry *pattern.Registry
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "normtree",
		Short: "Structure regulatory texts and generate their parametrized versions",
		Long: `Normtree turns flat regulatory documents into trees of sections and
alineas, then derives the version of each document that holds for a given
installation profile.

It provides:
  - Structuring of HTML, Markdown, DOCX and plain text by headings and
    numbering patterns
  - Parametrizations: conditional inapplicability, alternative sections
    and warnings
  - Generation of every version a parametrization can produce
  - A SQLite library of documents, parametrizations and versions
  - Checking of the hyperlinks cited by a document`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&a.patterns, "patterns", "", "Directory of numbering pattern catalog files")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: text, json")

	// Add subcommands
	rootCmd.AddCommand(a.structureCmd())
	rootCmd.AddCommand(a.detectCmd())
	rootCmd.AddCommand(a.checkCmd())
	rootCmd.AddCommand(a.combinationsCmd())
	rootCmd.AddCommand(a.applyCmd())
	rootCmd.AddCommand(a.versionsCmd())
	rootCmd.AddCommand(a.libraryCmd())
	rootCmd.AddCommand(a.watchCmd())
	rootCmd.AddCommand(a.linksCmd())

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.patterns != "" {
		cfg.PatternsDir = a.patterns
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLogger(cmd.ErrOrStderr(), level, format)

	registry := pattern.NewRegistry()
	registry.SetLogger(logging.GetLogger())
	if cfg.PatternsDir != "" {
		if err := registry.LoadDirectory(cfg.PatternsDir); err != nil {
			return fmt.Errorf("failed to load patterns: %w", err)
		}
		logging.Debug("pattern catalog loaded", "dir", cfg.PatternsDir, "files", registry.Count())
	}

	a.cfg = cfg
	a.registry = registry
	cmd.SetContext(logging.WithRunID(commandContext(cmd), uuid.NewString()))
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// structurer returns a Structurer over the current catalog snapshot, with
// reproducible ids when a seed is configured.
func (a *app) structurer() *structure.Structurer {
	gen := text.NewIDGenerator()
	if a.cfg.Seed != 0 {
		gen = text.NewSeededIDGenerator(a.cfg.Seed)
	}
	return structure.New(a.registry.Catalog(), structure.WithIDGenerator(gen))
}

// tokens returns a placeholder token generator, reproducible when a seed
// is configured.
func (a *app) tokens() *placeholder.TokenGenerator {
	if a.cfg.Seed != 0 {
		return placeholder.NewTokenGenerator(a.cfg.Seed)
	}
	return placeholder.NewRandomTokenGenerator()
}
