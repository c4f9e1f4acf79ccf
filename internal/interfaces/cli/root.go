// Package cli implements the sievectl command tree: decomposition lookups,
// library builds, catalogue subsetting, and schema migration.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moleculab/synthon-sieve/internal/config"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/monitoring/logging"
	"github.com/moleculab/synthon-sieve/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

type appContextKey struct{}

// appContext carries the loaded configuration and logger through the command
// tree.
type appContext struct {
	cfg *config.Config
	log logging.Logger
}

// NewRootCommand builds the sievectl root with global flags and subcommands.
func NewRootCommand() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:     "sievectl",
		Short:   "Catalogue subsetting by synthon sociability",
		Long:    "sievectl decomposes catalogue compounds into canonical synthons,\nscores them against a reference library, and filters the catalogue\ndown to the sociable, non-boring subset.",
		Version: fmt.Sprintf("%s (commit %s)", Version, GitCommit),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			log, err := logging.NewLogger(logging.Config{
				Level:            cfg.Log.Level,
				Format:           "console",
				OutputPaths:      []string{"stderr"},
				ErrorOutputPaths: []string{"stderr"},
			})
			if err != nil {
				return err
			}
			ctx := context.WithValue(cmd.Context(), appContextKey{}, &appContext{cfg: cfg, log: log})
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file path (default: ./sieve.yaml)")
	pf.StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	cmd.AddCommand(
		newDecomposeCmd(),
		newBuildLibraryCmd(),
		newSubsetCmd(),
		newScoreCmd(),
		newMigrateCmd(),
	)
	return cmd
}

// getApp extracts the initialized appContext from a command.
func getApp(cmd *cobra.Command) (*appContext, error) {
	app, ok := cmd.Context().Value(appContextKey{}).(*appContext)
	if !ok || app == nil {
		return nil, errors.Internal("command context not initialized")
	}
	return app, nil
}

// Execute runs the command tree and reports errors on stderr.
func Execute() error {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %s\n", err.Error())
		return err
	}
	return nil
}
