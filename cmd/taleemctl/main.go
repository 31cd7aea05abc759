// Command taleemctl is the operator CLI: it applies the schema, inspects the
// curriculum and prints or exports learner progress.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/p-n-ai/taleem/internal/app"
	"github.com/p-n-ai/taleem/internal/platform/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taleemctl",
		Short:         "Operate the Taleem tutoring service",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Keep stdout for command output.
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn})))
		},
	}
	root.PersistentFlags().String("curriculum", "", "Curriculum directory (overrides TALEEM_CURRICULUM_PATH)")

	root.AddCommand(newMigrateCmd())
	root.AddCommand(newCurriculumCmd())
	root.AddCommand(newProgressCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newActivityCmd())
	return root
}

// loadConfig reads the environment, then applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if p, _ := cmd.Flags().GetString("curriculum"); p != "" {
		cfg.CurriculumPath = p
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openApp(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a, err := app.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return a, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", a.Config.Database.Driver)
			return nil
		},
	}
}
