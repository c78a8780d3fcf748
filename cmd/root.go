package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"alumnisync/internal/app"
)

var rootCmd = &cobra.Command{
	Use:   "alumnisync",
	Short: "Alumni profile synchronization pipeline",
	Long: `Alumnisync keeps an institutional alumni database current by periodically
scraping public professional-network profiles, reconciling them against the
local records, and archiving PDF snapshots of each profile.`,
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize app with all dependencies
		application, err := app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		// Store app in command context
		cmd.SetContext(app.SetAppInContext(cmd.Context(), application))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application := app.GetAppFromContext(cmd.Context()); application != nil {
			application.Close()
		}
	},
}

// Execute runs the root command
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rootCmd.SetContext(ctx)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
