package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"alumnisync/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  "View and update configuration settings",
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.AppConfig

		fmt.Println(titleStyle.Render("Configuration"))
		fmt.Printf("%s %s\n", labelStyle.Render("Config File:"), config.GetConfigPath())
		fmt.Printf("%s %s\n", labelStyle.Render("Database:"), cfg.DBPath)
		fmt.Printf("%s %s\n", labelStyle.Render("Redis:"), cfg.RedisAddr)
		fmt.Printf("%s %v\n", labelStyle.Render("Headless:"), cfg.Headless)
		fmt.Printf("%s %d-%ds\n", labelStyle.Render("Pacing:"), cfg.MinDelaySeconds, cfg.MaxDelaySeconds)
		fmt.Printf("%s %d days\n", labelStyle.Render("Threshold:"), cfg.ThresholdDays)
		fmt.Printf("%s %d\n", labelStyle.Render("Max Profiles:"), cfg.MaxProfiles)

		// Show whether credentials are configured without printing them
		printConfigured("LinkedIn Email", cfg.LinkedInEmail)
		printConfigured("LinkedIn Password", cfg.LinkedInPassword)
		printConfigured("B2 Key ID", cfg.B2KeyID)
		printConfigured("B2 App Key", cfg.B2AppKey)
		printConfigured("B2 Bucket", cfg.B2Bucket)
	},
}

var setConfigCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Update a configuration value",
	Example: `  alumnisync config set linkedin_email sync-account@example.edu
  alumnisync config set threshold_days 120
  alumnisync config set b2_bucket alumni-snapshots`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Set(args[0], args[1]); err != nil {
			return fmt.Errorf("failed to update config: %w", err)
		}
		fmt.Printf("%s %s updated\n", labelStyle.Render("OK:"), args[0])
		return nil
	},
}

var getConfigCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a single configuration value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.Get(args[0]))
	},
}

func printConfigured(label, value string) {
	if value != "" {
		fmt.Printf("%s %s\n", labelStyle.Render(label+":"), "✓ Configured")
	} else {
		fmt.Printf("%s %s\n", labelStyle.Render(label+":"), "✗ Not configured")
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(setConfigCmd)
	configCmd.AddCommand(getConfigCmd)
}
