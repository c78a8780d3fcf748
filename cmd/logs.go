package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"alumnisync/internal/app"
	"alumnisync/pkg/models"
)

var (
	logsLimit int
	logsRunID string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Browse the scrape log trail",
	Long:  "Shows recent scrape log entries, newest first, or every entry of one run",
	RunE: func(cmd *cobra.Command, args []string) error {
		application := app.GetAppFromContext(cmd.Context())

		var entries []*models.ScrapeLog
		var err error
		if logsRunID != "" {
			entries, err = application.Store.ListScrapeLogsByRun(logsRunID)
		} else {
			entries, err = application.Store.ListScrapeLogs(logsLimit)
		}
		if err != nil {
			return fmt.Errorf("failed to load scrape logs: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No scrape log entries yet.")
			return nil
		}

		fmt.Println(titleStyle.Render(fmt.Sprintf("Scrape Logs (%d)", len(entries))))
		for _, e := range entries {
			line := fmt.Sprintf("%s  %-8s", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Status)
			if e.AlumniID != 0 {
				line += fmt.Sprintf("  alumni=%d", e.AlumniID)
			}
			if e.DurationSeconds > 0 {
				line += fmt.Sprintf("  %ds", e.DurationSeconds)
			}
			if e.DocumentStored {
				line += "  [pdf]"
			}
			fmt.Println(valueStyle.Render(line))
			if e.ErrorDetail != "" {
				fmt.Printf("    %s %s\n", labelStyle.Render("Detail:"), e.ErrorDetail)
			}
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().IntVar(&logsLimit, "limit", 50, "Maximum entries to show")
	logsCmd.Flags().StringVar(&logsRunID, "run", "", "Show every entry of one run id")
	rootCmd.AddCommand(logsCmd)
}
