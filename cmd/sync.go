package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"alumnisync/internal/app"
	"alumnisync/internal/archive"
	"alumnisync/internal/config"
	"alumnisync/internal/pacing"
	"alumnisync/internal/runlock"
	"alumnisync/internal/session"
	syncer "alumnisync/internal/sync"
)

var (
	syncBatch       string
	syncMaxProfiles int
	syncForce       bool
	syncThreshold   int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization pass over stale alumni records",
	Long: `Selects alumni whose profiles have not been synced within the staleness
threshold, scrapes each profile sequentially with randomized pacing, merges
the result into the database, and archives a PDF snapshot per profile.

Runs are serialized through a Redis lock so overlapping cron invocations
cannot double-scrape the same account.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application := app.GetAppFromContext(cmd.Context())
		cfg := application.Config
		log := application.Logger

		locker, err := runlock.NewRedisLocker(cmd.Context(), cfg.RedisAddr, "", 0)
		if err != nil {
			return err
		}
		defer locker.Close()

		var sink archive.Sink
		if cfg.B2Bucket != "" {
			b2, err := archive.NewB2Sink(archive.B2Options{
				Endpoint: cfg.B2Endpoint,
				KeyID:    cfg.B2KeyID,
				AppKey:   cfg.B2AppKey,
				Bucket:   cfg.B2Bucket,
				UseSSL:   cfg.B2UseSSL,
				Logger:   log,
			})
			if err != nil {
				return err
			}
			sink = b2
		} else {
			fmt.Fprintln(os.Stderr, "warning: no b2_bucket configured, snapshot archival disabled")
		}

		source, err := session.New(cmd.Context(), session.Options{
			Email:       cfg.LinkedInEmail,
			Password:    cfg.LinkedInPassword,
			Headless:    cfg.Headless,
			PageTimeout: application.PageTimeout(),
			Pace:        pacing.New(application.MinDelay(), application.MaxDelay(), nil),
			Logger:      log,
		})
		if err != nil {
			return err
		}
		defer source.Close()

		runner := syncer.New(syncer.Deps{
			Store:  application.Store,
			Source: source,
			Sink:   sink,
			Locker: locker,
			Logger: log,
		})

		thresholdDays, maxProfiles := resolveRunLimits(cfg, syncThreshold, syncMaxProfiles)
		stats, runErr := runner.Run(cmd.Context(), syncer.Config{
			BatchFilter:   syncBatch,
			MaxProfiles:   maxProfiles,
			ForceUpdate:   syncForce,
			ThresholdDays: thresholdDays,
			RunTimeout:    application.RunTimeout(),
			LockTTL:       application.LockTTL(),
		})

		printRunSummary(stats)
		if runErr != nil {
			return fmt.Errorf("sync run %s aborted: %w", stats.RunID, runErr)
		}
		return nil
	},
}

// resolveRunLimits substitutes the configured defaults for flags left unset.
func resolveRunLimits(cfg *config.Config, thresholdFlag, maxProfilesFlag int) (thresholdDays, maxProfiles int) {
	thresholdDays = thresholdFlag
	if thresholdDays <= 0 {
		thresholdDays = cfg.ThresholdDays
	}
	maxProfiles = maxProfilesFlag
	if maxProfiles <= 0 {
		maxProfiles = cfg.MaxProfiles
	}
	return thresholdDays, maxProfiles
}

func printRunSummary(stats *syncer.Stats) {
	fmt.Println(titleStyle.Render("Sync Run " + stats.RunID))
	fmt.Printf("%s %s\n", labelStyle.Render("State:"), valueStyle.Render(stats.State.String()))
	fmt.Printf("%s %s\n", labelStyle.Render("Duration:"), valueStyle.Render(stats.FinishedAt.Sub(stats.StartedAt).Round(time.Second).String()))
	fmt.Printf("%s %d\n", labelStyle.Render("Candidates:"), stats.Candidates)
	fmt.Printf("%s %d\n", labelStyle.Render("Succeeded:"), stats.Succeeded)
	fmt.Printf("%s %d\n", labelStyle.Render("Partial:"), stats.Partial)
	fmt.Printf("%s %d\n", labelStyle.Render("Failed:"), stats.Failed)
	fmt.Printf("%s %d\n", labelStyle.Render("Skipped:"), stats.Skipped)
	fmt.Printf("%s %d\n", labelStyle.Render("Aborted:"), stats.Aborted)
	fmt.Printf("%s %d created, %d updated\n", labelStyle.Render("Records:"), stats.Created, stats.Updated)
	fmt.Printf("%s %d\n", labelStyle.Render("Documents:"), stats.DocumentsArchived)
}

func init() {
	syncCmd.Flags().StringVar(&syncBatch, "batch", "", "Restrict the run to one graduation batch")
	syncCmd.Flags().IntVar(&syncMaxProfiles, "max-profiles", 0, "Cap on profiles per run (default from config)")
	syncCmd.Flags().BoolVar(&syncForce, "force-update", false, "Sync every selected record regardless of staleness")
	syncCmd.Flags().IntVar(&syncThreshold, "threshold-days", 0, "Staleness threshold in days (default from config)")
	rootCmd.AddCommand(syncCmd)
}
