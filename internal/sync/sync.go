package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"alumnisync/internal/archive"
	"alumnisync/internal/logging"
	"alumnisync/internal/normalize"
	"alumnisync/internal/reconcile"
	"alumnisync/internal/runlock"
	"alumnisync/internal/session"
	"alumnisync/pkg/models"
)

// Store is the persistence surface the runner needs.
type Store interface {
	ListAlumni(batch string) ([]*models.Alumni, error)
	GetAlumniByProfileID(profileID string) (*models.Alumni, error)
	GetJobHistory(alumniID int) ([]models.JobHistory, error)
	GetEducationHistory(alumniID int) ([]models.EducationHistory, error)
	SaveMerge(record *models.Alumni, jobsAdded, jobsClosed []models.JobHistory, educationAdded []models.EducationHistory) error
	SetDocumentURL(alumniID int, url string) error
	AppendScrapeLog(entry *models.ScrapeLog) error
}

// Source is the authenticated profile source.
type Source interface {
	Login(ctx context.Context) error
	FetchProfile(ctx context.Context, profileURL string) (*models.RawProfile, error)
	CaptureDocument(ctx context.Context, profileURL string) ([]byte, string, error)
	Close()
}

// RunState tracks a single run through its lifecycle.
type RunState int

const (
	RunIdle RunState = iota
	RunRunning
	RunCompleted
	RunAborted
)

func (s RunState) String() string {
	switch s {
	case RunIdle:
		return "idle"
	case RunRunning:
		return "running"
	case RunCompleted:
		return "completed"
	case RunAborted:
		return "aborted"
	}
	return "unknown"
}

// Config holds per-run parameters.
type Config struct {
	BatchFilter   string
	MaxProfiles   int
	ForceUpdate   bool
	ThresholdDays int
	RunTimeout    time.Duration
	LockTTL       time.Duration
}

// Stats summarizes a finished run.
type Stats struct {
	RunID      string
	State      RunState
	StartedAt  time.Time
	FinishedAt time.Time

	Candidates        int
	Succeeded         int
	Partial           int
	Failed            int
	Skipped           int
	Aborted           int
	Created           int
	Updated           int
	DocumentsArchived int
}

// Deps are the collaborators a Runner is built from. Sink may be nil, which
// disables snapshot archival for the run.
type Deps struct {
	Store  Store
	Source Source
	Sink   archive.Sink
	Locker runlock.Locker
	Logger *logging.Logger
	Now    func() time.Time
}

// Runner drives one sync run end to end: candidate selection, login, the
// per-profile fetch/merge/archive loop, and the scrape log trail. A single
// logical worker processes profiles sequentially; parallelism is excluded to
// keep traffic plausibly human.
type Runner struct {
	store  Store
	source Source
	sink   archive.Sink
	locker runlock.Locker
	log    *logging.Logger
	now    func() time.Time
}

func New(d Deps) *Runner {
	if d.Logger == nil {
		d.Logger = logging.New("info")
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Runner{
		store:  d.Store,
		source: d.Source,
		sink:   d.Sink,
		locker: d.Locker,
		log:    d.Logger.With("module", "sync"),
		now:    d.Now,
	}
}

// Run executes one full sync pass. It returns the run stats together with
// the fatal error when the run aborted; per-profile failures do not fail the
// run.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Stats, error) {
	if cfg.ThresholdDays <= 0 {
		cfg.ThresholdDays = 180
	}
	if cfg.MaxProfiles <= 0 {
		cfg.MaxProfiles = 100
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Hour
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.RunTimeout + 30*time.Minute
	}

	stats := &Stats{
		RunID:     uuid.New().String(),
		State:     RunRunning,
		StartedAt: r.now(),
	}
	log := r.log.With("run_id", stats.RunID)

	token, err := r.locker.Acquire(ctx, cfg.LockTTL)
	if err != nil {
		stats.State = RunAborted
		stats.FinishedAt = r.now()
		if errors.Is(err, runlock.ErrLockHeld) {
			log.Warn("run lock held, refusing to start")
		}
		return stats, err
	}
	defer func() {
		if relErr := r.locker.Release(context.Background(), token); relErr != nil {
			log.Warn("run lock release failed", "error", relErr)
		}
	}()

	candidates, err := r.selectCandidates(cfg)
	if err != nil {
		stats.State = RunAborted
		stats.FinishedAt = r.now()
		return stats, fmt.Errorf("select candidates: %w", err)
	}
	stats.Candidates = len(candidates)
	log.Info("candidates selected",
		"count", len(candidates),
		"batch", cfg.BatchFilter,
		"threshold_days", cfg.ThresholdDays,
		"force", cfg.ForceUpdate)

	if len(candidates) == 0 {
		stats.State = RunCompleted
		stats.FinishedAt = r.now()
		return stats, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()
	defer r.source.Close()

	if err := r.source.Login(runCtx); err != nil {
		stats.State = RunAborted
		stats.FinishedAt = r.now()
		r.appendLog(log, &models.ScrapeLog{
			RunID:       stats.RunID,
			Status:      models.StatusAborted,
			ErrorDetail: err.Error(),
		})
		if errors.Is(err, session.ErrAuthenticationBlocked) {
			log.Error("authentication blocked, manual checkpoint resolution required")
		}
		return stats, err
	}

	for i, candidate := range candidates {
		fatal := r.processOne(runCtx, log, stats, candidate)
		if fatal != nil {
			r.abortRemaining(log, stats, candidates[i+1:], fatal)
			stats.State = RunAborted
			stats.FinishedAt = r.now()
			return stats, fatal
		}
	}

	stats.State = RunCompleted
	stats.FinishedAt = r.now()
	log.Info("run completed",
		"succeeded", stats.Succeeded,
		"partial", stats.Partial,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"documents", stats.DocumentsArchived)
	return stats, nil
}

// selectCandidates applies the staleness policy over the roster, oldest
// synced first (never-synced records sort ahead of everything).
func (r *Runner) selectCandidates(cfg Config) ([]*models.Alumni, error) {
	all, err := r.store.ListAlumni(cfg.BatchFilter)
	if err != nil {
		return nil, err
	}
	now := r.now()
	var due []*models.Alumni
	for _, a := range all {
		if !reconcile.NeedsSync(a, now, cfg.ThresholdDays, cfg.ForceUpdate) {
			continue
		}
		due = append(due, a)
		if len(due) == cfg.MaxProfiles {
			break
		}
	}
	return due, nil
}

// processOne runs the fetch/normalize/merge/archive sequence for a single
// candidate. It returns a non-nil error only for conditions fatal to the
// whole run; ordinary per-profile failures are logged and absorbed.
func (r *Runner) processOne(ctx context.Context, log *logging.Logger, stats *Stats, candidate *models.Alumni) error {
	started := r.now()
	profileURL := candidate.ProfileURL
	if profileURL == "" && candidate.ProfileID != "" {
		// a stored identifier is enough to reconstruct the public URL
		profileURL = "https://www.linkedin.com/in/" + candidate.ProfileID
	}
	entry := &models.ScrapeLog{
		RunID:      stats.RunID,
		AlumniID:   candidate.ID,
		ProfileURL: profileURL,
	}
	finish := func(status, detail string) {
		entry.Status = status
		entry.ErrorDetail = detail
		entry.DurationSeconds = int(r.now().Sub(started).Seconds())
		r.appendLog(log, entry)
	}

	if profileURL == "" {
		stats.Skipped++
		finish(models.StatusSkipped, "no profile url or identifier on record")
		return nil
	}

	raw, err := r.source.FetchProfile(ctx, profileURL)
	if err != nil {
		if fatal := asFatal(ctx, err); fatal != nil {
			stats.Aborted++
			finish(models.StatusAborted, fatal.Error())
			return fatal
		}
		stats.Failed++
		finish(models.StatusFailed, err.Error())
		log.Warn("profile fetch failed", "alumni_id", candidate.ID, "error", err)
		return nil
	}

	np := normalize.Normalize(raw)

	// A record that never stored a profile id must not capture one already
	// linked to a different record.
	if candidate.ProfileID == "" && np.ProfileID != "" {
		owner, err := r.store.GetAlumniByProfileID(np.ProfileID)
		if err != nil {
			stats.Failed++
			finish(models.StatusFailed, err.Error())
			return nil
		}
		if owner != nil && owner.ID != candidate.ID {
			stats.Failed++
			finish(models.StatusFailed, fmt.Sprintf("profile %s already linked to alumni %d", np.ProfileID, owner.ID))
			return nil
		}
	}

	jobs, err := r.store.GetJobHistory(candidate.ID)
	if err != nil {
		stats.Failed++
		finish(models.StatusFailed, err.Error())
		return nil
	}
	education, err := r.store.GetEducationHistory(candidate.ID)
	if err != nil {
		stats.Failed++
		finish(models.StatusFailed, err.Error())
		return nil
	}

	merged, err := reconcile.Merge(candidate, jobs, education, np, r.now())
	if err != nil {
		stats.Failed++
		finish(models.StatusFailed, err.Error())
		log.Warn("merge rejected", "alumni_id", candidate.ID, "error", err)
		return nil
	}

	if err := r.store.SaveMerge(merged.Record, merged.JobsAdded, merged.JobsClosed, merged.EducationAdded); err != nil {
		stats.Failed++
		finish(models.StatusFailed, err.Error())
		log.Error("merge persistence failed", "alumni_id", candidate.ID, "error", err)
		return nil
	}
	if merged.Created {
		stats.Created++
	} else {
		stats.Updated++
	}

	archErr := r.archiveSnapshot(ctx, log, merged.Record)
	if archErr != nil {
		if fatal := asFatal(ctx, archErr); fatal != nil {
			// the merge is already durable; the snapshot is what was lost
			stats.Partial++
			finish(models.StatusPartial, fatal.Error())
			return fatal
		}
		stats.Partial++
		finish(models.StatusPartial, archErr.Error())
		log.Warn("snapshot archival failed", "alumni_id", merged.Record.ID, "error", archErr)
		return nil
	}

	stats.Succeeded++
	if r.sink != nil {
		stats.DocumentsArchived++
		entry.DocumentStored = true
	}
	finish(models.StatusSuccess, "")
	log.Info("profile synced",
		"alumni_id", merged.Record.ID,
		"profile_id", merged.Record.ProfileID,
		"created", merged.Created,
		"jobs_added", len(merged.JobsAdded),
		"jobs_closed", len(merged.JobsClosed))
	return nil
}

// archiveSnapshot captures and stores the profile PDF. Best-effort: a nil
// sink disables it entirely.
func (r *Runner) archiveSnapshot(ctx context.Context, log *logging.Logger, record *models.Alumni) error {
	if r.sink == nil {
		return nil
	}
	data, contentType, err := r.source.CaptureDocument(ctx, record.ProfileURL)
	if err != nil {
		return err
	}
	key := archive.SnapshotKey(record.ID, record.Name, r.now())
	url, err := r.sink.Store(ctx, key, data, contentType)
	if err != nil {
		return err
	}
	if err := r.store.SetDocumentURL(record.ID, url); err != nil {
		return err
	}
	return nil
}

// abortRemaining writes an aborted log entry for every candidate the run
// never reached, so the trail accounts for the whole selection.
func (r *Runner) abortRemaining(log *logging.Logger, stats *Stats, remaining []*models.Alumni, cause error) {
	for _, a := range remaining {
		stats.Aborted++
		r.appendLog(log, &models.ScrapeLog{
			RunID:       stats.RunID,
			AlumniID:    a.ID,
			ProfileURL:  a.ProfileURL,
			Status:      models.StatusAborted,
			ErrorDetail: "run aborted before this profile: " + cause.Error(),
		})
	}
	log.Error("run aborted", "cause", cause, "unprocessed", len(remaining))
}

func (r *Runner) appendLog(log *logging.Logger, entry *models.ScrapeLog) {
	if err := r.store.AppendScrapeLog(entry); err != nil {
		log.Error("scrape log append failed", "alumni_id", entry.AlumniID, "error", err)
	}
}

// asFatal classifies an operation error as run-fatal. Session expiry and the
// run deadline both mean no further profile can be attempted.
func asFatal(ctx context.Context, err error) error {
	if errors.Is(err, session.ErrSessionExpired) {
		return session.ErrSessionExpired
	}
	if ctx.Err() != nil {
		return fmt.Errorf("run timeout: %w", session.ErrSessionExpired)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("run timeout: %w", session.ErrSessionExpired)
	}
	return nil
}
