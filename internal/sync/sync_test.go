package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"alumnisync/internal/archive"
	"alumnisync/internal/runlock"
	"alumnisync/internal/session"
	"alumnisync/pkg/models"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	alumni  []*models.Alumni
	jobs    map[int][]models.JobHistory
	edu     map[int][]models.EducationHistory
	logs    []*models.ScrapeLog
	saved   []*models.Alumni
	docURLs map[int]string
}

func newFakeStore(alumni ...*models.Alumni) *fakeStore {
	return &fakeStore{
		alumni:  alumni,
		jobs:    map[int][]models.JobHistory{},
		edu:     map[int][]models.EducationHistory{},
		docURLs: map[int]string{},
	}
}

func (s *fakeStore) ListAlumni(batch string) ([]*models.Alumni, error) {
	if batch == "" {
		return s.alumni, nil
	}
	var out []*models.Alumni
	for _, a := range s.alumni {
		if a.Batch == batch {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) GetAlumniByProfileID(profileID string) (*models.Alumni, error) {
	for _, a := range s.alumni {
		if a.ProfileID == profileID {
			return a, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetJobHistory(id int) ([]models.JobHistory, error) {
	return s.jobs[id], nil
}

func (s *fakeStore) GetEducationHistory(id int) ([]models.EducationHistory, error) {
	return s.edu[id], nil
}

func (s *fakeStore) SaveMerge(record *models.Alumni, jobsAdded, jobsClosed []models.JobHistory, educationAdded []models.EducationHistory) error {
	s.saved = append(s.saved, record)
	return nil
}

func (s *fakeStore) SetDocumentURL(id int, url string) error {
	s.docURLs[id] = url
	return nil
}

func (s *fakeStore) AppendScrapeLog(entry *models.ScrapeLog) error {
	s.logs = append(s.logs, entry)
	return nil
}

func (s *fakeStore) statuses() []string {
	var out []string
	for _, l := range s.logs {
		out = append(out, l.Status)
	}
	return out
}

type fakeSource struct {
	loginErr    error
	fetchCount  int
	fetchedURLs []string
	failAfter   int // fetch index (1-based) at which fetchErr fires; 0 = never
	fetchErr    error
	captureErr  error
	closed      bool
}

func (f *fakeSource) Login(ctx context.Context) error { return f.loginErr }

func (f *fakeSource) FetchProfile(ctx context.Context, profileURL string) (*models.RawProfile, error) {
	f.fetchCount++
	f.fetchedURLs = append(f.fetchedURLs, profileURL)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.failAfter > 0 && f.fetchCount >= f.failAfter {
		return nil, f.fetchErr
	}
	return &models.RawProfile{
		ProfileURL: profileURL,
		Name:       "Scraped Name",
		Headline:   "Engineer at Acme",
	}, nil
}

func (f *fakeSource) CaptureDocument(ctx context.Context, profileURL string) ([]byte, string, error) {
	if f.captureErr != nil {
		return nil, "", f.captureErr
	}
	return []byte("%PDF-1.4 fake"), "application/pdf", nil
}

func (f *fakeSource) Close() { f.closed = true }

type fakeSink struct {
	stored   []string
	storeErr error
}

func (f *fakeSink) Store(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if f.storeErr != nil {
		return "", f.storeErr
	}
	f.stored = append(f.stored, key)
	return "https://bucket.example/" + key, nil
}

type fakeLocker struct {
	held     bool
	acquired int
	released []string
}

func (f *fakeLocker) Acquire(ctx context.Context, ttl time.Duration) (string, error) {
	if f.held {
		return "", runlock.ErrLockHeld
	}
	f.acquired++
	return "token-1", nil
}

func (f *fakeLocker) Release(ctx context.Context, token string) error {
	f.released = append(f.released, token)
	return nil
}

// staleAlumni builds a record whose last sync is old enough to be due.
func staleAlumni(id int, slug string) *models.Alumni {
	last := testNow.AddDate(0, 0, -365)
	return &models.Alumni{
		ID:           id,
		RollNumber:   fmt.Sprintf("R%03d", id),
		Name:         fmt.Sprintf("Alum %d", id),
		ProfileID:    slug,
		ProfileURL:   "https://www.linkedin.com/in/" + slug,
		LastSyncedAt: &last,
	}
}

func newTestRunner(store *fakeStore, source *fakeSource, sink archive.Sink, locker *fakeLocker) *Runner {
	return New(Deps{
		Store:  store,
		Source: source,
		Sink:   sink,
		Locker: locker,
		Now:    func() time.Time { return testNow },
	})
}

func TestRunNothingStale(t *testing.T) {
	fresh := testNow.AddDate(0, 0, -10)
	store := newFakeStore(&models.Alumni{
		ID: 1, ProfileID: "fresh", ProfileURL: "https://www.linkedin.com/in/fresh", LastSyncedAt: &fresh,
	})
	source := &fakeSource{}
	locker := &fakeLocker{}

	stats, err := newTestRunner(store, source, nil, locker).Run(context.Background(), Config{ThresholdDays: 180})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.State != RunCompleted {
		t.Errorf("state = %v, want completed", stats.State)
	}
	if source.fetchCount != 0 {
		t.Errorf("fetchCount = %d, want 0 when nothing is stale", source.fetchCount)
	}
	if len(store.logs) != 0 {
		t.Errorf("wrote %d log entries, want 0", len(store.logs))
	}
	if len(locker.released) != 1 {
		t.Errorf("lock released %d times, want 1", len(locker.released))
	}
}

func TestRunMaxProfilesCapsSelection(t *testing.T) {
	store := newFakeStore(
		staleAlumni(1, "one"),
		staleAlumni(2, "two"),
		staleAlumni(3, "three"),
		staleAlumni(4, "four"),
		staleAlumni(5, "five"),
	)
	source := &fakeSource{}
	locker := &fakeLocker{}

	stats, err := newTestRunner(store, source, nil, locker).Run(context.Background(), Config{MaxProfiles: 3})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Candidates != 3 {
		t.Errorf("candidates = %d, want 3", stats.Candidates)
	}
	if source.fetchCount != 3 {
		t.Errorf("fetchCount = %d, want 3", source.fetchCount)
	}
	// selection keeps the store's staleness order
	for i, wantID := range []int{1, 2, 3} {
		if store.logs[i].AlumniID != wantID {
			t.Errorf("log[%d].AlumniID = %d, want %d", i, store.logs[i].AlumniID, wantID)
		}
	}
}

func TestRunSessionExpiryAbortsRemaining(t *testing.T) {
	var roster []*models.Alumni
	for i := 1; i <= 10; i++ {
		roster = append(roster, staleAlumni(i, fmt.Sprintf("alum-%d", i)))
	}
	store := newFakeStore(roster...)
	source := &fakeSource{failAfter: 3, fetchErr: session.ErrSessionExpired}
	locker := &fakeLocker{}

	stats, err := newTestRunner(store, source, nil, locker).Run(context.Background(), Config{})
	if !errors.Is(err, session.ErrSessionExpired) {
		t.Fatalf("Run() error = %v, want ErrSessionExpired", err)
	}
	if stats.State != RunAborted {
		t.Errorf("state = %v, want aborted", stats.State)
	}
	if source.fetchCount != 3 {
		t.Errorf("fetchCount = %d, want 3 (no attempts after expiry)", source.fetchCount)
	}
	if len(store.logs) != 10 {
		t.Fatalf("wrote %d log entries, want 10 (every candidate accounted for)", len(store.logs))
	}
	statuses := store.statuses()
	for i := 0; i < 2; i++ {
		if statuses[i] != models.StatusSuccess {
			t.Errorf("log[%d] = %s, want success", i, statuses[i])
		}
	}
	for i := 2; i < 10; i++ {
		if statuses[i] != models.StatusAborted {
			t.Errorf("log[%d] = %s, want aborted", i, statuses[i])
		}
	}
	if stats.Succeeded != 2 || stats.Aborted != 8 {
		t.Errorf("succeeded/aborted = %d/%d, want 2/8", stats.Succeeded, stats.Aborted)
	}
	if !source.closed {
		t.Error("session not closed after abort")
	}
	if len(locker.released) != 1 {
		t.Errorf("lock released %d times, want 1", len(locker.released))
	}
}

func TestRunArchivalFailureIsPartial(t *testing.T) {
	store := newFakeStore(staleAlumni(1, "alum-1"))
	source := &fakeSource{}
	sink := &fakeSink{storeErr: fmt.Errorf("%w: bucket unreachable", archive.ErrArchival)}
	locker := &fakeLocker{}

	stats, err := newTestRunner(store, source, sink, locker).Run(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.State != RunCompleted {
		t.Errorf("state = %v, want completed (archival is best-effort)", stats.State)
	}
	if stats.Partial != 1 || stats.Succeeded != 0 {
		t.Errorf("partial/succeeded = %d/%d, want 1/0", stats.Partial, stats.Succeeded)
	}
	if len(store.saved) != 1 {
		t.Errorf("merge persisted %d times, want 1 (merge survives archival failure)", len(store.saved))
	}
	if url, ok := store.docURLs[1]; ok {
		t.Errorf("document url set to %q, want untouched", url)
	}
	if store.logs[0].Status != models.StatusPartial {
		t.Errorf("log status = %s, want partial", store.logs[0].Status)
	}
	if store.logs[0].DocumentStored {
		t.Error("log claims document stored after archival failure")
	}
}

func TestRunArchivalSuccessSetsDocumentURL(t *testing.T) {
	store := newFakeStore(staleAlumni(1, "alum-1"))
	source := &fakeSource{}
	sink := &fakeSink{}
	locker := &fakeLocker{}

	stats, err := newTestRunner(store, source, sink, locker).Run(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Succeeded != 1 || stats.DocumentsArchived != 1 {
		t.Errorf("succeeded/documents = %d/%d, want 1/1", stats.Succeeded, stats.DocumentsArchived)
	}
	if len(sink.stored) != 1 {
		t.Fatalf("sink stored %d objects, want 1", len(sink.stored))
	}
	if store.docURLs[1] == "" {
		t.Error("document url not persisted")
	}
	if !store.logs[0].DocumentStored {
		t.Error("log does not record the stored document")
	}
}

func TestRunAuthBlockedAbortsBeforeFetching(t *testing.T) {
	store := newFakeStore(staleAlumni(1, "alum-1"), staleAlumni(2, "alum-2"))
	source := &fakeSource{loginErr: session.ErrAuthenticationBlocked}
	locker := &fakeLocker{}

	stats, err := newTestRunner(store, source, nil, locker).Run(context.Background(), Config{})
	if !errors.Is(err, session.ErrAuthenticationBlocked) {
		t.Fatalf("Run() error = %v, want ErrAuthenticationBlocked", err)
	}
	if stats.State != RunAborted {
		t.Errorf("state = %v, want aborted", stats.State)
	}
	if source.fetchCount != 0 {
		t.Errorf("fetchCount = %d, want 0", source.fetchCount)
	}
	if len(store.logs) != 1 || store.logs[0].Status != models.StatusAborted {
		t.Fatalf("logs = %v, want a single run-level aborted entry", store.statuses())
	}
	if len(locker.released) != 1 {
		t.Errorf("lock released %d times, want 1", len(locker.released))
	}
}

func TestRunLockHeldRefusesToStart(t *testing.T) {
	store := newFakeStore(staleAlumni(1, "alum-1"))
	source := &fakeSource{}
	locker := &fakeLocker{held: true}

	stats, err := newTestRunner(store, source, nil, locker).Run(context.Background(), Config{})
	if !errors.Is(err, runlock.ErrLockHeld) {
		t.Fatalf("Run() error = %v, want ErrLockHeld", err)
	}
	if stats.State != RunAborted {
		t.Errorf("state = %v, want aborted", stats.State)
	}
	if source.fetchCount != 0 || len(store.logs) != 0 {
		t.Error("run touched the source or the log despite the held lock")
	}
}

func TestRunCandidateWithoutURLIsSkipped(t *testing.T) {
	noURL := staleAlumni(1, "")
	noURL.ProfileURL = ""
	store := newFakeStore(noURL, staleAlumni(2, "alum-2"))
	source := &fakeSource{}
	locker := &fakeLocker{}

	stats, err := newTestRunner(store, source, nil, locker).Run(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Skipped != 1 || stats.Succeeded != 1 {
		t.Errorf("skipped/succeeded = %d/%d, want 1/1", stats.Skipped, stats.Succeeded)
	}
	if source.fetchCount != 1 {
		t.Errorf("fetchCount = %d, want 1 (no fetch for the missing url)", source.fetchCount)
	}
	if store.logs[0].Status != models.StatusSkipped {
		t.Errorf("log[0] status = %s, want skipped", store.logs[0].Status)
	}
}

func TestRunFetchErrorContinues(t *testing.T) {
	store := newFakeStore(staleAlumni(1, "alum-1"), staleAlumni(2, "alum-2"), staleAlumni(3, "alum-3"))
	source := &fakeSource{failAfter: 2, fetchErr: fmt.Errorf("%w: timeout rendering", session.ErrFetch)}
	locker := &fakeLocker{}

	// failAfter marks every fetch from the 2nd on as failed
	stats, err := newTestRunner(store, source, nil, locker).Run(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.State != RunCompleted {
		t.Errorf("state = %v, want completed (fetch failures are per-profile)", stats.State)
	}
	if stats.Succeeded != 1 || stats.Failed != 2 {
		t.Errorf("succeeded/failed = %d/%d, want 1/2", stats.Succeeded, stats.Failed)
	}
	if source.fetchCount != 3 {
		t.Errorf("fetchCount = %d, want 3", source.fetchCount)
	}
}

func TestRunForceUpdateIncludesFresh(t *testing.T) {
	fresh := testNow.AddDate(0, 0, -1)
	store := newFakeStore(&models.Alumni{
		ID: 1, ProfileID: "fresh", ProfileURL: "https://www.linkedin.com/in/fresh", LastSyncedAt: &fresh,
	})
	source := &fakeSource{}
	locker := &fakeLocker{}

	stats, err := newTestRunner(store, source, nil, locker).Run(context.Background(), Config{ForceUpdate: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Candidates != 1 || stats.Succeeded != 1 {
		t.Errorf("candidates/succeeded = %d/%d, want 1/1", stats.Candidates, stats.Succeeded)
	}
}

func TestRunTimeoutAbortsRemaining(t *testing.T) {
	store := newFakeStore(staleAlumni(1, "alum-1"), staleAlumni(2, "alum-2"), staleAlumni(3, "alum-3"))
	source := &fakeSource{}
	locker := &fakeLocker{}

	stats, err := newTestRunner(store, source, nil, locker).Run(context.Background(), Config{
		RunTimeout: time.Nanosecond,
	})
	if !errors.Is(err, session.ErrSessionExpired) {
		t.Fatalf("Run() error = %v, want the session-expired path on timeout", err)
	}
	if stats.State != RunAborted {
		t.Errorf("state = %v, want aborted", stats.State)
	}
	if len(store.logs) != 3 {
		t.Fatalf("wrote %d log entries, want 3 (every candidate accounted for)", len(store.logs))
	}
	for i, status := range store.statuses() {
		if status != models.StatusAborted {
			t.Errorf("log[%d] = %s, want aborted", i, status)
		}
	}
	if stats.Aborted != 3 || stats.Succeeded != 0 {
		t.Errorf("aborted/succeeded = %d/%d, want 3/0", stats.Aborted, stats.Succeeded)
	}
	if len(store.saved) != 0 {
		t.Errorf("merge persisted %d times, want 0 after timeout", len(store.saved))
	}
}

func TestRunDerivesURLFromProfileID(t *testing.T) {
	noURL := staleAlumni(1, "jane-doe")
	noURL.ProfileURL = ""
	store := newFakeStore(noURL)
	source := &fakeSource{}
	locker := &fakeLocker{}

	stats, err := newTestRunner(store, source, nil, locker).Run(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Succeeded != 1 || stats.Skipped != 0 {
		t.Errorf("succeeded/skipped = %d/%d, want 1/0", stats.Succeeded, stats.Skipped)
	}
	want := "https://www.linkedin.com/in/jane-doe"
	if len(source.fetchedURLs) != 1 || source.fetchedURLs[0] != want {
		t.Errorf("fetched %v, want [%s]", source.fetchedURLs, want)
	}
	if store.logs[0].ProfileURL != want {
		t.Errorf("log url = %q, want %q", store.logs[0].ProfileURL, want)
	}
}
