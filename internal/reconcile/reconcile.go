package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"alumnisync/pkg/models"
)

// ErrUnresolvableIdentity means the normalized profile carries no stable
// external identifier, so there is nothing safe to merge against. The caller
// logs a failed attempt and leaves storage untouched.
var ErrUnresolvableIdentity = errors.New("profile has no stable identifier")

// NeedsSync is the staleness policy gating network traffic: a record is due
// when forced, missing, never synced, or older than the threshold.
func NeedsSync(record *models.Alumni, now time.Time, thresholdDays int, force bool) bool {
	if force {
		return true
	}
	if record == nil {
		return true
	}
	if record.LastSyncedAt == nil {
		return true
	}
	return now.Sub(*record.LastSyncedAt) > time.Duration(thresholdDays)*24*time.Hour
}

// MergeResult describes the storage mutations a merge produced. JobsClosed
// entries carry the row ID of the matched existing entry and its new end date.
type MergeResult struct {
	Record         *models.Alumni
	Created        bool
	JobsAdded      []models.JobHistory
	JobsClosed     []models.JobHistory
	EducationAdded []models.EducationHistory
}

// Merge reconciles a freshly normalized profile against the existing record
// and its history. Scraped values win over stored ones for mutable personal,
// contact and position fields (empty scraped values never blank a stored one).
// History is append/close only: entries are matched by natural key, unmatched
// existing entries stay untouched, unmatched new entries are appended, and a
// matched entry whose end date went from open to closed is updated in place.
// The record's LastSyncedAt is set to now; the caller persists the result.
func Merge(existing *models.Alumni, existingJobs []models.JobHistory, existingEducation []models.EducationHistory, p models.NormalizedProfile, now time.Time) (*MergeResult, error) {
	if p.ProfileID == "" {
		return nil, ErrUnresolvableIdentity
	}

	res := &MergeResult{}

	var record models.Alumni
	if existing == nil {
		record = models.Alumni{ProfileID: p.ProfileID, ProfileURL: p.ProfileURL}
		res.Created = true
	} else {
		record = *existing
		record.ProfileID = p.ProfileID
		if p.ProfileURL != "" {
			record.ProfileURL = p.ProfileURL
		}
	}

	overwrite(&record.Name, p.Name)
	overwrite(&record.CurrentCompany, p.Company)
	overwrite(&record.CurrentTitle, p.Title)
	overwrite(&record.Location, p.Location)
	overwrite(&record.CorporateEmail, p.Email)

	syncedAt := now
	record.LastSyncedAt = &syncedAt
	res.Record = &record

	// Job history keyed on (company, title, start date)
	jobIndex := make(map[string]models.JobHistory, len(existingJobs))
	for _, e := range existingJobs {
		jobIndex[jobKey(e)] = e
	}
	// Scrapes can repeat a card; only the first occurrence of a key counts
	seenJobs := make(map[string]struct{}, len(p.Jobs))
	for _, incoming := range p.Jobs {
		key := jobKey(incoming)
		if _, dup := seenJobs[key]; dup {
			continue
		}
		seenJobs[key] = struct{}{}
		matched, ok := jobIndex[key]
		if !ok {
			res.JobsAdded = append(res.JobsAdded, incoming)
			continue
		}
		if matched.EndDate == nil && incoming.EndDate != nil {
			res.JobsClosed = append(res.JobsClosed, models.JobHistory{
				ID:      matched.ID,
				Company: matched.Company,
				Title:   matched.Title,
				EndDate: incoming.EndDate,
			})
		}
	}

	// Education history keyed on (institution, degree, start year)
	eduIndex := make(map[string]struct{}, len(existingEducation))
	for _, e := range existingEducation {
		eduIndex[educationKey(e)] = struct{}{}
	}
	for _, incoming := range p.Educations {
		key := educationKey(incoming)
		if _, ok := eduIndex[key]; !ok {
			res.EducationAdded = append(res.EducationAdded, incoming)
			eduIndex[key] = struct{}{}
		}
	}

	return res, nil
}

// overwrite applies last-write-wins with scrape as source of truth, except
// that a missing scraped field never erases stored data.
func overwrite(dst *string, scraped string) {
	if scraped != "" {
		*dst = scraped
	}
}

func jobKey(e models.JobHistory) string {
	start := ""
	if e.StartDate != nil {
		start = e.StartDate.Format("2006-01")
	}
	return strings.ToLower(e.Company) + "|" + strings.ToLower(e.Title) + "|" + start
}

func educationKey(e models.EducationHistory) string {
	return fmt.Sprintf("%s|%s|%d", strings.ToLower(e.Institution), strings.ToLower(e.Degree), e.StartYear)
}
