package models

import "time"

// Alumni is the canonical directory record. A record may be created from a
// manual import and never scraped, in which case LastSyncedAt stays nil.
type Alumni struct {
	ID         int    `json:"id"`
	RollNumber string `json:"roll_number"`
	Batch      string `json:"batch"`
	Name       string `json:"name"`
	Gender     string `json:"gender"`

	// Contact information
	CollegeEmail   string `json:"college_email"`
	PersonalEmail  string `json:"personal_email"`
	CorporateEmail string `json:"corporate_email"`
	WhatsappNumber string `json:"whatsapp_number"`
	MobileNumber   string `json:"mobile_number"`

	// External profile identity; unique when present
	ProfileID  string `json:"profile_id"`
	ProfileURL string `json:"profile_url"`

	// Current position snapshot
	CurrentCompany string `json:"current_company"`
	CurrentTitle   string `json:"current_title"`
	Location       string `json:"location"`

	// Archived document snapshot reference (object storage URL)
	DocumentURL string `json:"document_url"`

	Remarks      string     `json:"remarks"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
}

// JobHistory is one employment entry owned by an alumni record.
// Entries are deduplicated by (company, title, start date); an entry with a
// nil EndDate is an open (current) position.
type JobHistory struct {
	ID             int        `json:"id"`
	AlumniID       int        `json:"alumni_id"`
	Company        string     `json:"company"`
	Title          string     `json:"title"`
	Location       string     `json:"location"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	EmploymentType string     `json:"employment_type"`
}

// EducationHistory is one academic entry owned by an alumni record,
// deduplicated by (institution, degree, start year).
type EducationHistory struct {
	ID           int    `json:"id"`
	AlumniID     int    `json:"alumni_id"`
	Institution  string `json:"institution"`
	Degree       string `json:"degree"`
	FieldOfStudy string `json:"field_of_study"`
	StartYear    int    `json:"start_year"`
	EndYear      int    `json:"end_year"`
	Grade        string `json:"grade"`
	Activities   string `json:"activities"`
}

// Scrape attempt outcomes recorded in scrape_logs.status.
const (
	StatusSuccess = "success"
	StatusPartial = "partial" // record updated but document archival failed
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
	StatusAborted = "aborted" // remaining candidates after a fatal session error
)

// ScrapeLog is the append-only audit record, one per sync attempt. It holds a
// weak reference to the alumni record: AlumniID may be zero for candidates
// that never resolved to a record, and logs outlive record deletion.
type ScrapeLog struct {
	ID              int       `json:"id"`
	RunID           string    `json:"run_id"`
	AlumniID        int       `json:"alumni_id"`
	ProfileURL      string    `json:"profile_url"`
	Status          string    `json:"status"`
	ErrorDetail     string    `json:"error_detail"`
	DocumentStored  bool      `json:"document_stored"`
	DurationSeconds int       `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

// RawProfile is what the session controller extracts from a rendered profile
// page, before any normalization. All fields are best-effort.
type RawProfile struct {
	ProfileURL  string          `json:"profile_url"`
	Name        string          `json:"name"`
	Headline    string          `json:"headline"`
	Location    string          `json:"location"`
	Email       string          `json:"email"`
	Experiences []RawExperience `json:"experiences"`
	Educations  []RawEducation  `json:"educations"`
}

// RawExperience is one scraped experience card. Duration carries the raw
// "Jan 2020 - Present" style text for the normalizer to parse.
type RawExperience struct {
	Company        string `json:"company"`
	Title          string `json:"title"`
	Location       string `json:"location"`
	Duration       string `json:"duration"`
	EmploymentType string `json:"employment_type"`
}

// RawEducation is one scraped education card. Years carries raw text like
// "2018 - 2022".
type RawEducation struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Years       string `json:"years"`
	Grade       string `json:"grade"`
	Activities  string `json:"activities"`
}

// NormalizedProfile is the canonical shape produced by the normalizer and
// consumed by the reconciliation engine.
type NormalizedProfile struct {
	ProfileID  string
	ProfileURL string
	Name       string
	Company    string
	Title      string
	Location   string
	Email      string
	Jobs       []JobHistory
	Educations []EducationHistory
}
