package database

import (
	"database/sql"
	"time"

	"alumnisync/pkg/models"
)

// nullable converts empty strings to NULL so UNIQUE columns like roll_number
// and profile_id stay unique only when a value is present.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

const alumniColumns = `id, roll_number, batch, name, gender,
	college_email, personal_email, corporate_email, whatsapp_number, mobile_number,
	profile_id, profile_url, current_company, current_title, location,
	document_url, remarks, created_at, updated_at, last_synced_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlumni(row rowScanner) (*models.Alumni, error) {
	a := &models.Alumni{}
	var rollNumber, profileID sql.NullString
	var lastSynced sql.NullTime
	err := row.Scan(&a.ID, &rollNumber, &a.Batch, &a.Name, &a.Gender,
		&a.CollegeEmail, &a.PersonalEmail, &a.CorporateEmail, &a.WhatsappNumber, &a.MobileNumber,
		&profileID, &a.ProfileURL, &a.CurrentCompany, &a.CurrentTitle, &a.Location,
		&a.DocumentURL, &a.Remarks, &a.CreatedAt, &a.UpdatedAt, &lastSynced)
	if err != nil {
		return nil, err
	}
	a.RollNumber = rollNumber.String
	a.ProfileID = profileID.String
	if lastSynced.Valid {
		t := lastSynced.Time
		a.LastSyncedAt = &t
	}
	return a, nil
}

// Alumni operations

func (s *Store) CreateAlumni(a *models.Alumni) error {
	query := `INSERT INTO alumni (roll_number, batch, name, gender,
		college_email, personal_email, corporate_email, whatsapp_number, mobile_number,
		profile_id, profile_url, current_company, current_title, location,
		document_url, remarks, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := s.db.Exec(query, nullable(a.RollNumber), a.Batch, a.Name, a.Gender,
		a.CollegeEmail, a.PersonalEmail, a.CorporateEmail, a.WhatsappNumber, a.MobileNumber,
		nullable(a.ProfileID), a.ProfileURL, a.CurrentCompany, a.CurrentTitle, a.Location,
		a.DocumentURL, a.Remarks, a.LastSyncedAt)
	if err != nil {
		return err
	}
	id, _ := result.LastInsertId()
	a.ID = int(id)
	return nil
}

func (s *Store) GetAlumniByID(id int) (*models.Alumni, error) {
	row := s.db.QueryRow(`SELECT `+alumniColumns+` FROM alumni WHERE id=?`, id)
	a, err := scanAlumni(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (s *Store) GetAlumniByProfileID(profileID string) (*models.Alumni, error) {
	row := s.db.QueryRow(`SELECT `+alumniColumns+` FROM alumni WHERE profile_id=?`, profileID)
	a, err := scanAlumni(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (s *Store) GetAlumniByRollNumber(rollNumber string) (*models.Alumni, error) {
	row := s.db.QueryRow(`SELECT `+alumniColumns+` FROM alumni WHERE roll_number=?`, rollNumber)
	a, err := scanAlumni(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// ListAlumni returns records matching the batch filter (all batches when
// empty), oldest last_synced_at first. SQLite sorts NULLs first on ASC, which
// puts never-synced records at the front of the candidate set.
func (s *Store) ListAlumni(batch string) ([]*models.Alumni, error) {
	query := `SELECT ` + alumniColumns + ` FROM alumni`
	args := []interface{}{}
	if batch != "" {
		query += ` WHERE batch=?`
		args = append(args, batch)
	}
	query += ` ORDER BY last_synced_at ASC, id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*models.Alumni{}
	for rows.Next() {
		a, err := scanAlumni(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// History operations

func (s *Store) GetJobHistory(alumniID int) ([]models.JobHistory, error) {
	query := `SELECT id, alumni_id, company, title, location, start_date, end_date, employment_type
		FROM job_history WHERE alumni_id=? ORDER BY start_date DESC, id ASC`
	rows, err := s.db.Query(query, alumniID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.JobHistory{}
	for rows.Next() {
		var e models.JobHistory
		var start, end sql.NullTime
		if err := rows.Scan(&e.ID, &e.AlumniID, &e.Company, &e.Title, &e.Location, &start, &end, &e.EmploymentType); err != nil {
			return nil, err
		}
		if start.Valid {
			t := start.Time
			e.StartDate = &t
		}
		if end.Valid {
			t := end.Time
			e.EndDate = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) GetEducationHistory(alumniID int) ([]models.EducationHistory, error) {
	query := `SELECT id, alumni_id, institution, degree, field_of_study, start_year, end_year, grade, activities
		FROM education_history WHERE alumni_id=? ORDER BY start_year DESC, id ASC`
	rows, err := s.db.Query(query, alumniID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.EducationHistory{}
	for rows.Next() {
		var e models.EducationHistory
		if err := rows.Scan(&e.ID, &e.AlumniID, &e.Institution, &e.Degree, &e.FieldOfStudy, &e.StartYear, &e.EndYear, &e.Grade, &e.Activities); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveMerge applies one profile's merge outcome in a single transaction:
// the record upsert, appended history rows and end-date closures commit or
// roll back together.
func (s *Store) SaveMerge(record *models.Alumni, jobsAdded []models.JobHistory, jobsClosed []models.JobHistory, educationAdded []models.EducationHistory) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if record.ID == 0 {
		result, err := tx.Exec(`INSERT INTO alumni (roll_number, batch, name, gender,
			college_email, personal_email, corporate_email, whatsapp_number, mobile_number,
			profile_id, profile_url, current_company, current_title, location,
			document_url, remarks, last_synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			nullable(record.RollNumber), record.Batch, record.Name, record.Gender,
			record.CollegeEmail, record.PersonalEmail, record.CorporateEmail, record.WhatsappNumber, record.MobileNumber,
			nullable(record.ProfileID), record.ProfileURL, record.CurrentCompany, record.CurrentTitle, record.Location,
			record.DocumentURL, record.Remarks, record.LastSyncedAt)
		if err != nil {
			return err
		}
		id, _ := result.LastInsertId()
		record.ID = int(id)
	} else {
		_, err := tx.Exec(`UPDATE alumni SET roll_number=?, batch=?, name=?, gender=?,
			college_email=?, personal_email=?, corporate_email=?, whatsapp_number=?, mobile_number=?,
			profile_id=?, profile_url=?, current_company=?, current_title=?, location=?,
			remarks=?, updated_at=?, last_synced_at=? WHERE id=?`,
			nullable(record.RollNumber), record.Batch, record.Name, record.Gender,
			record.CollegeEmail, record.PersonalEmail, record.CorporateEmail, record.WhatsappNumber, record.MobileNumber,
			nullable(record.ProfileID), record.ProfileURL, record.CurrentCompany, record.CurrentTitle, record.Location,
			record.Remarks, time.Now(), record.LastSyncedAt, record.ID)
		if err != nil {
			return err
		}
	}

	for i := range jobsAdded {
		e := &jobsAdded[i]
		result, err := tx.Exec(`INSERT INTO job_history (alumni_id, company, title, location, start_date, end_date, employment_type)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			record.ID, e.Company, e.Title, e.Location, e.StartDate, e.EndDate, e.EmploymentType)
		if err != nil {
			return err
		}
		id, _ := result.LastInsertId()
		e.ID = int(id)
	}

	for i := range jobsClosed {
		e := &jobsClosed[i]
		if _, err := tx.Exec(`UPDATE job_history SET end_date=? WHERE id=?`, e.EndDate, e.ID); err != nil {
			return err
		}
	}

	for i := range educationAdded {
		e := &educationAdded[i]
		result, err := tx.Exec(`INSERT INTO education_history (alumni_id, institution, degree, field_of_study, start_year, end_year, grade, activities)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			record.ID, e.Institution, e.Degree, e.FieldOfStudy, e.StartYear, e.EndYear, e.Grade, e.Activities)
		if err != nil {
			return err
		}
		id, _ := result.LastInsertId()
		e.ID = int(id)
	}

	return tx.Commit()
}

// SetDocumentURL records the archived snapshot reference after a successful
// upload. Kept outside SaveMerge because archival is best-effort.
func (s *Store) SetDocumentURL(alumniID int, url string) error {
	_, err := s.db.Exec(`UPDATE alumni SET document_url=?, updated_at=? WHERE id=?`, url, time.Now(), alumniID)
	return err
}

// Scrape log operations

// AppendScrapeLog writes one audit entry in its own transaction. Logs are
// append-only; there is deliberately no update or delete for this table.
func (s *Store) AppendScrapeLog(entry *models.ScrapeLog) error {
	query := `INSERT INTO scrape_logs (run_id, alumni_id, profile_url, status, error_detail, document_stored, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := s.db.Exec(query, entry.RunID, entry.AlumniID, entry.ProfileURL,
		entry.Status, entry.ErrorDetail, entry.DocumentStored, entry.DurationSeconds)
	if err != nil {
		return err
	}
	id, _ := result.LastInsertId()
	entry.ID = int(id)
	return nil
}

func (s *Store) ListScrapeLogs(limit int) ([]*models.ScrapeLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, run_id, alumni_id, profile_url, status, error_detail, document_stored, duration_seconds, created_at
		FROM scrape_logs ORDER BY id DESC LIMIT ?`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*models.ScrapeLog{}
	for rows.Next() {
		l := &models.ScrapeLog{}
		var alumniID sql.NullInt64
		if err := rows.Scan(&l.ID, &l.RunID, &alumniID, &l.ProfileURL, &l.Status, &l.ErrorDetail, &l.DocumentStored, &l.DurationSeconds, &l.CreatedAt); err != nil {
			return nil, err
		}
		if alumniID.Valid {
			l.AlumniID = int(alumniID.Int64)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Store) ListScrapeLogsByRun(runID string) ([]*models.ScrapeLog, error) {
	query := `SELECT id, run_id, alumni_id, profile_url, status, error_detail, document_stored, duration_seconds, created_at
		FROM scrape_logs WHERE run_id=? ORDER BY id ASC`
	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*models.ScrapeLog{}
	for rows.Next() {
		l := &models.ScrapeLog{}
		var alumniID sql.NullInt64
		if err := rows.Scan(&l.ID, &l.RunID, &alumniID, &l.ProfileURL, &l.Status, &l.ErrorDetail, &l.DocumentStored, &l.DurationSeconds, &l.CreatedAt); err != nil {
			return nil, err
		}
		if alumniID.Valid {
			l.AlumniID = int(alumniID.Int64)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Store) DeleteAlumni(id int) error {
	_, err := s.db.Exec(`DELETE FROM alumni WHERE id=?`, id)
	return err
}
