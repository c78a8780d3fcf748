package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite handle and exposes the repository operations the
// sync pipeline and CLI need.
type Store struct {
	db *sql.DB
}

// Open creates the database file if needed, applies pragmas and runs
// migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RunMigrations creates all necessary tables
func RunMigrations(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS alumni (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		roll_number TEXT UNIQUE,
		batch TEXT,
		name TEXT NOT NULL,
		gender TEXT,
		college_email TEXT,
		personal_email TEXT,
		corporate_email TEXT,
		whatsapp_number TEXT,
		mobile_number TEXT,
		profile_id TEXT UNIQUE,
		profile_url TEXT,
		current_company TEXT,
		current_title TEXT,
		location TEXT,
		document_url TEXT,
		remarks TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_synced_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS job_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		alumni_id INTEGER NOT NULL,
		company TEXT NOT NULL,
		title TEXT,
		location TEXT,
		start_date DATETIME,
		end_date DATETIME,
		employment_type TEXT,
		FOREIGN KEY (alumni_id) REFERENCES alumni(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS education_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		alumni_id INTEGER NOT NULL,
		institution TEXT NOT NULL,
		degree TEXT,
		field_of_study TEXT,
		start_year INTEGER,
		end_year INTEGER,
		grade TEXT,
		activities TEXT,
		FOREIGN KEY (alumni_id) REFERENCES alumni(id) ON DELETE CASCADE
	);

	-- Weak reference to alumni by id: logs must survive record deletion,
	-- so no foreign key here. Append-only; no UPDATE/DELETE paths exist.
	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		alumni_id INTEGER,
		profile_url TEXT,
		status TEXT NOT NULL,
		error_detail TEXT,
		document_stored BOOLEAN DEFAULT 0,
		duration_seconds INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		CHECK(status IN ('success', 'partial', 'failed', 'skipped', 'aborted'))
	);

	CREATE INDEX IF NOT EXISTS idx_alumni_batch ON alumni(batch);
	CREATE INDEX IF NOT EXISTS idx_alumni_last_synced ON alumni(last_synced_at);
	CREATE INDEX IF NOT EXISTS idx_job_history_alumni ON job_history(alumni_id);
	CREATE INDEX IF NOT EXISTS idx_education_history_alumni ON education_history(alumni_id);
	CREATE INDEX IF NOT EXISTS idx_scrape_logs_run ON scrape_logs(run_id);
	CREATE INDEX IF NOT EXISTS idx_scrape_logs_alumni ON scrape_logs(alumni_id);
	`

	_, err := db.Exec(schema)
	return err
}
