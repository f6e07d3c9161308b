package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	sqlStore
	dbPath string
}

// NewSQLiteStore creates a new SQLite assessment store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent runs.
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		sqlStore: sqlStore{db: db, dialect: dialectSQLite, log: logger},
		dbPath:   dbPath,
	}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		questionnaire_id TEXT NOT NULL DEFAULT '',
		submitted_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		question_type TEXT NOT NULL,
		text TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		submission_id TEXT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
		question_id TEXT NOT NULL REFERENCES questions(id),
		value TEXT NOT NULL,
		answered_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS naq_section_scores (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		submission_id TEXT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
		client_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		section_name TEXT NOT NULL,
		category TEXT NOT NULL,
		total_score INTEGER NOT NULL,
		max_possible_score INTEGER NOT NULL,
		question_count INTEGER NOT NULL,
		symptom_burden REAL NOT NULL,
		priority_level TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS nutrient_risk_results (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		submission_id TEXT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
		client_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		nutrient_code TEXT NOT NULL,
		nutrient_name TEXT NOT NULL,
		intake_score_pct REAL NOT NULL,
		symptom_score_pct REAL NOT NULL,
		risk_score_pct REAL NOT NULL,
		final_weighted_score_pct REAL NOT NULL,
		risk_category TEXT NOT NULL,
		contributing_factors TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_answers_submission ON answers(submission_id, id);
	CREATE INDEX IF NOT EXISTS idx_naq_scores_submission ON naq_section_scores(submission_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_nutrient_results_submission ON nutrient_risk_results(submission_id, created_at);
	`

	_, err := db.Exec(schema)
	return err
}
