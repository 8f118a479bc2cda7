package sink

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	vespadet "github.com/swdee/go-vespadet"
	"github.com/swdee/go-vespadet/postprocess/result"
	_ "modernc.org/sqlite"
)

// SQLiteSink stores artifacts as blobs and detections as rows of a SQLite
// database
type SQLiteSink struct {
	db    *sql.DB
	path  string
	runID string
}

// NewSQLiteSink opens or creates the database at dbPath and runs the
// migrations.  Use ":memory:" for a transient database.
func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {

	db, err := sql.Open("sqlite", dbPath)

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// a single connection serialises writers and keeps :memory: databases
	// shared
	db.SetMaxOpenConns(1)

	s := &SQLiteSink{
		db:    db,
		path:  dbPath,
		runID: uuid.NewString(),
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if _, err := db.Exec(`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		s.runID, time.Now().UTC()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	return s, nil
}

func (s *SQLiteSink) runMigrations() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS artifacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			name TEXT NOT NULL,
			size INTEGER NOT NULL,
			data BLOB NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(run_id, name) ON CONFLICT REPLACE
		)`,

		`CREATE TABLE IF NOT EXISTS detections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			seq INTEGER NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			detection_id INTEGER NOT NULL,
			class INTEGER NOT NULL,
			label TEXT NOT NULL,
			score REAL NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			w REAL NOT NULL,
			h REAL NOT NULL,
			cell INTEGER NOT NULL,
			captured_at DATETIME
		)`,

		`CREATE INDEX IF NOT EXISTS idx_detections_run_seq ON detections(run_id, seq)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}

// RunID returns the identifier artifacts of this sink are stored under
func (s *SQLiteSink) RunID() string {
	return s.runID
}

// DB returns the underlying database connection
func (s *SQLiteSink) DB() *sql.DB {
	return s.db
}

// WriteArtifact stores data under name id, replacing an earlier artifact of
// the same name in this run
func (s *SQLiteSink) WriteArtifact(id string, data []byte) error {

	_, err := s.db.Exec(`INSERT INTO artifacts (run_id, name, size, data) VALUES (?, ?, ?, ?)`,
		s.runID, id, len(data), data)

	if err != nil {
		return fmt.Errorf("error storing artifact %s: %w", id, err)
	}

	return nil
}

// Artifact returns the data stored under name id in this run
func (s *SQLiteSink) Artifact(id string) ([]byte, error) {

	var data []byte

	err := s.db.QueryRow(`SELECT data FROM artifacts WHERE run_id = ? AND name = ?`,
		s.runID, id).Scan(&data)

	if err != nil {
		return nil, fmt.Errorf("error reading artifact %s: %w", id, err)
	}

	return data, nil
}

// RecordDetections inserts one row per detection in a single transaction.
// Rows are keyed by meta.RunID, or the sinks own run id when empty.  A run
// id not seen before is added to the runs table.
func (s *SQLiteSink) RecordDetections(meta FrameMeta, dets []result.DetectResult, labels []string) error {

	runID := meta.RunID

	if runID == "" {
		runID = s.runID
	}

	tx, err := s.db.Begin()

	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec(`INSERT OR IGNORE INTO runs (id, started_at) VALUES (?, ?)`,
		runID, time.Now().UTC()); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO detections
		(run_id, seq, source, detection_id, class, label, score, x, y, w, h, cell, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}

	defer stmt.Close()

	for _, d := range dets {
		_, err := stmt.Exec(runID, meta.Seq, meta.Source, d.ID, d.Class,
			vespadet.Label(labels, d.Class), d.Probability,
			d.Box.X, d.Box.Y, d.Box.W, d.Box.H, d.Cell, meta.Captured.UTC())

		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert detection %d: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

// Close closes the database connection
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
