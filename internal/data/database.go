package data

import (
	"database/sql"
	"fmt"
	"time"

	"eeg-monitor/internal/models"

	_ "modernc.org/sqlite"
)

// sqliteMemoryDSN keeps the database inside the process; nothing reaches disk
const sqliteMemoryDSN = ":memory:"

// SQLiteLog SessionLog backed by an in-memory SQLite database
type SQLiteLog struct {
	db *sql.DB
}

// NewSQLiteLog opens the in-memory database and creates its tables
func NewSQLiteLog() (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", sqliteMemoryDSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Every connection to :memory: is a separate database, so pin the pool to one
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	l := &SQLiteLog{db: db}
	if err := l.initTables(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *SQLiteLog) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS session_records (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			created_at INTEGER NOT NULL,
			emotion TEXT NOT NULL,
			confidence REAL NOT NULL,
			display_time TEXT NOT NULL,
			sample_time TEXT NOT NULL,
			captured_at INTEGER NOT NULL,
			alpha REAL NOT NULL,
			beta REAL NOT NULL,
			theta REAL NOT NULL,
			delta REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_created ON session_records(created_at)`,
	}

	for _, query := range queries {
		if _, err := l.db.Exec(query); err != nil {
			return fmt.Errorf("init session tables: %w", err)
		}
	}
	return nil
}

// Append stores one record
func (l *SQLiteLog) Append(record models.SessionRecord) error {
	query := `INSERT INTO session_records
		(id, created_at, emotion, confidence, display_time, sample_time, captured_at, alpha, beta, theta, delta)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := l.db.Exec(query,
		record.ID,
		record.CreatedAt.UnixNano(),
		string(record.Emotion),
		record.Confidence,
		record.Time,
		record.EEGData.Timestamp,
		record.EEGData.CapturedAt.UnixNano(),
		record.EEGData.Alpha,
		record.EEGData.Beta,
		record.EEGData.Theta,
		record.EEGData.Delta,
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", record.ID, err)
	}
	return nil
}

// All returns every record, oldest first
func (l *SQLiteLog) All() ([]models.SessionRecord, error) {
	return l.query("")
}

// Since returns the records created at or after cutoff
func (l *SQLiteLog) Since(cutoff time.Time) ([]models.SessionRecord, error) {
	return l.query(" WHERE created_at >= ?", cutoff.UnixNano())
}

func (l *SQLiteLog) query(where string, args ...interface{}) ([]models.SessionRecord, error) {
	query := `SELECT id, created_at, emotion, confidence, display_time, sample_time, captured_at,
		alpha, beta, theta, delta FROM session_records` + where + ` ORDER BY seq ASC`

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var records []models.SessionRecord
	for rows.Next() {
		var (
			record     models.SessionRecord
			createdAt  int64
			capturedAt int64
			emotion    string
		)

		err = rows.Scan(
			&record.ID,
			&createdAt,
			&emotion,
			&record.Confidence,
			&record.Time,
			&record.EEGData.Timestamp,
			&capturedAt,
			&record.EEGData.Alpha,
			&record.EEGData.Beta,
			&record.EEGData.Theta,
			&record.EEGData.Delta,
		)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}

		record.Emotion = models.Emotion(emotion)
		record.CreatedAt = time.Unix(0, createdAt)
		record.EEGData.CapturedAt = time.Unix(0, capturedAt)
		records = append(records, record)
	}

	return records, rows.Err()
}

// Len returns the number of stored records, 0 if the count fails
func (l *SQLiteLog) Len() int {
	var count int
	if err := l.db.QueryRow("SELECT COUNT(*) FROM session_records").Scan(&count); err != nil {
		return 0
	}
	return count
}

// Clear removes every record
func (l *SQLiteLog) Clear() error {
	if _, err := l.db.Exec("DELETE FROM session_records"); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	return nil
}

// Close releases the database; its contents are lost
func (l *SQLiteLog) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}
