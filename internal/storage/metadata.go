package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ExportRecord is one row of the export history
type ExportRecord struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	SourceFile   string    `json:"source_file"`
	Format       string    `json:"format"`
	Filename     string    `json:"filename"`
	Bytes        int       `json:"bytes"`
	Duration     float64   `json:"duration"`
	WordCount    int       `json:"word_count"`
	SpeakerCount int       `json:"speaker_count"`
	Locations    []Stored  `json:"locations"`
	CreatedAt    time.Time `json:"created_at"`
}

// MetadataDB handles SQLite database operations
type MetadataDB struct {
	db *sql.DB
}

// NewMetadataDB opens the history database and creates its schema
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS exports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		source_file TEXT NOT NULL,
		format TEXT NOT NULL,
		filename TEXT NOT NULL,
		bytes INTEGER NOT NULL,
		duration REAL,
		word_count INTEGER,
		speaker_count INTEGER,
		locations TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_exports_created_at ON exports(created_at);
	CREATE INDEX IF NOT EXISTS idx_exports_session ON exports(session_id);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MetadataDB{db: db}, nil
}

// SaveExport records an export and sets rec.ID
func (mdb *MetadataDB) SaveExport(ctx context.Context, rec *ExportRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	locations, err := json.Marshal(rec.Locations)
	if err != nil {
		return fmt.Errorf("encode locations: %w", err)
	}

	query := `
	INSERT INTO exports (session_id, source_file, format, filename, bytes, duration, word_count, speaker_count, locations, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := mdb.db.ExecContext(ctx, query,
		rec.SessionID, rec.SourceFile, rec.Format, rec.Filename, rec.Bytes,
		rec.Duration, rec.WordCount, rec.SpeakerCount, string(locations), rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save export record: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

const selectExports = `
	SELECT id, session_id, source_file, format, filename, bytes, duration, word_count, speaker_count, locations, created_at
	FROM exports`

// ListExports returns the most recent exports, newest first
func (mdb *MetadataDB) ListExports(ctx context.Context, limit int) ([]ExportRecord, error) {
	rows, err := mdb.db.QueryContext(ctx, selectExports+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	defer rows.Close()
	return scanExports(rows)
}

// ListSessionExports returns every export of one session, oldest first
func (mdb *MetadataDB) ListSessionExports(ctx context.Context, sessionID string) ([]ExportRecord, error) {
	rows, err := mdb.db.QueryContext(ctx, selectExports+` WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list session exports: %w", err)
	}
	defer rows.Close()
	return scanExports(rows)
}

func scanExports(rows *sql.Rows) ([]ExportRecord, error) {
	records := make([]ExportRecord, 0)
	for rows.Next() {
		var (
			rec       ExportRecord
			duration  sql.NullFloat64
			words     sql.NullInt64
			speakers  sql.NullInt64
			locations sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.SourceFile, &rec.Format, &rec.Filename,
			&rec.Bytes, &duration, &words, &speakers, &locations, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan export record: %w", err)
		}
		rec.Duration = duration.Float64
		rec.WordCount = int(words.Int64)
		rec.SpeakerCount = int(speakers.Int64)
		if locations.Valid && locations.String != "" {
			if err := json.Unmarshal([]byte(locations.String), &rec.Locations); err != nil {
				return nil, fmt.Errorf("decode locations: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}
