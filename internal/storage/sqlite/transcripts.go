// Package sqlite persists transcript history. History is a convenience
// record of completed jobs; writes that fail are logged and never fail the
// transcription response.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/clipscribe/clipscribe/internal/transcription"
	"github.com/clipscribe/clipscribe/pkg/logger"
)

// TranscriptRecord represents a stored transcription result
type TranscriptRecord struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	Mode         string    `json:"mode"` // "standard" or "visual"
	FileName     string    `json:"file_name"`
	Language     string    `json:"language,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Transcript   string    `json:"transcript,omitempty"`
	SegmentCount int       `json:"segment_count"`
	SegmentsJSON string    `json:"-"`
}

// Segments decodes the stored segment list. Standard records hold
// transcription.TranscriptSegment elements, visual records hold
// transcription.VisualSegment elements.
func (r *TranscriptRecord) Segments(v any) error {
	if r.SegmentsJSON == "" {
		return nil
	}
	return json.Unmarshal([]byte(r.SegmentsJSON), v)
}

// TranscriptStorage handles storage of transcript records
type TranscriptStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// Open opens the SQLite database at the given path
func Open(dbPath string, log *logger.Logger) (*sql.DB, error) {
	log.Named("sqlite").Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)

	return db, nil
}

// NewTranscriptStorage creates a new SQLite transcript storage
func NewTranscriptStorage(db *sql.DB, log *logger.Logger) (*TranscriptStorage, error) {
	storage := &TranscriptStorage{
		db:     db,
		logger: log.Named("sqlite-tx"),
	}
	if err := storage.initDB(); err != nil {
		return nil, err
	}
	return storage, nil
}

// initDB initializes the database tables
func (s *TranscriptStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcripts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			file_name TEXT,
			language TEXT,
			created_at TIMESTAMP NOT NULL,
			transcript TEXT,
			segment_count INTEGER NOT NULL,
			segments TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create transcripts table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_transcripts_session_id ON transcripts(session_id)`)
	if err != nil {
		return fmt.Errorf("failed to create session_id index: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_transcripts_created_at ON transcripts(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create created_at index: %w", err)
	}

	return nil
}

// StoreStandard stores a completed standard transcription
func (s *TranscriptStorage) StoreStandard(sessionID, fileName string, result *transcription.Result) (int64, error) {
	segments, err := json.Marshal(result.Segments)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal segments: %w", err)
	}
	return s.store(&TranscriptRecord{
		SessionID:    sessionID,
		Mode:         "standard",
		FileName:     fileName,
		Language:     result.Language,
		CreatedAt:    time.Now().UTC(),
		Transcript:   result.Transcript,
		SegmentCount: len(result.Segments),
		SegmentsJSON: string(segments),
	})
}

// StoreVisual stores a completed visual transcription
func (s *TranscriptStorage) StoreVisual(sessionID, fileName string, result *transcription.VisualResult) (int64, error) {
	segments, err := json.Marshal(result.Segments)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal segments: %w", err)
	}
	return s.store(&TranscriptRecord{
		SessionID:    sessionID,
		Mode:         "visual",
		FileName:     fileName,
		CreatedAt:    time.Now().UTC(),
		SegmentCount: len(result.Segments),
		SegmentsJSON: string(segments),
	})
}

func (s *TranscriptStorage) store(record *TranscriptRecord) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO transcripts
		(session_id, mode, file_name, language, created_at, transcript, segment_count, segments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.SessionID,
		record.Mode,
		record.FileName,
		record.Language,
		record.CreatedAt.Format(time.RFC3339),
		record.Transcript,
		record.SegmentCount,
		record.SegmentsJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transcript: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// GetTranscripts returns transcript records with pagination, newest first
func (s *TranscriptStorage) GetTranscripts(limit, offset int) ([]*TranscriptRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, mode, file_name, language, created_at, transcript, segment_count, segments
		FROM transcripts
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}
	defer rows.Close()

	var records []*TranscriptRecord
	for rows.Next() {
		record, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transcripts: %w", err)
	}
	return records, nil
}

// GetTranscript returns a single transcript record by ID
func (s *TranscriptStorage) GetTranscript(id int64) (*TranscriptRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, mode, file_name, language, created_at, transcript, segment_count, segments
		FROM transcripts
		WHERE id = ?`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}
	return scanTranscript(rows)
}

func scanTranscript(rows *sql.Rows) (*TranscriptRecord, error) {
	var record TranscriptRecord
	var createdAt string
	var fileName, language, transcript, segments sql.NullString

	if err := rows.Scan(
		&record.ID,
		&record.SessionID,
		&record.Mode,
		&fileName,
		&language,
		&createdAt,
		&transcript,
		&record.SegmentCount,
		&segments,
	); err != nil {
		return nil, fmt.Errorf("failed to scan transcript: %w", err)
	}

	record.FileName = fileName.String
	record.Language = language.String
	record.Transcript = transcript.String
	record.SegmentsJSON = segments.String

	parsed, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	record.CreatedAt = parsed

	return &record, nil
}
