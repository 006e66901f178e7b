// Package history keeps a SQLite log of completed translations.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/dasmlab/gemmagate/pkg/service"
)

// DefaultLimit is used by Recent when limit is not positive.
const DefaultLimit = 50

// MaxLimit caps the number of entries Recent returns.
const MaxLimit = 500

// Entry is one recorded translation.
type Entry struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Translation string    `json:"translation"`
	SourceLang  string    `json:"source_lang"`
	TargetLang  string    `json:"target_lang"`
	Backend     string    `json:"backend"`
	Mode        string    `json:"mode"`
	LatencyMs   int64     `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists translations. It implements service.Recorder.
type Store struct {
	db *sql.DB
}

// New opens (and creates if needed) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Serialize writers; sqlite allows one at a time.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS translations (
		id TEXT PRIMARY KEY,
		result_id TEXT NOT NULL,
		source_text TEXT NOT NULL,
		translation TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		backend TEXT,
		mode TEXT,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_translations_created ON translations(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores a completed translation. The source text is NFC-normalized.
func (s *Store) Record(ctx context.Context, r *service.Result) error {
	return s.Save(ctx, Entry{
		ID:          r.ID,
		Text:        r.Text,
		Translation: r.Translation,
		SourceLang:  r.Source,
		TargetLang:  r.Target,
		Backend:     r.Backend,
		Mode:        r.Mode,
		LatencyMs:   r.Duration.Milliseconds(),
		CreatedAt:   r.CompletedAt,
	})
}

// Save stores e. A missing ID or timestamp is filled in.
func (s *Store) Save(ctx context.Context, e Entry) error {
	resultID := e.ID
	if resultID == "" {
		resultID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO translations (id, result_id, source_text, translation, source_lang, target_lang, backend, mode, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), resultID, normalizeText(e.Text), e.Translation, e.SourceLang, e.TargetLang,
		e.Backend, e.Mode, e.LatencyMs, e.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("save translation: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT result_id, source_text, translation, source_lang, target_lang, backend, mode, latency_ms, created_at
		 FROM translations ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e       Entry
			backend sql.NullString
			mode    sql.NullString
			latency sql.NullInt64
			created int64
		)
		if err := rows.Scan(&e.ID, &e.Text, &e.Translation, &e.SourceLang, &e.TargetLang, &backend, &mode, &latency, &created); err != nil {
			return nil, err
		}
		e.Backend = backend.String
		e.Mode = mode.String
		e.LatencyMs = latency.Int64
		e.CreatedAt = time.Unix(0, created).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of recorded translations.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM translations`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
