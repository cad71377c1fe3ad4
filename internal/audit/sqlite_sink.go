package audit

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go driver, no cgo
)

// SQLiteSink persists audit records to a local SQLite database, for
// deployments that want durable audit history without standing up
// Postgres.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) the audit database at path.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	if path == "" {
		path = "audit.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open sqlite: %w", err)
	}
	s := &SQLiteSink{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_records (
			request_id TEXT PRIMARY KEY,
			user_id TEXT,
			model TEXT,
			prompt_masked TEXT,
			response_masked TEXT,
			cache_hit INTEGER,
			prompt_tokens INTEGER,
			response_tokens INTEGER,
			compression_used TEXT,
			tool_dispatched TEXT,
			timestamp DATETIME
		)
	`)
	if err != nil {
		return fmt.Errorf("audit: create table: %w", err)
	}
	return nil
}

func (s *SQLiteSink) Write(r Record) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO audit_records
		(request_id, user_id, model, prompt_masked, response_masked, cache_hit, prompt_tokens, response_tokens, compression_used, tool_dispatched, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RequestID, r.UserID, r.Model, r.PromptMasked, r.ResponseMasked, r.CacheHit, r.PromptTokens, r.ResponseTokens, r.CompressionUsed, r.ToolDispatched, r.Timestamp)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
