package audit

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresSink persists audit records to a shared Postgres instance, for
// multi-replica gateway deployments where a local SQLite file per
// instance would fragment the audit trail.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink opens a connection pool against connStr (a standard
// libpq connection string).
func NewPostgresSink(connStr string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("audit: open postgres: %w", err)
	}
	s := &PostgresSink{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSink) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_records (
			request_id TEXT PRIMARY KEY,
			user_id TEXT,
			model TEXT,
			prompt_masked TEXT,
			response_masked TEXT,
			cache_hit BOOLEAN,
			prompt_tokens INTEGER,
			response_tokens INTEGER,
			compression_used TEXT,
			tool_dispatched TEXT,
			timestamp TIMESTAMPTZ
		)
	`)
	if err != nil {
		return fmt.Errorf("audit: create table: %w", err)
	}
	return nil
}

func (s *PostgresSink) Write(r Record) error {
	_, err := s.db.Exec(`
		INSERT INTO audit_records
		(request_id, user_id, model, prompt_masked, response_masked, cache_hit, prompt_tokens, response_tokens, compression_used, tool_dispatched, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (request_id) DO NOTHING
	`, r.RequestID, r.UserID, r.Model, r.PromptMasked, r.ResponseMasked, r.CacheHit, r.PromptTokens, r.ResponseTokens, r.CompressionUsed, r.ToolDispatched, r.Timestamp)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
