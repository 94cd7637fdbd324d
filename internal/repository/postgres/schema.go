package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		phone TEXT NOT NULL,
		display_name TEXT,
		link TEXT,
		payload JSONB,
		state TEXT NOT NULL DEFAULT 'new',
		priority INT NOT NULL DEFAULT 0,
		attempts INT NOT NULL DEFAULT 0,
		last_error TEXT,
		call_result TEXT,
		comment TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS leads_dialable_idx ON leads (state, priority DESC, created_at)`,
	`CREATE TABLE IF NOT EXISTS lead_outcomes (
		id UUID PRIMARY KEY,
		lead_id TEXT NOT NULL REFERENCES leads (id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		attempts INT NOT NULL,
		error TEXT,
		call_result TEXT,
		comment TEXT,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS lead_outcomes_lead_idx ON lead_outcomes (lead_id, occurred_at DESC)`,
}

// EnsureSchema creates the lead tables when missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	return withTx(ctx, db, nil, func(tx *sqlx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("postgres: ensure schema: %w", err)
			}
		}
		return nil
	})
}
