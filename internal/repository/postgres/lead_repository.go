package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/predictive-dialer/internal/repository"
)

// LeadRepository persists leads and their outcome history.
type LeadRepository struct {
	db *sqlx.DB
}

// NewLeadRepository constructs the repository.
func NewLeadRepository(db *sqlx.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// Upsert inserts leads or refreshes their contact data. Dialing state of
// existing rows is left alone.
func (r *LeadRepository) Upsert(ctx context.Context, leads []repository.LeadRecord) error {
	if len(leads) == 0 {
		return nil
	}

	query := `INSERT INTO leads (
		id, phone, display_name, link, payload, state, priority, attempts, created_at, updated_at
	) VALUES (:id, :phone, :display_name, :link, :payload, :state, :priority, 0, :created_at, :updated_at)
	ON CONFLICT (id) DO UPDATE SET
		phone = EXCLUDED.phone,
		display_name = EXCLUDED.display_name,
		link = EXCLUDED.link,
		payload = EXCLUDED.payload,
		priority = EXCLUDED.priority,
		updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	rows := make([]map[string]any, 0, len(leads))
	for _, l := range leads {
		payload, err := json.Marshal(l.Payload)
		if err != nil {
			return fmt.Errorf("leads: marshal payload: %w", err)
		}
		state := l.State
		if state == "" {
			state = repository.LeadStateNew
		}
		rows = append(rows, map[string]any{
			"id":           l.ID,
			"phone":        l.Phone,
			"display_name": l.DisplayName,
			"link":         l.Link,
			"payload":      payload,
			"state":        state,
			"priority":     l.Priority,
			"created_at":   now,
			"updated_at":   now,
		})
	}

	return withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		for _, row := range rows {
			if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
				return fmt.Errorf("leads: upsert %v: %w", row["id"], err)
			}
		}
		return nil
	})
}

// ClaimDialable selects the next dialable leads and marks them queued in
// one transaction. Rows locked by another claimer are skipped.
func (r *LeadRepository) ClaimDialable(ctx context.Context, limit int) ([]repository.LeadRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var results []repository.LeadRecord
	err := withTx(ctx, r.db, claimTxOptions, func(tx *sqlx.Tx) error {
		rows, err := tx.QueryxContext(ctx, `SELECT `+leadColumns+`
			FROM leads
			WHERE state IN ('new', 'pending')
			ORDER BY priority DESC, created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED`, limit)
		if err != nil {
			return fmt.Errorf("leads: select dialable: %w", err)
		}
		defer rows.Close()

		ids := make([]string, 0, limit)
		for rows.Next() {
			var rec leadRow
			if err := rows.StructScan(&rec); err != nil {
				return fmt.Errorf("leads: scan: %w", err)
			}
			results = append(results, rec.toModel())
			ids = append(ids, rec.ID)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("leads: rows err: %w", err)
		}
		rows.Close()

		if len(ids) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE leads SET state = $1, updated_at = $2 WHERE id = ANY($3)`,
			repository.LeadStateQueued, time.Now().UTC(), ids); err != nil {
			return fmt.Errorf("leads: mark queued: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// RecordOutcome stores the lead's latest status and appends it to the
// outcome history.
func (r *LeadRepository) RecordOutcome(ctx context.Context, o repository.LeadOutcome) error {
	return withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE leads
			SET state = $1, attempts = $2, last_error = $3, call_result = $4, comment = $5, updated_at = $6
			WHERE id = $7`,
			string(o.Status), o.Attempts, nullString(o.Error), nullString(o.CallResult), nullString(o.Comment), o.OccurredAt, o.LeadID)
		if err != nil {
			return fmt.Errorf("leads: update outcome: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("leads: %s: %w", o.LeadID, repository.ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO lead_outcomes (id, lead_id, status, attempts, error, call_result, comment, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New(), o.LeadID, string(o.Status), o.Attempts, nullString(o.Error), nullString(o.CallResult), nullString(o.Comment), o.OccurredAt,
		); err != nil {
			return fmt.Errorf("leads: insert outcome: %w", err)
		}
		return nil
	})
}

// Get loads one lead.
func (r *LeadRepository) Get(ctx context.Context, id string) (*repository.LeadRecord, error) {
	var rec leadRow
	err := r.db.GetContext(ctx, &rec, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("leads: %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("leads: get: %w", err)
	}
	model := rec.toModel()
	return &model, nil
}

// CountByState aggregates the lead table by state.
func (r *LeadRepository) CountByState(ctx context.Context) (repository.LeadStats, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT state, COUNT(*) AS total FROM leads GROUP BY state`)
	if err != nil {
		return repository.LeadStats{}, fmt.Errorf("leads: count by state: %w", err)
	}
	defer rows.Close()

	stats := repository.LeadStats{ByState: make(map[string]int)}
	for rows.Next() {
		var row struct {
			State string `db:"state"`
			Total int    `db:"total"`
		}
		if err := rows.StructScan(&row); err != nil {
			return repository.LeadStats{}, fmt.Errorf("leads: scan stats: %w", err)
		}
		stats.ByState[row.State] = row.Total
		stats.Total += row.Total
	}
	if err := rows.Err(); err != nil {
		return repository.LeadStats{}, fmt.Errorf("leads: stats rows: %w", err)
	}
	return stats, nil
}

const leadColumns = `id, phone, display_name, link, payload, state, priority, attempts, last_error, call_result, comment, created_at, updated_at`

type leadRow struct {
	ID          string         `db:"id"`
	Phone       string         `db:"phone"`
	DisplayName sql.NullString `db:"display_name"`
	Link        sql.NullString `db:"link"`
	Payload     []byte         `db:"payload"`
	State       string         `db:"state"`
	Priority    int            `db:"priority"`
	Attempts    int            `db:"attempts"`
	LastError   sql.NullString `db:"last_error"`
	CallResult  sql.NullString `db:"call_result"`
	Comment     sql.NullString `db:"comment"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r leadRow) toModel() repository.LeadRecord {
	var payload map[string]any
	if len(r.Payload) > 0 {
		_ = json.Unmarshal(r.Payload, &payload)
	}
	return repository.LeadRecord{
		ID:          r.ID,
		Phone:       r.Phone,
		DisplayName: r.DisplayName.String,
		Link:        r.Link.String,
		Payload:     payload,
		State:       r.State,
		Priority:    r.Priority,
		Attempts:    r.Attempts,
		LastError:   r.LastError.String,
		CallResult:  r.CallResult.String,
		Comment:     r.Comment.String,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
