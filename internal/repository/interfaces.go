package repository

import (
	"context"
	"time"

	"github.com/acme/predictive-dialer/internal/domain"
	apperrors "github.com/acme/predictive-dialer/pkg/errors"
)

var (
	// ErrNotFound indicates the entity was not located.
	ErrNotFound = apperrors.ErrNotFound
	// ErrConflict indicates a unique constraint violation.
	ErrConflict = apperrors.ErrConflict
)

// Persistent lead states. "new" and "pending" are dialable; "queued" means
// handed to an engine.
const (
	LeadStateNew    = "new"
	LeadStateQueued = "queued"
)

// LeadRecord is a lead row as stored.
type LeadRecord struct {
	ID          string
	Phone       string
	DisplayName string
	Link        string
	Payload     map[string]any
	State       string
	Priority    int
	Attempts    int
	LastError   string
	CallResult  string
	Comment     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ToLead converts the record into an engine lead.
func (r LeadRecord) ToLead() domain.Lead {
	return domain.Lead{
		ID:          r.ID,
		Phone:       r.Phone,
		DisplayName: r.DisplayName,
		Link:        r.Link,
		Extra:       r.Payload,
		Status:      domain.LeadStatusPending,
		Attempts:    r.Attempts,
		CallResult:  r.CallResult,
		Comment:     r.Comment,
	}
}

// LeadOutcome is one lead status transition observed by the engine.
type LeadOutcome struct {
	LeadID     string
	Status     domain.LeadStatus
	Attempts   int
	Error      string
	CallResult string
	Comment    string
	OccurredAt time.Time
}

// LeadRepository stores leads and their dialing outcomes.
type LeadRepository interface {
	Upsert(ctx context.Context, leads []LeadRecord) error
	ClaimDialable(ctx context.Context, limit int) ([]LeadRecord, error)
	RecordOutcome(ctx context.Context, outcome LeadOutcome) error
	Get(ctx context.Context, id string) (*LeadRecord, error)
	CountByState(ctx context.Context) (LeadStats, error)
}

// LeadStats counts stored leads per persistent state.
type LeadStats struct {
	ByState map[string]int
	Total   int
}

// CallEvent is one entry of a lead's call history.
type CallEvent struct {
	CallID     string
	LeadID     string
	Phone      string
	Event      string
	Status     string
	Error      string
	OccurredAt time.Time
}

// CallLog persists call history.
type CallLog interface {
	Append(ctx context.Context, ev CallEvent) error
	ListByLead(ctx context.Context, leadID string, limit int, pagingState []byte) ([]CallEvent, []byte, error)
}
