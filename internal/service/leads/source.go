// Package leads provides the lead sources the engine pulls from when its
// queue runs dry.
package leads

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/acme/predictive-dialer/internal/config"
	"github.com/acme/predictive-dialer/internal/domain"
	"github.com/acme/predictive-dialer/internal/repository"
	apperrors "github.com/acme/predictive-dialer/pkg/errors"
	"github.com/acme/predictive-dialer/pkg/logger"
)

// StaticSource hands out the configured leads once per process.
type StaticSource struct {
	mu     sync.Mutex
	leads  []domain.Lead
	served bool
}

// NewStaticSource builds a source from config entries.
func NewStaticSource(entries []config.StaticLead) *StaticSource {
	leads := make([]domain.Lead, 0, len(entries))
	for _, e := range entries {
		leads = append(leads, domain.Lead{
			ID:          e.ID,
			Phone:       e.Phone,
			DisplayName: e.DisplayName,
			Link:        e.Link,
			Status:      domain.LeadStatusPending,
		})
	}
	return &StaticSource{leads: leads}
}

// FetchLeads returns the configured leads on the first call and nothing
// afterwards.
func (s *StaticSource) FetchLeads(context.Context) ([]domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.served {
		return nil, nil
	}
	s.served = true
	out := make([]domain.Lead, len(s.leads))
	for i, l := range s.leads {
		out[i] = l.Clone()
	}
	return out, nil
}

// PostgresSource claims dialable leads from the lead store.
type PostgresSource struct {
	repo   repository.LeadRepository
	batch  int
	logger *logger.Logger
}

// NewPostgresSource constructs the source.
func NewPostgresSource(repo repository.LeadRepository, batch int, lg *logger.Logger) *PostgresSource {
	if batch <= 0 {
		batch = 50
	}
	return &PostgresSource{repo: repo, batch: batch, logger: lg.Named("lead_source")}
}

// FetchLeads claims the next batch.
func (s *PostgresSource) FetchLeads(ctx context.Context) ([]domain.Lead, error) {
	records, err := s.repo.ClaimDialable(ctx, s.batch)
	if err != nil {
		return nil, err
	}
	leads := make([]domain.Lead, 0, len(records))
	for _, rec := range records {
		leads = append(leads, rec.ToLead())
	}
	s.logger.Debug("claimed leads", zap.Int("count", len(leads)))
	return leads, nil
}

// ImportInput is one lead to add to the lead store.
type ImportInput struct {
	ID          string
	Phone       string
	DisplayName string
	Link        string
	Priority    int
	Payload     map[string]any
}

// Store exposes lead store maintenance to the API.
type Store struct {
	repo repository.LeadRepository
}

// NewStore constructs the service.
func NewStore(repo repository.LeadRepository) *Store {
	return &Store{repo: repo}
}

// Stats counts stored leads per state.
func (s *Store) Stats(ctx context.Context) (repository.LeadStats, error) {
	return s.repo.CountByState(ctx)
}

// Import validates and upserts leads. It returns the number written.
func (s *Store) Import(ctx context.Context, inputs []ImportInput) (int, error) {
	if len(inputs) == 0 {
		return 0, fmt.Errorf("%w: leads: at least one lead is required", apperrors.ErrValidation)
	}
	seen := make(map[string]struct{}, len(inputs))
	records := make([]repository.LeadRecord, 0, len(inputs))
	for idx, in := range inputs {
		id := strings.TrimSpace(in.ID)
		phone := strings.TrimSpace(in.Phone)
		if id == "" || phone == "" {
			return 0, fmt.Errorf("%w: leads: entry %d needs id and phone", apperrors.ErrValidation, idx)
		}
		if _, dup := seen[id]; dup {
			return 0, fmt.Errorf("%w: leads: duplicate id %q", apperrors.ErrValidation, id)
		}
		seen[id] = struct{}{}
		records = append(records, repository.LeadRecord{
			ID:          id,
			Phone:       phone,
			DisplayName: in.DisplayName,
			Link:        in.Link,
			Priority:    in.Priority,
			Payload:     in.Payload,
		})
	}
	if err := s.repo.Upsert(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}
