package leads

import (
	"context"
	"errors"
	"testing"

	"github.com/acme/predictive-dialer/internal/config"
	"github.com/acme/predictive-dialer/internal/domain"
	"github.com/acme/predictive-dialer/internal/repository"
	apperrors "github.com/acme/predictive-dialer/pkg/errors"
	"github.com/acme/predictive-dialer/pkg/logger"
)

type fakeRepo struct {
	claimLimit int
	claimed    []repository.LeadRecord
	upserted   []repository.LeadRecord
	err        error
}

func (f *fakeRepo) Upsert(_ context.Context, leads []repository.LeadRecord) error {
	f.upserted = append(f.upserted, leads...)
	return f.err
}

func (f *fakeRepo) ClaimDialable(_ context.Context, limit int) ([]repository.LeadRecord, error) {
	f.claimLimit = limit
	return f.claimed, f.err
}

func (f *fakeRepo) RecordOutcome(context.Context, repository.LeadOutcome) error { return f.err }

func (f *fakeRepo) Get(context.Context, string) (*repository.LeadRecord, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) CountByState(context.Context) (repository.LeadStats, error) {
	return repository.LeadStats{ByState: map[string]int{"new": 2, "completed": 1}, Total: 3}, f.err
}

func TestStaticSourceServesOnce(t *testing.T) {
	src := NewStaticSource([]config.StaticLead{{ID: "1", Phone: "+77011112233"}, {ID: "2", Phone: "87012223344"}})

	first, err := src.FetchLeads(context.Background())
	if err != nil || len(first) != 2 {
		t.Fatalf("expected 2 leads, got %d (%v)", len(first), err)
	}
	if first[0].Status != domain.LeadStatusPending {
		t.Fatalf("expected pending lead, got %s", first[0].Status)
	}

	second, err := src.FetchLeads(context.Background())
	if err != nil || len(second) != 0 {
		t.Fatalf("expected no leads on second fetch, got %d (%v)", len(second), err)
	}
}

func TestPostgresSourceMapsRecords(t *testing.T) {
	repo := &fakeRepo{claimed: []repository.LeadRecord{{ID: "7", Phone: "+77015556677", Attempts: 1, State: "pending"}}}
	src := NewPostgresSource(repo, 0, logger.NewNop())

	leads, err := src.FetchLeads(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if repo.claimLimit != 50 {
		t.Fatalf("expected default batch 50, got %d", repo.claimLimit)
	}
	if len(leads) != 1 || leads[0].ID != "7" || leads[0].Status != domain.LeadStatusPending || leads[0].Attempts != 1 {
		t.Fatalf("unexpected leads %+v", leads)
	}
}

func TestStoreImportValidates(t *testing.T) {
	repo := &fakeRepo{}
	imp := NewStore(repo)

	if _, err := imp.Import(context.Background(), nil); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error for empty input, got %v", err)
	}
	if _, err := imp.Import(context.Background(), []ImportInput{{ID: "1"}}); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error for missing phone, got %v", err)
	}
	dup := []ImportInput{{ID: "1", Phone: "1"}, {ID: "1", Phone: "2"}}
	if _, err := imp.Import(context.Background(), dup); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error for duplicate id, got %v", err)
	}

	n, err := imp.Import(context.Background(), []ImportInput{{ID: " 9 ", Phone: "+77010000000", Priority: 3}})
	if err != nil || n != 1 {
		t.Fatalf("import: n=%d err=%v", n, err)
	}
	if repo.upserted[0].ID != "9" || repo.upserted[0].Priority != 3 {
		t.Fatalf("unexpected record %+v", repo.upserted[0])
	}

	stats, err := imp.Stats(context.Background())
	if err != nil || stats.Total != 3 || stats.ByState["new"] != 2 {
		t.Fatalf("stats: %+v %v", stats, err)
	}
}
