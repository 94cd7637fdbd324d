// Package history serves a lead's call history from the call log.
package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/acme/predictive-dialer/internal/repository"
	"github.com/acme/predictive-dialer/internal/service/common"
	apperrors "github.com/acme/predictive-dialer/pkg/errors"
)

const maxPageSize = 500

// Page is one page of call events plus the token for the next one.
type Page struct {
	Events    []repository.CallEvent
	NextToken string
}

// Service reads call history.
type Service struct {
	log repository.CallLog
}

// NewService constructs the service.
func NewService(log repository.CallLog) *Service {
	return &Service{log: log}
}

// ListByLead returns one page of history. token is the opaque NextToken of a
// previous page.
func (s *Service) ListByLead(ctx context.Context, leadID string, limit int, token string) (Page, error) {
	if strings.TrimSpace(leadID) == "" {
		return Page{}, fmt.Errorf("%w: history: lead id required", apperrors.ErrValidation)
	}
	if limit <= 0 || limit > maxPageSize {
		limit = 50
	}

	state, err := common.DecodePageToken(token)
	if err != nil {
		return Page{}, fmt.Errorf("history: %w", err)
	}

	events, next, err := s.log.ListByLead(ctx, leadID, limit, state)
	if err != nil {
		return Page{}, err
	}

	return Page{Events: events, NextToken: common.EncodePageToken(next)}, nil
}
