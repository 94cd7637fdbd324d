package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/acme/predictive-dialer/internal/domain"
)

// Client calls the dialer control API.
type Client struct {
	base string
	http *http.Client
}

// NewClient builds a client for the API rooted at base.
func NewClient(base string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dialer api: %d: %s", e.Status, e.Message)
}

type queueResponse struct {
	Leads []domain.Lead `json:"leads"`
	Total int           `json:"total"`
}

// CallEvent is one row of a lead's call history.
type CallEvent struct {
	CallID     string    `json:"call_id,omitempty"`
	Event      string    `json:"event"`
	Status     string    `json:"status"`
	Phone      string    `json:"phone"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CallPage is one page of call history.
type CallPage struct {
	Items         []CallEvent `json:"items"`
	NextPageToken string      `json:"next_page_token"`
}

func (c *Client) State(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/v1/dialer/state", nil, &snap)
	return snap, err
}

func (c *Client) Queue(ctx context.Context) ([]domain.Lead, error) {
	var resp queueResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/dialer/queue", nil, &resp)
	return resp.Leads, err
}

func (c *Client) SetQueue(ctx context.Context, leads []domain.Lead) ([]domain.Lead, error) {
	var resp queueResponse
	err := c.do(ctx, http.MethodPut, "/api/v1/dialer/queue", map[string]any{"leads": leads}, &resp)
	return resp.Leads, err
}

// Lifecycle posts start, pause or stop.
func (c *Client) Lifecycle(ctx context.Context, action string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := c.do(ctx, http.MethodPost, "/api/v1/dialer/"+action, nil, &snap)
	return snap, err
}

func (c *Client) SkipWaiting(ctx context.Context) (bool, error) {
	var resp struct {
		Skipped bool `json:"skipped"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/dialer/skip-waiting", nil, &resp)
	return resp.Skipped, err
}

func (c *Client) SetResult(ctx context.Context, leadID, result, comment string) (domain.Lead, error) {
	var lead domain.Lead
	body := map[string]string{"result": result, "comment": comment}
	err := c.do(ctx, http.MethodPost, "/api/v1/leads/"+url.PathEscape(leadID)+"/result", body, &lead)
	return lead, err
}

func (c *Client) Calls(ctx context.Context, leadID string, limit int, token string) (CallPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if token != "" {
		q.Set("page_token", token)
	}
	path := "/api/v1/leads/" + url.PathEscape(leadID) + "/calls"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var page CallPage
	err := c.do(ctx, http.MethodGet, path, nil, &page)
	return page, err
}

// LeadStats is the lead store breakdown.
type LeadStats struct {
	Total   int            `json:"total"`
	ByState map[string]int `json:"by_state"`
}

func (c *Client) LeadStats(ctx context.Context) (LeadStats, error) {
	var stats LeadStats
	err := c.do(ctx, http.MethodGet, "/api/v1/leads/stats", nil, &stats)
	return stats, err
}

// ImportLeads uploads raw lead objects to the lead store.
func (c *Client) ImportLeads(ctx context.Context, leads []map[string]any) (int, error) {
	var resp struct {
		Imported int `json:"imported"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/leads/import", map[string]any{"leads": leads}, &resp)
	return resp.Imported, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("dialer api: marshal: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("dialer api: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dialer api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("dialer api: read body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("dialer api: decode: %w", err)
	}
	return nil
}
