package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/acme/predictive-dialer/internal/domain"
)

func TestClientRoundTrips(t *testing.T) {
	var gotResult map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/dialer/state":
			_ = json.NewEncoder(w).Encode(domain.Snapshot{State: domain.EngineRunning, QueueLength: 3})
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/leads/42/result":
			_ = json.NewDecoder(r.Body).Decode(&gotResult)
			_ = json.NewEncoder(w).Encode(domain.Lead{ID: "42", Status: domain.LeadStatusCompleted, CallResult: gotResult["result"]})
		case r.URL.Path == "/api/v1/dialer/start":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"lead source failed: dialer: fetch leads: timeout"}`))
		case r.URL.Path == "/api/v1/leads/7/calls":
			if r.URL.Query().Get("page_token") != "abc" || r.URL.Query().Get("limit") != "5" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"items":[{"event":"callEnded","status":"completed"}],"next_page_token":""}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	ctx := context.Background()

	snap, err := c.State(ctx)
	if err != nil || snap.State != domain.EngineRunning || snap.QueueLength != 3 {
		t.Fatalf("state: %+v %v", snap, err)
	}

	lead, err := c.SetResult(ctx, "42", "sale", "ok")
	if err != nil || lead.CallResult != "sale" || gotResult["comment"] != "ok" {
		t.Fatalf("result: %+v %v (%v)", lead, err, gotResult)
	}

	_, err = c.Lifecycle(ctx, "start")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway || !strings.Contains(apiErr.Message, "lead source") {
		t.Fatalf("expected api error, got %v", err)
	}

	page, err := c.Calls(ctx, "7", 5, "abc")
	if err != nil || len(page.Items) != 1 || page.Items[0].Event != "callEnded" {
		t.Fatalf("calls: %+v %v", page, err)
	}
}

func TestRenderLeads(t *testing.T) {
	var buf bytes.Buffer
	renderLeads(&buf, []domain.Lead{{ID: "1", Phone: "+77011112233", Status: domain.LeadStatusFailed, Error: "no_answer"}})
	out := buf.String()
	if !strings.Contains(out, "+77011112233") || !strings.Contains(out, "no_answer") {
		t.Fatalf("unexpected table:\n%s", out)
	}
}
