// Package onlinepbx implements telephony.Provider on top of the OnlinePBX
// HTTP API.
package onlinepbx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/acme/predictive-dialer/internal/config"
	"github.com/acme/predictive-dialer/internal/phone"
	"github.com/acme/predictive-dialer/internal/telephony"
	apperrors "github.com/acme/predictive-dialer/pkg/errors"
	"github.com/acme/predictive-dialer/pkg/logger"
)

const authHeader = "x-pbx-authentication"

// ErrAgentBusy is returned when the provider refuses the call because the
// agent extension is busy.
var ErrAgentBusy = errors.New("onlinepbx: agent busy")

var errUnauthorized = errors.New("unauthorized")

// Client talks to one OnlinePBX domain.
type Client struct {
	baseURL string
	domain  string
	apiKey  string
	http    *http.Client
	logger  *logger.Logger

	mu      sync.Mutex
	authKey string
}

type envelope struct {
	Status  json.RawMessage `json:"status"`
	Comment string          `json:"comment"`
	Data    json.RawMessage `json:"data"`
}

type authData struct {
	Key   string `json:"key"`
	KeyID string `json:"key_id"`
}

type callData struct {
	UUID   string `json:"uuid"`
	CallID string `json:"call_id"`
}

// NewClient validates the configuration and builds a client.
func NewClient(cfg config.OnlinePBXConfig, httpClient *http.Client, lg *logger.Logger) (*Client, error) {
	if cfg.Domain == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: onlinepbx domain and api key are required", apperrors.ErrValidation)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	if lg == nil {
		lg = logger.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		domain:  cfg.Domain,
		apiKey:  cfg.APIKey,
		http:    httpClient,
		logger:  lg,
	}, nil
}

// Authenticate exchanges the API key for a session key.
func (c *Client) Authenticate(ctx context.Context) error {
	var resp envelope
	if err := c.do(ctx, "auth.json", map[string]string{"auth_key": c.apiKey}, "", &resp); err != nil {
		return fmt.Errorf("onlinepbx: authenticate: %w", err)
	}
	if !statusOK(resp.Status) {
		return fmt.Errorf("%w: onlinepbx: authenticate: %s", apperrors.ErrUnavailable, commentOr(resp.Comment, "authentication failed"))
	}

	var data authData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return fmt.Errorf("onlinepbx: decode auth data: %w", err)
	}

	c.mu.Lock()
	c.authKey = data.KeyID + ":" + data.Key
	c.mu.Unlock()
	return nil
}

// PlaceCall rings req.Client and bridges it to the agent extension. A
// response that carries a call uuid counts as accepted whatever its status.
func (c *Client) PlaceCall(ctx context.Context, req telephony.CallRequest) (telephony.Result, error) {
	body := map[string]string{
		"from": req.Client,
		"to":   phone.Extension(req.Agent),
	}

	var resp envelope
	if err := c.call(ctx, "call/instantly.json", body, &resp); err != nil {
		return telephony.Result{}, fmt.Errorf("onlinepbx: place call: %w", err)
	}

	data := decodeCallData(resp.Data)
	if statusOK(resp.Status) || data.UUID != "" {
		id := data.UUID
		if id == "" {
			id = data.CallID
		}
		return telephony.Result{CallID: id}, nil
	}

	if resp.Comment == "USER_BUSY" {
		return telephony.Result{}, fmt.Errorf("%w: %w", apperrors.ErrProviderRejected, ErrAgentBusy)
	}
	return telephony.Result{}, fmt.Errorf("%w: %s", apperrors.ErrProviderRejected, commentOr(resp.Comment, "call initiation failed"))
}

// Terminate hangs up a call leg.
func (c *Client) Terminate(ctx context.Context, callID string) (bool, error) {
	var resp envelope
	if err := c.call(ctx, "call/hangup.json", map[string]string{"uuid": callID}, &resp); err != nil {
		return false, fmt.Errorf("onlinepbx: hangup: %w", err)
	}
	return statusOK(resp.Status), nil
}

// call performs an authenticated request, re-authenticating once when the
// session key was rejected.
func (c *Client) call(ctx context.Context, path string, body any, out *envelope) error {
	c.mu.Lock()
	key := c.authKey
	c.mu.Unlock()

	if key == "" {
		if err := c.Authenticate(ctx); err != nil {
			c.logger.Warn("onlinepbx: authentication failed, using api key", zap.Error(err))
			key = c.apiKey
		} else {
			c.mu.Lock()
			key = c.authKey
			c.mu.Unlock()
		}
	}

	err := c.do(ctx, path, body, key, out)
	if !errors.Is(err, errUnauthorized) {
		return err
	}

	c.mu.Lock()
	c.authKey = ""
	c.mu.Unlock()
	if err := c.Authenticate(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	key = c.authKey
	c.mu.Unlock()
	return c.do(ctx, path, body, key, out)
}

func (c *Client) do(ctx context.Context, path string, body any, key string, out *envelope) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s", c.baseURL, c.domain, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(authHeader, key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errUnauthorized
	}

	if err := json.Unmarshal(raw, out); err != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: status %d", apperrors.ErrUnavailable, resp.StatusCode)
		}
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

func statusOK(raw json.RawMessage) bool {
	v := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	return v == "ok" || v == "1" || v == "true"
}

func decodeCallData(raw json.RawMessage) callData {
	var data callData
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &data)
	}
	return data
}

func commentOr(comment, fallback string) string {
	if comment != "" {
		return comment
	}
	return fallback
}
