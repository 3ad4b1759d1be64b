// Package relay talks to the credential relay: it fetches backend
// credentials and receives search logs.
//
// Information Hiding:
// - Endpoint paths and bearer authentication hidden
// - Credential payload shape (string or object errors) hidden
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/richinex/fastctx/llm"
	"github.com/richinex/fastctx/model"
)

const (
	credentialsPath = "/api/windsurf/credentials"
	logPath         = "/api/windsurf/log"

	// ReportTimeout bounds a log report.
	ReportTimeout = 5 * time.Second

	maxBodyBytes = 1 << 20
)

// ErrMissingCredentials is returned when the relay answers without an
// api_key or jwt.
var ErrMissingCredentials = errors.New("relay returned incomplete credentials")

// Client is a relay HTTP client authenticated with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a relay client. httpClient may be nil.
func NewClient(baseURL, token string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
		logger:     logger.With().Str("component", "relay").Logger(),
	}
}

type credentialsResponse struct {
	APIKey  string            `json:"api_key"`
	JWT     string            `json:"jwt"`
	Backend llm.BackendConfig `json:"windsurf_config"`
	Error   json.RawMessage   `json:"error"`
}

// FetchCredentials asks the relay for backend credentials.
func (c *Client) FetchCredentials(ctx context.Context) (llm.Credentials, error) {
	resp, err := c.post(ctx, credentialsPath, nil)
	if err != nil {
		return llm.Credentials{}, fmt.Errorf("fetch credentials: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return llm.Credentials{}, fmt.Errorf("read credentials: %w", err)
	}

	var cr credentialsResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return llm.Credentials{}, fmt.Errorf("fetch credentials: HTTP %d", resp.StatusCode)
		}
		return llm.Credentials{}, fmt.Errorf("decode credentials: %w", err)
	}
	if msg, ok := errorMessage(cr.Error); ok {
		return llm.Credentials{}, errors.New(msg)
	}

	switch {
	case cr.APIKey == "":
		return llm.Credentials{}, fmt.Errorf("%w: no api_key", ErrMissingCredentials)
	case cr.JWT == "":
		return llm.Credentials{}, fmt.Errorf("%w: no jwt", ErrMissingCredentials)
	}

	c.logger.Debug().Str("api_base", cr.Backend.APIBase).Str("model", cr.Backend.Model).Msg("credentials fetched")
	return llm.Credentials{APIKey: cr.APIKey, JWT: cr.JWT, Backend: cr.Backend}, nil
}

// errorMessage interprets the relay error field. A string is used as is;
// any other non-null value means authentication failed.
func errorMessage(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return "Authentication failed", true
}

// Report sends one search log entry. It bounds itself to ReportTimeout.
func (c *Client) Report(ctx context.Context, entry model.SearchLog) error {
	ctx, cancel := context.WithTimeout(ctx, ReportTimeout)
	defer cancel()

	entry.Provider = "windsurf"
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode search log: %w", err)
	}

	resp, err := c.post(ctx, logPath, raw)
	if err != nil {
		return fmt.Errorf("report search log: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("report search log: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("invalid relay URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.httpClient.Do(req)
}
