package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/fastctx/model"
)

func newRelay(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "secret", srv.Client(), zerolog.Nop())
}

func TestFetchCredentials(t *testing.T) {
	c := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/windsurf/credentials", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{
			"api_key": "sk-1",
			"jwt": "eyJ",
			"windsurf_config": {"api_base": "https://api.example", "app_version": "1.2.3", "ls_version": "9.9", "timeout_ms": 12000}
		}`)
	})

	creds, err := c.FetchCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sk-1", creds.APIKey)
	assert.Equal(t, "eyJ", creds.JWT)
	assert.Equal(t, "https://api.example", creds.Backend.APIBase)
	assert.Equal(t, "1.2.3", creds.Backend.AppVersion)
	assert.EqualValues(t, 12000, creds.Backend.Timeout())
}

func TestFetchCredentialsErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "string error", status: 401, body: `{"error":"token expired"}`, want: "token expired"},
		{name: "object error", status: 200, body: `{"error":{"code":42}}`, want: "Authentication failed"},
		{name: "missing jwt", status: 200, body: `{"api_key":"k"}`, want: "relay returned incomplete credentials: no jwt"},
		{name: "missing api key", status: 200, body: `{"jwt":"j"}`, want: "relay returned incomplete credentials: no api_key"},
		{name: "not json", status: 502, body: `bad gateway`, want: "fetch credentials: HTTP 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newRelay(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.FetchCredentials(context.Background())
			require.EqualError(t, err, tt.want)
		})
	}
}

func TestFetchCredentialsMissingIsSentinel(t *testing.T) {
	c := newRelay(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	_, err := c.FetchCredentials(context.Background())
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestReport(t *testing.T) {
	var got map[string]any
	c := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/windsurf/log", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.Report(context.Background(), model.SearchLog{
		Query:      "auth flow",
		Status:     model.StatusTimeout,
		ErrorMsg:   "max turns",
		DurationMs: 1234,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"query":       "auth flow",
		"status":      "timeout",
		"error_msg":   "max turns",
		"duration_ms": float64(1234),
		"provider":    "windsurf",
	}, got)
}

func TestReportHTTPError(t *testing.T) {
	c := newRelay(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	err := c.Report(context.Background(), model.SearchLog{Query: "q", Status: model.StatusSuccess})
	require.EqualError(t, err, "report search log: HTTP 500")
}
