// Windsurf Provider implementation over Connect-RPC.
//
// Information Hiding:
// - Metadata and chat message field layout
// - Connect envelope, gzip and tracing headers
// - Deadline slack beyond the server-side timeout hint

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/richinex/fastctx/protocol"
)

const (
	windsurfApp      = "windsurf"
	windsurfLocale   = "zh-cn"
	windsurfEndpoint = "/GetDevstralStream"
	connectUserAgent = "connect-go/1.18.1 (go1.25.5)"
	sentryPublicKey  = "b813f73488da69eedec534dba1029111"

	// deadlineSlack is added to the server-side timeout hint.
	deadlineSlack = 5 * time.Second
)

// Metadata field numbers.
const (
	metaAppName    = 1
	metaAppVersion = 2
	metaAPIKey     = 3
	metaLocale     = 4
	metaOSInfo     = 5
	metaLSVersion  = 7
	metaCPUInfo    = 8
	metaAppName2   = 12
	metaJWT        = 21
	metaCapability = 30
)

// Request, chat message and tool call field numbers.
const (
	reqMetadata = 1
	reqMessage  = 2
	reqToolDefs = 3

	msgRole      = 2
	msgContent   = 3
	msgToolCall  = 6
	msgRefCallID = 7

	toolCallID   = 1
	toolCallName = 2
	toolCallArgs = 3
)

var capabilityBytes = []byte{0x00, 0x01}

// BuildMetadata encodes the client metadata sub-message.
func BuildMetadata(cfg BackendConfig, apiKey, jwt string) *protocol.Encoder {
	return protocol.NewEncoder().
		WriteString(metaAppName, windsurfApp).
		WriteString(metaAppVersion, cfg.AppVersion).
		WriteString(metaAPIKey, apiKey).
		WriteString(metaLocale, windsurfLocale).
		WriteString(metaOSInfo, osInfoJSON()).
		WriteString(metaLSVersion, cfg.LSVersion).
		WriteString(metaCPUInfo, cpuInfoJSON()).
		WriteString(metaAppName2, windsurfApp).
		WriteString(metaJWT, jwt).
		WriteBytes(metaCapability, capabilityBytes)
}

// BuildRequest encodes a full chat request: metadata, every message in
// order, then the tool definitions.
func BuildRequest(creds Credentials, messages []ChatMessage, toolDefs string) []byte {
	req := protocol.NewEncoder().
		WriteMessage(reqMetadata, BuildMetadata(creds.Backend, creds.APIKey, creds.JWT))
	for _, m := range messages {
		req.WriteMessage(reqMessage, encodeChatMessage(m))
	}
	req.WriteString(reqToolDefs, toolDefs)
	return req.Bytes()
}

func encodeChatMessage(m ChatMessage) *protocol.Encoder {
	msg := protocol.NewEncoder().
		WriteVarint(msgRole, uint64(m.Role)).
		WriteString(msgContent, m.Content)
	if m.ToolCall != nil {
		msg.WriteMessage(msgToolCall, protocol.NewEncoder().
			WriteString(toolCallID, m.ToolCall.ID).
			WriteString(toolCallName, m.ToolCall.Name).
			WriteString(toolCallArgs, m.ToolCall.ArgumentsJSON))
	}
	if m.RefCallID != "" {
		msg.WriteString(msgRefCallID, m.RefCallID)
	}
	return msg
}

func osInfoJSON() string {
	sysname := "Linux"
	switch runtime.GOOS {
	case "darwin":
		sysname = "Darwin"
	case "windows":
		sysname = "Windows_NT"
	}
	b, _ := json.Marshal(map[string]string{
		"Os":             runtime.GOOS,
		"Arch":           runtime.GOARCH,
		"Release":        "",
		"Version":        "",
		"Machine":        runtime.GOARCH,
		"Nodename":       "relay",
		"Sysname":        sysname,
		"ProductVersion": "",
	})
	return string(b)
}

func cpuInfoJSON() string {
	n := runtime.NumCPU()
	b, _ := json.Marshal(map[string]any{
		"NumSockets": 1,
		"NumCores":   n,
		"NumThreads": n,
		"VendorID":   "",
		"Family":     "0",
		"Model":      "0",
		"ModelName":  "Unknown",
		"Memory":     0,
	})
	return string(b)
}

// WindsurfProvider implements the Provider interface for the Connect-RPC
// backend. It is bound to one set of credentials.
type WindsurfProvider struct {
	creds  Credentials
	client *http.Client
	logger zerolog.Logger
}

// NewWindsurfProvider creates a provider. A nil client uses a fresh
// http.Client; deadlines always come from the request context.
func NewWindsurfProvider(creds Credentials, client *http.Client, logger zerolog.Logger) *WindsurfProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &WindsurfProvider{
		creds:  creds,
		client: client,
		logger: logger.With().Str("component", "windsurf").Logger(),
	}
}

// Name returns the provider name.
func (p *WindsurfProvider) Name() string {
	return windsurfApp
}

// Model returns the configured model.
func (p *WindsurfProvider) Model() string {
	return p.creds.Backend.Model
}

// Stream posts the conversation as one compressed frame and returns the
// complete response body. Non-2xx statuses are errors; nothing is retried.
func (p *WindsurfProvider) Stream(ctx context.Context, messages []ChatMessage, toolDefs string) ([]byte, error) {
	cfg := p.creds.Backend
	frame, err := protocol.EncodeFrame(BuildRequest(p.creds, messages, toolDefs))
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	timeoutMs := cfg.Timeout()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond+deadlineSlack)
	defer cancel()

	url := strings.TrimRight(cfg.APIBase, "/") + windsurfEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	traceID, spanID := newTraceIDs()
	h := req.Header
	h.Set("Content-Type", "application/connect+proto")
	h.Set("Connect-Protocol-Version", "1")
	h.Set("Connect-Accept-Encoding", "gzip")
	h.Set("Connect-Content-Encoding", "gzip")
	h.Set("Connect-Timeout-Ms", strconv.FormatInt(timeoutMs, 10))
	h.Set("User-Agent", connectUserAgent)
	h.Set("Accept-Encoding", "identity")
	h.Set("Baggage", fmt.Sprintf(
		"sentry-release=language-server-windsurf@%s,sentry-environment=stable,sentry-sampled=false,sentry-trace_id=%s,sentry-public_key=%s",
		cfg.LSVersion, traceID, sentryPublicKey))
	h.Set("Sentry-Trace", fmt.Sprintf("%s-%s-0", traceID, spanID))

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	p.logger.Debug().
		Int("messages", len(messages)).
		Int("request_bytes", len(frame)).
		Int("response_bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Str("trace_id", traceID).
		Msg("backend call complete")
	return body, nil
}

// newTraceIDs returns a 32-hex trace id and a 16-hex span id.
func newTraceIDs() (traceID, spanID string) {
	traceID = strings.ReplaceAll(uuid.NewString(), "-", "")
	spanID = strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return traceID, spanID
}
