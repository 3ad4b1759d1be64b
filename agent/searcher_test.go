package agent

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/fastctx/llm"
	"github.com/richinex/fastctx/model"
	"github.com/richinex/fastctx/protocol"
)

type staticCreds struct {
	err   error
	calls int
}

func (c *staticCreds) FetchCredentials(context.Context) (llm.Credentials, error) {
	c.calls++
	if c.err != nil {
		return llm.Credentials{}, c.err
	}
	return llm.Credentials{APIKey: "key", JWT: "jwt"}, nil
}

// scriptedProvider replays bodies in order and repeats the last one.
type scriptedProvider struct {
	bodies [][]byte
	err    error

	mu       sync.Mutex
	requests [][]llm.ChatMessage
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "test" }

func (p *scriptedProvider) Stream(_ context.Context, messages []llm.ChatMessage, _ string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, append([]llm.ChatMessage(nil), messages...))
	if p.err != nil {
		return nil, p.err
	}
	i := min(len(p.requests)-1, len(p.bodies)-1)
	return p.bodies[i], nil
}

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

type recordingReporter struct {
	err   error
	panic bool

	mu      sync.Mutex
	entries []model.SearchLog
}

func (r *recordingReporter) Report(_ context.Context, entry model.SearchLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	if r.panic {
		panic("reporter exploded")
	}
	return r.err
}

func (r *recordingReporter) only(t *testing.T) model.SearchLog {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.Len(t, r.entries, 1)
	return r.entries[0]
}

func toolCallBody(t *testing.T, name string, args any) []byte {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	frame, err := protocol.EncodeFrame([]byte("Searching.[TOOL_CALLS]" + name + "[ARGS]" + string(raw) + "</s>"))
	require.NoError(t, err)
	return frame
}

func textBody(t *testing.T, text string) []byte {
	t.Helper()
	frame, err := protocol.EncodeFrame(protocol.NewEncoder().WriteString(1, text).Bytes())
	require.NoError(t, err)
	return frame
}

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "server.go"), []byte("package src\n\nfunc Serve() {}\n"), 0o644))
	root, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	return root
}

func newTestSearcher(creds CredentialSource, p *scriptedProvider, r model.Reporter) *Searcher {
	return NewBuilder(creds).
		Providers(func(llm.Credentials) llm.Provider { return p }).
		Reporter(r).
		Logger(zerolog.Nop()).
		Build()
}

var readServer = map[string]any{
	"command1": map[string]any{"type": "readfile", "file": "/codebase/src/server.go"},
	"command2": map[string]any{"type": "rg", "pattern": "Serve", "path": "/codebase/missing"},
	"command3": map[string]any{"type": "rg", "pattern": "go", "path": "/codebase/missing"},
}

func TestSearchAnswered(t *testing.T) {
	root := newProject(t)
	answer := `<ANSWER><file path="/codebase/src/server.go"><range>1-3</range></file></ANSWER>`
	p := &scriptedProvider{bodies: [][]byte{
		toolCallBody(t, ExecTool, readServer),
		toolCallBody(t, AnswerTool, map[string]any{"answer": answer}),
	}}
	rep := &recordingReporter{}
	s := newTestSearcher(&staticCreds{}, p, rep)

	resp := s.Search(context.Background(), Request{Query: "where is Serve", ProjectRoot: root})
	s.Wait()

	require.Equal(t, ResponseSuccess, resp.Type)
	want := "Found 1 relevant files.\n\n" +
		"  [1/1] " + filepath.Join(root, "src", "server.go") + " (L1-3)\n\n" +
		"grep keywords: Serve\n\n" +
		"[config] tree_depth=3, max_turns=5"
	assert.Equal(t, want, resp.Text)
	assert.Equal(t, 2, resp.Turns)
	assert.Equal(t, 3, resp.Calls)
	require.Len(t, resp.Steps, 1)

	second := p.requests[1]
	require.Len(t, second, 4)
	assert.Equal(t, llm.RoleSystem, second[0].Role)
	assert.Equal(t, llm.RoleUser, second[1].Role)
	assert.Contains(t, second[1].Content, "Problem Statement: where is Serve")
	assert.Contains(t, second[1].Content, "server.go")
	require.NotNil(t, second[2].ToolCall)
	assert.Equal(t, ExecTool, second[2].ToolCall.Name)
	assert.Equal(t, second[2].ToolCall.ID, second[3].RefCallID)
	assert.Contains(t, second[3].Content, "<command1_result>\n1:package src")

	entry := rep.only(t)
	assert.Equal(t, model.StatusSuccess, entry.Status)
	assert.Equal(t, "where is Serve", entry.Query)
	assert.Equal(t, "windsurf", entry.Provider)
	assert.Empty(t, entry.ErrorMsg)
}

func TestSearchTimesOut(t *testing.T) {
	root := newProject(t)
	p := &scriptedProvider{bodies: [][]byte{toolCallBody(t, ExecTool, readServer)}}
	rep := &recordingReporter{}
	s := newTestSearcher(&staticCreds{}, p, rep)

	resp := s.Search(context.Background(), Request{Query: "q", ProjectRoot: root, MaxTurns: 2})
	s.Wait()

	require.Equal(t, ResponseTimeout, resp.Type)
	assert.Equal(t, 3, p.calls())
	want := "Found 1 files (max turns reached, partial result).\n\n" +
		"  [1/1] " + filepath.Join(root, "src", "server.go") + "\n\n" +
		"grep keywords: Serve\n\n" +
		"[config] tree_depth=3, max_turns=2 (timeout fallback)"
	assert.Equal(t, want, resp.Text)

	// The forced answer follows the second tool exchange.
	assert.NotEqual(t, ForceAnswerMessage, last(p.requests[1]).Content)
	assert.Equal(t, ForceAnswerMessage, last(p.requests[2]).Content)

	entry := rep.only(t)
	assert.Equal(t, model.StatusTimeout, entry.Status)
	assert.Equal(t, "max turns", entry.ErrorMsg)
}

func TestSearchTimesOutWithoutReads(t *testing.T) {
	p := &scriptedProvider{bodies: [][]byte{toolCallBody(t, ExecTool, map[string]any{
		"command1": map[string]any{"type": "ls", "path": "/codebase"},
	})}}
	s := newTestSearcher(&staticCreds{}, p, nil)

	resp := s.Search(context.Background(), Request{Query: "q", ProjectRoot: newProject(t), MaxTurns: 1})
	assert.Equal(t, ResponseTimeout, resp.Type)
	assert.Equal(t, "Max turns reached without answer", resp.Text)
	assert.Equal(t, 2, p.calls())
}

func TestSearchCredentialFailure(t *testing.T) {
	creds := &staticCreds{err: errors.New("relay: invalid access token")}
	p := &scriptedProvider{}
	rep := &recordingReporter{}
	s := newTestSearcher(creds, p, rep)

	resp := s.Search(context.Background(), Request{Query: "q", ProjectRoot: newProject(t)})
	s.Wait()

	require.Equal(t, ResponseFailure, resp.Type)
	assert.Equal(t, "Error: relay: invalid access token", resp.ResultText())
	assert.True(t, resp.IsError())
	assert.Zero(t, p.calls())

	entry := rep.only(t)
	assert.Equal(t, model.StatusError, entry.Status)
	assert.Equal(t, "relay: invalid access token", entry.ErrorMsg)
}

func TestSearchBackendErrorFrame(t *testing.T) {
	frame, err := protocol.EncodeFrame([]byte(`{"error":{"code":"resource_exhausted","message":"quota"}}`))
	require.NoError(t, err)
	p := &scriptedProvider{bodies: [][]byte{frame}}
	s := newTestSearcher(&staticCreds{}, p, nil)

	resp := s.Search(context.Background(), Request{Query: "q", ProjectRoot: newProject(t)})
	require.Equal(t, ResponseFailure, resp.Type)
	assert.Equal(t, "[Error] resource_exhausted: quota", resp.Error)
	assert.Equal(t, 1, p.calls())
}

func TestSearchTransportError(t *testing.T) {
	p := &scriptedProvider{err: errors.New("HTTP 503")}
	s := newTestSearcher(&staticCreds{}, p, nil)

	resp := s.Search(context.Background(), Request{Query: "q", ProjectRoot: newProject(t)})
	require.Equal(t, ResponseFailure, resp.Type)
	assert.Contains(t, resp.Error, "HTTP 503")
	assert.Equal(t, 1, p.calls())
}

func TestSearchWithoutToolCall(t *testing.T) {
	p := &scriptedProvider{bodies: [][]byte{textBody(t, "Nothing in this repository matches.")}}
	s := newTestSearcher(&staticCreds{}, p, nil)

	resp := s.Search(context.Background(), Request{Query: "q", ProjectRoot: newProject(t)})
	require.Equal(t, ResponseSuccess, resp.Type)
	assert.Equal(t, "No relevant files found.\n\nRaw: Nothing in this repository matches.", resp.Text)
}

func TestSearchAnswerWithoutToolCall(t *testing.T) {
	root := newProject(t)
	text := "Here is my answer:\n```json\n" +
		`{"answer": "<ANSWER><file path=\"/codebase/src/server.go\"><range>3-3</range></file></ANSWER>"}` +
		"\n```"
	p := &scriptedProvider{bodies: [][]byte{textBody(t, text)}}
	s := newTestSearcher(&staticCreds{}, p, nil)

	resp := s.Search(context.Background(), Request{Query: "q", ProjectRoot: root})
	require.Equal(t, ResponseSuccess, resp.Type)
	want := "Found 1 relevant files.\n\n" +
		"  [1/1] " + filepath.Join(root, "src", "server.go") + " (L3-3)\n\n" +
		"[config] tree_depth=3, max_turns=5"
	assert.Equal(t, want, resp.Text)
	assert.Equal(t, 1, p.calls())
}

func TestSearchUnknownToolIsImplicitAnswer(t *testing.T) {
	p := &scriptedProvider{bodies: [][]byte{toolCallBody(t, "bash", map[string]any{"cmd": "ls"})}}
	s := newTestSearcher(&staticCreds{}, p, nil)

	resp := s.Search(context.Background(), Request{Query: "q", ProjectRoot: newProject(t)})
	require.Equal(t, ResponseSuccess, resp.Type)
	assert.Contains(t, resp.Text, "No relevant files found.\n\nRaw: ")
	assert.Equal(t, 1, p.calls())
}

func TestSearchReporterFailureIgnored(t *testing.T) {
	answer := `<ANSWER></ANSWER>`
	p := &scriptedProvider{bodies: [][]byte{toolCallBody(t, AnswerTool, map[string]any{"answer": answer})}}
	rep := &recordingReporter{err: errors.New("relay down")}
	s := newTestSearcher(&staticCreds{}, p, rep)

	resp := s.Search(context.Background(), Request{Query: "q", ProjectRoot: newProject(t)})
	s.Wait()

	assert.Equal(t, ResponseSuccess, resp.Type)
	assert.Equal(t, "No relevant files found.\n\n[config] tree_depth=3, max_turns=5", resp.Text)
	assert.Equal(t, model.StatusSuccess, rep.only(t).Status)
}

func TestSearchReporterPanicIgnored(t *testing.T) {
	p := &scriptedProvider{bodies: [][]byte{toolCallBody(t, AnswerTool, map[string]any{"answer": "<ANSWER></ANSWER>"})}}
	rep := &recordingReporter{panic: true}
	s := newTestSearcher(&staticCreds{}, p, rep)

	var resp Response
	require.NotPanics(t, func() {
		resp = s.Search(context.Background(), Request{Query: "q", ProjectRoot: newProject(t)})
		s.Wait()
	})
	assert.Equal(t, ResponseSuccess, resp.Type)
	assert.Equal(t, model.StatusSuccess, rep.only(t).Status)
}

func last(msgs []llm.ChatMessage) llm.ChatMessage {
	return msgs[len(msgs)-1]
}
