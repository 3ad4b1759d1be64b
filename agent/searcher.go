// Search conversation loop.
//
// All searches go through Searcher.Search.
//
// Information Hiding:
// - Turn loop and state transitions hidden
// - Tool dispatch and forced-answer injection hidden
// - Outcome reporting hidden

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/richinex/fastctx/llm"
	"github.com/richinex/fastctx/model"
	"github.com/richinex/fastctx/tools"
)

// CredentialSource fetches backend credentials for one search.
type CredentialSource interface {
	FetchCredentials(ctx context.Context) (llm.Credentials, error)
}

// ProviderFactory creates a backend provider from fetched credentials.
type ProviderFactory func(creds llm.Credentials) llm.Provider

// Searcher runs search conversations.
// Safe for concurrent use; each search owns its conversation and executor.
type Searcher struct {
	creds     CredentialSource
	providers ProviderFactory
	reporter  model.Reporter
	logger    zerolog.Logger
	config    Config

	reports sync.WaitGroup
}

// NewSearcher creates a searcher. reporter may be nil.
func NewSearcher(creds CredentialSource, providers ProviderFactory, reporter model.Reporter, logger zerolog.Logger) *Searcher {
	return &Searcher{
		creds:     creds,
		providers: providers,
		reporter:  reporter,
		logger:    logger.With().Str("component", "searcher").Logger(),
		config:    DefaultConfig(),
	}
}

// search is the state of one running search.
type search struct {
	req    Request
	start  time.Time
	exec   *tools.Executor
	meta   Metadata
	logger zerolog.Logger
}

// Search runs one search to completion. It never returns a Go error;
// failures are reported as ResponseFailure.
func (s *Searcher) Search(ctx context.Context, req Request) Response {
	req = req.normalize()
	st := &search{
		req:    req,
		start:  time.Now(),
		logger: s.logger.With().Str("query", preview(req.Query, 80)).Logger(),
	}
	st.logger.Info().
		Str("project", req.ProjectRoot).
		Int("tree_depth", req.TreeDepth).
		Int("max_turns", req.MaxTurns).
		Msg("search started")

	resp := s.run(ctx, st)
	resp.Elapsed = time.Since(st.start)

	st.logger.Info().
		Stringer("status", resp.Type).
		Int("turns", resp.Turns).
		Int("calls", resp.Calls).
		Dur("elapsed", resp.Elapsed).
		Msg("search finished")

	s.report(resp.logEntry(req.Query))
	return resp
}

func (s *Searcher) run(ctx context.Context, st *search) Response {
	req := st.req

	creds, err := s.creds.FetchCredentials(ctx)
	if err != nil {
		return NewFailureResponse(err.Error(), st.meta)
	}

	ws := tools.NewWorkspace(req.ProjectRoot)
	st.exec = tools.NewExecutor(ws, s.config.Executor, s.logger)

	conv := llm.NewConversation(
		SystemPrompt(req.MaxTurns, req.MaxCommands, req.MaxResults),
		UserPrompt(req.Query, req.TreeDepth, tools.RepoMap(ctx, ws, req.TreeDepth)),
	)
	client := llm.NewClient(s.providers(creds), ToolDefinitions(req.MaxCommands), st.logger)

	for turn := 0; turn <= req.MaxTurns; turn++ {
		st.meta.Turns++
		reply, err := client.Turn(ctx, conv)
		if err != nil {
			return NewFailureResponse(fmt.Sprintf("backend request failed: %v", err), st.meta)
		}

		var backendErr *llm.BackendError
		if errors.As(reply.Err, &backendErr) {
			return NewFailureResponse(reply.Text, st.meta)
		}

		call := reply.Call
		if call == nil || (call.Name != ExecTool && call.Name != AnswerTool) {
			if strings.HasPrefix(reply.Text, "[Error]") {
				return NewFailureResponse(reply.Text, st.meta)
			}
			if answer, ok := embeddedAnswer(reply.Text); ok && call == nil {
				st.logger.Warn().Int("turn", turn).Msg("answer given without a tool call")
				return NewSuccessResponse(FormatAnswer(answer, ws, st.exec.Patterns(), req), st.meta)
			}
			return NewSuccessResponse("No relevant files found.\n\nRaw: "+reply.Text, st.meta)
		}

		if call.Name == AnswerTool {
			answer, _ := call.Args["answer"].(string)
			return NewSuccessResponse(FormatAnswer(answer, ws, st.exec.Patterns(), req), st.meta)
		}

		s.execTurn(ctx, st, conv, turn, reply)
		if turn >= req.MaxTurns-1 {
			conv.AppendUser(ForceAnswerMessage)
		}
	}

	return NewTimeoutResponse(FormatFallback(st.exec.Files(), ws, st.exec.Patterns(), req), st.meta)
}

// execTurn runs a restricted_exec batch and records the exchange.
func (s *Searcher) execTurn(ctx context.Context, st *search, conv *llm.Conversation, turn int, reply llm.Reply) {
	call := reply.Call
	if call.Provisional() {
		st.logger.Warn().Int("turn", turn).Int("commands", len(call.Args)).Msg("running salvaged commands")
	}

	argsJSON, err := json.Marshal(call.Args)
	if err != nil {
		argsJSON = []byte("{}")
	}
	results := st.exec.ExecuteBatch(ctx, call.Args)
	conv.AppendToolExchange(reply.Thinking, call.Name, string(argsJSON), results)

	st.meta.Calls += len(call.Args)
	st.meta.Steps = append(st.meta.Steps, Step{
		Turn:     turn,
		Tool:     call.Name,
		Thinking: reply.Thinking,
		Commands: len(call.Args),
		Repair:   call.Repair,
	})
	st.logger.Debug().Int("turn", turn).Int("commands", len(call.Args)).Int("result_len", len(results)).Msg("batch executed")
}

// report hands entry to the reporter without waiting for it.
func (s *Searcher) report(entry model.SearchLog) {
	if s.reporter == nil {
		return
	}
	entry.CreatedAt = time.Now()

	s.reports.Add(1)
	go func() {
		defer s.reports.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Interface("panic", r).Str("status", string(entry.Status)).Msg("search reporter panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ReportTimeout)
		defer cancel()
		if err := s.reporter.Report(ctx, entry); err != nil {
			s.logger.Warn().Err(err).Str("status", string(entry.Status)).Msg("search report failed")
		}
	}()
}

// Wait blocks until all pending reports have finished.
func (s *Searcher) Wait() {
	s.reports.Wait()
}

func preview(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
