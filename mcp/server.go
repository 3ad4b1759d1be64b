// Package mcp exposes the code search as a Model Context Protocol server
// over stdio, and provides a client for talking to MCP servers.
//
// Information Hiding:
// - JSON-RPC dispatch hidden
// - Panic isolation per message hidden
// - Mapping of search outcomes onto tool results hidden
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/richinex/fastctx/agent"
)

// Searcher runs one search.
type Searcher interface {
	Search(ctx context.Context, req agent.Request) agent.Response
}

// Server answers MCP requests on a Transport.
type Server struct {
	transport *Transport
	searcher  Searcher
	version   string
	logger    zerolog.Logger

	// MaxCommands is passed through to every search.
	MaxCommands int
	// WorkDir is used when a call has no project_path. Defaults to the
	// process working directory.
	WorkDir string
}

// NewServer creates a server.
func NewServer(transport *Transport, searcher Searcher, version string, logger zerolog.Logger) *Server {
	return &Server{
		transport: transport,
		searcher:  searcher,
		version:   version,
		logger:    logger.With().Str("component", "mcp").Logger(),
	}
}

// maxReadErrors is how many consecutive read failures end the loop.
const maxReadErrors = 10

// Serve handles messages until the input ends or ctx is cancelled. A
// malformed or failing message is logged and dropped; only maxReadErrors
// failures in a row stop the loop.
func (s *Server) Serve(ctx context.Context) error {
	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := s.serveOne(ctx)
		if done {
			return nil
		}
		if err == nil {
			failures = 0
			continue
		}

		failures++
		s.logger.Warn().Err(err).Int("consecutive", failures).Msg("dropping message")
		if failures >= maxReadErrors {
			return fmt.Errorf("read message: %w", err)
		}
	}
}

// serveOne reads and handles one message. done reports the end of input.
func (s *Server) serveOne(ctx context.Context) (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	msg, err := s.transport.ReadMessage()
	if errors.Is(err, io.EOF) {
		s.logger.Info().Msg("stdin closed, exiting")
		return true, nil
	}
	if err != nil {
		return false, err
	}

	s.handleMessage(ctx, msg)
	return false, nil
}

func (s *Server) handleMessage(ctx context.Context, msg []byte) {
	var req Request
	if err := json.Unmarshal(msg, &req); err != nil {
		s.logger.Warn().Err(err).Int("len", len(msg)).Msg("invalid JSON message")
		return
	}
	if req.IsNotification() {
		s.logger.Debug().Str("method", req.Method).Msg("notification")
		return
	}

	resp := s.safeHandle(ctx, &req)
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error().Err(err).Str("method", req.Method).Msg("encode response")
		return
	}
	if err := s.transport.WriteMessage(payload); err != nil {
		s.logger.Error().Err(err).Str("method", req.Method).Msg("write response")
		return
	}
	s.logger.Debug().Str("method", req.Method).Stringer("mode", s.transport.Mode()).Msg("responded")
}

// safeHandle turns a panicking handler into an internal error response.
func (s *Server) safeHandle(ctx context.Context, req *Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("method", req.Method).Msg("request handler panicked")
			resp = Response{
				JSONRPC: jsonrpcVersion,
				ID:      req.ID,
				Error:   &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("Internal error: %v", r)},
			}
		}
	}()
	return s.Handle(ctx, req)
}

// Handle dispatches one request and returns its response.
func (s *Server) Handle(ctx context.Context, req *Request) Response {
	resp := Response{JSONRPC: jsonrpcVersion, ID: req.ID}

	switch req.Method {
	case "initialize":
		resp.Result = initializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      serverInfo{Name: ServerName, Version: s.version},
		}
	case "tools/list":
		resp.Result = toolsListResult{Tools: []ToolInfo{SearchTool()}}
	case "tools/call":
		result, rpcErr := s.callTool(ctx, req.Params)
		if rpcErr != nil {
			resp.Error = rpcErr
		} else {
			resp.Result = result
		}
	case "ping":
		resp.Result = struct{}{}
	default:
		resp.Error = &RPCError{Code: CodeMethodNotFound, Message: "Method not found: " + req.Method}
	}
	return resp
}

func (s *Server) callTool(ctx context.Context, raw json.RawMessage) (ToolResult, *RPCError) {
	var params callParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return ToolResult{}, &RPCError{Code: CodeInvalidParams, Message: "Invalid params: " + err.Error()}
		}
	}
	if params.Name != SearchToolName {
		return ToolResult{}, &RPCError{Code: CodeInvalidParams, Message: "Unknown tool: " + params.Name}
	}

	args, err := DecodeSearchArgs(params.Arguments)
	if err != nil {
		return ToolResult{}, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}

	resp := s.searcher.Search(ctx, agent.Request{
		Query:       args.Query,
		ProjectRoot: s.projectRoot(args.ProjectPath),
		TreeDepth:   args.TreeDepth,
		MaxTurns:    args.MaxTurns,
		MaxResults:  args.MaxResults,
		MaxCommands: s.MaxCommands,
	})
	return TextResult(resp.ResultText(), resp.IsError()), nil
}

func (s *Server) projectRoot(path string) string {
	if path != "" {
		return path
	}
	if s.WorkDir != "" {
		return s.WorkDir
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
