// Package agent runs the multi-turn search conversation against the
// inference backend.
//
// Contains the outcome types returned by a search.
package agent

import (
	"time"

	"github.com/richinex/fastctx/llm"
	"github.com/richinex/fastctx/model"
)

// Step records one tool-using turn.
type Step struct {
	Turn     int
	Tool     string
	Thinking string
	Commands int
	Repair   llm.RepairKind
}

// Metadata contains metadata about a search.
type Metadata struct {
	Elapsed time.Duration
	// Turns is the number of backend calls made.
	Turns int
	// Calls is the number of restricted_exec commands dispatched.
	Calls int
	Steps []Step
}

// ResponseType indicates how a search ended.
type ResponseType int

const (
	ResponseSuccess ResponseType = iota
	ResponseFailure
	ResponseTimeout
)

// String returns the log status for the response type.
func (t ResponseType) String() string {
	return string(t.Status())
}

// Status maps the response type onto the search log status.
func (t ResponseType) Status() model.SearchStatus {
	switch t {
	case ResponseSuccess:
		return model.StatusSuccess
	case ResponseTimeout:
		return model.StatusTimeout
	default:
		return model.StatusError
	}
}

// Response is the outcome of one search.
type Response struct {
	Type  ResponseType
	Text  string // success and timeout
	Error string // failure
	Metadata
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(text string, meta Metadata) Response {
	return Response{Type: ResponseSuccess, Text: text, Metadata: meta}
}

// NewFailureResponse creates a failure response.
func NewFailureResponse(err string, meta Metadata) Response {
	return Response{Type: ResponseFailure, Error: err, Metadata: meta}
}

// NewTimeoutResponse creates a response for a search that ran out of turns.
func NewTimeoutResponse(partial string, meta Metadata) Response {
	return Response{Type: ResponseTimeout, Text: partial, Metadata: meta}
}

// ResultText returns the text shown to the host.
func (r Response) ResultText() string {
	if r.Type == ResponseFailure {
		return "Error: " + r.Error
	}
	return r.Text
}

// IsError reports whether the host should see the result as an error.
func (r Response) IsError() bool {
	return r.Type == ResponseFailure
}

// logEntry builds the search log record for r.
func (r Response) logEntry(query string) model.SearchLog {
	entry := model.SearchLog{
		Query:      query,
		Status:     r.Type.Status(),
		DurationMs: r.Elapsed.Milliseconds(),
		Provider:   "windsurf",
	}
	switch r.Type {
	case ResponseFailure:
		entry.ErrorMsg = r.Error
	case ResponseTimeout:
		entry.ErrorMsg = "max turns"
	}
	return entry
}
