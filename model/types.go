// Package model provides domain types shared across packages.
package model

import (
	"context"
	"time"
)

// SearchStatus is the terminal status of one search.
type SearchStatus string

const (
	StatusSuccess SearchStatus = "success"
	StatusError   SearchStatus = "error"
	StatusTimeout SearchStatus = "timeout"
)

// SearchLog is the outcome record reported after every search.
// ErrorMsg is empty on success.
type SearchLog struct {
	Query      string       `json:"query"`
	Status     SearchStatus `json:"status"`
	ErrorMsg   string       `json:"error_msg"`
	DurationMs int64        `json:"duration_ms"`
	Provider   string       `json:"provider"`
	CreatedAt  time.Time    `json:"-"`
}

// Reporter records search outcomes. Reporting is best-effort: callers
// never let a Reporter error change a search result.
type Reporter interface {
	Report(ctx context.Context, entry SearchLog) error
}

// MultiReporter fans one entry out to several reporters and returns the
// first error after trying all of them.
type MultiReporter []Reporter

// Report implements Reporter.
func (m MultiReporter) Report(ctx context.Context, entry SearchLog) error {
	var first error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Report(ctx, entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}
