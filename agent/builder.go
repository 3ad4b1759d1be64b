// Searcher builder for fluent configuration.
//
// Information Hiding:
// - Builder state management hidden
// - Default value application hidden

package agent

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/richinex/fastctx/llm"
	"github.com/richinex/fastctx/model"
)

// Builder provides fluent configuration for creating a Searcher.
// Usage: agent.NewBuilder(creds) - no stutter.
type Builder struct {
	creds     CredentialSource
	providers ProviderFactory
	reporters model.MultiReporter
	logger    zerolog.Logger
	config    Config
}

// NewBuilder creates a builder that fetches credentials from creds.
func NewBuilder(creds CredentialSource) *Builder {
	return &Builder{
		creds:  creds,
		logger: zerolog.Nop(),
		config: DefaultConfig(),
	}
}

// Providers sets how a backend provider is created from credentials.
func (b *Builder) Providers(factory ProviderFactory) *Builder {
	b.providers = factory
	return b
}

// Reporter adds a search log reporter. Every reporter sees every outcome.
func (b *Builder) Reporter(r model.Reporter) *Builder {
	if r != nil {
		b.reporters = append(b.reporters, r)
	}
	return b
}

// Logger sets the logger.
func (b *Builder) Logger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// MaxParallel bounds concurrently running commands within one batch.
func (b *Builder) MaxParallel(n int) *Builder {
	b.config.Executor.MaxParallel = n
	return b
}

// CommandTimeout bounds each command within a batch.
func (b *Builder) CommandTimeout(d time.Duration) *Builder {
	b.config.Executor.CommandTimeout = d
	return b
}

// ReportTimeout bounds each report.
func (b *Builder) ReportTimeout(d time.Duration) *Builder {
	b.config.ReportTimeout = d
	return b
}

// Build creates the searcher.
func (b *Builder) Build() *Searcher {
	providers := b.providers
	if providers == nil {
		providers = WindsurfProviders(&http.Client{}, b.logger)
	}

	var reporter model.Reporter
	switch len(b.reporters) {
	case 0:
	case 1:
		reporter = b.reporters[0]
	default:
		reporter = b.reporters
	}

	s := NewSearcher(b.creds, providers, reporter, b.logger)
	s.config = b.config
	if s.config.ReportTimeout <= 0 {
		s.config.ReportTimeout = DefaultReportTimeout
	}
	return s
}

// WindsurfProviders returns a factory creating Connect-RPC providers that
// share one HTTP client.
func WindsurfProviders(client *http.Client, logger zerolog.Logger) ProviderFactory {
	return func(creds llm.Credentials) llm.Provider {
		return llm.NewWindsurfProvider(creds, client, logger)
	}
}
