// Client - one backend turn: send the conversation, interpret the reply.

package llm

import (
	"context"

	"github.com/rs/zerolog"
)

// Client wraps a Provider with response interpretation.
type Client struct {
	provider Provider
	toolDefs string
	logger   zerolog.Logger
}

// NewClient creates a new client that offers toolDefs on every call.
func NewClient(provider Provider, toolDefs string, logger zerolog.Logger) *Client {
	return &Client{
		provider: provider,
		toolDefs: toolDefs,
		logger:   logger,
	}
}

// Turn sends the conversation and interprets the response. Transport
// failures are returned as errors; backend error objects come back in
// Reply.Err.
func (c *Client) Turn(ctx context.Context, conv *Conversation) (Reply, error) {
	body, err := c.provider.Stream(ctx, conv.Messages(), c.toolDefs)
	if err != nil {
		return Reply{}, err
	}

	reply := ParseResponse(body)
	switch {
	case reply.Err != nil:
		c.logger.Warn().Err(reply.Err).Msg("backend returned error")
	case reply.Call == nil:
		ev := c.logger.Debug().Int("text_len", len(reply.Text))
		if len(reply.Text) < 2000 {
			ev = ev.Str("text", reply.Text)
		}
		ev.Msg("no tool call parsed")
	case reply.Call.Repair != RepairNone:
		c.logger.Warn().
			Str("tool", reply.Call.Name).
			Stringer("repair", reply.Call.Repair).
			Int("keys", len(reply.Call.Args)).
			Msg("tool arguments repaired")
	}
	return reply, nil
}
