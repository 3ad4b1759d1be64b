package mcp

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/fastctx/agent"
)

// connect runs a server on one end of two pipes and returns a client on
// the other.
func connect(t *testing.T, s Searcher) *Client {
	t.Helper()
	toServer, clientOut := io.Pipe()
	fromServer, serverOut := io.Pipe()

	srv := NewServer(NewTransport(toServer, serverOut), s, "0.1.0", zerolog.Nop())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(context.Background())
		serverOut.Close()
	}()

	c := NewConnClient(fromServer, clientOut, ModeHeader)
	t.Cleanup(func() {
		c.Close()
		assert.NoError(t, <-done)
	})
	return c
}

func TestClientRoundTrip(t *testing.T) {
	s := &fakeSearcher{resp: agent.NewTimeoutResponse("Max turns reached without answer", agent.Metadata{})}
	c := connect(t, s)
	ctx := context.Background()

	name, err := c.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, ServerName, name)

	require.NoError(t, c.Ping(ctx))

	infos, err := c.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, SearchToolName, infos[0].Name)

	res, err := c.CallTool(ctx, SearchToolName, map[string]any{"query": "q", "project_path": "/p"})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "Max turns reached without answer", res.Text())
}

func TestClientRPCError(t *testing.T) {
	c := connect(t, &fakeSearcher{})

	_, err := c.CallTool(context.Background(), "nope", map[string]any{})
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, CodeInvalidParams, rpcErr.Code)
	assert.Equal(t, "MCP error -32602: Unknown tool: nope", err.Error())
}
