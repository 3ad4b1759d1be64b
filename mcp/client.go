// MCP client used to probe servers, including this one.
//
// Information Hiding:
// - Process management hidden
// - Request ID tracking hidden
// - Skipping of unrelated messages hidden

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
)

// Client communicates with an MCP server via JSON-RPC.
type Client struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	transport *Transport
	requestID uint64
	mu        sync.Mutex

	serverName string
}

// NewClient starts command as an MCP server on stdin/stdout and
// initializes it. env entries are added to the current environment.
func NewClient(ctx context.Context, server ServerConfig) (*Client, error) {
	cmd := exec.CommandContext(ctx, server.Command, server.Args...)
	cmd.Stderr = os.Stderr
	if len(server.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range server.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to start MCP server: %w", err)
	}

	client := NewConnClient(stdout, stdin, ModeLine)
	client.cmd = cmd

	if _, err := client.Initialize(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize MCP client: %w", err)
	}

	return client, nil
}

// NewConnClient creates a client over an existing connection using the
// given framing. Initialize is not called.
func NewConnClient(r io.Reader, w io.WriteCloser, mode Mode) *Client {
	return &Client{
		stdin:     w,
		transport: NewTransportMode(r, w, mode),
	}
}

// Initialize performs the initialize handshake and returns the server info.
func (c *Client) Initialize(ctx context.Context) (name string, err error) {
	params := map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "fastctx-probe",
			"version": "0.1.0",
		},
	}

	result, err := c.call(ctx, "initialize", params)
	if err != nil {
		return "", err
	}

	var init initializeResult
	if err := json.Unmarshal(result, &init); err != nil {
		return "", fmt.Errorf("failed to parse initialize result: %w", err)
	}
	if err := c.notify("notifications/initialized"); err != nil {
		return "", err
	}
	c.serverName = init.ServerInfo.Name
	return c.serverName, nil
}

// ServerName returns the name the server reported during initialization.
func (c *Client) ServerName() string {
	return c.serverName
}

// Ping checks that the server is responsive.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, "ping", nil)
	return err
}

// ListTools returns all tools available on the MCP server.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	result, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}

	var toolsResult toolsListResult
	if err := json.Unmarshal(result, &toolsResult); err != nil {
		return nil, fmt.Errorf("failed to parse tools list: %w", err)
	}

	return toolsResult.Tools, nil
}

// CallTool calls a tool on the MCP server with the given arguments.
func (c *Client) CallTool(ctx context.Context, name string, arguments any) (ToolResult, error) {
	params := map[string]any{
		"name":      name,
		"arguments": arguments,
	}

	raw, err := c.call(ctx, "tools/call", params)
	if err != nil {
		return ToolResult{}, err
	}

	var result ToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return ToolResult{}, fmt.Errorf("failed to parse tool result: %w", err)
	}
	return result, nil
}

// call sends a JSON-RPC request and waits for the response with its id.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	c.requestID++
	id := strconv.FormatUint(c.requestID, 10)
	if err := c.send(Request{
		JSONRPC: jsonrpcVersion,
		ID:      json.RawMessage(id),
		Method:  method,
		Params:  marshalParams(params),
	}); err != nil {
		return nil, err
	}

	for {
		msg, err := c.transport.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		var response struct {
			ID     json.RawMessage `json:"id"`
			Result json.RawMessage `json:"result"`
			Error  *RPCError       `json:"error"`
		}
		if err := json.Unmarshal(msg, &response); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if string(response.ID) != id {
			continue
		}
		if response.Error != nil {
			return nil, response.Error
		}
		return response.Result, nil
	}
}

func (c *Client) notify(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(Request{JSONRPC: jsonrpcVersion, Method: method})
}

func (c *Client) send(req Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	if err := c.transport.WriteMessage(payload); err != nil {
		return fmt.Errorf("failed to write request: %w", err)
	}
	return nil
}

func marshalParams(params any) json.RawMessage {
	if params == nil {
		return nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	return raw
}

// Close stops the MCP server process and releases resources.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stdin != nil {
		c.stdin.Close()
	}

	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
		_ = c.cmd.Wait()
	}

	return nil
}
