// MCP server configuration file support.
//
// Reads and writes the Anthropic-style host configuration format:
//
//	{
//	  "mcpServers": {
//	    "fastctx": {
//	      "command": "/usr/local/bin/fastctx",
//	      "args": ["serve"],
//	      "env": {"RELAY_URL": "http://localhost:3000"}
//	    }
//	  }
//	}
package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Config represents the MCP configuration file format.
type Config struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

// ServerConfig represents a single MCP server configuration.
type ServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

// LoadConfig loads MCP configuration from a JSON file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// Registration builds the host entry that launches this server.
func Registration(name, executable string, env map[string]string) *Config {
	return &Config{MCPServers: map[string]ServerConfig{
		name: {Command: executable, Args: []string{"serve"}, Env: env},
	}}
}

// Server returns the named server entry.
func (c *Config) Server(name string) (ServerConfig, error) {
	server, ok := c.MCPServers[name]
	if !ok {
		return ServerConfig{}, fmt.Errorf("no MCP server named %q", name)
	}
	if server.Command == "" {
		return ServerConfig{}, fmt.Errorf("MCP server %q has no command", name)
	}
	return server, nil
}

// Names returns the configured server names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.MCPServers))
	for name := range c.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// JSON renders the configuration indented for display.
func (c *Config) JSON() (string, error) {
	out, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
