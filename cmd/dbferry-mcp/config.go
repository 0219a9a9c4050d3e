// Command dbferry-mcp exposes the dbferry migration engine as an MCP tool
// server, so an agent can inspect and drive migrations without a terminal.
// It is a wrapper like cmd/dbferry: it consumes only the public dbferry
// API and internal/config, never the engine's internal packages directly.
package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// serverConfig is dbferry-mcp's own small YAML document, distinct from the
// TOML migration config each tool call names by path. It only configures
// the server process itself.
type serverConfig struct {
	DefaultLedgerPath string `yaml:"default_ledger_path"`
}

func loadServerConfig(path string) (*serverConfig, error) {
	if path == "" {
		return &serverConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read server config: %w", err)
	}
	var cfg serverConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse server config: %w", err)
	}
	return &cfg, nil
}
