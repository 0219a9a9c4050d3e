package main

import (
	"flag"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
)

func main() {
	configPath := flag.String("config", "", "path to dbferry-mcp server config (yaml)")
	flag.Parse()

	cfg, err := loadServerConfig(*configPath)
	if err != nil {
		slog.Error("config error", "error", err)
		return
	}

	s := server.NewMCPServer(
		"dbferry-mcp",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	registerTools(s, cfg)
	slog.Info("dbferry-mcp ready", "default_ledger_path", cfg.DefaultLedgerPath)

	if err := server.ServeStdio(s); err != nil {
		fmt.Printf("server error: %v\n", err)
	}
}
