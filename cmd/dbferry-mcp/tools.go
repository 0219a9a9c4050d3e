package main

import (
	goMCP "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// registerTools wires the four agent-facing tools onto s. Each tool names
// a migration TOML config by path rather than embedding connection
// parameters directly, so an agent never sees raw credentials in a tool
// call.
func registerTools(s *server.MCPServer, cfg *serverConfig) {
	listTablesTool := goMCP.NewTool("list_tables",
		goMCP.WithDescription("Introspect the source database named by a migration config and list its tables with row counts"),
		goMCP.WithString("config_path",
			goMCP.Required(),
			goMCP.Description("Path to the migration TOML config file"),
		),
	)

	previewTool := goMCP.NewTool("preview_migration",
		goMCP.WithDescription("Compute the migration plan (table order, deferred foreign key groups) without touching the target database"),
		goMCP.WithString("config_path",
			goMCP.Required(),
			goMCP.Description("Path to the migration TOML config file"),
		),
	)

	migrateTool := goMCP.NewTool("migrate",
		goMCP.WithDescription("Run the migration described by a config file to completion and report the result"),
		goMCP.WithString("config_path",
			goMCP.Required(),
			goMCP.Description("Path to the migration TOML config file"),
		),
	)

	ledgerTool := goMCP.NewTool("ledger_status",
		goMCP.WithDescription("List recent recorded migration runs from a ledger database"),
		goMCP.WithString("ledger_path",
			goMCP.Description("Path to the ledger sqlite file; defaults to the server's configured default_ledger_path"),
		),
		goMCP.WithNumber("limit",
			goMCP.Description("Maximum number of runs to return (default 20)"),
		),
	)

	s.AddTool(listTablesTool, listTablesHandler())
	s.AddTool(previewTool, previewHandler())
	s.AddTool(migrateTool, migrateHandler())
	s.AddTool(ledgerTool, ledgerStatusHandler(cfg))
}
