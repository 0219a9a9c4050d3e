package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dbferry/dbferry"
	"github.com/dbferry/dbferry/internal/config"
)

func migratorFromConfig(cfg *config.Config) (*dbferry.Migrator, error) {
	m, err := dbferry.NewMigrator(
		dbferry.ConnConfig{DSN: cfg.Source.DSN, Charset: cfg.Source.Charset},
		dbferry.ConnConfig{DSN: cfg.Target.DSN, Schema: cfg.Target.Schema},
	)
	if err != nil {
		return nil, err
	}
	m.SetSelection(cfg.Options.IncludeTables, cfg.Options.ExcludeTables)
	m.SetOptions(dbferry.Options{
		OnSchemaExists:        cfg.Options.OnSchemaExists,
		SchemaOnly:            cfg.Options.SchemaOnly,
		DataOnly:              cfg.Options.DataOnly,
		Workers:               cfg.Options.Workers,
		BatchSize:             cfg.Options.BatchSize,
		CommitEvery:           cfg.Options.CommitEvery,
		UnloggedTables:        cfg.Options.UnloggedTables,
		PreserveDefaults:      cfg.Options.PreserveDefaults,
		AddUnsignedChecks:     cfg.Options.AddUnsignedChecks,
		SourceSnapshotMode:    cfg.Options.SourceSnapshotMode,
		ReplicateOnUpdate:     cfg.Options.ReplicateOnUpdate,
		IdentityStyle:         cfg.Types.IdentityStyle,
		CollationMode:         cfg.Types.CollationMode,
		CollationMap:          cfg.Types.CollationMap,
		TypeOverrides:         cfg.Types.Overrides,
		EnumMode:              cfg.Types.EnumMode,
		TinyInt1AsBoolean:     cfg.Types.TinyInt1AsBoolean,
		Binary16AsUUID:        cfg.Types.Binary16AsUUID,
		DatetimeAsTimestamptz: cfg.Types.DatetimeAsTimestamptz,
		JSONAsJSONB:           cfg.Types.JSONAsJSONB,
		UnknownAsText:         cfg.Types.UnknownAsText,
		BeforeData:            cfg.Options.BeforeData,
		AfterData:             cfg.Options.AfterData,
		BeforeFK:              cfg.Options.BeforeFK,
		AfterAll:              cfg.Options.AfterAll,
	})
	return m, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func listTablesHandler() func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		configPath, err := req.RequireString("config_path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load config: %v", err)), nil
		}
		m, err := migratorFromConfig(cfg)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		tables, err := m.ListTables(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list tables: %v", err)), nil
		}
		return jsonResult(tables)
	}
}

func previewHandler() func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		configPath, err := req.RequireString("config_path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load config: %v", err)), nil
		}
		m, err := migratorFromConfig(cfg)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		plan, err := m.Preview(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("preview: %v", err)), nil
		}
		return jsonResult(plan)
	}
}

func migrateHandler() func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		configPath, err := req.RequireString("config_path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load config: %v", err)), nil
		}
		m, err := migratorFromConfig(cfg)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := m.Migrate(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("migrate: %v", err)), nil
		}
		return jsonResult(result)
	}
}

func ledgerStatusHandler(cfg *serverConfig) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := cfg.DefaultLedgerPath
		limit := 20

		if args, ok := req.Params.Arguments.(map[string]any); ok {
			if p, ok := args["ledger_path"].(string); ok && p != "" {
				path = p
			}
			if n, ok := args["limit"].(float64); ok && n > 0 {
				limit = int(n)
			}
		}
		if path == "" {
			return mcp.NewToolResultError("ledger_path not given and no default_ledger_path configured"), nil
		}

		runs, err := queryLedger(ctx, path, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query ledger: %v", err)), nil
		}
		return jsonResult(runs)
	}
}
