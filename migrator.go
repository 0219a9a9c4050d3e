package dbferry

import (
	"context"

	"github.com/dbferry/dbferry/internal/config"
	"github.com/dbferry/dbferry/internal/connector"
	"github.com/dbferry/dbferry/internal/descriptor"
	"github.com/dbferry/dbferry/internal/dialect/mysqldialect"
	"github.com/dbferry/dbferry/internal/dialect/pgdialect"
	"github.com/dbferry/dbferry/internal/migerr"
	"github.com/dbferry/dbferry/internal/orchestrator"
	"github.com/dbferry/dbferry/internal/retry"
	"github.com/dbferry/dbferry/internal/typemap"
)

// ConnConfig names one endpoint of a migration. Charset applies to the
// source connection only; Schema applies to the target connection only;
// each is ignored on the endpoint it doesn't apply to.
type ConnConfig struct {
	DSN     string
	Charset string // source: session charset, defaults to utf8mb4
	Schema  string // target: destination schema name
}

// ConnTestResult is the outcome of Migrator.TestConnections.
type ConnTestResult struct {
	SourceOK    bool
	SourceError error
	TargetOK    bool
	TargetError error
}

// Options mirrors the config document's [options] and [type_mappings]
// sections for callers that build a Migrator programmatically instead of
// from a TOML file.
type Options struct {
	OnSchemaExists     string // error|recreate|skip, default "error"
	SchemaOnly         bool
	DataOnly           bool
	Workers            int
	BatchSize          int
	CommitEvery        int // commit a target transaction every N batches, default 1
	UnloggedTables     bool
	PreserveDefaults   bool
	AddUnsignedChecks  bool
	SourceSnapshotMode string // none|single_tx
	ReplicateOnUpdate  bool

	IdentityStyle         string // serial|sql_standard
	CollationMode         string // none|auto
	CollationMap          map[string]string
	TypeOverrides         map[string]string
	EnumMode              string // text|native
	TinyInt1AsBoolean     bool
	Binary16AsUUID        bool
	DatetimeAsTimestamptz bool
	JSONAsJSONB           bool
	UnknownAsText         bool

	BeforeData []string
	AfterData  []string
	BeforeFK   []string
	AfterAll   []string
}

// Result is the aggregate outcome of one Migrate call.
type Result = descriptor.Result

// Migrator drives one migration configuration through its lifecycle:
// connect, plan, and run. It is not safe for concurrent use — build one
// Migrator per migration, and call its methods from a single goroutine.
type Migrator struct {
	source ConnConfig
	target ConnConfig

	include, exclude []string
	opts             Options
	progressFn       func(Event)
}

// NewMigrator validates the two endpoints and returns a Migrator ready for
// TestConnections, ListTables, or Migrate.
func NewMigrator(source, target ConnConfig) (*Migrator, error) {
	if source.DSN == "" {
		return nil, migerr.Config("source dsn is required", nil)
	}
	if target.DSN == "" {
		return nil, migerr.Config("target dsn is required", nil)
	}
	return &Migrator{source: source, target: target}, nil
}

// TestConnections dials both endpoints once (no retry) and reports whether
// each succeeded, without altering either database.
func (m *Migrator) TestConnections(ctx context.Context) ConnTestResult {
	var result ConnTestResult

	srcAdapter := mysqldialect.New(typemap.DefaultOptions())
	dsn, err := sourceDSN(m.source)
	if err != nil {
		result.SourceError = err
	} else if db, err := connector.OpenSource(ctx, srcAdapter, dsn, 1, retry.Policy{MaxAttempts: 1}); err != nil {
		result.SourceError = err
	} else {
		result.SourceOK = true
		db.Close()
	}

	pgAdapter := pgdialect.New()
	if conn, err := connector.OpenTarget(ctx, pgAdapter, m.target.DSN, retry.Policy{MaxAttempts: 1}); err != nil {
		result.TargetError = err
	} else {
		result.TargetOK = true
		conn.Close()
	}

	return result
}

// ListTables introspects every base table in the source database, with row
// counts, without touching the target.
func (m *Migrator) ListTables(ctx context.Context) ([]descriptor.Table, error) {
	srcAdapter := mysqldialect.New(typemap.DefaultOptions())
	dsn, err := sourceDSN(m.source)
	if err != nil {
		return nil, err
	}

	db, err := connector.OpenSource(ctx, srcAdapter, dsn, 1, retry.DefaultPolicy())
	if err != nil {
		return nil, migerr.Connection("open source", err)
	}
	defer db.Close()

	dbName, err := srcAdapter.DatabaseName(dsn)
	if err != nil {
		dbName, err = connector.ExtractMySQLDBName(dsn)
		if err != nil {
			return nil, migerr.Config("determine source database name", err)
		}
	}

	names, err := srcAdapter.IntrospectTables(ctx, db, dbName)
	if err != nil {
		return nil, migerr.Connection("list source tables", err)
	}

	tables := make([]descriptor.Table, 0, len(names))
	for _, name := range names {
		t, err := srcAdapter.IntrospectTable(ctx, db, dbName, name)
		if err != nil {
			return nil, migerr.Mapping(name, "introspect table", err)
		}
		if n, err := srcAdapter.RowCount(ctx, db, dbName, name); err == nil {
			t.EstimatedRowCount = n
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// Preview computes the migration plan (table order, deferred FK groups)
// without connecting to the target or copying any data, the supplemented
// dry-run feature for inspecting a migration before committing to it.
func (m *Migrator) Preview(ctx context.Context) (*descriptor.Plan, error) {
	tables, err := m.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	selected, _ := orchestrator.SelectTables(tableNames(tables), m.include, m.exclude)
	selectedSet := make(map[string]bool, len(selected))
	for _, n := range selected {
		selectedSet[n] = true
	}
	var filtered []descriptor.Table
	for _, t := range tables {
		if selectedSet[t.SourceName] {
			filtered = append(filtered, t)
		}
	}

	ordered, deferredFKs := orchestrator.Order(filtered)

	return &descriptor.Plan{
		Tables:       ordered,
		DeferredFKs:  deferredFKs,
		BatchSize:    m.opts.BatchSize,
		DropTarget:   m.opts.OnSchemaExists == "recreate",
		IncludeIndex: !m.opts.DataOnly,
		IncludeFKs:   !m.opts.DataOnly,
	}, nil
}

// SetSelection restricts the migrated table set to those matching include
// (all tables if empty) minus those matching exclude, using the same
// glob syntax as the config file's include_tables/exclude_tables.
func (m *Migrator) SetSelection(include, exclude []string) {
	m.include = include
	m.exclude = exclude
}

// SetOptions replaces the migration's behavioral options wholesale.
func (m *Migrator) SetOptions(opts Options) {
	m.opts = opts
}

// SetProgressCallback registers fn to receive progress events during
// Migrate. fn is invoked serially; it must not block for long since it
// runs inline with the migration.
func (m *Migrator) SetProgressCallback(fn func(Event)) {
	m.progressFn = fn
}

// Migrate runs the full migration and returns the aggregate result. A
// non-nil error means a run-level failure (configuration, connection,
// introspection, target schema preparation, a hook, or the post-step);
// per-table failures are reported in Result.Tables instead.
func (m *Migrator) Migrate(ctx context.Context) (*Result, error) {
	sourceCfg := config.SourceConfig{DSN: m.source.DSN, Charset: m.source.Charset}
	targetCfg := config.TargetConfig{DSN: m.target.DSN, Schema: m.target.Schema}

	optionsCfg := config.OptionsConfig{
		OnSchemaExists:     m.opts.OnSchemaExists,
		SchemaOnly:         m.opts.SchemaOnly,
		DataOnly:           m.opts.DataOnly,
		Workers:            m.opts.Workers,
		BatchSize:          m.opts.BatchSize,
		CommitEvery:        m.opts.CommitEvery,
		UnloggedTables:     m.opts.UnloggedTables,
		PreserveDefaults:   m.opts.PreserveDefaults,
		AddUnsignedChecks:  m.opts.AddUnsignedChecks,
		SourceSnapshotMode: m.opts.SourceSnapshotMode,
		IncludeTables:      m.include,
		ExcludeTables:      m.exclude,
		ReplicateOnUpdate:  m.opts.ReplicateOnUpdate,
		BeforeData:         m.opts.BeforeData,
		AfterData:          m.opts.AfterData,
		BeforeFK:           m.opts.BeforeFK,
		AfterAll:           m.opts.AfterAll,
	}

	typesCfg := config.TypesConfig{
		TinyInt1AsBoolean:     m.opts.TinyInt1AsBoolean,
		Binary16AsUUID:        m.opts.Binary16AsUUID,
		DatetimeAsTimestamptz: m.opts.DatetimeAsTimestamptz,
		JSONAsJSONB:           m.opts.JSONAsJSONB,
		EnumMode:              m.opts.EnumMode,
		UnknownAsText:         m.opts.UnknownAsText,
		IdentityStyle:         m.opts.IdentityStyle,
		CollationMode:         m.opts.CollationMode,
		CollationMap:          m.opts.CollationMap,
		Overrides:             m.opts.TypeOverrides,
	}

	cfg, err := config.New(sourceCfg, targetCfg, optionsCfg, typesCfg, config.LoggingConfig{})
	if err != nil {
		return nil, migerr.Config("build migration configuration", err)
	}

	var progress orchestrator.ProgressFunc
	if m.progressFn != nil {
		progress = m.progressFn
	}

	return orchestrator.Run(ctx, cfg, progress)
}

func sourceDSN(c ConnConfig) (string, error) {
	if c.Charset == "" {
		return c.DSN, nil
	}
	dsn, err := mysqldialect.WithCharset(c.DSN, c.Charset)
	if err != nil {
		return "", migerr.Config("apply source charset", err)
	}
	return dsn, nil
}

func tableNames(tables []descriptor.Table) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.SourceName
	}
	return names
}
