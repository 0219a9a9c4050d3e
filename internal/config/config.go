// Package config loads the TOML migration document, ported from the
// teacher's config.go with the field layout generalized to the
// specification's source/target/options/type_mappings/logging sections,
// plus the supplemented ledger section. The teacher's md.Undecoded()
// unknown-key rejection and configDir-relative hook path resolution are
// kept.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the full TOML-driven migration document.
type Config struct {
	Source  SourceConfig  `toml:"source"`
	Target  TargetConfig  `toml:"target"`
	Options OptionsConfig `toml:"options"`
	Types   TypesConfig   `toml:"type_mappings"`
	Logging LoggingConfig `toml:"logging"`
	Ledger  LedgerConfig  `toml:"ledger"`

	configDir string
}

type SourceConfig struct {
	DSN     string `toml:"dsn"`
	Charset string `toml:"charset"`
}

type TargetConfig struct {
	DSN    string `toml:"dsn"`
	Schema string `toml:"schema"`
}

type OptionsConfig struct {
	OnSchemaExists     string   `toml:"on_schema_exists"` // error|recreate|skip
	SchemaOnly         bool     `toml:"schema_only"`
	DataOnly           bool     `toml:"data_only"`
	Workers            int      `toml:"workers"`
	BatchSize          int      `toml:"batch_size"`
	CommitEvery        int      `toml:"commit_every"` // commit a target transaction every N batches
	UnloggedTables     bool     `toml:"unlogged_tables"`
	PreserveDefaults   bool     `toml:"preserve_defaults"`
	AddUnsignedChecks  bool     `toml:"add_unsigned_checks"`
	SourceSnapshotMode string   `toml:"source_snapshot_mode"` // none|single_tx
	IncludeTables      []string `toml:"include_tables"`
	ExcludeTables      []string `toml:"exclude_tables"`
	ReplicateOnUpdate  bool     `toml:"replicate_on_update_current_timestamp"`

	BeforeData []string `toml:"before_data"`
	AfterData  []string `toml:"after_data"`
	BeforeFK   []string `toml:"before_fk"`
	AfterAll   []string `toml:"after_all"`
}

// TypesConfig controls non-lossless type coercions and the identity column
// rendering style. IdentityStyle is a supplemented feature (see
// original_source/migrators/mysql_to_postgresql.py): "serial" renders
// SERIAL/BIGSERIAL columns, "sql_standard" renders GENERATED ... AS
// IDENTITY, matching the two identity styles Postgres itself supports.
type TypesConfig struct {
	TinyInt1AsBoolean     bool              `toml:"tinyint1_as_boolean"`
	Binary16AsUUID        bool              `toml:"binary16_as_uuid"`
	DatetimeAsTimestamptz bool              `toml:"datetime_as_timestamptz"`
	JSONAsJSONB           bool              `toml:"json_as_jsonb"`
	EnumMode              string            `toml:"enum_mode"` // text|native
	UnknownAsText         bool              `toml:"unknown_as_text"`
	IdentityStyle         string            `toml:"identity_style"` // serial|sql_standard
	CollationMode         string            `toml:"collation_mode"` // none|auto
	CollationMap          map[string]string `toml:"collation_map"`
	Overrides             map[string]string `toml:"overrides"` // "mysql_type[:modifier]" -> pg type
}

type LoggingConfig struct {
	Level  string `toml:"level"`  // debug|info|warn|error
	Format string `toml:"format"` // text|json
}

// LedgerConfig is a supplemented feature: an on-disk record of past runs
// backed by internal/ledger (modernc.org/sqlite), for migration-history
// inspection tooling.
type LedgerConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads a TOML config file and returns a Config with defaults applied
// and cross-field validation run, ported from the teacher's loadConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Config{
		Options: OptionsConfig{
			OnSchemaExists:     "error",
			SourceSnapshotMode: "none",
			PreserveDefaults:   true,
			BatchSize:          1000,
			CommitEvery:        1,
		},
		Types:   defaultTypesConfig(),
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	if err := cfg.applyDefaultsAndValidate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// New builds a Config directly from in-memory sections rather than a TOML
// file, for the programmatic Migrator API (root package) which never reads
// a config document off disk. Hook paths configured this way resolve
// relative to the process's working directory, since there is no config
// file location to anchor them to.
func New(source SourceConfig, target TargetConfig, options OptionsConfig, types TypesConfig, logging LoggingConfig) (*Config, error) {
	cfg := &Config{Source: source, Target: target, Options: options, Types: types, Logging: logging}
	if cfg.Options.SourceSnapshotMode == "" {
		cfg.Options.SourceSnapshotMode = "none"
	}
	if cfg.Types.EnumMode == "" {
		cfg.Types.EnumMode = "text"
	}
	if cfg.Types.IdentityStyle == "" {
		cfg.Types.IdentityStyle = "serial"
	}
	if cfg.Types.CollationMode == "" {
		cfg.Types.CollationMode = "none"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if err := cfg.applyDefaultsAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaultsAndValidate() error {
	if c.Options.Workers <= 0 {
		c.Options.Workers = defaultWorkers()
	}
	if c.Options.BatchSize <= 0 {
		c.Options.BatchSize = 1000
	}
	if c.Options.CommitEvery <= 0 {
		c.Options.CommitEvery = 1
	}

	c.Target.Schema = strings.TrimSpace(c.Target.Schema)
	if c.Target.Schema == "" {
		return fmt.Errorf("target.schema is required")
	}

	if c.Options.OnSchemaExists == "" {
		c.Options.OnSchemaExists = "error"
	}
	switch c.Options.OnSchemaExists {
	case "error", "recreate", "skip":
	default:
		return fmt.Errorf("options.on_schema_exists must be one of: error, recreate, skip")
	}
	switch c.Options.SourceSnapshotMode {
	case "none", "single_tx":
	default:
		return fmt.Errorf("options.source_snapshot_mode must be one of: none, single_tx")
	}
	switch c.Types.EnumMode {
	case "text", "native":
	default:
		return fmt.Errorf("type_mappings.enum_mode must be one of: text, native")
	}
	switch c.Types.IdentityStyle {
	case "serial", "sql_standard":
	default:
		return fmt.Errorf("type_mappings.identity_style must be one of: serial, sql_standard")
	}
	switch c.Types.CollationMode {
	case "none", "auto":
	default:
		return fmt.Errorf("type_mappings.collation_mode must be one of: none, auto")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be one of: text, json")
	}

	if c.Options.SchemaOnly && c.Options.DataOnly {
		return fmt.Errorf("options.schema_only and options.data_only are mutually exclusive")
	}

	if c.Source.DSN == "" {
		return fmt.Errorf("source.dsn is required")
	}
	if c.Source.Charset == "" {
		c.Source.Charset = "utf8mb4"
	} else if !strings.EqualFold(c.Source.Charset, "utf8mb4") && !strings.EqualFold(c.Source.Charset, "utf8") {
		return fmt.Errorf("source.charset must negotiate a Unicode session charset, got %q", c.Source.Charset)
	}
	if c.Target.DSN == "" {
		return fmt.Errorf("target.dsn is required")
	}

	if c.Ledger.Enabled && c.Ledger.Path == "" {
		c.Ledger.Path = filepath.Join(c.configDir, "dbferry-ledger.sqlite")
	}

	return nil
}

// ResolvePath resolves a hook SQL file path relative to the config file's
// own directory, ported from the teacher's resolvePath.
func (c *Config) ResolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.configDir, p)
}

func defaultWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	if n > 8 {
		return 8
	}
	return n
}

func defaultTypesConfig() TypesConfig {
	return TypesConfig{
		EnumMode:      "text",
		IdentityStyle: "serial",
		CollationMode: "none",
		Overrides:     map[string]string{},
		CollationMap:  map[string]string{},
	}
}
