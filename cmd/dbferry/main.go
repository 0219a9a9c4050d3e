// Command dbferry is the TOML-config-driven CLI wrapper around the
// dbferry migration engine. It resolves a config document, drives a
// Migrator through connect/plan/migrate, renders progress to the
// terminal, and exits with a code identifying the outcome.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dbferry/dbferry"
	"github.com/dbferry/dbferry/internal/config"
	"github.com/dbferry/dbferry/internal/ledger"
	"github.com/dbferry/dbferry/internal/migerr"
)

// Exit codes, per the external interface contract: 0 success, 1
// configuration error, 2 connection error, 3 partial migration, 4
// cancelled.
const (
	exitSuccess = 0
	exitConfig  = 1
	exitConn    = 2
	exitPartial = 3
	exitCancel  = 4
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "dbferry [config.toml]",
	Short: "MySQL to PostgreSQL migration tool",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMigration,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to migration TOML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func runMigration(cmd *cobra.Command, args []string) error {
	cfgPath := configPath
	if len(args) > 0 {
		cfgPath = args[0]
	}
	if cfgPath == "" {
		return migerr.Config("config file required: dbferry <config.toml> or dbferry --config <config.toml>", nil)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return migerr.Config("load config", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	log.Printf("dbferry — MySQL to PostgreSQL migration")
	log.Printf("config: workers=%d schema=%s on_schema_exists=%s batch_size=%d identity_style=%s",
		cfg.Options.Workers, cfg.Target.Schema, cfg.Options.OnSchemaExists, cfg.Options.BatchSize, cfg.Types.IdentityStyle)

	m, err := dbferry.NewMigrator(
		dbferry.ConnConfig{DSN: cfg.Source.DSN, Charset: cfg.Source.Charset},
		dbferry.ConnConfig{DSN: cfg.Target.DSN, Schema: cfg.Target.Schema},
	)
	if err != nil {
		return err
	}
	m.SetSelection(cfg.Options.IncludeTables, cfg.Options.ExcludeTables)
	m.SetOptions(optionsFromConfig(cfg))

	t := newTracker()
	m.SetProgressCallback(t.onEvent)

	result, err := m.Migrate(ctx)
	if err != nil {
		return err
	}

	log.Printf("migration completed in %s: %s rows across %d tables (%d ok, %d failed, %d skipped, %d cancelled)",
		time.Since(start).Round(time.Millisecond),
		humanize.Comma(result.TotalRows), len(result.Tables),
		result.SuccessCount, result.FailedCount, result.SkippedCount, result.CancelCount)

	if cfg.Ledger.Enabled {
		if err := recordLedger(cfg, cfgPath, result); err != nil {
			log.Printf("WARN: ledger: %v", err)
		}
	}

	for _, tr := range result.Tables {
		if tr.Error != "" {
			log.Printf("  FAILED %s: %s", tr.Table, tr.Error)
		}
	}

	if result.CancelCount > 0 {
		return migerr.Cancelled("")
	}
	if result.Failed() {
		return fmt.Errorf("%d table(s) failed to migrate", result.FailedCount)
	}
	return nil
}

func recordLedger(cfg *config.Config, cfgPath string, result *dbferry.Result) error {
	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.RecordRun(context.Background(), cfgPath, result)
}

func optionsFromConfig(cfg *config.Config) dbferry.Options {
	return dbferry.Options{
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
	}
}

func exitCodeFor(err error) int {
	switch {
	case migerr.IsKind(err, migerr.KindConfig):
		return exitConfig
	case migerr.IsKind(err, migerr.KindConnection):
		return exitConn
	case migerr.IsKind(err, migerr.KindCancelled), errors.Is(err, context.Canceled):
		return exitCancel
	case err != nil:
		// A non-typed error from runMigration means some tables failed;
		// everything fatal enough to abort migrate() itself is typed above.
		return exitPartial
	default:
		return exitSuccess
	}
}
