package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"gorm.io/gorm"

	"github.com/livepid/tracker/internal/config"
	"github.com/livepid/tracker/internal/database"
	"github.com/livepid/tracker/internal/report"
)

// runReport prints per-session outcome counts from a journal.
func runReport(args []string, out io.Writer) int {
	flags := pflag.NewFlagSet("report", pflag.ContinueOnError)
	dbPath := flags.String("db", "", "SQLite journal file")
	usePostgres := flags.Bool("postgres", false, "read the Postgres journal configured in db.*")
	configDir := flags.String("config", ".", "directory containing "+config.FileName)
	if err := flags.Parse(args); err != nil {
		return 2
	}

	log := cliLogger()

	var db *gorm.DB
	var err error
	switch {
	case *usePostgres:
		if err := config.Load(*configDir); err != nil {
			log.Warn().Err(err).Msg("Failed to load config, using defaults!")
		}
		db, err = database.GetPostgresDB(log)
	case *dbPath != "":
		if _, statErr := os.Stat(*dbPath); statErr != nil {
			fmt.Fprintf(os.Stderr, "journal not found: %v\n", statErr)
			return 1
		}
		db, err = database.GetSqliteDB(*dbPath, log)
	default:
		fmt.Fprintln(os.Stderr, "report: --db or --postgres is required")
		flags.PrintDefaults()
		return 2
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open journal: %v\n", err)
		return 1
	}
	defer closeDB(db)

	reports, err := report.Summarize(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to summarize journal: %v\n", err)
		return 1
	}
	if len(reports) == 0 {
		fmt.Fprintln(out, "No sessions recorded.")
		return 0
	}
	if err := report.Write(out, reports); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
		return 1
	}
	return 0
}

// runMigrateBackups imports dumped SQLite journals into Postgres.
func runMigrateBackups(args []string) int {
	flags := pflag.NewFlagSet("migratebackups", pflag.ContinueOnError)
	dir := flags.String("dir", "", "directory with dumped .db journals (default storage.sqlite.dumpDir)")
	configDir := flags.String("config", ".", "directory containing "+config.FileName)
	if err := flags.Parse(args); err != nil {
		return 2
	}

	log := cliLogger()
	if err := config.Load(*configDir); err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults!")
	}
	if *dir == "" {
		*dir = config.GetStorageConfig().SQLite.DumpDir
	}

	db, err := database.GetPostgresDB(log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to Postgres")
		return 1
	}
	defer closeDB(db)

	if _, err := database.MigrateBackups(*dir, db, log); err != nil {
		log.Error().Err(err).Msg("Failed to migrate backups")
		return 1
	}
	log.Info().Msg("Finished migrating backups.")
	return 0
}

func cliLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
