package database

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/livepid/tracker/internal/model"
)

// MigratedSuffix is appended to journal files after a successful import.
const MigratedSuffix = ".migrated"

const importBatchSize = 500

// ImportResult counts the rows copied by ImportJournal.
type ImportResult struct {
	Sessions      int
	Resolutions   int
	StatusChanges int
}

// ImportJournal copies every session with its records from src into dst in
// one transaction. Rows get new ids in dst.
func ImportJournal(src, dst *gorm.DB, log zerolog.Logger) (ImportResult, error) {
	var res ImportResult

	var sessions []model.Session
	err := src.Preload("Resolutions").Preload("StatusChanges").Order("id ASC").Find(&sessions).Error
	if err != nil {
		return res, fmt.Errorf("error reading sessions: %w", err)
	}
	log.Info().Int("count", len(sessions)).Str("database", src.Name()).Msg("Found sessions")

	err = dst.Transaction(func(tx *gorm.DB) error {
		for i := range sessions {
			s := sessions[i]
			resolutions, changes := s.Resolutions, s.StatusChanges
			s.ID = 0
			s.Resolutions, s.StatusChanges = nil, nil

			if err := tx.Create(&s).Error; err != nil {
				return fmt.Errorf("error importing session %q: %w", s.Name, err)
			}

			for j := range resolutions {
				resolutions[j].ID = 0
				resolutions[j].SessionID = s.ID
			}
			for j := range changes {
				changes[j].ID = 0
				changes[j].SessionID = s.ID
			}

			if len(resolutions) > 0 {
				if err := tx.Omit("Session").CreateInBatches(resolutions, importBatchSize).Error; err != nil {
					return fmt.Errorf("error importing resolutions of %q: %w", s.Name, err)
				}
			}
			if len(changes) > 0 {
				if err := tx.Omit("Session").CreateInBatches(changes, importBatchSize).Error; err != nil {
					return fmt.Errorf("error importing status changes of %q: %w", s.Name, err)
				}
			}

			res.Sessions++
			res.Resolutions += len(resolutions)
			res.StatusChanges += len(changes)
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	log.Info().
		Int("sessions", res.Sessions).
		Int("resolutions", res.Resolutions).
		Int("statusChanges", res.StatusChanges).
		Msg("Imported journal")
	return res, nil
}

// MigrateBackups imports every .db journal in dir into dst and renames each
// imported file with MigratedSuffix. It stops at the first failing file.
func MigrateBackups(dir string, dst *gorm.DB, log zerolog.Logger) ([]string, error) {
	paths, err := GetBackupDBPaths(dir)
	if err != nil {
		return nil, fmt.Errorf("error getting backup database paths: %w", err)
	}
	if err := Migrate(dst, log); err != nil {
		return nil, err
	}

	migrated := make([]string, 0, len(paths))
	for _, path := range paths {
		if err := migrateBackup(path, dst, log); err != nil {
			return migrated, err
		}
		migrated = append(migrated, path)
	}

	log.Info().Int("count", len(migrated)).Strs("paths", migrated).
		Msg("Successfully migrated backups, it's recommended to delete these to avoid future data duplication")
	return migrated, nil
}

func migrateBackup(path string, dst *gorm.DB, log zerolog.Logger) error {
	src, err := GetSqliteDB(path, log)
	if err != nil {
		return fmt.Errorf("error opening %s: %w", path, err)
	}

	_, importErr := ImportJournal(src, dst, log)

	if sqlDB, err := src.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Error closing sqlite connection")
		}
	}
	if importErr != nil {
		return fmt.Errorf("error migrating %s: %w", path, importErr)
	}

	if err := os.Rename(path, path+MigratedSuffix); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Error renaming sqlite file")
	}
	return nil
}
