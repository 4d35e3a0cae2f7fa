// Package postgres implements the storage.Backend interface using GORM/PostgreSQL.
// Writes go through the shared GORM backend's queues and writer goroutine.
package postgres

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/livepid/tracker/internal/database"
	gormstorage "github.com/livepid/tracker/internal/storage/gorm"
)

// reportIndexes speed up the per-session outcome counts of the report command.
var reportIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_resolution_session_outcome ON resolutions (session_id, outcome);`,
	`CREATE INDEX IF NOT EXISTS idx_statuschange_session_tick ON status_changes (session_id, tick);`,
}

// Backend wraps the GORM backend with a Postgres connection.
type Backend struct {
	*gormstorage.Backend
	deps    gormstorage.Dependencies
	connect func(zerolog.Logger) (*gorm.DB, error)
}

// New creates a Postgres backend. When deps.DB is nil, Init connects using
// the db.* configuration.
func New(deps gormstorage.Dependencies) *Backend {
	return &Backend{
		Backend: gormstorage.New(deps),
		deps:    deps,
		connect: database.GetPostgresDB,
	}
}

// Init connects if needed, migrates the schema and starts the writer.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := b.connect(b.deps.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		b.deps.DB = db
		b.Backend = gormstorage.New(b.deps)
	}

	if err := b.Backend.Init(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	for _, stmt := range reportIndexes {
		if err := b.deps.DB.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
