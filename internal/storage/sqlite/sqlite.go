// Package sqlitestorage implements the storage.Backend interface using SQLite.
// It wraps the GORM backend via composition. With no file path the journal
// lives in memory and is dumped per session via VACUUM INTO.
package sqlitestorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/livepid/tracker/internal/database"
	gormstorage "github.com/livepid/tracker/internal/storage/gorm"
	"github.com/livepid/tracker/pkg/core"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	Path         string        // journal file; empty keeps it in memory
	DumpDir      string        // where in-memory journals are dumped
	DumpInterval time.Duration // periodic dump while a session runs
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db  *gorm.DB
	cfg Config
	log zerolog.Logger

	mu       sync.Mutex
	dumpPath string

	stopChan chan struct{}
	stopped  sync.WaitGroup
}

// New opens the SQLite database and wraps it in a GORM backend.
func New(cfg Config, log zerolog.Logger) (*Backend, error) {
	db, err := database.GetSqliteDB(cfg.Path, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{DB: db, Logger: log}),
		db:      db,
		cfg:     cfg,
		log:     log,
	}, nil
}

func (b *Backend) inMemory() bool {
	return b.cfg.Path == ""
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.inMemory() && b.cfg.DumpDir != "" && b.cfg.DumpInterval > 0 {
		b.stopChan = make(chan struct{})
		b.stopped.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump goroutine, flushes and writes a last dump.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		b.stopped.Wait()
		b.stopChan = nil
	}
	if err := b.Backend.Close(); err != nil {
		return err
	}
	if err := b.dump(); err != nil {
		return err
	}

	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// StartSession starts the session and picks its dump file.
func (b *Backend) StartSession(s *core.Session) error {
	if err := b.Backend.StartSession(s); err != nil {
		return err
	}
	if b.inMemory() && b.cfg.DumpDir != "" {
		b.mu.Lock()
		b.dumpPath = database.DumpFileName(b.cfg.DumpDir, s.Name, s.StartTime)
		b.mu.Unlock()
	}
	return nil
}

// EndSession ends the session and dumps the journal.
func (b *Backend) EndSession() error {
	if err := b.Backend.EndSession(); err != nil {
		return err
	}
	return b.dump()
}

// ExportedFilePath returns the dump file of the current or last session.
func (b *Backend) ExportedFilePath() string {
	if !b.inMemory() {
		return b.cfg.Path
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dumpPath
}

func (b *Backend) dump() error {
	if !b.inMemory() {
		return nil
	}
	path := b.ExportedFilePath()
	if path == "" {
		return nil
	}

	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, path); err != nil {
		return err
	}
	b.log.Debug().Str("path", path).Dur("took", time.Since(start)).Msg("Dumped to disk")
	return nil
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.stopped.Done()

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if b.SessionID() == 0 {
				continue
			}
			b.Flush()
			if err := b.dump(); err != nil {
				b.log.Error().Err(err).Msg("Error dumping to disk")
			}
		}
	}
}
