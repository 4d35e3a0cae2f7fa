// Package gormstorage implements storage.Backend on top of any GORM dialect
// with internal queues and a background DB writer goroutine.
package gormstorage

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/livepid/tracker/internal/database"
	"github.com/livepid/tracker/internal/model"
	"github.com/livepid/tracker/internal/model/convert"
	"github.com/livepid/tracker/internal/queue"
	"github.com/livepid/tracker/internal/storage"
	"github.com/livepid/tracker/pkg/core"
)

// DefaultFlushInterval is how often queued records are written.
const DefaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        zerolog.Logger
	FlushInterval time.Duration
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	Resolutions   *queue.Queue[model.Resolution]
	StatusChanges *queue.Queue[model.StatusChange]
}

func newQueues() *queues {
	return &queues{
		Resolutions:   queue.New[model.Resolution](),
		StatusChanges: queue.New[model.StatusChange](),
	}
}

// Backend implements storage.Backend with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Uint64

	flushMu  sync.Mutex
	stopChan chan struct{}
	stopped  sync.WaitGroup
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: no database")
	}
	if err := database.Migrate(b.deps.DB, b.deps.Logger); err != nil {
		return err
	}

	b.stopChan = make(chan struct{})
	b.stopped.Add(1)
	go b.writerLoop()
	return nil
}

// Close stops the writer and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		b.stopped.Wait()
		b.stopChan = nil
	}
	b.Flush()
	return nil
}

// StartSession inserts the session synchronously so its ID can stamp every
// later record. An open session is ended first.
func (b *Backend) StartSession(s *core.Session) error {
	if b.sessionID.Load() != 0 {
		if err := b.EndSession(); err != nil {
			b.deps.Logger.Warn().Err(err).Msg("Failed to end previous session")
		}
	}

	gormSession := convert.CoreToSession(*s)
	gormSession.ID = 0
	if err := b.deps.DB.Create(&gormSession).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}

	s.ID = gormSession.ID
	b.sessionID.Store(uint64(gormSession.ID))
	b.deps.Logger.Info().Uint("sessionId", s.ID).Str("name", s.Name).Msg("Session started")
	return nil
}

// EndSession flushes the queues and stamps the session end time.
func (b *Backend) EndSession() error {
	id := uint(b.sessionID.Load())
	if id == 0 {
		return storage.ErrNoSession
	}

	b.Flush()
	b.sessionID.Store(0)

	now := time.Now()
	if err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).Update("end_time", now).Error; err != nil {
		return fmt.Errorf("failed to close session %d: %w", id, err)
	}
	b.deps.Logger.Info().Uint("sessionId", id).Msg("Session ended")
	return nil
}

// SessionID returns the active session ID, 0 when none.
func (b *Backend) SessionID() uint {
	return uint(b.sessionID.Load())
}

// RecordResolution converts and queues a resolution.
func (b *Backend) RecordResolution(r *core.Resolution) error {
	id := uint(b.sessionID.Load())
	if id == 0 {
		return storage.ErrNoSession
	}
	r.SessionID = id
	gormObj := convert.CoreToResolution(*r)
	gormObj.ID = 0
	b.queues.Resolutions.Push(gormObj)
	return nil
}

// RecordStatusChange converts and queues a status transition.
func (b *Backend) RecordStatusChange(c *core.StatusChange) error {
	id := uint(b.sessionID.Load())
	if id == 0 {
		return storage.ErrNoSession
	}
	c.SessionID = id
	gormObj := convert.CoreToStatusChange(*c)
	gormObj.ID = 0
	b.queues.StatusChanges.Push(gormObj)
	return nil
}

// Pending returns the number of queued records not yet written.
func (b *Backend) Pending() int {
	return b.queues.Resolutions.Len() + b.queues.StatusChanges.Len()
}

// Flush writes all queued records now.
func (b *Backend) Flush() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	writeQueue(b.deps.DB, b.queues.Resolutions, "resolutions", b.deps.Logger)
	writeQueue(b.deps.DB, b.queues.StatusChanges, "status changes", b.deps.Logger)
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the batch goes back to the front of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log zerolog.Logger) {
	if db == nil || q.Empty() {
		return
	}

	items := q.GetAndEmpty()
	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		log.Error().Err(err).Str("table", name).Int("count", len(items)).Msg("Error writing batch")
		tx.Rollback()
		q.Requeue(items...)
		return
	}
	if err := tx.Commit().Error; err != nil {
		log.Error().Err(err).Str("table", name).Msg("Error committing batch")
		q.Requeue(items...)
		return
	}
	log.Trace().Str("table", name).Int("count", len(items)).Msg("Batch written")
}

func (b *Backend) writerLoop() {
	defer b.stopped.Done()

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}
