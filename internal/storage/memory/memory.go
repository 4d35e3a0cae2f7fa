// Package memory implements a storage.Backend that keeps the session journal
// in memory and exports it to a JSON file when the session ends.
package memory

import (
	"sync"

	"github.com/livepid/tracker/internal/config"
	"github.com/livepid/tracker/internal/queue"
	"github.com/livepid/tracker/internal/storage"
	"github.com/livepid/tracker/pkg/core"
)

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session
	status  core.PidStatus

	resolutions   *queue.Queue[core.Resolution]
	statusChanges *queue.Queue[core.StatusChange]

	sessionCounter uint
	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:           cfg,
		resolutions:   queue.New[core.Resolution](),
		statusChanges: queue.New[core.StatusChange](),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close exports a session that was never ended.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	return b.endSessionLocked()
}

// StartSession begins recording a new session. An open session is exported first.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != nil {
		if err := b.endSessionLocked(); err != nil {
			return err
		}
	}

	b.sessionCounter++
	s.ID = b.sessionCounter
	session := *s
	b.session = &session
	b.status = core.StatusUnknown
	b.idCounter = 0
	b.resolutions.GetAndEmpty()
	b.statusChanges.GetAndEmpty()
	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return storage.ErrNoSession
	}
	return b.endSessionLocked()
}

func (b *Backend) endSessionLocked() error {
	err := b.exportJSON()
	b.session = nil
	return err
}

// RecordResolution appends a resolution to the session journal.
func (b *Backend) RecordResolution(r *core.Resolution) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return storage.ErrNoSession
	}
	b.idCounter++
	r.ID = b.idCounter
	r.SessionID = b.session.ID
	b.resolutions.Push(*r)
	return nil
}

// RecordStatusChange appends a status transition to the session journal.
func (b *Backend) RecordStatusChange(c *core.StatusChange) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return storage.ErrNoSession
	}
	b.idCounter++
	c.ID = b.idCounter
	c.SessionID = b.session.ID
	b.status = c.To
	b.statusChanges.Push(*c)
	return nil
}

// Resolutions returns a copy of the resolutions recorded this session.
func (b *Backend) Resolutions() []core.Resolution {
	return b.resolutions.Snapshot()
}

// StatusChanges returns a copy of the status changes recorded this session.
func (b *Backend) StatusChanges() []core.StatusChange {
	return b.statusChanges.Snapshot()
}

// ExportedFilePath returns the path of the last export, empty before the
// first session ended.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
