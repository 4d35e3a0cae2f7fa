// Package storage defines the session journal backends. The journal is
// write-only from the tracker's point of view: nothing recorded here is read
// back into detection.
package storage

import (
	"errors"

	"github.com/livepid/tracker/pkg/core"
)

// ErrNoSession is returned when a record arrives outside a started session.
var ErrNoSession = errors.New("no active session")

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management. StartSession assigns the session ID.
	StartSession(s *core.Session) error
	EndSession() error

	// Journal records, stamped with the active session ID
	RecordResolution(r *core.Resolution) error
	RecordStatusChange(c *core.StatusChange) error
}

// Exportable is an optional interface for backends that write a file per
// session.
type Exportable interface {
	ExportedFilePath() string
}
