package session

import (
	"sync"
	"time"

	"github.com/livepid/tracker/pkg/core"
)

// Context holds the current session
type Context struct {
	mu      sync.RWMutex
	session core.Session
	active  bool
}

// NewContext creates a new Context with default values
func NewContext() *Context {
	return &Context{
		session: core.Session{Name: "No session started"},
	}
}

// Session returns a copy of the current session
func (c *Context) Session() core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Active reports whether a session is running
func (c *Context) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Uptime returns how long the current session has been running
func (c *Context) Uptime(now time.Time) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.active {
		return 0
	}
	return now.Sub(c.session.StartTime)
}

// SetSession marks s as the running session
func (c *Context) SetSession(s core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.active = true
}

// Clear marks the session as stopped, keeping its details for inspection
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
}
