// Package session wires the host feed into the detector: it owns the actor
// cache, the detector and the indicator tracker, and records what the
// detector concludes.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/livepid/tracker/internal/cache"
	"github.com/livepid/tracker/internal/classifier"
	"github.com/livepid/tracker/internal/detector"
	"github.com/livepid/tracker/internal/indicator"
	"github.com/livepid/tracker/internal/parser"
	"github.com/livepid/tracker/internal/storage"
	"github.com/livepid/tracker/pkg/core"
)

// MetricsSink receives every resolution, e.g. the InfluxDB manager.
type MetricsSink interface {
	WriteResolution(r core.Resolution) error
}

// Dependencies holds all dependencies for the session manager
type Dependencies struct {
	Cache            *cache.ActorCache
	Parser           *parser.Parser
	Backend          storage.Backend // optional
	Metrics          MetricsSink     // optional
	Indicator        indicator.Settings
	Logger           *slog.Logger
	ExtensionVersion string
}

// Snapshot is a point-in-time view of the tracker for monitoring.
type Snapshot struct {
	Session         string
	Active          bool
	Status          core.PidStatus
	Tick            int
	TicksSeen       uint64
	Resolutions     uint64
	PendingAttack   bool
	PendingHitsplat bool
	CachedActors    int
	Animations      int
}

// Manager owns the tracking state of one process.
type Manager struct {
	deps     Dependencies
	ctx      *Context
	detector *detector.Detector
	tracker  *indicator.Tracker
	log      *slog.Logger
	now      func() time.Time

	// detMu serializes Start, Stop and Snapshot with the timeline handlers.
	detMu sync.Mutex

	tick        atomic.Int64
	ticksSeen   atomic.Uint64
	resolutions atomic.Uint64

	lifecycle sync.Mutex
}

// NewManager creates a session manager. Nil optional dependencies are
// replaced with defaults.
func NewManager(deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewActorCache()
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(deps.Logger)
	}

	m := &Manager{
		deps:    deps,
		ctx:     NewContext(),
		tracker: indicator.NewTracker(deps.Indicator),
		log:     deps.Logger,
		now:     time.Now,
	}
	m.detector = detector.New(deps.Cache,
		detector.WithLogger(deps.Logger.With("component", "detector")),
		detector.WithResolutionHook(m.onResolution),
		detector.WithStatusHook(m.onStatusChange),
	)
	logClassifier(deps.Logger)
	return m
}

// logClassifier reports the size of the attack animation table per bucket.
func logClassifier(log *slog.Logger) {
	attrs := []any{"animations", classifier.Len()}
	for _, b := range core.Buckets {
		attrs = append(attrs, b.String(), len(classifier.IDs(b)))
	}
	log.Info("attack classifier loaded", attrs...)
}

// Context returns the session context.
func (m *Manager) Context() *Context {
	return m.ctx
}

// Status returns the published PID status. Safe from any goroutine.
func (m *Manager) Status() core.PidStatus {
	return m.detector.Status()
}

// View returns the indicator frame for the current status.
func (m *Manager) View() indicator.View {
	return m.tracker.View(m.detector.Status())
}

// Tick returns the last game tick received.
func (m *Manager) Tick() int {
	return int(m.tick.Load())
}

// Start begins a session named name. A running session is stopped first.
// Detection runs even when the journal fails to start; the error is returned
// for the caller to report.
func (m *Manager) Start(name string) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.ctx.Active() {
		if err := m.stop(); err != nil {
			m.log.Warn("failed to stop previous session", "error", err)
		}
	}

	m.resetState()

	s := core.Session{
		Name:             name,
		StartTime:        m.now(),
		ExtensionVersion: m.deps.ExtensionVersion,
		Settings:         m.settingsSnapshot(),
	}

	var err error
	if m.deps.Backend != nil {
		if err = m.deps.Backend.StartSession(&s); err != nil {
			err = fmt.Errorf("failed to start session journal: %w", err)
		}
	}

	m.ctx.SetSession(s)
	m.log.Info("session started", "session", s.Name, "id", s.ID)
	return err
}

// Stop ends the running session and resets detection.
func (m *Manager) Stop() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if !m.ctx.Active() {
		return nil
	}
	return m.stop()
}

func (m *Manager) stop() error {
	s := m.ctx.Session()

	var err error
	if m.deps.Backend != nil {
		if err = m.deps.Backend.EndSession(); err != nil && !errors.Is(err, storage.ErrNoSession) {
			err = fmt.Errorf("failed to end session journal: %w", err)
		} else {
			err = nil
		}
	}

	m.resetState()
	m.ctx.Clear()
	m.log.Info("session stopped", "session", s.Name, "resolutions", m.resolutions.Load())
	return err
}

// resetState clears detection, the indicator and the cached host state.
func (m *Manager) resetState() {
	m.detMu.Lock()
	defer m.detMu.Unlock()

	m.detector.Reset()
	m.tracker.Reset()
	m.deps.Cache.Reset()
	m.tick.Store(0)
	m.ticksSeen.Store(0)
	m.resolutions.Store(0)
}

// Snapshot returns the current tracker state.
func (m *Manager) Snapshot() Snapshot {
	m.detMu.Lock()
	attack, hitsplat := m.detector.Pending()
	m.detMu.Unlock()

	s := m.ctx.Session()
	return Snapshot{
		Session:         s.Name,
		Active:          m.ctx.Active(),
		Status:          m.detector.Status(),
		Tick:            m.Tick(),
		TicksSeen:       m.ticksSeen.Load(),
		Resolutions:     m.resolutions.Load(),
		PendingAttack:   attack,
		PendingHitsplat: hitsplat,
		CachedActors:    m.deps.Cache.Len(),
		Animations:      classifier.Len(),
	}
}

// LogContext provides the tick and status attributes added to every log line.
func (m *Manager) LogContext() []slog.Attr {
	return []slog.Attr{
		slog.Int("tick", m.Tick()),
		slog.String("pidStatus", m.detector.Status().String()),
	}
}

func (m *Manager) settingsSnapshot() map[string]any {
	settings := m.deps.Indicator.Normalize()
	return map[string]any{
		"mode":                string(settings.Mode),
		"textSize":            settings.TextSize,
		"hideWhenOutOfCombat": settings.HideWhenOutOfCombat,
	}
}

func (m *Manager) onResolution(r core.Resolution) {
	m.resolutions.Add(1)

	if m.deps.Backend != nil {
		if err := m.deps.Backend.RecordResolution(&r); err != nil && !errors.Is(err, storage.ErrNoSession) {
			m.log.Warn("failed to record resolution", "error", err)
		}
	}
	if m.deps.Metrics != nil {
		if err := m.deps.Metrics.WriteResolution(r); err != nil {
			m.log.Warn("failed to write resolution metric", "error", err)
		}
	}
}

func (m *Manager) onStatusChange(from, to core.PidStatus, tick int, reason string) {
	m.log.Info("PID status changed", "from", from.String(), "to", to.String(), "reason", reason)

	if m.deps.Backend == nil {
		return
	}
	c := core.StatusChange{
		Time:   m.now(),
		Tick:   tick,
		From:   from,
		To:     to,
		Reason: reason,
	}
	if err := m.deps.Backend.RecordStatusChange(&c); err != nil && !errors.Is(err, storage.ErrNoSession) {
		m.log.Warn("failed to record status change", "error", err)
	}
}
