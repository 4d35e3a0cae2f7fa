package monitor

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	jsoniter "github.com/json-iterator/go"

	"github.com/livepid/tracker/internal/influx"
	"github.com/livepid/tracker/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultInterval is used when Dependencies.Interval is not set.
const DefaultInterval = 30 * time.Second

// SnapshotSource provides the tracker state, e.g. *session.Manager.
type SnapshotSource interface {
	Snapshot() session.Snapshot
}

// PointWriter writes performance points, e.g. *influx.Manager.
type PointWriter interface {
	WritePoint(bucket string, point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source     SnapshotSource
	Logger     *slog.Logger
	Influx     PointWriter // optional
	StatusFile string      // optional, rewritten every interval
	Interval   time.Duration
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
	now       func() time.Time
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Report returns the current tracker state as indented JSON and as an
// InfluxDB status point.
func (s *Service) Report() (string, *influxdb2_write.Point, session.Snapshot) {
	snap := s.deps.Source.Snapshot()

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		out = []byte(fmt.Sprintf(`{"error": %q}`, err.Error()))
	}
	point := influx.StatusPoint(snap.Status, snap.Tick, snap.PendingAttack, snap.PendingHitsplat, s.now())
	return string(out), point, snap
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()

	return nil
}

func (s *Service) tick() {
	logger := s.deps.Logger
	status, point, snap := s.Report()

	logger.Info("tracker status",
		"session", snap.Session,
		"active", snap.Active,
		"pidStatus", snap.Status.String(),
		"ticksSeen", snap.TicksSeen,
		"resolutions", snap.Resolutions,
		"cachedActors", snap.CachedActors,
	)

	if s.deps.StatusFile != "" {
		if err := os.WriteFile(s.deps.StatusFile, []byte(status+"\n"), 0644); err != nil {
			logger.Error("Error writing status file", "error", err)
		}
	}

	if s.deps.Influx != nil {
		if err := s.deps.Influx.WritePoint(influx.BucketPerformance, point); err != nil {
			logger.Error("Error writing status point", "error", err)
		}
	}
}

// Stop stops the status monitor and waits for the goroutine to exit
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.isRunning = false
	done := s.done
	s.mu.Unlock()
	<-done
}
