package session

import (
	"fmt"

	"github.com/livepid/tracker/internal/classifier"
	"github.com/livepid/tracker/internal/dispatcher"
)

// DefaultSessionName is used when a session is started without a name.
const DefaultSessionName = "session"

// Feed commands.
const (
	CmdTick        = ":TICK:"
	CmdLocal       = ":LOCAL:"
	CmdActor       = ":ACTOR:"
	CmdActorRemove = ":ACTOR:REMOVE:"
	CmdAnimation   = ":ANIMATION:"
	CmdHitsplat    = ":HITSPLAT:"
	CmdRing        = ":RING:"
	CmdReset       = ":RESET:"
	CmdStatus      = ":STATUS:"
	CmdView        = ":VIEW:"
	CmdStart       = ":SESSION:START:"
	CmdStop        = ":SESSION:STOP:"
)

// RegisterHandlers registers all feed handlers with the dispatcher.
// Everything that touches detector state runs on the timeline so events are
// applied in feed order.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Host state - ordered with the events that read it
	d.Register(CmdLocal, m.handleLocal, dispatcher.Timeline(), dispatcher.Logged())
	d.Register(CmdActor, m.handleActor, dispatcher.Timeline(), dispatcher.Logged())
	d.Register(CmdActorRemove, m.handleActorRemove, dispatcher.Timeline(), dispatcher.Logged())
	d.Register(CmdRing, m.handleRing, dispatcher.Timeline(), dispatcher.Logged())

	// Detector events
	d.Register(CmdTick, m.handleTick, dispatcher.Timeline(), dispatcher.Logged())
	d.Register(CmdAnimation, m.handleAnimation, dispatcher.Timeline(), dispatcher.Logged())
	d.Register(CmdHitsplat, m.handleHitsplat, dispatcher.Timeline(), dispatcher.Logged())
	d.Register(CmdReset, m.handleReset, dispatcher.Timeline(), dispatcher.Logged())

	// Queries - wait for everything queued before them
	d.Register(CmdStatus, m.handleStatus, dispatcher.Await())
	d.Register(CmdView, m.handleView, dispatcher.Await())

	// Session lifecycle - ordered so earlier events never leak into the next session
	d.Register(CmdStart, m.handleStart, dispatcher.Await(), dispatcher.Logged())
	d.Register(CmdStop, m.handleStop, dispatcher.Await(), dispatcher.Logged())
}

func (m *Manager) handleTick(e dispatcher.Event) (any, error) {
	obj, err := m.deps.Parser.ParseTick(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tick: %w", err)
	}

	m.detMu.Lock()
	defer m.detMu.Unlock()

	m.tick.Store(int64(obj.Tick))
	m.ticksSeen.Add(1)
	m.tracker.SetTick(obj.Tick)
	m.detector.OnGameTick(obj.Tick)
	return nil, nil
}

func (m *Manager) handleLocal(e dispatcher.Event) (any, error) {
	obj, err := m.deps.Parser.ParseLocal(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse local actor: %w", err)
	}
	m.deps.Cache.SetLocal(obj.ActorID)
	return nil, nil
}

func (m *Manager) handleActor(e dispatcher.Event) (any, error) {
	obj, err := m.deps.Parser.ParseActor(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse actor: %w", err)
	}
	m.deps.Cache.PutActor(obj.Actor)
	return nil, nil
}

func (m *Manager) handleActorRemove(e dispatcher.Event) (any, error) {
	obj, err := m.deps.Parser.ParseActorRemove(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse actor removal: %w", err)
	}
	m.deps.Cache.RemoveActor(obj.ActorID)
	return nil, nil
}

func (m *Manager) handleRing(e dispatcher.Event) (any, error) {
	obj, err := m.deps.Parser.ParseRing(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ring: %w", err)
	}
	m.deps.Cache.SetRing(obj.ItemID, obj.ItemName)
	return nil, nil
}

func (m *Manager) handleAnimation(e dispatcher.Event) (any, error) {
	obj, err := m.deps.Parser.ParseAnimation(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse animation: %w", err)
	}

	m.detMu.Lock()
	defer m.detMu.Unlock()

	tick := m.Tick()
	if local, ok := m.deps.Cache.LocalActor(); ok && local.ID == obj.ActorID {
		if _, ok := classifier.Classify(obj.AnimationID); ok {
			m.tracker.MarkAttack(tick)
		}
	}
	m.detector.OnAnimationChanged(obj.ActorID, obj.AnimationID, tick)
	return nil, nil
}

func (m *Manager) handleHitsplat(e dispatcher.Event) (any, error) {
	obj, err := m.deps.Parser.ParseHitsplat(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse hitsplat: %w", err)
	}

	m.detMu.Lock()
	defer m.detMu.Unlock()

	m.detector.OnHitsplatApplied(obj.ActorID, obj.Kind, obj.Amount, obj.Mine, m.Tick())
	return nil, nil
}

// handleReset clears detection and the indicator. Cached host state is kept:
// the host does not resend it after a reset.
func (m *Manager) handleReset(dispatcher.Event) (any, error) {
	m.detMu.Lock()
	defer m.detMu.Unlock()

	m.detector.Reset()
	m.tracker.Reset()
	return nil, nil
}

func (m *Manager) handleStatus(dispatcher.Event) (any, error) {
	return m.detector.Status().String(), nil
}

func (m *Manager) handleView(dispatcher.Event) (any, error) {
	return m.View(), nil
}

func (m *Manager) handleStart(e dispatcher.Event) (any, error) {
	name := DefaultSessionName
	if len(e.Args) > 0 {
		parsed, err := m.deps.Parser.ParseSessionName(e.Args)
		if err != nil {
			return nil, fmt.Errorf("failed to parse session name: %w", err)
		}
		name = parsed
	}
	if err := m.Start(name); err != nil {
		return nil, err
	}
	return m.ctx.Session().ID, nil
}

func (m *Manager) handleStop(dispatcher.Event) (any, error) {
	return nil, m.Stop()
}
