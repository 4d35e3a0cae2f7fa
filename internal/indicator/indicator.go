// Package indicator turns the detector status into what a renderer draws.
package indicator

import (
	"strings"
	"sync"

	"github.com/livepid/tracker/internal/util"
	"github.com/livepid/tracker/pkg/core"
)

const (
	Label = "PID"

	// HideAfterTicks is how long the indicator stays up after the last own attack.
	HideAfterTicks = 25

	BoxSize = 36

	MinTextSize     = 10
	MaxTextSize     = 32
	DefaultTextSize = 14
)

// Mode selects where the indicator is drawn.
type Mode string

const (
	ModeOverlay   Mode = "OVERLAY"
	ModeAboveHead Mode = "ABOVE_HEAD"
)

// ParseMode reads a configured mode. Empty or unknown values fall back to OVERLAY.
func ParseMode(s string) Mode {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeAboveHead:
		return ModeAboveHead
	default:
		return ModeOverlay
	}
}

// RGBA is an 8-bit color.
type RGBA struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

var (
	colorOnPid   = RGBA{67, 160, 71, 255}
	colorOffPid  = RGBA{229, 57, 53, 255}
	colorUnknown = RGBA{255, 193, 7, 255}

	BoxColor = RGBA{33, 33, 33, 210}
)

// Color returns the text color for a status.
func Color(status core.PidStatus) RGBA {
	switch status {
	case core.StatusOnPid:
		return colorOnPid
	case core.StatusOffPid:
		return colorOffPid
	default:
		return colorUnknown
	}
}

// Settings are the user-facing indicator options.
type Settings struct {
	Mode                Mode
	TextSize            int
	HideWhenOutOfCombat bool
}

// Normalize applies the mode fallback and clamps the text size.
func (s Settings) Normalize() Settings {
	s.Mode = ParseMode(string(s.Mode))
	if s.TextSize == 0 {
		s.TextSize = DefaultTextSize
	}
	s.TextSize = util.Clamp(s.TextSize, MinTextSize, MaxTextSize)
	return s
}

// View is everything a renderer needs for one frame.
type View struct {
	Label    string         `json:"label"`
	Status   core.PidStatus `json:"-"`
	Mode     Mode           `json:"mode"`
	Color    RGBA           `json:"color"`
	TextSize int            `json:"textSize"`
	Visible  bool           `json:"visible"`
	BoxSize  int            `json:"boxSize"`
	BoxColor RGBA           `json:"boxColor"`
}

// Tracker remembers the last own attack tick to decide visibility.
// It is written from the event timeline and read by the status API.
type Tracker struct {
	mu         sync.RWMutex
	settings   Settings
	lastAttack int
	attacked   bool
	tick       int
}

func NewTracker(settings Settings) *Tracker {
	return &Tracker{settings: settings.Normalize()}
}

// MarkAttack records an own classified attack animation.
func (t *Tracker) MarkAttack(tick int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastAttack = tick
	t.attacked = true
}

// SetTick records the latest game tick for View.
func (t *Tracker) SetTick(tick int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tick = tick
}

// Tick returns the latest recorded game tick.
func (t *Tracker) Tick() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tick
}

// Reset forgets the last attack.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastAttack = 0
	t.attacked = false
}

// Visible reports whether the indicator is shown at tick.
func (t *Tracker) Visible(tick int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.visible(tick)
}

func (t *Tracker) visible(tick int) bool {
	if !t.settings.HideWhenOutOfCombat {
		return true
	}
	return t.attacked && tick-t.lastAttack <= HideAfterTicks
}

// View builds the frame for status at the latest recorded tick.
func (t *Tracker) View(status core.PidStatus) View {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return View{
		Label:    Label,
		Status:   status,
		Mode:     t.settings.Mode,
		Color:    Color(status),
		TextSize: t.settings.TextSize,
		Visible:  t.visible(t.tick),
		BoxSize:  BoxSize,
		BoxColor: BoxColor,
	}
}
