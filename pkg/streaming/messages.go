// Package streaming defines the messages exchanged with a session journal
// server over WebSocket.
package streaming

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/livepid/tracker/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeResolution   = "resolution"
	TypeStatusChange = "status_change"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string              `json:"type"`
	Payload jsoniter.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload announces a session.
type StartSessionPayload struct {
	Name             string         `json:"name"`
	StartTime        time.Time      `json:"startTime"`
	ExtensionVersion string         `json:"extensionVersion"`
	Settings         map[string]any `json:"settings,omitempty"`
}

// ResolutionPayload is one consumed attack/hitsplat pair.
type ResolutionPayload struct {
	Time          time.Time       `json:"time"`
	AttackTick    int             `json:"attackTick"`
	HitTick       int             `json:"hitTick"`
	VictimName    string          `json:"victimName"`
	Bucket        string          `json:"bucket"`
	Distance      int             `json:"distance"`
	RawDelay      int             `json:"rawDelay"`
	Delay         int             `json:"delay"`
	ExpectedDelay int             `json:"expectedDelay"`
	Outcome       string          `json:"outcome"`
	Status        string          `json:"status"`
	Attacker      core.WorldPoint `json:"attacker"`
	Victim        core.WorldPoint `json:"victim"`
}

// StatusChangePayload is one transition of the published status.
type StatusChangePayload struct {
	Time   time.Time `json:"time"`
	Tick   int       `json:"tick"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Reason string    `json:"reason"`
}

func NewStartSessionPayload(s core.Session) StartSessionPayload {
	return StartSessionPayload{
		Name:             s.Name,
		StartTime:        s.StartTime,
		ExtensionVersion: s.ExtensionVersion,
		Settings:         s.Settings,
	}
}

func NewResolutionPayload(r core.Resolution) ResolutionPayload {
	return ResolutionPayload{
		Time:          r.Time,
		AttackTick:    r.AttackTick,
		HitTick:       r.HitTick,
		VictimName:    r.VictimName,
		Bucket:        r.Bucket.String(),
		Distance:      r.Distance,
		RawDelay:      r.RawDelay,
		Delay:         r.Delay,
		ExpectedDelay: r.ExpectedDelay,
		Outcome:       string(r.Outcome),
		Status:        r.Status.String(),
		Attacker:      r.Attacker,
		Victim:        r.Victim,
	}
}

func NewStatusChangePayload(c core.StatusChange) StatusChangePayload {
	return StatusChangePayload{
		Time:   c.Time,
		Tick:   c.Tick,
		From:   c.From.String(),
		To:     c.To.String(),
		Reason: c.Reason,
	}
}
