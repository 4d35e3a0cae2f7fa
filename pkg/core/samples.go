// pkg/core/samples.go
package core

import "time"

// AttackSample is one in-flight, unresolved attack attempt.
type AttackSample struct {
	AttackTick int
	VictimName string
	Distance   int
	Bucket     Bucket
	Attacker   WorldPoint
	Victim     WorldPoint
}

// HitsplatSample is one observed outgoing hit that has no attack yet.
type HitsplatSample struct {
	HitTick    int
	VictimName string
}

// Outcome classifies how a consumed attack/hit pair was judged.
type Outcome string

const (
	OutcomeOnPid        Outcome = "ON_PID"
	OutcomeOffPid       Outcome = "OFF_PID"
	OutcomeInconclusive Outcome = "INCONCLUSIVE"
	OutcomeInvalid      Outcome = "INVALID"
)

// Conclusive reports whether the pair was judged ON_PID or OFF_PID. Only
// conclusive outcomes publish a status.
func (o Outcome) Conclusive() bool {
	return o == OutcomeOnPid || o == OutcomeOffPid
}

// Resolution records one consumed attack/hit pair.
type Resolution struct {
	ID            uint
	SessionID     uint
	Time          time.Time
	AttackTick    int
	HitTick       int
	VictimName    string
	Distance      int
	Bucket        Bucket
	RawDelay      int
	Delay         int // -1 when the pairing was invalid
	ExpectedDelay int
	Outcome       Outcome
	Status        PidStatus // status after the resolution was applied
	Attacker      WorldPoint
	Victim        WorldPoint
}

// StatusChange records a transition of the published status.
type StatusChange struct {
	ID        uint
	SessionID uint
	Time      time.Time
	Tick      int
	From      PidStatus
	To        PidStatus
	Reason    string
}

// Session describes one tracked play session.
type Session struct {
	ID               uint
	Name             string
	StartTime        time.Time
	ExtensionVersion string
	Settings         map[string]any // snapshot of user settings at start
}
