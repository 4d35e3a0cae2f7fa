// Package v1 contains the v1 export format for tracked sessions.
package v1

import "time"

// FormatVersion is written into every export.
const FormatVersion = 1

// Export is the root JSON structure for v1 format.
// Resolution and status rows are positional arrays, see the column constants.
type Export struct {
	FormatVersion    int                `json:"formatVersion"`
	ExtensionVersion string             `json:"extensionVersion"`
	SessionName      string             `json:"sessionName"`
	StartTime        time.Time          `json:"startTime"`
	EndTime          time.Time          `json:"endTime"`
	Settings         map[string]any     `json:"settings"`
	FinalStatus      string             `json:"finalStatus"`
	Summary          Summary            `json:"summary"`
	Buckets          map[string]Summary `json:"buckets"`
	Resolutions      [][]any            `json:"resolutions"`
	StatusChanges    [][]any            `json:"statusChanges"`
}

// Summary counts resolutions by outcome.
type Summary struct {
	Total        int `json:"total"`
	OnPid        int `json:"onPid"`
	OffPid       int `json:"offPid"`
	Inconclusive int `json:"inconclusive"`
	Invalid      int `json:"invalid"`
}

// Resolution row columns.
const (
	ColAttackTick = iota
	ColHitTick
	ColVictim
	ColBucket
	ColDistance
	ColRawDelay
	ColDelay
	ColExpectedDelay
	ColOutcome
	ColStatus
	ColAttacker  // WKT
	ColVictimPos // WKT
)

// Status change row columns.
const (
	ColChangeTick = iota
	ColChangeFrom
	ColChangeTo
	ColChangeReason
)
