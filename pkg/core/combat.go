// pkg/core/combat.go
package core

import (
	"fmt"
	"strings"
)

// Bucket is the timing family of an attack animation. Every animation in a
// bucket shares one expected-delay formula.
type Bucket int

const (
	BucketMelee Bucket = iota
	BucketRangedStandard
	BucketRangedThrown
	BucketRangedBallista
	BucketMagic
)

var bucketNames = [...]string{
	BucketMelee:          "MELEE",
	BucketRangedStandard: "RANGED_STANDARD",
	BucketRangedThrown:   "RANGED_THROWN",
	BucketRangedBallista: "RANGED_BALLISTA",
	BucketMagic:          "MAGIC",
}

// Buckets lists every bucket in declaration order.
var Buckets = []Bucket{
	BucketMelee,
	BucketRangedStandard,
	BucketRangedThrown,
	BucketRangedBallista,
	BucketMagic,
}

func (b Bucket) String() string {
	if b < 0 || int(b) >= len(bucketNames) {
		return fmt.Sprintf("Bucket(%d)", int(b))
	}
	return bucketNames[b]
}

// ParseBucket converts a bucket name (case-insensitive) back to a Bucket.
func ParseBucket(s string) (Bucket, error) {
	for i, name := range bucketNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return Bucket(i), nil
		}
	}
	return 0, fmt.Errorf("unknown bucket %q", s)
}

// PidStatus is the inferred server processing precedence of the local player.
type PidStatus int32

const (
	StatusUnknown PidStatus = iota
	StatusOnPid
	StatusOffPid
)

func (s PidStatus) String() string {
	switch s {
	case StatusOnPid:
		return "ON_PID"
	case StatusOffPid:
		return "OFF_PID"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status by name.
func (s PidStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *PidStatus) UnmarshalText(text []byte) error {
	*s = ParsePidStatus(string(text))
	return nil
}

// ParsePidStatus is the inverse of PidStatus.String. Unrecognized values map
// to StatusUnknown.
func ParsePidStatus(s string) PidStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ON_PID":
		return StatusOnPid
	case "OFF_PID":
		return StatusOffPid
	default:
		return StatusUnknown
	}
}

// HitsplatKind is the host's hitsplat type id.
type HitsplatKind int

// Hitsplat ids the detector distinguishes. Any other id is carried through
// unchanged and only counts as outgoing when the host flags it as mine.
const (
	HitsplatBlockMe     HitsplatKind = 12
	HitsplatBlockOther  HitsplatKind = 13
	HitsplatDamageMe    HitsplatKind = 16
	HitsplatDamageOther HitsplatKind = 17
)

// ByLocal reports whether the kind is damage or a block caused by the local player.
func (k HitsplatKind) ByLocal() bool {
	return k == HitsplatDamageMe || k == HitsplatBlockMe
}

// ByOther reports whether the kind is damage or a block caused by someone else.
func (k HitsplatKind) ByOther() bool {
	return k == HitsplatDamageOther || k == HitsplatBlockOther
}
