package detector

import "github.com/livepid/tracker/pkg/core"

const (
	// maxSampleAgeTicks is how long an unmatched sample stays pending.
	maxSampleAgeTicks = 16
	// maxHitDelayTicks is the latest a hit may land after its attack.
	maxHitDelayTicks = 12
	// earlyHitsplatToleranceTicks allows a hit to be seen before the attack
	// animation it belongs to.
	earlyHitsplatToleranceTicks = 1
)

// ExpectedDelay returns the cast-to-hit delay, in ticks, of an on-PID attack
// of the given bucket at the given Chebyshev distance.
func ExpectedDelay(bucket core.Bucket, distance int) int {
	switch bucket {
	case core.BucketMelee:
		return 0
	case core.BucketMagic:
		return 1 + (1+distance)/3
	case core.BucketRangedThrown:
		return 1 + distance/6
	case core.BucketRangedBallista:
		if distance == 3 || distance == 4 {
			return 1
		}
		return 1 + (3+distance)/6
	default:
		return 1 + (3+distance)/6
	}
}

// Distance is the Chebyshev (king-move) distance between two tiles. The
// plane is ignored.
func Distance(a, b core.WorldPoint) int {
	return max(abs(a.X-b.X), abs(a.Y-b.Y))
}

// normalizeDelay folds a hit seen one tick before its attack into a zero
// delay. ok is false for anything earlier.
func normalizeDelay(raw int) (delay int, ok bool) {
	if raw >= 0 {
		return raw, true
	}
	if raw >= -earlyHitsplatToleranceTicks {
		return 0, true
	}
	return -1, false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
