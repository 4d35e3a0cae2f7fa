package v1

import (
	"sort"
	"time"

	"github.com/livepid/tracker/internal/geo"
	"github.com/livepid/tracker/pkg/core"
)

// SessionData contains all the data needed to build an export
type SessionData struct {
	Session       *core.Session
	EndTime       time.Time
	FinalStatus   core.PidStatus
	Resolutions   []core.Resolution
	StatusChanges []core.StatusChange
}

// Build creates an Export from the session data
func Build(data *SessionData) Export {
	settings := data.Session.Settings
	if settings == nil {
		settings = map[string]any{}
	}

	export := Export{
		FormatVersion:    FormatVersion,
		ExtensionVersion: data.Session.ExtensionVersion,
		SessionName:      data.Session.Name,
		StartTime:        data.Session.StartTime,
		EndTime:          data.EndTime,
		Settings:         settings,
		FinalStatus:      data.FinalStatus.String(),
		Buckets:          make(map[string]Summary),
		Resolutions:      make([][]any, 0, len(data.Resolutions)),
		StatusChanges:    make([][]any, 0, len(data.StatusChanges)),
	}

	// rows in hit order
	resolutions := append([]core.Resolution(nil), data.Resolutions...)
	sort.SliceStable(resolutions, func(i, j int) bool {
		return resolutions[i].HitTick < resolutions[j].HitTick
	})

	for _, r := range resolutions {
		export.Summary.add(r.Outcome)
		bucket := export.Buckets[r.Bucket.String()]
		bucket.add(r.Outcome)
		export.Buckets[r.Bucket.String()] = bucket

		export.Resolutions = append(export.Resolutions, []any{
			r.AttackTick,                       // [0] attack tick
			r.HitTick,                          // [1] hit tick
			r.VictimName,                       // [2] victim
			r.Bucket.String(),                  // [3] bucket
			r.Distance,                         // [4] distance in tiles
			r.RawDelay,                         // [5] raw delay
			r.Delay,                            // [6] normalized delay, -1 if invalid
			r.ExpectedDelay,                    // [7] expected delay
			string(r.Outcome),                  // [8] outcome
			r.Status.String(),                  // [9] status after resolution
			geo.TilePoint(r.Attacker).AsText(), // [10] attacker tile
			geo.TilePoint(r.Victim).AsText(),   // [11] victim tile
		})
	}

	for _, c := range data.StatusChanges {
		export.StatusChanges = append(export.StatusChanges, []any{
			c.Tick,
			c.From.String(),
			c.To.String(),
			c.Reason,
		})
	}

	return export
}

func (s *Summary) add(o core.Outcome) {
	s.Total++
	switch o {
	case core.OutcomeOnPid:
		s.OnPid++
	case core.OutcomeOffPid:
		s.OffPid++
	case core.OutcomeInconclusive:
		s.Inconclusive++
	default:
		s.Invalid++
	}
}
