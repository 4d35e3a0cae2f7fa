// Package convert maps between core types and GORM models.
package convert

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"gorm.io/datatypes"

	"github.com/livepid/tracker/internal/geo"
	"github.com/livepid/tracker/internal/model"
	"github.com/livepid/tracker/pkg/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CoreToSession converts a core session. Settings that fail to encode are
// stored as an empty object.
func CoreToSession(s core.Session) model.Session {
	settings := datatypes.JSON("{}")
	if len(s.Settings) > 0 {
		if data, err := json.Marshal(s.Settings); err == nil {
			settings = datatypes.JSON(data)
		}
	}

	m := model.Session{
		Name:             s.Name,
		StartTime:        s.StartTime,
		ExtensionVersion: s.ExtensionVersion,
		Settings:         settings,
	}
	m.ID = s.ID
	return m
}

func CoreToResolution(r core.Resolution) model.Resolution {
	return model.Resolution{
		ID:               r.ID,
		Time:             r.Time,
		SessionID:        r.SessionID,
		AttackTick:       r.AttackTick,
		HitTick:          r.HitTick,
		VictimName:       r.VictimName,
		Bucket:           r.Bucket.String(),
		Distance:         r.Distance,
		RawDelay:         r.RawDelay,
		Delay:            r.Delay,
		ExpectedDelay:    r.ExpectedDelay,
		Outcome:          string(r.Outcome),
		Status:           r.Status.String(),
		AttackerPosition: geo.TilePoint(r.Attacker),
		VictimPosition:   geo.TilePoint(r.Victim),
		Path:             geo.Segment(r.Attacker, r.Victim),
	}
}

// ResolutionToCore converts a stored resolution back for reporting.
func ResolutionToCore(m model.Resolution) (core.Resolution, error) {
	bucket, err := core.ParseBucket(m.Bucket)
	if err != nil {
		return core.Resolution{}, fmt.Errorf("resolution %d: %w", m.ID, err)
	}
	attacker, err := geo.WorldPointFromGeom(m.AttackerPosition)
	if err != nil {
		return core.Resolution{}, fmt.Errorf("resolution %d attacker: %w", m.ID, err)
	}
	victim, err := geo.WorldPointFromGeom(m.VictimPosition)
	if err != nil {
		return core.Resolution{}, fmt.Errorf("resolution %d victim: %w", m.ID, err)
	}

	return core.Resolution{
		ID:            m.ID,
		SessionID:     m.SessionID,
		Time:          m.Time,
		AttackTick:    m.AttackTick,
		HitTick:       m.HitTick,
		VictimName:    m.VictimName,
		Distance:      m.Distance,
		Bucket:        bucket,
		RawDelay:      m.RawDelay,
		Delay:         m.Delay,
		ExpectedDelay: m.ExpectedDelay,
		Outcome:       core.Outcome(m.Outcome),
		Status:        core.ParsePidStatus(m.Status),
		Attacker:      attacker,
		Victim:        victim,
	}, nil
}

func CoreToStatusChange(c core.StatusChange) model.StatusChange {
	return model.StatusChange{
		ID:        c.ID,
		Time:      c.Time,
		SessionID: c.SessionID,
		Tick:      c.Tick,
		From:      c.From.String(),
		To:        c.To.String(),
		Reason:    c.Reason,
	}
}
