package parser

import (
	"fmt"
	"time"

	"github.com/livepid/tracker/pkg/core"
)

// ParseTick parses a game tick: [tick].
func (p *Parser) ParseTick(data []string) (core.GameTick, error) {
	var tick core.GameTick
	if err := requireFields(data, 1); err != nil {
		return tick, err
	}
	data = clean(data)

	v, err := parseIntFromFloat(data[0])
	if err != nil {
		return tick, fmt.Errorf("error parsing tick: %w", err)
	}
	if v < 0 {
		return tick, fmt.Errorf("error parsing tick: negative tick %d", v)
	}
	tick.Tick = int(v)
	tick.Time = time.Now()
	return tick, nil
}

// ParseAnimation parses an animation change: [actorID, animationID].
func (p *Parser) ParseAnimation(data []string) (core.AnimationChanged, error) {
	var anim core.AnimationChanged
	if err := requireFields(data, 2); err != nil {
		return anim, err
	}
	data = clean(data)

	id, err := parseIntFromFloat(data[0])
	if err != nil {
		return anim, fmt.Errorf("error parsing actorID: %w", err)
	}
	animID, err := parseIntFromFloat(data[1])
	if err != nil {
		return anim, fmt.Errorf("error parsing animationID: %w", err)
	}

	anim.ActorID = core.ActorID(id)
	anim.AnimationID = int(animID)
	return anim, nil
}

// ParseHitsplat parses a hitsplat: [actorID, kind, amount, mine].
// A missing mine flag is read as false.
func (p *Parser) ParseHitsplat(data []string) (core.HitsplatApplied, error) {
	var hit core.HitsplatApplied
	if err := requireFields(data, 3); err != nil {
		return hit, err
	}
	data = clean(data)

	id, err := parseIntFromFloat(data[0])
	if err != nil {
		return hit, fmt.Errorf("error parsing actorID: %w", err)
	}
	kind, err := parseIntFromFloat(data[1])
	if err != nil {
		return hit, fmt.Errorf("error parsing hitsplatKind: %w", err)
	}
	amount, err := parseIntFromFloat(data[2])
	if err != nil {
		return hit, fmt.Errorf("error parsing amount: %w", err)
	}

	hit.ActorID = core.ActorID(id)
	hit.Kind = core.HitsplatKind(kind)
	hit.Amount = int(amount)

	if len(data) > 3 && data[3] != "" {
		hit.Mine, err = parseFlag(data[3])
		if err != nil {
			return hit, fmt.Errorf("error parsing mine: %w", err)
		}
	}
	return hit, nil
}

// ParseSessionName parses a session start: [name].
func (p *Parser) ParseSessionName(data []string) (string, error) {
	if err := requireFields(data, 1); err != nil {
		return "", err
	}
	data = clean(data)

	if data[0] == "" {
		return "", fmt.Errorf("error parsing name: empty")
	}
	return data[0], nil
}
