package parser

import (
	"fmt"
	"strings"

	"github.com/livepid/tracker/pkg/core"
)

// ParseLocal parses the local player id: [actorID]. -1 means the local player is gone.
func (p *Parser) ParseLocal(data []string) (core.LocalActorChanged, error) {
	var local core.LocalActorChanged
	if err := requireFields(data, 1); err != nil {
		return local, err
	}
	data = clean(data)

	id, err := parseIntFromFloat(data[0])
	if err != nil {
		return local, fmt.Errorf("error parsing actorID: %w", err)
	}
	local.ActorID = core.ActorID(id)
	if local.ActorID < 0 {
		local.ActorID = core.NoActor
	}
	return local, nil
}

// ParseActor parses an actor snapshot:
// [id, kind, name, x, y, plane, hasPosition, dead, interactingID].
func (p *Parser) ParseActor(data []string) (core.ActorUpdate, error) {
	var update core.ActorUpdate
	if err := requireFields(data, 9); err != nil {
		return update, err
	}
	data = clean(data)

	a := &update.Actor

	id, err := parseIntFromFloat(data[0])
	if err != nil {
		return update, fmt.Errorf("error parsing id: %w", err)
	}
	a.ID = core.ActorID(id)

	switch strings.ToLower(data[1]) {
	case "player":
		a.Kind = core.KindPlayer
	case "npc":
		a.Kind = core.KindNPC
	default:
		return update, fmt.Errorf("error parsing kind: unknown actor kind %q", data[1])
	}

	a.Name = data[2]

	coords := [3]int{}
	for i, field := range []string{"x", "y", "plane"} {
		v, err := parseIntFromFloat(data[3+i])
		if err != nil {
			return update, fmt.Errorf("error parsing %s: %w", field, err)
		}
		coords[i] = int(v)
	}
	a.Position = core.WorldPoint{X: coords[0], Y: coords[1], Plane: coords[2]}

	a.HasPosition, err = parseFlag(data[6])
	if err != nil {
		return update, fmt.Errorf("error parsing hasPosition: %w", err)
	}
	a.Dead, err = parseFlag(data[7])
	if err != nil {
		return update, fmt.Errorf("error parsing dead: %w", err)
	}

	interacting, err := parseIntFromFloat(data[8])
	if err != nil {
		return update, fmt.Errorf("error parsing interactingID: %w", err)
	}
	a.Interacting = core.ActorID(interacting)
	if a.Interacting < 0 {
		a.Interacting = core.NoActor
	}

	p.logger.Debug("Parsed actor", "id", a.ID, "kind", a.Kind, "name", a.Name)
	return update, nil
}

// ParseActorRemove parses an actor removal: [id].
func (p *Parser) ParseActorRemove(data []string) (core.ActorRemoved, error) {
	var removed core.ActorRemoved
	if err := requireFields(data, 1); err != nil {
		return removed, err
	}
	data = clean(data)

	id, err := parseIntFromFloat(data[0])
	if err != nil {
		return removed, fmt.Errorf("error parsing id: %w", err)
	}
	removed.ActorID = core.ActorID(id)
	return removed, nil
}

// ParseRing parses the ring slot: [itemID, itemName]. -1 means empty.
func (p *Parser) ParseRing(data []string) (core.RingEquipped, error) {
	var ring core.RingEquipped
	if err := requireFields(data, 1); err != nil {
		return ring, err
	}
	data = clean(data)

	id, err := parseIntFromFloat(data[0])
	if err != nil {
		return ring, fmt.Errorf("error parsing itemID: %w", err)
	}
	ring.ItemID = int(id)
	if ring.ItemID < 0 {
		ring.ItemID = -1
		return ring, nil
	}
	if len(data) > 1 {
		ring.ItemName = data[1]
	}
	return ring, nil
}
