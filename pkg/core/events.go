// pkg/core/events.go
package core

import "time"

// GameTick marks one fixed game time-step.
type GameTick struct {
	Tick int
	Time time.Time
}

// AnimationChanged is fired whenever any actor's animation changes.
type AnimationChanged struct {
	ActorID     ActorID
	AnimationID int
}

// HitsplatApplied is fired when a damage or block indicator lands on an actor.
type HitsplatApplied struct {
	ActorID ActorID
	Kind    HitsplatKind
	Amount  int
	Mine    bool
}

// ActorUpdate replaces the cached snapshot of one actor.
type ActorUpdate struct {
	Actor Actor
}

// ActorRemoved drops an actor that left the scene.
type ActorRemoved struct {
	ActorID ActorID
}

// LocalActorChanged sets which actor is the local player. NoActor means the
// local player is gone (logged out, loading).
type LocalActorChanged struct {
	ActorID ActorID
}

// RingEquipped reports the item in the local player's ring slot. ItemID is -1
// when the slot is empty.
type RingEquipped struct {
	ItemID   int
	ItemName string
}
