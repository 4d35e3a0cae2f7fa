// pkg/core/actor.go
package core

// ActorID identifies an actor in the host's scene. NoActor marks "nobody".
type ActorID int32

const NoActor ActorID = -1

// ActorKind separates players (the only correlatable kind) from everything else.
type ActorKind uint8

const (
	KindNPC ActorKind = iota
	KindPlayer
)

func (k ActorKind) String() string {
	if k == KindPlayer {
		return "player"
	}
	return "npc"
}

// WorldPoint is an integer tile coordinate.
type WorldPoint struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Plane int `json:"plane"`
}

// Actor is a read-only snapshot of an actor as last reported by the host.
type Actor struct {
	ID          ActorID
	Kind        ActorKind
	Name        string // empty when the host has not resolved a name
	Position    WorldPoint
	HasPosition bool
	Dead        bool
	Interacting ActorID
}

// IsPlayer reports whether the actor is of the correlatable kind.
func (a Actor) IsPlayer() bool {
	return a.Kind == KindPlayer
}

// Named reports whether the actor has a resolvable name.
func (a Actor) Named() bool {
	return a.Name != ""
}
