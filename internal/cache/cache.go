// Package cache holds the host-reported scene state the detector queries.
package cache

import (
	"sync"

	"github.com/livepid/tracker/pkg/core"
)

// ActorCache keeps the latest snapshot of every actor the host reported, plus
// the local player's identity and ring slot. Updates arrive on the event
// timeline while the status API may read concurrently, so every access is
// locked.
type ActorCache struct {
	m      sync.RWMutex
	actors map[core.ActorID]core.Actor
	local  core.ActorID
	ring   int
	items  map[int]string
}

func NewActorCache() *ActorCache {
	return &ActorCache{
		actors: make(map[core.ActorID]core.Actor),
		local:  core.NoActor,
		ring:   -1,
		items:  make(map[int]string),
	}
}

// Reset forgets everything, including item names.
func (c *ActorCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.actors = make(map[core.ActorID]core.Actor)
	c.local = core.NoActor
	c.ring = -1
	c.items = make(map[int]string)
}

// PutActor stores or replaces an actor snapshot.
func (c *ActorCache) PutActor(a core.Actor) {
	c.m.Lock()
	defer c.m.Unlock()
	c.actors[a.ID] = a
}

// RemoveActor drops an actor. Removing the local player also clears the
// local id.
func (c *ActorCache) RemoveActor(id core.ActorID) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.actors, id)
	if c.local == id {
		c.local = core.NoActor
	}
}

// SetLocal marks which actor is the local player.
func (c *ActorCache) SetLocal(id core.ActorID) {
	c.m.Lock()
	defer c.m.Unlock()
	c.local = id
}

// SetRing records the ring slot. A negative id empties the slot. A non-empty
// name is remembered for later ItemName lookups.
func (c *ActorCache) SetRing(itemID int, name string) {
	c.m.Lock()
	defer c.m.Unlock()
	if itemID < 0 {
		c.ring = -1
		return
	}
	c.ring = itemID
	if name != "" {
		c.items[itemID] = name
	}
}

// LocalActor returns the local player if it is known and present.
func (c *ActorCache) LocalActor() (core.Actor, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	if c.local == core.NoActor {
		return core.Actor{}, false
	}
	a, ok := c.actors[c.local]
	return a, ok
}

func (c *ActorCache) Actor(id core.ActorID) (core.Actor, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	a, ok := c.actors[id]
	return a, ok
}

func (c *ActorCache) EquippedRing() (int, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	return c.ring, c.ring >= 0
}

func (c *ActorCache) ItemName(itemID int) (string, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	name, ok := c.items[itemID]
	return name, ok
}

// Len returns the number of cached actors.
func (c *ActorCache) Len() int {
	c.m.RLock()
	defer c.m.RUnlock()
	return len(c.actors)
}
