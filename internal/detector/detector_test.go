package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livepid/tracker/pkg/core"
)

const (
	localID    core.ActorID = 1
	opponentID core.ActorID = 2
	npcID      core.ActorID = 3

	animMelee          = 422
	animRangedStandard = 426
	animBallista       = 7218
	animMagic          = 711
	animThrown         = 929
	animNotAttack      = 808
)

// fakeClient is an in-memory Client.
type fakeClient struct {
	local  core.ActorID
	actors map[core.ActorID]core.Actor
	ring   int
	items  map[int]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		local:  core.NoActor,
		actors: make(map[core.ActorID]core.Actor),
		ring:   -1,
		items:  make(map[int]string),
	}
}

func (c *fakeClient) LocalActor() (core.Actor, bool) {
	if c.local == core.NoActor {
		return core.Actor{}, false
	}
	return c.Actor(c.local)
}

func (c *fakeClient) Actor(id core.ActorID) (core.Actor, bool) {
	a, ok := c.actors[id]
	return a, ok
}

func (c *fakeClient) EquippedRing() (int, bool) {
	return c.ring, c.ring >= 0
}

func (c *fakeClient) ItemName(id int) (string, bool) {
	name, ok := c.items[id]
	return name, ok
}

func (c *fakeClient) update(id core.ActorID, fn func(a *core.Actor)) {
	a := c.actors[id]
	fn(&a)
	c.actors[id] = a
}

// newDuel puts the local player and a named opponent distance tiles apart,
// attacking each other.
func newDuel(distance int) *fakeClient {
	c := newFakeClient()
	c.local = localID
	c.actors[localID] = core.Actor{
		ID:          localID,
		Kind:        core.KindPlayer,
		Name:        "Local",
		Position:    core.WorldPoint{X: 3200, Y: 3200},
		HasPosition: true,
		Interacting: opponentID,
	}
	c.actors[opponentID] = core.Actor{
		ID:          opponentID,
		Kind:        core.KindPlayer,
		Name:        "Zezima",
		Position:    core.WorldPoint{X: 3200 + distance, Y: 3200},
		HasPosition: true,
		Interacting: localID,
	}
	return c
}

func newRecordingDetector(c Client) (*Detector, *[]core.Resolution) {
	var got []core.Resolution
	d := New(c, WithResolutionHook(func(r core.Resolution) {
		got = append(got, r)
	}))
	return d, &got
}

func hit(d *Detector, tick int) {
	d.OnHitsplatApplied(opponentID, core.HitsplatDamageMe, 12, true, tick)
}

func TestExpectedDelay(t *testing.T) {
	for distance := 0; distance <= 30; distance++ {
		assert.Equal(t, 0, ExpectedDelay(core.BucketMelee, distance), "melee d=%d", distance)
		assert.Equal(t, 1+(3+distance)/6, ExpectedDelay(core.BucketRangedStandard, distance), "ranged d=%d", distance)
		assert.Equal(t, 1+(1+distance)/3, ExpectedDelay(core.BucketMagic, distance), "magic d=%d", distance)
		assert.Equal(t, 1+distance/6, ExpectedDelay(core.BucketRangedThrown, distance), "thrown d=%d", distance)

		wantBallista := 1 + (3+distance)/6
		if distance == 3 || distance == 4 {
			wantBallista = 1
		}
		assert.Equal(t, wantBallista, ExpectedDelay(core.BucketRangedBallista, distance), "ballista d=%d", distance)
	}
}

func TestExpectedDelay_Examples(t *testing.T) {
	tests := []struct {
		bucket   core.Bucket
		distance int
		want     int
	}{
		{core.BucketRangedStandard, 5, 2},
		{core.BucketRangedStandard, 2, 1},
		{core.BucketRangedBallista, 3, 1},
		{core.BucketRangedBallista, 4, 1},
		{core.BucketRangedBallista, 5, 2},
		{core.BucketMagic, 1, 1},
		{core.BucketMagic, 2, 2},
		{core.BucketMagic, 10, 4},
		{core.BucketRangedThrown, 6, 2},
		{core.Bucket(99), 3, 2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpectedDelay(tt.bucket, tt.distance), "%s d=%d", tt.bucket, tt.distance)
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b core.WorldPoint
		want int
	}{
		{"same tile", core.WorldPoint{X: 5, Y: 5}, core.WorldPoint{X: 5, Y: 5}, 0},
		{"straight line", core.WorldPoint{X: 0, Y: 0}, core.WorldPoint{X: 4, Y: 0}, 4},
		{"diagonal", core.WorldPoint{X: 0, Y: 0}, core.WorldPoint{X: -3, Y: 3}, 3},
		{"uneven", core.WorldPoint{X: 10, Y: 2}, core.WorldPoint{X: 7, Y: 9}, 7},
		{"plane ignored", core.WorldPoint{X: 1, Y: 1, Plane: 0}, core.WorldPoint{X: 2, Y: 1, Plane: 2}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Distance(tt.a, tt.b))
		})
	}
}

func TestNormalizeDelay(t *testing.T) {
	tests := []struct {
		raw    int
		want   int
		wantOK bool
	}{
		{3, 3, true},
		{0, 0, true},
		{-1, 0, true},
		{-2, -1, false},
	}

	for _, tt := range tests {
		got, ok := normalizeDelay(tt.raw)
		assert.Equal(t, tt.want, got, "raw=%d", tt.raw)
		assert.Equal(t, tt.wantOK, ok, "raw=%d", tt.raw)
	}
}

func TestDetector_InitialState(t *testing.T) {
	d := New(newDuel(1))
	assert.Equal(t, core.StatusUnknown, d.Status())
	assert.Equal(t, core.NoActor, d.target)
	assert.Nil(t, d.attack)
	assert.Nil(t, d.hitsplat)
}

func TestDetector_MeleeScenario(t *testing.T) {
	tests := []struct {
		name    string
		hitTick int
		want    core.PidStatus
		outcome core.Outcome
	}{
		{"same tick is on pid", 10, core.StatusOnPid, core.OutcomeOnPid},
		{"one tick late is off pid", 11, core.StatusOffPid, core.OutcomeOffPid},
		{"two ticks late is inconclusive", 12, core.StatusUnknown, core.OutcomeInconclusive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, got := newRecordingDetector(newDuel(1))
			d.OnAnimationChanged(localID, animMelee, 10)
			hit(d, tt.hitTick)

			assert.Equal(t, tt.want, d.Status())
			require.Len(t, *got, 1)
			assert.Equal(t, tt.outcome, (*got)[0].Outcome)
			assert.Equal(t, core.BucketMelee, (*got)[0].Bucket)
			assert.Nil(t, d.attack)
			assert.Nil(t, d.hitsplat)
		})
	}
}

func TestDetector_InconclusiveKeepsPreviousStatus(t *testing.T) {
	d, _ := newRecordingDetector(newDuel(1))

	d.OnAnimationChanged(localID, animMelee, 10)
	hit(d, 11)
	require.Equal(t, core.StatusOffPid, d.Status())

	d.OnAnimationChanged(localID, animMelee, 14)
	hit(d, 16)
	assert.Equal(t, core.StatusOffPid, d.Status())
}

func TestDetector_RangedStandardScenario(t *testing.T) {
	d, got := newRecordingDetector(newDuel(5))
	d.OnAnimationChanged(localID, animRangedStandard, 20)
	hit(d, 22)
	assert.Equal(t, core.StatusOnPid, d.Status())
	require.Len(t, *got, 1)
	assert.Equal(t, 5, (*got)[0].Distance)
	assert.Equal(t, 2, (*got)[0].ExpectedDelay)

	d.OnAnimationChanged(localID, animRangedStandard, 30)
	hit(d, 33)
	assert.Equal(t, core.StatusOffPid, d.Status())
}

func TestDetector_BallistaScenario(t *testing.T) {
	d, _ := newRecordingDetector(newDuel(3))
	d.OnAnimationChanged(localID, animBallista, 5)
	hit(d, 6)
	assert.Equal(t, core.StatusOnPid, d.Status())
}

func TestDetector_MagicAndThrown(t *testing.T) {
	d, _ := newRecordingDetector(newDuel(7))

	// magic at 7 tiles: 1 + 8/3 = 3
	d.OnAnimationChanged(localID, animMagic, 40)
	hit(d, 44)
	assert.Equal(t, core.StatusOffPid, d.Status())

	// thrown at 7 tiles: 1 + 7/6 = 2
	d.OnAnimationChanged(localID, animThrown, 50)
	hit(d, 52)
	assert.Equal(t, core.StatusOnPid, d.Status())
}

func TestDetector_EarlyHitsplatTolerance(t *testing.T) {
	early, _ := newRecordingDetector(newDuel(1))
	hit(early, 9)
	early.OnAnimationChanged(localID, animMelee, 10)

	sameTick, _ := newRecordingDetector(newDuel(1))
	hit(sameTick, 10)
	sameTick.OnAnimationChanged(localID, animMelee, 10)

	assert.Equal(t, core.StatusOnPid, early.Status())
	assert.Equal(t, sameTick.Status(), early.Status())
}

func TestDetector_HitsplatTooEarlyDoesNotMatch(t *testing.T) {
	d, got := newRecordingDetector(newDuel(1))
	hit(d, 8)
	d.OnAnimationChanged(localID, animMelee, 10)

	assert.Equal(t, core.StatusUnknown, d.Status())
	assert.Empty(t, *got)
	require.NotNil(t, d.attack)
	require.NotNil(t, d.hitsplat, "unmatched hitsplat stays pending")
}

func TestDetector_HitsplatMatchesLateAttackWithinWindow(t *testing.T) {
	d, got := newRecordingDetector(newDuel(1))
	hit(d, 22)
	d.OnAnimationChanged(localID, animMelee, 10)

	require.Len(t, *got, 1)
	assert.Equal(t, core.OutcomeInconclusive, (*got)[0].Outcome)
	assert.Equal(t, 12, (*got)[0].RawDelay)
}

func TestDetector_HitOutsideDelayWindowIsStored(t *testing.T) {
	d, got := newRecordingDetector(newDuel(1))
	d.OnAnimationChanged(localID, animMelee, 10)
	hit(d, 23)

	assert.Empty(t, *got)
	require.NotNil(t, d.attack)
	require.NotNil(t, d.hitsplat)
	assert.Equal(t, 23, d.hitsplat.HitTick)
}

func TestDetector_AttackExpiresOnTick(t *testing.T) {
	c := newDuel(1)
	d, got := newRecordingDetector(c)
	d.OnAnimationChanged(localID, animMelee, 10)

	for tick := 11; tick <= 26; tick++ {
		d.OnGameTick(tick)
	}
	require.NotNil(t, d.attack, "16 ticks old is still pending")

	d.OnGameTick(27)
	assert.Nil(t, d.attack)

	hit(d, 27)
	assert.Empty(t, *got)
	assert.Equal(t, core.StatusUnknown, d.Status())
}

func TestDetector_HitsplatExpiresOnLookup(t *testing.T) {
	d, got := newRecordingDetector(newDuel(1))
	hit(d, 10)
	require.NotNil(t, d.hitsplat)

	d.OnAnimationChanged(localID, animMelee, 27)
	assert.Empty(t, *got)
	assert.Nil(t, d.hitsplat)
	require.NotNil(t, d.attack)
}

func TestDetector_HitsplatExpiresOnTick(t *testing.T) {
	d, _ := newRecordingDetector(newDuel(1))
	hit(d, 10)
	d.OnGameTick(26)
	require.NotNil(t, d.hitsplat)
	d.OnGameTick(27)
	assert.Nil(t, d.hitsplat)
}

func TestDetector_NewAttackSupersedesPending(t *testing.T) {
	d, got := newRecordingDetector(newDuel(1))
	d.OnAnimationChanged(localID, animMelee, 10)
	d.OnAnimationChanged(localID, animMelee, 12)
	hit(d, 12)

	require.Len(t, *got, 1)
	assert.Equal(t, 12, (*got)[0].AttackTick)
	assert.Equal(t, core.StatusOnPid, d.Status())
}

func TestDetector_NewHitsplatSupersedesPending(t *testing.T) {
	d, got := newRecordingDetector(newDuel(1))
	hit(d, 5)
	hit(d, 10)
	d.OnAnimationChanged(localID, animMelee, 9)

	require.Len(t, *got, 1)
	assert.Equal(t, 10, (*got)[0].HitTick)
	assert.Equal(t, core.StatusOffPid, d.Status())
}

func TestDetector_RecoilFilter(t *testing.T) {
	tests := []struct {
		name     string
		ringName string
		amount   int
		ignored  bool
	}{
		{"recoil small hit", "Ring of recoil", 3, true},
		{"recoil lower bound", "Ring of recoil", 1, true},
		{"recoil upper bound", "RING OF RECOIL", 5, true},
		{"recoil above range", "Ring of recoil", 6, false},
		{"recoil zero is a block", "Ring of recoil", 0, false},
		{"suffering imbued", "Ring of suffering (ri)", 2, true},
		{"other ring", "Berserker ring", 3, false},
		{"recoil name prefix only", "Ring of recoil (broken)", 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newDuel(1)
			c.ring = 2550
			c.items[2550] = tt.ringName
			d, got := newRecordingDetector(c)

			d.OnAnimationChanged(localID, animMelee, 10)
			d.OnHitsplatApplied(opponentID, core.HitsplatDamageMe, tt.amount, true, 10)

			if tt.ignored {
				assert.Empty(t, *got)
				assert.Equal(t, core.StatusUnknown, d.Status())
				assert.Nil(t, d.hitsplat, "recoil never creates a sample")
				assert.NotNil(t, d.attack)
			} else {
				require.Len(t, *got, 1)
				assert.Equal(t, core.StatusOnPid, d.Status())
			}
		})
	}
}

func TestDetector_RecoilFilterWithoutRing(t *testing.T) {
	c := newDuel(1)
	c.items[2550] = "Ring of recoil"
	d, got := newRecordingDetector(c)

	d.OnAnimationChanged(localID, animMelee, 10)
	d.OnHitsplatApplied(opponentID, core.HitsplatDamageMe, 3, true, 10)
	assert.Len(t, *got, 1)
}

func TestDetector_OutgoingFilter(t *testing.T) {
	tests := []struct {
		name     string
		kind     core.HitsplatKind
		mine     bool
		mutual   bool
		accepted bool
	}{
		{"flagged mine", core.HitsplatKind(0), true, false, true},
		{"damage me", core.HitsplatDamageMe, false, false, true},
		{"block me", core.HitsplatBlockMe, false, false, true},
		{"damage other while fighting", core.HitsplatDamageOther, false, true, true},
		{"block other while fighting", core.HitsplatBlockOther, false, true, true},
		{"damage other from a stranger", core.HitsplatDamageOther, false, false, false},
		{"poison", core.HitsplatKind(5), false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newDuel(1)
			d, got := newRecordingDetector(c)
			d.OnAnimationChanged(localID, animMelee, 10)

			if !tt.mutual {
				c.update(localID, func(a *core.Actor) { a.Interacting = core.NoActor })
				c.update(opponentID, func(a *core.Actor) { a.Interacting = core.NoActor })
			}
			d.OnHitsplatApplied(opponentID, tt.kind, 10, tt.mine, 10)

			if tt.accepted {
				assert.Len(t, *got, 1)
			} else {
				assert.Empty(t, *got)
				assert.Nil(t, d.hitsplat)
			}
		})
	}
}

func TestDetector_OutgoingFilterOneSidedInteraction(t *testing.T) {
	c := newDuel(1)
	c.update(localID, func(a *core.Actor) { a.Interacting = core.NoActor })
	d, got := newRecordingDetector(c)

	d.OnHitsplatApplied(opponentID, core.HitsplatDamageOther, 10, false, 10)
	require.NotNil(t, d.hitsplat, "victim targeting the local player counts")
	assert.Empty(t, *got)
}

func TestDetector_VictimNameIsCaseInsensitive(t *testing.T) {
	c := newDuel(1)
	d, got := newRecordingDetector(c)
	d.OnAnimationChanged(localID, animMelee, 10)

	c.update(opponentID, func(a *core.Actor) { a.Name = "ZEZIMA" })
	hit(d, 10)
	assert.Len(t, *got, 1)
}

func TestDetector_VictimNameMismatch(t *testing.T) {
	c := newDuel(1)
	c.actors[4] = core.Actor{ID: 4, Kind: core.KindPlayer, Name: "Bystander", HasPosition: true}
	d, got := newRecordingDetector(c)

	d.OnAnimationChanged(localID, animMelee, 10)
	d.OnHitsplatApplied(4, core.HitsplatDamageMe, 10, true, 10)

	assert.Empty(t, *got)
	require.NotNil(t, d.hitsplat)
	assert.Equal(t, "Bystander", d.hitsplat.VictimName)
	require.NotNil(t, d.attack)
}

func TestDetector_IgnoredHitsplats(t *testing.T) {
	c := newDuel(1)
	c.actors[npcID] = core.Actor{ID: npcID, Kind: core.KindNPC, Name: "Goblin"}
	c.actors[5] = core.Actor{ID: 5, Kind: core.KindPlayer}
	d, got := newRecordingDetector(c)

	d.OnHitsplatApplied(npcID, core.HitsplatDamageMe, 4, true, 10)
	d.OnHitsplatApplied(5, core.HitsplatDamageMe, 4, true, 10)
	d.OnHitsplatApplied(42, core.HitsplatDamageMe, 4, true, 10)

	assert.Empty(t, *got)
	assert.Nil(t, d.hitsplat)
}

func TestDetector_IgnoredAnimations(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *fakeClient)
		actor core.ActorID
		anim  int
	}{
		{"other actor animating", func(c *fakeClient) {}, opponentID, animMelee},
		{"not an attack", func(c *fakeClient) {}, localID, animNotAttack},
		{"no local player", func(c *fakeClient) { c.local = core.NoActor }, localID, animMelee},
		{"no target", func(c *fakeClient) {
			c.update(localID, func(a *core.Actor) { a.Interacting = core.NoActor })
		}, localID, animMelee},
		{"npc target", func(c *fakeClient) {
			c.actors[npcID] = core.Actor{ID: npcID, Kind: core.KindNPC, Name: "Goblin", HasPosition: true}
			c.update(localID, func(a *core.Actor) { a.Interacting = npcID })
		}, localID, animMelee},
		{"target without position", func(c *fakeClient) {
			c.update(opponentID, func(a *core.Actor) { a.HasPosition = false })
		}, localID, animMelee},
		{"local without position", func(c *fakeClient) {
			c.update(localID, func(a *core.Actor) { a.HasPosition = false })
		}, localID, animMelee},
		{"unnamed target", func(c *fakeClient) {
			c.update(opponentID, func(a *core.Actor) { a.Name = "" })
		}, localID, animMelee},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newDuel(1)
			tt.setup(c)
			d := New(c)
			d.OnAnimationChanged(tt.actor, tt.anim, 10)
			assert.Nil(t, d.attack)
		})
	}
}

func TestDetector_FallsBackToTrackedTarget(t *testing.T) {
	c := newDuel(2)
	d, got := newRecordingDetector(c)
	d.OnGameTick(1)
	require.Equal(t, opponentID, d.target)

	c.update(localID, func(a *core.Actor) { a.Interacting = core.NoActor })
	d.OnAnimationChanged(localID, animRangedStandard, 10)
	require.NotNil(t, d.attack)
	assert.Equal(t, "Zezima", d.attack.VictimName)

	hit(d, 11)
	require.Len(t, *got, 1)
	assert.Equal(t, core.StatusOnPid, d.Status())
}

func TestDetector_DeadTrackedTargetIsNotUsed(t *testing.T) {
	c := newDuel(2)
	d := New(c)
	d.OnGameTick(1)

	c.update(localID, func(a *core.Actor) { a.Interacting = core.NoActor })
	c.update(opponentID, func(a *core.Actor) { a.Dead = true })
	d.OnAnimationChanged(localID, animRangedStandard, 10)
	assert.Nil(t, d.attack)
}

func TestDetector_TickClearsInvalidTargetAndStatus(t *testing.T) {
	c := newDuel(1)
	d := New(c)
	d.OnAnimationChanged(localID, animMelee, 10)
	hit(d, 10)
	require.Equal(t, core.StatusOnPid, d.Status())

	c.update(localID, func(a *core.Actor) { a.Interacting = core.NoActor })
	d.OnGameTick(11)
	assert.Equal(t, core.StatusOnPid, d.Status(), "tracked target still valid")
	assert.Equal(t, opponentID, d.target)

	c.update(opponentID, func(a *core.Actor) { a.Dead = true })
	d.OnGameTick(12)
	assert.Equal(t, core.NoActor, d.target)
	assert.Equal(t, core.StatusUnknown, d.Status())
}

func TestDetector_TickKeepsStatusWhileAttackPending(t *testing.T) {
	c := newDuel(1)
	d := New(c)
	d.OnAnimationChanged(localID, animMelee, 10)
	hit(d, 10)
	d.OnAnimationChanged(localID, animMelee, 14)

	delete(c.actors, opponentID)
	c.update(localID, func(a *core.Actor) { a.Interacting = core.NoActor })
	d.OnGameTick(15)
	assert.Equal(t, core.NoActor, d.target)
	assert.Equal(t, core.StatusOnPid, d.Status())
}

func TestDetector_LocalPlayerLostSoftResets(t *testing.T) {
	c := newDuel(1)
	d, got := newRecordingDetector(c)
	d.OnAnimationChanged(localID, animMelee, 10)
	hit(d, 10)
	d.OnAnimationChanged(localID, animMelee, 14)

	c.local = core.NoActor
	d.OnGameTick(15)
	assert.Equal(t, core.StatusOnPid, d.Status())
	assert.Nil(t, d.attack)
	assert.Equal(t, core.NoActor, d.target)

	c.local = localID
	hit(d, 15)
	assert.Len(t, *got, 1, "the superseded attack cannot resolve after a soft reset")
}

func TestDetector_Reset(t *testing.T) {
	d := New(newDuel(1))
	d.OnAnimationChanged(localID, animMelee, 10)
	hit(d, 11)
	d.OnAnimationChanged(localID, animMelee, 14)
	require.Equal(t, core.StatusOffPid, d.Status())

	d.Reset()
	assert.Equal(t, core.StatusUnknown, d.Status())
	assert.Nil(t, d.attack)
	assert.Nil(t, d.hitsplat)
	assert.Equal(t, core.NoActor, d.target)

	d.Reset()
	assert.Equal(t, core.StatusUnknown, d.Status())
}

func TestDetector_StatusHook(t *testing.T) {
	type transition struct {
		from, to core.PidStatus
		reason   string
	}
	var got []transition
	d := New(newDuel(1), WithStatusHook(func(from, to core.PidStatus, tick int, reason string) {
		got = append(got, transition{from, to, reason})
	}))

	d.OnAnimationChanged(localID, animMelee, 10)
	hit(d, 10)
	d.OnAnimationChanged(localID, animMelee, 14)
	hit(d, 14)
	d.OnAnimationChanged(localID, animMelee, 18)
	hit(d, 19)
	d.Reset()

	assert.Equal(t, []transition{
		{core.StatusUnknown, core.StatusOnPid, "resolution"},
		{core.StatusOnPid, core.StatusOffPid, "resolution"},
		{core.StatusOffPid, core.StatusUnknown, "reset"},
	}, got)
}

func TestDetector_Pending(t *testing.T) {
	d, _ := newRecordingDetector(newDuel(5))

	attack, hitsplat := d.Pending()
	assert.False(t, attack)
	assert.False(t, hitsplat)

	hit(d, 10)
	attack, hitsplat = d.Pending()
	assert.False(t, attack)
	assert.True(t, hitsplat)

	d.SoftReset()
	d.OnAnimationChanged(localID, animRangedStandard, 20)
	attack, hitsplat = d.Pending()
	assert.True(t, attack)
	assert.False(t, hitsplat)
}
