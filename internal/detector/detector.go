// Package detector infers whether the local player's attacks are processed
// on PID by pairing attack animations with the hitsplats they cause.
//
// All On* methods must be called from one goroutine (the host's game-logic
// timeline). Status may be read from any goroutine.
package detector

import (
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/livepid/tracker/internal/classifier"
	"github.com/livepid/tracker/pkg/core"
)

const (
	recoilMinDamage       = 1
	recoilMaxDamage       = 5
	ringOfRecoilName      = "ring of recoil"
	ringOfSufferingPrefix = "ring of suffering"
)

// Client is the read-only view of host state the detector queries.
type Client interface {
	// LocalActor returns the local player, or false when there is none.
	LocalActor() (core.Actor, bool)
	// Actor looks up any actor by id.
	Actor(id core.ActorID) (core.Actor, bool)
	// EquippedRing returns the item id in the local player's ring slot.
	EquippedRing() (itemID int, ok bool)
	// ItemName returns the display name of an item.
	ItemName(itemID int) (string, bool)
}

// StatusHook is called when the published status changes value.
type StatusHook func(from, to core.PidStatus, tick int, reason string)

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger used for per-sample debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithResolutionHook registers a callback for every consumed attack/hit pair,
// conclusive or not. It runs on the caller's goroutine.
func WithResolutionHook(fn func(core.Resolution)) Option {
	return func(d *Detector) {
		d.onResolve = fn
	}
}

// WithStatusHook registers a callback for status transitions.
func WithStatusHook(fn StatusHook) Option {
	return func(d *Detector) {
		d.onStatus = fn
	}
}

// Detector pairs the local player's attacks with their hitsplats and keeps
// the resulting PID status.
type Detector struct {
	client    Client
	logger    *slog.Logger
	onResolve func(core.Resolution)
	onStatus  StatusHook
	now       func() time.Time

	target   core.ActorID
	attack   *core.AttackSample
	hitsplat *core.HitsplatSample

	status atomic.Int32
}

// New creates a Detector with no target, no pending samples and an UNKNOWN status.
func New(client Client, opts ...Option) *Detector {
	d := &Detector{
		client: client,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
		target: core.NoActor,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Status returns the last published PID status.
func (d *Detector) Status() core.PidStatus {
	return core.PidStatus(d.status.Load())
}

// Pending reports which sample slots are occupied. Timeline goroutine only.
func (d *Detector) Pending() (attack, hitsplat bool) {
	return d.attack != nil, d.hitsplat != nil
}

// Reset clears the target, both pending samples and the status.
func (d *Detector) Reset() {
	d.SoftReset()
	d.setStatus(core.StatusUnknown, 0, "reset")
}

// SoftReset clears the target and both pending samples but keeps the status.
func (d *Detector) SoftReset() {
	d.target = core.NoActor
	d.clearPending()
}

// OnGameTick refreshes the tracked target and expires stale samples.
func (d *Detector) OnGameTick(tick int) {
	local, ok := d.client.LocalActor()
	if !ok {
		if d.target != core.NoActor || d.attack != nil || d.hitsplat != nil {
			d.logger.Debug("local player lost, clearing pending samples", "tick", tick)
		}
		d.SoftReset()
		return
	}

	if other, ok := d.interactingPlayer(local); ok {
		d.target = other.ID
	} else if !d.validTarget() {
		d.target = core.NoActor
	}

	if d.attack != nil && tick-d.attack.AttackTick > maxSampleAgeTicks {
		d.logger.Debug("attack sample expired", "victim", d.attack.VictimName, "attackTick", d.attack.AttackTick, "tick", tick)
		d.attack = nil
	}
	if d.hitsplat != nil && tick-d.hitsplat.HitTick > maxSampleAgeTicks {
		d.logger.Debug("hitsplat sample expired", "victim", d.hitsplat.VictimName, "hitTick", d.hitsplat.HitTick, "tick", tick)
		d.hitsplat = nil
	}

	if d.target == core.NoActor && d.attack == nil {
		d.setStatus(core.StatusUnknown, tick, "no target")
	}
}

// OnAnimationChanged records an attack sample when the local player starts a
// classified attack animation.
func (d *Detector) OnAnimationChanged(actorID core.ActorID, animationID int, tick int) {
	local, ok := d.client.LocalActor()
	if !ok || actorID != local.ID {
		return
	}

	bucket, ok := classifier.Classify(animationID)
	if !ok {
		return
	}

	target, ok := d.resolveTarget(local)
	if !ok {
		return
	}
	if !local.HasPosition || !target.HasPosition {
		return
	}
	if !target.Named() {
		return
	}

	d.target = target.ID
	sample := core.AttackSample{
		AttackTick: tick,
		VictimName: target.Name,
		Distance:   Distance(local.Position, target.Position),
		Bucket:     bucket,
		Attacker:   local.Position,
		Victim:     target.Position,
	}

	if hit, ok := d.takeMatchingHitsplat(sample, tick); ok {
		d.resolve(sample, hit.HitTick)
		d.clearPending()
		return
	}

	if d.attack != nil {
		d.logger.Debug("attack sample superseded", "victim", d.attack.VictimName, "attackTick", d.attack.AttackTick)
	}
	d.attack = &sample
	d.logger.Debug("attack sample stored",
		"victim", sample.VictimName,
		"bucket", sample.Bucket,
		"distance", sample.Distance,
		"tick", tick,
	)
}

// OnHitsplatApplied matches an outgoing hitsplat against the pending attack,
// or keeps it pending until the attack animation arrives.
func (d *Detector) OnHitsplatApplied(actorID core.ActorID, kind core.HitsplatKind, amount int, mine bool, tick int) {
	victim, ok := d.client.Actor(actorID)
	if !ok || !victim.IsPlayer() || !victim.Named() {
		return
	}

	if d.isRecoilHitsplat(amount) {
		return
	}
	if !d.isLocalOutgoing(victim, kind, mine) {
		return
	}

	if sample, ok := d.takeMatchingAttack(victim.Name, tick); ok {
		d.resolve(sample, tick)
		d.clearPending()
		return
	}

	d.hitsplat = &core.HitsplatSample{HitTick: tick, VictimName: victim.Name}
	d.logger.Debug("hitsplat sample stored", "victim", victim.Name, "tick", tick)
}

func (d *Detector) takeMatchingAttack(victimName string, hitTick int) (core.AttackSample, bool) {
	if d.attack == nil {
		return core.AttackSample{}, false
	}

	age := hitTick - d.attack.AttackTick
	if age > maxSampleAgeTicks {
		d.attack = nil
		return core.AttackSample{}, false
	}
	if age < 0 || age > maxHitDelayTicks {
		return core.AttackSample{}, false
	}
	if !strings.EqualFold(d.attack.VictimName, victimName) {
		return core.AttackSample{}, false
	}
	return *d.attack, true
}

func (d *Detector) takeMatchingHitsplat(sample core.AttackSample, tick int) (core.HitsplatSample, bool) {
	if d.hitsplat == nil {
		return core.HitsplatSample{}, false
	}

	if tick-d.hitsplat.HitTick > maxSampleAgeTicks {
		d.hitsplat = nil
		return core.HitsplatSample{}, false
	}
	if !strings.EqualFold(d.hitsplat.VictimName, sample.VictimName) {
		return core.HitsplatSample{}, false
	}
	raw := d.hitsplat.HitTick - sample.AttackTick
	if raw < -earlyHitsplatToleranceTicks || raw > maxHitDelayTicks {
		return core.HitsplatSample{}, false
	}
	return *d.hitsplat, true
}

// resolve judges one attack/hit pair. An inconclusive or invalid pair leaves
// the status untouched.
func (d *Detector) resolve(sample core.AttackSample, hitTick int) {
	res := core.Resolution{
		Time:       d.now(),
		AttackTick: sample.AttackTick,
		HitTick:    hitTick,
		VictimName: sample.VictimName,
		Distance:   sample.Distance,
		Bucket:     sample.Bucket,
		RawDelay:   hitTick - sample.AttackTick,
		Attacker:   sample.Attacker,
		Victim:     sample.Victim,
	}

	delay, ok := normalizeDelay(res.RawDelay)
	res.Delay = delay
	res.ExpectedDelay = ExpectedDelay(sample.Bucket, sample.Distance)

	switch {
	case !ok:
		res.Outcome = core.OutcomeInvalid
	case delay == res.ExpectedDelay:
		res.Outcome = core.OutcomeOnPid
		d.setStatus(core.StatusOnPid, hitTick, "resolution")
	case delay == res.ExpectedDelay+1:
		res.Outcome = core.OutcomeOffPid
		d.setStatus(core.StatusOffPid, hitTick, "resolution")
	default:
		res.Outcome = core.OutcomeInconclusive
	}
	res.Status = d.Status()

	d.logger.Debug("sample resolved",
		"victim", res.VictimName,
		"bucket", res.Bucket,
		"distance", res.Distance,
		"delay", res.Delay,
		"expected", res.ExpectedDelay,
		"outcome", res.Outcome,
	)
	if d.onResolve != nil {
		d.onResolve(res)
	}
}

func (d *Detector) setStatus(status core.PidStatus, tick int, reason string) {
	prev := core.PidStatus(d.status.Swap(int32(status)))
	if prev != status && d.onStatus != nil {
		d.onStatus(prev, status, tick, reason)
	}
}

func (d *Detector) clearPending() {
	d.attack = nil
	d.hitsplat = nil
}

// interactingPlayer returns the player the local actor is interacting with.
func (d *Detector) interactingPlayer(local core.Actor) (core.Actor, bool) {
	if local.Interacting == core.NoActor {
		return core.Actor{}, false
	}
	other, ok := d.client.Actor(local.Interacting)
	if !ok || !other.IsPlayer() {
		return core.Actor{}, false
	}
	return other, true
}

// resolveTarget prefers the current interaction and falls back to the last
// valid tracked target.
func (d *Detector) resolveTarget(local core.Actor) (core.Actor, bool) {
	if other, ok := d.interactingPlayer(local); ok {
		return other, true
	}
	if d.target == core.NoActor {
		return core.Actor{}, false
	}
	target, ok := d.client.Actor(d.target)
	if !ok || !target.Named() || target.Dead {
		return core.Actor{}, false
	}
	return target, true
}

func (d *Detector) validTarget() bool {
	if d.target == core.NoActor {
		return false
	}
	target, ok := d.client.Actor(d.target)
	return ok && target.Named() && !target.Dead
}

// isLocalOutgoing reports whether the hitsplat was caused by the local player.
func (d *Detector) isLocalOutgoing(victim core.Actor, kind core.HitsplatKind, mine bool) bool {
	if mine || kind.ByLocal() {
		return true
	}
	if !kind.ByOther() {
		return false
	}

	local, ok := d.client.LocalActor()
	if !ok {
		return false
	}
	return local.Interacting == victim.ID || victim.Interacting == local.ID
}

// isRecoilHitsplat reports whether a small hit is likely a recoil echo from
// the local player's ring rather than an attack landing.
func (d *Detector) isRecoilHitsplat(amount int) bool {
	if amount < recoilMinDamage || amount > recoilMaxDamage {
		return false
	}

	itemID, ok := d.client.EquippedRing()
	if !ok {
		return false
	}
	name, ok := d.client.ItemName(itemID)
	if !ok {
		return false
	}

	name = strings.ToLower(name)
	return name == ringOfRecoilName || strings.HasPrefix(name, ringOfSufferingPrefix)
}
