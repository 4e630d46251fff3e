package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConserveLee/pxlreact/internal/engine/screen"
)

func newHPReaction(t *testing.T, gate SessionGate, sub Submitter, burst int) (*Pxl, *Reaction, *scriptedSampler) {
	t.Helper()
	sampler := newScriptedSampler()
	p := NewPxl(1, hpLoc, sampler)
	r := NewReaction(p, hpDefinition(), PressKey("1"), ReactionDeps{
		Gate:        gate,
		Matcher:     screen.NewMatcher(400, nil),
		Dispatcher:  sub,
		History:     NewTriggerLog(),
		RearmBurst:  burst,
		RearmFactor: 2,
	})
	p.Bind(r)
	return p, r, sampler
}

func TestHealthDropTriggersOnce(t *testing.T) {
	sub := &manualSubmitter{}
	p, r, sampler := newHPReaction(t, AlwaysActive{}, sub, 3)
	sampler.Queue(hpLoc, hpTarget, hpTarget, hpEmpty, hpEmpty)

	assert.True(t, p.Update(), "first sample is a change")
	assert.Equal(t, 0, sub.Submitted())

	assert.False(t, p.Update())
	assert.Equal(t, 0, sub.Submitted())

	assert.True(t, p.Update())
	assert.Equal(t, 1, sub.Submitted())
	assert.Equal(t, Cooldown, r.State())

	assert.False(t, p.Update())
	assert.Equal(t, 1, sub.Submitted())

	pending := sub.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 4*time.Second, pending[0].delay)
}

func TestUnavailableSampleIsNoChange(t *testing.T) {
	sub := &manualSubmitter{}
	p, _, _ := newHPReaction(t, AlwaysActive{}, sub, 3)

	assert.False(t, p.Update())
	_, ok := p.Color()
	assert.False(t, ok)
	assert.False(t, p.Changed())
	assert.Equal(t, 0, sub.Submitted())
}

func TestInactiveGateBlocksTrigger(t *testing.T) {
	gate := &switchGate{}
	sub := &manualSubmitter{}
	p, r, sampler := newHPReaction(t, gate, sub, 3)
	sampler.Set(hpLoc, hpEmpty)

	p.Update()
	assert.Equal(t, 0, sub.Submitted())
	assert.Equal(t, Ready, r.State())

	gate.Set(true)
	assert.True(t, r.Evaluate())
	assert.Equal(t, 1, sub.Submitted())
}

func TestTriggerIfEqual(t *testing.T) {
	sub := &manualSubmitter{}
	sampler := newScriptedSampler()
	p := NewPxl(1, hpLoc, sampler)
	def := hpDefinition()
	def.Mode = TriggerIfEqual
	r := NewReaction(p, def, PressKey("1"), ReactionDeps{Matcher: screen.NewMatcher(400, nil), Dispatcher: sub})
	p.Bind(r)

	sampler.Queue(hpLoc, hpEmpty, screen.Color{R: 170, G: 30, B: 50})
	p.Update()
	assert.Equal(t, 0, sub.Submitted())
	p.Update() // distance 9+16+16 is within tolerance
	assert.Equal(t, 1, sub.Submitted())
}

func TestTriggerOnlyFromReady(t *testing.T) {
	sub := &manualSubmitter{}
	_, r, _ := newHPReaction(t, AlwaysActive{}, sub, 3)

	assert.True(t, r.Trigger())
	assert.False(t, r.Trigger())
	assert.Equal(t, 1, sub.Submitted())
	assert.Positive(t, r.Remaining())
}

func TestSubmitErrorStillCoolsDown(t *testing.T) {
	sub := &manualSubmitter{err: ErrDispatcherClosed}
	_, r, _ := newHPReaction(t, AlwaysActive{}, sub, 3)

	assert.True(t, r.Trigger())
	assert.Equal(t, Cooldown, r.State())
	assert.Len(t, sub.Pending(), 1)
}

func TestCooldownExpiryRearmsWhileStillDifferent(t *testing.T) {
	sub := &manualSubmitter{}
	p, r, sampler := newHPReaction(t, AlwaysActive{}, sub, 3)
	sampler.Set(hpLoc, hpEmpty)

	p.Update()
	require.Equal(t, 1, sub.Submitted())

	sub.Fire()
	assert.Equal(t, 2, sub.Submitted(), "stuck color re-arms after cooldown")
	assert.Equal(t, Cooldown, r.State())
}

func TestCooldownExpiryWithRecoveredColor(t *testing.T) {
	sub := &manualSubmitter{}
	p, r, sampler := newHPReaction(t, AlwaysActive{}, sub, 3)
	sampler.Queue(hpLoc, hpEmpty, hpTarget)

	p.Update()
	p.Update()
	require.Equal(t, 1, sub.Submitted())

	sub.Fire()
	assert.Equal(t, Ready, r.State())
	assert.Equal(t, 1, sub.Submitted())
	assert.Empty(t, sub.Pending())
}

func TestRearmLimiterDefersBeyondBurst(t *testing.T) {
	sub := &manualSubmitter{}
	p, r, sampler := newHPReaction(t, AlwaysActive{}, sub, 1)
	sampler.Set(hpLoc, hpEmpty)

	p.Update()
	sub.Fire() // first re-arm uses the burst
	require.Equal(t, 2, sub.Submitted())

	sub.Fire() // second re-arm must wait for the limiter
	assert.Equal(t, 2, sub.Submitted())
	assert.Equal(t, Ready, r.State())

	pending := sub.Pending()
	require.Len(t, pending, 1)
	assert.Greater(t, pending[0].delay, 7*time.Second)
	assert.LessOrEqual(t, pending[0].delay, 8*time.Second)
}

func TestResumeKeepsUnfinishedCooldown(t *testing.T) {
	sub := &manualSubmitter{}
	p, r, sampler := newHPReaction(t, AlwaysActive{}, sub, 3)
	sampler.Set(hpLoc, hpEmpty)

	p.Update()
	require.Equal(t, Cooldown, r.State())
	r.Resume()
	assert.Equal(t, Cooldown, r.State())
	assert.False(t, r.Evaluate(), "still cooling down after resume")

	pending := sub.Pending()
	require.Len(t, pending, 2)
	assert.Greater(t, pending[1].delay, 3*time.Second)
	assert.LessOrEqual(t, pending[1].delay, 4*time.Second)

	// The timer from before the resume is stale
	pending[0].fn()
	assert.Equal(t, Cooldown, r.State())
	assert.Equal(t, 1, sub.Submitted())

	// The rescheduled expiry re-arms on the stuck color
	pending[1].fn()
	assert.Equal(t, 2, sub.Submitted())
}

func TestResumeAfterCooldownElapsed(t *testing.T) {
	sub := &manualSubmitter{}
	_, r, _ := newHPReaction(t, AlwaysActive{}, sub, 3)
	def := hpDefinition()
	def.Cooldown = time.Millisecond
	r.Retarget(def)

	require.True(t, r.Trigger())
	time.Sleep(5 * time.Millisecond)
	r.Resume()

	assert.Equal(t, Ready, r.State())
	assert.Len(t, sub.Pending(), 1, "nothing left to schedule")
}

func TestRetargetKeepsState(t *testing.T) {
	sub := &manualSubmitter{}
	_, r, _ := newHPReaction(t, AlwaysActive{}, sub, 3)
	r.Trigger()

	def := hpDefinition()
	def.Target = hpEmpty
	def.Cooldown = time.Second
	r.Retarget(def)

	assert.Equal(t, Cooldown, r.State())
	assert.Equal(t, hpEmpty, r.Definition().Target)
}

func TestCooldownReturnsToReadyInTime(t *testing.T) {
	keys := newRecordingKeyboard()
	d := newDispatcher(keys, 2, 4, mustPool(t, zeroRange()), mustPool(t, zeroRange()), mustPool(t, zeroRange()), nil)
	defer d.Shutdown(t.Context())

	sampler := newScriptedSampler()
	p := NewPxl(1, hpLoc, sampler)
	def := hpDefinition()
	def.Cooldown = 100 * time.Millisecond
	r := NewReaction(p, def, PressKey("1"), ReactionDeps{Matcher: screen.NewMatcher(400, nil), Dispatcher: d})
	p.Bind(r)

	start := time.Now()
	require.True(t, r.Trigger())
	assert.Eventually(t, func() bool { return r.State() == Ready }, 400*time.Millisecond, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestTriggerSpacingRespectsCooldown(t *testing.T) {
	keys := newRecordingKeyboard()
	d := newDispatcher(keys, 2, 4, mustPool(t, zeroRange()), mustPool(t, zeroRange()), mustPool(t, zeroRange()), nil)

	history := NewTriggerLog()
	sampler := newScriptedSampler()
	sampler.Set(hpLoc, hpEmpty)
	p := NewPxl(1, hpLoc, sampler)
	def := hpDefinition()
	def.Cooldown = 30 * time.Millisecond
	r := NewReaction(p, def, PressKey("1"), ReactionDeps{
		Matcher:     screen.NewMatcher(400, nil),
		Dispatcher:  d,
		History:     history,
		RearmBurst:  1,
		RearmFactor: 4,
	})
	p.Bind(r)

	p.Update()
	assert.Eventually(t, func() bool { return history.Count("HP1") >= 3 }, 2*time.Second, 5*time.Millisecond)
	d.Shutdown(t.Context())

	gap, ok := history.MinSpacing("HP1")
	require.True(t, ok)
	assert.GreaterOrEqual(t, gap, 30*time.Millisecond)

	// The second re-arm exceeds the burst and waits for the limiter
	times := history.Times("HP1")
	require.GreaterOrEqual(t, len(times), 3)
	assert.GreaterOrEqual(t, times[2].Sub(times[1]), 55*time.Millisecond)
	assert.True(t, keys.Balanced())
}
