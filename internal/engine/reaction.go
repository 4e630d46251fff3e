package engine

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ConserveLee/pxlreact/internal/engine/screen"
	"github.com/ConserveLee/pxlreact/internal/logger"
)

// State is the reaction lifecycle state.
type State int

const (
	Ready State = iota
	Cooldown
)

func (s State) String() string {
	if s == Cooldown {
		return "cooldown"
	}
	return "ready"
}

// ReactionDeps are the collaborators a Reaction needs.
type ReactionDeps struct {
	Gate        SessionGate
	Matcher     screen.Matcher
	Dispatcher  Submitter
	History     *TriggerLog // optional
	Log         *logger.AppLogger
	RearmBurst  int
	RearmFactor float64
}

// Reaction binds a registry definition to a Pxl. It fires at most once per
// cooldown and, when the cooldown ends with the predicate still true, re-arms
// itself through a rate limiter so a stuck color cannot spam actions.
type Reaction struct {
	pxl     *Pxl
	deps    ReactionDeps
	limiter *rate.Limiter

	mu          sync.Mutex
	def         Definition
	action      Action
	state       State
	lastTrigger time.Time
	generation  uint64 // Bumped by Resume so stale cooldown timers are ignored
}

// NewReaction creates a Ready reaction for p.
func NewReaction(p *Pxl, def Definition, action Action, deps ReactionDeps) *Reaction {
	if deps.Gate == nil {
		deps.Gate = AlwaysActive{}
	}
	if deps.Log == nil {
		deps.Log = logger.Discard()
	}
	if deps.RearmBurst <= 0 {
		deps.RearmBurst = 1
	}
	return &Reaction{
		pxl:     p,
		deps:    deps,
		limiter: rate.NewLimiter(rearmLimit(def.Cooldown, deps.RearmFactor), deps.RearmBurst),
		def:     def,
		action:  action,
	}
}

func rearmLimit(cooldown time.Duration, factor float64) rate.Limit {
	if factor <= 0 || cooldown <= 0 {
		return rate.Inf
	}
	return rate.Every(time.Duration(float64(cooldown) * factor))
}

func (r *Reaction) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.def.Name
}

func (r *Reaction) Definition() Definition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.def
}

func (r *Reaction) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Remaining is the cooldown time left, zero when Ready.
func (r *Reaction) Remaining() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Cooldown {
		return 0
	}
	left := r.def.Cooldown - time.Since(r.lastTrigger)
	if left < 0 {
		return 0
	}
	return left
}

// ShouldTrigger is true when the reaction is Ready, the session is active and
// the slot color satisfies the match mode.
func (r *Reaction) ShouldTrigger() bool {
	r.mu.Lock()
	state, def := r.state, r.def
	r.mu.Unlock()

	if state != Ready {
		return false
	}
	if !r.deps.Gate.IsActive() {
		return false
	}
	c, ok := r.pxl.Color()
	if !ok {
		return false
	}
	switch def.Mode {
	case TriggerIfDifferent:
		return r.deps.Matcher.Differs(c, def.Target)
	case TriggerIfEqual:
		return r.deps.Matcher.Similar(c, def.Target)
	default:
		return false
	}
}

// Evaluate triggers when ShouldTrigger holds.
func (r *Reaction) Evaluate() bool {
	if !r.ShouldTrigger() {
		return false
	}
	return r.Trigger()
}

// Trigger moves Ready to Cooldown, hands the action to the dispatcher and
// schedules the return to Ready. It is a no-op unless Ready.
func (r *Reaction) Trigger() bool {
	r.mu.Lock()
	if r.state != Ready {
		r.mu.Unlock()
		return false
	}
	now := time.Now()
	r.state = Cooldown
	r.lastTrigger = now
	gen := r.generation
	def, action := r.def, r.action
	r.mu.Unlock()

	r.deps.Log.Info("Reaction %s triggered -> %s", def.Name, action)
	if err := r.deps.Dispatcher.Submit(def.Name, action); err != nil {
		// The cooldown still runs so a failing action cannot be retried every tick
		r.deps.Log.Error("Dispatch %s failed: %v", def.Name, err)
	}
	if r.deps.History != nil {
		r.deps.History.Record(def.Name, now)
	}
	if !r.deps.Dispatcher.After(def.Cooldown, func() { r.expire(gen) }) {
		r.deps.Log.Debug("[Reaction] %s stays in cooldown: scheduler stopped", def.Name)
	}
	return true
}

func (r *Reaction) expire(gen uint64) {
	r.mu.Lock()
	if gen != r.generation || r.state != Cooldown {
		r.mu.Unlock()
		return
	}
	r.state = Ready
	name := r.def.Name
	r.mu.Unlock()

	r.deps.Log.Debug("[Reaction] %s ready", name)
	r.recheck(gen)
}

// recheck re-arms a reaction whose predicate is still true once its cooldown
// ends. Re-arms beyond the limiter burst are deferred, not dropped.
func (r *Reaction) recheck(gen uint64) {
	r.mu.Lock()
	stale := gen != r.generation
	r.mu.Unlock()
	if stale || !r.ShouldTrigger() {
		return
	}

	if r.limiter.Allow() {
		r.Trigger()
		return
	}
	res := r.limiter.Reserve()
	delay := res.Delay()
	res.Cancel()
	r.deps.Log.Debug("[Reaction] %s re-arm deferred %s", r.Name(), delay)
	r.deps.Dispatcher.After(delay, func() { r.recheck(gen) })
}

// Retarget swaps in an updated definition, keeping the current state.
func (r *Reaction) Retarget(def Definition) {
	r.mu.Lock()
	cooldownChanged := def.Cooldown != r.def.Cooldown
	r.def = def
	r.mu.Unlock()
	if cooldownChanged {
		r.limiter.SetLimit(rearmLimit(def.Cooldown, r.deps.RearmFactor))
	}
}

// Resume invalidates cooldown timers left over from a previous dispatcher.
// An unfinished cooldown stays in force and its expiry is scheduled again for
// the time remaining, so a restart can never fire a reaction early.
func (r *Reaction) Resume() {
	r.mu.Lock()
	r.generation++
	gen := r.generation
	var left time.Duration
	if r.state == Cooldown {
		left = r.def.Cooldown - time.Since(r.lastTrigger)
		if left <= 0 {
			r.state = Ready
		}
	}
	name := r.def.Name
	r.mu.Unlock()

	if left <= 0 {
		return
	}
	if !r.deps.Dispatcher.After(left, func() { r.expire(gen) }) {
		r.deps.Log.Debug("[Reaction] %s stays in cooldown: scheduler stopped", name)
	}
}
