package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/remeh/sizedwaitgroup"

	"github.com/ConserveLee/pxlreact/internal/config"
	"github.com/ConserveLee/pxlreact/internal/engine/input"
	"github.com/ConserveLee/pxlreact/internal/logger"
)

// Submitter is what a Reaction needs from the dispatcher.
type Submitter interface {
	Submit(name string, a Action) error
	After(d time.Duration, fn func()) bool
}

// DispatchStats counts dispatcher outcomes.
type DispatchStats struct {
	Submitted int64
	Executed  int64
	Failed    int64
	Dropped   int64 // Queue full at submission
	Cancelled int64 // Skipped during shutdown before any key went down
}

type job struct {
	name      string
	action    Action
	submitted time.Time
}

// Dispatcher runs actions on a bounded pool with humanized timing. Submit
// never blocks the caller.
type Dispatcher struct {
	keys  input.Keyboard
	log   *logger.AppLogger
	react *JitterPool
	hold  *JitterPool
	gap   *JitterPool

	jobs   chan job
	swg    sizedwaitgroup.SizedWaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	fed    chan struct{}

	mu     sync.RWMutex
	closed bool
	timers map[*time.Timer]struct{}

	submitted, executed, failed, dropped, cancelled atomic.Int64
}

// NewDispatcher starts the feeder; workers are spawned per job up to cfg.Workers.
func NewDispatcher(keys input.Keyboard, cfg config.Dispatcher, log *logger.AppLogger) (*Dispatcher, error) {
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("dispatcher workers must be positive, got %d", cfg.Workers)
	}
	react, err := NewJitterPool(cfg.ReactDelay, cfg.Precompute, nil)
	if err != nil {
		return nil, fmt.Errorf("react delay: %w", err)
	}
	hold, err := NewJitterPool(cfg.PressHold, cfg.Precompute, nil)
	if err != nil {
		return nil, fmt.Errorf("press hold: %w", err)
	}
	gap, err := NewJitterPool(cfg.SequenceGap, cfg.Precompute, nil)
	if err != nil {
		return nil, fmt.Errorf("sequence gap: %w", err)
	}
	return newDispatcher(keys, cfg.Workers, cfg.Queue, react, hold, gap, log), nil
}

func newDispatcher(keys input.Keyboard, workers, queue int, react, hold, gap *JitterPool, log *logger.AppLogger) *Dispatcher {
	if queue < 0 {
		queue = 0
	}
	if log == nil {
		log = logger.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		keys:   keys,
		log:    log,
		react:  react,
		hold:   hold,
		gap:    gap,
		jobs:   make(chan job, queue),
		swg:    sizedwaitgroup.New(workers),
		ctx:    ctx,
		cancel: cancel,
		fed:    make(chan struct{}),
		timers: make(map[*time.Timer]struct{}),
	}
	go d.feed()
	return d
}

// Submit enqueues a for execution and returns immediately.
func (d *Dispatcher) Submit(name string, a Action) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	d.submitted.Add(1)
	select {
	case d.jobs <- job{name: name, action: a, submitted: time.Now()}:
		return nil
	default:
		d.dropped.Add(1)
		return fmt.Errorf("dispatch %s: queue full", name)
	}
}

// After runs fn once delay has elapsed unless the dispatcher is shut down first.
func (d *Dispatcher) After(delay time.Duration, fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.timers, t)
		closed := d.closed
		d.mu.Unlock()
		if !closed {
			fn()
		}
	})
	d.timers[t] = struct{}{}
	return true
}

// Shutdown stops accepting work and cancels pending timers. Queued actions
// drain until ctx expires; after that remaining pre-delays are cut short. A
// key that went down is always released.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for t := range d.timers {
		t.Stop()
	}
	d.timers = nil
	close(d.jobs)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-d.fed
		d.swg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		d.cancel()
		<-done
	}
	d.cancel()
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Submitted: d.submitted.Load(),
		Executed:  d.executed.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
		Cancelled: d.cancelled.Load(),
	}
}

func (d *Dispatcher) feed() {
	defer close(d.fed)
	for j := range d.jobs {
		d.swg.Add()
		go func(j job) {
			defer d.swg.Done()
			d.execute(j)
		}(j)
	}
}

func (d *Dispatcher) execute(j job) {
	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			d.log.Error("Action %s for %s panicked: %v", j.action, j.name, r)
		}
	}()

	if !d.sleep(d.react.Next()) {
		d.cancelled.Add(1)
		d.log.Debug("[Dispatch] %s cancelled before pressing", j.name)
		return
	}

	ok := true
	switch j.action.Kind {
	case ActionPressKey:
		ok = d.press(j.action.Keys[0], d.hold.Next())
	case ActionHoldKey:
		ok = d.press(j.action.Keys[0], j.action.Hold)
	case ActionPressSequence:
		for i, key := range j.action.Keys {
			if i > 0 && !d.sleep(d.gap.Next()) {
				d.log.Debug("[Dispatch] %s sequence cut short after %d keys", j.name, i)
				break
			}
			ok = d.press(key, d.hold.Next()) && ok
		}
	default:
		ok = false
		d.log.Error("Action %s for %s has unknown kind", j.action, j.name)
	}

	if ok {
		d.executed.Add(1)
	} else {
		d.failed.Add(1)
	}
	d.log.Debug("[Dispatch] %s %s done in %s", j.name, j.action, time.Since(j.submitted))
}

// press holds key for hold; the release is sent even if the press failed or
// the hold was interrupted.
func (d *Dispatcher) press(key string, hold time.Duration) (ok bool) {
	ok = true
	if err := d.keys.KeyDown(key); err != nil {
		ok = false
		d.log.Error("Key down failed: %v", err)
	}
	defer func() {
		if err := d.keys.KeyUp(key); err != nil {
			ok = false
			d.log.Error("Key up failed: %v", err)
		}
	}()
	d.sleep(hold)
	return ok
}

// sleep waits for delay or until the dispatcher is cancelled.
func (d *Dispatcher) sleep(delay time.Duration) bool {
	if delay <= 0 {
		return d.ctx.Err() == nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-d.ctx.Done():
		return false
	}
}
