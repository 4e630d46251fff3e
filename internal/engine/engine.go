package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gen2brain/beeep"

	"github.com/ConserveLee/pxlreact/internal/config"
	"github.com/ConserveLee/pxlreact/internal/engine/input"
	"github.com/ConserveLee/pxlreact/internal/engine/screen"
	"github.com/ConserveLee/pxlreact/internal/logger"
)

// Status represents whether the scheduler is running
type Status int

const (
	StatusStopped Status = iota
	StatusRunning
)

const shutdownTimeout = 2 * time.Second

// Providers are the platform services the engine drives. Close, when set,
// releases them and is called exactly once by Engine.Close.
type Providers struct {
	Sampler  screen.Sampler
	Pointer  screen.Pointer
	Keyboard input.Keyboard
	Focus    Focus
	Close    func() error
}

// LiveProviders wires the real screen, pointer, keyboard and window title.
func LiveProviders() Providers {
	reader := screen.NewReader()
	return Providers{
		Sampler:  reader,
		Pointer:  screen.RobotPointer{},
		Keyboard: input.Robot{},
		Focus:    RobotFocus{},
		Close:    reader.Close,
	}
}

// ResolveBounds returns the rectangle reaction locations must fall in.
func ResolveBounds(b config.Bounds) image.Rectangle {
	if b.Auto {
		return screen.VirtualBounds()
	}
	return image.Rect(b.MinX, b.MinY, b.MaxX, b.MaxY)
}

// Engine owns the pixel slots and runs the sampling scheduler.
type Engine struct {
	Status Status

	// StatusFunc receives transient status text (Label)
	StatusFunc func(string)

	cfg       *config.Config
	log       *logger.AppLogger
	providers Providers
	registry  *Registry
	matcher   screen.Matcher
	gate      SessionGate
	poller    *WindowGate // nil when gating is disabled
	history   *TriggerLog
	notify    func(title, message string) error
	pixels    []*Pxl // Slot 0 follows the pointer when preview is on

	dispatcher atomic.Pointer[Dispatcher]

	mu          sync.Mutex
	stopChan    chan struct{}
	wg          sync.WaitGroup
	wasActive   bool // Scheduler goroutine only
	releaseOnce sync.Once
	releaseErr  error

	// Slot writes requested from other goroutines while running
	pendMu  sync.Mutex
	pending []func(running bool)
	wake    chan struct{}
}

// New validates the configuration and builds the registry. An invalid
// definition is fatal here; nothing is partially loaded.
func New(cfg *config.Config, p Providers, log *logger.AppLogger) (*Engine, error) {
	if log == nil {
		log = logger.Discard()
	}
	if p.Sampler == nil || p.Pointer == nil || p.Keyboard == nil {
		return nil, fmt.Errorf("engine: sampler, pointer and keyboard providers are required")
	}
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("engine: tick interval must be positive, got %s", cfg.TickInterval)
	}
	if cfg.PixelCount < 1 {
		return nil, fmt.Errorf("engine: pixel count must be at least 1, got %d", cfg.PixelCount)
	}

	catalog, err := NewCatalog(cfg.Actions)
	if err != nil {
		return nil, fmt.Errorf("load actions: %w", err)
	}
	registry, err := LoadRegistry(cfg.Reactions, catalog, ResolveBounds(cfg.Bounds))
	if err != nil {
		return nil, fmt.Errorf("load reactions: %w", err)
	}

	e := &Engine{
		Status:     StatusStopped,
		StatusFunc: func(string) {},
		cfg:        cfg,
		log:        log,
		providers:  p,
		registry:   registry,
		matcher:    screen.NewMatcher(cfg.Tolerance, cfg.IgnoredDeltas),
		gate:       AlwaysActive{},
		history:    NewTriggerLog(),
		notify:     desktopNotify,
		stopChan:   make(chan struct{}),
		wake:       make(chan struct{}, 1),
	}

	if cfg.Gate.Enabled {
		if p.Focus == nil {
			return nil, fmt.Errorf("engine: gate enabled without a focus provider")
		}
		g, err := NewWindowGate(cfg.Gate, p.Focus, p.Sampler, log)
		if err != nil {
			return nil, err
		}
		e.poller = g
		e.gate = g
	}

	e.pixels = make([]*Pxl, cfg.PixelCount+1)
	for i := range e.pixels {
		e.pixels[i] = NewPxl(i, image.Point{X: i * 11, Y: i * 11}, p.Sampler)
	}

	for index, name := range cfg.Bindings {
		if err := e.Bind(index, name); err != nil {
			return nil, fmt.Errorf("binding %d: %w", index, err)
		}
	}

	registry.OnUpdate(e.retarget)
	return e, nil
}

// Start launches the dispatcher, the gate poller and the scheduler.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.Status == StatusRunning {
		e.mu.Unlock()
		return ErrEngineRunning
	}

	d, err := NewDispatcher(e.providers.Keyboard, e.cfg.Dispatcher, e.log)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.dispatcher.Store(d)

	for _, p := range e.pixels {
		if r := p.Reaction(); r != nil {
			r.Resume()
		}
	}
	if e.poller != nil {
		e.poller.Start(context.Background())
	}

	e.Status = StatusRunning
	e.stopChan = make(chan struct{}) // Re-make channel for restart ability
	e.wasActive = false
	e.wg.Add(1)
	e.mu.Unlock()

	e.log.Info("Reactor started. %d reactions, %d slots, tick %s.", len(e.registry.Names()), len(e.pixels)-1, e.cfg.TickInterval)
	go e.loop()
	return nil
}

// Stop halts the scheduler first, then the gate, then drains the
// dispatcher. It is safe to call when stopped.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Status == StatusStopped {
		return
	}

	close(e.stopChan)
	e.wg.Wait() // No new submissions after this

	if e.poller != nil {
		e.poller.Stop()
	}

	if d := e.dispatcher.Swap(nil); d != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		d.Shutdown(ctx)
		cancel()

		s := d.Stats()
		e.log.Info("Reactor stopped. %s actions executed, %s failed, %s dropped.",
			humanize.Comma(s.Executed), humanize.Comma(s.Failed), humanize.Comma(s.Dropped))
	}

	// Writes queued after the last pass still land, without sampling
	e.runPending(false)

	e.Status = StatusStopped
	e.StatusFunc("Status: Stopped")
}

// Close stops the engine and releases the providers. Further calls return
// the first result.
func (e *Engine) Close() error {
	e.Stop()
	e.releaseOnce.Do(func() {
		if e.providers.Close != nil {
			e.releaseErr = e.providers.Close()
		}
	})
	return e.releaseErr
}

// Running reports whether the scheduler is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Status == StatusRunning
}

// IsActive gates reactions: they fire only while a dispatcher is running and
// the session gate is open.
func (e *Engine) IsActive() bool {
	return e.dispatcher.Load() != nil && e.gate.IsActive()
}

// Submit forwards to the current dispatcher.
func (e *Engine) Submit(name string, a Action) error {
	d := e.dispatcher.Load()
	if d == nil {
		return ErrDispatcherClosed
	}
	return d.Submit(name, a)
}

// After forwards to the current dispatcher.
func (e *Engine) After(delay time.Duration, fn func()) bool {
	d := e.dispatcher.Load()
	if d == nil {
		return false
	}
	return d.After(delay, fn)
}

func (e *Engine) loop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-e.wake:
			e.runPending(true)
		case <-ticker.C:
			e.runPending(true)
			e.tick()
		}
	}
}

// onScheduler applies a slot write. While running it is queued for the
// scheduler goroutine, which owns slot colors; otherwise it runs here.
func (e *Engine) onScheduler(fn func(running bool)) {
	e.mu.Lock()
	running := e.Status == StatusRunning
	if running {
		e.pendMu.Lock()
		e.pending = append(e.pending, fn)
		e.pendMu.Unlock()
	}
	e.mu.Unlock()

	if !running {
		fn(false)
		return
	}
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) runPending(running bool) {
	e.pendMu.Lock()
	fns := e.pending
	e.pending = nil
	e.pendMu.Unlock()
	for _, fn := range fns {
		fn(running)
	}
}

// tick performs one sampling pass. A slow pass delays the next tick; the
// ticker drops the missed ones instead of queueing them.
func (e *Engine) tick() {
	if !e.gate.IsActive() {
		if e.wasActive {
			e.wasActive = false
			e.log.Info("Target application inactive, sampling paused.")
		}
		e.StatusFunc("Status: Paused (target not active)")
		return
	}

	for _, p := range e.pixels {
		p.ClearChanged()
	}
	if e.cfg.MousePreview {
		preview := e.pixels[0]
		preview.Track(e.providers.Pointer.Position())
		preview.Update()
	}
	for _, p := range e.pixels[1:] {
		p.Update()
	}

	if !e.wasActive {
		// Colors that went bad while paused did not change since, so look again
		e.wasActive = true
		e.evaluateAll()
		e.log.Debug("[Engine] Target application active")
	}
	e.StatusFunc("Status: Running")
}

func (e *Engine) evaluateAll() {
	for _, p := range e.pixels[1:] {
		if r := p.Reaction(); r != nil {
			r.Evaluate()
		}
	}
}

func (e *Engine) slot(index int) (*Pxl, error) {
	if index < 1 || index >= len(e.pixels) {
		return nil, fmt.Errorf("%w: %d (have 1..%d)", ErrBadSlot, index, len(e.pixels)-1)
	}
	return e.pixels[index], nil
}

// Bind moves slot index to the named definition's location and attaches a
// fresh reaction. While running the scheduler samples the slot and evaluates
// the reaction right away instead of waiting for the next tick.
func (e *Engine) Bind(index int, name string) error {
	p, err := e.slot(index)
	if err != nil {
		return err
	}
	def, err := e.registry.Resolve(name)
	if err != nil {
		return err
	}
	action, ok := e.registry.Action(def.ActionID)
	if !ok {
		return fmt.Errorf("reaction %q: %w", name, ErrInvalidDefinition)
	}

	r := NewReaction(p, def, action, ReactionDeps{
		Gate:        e,
		Matcher:     e.matcher,
		Dispatcher:  e,
		History:     e.history,
		Log:         e.log,
		RearmBurst:  e.cfg.Rearm.Burst,
		RearmFactor: e.cfg.Rearm.IntervalFactor,
	})
	e.onScheduler(func(running bool) {
		p.Bind(r)
		p.Track(def.Location)
		if running {
			p.Update()
			r.Evaluate()
		}
	})
	e.log.Info("Slot %d bound to %s at (%d, %d)", index, def.Name, def.Location.X, def.Location.Y)
	return nil
}

// Unbind detaches the reaction from slot index.
func (e *Engine) Unbind(index int) error {
	p, err := e.slot(index)
	if err != nil {
		return err
	}
	e.onScheduler(func(bool) { p.Bind(nil) })
	return nil
}

// Reassign moves slot index to loc, or to the pointer when loc is nil.
func (e *Engine) Reassign(index int, loc *image.Point) error {
	p, err := e.slot(index)
	if err != nil {
		return err
	}
	target := e.providers.Pointer.Position()
	if loc != nil {
		target = *loc
	}
	e.onScheduler(func(bool) { p.Reassign(target) })
	return nil
}

// UpdateFromPointer captures the color under the pointer into the named
// definition and notifies the desktop when done.
func (e *Engine) UpdateFromPointer(ctx context.Context, name string) (Definition, error) {
	e.log.Info("Capturing %s from pointer in %s...", name, e.cfg.SettleDelay)
	def, err := e.registry.UpdateFromPointer(ctx, name, e.providers.Pointer, e.providers.Sampler, e.cfg.SettleDelay)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			e.log.Error("Capture %s failed: %v", name, err)
		}
		return Definition{}, err
	}
	e.log.Info("%s now watches %s", def.Name, screen.Report(def.Location, def.Target))
	if e.notify != nil {
		if err := e.notify("pxlreact", fmt.Sprintf("%s captured %s", def.Name, def.Target.Hex())); err != nil {
			e.log.Debug("[Engine] notify: %v", err)
		}
	}
	return def, nil
}

// desktopNotify is best effort; headless Linux has nobody to tell.
func desktopNotify(title, message string) error {
	if runtime.GOOS == "linux" && os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return nil
	}
	return beeep.Notify(title, message, "")
}

// retarget pushes a registry update into every slot bound to it.
func (e *Engine) retarget(def Definition) {
	for _, p := range e.pixels[1:] {
		r := p.Reaction()
		if r == nil || r.Name() != def.Name {
			continue
		}
		r.Retarget(def)
		e.onScheduler(func(bool) {
			if p.Location() != def.Location {
				p.Reassign(def.Location)
			}
		})
	}
}

// Snapshot copies every slot, preview first.
func (e *Engine) Snapshot() []PxlSnapshot {
	out := make([]PxlSnapshot, len(e.pixels))
	for i, p := range e.pixels {
		out[i] = p.Snapshot()
	}
	return out
}

// Reaction returns the reaction bound to slot index, if any.
func (e *Engine) Reaction(index int) *Reaction {
	p, err := e.slot(index)
	if err != nil {
		return nil
	}
	return p.Reaction()
}

func (e *Engine) Registry() *Registry  { return e.registry }
func (e *Engine) History() *TriggerLog { return e.history }

// Gate returns the window gate, or nil when gating is disabled.
func (e *Engine) Gate() *WindowGate { return e.poller }

// DispatchStats returns the running dispatcher's counters.
func (e *Engine) DispatchStats() (DispatchStats, bool) {
	d := e.dispatcher.Load()
	if d == nil {
		return DispatchStats{}, false
	}
	return d.Stats(), true
}
