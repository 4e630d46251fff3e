package engine

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-vgo/robotgo"

	"github.com/ConserveLee/pxlreact/internal/config"
	"github.com/ConserveLee/pxlreact/internal/constants"
	"github.com/ConserveLee/pxlreact/internal/engine/screen"
	"github.com/ConserveLee/pxlreact/internal/logger"
)

// SessionGate reports whether the target application is active. Any failure
// while checking must read as inactive.
type SessionGate interface {
	IsActive() bool
}

// AlwaysActive is the gate used when gating is disabled.
type AlwaysActive struct{}

func (AlwaysActive) IsActive() bool { return true }

// Focus reports the title of the foreground window.
type Focus interface {
	ForegroundTitle() (string, error)
}

// RobotFocus reads the foreground window title through robotgo.
type RobotFocus struct{}

func (RobotFocus) ForegroundTitle() (string, error) {
	title := robotgo.GetTitle()
	if title == "" {
		return "", fmt.Errorf("no foreground window title")
	}
	return title, nil
}

// WindowGate polls the foreground title and an optional marker pixel on its
// own interval and caches the result, so IsActive never blocks the tick.
// Both checks are exact: an overlay whose title merely contains the target,
// or a marker one step off, reads as inactive.
type WindowGate struct {
	focus     Focus
	sampler   screen.Sampler
	title     string
	useMarker bool
	marker    image.Point
	want      screen.Color
	interval  time.Duration
	log       *logger.AppLogger

	active   atomic.Bool
	inApp    atomic.Bool
	markerOK atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWindowGate validates the gate configuration.
func NewWindowGate(cfg config.Gate, focus Focus, sampler screen.Sampler, log *logger.AppLogger) (*WindowGate, error) {
	if cfg.WindowTitle == "" {
		return nil, fmt.Errorf("gate: window title must not be empty")
	}
	g := &WindowGate{
		focus:     focus,
		sampler:   sampler,
		title:     cfg.WindowTitle,
		useMarker: cfg.Marker.Enabled,
		marker:    image.Point{X: cfg.Marker.X, Y: cfg.Marker.Y},
		interval:  cfg.Interval,
		log:       log,
	}
	if g.interval <= 0 {
		g.interval = constants.GatePollInterval
	}
	if g.useMarker {
		if len(cfg.Marker.Color) != 3 {
			return nil, fmt.Errorf("gate: marker color needs 3 channels, got %d", len(cfg.Marker.Color))
		}
		for _, ch := range cfg.Marker.Color {
			if ch < 0 || ch > 255 {
				return nil, fmt.Errorf("gate: marker channel %d out of range", ch)
			}
		}
		g.want = screen.Color{R: uint8(cfg.Marker.Color[0]), G: uint8(cfg.Marker.Color[1]), B: uint8(cfg.Marker.Color[2])}
	}
	return g, nil
}

// IsActive returns the last polled state.
func (g *WindowGate) IsActive() bool {
	return g.active.Load()
}

// Diagnose returns the two halves of the last poll separately.
func (g *WindowGate) Diagnose() (inApp, markerOK bool) {
	return g.inApp.Load(), g.markerOK.Load()
}

// Refresh polls once and stores the result.
func (g *WindowGate) Refresh() bool {
	inApp, markerOK := g.check()
	g.inApp.Store(inApp)
	g.markerOK.Store(markerOK)
	active := inApp && markerOK
	if was := g.active.Swap(active); was != active {
		g.log.Debug("[Gate] active=%v (in app=%v, marker=%v)", active, inApp, markerOK)
	}
	return active
}

func (g *WindowGate) check() (inApp, markerOK bool) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("Session check panicked: %v", r)
			inApp, markerOK = false, false
		}
	}()

	title, err := g.focus.ForegroundTitle()
	if err != nil {
		return false, false
	}
	inApp = title == g.title

	if !g.useMarker {
		return inApp, true
	}
	c, ok := g.sampler.Sample(g.marker)
	if !ok {
		return inApp, false
	}
	return inApp, c == g.want
}

// Start polls until Stop or ctx is done. The first poll runs synchronously.
func (g *WindowGate) Start(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		return
	}
	g.Refresh()

	ctx, g.cancel = context.WithCancel(ctx)
	g.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.Refresh()
			}
		}
	}(g.done)
}

// Stop ends polling and marks the gate inactive.
func (g *WindowGate) Stop() {
	g.mu.Lock()
	cancel, done := g.cancel, g.done
	g.cancel, g.done = nil, nil
	g.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	g.active.Store(false)
}
