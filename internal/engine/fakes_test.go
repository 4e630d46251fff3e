package engine

import (
	"errors"
	"image"
	"sync"
	"time"

	"github.com/ConserveLee/pxlreact/internal/config"
	"github.com/ConserveLee/pxlreact/internal/engine/screen"
)

// scriptedSampler returns queued colors per location, repeating the last one.
// Locations with nothing queued fall back to the fixed map, then to unavailable.
type scriptedSampler struct {
	mu     sync.Mutex
	script map[image.Point][]screen.Color
	fixed  map[image.Point]screen.Color
	calls  int
}

func newScriptedSampler() *scriptedSampler {
	return &scriptedSampler{
		script: make(map[image.Point][]screen.Color),
		fixed:  make(map[image.Point]screen.Color),
	}
}

func (s *scriptedSampler) Queue(p image.Point, colors ...screen.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script[p] = append(s.script[p], colors...)
}

func (s *scriptedSampler) Set(p image.Point, c screen.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.script, p)
	s.fixed[p] = c
}

func (s *scriptedSampler) Sample(p image.Point) (screen.Color, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if q := s.script[p]; len(q) > 0 {
		c := q[0]
		if len(q) > 1 {
			s.script[p] = q[1:]
		}
		return c, true
	}
	c, ok := s.fixed[p]
	return c, ok
}

type fixedPointer struct {
	mu sync.Mutex
	p  image.Point
}

func (f *fixedPointer) Position() image.Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.p
}

func (f *fixedPointer) Move(p image.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.p = p
}

// recordingKeyboard counts key events and can be told to fail or panic.
type recordingKeyboard struct {
	mu      sync.Mutex
	downs   map[string]int
	ups     map[string]int
	events  []string
	failOn  string
	panicOn string
}

func newRecordingKeyboard() *recordingKeyboard {
	return &recordingKeyboard{downs: make(map[string]int), ups: make(map[string]int)}
}

func (k *recordingKeyboard) KeyDown(key string) error {
	if key == k.panicOn {
		panic("keyboard exploded")
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.downs[key]++
	k.events = append(k.events, "down:"+key)
	if key == k.failOn {
		return errors.New("injected failure")
	}
	return nil
}

func (k *recordingKeyboard) KeyUp(key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.ups[key]++
	k.events = append(k.events, "up:"+key)
	return nil
}

func (k *recordingKeyboard) Downs(key string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.downs[key]
}

func (k *recordingKeyboard) Balanced() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, n := range k.downs {
		if k.ups[key] != n {
			return false
		}
	}
	return true
}

func (k *recordingKeyboard) Events() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.events...)
}

type pendingTimer struct {
	delay time.Duration
	fn    func()
}

// manualSubmitter records submissions and holds timers until fired.
type manualSubmitter struct {
	mu        sync.Mutex
	submitted []string
	timers    []pendingTimer
	err       error
}

func (m *manualSubmitter) Submit(name string, a Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, name)
	return m.err
}

func (m *manualSubmitter) After(d time.Duration, fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers = append(m.timers, pendingTimer{delay: d, fn: fn})
	return true
}

func (m *manualSubmitter) Submitted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submitted)
}

func (m *manualSubmitter) Pending() []pendingTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pendingTimer(nil), m.timers...)
}

// Fire runs the timers pending right now; timers they schedule stay pending.
func (m *manualSubmitter) Fire() {
	m.mu.Lock()
	due := m.timers
	m.timers = nil
	m.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

type switchGate struct {
	mu     sync.Mutex
	active bool
}

func (g *switchGate) IsActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

func (g *switchGate) Set(on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = on
}

var (
	hpLoc    = image.Point{X: 134, Y: 1275}
	hpTarget = screen.Color{R: 167, G: 34, B: 46}
	hpEmpty  = screen.Color{R: 90, G: 10, B: 10}
)

func hpDefinition() Definition {
	return Definition{
		Name:     "HP1",
		Location: hpLoc,
		Mode:     TriggerIfDifferent,
		Target:   hpTarget,
		Cooldown: 4 * time.Second,
		ActionID: "hp_flask",
	}
}

func testBounds() image.Rectangle {
	return image.Rect(-2560, 0, 2560, 1440)
}

func testCatalog() Catalog {
	return Catalog{
		"hp_flask": PressKey("1"),
		"mp_flask": PressKey("2"),
	}
}

func zeroRange() config.Range { return config.Range{} }
