package engine

import (
	"image"
	"sync"

	"github.com/ConserveLee/pxlreact/internal/engine/screen"
)

// PxlSnapshot is a copy of a slot's state for display.
type PxlSnapshot struct {
	Index    int
	Location image.Point
	Color    screen.Color
	HasColor bool
	Changed  bool
	Reaction string
	State    State
}

// Pxl is one monitored screen location. Its color is only ever written by
// Update, and a bound reaction is evaluated only when the color changed.
type Pxl struct {
	Index   int
	sampler screen.Sampler

	mu       sync.RWMutex
	location image.Point
	color    screen.Color
	hasColor bool
	changed  bool
	reaction *Reaction
}

// NewPxl creates a slot at loc with no color yet.
func NewPxl(index int, loc image.Point, sampler screen.Sampler) *Pxl {
	return &Pxl{Index: index, location: loc, sampler: sampler}
}

// Update samples the location. An unavailable sample leaves the stored color
// untouched and counts as no change. Update only ever raises the changed
// flag; the scheduler lowers it at the start of each pass.
func (p *Pxl) Update() bool {
	p.mu.RLock()
	loc := p.location
	p.mu.RUnlock()

	c, ok := p.sampler.Sample(loc)
	if !ok {
		return false
	}

	p.mu.Lock()
	if p.location != loc || (p.hasColor && p.color == c) {
		p.mu.Unlock()
		return false
	}
	p.color = c
	p.hasColor = true
	p.changed = true
	r := p.reaction
	p.mu.Unlock()

	if r != nil {
		r.Evaluate()
	}
	return true
}

// Bind attaches r, replacing any previous reaction. r may be nil.
func (p *Pxl) Bind(r *Reaction) {
	p.mu.Lock()
	p.reaction = r
	p.mu.Unlock()
}

// Reassign moves the slot and resamples immediately.
func (p *Pxl) Reassign(loc image.Point) bool {
	p.mu.Lock()
	p.location = loc
	p.mu.Unlock()
	return p.Update()
}

// Track moves the slot without sampling. It reports whether the location moved.
func (p *Pxl) Track(loc image.Point) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.location == loc {
		return false
	}
	p.location = loc
	p.changed = true
	return true
}

// ClearChanged starts a new sampling pass.
func (p *Pxl) ClearChanged() {
	p.mu.Lock()
	p.changed = false
	p.mu.Unlock()
}

// Color returns the last sampled color; ok is false before the first sample.
func (p *Pxl) Color() (screen.Color, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.color, p.hasColor
}

func (p *Pxl) Location() image.Point {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.location
}

func (p *Pxl) Reaction() *Reaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reaction
}

// Changed reports whether an Update or Track changed the slot since the
// last ClearChanged.
func (p *Pxl) Changed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.changed
}

// Snapshot copies the slot state.
func (p *Pxl) Snapshot() PxlSnapshot {
	p.mu.RLock()
	s := PxlSnapshot{
		Index:    p.Index,
		Location: p.location,
		Color:    p.color,
		HasColor: p.hasColor,
		Changed:  p.changed,
	}
	r := p.reaction
	p.mu.RUnlock()
	if r != nil {
		s.Reaction = r.Name()
		s.State = r.State()
	}
	return s
}
