package engine

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/ConserveLee/pxlreact/internal/config"
	"github.com/ConserveLee/pxlreact/internal/constants"
	"github.com/ConserveLee/pxlreact/internal/engine/screen"
)

// MatchMode selects the predicate a reaction fires on.
type MatchMode int

const (
	ModeUnknown MatchMode = iota
	TriggerIfEqual
	TriggerIfDifferent
)

// ParseMatchMode accepts the current names and the legacy react_if_* aliases.
func ParseMatchMode(s string) MatchMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trigger_if_equal", "react_if_color":
		return TriggerIfEqual
	case "trigger_if_different", "react_if_not_color":
		return TriggerIfDifferent
	default:
		return ModeUnknown
	}
}

func (m MatchMode) String() string {
	switch m {
	case TriggerIfEqual:
		return "trigger_if_equal"
	case TriggerIfDifferent:
		return "trigger_if_different"
	default:
		return "unknown"
	}
}

// Definition is one validated registry entry.
type Definition struct {
	Name     string
	Location image.Point
	Mode     MatchMode
	Target   screen.Color
	Cooldown time.Duration
	ActionID string
}

// Validate checks def against the screen bounds and the action catalog.
func Validate(def Definition, bounds image.Rectangle, catalog Catalog) error {
	if def.Name == "" {
		return &FieldError{Reaction: def.Name, Field: "name", Value: `""`, Reason: "must not be empty"}
	}
	if def.Location.X < bounds.Min.X || def.Location.X >= bounds.Max.X {
		return &FieldError{Reaction: def.Name, Field: "x", Value: def.Location.X,
			Reason: fmt.Sprintf("outside [%d, %d)", bounds.Min.X, bounds.Max.X)}
	}
	if def.Location.Y < bounds.Min.Y || def.Location.Y >= bounds.Max.Y {
		return &FieldError{Reaction: def.Name, Field: "y", Value: def.Location.Y,
			Reason: fmt.Sprintf("outside [%d, %d)", bounds.Min.Y, bounds.Max.Y)}
	}
	if def.Mode != TriggerIfEqual && def.Mode != TriggerIfDifferent {
		return &FieldError{Reaction: def.Name, Field: "mode", Value: int(def.Mode), Reason: "unrecognized match mode"}
	}
	if secs := def.Cooldown.Seconds(); secs <= constants.MinCooldownSeconds || secs >= constants.MaxCooldownSeconds {
		return &FieldError{Reaction: def.Name, Field: "cooldown", Value: secs,
			Reason: fmt.Sprintf("must be within (%g, %g) seconds", constants.MinCooldownSeconds, constants.MaxCooldownSeconds)}
	}
	if _, ok := catalog[def.ActionID]; !ok {
		return &FieldError{Reaction: def.Name, Field: "action", Value: def.ActionID, Reason: "unknown action id"}
	}
	return nil
}

// DefinitionFromSpec converts a raw entry, checking what the typed form
// cannot represent (channel range, mode spelling, cooldown finiteness).
func DefinitionFromSpec(s config.Reaction) (Definition, error) {
	if len(s.Color) != 3 {
		return Definition{}, &FieldError{Reaction: s.Name, Field: "color", Value: s.Color, Reason: "need exactly 3 channels"}
	}
	for _, ch := range s.Color {
		if ch < 0 || ch > 255 {
			return Definition{}, &FieldError{Reaction: s.Name, Field: "color", Value: s.Color, Reason: "channels must be within [0, 255]"}
		}
	}
	mode := ParseMatchMode(s.Mode)
	if mode == ModeUnknown {
		return Definition{}, &FieldError{Reaction: s.Name, Field: "mode", Value: s.Mode, Reason: "unrecognized match mode"}
	}
	if math.IsNaN(s.Cooldown) || math.IsInf(s.Cooldown, 0) {
		return Definition{}, &FieldError{Reaction: s.Name, Field: "cooldown", Value: s.Cooldown, Reason: "must be finite"}
	}
	return Definition{
		Name:     s.Name,
		Location: image.Point{X: s.X, Y: s.Y},
		Mode:     mode,
		Target:   screen.Color{R: uint8(s.Color[0]), G: uint8(s.Color[1]), B: uint8(s.Color[2])},
		Cooldown: time.Duration(s.Cooldown * float64(time.Second)),
		ActionID: s.Action,
	}, nil
}

// Registry is the named catalog of reaction definitions.
type Registry struct {
	mu        sync.RWMutex
	defs      map[string]Definition
	order     []string
	bounds    image.Rectangle
	catalog   Catalog
	listeners []func(Definition)
}

// NewRegistry validates every definition and refuses to build a partial
// registry if any entry is invalid.
func NewRegistry(defs []Definition, catalog Catalog, bounds image.Rectangle) (*Registry, error) {
	r := &Registry{
		defs:    make(map[string]Definition, len(defs)),
		bounds:  bounds,
		catalog: catalog,
	}
	for _, d := range defs {
		if _, dup := r.defs[d.Name]; dup {
			return nil, &FieldError{Reaction: d.Name, Field: "name", Value: d.Name, Reason: "duplicate name"}
		}
		r.defs[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	if err := r.ValidateAll(); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadRegistry builds a registry from raw configuration entries.
func LoadRegistry(specs []config.Reaction, catalog Catalog, bounds image.Rectangle) (*Registry, error) {
	defs := make([]Definition, 0, len(specs))
	for _, s := range specs {
		d, err := DefinitionFromSpec(s)
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return NewRegistry(defs, catalog, bounds)
}

// ValidateAll re-runs Validate over every entry, stopping at the first failure.
func (r *Registry) ValidateAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		if err := Validate(r.defs[name], r.bounds, r.catalog); err != nil {
			return err
		}
	}
	return nil
}

// Resolve returns the named definition.
func (r *Registry) Resolve(name string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return d, nil
}

// Names lists entries in load order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Specs converts the current entries back to their configuration form, in
// load order, so captured changes can be saved.
func (r *Registry) Specs() []config.Reaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]config.Reaction, 0, len(r.order))
	for _, name := range r.order {
		d := r.defs[name]
		out = append(out, config.Reaction{
			Name:     d.Name,
			X:        d.Location.X,
			Y:        d.Location.Y,
			Mode:     d.Mode.String(),
			Color:    []int{int(d.Target.R), int(d.Target.G), int(d.Target.B)},
			Cooldown: d.Cooldown.Seconds(),
			Action:   d.ActionID,
		})
	}
	return out
}

// Action returns the catalog entry for id.
func (r *Registry) Action(id string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.catalog[id]
	return a, ok
}

// Bounds returns the rectangle locations must fall in.
func (r *Registry) Bounds() image.Rectangle {
	return r.bounds
}

// OnUpdate registers fn to run after an entry's location and target change.
func (r *Registry) OnUpdate(fn func(Definition)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Replace atomically swaps the location and target of the named entry.
func (r *Registry) Replace(name string, loc image.Point, target screen.Color) (Definition, error) {
	r.mu.Lock()
	d, ok := r.defs[name]
	if !ok {
		r.mu.Unlock()
		return Definition{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	next := d
	next.Location = loc
	next.Target = target
	if err := Validate(next, r.bounds, r.catalog); err != nil {
		r.mu.Unlock()
		return Definition{}, err
	}
	r.defs[name] = next
	listeners := append([]func(Definition)(nil), r.listeners...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return next, nil
}

// UpdateFromPointer locks the pointer position, waits settle so hover
// effects fade, samples the color there and replaces the entry.
func (r *Registry) UpdateFromPointer(ctx context.Context, name string, pointer screen.Pointer, sampler screen.Sampler, settle time.Duration) (Definition, error) {
	if _, err := r.Resolve(name); err != nil {
		return Definition{}, err
	}
	loc := pointer.Position()

	timer := time.NewTimer(settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Definition{}, ctx.Err()
	case <-timer.C:
	}

	c, ok := sampler.Sample(loc)
	if !ok {
		return Definition{}, fmt.Errorf("sample (%d, %d): %w", loc.X, loc.Y, ErrUnavailable)
	}
	return r.Replace(name, loc, c)
}
