package engine

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConserveLee/pxlreact/internal/config"
	"github.com/ConserveLee/pxlreact/internal/engine/screen"
)

func TestDefaultReactionsLoad(t *testing.T) {
	cfg := config.Default()
	catalog, err := NewCatalog(cfg.Actions)
	require.NoError(t, err)

	r, err := LoadRegistry(cfg.Reactions, catalog, testBounds())
	require.NoError(t, err)
	assert.Equal(t, []string{"HP1", "MP1"}, r.Names())

	hp, err := r.Resolve("HP1")
	require.NoError(t, err)
	assert.Equal(t, hpLoc, hp.Location)
	assert.Equal(t, hpTarget, hp.Target)
	assert.Equal(t, TriggerIfDifferent, hp.Mode)
	assert.Equal(t, 4*time.Second, hp.Cooldown)

	mp, err := r.Resolve("MP1")
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, mp.Cooldown)
}

func TestRegistryRejectsInvalidEntries(t *testing.T) {
	base := func() config.Reaction {
		return config.Reaction{Name: "HP1", X: 134, Y: 1275, Mode: "trigger_if_different", Color: []int{167, 34, 46}, Cooldown: 4, Action: "hp_flask"}
	}

	tests := []struct {
		name   string
		mutate func(*config.Reaction)
		field  string
	}{
		{"x above bounds", func(r *config.Reaction) { r.X = 2560 }, "x"},
		{"x below bounds", func(r *config.Reaction) { r.X = -2561 }, "x"},
		{"y above bounds", func(r *config.Reaction) { r.Y = 1440 }, "y"},
		{"y negative", func(r *config.Reaction) { r.Y = -1 }, "y"},
		{"zero cooldown", func(r *config.Reaction) { r.Cooldown = 0 }, "cooldown"},
		{"negative cooldown", func(r *config.Reaction) { r.Cooldown = -1 }, "cooldown"},
		{"cooldown at limit", func(r *config.Reaction) { r.Cooldown = 180 }, "cooldown"},
		{"channel too large", func(r *config.Reaction) { r.Color = []int{256, 0, 0} }, "color"},
		{"channel negative", func(r *config.Reaction) { r.Color = []int{0, -1, 0} }, "color"},
		{"two channels", func(r *config.Reaction) { r.Color = []int{1, 2} }, "color"},
		{"unknown mode", func(r *config.Reaction) { r.Mode = "sometimes" }, "mode"},
		{"unknown action", func(r *config.Reaction) { r.Action = "teleport" }, "action"},
		{"empty name", func(r *config.Reaction) { r.Name = "" }, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := base()
			tt.mutate(&bad)
			good := base()
			good.Name = "OK"

			r, err := LoadRegistry([]config.Reaction{good, bad}, testCatalog(), testBounds())
			require.Error(t, err)
			assert.Nil(t, r, "no partial registry")
			assert.ErrorIs(t, err, ErrInvalidDefinition)

			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Definition{hpDefinition(), hpDefinition()}, testCatalog(), testBounds())
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestRegistryBoundaryValues(t *testing.T) {
	def := hpDefinition()
	def.Location = image.Point{X: -2560, Y: 0}
	def.Cooldown = 179 * time.Second
	assert.NoError(t, Validate(def, testBounds(), testCatalog()))

	def.Location = image.Point{X: 2559, Y: 1439}
	def.Cooldown = time.Millisecond
	assert.NoError(t, Validate(def, testBounds(), testCatalog()))
}

func TestParseMatchModeAliases(t *testing.T) {
	assert.Equal(t, TriggerIfEqual, ParseMatchMode("react_if_color"))
	assert.Equal(t, TriggerIfDifferent, ParseMatchMode("REACT_IF_NOT_COLOR"))
	assert.Equal(t, TriggerIfEqual, ParseMatchMode(" trigger_if_equal "))
	assert.Equal(t, ModeUnknown, ParseMatchMode(""))
	assert.Equal(t, "trigger_if_different", TriggerIfDifferent.String())
}

func TestResolveUnknown(t *testing.T) {
	r, err := NewRegistry([]Definition{hpDefinition()}, testCatalog(), testBounds())
	require.NoError(t, err)

	_, err = r.Resolve("MP9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplaceNotifiesListeners(t *testing.T) {
	r, err := NewRegistry([]Definition{hpDefinition()}, testCatalog(), testBounds())
	require.NoError(t, err)

	var got []Definition
	r.OnUpdate(func(d Definition) { got = append(got, d) })

	next, err := r.Replace("HP1", image.Point{X: 10, Y: 20}, hpEmpty)
	require.NoError(t, err)
	assert.Equal(t, image.Point{X: 10, Y: 20}, next.Location)
	require.Len(t, got, 1)
	assert.Equal(t, hpEmpty, got[0].Target)

	// Out of bounds leaves the entry untouched
	_, err = r.Replace("HP1", image.Point{X: 9000, Y: 0}, hpTarget)
	assert.ErrorIs(t, err, ErrInvalidDefinition)
	cur, _ := r.Resolve("HP1")
	assert.Equal(t, image.Point{X: 10, Y: 20}, cur.Location)
	assert.Len(t, got, 1)
}

func TestUpdateFromPointer(t *testing.T) {
	r, err := NewRegistry([]Definition{hpDefinition()}, testCatalog(), testBounds())
	require.NoError(t, err)

	loc := image.Point{X: 300, Y: 400}
	sampler := newScriptedSampler()
	sampler.Set(loc, screen.Color{R: 1, G: 2, B: 3})
	pointer := &fixedPointer{p: loc}

	def, err := r.UpdateFromPointer(context.Background(), "HP1", pointer, sampler, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, loc, def.Location)
	assert.Equal(t, screen.Color{R: 1, G: 2, B: 3}, def.Target)
	assert.Equal(t, 4*time.Second, def.Cooldown, "other fields are kept")
}

func TestUpdateFromPointerFailures(t *testing.T) {
	r, err := NewRegistry([]Definition{hpDefinition()}, testCatalog(), testBounds())
	require.NoError(t, err)
	pointer := &fixedPointer{p: image.Point{X: 5, Y: 5}}

	_, err = r.UpdateFromPointer(context.Background(), "nope", pointer, newScriptedSampler(), 0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.UpdateFromPointer(context.Background(), "HP1", pointer, newScriptedSampler(), 0)
	assert.ErrorIs(t, err, ErrUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.UpdateFromPointer(ctx, "HP1", pointer, newScriptedSampler(), time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCatalogKinds(t *testing.T) {
	c, err := NewCatalog(map[string]config.Action{
		"tap":   {Keys: []string{"1"}},
		"combo": {Kind: "sequence", Keys: []string{"q", "w"}},
		"guard": {Kind: "hold", Keys: []string{"e"}, Hold: time.Second},
	})
	require.NoError(t, err)
	assert.Equal(t, PressKey("1"), c["tap"])
	assert.Equal(t, PressSequence("q", "w"), c["combo"])
	assert.Equal(t, HoldKey("e", time.Second), c["guard"])
	assert.Equal(t, "sequence(q,w)", c["combo"].String())

	for _, bad := range []config.Action{
		{Kind: "press", Keys: []string{"1", "2"}},
		{Kind: "sequence"},
		{Kind: "hold", Keys: []string{"e"}},
		{Kind: "click", Keys: []string{"1"}},
	} {
		_, err := NewCatalog(map[string]config.Action{"x": bad})
		assert.Error(t, err, "%+v", bad)
	}
}

func TestSpecsRoundTrip(t *testing.T) {
	cfg := config.Default()
	r, err := LoadRegistry(cfg.Reactions, testCatalog(), testBounds())
	require.NoError(t, err)
	assert.Equal(t, cfg.Reactions, r.Specs())

	_, err = r.Replace("HP1", image.Point{X: 1, Y: 2}, hpEmpty)
	require.NoError(t, err)
	specs := r.Specs()
	assert.Equal(t, []int{90, 10, 10}, specs[0].Color)
	assert.Equal(t, 1, specs[0].X)
}
