package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/ConserveLee/pxlreact/internal/config"
)

// ActionKind enumerates the supported actions.
type ActionKind int

const (
	ActionPressKey ActionKind = iota + 1
	ActionPressSequence
	ActionHoldKey
)

func (k ActionKind) String() string {
	switch k {
	case ActionPressKey:
		return "press"
	case ActionPressSequence:
		return "sequence"
	case ActionHoldKey:
		return "hold"
	default:
		return "unknown"
	}
}

// Action is a closed variant; build it with PressKey, PressSequence or HoldKey.
type Action struct {
	Kind ActionKind
	Keys []string
	Hold time.Duration // HoldKey only; other kinds draw a jittered hold
}

// PressKey taps one key with a humanized hold.
func PressKey(key string) Action {
	return Action{Kind: ActionPressKey, Keys: []string{key}}
}

// PressSequence taps keys in order.
func PressSequence(keys ...string) Action {
	return Action{Kind: ActionPressSequence, Keys: append([]string(nil), keys...)}
}

// HoldKey holds one key down for d.
func HoldKey(key string, d time.Duration) Action {
	return Action{Kind: ActionHoldKey, Keys: []string{key}, Hold: d}
}

func (a Action) String() string {
	if a.Kind == ActionHoldKey {
		return fmt.Sprintf("hold(%s, %s)", strings.Join(a.Keys, ","), a.Hold)
	}
	return fmt.Sprintf("%s(%s)", a.Kind, strings.Join(a.Keys, ","))
}

// Validate checks the variant is well formed.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionPressKey, ActionHoldKey:
		if len(a.Keys) != 1 || a.Keys[0] == "" {
			return fmt.Errorf("%s needs exactly one key", a.Kind)
		}
		if a.Kind == ActionHoldKey && a.Hold <= 0 {
			return fmt.Errorf("hold needs a positive duration")
		}
	case ActionPressSequence:
		if len(a.Keys) == 0 {
			return fmt.Errorf("sequence needs at least one key")
		}
		for _, k := range a.Keys {
			if k == "" {
				return fmt.Errorf("sequence contains an empty key")
			}
		}
	default:
		return fmt.Errorf("unknown action kind %d", a.Kind)
	}
	return nil
}

// Catalog maps action ids to actions.
type Catalog map[string]Action

// NewCatalog converts the configured actions, failing on the first bad entry.
func NewCatalog(specs map[string]config.Action) (Catalog, error) {
	c := make(Catalog, len(specs))
	for id, s := range specs {
		var a Action
		switch strings.ToLower(s.Kind) {
		case "press", "":
			if len(s.Keys) != 1 {
				return nil, fmt.Errorf("action %q: press needs exactly one key", id)
			}
			a = PressKey(s.Keys[0])
		case "sequence":
			a = PressSequence(s.Keys...)
		case "hold":
			if len(s.Keys) != 1 {
				return nil, fmt.Errorf("action %q: hold needs exactly one key", id)
			}
			a = HoldKey(s.Keys[0], s.Hold)
		default:
			return nil, fmt.Errorf("action %q: unknown kind %q", id, s.Kind)
		}
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("action %q: %w", id, err)
		}
		c[id] = a
	}
	return c, nil
}
