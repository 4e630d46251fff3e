package input

import (
	"fmt"
	"sync"

	"github.com/go-vgo/robotgo"

	"github.com/ConserveLee/pxlreact/internal/logger"
)

// Keyboard injects key events. Implementations must accept concurrent calls
// for distinct keys.
type Keyboard interface {
	KeyDown(key string) error
	KeyUp(key string) error
}

// Robot sends key events through robotgo.
type Robot struct{}

// KeyDown presses key without releasing it.
func (Robot) KeyDown(key string) error {
	if err := robotgo.KeyToggle(key, "down"); err != nil {
		return fmt.Errorf("key down %q: %w", key, err)
	}
	return nil
}

// KeyUp releases key.
func (Robot) KeyUp(key string) error {
	if err := robotgo.KeyToggle(key, "up"); err != nil {
		return fmt.Errorf("key up %q: %w", key, err)
	}
	return nil
}

// DryRun logs key events instead of sending them and tracks which keys are held.
type DryRun struct {
	Log *logger.AppLogger

	mu   sync.Mutex
	held map[string]int
}

// KeyDown records key as held.
func (d *DryRun) KeyDown(key string) error {
	d.mu.Lock()
	if d.held == nil {
		d.held = make(map[string]int)
	}
	d.held[key]++
	d.mu.Unlock()
	d.Log.Info("[dry-run] key down %s", key)
	return nil
}

// KeyUp releases key.
func (d *DryRun) KeyUp(key string) error {
	d.mu.Lock()
	if d.held[key] > 0 {
		d.held[key]--
	}
	d.mu.Unlock()
	d.Log.Info("[dry-run] key up %s", key)
	return nil
}

// Held returns the number of keys currently down.
func (d *DryRun) Held() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.held {
		n += c
	}
	return n
}
