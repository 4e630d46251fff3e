package engine

import (
	"sort"
	"sync"
	"time"
)

const historyDepth = 64

// TriggerRecord tracks when one reaction fired.
type TriggerRecord struct {
	Name      string
	Count     int
	FirstSeen time.Time
	LastSeen  time.Time
	times     []time.Time // Most recent historyDepth trigger times, oldest first
}

// TriggerLog keeps per-reaction trigger history for diagnostics and tests.
type TriggerLog struct {
	mu      sync.Mutex
	records map[string]*TriggerRecord
}

func NewTriggerLog() *TriggerLog {
	return &TriggerLog{records: make(map[string]*TriggerRecord)}
}

// Record notes that name fired at at.
func (t *TriggerLog) Record(name string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[name]
	if !ok {
		rec = &TriggerRecord{Name: name, FirstSeen: at}
		t.records[name] = rec
	}
	rec.Count++
	rec.LastSeen = at
	rec.times = append(rec.times, at)
	if len(rec.times) > historyDepth {
		rec.times = rec.times[len(rec.times)-historyDepth:]
	}
}

// Count returns how many times name fired.
func (t *TriggerLog) Count(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[name]; ok {
		return rec.Count
	}
	return 0
}

// Last returns the most recent trigger time of name.
func (t *TriggerLog) Last(name string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[name]; ok {
		return rec.LastSeen, true
	}
	return time.Time{}, false
}

// Times returns the retained trigger times of name, oldest first.
func (t *TriggerLog) Times(name string) []time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[name]; ok {
		return append([]time.Time(nil), rec.times...)
	}
	return nil
}

// MinSpacing returns the smallest gap between consecutive retained triggers
// of name. ok is false with fewer than two triggers.
func (t *TriggerLog) MinSpacing(name string) (time.Duration, bool) {
	times := t.Times(name)
	if len(times) < 2 {
		return 0, false
	}
	min := times[1].Sub(times[0])
	for i := 2; i < len(times); i++ {
		if d := times[i].Sub(times[i-1]); d < min {
			min = d
		}
	}
	return min, true
}

// Stats returns a copy of every record sorted by name.
func (t *TriggerLog) Stats() []TriggerRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TriggerRecord, 0, len(t.records))
	for _, rec := range t.records {
		cp := *rec
		cp.times = nil
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
