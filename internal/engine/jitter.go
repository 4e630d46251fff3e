package engine

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/ConserveLee/pxlreact/internal/config"
)

// JitterPool hands out precomputed uniform millisecond delays round-robin.
type JitterPool struct {
	min, max int
	values   []int32
	next     atomic.Uint64
}

// NewJitterPool precomputes size uniform samples from the inclusive range r.
// rng may be nil to use the global source.
func NewJitterPool(r config.Range, size int, rng *rand.Rand) (*JitterPool, error) {
	if r.Min < 0 || r.Max < r.Min {
		return nil, fmt.Errorf("bad delay range [%d, %d]", r.Min, r.Max)
	}
	if size <= 0 {
		return nil, fmt.Errorf("precompute size must be positive, got %d", size)
	}
	span := r.Max - r.Min + 1
	p := &JitterPool{min: r.Min, max: r.Max, values: make([]int32, size)}
	for i := range p.values {
		var v int
		if rng != nil {
			v = rng.IntN(span)
		} else {
			v = rand.IntN(span)
		}
		p.values[i] = int32(r.Min + v)
	}
	return p, nil
}

// NextMs returns the next sample in milliseconds.
func (p *JitterPool) NextMs() int {
	i := p.next.Add(1) - 1
	return int(p.values[i%uint64(len(p.values))])
}

// Next returns the next sample as a duration.
func (p *JitterPool) Next() time.Duration {
	return time.Duration(p.NextMs()) * time.Millisecond
}

// Bounds returns the inclusive range the pool was built from.
func (p *JitterPool) Bounds() (min, max int) {
	return p.min, p.max
}
