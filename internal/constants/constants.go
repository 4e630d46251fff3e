package constants

import "time"

// Reactor Configuration
const (
	// Sampling
	TickInterval     = 25 * time.Millisecond  // Scheduler tick; ticks are dropped, never queued, when sampling stalls
	GatePollInterval = 200 * time.Millisecond // Session gate poll (slower than the tick)
	PixelCount       = 4                      // Monitored slots, not counting the pointer preview slot 0

	// Color Matching
	DefaultTolerance = 400 // Sum of squared channel differences tolerated before colors count as different

	// Dispatcher
	DispatcherWorkers = 5     // Concurrent action executions
	DispatcherQueue   = 32    // Submissions buffered ahead of the workers
	PrecomputeSize    = 10000 // Jitter samples precomputed per range

	// Humanized Timing (milliseconds)
	ReactDelayMinMs  = 115 // Pre-delay before the first key goes down
	ReactDelayMaxMs  = 288
	PressHoldMinMs   = 50 // Time a key stays down
	PressHoldMaxMs   = 75
	SequenceGapMinMs = 40 // Gap between keys of a sequence
	SequenceGapMaxMs = 90

	// Cooldown Limits (seconds, exclusive on both ends)
	MinCooldownSeconds = 0.0
	MaxCooldownSeconds = 180.0 // Anything longer is almost certainly a ms/s mix-up

	// Re-arm
	RearmBurst          = 3 // Back-to-back self re-arms allowed before spacing kicks in
	RearmIntervalFactor = 2 // Sustained re-arm rate is one per (factor x cooldown)

	// Pointer Capture
	SettleDelay = 2 * time.Second // Wait after locking the pointer so hover highlights fade

	// Default Screen Bounds (also the fallback when display enumeration finds nothing)
	BoundsMinX = -2560
	BoundsMinY = 0
	BoundsMaxX = 2560
	BoundsMaxY = 1440

	// UI
	LogHistoryLines = 100
	PanelRefresh    = 250 * time.Millisecond
)
