package cache

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/matiaszanolli/auralis/core/internal/types"
)

const monitorIntervalS = 30

// degradationBudgets gives the per-tier budgets for each level (spec
// §4.8). Level 3 keeps level-2 budgets (it pauses the worker rather than
// shrinking tiers further).
var degradationBudgets = map[types.DegradationLevel]map[types.Tier]int64{
	types.DegradationNone: {
		types.TierL1: 18 * 1024 * 1024,
		types.TierL2: 36 * 1024 * 1024,
		types.TierL3: 45 * 1024 * 1024,
	},
	types.DegradationWarning: {
		types.TierL1: 12 * 1024 * 1024,
		types.TierL2: 18 * 1024 * 1024,
		types.TierL3: 0,
	},
	types.DegradationCritical: {
		types.TierL1: 9 * 1024 * 1024,
		types.TierL2: 0,
		types.TierL3: 0,
	},
	types.DegradationWorkerPaused: {
		types.TierL1: 9 * 1024 * 1024,
		types.TierL2: 0,
		types.TierL3: 0,
	},
}

// LatencySampler reports whether the worker is currently causing audible
// playback latency spikes, the trigger for degradation level 3. Supplied
// by the player (spec §4.8 level 3's trigger is behavioral, not a memory
// threshold).
type LatencySampler func() bool

// Monitor samples process/system memory pressure on a fixed interval and
// drives degradation-level transitions, resizing cache tiers and pausing
// the worker as needed (spec §4.8).
type Monitor struct {
	cache          *MultiTierCache
	worker         *Worker
	latencySampler LatencySampler

	level       types.DegradationLevel
	onLevelChange func(types.DegradationLevel)
}

// NewMonitor builds a monitor bound to cache and worker.
func NewMonitor(c *MultiTierCache, w *Worker, latencySampler LatencySampler) *Monitor {
	return &Monitor{cache: c, worker: w, latencySampler: latencySampler, level: types.DegradationNone}
}

// OnLevelChange registers a callback invoked whenever the degradation
// level transitions.
func (m *Monitor) OnLevelChange(cb func(types.DegradationLevel)) {
	m.onLevelChange = cb
}

// Level returns the current degradation level.
func (m *Monitor) Level() types.DegradationLevel {
	return m.level
}

// Run polls memory pressure every 30s until ctx is cancelled, meant to be
// launched as the dedicated monitor thread (spec §5).
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(monitorIntervalS * time.Second)
	defer ticker.Stop()

	m.sampleOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sampleOnce()
		}
	}
}

func (m *Monitor) sampleOnce() {
	usedPct := sampleMemoryPercent()
	latencySpiking := m.latencySampler != nil && m.latencySampler()

	next := levelFor(usedPct, latencySpiking, m.level)
	if next == m.level {
		return
	}
	m.transition(next)
}

func levelFor(usedPct float64, latencySpiking bool, current types.DegradationLevel) types.DegradationLevel {
	if latencySpiking {
		return types.DegradationWorkerPaused
	}
	switch {
	case usedPct >= 90:
		return types.DegradationCritical
	case usedPct >= 80:
		return types.DegradationWarning
	default:
		// A worker paused purely for latency (not memory) recovers once
		// the spike passes; memory-driven levels only ratchet down when
		// usage actually drops below their own threshold, handled above.
		return types.DegradationNone
	}
}

func (m *Monitor) transition(level types.DegradationLevel) {
	m.level = level
	budgets := degradationBudgets[level]
	for tier, budget := range budgets {
		m.cache.Resize(tier, budget)
	}

	if level == types.DegradationWorkerPaused {
		m.worker.Pause()
	} else if m.worker != nil {
		m.worker.Resume()
	}

	if m.onLevelChange != nil {
		m.onLevelChange(level)
	}
}

// sampleMemoryPercent returns the fraction (0-100) of system memory in
// use, via gopsutil. Falls back to 0 (no pressure) if the platform call
// fails, since a monitor that can't read memory must never falsely
// degrade service.
func sampleMemoryPercent() float64 {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return v.UsedPercent
}
