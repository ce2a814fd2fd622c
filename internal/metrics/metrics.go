// Package metrics is the process-wide metrics collector: per-tier cache
// hit rates, the size of the last entry served from each tier, prediction
// accuracy, and degradation level (spec §9's single-collector-per-process
// design note). Explicit Init/Shutdown, passed by reference, rather than a
// package-level implicit global.
package metrics

import (
	"log"
	"sync"
	"time"

	"github.com/matiaszanolli/auralis/core/internal/types"
)

// tierCounters holds one tier's cumulative hit/miss counts.
type tierCounters struct {
	hits   int64
	misses int64
	bytes  int64
}

// Snapshot is a point-in-time read of collector state, safe to log or
// serve over an introspection endpoint.
type Snapshot struct {
	TierHitRate   map[types.Tier]float64
	TierBytes     map[types.Tier]int64
	PredictionAcc float64
	Degradation   types.DegradationLevel
	ProcessedJobs int64
	SkippedJobs   int64
	Uptime        time.Duration
}

// Collector accumulates counters for one running engine instance.
type Collector struct {
	mu sync.Mutex

	startedAt time.Time
	tiers     map[types.Tier]*tierCounters

	predictionsTotal   int64
	predictionsCorrect int64

	processedJobs int64
	skippedJobs   int64

	degradation types.DegradationLevel
}

// New builds a fresh, unstarted collector.
func New() *Collector {
	return &Collector{
		tiers: map[types.Tier]*tierCounters{
			types.TierL1: {},
			types.TierL2: {},
			types.TierL3: {},
		},
	}
}

var (
	globalMu sync.Mutex
	global   *Collector
)

// Init installs c as the process-wide collector, logging the transition.
// Callers that don't want a global (e.g. tests constructing their own
// internal/player wiring) can skip Init and hold their own *Collector.
func Init(c *Collector) {
	globalMu.Lock()
	defer globalMu.Unlock()
	c.startedAt = time.Now()
	global = c
	log.Printf("[METRICS] collector initialized")
}

// Shutdown logs a final snapshot and clears the process-wide collector.
func Shutdown() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		return
	}
	snap := global.Snapshot()
	log.Printf("[METRICS] collector shutdown, final snapshot: %+v", snap)
	global = nil
}

// Global returns the process-wide collector, or nil if Init was never
// called.
func Global() *Collector {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// RecordHit records a cache hit in tier, with the size in bytes of the
// entry served.
func (c *Collector) RecordHit(tier types.Tier, sizeBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tiers[tier]
	t.hits++
	t.bytes = sizeBytes
}

// RecordMiss records a cache miss that fell through to on-demand
// rendering (spec §4.5's bypass path).
func (c *Collector) RecordMiss(tier types.Tier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tiers[tier].misses++
}

// RecordPrediction records whether a predicted preset matched the
// preset the user actually switched to (spec §4.6's accuracy signal).
func (c *Collector) RecordPrediction(correct bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.predictionsTotal++
	if correct {
		c.predictionsCorrect++
	}
}

// RecordWorkerStats copies the worker's cumulative processed/skipped
// counts (spec §4.6's job queue, surfaced by cache.Worker.Stats).
func (c *Collector) RecordWorkerStats(processed, skipped int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processedJobs = processed
	c.skippedJobs = skipped
}

// RecordDegradation records the current degradation level, logging on
// every transition (spec §4.8).
func (c *Collector) RecordDegradation(level types.DegradationLevel) {
	c.mu.Lock()
	changed := c.degradation != level
	c.degradation = level
	c.mu.Unlock()
	if changed {
		log.Printf("[METRICS] degradation level -> %s", degradationLevelName(level))
	}
}

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	hitRates := make(map[types.Tier]float64, len(c.tiers))
	bytesByTier := make(map[types.Tier]int64, len(c.tiers))
	for tier, t := range c.tiers {
		total := t.hits + t.misses
		if total > 0 {
			hitRates[tier] = float64(t.hits) / float64(total)
		}
		bytesByTier[tier] = t.bytes
	}

	var acc float64
	if c.predictionsTotal > 0 {
		acc = float64(c.predictionsCorrect) / float64(c.predictionsTotal)
	}

	var uptime time.Duration
	if !c.startedAt.IsZero() {
		uptime = time.Since(c.startedAt)
	}

	return Snapshot{
		TierHitRate:   hitRates,
		TierBytes:     bytesByTier,
		PredictionAcc: acc,
		Degradation:   c.degradation,
		ProcessedJobs: c.processedJobs,
		SkippedJobs:   c.skippedJobs,
		Uptime:        uptime,
	}
}

func degradationLevelName(l types.DegradationLevel) string {
	switch l {
	case types.DegradationWarning:
		return "warning"
	case types.DegradationCritical:
		return "critical"
	case types.DegradationWorkerPaused:
		return "worker_paused"
	default:
		return "none"
	}
}
