// Package cache implements the multi-tier predictive PCM cache (spec §4.5):
// three budgeted tiers, a branch predictor biasing which presets to
// precompute, and a background worker that fills the predicted set.
package cache

import (
	"sync"
	"time"

	"github.com/matiaszanolli/auralis/core/internal/types"
)

// defaultTierBudgetBytes are the fixed default per-tier budgets (spec
// §4.5), overridden at runtime by degradation levels (§4.8).
var defaultTierBudgetBytes = map[types.Tier]int64{
	types.TierL1: 18 * 1024 * 1024,
	types.TierL2: 36 * 1024 * 1024,
	types.TierL3: 45 * 1024 * 1024,
}

// Entry is one cached processed chunk.
type Entry struct {
	Key                types.CacheKey
	PCM                types.StereoSamples
	Tier               types.Tier
	SizeBytes          int64
	LastAccessTime     time.Time
	AccessCount        int64
	PredictedProbability float32
	IsCurrent          bool
	IsNext             bool
	Protected          bool
}

// tierStore holds one tier's entries and budget behind its own lock
// (spec §5 "cache tiers are protected by per-tier locks").
type tierStore struct {
	mu      sync.Mutex
	budget  int64
	used    int64
	entries map[types.CacheKey]*Entry
}

func newTierStore(budget int64) *tierStore {
	return &tierStore{budget: budget, entries: make(map[types.CacheKey]*Entry)}
}

// MultiTierCache is the L1/L2/L3 predictive cache (spec §4.5). PCM payloads
// are immutable once inserted and shared by reference across readers.
type MultiTierCache struct {
	tiers map[types.Tier]*tierStore
}

// New builds a cache with the default tier budgets.
func New() *MultiTierCache {
	return NewWithBudgets(defaultTierBudgetBytes)
}

// NewWithBudgets builds a cache with explicit per-tier budgets (e.g. the
// configured ones). Runtime resizing by the degradation monitor goes
// through Resize.
func NewWithBudgets(budgets map[types.Tier]int64) *MultiTierCache {
	c := &MultiTierCache{tiers: make(map[types.Tier]*tierStore)}
	for _, t := range []types.Tier{types.TierL1, types.TierL2, types.TierL3} {
		c.tiers[t] = newTierStore(budgets[t])
	}
	return c
}

// Result is the outcome of Get: a hit carries the tier and PCM, a miss
// carries neither.
type Result struct {
	Hit  bool
	Tier types.Tier
	PCM  types.StereoSamples
}

// Get looks up key across L1 -> L2 -> L3 in order (spec §4.5 lookup
// protocol). On a hit it updates LastAccessTime/AccessCount in place;
// promotion between tiers is NOT implicit and is left to the worker.
func (c *MultiTierCache) Get(key types.CacheKey) Result {
	for _, t := range []types.Tier{types.TierL1, types.TierL2, types.TierL3} {
		store := c.tiers[t]
		store.mu.Lock()
		entry, ok := store.entries[key]
		if ok {
			entry.LastAccessTime = time.Now()
			entry.AccessCount++
			pcm := entry.PCM
			store.mu.Unlock()
			return Result{Hit: true, Tier: t, PCM: pcm}
		}
		store.mu.Unlock()
	}
	return Result{Hit: false}
}

// Has reports whether key is present in any tier, without updating access
// stats — used by the worker to decide whether a desired key still needs
// a processing job.
func (c *MultiTierCache) Has(key types.CacheKey) bool {
	for _, t := range []types.Tier{types.TierL1, types.TierL2, types.TierL3} {
		store := c.tiers[t]
		store.mu.Lock()
		_, ok := store.entries[key]
		store.mu.Unlock()
		if ok {
			return true
		}
	}
	return false
}

// Insert stores pcm under key in tier, evicting within that tier until
// there is room (spec §4.5 insert protocol). A key already present in a
// different tier is removed from that tier first, so a key is never held
// in more than one tier.
func (c *MultiTierCache) Insert(key types.CacheKey, pcm types.StereoSamples, tier types.Tier, probability float32) {
	for _, t := range []types.Tier{types.TierL1, types.TierL2, types.TierL3} {
		if t == tier {
			continue
		}
		c.removeFromTier(t, key)
	}

	store := c.tiers[tier]
	sizeBytes := int64(len(pcm)) * 4 // f32 stereo samples

	store.mu.Lock()
	defer store.mu.Unlock()

	c.evictLocked(store, tier, sizeBytes)

	store.entries[key] = &Entry{
		Key: key, PCM: pcm, Tier: tier, SizeBytes: sizeBytes,
		LastAccessTime: time.Now(), AccessCount: 0,
		PredictedProbability: probability,
	}
	store.used += sizeBytes
}

// MarkCurrent flags key as the currently-playing chunk, protecting it from
// eviction (spec §4.5 invariant: "the current playing key is protected at
// all times"). It must already be present in some tier.
func (c *MultiTierCache) MarkCurrent(key types.CacheKey) {
	for _, t := range []types.Tier{types.TierL1, types.TierL2, types.TierL3} {
		store := c.tiers[t]
		store.mu.Lock()
		if e, ok := store.entries[key]; ok {
			e.IsCurrent = true
			e.Protected = true
		}
		store.mu.Unlock()
	}
}

// UnmarkCurrent clears the current/protected flags for key, called when
// playback moves past it.
func (c *MultiTierCache) UnmarkCurrent(key types.CacheKey) {
	for _, t := range []types.Tier{types.TierL1, types.TierL2, types.TierL3} {
		store := c.tiers[t]
		store.mu.Lock()
		if e, ok := store.entries[key]; ok {
			e.IsCurrent = false
			e.Protected = false
		}
		store.mu.Unlock()
	}
}

// Remove drops key from whichever tier holds it, a no-op if absent.
func (c *MultiTierCache) Remove(key types.CacheKey) {
	for _, t := range []types.Tier{types.TierL1, types.TierL2, types.TierL3} {
		c.removeFromTier(t, key)
	}
}

func (c *MultiTierCache) removeFromTier(t types.Tier, key types.CacheKey) {
	store := c.tiers[t]
	store.mu.Lock()
	defer store.mu.Unlock()
	if e, ok := store.entries[key]; ok {
		store.used -= e.SizeBytes
		delete(store.entries, key)
	}
}

// TierUsage reports a tier's current used bytes and budget, for metrics
// and the degradation monitor.
func (c *MultiTierCache) TierUsage(t types.Tier) (used, budget int64) {
	store := c.tiers[t]
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.used, store.budget
}

// Resize changes a tier's budget, evicting immediately if the new budget
// is below current usage (spec §4.8 degradation transitions).
func (c *MultiTierCache) Resize(t types.Tier, newBudget int64) {
	store := c.tiers[t]
	store.mu.Lock()
	defer store.mu.Unlock()
	store.budget = newBudget
	c.evictLocked(store, t, 0)
}

// evictLocked drops entries from store until used+needed <= budget,
// by composite priority: protected entries are never dropped; L3 first
// evicts entries older than 5 minutes, then all tiers fall back to
// ascending (probability, last_access_time) order (spec §4.5 eviction).
func (c *MultiTierCache) evictLocked(store *tierStore, tier types.Tier, needed int64) {
	for store.used+needed > store.budget {
		victim := pickVictim(store, tier)
		if victim == nil {
			return // nothing left to evict; budget may be temporarily exceeded
		}
		store.used -= victim.SizeBytes
		delete(store.entries, victim.Key)
	}
}

func pickVictim(store *tierStore, tier types.Tier) *Entry {
	var candidates []*Entry
	for _, e := range store.entries {
		if e.Protected {
			continue
		}
		candidates = append(candidates, e)
	}
	if len(candidates) == 0 {
		return nil
	}

	if tier == types.TierL3 {
		cutoff := time.Now().Add(-5 * time.Minute)
		var oldest *Entry
		for _, e := range candidates {
			if e.LastAccessTime.Before(cutoff) {
				if oldest == nil || e.LastAccessTime.Before(oldest.LastAccessTime) {
					oldest = e
				}
			}
		}
		if oldest != nil {
			return oldest
		}
	}

	var victim *Entry
	for _, e := range candidates {
		if victim == nil {
			victim = e
			continue
		}
		if lessPriority(e, victim) {
			victim = e
		}
	}
	return victim
}

// lessPriority orders by ascending (probability, last_access_time): the
// lowest-probability, least-recently-used entry is evicted first.
func lessPriority(a, b *Entry) bool {
	if a.PredictedProbability != b.PredictedProbability {
		return a.PredictedProbability < b.PredictedProbability
	}
	return a.LastAccessTime.Before(b.LastAccessTime)
}
