package cache

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matiaszanolli/auralis/core/internal/types"
)

const (
	pollMinMS = 500
	pollMaxMS = 2000
)

// DesiredKey is one entry of the worker's recomputed desired set: the key
// it wants cached, which tier it belongs in, and the priority inputs used
// to order the job queue (spec §4.6).
type DesiredKey struct {
	Key           types.CacheKey
	Tier          types.Tier
	Probability   float32
	ChunkDistance int
}

// ProcessFunc runs the chunk pipeline for key and returns its processed
// PCM, the worker's hook into internal/pipeline without a direct import
// (kept decoupled so cache doesn't need to know about tracks/sources).
type ProcessFunc func(ctx context.Context, key types.CacheKey) (types.StereoSamples, error)

// DesiredSetFunc recomputes the full desired set from current playback
// state (current/next chunk, predicted presets); supplied by the player.
type DesiredSetFunc func() []DesiredKey

// Worker fills the cache from a priority queue of desired-but-missing
// keys, polling on an interval and deduplicating concurrent requests for
// the same key (spec §4.6, §5 "worker jobs targeting the same cache key
// are deduplicated").
type Worker struct {
	mu sync.Mutex

	cache       *MultiTierCache
	desiredFunc DesiredSetFunc
	processFunc ProcessFunc

	ctx    context.Context
	cancel context.CancelFunc

	isPaused   bool
	pauseChan  chan struct{}
	resumeChan chan struct{}

	inFlight map[types.CacheKey]*sync.WaitGroup

	parallelism int // 0 means unlimited, the default
	sem         chan struct{}

	processedCount int64
	skippedCount   int64
}

// SetParallelism caps how many jobs pollOnce dispatches concurrently
// (config-tunable, spec §6.5's worker_parallelism). n<=0 removes the cap.
func (w *Worker) SetParallelism(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.parallelism = n
	if n > 0 {
		w.sem = make(chan struct{}, n)
	} else {
		w.sem = nil
	}
}

// NewWorker builds a worker bound to cache, using desiredFunc to recompute
// the target set each poll and processFunc to render a missing chunk.
func NewWorker(c *MultiTierCache, desiredFunc DesiredSetFunc, processFunc ProcessFunc) *Worker {
	return &Worker{
		cache:       c,
		desiredFunc: desiredFunc,
		processFunc: processFunc,
		pauseChan:   make(chan struct{}),
		resumeChan:  make(chan struct{}),
		inFlight:    make(map[types.CacheKey]*sync.WaitGroup),
	}
}

// Start launches the poll loop in a background goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()
	go w.run()
}

// Stop cancels the poll loop and any in-flight jobs.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
}

// Pause stops new jobs from being dispatched (degradation level 3, spec
// §4.8); in-flight jobs are allowed to finish. Mirrors the teacher
// worker's close-then-replace channel idiom.
func (w *Worker) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isPaused {
		return
	}
	w.isPaused = true
	close(w.pauseChan)
	w.pauseChan = make(chan struct{})
}

// Resume re-enables job dispatch.
func (w *Worker) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isPaused {
		return
	}
	w.isPaused = false
	close(w.resumeChan)
	w.resumeChan = make(chan struct{})
}

func (w *Worker) run() {
	for {
		w.mu.Lock()
		ctx := w.ctx
		paused := w.isPaused
		resumeChan := w.resumeChan
		w.mu.Unlock()

		if ctx == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		if paused {
			select {
			case <-ctx.Done():
				return
			case <-resumeChan:
			}
			continue
		}

		w.pollOnce(ctx)

		interval := time.Duration(pollMinMS+rand.Intn(pollMaxMS-pollMinMS)) * time.Millisecond
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// pollOnce recomputes the desired set, orders it by (tier_priority asc,
// probability desc, chunk_distance asc), and dispatches a job for every
// key not already cached.
func (w *Worker) pollOnce(ctx context.Context) {
	desired := w.desiredFunc()
	sort.Slice(desired, func(i, j int) bool {
		if desired[i].Tier != desired[j].Tier {
			return desired[i].Tier < desired[j].Tier
		}
		if desired[i].Probability != desired[j].Probability {
			return desired[i].Probability > desired[j].Probability
		}
		return desired[i].ChunkDistance < desired[j].ChunkDistance
	})

	w.mu.Lock()
	sem := w.sem
	w.mu.Unlock()

	var wg sync.WaitGroup
	for _, d := range desired {
		if w.cache.Has(d.Key) {
			atomic.AddInt64(&w.skippedCount, 1)
			continue
		}
		if sem != nil {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
		wg.Add(1)
		go func(d DesiredKey) {
			defer wg.Done()
			w.process(ctx, d)
			if sem != nil {
				<-sem
			}
		}(d)
	}
	wg.Wait()
}

// process renders and inserts one desired key, deduplicating concurrent
// requests for the same key: the second caller waits on the first's
// WaitGroup instead of re-running the pipeline.
func (w *Worker) process(ctx context.Context, d DesiredKey) {
	w.mu.Lock()
	if existing, ok := w.inFlight[d.Key]; ok {
		w.mu.Unlock()
		existing.Wait()
		return
	}
	group := &sync.WaitGroup{}
	group.Add(1)
	w.inFlight[d.Key] = group
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.inFlight, d.Key)
		w.mu.Unlock()
		group.Done()
	}()

	select {
	case <-ctx.Done():
		return
	default:
	}

	pcm, err := w.processFunc(ctx, d.Key)
	if err != nil {
		return
	}

	select {
	case <-ctx.Done():
		return // cancelled between pipeline stages and insert
	default:
	}

	// The desired set may have changed while this job ran (preset/track
	// switch); re-check before inserting so a stale job doesn't pollute a
	// tier that no longer wants it.
	if !w.stillDesired(d.Key) {
		atomic.AddInt64(&w.skippedCount, 1)
		return
	}

	w.cache.Insert(d.Key, pcm, d.Tier, d.Probability)
	atomic.AddInt64(&w.processedCount, 1)
}

func (w *Worker) stillDesired(key types.CacheKey) bool {
	for _, d := range w.desiredFunc() {
		if d.Key == key {
			return true
		}
	}
	return false
}

// Stats reports cumulative processed/skipped job counts for metrics.
func (w *Worker) Stats() (processed, skipped int64) {
	return atomic.LoadInt64(&w.processedCount), atomic.LoadInt64(&w.skippedCount)
}
