package player

import (
	"context"
	"errors"
	"time"

	"github.com/matiaszanolli/auralis/core/internal/cache"
	"github.com/matiaszanolli/auralis/core/internal/pipeline"
	"github.com/matiaszanolli/auralis/core/internal/types"
)

// onDemandTimeout is the deadline the player waits for a cache-miss chunk
// to be promoted/processed before dropping to silence (spec §5: "waits on
// a condition variable with a deadline (default 150 ms)").
const onDemandTimeout = 150 * time.Millisecond

// ErrChunkTimeout is returned when an on-demand promotion does not finish
// within onDemandTimeout.
var ErrChunkTimeout = errors.New("player: chunk promotion timed out")

// KeyFunc builds the cache key for a chunk index of the track/preset/
// intensity currently playing.
type KeyFunc func(chunkIdx int) types.CacheKey

// ChunkSource is the player's sole view onto the cache and pipeline: it
// never touches the pipeline directly except on a cache miss, keeping the
// player thread itself non-blocking (spec §5, "the player thread is
// strictly single-consumer of the cache").
type ChunkSource struct {
	cache    *cache.MultiTierCache
	pipeline *pipeline.Pipeline
	keyFn    KeyFunc
}

// NewChunkSource builds a source over one track's pipeline and parameters.
func NewChunkSource(c *cache.MultiTierCache, p *pipeline.Pipeline, keyFn KeyFunc) *ChunkSource {
	return &ChunkSource{cache: c, pipeline: p, keyFn: keyFn}
}

// ChunkCount is the number of chunks the underlying track produces.
func (s *ChunkSource) ChunkCount() int { return s.pipeline.ChunkCount() }

// TryGet returns a cached chunk without blocking, the player's fast path.
func (s *ChunkSource) TryGet(idx int) (types.StereoSamples, bool) {
	key := s.keyFn(idx)
	res := s.cache.Get(key)
	if !res.Hit {
		return nil, false
	}
	return res.PCM, true
}

// Promote runs the chunk pipeline on demand for a cache miss (spec §4.7
// seek semantics: "the cache promotes/processes the chunk on demand"),
// returning ErrChunkTimeout if it doesn't finish within onDemandTimeout so
// the player can fall back to silence rather than block indefinitely.
func (s *ChunkSource) Promote(ctx context.Context, idx int) (types.StereoSamples, error) {
	key := s.keyFn(idx)

	type result struct {
		pcm types.StereoSamples
		err error
	}
	done := make(chan result, 1)
	go func() {
		chunk, err := s.pipeline.Chunk(idx)
		if err != nil {
			done <- result{err: err}
			return
		}
		s.cache.Insert(key, chunk.PCM, types.TierL1, 1.0)
		done <- result{pcm: chunk.PCM}
	}()

	select {
	case r := <-done:
		return r.pcm, r.err
	case <-time.After(onDemandTimeout):
		return nil, ErrChunkTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns chunk idx, trying the cache first and falling back to an
// on-demand promotion on miss.
func (s *ChunkSource) Get(ctx context.Context, idx int) (types.StereoSamples, error) {
	if pcm, ok := s.TryGet(idx); ok {
		return pcm, nil
	}
	return s.Promote(ctx, idx)
}
