package player

import (
	"github.com/matiaszanolli/auralis/core/internal/cache"
	"github.com/matiaszanolli/auralis/core/internal/types"
)

// DesiredSetConfig carries the live playback state the worker's desired
// set is computed from (spec §4.6).
type DesiredSetConfig struct {
	TrackID       types.TrackID
	Intensity     types.IntensityBucket
	CurrentPreset types.Preset
	CurrentChunk  int
	ChunkCount    int
	Predictor     *cache.Predictor
	AudioContext  cache.AudioContext
}

// BuildDesiredSet assembles the worker's target cache keys from current
// playback position and the predictor's blended preset probabilities
// (spec §4.6): L1 is current/next chunk across the top-3 predicted
// presets, L2 is chunks +2..+4 across the top-2 presets, L3 is the
// current preset alone across chunks +5..+15.
func BuildDesiredSet(cfg DesiredSetConfig) []cache.DesiredKey {
	predictions := cfg.Predictor.Predict(cfg.CurrentPreset, cfg.AudioContext)
	top3 := cache.TopN(predictions, 3)
	top2 := cache.TopN(predictions, 2)

	var out []cache.DesiredKey

	for _, idx := range clampedRange(cfg.CurrentChunk, cfg.CurrentChunk+1, cfg.ChunkCount) {
		for _, pr := range top3 {
			out = append(out, cfg.desiredKey(idx, pr.Preset, types.TierL1, pr.Probability))
		}
	}

	for _, idx := range clampedRange(cfg.CurrentChunk+2, cfg.CurrentChunk+4, cfg.ChunkCount) {
		for _, pr := range top2 {
			out = append(out, cfg.desiredKey(idx, pr.Preset, types.TierL2, pr.Probability))
		}
	}

	for _, idx := range clampedRange(cfg.CurrentChunk+5, cfg.CurrentChunk+15, cfg.ChunkCount) {
		out = append(out, cfg.desiredKey(idx, cfg.CurrentPreset, types.TierL3, 1.0))
	}

	return out
}

func (cfg DesiredSetConfig) desiredKey(idx int, preset types.Preset, tier types.Tier, probability float32) cache.DesiredKey {
	return cache.DesiredKey{
		Key: types.CacheKey{
			TrackID:         cfg.TrackID,
			Preset:          preset,
			ChunkIndex:      idx,
			IntensityBucket: cfg.Intensity,
		},
		Tier:          tier,
		Probability:   probability,
		ChunkDistance: idx - cfg.CurrentChunk,
	}
}

// clampedRange returns the chunk indices in [from, to] that fall within
// [0, chunkCount).
func clampedRange(from, to, chunkCount int) []int {
	if from < 0 {
		from = 0
	}
	if to >= chunkCount {
		to = chunkCount - 1
	}
	if from > to {
		return nil
	}
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}
