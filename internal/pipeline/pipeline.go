// Package pipeline turns a decoded track and a fixed set of processing
// parameters into a lazy, restartable sequence of processed, crossfade-
// ready chunks (spec §4.4).
package pipeline

import (
	"fmt"

	"github.com/matiaszanolli/auralis/core/internal/dsp"
	"github.com/matiaszanolli/auralis/core/internal/params"
	"github.com/matiaszanolli/auralis/core/internal/types"
)

const (
	chunkDurationS   = 30
	contextPaddingS  = 5
	crossfadeOverlapS = 1
)

// PCMSource reads arbitrary sample ranges from a decoded track. Ownership
// and decoding of the underlying file are external to this module (spec
// §6.1); the pipeline only needs random-access frame reads.
type PCMSource interface {
	SampleRate() int
	Channels() int
	TotalFrames() int64
	ReadFrames(startFrame, numFrames int64) (types.StereoSamples, error)
}

// ChunkFailedError reports that chunk idx could not be produced after the
// pipeline's single retry (spec §4.4 failure modes).
type ChunkFailedError struct {
	Idx int
	Err error
}

func (e *ChunkFailedError) Error() string {
	return fmt.Sprintf("pipeline: chunk %d failed: %v", e.Idx, e.Err)
}

func (e *ChunkFailedError) Unwrap() error { return e.Err }

// Chunk is one processed, trimmed segment of a track, ready for the player
// to crossfade against its neighbors.
type Chunk struct {
	Index    int
	PCM      types.StereoSamples
	IsFirst  bool
	IsLast   bool
}

// Pipeline produces processed chunks for one (track, parameters) pair. It
// is restartable (any chunk index may be requested independent of order)
// and finite (ChunkCount reports how many chunks there are).
type Pipeline struct {
	source PCMSource
	params params.Parameters
	sr     int
}

// New builds a pipeline over source using pre-generated parameters. The
// parameters are fixed for the pipeline's lifetime (spec §4.2 determinism:
// the same coordinates+preference always yield the same parameters, so
// there is no reason to regenerate per chunk).
func New(source PCMSource, p params.Parameters) *Pipeline {
	return &Pipeline{source: source, params: p, sr: source.SampleRate()}
}

// ChunkCount returns the total number of chunks the track will produce.
// Tracks shorter than chunk_duration-overlap are never split (spec §4.4
// edge cases).
func (p *Pipeline) ChunkCount() int {
	totalFrames := p.source.TotalFrames()
	totalS := float64(totalFrames) / float64(p.sr)
	if totalS <= chunkDurationS-crossfadeOverlapS {
		return 1
	}
	count := int(totalS / chunkDurationS)
	if float64(count*chunkDurationS) < totalS {
		count++
	}
	if count < 1 {
		count = 1
	}
	return count
}

// Chunk produces chunk idx, retrying once on a decode/process error before
// propagating a ChunkFailedError (spec §4.4). A failed chunk does not
// poison subsequent chunks — callers may request any other index freely.
func (p *Pipeline) Chunk(idx int) (Chunk, error) {
	chunk, err := p.produceChunk(idx)
	if err != nil {
		chunk, err = p.produceChunk(idx)
		if err != nil {
			return Chunk{}, &ChunkFailedError{Idx: idx, Err: err}
		}
	}
	return chunk, nil
}

func (p *Pipeline) produceChunk(idx int) (Chunk, error) {
	total := p.ChunkCount()
	isFirst := idx == 0
	isLast := idx == total-1

	chunkStartS := float64(idx * chunkDurationS)
	chunkEndS := chunkStartS + chunkDurationS

	padStartS := chunkStartS - contextPaddingS
	if padStartS < 0 {
		padStartS = 0
	}
	padEndS := chunkEndS + contextPaddingS
	totalS := float64(p.source.TotalFrames()) / float64(p.sr)
	if padEndS > totalS {
		padEndS = totalS
	}

	startFrame := int64(padStartS * float64(p.sr))
	endFrame := int64(padEndS * float64(p.sr))
	numFrames := endFrame - startFrame
	if numFrames <= 0 {
		return Chunk{}, fmt.Errorf("pipeline: empty frame range for chunk %d", idx)
	}

	raw, err := p.source.ReadFrames(startFrame, numFrames)
	if err != nil {
		return Chunk{}, err
	}

	chain := dsp.NewChain(p.params, p.sr)
	processed := chain.Process(raw)

	// Trim the context padding back off: leading pad is (chunkStart -
	// padStart) seconds, trailing pad is (padEnd - chunkEnd) seconds.
	leadTrimFrames := int(float64(int64(chunkStartS*float64(p.sr))-startFrame)) // frames of leading padding actually present
	if leadTrimFrames < 0 {
		leadTrimFrames = 0
	}
	mainDurationS := chunkEndS - chunkStartS
	if isLast {
		mainDurationS = totalS - chunkStartS
	}
	mainFrames := int(mainDurationS * float64(p.sr))
	if leadTrimFrames+mainFrames > processed.Frames() {
		mainFrames = processed.Frames() - leadTrimFrames
	}
	if mainFrames < 0 {
		mainFrames = 0
	}

	trimmed := processed[leadTrimFrames*2 : (leadTrimFrames+mainFrames)*2]
	out := make(types.StereoSamples, len(trimmed))
	copy(out, trimmed)

	fadeApplyChunkFades(out, p.sr, isFirst, isLast)

	return Chunk{Index: idx, PCM: out, IsFirst: isFirst, IsLast: isLast}, nil
}
