package dsp

import (
	"math"

	"github.com/matiaszanolli/auralis/core/internal/params"
	"github.com/matiaszanolli/auralis/core/internal/types"
)

// Chain is the fixed six-stage mastering chain of spec §4.3. It holds
// per-channel filter/envelope state so it can be reused across the
// contiguous frames of a single chunk (state persists; callers reset it at
// chunk boundaries not covered by context padding).
type Chain struct {
	sr     int
	params params.Parameters

	eqL, eqR           *EQ
	compL, compR       *Compressor
	expL, expR         *Expander
	limiter            *Limiter
}

// NewChain builds a chain for one chunk's parameters at the given sample
// rate. The limiter's look-ahead window in samples is derived from
// p.Limiter.LookaheadMS.
func NewChain(p params.Parameters, sr int) *Chain {
	lookahead := int(float64(p.Limiter.LookaheadMS) / 1000 * float64(sr))
	if lookahead < 1 {
		lookahead = 1
	}

	return &Chain{
		sr:     sr,
		params: p,
		eqL:    NewEQ(p.EQCurve, p.EQBlend, sr),
		eqR:    NewEQ(p.EQCurve, p.EQBlend, sr),
		compL:  NewCompressor(p.Compression, sr),
		compR:  NewCompressor(p.Compression, sr),
		expL:   NewExpander(p.Expansion, sr),
		expR:   NewExpander(p.Expansion, sr),
		limiter: NewLimiter(p.Limiter.CeilingDB, lookahead, sr),
	}
}

// Reset clears all per-channel filter/envelope/limiter state. Called at
// chunk boundaries without context padding (spec §4.3).
func (c *Chain) Reset() {
	c.eqL.Reset()
	c.eqR.Reset()
	c.compL.Reset()
	c.compR.Reset()
	c.expL.Reset()
	c.expR.Reset()
	c.limiter.Reset()
}

// Process runs the fixed six-stage order over interleaved stereo PCM and
// returns the processed result (spec §4.3).
func (c *Chain) Process(pcm types.StereoSamples) types.StereoSamples {
	frames := pcm.Frames()
	left := make([]float64, frames)
	right := make([]float64, frames)
	for i := 0; i < frames; i++ {
		left[i] = float64(pcm[2*i])
		right[i] = float64(pcm[2*i+1])
	}

	// Stage 1: loudness, measured on the downmix, applied equally to both
	// channels so stereo balance is untouched by the gain stage.
	mono := make([]float64, frames)
	for i := range mono {
		mono[i] = (left[i] + right[i]) / 2
	}
	gainDB := float64(c.params.TargetLUFS) - measureLUFSApprox(mono, c.sr)
	gain := math.Pow(10, gainDB/20)
	for i := range left {
		left[i] *= gain
		right[i] *= gain
	}

	// Stage 2: psychoacoustic EQ, independent state per channel.
	c.eqL.ProcessMono(left)
	c.eqR.ProcessMono(right)

	// Stage 3: exactly one of compression/expansion is active by
	// construction (params.Generate enforces this).
	if c.params.Compression.Amount > 0 {
		c.compL.ProcessMono(left)
		c.compR.ProcessMono(right)
	} else if c.params.Expansion.Amount > 0 {
		c.expL.ProcessMono(left)
		c.expR.ProcessMono(right)
	}

	stereo := make([]float64, frames*2)
	for i := 0; i < frames; i++ {
		stereo[2*i] = left[i]
		stereo[2*i+1] = right[i]
	}

	// Stage 4: stereo width.
	applyStereoWidth(stereo, c.params.StereoWidthTarget)

	// Stage 5: look-ahead sample-peak limiter.
	c.limiter.ProcessStereo(stereo)

	// Stage 6: final peak normalization to 0.99 absolute.
	normalizePeak(stereo, 0.99)

	out := make(types.StereoSamples, len(stereo))
	for i, v := range stereo {
		out[i] = float32(v)
	}
	return out
}

// normalizePeak scales buf so its absolute peak equals target, a no-op if
// the peak is already at or below target (spec §4.3 stage 6 "normalise to
// 0.99 absolute" is only a ceiling, not a floor boost requirement beyond
// what the limiter already guarantees).
func normalizePeak(buf []float64, target float64) {
	var peak float64
	for _, v := range buf {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak <= target || peak == 0 {
		return
	}
	scale := target / peak
	for i := range buf {
		buf[i] *= scale
	}
}
