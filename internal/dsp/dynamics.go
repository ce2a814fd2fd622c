package dsp

import (
	"math"

	"github.com/matiaszanolli/auralis/core/internal/params"
)

// envelopeFollower tracks signal level with separate attack/release time
// constants, the standard feed-forward detector used by both the
// compressor and expander stages.
type envelopeFollower struct {
	attackCoeff  float64
	releaseCoeff float64
	level        float64
}

func newEnvelopeFollower(attackMS, releaseMS float64, sr int) *envelopeFollower {
	return &envelopeFollower{
		attackCoeff:  math.Exp(-1 / (attackMS / 1000 * float64(sr))),
		releaseCoeff: math.Exp(-1 / (releaseMS / 1000 * float64(sr))),
	}
}

func (e *envelopeFollower) next(absX float64) float64 {
	if absX > e.level {
		e.level = e.attackCoeff*e.level + (1-e.attackCoeff)*absX
	} else {
		e.level = e.releaseCoeff*e.level + (1-e.releaseCoeff)*absX
	}
	return e.level
}

// Compressor is a feed-forward compressor with a fixed ratio/threshold and
// a wet/dry Amount blend (spec §4.3 stage 3, "exactly one active per
// chunk").
type Compressor struct {
	params params.Compression
	env    *envelopeFollower
}

func NewCompressor(p params.Compression, sr int) *Compressor {
	if p.Amount <= 0 {
		return &Compressor{params: p}
	}
	return &Compressor{params: p, env: newEnvelopeFollower(float64(p.AttackMS), float64(p.ReleaseMS), sr)}
}

func (c *Compressor) ProcessMono(buf []float64) {
	if c.params.Amount <= 0 || c.env == nil {
		return
	}
	thresholdLin := math.Pow(10, float64(c.params.ThresholdDB)/20)
	ratio := float64(c.params.Ratio)
	if ratio <= 0 {
		ratio = 1
	}

	for i, x := range buf {
		level := c.env.next(math.Abs(x))
		if level <= thresholdLin || level <= 0 {
			continue
		}
		levelDB := 20 * math.Log10(level)
		thresholdDB := float64(c.params.ThresholdDB)
		overDB := levelDB - thresholdDB
		gainReductionDB := overDB - overDB/ratio
		gain := math.Pow(10, -gainReductionDB/20)
		wet := x * gain
		buf[i] = x*(1-float64(c.params.Amount)) + wet*float64(c.params.Amount)
	}
}

func (c *Compressor) Reset() {
	if c.env != nil {
		c.env.level = 0
	}
}

// Expander is an upward expander: below its working envelope, gain is
// reduced, raising the measured crest factor by TargetCrestIncreaseDB
// (spec §4.3 stage 3 alternative path).
type Expander struct {
	params params.Expansion
	env    *envelopeFollower
}

func NewExpander(p params.Expansion, sr int) *Expander {
	if p.Amount <= 0 {
		return &Expander{params: p}
	}
	return &Expander{params: p, env: newEnvelopeFollower(5, 100, sr)}
}

func (e *Expander) ProcessMono(buf []float64) {
	if e.params.Amount <= 0 || e.env == nil {
		return
	}
	// Gain reduction applied to below-envelope content, scaled so the peak
	// stays put while the "floor" drops by roughly TargetCrestIncreaseDB.
	maxAttenDB := float64(e.params.TargetCrestIncreaseDB)

	for i, x := range buf {
		level := e.env.next(math.Abs(x))
		if level <= 0 {
			continue
		}
		quietness := 1 - clampUnit(level) // crude: envelope already ~ [0,1] for normalized PCM
		attenDB := maxAttenDB * quietness
		gain := math.Pow(10, -attenDB/20)
		wet := x * gain
		buf[i] = x*(1-float64(e.params.Amount)) + wet*float64(e.params.Amount)
	}
}

func (e *Expander) Reset() {
	if e.env != nil {
		e.env.level = 0
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
