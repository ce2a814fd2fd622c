package dsp

import (
	"math"
	"testing"

	"github.com/matiaszanolli/auralis/core/internal/params"
	"github.com/matiaszanolli/auralis/core/internal/types"
)

func neutralParams() params.Parameters {
	return params.Parameters{
		TargetLUFS:   -14,
		PeakTargetDB: -1,
		EQCurve: [5]params.EQBand{
			{FreqHz: 100, GainDB: 0},
			{FreqHz: 500, GainDB: 0},
			{FreqHz: 2000, GainDB: 0},
			{FreqHz: 6000, GainDB: 0},
			{FreqHz: 12000, GainDB: 0},
		},
		EQBlend:           0.5,
		Compression:       params.Compression{Amount: 0},
		Expansion:         params.Expansion{Amount: 0},
		Limiter:           params.Limiter{CeilingDB: -1, LookaheadMS: 5},
		StereoWidthTarget: 0.5,
	}
}

func sineStereo(sr, seconds int, freq float64, amp float32) types.StereoSamples {
	n := sr * seconds
	out := make(types.StereoSamples, n*2)
	for i := 0; i < n; i++ {
		v := amp * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(sr)))
		out[2*i] = v
		out[2*i+1] = v
	}
	return out
}

func TestChainProcessNeverExceedsNormalizationCeiling(t *testing.T) {
	const sr = 44100
	pcm := sineStereo(sr, 2, 440, 0.95)
	p := neutralParams()
	c := NewChain(p, sr)

	out := c.Process(pcm)

	var peak float32
	for _, v := range out {
		a := v
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	if peak > 0.991 {
		t.Errorf("expected peak <= 0.99 after final normalization, got %v", peak)
	}
}

func TestChainProcessPreservesFrameCount(t *testing.T) {
	const sr = 44100
	pcm := sineStereo(sr, 1, 220, 0.5)
	c := NewChain(neutralParams(), sr)

	out := c.Process(pcm)

	if out.Frames() != pcm.Frames() {
		t.Errorf("expected %d frames, got %d", pcm.Frames(), out.Frames())
	}
}

func TestCompressionAndExpansionMutuallyExclusiveInChain(t *testing.T) {
	const sr = 44100
	p := neutralParams()
	p.Compression = params.Compression{Ratio: 1.8, ThresholdDB: -22, AttackMS: 10, ReleaseMS: 150, Amount: 0.5}
	p.Expansion = params.Expansion{Amount: 0} // construction guarantees only one active

	pcm := sineStereo(sr, 1, 440, 0.3)
	c := NewChain(p, sr)
	out := c.Process(pcm)

	if out.Frames() != pcm.Frames() {
		t.Errorf("expected %d frames, got %d", pcm.Frames(), out.Frames())
	}
}

func TestResetClearsFilterState(t *testing.T) {
	const sr = 44100
	p := neutralParams()
	p.EQCurve[0].GainDB = 6
	c := NewChain(p, sr)

	pcm := sineStereo(sr, 1, 100, 0.5)
	_ = c.Process(pcm)
	c.Reset()

	// After reset, processing silence should yield silence (no filter
	// ringing carried over from the previous chunk).
	silence := make(types.StereoSamples, 2*sr)
	out := c.Process(silence)
	for i, v := range out {
		if v != 0 && math.Abs(float64(v)) > 1e-6 {
			t.Fatalf("expected near-silence after reset+silence input, got %v at %d", v, i)
		}
	}
}
