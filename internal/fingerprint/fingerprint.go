// Package fingerprint extracts the 25-dimensional acoustic fingerprint from
// decoded PCM audio (spec §3.1, §4.1).
package fingerprint

import (
	"errors"
	"fmt"
	"math"
)

// Fingerprint is the immutable 25-dimensional acoustic descriptor of a
// track, partitioned into seven groups as in spec §3.1.
type Fingerprint struct {
	// Frequency group (7): energy percentage in seven bands, sums to 100±1.
	SubBassPct  float32
	BassPct     float32
	LowMidPct   float32
	MidPct      float32
	UpperMidPct float32
	PresencePct float32
	AirPct      float32

	// Dynamics group (2).
	LUFS    float32 // -30..-5
	CrestDB float32 // 8..24

	// Frequency relation (1).
	BassMidRatioDB float32 // -5..+10

	// Temporal group (4).
	TempoBPM         float32 // 40..200
	RhythmStability  float32 // 0..1
	TransientDensity float32 // 0..1
	SilenceRatio     float32 // 0..1

	// Spectral group (3), normalized to [0,1].
	SpectralCentroid float32
	SpectralRolloff  float32
	SpectralFlatness float32

	// Harmonic group (3), [0,1].
	HarmonicRatio  float32
	PitchStability float32
	ChromaEnergy   float32

	// Variation group (3).
	DynamicRangeVariation float32 // 0..1
	LoudnessVariationStd  float32 // 0..10
	PeakConsistency       float32 // 0..1

	// Stereo group (2).
	StereoWidth      float32 // 0..1
	PhaseCorrelation float32 // -1..+1

	// Metadata, persisted alongside the 25 fields (spec §3.1).
	HarmonicAnalysisMethod string // "full" | "sampled"
	SamplingIntervalS      float32

	// Confidence is reduced (but the fingerprint stays valid) when HPSS/YIN
	// diverge (spec §4.1 "Failure modes").
	Confidence float32
}

// Supported sample rates (spec §4.1).
var supportedSampleRates = map[int]bool{
	22050: true, 32000: true, 44100: true, 48000: true, 88200: true, 96000: true,
}

// ErrShortAudio is returned when the input is shorter than 5 seconds.
var ErrShortAudio = errors.New("fingerprint: audio shorter than 5s")

// InvalidSampleRateError is returned when sr is not in the supported set.
type InvalidSampleRateError struct {
	SampleRate int
}

func (e *InvalidSampleRateError) Error() string {
	return fmt.Sprintf("fingerprint: unsupported sample rate %d", e.SampleRate)
}

// clampFinite clamps v into [lo,hi], forcing NaN/Inf to the midpoint of the
// range — every fingerprint field must be finite and in-range (spec §3.1,
// invariant 2).
func clampFinite(v, lo, hi float64) float32 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = (lo + hi) / 2
	}
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return float32(v)
}

// Validate checks the invariants from spec §8 (1: frequency percentages sum
// to 100±1; 2: every field finite and in its declared range).
func (f Fingerprint) Validate() error {
	sum := f.SubBassPct + f.BassPct + f.LowMidPct + f.MidPct + f.UpperMidPct + f.PresencePct + f.AirPct
	if sum < 99 || sum > 101 {
		return fmt.Errorf("fingerprint: frequency percentages sum to %.2f, want 100±1", sum)
	}

	ranges := []struct {
		name     string
		v        float32
		lo, hi   float32
	}{
		{"sub_bass_pct", f.SubBassPct, 0, 100},
		{"bass_pct", f.BassPct, 0, 100},
		{"low_mid_pct", f.LowMidPct, 0, 100},
		{"mid_pct", f.MidPct, 0, 100},
		{"upper_mid_pct", f.UpperMidPct, 0, 100},
		{"presence_pct", f.PresencePct, 0, 100},
		{"air_pct", f.AirPct, 0, 100},
		{"lufs", f.LUFS, -30, -5},
		{"crest_db", f.CrestDB, 8, 24},
		{"bass_mid_ratio", f.BassMidRatioDB, -5, 10},
		{"tempo_bpm", f.TempoBPM, 40, 200},
		{"rhythm_stability", f.RhythmStability, 0, 1},
		{"transient_density", f.TransientDensity, 0, 1},
		{"silence_ratio", f.SilenceRatio, 0, 1},
		{"spectral_centroid", f.SpectralCentroid, 0, 1},
		{"spectral_rolloff", f.SpectralRolloff, 0, 1},
		{"spectral_flatness", f.SpectralFlatness, 0, 1},
		{"harmonic_ratio", f.HarmonicRatio, 0, 1},
		{"pitch_stability", f.PitchStability, 0, 1},
		{"chroma_energy", f.ChromaEnergy, 0, 1},
		{"dynamic_range_variation", f.DynamicRangeVariation, 0, 1},
		{"loudness_variation_std", f.LoudnessVariationStd, 0, 10},
		{"peak_consistency", f.PeakConsistency, 0, 1},
		{"stereo_width", f.StereoWidth, 0, 1},
		{"phase_correlation", f.PhaseCorrelation, -1, 1},
	}

	for _, r := range ranges {
		if math.IsNaN(float64(r.v)) || math.IsInf(float64(r.v), 0) {
			return fmt.Errorf("fingerprint: %s is not finite", r.name)
		}
		if r.v < r.lo || r.v > r.hi {
			return fmt.Errorf("fingerprint: %s = %v out of range [%v,%v]", r.name, r.v, r.lo, r.hi)
		}
	}
	return nil
}
