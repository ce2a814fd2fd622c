// Package params generates deterministic DSP parameters from a fingerprint
// and a user preference bias, the pure bridge between the fingerprint
// analyzer and the DSP chain.
package params

import "github.com/matiaszanolli/auralis/core/internal/fingerprint"

// Coordinates is the 3-D reduction of a Fingerprint used by the parameter
// generator, carrying the full fingerprint alongside for secondary use in
// the EQ/compression rules below.
type Coordinates struct {
	SpectralBalance float32 // 0=dark .. 1=bright
	DynamicRange    float32 // 0=compressed .. 1=dynamic
	EnergyLevel     float32 // 0=quiet .. 1=loud

	Fingerprint fingerprint.Fingerprint
}

// Preference is the user-side bias applied to coordinates before parameter
// generation (spec §3.2).
type Preference struct {
	SpectralBias float32 // -1..+1
	DynamicBias  float32 // -1..+1
	LoudnessBias float32 // -1..+1
	BassBoost    float32 // 0..1
	TrebleBoost  float32 // 0..1
	StereoBias   float32 // -1..+1
}

// coordinate-bias blend factors, one per axis (spec §4.2 step 2).
const (
	spectralBiasK = 0.15
	dynamicBiasK  = 0.15
	energyBiasK   = 0.10
)

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// DeriveCoordinates maps a fingerprint to its 3-D processing coordinates
// using the exact weighted sums from spec §4.2 step 1.
func DeriveCoordinates(fp fingerprint.Fingerprint) Coordinates {
	spectralBalance := 0.3*(1-fp.BassPct/100) + 0.3*fp.AirPct/100 + 0.2*fp.SpectralCentroid + 0.2*fp.PresencePct/100
	dynamicRange := 0.5*clamp01((fp.CrestDB-8)/12) + 0.3*fp.DynamicRangeVariation + 0.2*clamp01(fp.LoudnessVariationStd/5)
	energyLevel := clamp01((fp.LUFS + 30) / 20)

	return Coordinates{
		SpectralBalance: clamp01(spectralBalance),
		DynamicRange:    clamp01(dynamicRange),
		EnergyLevel:     energyLevel,
		Fingerprint:     fp,
	}
}

// ApplyPreference biases coordinates toward the user's preference vector
// (spec §4.2 step 2). The result is clamped back into [0,1] per axis.
func ApplyPreference(c Coordinates, pref Preference) Coordinates {
	biased := c
	biased.SpectralBalance = clamp01(c.SpectralBalance + pref.SpectralBias*spectralBiasK)
	biased.DynamicRange = clamp01(c.DynamicRange + pref.DynamicBias*dynamicBiasK)
	biased.EnergyLevel = clamp01(c.EnergyLevel + pref.LoudnessBias*energyBiasK)
	return biased
}
