package params

import "github.com/matiaszanolli/auralis/core/internal/types"

// PresetPreferences is the single source of truth mapping a closed-set
// preset identifier to its PreferenceVector (spec §3.2, §6.1). The
// predictor's audio-affinity rule table references preset names only; it
// does not carry a second copy of these vectors.
var PresetPreferences = map[types.Preset]Preference{
	types.PresetAdaptive: {},
	types.PresetGentle: {
		SpectralBias: -0.2, DynamicBias: 0.4, LoudnessBias: -0.3,
		BassBoost: 0.1, TrebleBoost: 0.1, StereoBias: 0,
	},
	types.PresetWarm: {
		SpectralBias: -0.4, DynamicBias: 0.1, LoudnessBias: 0,
		BassBoost: 0.4, TrebleBoost: 0.1, StereoBias: -0.1,
	},
	types.PresetBright: {
		SpectralBias: 0.5, DynamicBias: 0, LoudnessBias: 0,
		BassBoost: 0.1, TrebleBoost: 0.5, StereoBias: 0.1,
	},
	types.PresetPunchy: {
		SpectralBias: 0.1, DynamicBias: -0.4, LoudnessBias: 0.3,
		BassBoost: 0.3, TrebleBoost: 0.2, StereoBias: 0,
	},
	types.PresetLive: {
		SpectralBias: 0.2, DynamicBias: 0.2, LoudnessBias: 0.1,
		BassBoost: 0.15, TrebleBoost: 0.2, StereoBias: 0.3,
	},
}

// PreferenceFor returns the canonical preference vector for a preset,
// falling back to the zero (adaptive/neutral) vector for an unknown value.
func PreferenceFor(p types.Preset) Preference {
	if pref, ok := PresetPreferences[p]; ok {
		return pref
	}
	return Preference{}
}
