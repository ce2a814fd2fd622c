package params

// EQBand is a single shelf/band gain point in the 5-point eq_curve (spec
// §3.2). Frequencies are fixed; only gains vary per track.
type EQBand struct {
	FreqHz float32
	GainDB float32
}

// Compression describes the feed-forward compressor stage.
type Compression struct {
	Ratio       float32
	ThresholdDB float32
	AttackMS    float32
	ReleaseMS   float32
	Amount      float32 // 0..1
}

// Expansion describes the upward expander stage.
type Expansion struct {
	TargetCrestIncreaseDB float32
	Amount                float32 // 0..1
}

// Limiter describes the look-ahead sample-peak limiter stage.
type Limiter struct {
	CeilingDB    float32
	LookaheadMS  float32
}

// Parameters is the full set of DSP chain inputs produced by Generate
// (spec §3.2, §4.2).
type Parameters struct {
	TargetLUFS   float32 // -23..-10
	PeakTargetDB float32 // -6..-0.2

	EQCurve [5]EQBand
	EQBlend float32 // 0..1

	Compression Compression
	Expansion   Expansion
	Limiter     Limiter

	StereoWidthTarget float32 // 0..1
}

// eqFrequencies are the 5 fixed shelf/band points the eq_curve gains apply
// to: low-shelf, low-mid, mid (flat by construction), high-mid, high-shelf.
var eqFrequencies = [5]float32{100, 500, 2000, 6000, 12000}

const limiterAttackLookaheadMS = 5

// Generate is the pure parameter-generation contract of spec §4.2: fixed
// order of steps, deterministic outputs for identical inputs.
func Generate(c Coordinates, pref Preference) Parameters {
	biased := ApplyPreference(c, pref)
	fp := c.Fingerprint

	var p Parameters
	p.TargetLUFS = clampRange(-16+6*biased.EnergyLevel-2*biased.DynamicRange, -23, -10)
	p.PeakTargetDB = clampRange(-1+(-0.5)*biased.DynamicRange, -6, -0.2)

	bassDeficit := maxF(0, 25-fp.BassPct) / 25
	lowShelfGain := 3 * bassDeficit
	airDeficit := maxF(0, 12-fp.AirPct) / 12
	highShelfGain := 3 * airDeficit

	lowShelfGain += pref.BassBoost * 2
	highShelfGain += pref.TrebleBoost * 2

	p.EQCurve = [5]EQBand{
		{FreqHz: eqFrequencies[0], GainDB: lowShelfGain},
		{FreqHz: eqFrequencies[1], GainDB: 0},
		{FreqHz: eqFrequencies[2], GainDB: 0},
		{FreqHz: eqFrequencies[3], GainDB: 0},
		{FreqHz: eqFrequencies[4], GainDB: highShelfGain},
	}

	bassImbalance := absF(fp.BassPct-30) / 30
	airImbalance := absF(fp.AirPct-12) / 12
	imbalance := (bassImbalance + airImbalance) / 2
	p.EQBlend = clamp01(0.5 + 0.5*imbalance)

	switch {
	case biased.DynamicRange > 0.7:
		p.Compression = Compression{Ratio: 1.5, ThresholdDB: -26, AttackMS: 10, ReleaseMS: 150, Amount: 0.3}
	case biased.DynamicRange >= 0.4:
		p.Compression = Compression{Ratio: 1.8, ThresholdDB: -22, AttackMS: 10, ReleaseMS: 150, Amount: 0.5}
	default:
		p.Compression = Compression{Amount: 0}
	}

	switch {
	case biased.DynamicRange < 0.3:
		p.Expansion = Expansion{TargetCrestIncreaseDB: 4, Amount: 1.0}
	case biased.DynamicRange < 0.5:
		p.Expansion = Expansion{TargetCrestIncreaseDB: 2, Amount: 0.6}
	default:
		p.Expansion = Expansion{Amount: 0}
	}
	// The two bands overlap on [0.4, 0.5); compression takes precedence
	// there so at most one dynamics stage is ever active.
	if p.Compression.Amount > 0 {
		p.Expansion = Expansion{Amount: 0}
	}

	p.Limiter = Limiter{CeilingDB: p.PeakTargetDB, LookaheadMS: limiterAttackLookaheadMS}

	currentWidth := fp.StereoWidth
	switch {
	case currentWidth < 0.5:
		p.StereoWidthTarget = clamp01(0.7 + 0.1*biased.SpectralBalance)
	case currentWidth > 0.85:
		p.StereoWidthTarget = 0.75
	default:
		p.StereoWidthTarget = currentWidth
	}
	p.StereoWidthTarget = clamp01(p.StereoWidthTarget + pref.StereoBias*0.05)

	return p
}

func clampRange(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxF(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func absF(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
