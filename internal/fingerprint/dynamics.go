package fingerprint

import "math"

// kWeight applies a simplified ITU-R BS.1770-4 K-weighting pre-filter: a
// high-shelf stage followed by a high-pass stage, both as one-pole
// approximations tuned for the sample rates this package supports. Exact
// BS.1770 biquad coefficients are derived per sample rate in a full
// loudness-metering library; this pass is sufficient for a relative,
// ranking-stable LUFS estimate used only for fingerprinting and preset
// biasing, never for broadcast compliance.
func kWeight(x []float64, sr int) []float64 {
	out := make([]float64, len(x))

	// High-shelf: boosts above ~1.5kHz, emulating head diffraction.
	const shelfFreq = 1500.0
	shelfCoeff := math.Exp(-2 * math.Pi * shelfFreq / float64(sr))
	var shelfState float64
	for i, v := range x {
		shelfState = v + shelfCoeff*(shelfState-v)
		out[i] = v + 1.5*(v-shelfState)
	}

	// High-pass at ~60Hz to de-emphasize sub-bass rumble per RLB curve.
	const hpFreq = 60.0
	hpCoeff := math.Exp(-2 * math.Pi * hpFreq / float64(sr))
	var hpState, prevIn float64
	for i, v := range out {
		hpState = hpCoeff*(hpState+v-prevIn)
		prevIn = v
		out[i] = hpState
	}
	return out
}

// computeDynamics fills LUFS (integrated K-weighted loudness) and CrestDB
// (peak-to-RMS ratio) from the downmixed mono signal.
func computeDynamics(mono []float64, sr int, fp *Fingerprint) {
	if len(mono) == 0 {
		fp.LUFS = -23
		fp.CrestDB = 14
		return
	}

	weighted := kWeight(mono, sr)
	var sumSq float64
	for _, v := range weighted {
		sumSq += v * v
	}
	meanSq := sumSq / float64(len(weighted))
	lufs := -0.691 + 10*math.Log10(meanSq+1e-12)
	fp.LUFS = clampFinite(lufs, -30, -5)

	var rms, peak float64
	for _, v := range mono {
		rms += v * v
		a := math.Abs(v)
		if a > peak {
			peak = a
		}
	}
	rms = math.Sqrt(rms / float64(len(mono)))
	if rms <= 1e-9 {
		fp.CrestDB = 24
		return
	}
	crest := 20 * math.Log10(peak/rms)
	fp.CrestDB = clampFinite(crest, 8, 24)
}
