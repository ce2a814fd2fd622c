package dsp

import "math"

// measureLUFSApprox is a lightweight, chunk-scoped loudness estimate: a
// single high-pass pre-filter (RLB-like) followed by an ungated mean square.
// It trades BS.1770 precision for a cheap, stable gain-staging reference —
// the fingerprint analyzer's own LUFS measurement (full K-weighting) is
// reserved for the track-level descriptor, not the per-chunk gain stage.
func measureLUFSApprox(mono []float64, sr int) float64 {
	if len(mono) == 0 {
		return -70
	}
	const hpFreq = 60.0
	coeff := math.Exp(-2 * math.Pi * hpFreq / float64(sr))
	var state, prev, sumSq float64
	for _, v := range mono {
		state = coeff * (state + v - prev)
		prev = v
		sumSq += state * state
	}
	meanSq := sumSq / float64(len(mono))
	return -0.691 + 10*math.Log10(meanSq+1e-12)
}

// applyLoudnessGain scales buf so its measured loudness moves toward
// targetLUFS, a single static gain stage with no look-ahead (spec §4.3
// stage 1).
func applyLoudnessGain(buf []float64, sr int, targetLUFS float32) {
	current := measureLUFSApprox(buf, sr)
	gainDB := float64(targetLUFS) - current
	gain := math.Pow(10, gainDB/20)
	for i := range buf {
		buf[i] *= gain
	}
}
