package dsp

import "math"

// applyStereoWidth decomposes interleaved stereo PCM into mid/side,
// rescales the side channel toward targetWidth, and recomposes (spec §4.3
// stage 4). widthTarget and the signal's current width are both expressed
// as side-energy fraction in [0,1].
func applyStereoWidth(stereo []float64, widthTarget float32) {
	frames := len(stereo) / 2
	if frames == 0 {
		return
	}

	var midEnergy, sideEnergy float64
	mid := make([]float64, frames)
	side := make([]float64, frames)
	for i := 0; i < frames; i++ {
		l, r := stereo[2*i], stereo[2*i+1]
		m := (l + r) / 2
		s := (l - r) / 2
		mid[i] = m
		side[i] = s
		midEnergy += m * m
		sideEnergy += s * s
	}

	total := midEnergy + sideEnergy
	if total <= 1e-12 {
		return
	}
	currentWidth := sideEnergy / total
	if currentWidth <= 1e-9 {
		return
	}

	scale := math.Sqrt(float64(widthTarget) / currentWidth)
	// Avoid runaway gain when current width is near zero.
	if scale > 4 {
		scale = 4
	}

	for i := 0; i < frames; i++ {
		s := side[i] * scale
		stereo[2*i] = mid[i] + s
		stereo[2*i+1] = mid[i] - s
	}
}
