package fingerprint

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// computeStereo fills StereoWidth and PhaseCorrelation from interleaved
// stereo PCM, using mid/side energy ratio for width and the Pearson
// correlation between channels for phase (spec §4.1, stereo group).
func computeStereo(pcm []float32, fp *Fingerprint) {
	frames := len(pcm) / 2
	if frames == 0 {
		fp.StereoWidth = 0
		fp.PhaseCorrelation = 1
		return
	}

	left := make([]float64, frames)
	right := make([]float64, frames)
	var midEnergy, sideEnergy float64
	for i := 0; i < frames; i++ {
		l := float64(pcm[2*i])
		r := float64(pcm[2*i+1])
		left[i] = l
		right[i] = r

		mid := (l + r) / 2
		side := (l - r) / 2
		midEnergy += mid * mid
		sideEnergy += side * side
	}

	total := midEnergy + sideEnergy
	if total <= 1e-12 {
		fp.StereoWidth = 0
		fp.PhaseCorrelation = 1
		return
	}
	fp.StereoWidth = clampFinite(sideEnergy/total, 0, 1)

	corr := stat.Correlation(left, right, nil)
	if math.IsNaN(corr) {
		corr = 1
	}
	fp.PhaseCorrelation = clampFinite(corr, -1, 1)
}
