package fingerprint

import "math"

// computeVariation fills DynamicRangeVariation, LoudnessVariationStd and
// PeakConsistency from 1-second-frame RMS/peak statistics, answering "how
// much does the dynamics profile change over the track" rather than the
// Dynamics group's single track-wide numbers.
func computeVariation(mono []float64, sr int, fp *Fingerprint) {
	frameLen := sr
	if frameLen <= 0 || len(mono) < frameLen {
		fp.DynamicRangeVariation = 0
		fp.LoudnessVariationStd = 0
		fp.PeakConsistency = 1
		return
	}

	var rmsDb, peakDb, crestDb []float64
	for start := 0; start+frameLen <= len(mono); start += frameLen {
		frame := mono[start : start+frameLen]
		var sumSq, peak float64
		for _, v := range frame {
			sumSq += v * v
			if a := math.Abs(v); a > peak {
				peak = a
			}
		}
		rms := math.Sqrt(sumSq / float64(frameLen))
		rmsDb = append(rmsDb, 20*math.Log10(rms+1e-9))
		peakDb = append(peakDb, 20*math.Log10(peak+1e-9))
		crestDb = append(crestDb, 20*math.Log10((peak+1e-9)/(rms+1e-9)))
	}

	loudnessStd := stddevOf(rmsDb)
	fp.LoudnessVariationStd = clampFinite(loudnessStd, 0, 10)

	crestStd := stddevOf(crestDb)
	fp.DynamicRangeVariation = clampFinite(crestStd/12, 0, 1) // 12dB std treated as maximally variable

	peakStd := stddevOf(peakDb)
	fp.PeakConsistency = clampFinite(1-peakStd/12, 0, 1)
}
