package dsp

import "math"

// Limiter is a look-ahead peak limiter: each frame's gain is computed from
// the largest sample peak in the look-ahead window starting at that frame,
// so gain reduction begins before the peak arrives; the signal itself is
// not delayed (spec §4.3 stage 5). Peaks are measured on the samples only;
// inter-sample (true) peaks are not estimated.
type Limiter struct {
	ceilingLin   float64
	lookahead    int
	releaseCoeff float64
	gainState    float64
}

// NewLimiter builds a limiter targeting ceilingDB with the given
// look-ahead window in samples.
func NewLimiter(ceilingDB float32, lookaheadSamples int, sr int) *Limiter {
	const releaseMS = 50.0
	return &Limiter{
		ceilingLin:   math.Pow(10, float64(ceilingDB)/20),
		lookahead:    lookaheadSamples,
		releaseCoeff: math.Exp(-1 / (releaseMS / 1000 * float64(sr))),
		gainState:    1,
	}
}

// ProcessStereo applies the limiter to interleaved stereo PCM in place.
// Both channels share a single gain envelope derived from whichever
// channel is louder at each frame, preserving the stereo image.
func (l *Limiter) ProcessStereo(stereo []float64) {
	frames := len(stereo) / 2
	if frames == 0 {
		return
	}

	peakAhead := make([]float64, frames)
	for i := 0; i < frames; i++ {
		end := i + l.lookahead
		if end > frames {
			end = frames
		}
		var maxAbs float64
		for j := i; j < end; j++ {
			if a := math.Abs(stereo[2*j]); a > maxAbs {
				maxAbs = a
			}
			if a := math.Abs(stereo[2*j+1]); a > maxAbs {
				maxAbs = a
			}
		}
		peakAhead[i] = maxAbs
	}

	gain := l.gainState
	for i := 0; i < frames; i++ {
		desired := 1.0
		if peakAhead[i] > l.ceilingLin && peakAhead[i] > 0 {
			desired = l.ceilingLin / peakAhead[i]
		}
		if desired < gain {
			gain = desired // instant attack: never let a look-ahead peak through
		} else {
			gain = l.releaseCoeff*gain + (1-l.releaseCoeff)*desired
		}
		stereo[2*i] *= gain
		stereo[2*i+1] *= gain
	}
	l.gainState = gain
}

// Reset clears the release envelope state (chunk-boundary reset).
func (l *Limiter) Reset() {
	l.gainState = 1
}
