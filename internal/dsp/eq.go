package dsp

import "github.com/matiaszanolli/auralis/core/internal/params"

// barkCenters are approximate center frequencies (Hz) of the 26 critical
// bands per Zwicker's Bark scale, used to build the psychoacoustic EQ
// cascade (spec §4.3 stage 2).
var barkCenters = [26]float64{
	50, 150, 250, 350, 450, 570, 700, 840, 1000, 1170,
	1370, 1600, 1850, 2150, 2500, 2900, 3400, 4000, 4800, 5800,
	7000, 8500, 10500, 13500, 17000, 20000,
}

// EQ is a cascade of 26 critical-band biquads, interpolating gain from the
// fixed 5-point eq_curve onto each band's center frequency.
type EQ struct {
	bands [26]Biquad
	blend float64
	sr    float64
}

// NewEQ builds an EQ cascade from the 5-point curve and blend factor.
func NewEQ(curve [5]params.EQBand, blend float32, sr int) *EQ {
	e := &EQ{blend: float64(blend), sr: float64(sr)}
	for i, freq := range barkCenters {
		gain := interpolateGain(curve, freq)
		q := 1.4 // moderate bandwidth, avoids audible ringing across adjacent Bark bands
		e.bands[i] = NewPeaking(freq, float64(sr), q, gain)
	}
	return e
}

// interpolateGain linearly interpolates the 5-point curve's dB gain at an
// arbitrary frequency, clamping to the endpoints outside the curve's span.
func interpolateGain(curve [5]params.EQBand, freq float64) float64 {
	if freq <= float64(curve[0].FreqHz) {
		return float64(curve[0].GainDB)
	}
	if freq >= float64(curve[len(curve)-1].FreqHz) {
		return float64(curve[len(curve)-1].GainDB)
	}
	for i := 0; i < len(curve)-1; i++ {
		lo, hi := curve[i], curve[i+1]
		if freq >= float64(lo.FreqHz) && freq <= float64(hi.FreqHz) {
			span := float64(hi.FreqHz - lo.FreqHz)
			if span <= 0 {
				return float64(lo.GainDB)
			}
			t := (freq - float64(lo.FreqHz)) / span
			return float64(lo.GainDB) + t*float64(hi.GainDB-lo.GainDB)
		}
	}
	return 0
}

// ProcessMono runs the full cascade over a mono buffer in place, blending
// the filtered signal with the dry signal by e.blend.
func (e *EQ) ProcessMono(buf []float64) {
	for i, x := range buf {
		wet := x
		for b := range e.bands {
			wet = e.bands[b].Process(wet)
		}
		buf[i] = x*(1-e.blend) + wet*e.blend
	}
}

// Reset clears all band filter states (chunk-boundary reset per spec §4.3).
func (e *EQ) Reset() {
	for i := range e.bands {
		e.bands[i].Reset()
	}
}
