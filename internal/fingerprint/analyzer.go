package fingerprint

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

const (
	// stftWindow and stftHop are fixed by spec §4.1.
	stftWindow = 4096
	stftHop    = 1024

	minAnalyzableSeconds = 5.0
)

// band boundaries in Hz for the seven frequency-group bins (spec §4.1).
var bandEdgesHz = [8]float64{0, 80, 250, 500, 2000, 4000, 8000, 20000}

// Analyzer extracts a 25-D Fingerprint from decoded PCM. It accumulates
// per-frame statistics across a full STFT pass, then reduces them into the
// seven fingerprint groups — the same accumulate-then-reduce shape the
// teacher's FeatureExtractor uses for MFCC/instrument features.
type Analyzer struct {
	mu  sync.Mutex
	fft *fourier.FFT
	win []float64
}

// NewAnalyzer creates a reusable fingerprint analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		fft: fourier.NewFFT(stftWindow),
		win: window.Hann(make([]float64, stftWindow)),
	}
}

// Strategy selects how the harmonic group is computed (spec §4.1).
type Strategy struct {
	Sampled      bool
	IntervalS    float32 // default 20s when Sampled
	CorrelationTarget float32 // default 0.85, parameterized per spec §9 Open Question
}

// FullStrategy requests full-track harmonic analysis.
func FullStrategy() Strategy { return Strategy{} }

// SampledStrategy requests the sampling-strategy acceleration with the given
// interval (defaults to 20s and a 0.85 correlation target if zero).
func SampledStrategy(intervalS float32) Strategy {
	if intervalS <= 0 {
		intervalS = 20
	}
	return Strategy{Sampled: true, IntervalS: intervalS, CorrelationTarget: 0.85}
}

// Analyze computes the 25-D fingerprint of interleaved stereo PCM at the
// given sample rate (spec §4.1's analyze contract).
func (a *Analyzer) Analyze(pcm []float32, channels, sr int, strategy Strategy) (Fingerprint, error) {
	if !supportedSampleRates[sr] {
		return Fingerprint{}, &InvalidSampleRateError{SampleRate: sr}
	}

	mono := toMono(pcm, channels)
	durationS := float64(len(mono)) / float64(sr)
	if durationS < minAnalyzableSeconds {
		return Fingerprint{}, ErrShortAudio
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	acc := newStftAccumulator(sr)
	a.runSTFT(mono, acc)

	fp := Fingerprint{Confidence: 1.0}
	acc.reduceFrequencyGroup(&fp)
	acc.reduceSpectralGroup(&fp)

	computeDynamics(mono, sr, &fp)
	computeTemporal(mono, sr, acc, &fp)
	computeVariation(mono, sr, &fp)

	if channels >= 2 {
		computeStereo(pcm, &fp)
	} else {
		fp.StereoWidth = 0
		fp.PhaseCorrelation = 1
	}

	if strategy.Sampled {
		computeHarmonicSampled(mono, sr, strategy, &fp)
		fp.HarmonicAnalysisMethod = "sampled"
		fp.SamplingIntervalS = strategy.IntervalS
	} else {
		computeHarmonicFull(mono, sr, &fp)
		fp.HarmonicAnalysisMethod = "full"
	}

	if err := fp.Validate(); err != nil {
		// An analyzer that produced an out-of-spec fingerprint is a bug, not
		// a degraded-input case. The only degraded-input handling is in
		// computeHarmonicSampled, which lowers Confidence when its windows
		// disagree; the harmonic group is never zeroed.
		panic(err)
	}

	return fp, nil
}

// toMono downmixes/upmixes to a single channel for analysis stages that do
// not need stereo information (everything but the stereo group itself).
// Mono input is passed through; >2 channel input is treated as already
// downmixed to stereo at the boundary (spec §6.1), so only 1 or 2 is seen
// here.
func toMono(pcm []float32, channels int) []float64 {
	if channels <= 1 {
		out := make([]float64, len(pcm))
		for i, v := range pcm {
			out[i] = float64(v)
		}
		return out
	}
	frames := len(pcm) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(pcm[base+c])
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// stftAccumulator collects per-frame magnitude spectra into the bins needed
// by the frequency and spectral fingerprint groups.
type stftAccumulator struct {
	sr int

	bandEnergy   [7]float64
	totalEnergy  float64

	centroidAccum []float64
	rolloffAccum  []float64
	flatnessAccum []float64
	fluxAccum     []float64

	prevSpectrum []float64
	frameCount   int
}

func newStftAccumulator(sr int) *stftAccumulator {
	return &stftAccumulator{sr: sr, prevSpectrum: make([]float64, stftWindow/2)}
}

func (a *Analyzer) runSTFT(mono []float64, acc *stftAccumulator) {
	n := len(mono)
	for start := 0; start+stftWindow <= n; start += stftHop {
		frame := make([]float64, stftWindow)
		copy(frame, mono[start:start+stftWindow])
		for i := range frame {
			frame[i] *= a.win[i]
		}

		coeffs := a.fft.Coefficients(nil, frame)
		spectrum := make([]float64, stftWindow/2)
		for i := range spectrum {
			re, im := real(coeffs[i]), imag(coeffs[i])
			spectrum[i] = math.Sqrt(re*re + im*im)
		}

		acc.addFrame(spectrum)
	}
	if acc.frameCount == 0 {
		// Track shorter than one STFT window but longer than the 5s floor:
		// analyze the single short frame we have, zero-padded.
		frame := make([]float64, stftWindow)
		copy(frame, mono)
		for i := range frame {
			frame[i] *= a.win[i]
		}
		coeffs := a.fft.Coefficients(nil, frame)
		spectrum := make([]float64, stftWindow/2)
		for i := range spectrum {
			re, im := real(coeffs[i]), imag(coeffs[i])
			spectrum[i] = math.Sqrt(re*re + im*im)
		}
		acc.addFrame(spectrum)
	}
}

func (acc *stftAccumulator) addFrame(spectrum []float64) {
	freqPerBin := float64(acc.sr) / float64(stftWindow)

	var frameEnergy float64
	var bandEnergy [7]float64
	for i, mag := range spectrum {
		freq := float64(i) * freqPerBin
		e := mag * mag
		frameEnergy += e
		bandEnergy[bandIndex(freq)] += e
	}
	for b := range acc.bandEnergy {
		acc.bandEnergy[b] += bandEnergy[b]
	}
	acc.totalEnergy += frameEnergy

	acc.centroidAccum = append(acc.centroidAccum, spectralCentroid(spectrum, freqPerBin))
	acc.rolloffAccum = append(acc.rolloffAccum, spectralRolloff(spectrum, freqPerBin, 0.85))
	acc.flatnessAccum = append(acc.flatnessAccum, spectralFlatness(spectrum))
	acc.fluxAccum = append(acc.fluxAccum, spectralFlux(spectrum, acc.prevSpectrum))

	copy(acc.prevSpectrum, spectrum)
	acc.frameCount++
}

func bandIndex(freq float64) int {
	for i := 0; i < 7; i++ {
		if freq >= bandEdgesHz[i] && freq < bandEdgesHz[i+1] {
			return i
		}
	}
	return 6
}

func (acc *stftAccumulator) reduceFrequencyGroup(fp *Fingerprint) {
	if acc.totalEnergy <= 0 {
		fp.SubBassPct, fp.BassPct, fp.LowMidPct = 0, 0, 0
		fp.MidPct, fp.UpperMidPct, fp.PresencePct, fp.AirPct = 100, 0, 0, 0
		fp.BassMidRatioDB = 0
		return
	}
	pct := make([]float64, 7)
	for i, e := range acc.bandEnergy {
		pct[i] = 100 * e / acc.totalEnergy
	}
	fp.SubBassPct = clampFinite(pct[0], 0, 100)
	fp.BassPct = clampFinite(pct[1], 0, 100)
	fp.LowMidPct = clampFinite(pct[2], 0, 100)
	fp.MidPct = clampFinite(pct[3], 0, 100)
	fp.UpperMidPct = clampFinite(pct[4], 0, 100)
	fp.PresencePct = clampFinite(pct[5], 0, 100)
	fp.AirPct = clampFinite(pct[6], 0, 100)

	// Renormalize so the seven percentages sum to exactly 100 before the
	// ±1 invariant check (rounding in clampFinite can otherwise drift it).
	sum := fp.SubBassPct + fp.BassPct + fp.LowMidPct + fp.MidPct + fp.UpperMidPct + fp.PresencePct + fp.AirPct
	if sum > 0 {
		scale := 100 / sum
		fp.SubBassPct *= scale
		fp.BassPct *= scale
		fp.LowMidPct *= scale
		fp.MidPct *= scale
		fp.UpperMidPct *= scale
		fp.PresencePct *= scale
		fp.AirPct *= scale
	}

	eBass := acc.bandEnergy[1]
	eMid := acc.bandEnergy[3]
	if eMid <= 0 {
		eMid = 1e-12
	}
	if eBass <= 0 {
		eBass = 1e-12
	}
	fp.BassMidRatioDB = clampFinite(10*math.Log10(eBass/eMid), -5, 10)
}

func (acc *stftAccumulator) reduceSpectralGroup(fp *Fingerprint) {
	nyquist := float64(acc.sr) / 2
	fp.SpectralCentroid = clampFinite(mean(acc.centroidAccum)/nyquist, 0, 1)
	fp.SpectralRolloff = clampFinite(mean(acc.rolloffAccum)/nyquist, 0, 1)
	fp.SpectralFlatness = clampFinite(mean(acc.flatnessAccum), 0, 1)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func spectralCentroid(spectrum []float64, freqPerBin float64) float64 {
	var weighted, sum float64
	for i, mag := range spectrum {
		weighted += float64(i) * freqPerBin * mag
		sum += mag
	}
	if sum == 0 {
		return 0
	}
	return weighted / sum
}

func spectralRolloff(spectrum []float64, freqPerBin, pct float64) float64 {
	var total float64
	for _, mag := range spectrum {
		total += mag * mag
	}
	threshold := total * pct
	var cum float64
	for i, mag := range spectrum {
		cum += mag * mag
		if cum >= threshold {
			return float64(i) * freqPerBin
		}
	}
	return float64(len(spectrum)) * freqPerBin
}

func spectralFlatness(spectrum []float64) float64 {
	var logSum, sum float64
	n := 0
	for _, mag := range spectrum {
		if mag <= 1e-12 {
			continue
		}
		logSum += math.Log(mag)
		sum += mag
		n++
	}
	if n == 0 || sum == 0 {
		return 0
	}
	geoMean := math.Exp(logSum / float64(n))
	arithMean := sum / float64(n)
	if arithMean == 0 {
		return 0
	}
	return geoMean / arithMean
}

func spectralFlux(spectrum, prev []float64) float64 {
	var flux float64
	for i := 0; i < len(spectrum) && i < len(prev); i++ {
		d := spectrum[i] - prev[i]
		if d > 0 {
			flux += d * d
		}
	}
	return math.Sqrt(flux)
}
