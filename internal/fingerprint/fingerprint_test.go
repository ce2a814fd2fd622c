package fingerprint

import (
	"math"
	"testing"
)

func TestFingerprintValidateRejectsBadPercentageSum(t *testing.T) {
	fp := validFingerprint()
	fp.SubBassPct = 50 // sum now well above 101
	if err := fp.Validate(); err == nil {
		t.Error("expected error for percentage sum outside 100±1, got nil")
	}
}

func TestFingerprintValidateRejectsOutOfRange(t *testing.T) {
	fp := validFingerprint()
	fp.LUFS = 10 // outside -30..-5
	if err := fp.Validate(); err == nil {
		t.Error("expected error for out-of-range LUFS, got nil")
	}
}

func TestFingerprintValidateAcceptsValid(t *testing.T) {
	fp := validFingerprint()
	if err := fp.Validate(); err != nil {
		t.Errorf("expected valid fingerprint to pass, got %v", err)
	}
}

func validFingerprint() Fingerprint {
	return Fingerprint{
		SubBassPct: 10, BassPct: 15, LowMidPct: 15, MidPct: 30, UpperMidPct: 15, PresencePct: 10, AirPct: 5,
		LUFS: -14, CrestDB: 14,
		BassMidRatioDB: 2,
		TempoBPM:       120, RhythmStability: 0.7, TransientDensity: 0.3, SilenceRatio: 0.05,
		SpectralCentroid: 0.3, SpectralRolloff: 0.6, SpectralFlatness: 0.2,
		HarmonicRatio: 0.6, PitchStability: 0.5, ChromaEnergy: 0.4,
		DynamicRangeVariation: 0.3, LoudnessVariationStd: 2, PeakConsistency: 0.8,
		StereoWidth: 0.3, PhaseCorrelation: 0.9,
		HarmonicAnalysisMethod: "full",
		Confidence:             1,
	}
}

func TestAnalyzeRejectsUnsupportedSampleRate(t *testing.T) {
	a := NewAnalyzer()
	pcm := make([]float32, 2*44100*6)
	_, err := a.Analyze(pcm, 2, 11025, FullStrategy())
	var rateErr *InvalidSampleRateError
	if err == nil {
		t.Fatal("expected error for unsupported sample rate")
	}
	if !errorsAs(err, &rateErr) {
		t.Errorf("expected *InvalidSampleRateError, got %T: %v", err, err)
	}
}

func TestAnalyzeRejectsShortAudio(t *testing.T) {
	a := NewAnalyzer()
	pcm := make([]float32, 2*44100*2) // 2s of silence
	_, err := a.Analyze(pcm, 2, 44100, FullStrategy())
	if err != ErrShortAudio {
		t.Errorf("expected ErrShortAudio, got %v", err)
	}
}

func TestAnalyzeSineWaveProducesValidFingerprint(t *testing.T) {
	const sr = 44100
	const seconds = 6
	pcm := make([]float32, 2*sr*seconds)
	for i := 0; i < sr*seconds; i++ {
		v := float32(0.3 * math.Sin(2*math.Pi*440*float64(i)/float64(sr)))
		pcm[2*i] = v
		pcm[2*i+1] = v
	}

	a := NewAnalyzer()
	fp, err := a.Analyze(pcm, 2, sr, FullStrategy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := fp.Validate(); err != nil {
		t.Errorf("fingerprint of a clean sine wave should validate: %v", err)
	}
	if fp.HarmonicAnalysisMethod != "full" {
		t.Errorf("expected full method, got %q", fp.HarmonicAnalysisMethod)
	}
	// A pure identical-channel sine wave is fully correlated and has no width.
	if fp.PhaseCorrelation < 0.9 {
		t.Errorf("expected near-1 phase correlation for identical channels, got %v", fp.PhaseCorrelation)
	}
	if fp.StereoWidth > 0.1 {
		t.Errorf("expected near-0 stereo width for identical channels, got %v", fp.StereoWidth)
	}
}

func TestAnalyzeSampledStrategySetsMetadata(t *testing.T) {
	const sr = 44100
	const seconds = 10
	pcm := make([]float32, 2*sr*seconds)
	for i := 0; i < sr*seconds; i++ {
		v := float32(0.2 * math.Sin(2*math.Pi*220*float64(i)/float64(sr)))
		pcm[2*i] = v
		pcm[2*i+1] = v
	}

	a := NewAnalyzer()
	fp, err := a.Analyze(pcm, 2, sr, SampledStrategy(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fp.HarmonicAnalysisMethod != "sampled" {
		t.Errorf("expected sampled method, got %q", fp.HarmonicAnalysisMethod)
	}
	if fp.SamplingIntervalS != 2 {
		t.Errorf("expected sampling interval 2, got %v", fp.SamplingIntervalS)
	}
	if fp.Confidence <= 0 || fp.Confidence > 1 {
		t.Errorf("expected confidence in (0,1], got %v", fp.Confidence)
	}
}

func TestFrequencyGroupSumsToHundred(t *testing.T) {
	const sr = 44100
	const seconds = 6
	pcm := make([]float32, 2*sr*seconds)
	for i := 0; i < sr*seconds; i++ {
		v := float32(0.25 * math.Sin(2*math.Pi*1000*float64(i)/float64(sr)))
		pcm[2*i] = v
		pcm[2*i+1] = v
	}

	a := NewAnalyzer()
	fp, err := a.Analyze(pcm, 2, sr, FullStrategy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sum := fp.SubBassPct + fp.BassPct + fp.LowMidPct + fp.MidPct + fp.UpperMidPct + fp.PresencePct + fp.AirPct
	if math.Abs(float64(sum)-100) > 1 {
		t.Errorf("frequency group percentages sum to %v, want 100±1", sum)
	}
}

// errorsAs is a tiny local wrapper so the test doesn't need to import errors
// just for As, matching the teacher's minimal-import style.
func errorsAs(err error, target **InvalidSampleRateError) bool {
	if e, ok := err.(*InvalidSampleRateError); ok {
		*target = e
		return true
	}
	return false
}
