// Package sidecar reads and writes the `.25d` fingerprint sidecar file that
// sits next to each audio file (spec §4.9, §6.3).
package sidecar

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/matiaszanolli/auralis/core/internal/fingerprint"
	"github.com/matiaszanolli/auralis/core/internal/params"
	"github.com/matiaszanolli/auralis/core/internal/types"
)

// FormatVersion is the only sidecar schema version this build understands.
// A sidecar whose format_version differs is treated as invalid and
// regenerated (spec §4.9).
const FormatVersion = 1

// Extension is appended to the audio file's path to get the sidecar path.
const Extension = ".25d"

// AudioFile records the audio file this sidecar was generated from, used to
// detect staleness (spec §4.9's checksum/modified_at validity checks).
type AudioFile struct {
	Path           string    `json:"path"`
	SizeBytes      int64     `json:"size_bytes"`
	ModifiedAt     time.Time `json:"modified_at"`
	ChecksumSHA256 string    `json:"checksum_sha256"`
	DurationS      float64   `json:"duration_s"`
	SampleRate     int       `json:"sample_rate"`
	Channels       int       `json:"channels"`
}

// The seven fingerprint groups, laid out as in spec §3.1/§4.1.

type FrequencyGroup struct {
	SubBassPct  float32 `json:"sub_bass_pct"`
	BassPct     float32 `json:"bass_pct"`
	LowMidPct   float32 `json:"low_mid_pct"`
	MidPct      float32 `json:"mid_pct"`
	UpperMidPct float32 `json:"upper_mid_pct"`
	PresencePct float32 `json:"presence_pct"`
	AirPct      float32 `json:"air_pct"`
}

type DynamicsGroup struct {
	LUFS    float32 `json:"lufs"`
	CrestDB float32 `json:"crest_db"`
}

type FrequencyRelationGroup struct {
	BassMidRatioDB float32 `json:"bass_mid_ratio_db"`
}

type TemporalGroup struct {
	TempoBPM         float32 `json:"tempo_bpm"`
	RhythmStability  float32 `json:"rhythm_stability"`
	TransientDensity float32 `json:"transient_density"`
	SilenceRatio     float32 `json:"silence_ratio"`
}

type SpectralGroup struct {
	SpectralCentroid float32 `json:"spectral_centroid"`
	SpectralRolloff  float32 `json:"spectral_rolloff"`
	SpectralFlatness float32 `json:"spectral_flatness"`
}

type HarmonicGroup struct {
	HarmonicRatio  float32 `json:"harmonic_ratio"`
	PitchStability float32 `json:"pitch_stability"`
	ChromaEnergy   float32 `json:"chroma_energy"`
}

type VariationGroup struct {
	DynamicRangeVariation float32 `json:"dynamic_range_variation"`
	LoudnessVariationStd  float32 `json:"loudness_variation_std"`
	PeakConsistency       float32 `json:"peak_consistency"`
}

type StereoGroup struct {
	StereoWidth      float32 `json:"stereo_width"`
	PhaseCorrelation float32 `json:"phase_correlation"`
}

// FingerprintRecord is the on-disk shape of the 25-dimensional fingerprint,
// grouped exactly as spec §3.1 describes it.
type FingerprintRecord struct {
	Version                int                    `json:"version"`
	Frequency              FrequencyGroup         `json:"frequency"`
	Dynamics               DynamicsGroup          `json:"dynamics"`
	FrequencyRelation      FrequencyRelationGroup `json:"frequency_relation"`
	Temporal               TemporalGroup          `json:"temporal"`
	Spectral               SpectralGroup          `json:"spectral"`
	Harmonic               HarmonicGroup          `json:"harmonic"`
	Variation              VariationGroup         `json:"variation"`
	Stereo                 StereoGroup            `json:"stereo"`
	HarmonicAnalysisMethod string                 `json:"harmonic_analysis_method"`
	SamplingIntervalS      float32                `json:"sampling_interval_s,omitempty"`
	Confidence             float32                `json:"confidence"`
}

// ProcessingCache holds already-generated DSP parameters for presets the
// mastering engine has computed before, so a repeat request for the same
// (track, preset) skips the parameter generator (spec §4.9, optional
// section).
type ProcessingCache struct {
	Presets map[types.Preset]params.Parameters `json:"presets"`
}

// Sidecar is the full `<audio>.25d` document (spec §4.9).
type Sidecar struct {
	FormatVersion   int                    `json:"format_version"`
	AudioFile       AudioFile              `json:"audio_file"`
	Fingerprint     FingerprintRecord      `json:"fingerprint"`
	ProcessingCache *ProcessingCache       `json:"processing_cache,omitempty"`
	Metadata        *types.TrackMetadata   `json:"metadata,omitempty"`
}

// PathFor returns the sidecar path for a given audio file path.
func PathFor(audioPath string) string {
	return audioPath + Extension
}

// FromFingerprint converts the in-memory fingerprint to its on-disk grouped
// shape.
func FromFingerprint(fp fingerprint.Fingerprint) FingerprintRecord {
	return FingerprintRecord{
		Version: FormatVersion,
		Frequency: FrequencyGroup{
			SubBassPct:  fp.SubBassPct,
			BassPct:     fp.BassPct,
			LowMidPct:   fp.LowMidPct,
			MidPct:      fp.MidPct,
			UpperMidPct: fp.UpperMidPct,
			PresencePct: fp.PresencePct,
			AirPct:      fp.AirPct,
		},
		Dynamics:          DynamicsGroup{LUFS: fp.LUFS, CrestDB: fp.CrestDB},
		FrequencyRelation: FrequencyRelationGroup{BassMidRatioDB: fp.BassMidRatioDB},
		Temporal: TemporalGroup{
			TempoBPM:         fp.TempoBPM,
			RhythmStability:  fp.RhythmStability,
			TransientDensity: fp.TransientDensity,
			SilenceRatio:     fp.SilenceRatio,
		},
		Spectral: SpectralGroup{
			SpectralCentroid: fp.SpectralCentroid,
			SpectralRolloff:  fp.SpectralRolloff,
			SpectralFlatness: fp.SpectralFlatness,
		},
		Harmonic: HarmonicGroup{
			HarmonicRatio:  fp.HarmonicRatio,
			PitchStability: fp.PitchStability,
			ChromaEnergy:   fp.ChromaEnergy,
		},
		Variation: VariationGroup{
			DynamicRangeVariation: fp.DynamicRangeVariation,
			LoudnessVariationStd:  fp.LoudnessVariationStd,
			PeakConsistency:       fp.PeakConsistency,
		},
		Stereo: StereoGroup{
			StereoWidth:      fp.StereoWidth,
			PhaseCorrelation: fp.PhaseCorrelation,
		},
		HarmonicAnalysisMethod: fp.HarmonicAnalysisMethod,
		SamplingIntervalS:      fp.SamplingIntervalS,
		Confidence:             fp.Confidence,
	}
}

// ToFingerprint converts the on-disk grouped shape back to the in-memory
// fingerprint used by the rest of the pipeline.
func (r FingerprintRecord) ToFingerprint() fingerprint.Fingerprint {
	return fingerprint.Fingerprint{
		SubBassPct:  r.Frequency.SubBassPct,
		BassPct:     r.Frequency.BassPct,
		LowMidPct:   r.Frequency.LowMidPct,
		MidPct:      r.Frequency.MidPct,
		UpperMidPct: r.Frequency.UpperMidPct,
		PresencePct: r.Frequency.PresencePct,
		AirPct:      r.Frequency.AirPct,

		LUFS:    r.Dynamics.LUFS,
		CrestDB: r.Dynamics.CrestDB,

		BassMidRatioDB: r.FrequencyRelation.BassMidRatioDB,

		TempoBPM:         r.Temporal.TempoBPM,
		RhythmStability:  r.Temporal.RhythmStability,
		TransientDensity: r.Temporal.TransientDensity,
		SilenceRatio:     r.Temporal.SilenceRatio,

		SpectralCentroid: r.Spectral.SpectralCentroid,
		SpectralRolloff:  r.Spectral.SpectralRolloff,
		SpectralFlatness: r.Spectral.SpectralFlatness,

		HarmonicRatio:  r.Harmonic.HarmonicRatio,
		PitchStability: r.Harmonic.PitchStability,
		ChromaEnergy:   r.Harmonic.ChromaEnergy,

		DynamicRangeVariation: r.Variation.DynamicRangeVariation,
		LoudnessVariationStd:  r.Variation.LoudnessVariationStd,
		PeakConsistency:       r.Variation.PeakConsistency,

		StereoWidth:      r.Stereo.StereoWidth,
		PhaseCorrelation: r.Stereo.PhaseCorrelation,

		HarmonicAnalysisMethod: r.HarmonicAnalysisMethod,
		SamplingIntervalS:      r.SamplingIntervalS,
		Confidence:             r.Confidence,
	}
}

// ChecksumFile computes the SHA-256 checksum of the file at path, hex
// encoded. Full-file hashing, not the teacher's sampled head/tail strategy —
// the sidecar's staleness check needs exact detection, not a fast heuristic.
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("sidecar: open for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("sidecar: hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// BuildAudioFile stats path and fills in an AudioFile record, computing the
// checksum. durationS/sampleRate/channels come from the decoder, which this
// package does not own.
func BuildAudioFile(path string, durationS float64, sampleRate, channels int) (AudioFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return AudioFile{}, fmt.Errorf("sidecar: stat audio file: %w", err)
	}
	checksum, err := ChecksumFile(path)
	if err != nil {
		return AudioFile{}, err
	}
	return AudioFile{
		Path:           path,
		SizeBytes:      info.Size(),
		ModifiedAt:     info.ModTime().UTC(),
		ChecksumSHA256: checksum,
		DurationS:      durationS,
		SampleRate:     sampleRate,
		Channels:       channels,
	}, nil
}

// Load reads and parses the sidecar at sidecarPath. It does not validate
// freshness against the audio file; call Validate for that.
func Load(sidecarPath string) (*Sidecar, error) {
	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		return nil, fmt.Errorf("sidecar: read: %w", err)
	}
	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("sidecar: parse: %w", err)
	}
	return &sc, nil
}

// Save writes sc to sidecarPath atomically: write to a temp file in the same
// directory, fsync, then rename over the destination (spec §4.9/§6.3).
func Save(sidecarPath string, sc *Sidecar) error {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("sidecar: marshal: %w", err)
	}
	// The spec calls for LF line endings; json.MarshalIndent already emits
	// bare \n, so no translation is needed on any platform Go targets here.

	tmpPath := sidecarPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("sidecar: create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sidecar: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sidecar: fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("sidecar: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, sidecarPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("sidecar: rename temp file: %w", err)
	}
	return nil
}

// ErrInvalid is wrapped by the specific reason Validate returns.
var ErrInvalid = errors.New("sidecar: invalid")

// Validate runs the checks spec §4.9 requires before trusting an
// already-loaded sidecar: its format_version is supported, its recorded
// modified_at matches the audio file on disk, its recorded checksum
// matches, and every fingerprint field is finite. That the sidecar file
// exists and parses is checked by Load (LoadValid runs both). A non-nil
// error means the sidecar must be deleted and regenerated.
func Validate(sc *Sidecar, audioPath string) error {
	if sc.FormatVersion != FormatVersion {
		return fmt.Errorf("%w: format_version %d unsupported", ErrInvalid, sc.FormatVersion)
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		return fmt.Errorf("%w: audio file missing: %v", ErrInvalid, err)
	}
	if !info.ModTime().UTC().Equal(sc.AudioFile.ModifiedAt.UTC()) {
		return fmt.Errorf("%w: modified_at mismatch", ErrInvalid)
	}

	checksum, err := ChecksumFile(audioPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if checksum != sc.AudioFile.ChecksumSHA256 {
		return fmt.Errorf("%w: checksum mismatch", ErrInvalid)
	}

	if err := validateFingerprintFields(sc.Fingerprint); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return nil
}

// validateFingerprintFields checks every numeric fingerprint field is
// present (non-zero-struct would be too strict; finiteness is what the spec
// actually requires) and finite.
func validateFingerprintFields(r FingerprintRecord) error {
	fields := []float32{
		r.Frequency.SubBassPct, r.Frequency.BassPct, r.Frequency.LowMidPct,
		r.Frequency.MidPct, r.Frequency.UpperMidPct, r.Frequency.PresencePct, r.Frequency.AirPct,
		r.Dynamics.LUFS, r.Dynamics.CrestDB,
		r.FrequencyRelation.BassMidRatioDB,
		r.Temporal.TempoBPM, r.Temporal.RhythmStability, r.Temporal.TransientDensity, r.Temporal.SilenceRatio,
		r.Spectral.SpectralCentroid, r.Spectral.SpectralRolloff, r.Spectral.SpectralFlatness,
		r.Harmonic.HarmonicRatio, r.Harmonic.PitchStability, r.Harmonic.ChromaEnergy,
		r.Variation.DynamicRangeVariation, r.Variation.LoudnessVariationStd, r.Variation.PeakConsistency,
		r.Stereo.StereoWidth, r.Stereo.PhaseCorrelation,
	}
	for i, v := range fields {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("fingerprint field %d not finite", i)
		}
	}
	return nil
}

// LoadValid loads the sidecar at PathFor(audioPath) and validates it in one
// step. A missing file or any Validate failure returns a wrapped ErrInvalid
// (missing-file case wraps os.ErrNotExist instead) so callers can treat both
// uniformly as "must regenerate."
func LoadValid(audioPath string) (*Sidecar, error) {
	sidecarPath := PathFor(audioPath)
	sc, err := Load(sidecarPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := Validate(sc, audioPath); err != nil {
		return nil, err
	}
	return sc, nil
}
