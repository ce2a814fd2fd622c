// Package audio adapts external files into the pipeline's PCMSource
// contract. Decoding of compressed audio formats is out of this module's
// scope (spec §1); this package is the thin ffmpeg-backed adapter a host
// application wires in to satisfy that external dependency, the same role
// the teacher's FFmpegDecoder plays for its own player.
package audio

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FileMetadata contains metadata extracted from an audio file
type FileMetadata struct {
	Title    string
	Artist   string
	Album    string
	Duration time.Duration
}

// FFmpegDecoder locates ffmpeg/ffprobe and uses them to probe file
// metadata and to decode full tracks into memory (DecodeFile, source.go).
type FFmpegDecoder struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegDecoder creates a new FFmpeg-based decoder
func NewFFmpegDecoder() (*FFmpegDecoder, error) {
	// Find ffmpeg and ffprobe in PATH
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	return &FFmpegDecoder{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}, nil
}

// Duration returns the duration of an audio file
func (d *FFmpegDecoder) Duration(path string) (time.Duration, error) {
	// Use ffprobe to get duration
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.Command(d.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	durationSec, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return time.Duration(durationSec * float64(time.Second)), nil
}

// Metadata extracts metadata from an audio file using ffprobe
func (d *FFmpegDecoder) Metadata(path string) (*FileMetadata, error) {
	// Use ffprobe to get metadata in JSON format
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	}

	cmd := exec.Command(d.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	// Parse JSON output
	var probeResult struct {
		Format struct {
			Duration string            `json:"duration"`
			Tags     map[string]string `json:"tags"`
		} `json:"format"`
	}

	if err := json.Unmarshal(output, &probeResult); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	meta := &FileMetadata{}

	// Extract tags (case-insensitive lookup)
	tags := probeResult.Format.Tags
	for key, value := range tags {
		switch strings.ToLower(key) {
		case "title":
			meta.Title = value
		case "artist":
			meta.Artist = value
		case "album":
			meta.Album = value
		case "album_artist":
			if meta.Artist == "" {
				meta.Artist = value
			}
		}
	}

	// Parse duration
	if probeResult.Format.Duration != "" {
		if durationSec, err := strconv.ParseFloat(probeResult.Format.Duration, 64); err == nil {
			meta.Duration = time.Duration(durationSec * float64(time.Second))
		}
	}

	// Fallback to filename if no title
	if meta.Title == "" {
		base := filepath.Base(path)
		ext := filepath.Ext(base)
		meta.Title = strings.TrimSuffix(base, ext)
	}

	return meta, nil
}
