package audio

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/matiaszanolli/auralis/core/internal/types"
)

// DecodedSource is a fully-decoded, in-memory PCM buffer that satisfies
// pipeline.PCMSource's random-access contract. Built by decoding a file
// once up front with FFmpegDecoder rather than streaming it, since the
// chunk pipeline needs to seek to arbitrary frame ranges (spec §4.4, §6.1
// "ownership and decoding of the underlying track are external").
type DecodedSource struct {
	sampleRate int
	channels   int
	pcm        types.StereoSamples
}

// DecodeFile decodes path's entire contents into memory at sampleRate/
// channels using FFmpeg (s16le raw PCM to stdout), collecting the full
// stream in memory.
func DecodeFile(ctx context.Context, d *FFmpegDecoder, path string, sampleRate, channels int) (*DecodedSource, error) {
	args := []string{
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", fmt.Sprintf("%d", channels),
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-",
	}

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	defer func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
			cmd.Wait()
		}
	}()

	raw, err := io.ReadAll(stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to read decoded pcm: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	pcm := make(types.StereoSamples, len(raw)/2)
	for i := range pcm {
		lo := int16(raw[2*i]) | int16(raw[2*i+1])<<8
		pcm[i] = float32(lo) / 32768.0
	}

	return &DecodedSource{sampleRate: sampleRate, channels: channels, pcm: pcm}, nil
}

// SampleRate implements pipeline.PCMSource.
func (s *DecodedSource) SampleRate() int { return s.sampleRate }

// Channels implements pipeline.PCMSource.
func (s *DecodedSource) Channels() int { return s.channels }

// TotalFrames implements pipeline.PCMSource.
func (s *DecodedSource) TotalFrames() int64 {
	return int64(len(s.pcm) / s.channels)
}

// ReadFrames implements pipeline.PCMSource, zero-padding any range that
// runs past the end of the decoded buffer (spec §4.4 edge case: the last
// chunk of a track is short).
func (s *DecodedSource) ReadFrames(startFrame, numFrames int64) (types.StereoSamples, error) {
	out := make(types.StereoSamples, numFrames*int64(s.channels))
	start := startFrame * int64(s.channels)
	end := start + numFrames*int64(s.channels)
	if start >= int64(len(s.pcm)) {
		return out, nil
	}
	if end > int64(len(s.pcm)) {
		end = int64(len(s.pcm))
	}
	copy(out, s.pcm[start:end])
	return out, nil
}
