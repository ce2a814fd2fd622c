package pipeline

import (
	"errors"
	"math"
	"testing"

	"github.com/matiaszanolli/auralis/core/internal/params"
	"github.com/matiaszanolli/auralis/core/internal/types"
)

// memSource is an in-memory PCMSource backed by a sine wave, used to drive
// pipeline tests without a real decoder.
type memSource struct {
	sr     int
	pcm    types.StereoSamples
	failAt map[int64]bool
}

func newMemSource(sr, seconds int, freq float64) *memSource {
	n := sr * seconds
	pcm := make(types.StereoSamples, n*2)
	for i := 0; i < n; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sr)))
		pcm[2*i] = v
		pcm[2*i+1] = v
	}
	return &memSource{sr: sr, pcm: pcm}
}

func (m *memSource) SampleRate() int      { return m.sr }
func (m *memSource) Channels() int        { return 2 }
func (m *memSource) TotalFrames() int64   { return int64(m.pcm.Frames()) }

func (m *memSource) ReadFrames(start, n int64) (types.StereoSamples, error) {
	if m.failAt != nil && m.failAt[start] {
		return nil, errors.New("simulated decode error")
	}
	end := start + n
	if end > int64(m.pcm.Frames()) {
		end = int64(m.pcm.Frames())
	}
	if start >= end {
		return types.StereoSamples{}, nil
	}
	return m.pcm[start*2 : end*2], nil
}

func neutralParams() params.Parameters {
	return params.Parameters{
		TargetLUFS: -14, PeakTargetDB: -1,
		EQCurve: [5]params.EQBand{
			{FreqHz: 100}, {FreqHz: 500}, {FreqHz: 2000}, {FreqHz: 6000}, {FreqHz: 12000},
		},
		EQBlend:           0.5,
		Limiter:           params.Limiter{CeilingDB: -1, LookaheadMS: 5},
		StereoWidthTarget: 0.5,
	}
}

func TestShortTrackProducesSingleChunk(t *testing.T) {
	src := newMemSource(44100, 20, 440) // 20s < 30-1
	p := New(src, neutralParams())

	if got := p.ChunkCount(); got != 1 {
		t.Errorf("expected 1 chunk for a 20s track, got %d", got)
	}
}

func TestLongTrackSplitsIntoMultipleChunks(t *testing.T) {
	src := newMemSource(44100, 95, 440) // spans 4 x 30s chunks
	p := New(src, neutralParams())

	count := p.ChunkCount()
	if count < 3 {
		t.Errorf("expected at least 3 chunks for a 95s track, got %d", count)
	}

	for i := 0; i < count; i++ {
		c, err := p.Chunk(i)
		if err != nil {
			t.Fatalf("chunk %d: unexpected error: %v", i, err)
		}
		if c.Index != i {
			t.Errorf("chunk %d: got index %d", i, c.Index)
		}
	}
}

func TestFirstChunkHasNoFadeIn(t *testing.T) {
	src := newMemSource(44100, 95, 440)
	p := New(src, neutralParams())

	c, err := p.Chunk(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsFirst {
		t.Error("expected chunk 0 to be marked IsFirst")
	}
}

func TestLastChunkHasNoFadeOut(t *testing.T) {
	src := newMemSource(44100, 95, 440)
	p := New(src, neutralParams())
	last := p.ChunkCount() - 1

	c, err := p.Chunk(last)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsLast {
		t.Errorf("expected chunk %d to be marked IsLast", last)
	}
}

func TestChunkFailsAfterSingleRetry(t *testing.T) {
	src := newMemSource(44100, 95, 440)
	src.failAt = map[int64]bool{}
	// Force every read for chunk 1's padded start to fail.
	startFrame := int64((1*chunkDurationS - contextPaddingS) * 44100)
	src.failAt[startFrame] = true

	p := New(src, neutralParams())
	_, err := p.Chunk(1)
	if err == nil {
		t.Fatal("expected ChunkFailedError after retries exhausted")
	}
	var cfe *ChunkFailedError
	if !errorsAsChunkFailed(err, &cfe) {
		t.Errorf("expected *ChunkFailedError, got %T: %v", err, err)
	}
	if cfe.Idx != 1 {
		t.Errorf("expected failed idx 1, got %d", cfe.Idx)
	}
}

func errorsAsChunkFailed(err error, target **ChunkFailedError) bool {
	if e, ok := err.(*ChunkFailedError); ok {
		*target = e
		return true
	}
	return false
}

func TestStitchSumsOverlapRegion(t *testing.T) {
	const sr = 1000 // small sr keeps the test fast; 1s fade = 1000 frames
	a := make([]float32, sr*2)
	b := make([]float32, sr*2)
	for i := 0; i < sr; i++ {
		a[2*i], a[2*i+1] = 1, 1
		b[2*i], b[2*i+1] = 1, 1
	}
	fadeApplyChunkFades(a, sr, true, false)
	fadeApplyChunkFades(b, sr, false, true)

	out := Stitch(a, b, sr)
	if len(out) != len(a)+len(b)-sr*2 {
		t.Errorf("expected stitched length %d, got %d", len(a)+len(b)-sr*2, len(out))
	}

	// Equal-power crossfade: cos^2+sin^2==1, so at the overlap midpoint both
	// gains are 1/sqrt(2) and two identical unit signals sum to sqrt(2)
	// (power is preserved for uncorrelated material, not amplitude).
	mid := len(a)/2 + sr // prefix (0 frames here since fade spans whole buffer) + fade midpoint
	if mid >= len(out) {
		mid = len(out) / 2
	}
	if out[mid] < 1.38 || out[mid] > 1.45 {
		t.Errorf("expected sqrt(2) amplitude at crossfade midpoint, got %v", out[mid])
	}
}
