package player

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matiaszanolli/auralis/core/internal/cache"
	"github.com/matiaszanolli/auralis/core/internal/types"
)

// fakeOutput is an in-memory Output that records every written frame.
type fakeOutput struct {
	mu       sync.Mutex
	sr       int
	written  types.StereoSamples
	paused   bool
	closed   bool
}

func newFakeOutput(sr int) *fakeOutput { return &fakeOutput{sr: sr} }

func (f *fakeOutput) SampleRate() int { return f.sr }
func (f *fakeOutput) Channels() int   { return 2 }
func (f *fakeOutput) Write(pcm types.StereoSamples) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, pcm...)
	return nil
}
func (f *fakeOutput) Pause()             { f.mu.Lock(); f.paused = true; f.mu.Unlock() }
func (f *fakeOutput) Resume()            { f.mu.Lock(); f.paused = false; f.mu.Unlock() }
func (f *fakeOutput) Stop()              {}
func (f *fakeOutput) SetVolume(v float64) {}
func (f *fakeOutput) Close() error       { f.mu.Lock(); f.closed = true; f.mu.Unlock(); return nil }
func (f *fakeOutput) frames() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.Frames()
}

// fakePipeline satisfies enough of the pipeline shape via ChunkSource's
// direct cache pre-population: tests insert chunks straight into the
// cache and use a KeyFunc, so ChunkSource.Promote is never exercised here.

func testChunkSource(t *testing.T, c *cache.MultiTierCache, trackID types.TrackID, chunkCount int, frameLen int) *ChunkSource {
	t.Helper()
	keyFn := func(idx int) types.CacheKey {
		return types.CacheKey{TrackID: trackID, Preset: types.PresetAdaptive, ChunkIndex: idx, IntensityBucket: 5}
	}
	for i := 0; i < chunkCount; i++ {
		pcm := make(types.StereoSamples, frameLen*2)
		for j := range pcm {
			pcm[j] = 0.1
		}
		c.Insert(keyFn(i), pcm, types.TierL1, 1.0)
	}
	return NewChunkSource(c, nil, keyFn)
}

func TestPlayWritesAllChunksToOutput(t *testing.T) {
	c := cache.New()
	out := newFakeOutput(1000)
	p := New(out, nil)

	// frameLen must exceed the 1s crossfade window (sr=1000 => 1000
	// frames) so each chunk has a non-overlap body to actually write.
	source := testChunkSource(t, c, 1, 3, 3000)
	track := types.TrackRef{TrackID: 1}

	if err := p.Play(track, source); err != nil {
		t.Fatalf("Play: %v", err)
	}
	p.waitIdle(2 * time.Second)

	if out.frames() == 0 {
		t.Fatal("expected output to receive frames")
	}
}

func TestStateTransitionsToPlayingThenStopped(t *testing.T) {
	c := cache.New()
	out := newFakeOutput(1000)

	var mu sync.Mutex
	var states []types.PlaybackState
	p := New(out, func(ev StateChangeEvent) {
		mu.Lock()
		states = append(states, ev.State)
		mu.Unlock()
	})

	source := testChunkSource(t, c, 1, 1, 200)
	track := types.TrackRef{TrackID: 1}
	p.Play(track, source)
	p.waitIdle(2 * time.Second)
	time.Sleep(20 * time.Millisecond) // let the async notifier drain

	mu.Lock()
	defer mu.Unlock()
	if len(states) == 0 || states[0] != types.StateLoading {
		t.Fatalf("expected first event to be loading, got %v", states)
	}
	last := states[len(states)-1]
	if last != types.StateStopped {
		t.Errorf("expected final state stopped, got %v (all: %v)", last, states)
	}
}

func TestPauseResumeTogglesOutput(t *testing.T) {
	out := newFakeOutput(1000)
	p := New(out, nil)

	// Exercise Pause/Resume directly against a synthetic Playing state,
	// independent of the feed loop's own timing, since a single-chunk
	// in-memory feed loop has no real duration to pause mid-flight.
	p.mu.Lock()
	p.state = types.StatePlaying
	p.mu.Unlock()

	p.Pause()
	if !out.paused {
		t.Error("expected output paused")
	}
	if p.State() != types.StatePaused {
		t.Errorf("expected player state paused, got %v", p.State())
	}

	p.Resume()
	if out.paused {
		t.Error("expected output resumed")
	}
	if p.State() != types.StatePlaying {
		t.Errorf("expected player state playing, got %v", p.State())
	}
}

func TestGaplessAdvanceMovesToNextTrack(t *testing.T) {
	c := cache.New()
	out := newFakeOutput(1000)
	p := New(out, nil)

	source1 := testChunkSource(t, c, 1, 1, 200)
	source2 := testChunkSource(t, c, 2, 2, 200)
	track2 := types.TrackRef{TrackID: 2}

	var calls int32
	p.SetNextProvider(func() (types.TrackRef, *ChunkSource, bool) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			return track2, source2, true
		}
		return types.TrackRef{}, nil, false
	})

	p.Play(types.TrackRef{TrackID: 1}, source1)
	p.waitIdle(2 * time.Second)
	time.Sleep(50 * time.Millisecond)

	if atomic.LoadInt32(&calls) == 0 {
		t.Fatal("expected the next provider to be consulted for gapless advance")
	}
	gotTrack, _ := p.Position()
	if gotTrack.TrackID != 2 {
		t.Errorf("expected player to have advanced to track 2, got %+v", gotTrack)
	}
}

func TestChunkSourceTryGetMissReturnsFalse(t *testing.T) {
	c := cache.New() // empty; nothing pre-populated
	keyFn := func(idx int) types.CacheKey {
		return types.CacheKey{TrackID: 9, Preset: types.PresetAdaptive, ChunkIndex: idx, IntensityBucket: 0}
	}
	source := NewChunkSource(c, nil, keyFn)
	if _, ok := source.TryGet(0); ok {
		t.Error("expected a miss against an empty cache")
	}
}
