// Package player implements the gapless playback state machine (spec
// §4.7): STOPPED -> LOADING -> PLAYING <-> PAUSED -> STOPPED, with a
// background prebuffer thread for gapless track transitions and a
// condition-variable-with-deadline fallback on cache misses.
package player

import (
	"context"
	"sync"
	"time"

	"github.com/matiaszanolli/auralis/core/internal/types"
)

// NextProvider is asked for the next queued track (and a ChunkSource ready
// to produce its chunks) whenever the player needs to prebuffer or
// gaplessly advance. A false second return means the queue is exhausted.
type NextProvider func() (types.TrackRef, *ChunkSource, bool)

// Player is the gapless playback engine. One Player drives one audio
// Output; track/queue ownership is external (spec §3.4).
type Player struct {
	mu         sync.RWMutex
	playbackMu sync.Mutex // serializes Play/Seek, teacher's single-playback-at-a-time guarantee

	state        types.PlaybackState
	track        types.TrackRef
	chunkIdx     int
	lastErr      error

	sessionID   uint64
	sessionDone chan struct{}
	cancel      context.CancelFunc

	output       Output
	notifier     *notifier
	prebuf       *prebuffer
	nextProvider NextProvider
}

// New builds a player around output, delivering state-change events to cb
// (may be nil).
func New(output Output, cb StateChangeCallback) *Player {
	return &Player{
		state:    types.StateStopped,
		output:   output,
		notifier: newNotifier(cb),
		prebuf:   &prebuffer{},
	}
}

// SetNextProvider registers the callback used to fetch the next queued
// track for prebuffering and gapless advance.
func (p *Player) SetNextProvider(np NextProvider) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextProvider = np
}

// State returns the current playback state.
func (p *Player) State() types.PlaybackState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Player) setState(s types.PlaybackState, track types.TrackRef, err error) {
	p.mu.Lock()
	p.state = s
	p.lastErr = err
	p.mu.Unlock()
	p.notifier.emit(StateChangeEvent{State: s, Track: track, Err: err})
}

// Play starts gapless playback of track via source, cancelling and waiting
// for any prior session to fully exit first (teacher's play-is-serialized,
// wait-for-old-session-to-exit pattern).
func (p *Player) Play(track types.TrackRef, source *ChunkSource) error {
	p.playbackMu.Lock()
	defer p.playbackMu.Unlock()

	p.stopCurrentAndWait()

	p.mu.Lock()
	p.sessionID++
	sessionID := p.sessionID
	p.sessionDone = make(chan struct{})
	doneChan := p.sessionDone
	p.track = track
	p.chunkIdx = 0
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	p.prebuf.Invalidate()
	p.setState(types.StateLoading, track, nil)

	go func() {
		defer close(doneChan)
		p.run(ctx, sessionID, track, source)
	}()
	return nil
}

// stopCurrentAndWait cancels whatever session is active and blocks until
// its goroutine has fully exited, guaranteeing single-session invariants
// before a new Play/Seek begins.
func (p *Player) stopCurrentAndWait() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.sessionDone
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// run drives chunks for track (and, gaplessly, every subsequent track the
// NextProvider yields) until the session is cancelled or the queue is
// exhausted.
func (p *Player) run(ctx context.Context, sessionID uint64, track types.TrackRef, source *ChunkSource) {
	for {
		if p.sessionSuperseded(sessionID) {
			return
		}

		ok := p.playTrack(ctx, sessionID, track, source)
		if !ok {
			return
		}

		np := p.currentNextProvider()
		if np == nil {
			p.setState(types.StateStopped, track, nil)
			return
		}
		nextTrack, nextSource, hasNext := np()
		if !hasNext {
			p.setState(types.StateStopped, track, nil)
			return
		}
		track, source = nextTrack, nextSource
		p.mu.Lock()
		p.track = track
		p.chunkIdx = 0
		p.mu.Unlock()
	}
}

func (p *Player) sessionSuperseded(sessionID uint64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessionID != sessionID
}

func (p *Player) currentNextProvider() NextProvider {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.nextProvider
}

// playTrack feeds every chunk of one track to the output in ascending
// order (spec §5 ordering guarantee), applying equal-power crossfade
// stitching between consecutive chunks. Returns false if the session was
// cancelled partway through.
func (p *Player) playTrack(ctx context.Context, sessionID uint64, track types.TrackRef, source *ChunkSource) bool {
	count := source.ChunkCount()
	sr := p.output.SampleRate()
	var carry types.StereoSamples

	// Kick off prebuffering of the track after this one as soon as this
	// one starts (spec §4.7 prebuffer thread).
	go p.prebufferNext(ctx, track)

	for idx := 0; idx < count; idx++ {
		if p.sessionSuperseded(sessionID) || ctx.Err() != nil {
			return false
		}

		p.mu.Lock()
		p.chunkIdx = idx
		p.mu.Unlock()

		var pcm types.StereoSamples
		var gotFromPrebuffer bool
		if idx == 0 {
			if taken, ok := p.prebuf.Take(track); ok {
				pcm = taken
				gotFromPrebuffer = true
			}
		}
		if !gotFromPrebuffer {
			if cached, ok := source.TryGet(idx); ok {
				pcm = cached
			} else {
				p.setState(types.StateLoading, track, nil)
				promoted, err := source.Promote(ctx, idx)
				if err != nil {
					if err == context.Canceled {
						return false
					}
					// Cache-miss timeout or processing failure: drop this
					// chunk to silence rather than block the device
					// indefinitely (spec §5).
					pcm = make(types.StereoSamples, 0)
				} else {
					pcm = promoted
				}
				p.setState(types.StatePlaying, track, nil)
			}
		}

		isLast := idx == count-1
		if err := p.writeChunk(sr, &carry, pcm, isLast); err != nil {
			p.setState(types.StateError, track, err)
			return false
		}

		if idx == 0 {
			p.setState(types.StatePlaying, track, nil)
		}
	}
	return true
}

// writeChunk folds chunk into the running crossfade carry and writes the
// finalized portion to the output, holding back only the still-open
// overlap tail (mirrors pipeline.Stitch's overlap-sum, applied
// incrementally instead of over a whole-track buffer).
func (p *Player) writeChunk(sr int, carry *types.StereoSamples, chunk types.StereoSamples, isLast bool) error {
	const crossfadeOverlapS = 1
	fadeFrames := crossfadeOverlapS * sr
	frames := chunk.Frames()
	if fadeFrames > frames {
		fadeFrames = frames
	}

	if len(*carry) > 0 {
		n := len(*carry)
		if frames*2 < n {
			n = frames * 2
		}
		overlap := make(types.StereoSamples, n)
		for i := 0; i < n; i++ {
			overlap[i] = (*carry)[i] + chunk[i]
		}
		if err := p.output.Write(overlap); err != nil {
			return err
		}
	}

	bodyStart := fadeFrames * 2
	if bodyStart > len(chunk) {
		bodyStart = len(chunk)
	}

	if isLast {
		*carry = nil
		return p.output.Write(chunk[bodyStart:])
	}

	tailStart := (frames - fadeFrames) * 2
	if tailStart < bodyStart {
		tailStart = bodyStart
	}
	if err := p.output.Write(chunk[bodyStart:tailStart]); err != nil {
		return err
	}
	*carry = append(types.StereoSamples(nil), chunk[tailStart:]...)
	return nil
}

func (p *Player) prebufferNext(ctx context.Context, current types.TrackRef) {
	np := p.currentNextProvider()
	if np == nil {
		return
	}
	nextTrack, nextSource, ok := np()
	if !ok {
		return
	}
	p.prebuf.Fill(ctx, nextTrack, nextSource)
}

// Pause suspends the output; the feed loop's next Write call blocks on the
// output's own pause mechanism rather than the player's state.
func (p *Player) Pause() {
	p.mu.Lock()
	if p.state != types.StatePlaying {
		p.mu.Unlock()
		return
	}
	p.state = types.StatePaused
	track := p.track
	p.mu.Unlock()
	p.output.Pause()
	p.notifier.emit(StateChangeEvent{State: types.StatePaused, Track: track})
}

// Resume resumes a paused player.
func (p *Player) Resume() {
	p.mu.Lock()
	if p.state != types.StatePaused {
		p.mu.Unlock()
		return
	}
	p.state = types.StatePlaying
	track := p.track
	p.mu.Unlock()
	p.output.Resume()
	p.notifier.emit(StateChangeEvent{State: types.StatePlaying, Track: track})
}

// Stop cancels playback and returns the player to STOPPED.
func (p *Player) Stop() {
	p.playbackMu.Lock()
	defer p.playbackMu.Unlock()
	p.stopCurrentAndWait()
	p.output.Stop()
	p.prebuf.Invalidate()
	p.setState(types.StateStopped, types.TrackRef{}, nil)
}

// Seek snaps to the chunk containing positionFrames within the current
// track, invalidating the prebuffer and restarting the feed loop from
// that chunk (spec §4.7). Chunks before the target are never produced.
func (p *Player) Seek(positionFrames int64, chunkDurationFrames int64, source *ChunkSource) error {
	p.playbackMu.Lock()
	defer p.playbackMu.Unlock()

	p.mu.RLock()
	track := p.track
	p.mu.RUnlock()

	p.stopCurrentAndWait()
	p.prebuf.Invalidate()

	startIdx := int(positionFrames / chunkDurationFrames)
	if startIdx < 0 {
		startIdx = 0
	}

	p.mu.Lock()
	p.sessionID++
	sessionID := p.sessionID
	p.sessionDone = make(chan struct{})
	doneChan := p.sessionDone
	p.chunkIdx = startIdx
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	p.setState(types.StateLoading, track, nil)

	go func() {
		defer close(doneChan)
		p.runFrom(ctx, sessionID, track, source, startIdx)
	}()
	return nil
}

func (p *Player) runFrom(ctx context.Context, sessionID uint64, track types.TrackRef, source *ChunkSource, startIdx int) {
	count := source.ChunkCount()
	sr := p.output.SampleRate()
	var carry types.StereoSamples

	for idx := startIdx; idx < count; idx++ {
		if p.sessionSuperseded(sessionID) || ctx.Err() != nil {
			return
		}
		p.mu.Lock()
		p.chunkIdx = idx
		p.mu.Unlock()

		pcm, ok := source.TryGet(idx)
		if !ok {
			p.setState(types.StateLoading, track, nil)
			var err error
			pcm, err = source.Promote(ctx, idx)
			if err != nil {
				if err == context.Canceled {
					return
				}
				pcm = make(types.StereoSamples, 0)
			}
		}

		isLast := idx == count-1
		if err := p.writeChunk(sr, &carry, pcm, isLast); err != nil {
			p.setState(types.StateError, track, err)
			return
		}
		if idx == startIdx {
			p.setState(types.StatePlaying, track, nil)
		}
	}
	p.setState(types.StateStopped, track, nil)
}

// Position returns the current chunk index, for metrics/UI.
func (p *Player) Position() (track types.TrackRef, chunkIdx int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.track, p.chunkIdx
}

// Close stops playback and releases the audio device.
func (p *Player) Close() error {
	p.Stop()
	p.notifier.close()
	return p.output.Close()
}

// WaitIdle blocks until the current session has fully exited, used by
// tests that need playTrack to run to completion deterministically.
func (p *Player) waitIdle(timeout time.Duration) {
	p.mu.RLock()
	done := p.sessionDone
	p.mu.RUnlock()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
