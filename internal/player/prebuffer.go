package player

import (
	"context"
	"sync"

	"github.com/matiaszanolli/auralis/core/internal/types"
)

// prebuffer holds at most one ready-to-play chunk 0 for the next queued
// track (spec §4.7, §3.4 "the prebuffer engine owns at most one
// prebuffered PCM buffer at a time").
type prebuffer struct {
	mu    sync.Mutex
	track types.TrackRef
	valid bool
	pcm   types.StereoSamples
}

// Fill asynchronously loads and processes chunk 0 of track via source,
// replacing whatever was previously held. Safe to call from the prebuffer
// thread only; the player thread never blocks on it.
func (b *prebuffer) Fill(ctx context.Context, track types.TrackRef, source *ChunkSource) {
	pcm, err := source.Get(ctx, 0)
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.valid = false
		return
	}
	b.track = track
	b.pcm = pcm
	b.valid = true
}

// Take returns the prebuffered chunk for track if present, consuming it
// (the slot is single-use; a fresh Fill is required for the track after).
func (b *prebuffer) Take(track types.TrackRef) (types.StereoSamples, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.valid || b.track.TrackID != track.TrackID {
		return nil, false
	}
	pcm := b.pcm
	b.valid = false
	b.pcm = nil
	return pcm, true
}

// Invalidate discards the held buffer without consuming it (spec §4.7:
// "seeking invalidates the prebuffer").
func (b *prebuffer) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.valid = false
	b.pcm = nil
}
