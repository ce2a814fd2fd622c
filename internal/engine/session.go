// Package engine wires together the fingerprint, params, pipeline, cache,
// and player packages into one running playback session — the glue layer
// the teacher spreads across internal/audio.Player and internal/ipc's
// request handlers (this module has no IPC surface to carry that wiring
// for it, so it lives here instead).
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/matiaszanolli/auralis/core/internal/cache"
	"github.com/matiaszanolli/auralis/core/internal/fingerprint"
	"github.com/matiaszanolli/auralis/core/internal/params"
	"github.com/matiaszanolli/auralis/core/internal/pipeline"
	"github.com/matiaszanolli/auralis/core/internal/player"
	"github.com/matiaszanolli/auralis/core/internal/queue"
	"github.com/matiaszanolli/auralis/core/internal/types"
)

// Track bundles everything the session needs to produce chunks for one
// loaded track: its decoded PCM and its precomputed fingerprint-derived
// coordinates (spec §4.2: coordinates are derived once, parameters are
// regenerated per preset+intensity).
type Track struct {
	ID          types.TrackID
	Path        string
	Source      pipeline.PCMSource
	Fingerprint fingerprint.Fingerprint
	Coordinates params.Coordinates
}

// NewTrack derives a Track's coordinates from its fingerprint, the
// bridge spec §4.2 step 1 describes.
func NewTrack(id types.TrackID, path string, source pipeline.PCMSource, fp fingerprint.Fingerprint) *Track {
	return &Track{
		ID:          id,
		Path:        path,
		Source:      source,
		Fingerprint: fp,
		Coordinates: params.DeriveCoordinates(fp),
	}
}

// playbackState is the session's current (track, preset, intensity)
// selection — the coordinates a newly dispatched worker job or an
// on-demand promotion needs to reproduce exactly (spec §4.2 determinism).
type playbackState struct {
	trackID   types.TrackID
	preset    types.Preset
	intensity types.IntensityBucket
	chunkIdx  int
}

// Session owns the registered track set, the live playback selection, and
// the predictor, and exposes the ProcessFunc/DesiredSetFunc/NextProvider
// the cache worker and player need (spec §5's component wiring).
type Session struct {
	mu sync.RWMutex

	tracks    map[types.TrackID]*Track
	state     playbackState
	predictor *cache.Predictor
	cache     *cache.MultiTierCache
	queue     *queue.Manager
}

// NewSession builds a session bound to an already-constructed cache and
// queue manager.
func NewSession(c *cache.MultiTierCache, q *queue.Manager) *Session {
	return &Session{
		tracks:    make(map[types.TrackID]*Track),
		predictor: cache.NewPredictor(),
		cache:     c,
		queue:     q,
	}
}

// Register makes t available to ProcessFunc/KeyFunc lookups.
func (s *Session) Register(t *Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks[t.ID] = t
}

// SetCurrent updates the live playback selection, used both by the UI
// layer (preset/intensity changes) and by the player when it advances to
// a new chunk or track.
func (s *Session) SetCurrent(trackID types.TrackID, preset types.Preset, intensity types.IntensityBucket, chunkIdx int) {
	s.mu.Lock()
	prev := s.state.preset
	s.state = playbackState{trackID: trackID, preset: preset, intensity: intensity, chunkIdx: chunkIdx}
	s.mu.Unlock()

	if prev != preset {
		s.predictor.RecordSwitch(prev, preset)
	}
}

// track looks up a registered track, erroring if it was never Registered
// (a worker job racing a track change, or a stale desired-set entry).
func (s *Session) track(id types.TrackID) (*Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tracks[id]
	if !ok {
		return nil, fmt.Errorf("engine: track %d not registered", id)
	}
	return t, nil
}

// paramsFor regenerates the deterministic DSP parameters for one
// (track, preset, intensity) combination (spec §4.2's full pipeline:
// scale the preset's preference by intensity, then Generate biases the
// coordinates by it once and derives the parameters).
func paramsFor(t *Track, preset types.Preset, intensity types.IntensityBucket) params.Parameters {
	pref := params.PreferenceFor(preset)
	scale := float32(intensity) / 10.0
	pref = scalePreference(pref, scale)
	return params.Generate(t.Coordinates, pref)
}

// scalePreference scales a preference vector toward neutral by factor,
// the continuous "intensity" knob spec §3.2 describes layered on top of
// a preset's fixed preference vector.
func scalePreference(pref params.Preference, factor float32) params.Preference {
	return params.Preference{
		SpectralBias: pref.SpectralBias * factor,
		DynamicBias:  pref.DynamicBias * factor,
		LoudnessBias: pref.LoudnessBias * factor,
		BassBoost:    pref.BassBoost * factor,
		TrebleBoost:  pref.TrebleBoost * factor,
		StereoBias:   pref.StereoBias * factor,
	}
}

// ProcessFunc builds the cache.ProcessFunc the worker (and the player's
// on-demand ChunkSource.Promote) use to render a missing chunk.
func (s *Session) ProcessFunc() cache.ProcessFunc {
	return func(ctx context.Context, key types.CacheKey) (types.StereoSamples, error) {
		t, err := s.track(key.TrackID)
		if err != nil {
			return nil, err
		}
		p := paramsFor(t, key.Preset, key.IntensityBucket)
		pl := pipeline.New(t.Source, p)
		chunk, err := pl.Chunk(key.ChunkIndex)
		if err != nil {
			return nil, err
		}
		return chunk.PCM, nil
	}
}

// audioContextFor derives the predictor's content-signal input from a
// track's fingerprint (spec §4.6's "audio-content signal").
func audioContextFor(t *Track) cache.AudioContext {
	return cache.AudioContext{
		EnergyLevel:  t.Coordinates.EnergyLevel,
		DynamicRange: t.Coordinates.DynamicRange,
		TempoBPM:     t.Fingerprint.TempoBPM,
	}
}

// DesiredSetFunc builds the cache.DesiredSetFunc the worker polls on its
// interval, reflecting whatever the current playback selection is at poll
// time (spec §4.6).
func (s *Session) DesiredSetFunc() cache.DesiredSetFunc {
	return func() []cache.DesiredKey {
		s.mu.RLock()
		st := s.state
		s.mu.RUnlock()

		t, err := s.track(st.trackID)
		if err != nil {
			return nil
		}

		return player.BuildDesiredSet(player.DesiredSetConfig{
			TrackID:       st.trackID,
			Intensity:     st.intensity,
			CurrentPreset: st.preset,
			CurrentChunk:  st.chunkIdx,
			ChunkCount:    pipeline.New(t.Source, paramsFor(t, st.preset, st.intensity)).ChunkCount(),
			Predictor:     s.predictor,
			AudioContext:  audioContextFor(t),
		})
	}
}

// KeyFunc builds the player.KeyFunc bound to the session's current preset
// and intensity for one track, used to construct a player.ChunkSource.
func (s *Session) KeyFunc(trackID types.TrackID) player.KeyFunc {
	return func(chunkIdx int) types.CacheKey {
		s.mu.RLock()
		preset, intensity := s.state.preset, s.state.intensity
		s.mu.RUnlock()
		return types.CacheKey{
			TrackID:         trackID,
			Preset:          preset,
			ChunkIndex:      chunkIdx,
			IntensityBucket: intensity,
		}
	}
}

// ChunkSourceFor builds a ready-to-play ChunkSource for trackID at the
// session's current preset/intensity.
func (s *Session) ChunkSourceFor(trackID types.TrackID) (*player.ChunkSource, error) {
	t, err := s.track(trackID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	preset, intensity := s.state.preset, s.state.intensity
	s.mu.RUnlock()

	p := pipeline.New(t.Source, paramsFor(t, preset, intensity))
	return player.NewChunkSource(s.cache, p, s.KeyFunc(trackID)), nil
}

// NextProvider adapts the queue manager into a player.NextProvider,
// advancing the queue and switching the session's current track on every
// call (spec §3.4's gapless handoff: the player asks once per track end).
func (s *Session) NextProvider() player.NextProvider {
	return func() (types.TrackRef, *player.ChunkSource, bool) {
		ref, ok := s.queue.Next()
		if !ok {
			return types.TrackRef{}, nil, false
		}

		s.mu.Lock()
		preset, intensity := s.state.preset, s.state.intensity
		s.state = playbackState{trackID: ref.TrackID, preset: preset, intensity: intensity, chunkIdx: 0}
		s.mu.Unlock()

		src, err := s.ChunkSourceFor(ref.TrackID)
		if err != nil {
			return types.TrackRef{}, nil, false
		}
		return ref, src, true
	}
}

// Predictor exposes the session's predictor, e.g. for a config reload to
// call SetUserWeight.
func (s *Session) Predictor() *cache.Predictor { return s.predictor }
