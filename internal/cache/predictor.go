package cache

import (
	"sync"
	"time"

	"github.com/matiaszanolli/auralis/core/internal/types"
)

const (
	sessionDecayFactor  = 0.99
	smoothingAlpha      = 0.5
	maxRecentSwitches   = 100
	userWeightDefault   = 0.7
	audioWeightDefault  = 0.3
)

// SessionMode classifies how settled the user's preset choices are within
// the current session (spec §4.6).
type SessionMode int

const (
	SessionExploration SessionMode = iota
	SessionNormal
	SessionSettled
)

// AudioContext carries the content signals the predictor blends with user
// history (spec §4.6's "audio-content signal").
type AudioContext struct {
	EnergyLevel  float32
	DynamicRange float32
	TempoBPM     float32
}

// Predictor maintains the preset transition matrix and blends it with an
// audio-content affinity table to produce next-preset probabilities (spec
// §4.6). One Predictor instance per session, shared across its tracks.
type Predictor struct {
	mu sync.Mutex

	matrix map[types.Preset]map[types.Preset]float64

	recentSwitches []time.Time
	sessionStart   time.Time

	userWeight float64
}

// NewPredictor builds a predictor with a zeroed transition matrix and the
// default 70/30 user/audio blend weight.
func NewPredictor() *Predictor {
	return &Predictor{
		matrix:       make(map[types.Preset]map[types.Preset]float64),
		sessionStart: time.Now(),
		userWeight:   userWeightDefault,
	}
}

// SetUserWeight overrides the default blend weight (config-tunable per
// spec §6.5).
func (p *Predictor) SetUserWeight(w float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userWeight = w
}

// DecaySession applies the per-session exponential decay to every
// transition count, called once at the start of a new session so stale
// history fades without being discarded outright (spec §4.6).
func (p *Predictor) DecaySession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for from := range p.matrix {
		for to := range p.matrix[from] {
			p.matrix[from][to] *= sessionDecayFactor
		}
	}
}

// RecordSwitch records a preset transition and updates recent-switch
// history used for session-mode classification.
func (p *Predictor) RecordSwitch(from, to types.Preset) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.matrix[from] == nil {
		p.matrix[from] = make(map[types.Preset]float64)
	}
	p.matrix[from][to]++

	p.recentSwitches = append(p.recentSwitches, time.Now())
	if len(p.recentSwitches) > maxRecentSwitches {
		p.recentSwitches = p.recentSwitches[len(p.recentSwitches)-maxRecentSwitches:]
	}
}

// SessionMode classifies the current session per spec §4.6: exploration if
// >=5 switches in the first 300s; settled if <=2 switches after 600s of
// session time; normal otherwise.
func (p *Predictor) SessionMode() SessionMode {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.sessionStart)
	var switchesInFirst300s, switchesAfter600s int
	for _, t := range p.recentSwitches {
		age := t.Sub(p.sessionStart)
		if age <= 300*time.Second {
			switchesInFirst300s++
		}
	}
	if elapsed > 600*time.Second {
		cutoff := p.sessionStart.Add(600 * time.Second)
		for _, t := range p.recentSwitches {
			if t.After(cutoff) {
				switchesAfter600s++
			}
		}
		if switchesAfter600s <= 2 {
			return SessionSettled
		}
	}
	if switchesInFirst300s >= 5 {
		return SessionExploration
	}
	return SessionNormal
}

// Prediction is a single candidate preset and its blended probability.
type Prediction struct {
	Preset      types.Preset
	Probability float32
}

// Predict returns next-preset probabilities from currentPreset, normalised
// to sum to 1, blending the user transition history (additive-smoothed)
// with the audio-content affinity table at the predictor's configured
// weight (spec §4.6).
func (p *Predictor) Predict(currentPreset types.Preset, ctx AudioContext) []Prediction {
	p.mu.Lock()
	row := p.matrix[currentPreset]
	userWeight := p.userWeight
	p.mu.Unlock()

	n := len(types.AllPresets)
	userProb := make(map[types.Preset]float64, n)
	var total float64
	for _, preset := range types.AllPresets {
		count := 0.0
		if row != nil {
			count = row[preset]
		}
		userProb[preset] = count + smoothingAlpha
		total += userProb[preset]
	}
	for preset := range userProb {
		userProb[preset] /= total
	}

	audioAffinity := audioAffinityTable(ctx)

	out := make([]Prediction, 0, n)
	var sum float64
	blended := make(map[types.Preset]float64, n)
	for _, preset := range types.AllPresets {
		v := userWeight*userProb[preset] + (1-userWeight)*audioAffinity[preset]
		if v < 0 {
			v = 0
		}
		blended[preset] = v
		sum += v
	}
	if sum <= 0 {
		sum = 1
	}
	for _, preset := range types.AllPresets {
		out = append(out, Prediction{Preset: preset, Probability: float32(blended[preset] / sum)})
	}
	return out
}

// audioAffinityTable maps content signals to fixed per-preset affinity
// bumps (spec §4.6, "energy>0.75 => +0.4 to punchy"), starting from a
// uniform base so every preset has a nonzero audio-side weight even with
// no rule triggered.
func audioAffinityTable(ctx AudioContext) map[types.Preset]float64 {
	base := 1.0 / float64(len(types.AllPresets))
	affinity := make(map[types.Preset]float64, len(types.AllPresets))
	for _, preset := range types.AllPresets {
		affinity[preset] = base
	}

	if ctx.EnergyLevel > 0.75 {
		affinity[types.PresetPunchy] += 0.4
	}
	if ctx.EnergyLevel < 0.3 {
		affinity[types.PresetGentle] += 0.3
	}
	if ctx.DynamicRange > 0.7 {
		affinity[types.PresetLive] += 0.3
	}
	if ctx.DynamicRange < 0.3 {
		affinity[types.PresetPunchy] += 0.2
		affinity[types.PresetWarm] += 0.1
	}
	if ctx.TempoBPM > 140 {
		affinity[types.PresetPunchy] += 0.2
		affinity[types.PresetBright] += 0.1
	}
	if ctx.TempoBPM < 80 {
		affinity[types.PresetWarm] += 0.2
		affinity[types.PresetGentle] += 0.1
	}

	return affinity
}

// TopN returns the n highest-probability predictions, descending. Exported
// so the player's desired-set assembly (spec §4.5 "top-3"/"top-2"
// predicted presets) can reuse it without duplicating the sort.
func TopN(predictions []Prediction, n int) []Prediction {
	sorted := append([]Prediction(nil), predictions...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Probability > sorted[j-1].Probability; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}
