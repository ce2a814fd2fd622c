package cache

import (
	"math"
	"testing"

	"github.com/matiaszanolli/auralis/core/internal/types"
)

func TestPredictProbabilitiesSumToOne(t *testing.T) {
	p := NewPredictor()
	p.RecordSwitch(types.PresetAdaptive, types.PresetPunchy)
	p.RecordSwitch(types.PresetAdaptive, types.PresetPunchy)

	predictions := p.Predict(types.PresetAdaptive, AudioContext{EnergyLevel: 0.5, DynamicRange: 0.5, TempoBPM: 110})

	var sum float64
	for _, pr := range predictions {
		sum += float64(pr.Probability)
	}
	if math.Abs(sum-1) > 1e-4 {
		t.Errorf("expected probabilities to sum to 1, got %v", sum)
	}
}

func TestPredictFavorsHistoricallyFrequentTransition(t *testing.T) {
	p := NewPredictor()
	for i := 0; i < 20; i++ {
		p.RecordSwitch(types.PresetAdaptive, types.PresetWarm)
	}

	predictions := p.Predict(types.PresetAdaptive, AudioContext{})
	var warmProb, punchyProb float32
	for _, pr := range predictions {
		if pr.Preset == types.PresetWarm {
			warmProb = pr.Probability
		}
		if pr.Preset == types.PresetPunchy {
			punchyProb = pr.Probability
		}
	}
	if warmProb <= punchyProb {
		t.Errorf("expected warm (frequently chosen) to outrank punchy, got warm=%v punchy=%v", warmProb, punchyProb)
	}
}

func TestHighEnergyBiasesTowardPunchy(t *testing.T) {
	p := NewPredictor()
	p.SetUserWeight(0) // isolate the audio-content signal

	predictions := p.Predict(types.PresetAdaptive, AudioContext{EnergyLevel: 0.9})
	var punchyProb float32
	for _, pr := range predictions {
		if pr.Preset == types.PresetPunchy {
			punchyProb = pr.Probability
		}
	}
	uniform := float32(1) / float32(len(types.AllPresets))
	if punchyProb <= uniform {
		t.Errorf("expected high energy to bias probability above uniform %v, got %v", uniform, punchyProb)
	}
}

func TestSessionModeExplorationOnManyEarlySwitches(t *testing.T) {
	p := NewPredictor()
	for i := 0; i < 6; i++ {
		p.RecordSwitch(types.PresetAdaptive, types.PresetWarm)
	}
	if mode := p.SessionMode(); mode != SessionExploration {
		t.Errorf("expected SessionExploration, got %v", mode)
	}
}

func TestTopNReturnsDescendingSubset(t *testing.T) {
	predictions := []Prediction{
		{Preset: types.PresetAdaptive, Probability: 0.1},
		{Preset: types.PresetWarm, Probability: 0.5},
		{Preset: types.PresetBright, Probability: 0.3},
	}
	top := TopN(predictions, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 results, got %d", len(top))
	}
	if top[0].Preset != types.PresetWarm || top[1].Preset != types.PresetBright {
		t.Errorf("expected [warm, bright] in descending order, got %+v", top)
	}
}
