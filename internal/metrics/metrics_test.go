package metrics

import (
	"testing"

	"github.com/matiaszanolli/auralis/core/internal/types"
)

func TestRecordHitMissComputesHitRate(t *testing.T) {
	c := New()
	c.RecordHit(types.TierL1, 1024)
	c.RecordHit(types.TierL1, 1024)
	c.RecordMiss(types.TierL1)

	snap := c.Snapshot()
	if got := snap.TierHitRate[types.TierL1]; got < 0.66 || got > 0.67 {
		t.Errorf("expected hit rate ~0.667, got %v", got)
	}
	if snap.TierBytes[types.TierL1] != 1024 {
		t.Errorf("expected last hit size 1024, got %v", snap.TierBytes[types.TierL1])
	}
}

func TestSnapshotZeroTotalsYieldZeroRate(t *testing.T) {
	c := New()
	snap := c.Snapshot()
	if snap.TierHitRate[types.TierL2] != 0 {
		t.Errorf("expected 0 hit rate with no samples, got %v", snap.TierHitRate[types.TierL2])
	}
}

func TestRecordPredictionComputesAccuracy(t *testing.T) {
	c := New()
	c.RecordPrediction(true)
	c.RecordPrediction(true)
	c.RecordPrediction(false)

	snap := c.Snapshot()
	if got := snap.PredictionAcc; got < 0.66 || got > 0.67 {
		t.Errorf("expected prediction accuracy ~0.667, got %v", got)
	}
}

func TestRecordDegradationUpdatesSnapshot(t *testing.T) {
	c := New()
	c.RecordDegradation(types.DegradationWarning)
	if snap := c.Snapshot(); snap.Degradation != types.DegradationWarning {
		t.Errorf("expected degradation warning, got %v", snap.Degradation)
	}
	c.RecordDegradation(types.DegradationCritical)
	if snap := c.Snapshot(); snap.Degradation != types.DegradationCritical {
		t.Errorf("expected degradation critical, got %v", snap.Degradation)
	}
}

func TestRecordWorkerStats(t *testing.T) {
	c := New()
	c.RecordWorkerStats(5, 2)
	snap := c.Snapshot()
	if snap.ProcessedJobs != 5 || snap.SkippedJobs != 2 {
		t.Errorf("expected processed=5 skipped=2, got %+v", snap)
	}
}

func TestInitShutdownSetsGlobal(t *testing.T) {
	c := New()
	Init(c)

	if Global() != c {
		t.Error("expected Global to return the initialized collector")
	}

	Shutdown()
	if Global() != nil {
		t.Error("expected Global to be nil after Shutdown")
	}
}
