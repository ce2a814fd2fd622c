package queue

import (
	"testing"

	"github.com/matiaszanolli/auralis/core/internal/types"
)

func refs(ids ...types.TrackID) []types.TrackRef {
	out := make([]types.TrackRef, len(ids))
	for i, id := range ids {
		out[i] = types.TrackRef{TrackID: id, Path: pathFor(id)}
	}
	return out
}

func pathFor(id types.TrackID) string {
	switch id {
	case 1:
		return "/path/1.mp3"
	case 2:
		return "/path/2.mp3"
	case 3:
		return "/path/3.mp3"
	case 4:
		return "/path/4.mp3"
	case 5:
		return "/path/5.mp3"
	default:
		return ""
	}
}

func TestNewManager(t *testing.T) {
	m := NewManager()

	if m == nil {
		t.Fatal("NewManager returned nil")
	}

	idx, size := m.Position()
	if idx != -1 {
		t.Errorf("Expected index -1, got %d", idx)
	}
	if size != 0 {
		t.Errorf("Expected size 0, got %d", size)
	}
}

func TestSet(t *testing.T) {
	m := NewManager()

	m.Set(refs(1, 2, 3))

	idx, size := m.Position()
	if idx != -1 {
		t.Errorf("Expected index -1 after Set, got %d", idx)
	}
	if size != 3 {
		t.Errorf("Expected size 3, got %d", size)
	}

	items := m.GetItems()
	if len(items) != 3 {
		t.Errorf("Expected 3 items, got %d", len(items))
	}
}

func TestAppend(t *testing.T) {
	m := NewManager()

	m.Set(refs(1))
	m.Append(refs(2, 3))

	_, size := m.Position()
	if size != 3 {
		t.Errorf("Expected size 3, got %d", size)
	}
}

func TestNext(t *testing.T) {
	m := NewManager()
	m.Set(refs(1, 2, 3))

	track, ok := m.Next()
	if !ok || track.TrackID != 1 {
		t.Errorf("Expected track 1, got %+v ok=%v", track, ok)
	}

	idx, _ := m.Position()
	if idx != 0 {
		t.Errorf("Expected index 0, got %d", idx)
	}

	track, ok = m.Next()
	if !ok || track.TrackID != 2 {
		t.Errorf("Expected track 2, got %+v", track)
	}

	track, ok = m.Next()
	if !ok || track.TrackID != 3 {
		t.Errorf("Expected track 3, got %+v", track)
	}

	// Fourth Next should report end of queue.
	_, ok = m.Next()
	if ok {
		t.Error("Expected false at end of queue")
	}
}

func TestPrev(t *testing.T) {
	m := NewManager()
	m.Set(refs(1, 2, 3))

	m.Next() // 0
	m.Next() // 1
	m.Next() // 2

	track, ok := m.Prev()
	if !ok || track.TrackID != 2 {
		t.Errorf("Expected track 2, got %+v", track)
	}

	track, ok = m.Prev()
	if !ok || track.TrackID != 1 {
		t.Errorf("Expected track 1, got %+v", track)
	}

	_, ok = m.Prev()
	if ok {
		t.Error("Expected false at beginning of queue")
	}
}

func TestCurrent(t *testing.T) {
	m := NewManager()
	m.Set(refs(1, 2))

	_, ok := m.Current()
	if ok {
		t.Error("Expected false before any navigation")
	}

	m.Next()
	track, ok := m.Current()
	if !ok || track.TrackID != 1 {
		t.Errorf("Expected track 1, got %+v", track)
	}
}

func TestSetIndex(t *testing.T) {
	m := NewManager()
	m.Set(refs(1, 2, 3))

	if !m.SetIndex(1) {
		t.Error("SetIndex(1) should succeed")
	}

	track, _ := m.Current()
	if track.TrackID != 2 {
		t.Errorf("Expected track 2, got %+v", track)
	}

	if m.SetIndex(-1) {
		t.Error("SetIndex(-1) should fail")
	}

	if m.SetIndex(10) {
		t.Error("SetIndex(10) should fail")
	}
}

func TestClear(t *testing.T) {
	m := NewManager()
	m.Set(refs(1, 2))
	m.Next()

	m.Clear()

	idx, size := m.Position()
	if idx != -1 {
		t.Errorf("Expected index -1 after Clear, got %d", idx)
	}
	if size != 0 {
		t.Errorf("Expected size 0 after Clear, got %d", size)
	}
}

func TestRepeatAll(t *testing.T) {
	m := NewManager()
	m.Set(refs(1, 2))
	m.SetRepeat(types.RepeatAll)

	m.Next()              // 0
	m.Next()              // 1
	track, ok := m.Next() // should wrap to 0

	if !ok || track.TrackID != 1 {
		t.Errorf("Expected track 1 with RepeatAll, got %+v", track)
	}
}

func TestRepeatOne(t *testing.T) {
	m := NewManager()
	m.Set(refs(1, 2))
	m.SetRepeat(types.RepeatOne)

	m.Next() // 0

	track, ok := m.Next()
	if !ok || track.TrackID != 1 {
		t.Errorf("Expected track 1 with RepeatOne, got %+v", track)
	}
}

func TestRemove(t *testing.T) {
	m := NewManager()
	m.Set(refs(1, 2, 3))
	m.Next() // index 0
	m.Next() // index 1

	m.Remove(0)

	idx, size := m.Position()
	if idx != 0 {
		t.Errorf("Expected index 0 after remove, got %d", idx)
	}
	if size != 2 {
		t.Errorf("Expected size 2 after remove, got %d", size)
	}

	track, _ := m.Current()
	if track.TrackID != 2 {
		t.Errorf("Expected track 2, got %+v", track)
	}
}

func TestInsert(t *testing.T) {
	m := NewManager()
	m.Set(refs(1, 3))
	m.Next() // index 0

	m.Insert(1, types.TrackRef{TrackID: 2, Path: "/path/2.mp3"})

	_, size := m.Position()
	if size != 3 {
		t.Errorf("Expected size 3 after insert, got %d", size)
	}

	items := m.GetItems()
	if items[1].TrackID != 2 {
		t.Errorf("Expected track 2 at index 1, got %+v", items[1])
	}
}

func TestSetWithMetadata(t *testing.T) {
	m := NewManager()

	items := []types.TrackRef{
		{TrackID: 1, Path: "/path/1.mp3", Metadata: &types.TrackMetadata{Title: "Track 1"}},
		{TrackID: 2, Path: "/path/2.mp3", Metadata: &types.TrackMetadata{Title: "Track 2"}},
	}
	m.Set(items)

	m.Next()
	track, ok := m.Current()
	if !ok {
		t.Fatal("expected a current track")
	}

	if track.TrackID != 1 {
		t.Errorf("Expected track 1, got %+v", track)
	}

	if track.Metadata == nil {
		t.Fatal("Expected metadata, got nil")
	}

	if track.Metadata.Title != "Track 1" {
		t.Errorf("Expected title 'Track 1', got '%s'", track.Metadata.Title)
	}
}

func TestShuffleGetSet(t *testing.T) {
	m := NewManager()

	if m.GetShuffle() {
		t.Error("Shuffle should be off by default")
	}

	m.SetShuffle(true)
	if !m.GetShuffle() {
		t.Error("Shuffle should be on after SetShuffle(true)")
	}

	m.SetShuffle(false)
	if m.GetShuffle() {
		t.Error("Shuffle should be off after SetShuffle(false)")
	}
}

func TestRepeatGetSet(t *testing.T) {
	m := NewManager()

	if m.GetRepeat() != types.RepeatOff {
		t.Error("Repeat should be off by default")
	}

	m.SetRepeat(types.RepeatOne)
	if m.GetRepeat() != types.RepeatOne {
		t.Error("Repeat should be RepeatOne")
	}

	m.SetRepeat(types.RepeatAll)
	if m.GetRepeat() != types.RepeatAll {
		t.Error("Repeat should be RepeatAll")
	}
}

func TestShuffleOrder(t *testing.T) {
	m := NewManager()
	items := refs(1, 2, 3, 4, 5)
	m.Set(items)

	m.SetShuffle(true)

	visited := make(map[types.TrackID]bool)
	for i := 0; i < len(items); i++ {
		track, ok := m.Next()
		if !ok {
			t.Fatalf("Got false after %d Next() calls", i+1)
		}
		visited[track.TrackID] = true
	}

	if len(visited) != len(items) {
		t.Errorf("Expected %d unique tracks, got %d", len(items), len(visited))
	}
}

func TestShuffleMaintainsCurrentTrack(t *testing.T) {
	m := NewManager()
	m.Set(refs(1, 2, 3, 4))

	m.Next() // index 0
	m.Next() // index 1

	current, _ := m.Current()
	if current.TrackID != 2 {
		t.Fatalf("Expected track 2 before shuffle, got %+v", current)
	}

	m.SetShuffle(true)

	afterShuffle, _ := m.Current()
	if afterShuffle.TrackID != 2 {
		t.Errorf("Expected current track to stay as track 2, got %+v", afterShuffle)
	}
}

func TestShuffleDisableMaintainsCurrentTrack(t *testing.T) {
	m := NewManager()
	m.Set(refs(1, 2, 3, 4))

	m.Next() // index 0
	m.SetShuffle(true)
	m.Next() // random next

	current, ok := m.Current()
	if !ok {
		t.Fatal("Expected a current track")
	}

	m.SetShuffle(false)

	after, _ := m.Current()
	if after.TrackID != current.TrackID {
		t.Errorf("Expected current track to remain %+v, got %+v", current, after)
	}
}

func TestMove(t *testing.T) {
	m := NewManager()
	m.Set(refs(1, 2, 3))
	m.Next() // index 0

	if !m.Move(2, 0) {
		t.Error("Move should succeed")
	}

	items := m.GetItems()
	if items[0].TrackID != 3 {
		t.Errorf("Expected track 3 at index 0, got %+v", items[0])
	}
	if items[1].TrackID != 1 {
		t.Errorf("Expected track 1 at index 1, got %+v", items[1])
	}
	if items[2].TrackID != 2 {
		t.Errorf("Expected track 2 at index 2, got %+v", items[2])
	}
}

func TestMoveInvalidIndex(t *testing.T) {
	m := NewManager()
	m.Set(refs(1, 2))

	if m.Move(-1, 0) {
		t.Error("Move with negative from index should fail")
	}
	if m.Move(0, 5) {
		t.Error("Move with out-of-bounds to index should fail")
	}
}

func TestOnChange(t *testing.T) {
	m := NewManager()

	callCount := 0
	m.SetOnChange(func() {
		callCount++
	})

	m.Set(refs(1))
	if callCount != 1 {
		t.Errorf("Expected 1 onChange call after Set, got %d", callCount)
	}

	m.Next()
	if callCount != 2 {
		t.Errorf("Expected 2 onChange calls after Next, got %d", callCount)
	}

	m.SetRepeat(types.RepeatAll)
	if callCount != 3 {
		t.Errorf("Expected 3 onChange calls after SetRepeat, got %d", callCount)
	}
}

func TestTryGetSimilarTrack(t *testing.T) {
	m := NewManager()
	m.Set(refs(1))
	m.Next()
	m.SetContinueMode(types.ContinueSimilar)
	m.SetSimilarityProvider(func(trackID types.TrackID, exclude []types.TrackID) (types.TrackRef, bool) {
		if trackID != 1 {
			t.Errorf("expected last track 1, got %d", trackID)
		}
		return types.TrackRef{TrackID: 2, Path: "/path/2.mp3"}, true
	})

	track, ok := m.TryGetSimilarTrack()
	if !ok || track.TrackID != 2 {
		t.Errorf("expected track 2, got %+v ok=%v", track, ok)
	}
}

func TestTryGetSimilarTrackOffByDefault(t *testing.T) {
	m := NewManager()
	m.Set(refs(1))
	m.Next()
	m.SetSimilarityProvider(func(trackID types.TrackID, exclude []types.TrackID) (types.TrackRef, bool) {
		return types.TrackRef{TrackID: 2}, true
	})

	if _, ok := m.TryGetSimilarTrack(); ok {
		t.Error("expected no similar track when continue mode is off")
	}
}
