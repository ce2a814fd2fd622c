package queue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matiaszanolli/auralis/core/internal/types"
)

func TestStoreLoadSaveRoundtrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "queue_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	m := NewManager()
	m.Set(refs(1, 2, 3))
	m.Next() // index 0
	m.Next() // index 1
	m.SetRepeat(types.RepeatAll)

	store := NewStore(tmpDir, m)
	if err := store.Save(); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	queueFile := filepath.Join(tmpDir, "queue.json")
	if _, err := os.Stat(queueFile); os.IsNotExist(err) {
		t.Fatal("Queue file was not created")
	}

	m2 := NewManager()
	store2 := NewStore(tmpDir, m2)
	if err := store2.Load(); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	idx, size := m2.Position()
	if size != 3 {
		t.Errorf("Expected size 3, got %d", size)
	}
	if idx != 1 {
		t.Errorf("Expected index 1, got %d", idx)
	}
	if m2.GetRepeat() != types.RepeatAll {
		t.Error("Expected RepeatAll mode")
	}
}

func TestStoreLoadSaveWithShuffle(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "queue_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	m := NewManager()
	m.Set(refs(1, 2, 3))
	m.Next()           // index 0
	m.Next()           // index 1 (on track 2)
	m.SetShuffle(true) // current track moved to position 0 in shuffle

	currentTrack, _ := m.Current()

	store := NewStore(tmpDir, m)
	if err := store.Save(); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	m2 := NewManager()
	store2 := NewStore(tmpDir, m2)
	if err := store2.Load(); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if !m2.GetShuffle() {
		t.Error("Expected shuffle enabled")
	}

	loadedTrack, _ := m2.Current()
	if loadedTrack.TrackID != currentTrack.TrackID {
		t.Errorf("Expected current track %+v, got %+v", currentTrack, loadedTrack)
	}
}

func TestStoreLoadMissingFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "queue_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	m := NewManager()
	store := NewStore(tmpDir, m)

	if err := store.Load(); err != nil {
		t.Errorf("Load with missing file should not error, got: %v", err)
	}

	_, size := m.Position()
	if size != 0 {
		t.Errorf("Expected empty queue, got size %d", size)
	}
}

func TestStoreLoadCorruptFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "queue_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	queueFile := filepath.Join(tmpDir, "queue.json")
	if err := os.WriteFile(queueFile, []byte("not valid json"), 0600); err != nil {
		t.Fatalf("Failed to write corrupt file: %v", err)
	}

	m := NewManager()
	store := NewStore(tmpDir, m)

	if err := store.Load(); err == nil {
		t.Error("Load with corrupt file should return error")
	}
}

func TestStoreSaveWithMetadata(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "queue_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	m := NewManager()
	m.Set([]types.TrackRef{
		{TrackID: 1, Path: "/path/1.mp3", Metadata: &types.TrackMetadata{Title: "Track 1", Artist: "Artist 1"}},
		{TrackID: 2, Path: "/path/2.mp3", Metadata: &types.TrackMetadata{Title: "Track 2", Artist: "Artist 2"}},
	})
	m.Next()

	store := NewStore(tmpDir, m)
	if err := store.Save(); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	m2 := NewManager()
	store2 := NewStore(tmpDir, m2)
	if err := store2.Load(); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	items := m2.GetItems()
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}

	if items[0].Metadata == nil || items[0].Metadata.Title != "Track 1" {
		t.Error("Expected metadata to be preserved")
	}
}
