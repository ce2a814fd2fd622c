// Package queue manages the gapless playback queue.
package queue

import (
	"math/rand"
	"sync"
	"time"

	"github.com/matiaszanolli/auralis/core/internal/types"
)

// ChangeCallback is called when the queue state changes.
type ChangeCallback func()

// SimilarityProvider resolves a similar track to continue playback with when
// continue mode is ContinueSimilar and the queue is exhausted (spec §3.4).
// exclude lists recently played track IDs that should not be chosen again.
type SimilarityProvider func(trackID types.TrackID, exclude []types.TrackID) (types.TrackRef, bool)

// Manager manages the playback queue: ordering, shuffle, repeat, and
// continue-on-exhaustion behavior.
type Manager struct {
	mu           sync.RWMutex
	items        []types.TrackRef
	index        int // current position in items (or shuffleOrder if shuffled)
	shuffle      bool
	shuffleOrder []int // shuffled indices into items
	repeat       types.RepeatMode
	rng          *rand.Rand
	onChange     ChangeCallback

	continueMode       types.ContinueMode
	recentlyPlayed     []types.TrackID
	maxRecentlyPlayed  int
	similarityProvider SimilarityProvider
}

// NewManager creates a new, empty queue manager.
func NewManager() *Manager {
	return &Manager{
		items:             make([]types.TrackRef, 0),
		index:             -1,
		repeat:            types.RepeatOff,
		shuffleOrder:      make([]int, 0),
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
		continueMode:      types.ContinueOff,
		recentlyPlayed:    make([]types.TrackID, 0),
		maxRecentlyPlayed: 50,
	}
}

// SetOnChange sets a callback to be called when the queue state changes.
func (m *Manager) SetOnChange(callback ChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = callback
}

// notifyChange calls the onChange callback if set. Must be called without
// the lock held.
func (m *Manager) notifyChange() {
	m.mu.RLock()
	callback := m.onChange
	m.mu.RUnlock()
	if callback != nil {
		callback()
	}
}

// Set replaces the entire queue with new tracks.
func (m *Manager) Set(items []types.TrackRef) {
	m.mu.Lock()

	m.items = make([]types.TrackRef, len(items))
	copy(m.items, items)
	m.index = -1

	if m.shuffle {
		m.generateShuffleOrder()
	}

	m.mu.Unlock()
	m.notifyChange()
}

// Append adds tracks to the end of the queue.
func (m *Manager) Append(items []types.TrackRef) {
	m.mu.Lock()

	m.items = append(m.items, items...)

	if m.shuffle {
		m.appendToShuffleOrder(len(items))
	}

	m.mu.Unlock()
	m.notifyChange()
}

// appendToShuffleOrder adds new item indices to the shuffle order at random
// positions after the current one.
func (m *Manager) appendToShuffleOrder(count int) {
	startIdx := len(m.items) - count
	for i := 0; i < count; i++ {
		newIdx := startIdx + i
		insertPos := m.index + 1 + m.rng.Intn(len(m.shuffleOrder)-m.index)
		if insertPos > len(m.shuffleOrder) {
			insertPos = len(m.shuffleOrder)
		}
		m.shuffleOrder = append(m.shuffleOrder[:insertPos], append([]int{newIdx}, m.shuffleOrder[insertPos:]...)...)
	}
}

// Clear empties the queue.
func (m *Manager) Clear() {
	m.mu.Lock()

	m.items = make([]types.TrackRef, 0)
	m.shuffleOrder = make([]int, 0)
	m.index = -1

	m.mu.Unlock()
	m.notifyChange()
}

// Next moves to the next track and returns it.
func (m *Manager) Next() (types.TrackRef, bool) {
	m.mu.Lock()

	if len(m.items) == 0 {
		m.mu.Unlock()
		return types.TrackRef{}, false
	}

	if m.repeat == types.RepeatOne && m.index >= 0 {
		itemIdx := m.getItemIndex(m.index)
		if itemIdx >= 0 && itemIdx < len(m.items) {
			item := m.items[itemIdx]
			m.mu.Unlock()
			return item, true
		}
	}

	m.index++

	maxIndex := m.getMaxIndex()
	if m.index >= maxIndex {
		if m.repeat == types.RepeatAll {
			m.index = 0
			if m.shuffle {
				m.generateShuffleOrder()
			}
		} else {
			m.index = maxIndex - 1
			m.mu.Unlock()
			return types.TrackRef{}, false
		}
	}

	itemIdx := m.getItemIndex(m.index)
	if itemIdx < 0 || itemIdx >= len(m.items) {
		m.mu.Unlock()
		return types.TrackRef{}, false
	}
	item := m.items[itemIdx]
	m.mu.Unlock()
	m.notifyChange()
	return item, true
}

// Prev moves to the previous track and returns it.
func (m *Manager) Prev() (types.TrackRef, bool) {
	m.mu.Lock()

	if len(m.items) == 0 {
		m.mu.Unlock()
		return types.TrackRef{}, false
	}

	if m.repeat == types.RepeatOne && m.index >= 0 {
		itemIdx := m.getItemIndex(m.index)
		if itemIdx >= 0 && itemIdx < len(m.items) {
			item := m.items[itemIdx]
			m.mu.Unlock()
			return item, true
		}
	}

	m.index--

	if m.index < 0 {
		if m.repeat == types.RepeatAll {
			m.index = m.getMaxIndex() - 1
		} else {
			m.index = 0
			m.mu.Unlock()
			return types.TrackRef{}, false
		}
	}

	itemIdx := m.getItemIndex(m.index)
	if itemIdx < 0 || itemIdx >= len(m.items) {
		m.mu.Unlock()
		return types.TrackRef{}, false
	}
	item := m.items[itemIdx]
	m.mu.Unlock()
	m.notifyChange()
	return item, true
}

// getItemIndex returns the actual item index for the given position index.
// If shuffle is enabled, it looks up the shuffled order.
func (m *Manager) getItemIndex(posIndex int) int {
	if !m.shuffle || len(m.shuffleOrder) == 0 {
		return posIndex
	}
	if posIndex < 0 || posIndex >= len(m.shuffleOrder) {
		return -1
	}
	return m.shuffleOrder[posIndex]
}

// getMaxIndex returns the maximum valid index.
func (m *Manager) getMaxIndex() int {
	if m.shuffle && len(m.shuffleOrder) > 0 {
		return len(m.shuffleOrder)
	}
	return len(m.items)
}

// generateShuffleOrder creates a new shuffled order of indices.
func (m *Manager) generateShuffleOrder() {
	n := len(m.items)
	m.shuffleOrder = make([]int, n)
	for i := 0; i < n; i++ {
		m.shuffleOrder[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := m.rng.Intn(i + 1)
		m.shuffleOrder[i], m.shuffleOrder[j] = m.shuffleOrder[j], m.shuffleOrder[i]
	}
}

// Current returns the current track.
func (m *Manager) Current() (types.TrackRef, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.index < 0 {
		return types.TrackRef{}, false
	}

	itemIdx := m.getItemIndex(m.index)
	if itemIdx < 0 || itemIdx >= len(m.items) {
		return types.TrackRef{}, false
	}

	return m.items[itemIdx], true
}

// SetIndex sets the current queue index.
func (m *Manager) SetIndex(index int) bool {
	m.mu.Lock()

	if index < 0 || index >= len(m.items) {
		m.mu.Unlock()
		return false
	}

	m.index = index
	m.mu.Unlock()
	m.notifyChange()
	return true
}

// Position returns the current index and queue size.
func (m *Manager) Position() (int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.index, len(m.items)
}

// GetItems returns all items in the queue.
func (m *Manager) GetItems() []types.TrackRef {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]types.TrackRef, len(m.items))
	copy(items, m.items)
	return items
}

// SetShuffle enables or disables shuffle mode.
func (m *Manager) SetShuffle(enabled bool) {
	m.mu.Lock()

	wasEnabled := m.shuffle
	m.shuffle = enabled

	if enabled && !wasEnabled {
		m.generateShuffleOrder()

		if m.index >= 0 && m.index < len(m.items) {
			currentItemIdx := m.index
			for i, idx := range m.shuffleOrder {
				if idx == currentItemIdx {
					m.shuffleOrder[0], m.shuffleOrder[i] = m.shuffleOrder[i], m.shuffleOrder[0]
					break
				}
			}
			m.index = 0
		}
	} else if !enabled && wasEnabled {
		if m.index >= 0 && m.index < len(m.shuffleOrder) {
			m.index = m.shuffleOrder[m.index]
		}
		m.shuffleOrder = nil
	}

	m.mu.Unlock()
	m.notifyChange()
}

// GetShuffle returns whether shuffle is enabled.
func (m *Manager) GetShuffle() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.shuffle
}

// SetRepeat sets the repeat mode.
func (m *Manager) SetRepeat(mode types.RepeatMode) {
	m.mu.Lock()
	m.repeat = mode
	m.mu.Unlock()
	m.notifyChange()
}

// GetRepeat returns the current repeat mode.
func (m *Manager) GetRepeat() types.RepeatMode {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.repeat
}

// Remove removes an item at the specified actual item index (not shuffle
// position).
func (m *Manager) Remove(index int) bool {
	m.mu.Lock()

	if index < 0 || index >= len(m.items) {
		m.mu.Unlock()
		return false
	}

	m.items = append(m.items[:index], m.items[index+1:]...)

	if m.shuffle && len(m.shuffleOrder) > 0 {
		newOrder := make([]int, 0, len(m.shuffleOrder)-1)
		removedPos := -1
		for i, idx := range m.shuffleOrder {
			if idx == index {
				removedPos = i
				continue
			}
			if idx > index {
				newOrder = append(newOrder, idx-1)
			} else {
				newOrder = append(newOrder, idx)
			}
		}
		m.shuffleOrder = newOrder

		if removedPos >= 0 && removedPos < m.index {
			m.index--
		} else if removedPos == m.index && m.index >= len(m.shuffleOrder) {
			m.index = len(m.shuffleOrder) - 1
		}
	} else {
		if index < m.index {
			m.index--
		} else if index == m.index {
			if m.index >= len(m.items) {
				m.index = len(m.items) - 1
			}
		}
	}

	m.mu.Unlock()
	m.notifyChange()
	return true
}

// Insert inserts a track at the specified actual item index (not shuffle
// position).
func (m *Manager) Insert(index int, item types.TrackRef) bool {
	m.mu.Lock()

	if index < 0 || index > len(m.items) {
		m.mu.Unlock()
		return false
	}

	m.items = append(m.items[:index], append([]types.TrackRef{item}, m.items[index:]...)...)

	if m.shuffle && len(m.shuffleOrder) > 0 {
		for i := range m.shuffleOrder {
			if m.shuffleOrder[i] >= index {
				m.shuffleOrder[i]++
			}
		}
		insertPos := m.index + 1 + m.rng.Intn(len(m.shuffleOrder)-m.index)
		if insertPos > len(m.shuffleOrder) {
			insertPos = len(m.shuffleOrder)
		}
		m.shuffleOrder = append(m.shuffleOrder[:insertPos], append([]int{index}, m.shuffleOrder[insertPos:]...)...)
	} else {
		if index <= m.index {
			m.index++
		}
	}

	m.mu.Unlock()
	m.notifyChange()
	return true
}

// Move moves an item from one index to another.
func (m *Manager) Move(fromIndex, toIndex int) bool {
	m.mu.Lock()

	if fromIndex < 0 || fromIndex >= len(m.items) {
		m.mu.Unlock()
		return false
	}
	if toIndex < 0 || toIndex >= len(m.items) {
		m.mu.Unlock()
		return false
	}
	if fromIndex == toIndex {
		m.mu.Unlock()
		return true
	}

	item := m.items[fromIndex]
	m.items = append(m.items[:fromIndex], m.items[fromIndex+1:]...)

	if toIndex > fromIndex {
		toIndex--
	}
	m.items = append(m.items[:toIndex], append([]types.TrackRef{item}, m.items[toIndex:]...)...)

	if !m.shuffle {
		if m.index == fromIndex {
			m.index = toIndex
		} else if fromIndex < m.index && toIndex >= m.index {
			m.index--
		} else if fromIndex > m.index && toIndex <= m.index {
			m.index++
		}
	}

	m.mu.Unlock()
	m.notifyChange()
	return true
}

// SetContinueMode sets the queue continuation mode.
func (m *Manager) SetContinueMode(mode types.ContinueMode) {
	m.mu.Lock()
	m.continueMode = mode
	m.mu.Unlock()
	m.notifyChange()
}

// GetContinueMode returns the current continue mode.
func (m *Manager) GetContinueMode() types.ContinueMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.continueMode
}

// SetSimilarityProvider sets the function used to find similar tracks.
func (m *Manager) SetSimilarityProvider(provider SimilarityProvider) {
	m.mu.Lock()
	m.similarityProvider = provider
	m.mu.Unlock()
}

// AddToRecentlyPlayed adds a track ID to the recently played list.
func (m *Manager) AddToRecentlyPlayed(trackID types.TrackID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.recentlyPlayed {
		if id == trackID {
			return
		}
	}

	m.recentlyPlayed = append(m.recentlyPlayed, trackID)

	if len(m.recentlyPlayed) > m.maxRecentlyPlayed {
		m.recentlyPlayed = m.recentlyPlayed[len(m.recentlyPlayed)-m.maxRecentlyPlayed:]
	}
}

// GetRecentlyPlayed returns the list of recently played track IDs.
func (m *Manager) GetRecentlyPlayed() []types.TrackID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]types.TrackID, len(m.recentlyPlayed))
	copy(result, m.recentlyPlayed)
	return result
}

// ClearRecentlyPlayed clears the recently played list.
func (m *Manager) ClearRecentlyPlayed() {
	m.mu.Lock()
	m.recentlyPlayed = make([]types.TrackID, 0)
	m.mu.Unlock()
}

// SetMaxRecentlyPlayed sets the maximum number of tracks kept in history.
func (m *Manager) SetMaxRecentlyPlayed(max int) {
	m.mu.Lock()
	m.maxRecentlyPlayed = max
	if len(m.recentlyPlayed) > max {
		m.recentlyPlayed = m.recentlyPlayed[len(m.recentlyPlayed)-max:]
	}
	m.mu.Unlock()
}

// TryGetSimilarTrack attempts to resolve a similar track when the queue is
// exhausted and continue mode is ContinueSimilar. Returns ok=false if no
// similar track is found or continue mode is off.
func (m *Manager) TryGetSimilarTrack() (types.TrackRef, bool) {
	m.mu.RLock()
	mode := m.continueMode
	provider := m.similarityProvider
	var lastTrack types.TrackID
	haveLast := false
	if m.index >= 0 && len(m.items) > 0 {
		itemIdx := m.getItemIndex(m.index)
		if itemIdx >= 0 && itemIdx < len(m.items) {
			lastTrack = m.items[itemIdx].TrackID
			haveLast = true
		}
	}
	exclude := make([]types.TrackID, len(m.recentlyPlayed))
	copy(exclude, m.recentlyPlayed)
	m.mu.RUnlock()

	if mode != types.ContinueSimilar || provider == nil || !haveLast {
		return types.TrackRef{}, false
	}

	return provider(lastTrack, exclude)
}
