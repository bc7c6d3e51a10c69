package utils

import (
	"sort"
	"sync"

	"alphatrak-observer/src/models"
)

// -----------------------------------------------------------------------------
// HistoryManager keeps the most recent cycle results of every pet in memory.
// -----------------------------------------------------------------------------

type HistoryManager struct {
	streams  map[int64]*RingBuffer[models.MCycleResult]
	capacity int
	mu       sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewHistoryManager(capacity int) *HistoryManager {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &HistoryManager{
		streams:  make(map[int64]*RingBuffer[models.MCycleResult]),
		capacity: capacity,
	}
}

// -----------------------------------------------------------------------------

func (hm *HistoryManager) Add(result models.MCycleResult) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	buf, ok := hm.streams[result.PetID]
	if !ok {
		buf = NewRingBuffer[models.MCycleResult](hm.capacity)
		hm.streams[result.PetID] = buf
	}
	buf.Append(result)
}

// -----------------------------------------------------------------------------

// Latest returns up to n newest results for a pet, newest first.
func (hm *HistoryManager) Latest(petID int64, n int) []models.MCycleResult {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	buf, ok := hm.streams[petID]
	if !ok {
		return []models.MCycleResult{}
	}
	items := buf.GetLatest(n)
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items
}

// -----------------------------------------------------------------------------

// LastSnapshot returns the newest successful snapshot for a pet, even when
// later cycles failed.
func (hm *HistoryManager) LastSnapshot(petID int64) (*models.MSnapshot, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	buf, ok := hm.streams[petID]
	if !ok {
		return nil, false
	}
	all := buf.GetAll()
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].OK() {
			return all[i].Snapshot, true
		}
	}
	return nil, false
}

// -----------------------------------------------------------------------------

// LatestAll returns the newest result of every pet.
func (hm *HistoryManager) LatestAll() map[int64]models.MCycleResult {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	out := make(map[int64]models.MCycleResult, len(hm.streams))
	for id, buf := range hm.streams {
		if last, ok := buf.Last(); ok {
			out[id] = last
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// PetIDs returns the pets with recorded history, ascending.
func (hm *HistoryManager) PetIDs() []int64 {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	ids := make([]int64, 0, len(hm.streams))
	for id := range hm.streams {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// -----------------------------------------------------------------------------

// Cleanup drops all history.
func (hm *HistoryManager) Cleanup() {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.streams = make(map[int64]*RingBuffer[models.MCycleResult])
}
