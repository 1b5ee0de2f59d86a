package service

import (
	"sync"

	"mediarelay/internal/models"
)

// PendingQueue is the shared FIFO of captured items. All mutation goes
// through its lock so an append from the read loop can never be lost to a
// concurrent snapshot-then-replace by the scheduler or a manual dispatch.
type PendingQueue struct {
	mu    sync.Mutex
	items []*models.PendingItem
}

func NewPendingQueue() *PendingQueue {
	return &PendingQueue{}
}

// Append adds an item at the tail (arrival order).
func (q *PendingQueue) Append(item *models.PendingItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// Restore replaces the queue contents, used when loading a snapshot.
func (q *PendingQueue) Restore(items []*models.PendingItem) {
	q.mu.Lock()
	q.items = append([]*models.PendingItem{}, items...)
	q.mu.Unlock()
}

// Snapshot returns a copy of the current queue in arrival order.
func (q *PendingQueue) Snapshot() []*models.PendingItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*models.PendingItem{}, q.items...)
}

// Len returns the total queue depth.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// CountWhere returns the number of items matching the predicate.
func (q *PendingQueue) CountWhere(match func(*models.PendingItem) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	count := 0
	for _, item := range q.items {
		if match(item) {
			count++
		}
	}
	return count
}

// OldestWhere returns up to limit matching items, oldest first.
func (q *PendingQueue) OldestWhere(match func(*models.PendingItem) bool, limit int) []*models.PendingItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*models.PendingItem
	for _, item := range q.items {
		if match(item) {
			out = append(out, item)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

// GetByIDs returns the queued items with the given ids, in arrival order.
func (q *PendingQueue) GetByIDs(ids []string) []*models.PendingItem {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*models.PendingItem
	for _, item := range q.items {
		if want[item.ID] {
			out = append(out, item)
		}
	}
	return out
}

// RemoveIDs deletes the given items and returns how many were removed.
func (q *PendingQueue) RemoveIDs(ids map[string]struct{}) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0]
	removed := 0
	for _, item := range q.items {
		if _, gone := ids[item.ID]; gone {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	q.items = kept
	return removed
}

// Clear empties the queue and returns the number of discarded items.
func (q *PendingQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

func matchBatchableMedia(item *models.PendingItem) bool {
	return item.Kind.IsBatchableMedia()
}

func matchForward(item *models.PendingItem) bool {
	return item.Kind == models.ItemKindForward
}

func idSet(items []*models.PendingItem) map[string]struct{} {
	ids := make(map[string]struct{}, len(items))
	for _, item := range items {
		ids[item.ID] = struct{}{}
	}
	return ids
}
