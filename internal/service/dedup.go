package service

import (
	"container/list"
	"sync"

	"mediarelay/internal/constants"
)

// DedupLedger is a bounded, insertion-ordered set of content fingerprints.
// Inserting beyond capacity evicts the oldest entry, so a long-evicted
// fingerprint may be captured again; that is the accepted bounded-memory
// trade-off, not a no-duplicates guarantee.
type DedupLedger struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

func NewDedupLedger(capacity int) *DedupLedger {
	if capacity <= 0 {
		capacity = constants.DefaultDedupCapacity
	}
	return &DedupLedger{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Contains reports whether a fingerprint is currently present.
func (l *DedupLedger) Contains(fingerprint string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.index[fingerprint]
	return ok
}

// Insert adds a fingerprint. It returns false when the fingerprint was
// already present; the entry's age is not refreshed in that case.
func (l *DedupLedger) Insert(fingerprint string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.index[fingerprint]; ok {
		return false
	}

	l.index[fingerprint] = l.order.PushBack(fingerprint)
	for l.order.Len() > l.capacity {
		oldest := l.order.Front()
		l.order.Remove(oldest)
		delete(l.index, oldest.Value.(string))
	}
	return true
}

// Entries returns all fingerprints, oldest first, for snapshotting.
func (l *DedupLedger) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, l.order.Len())
	for e := l.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(string))
	}
	return out
}

// Restore replaces the ledger contents from a snapshot, oldest first.
// Capacity is enforced, so an oversized snapshot keeps its newest entries.
func (l *DedupLedger) Restore(fingerprints []string) {
	l.mu.Lock()
	l.order.Init()
	l.index = make(map[string]*list.Element, len(fingerprints))
	l.mu.Unlock()

	for _, fp := range fingerprints {
		l.Insert(fp)
	}
}

// Len returns the number of fingerprints currently held.
func (l *DedupLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}
