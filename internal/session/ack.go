package session

import (
	"container/list"
	"sync"
)

// AckTracker remembers the highest ack level seen per message id so that a
// late, lower ack never moves a message backwards. It holds at most size
// ids and forgets the least recently touched one first.
type AckTracker struct {
	mu    sync.Mutex
	size  int
	order *list.List // least recently touched at front
	items map[string]*list.Element
}

type ackEntry struct {
	id    string
	level int
}

// NewAckTracker creates a tracker holding up to size message ids
func NewAckTracker(size int) *AckTracker {
	if size < 1 {
		size = 1
	}
	return &AckTracker{
		size:  size,
		order: list.New(),
		items: make(map[string]*list.Element),
	}
}

// Observe records level for id and returns the effective level, which is
// the maximum observed so far.
func (t *AckTracker) Observe(id string, level int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.items[id]; ok {
		entry := el.Value.(*ackEntry)
		entry.level = max(entry.level, level)
		t.order.MoveToBack(el)
		return entry.level
	}

	for t.order.Len() >= t.size {
		oldest := t.order.Front()
		delete(t.items, oldest.Value.(*ackEntry).id)
		t.order.Remove(oldest)
	}
	t.items[id] = t.order.PushBack(&ackEntry{id: id, level: level})
	return level
}

// Len returns the number of tracked ids
func (t *AckTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Len()
}
