package escalation

import (
	"container/heap"
	"sort"
	"sync"
	"time"
)

// QueuedEscalation is a conversation waiting for a human agent.
type QueuedEscalation struct {
	ConversationID string    `json:"conversation_id"`
	Context        Context   `json:"context"`
	Priority       int       `json:"priority"`
	EnqueuedAt     time.Time `json:"enqueued_at"`

	seq   uint64
	index int
}

func before(a, b *QueuedEscalation) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.EnqueuedAt.Equal(b.EnqueuedAt) {
		return a.EnqueuedAt.Before(b.EnqueuedAt)
	}
	return a.seq < b.seq
}

type itemHeap []*QueuedEscalation

func (h itemHeap) Len() int           { return len(h) }
func (h itemHeap) Less(i, j int) bool { return before(h[i], h[j]) }
func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap) Push(x any) {
	it := x.(*QueuedEscalation)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Queue orders waiting conversations by priority, then arrival. All
// methods are safe for concurrent use and hand out copies.
type Queue struct {
	mu    sync.Mutex
	items itemHeap
	byID  map[string]*QueuedEscalation
	seq   uint64
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{byID: make(map[string]*QueuedEscalation)}
}

// Push enqueues item and returns its 1-based position. A conversation already
// queued keeps its place and false is returned.
func (q *Queue) Push(item QueuedEscalation) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.byID[item.ConversationID]; ok {
		return q.positionLocked(item.ConversationID), false
	}
	q.seq++
	it := item
	it.seq = q.seq
	heap.Push(&q.items, &it)
	q.byID[it.ConversationID] = &it
	return q.positionLocked(it.ConversationID), true
}

// Peek returns the head without removing it.
func (q *Queue) Peek() (QueuedEscalation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return QueuedEscalation{}, false
	}
	return *q.items[0], true
}

// Remove drops the conversation from the queue.
func (q *Queue) Remove(conversationID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.byID[conversationID]
	if !ok {
		return false
	}
	heap.Remove(&q.items, it.index)
	delete(q.byID, conversationID)
	return true
}

// Position returns the 1-based position of a queued conversation.
func (q *Queue) Position(conversationID string) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.byID[conversationID]; !ok {
		return 0, false
	}
	return q.positionLocked(conversationID), true
}

func (q *Queue) positionLocked(conversationID string) int {
	target := q.byID[conversationID]
	pos := 1
	for _, it := range q.items {
		if it != target && before(it, target) {
			pos++
		}
	}
	return pos
}

// Len returns the number of queued conversations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Sorted returns a copy of the queue in service order.
func (q *Queue) Sorted() []QueuedEscalation {
	q.mu.Lock()
	out := make([]QueuedEscalation, len(q.items))
	for i, it := range q.items {
		out[i] = *it
	}
	q.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return before(&out[i], &out[j]) })
	return out
}
