package dispatcher

import (
	"container/heap"

	domainquery "github.com/alanyang/interview-router/internal/domain/query"
)

type item struct {
	query domainquery.Query
	seq   uint64
}

// items orders by priority (highest first), then submission time, then
// enqueue sequence so equal timestamps stay FIFO.
type items []*item

func (h items) Len() int { return len(h) }

func (h items) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.query.Priority != b.query.Priority {
		return a.query.Priority > b.query.Priority
	}
	if !a.query.SubmittedAt.Equal(b.query.SubmittedAt) {
		return a.query.SubmittedAt.Before(b.query.SubmittedAt)
	}
	return a.seq < b.seq
}

func (h items) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *items) Push(x any) { *h = append(*h, x.(*item)) }

func (h *items) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// priorityQueue is not safe for concurrent use; Service guards it.
type priorityQueue struct {
	heap items
	seq  uint64
}

func (q *priorityQueue) push(query domainquery.Query) {
	q.seq++
	heap.Push(&q.heap, &item{query: query, seq: q.seq})
}

func (q *priorityQueue) pop() (domainquery.Query, bool) {
	if len(q.heap) == 0 {
		return domainquery.Query{}, false
	}
	return heap.Pop(&q.heap).(*item).query, true
}

func (q *priorityQueue) len() int { return len(q.heap) }
