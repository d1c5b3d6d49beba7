package broker

import (
	"container/heap"

	"github.com/mcbe-gateway/agent-gateway/pkg/models"
)

// envelopeHeap orders models.RequestEnvelope by (Priority asc, Sequence asc),
// giving the broker a strict total order.
type envelopeHeap []models.RequestEnvelope

func (h envelopeHeap) Len() int { return len(h) }

func (h envelopeHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].Sequence < h[j].Sequence
}

func (h envelopeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *envelopeHeap) Push(x any) {
	*h = append(*h, x.(models.RequestEnvelope))
}

func (h *envelopeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*envelopeHeap)(nil)
