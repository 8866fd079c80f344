package frontier

import (
	"container/heap"
	"fmt"
)

// Order selects how queued pages are claimed.
type Order int

const (
	// OrderFIFO claims pages in admission order.
	OrderFIFO Order = iota

	// OrderPriority claims pages with a higher link score first,
	// falling back to admission order.
	OrderPriority
)

// String returns the order name used in configuration.
func (o Order) String() string {
	if o == OrderPriority {
		return "priority"
	}
	return "fifo"
}

// ParseOrder converts "fifo" or "priority" to an Order.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "fifo":
		return OrderFIFO, nil
	case "priority":
		return OrderPriority, nil
	default:
		return OrderFIFO, fmt.Errorf("unknown queue order %q", s)
	}
}

type pending struct {
	url   string
	score int
	seq   int
}

// pendingHeap implements heap.Interface over waiting pages.
type pendingHeap struct {
	items []pending
	order Order
}

func (h *pendingHeap) Len() int { return len(h.items) }

func (h *pendingHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if h.order == OrderPriority && a.score != b.score {
		return a.score > b.score
	}
	return a.seq < b.seq
}

func (h *pendingHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *pendingHeap) Push(x any) { h.items = append(h.items, x.(pending)) }

func (h *pendingHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

func (h *pendingHeap) push(p pending) { heap.Push(h, p) }

func (h *pendingHeap) pop() pending { return heap.Pop(h).(pending) }
