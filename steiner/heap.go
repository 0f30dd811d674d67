package steiner

import "container/heap"

// saturationItem is one scheduled edge saturation event. Tie-break is
// earliest time, then lowest edge index (spec.md §5's determinism
// requirement); times are never NaN so a plain < comparison gives a total
// order.
type saturationItem struct {
	edge  int
	time  float64
	index int // maintained by heap.Interface
}

// saturationPQ implements heap.Interface for a min-heap of saturationItem,
// generalising the teacher's dijkstraPQ (federation/graph/weighted_graph.go)
// with decrease-key support via an edge->index map, since Greedy FLAC needs
// to lower an already-scheduled edge's saturation time in place
// (original_source's heap.change_priority_by).
type saturationPQ struct {
	items   []*saturationItem
	indexOf map[int]int // edge -> position in items
}

func newSaturationPQ() *saturationPQ {
	return &saturationPQ{indexOf: map[int]int{}}
}

func (pq saturationPQ) Len() int { return len(pq.items) }

func (pq saturationPQ) Less(i, j int) bool {
	a, b := pq.items[i], pq.items[j]
	if a.time != b.time {
		return a.time < b.time
	}
	return a.edge < b.edge
}

func (pq saturationPQ) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
	pq.items[i].index = i
	pq.items[j].index = j
	pq.indexOf[pq.items[i].edge] = i
	pq.indexOf[pq.items[j].edge] = j
}

func (pq *saturationPQ) Push(x any) {
	item := x.(*saturationItem)
	item.index = len(pq.items)
	pq.indexOf[item.edge] = item.index
	pq.items = append(pq.items, item)
}

func (pq *saturationPQ) Pop() any {
	old := pq.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	delete(pq.indexOf, item.edge)
	pq.items = old[:n-1]
	return item
}

func (pq *saturationPQ) push(edge int, time float64) {
	heap.Push(pq, &saturationItem{edge: edge, time: time})
}

func (pq *saturationPQ) pop() (edge int, time float64, ok bool) {
	if pq.Len() == 0 {
		return 0, 0, false
	}
	item := heap.Pop(pq).(*saturationItem)
	return item.edge, item.time, true
}

// decreaseTime lowers the scheduled saturation time of an edge already in
// the queue and restores heap order. newTime must be <= the edge's current
// time (Greedy FLAC only ever accelerates a saturation, never delays one).
func (pq *saturationPQ) decreaseTime(edge int, newTime float64) {
	idx, ok := pq.indexOf[edge]
	if !ok {
		return
	}
	pq.items[idx].time = newTime
	heap.Fix(pq, idx)
}

func (pq *saturationPQ) clear() {
	pq.items = pq.items[:0]
	for k := range pq.indexOf {
		delete(pq.indexOf, k)
	}
}
