// Package queue provides the bounded heap used to collect top-k search hits.
package queue

// Item is a scored candidate. Higher Score is better.
type Item struct {
	ID    uint32
	Score float32
}

// TopK keeps the k highest-scoring items seen so far.
// Internally it is a min-heap on Score so the weakest survivor sits at the root.
type TopK struct {
	k     int
	items []Item
}

// NewTopK initializes a collector for the k best items.
func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	return &TopK{
		k:     k,
		items: make([]Item, 0, k),
	}
}

// Len returns the number of items currently held.
func (q *TopK) Len() int { return len(q.items) }

// Threshold returns the score an item must beat to be admitted once the
// collector is full. ok is false while there is still room.
func (q *TopK) Threshold() (score float32, ok bool) {
	if len(q.items) < q.k || len(q.items) == 0 {
		return 0, false
	}
	return q.items[0].Score, true
}

// Push offers an item. It reports whether the item was kept.
func (q *TopK) Push(id uint32, score float32) bool {
	if q.k == 0 {
		return false
	}
	if len(q.items) < q.k {
		q.items = append(q.items, Item{ID: id, Score: score})
		q.siftUp(len(q.items) - 1)
		return true
	}
	if score <= q.items[0].Score {
		return false
	}
	q.items[0] = Item{ID: id, Score: score}
	q.siftDown(0)
	return true
}

// Drain empties the collector and returns its items ordered by descending
// score. Equal scores are ordered by ascending ID.
func (q *TopK) Drain() []Item {
	out := make([]Item, len(q.items))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = q.pop()
	}
	return out
}

// less orders the heap so that the root is the item to evict first:
// the lowest score, and among equal scores the highest ID.
func (q *TopK) less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.ID > b.ID
}

func (q *TopK) pop() Item {
	n := len(q.items)
	root := q.items[0]
	q.items[0] = q.items[n-1]
	q.items = q.items[:n-1]
	if len(q.items) > 0 {
		q.siftDown(0)
	}
	return root
}

func (q *TopK) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.less(i, p) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *TopK) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && q.less(r, l) {
			best = r
		}
		if !q.less(best, i) {
			return
		}
		q.items[i], q.items[best] = q.items[best], q.items[i]
		i = best
	}
}
