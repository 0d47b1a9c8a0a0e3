package channel

import "slices"

// queue is an ordered list of voice indices into the allocator pool.
// Moving a voice between queues is a remove from one and a push onto the
// other.
type queue []int

func (q *queue) push(idx int) {
	*q = append(*q, idx)
}

// removeAt deletes position i and returns the voice index stored there.
func (q *queue) removeAt(i int) int {
	idx := (*q)[i]
	*q = slices.Delete(*q, i, i+1)
	return idx
}

// moveAll appends every index of q to dst and empties q.
func (q *queue) moveAll(dst *queue) {
	*dst = append(*dst, *q...)
	*q = (*q)[:0]
}

func (q queue) snapshot() []int {
	return slices.Clone([]int(q))
}
