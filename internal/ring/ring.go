// Package ring provides a fixed-capacity FIFO buffer. Pushing beyond capacity
// evicts the oldest entry.
package ring

import "sort"

// Buffer is a bounded FIFO of values.
type Buffer[T any] struct {
	items    []T
	capacity int
}

// New creates a buffer holding at most capacity items. Capacity below 1 is
// treated as 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{capacity: capacity}
}

// Push appends v, evicting the oldest item when full.
func (b *Buffer[T]) Push(v T) {
	if len(b.items) == b.capacity {
		copy(b.items, b.items[1:])
		b.items[len(b.items)-1] = v
		return
	}
	b.items = append(b.items, v)
}

// Len returns the number of stored items.
func (b *Buffer[T]) Len() int { return len(b.items) }

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int { return b.capacity }

// Values returns a copy of the stored items, oldest first.
func (b *Buffer[T]) Values() []T {
	out := make([]T, len(b.items))
	copy(out, b.items)
	return out
}

// At returns the i-th oldest item.
func (b *Buffer[T]) At(i int) T { return b.items[i] }

// Clear removes all items.
func (b *Buffer[T]) Clear() { b.items = b.items[:0] }

// Median returns the median of values, averaging the two middle elements for
// even lengths. The second return is false for an empty slice.
func Median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}
