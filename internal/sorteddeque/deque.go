// Package sorteddeque implements a key-sorted, bounded double-ended sequence.
//
// Items are appended at the tail only, with strictly increasing keys, and the
// oldest items fall off the head once the configured capacity is exceeded.
// Lookups binary-search the key ring, so locating an element is O(log n) and
// extracting k elements is O(k).
//
// A Deque is not safe for concurrent use. The stream package guards it with a
// reader/writer lock and only hands the read-only View to reader scopes.
package sorteddeque

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/exp/constraints"
)

var (
	// ErrOrderViolation is returned by Append when the item key is not greater
	// than the key of the current last item.
	ErrOrderViolation = errors.New("streambuffer: item key must be greater than last key")

	// ErrNotFound is returned by lookups that have no qualifying item.
	ErrNotFound = errors.New("streambuffer: no item found")
)

// minGrow is the first allocation size of an empty ring.
const minGrow = 8

// View is the read-only surface of a Deque.
type View[K constraints.Ordered, T any] interface {
	Len() int
	MaxLen() int
	Key(item T) K

	At(i int) (T, bool)
	KeyAt(i int) (K, bool)
	First() (T, bool)
	Last() (T, bool)

	Find(k K) (T, error)
	FindGT(k K) (T, error)
	FindGE(k K) (T, error)
	FindLT(k K) (T, error)
	FindLE(k K) (T, error)
	FindLastGT(k K) (T, error)

	SearchEQ(k K) (int, bool)
	SearchGT(k K) (int, bool)
	SearchGE(k K) (int, bool)
	SearchLT(k K) (int, bool)
	SearchLE(k K) (int, bool)

	IndexOf(item T) (int, error)
	Contains(k K) bool
	RangeByKey(start, stop K, step int) []T
	RangeByIndex(i, j, step int) []T
	Items() []T
	Keys() []K
}

var _ View[int, string] = (*Deque[int, string])(nil)

// Deque is a ring of (key, item) pairs sorted ascending by key.
type Deque[K constraints.Ordered, T any] struct {
	key    func(T) K
	maxLen int

	keys  []K
	items []T
	head  int
	n     int

	evicted uint64
}

// New creates a Deque ordered by key. maxLen <= 0 means unbounded.
// The optional items are appended in order and must have increasing keys.
func New[K constraints.Ordered, T any](key func(T) K, maxLen int, items ...T) (*Deque[K, T], error) {
	if key == nil {
		return nil, fmt.Errorf("sorteddeque: key function is required")
	}
	if maxLen < 0 {
		maxLen = 0
	}

	d := &Deque[K, T]{key: key, maxLen: maxLen}
	for _, item := range items {
		if err := d.Append(item); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Len returns the number of items currently held.
func (d *Deque[K, T]) Len() int { return d.n }

// MaxLen returns the capacity, 0 when unbounded.
func (d *Deque[K, T]) MaxLen() int { return d.maxLen }

// Key derives the ordering key of item.
func (d *Deque[K, T]) Key(item T) K { return d.key(item) }

// Evicted returns how many items were pushed off the head by Append.
func (d *Deque[K, T]) Evicted() uint64 { return d.evicted }

// Append adds item at the tail. If the deque is full the oldest item is
// evicted. The deque is unchanged when the key is out of order.
func (d *Deque[K, T]) Append(item T) error {
	k := d.key(item)
	if d.n > 0 {
		last := d.keys[d.phys(d.n-1)]
		if k <= last {
			return fmt.Errorf("%w: %v <= %v", ErrOrderViolation, k, last)
		}
	}

	if d.maxLen > 0 && d.n == d.maxLen {
		d.popHead()
		d.evicted++
	}
	if d.n == len(d.keys) {
		d.grow()
	}

	i := d.phys(d.n)
	d.keys[i] = k
	d.items[i] = item
	d.n++
	return nil
}

// Drop removes up to n items from the head and returns how many were removed.
func (d *Deque[K, T]) Drop(n int) int {
	if n > d.n {
		n = d.n
	}
	for i := 0; i < n; i++ {
		d.popHead()
	}
	if n < 0 {
		return 0
	}
	return n
}

// Clear removes every item. Capacity and the eviction counter are kept.
func (d *Deque[K, T]) Clear() {
	d.Drop(d.n)
	d.head = 0
}

// At returns the item at logical position i (0 is the oldest).
func (d *Deque[K, T]) At(i int) (T, bool) {
	if i < 0 || i >= d.n {
		var zero T
		return zero, false
	}
	return d.items[d.phys(i)], true
}

// KeyAt returns the key at logical position i.
func (d *Deque[K, T]) KeyAt(i int) (K, bool) {
	if i < 0 || i >= d.n {
		var zero K
		return zero, false
	}
	return d.keys[d.phys(i)], true
}

// First returns the oldest item.
func (d *Deque[K, T]) First() (T, bool) { return d.At(0) }

// Last returns the newest item.
func (d *Deque[K, T]) Last() (T, bool) { return d.At(d.n - 1) }

// SearchEQ returns the position of the item whose key equals k.
func (d *Deque[K, T]) SearchEQ(k K) (int, bool) {
	i := d.bisectLeft(k)
	if i < d.n && d.keys[d.phys(i)] == k {
		return i, true
	}
	return -1, false
}

// SearchGT returns the position of the first item with key > k.
func (d *Deque[K, T]) SearchGT(k K) (int, bool) {
	i := d.bisectRight(k)
	if i < d.n {
		return i, true
	}
	return -1, false
}

// SearchGE returns the position of the first item with key >= k.
func (d *Deque[K, T]) SearchGE(k K) (int, bool) {
	i := d.bisectLeft(k)
	if i < d.n {
		return i, true
	}
	return -1, false
}

// SearchLT returns the position of the last item with key < k.
func (d *Deque[K, T]) SearchLT(k K) (int, bool) {
	i := d.bisectLeft(k)
	if i > 0 {
		return i - 1, true
	}
	return -1, false
}

// SearchLE returns the position of the last item with key <= k.
func (d *Deque[K, T]) SearchLE(k K) (int, bool) {
	i := d.bisectRight(k)
	if i > 0 {
		return i - 1, true
	}
	return -1, false
}

// Find returns the item whose key equals k.
func (d *Deque[K, T]) Find(k K) (T, error) {
	i, ok := d.SearchEQ(k)
	return d.lookup(i, ok, k, "equal to")
}

// FindGT returns the first item with key > k.
func (d *Deque[K, T]) FindGT(k K) (T, error) {
	i, ok := d.SearchGT(k)
	return d.lookup(i, ok, k, "above")
}

// FindGE returns the first item with key >= k.
func (d *Deque[K, T]) FindGE(k K) (T, error) {
	i, ok := d.SearchGE(k)
	return d.lookup(i, ok, k, "at or above")
}

// FindLT returns the last item with key < k.
func (d *Deque[K, T]) FindLT(k K) (T, error) {
	i, ok := d.SearchLT(k)
	return d.lookup(i, ok, k, "below")
}

// FindLE returns the last item with key <= k.
func (d *Deque[K, T]) FindLE(k K) (T, error) {
	i, ok := d.SearchLE(k)
	return d.lookup(i, ok, k, "at or below")
}

// FindLastGT returns the newest item if its key is > k. It is a tail lookup
// with a freshness check.
func (d *Deque[K, T]) FindLastGT(k K) (T, error) {
	if d.n > 0 && d.keys[d.phys(d.n-1)] > k {
		return d.items[d.phys(d.n-1)], nil
	}
	var zero T
	return zero, fmt.Errorf("%w: no key above %v", ErrNotFound, k)
}

// IndexOf returns the position of item, located by its key.
func (d *Deque[K, T]) IndexOf(item T) (int, error) {
	k := d.key(item)
	if i, ok := d.SearchEQ(k); ok {
		return i, nil
	}
	return -1, fmt.Errorf("%w: no key equal to %v", ErrNotFound, k)
}

// Contains reports whether an item with key k is held.
func (d *Deque[K, T]) Contains(k K) bool {
	_, ok := d.SearchEQ(k)
	return ok
}

// RangeByKey returns the items with start <= key <= stop, keeping every
// step-th one starting from the first in range.
func (d *Deque[K, T]) RangeByKey(start, stop K, step int) []T {
	return d.RangeByIndex(d.bisectLeft(start), d.bisectRight(stop), step)
}

// RangeByIndex returns the items at positions [i, j) with the given step.
// Bounds are clamped to the held items; step < 1 means 1.
func (d *Deque[K, T]) RangeByIndex(i, j, step int) []T {
	if step < 1 {
		step = 1
	}
	if i < 0 {
		i = 0
	}
	if j > d.n {
		j = d.n
	}
	if i >= j {
		return []T{}
	}

	out := make([]T, 0, (j-i+step-1)/step)
	for p := i; p < j; p += step {
		out = append(out, d.items[d.phys(p)])
	}
	return out
}

// Items returns a copy of all items, oldest first.
func (d *Deque[K, T]) Items() []T {
	return d.RangeByIndex(0, d.n, 1)
}

// Keys returns a copy of all keys, oldest first.
func (d *Deque[K, T]) Keys() []K {
	out := make([]K, d.n)
	for i := range out {
		out[i] = d.keys[d.phys(i)]
	}
	return out
}

func (d *Deque[K, T]) phys(i int) int {
	return (d.head + i) % len(d.keys)
}

// bisectLeft returns the first position whose key is >= k.
func (d *Deque[K, T]) bisectLeft(k K) int {
	return sort.Search(d.n, func(i int) bool { return d.keys[d.phys(i)] >= k })
}

// bisectRight returns the first position whose key is > k.
func (d *Deque[K, T]) bisectRight(k K) int {
	return sort.Search(d.n, func(i int) bool { return d.keys[d.phys(i)] > k })
}

func (d *Deque[K, T]) lookup(i int, ok bool, k K, rel string) (T, error) {
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: no key %s %v", ErrNotFound, rel, k)
	}
	return d.items[d.phys(i)], nil
}

func (d *Deque[K, T]) popHead() {
	var zeroK K
	var zeroT T
	d.keys[d.head] = zeroK
	d.items[d.head] = zeroT
	d.head = (d.head + 1) % len(d.keys)
	d.n--
}

// grow doubles the ring, never past maxLen when bounded.
func (d *Deque[K, T]) grow() {
	size := 2 * len(d.keys)
	if size < minGrow {
		size = minGrow
	}
	if d.maxLen > 0 && size > d.maxLen {
		size = d.maxLen
	}

	keys := make([]K, size)
	items := make([]T, size)
	for i := 0; i < d.n; i++ {
		keys[i] = d.keys[d.phys(i)]
		items[i] = d.items[d.phys(i)]
	}
	d.keys, d.items, d.head = keys, items, 0
}
