package state

import (
	"sort"

	"github.com/deno-lib/oned/domain/errors"
)

// ResourceTable maps rids to live resources. Rid allocation belongs to the
// caller, so every uint32 including 0 is a valid key.
// Not safe for concurrent use.
type ResourceTable[T any] struct {
	entries map[uint32]T
}

// NewResourceTable creates an empty table.
func NewResourceTable[T any]() *ResourceTable[T] {
	return &ResourceTable[T]{entries: make(map[uint32]T)}
}

// Insert tracks value under rid. It returns errors.ErrExists if rid is taken.
func (t *ResourceTable[T]) Insert(rid uint32, value T) error {
	if _, ok := t.entries[rid]; ok {
		return errors.ErrExists
	}
	t.entries[rid] = value
	return nil
}

// Get returns the value tracked under rid.
func (t *ResourceTable[T]) Get(rid uint32) (T, bool) {
	v, ok := t.entries[rid]
	return v, ok
}

// Remove stops tracking rid and returns the value it held.
func (t *ResourceTable[T]) Remove(rid uint32) (T, bool) {
	v, ok := t.entries[rid]
	if ok {
		delete(t.entries, rid)
	}
	return v, ok
}

// Len returns the number of tracked resources.
func (t *ResourceTable[T]) Len() int {
	return len(t.entries)
}

// Each calls fn for every entry in ascending rid order until fn returns false.
func (t *ResourceTable[T]) Each(fn func(rid uint32, value T) bool) {
	rids := make([]uint32, 0, len(t.entries))
	for rid := range t.entries {
		rids = append(rids, rid)
	}
	sort.Slice(rids, func(i, j int) bool { return rids[i] < rids[j] })

	for _, rid := range rids {
		if !fn(rid, t.entries[rid]) {
			return
		}
	}
}
