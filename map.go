// Package sparseht provides open-addressed hash tables in the
// Swiss-table family. Entries live in fixed groups of sixteen slots
// with a one-byte-per-slot metadata array, and every lookup, insertion
// and deletion is driven by group-wide parallel scans over that
// metadata.
//
// Two storage variants share the engine: Map (and Set) copy keys and
// values into table-owned storage, while RefMap holds borrowed handles
// and drives comparison, hashing and teardown through user callbacks.
//
// Tables are not internally synchronised; wrap them in external mutual
// exclusion for concurrent use.
package sparseht

import "iter"

// Map is the inline-storage variant: keys and values are copied into
// contiguous slot arrays owned by the table.
//
// The default hasher digests the key's memory bytes (with fast paths
// for 4- and 8-byte keys and for strings), so key types whose fields
// contain pointers, strings or padding need WithHashFunc — MaphashFunc
// covers them all.
type Map[K comparable, V any] struct {
	table[K, V]
}

// New creates a map for at least capacity entries. The underlying
// capacity is rounded up to a power of two and floored at 32 slots.
func New[K comparable, V any](capacity int, opts ...Option[K, V]) (*Map[K, V], error) {
	var m Map[K, V]
	if err := m.init(capacity, opts...); err != nil {
		return nil, err
	}

	return &m, nil
}

// Get returns a handle to the value stored under key.
//
// The pointer refers into table storage: any subsequent Insert, Emplace,
// Delete, Compact or Clear may move or overwrite it.
func (m *Map[K, V]) Get(key K) (*V, bool) {
	return m.get(key)
}

// Insert adds the pair if the key is absent and returns (nil, true).
// When the key is already present nothing changes and a handle to the
// existing value is returned with false.
func (m *Map[K, V]) Insert(key K, value V) (*V, bool) {
	return m.insert(key, value)
}

// Emplace adds the pair, overwriting the value if the key is present.
func (m *Map[K, V]) Emplace(key K, value V) {
	m.emplace(key, value)
}

// Delete removes the key's entry. Returns false if the key is absent.
func (m *Map[K, V]) Delete(key K) bool {
	return m.delete(key)
}

// Len returns the number of live entries.
func (m *Map[K, V]) Len() int {
	return int(m.size)
}

// Cap returns the current slot capacity.
func (m *Map[K, V]) Cap() int {
	return int(m.capacity)
}

// LoadFactor returns Len/Cap.
func (m *Map[K, V]) LoadFactor() float64 {
	return float64(m.size) / float64(m.capacity)
}

// Stats returns an occupancy snapshot.
func (m *Map[K, V]) Stats() Stats {
	return makeStats(m.size, m.capacity, m.tombstones, slotBytes[K, V]())
}

// Clear drops every entry while keeping the current capacity.
func (m *Map[K, V]) Clear() {
	m.reset()
}

// Compact rehashes at the current capacity, dropping every tombstone.
func (m *Map[K, V]) Compact() {
	m.resize(m.capacity)
}

// Start begins a forward walk over the live entries and yields the
// first one. The walk order is unspecified; a start-to-terminal walk on
// an unmutated table yields every live entry exactly once.
func (m *Map[K, V]) Start() (K, *V, bool) {
	return m.at(m.it.start(m.meta, m.groups(), m.size))
}

// Next yields the next live entry of a forward walk.
func (m *Map[K, V]) Next() (K, *V, bool) {
	return m.at(m.it.next(m.meta, m.groups()))
}

// End begins a backward walk and yields its first entry.
func (m *Map[K, V]) End() (K, *V, bool) {
	return m.at(m.it.end(m.meta, m.groups(), m.size))
}

// Prev yields the next live entry of a backward walk.
func (m *Map[K, V]) Prev() (K, *V, bool) {
	return m.at(m.it.prev(m.meta, m.groups()))
}

func (m *Map[K, V]) at(idx uintptr, ok bool) (K, *V, bool) {
	if !ok {
		var zero K
		return zero, nil, false
	}

	return m.keys[idx], &m.vals[idx], true
}

// All returns a range iterator over the live entries. The table must
// not be mutated during the walk.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for g := 0; g < m.groups(); g++ {
			i := g << groupShift

			for live := ^andMask(m.meta[i:i+groupSize], ctrlHighBit); live != 0; live = live.removeFirst() {
				idx := uintptr(i) + live.first()
				if !yield(m.keys[idx], m.vals[idx]) {
					return
				}
			}
		}
	}
}
