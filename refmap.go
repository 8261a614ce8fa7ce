package sparseht

import (
	"iter"

	"pgregory.net/rand"
)

// Callbacks supplies the key capabilities a RefMap cannot derive on its
// own: comparison, hashing, and teardown of the borrowed handles.
//
// Compare reports key equality. Hash digests a key; the engine mixes
// the digest with the table's per-instance seed, so it does not need to
// be seeded itself. Destroy is invoked once per pair on Delete, Clear,
// Free, and on the pair replaced by Emplace — it defines where
// ownership of the borrowed handles ends.
type Callbacks[K, V any] interface {
	Compare(a, b K) bool
	Hash(key K) uint64
	Destroy(key K, value V)
}

// CallbackFuncs adapts plain functions to Callbacks. CompareFunc and
// HashFunc are required; a nil DestroyFunc means no teardown.
type CallbackFuncs[K, V any] struct {
	CompareFunc func(a, b K) bool
	HashFunc    func(key K) uint64
	DestroyFunc func(key K, value V)
}

func (c CallbackFuncs[K, V]) Compare(a, b K) bool {
	return c.CompareFunc(a, b)
}

func (c CallbackFuncs[K, V]) Hash(key K) uint64 {
	return c.HashFunc(key)
}

func (c CallbackFuncs[K, V]) Destroy(key K, value V) {
	if c.DestroyFunc != nil {
		c.DestroyFunc(key, value)
	}
}

// RefMap is the reference-storage variant: slots hold borrowed handles
// to externally owned keys and values, and all key operations go
// through the Callbacks supplied at construction.
//
// Each instance draws a random hash seed at creation; WithSeed pins it
// for reproducible runs and WithKeyedHash switches the seed mixing to
// SipHash-2-4.
type RefMap[K, V any] struct {
	meta []uint8
	keys []K
	vals []V

	capacity   uintptr
	groupMask  uintptr
	size       uintptr
	tombstones uintptr

	cb    Callbacks[K, V]
	seed  uint64
	keyed bool
	quad  bool

	it cursor
}

type RefOption[K, V any] func(m *RefMap[K, V])

// WithKeyedHash mixes hash digests through SipHash-2-4 keyed with the
// instance seed, for tables that may face adversarial keys.
func WithKeyedHash[K, V any]() RefOption[K, V] {
	return func(m *RefMap[K, V]) {
		m.keyed = true
	}
}

// WithSeed pins the per-instance hash seed.
func WithSeed[K, V any](seed uint64) RefOption[K, V] {
	return func(m *RefMap[K, V]) {
		m.seed = seed
	}
}

// WithRefQuadraticProbing switches the group probe sequence from linear
// steps to triangular ones.
func WithRefQuadraticProbing[K, V any]() RefOption[K, V] {
	return func(m *RefMap[K, V]) {
		m.quad = true
	}
}

// NewRef creates a reference map for at least capacity entries. The
// underlying capacity is rounded up to a power of two and floored at 32
// slots.
func NewRef[K, V any](capacity int, cb Callbacks[K, V], opts ...RefOption[K, V]) (*RefMap[K, V], error) {
	if capacity <= 0 || cb == nil {
		return nil, ErrInvalidArgument
	}

	m := &RefMap[K, V]{
		cb:   cb,
		seed: rand.Uint64(),
	}

	for _, opt := range opts {
		opt(m)
	}

	size := uintptr(minTableSize)
	if capacity > minTableSize {
		size = uintptr(nextPowerOfTwo(uint64(capacity)))
	}

	m.alloc(size)

	return m, nil
}

func (m *RefMap[K, V]) alloc(size uintptr) {
	m.meta = make([]uint8, size)
	m.keys = make([]K, size)
	m.vals = make([]V, size)
	m.capacity = size
	m.groupMask = size>>groupShift - 1
	m.size = 0
	m.tombstones = 0
	m.it.state = iterNotValid

	fillEmpty(m.meta)
}

func (m *RefMap[K, V]) groups() int {
	return int(m.capacity >> groupShift)
}

func (m *RefMap[K, V]) hashKey(key K) uint64 {
	return mixSeed(m.cb.Hash(key), m.seed, m.keyed)
}

// find locates the key's slot via the search protocol.
func (m *RefMap[K, V]) find(key K) (uintptr, bool) {
	h1, h2 := hashSplit(m.hashKey(key))
	mask := m.groupMask
	g := h1 & mask

	for step := uintptr(0); ; {
		i := g << groupShift
		meta := m.meta[i : i+groupSize]

		for eq := eqMask(meta, h2); eq != 0; eq = eq.removeFirst() {
			idx := i + eq.first()
			if m.cb.Compare(m.keys[idx], key) {
				return idx, true
			}
		}

		if eqMask(meta, ctrlEmpty) != 0 {
			return 0, false
		}

		if m.quad {
			step++
			g = (g + step) & mask
		} else {
			g = (g + 1) & mask
		}
	}
}

// place writes the handles into the first empty-or-deleted slot along
// the probe path. Safe only when the key is known to be absent.
func (m *RefMap[K, V]) place(key K, value V) {
	h1, h2 := hashSplit(m.hashKey(key))
	mask := m.groupMask
	g := h1 & mask

	for step := uintptr(0); ; {
		i := g << groupShift

		if free := andMask(m.meta[i:i+groupSize], ctrlHighBit); free != 0 {
			idx := i + free.first()
			if m.meta[idx] == ctrlDeleted {
				m.tombstones--
			}

			m.keys[idx] = key
			m.vals[idx] = value
			m.meta[idx] = h2
			m.size++

			return
		}

		if m.quad {
			step++
			g = (g + step) & mask
		} else {
			g = (g + 1) & mask
		}
	}
}

// Get returns the value handle stored under key.
func (m *RefMap[K, V]) Get(key K) (V, bool) {
	if idx, ok := m.find(key); ok {
		return m.vals[idx], true
	}

	var zero V
	return zero, false
}

// Insert stores the pair if the key is absent and returns (zero, true).
// When the key is already present nothing is stored — the caller keeps
// ownership of its handles — and the existing value handle is returned
// with false.
func (m *RefMap[K, V]) Insert(key K, value V) (V, bool) {
	if idx, ok := m.find(key); ok {
		return m.vals[idx], false
	}

	m.place(key, value)
	m.maybeGrow()

	var zero V
	return zero, true
}

// Emplace stores the pair, replacing an existing entry under the same
// key. The replaced pair is handed to the destructor.
func (m *RefMap[K, V]) Emplace(key K, value V) {
	if idx, ok := m.find(key); ok {
		m.cb.Destroy(m.keys[idx], m.vals[idx])
		m.keys[idx] = key
		m.vals[idx] = value

		return
	}

	m.place(key, value)
	m.maybeGrow()
}

// Delete removes the key's entry and hands the stored pair to the
// destructor. Returns false if the key is absent.
func (m *RefMap[K, V]) Delete(key K) bool {
	h1, h2 := hashSplit(m.hashKey(key))
	mask := m.groupMask
	g := h1 & mask

	for step := uintptr(0); ; {
		i := g << groupShift
		meta := m.meta[i : i+groupSize]
		empty := eqMask(meta, ctrlEmpty)

		for eq := eqMask(meta, h2); eq != 0; eq = eq.removeFirst() {
			idx := i + eq.first()
			if !m.cb.Compare(m.keys[idx], key) {
				continue
			}

			if empty != 0 {
				m.meta[idx] = ctrlEmpty
			} else {
				m.meta[idx] = ctrlDeleted
				m.tombstones++
			}

			m.cb.Destroy(m.keys[idx], m.vals[idx])

			var zeroK K
			var zeroV V
			m.keys[idx] = zeroK
			m.vals[idx] = zeroV
			m.size--

			m.maybeShrink()

			return true
		}

		if empty != 0 {
			return false
		}

		if m.quad {
			step++
			g = (g + step) & mask
		} else {
			g = (g + 1) & mask
		}
	}
}

func (m *RefMap[K, V]) maybeGrow() {
	if m.size > growLimit(m.capacity) {
		m.resize(m.capacity << 1)
	}
}

func (m *RefMap[K, V]) maybeShrink() {
	if m.size < shrinkLimit(m.capacity) && m.capacity != minTableSize {
		m.resize(m.capacity >> 1)
	}
}

func (m *RefMap[K, V]) resize(newSize uintptr) {
	oldMeta := m.meta
	oldKeys := m.keys
	oldVals := m.vals
	oldGroups := m.capacity >> groupShift

	m.alloc(newSize)

	for g := uintptr(0); g < oldGroups; g++ {
		i := g << groupShift

		for live := ^andMask(oldMeta[i:i+groupSize], ctrlHighBit); live != 0; live = live.removeFirst() {
			idx := i + live.first()
			m.place(oldKeys[idx], oldVals[idx])
		}
	}
}

// Free hands every live pair to the destructor and releases the table
// storage. The map must not be used afterwards; a second Free is a
// no-op.
func (m *RefMap[K, V]) Free() {
	if m.meta == nil {
		return
	}

	m.destroyAll()

	m.meta = nil
	m.keys = nil
	m.vals = nil
	m.capacity = 0
	m.groupMask = 0
	m.size = 0
	m.tombstones = 0
	m.it.state = iterNotValid
}

// Clear hands every live pair to the destructor and drops all entries,
// keeping the current capacity.
func (m *RefMap[K, V]) Clear() {
	m.destroyAll()
	fillEmpty(m.meta)
	clear(m.keys)
	clear(m.vals)

	m.size = 0
	m.tombstones = 0
	m.it.state = iterNotValid
}

func (m *RefMap[K, V]) destroyAll() {
	for g := 0; g < m.groups(); g++ {
		i := g << groupShift

		for live := ^andMask(m.meta[i:i+groupSize], ctrlHighBit); live != 0; live = live.removeFirst() {
			idx := uintptr(i) + live.first()
			m.cb.Destroy(m.keys[idx], m.vals[idx])
		}
	}
}

// Len returns the number of live entries.
func (m *RefMap[K, V]) Len() int {
	return int(m.size)
}

// Cap returns the current slot capacity.
func (m *RefMap[K, V]) Cap() int {
	return int(m.capacity)
}

// LoadFactor returns Len/Cap.
func (m *RefMap[K, V]) LoadFactor() float64 {
	return float64(m.size) / float64(m.capacity)
}

// Stats returns an occupancy snapshot.
func (m *RefMap[K, V]) Stats() Stats {
	return makeStats(m.size, m.capacity, m.tombstones, slotBytes[K, V]())
}

// Start begins a forward walk over the live entries and yields the
// first one.
func (m *RefMap[K, V]) Start() (K, V, bool) {
	return m.at(m.it.start(m.meta, m.groups(), m.size))
}

// Next yields the next live entry of a forward walk.
func (m *RefMap[K, V]) Next() (K, V, bool) {
	return m.at(m.it.next(m.meta, m.groups()))
}

// End begins a backward walk and yields its first entry.
func (m *RefMap[K, V]) End() (K, V, bool) {
	return m.at(m.it.end(m.meta, m.groups(), m.size))
}

// Prev yields the next live entry of a backward walk.
func (m *RefMap[K, V]) Prev() (K, V, bool) {
	return m.at(m.it.prev(m.meta, m.groups()))
}

func (m *RefMap[K, V]) at(idx uintptr, ok bool) (K, V, bool) {
	if !ok {
		var zeroK K
		var zeroV V
		return zeroK, zeroV, false
	}

	return m.keys[idx], m.vals[idx], true
}

// All returns a range iterator over the live entries. The map must not
// be mutated during the walk.
func (m *RefMap[K, V]) All() iter.Seq2[K, V] {
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
