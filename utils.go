package sparseht

import "unsafe"

// keyBytes exposes the in-memory representation of a fixed-size key.
// Only meaningful for keys without pointer indirection.
//
//go:nocheckptr
func keyBytes[K comparable](k *K) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(k)), unsafe.Sizeof(*k))
}

func fillEmpty(meta []uint8) {
	for i := range meta {
		meta[i] = ctrlEmpty
	}
}

// slotBytes is the per-slot storage cost: one metadata byte plus the
// key and value widths.
func slotBytes[K, V any]() uintptr {
	var k K
	var v V

	return unsafe.Sizeof(k) + unsafe.Sizeof(v) + 1
}

// CapacityFromSize estimates the capacity (number of slots) whose
// metadata byte plus key and value storage fit in the given memory
// size in bytes, rounded down to whole groups.
func CapacityFromSize[K comparable, V any](size uintptr) int {
	slots := size / slotBytes[K, V]()

	return int(slots >> groupShift << groupShift)
}
