package sparseht

import (
	"encoding/binary"
	"unsafe"

	"github.com/dchest/siphash"
	"github.com/dolthub/maphash"
	"github.com/go-faster/city"
)

// HashFunc produces the 64-bit digest of a key. Only the low 7 bits end
// up in metadata, so diffusion over those bits is what matters, not
// cryptographic strength.
type HashFunc[K comparable] func(K) uint64

// makeDefaultHashFunc picks a hasher by key-size class: 4-byte keys get
// a 32-bit multiplicative finaliser, 8-byte keys the 64-bit avalanche
// finaliser, strings and every other width go through CityHash64 over
// the key bytes.
func makeDefaultHashFunc[K comparable]() HashFunc[K] {
	var zero K
	if _, ok := any(zero).(string); ok {
		return func(k K) uint64 {
			s := any(k).(string)
			return city.Hash64(unsafe.Slice(unsafe.StringData(s), len(s)))
		}
	}

	switch unsafe.Sizeof(zero) {
	case 4:
		return func(k K) uint64 {
			return uint64(hash32(*(*uint32)(unsafe.Pointer(&k))))
		}
	case 8:
		return func(k K) uint64 {
			return fmix64(*(*uint64)(unsafe.Pointer(&k)))
		}
	default:
		return func(k K) uint64 {
			return city.Hash64(keyBytes(&k))
		}
	}
}

// MaphashFunc returns a runtime-seeded hasher for any comparable key
// type, including keys that carry pointers or strings, which the
// byte-oriented default dispatch cannot digest. Usable both as a
// WithHashFunc override and as a RefMap hash callback.
func MaphashFunc[K comparable]() func(K) uint64 {
	h := maphash.NewHasher[K]()

	return h.Hash
}

// hashSplit divides a digest into the group selector and the 7-bit
// metadata fingerprint.
func hashSplit(hash uint64) (h1 uintptr, h2 uint8) {
	return uintptr(hash >> 7), uint8(hash & ctrlH2Mask)
}

// hash32 mixes the bits of a 32-bit key.
func hash32(k uint32) uint32 {
	k = ((k >> 16) ^ k) * 0x45d9f3b
	k = ((k >> 16) ^ k) * 0x45d9f3b

	return (k >> 16) ^ k
}

// fmix64 is the 64-bit avalanche finaliser.
func fmix64(k uint64) uint64 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	k *= 0xc4ceb9fe1a85ec53
	k ^= k >> 33

	return k
}

// mixSeed folds a per-instance seed into a user-supplied digest. The
// keyed form runs the digest through SipHash-2-4 instead, for tables
// that may face adversarial keys.
func mixSeed(h, seed uint64, keyed bool) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], h)

	if keyed {
		return siphash.Hash(seed, seed, buf[:])
	}

	return city.Hash64WithSeed(buf[:], seed)
}
