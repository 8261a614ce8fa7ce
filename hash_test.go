package sparseht

import (
	"testing"

	"github.com/go-faster/city"
	"github.com/stretchr/testify/require"
)

func TestHashSplit(t *testing.T) {
	tests := []struct {
		name   string
		input  uint64
		wantH1 uintptr
		wantH2 uint8
	}{
		{"zero", 0, 0, 0},
		{"max h2", 0x7F, 0, 0x7F},
		{"first bit of h1", 1 << 7, 1, 0},
		{"max uint64", 0xFFFFFFFFFFFFFFFF, uintptr(0xFFFFFFFFFFFFFFFF >> 7), 0x7F},
		{"mixed pattern", 0xABCD1234567890EF, uintptr(0xABCD1234567890EF >> 7), 0x6F},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h1, h2 := hashSplit(tt.input)

			require.Equal(t, tt.wantH1, h1)
			require.Equal(t, tt.wantH2, h2)
		})
	}
}

func TestMakeDefaultHashFunc(t *testing.T) {
	t.Run("4-byte keys use the 32-bit finaliser", func(t *testing.T) {
		f := makeDefaultHashFunc[uint32]()

		require.Equal(t, uint64(hash32(7)), f(7))
		require.Equal(t, uint64(hash32(0xDEADBEEF)), f(0xDEADBEEF))
	})

	t.Run("4-byte signed keys share the finaliser", func(t *testing.T) {
		f := makeDefaultHashFunc[int32]()

		require.Equal(t, uint64(hash32(0xFFFFFFFF)), f(-1))
	})

	t.Run("8-byte keys use the avalanche finaliser", func(t *testing.T) {
		f := makeDefaultHashFunc[uint64]()

		require.Equal(t, fmix64(42), f(42))
	})

	t.Run("strings go through CityHash64", func(t *testing.T) {
		f := makeDefaultHashFunc[string]()

		require.Equal(t, city.Hash64([]byte("foo")), f("foo"))
		require.Equal(t, city.Hash64(nil), f(""))
	})

	t.Run("other widths digest the key bytes", func(t *testing.T) {
		type wide struct{ a, b uint64 }

		f := makeDefaultHashFunc[wide]()
		k := wide{a: 1, b: 2}

		require.Equal(t, city.Hash64(keyBytes(&k)), f(k))
	})

	t.Run("deterministic per key", func(t *testing.T) {
		f := makeDefaultHashFunc[uint64]()

		require.Equal(t, f(123), f(123))
		require.NotEqual(t, f(123), f(124))
	})
}

func TestMaphashFunc(t *testing.T) {
	f := MaphashFunc[string]()

	require.Equal(t, f("abc"), f("abc"))
	require.NotEqual(t, f("abc"), f("abd"))
}

func TestMixSeed(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		require.Equal(t, mixSeed(1, 2, false), mixSeed(1, 2, false))
		require.Equal(t, mixSeed(1, 2, true), mixSeed(1, 2, true))
	})

	t.Run("seed changes the digest", func(t *testing.T) {
		require.NotEqual(t, mixSeed(1, 2, false), mixSeed(1, 3, false))
		require.NotEqual(t, mixSeed(1, 2, true), mixSeed(1, 3, true))
	})

	t.Run("keyed path differs from default", func(t *testing.T) {
		require.NotEqual(t, mixSeed(1, 2, false), mixSeed(1, 2, true))
	})
}

func TestFmix64(t *testing.T) {
	require.Equal(t, uint64(0), fmix64(0))
	require.NotEqual(t, fmix64(1), fmix64(2))
}
