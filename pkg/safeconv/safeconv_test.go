package safeconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMustUintToInt(t *testing.T) {
	t.Parallel()

	t.Run("normal_value", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, 42, MustUintToInt(42))
	})

	t.Run("zero", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, 0, MustUintToInt(0))
	})

	t.Run("max_int", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, MaxInt, MustUintToInt(uint(MaxInt)))
	})

	t.Run("overflow_panics", func(t *testing.T) {
		t.Parallel()

		assert.PanicsWithValue(t, "safeconv: uint to int overflow", func() {
			MustUintToInt(uint(MaxInt) + 1)
		})
	})
}

func TestMustIntToUint(t *testing.T) {
	t.Parallel()

	t.Run("normal_value", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, uint(42), MustIntToUint(42))
	})

	t.Run("zero", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, uint(0), MustIntToUint(0))
	})

	t.Run("negative_panics", func(t *testing.T) {
		t.Parallel()

		assert.PanicsWithValue(t, "safeconv: negative int to uint conversion", func() {
			MustIntToUint(-1)
		})
	})
}
