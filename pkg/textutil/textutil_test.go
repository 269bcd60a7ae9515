package textutil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBinary(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		assert.False(t, IsBinary(nil))
		assert.False(t, IsBinary([]byte{}))
	})

	t.Run("plain_text", func(t *testing.T) {
		t.Parallel()

		assert.False(t, IsBinary([]byte("package main\n\nfunc main() {}\n")))
	})

	t.Run("null_byte", func(t *testing.T) {
		t.Parallel()

		assert.True(t, IsBinary([]byte("PNG\x00data")))
	})

	t.Run("null_beyond_sniff_window", func(t *testing.T) {
		t.Parallel()

		data := append(bytes.Repeat([]byte{'a'}, BinarySniffLength), 0)
		assert.False(t, IsBinary(data))
	})
}
