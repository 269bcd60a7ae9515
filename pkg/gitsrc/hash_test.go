package gitsrc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/diffreel/diffreel/pkg/gitsrc"
)

const sampleHex = "0123456789abcdef0123456789abcdef01234567"

func TestHashRoundTrip(t *testing.T) {
	t.Parallel()

	hash := gitsrc.NewHash(sampleHex)
	require.Equal(t, sampleHex, hash.String())
}

func TestHashShort(t *testing.T) {
	t.Parallel()

	hash := gitsrc.NewHash(sampleHex)
	require.Equal(t, "01234567", hash.Short())
}

func TestHashUppercaseInput(t *testing.T) {
	t.Parallel()

	hash := gitsrc.NewHash("ABCDEF0123456789abcdef0123456789abcdef01")
	require.Equal(t, "abcdef0123456789abcdef0123456789abcdef01", hash.String())
}

func TestHashIsZero(t *testing.T) {
	t.Parallel()

	require.True(t, gitsrc.Hash{}.IsZero())
	require.False(t, gitsrc.NewHash(sampleHex).IsZero())
}

func TestHashOidRoundTrip(t *testing.T) {
	t.Parallel()

	hash := gitsrc.NewHash(sampleHex)
	require.Equal(t, hash, gitsrc.HashFromOid(hash.ToOid()))
}
