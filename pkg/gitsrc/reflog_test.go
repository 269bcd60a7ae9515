package gitsrc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseReflogLine(t *testing.T) {
	t.Parallel()

	line := "0000000000000000000000000000000000000000 " +
		"abcdef0123456789abcdef0123456789abcdef01 " +
		"Dev One <dev@example.com> 1700000000 +0900\tcommit (initial): first"

	entry, ok := parseReflogLine(line)
	require.True(t, ok)
	require.Equal(t, "abcdef0123456789abcdef0123456789abcdef01", entry.Position.String())
	require.Equal(t, "commit (initial)", entry.Action)
	require.Equal(t, time.Unix(1700000000, 0), entry.When)
}

func TestParseReflogLine_MergeAction(t *testing.T) {
	t.Parallel()

	line := "abcdef0123456789abcdef0123456789abcdef01 " +
		"1111111111111111111111111111111111111111 " +
		"Dev One <dev@example.com> 1700000100 +0000\tmerge main: Fast-forward"

	entry, ok := parseReflogLine(line)
	require.True(t, ok)
	require.Equal(t, "merge main", entry.Action)
}

func TestParseReflogLine_NameWithSpaces(t *testing.T) {
	t.Parallel()

	line := "abcdef0123456789abcdef0123456789abcdef01 " +
		"2222222222222222222222222222222222222222 " +
		"Name With Many Parts <x@y.z> 1700000200 -0500\tcheckout: moving from main to feature"

	entry, ok := parseReflogLine(line)
	require.True(t, ok)
	require.Equal(t, "2222222222222222222222222222222222222222", entry.Position.String())
	require.Equal(t, time.Unix(1700000200, 0), entry.When)
}

func TestParseReflogLine_Malformed(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"not a reflog line",
		"abc def ghi",
		"abcdef0123456789abcdef0123456789abcdef01 tooshort Dev <d@e> 1700000000 +0000\tcommit: x",
	}

	for _, line := range cases {
		_, ok := parseReflogLine(line)
		require.False(t, ok, "line %q should not parse", line)
	}
}

func TestNormalizeRefName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "refs/heads/feature", normalizeRefName("feature"))
	require.Equal(t, "refs/heads/feature", normalizeRefName("refs/heads/feature"))
	require.Equal(t, "HEAD", normalizeRefName("HEAD"))
	require.Equal(t, "refs/remotes/origin/main", normalizeRefName("refs/remotes/origin/main"))
}
