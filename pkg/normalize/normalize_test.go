package normalize_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/diffreel/diffreel/pkg/diffmodel"
	"github.com/diffreel/diffreel/pkg/gitsrc"
	"github.com/diffreel/diffreel/pkg/normalize"
	"github.com/diffreel/diffreel/pkg/runlog"
)

const commitHex = "abc1234500000000000000000000000000000000"

// removedOnlyPatch builds a patch that removes n lines.
func removedOnlyPatch(n int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "@@ -1,%d +0,0 @@\n", n)

	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "-line %d\n", i)
	}

	return sb.String()
}

// mixedPatch changes a.py: 3 removed, 5 added.
const mixedPatch = `diff --git a/a.py b/a.py
--- a/a.py
+++ b/a.py
@@ -1,5 +1,7 @@
 import os
-x = 1
-y = 2
-z = 3
+x = 10
+y = 20
+z = 30
+w = 40
+v = 50
 print(x)
`

func newFixture(t *testing.T, opts normalize.Options) (*gitsrc.TestSource, *normalize.Normalizer, gitsrc.CommitRef) {
	t.Helper()

	src := gitsrc.NewTestSource()
	commit := src.AddCommit(commitHex, time.Unix(1700000000, 0), "test commit")
	rec := runlog.NewRecorder(nil)

	return src, normalize.New(src, rec, opts), commit
}

func TestNormalize_MixedWithBinary(t *testing.T) {
	t.Parallel()

	src, norm, commit := newFixture(t, normalize.Options{})
	src.SetPatch(commitHex, "a.py", gitsrc.ChangeModified, mixedPatch)
	src.SetBinary(commitHex, "logo.png", gitsrc.ChangeAdded)

	diffs, summary, err := norm.Normalize(context.Background(), commit)
	require.NoError(t, err)

	require.Len(t, diffs, 1)
	require.Equal(t, "a.py", diffs[0].Path)
	require.Equal(t, 5, diffs[0].Added())
	require.Equal(t, 3, diffs[0].Removed())

	require.Equal(t, 5, summary.TotalAdded)
	require.Equal(t, 3, summary.TotalRemoved)
	require.Equal(t, 1, summary.FilesChanged)
	require.Equal(t, []string{"logo.png"}, summary.BinarySkipped)
	require.False(t, summary.Truncated)
}

func TestNormalize_ExcludePatterns(t *testing.T) {
	t.Parallel()

	src, norm, commit := newFixture(t, normalize.Options{ExcludePatterns: []string{"docs/*"}})
	src.SetPatch(commitHex, "docs/guide.md", gitsrc.ChangeModified, removedOnlyPatch(2))
	src.SetPatch(commitHex, "main.go", gitsrc.ChangeModified, removedOnlyPatch(2))

	diffs, _, err := norm.Normalize(context.Background(), commit)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	require.Equal(t, "main.go", diffs[0].Path)
}

func TestNormalize_NonTextSkipped(t *testing.T) {
	t.Parallel()

	src, norm, commit := newFixture(t, normalize.Options{})
	src.SetPatch(commitHex, "data.bin", gitsrc.ChangeModified, removedOnlyPatch(1))

	diffs, summary, err := norm.Normalize(context.Background(), commit)
	require.NoError(t, err)
	require.Empty(t, diffs)
	require.Zero(t, summary.FilesChanged)
}

func TestNormalize_MaxFilesKeepsLargest(t *testing.T) {
	t.Parallel()

	src, norm, commit := newFixture(t, normalize.Options{MaxFiles: 2})
	src.SetPatch(commitHex, "small.go", gitsrc.ChangeModified, removedOnlyPatch(1))
	src.SetPatch(commitHex, "medium.go", gitsrc.ChangeModified, removedOnlyPatch(5))
	src.SetPatch(commitHex, "large.go", gitsrc.ChangeModified, removedOnlyPatch(9))

	diffs, summary, err := norm.Normalize(context.Background(), commit)
	require.NoError(t, err)

	require.Len(t, diffs, 2)
	// Kept files stay in original order.
	require.Equal(t, "medium.go", diffs[0].Path)
	require.Equal(t, "large.go", diffs[1].Path)

	require.Equal(t, []string{"small.go"}, summary.SummarizedFiles)
	require.True(t, summary.Truncated)
	// Summarized files still contribute to aggregate counts.
	require.Equal(t, 15, summary.TotalRemoved)
}

func TestNormalize_FileCeilingBoundary(t *testing.T) {
	t.Parallel()

	const ceiling = 10

	cases := []struct {
		name      string
		lines     int
		truncated bool
	}{
		{"exactly_at_ceiling", ceiling, false},
		{"one_over_ceiling", ceiling + 1, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			src, norm, commit := newFixture(t, normalize.Options{FileLineCeiling: ceiling})
			src.SetPatch(commitHex, "f.go", gitsrc.ChangeModified, removedOnlyPatch(tc.lines))

			diffs, summary, err := norm.Normalize(context.Background(), commit)
			require.NoError(t, err)
			require.Len(t, diffs, 1)
			require.Equal(t, tc.truncated, diffs[0].Truncated)
			require.Equal(t, tc.truncated, summary.Truncated)

			if tc.truncated {
				require.Equal(t, ceiling, diffs[0].ChangedLines())
			} else {
				require.Equal(t, tc.lines, diffs[0].ChangedLines())
			}
		})
	}
}

func TestNormalize_TruncationMarker(t *testing.T) {
	t.Parallel()

	src, norm, commit := newFixture(t, normalize.Options{FileLineCeiling: 4})
	src.SetPatch(commitHex, "f.go", gitsrc.ChangeModified, removedOnlyPatch(10))

	diffs, _, err := norm.Normalize(context.Background(), commit)
	require.NoError(t, err)
	require.Len(t, diffs, 1)

	var markers []string

	for _, hunk := range diffs[0].Hunks {
		for _, line := range hunk.Lines {
			if line.OldLine == 0 && line.NewLine == 0 {
				markers = append(markers, line.Text)
			}
		}
	}

	require.Equal(t, []string{"… 6 lines omitted …"}, markers)

	// First two and last two removed lines survive.
	first := diffs[0].Hunks[0].Lines[0]
	require.Equal(t, "line 1", first.Text)
	require.Equal(t, 1, first.OldLine)

	last := lastRealLine(t, diffs[0])
	require.Equal(t, "line 10", last.Text)
	require.Equal(t, 10, last.OldLine)
}

func TestNormalize_CommitCeiling(t *testing.T) {
	t.Parallel()

	src, norm, commit := newFixture(t, normalize.Options{CommitLineCeiling: 10})
	src.SetPatch(commitHex, "a.go", gitsrc.ChangeModified, removedOnlyPatch(6))
	src.SetPatch(commitHex, "b.go", gitsrc.ChangeModified, removedOnlyPatch(6))
	src.SetPatch(commitHex, "c.go", gitsrc.ChangeModified, removedOnlyPatch(6))

	diffs, summary, err := norm.Normalize(context.Background(), commit)
	require.NoError(t, err)

	require.Len(t, diffs, 1)
	require.Equal(t, "a.go", diffs[0].Path)
	require.ElementsMatch(t, []string{"b.go", "c.go"}, summary.SummarizedFiles)
	require.True(t, summary.Truncated)
	require.Equal(t, 18, summary.TotalRemoved)
}

func TestNormalize_ParseFailureSkipsFile(t *testing.T) {
	t.Parallel()

	src := gitsrc.NewTestSource()
	commit := src.AddCommit(commitHex, time.Unix(1700000000, 0), "test commit")
	rec := runlog.NewRecorder(nil)
	norm := normalize.New(src, rec, normalize.Options{})

	src.SetPatch(commitHex, "broken.go", gitsrc.ChangeModified, "@@ -1,2 +1,1 @@\ngarbage\n")
	src.SetPatch(commitHex, "ok.go", gitsrc.ChangeModified, removedOnlyPatch(2))

	diffs, _, err := norm.Normalize(context.Background(), commit)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	require.Equal(t, "ok.go", diffs[0].Path)

	warnings := rec.Warnings()
	require.Len(t, warnings, 1)
	require.Equal(t, runlog.StageNormalize, warnings[0].Stage)
	require.Equal(t, "broken.go", warnings[0].Path)
}

func TestNormalize_NulPatchTreatedAsBinary(t *testing.T) {
	t.Parallel()

	src, norm, commit := newFixture(t, normalize.Options{})
	src.SetPatch(commitHex, "blob.go", gitsrc.ChangeModified, "@@ -1,1 +1,1 @@\n-\x00old\n+\x00new\n")
	src.SetPatch(commitHex, "ok.go", gitsrc.ChangeModified, removedOnlyPatch(1))

	diffs, summary, err := norm.Normalize(context.Background(), commit)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	require.Equal(t, "ok.go", diffs[0].Path)
	require.Equal(t, []string{"blob.go"}, summary.BinarySkipped)
}

// expiringSource kills its context on the first diff fetch, standing in for
// a commit deadline that expires mid-commit.
type expiringSource struct {
	*gitsrc.TestSource
	cancel context.CancelFunc
}

func (s *expiringSource) GetFileDiff(ctx context.Context, _ gitsrc.Hash, _ string) (string, error) {
	s.cancel()

	return "", ctx.Err()
}

func TestNormalize_DeadContextFailsCommit(t *testing.T) {
	t.Parallel()

	base := gitsrc.NewTestSource()
	commit := base.AddCommit(commitHex, time.Unix(1700000000, 0), "test commit")
	base.SetPatch(commitHex, "f.go", gitsrc.ChangeModified, removedOnlyPatch(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := runlog.NewRecorder(nil)
	norm := normalize.New(&expiringSource{TestSource: base, cancel: cancel}, rec, normalize.Options{})

	// The fetch failure of a dead context fails the commit outright; it
	// must not degrade into a per-file warning and an empty summary.
	_, _, err := norm.Normalize(ctx, commit)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, rec.Len())
}

func lastRealLine(t *testing.T, fd diffmodel.FileDiff) diffmodel.DiffLine {
	t.Helper()

	for h := len(fd.Hunks) - 1; h >= 0; h-- {
		lines := fd.Hunks[h].Lines
		for l := len(lines) - 1; l >= 0; l-- {
			if lines[l].OldLine > 0 || lines[l].NewLine > 0 {
				return lines[l]
			}
		}
	}

	t.Fatal("no real lines in file diff")

	return diffmodel.DiffLine{}
}
