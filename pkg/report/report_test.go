package report_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/diffreel/diffreel/pkg/gitsrc"
	"github.com/diffreel/diffreel/pkg/normalize"
	"github.com/diffreel/diffreel/pkg/pipeline"
	"github.com/diffreel/diffreel/pkg/render"
	"github.com/diffreel/diffreel/pkg/report"
	"github.com/diffreel/diffreel/pkg/runlog"
)

func sampleResult() *pipeline.Result {
	commit := gitsrc.CommitRef{
		Hash: gitsrc.NewHash("00000000000000000000000000000000000000ab"),
		Author: gitsrc.Signature{
			Name: "Dev",
			When: time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC),
		},
		Message: "add parser\n\nlonger body",
	}

	return &pipeline.Result{
		Commits: []pipeline.CommitResult{{
			Commit: commit,
			Files: []pipeline.FileStat{
				{Path: "parser.go", Kind: gitsrc.ChangeModified, Added: 12, Removed: 4, Pages: 2},
				{Path: "parser_test.go", Kind: gitsrc.ChangeAdded, Added: 30, Truncated: true, Pages: 1},
			},
			Summary: normalize.ChangeSummary{
				TotalAdded:      42,
				TotalRemoved:    4,
				FilesChanged:    2,
				Truncated:       true,
				SummarizedFiles: []string{"generated.go"},
				BinarySkipped:   []string{"logo.png"},
			},
			Pages: []render.RenderedPage{
				{FilePath: "parser.go", PageIndex: 1, Sequence: 1},
				{FilePath: "parser.go", PageIndex: 2, Sequence: 2},
				{FilePath: "parser_test.go", PageIndex: 1, Sequence: 3},
			},
		}},
		Warnings: []runlog.Warning{{
			Stage:  runlog.StageNormalize,
			Commit: "000000ab",
			Path:   "broken.go",
			Err:    errors.New("malformed patch"),
		}},
	}
}

func TestGenerate_FullDocument(t *testing.T) {
	t.Parallel()

	doc, err := report.Generate(sampleResult(), report.Options{
		Title: "feature vs main",
		Now:   time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(doc, "# feature vs main\n"))
	require.Contains(t, doc, "## Contents")
	require.Contains(t, doc, "add parser")
	require.NotContains(t, doc, "longer body")

	// Per-commit section with stats and file table.
	require.Contains(t, doc, "2 files changed, +42 / -4")
	require.Contains(t, doc, "| `parser.go` | modified | 12 | 4 |")
	require.Contains(t, doc, "truncated")

	// Image references in sequence order under the default directory.
	short := gitsrc.NewHash("00000000000000000000000000000000000000ab").Short()
	require.Contains(t, doc, "![diff page](images/001_"+short+"_001.png)")
	require.Contains(t, doc, "![diff page](images/001_"+short+"_003.png)")

	// Skip notes and warnings survive into the document.
	require.Contains(t, doc, "`generated.go`")
	require.Contains(t, doc, "`logo.png`")
	require.Contains(t, doc, "## Warnings")
	require.Contains(t, doc, "malformed patch")
}

func TestGenerate_DefaultTitleAndCustomImageDir(t *testing.T) {
	t.Parallel()

	doc, err := report.Generate(sampleResult(), report.Options{ImageDir: "assets"})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(doc, "# Diff reel:"))
	require.Contains(t, doc, "![diff page](assets/")
	require.NotContains(t, doc, "(images/")
}

func TestImageName_SortsInReadingOrder(t *testing.T) {
	t.Parallel()

	first := report.ImageName(0, "abcd1234", render.RenderedPage{Sequence: 2})
	second := report.ImageName(1, "ffff0000", render.RenderedPage{Sequence: 1})

	require.Equal(t, "001_abcd1234_002.png", first)
	require.Equal(t, "002_ffff0000_001.png", second)
	require.Less(t, first, second)
}
