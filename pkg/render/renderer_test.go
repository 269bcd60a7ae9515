package render_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/diffreel/diffreel/pkg/diffmodel"
	"github.com/diffreel/diffreel/pkg/render"
	"github.com/diffreel/diffreel/pkg/runlog"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func newRenderer(t *testing.T, opts render.Options, recorder *runlog.Recorder) *render.Renderer {
	t.Helper()

	r, err := render.New(opts, recorder)
	require.NoError(t, err)

	return r
}

func smallDiff(path string, lines int) *diffmodel.FileDiff {
	hunk := diffmodel.Hunk{OldStart: 1, OldCount: lines, NewStart: 1, NewCount: lines}
	for i := 1; i <= lines; i++ {
		hunk.Lines = append(hunk.Lines, diffmodel.DiffLine{
			Kind:    diffmodel.LineContext,
			OldLine: i,
			NewLine: i,
			Text:    fmt.Sprintf("line %d", i),
		})
	}

	return &diffmodel.FileDiff{Path: path, Hunks: []diffmodel.Hunk{hunk}}
}

func TestRender_ProducesPNGPages(t *testing.T) {
	t.Parallel()

	r := newRenderer(t, render.Options{Width: 600}, runlog.NewRecorder(nil))

	pages, err := r.Render(context.Background(), "abc123", smallDiff("main.go", 5))
	require.NoError(t, err)
	require.Len(t, pages, 1)

	page := pages[0]
	require.Equal(t, "main.go", page.FilePath)
	require.Equal(t, 1, page.PageIndex)
	require.Zero(t, page.Sequence)
	require.Equal(t, 600, page.Width)
	require.True(t, bytes.HasPrefix(page.Image, pngMagic))
}

func TestRender_PaginatesLongFiles(t *testing.T) {
	t.Parallel()

	r := newRenderer(t, render.Options{Width: 600, MaxRowsPerPage: 10}, runlog.NewRecorder(nil))

	// 25 context rows plus the hunk header row: 26 rows, 3 pages.
	pages, err := r.Render(context.Background(), "abc123", smallDiff("main.go", 25))
	require.NoError(t, err)
	require.Len(t, pages, 3)

	for i, page := range pages {
		require.Equal(t, i+1, page.PageIndex)
		require.Equal(t, "main.go", page.FilePath)
	}

	// Page splits are deterministic across runs.
	again, err := r.Render(context.Background(), "abc123", smallDiff("main.go", 25))
	require.NoError(t, err)
	require.Len(t, again, 3)

	for i := range pages {
		require.Equal(t, pages[i].Height, again[i].Height)
	}
}

func TestRender_SkipsBinaryAndEmpty(t *testing.T) {
	t.Parallel()

	r := newRenderer(t, render.Options{}, runlog.NewRecorder(nil))

	pages, err := r.Render(context.Background(), "abc123", &diffmodel.FileDiff{Path: "x.bin", Binary: true})
	require.NoError(t, err)
	require.Empty(t, pages)

	pages, err = r.Render(context.Background(), "abc123", &diffmodel.FileDiff{Path: "empty.go"})
	require.NoError(t, err)
	require.Empty(t, pages)
}

func TestRender_EncodingFailure(t *testing.T) {
	t.Parallel()

	r := newRenderer(t, render.Options{}, runlog.NewRecorder(nil))

	fd := &diffmodel.FileDiff{
		Path: "weird.dat",
		Hunks: []diffmodel.Hunk{{
			OldStart: 1, OldCount: 1, NewStart: 1, NewCount: 1,
			Lines: []diffmodel.DiffLine{
				{Kind: diffmodel.LineContext, OldLine: 1, NewLine: 1, Text: "data\x00data"},
			},
		}},
	}

	_, err := r.Render(context.Background(), "abc123", fd)
	require.ErrorIs(t, err, render.ErrEncoding)
}

func TestRender_CancelledContext(t *testing.T) {
	t.Parallel()

	r := newRenderer(t, render.Options{}, runlog.NewRecorder(nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, "abc123", smallDiff("main.go", 3))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRender_OversizedHunkIsSkippedWithWarning(t *testing.T) {
	t.Parallel()

	recorder := runlog.NewRecorder(nil)
	r := newRenderer(t, render.Options{Width: 600}, recorder)

	pages, err := r.Render(context.Background(), "abc123", smallDiff("huge.go", 10001))
	require.NoError(t, err)
	require.Empty(t, pages)

	warnings := recorder.Warnings()
	require.Len(t, warnings, 1)
	require.ErrorIs(t, warnings[0].Err, render.ErrRenderOverflow)
	require.Equal(t, "huge.go", warnings[0].Path)
}

func TestRenderCommitCard(t *testing.T) {
	t.Parallel()

	r := newRenderer(t, render.Options{Width: 600}, runlog.NewRecorder(nil))

	page, err := r.RenderCommitCard(render.CommitCard{
		Hash:    "deadbeef",
		Author:  "Dev",
		Email:   "dev@example.com",
		Date:    "2026-08-01",
		Message: "empty commit\n\nbody",
	})
	require.NoError(t, err)
	require.Equal(t, 1, page.PageIndex)
	require.Empty(t, page.FilePath)
	require.True(t, bytes.HasPrefix(page.Image, pngMagic))
}
