package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"

	"github.com/diffreel/diffreel/pkg/diffmodel"
	"github.com/diffreel/diffreel/pkg/runlog"
)

// ErrEncoding is returned when a file's diff text is not decodable as text.
// Per-file, skip-and-warn.
var ErrEncoding = errors.New("undecodable text")

// ErrRenderOverflow is returned when a single hunk produces more rows than
// any paginated layout can hold. Per-hunk, skip-and-warn.
var ErrRenderOverflow = errors.New("hunk too large to render")

// Layout defaults.
const (
	DefaultWidth       = 1200
	DefaultRowsPerPage = 80
	DefaultTabWidth    = 4

	fontSize = 12
	fontDPI  = 72

	// hunkRowCap is the hard ceiling of rows a single hunk may produce.
	// The per-file line ceiling keeps ordinary input far below this.
	hunkRowCap = 10000
)

// Options configures page geometry.
type Options struct {
	// Width is the page width in pixels.
	Width int
	// MaxRowsPerPage caps aligned rows per page; pagination starts a new
	// page when it is reached.
	MaxRowsPerPage int
	// TabWidth is the number of spaces a tab expands to.
	TabWidth int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}

	if o.MaxRowsPerPage <= 0 {
		o.MaxRowsPerPage = DefaultRowsPerPage
	}

	if o.TabWidth <= 0 {
		o.TabWidth = DefaultTabWidth
	}

	return o
}

// RenderedPage is one PNG page of a file's side-by-side diff. The caller
// owns the image buffer once returned.
type RenderedPage struct {
	FilePath  string
	PageIndex int // 1-based within the file
	Sequence  int // per-commit global ordering, assigned at the barrier
	Image     []byte
	Width     int
	Height    int
}

// Renderer draws side-by-side diff pages. Safe for concurrent use; drawing
// state lives per call.
type Renderer struct {
	opts      Options
	face      font.Face
	charWidth float64
	recorder  *runlog.Recorder
}

// New creates a Renderer with an embedded monospace face. The recorder
// receives per-hunk overflow warnings.
func New(opts Options, recorder *runlog.Recorder) (*Renderer, error) {
	parsed, err := opentype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse embedded font: %w", err)
	}

	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     fontDPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("build font face: %w", err)
	}

	advance, ok := face.GlyphAdvance('0')
	if !ok {
		return nil, fmt.Errorf("build font face: %w", errors.New("missing glyph metrics"))
	}

	return &Renderer{
		opts:      opts.withDefaults(),
		face:      face,
		charWidth: float64(advance) / 64,
		recorder:  recorder,
	}, nil
}

// Render produces the ordered page sequence for one file diff. Sequence
// numbers are zero; the pipeline assigns them once all files of the commit
// are collected. Binary diffs and diffs without hunks yield no pages.
func (r *Renderer) Render(ctx context.Context, commit string, fd *diffmodel.FileDiff) ([]RenderedPage, error) {
	if fd.Binary || len(fd.Hunks) == 0 {
		return nil, nil
	}

	if err := checkEncoding(fd); err != nil {
		return nil, err
	}

	rows := r.layoutBounded(commit, fd)
	if len(rows) == 0 {
		return nil, nil
	}

	rowPages := paginate(rows, r.opts.MaxRowsPerPage)
	pages := make([]RenderedPage, 0, len(rowPages))

	for i, pageRows := range rowPages {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		page, err := r.drawPage(fd, pageRows, i+1, len(rowPages))
		if err != nil {
			return nil, err
		}

		pages = append(pages, page)
	}

	return pages, nil
}

// layoutBounded lays out each hunk, dropping any whose row count no
// paginated layout can hold. A drop is retried once with fresh pagination
// before the hunk is rejected and recorded.
func (r *Renderer) layoutBounded(commit string, fd *diffmodel.FileDiff) []Row {
	var rows []Row

	for h := range fd.Hunks {
		single := diffmodel.FileDiff{Path: fd.Path, Kind: fd.Kind, Hunks: fd.Hunks[h : h+1]}

		hunkRows := layoutFile(&single)

		if len(hunkRows) <= r.opts.MaxRowsPerPage {
			rows = append(rows, hunkRows...)

			continue
		}

		// Does not fit one page; retry by letting it span pages.
		if len(hunkRows) <= hunkRowCap {
			rows = append(rows, hunkRows...)

			continue
		}

		r.recorder.Record(runlog.StageRender, commit, fd.Path,
			fmt.Errorf("%w: %d rows", ErrRenderOverflow, len(hunkRows)))
	}

	return rows
}

// checkEncoding verifies every diff line is valid text. NUL bytes or
// invalid UTF-8 mean the file should have been detected as binary upstream.
func checkEncoding(fd *diffmodel.FileDiff) error {
	for h := range fd.Hunks {
		for _, line := range fd.Hunks[h].Lines {
			if !utf8.ValidString(line.Text) || strings.ContainsRune(line.Text, 0) {
				return fmt.Errorf("%w: %s", ErrEncoding, fd.Path)
			}
		}
	}

	return nil
}

// expandText normalizes a diff line for drawing: tabs to spaces, carriage
// returns stripped.
func (r *Renderer) expandText(text string) string {
	text = strings.TrimSuffix(text, "\r")

	if !strings.ContainsRune(text, '\t') {
		return text
	}

	return strings.ReplaceAll(text, "\t", strings.Repeat(" ", r.opts.TabWidth))
}
