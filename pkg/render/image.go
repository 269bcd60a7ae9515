package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fogleman/gg"

	"github.com/diffreel/diffreel/pkg/diffmodel"
)

// Page geometry in pixels.
const (
	rowHeight    = 18
	headerHeight = 40
	bottomPad    = 10
	gutterWidth  = 52
	cellPadX     = 8
	textBaseline = 13 // offset of the text baseline within a row
)

// GitHub-style diff palette. The class-to-color mapping is fixed for a run.
const (
	colorPageBG      = "#ffffff"
	colorHeaderBG    = "#f6f8fa"
	colorHeaderText  = "#24292e"
	colorHeaderMeta  = "#6a737d"
	colorBorder      = "#e1e4e8"
	colorGutterBG    = "#f6f8fa"
	colorGutterText  = "#959da5"
	colorCodeText    = "#24292e"
	colorRemovedBG   = "#ffeef0"
	colorRemovedDark = "#fdb8c0"
	colorAddedBG     = "#e6ffed"
	colorAddedDark   = "#acf2bd"
	colorHunkBG      = "#f1f8ff"
	colorHunkText    = "#005cc5"
	colorMarkerText  = "#6a737d"
)

// drawPage renders one page of aligned rows into a PNG buffer.
func (r *Renderer) drawPage(fd *diffmodel.FileDiff, rows []Row, pageIndex, pageCount int) (RenderedPage, error) {
	width := r.opts.Width
	height := headerHeight + len(rows)*rowHeight + bottomPad

	dc := gg.NewContext(width, height)
	dc.SetFontFace(r.face)

	dc.SetHexColor(colorPageBG)
	dc.Clear()

	r.drawFileHeader(dc, fd, pageIndex, pageCount)

	colWidth := (width - 2*gutterWidth) / 2
	leftCodeX := gutterWidth
	rightGutterX := gutterWidth + colWidth
	rightCodeX := rightGutterX + gutterWidth
	rightColWidth := width - rightCodeX

	for i, row := range rows {
		y := headerHeight + i*rowHeight

		switch row.Kind {
		case RowHunkHeader:
			dc.SetHexColor(colorHunkBG)
			dc.DrawRectangle(0, float64(y), float64(width), rowHeight)
			dc.Fill()
			dc.SetHexColor(colorHunkText)
			dc.DrawString(r.clip(row.Text, width-2*cellPadX), cellPadX, float64(y+textBaseline))
		case RowMarker:
			dc.SetHexColor(colorMarkerText)
			dc.DrawString(r.clip(row.Text, width-2*cellPadX), cellPadX, float64(y+textBaseline))
		case RowLine:
			r.drawCell(dc, row.Left, 0, leftCodeX, colWidth, y)
			r.drawCell(dc, row.Right, rightGutterX, rightCodeX, rightColWidth, y)
		}
	}

	// Column separator.
	dc.SetHexColor(colorBorder)
	dc.DrawLine(float64(rightGutterX), headerHeight, float64(rightGutterX), float64(height-bottomPad))
	dc.Stroke()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return RenderedPage{}, fmt.Errorf("encode page %d of %s: %w", pageIndex, fd.Path, err)
	}

	return RenderedPage{
		FilePath:  fd.Path,
		PageIndex: pageIndex,
		Image:     buf.Bytes(),
		Width:     width,
		Height:    height,
	}, nil
}

func (r *Renderer) drawFileHeader(dc *gg.Context, fd *diffmodel.FileDiff, pageIndex, pageCount int) {
	dc.SetHexColor(colorHeaderBG)
	dc.DrawRectangle(0, 0, float64(r.opts.Width), headerHeight)
	dc.Fill()

	dc.SetHexColor(colorBorder)
	dc.DrawLine(0, headerHeight, float64(r.opts.Width), headerHeight)
	dc.Stroke()

	title := fd.Path
	if fd.OldPath != "" && fd.OldPath != fd.Path {
		title = fd.OldPath + " → " + fd.Path
	}

	dc.SetHexColor(colorHeaderText)
	dc.DrawString(r.clip(title, r.opts.Width/2), cellPadX, headerHeight/2+fontSize/2)

	meta := strings.ToUpper(fd.Kind.String())
	if fd.Truncated {
		meta += " · truncated"
	}

	if pageCount > 1 {
		meta += fmt.Sprintf(" · page %d/%d", pageIndex, pageCount)
	}

	metaWidth, _ := dc.MeasureString(meta)
	dc.SetHexColor(colorHeaderMeta)
	dc.DrawString(meta, float64(r.opts.Width)-metaWidth-cellPadX, headerHeight/2+fontSize/2)
}

// drawCell paints one side of a code row: its number gutter, background
// tint, intraline highlight spans, and text.
func (r *Renderer) drawCell(dc *gg.Context, cell Cell, gutterX, codeX, codeWidth, y int) {
	dc.SetHexColor(colorGutterBG)
	dc.DrawRectangle(float64(gutterX), float64(y), gutterWidth, rowHeight)
	dc.Fill()

	if cell.Class == ClassBlank {
		return
	}

	bg, highlight := cellColors(cell.Class)
	if bg != "" {
		dc.SetHexColor(bg)
		dc.DrawRectangle(float64(codeX), float64(y), float64(codeWidth), rowHeight)
		dc.Fill()
	}

	text := r.expandText(cell.Text)

	if highlight != "" {
		r.drawSpans(dc, r.expandSpans(cell.Text, cell.Spans), codeX, codeWidth, y, highlight)
	}

	if cell.Number > 0 {
		number := fmt.Sprintf("%d", cell.Number)
		numberWidth, _ := dc.MeasureString(number)
		dc.SetHexColor(colorGutterText)
		dc.DrawString(number, float64(gutterX)+gutterWidth-numberWidth-cellPadX/2, float64(y+textBaseline))
	}

	dc.SetHexColor(colorCodeText)
	dc.DrawString(r.clip(text, codeWidth-2*cellPadX), float64(codeX+cellPadX), float64(y+textBaseline))
}

func (r *Renderer) drawSpans(dc *gg.Context, spans []Span, codeX, codeWidth, y int, color string) {
	maxChars := r.maxChars(codeWidth - 2*cellPadX)

	dc.SetHexColor(color)

	for _, span := range spans {
		start, end := span.Start, span.End
		if start >= maxChars {
			continue
		}

		if end > maxChars {
			end = maxChars
		}

		x := float64(codeX+cellPadX) + float64(start)*r.charWidth
		dc.DrawRectangle(x, float64(y), float64(end-start)*r.charWidth, rowHeight)
		dc.Fill()
	}
}

// expandSpans shifts intraline span offsets so they land on the same runes
// after tab expansion. Spans are computed on the raw line text, but cells
// draw the expanded text.
func (r *Renderer) expandSpans(text string, spans []Span) []Span {
	if len(spans) == 0 || !strings.ContainsRune(text, '\t') {
		return spans
	}

	// cols[i] is the drawn column of the i-th rune; the final entry is the
	// column one past the last rune, so span ends stay addressable.
	cols := make([]int, 0, len(text)+1)
	col := 0

	for _, ch := range text {
		cols = append(cols, col)

		if ch == '\t' {
			col += r.opts.TabWidth
		} else {
			col++
		}
	}

	cols = append(cols, col)

	shifted := make([]Span, len(spans))

	for i, span := range spans {
		start, end := span.Start, span.End
		if start >= len(cols) {
			start = len(cols) - 1
		}

		if end >= len(cols) {
			end = len(cols) - 1
		}

		shifted[i] = Span{Start: cols[start], End: cols[end]}
	}

	return shifted
}

func cellColors(class CellClass) (bg, highlight string) {
	switch class {
	case ClassRemoved:
		return colorRemovedBG, colorRemovedDark
	case ClassAdded:
		return colorAddedBG, colorAddedDark
	case ClassContext, ClassBlank:
		return "", ""
	}

	return "", ""
}

// clip truncates text to the given pixel width, appending an ellipsis when
// anything was cut. The face is monospaced, so width maps to a rune count.
func (r *Renderer) clip(text string, width int) string {
	maxChars := r.maxChars(width)
	runes := []rune(text)

	if len(runes) <= maxChars {
		return text
	}

	if maxChars < 1 {
		return ""
	}

	return string(runes[:maxChars-1]) + "…"
}

func (r *Renderer) maxChars(width int) int {
	if r.charWidth <= 0 {
		return 0
	}

	return int(float64(width) / r.charWidth)
}
