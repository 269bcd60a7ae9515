// Package render lays structured file diffs into aligned two-column rows and
// draws them onto paginated PNG pages.
package render

import (
	"fmt"

	"github.com/diffreel/diffreel/pkg/diffmodel"
)

// RowKind classifies a layout row.
type RowKind int

// Layout row kinds.
const (
	// RowLine is a regular two-column code row.
	RowLine RowKind = iota
	// RowHunkHeader spans both columns with the hunk offsets.
	RowHunkHeader
	// RowMarker spans both columns with a truncation note.
	RowMarker
)

// CellClass is the visual class of one side of a row. The mapping to colors
// is fixed for a whole run.
type CellClass int

// Cell visual classes.
const (
	// ClassBlank fills the side that has no counterpart line.
	ClassBlank CellClass = iota
	// ClassContext marks unchanged lines, shown on both sides.
	ClassContext
	// ClassRemoved marks old-side lines.
	ClassRemoved
	// ClassAdded marks new-side lines.
	ClassAdded
)

// Span is a half-open rune range highlighted inside a cell's text.
type Span struct {
	Start int
	End   int
}

// Cell is one side of a layout row.
type Cell struct {
	Number int // 0 means no line number
	Text   string
	Class  CellClass
	Spans  []Span
}

// Row is one horizontal slice of the side-by-side layout.
type Row struct {
	Kind  RowKind
	Text  string // header or marker text for full-width rows
	Left  Cell
	Right Cell
}

// layoutFile converts a FileDiff into the flat row sequence of its
// side-by-side view. Context lines occupy both tracks at the same offset;
// removed/added runs are paired row for row with blank fill on the shorter
// side, so row count inside a pairing group is max(left, right).
func layoutFile(fd *diffmodel.FileDiff) []Row {
	var rows []Row

	for h := range fd.Hunks {
		hunk := &fd.Hunks[h]

		rows = append(rows, Row{
			Kind: RowHunkHeader,
			Text: fmt.Sprintf("@@ -%d,%d +%d,%d @@", hunk.OldStart, hunk.OldCount, hunk.NewStart, hunk.NewCount),
		})

		rows = appendHunkRows(rows, hunk.Lines)
	}

	return rows
}

func appendHunkRows(rows []Row, lines []diffmodel.DiffLine) []Row {
	idx := 0

	for idx < len(lines) {
		line := lines[idx]

		switch {
		case isMarkerLine(line):
			rows = append(rows, Row{Kind: RowMarker, Text: line.Text})
			idx++
		case line.Kind == diffmodel.LineContext:
			rows = append(rows, Row{
				Kind:  RowLine,
				Left:  Cell{Number: line.OldLine, Text: line.Text, Class: ClassContext},
				Right: Cell{Number: line.NewLine, Text: line.Text, Class: ClassContext},
			})
			idx++
		default:
			var removed, added []diffmodel.DiffLine

			for idx < len(lines) && lines[idx].Kind == diffmodel.LineRemoved {
				removed = append(removed, lines[idx])
				idx++
			}

			for idx < len(lines) && lines[idx].Kind == diffmodel.LineAdded {
				added = append(added, lines[idx])
				idx++
			}

			rows = appendPairedRows(rows, removed, added)
		}
	}

	return rows
}

// appendPairedRows aligns a run of removed lines against the run of added
// lines that follows it. Paired rows get intraline highlight spans.
func appendPairedRows(rows []Row, removed, added []diffmodel.DiffLine) []Row {
	count := len(removed)
	if len(added) > count {
		count = len(added)
	}

	for i := 0; i < count; i++ {
		row := Row{Kind: RowLine}

		if i < len(removed) {
			row.Left = Cell{Number: removed[i].OldLine, Text: removed[i].Text, Class: ClassRemoved}
		}

		if i < len(added) {
			row.Right = Cell{Number: added[i].NewLine, Text: added[i].Text, Class: ClassAdded}
		}

		if i < len(removed) && i < len(added) {
			row.Left.Spans, row.Right.Spans = intralineSpans(removed[i].Text, added[i].Text)
		}

		rows = append(rows, row)
	}

	return rows
}

func isMarkerLine(line diffmodel.DiffLine) bool {
	return line.Kind == diffmodel.LineContext && line.OldLine == 0 && line.NewLine == 0
}

// paginate splits rows into pages of at most maxRows rows. A hunk may span
// pages; a single row never splits.
func paginate(rows []Row, maxRows int) [][]Row {
	if len(rows) == 0 {
		return nil
	}

	pages := make([][]Row, 0, (len(rows)+maxRows-1)/maxRows)

	for start := 0; start < len(rows); start += maxRows {
		end := start + maxRows
		if end > len(rows) {
			end = len(rows)
		}

		pages = append(pages, rows[start:end])
	}

	return pages
}
