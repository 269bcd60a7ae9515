// Package diffmodel defines the structured, line-aligned representation of a
// per-file diff and the parser that builds it from raw unified patch text.
package diffmodel

import "github.com/diffreel/diffreel/pkg/gitsrc"

// LineKind classifies a single diff line.
type LineKind int

// Diff line kinds.
const (
	LineContext LineKind = iota
	LineRemoved
	LineAdded
)

// DiffLine is one line of a hunk. Context lines carry both line numbers,
// removed lines only OldLine, added lines only NewLine. A zero line number
// means "absent"; synthetic omission markers are context lines with both
// numbers zero.
type DiffLine struct {
	Kind    LineKind
	OldLine int
	NewLine int
	Text    string
}

// Hunk is one contiguous changed region with its old/new offsets.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []DiffLine
}

// FileDiff is the structured diff of one file in one commit. Binary diffs
// carry no hunks and are excluded from rendering.
type FileDiff struct {
	Path      string
	OldPath   string // set for renames
	Kind      gitsrc.ChangeKind
	Binary    bool
	Truncated bool
	Hunks     []Hunk
}

// Added returns the number of added lines across all hunks.
func (fd *FileDiff) Added() int {
	total := 0

	for i := range fd.Hunks {
		for j := range fd.Hunks[i].Lines {
			if fd.Hunks[i].Lines[j].Kind == LineAdded {
				total++
			}
		}
	}

	return total
}

// Removed returns the number of removed lines across all hunks.
func (fd *FileDiff) Removed() int {
	total := 0

	for i := range fd.Hunks {
		for j := range fd.Hunks[i].Lines {
			if fd.Hunks[i].Lines[j].Kind == LineRemoved {
				total++
			}
		}
	}

	return total
}

// ChangedLines returns the total number of added plus removed lines.
func (fd *FileDiff) ChangedLines() int {
	return fd.Added() + fd.Removed()
}

// OldLines flattens the hunk back into the old-file line sequence it covers:
// context and removed lines in order. Synthetic marker lines are skipped.
func (h *Hunk) OldLines() []string {
	lines := make([]string, 0, len(h.Lines))

	for i := range h.Lines {
		line := h.Lines[i]
		if line.Kind == LineAdded || isMarker(line) {
			continue
		}

		lines = append(lines, line.Text)
	}

	return lines
}

// NewLines flattens the hunk back into the new-file line sequence it covers:
// context and added lines in order. Synthetic marker lines are skipped.
func (h *Hunk) NewLines() []string {
	lines := make([]string, 0, len(h.Lines))

	for i := range h.Lines {
		line := h.Lines[i]
		if line.Kind == LineRemoved || isMarker(line) {
			continue
		}

		lines = append(lines, line.Text)
	}

	return lines
}

func isMarker(line DiffLine) bool {
	return line.Kind == LineContext && line.OldLine == 0 && line.NewLine == 0
}
