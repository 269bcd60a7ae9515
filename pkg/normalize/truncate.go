package normalize

import (
	"fmt"

	"github.com/diffreel/diffreel/pkg/diffmodel"
)

// flatLine addresses one diff line across all hunks of a file.
type flatLine struct {
	hunk    int
	line    diffmodel.DiffLine
	changed bool
}

// truncateFileDiff keeps the first half and last half of the ceiling's worth
// of changed lines and replaces the middle with a synthetic omission marker.
// A file with exactly ceiling changed lines is returned unchanged.
func truncateFileDiff(fd diffmodel.FileDiff, ceiling int) diffmodel.FileDiff {
	total := fd.ChangedLines()
	if total <= ceiling {
		return fd
	}

	firstKeep := (ceiling + 1) / 2
	lastKeep := ceiling - firstKeep

	flat := flattenLines(fd)

	firstDropFlat, lastDropFlat := dropRange(flat, firstKeep, total-lastKeep-1)

	marker := diffmodel.DiffLine{
		Kind: diffmodel.LineContext,
		Text: fmt.Sprintf("… %d lines omitted …", total-ceiling),
	}

	out := diffmodel.FileDiff{
		Path:      fd.Path,
		OldPath:   fd.OldPath,
		Kind:      fd.Kind,
		Binary:    fd.Binary,
		Truncated: true,
	}

	var (
		current     *diffmodel.Hunk
		currentHunk = -1
		inserted    bool
	)

	flush := func() {
		if current != nil {
			out.Hunks = append(out.Hunks, rebuildHunkHeader(*current))
			current = nil
		}
	}

	for idx, item := range flat {
		if idx >= firstDropFlat && idx <= lastDropFlat {
			if !inserted && current != nil {
				current.Lines = append(current.Lines, marker)
				inserted = true
			}

			continue
		}

		if current == nil || currentHunk != item.hunk {
			flush()

			current = &diffmodel.Hunk{}
			currentHunk = item.hunk
		}

		current.Lines = append(current.Lines, item.line)
	}

	flush()

	return out
}

func flattenLines(fd diffmodel.FileDiff) []flatLine {
	var flat []flatLine

	for h := range fd.Hunks {
		for _, line := range fd.Hunks[h].Lines {
			flat = append(flat, flatLine{
				hunk:    h,
				line:    line,
				changed: line.Kind != diffmodel.LineContext,
			})
		}
	}

	return flat
}

// dropRange returns the flat indices of the first and last dropped lines,
// given the ordinals (among changed lines) of the first and last changed
// lines to drop.
func dropRange(flat []flatLine, firstDropOrd, lastDropOrd int) (int, int) {
	firstDropFlat, lastDropFlat := len(flat), -1
	ordinal := 0

	for idx, item := range flat {
		if !item.changed {
			continue
		}

		if ordinal == firstDropOrd {
			firstDropFlat = idx
		}

		if ordinal == lastDropOrd {
			lastDropFlat = idx
		}

		ordinal++
	}

	return firstDropFlat, lastDropFlat
}

// rebuildHunkHeader recomputes a hunk's offsets and extents from the real
// lines it retained, so headers stay consistent after truncation.
func rebuildHunkHeader(hunk diffmodel.Hunk) diffmodel.Hunk {
	for _, line := range hunk.Lines {
		if line.OldLine > 0 {
			hunk.OldStart = line.OldLine

			break
		}
	}

	for _, line := range hunk.Lines {
		if line.NewLine > 0 {
			hunk.NewStart = line.NewLine

			break
		}
	}

	oldCount, newCount := 0, 0

	for _, line := range hunk.Lines {
		if line.OldLine > 0 {
			oldCount++
		}

		if line.NewLine > 0 {
			newCount++
		}
	}

	hunk.OldCount = oldCount
	hunk.NewCount = newCount

	return hunk
}
