package render

import (
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// intralineTimeout bounds the character diff for pathological line pairs.
const intralineTimeout = time.Second

// intralineSpans computes the changed rune ranges between a removed line and
// its paired added line. The spans drive the darker highlight drawn inside
// an already-tinted row.
func intralineSpans(oldText, newText string) ([]Span, []Span) {
	if oldText == newText {
		return nil, nil
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = intralineTimeout

	diffs := dmp.DiffMain(oldText, newText, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var (
		oldSpans, newSpans []Span
		oldPos, newPos     int
	)

	for _, part := range diffs {
		runes := len([]rune(part.Text))

		switch part.Type {
		case diffmatchpatch.DiffEqual:
			oldPos += runes
			newPos += runes
		case diffmatchpatch.DiffDelete:
			oldSpans = append(oldSpans, Span{Start: oldPos, End: oldPos + runes})
			oldPos += runes
		case diffmatchpatch.DiffInsert:
			newSpans = append(newSpans, Span{Start: newPos, End: newPos + runes})
			newPos += runes
		}
	}

	return mergeAdjacent(oldSpans), mergeAdjacent(newSpans)
}

func mergeAdjacent(spans []Span) []Span {
	if len(spans) < 2 {
		return spans
	}

	merged := spans[:1]

	for _, span := range spans[1:] {
		last := &merged[len(merged)-1]
		if span.Start <= last.End {
			if span.End > last.End {
				last.End = span.End
			}

			continue
		}

		merged = append(merged, span)
	}

	return merged
}
