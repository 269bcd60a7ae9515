package diffmodel

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedPatch is returned when raw patch text cannot be parsed into
// hunks. Callers treat it as a per-file, skip-and-warn condition.
var ErrMalformedPatch = errors.New("malformed patch")

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// ParsePatch parses raw unified patch text for a single file into ordered
// hunks with exact old/new line numbering. Header lines before the first
// hunk are ignored; an empty patch yields no hunks.
func ParsePatch(patch string) ([]Hunk, error) {
	var (
		hunks   []Hunk
		current *Hunk
		oldNo   int
		newNo   int
	)

	lines := strings.Split(patch, "\n")

	for idx, raw := range lines {
		// A trailing newline yields one empty final element.
		if raw == "" && idx == len(lines)-1 {
			break
		}

		if hunkHeaderRe.MatchString(raw) {
			if current != nil {
				if err := checkHunkCounts(current); err != nil {
					return nil, err
				}

				hunks = append(hunks, *current)
			}

			hunk, err := parseHunkHeader(raw)
			if err != nil {
				return nil, err
			}

			current = &hunk
			oldNo = hunk.OldStart
			newNo = hunk.NewStart

			continue
		}

		if current == nil {
			// File headers (diff --git, index, ---, +++) precede the first hunk.
			continue
		}

		switch {
		case strings.HasPrefix(raw, " "):
			current.Lines = append(current.Lines, DiffLine{
				Kind:    LineContext,
				OldLine: oldNo,
				NewLine: newNo,
				Text:    raw[1:],
			})
			oldNo++
			newNo++
		case strings.HasPrefix(raw, "-"):
			current.Lines = append(current.Lines, DiffLine{
				Kind:    LineRemoved,
				OldLine: oldNo,
				Text:    raw[1:],
			})
			oldNo++
		case strings.HasPrefix(raw, "+"):
			current.Lines = append(current.Lines, DiffLine{
				Kind:    LineAdded,
				NewLine: newNo,
				Text:    raw[1:],
			})
			newNo++
		case strings.HasPrefix(raw, `\`):
			// "\ No newline at end of file" applies to the preceding line.
		case raw == "":
			// Some producers emit empty context lines without the leading space.
			current.Lines = append(current.Lines, DiffLine{
				Kind:    LineContext,
				OldLine: oldNo,
				NewLine: newNo,
			})
			oldNo++
			newNo++
		default:
			return nil, fmt.Errorf("%w: unexpected line %q", ErrMalformedPatch, raw)
		}
	}

	if current != nil {
		if err := checkHunkCounts(current); err != nil {
			return nil, err
		}

		hunks = append(hunks, *current)
	}

	return hunks, nil
}

func parseHunkHeader(raw string) (Hunk, error) {
	match := hunkHeaderRe.FindStringSubmatch(raw)
	if match == nil {
		return Hunk{}, fmt.Errorf("%w: bad hunk header %q", ErrMalformedPatch, raw)
	}

	oldStart, err := strconv.Atoi(match[1])
	if err != nil {
		return Hunk{}, fmt.Errorf("%w: %v", ErrMalformedPatch, err)
	}

	newStart, err := strconv.Atoi(match[3])
	if err != nil {
		return Hunk{}, fmt.Errorf("%w: %v", ErrMalformedPatch, err)
	}

	oldCount, newCount := 1, 1

	if match[2] != "" {
		oldCount, err = strconv.Atoi(match[2])
		if err != nil {
			return Hunk{}, fmt.Errorf("%w: %v", ErrMalformedPatch, err)
		}
	}

	if match[4] != "" {
		newCount, err = strconv.Atoi(match[4])
		if err != nil {
			return Hunk{}, fmt.Errorf("%w: %v", ErrMalformedPatch, err)
		}
	}

	return Hunk{
		OldStart: oldStart,
		OldCount: oldCount,
		NewStart: newStart,
		NewCount: newCount,
	}, nil
}

// checkHunkCounts verifies that the parsed lines match the extents declared
// in the hunk header. Strictness here is what backs the round-trip law.
func checkHunkCounts(hunk *Hunk) error {
	oldSeen, newSeen := 0, 0

	for i := range hunk.Lines {
		switch hunk.Lines[i].Kind {
		case LineContext:
			oldSeen++
			newSeen++
		case LineRemoved:
			oldSeen++
		case LineAdded:
			newSeen++
		}
	}

	if oldSeen != hunk.OldCount || newSeen != hunk.NewCount {
		return fmt.Errorf("%w: hunk @@ -%d,%d +%d,%d @@ has %d/%d lines",
			ErrMalformedPatch,
			hunk.OldStart, hunk.OldCount, hunk.NewStart, hunk.NewCount,
			oldSeen, newSeen)
	}

	return nil
}
