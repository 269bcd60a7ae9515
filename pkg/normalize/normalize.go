// Package normalize turns a commit's raw per-file patches into filtered,
// size-bounded structured diffs plus a change summary.
package normalize

import (
	"context"
	"fmt"
	"sort"

	"github.com/diffreel/diffreel/pkg/diffmodel"
	"github.com/diffreel/diffreel/pkg/gitsrc"
	"github.com/diffreel/diffreel/pkg/runlog"
	"github.com/diffreel/diffreel/pkg/textutil"
)

// Defaults for normalization ceilings.
const (
	DefaultMaxFiles          = 10
	DefaultFileLineCeiling   = 100
	DefaultCommitLineCeiling = 1000
)

// Options bounds the output of Normalize.
type Options struct {
	// MaxFiles caps the number of files whose hunks are kept per commit.
	// Files beyond the cap contribute only aggregate counts.
	MaxFiles int
	// ExcludePatterns are glob patterns matched against file paths.
	ExcludePatterns []string
	// FileLineCeiling caps changed lines per file before hunks are truncated.
	FileLineCeiling int
	// CommitLineCeiling caps total changed lines per commit; files past the
	// ceiling are summarized instead of kept.
	CommitLineCeiling int
}

func (o Options) withDefaults() Options {
	if o.MaxFiles <= 0 {
		o.MaxFiles = DefaultMaxFiles
	}

	if o.FileLineCeiling <= 0 {
		o.FileLineCeiling = DefaultFileLineCeiling
	}

	if o.CommitLineCeiling <= 0 {
		o.CommitLineCeiling = DefaultCommitLineCeiling
	}

	return o
}

// ChangeSummary aggregates what happened to a commit during normalization.
type ChangeSummary struct {
	TotalAdded      int
	TotalRemoved    int
	FilesChanged    int
	Truncated       bool
	SummarizedFiles []string
	BinarySkipped   []string
}

// Normalizer fetches and normalizes per-file diffs for commits.
type Normalizer struct {
	src      gitsrc.Source
	recorder *runlog.Recorder
	filter   *fileFilter
	opts     Options
}

// New creates a Normalizer. The recorder receives per-file skip warnings.
func New(src gitsrc.Source, recorder *runlog.Recorder, opts Options) *Normalizer {
	return &Normalizer{
		src:      src,
		recorder: recorder,
		filter:   newFileFilter(opts.ExcludePatterns),
		opts:     opts.withDefaults(),
	}
}

// Normalize produces the ordered, filtered FileDiffs of one commit and its
// ChangeSummary. Per-file failures are recorded and skipped; they never fail
// the commit.
func (n *Normalizer) Normalize(ctx context.Context, commit gitsrc.CommitRef) ([]diffmodel.FileDiff, ChangeSummary, error) {
	changes, err := n.src.ListChanges(ctx, commit.Hash)
	if err != nil {
		return nil, ChangeSummary{}, fmt.Errorf("list changes for %s: %w", commit.Short(), err)
	}

	summary := ChangeSummary{}
	diffs := make([]diffmodel.FileDiff, 0, len(changes))

	for _, change := range changes {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ChangeSummary{}, ctxErr
		}

		if change.Binary {
			summary.BinarySkipped = append(summary.BinarySkipped, change.Path)

			continue
		}

		if n.filter.excluded(change.Path) || !n.filter.textLike(change.Path) {
			continue
		}

		fileDiff, parseErr := n.parseFile(ctx, commit, change)
		if parseErr != nil {
			// A dead context is a commit failure, not a per-file skip:
			// a half-fetched commit must not surface as an empty one.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ChangeSummary{}, ctxErr
			}

			n.recorder.Record(runlog.StageNormalize, commit.Short(), change.Path, parseErr)

			continue
		}

		if fileDiff.Binary {
			summary.BinarySkipped = append(summary.BinarySkipped, change.Path)

			continue
		}

		diffs = append(diffs, fileDiff)
	}

	diffs = n.applyMaxFiles(diffs, &summary)
	diffs = n.applyCommitCeiling(diffs, &summary)

	for i := range diffs {
		if diffs[i].ChangedLines() > n.opts.FileLineCeiling {
			diffs[i] = truncateFileDiff(diffs[i], n.opts.FileLineCeiling)
			summary.Truncated = true
		}

		summary.TotalAdded += diffs[i].Added()
		summary.TotalRemoved += diffs[i].Removed()
	}

	summary.FilesChanged = len(diffs)

	return diffs, summary, nil
}

func (n *Normalizer) parseFile(ctx context.Context, commit gitsrc.CommitRef, change gitsrc.Change) (diffmodel.FileDiff, error) {
	patch, err := n.src.GetFileDiff(ctx, commit.Hash, change.Path)
	if err != nil {
		return diffmodel.FileDiff{}, fmt.Errorf("fetch diff: %w", err)
	}

	// Second-chance binary check; the source's flag misses some blobs.
	if textutil.IsBinary([]byte(patch)) {
		return diffmodel.FileDiff{Path: change.Path, Kind: change.Kind, Binary: true}, nil
	}

	hunks, err := diffmodel.ParsePatch(patch)
	if err != nil {
		return diffmodel.FileDiff{}, err
	}

	return diffmodel.FileDiff{
		Path:    change.Path,
		OldPath: change.OldPath,
		Kind:    change.Kind,
		Hunks:   hunks,
	}, nil
}

// applyMaxFiles keeps the MaxFiles largest diffs (by changed-line count,
// descending) and moves the rest into SummarizedFiles. Kept diffs stay in
// their original path order so downstream page numbering is deterministic.
func (n *Normalizer) applyMaxFiles(diffs []diffmodel.FileDiff, summary *ChangeSummary) []diffmodel.FileDiff {
	if len(diffs) <= n.opts.MaxFiles {
		return diffs
	}

	order := make([]int, len(diffs))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := diffs[order[a]].ChangedLines(), diffs[order[b]].ChangedLines()
		if ca != cb {
			return ca > cb
		}

		return diffs[order[a]].Path < diffs[order[b]].Path
	})

	keep := make(map[int]bool, n.opts.MaxFiles)
	for _, idx := range order[:n.opts.MaxFiles] {
		keep[idx] = true
	}

	kept := make([]diffmodel.FileDiff, 0, n.opts.MaxFiles)

	for i := range diffs {
		if keep[i] {
			kept = append(kept, diffs[i])

			continue
		}

		summary.SummarizedFiles = append(summary.SummarizedFiles, diffs[i].Path)
		summary.TotalAdded += diffs[i].Added()
		summary.TotalRemoved += diffs[i].Removed()
		summary.Truncated = true
	}

	return kept
}

// applyCommitCeiling summarizes trailing files once the cumulative changed
// line count crosses the per-commit ceiling.
func (n *Normalizer) applyCommitCeiling(diffs []diffmodel.FileDiff, summary *ChangeSummary) []diffmodel.FileDiff {
	total := 0

	for i := range diffs {
		total += diffs[i].ChangedLines()
		if total <= n.opts.CommitLineCeiling {
			continue
		}

		// Everything from i on is summarized; i itself pushed us over,
		// unless it is the first file (always keep at least one).
		cut := i
		if cut == 0 {
			cut = 1
		}

		for _, dropped := range diffs[cut:] {
			summary.SummarizedFiles = append(summary.SummarizedFiles, dropped.Path)
			summary.TotalAdded += dropped.Added()
			summary.TotalRemoved += dropped.Removed()
		}

		summary.Truncated = true

		return diffs[:cut]
	}

	return diffs
}
