// Package resolve turns a requested scope (branch + base, or an explicit
// hash list) into an ordered, deduplicated sequence of commits, handling
// merge topologies including branches already merged into the base.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/diffreel/diffreel/pkg/gitsrc"
	"github.com/diffreel/diffreel/pkg/runlog"
)

// ErrNoUniqueCommits is returned when a branch is fully merged and no reflog
// trail allows reconstructing its pre-merge tip. Non-fatal: callers may fall
// back to all-commits mode or report and exit.
var ErrNoUniqueCommits = errors.New("no branch-unique commits")

// ErrEmptyScope is returned when a scope names neither commits nor a target ref.
var ErrEmptyScope = errors.New("empty scope: no target ref or commit list")

// Mode selects which commits of the target ref belong to the scope.
type Mode int

const (
	// ModeBranchUnique selects commits on the target branch that are not
	// part of the base ref's history.
	ModeBranchUnique Mode = iota
	// ModeAllCommits selects every commit reachable from the target ref.
	ModeAllCommits
)

// Scope describes the requested commit range. Either Hashes or Target must
// be set; Hashes wins when both are present.
type Scope struct {
	Hashes []string // explicit commit hashes or prefixes
	Target string   // branch or ref name
	Base   string   // base ref for branch-unique mode
	Mode   Mode
}

// ResolvedRange is an ordered, oldest-first, duplicate-free commit sequence.
type ResolvedRange []gitsrc.CommitRef

// Resolver resolves scopes against a repository source.
type Resolver struct {
	src      gitsrc.Source
	recorder *runlog.Recorder
}

// New creates a Resolver. Unknown hashes in explicit lists are recorded on
// the recorder as warnings rather than failing the scope.
func New(src gitsrc.Source, recorder *runlog.Recorder) *Resolver {
	return &Resolver{src: src, recorder: recorder}
}

// Resolve produces the commit range for the scope. Ref-resolution failures
// are fatal for the scope; everything else degrades to warnings.
func (r *Resolver) Resolve(ctx context.Context, scope Scope) (ResolvedRange, error) {
	if len(scope.Hashes) > 0 {
		return r.resolveExplicit(ctx, scope.Hashes)
	}

	if scope.Target == "" {
		return nil, ErrEmptyScope
	}

	target, err := r.src.GetRef(ctx, scope.Target)
	if err != nil {
		return nil, fmt.Errorf("resolve target %q: %w", scope.Target, err)
	}

	if scope.Mode == ModeAllCommits {
		return r.resolveAll(ctx, target)
	}

	base, err := r.src.GetRef(ctx, scope.Base)
	if err != nil {
		return nil, fmt.Errorf("resolve base %q: %w", scope.Base, err)
	}

	return r.resolveBranchUnique(ctx, scope, target, base)
}

// resolveExplicit validates each requested hash. Unknown entries are skipped
// with a recorded warning; processing continues for the rest.
func (r *Resolver) resolveExplicit(ctx context.Context, hashes []string) (ResolvedRange, error) {
	seen := make(map[gitsrc.Hash]bool, len(hashes))
	commits := make(ResolvedRange, 0, len(hashes))

	for _, requested := range hashes {
		commit, err := r.src.GetRef(ctx, requested)
		if err != nil {
			r.recorder.Record(runlog.StageResolve, "", "",
				fmt.Errorf("%w: %s", gitsrc.ErrCommitNotFound, requested))

			continue
		}

		if seen[commit.Hash] {
			continue
		}

		seen[commit.Hash] = true
		commits = append(commits, commit)
	}

	sortOldestFirst(commits)

	return commits, nil
}

// resolveAll returns every commit reachable from target, oldest first.
func (r *Resolver) resolveAll(ctx context.Context, target gitsrc.CommitRef) (ResolvedRange, error) {
	ancestors, err := r.src.ListAncestors(ctx, target.Hash)
	if err != nil {
		return nil, fmt.Errorf("list ancestors of %s: %w", target.Short(), err)
	}

	// The source walks newest first; the range is oldest first.
	commits := make(ResolvedRange, 0, len(ancestors))
	for i := len(ancestors) - 1; i >= 0; i-- {
		commits = append(commits, ancestors[i])
	}

	return commits, nil
}

// resolveBranchUnique returns the commits that belong to the target branch
// and not to the base, even when the branch was already merged.
func (r *Resolver) resolveBranchUnique(
	ctx context.Context,
	scope Scope,
	target, base gitsrc.CommitRef,
) (ResolvedRange, error) {
	mergeBase, err := r.src.MergeBase(ctx, target.Hash, base.Hash)
	if err != nil {
		return nil, fmt.Errorf("merge base of %q and %q: %w", scope.Target, scope.Base, err)
	}

	merged := target.Hash == base.Hash || mergeBase == target.Hash
	if merged {
		// The branch tip is already contained in the base; the only trail
		// back to the pre-merge tip is the branch's reflog.
		return r.recoverFromReflog(ctx, scope, base)
	}

	return r.excludeReachable(ctx, target, base)
}

// excludeReachable computes ancestors(target) \ ancestors(base) over full
// ancestry. This naturally yields only the unmerged tail when part of the
// branch was already absorbed by a merge commit.
func (r *Resolver) excludeReachable(ctx context.Context, target, base gitsrc.CommitRef) (ResolvedRange, error) {
	targetAncestors, err := r.src.ListAncestors(ctx, target.Hash)
	if err != nil {
		return nil, fmt.Errorf("list ancestors of %s: %w", target.Short(), err)
	}

	baseAncestors, err := r.src.ListAncestors(ctx, base.Hash)
	if err != nil {
		return nil, fmt.Errorf("list ancestors of %s: %w", base.Short(), err)
	}

	inBase := make(map[gitsrc.Hash]bool, len(baseAncestors))
	for _, commit := range baseAncestors {
		inBase[commit.Hash] = true
	}

	seen := make(map[gitsrc.Hash]bool, len(targetAncestors))
	unique := make(ResolvedRange, 0, len(targetAncestors))

	for _, commit := range targetAncestors {
		if inBase[commit.Hash] || seen[commit.Hash] {
			continue
		}

		seen[commit.Hash] = true
		unique = append(unique, commit)
	}

	sortOldestFirst(unique)

	return unique, nil
}

// recoverFromReflog scans the target branch's reference-update history for
// the last recorded position before it was merged or fast-forwarded, and
// returns the first-parent history strictly between the merge base and that
// position. First-parent traversal keeps commits that entered through an
// unrelated merge out of the result.
func (r *Resolver) recoverFromReflog(ctx context.Context, scope Scope, base gitsrc.CommitRef) (ResolvedRange, error) {
	entries, err := r.src.GetReflog(ctx, scope.Target)
	if err != nil {
		return nil, fmt.Errorf("read reflog of %q: %w", scope.Target, err)
	}

	target, err := r.src.GetRef(ctx, scope.Target)
	if err != nil {
		return nil, fmt.Errorf("resolve target %q: %w", scope.Target, err)
	}

	for _, entry := range entries {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		position := entry.Position
		if position.IsZero() || position == target.Hash {
			continue
		}

		if _, lookupErr := r.src.GetCommit(ctx, position); lookupErr != nil {
			// Reflog positions can outlive the objects they point to.
			continue
		}

		preMergeBase, mbErr := r.src.MergeBase(ctx, base.Hash, position)
		if mbErr != nil {
			return nil, fmt.Errorf("merge base of %q and reflog position %s: %w",
				scope.Base, position.Short(), mbErr)
		}

		if preMergeBase == position {
			// Position fully contained in the base; keep scanning back.
			continue
		}

		return r.firstParentRange(ctx, position, preMergeBase)
	}

	return nil, fmt.Errorf("%w: %q is fully merged into %q and its reflog holds no pre-merge position",
		ErrNoUniqueCommits, scope.Target, scope.Base)
}

// firstParentRange walks first-parent links from tip down to stop
// (exclusive) and returns the commits oldest first.
func (r *Resolver) firstParentRange(ctx context.Context, tip, stop gitsrc.Hash) (ResolvedRange, error) {
	var commits ResolvedRange

	visited := make(map[gitsrc.Hash]bool)
	current := tip

	for !current.IsZero() && current != stop && !visited[current] {
		visited[current] = true

		commit, err := r.src.GetCommit(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("walk first-parent history: %w", err)
		}

		commits = append(commits, commit)

		if len(commit.Parents) == 0 {
			break
		}

		current = commit.Parents[0]
	}

	sortOldestFirst(commits)

	return commits, nil
}

// sortOldestFirst orders commits by author time, breaking ties by hash so
// equal inputs always produce identical ranges.
func sortOldestFirst(commits ResolvedRange) {
	sort.SliceStable(commits, func(i, j int) bool {
		if !commits[i].Author.When.Equal(commits[j].Author.When) {
			return commits[i].Author.When.Before(commits[j].Author.When)
		}

		return commits[i].Hash.String() < commits[j].Hash.String()
	})
}
