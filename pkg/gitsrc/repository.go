package gitsrc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/diffreel/diffreel/pkg/safeconv"
)

// commitCacheLimit bounds the number of per-commit diff snapshots kept in
// memory. The cache is flushed wholesale when the limit is reached; commit
// processing touches each commit a handful of times in quick succession, so
// a simple flush is enough.
const commitCacheLimit = 64

// ErrUnsupportedScheme is returned when a path does not contain a git repository.
var ErrUnsupportedScheme = errors.New("not a git repository")

// GitSource is a Source backed by a local repository through libgit2.
// All libgit2 access is serialized behind a mutex; libgit2 objects are not
// safe for concurrent use.
type GitSource struct {
	mu    sync.Mutex
	repo  *git2go.Repository
	path  string
	cache map[Hash]*commitChanges
}

// commitChanges is the cached diff snapshot of one commit.
type commitChanges struct {
	changes []Change
	patches map[string]string
}

// Open opens the git repository at path.
func Open(path string) (*GitSource, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, path)
	}

	return &GitSource{
		repo:  repo,
		path:  path,
		cache: make(map[Hash]*commitChanges),
	}, nil
}

// Path returns the repository working path.
func (s *GitSource) Path() string {
	return s.path
}

// Free releases the underlying libgit2 repository.
func (s *GitSource) Free() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo != nil {
		s.repo.Free()
		s.repo = nil
	}
}

// GetRef resolves a branch name, full ref name, or hash prefix to a commit.
func (s *GitSource) GetRef(_ context.Context, name string) (CommitRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, err := s.repo.RevparseSingle(name)
	if err != nil {
		return CommitRef{}, fmt.Errorf("%w: %s", ErrRefNotFound, name)
	}
	defer obj.Free()

	peeled, err := obj.Peel(git2go.ObjectCommit)
	if err != nil {
		return CommitRef{}, fmt.Errorf("%w: %s does not point to a commit", ErrRefNotFound, name)
	}
	defer peeled.Free()

	commit, err := peeled.AsCommit()
	if err != nil {
		return CommitRef{}, fmt.Errorf("%w: %s does not point to a commit", ErrRefNotFound, name)
	}

	return commitRefOf(commit), nil
}

// GetCommit looks up a commit by hash.
func (s *GitSource) GetCommit(_ context.Context, hash Hash) (CommitRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lookupLocked(hash)
}

func (s *GitSource) lookupLocked(hash Hash) (CommitRef, error) {
	commit, err := s.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return CommitRef{}, fmt.Errorf("%w: %s", ErrCommitNotFound, hash.Short())
	}
	defer commit.Free()

	return commitRefOf(commit), nil
}

func commitRefOf(commit *git2go.Commit) CommitRef {
	parentCount := safeconv.MustUintToInt(commit.ParentCount())
	parents := make([]Hash, 0, parentCount)

	for i := 0; i < parentCount; i++ {
		parents = append(parents, HashFromOid(commit.ParentId(safeconv.MustIntToUint(i))))
	}

	author := commit.Author()

	return CommitRef{
		Hash:    HashFromOid(commit.Id()),
		Parents: parents,
		Author: Signature{
			Name:  author.Name,
			Email: author.Email,
			When:  author.When,
		},
		Message: strings.TrimRight(commit.Message(), "\n"),
	}
}

// ListAncestors returns every commit reachable from the given commit,
// including itself, in topological then reverse-chronological order.
func (s *GitSource) ListAncestors(ctx context.Context, from Hash) ([]CommitRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	walk, err := s.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}
	defer walk.Free()

	err = walk.Push(from.ToOid())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCommitNotFound, from.Short())
	}

	walk.Sorting(git2go.SortTime | git2go.SortTopological)

	var (
		ancestors []CommitRef
		iterErr   error
	)

	err = walk.Iterate(func(commit *git2go.Commit) bool {
		if ctxErr := ctx.Err(); ctxErr != nil {
			iterErr = ctxErr

			return false
		}

		ancestors = append(ancestors, commitRefOf(commit))
		commit.Free()

		return true
	})
	if err != nil {
		return nil, fmt.Errorf("walk ancestors: %w", err)
	}

	if iterErr != nil {
		return nil, iterErr
	}

	return ancestors, nil
}

// MergeBase returns the most recent common ancestor of two commits, or the
// zero hash when the histories are unrelated.
func (s *GitSource) MergeBase(_ context.Context, a, b Hash) (Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base, err := s.repo.MergeBase(a.ToOid(), b.ToOid())
	if err != nil {
		var gitErr *git2go.GitError
		if errors.As(err, &gitErr) && gitErr.Code == git2go.ErrorCodeNotFound {
			return Hash{}, nil
		}

		return Hash{}, fmt.Errorf("merge base %s %s: %w", a.Short(), b.Short(), err)
	}

	return HashFromOid(base), nil
}

// ListChanges returns the files touched by a commit relative to its first
// parent, or the empty tree for root commits.
func (s *GitSource) ListChanges(_ context.Context, hash Hash) ([]Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, err := s.changesLocked(hash)
	if err != nil {
		return nil, err
	}

	out := make([]Change, len(cached.changes))
	copy(out, cached.changes)

	return out, nil
}

// GetFileDiff returns the raw unified patch text for one file of a commit.
func (s *GitSource) GetFileDiff(_ context.Context, hash Hash, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, err := s.changesLocked(hash)
	if err != nil {
		return "", err
	}

	patch, ok := cached.patches[path]
	if !ok {
		return "", fmt.Errorf("%w: no diff for %s in %s", ErrCommitNotFound, path, hash.Short())
	}

	return patch, nil
}

func (s *GitSource) changesLocked(hash Hash) (*commitChanges, error) {
	if cached, ok := s.cache[hash]; ok {
		return cached, nil
	}

	commit, err := s.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCommitNotFound, hash.Short())
	}
	defer commit.Free()

	newTree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get commit tree: %w", err)
	}
	defer newTree.Free()

	var oldTree *git2go.Tree

	if commit.ParentCount() > 0 {
		parent := commit.Parent(0)
		if parent == nil {
			return nil, fmt.Errorf("%w: parent of %s", ErrCommitNotFound, hash.Short())
		}
		defer parent.Free()

		oldTree, err = parent.Tree()
		if err != nil {
			return nil, fmt.Errorf("get parent tree: %w", err)
		}
		defer oldTree.Free()
	}

	diff, err := s.diffTreesLocked(oldTree, newTree)
	if err != nil {
		return nil, err
	}
	defer func() { _ = diff.Free() }()

	cached, err := snapshotDiff(diff)
	if err != nil {
		return nil, err
	}

	if len(s.cache) >= commitCacheLimit {
		s.cache = make(map[Hash]*commitChanges)
	}

	s.cache[hash] = cached

	return cached, nil
}

func (s *GitSource) diffTreesLocked(oldTree, newTree *git2go.Tree) (*git2go.Diff, error) {
	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	diff, err := s.repo.DiffTreeToTree(oldTree, newTree, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	findOpts, err := git2go.DefaultDiffFindOptions()
	if err == nil {
		// Rename detection; failure only loses rename kinds.
		_ = diff.FindSimilar(&findOpts)
	}

	return diff, nil
}

func snapshotDiff(diff *git2go.Diff) (*commitChanges, error) {
	numDeltas, err := diff.NumDeltas()
	if err != nil {
		return nil, fmt.Errorf("get num deltas: %w", err)
	}

	cached := &commitChanges{
		changes: make([]Change, 0, numDeltas),
		patches: make(map[string]string, numDeltas),
	}

	for i := 0; i < numDeltas; i++ {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			return nil, fmt.Errorf("get delta %d: %w", i, deltaErr)
		}

		kind, tracked := changeKindOf(delta.Status)
		if !tracked {
			continue
		}

		patchText, binary, patchErr := patchTextOf(diff, i, delta)
		if patchErr != nil {
			return nil, patchErr
		}

		change := Change{
			Path:   delta.NewFile.Path,
			Kind:   kind,
			Binary: binary,
		}

		if change.Path == "" {
			change.Path = delta.OldFile.Path
		}

		if kind == ChangeRenamed {
			change.OldPath = delta.OldFile.Path
		}

		cached.changes = append(cached.changes, change)
		cached.patches[change.Path] = patchText
	}

	return cached, nil
}

func changeKindOf(status git2go.Delta) (ChangeKind, bool) {
	switch status {
	case git2go.DeltaAdded:
		return ChangeAdded, true
	case git2go.DeltaDeleted:
		return ChangeDeleted, true
	case git2go.DeltaModified:
		return ChangeModified, true
	case git2go.DeltaRenamed:
		return ChangeRenamed, true
	default:
		return ChangeModified, false
	}
}

func patchTextOf(diff *git2go.Diff, index int, delta git2go.DiffDelta) (string, bool, error) {
	if delta.Flags&git2go.DiffFlagBinary != 0 {
		return "", true, nil
	}

	patch, err := diff.Patch(index)
	if err != nil {
		return "", false, fmt.Errorf("get patch %d: %w", index, err)
	}
	defer func() { _ = patch.Free() }()

	text, err := patch.String()
	if err != nil {
		return "", false, fmt.Errorf("render patch %d: %w", index, err)
	}

	if strings.Contains(text, "Binary files ") && !strings.Contains(text, "\n@@") {
		return "", true, nil
	}

	return text, false, nil
}
