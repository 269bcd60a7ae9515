package gitsrc

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// TestSource is an in-memory Source for unit tests. It models commit graphs,
// refs, reflogs, and per-commit patches without touching a real repository.
type TestSource struct {
	Commits map[Hash]CommitRef
	Refs    map[string]Hash
	Reflogs map[string][]ReflogEntry
	Changes map[Hash][]Change
	Patches map[Hash]map[string]string
}

// NewTestSource creates an empty TestSource.
func NewTestSource() *TestSource {
	return &TestSource{
		Commits: make(map[Hash]CommitRef),
		Refs:    make(map[string]Hash),
		Reflogs: make(map[string][]ReflogEntry),
		Changes: make(map[Hash][]Change),
		Patches: make(map[Hash]map[string]string),
	}
}

// AddCommit registers a commit with the given hex hash, author time, and
// parent hex hashes, and returns its CommitRef.
func (ts *TestSource) AddCommit(hexHash string, when time.Time, message string, parents ...string) CommitRef {
	parentHashes := make([]Hash, 0, len(parents))
	for _, p := range parents {
		parentHashes = append(parentHashes, NewHash(p))
	}

	ref := CommitRef{
		Hash:    NewHash(hexHash),
		Parents: parentHashes,
		Author: Signature{
			Name:  "Test Author",
			Email: "test@example.com",
			When:  when,
		},
		Message: message,
	}

	ts.Commits[ref.Hash] = ref

	return ref
}

// SetRef points a ref name at a commit hex hash.
func (ts *TestSource) SetRef(name, hexHash string) {
	ts.Refs[name] = NewHash(hexHash)
}

// SetPatch registers the raw patch text for one file of a commit and the
// matching change entry.
func (ts *TestSource) SetPatch(hexHash, path string, kind ChangeKind, patch string) {
	hash := NewHash(hexHash)

	ts.Changes[hash] = append(ts.Changes[hash], Change{Path: path, Kind: kind})

	if ts.Patches[hash] == nil {
		ts.Patches[hash] = make(map[string]string)
	}

	ts.Patches[hash][path] = patch
}

// SetBinary registers a binary change entry for a commit.
func (ts *TestSource) SetBinary(hexHash, path string, kind ChangeKind) {
	hash := NewHash(hexHash)
	ts.Changes[hash] = append(ts.Changes[hash], Change{Path: path, Kind: kind, Binary: true})
}

// GetRef implements Source.
func (ts *TestSource) GetRef(ctx context.Context, name string) (CommitRef, error) {
	if hash, ok := ts.Refs[name]; ok {
		return ts.GetCommit(ctx, hash)
	}

	// Fall back to treating the name as a hash, mirroring rev-parse.
	hash := NewHash(name)
	if commit, ok := ts.Commits[hash]; ok {
		return commit, nil
	}

	return CommitRef{}, fmt.Errorf("%w: %s", ErrRefNotFound, name)
}

// GetCommit implements Source.
func (ts *TestSource) GetCommit(_ context.Context, hash Hash) (CommitRef, error) {
	commit, ok := ts.Commits[hash]
	if !ok {
		return CommitRef{}, fmt.Errorf("%w: %s", ErrCommitNotFound, hash.Short())
	}

	return commit, nil
}

// ListAncestors implements Source with a breadth-first walk over parent
// pointers, newest first.
func (ts *TestSource) ListAncestors(ctx context.Context, from Hash) ([]CommitRef, error) {
	start, err := ts.GetCommit(ctx, from)
	if err != nil {
		return nil, err
	}

	seen := map[Hash]bool{start.Hash: true}
	queue := []CommitRef{start}
	ancestors := []CommitRef{}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		ancestors = append(ancestors, current)

		for _, parentHash := range current.Parents {
			if seen[parentHash] {
				continue
			}

			seen[parentHash] = true

			parent, ok := ts.Commits[parentHash]
			if !ok {
				continue
			}

			queue = append(queue, parent)
		}
	}

	sort.SliceStable(ancestors, func(i, j int) bool {
		if !ancestors[i].Author.When.Equal(ancestors[j].Author.When) {
			return ancestors[i].Author.When.After(ancestors[j].Author.When)
		}

		return ancestors[i].Hash.String() > ancestors[j].Hash.String()
	})

	return ancestors, nil
}

// MergeBase implements Source by intersecting ancestor sets and picking the
// newest common commit.
func (ts *TestSource) MergeBase(ctx context.Context, a, b Hash) (Hash, error) {
	ancestorsA, err := ts.ListAncestors(ctx, a)
	if err != nil {
		return Hash{}, err
	}

	inA := make(map[Hash]bool, len(ancestorsA))
	for _, commit := range ancestorsA {
		inA[commit.Hash] = true
	}

	ancestorsB, err := ts.ListAncestors(ctx, b)
	if err != nil {
		return Hash{}, err
	}

	for _, commit := range ancestorsB {
		if inA[commit.Hash] {
			return commit.Hash, nil
		}
	}

	return Hash{}, nil
}

// GetReflog implements Source.
func (ts *TestSource) GetReflog(_ context.Context, refName string) ([]ReflogEntry, error) {
	return ts.Reflogs[refName], nil
}

// ListChanges implements Source.
func (ts *TestSource) ListChanges(_ context.Context, hash Hash) ([]Change, error) {
	return ts.Changes[hash], nil
}

// GetFileDiff implements Source.
func (ts *TestSource) GetFileDiff(_ context.Context, hash Hash, path string) (string, error) {
	patches, ok := ts.Patches[hash]
	if ok {
		if patch, found := patches[path]; found {
			return patch, nil
		}
	}

	return "", fmt.Errorf("%w: no diff for %s in %s", ErrCommitNotFound, path, hash.Short())
}
