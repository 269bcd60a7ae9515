package gitsrc

import (
	"context"
	"errors"
	"time"
)

// ErrRefNotFound is returned when a branch or ref name cannot be resolved.
var ErrRefNotFound = errors.New("ref not found")

// ErrCommitNotFound is returned when a commit hash does not exist in the repository.
var ErrCommitNotFound = errors.New("commit not found")

// Signature identifies the author of a commit.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// CommitRef is an immutable snapshot of a commit's identity and metadata.
// Identity is the full hash.
type CommitRef struct {
	Hash    Hash
	Parents []Hash
	Author  Signature
	Message string
}

// Short returns the abbreviated commit hash.
func (c CommitRef) Short() string {
	return c.Hash.Short()
}

// ChangeKind classifies how a file changed in a commit.
type ChangeKind int

// File change kinds.
const (
	ChangeModified ChangeKind = iota
	ChangeAdded
	ChangeDeleted
	ChangeRenamed
)

// String returns the lowercase name of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeDeleted:
		return "deleted"
	case ChangeRenamed:
		return "renamed"
	case ChangeModified:
		return "modified"
	}

	return "modified"
}

// Change describes one file touched by a commit. Binary files carry no
// usable patch text.
type Change struct {
	Path    string
	OldPath string
	Kind    ChangeKind
	Binary  bool
}

// ReflogEntry is one recorded position of a reference, newest first when
// returned from GetReflog.
type ReflogEntry struct {
	Position Hash
	Action   string
	When     time.Time
}

// Source is the narrow read interface the pipeline consumes from a
// repository. Implementations must be safe for concurrent use.
type Source interface {
	// GetRef resolves a branch name, ref name, or hash prefix to a commit.
	// Returns ErrRefNotFound when the name cannot be resolved.
	GetRef(ctx context.Context, name string) (CommitRef, error)

	// GetCommit looks up a commit by hash. Returns ErrCommitNotFound when
	// the hash does not exist.
	GetCommit(ctx context.Context, hash Hash) (CommitRef, error)

	// ListAncestors returns every commit reachable from the given commit,
	// including itself, in topological then reverse-chronological order.
	ListAncestors(ctx context.Context, from Hash) ([]CommitRef, error)

	// MergeBase returns the most recent common ancestor of two commits,
	// or the zero hash when the histories are unrelated.
	MergeBase(ctx context.Context, a, b Hash) (Hash, error)

	// GetReflog returns the recorded positions of a local branch ref,
	// newest first. A missing or expired reflog yields an empty slice.
	GetReflog(ctx context.Context, refName string) ([]ReflogEntry, error)

	// ListChanges returns the files touched by a commit relative to its
	// first parent (or the empty tree for root commits).
	ListChanges(ctx context.Context, hash Hash) ([]Change, error)

	// GetFileDiff returns the raw unified patch text for one file of a
	// commit. Binary files yield an empty patch.
	GetFileDiff(ctx context.Context, hash Hash, path string) (string, error)
}
