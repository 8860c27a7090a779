// Package revgraph walks the commit graph: merge-base resolution and
// enumeration of the commits a branch tip has on top of a base.
//
// Repository access is a CommitSource passed to every call. Nothing in this
// package keeps state between calls.
package revgraph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sumatoshi-tech/branchstat/pkg/gitlib"
)

// ErrObjectAccess is returned when a commit cannot be read from the store.
var ErrObjectAccess = errors.New("object access failure")

// Author identifies who wrote a commit. Git has no separate absent state for
// name or email; an absent field is the empty string. The struct is
// comparable and two authors are equal iff both fields match exactly.
type Author struct {
	Name  string `json:"name"  yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

// String renders the author the way git does.
func (a Author) String() string {
	switch {
	case a.Email == "":
		return a.Name
	case a.Name == "":
		return "<" + a.Email + ">"
	default:
		return a.Name + " <" + a.Email + ">"
	}
}

// Commit is a read-only view of one commit.
type Commit struct {
	ID      gitlib.Hash
	Parents []gitlib.Hash
	Author  Author
	Tree    gitlib.Hash
	When    time.Time
}

// FirstParent returns the primary parent. The boolean is false for root commits.
func (c Commit) FirstParent() (gitlib.Hash, bool) {
	if len(c.Parents) == 0 {
		return gitlib.Hash{}, false
	}

	return c.Parents[0], true
}

// CommitSource reads commits by id. Implementations report missing or
// unreadable commits with an error wrapping ErrObjectAccess and must be safe
// for use by one goroutine at a time per value handed out.
type CommitSource interface {
	Commit(ctx context.Context, id gitlib.Hash) (Commit, error)
}

// load reads a commit and makes sure failures carry ErrObjectAccess.
// Context errors pass through untouched.
func load(ctx context.Context, src CommitSource, id gitlib.Hash) (Commit, error) {
	commit, err := src.Commit(ctx, id)
	if err == nil {
		return commit, nil
	}

	if errors.Is(err, ErrObjectAccess) || ctx.Err() != nil {
		return Commit{}, err
	}

	return Commit{}, fmt.Errorf("%w: commit %s: %w", ErrObjectAccess, id.Short(), err)
}

// LoadCommit reads one commit, wrapping store failures with ErrObjectAccess.
func LoadCommit(ctx context.Context, src CommitSource, id gitlib.Hash) (Commit, error) {
	return load(ctx, src, id)
}

// ancestors returns every commit reachable from roots, roots included.
// Zero roots are ignored.
func ancestors(ctx context.Context, src CommitSource, roots ...gitlib.Hash) (map[gitlib.Hash]struct{}, error) {
	seen := make(map[gitlib.Hash]struct{})
	queue := make([]gitlib.Hash, 0, len(roots))

	for _, root := range roots {
		if !root.IsZero() {
			queue = append(queue, root)
		}
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id := queue[0]
		queue = queue[1:]

		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}

		commit, err := load(ctx, src, id)
		if err != nil {
			return nil, err
		}

		for _, parent := range commit.Parents {
			if _, ok := seen[parent]; !ok {
				queue = append(queue, parent)
			}
		}
	}

	return seen, nil
}
