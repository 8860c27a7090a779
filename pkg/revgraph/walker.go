package revgraph

import (
	"context"
	"errors"
	"io"

	"github.com/Sumatoshi-tech/branchstat/pkg/gitlib"
)

// Walker enumerates the commits reachable from a tip that are not reachable
// from a base, children before ancestors. It is forward-only and cannot be
// restarted; once exhausted every Next returns io.EOF.
type Walker struct {
	src  CommitSource
	tip  gitlib.Hash
	base gitlib.Hash

	hidden  map[gitlib.Hash]struct{}
	visited map[gitlib.Hash]struct{}
	queue   []gitlib.Hash
	started bool
	err     error
}

// NewWalker prepares a walk of tip's history excluding base's history.
// A zero base includes the full history of tip. A zero tip, or a tip equal to
// base, yields nothing. No commit is read until the first Next.
func NewWalker(src CommitSource, tip, base gitlib.Hash) *Walker {
	return &Walker{
		src:     src,
		tip:     tip,
		base:    base,
		visited: make(map[gitlib.Hash]struct{}),
	}
}

// Next returns the next commit, or io.EOF when the walk is done. After a
// failure the same error is returned on every later call.
func (w *Walker) Next(ctx context.Context) (Commit, error) {
	if w.err != nil {
		return Commit{}, w.err
	}

	if !w.started {
		if err := w.start(ctx); err != nil {
			return Commit{}, w.fail(err)
		}
	}

	for len(w.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return Commit{}, w.fail(err)
		}

		id := w.queue[0]
		w.queue = w.queue[1:]

		if w.skip(id) {
			continue
		}

		w.visited[id] = struct{}{}

		commit, err := load(ctx, w.src, id)
		if err != nil {
			return Commit{}, w.fail(err)
		}

		for _, parent := range commit.Parents {
			if !w.skip(parent) {
				w.queue = append(w.queue, parent)
			}
		}

		return commit, nil
	}

	return Commit{}, w.fail(io.EOF)
}

func (w *Walker) start(ctx context.Context) error {
	w.started = true

	if w.tip.IsZero() || w.tip == w.base {
		return nil
	}

	hidden, err := ancestors(ctx, w.src, w.base)
	if err != nil {
		return err
	}

	w.hidden = hidden
	w.queue = append(w.queue, w.tip)

	return nil
}

func (w *Walker) skip(id gitlib.Hash) bool {
	if _, ok := w.visited[id]; ok {
		return true
	}

	_, ok := w.hidden[id]

	return ok
}

func (w *Walker) fail(err error) error {
	w.err = err
	w.queue = nil

	return err
}

// ForEach calls fn for every remaining commit. A non-nil error from fn stops
// the walk and is returned as is.
func (w *Walker) ForEach(ctx context.Context, fn func(Commit) error) error {
	for {
		commit, err := w.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		if fnErr := fn(commit); fnErr != nil {
			return fnErr
		}
	}
}

// CommitsExclusive returns every commit reachable from tip but not from base.
func CommitsExclusive(ctx context.Context, src CommitSource, tip, base gitlib.Hash) ([]Commit, error) {
	var commits []Commit

	err := NewWalker(src, tip, base).ForEach(ctx, func(c Commit) error {
		commits = append(commits, c)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return commits, nil
}
