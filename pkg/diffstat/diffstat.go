// Package diffstat accumulates line and file statistics over a sequence of
// commits, diffing each commit against its first parent.
package diffstat

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/branchstat/pkg/gitlib"
	"github.com/Sumatoshi-tech/branchstat/pkg/revgraph"
)

// ErrDiffComputation is returned when the diff primitive fails for a tree pair.
var ErrDiffComputation = errors.New("diff computation failure")

// FileChange is the change to one path between two trees.
type FileChange struct {
	Path    string
	Added   int64
	Removed int64
}

// DiffSource computes per-file line changes between two trees. A zero old
// tree stands for the empty tree.
type DiffSource interface {
	DiffTrees(ctx context.Context, oldTree, newTree gitlib.Hash) ([]FileChange, error)
}

// Stats is the aggregate over a commit range.
type Stats struct {
	LinesAdded      int64
	LinesRemoved    int64
	NumberOfFiles   int
	NumberOfCommits int
	// Authors in first-seen order, without duplicates.
	Authors []revgraph.Author
}

// Aggregator folds commits into Stats. It is not safe for concurrent use;
// each branch pipeline owns one.
type Aggregator struct {
	commits revgraph.CommitSource
	diffs   DiffSource

	added   int64
	removed int64
	count   int
	paths   map[string]struct{}
	seen    map[revgraph.Author]struct{}
	authors []revgraph.Author
}

// NewAggregator returns an empty aggregator. commits is used to read first
// parents, diffs to compute each commit's changes.
func NewAggregator(commits revgraph.CommitSource, diffs DiffSource) *Aggregator {
	return &Aggregator{
		commits: commits,
		diffs:   diffs,
		paths:   make(map[string]struct{}),
		seen:    make(map[revgraph.Author]struct{}),
	}
}

// Add diffs commit against its first parent (the empty tree for a root
// commit) and folds the result in. On error the aggregator is unchanged.
func (a *Aggregator) Add(ctx context.Context, commit revgraph.Commit) error {
	var oldTree gitlib.Hash

	if parentID, ok := commit.FirstParent(); ok {
		parent, err := revgraph.LoadCommit(ctx, a.commits, parentID)
		if err != nil {
			return err
		}

		oldTree = parent.Tree
	}

	changes, err := a.diffs.DiffTrees(ctx, oldTree, commit.Tree)
	if err != nil {
		if errors.Is(err, ErrDiffComputation) || ctx.Err() != nil {
			return err
		}

		return fmt.Errorf("%w: commit %s: %w", ErrDiffComputation, commit.ID.Short(), err)
	}

	for _, change := range changes {
		a.added += change.Added
		a.removed += change.Removed
		a.paths[change.Path] = struct{}{}
	}

	a.count++

	if _, ok := a.seen[commit.Author]; !ok {
		a.seen[commit.Author] = struct{}{}
		a.authors = append(a.authors, commit.Author)
	}

	return nil
}

// Stats returns a snapshot of the totals so far.
func (a *Aggregator) Stats() Stats {
	authors := make([]revgraph.Author, len(a.authors))
	copy(authors, a.authors)

	return Stats{
		LinesAdded:      a.added,
		LinesRemoved:    a.removed,
		NumberOfFiles:   len(a.paths),
		NumberOfCommits: a.count,
		Authors:         authors,
	}
}

// Aggregate folds every commit of seq and returns the totals.
func Aggregate(ctx context.Context, commits revgraph.CommitSource, diffs DiffSource, seq []revgraph.Commit) (Stats, error) {
	agg := NewAggregator(commits, diffs)

	for _, commit := range seq {
		if err := ctx.Err(); err != nil {
			return Stats{}, err
		}

		if err := agg.Add(ctx, commit); err != nil {
			return Stats{}, err
		}
	}

	return agg.Stats(), nil
}
