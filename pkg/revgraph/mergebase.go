package revgraph

import (
	"context"

	"github.com/Sumatoshi-tech/branchstat/pkg/gitlib"
)

// MergeBase returns the nearest common ancestor of one and two. The boolean
// is false when either id is zero or the histories share no commit.
//
// When several best common ancestors exist (criss-cross merges) the one with
// the newest commit time wins, ties going to the smallest id, so the result
// does not depend on traversal order.
func MergeBase(ctx context.Context, src CommitSource, one, two gitlib.Hash) (gitlib.Hash, bool, error) {
	if one.IsZero() || two.IsZero() {
		return gitlib.Hash{}, false, nil
	}

	if one == two {
		if _, err := load(ctx, src, one); err != nil {
			return gitlib.Hash{}, false, err
		}

		return one, true, nil
	}

	reachable, err := ancestors(ctx, src, one)
	if err != nil {
		return gitlib.Hash{}, false, err
	}

	candidates, err := frontier(ctx, src, two, reachable)
	if err != nil {
		return gitlib.Hash{}, false, err
	}

	switch len(candidates) {
	case 0:
		return gitlib.Hash{}, false, nil
	case 1:
		return candidates[0], true, nil
	}

	best, err := independent(ctx, src, candidates)
	if err != nil {
		return gitlib.Hash{}, false, err
	}

	return newest(ctx, src, best)
}

// frontier walks from start and stops at the first commits found in
// reachable on every path. Those are the common-ancestor candidates.
func frontier(ctx context.Context, src CommitSource, start gitlib.Hash, reachable map[gitlib.Hash]struct{}) ([]gitlib.Hash, error) {
	var candidates []gitlib.Hash

	visited := make(map[gitlib.Hash]struct{})
	queue := []gitlib.Hash{start}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id := queue[0]
		queue = queue[1:]

		if _, ok := visited[id]; ok {
			continue
		}

		visited[id] = struct{}{}

		if _, ok := reachable[id]; ok {
			candidates = append(candidates, id)

			continue
		}

		commit, err := load(ctx, src, id)
		if err != nil {
			return nil, err
		}

		queue = append(queue, commit.Parents...)
	}

	return candidates, nil
}

// independent drops every candidate that is an ancestor of another candidate.
func independent(ctx context.Context, src CommitSource, candidates []gitlib.Hash) ([]gitlib.Hash, error) {
	redundant := make(map[gitlib.Hash]struct{})

	for _, candidate := range candidates {
		if _, ok := redundant[candidate]; ok {
			continue
		}

		commit, err := load(ctx, src, candidate)
		if err != nil {
			return nil, err
		}

		below, err := ancestors(ctx, src, commit.Parents...)
		if err != nil {
			return nil, err
		}

		for _, other := range candidates {
			if _, ok := below[other]; ok {
				redundant[other] = struct{}{}
			}
		}
	}

	best := make([]gitlib.Hash, 0, len(candidates))

	for _, candidate := range candidates {
		if _, ok := redundant[candidate]; !ok {
			best = append(best, candidate)
		}
	}

	return best, nil
}

func newest(ctx context.Context, src CommitSource, ids []gitlib.Hash) (gitlib.Hash, bool, error) {
	var (
		pick  Commit
		found bool
	)

	for _, id := range ids {
		commit, err := load(ctx, src, id)
		if err != nil {
			return gitlib.Hash{}, false, err
		}

		switch {
		case !found:
			pick, found = commit, true
		case commit.When.After(pick.When):
			pick = commit
		case commit.When.Equal(pick.When) && commit.ID.Compare(pick.ID) < 0:
			pick = commit
		}
	}

	return pick.ID, found, nil
}
