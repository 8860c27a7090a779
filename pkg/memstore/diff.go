package memstore

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/branchstat/pkg/diffstat"
	"github.com/Sumatoshi-tech/branchstat/pkg/gitlib"
)

// DiffTrees implements diffstat.DiffSource with a line diff per changed path.
// Changes are returned sorted by path.
func (s *Store) DiffTrees(ctx context.Context, oldTree, newTree gitlib.Hash) ([]diffstat.FileChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err, ok := s.diffFailures[newTree]; ok {
		return nil, fmt.Errorf("%w: tree %s: %w", diffstat.ErrDiffComputation, newTree.Short(), err)
	}

	var oldFiles map[string]string

	if !oldTree.IsZero() {
		files, ok := s.trees[oldTree]
		if !ok {
			return nil, fmt.Errorf("%w: tree %s: %w", diffstat.ErrDiffComputation, oldTree.Short(), ErrNotFound)
		}

		oldFiles = files
	}

	newFiles, ok := s.trees[newTree]
	if !ok {
		return nil, fmt.Errorf("%w: tree %s: %w", diffstat.ErrDiffComputation, newTree.Short(), ErrNotFound)
	}

	changed := make(map[string]struct{})

	for path, content := range newFiles {
		if before, exists := oldFiles[path]; !exists || before != content {
			changed[path] = struct{}{}
		}
	}

	for path := range oldFiles {
		if _, exists := newFiles[path]; !exists {
			changed[path] = struct{}{}
		}
	}

	changes := make([]diffstat.FileChange, 0, len(changed))

	for path := range changed {
		added, removed := lineDelta(oldFiles[path], newFiles[path])
		changes = append(changes, diffstat.FileChange{Path: path, Added: added, Removed: removed})
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })

	return changes, nil
}

// lineDelta counts inserted and deleted lines between two file contents.
func lineDelta(from, to string) (added, removed int64) {
	dmp := diffmatchpatch.New()
	src, dst, _ := dmp.DiffLinesToRunes(from, to)

	for _, edit := range dmp.DiffMainRunes(src, dst, false) {
		lines := int64(utf8.RuneCountInString(edit.Text))

		switch edit.Type {
		case diffmatchpatch.DiffInsert:
			added += lines
		case diffmatchpatch.DiffDelete:
			removed += lines
		case diffmatchpatch.DiffEqual:
		}
	}

	return added, removed
}
