package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// FileStat is the line count summary of one file in a tree diff.
type FileStat struct {
	Path    string
	Added   int64
	Removed int64
}

// fileStatState accumulates line counts while libgit2 streams a diff.
type fileStatState struct {
	stats   []FileStat
	current int
}

// processLine counts one diff line against the file currently being streamed.
func (s *fileStatState) processLine(line git2go.DiffLine) {
	switch line.Origin {
	case git2go.DiffLineAddition:
		s.stats[s.current].Added++
	case git2go.DiffLineDeletion:
		s.stats[s.current].Removed++
	case git2go.DiffLineContext,
		git2go.DiffLineContextEOFNL,
		git2go.DiffLineAddEOFNL,
		git2go.DiffLineDelEOFNL,
		git2go.DiffLineFileHdr,
		git2go.DiffLineHunkHdr,
		git2go.DiffLineBinary:
		return
	}
}

// Diff wraps a libgit2 diff.
type Diff struct {
	diff *git2go.Diff
}

// NumDeltas returns the number of deltas in the diff.
func (d *Diff) NumDeltas() (int, error) {
	numDeltas, err := d.diff.NumDeltas()
	if err != nil {
		return 0, fmt.Errorf("get num deltas: %w", err)
	}

	return numDeltas, nil
}

// FileStats returns one entry per changed file with its added and removed
// line counts. Deleted files are reported under their old path, everything
// else under the new path. Binary files appear with zero counts.
func (d *Diff) FileStats() ([]FileStat, error) {
	numDeltas, err := d.NumDeltas()
	if err != nil {
		return nil, err
	}

	state := &fileStatState{stats: make([]FileStat, 0, numDeltas), current: -1}

	fileCallback := func(delta git2go.DiffDelta, _ float64) (git2go.DiffForEachHunkCallback, error) {
		path := delta.NewFile.Path
		if delta.Status == git2go.DeltaDeleted {
			path = delta.OldFile.Path
		}

		state.stats = append(state.stats, FileStat{Path: path})
		state.current = len(state.stats) - 1

		return func(_ git2go.DiffHunk) (git2go.DiffForEachLineCallback, error) {
			return func(line git2go.DiffLine) error {
				state.processLine(line)

				return nil
			}, nil
		}, nil
	}

	err = d.diff.ForEach(fileCallback, git2go.DiffDetailLines)
	if err != nil {
		return nil, fmt.Errorf("diff foreach: %w", err)
	}

	return state.stats, nil
}

// Free releases the diff resources.
func (d *Diff) Free() {
	if d.diff == nil {
		return
	}

	// Free errors are not actionable during cleanup.
	_ = d.diff.Free()
	d.diff = nil
}
