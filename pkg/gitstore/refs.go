package gitstore

import (
	"context"

	"github.com/Sumatoshi-tech/branchstat/pkg/gitlib"
)

// LocalBranch returns the tip of refs/heads/<name>.
func (s *Store) LocalBranch(ctx context.Context, name string) (gitlib.Hash, bool, error) {
	var (
		tip gitlib.Hash
		ok  bool
	)

	err := s.with(ctx, func(repo *gitlib.Repository) error {
		var lookupErr error

		tip, ok, lookupErr = repo.LocalBranch(name)

		return lookupErr
	})

	return tip, ok, err
}

// Upstream returns the remote-tracking ref configured for a local branch.
func (s *Store) Upstream(ctx context.Context, name string) (string, gitlib.Hash, bool, error) {
	var (
		ref string
		tip gitlib.Hash
		ok  bool
	)

	err := s.with(ctx, func(repo *gitlib.Repository) error {
		var lookupErr error

		ref, tip, ok, lookupErr = repo.Upstream(name)

		return lookupErr
	})

	return ref, tip, ok, err
}

// ResolveRef resolves a short or full ref name to a commit.
func (s *Store) ResolveRef(ctx context.Context, name string) (gitlib.Hash, bool, error) {
	var (
		tip gitlib.Hash
		ok  bool
	)

	err := s.with(ctx, func(repo *gitlib.Repository) error {
		var lookupErr error

		tip, ok, lookupErr = repo.ResolveRef(name)

		return lookupErr
	})

	return tip, ok, err
}

// LocalBranchNames lists local branches, sorted.
func (s *Store) LocalBranchNames(ctx context.Context) ([]string, error) {
	var names []string

	err := s.with(ctx, func(repo *gitlib.Repository) error {
		var listErr error

		names, listErr = repo.LocalBranchNames()

		return listErr
	})

	return names, err
}
