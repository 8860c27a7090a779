// Package gitstore serves commits, tree diffs and refs of an on-disk
// repository to the engine through libgit2.
//
// libgit2 objects must not be shared between goroutines, so the store keeps
// a fixed pool of repository handles and every call borrows one. Tree-pair
// diffs are cached in an LRU shared by all handles.
package gitstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/branchstat/pkg/alg/lru"
	"github.com/Sumatoshi-tech/branchstat/pkg/diffstat"
	"github.com/Sumatoshi-tech/branchstat/pkg/gitlib"
	"github.com/Sumatoshi-tech/branchstat/pkg/revgraph"
)

// Defaults.
const (
	DefaultHandles            = 1
	DefaultDiffCacheSize      = 4096
	DefaultDiffCacheFileLimit = 1 << 18
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("gitstore closed")

// treePair keys the diff cache. Tree ids are content hashes, so a cached
// diff never goes stale.
type treePair struct {
	from gitlib.Hash
	to   gitlib.Hash
}

// Store implements revgraph.CommitSource, diffstat.DiffSource and the
// branch ref lookups over one repository.
type Store struct {
	path    string
	gitDir  string
	handles chan *gitlib.Repository
	all     []*gitlib.Repository
	diffs   *lru.Cache[treePair, []diffstat.FileChange]
	logger  *slog.Logger
}

type options struct {
	handles    int
	cacheSize  int
	cacheFiles int64
	logger     *slog.Logger
}

// Option configures a Store.
type Option func(*options)

// WithHandles sets how many repository handles are opened. Use the number
// of workers that will call the store concurrently.
func WithHandles(n int) Option {
	return func(o *options) {
		o.handles = n
	}
}

// WithDiffCacheSize bounds the diff cache by number of tree pairs.
// Zero or less disables caching.
func WithDiffCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// WithDiffCacheFileLimit bounds the diff cache by the total number of file
// changes held across all cached tree pairs. A diff larger than the limit is
// never cached. Zero or less leaves only the tree pair bound.
func WithDiffCacheFileLimit(n int64) Option {
	return func(o *options) {
		o.cacheFiles = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open opens the repository at path with a pool of handles.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := options{
		handles:    DefaultHandles,
		cacheSize:  DefaultDiffCacheSize,
		cacheFiles: DefaultDiffCacheFileLimit,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	cfg.handles = max(cfg.handles, 1)

	store := &Store{
		handles: make(chan *gitlib.Repository, cfg.handles),
		logger:  cfg.logger,
	}

	for range cfg.handles {
		repo, err := gitlib.OpenRepository(path)
		if err != nil {
			store.Close()

			return nil, err
		}

		store.all = append(store.all, repo)
		store.handles <- repo
	}

	store.path = store.all[0].Path()
	store.gitDir = store.all[0].GitDir()

	if cfg.cacheSize > 0 {
		store.diffs = newDiffCache(cfg.cacheSize, cfg.cacheFiles)
	}

	store.logger.Debug("repository opened", "path", store.path, "handles", cfg.handles,
		"diff_cache", cfg.cacheSize, "diff_cache_files", cfg.cacheFiles)

	return store, nil
}

func newDiffCache(pairs int, files int64) *lru.Cache[treePair, []diffstat.FileChange] {
	opts := []lru.Option[treePair, []diffstat.FileChange]{
		lru.WithMaxEntries[treePair, []diffstat.FileChange](pairs),
	}

	if files > 0 {
		opts = append(opts, lru.WithMaxSize[treePair](files, changeCount))
	}

	return lru.New(opts...)
}

// changeCount sizes a cached diff by its file changes. An empty diff still
// occupies one unit.
func changeCount(changes []diffstat.FileChange) int64 {
	return int64(max(len(changes), 1))
}

// Path returns the repository work tree path as given to Open.
func (s *Store) Path() string {
	return s.path
}

// GitDir returns the .git directory.
func (s *Store) GitDir() string {
	return s.gitDir
}

// CacheStats reports diff cache statistics. The zero value means caching is off.
func (s *Store) CacheStats() lru.Stats {
	if s.diffs == nil {
		return lru.Stats{}
	}

	return s.diffs.Stats()
}

// Close frees every handle. It must not race with calls in flight.
func (s *Store) Close() {
	for _, repo := range s.all {
		repo.Free()
	}

	s.all = nil

	if s.handles != nil {
		close(s.handles)
		s.handles = nil
	}
}

// with borrows a handle for the duration of fn.
func (s *Store) with(ctx context.Context, fn func(*gitlib.Repository) error) error {
	if s.handles == nil {
		return ErrClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	var repo *gitlib.Repository

	select {
	case <-ctx.Done():
		return ctx.Err()
	case handle, ok := <-s.handles:
		if !ok {
			return ErrClosed
		}

		repo = handle
	}

	defer func() { s.handles <- repo }()

	return fn(repo)
}

// Commit implements revgraph.CommitSource.
func (s *Store) Commit(ctx context.Context, id gitlib.Hash) (revgraph.Commit, error) {
	var out revgraph.Commit

	err := s.with(ctx, func(repo *gitlib.Repository) error {
		commit, err := repo.LookupCommit(id)
		if err != nil {
			return fmt.Errorf("%w: %w", revgraph.ErrObjectAccess, err)
		}
		defer commit.Free()

		author := commit.Author()

		out = revgraph.Commit{
			ID:      commit.Hash(),
			Parents: commit.ParentHashes(),
			Author:  revgraph.Author{Name: author.Name, Email: author.Email},
			Tree:    commit.TreeHash(),
			When:    commit.Committer().When,
		}

		return nil
	})

	return out, err
}

// DiffTrees implements diffstat.DiffSource. A zero old tree is the empty tree.
func (s *Store) DiffTrees(ctx context.Context, oldTree, newTree gitlib.Hash) ([]diffstat.FileChange, error) {
	key := treePair{from: oldTree, to: newTree}

	if s.diffs != nil {
		if cached, ok := s.diffs.Get(key); ok {
			return cached, nil
		}
	}

	var changes []diffstat.FileChange

	err := s.with(ctx, func(repo *gitlib.Repository) error {
		stats, err := diffTrees(repo, oldTree, newTree)
		if err != nil {
			return err
		}

		changes = make([]diffstat.FileChange, len(stats))
		for i, stat := range stats {
			changes[i] = diffstat.FileChange{Path: stat.Path, Added: stat.Added, Removed: stat.Removed}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.diffs != nil {
		s.diffs.Put(key, changes)
	}

	return changes, nil
}

func diffTrees(repo *gitlib.Repository, oldID, newID gitlib.Hash) ([]gitlib.FileStat, error) {
	var oldTree *gitlib.Tree

	if !oldID.IsZero() {
		tree, err := repo.LookupTree(oldID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", revgraph.ErrObjectAccess, err)
		}
		defer tree.Free()

		oldTree = tree
	}

	newTree, err := repo.LookupTree(newID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", revgraph.ErrObjectAccess, err)
	}
	defer newTree.Free()

	diff, err := repo.DiffTreeToTree(oldTree, newTree)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diffstat.ErrDiffComputation, err)
	}
	defer diff.Free()

	stats, err := diff.FileStats()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diffstat.ErrDiffComputation, err)
	}

	return stats, nil
}
