// Package memstore is an in-memory repository: commits, trees, refs and
// upstream configuration held in maps. It implements the commit, diff and
// ref collaborators of the engine and is the fixture store for tests.
package memstore

import (
	"context"
	"crypto/sha1" //nolint:gosec // object ids, not security.
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sumatoshi-tech/branchstat/pkg/gitlib"
	"github.com/Sumatoshi-tech/branchstat/pkg/revgraph"
)

// ErrNotFound is returned for unknown commit or tree ids.
var ErrNotFound = errors.New("object not found")

// epoch is the time of the first commit; each later commit is one minute newer.
var epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// DefaultAuthor is used when a CommitSpec leaves Author empty and NoAuthor
// is unset.
var DefaultAuthor = revgraph.Author{Name: "author", Email: "author@example.com"}

// CommitSpec describes one commit. Files are applied on top of the first
// parent's snapshot; Delete removes paths from it.
type CommitSpec struct {
	Parents []gitlib.Hash
	Author  revgraph.Author
	When    time.Time
	Message string
	Files   map[string]string
	Delete  []string

	// NoAuthor records the commit with an empty name and email.
	NoAuthor bool
}

// Store is safe for concurrent use. Reads take a shared lock.
type Store struct {
	mu        sync.RWMutex
	commits   map[gitlib.Hash]revgraph.Commit
	trees     map[gitlib.Hash]map[string]string
	refs      map[string]gitlib.Hash
	upstreams map[string]string

	commitFailures map[gitlib.Hash]error
	diffFailures   map[gitlib.Hash]error

	clock int
	reads atomic.Int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		commits:        make(map[gitlib.Hash]revgraph.Commit),
		trees:          make(map[gitlib.Hash]map[string]string),
		refs:           make(map[string]gitlib.Hash),
		upstreams:      make(map[string]string),
		commitFailures: make(map[gitlib.Hash]error),
		diffFailures:   make(map[gitlib.Hash]error),
	}
}

// AddCommit records a commit and returns its id. Parents must already exist.
func (s *Store) AddCommit(spec CommitSpec) gitlib.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := make(map[string]string)

	if len(spec.Parents) > 0 {
		parent, ok := s.commits[spec.Parents[0]]
		if !ok {
			panic(fmt.Sprintf("memstore: unknown parent %s", spec.Parents[0]))
		}

		for path, content := range s.trees[parent.Tree] {
			files[path] = content
		}
	}

	for path, content := range spec.Files {
		files[path] = content
	}

	for _, path := range spec.Delete {
		delete(files, path)
	}

	tree := s.putTree(files)

	author := spec.Author
	if author == (revgraph.Author{}) && !spec.NoAuthor {
		author = DefaultAuthor
	}

	when := spec.When
	if when.IsZero() {
		when = epoch.Add(time.Duration(s.clock) * time.Minute)
	}

	s.clock++

	id := objectID("commit", tree.String(), fmt.Sprint(spec.Parents), author.String(),
		when.Format(time.RFC3339Nano), spec.Message, fmt.Sprint(s.clock))

	s.commits[id] = revgraph.Commit{
		ID:      id,
		Parents: append([]gitlib.Hash(nil), spec.Parents...),
		Author:  author,
		Tree:    tree,
		When:    when,
	}

	return id
}

// Chain appends n commits on top of parent, each adding one line to file.
// A zero parent starts a new root. It returns the last commit.
func (s *Store) Chain(parent gitlib.Hash, n int, file string, author revgraph.Author) gitlib.Hash {
	tip := parent

	for i := range n {
		var (
			parents []gitlib.Hash
			content string
		)

		if !tip.IsZero() {
			parents = []gitlib.Hash{tip}
			content = s.fileAt(tip, file)
		}

		tip = s.AddCommit(CommitSpec{
			Parents: parents,
			Author:  author,
			Files:   map[string]string{file: content + fmt.Sprintf("%s line %d\n", file, i)},
		})
	}

	return tip
}

// AddRawCommit stores a commit exactly as given, including parents that do
// not exist or form a cycle. It is meant for corruption tests.
func (s *Store) AddRawCommit(commit revgraph.Commit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commits[commit.ID] = commit
}

// SetBranch points refs/heads/<name> at tip.
func (s *Store) SetBranch(name string, tip gitlib.Hash) {
	s.SetRef(gitlib.LocalBranchPrefix+name, tip)
}

// SetRef points a full ref name at tip.
func (s *Store) SetRef(name string, tip gitlib.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refs[name] = tip
}

// SetUpstream makes a local branch track a full remote ref name,
// e.g. "refs/remotes/origin/main".
func (s *Store) SetUpstream(branch, remoteRef string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upstreams[branch] = remoteRef
}

// FailCommit makes every read of id fail with err.
func (s *Store) FailCommit(id gitlib.Hash, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commitFailures[id] = err
}

// FailDiff makes every diff producing newTree fail with err.
func (s *Store) FailDiff(newTree gitlib.Hash, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.diffFailures[newTree] = err
}

// Reads reports how many commit reads were served.
func (s *Store) Reads() int64 {
	return s.reads.Load()
}

// Commit implements revgraph.CommitSource.
func (s *Store) Commit(ctx context.Context, id gitlib.Hash) (revgraph.Commit, error) {
	if err := ctx.Err(); err != nil {
		return revgraph.Commit{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	s.reads.Add(1)

	if err, ok := s.commitFailures[id]; ok {
		return revgraph.Commit{}, fmt.Errorf("%w: commit %s: %w", revgraph.ErrObjectAccess, id.Short(), err)
	}

	commit, ok := s.commits[id]
	if !ok {
		return revgraph.Commit{}, fmt.Errorf("%w: commit %s: %w", revgraph.ErrObjectAccess, id.Short(), ErrNotFound)
	}

	return commit, nil
}

// LocalBranch returns the tip of refs/heads/<name>.
func (s *Store) LocalBranch(_ context.Context, name string) (gitlib.Hash, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tip, ok := s.refs[gitlib.LocalBranchPrefix+name]

	return tip, ok, nil
}

// Upstream returns the tracking ref configured for a local branch. The
// boolean is false when none is configured or the tracking ref is missing.
func (s *Store) Upstream(_ context.Context, name string) (string, gitlib.Hash, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.refs[gitlib.LocalBranchPrefix+name]; !ok {
		return "", gitlib.Hash{}, false, nil
	}

	remoteRef, ok := s.upstreams[name]
	if !ok {
		return "", gitlib.Hash{}, false, nil
	}

	tip, ok := s.refs[remoteRef]
	if !ok {
		return "", gitlib.Hash{}, false, nil
	}

	return remoteRef, tip, true, nil
}

// ResolveRef resolves a full name, a local branch name or a
// "<remote>/<branch>" short name, in that order.
func (s *Store) ResolveRef(_ context.Context, name string) (gitlib.Hash, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, candidate := range []string{
		name,
		"refs/" + name,
		gitlib.LocalBranchPrefix + name,
		gitlib.RemoteBranchPrefix + name,
	} {
		if tip, ok := s.refs[candidate]; ok {
			return tip, true, nil
		}
	}

	return gitlib.Hash{}, false, nil
}

// LocalBranchNames returns all local branch names, sorted.
func (s *Store) LocalBranchNames(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string

	for ref := range s.refs {
		if name, ok := strings.CutPrefix(ref, gitlib.LocalBranchPrefix); ok {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names, nil
}

// Tree returns the files of a tree.
func (s *Store) Tree(id gitlib.Hash) (map[string]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, ok := s.trees[id]

	return files, ok
}

func (s *Store) fileAt(commit gitlib.Hash, path string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.trees[s.commits[commit].Tree][path]
}

// putTree stores a snapshot under its content id. Callers hold the write lock.
func (s *Store) putTree(files map[string]string) gitlib.Hash {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	parts := make([]string, 0, len(paths)*2+1)
	parts = append(parts, "tree")

	for _, path := range paths {
		parts = append(parts, path, objectID("blob", files[path]).String())
	}

	id := objectID(parts...)

	if _, ok := s.trees[id]; !ok {
		s.trees[id] = files
	}

	return id
}

func objectID(parts ...string) gitlib.Hash {
	h := sha1.New() //nolint:gosec // object ids, not security.

	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}

	var id gitlib.Hash

	copy(id[:], h.Sum(nil))

	return id
}
