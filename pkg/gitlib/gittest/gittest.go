// Package gittest builds throwaway libgit2 repositories for tests: commits
// with explicit parents, branches, remotes and upstream configuration.
package gittest

import (
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/branchstat/pkg/gitlib"
)

// Default author used when a CommitSpec leaves Author empty.
const (
	DefaultAuthorName  = "author"
	DefaultAuthorEmail = "author@example.com"
)

// epoch is the timestamp of the first commit; every later commit is one minute newer.
var epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// CommitSpec describes one commit. Files are top-level paths (no directories)
// applied on top of the first parent's snapshot.
type CommitSpec struct {
	Parents []gitlib.Hash
	Author  gitlib.Signature
	Message string
	Files   map[string]string
	Delete  []string
}

// Repo is a repository under construction.
type Repo struct {
	t         testing.TB
	Path      string
	Native    *git2go.Repository
	snapshots map[gitlib.Hash]map[string]string
	clock     int
}

// New initializes an empty non-bare repository in a temporary directory.
// The native handle is freed when the test ends.
func New(t testing.TB) *Repo {
	t.Helper()

	dir := t.TempDir()

	native, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(native.Free)

	return &Repo{
		t:         t,
		Path:      dir,
		Native:    native,
		snapshots: map[gitlib.Hash]map[string]string{},
	}
}

// Commit writes a commit without moving any ref and returns its hash.
func (r *Repo) Commit(spec CommitSpec) gitlib.Hash {
	r.t.Helper()

	files := map[string]string{}
	if len(spec.Parents) > 0 {
		for path, content := range r.snapshots[spec.Parents[0]] {
			files[path] = content
		}
	}

	for path, content := range spec.Files {
		files[path] = content
	}

	for _, path := range spec.Delete {
		delete(files, path)
	}

	treeID := r.writeTree(files)

	tree, err := r.Native.LookupTree(treeID)
	require.NoError(r.t, err)

	defer tree.Free()

	parents := make([]*git2go.Commit, 0, len(spec.Parents))

	for _, hash := range spec.Parents {
		parent, lookupErr := r.Native.LookupCommit(hash.ToOid())
		require.NoError(r.t, lookupErr)

		parents = append(parents, parent)
	}

	defer func() {
		for _, parent := range parents {
			parent.Free()
		}
	}()

	sig := r.signature(spec.Author)

	message := spec.Message
	if message == "" {
		message = fmt.Sprintf("commit %d", r.clock)
	}

	oid, err := r.Native.CreateCommit("", sig, sig, message, tree, parents...)
	require.NoError(r.t, err)

	hash := gitlib.HashFromOid(oid)
	r.snapshots[hash] = files

	return hash
}

// Chain appends n commits on top of parent. Each commit adds one line to file.
// A zero parent starts a new root. It returns the last commit.
func (r *Repo) Chain(parent gitlib.Hash, n int, file string, author gitlib.Signature) gitlib.Hash {
	r.t.Helper()

	tip := parent

	for range n {
		var parents []gitlib.Hash

		content := ""

		if !tip.IsZero() {
			parents = []gitlib.Hash{tip}
			content = r.snapshots[tip][file]
		}

		tip = r.Commit(CommitSpec{
			Parents: parents,
			Author:  author,
			Files:   map[string]string{file: content + fmt.Sprintf("line %d\n", r.clock)},
		})
	}

	return tip
}

// Branch points refs/heads/<name> at target.
func (r *Repo) Branch(name string, target gitlib.Hash) {
	r.t.Helper()

	r.SetRef(gitlib.LocalBranchPrefix+name, target)
}

// SetRef points a full ref name at target, creating or overwriting it.
func (r *Repo) SetRef(name string, target gitlib.Hash) {
	r.t.Helper()

	ref, err := r.Native.References.Create(name, target.ToOid(), true, "gittest")
	require.NoError(r.t, err)

	ref.Free()
}

// SetHead makes HEAD a symbolic ref to refs/heads/<branch>.
func (r *Repo) SetHead(branch string) {
	r.t.Helper()

	require.NoError(r.t, r.Native.SetHead(gitlib.LocalBranchPrefix+branch))
}

// AddRemote registers a remote with the default fetch refspec.
func (r *Repo) AddRemote(name string) {
	r.t.Helper()

	remote, err := r.Native.Remotes.Create(name, "https://example.com/"+name+".git")
	require.NoError(r.t, err)

	remote.Free()
}

// SetUpstream configures the local branch to track upstream, e.g. "origin/main".
// The remote-tracking ref must already exist.
func (r *Repo) SetUpstream(branch, upstream string) {
	r.t.Helper()

	native, err := r.Native.LookupBranch(branch, git2go.BranchLocal)
	require.NoError(r.t, err)

	defer native.Free()

	require.NoError(r.t, native.SetUpstream(upstream))
}

// Snapshot returns the files recorded for a commit created by this Repo.
func (r *Repo) Snapshot(hash gitlib.Hash) map[string]string {
	return r.snapshots[hash]
}

// Open opens a gitlib handle on the repository. It is freed when the test ends.
func (r *Repo) Open() *gitlib.Repository {
	r.t.Helper()

	repo, err := gitlib.OpenRepository(r.Path)
	require.NoError(r.t, err)

	r.t.Cleanup(repo.Free)

	return repo
}

// DefaultAuthor is the signature used when a CommitSpec leaves Author empty.
func DefaultAuthor() gitlib.Signature {
	return gitlib.Signature{Name: DefaultAuthorName, Email: DefaultAuthorEmail}
}

func (r *Repo) signature(author gitlib.Signature) *git2go.Signature {
	if author.Name == "" && author.Email == "" {
		author = DefaultAuthor()
	}

	when := author.When
	if when.IsZero() {
		when = epoch.Add(time.Duration(r.clock) * time.Minute)
	}

	r.clock++

	return &git2go.Signature{Name: author.Name, Email: author.Email, When: when}
}

func (r *Repo) writeTree(files map[string]string) *git2go.Oid {
	r.t.Helper()

	builder, err := r.Native.TreeBuilder()
	require.NoError(r.t, err)

	defer builder.Free()

	paths := make([]string, 0, len(files))
	for path := range files {
		require.False(r.t, strings.Contains(path, "/"), "gittest supports top-level files only: %s", path)

		paths = append(paths, path)
	}

	sort.Strings(paths)

	for _, path := range paths {
		blobID, blobErr := r.Native.CreateBlobFromBuffer([]byte(files[path]))
		require.NoError(r.t, blobErr)

		require.NoError(r.t, builder.Insert(path, blobID, git2go.FilemodeBlob))
	}

	treeID, err := builder.Write()
	require.NoError(r.t, err)

	return treeID
}
