package gitlib

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// Ref name prefixes.
const (
	LocalBranchPrefix  = "refs/heads/"
	RemoteBranchPrefix = "refs/remotes/"
)

// ErrRemoteNotSupported is returned when a remote repository URI is provided.
var ErrRemoteNotSupported = errors.New("remote repositories not supported")

// Repository wraps a libgit2 repository.
//
// A Repository must not be used from several goroutines at once. Callers that
// need parallel reads open one handle per goroutine.
type Repository struct {
	repo *git2go.Repository
	path string
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	if strings.Contains(path, "://") {
		return nil, fmt.Errorf("%w: %s", ErrRemoteNotSupported, path)
	}

	path = strings.TrimSuffix(path, "/")

	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// GitDir returns the path of the .git directory (the repository itself for bare repos).
func (r *Repository) GitDir() string {
	return r.repo.Path()
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// LookupCommit returns the commit with the given hash.
func (r *Repository) LookupCommit(hash Hash) (*Commit, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit %s: %w", hash, err)
	}

	return &Commit{commit: commit}, nil
}

// LookupTree returns the tree with the given hash.
func (r *Repository) LookupTree(hash Hash) (*Tree, error) {
	tree, err := r.repo.LookupTree(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup tree %s: %w", hash, err)
	}

	return &Tree{tree: tree}, nil
}

// LocalBranch returns the tip of refs/heads/<name>. The boolean is false when
// no such branch exists.
func (r *Repository) LocalBranch(name string) (Hash, bool, error) {
	branch, err := r.repo.LookupBranch(name, git2go.BranchLocal)
	if err != nil {
		if isNotFound(err) {
			return Hash{}, false, nil
		}

		return Hash{}, false, fmt.Errorf("lookup branch %s: %w", name, err)
	}
	defer branch.Free()

	return peelToCommit(branch.Reference)
}

// Upstream returns the full ref name and tip of the remote-tracking branch
// configured for the local branch. The boolean is false when the branch has
// no upstream or the tracking ref does not exist.
func (r *Repository) Upstream(name string) (string, Hash, bool, error) {
	branch, err := r.repo.LookupBranch(name, git2go.BranchLocal)
	if err != nil {
		if isNotFound(err) {
			return "", Hash{}, false, nil
		}

		return "", Hash{}, false, fmt.Errorf("lookup branch %s: %w", name, err)
	}
	defer branch.Free()

	upstream, err := branch.Upstream()
	if err != nil {
		if isNotFound(err) {
			return "", Hash{}, false, nil
		}

		return "", Hash{}, false, fmt.Errorf("upstream of %s: %w", name, err)
	}
	defer upstream.Free()

	tip, ok, err := peelToCommit(upstream)

	return upstream.Name(), tip, ok, err
}

// ResolveRef resolves a short or full ref name ("main", "origin/main",
// "refs/remotes/origin/main") the way git's DWIM rules do, peeled to a commit.
func (r *Repository) ResolveRef(name string) (Hash, bool, error) {
	ref, err := r.repo.References.Dwim(name)
	if err != nil {
		if isNotFound(err) {
			return Hash{}, false, nil
		}

		return Hash{}, false, fmt.Errorf("resolve ref %s: %w", name, err)
	}
	defer ref.Free()

	return peelToCommit(ref)
}

// LocalBranchNames returns the short names of all local branches, sorted.
func (r *Repository) LocalBranchNames() ([]string, error) {
	iter, err := r.repo.NewBranchIterator(git2go.BranchLocal)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer iter.Free()

	var names []string

	err = iter.ForEach(func(branch *git2go.Branch, _ git2go.BranchType) error {
		name, nameErr := branch.Name()
		if nameErr != nil {
			return fmt.Errorf("branch name: %w", nameErr)
		}

		names = append(names, name)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}

	sort.Strings(names)

	return names, nil
}

// MergeBase asks libgit2 for the merge base of two commits. The boolean is
// false when the histories are unrelated.
func (r *Repository) MergeBase(one, two Hash) (Hash, bool, error) {
	oid, err := r.repo.MergeBase(one.ToOid(), two.ToOid())
	if err != nil {
		if isNotFound(err) {
			return Hash{}, false, nil
		}

		return Hash{}, false, fmt.Errorf("merge base: %w", err)
	}

	return HashFromOid(oid), true, nil
}

// DiffTreeToTree computes the diff between two trees. A nil tree stands for
// the empty tree.
func (r *Repository) DiffTreeToTree(oldTree, newTree *Tree) (*Diff, error) {
	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	var oldT, newT *git2go.Tree
	if oldTree != nil {
		oldT = oldTree.tree
	}

	if newTree != nil {
		newT = newTree.tree
	}

	diff, err := r.repo.DiffTreeToTree(oldT, newT, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	return &Diff{diff: diff}, nil
}

func peelToCommit(ref *git2go.Reference) (Hash, bool, error) {
	obj, err := ref.Peel(git2go.ObjectCommit)
	if err != nil {
		if isNotFound(err) {
			return Hash{}, false, nil
		}

		return Hash{}, false, fmt.Errorf("peel %s: %w", ref.Name(), err)
	}
	defer obj.Free()

	return HashFromOid(obj.Id()), true, nil
}

func isNotFound(err error) bool {
	return git2go.IsErrorCode(err, git2go.ErrorCodeNotFound)
}
