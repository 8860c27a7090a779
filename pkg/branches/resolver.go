package branches

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/branchstat/pkg/gitlib"
	"github.com/Sumatoshi-tech/branchstat/pkg/vbranch"
)

// RefSource answers ref questions about the repository.
type RefSource interface {
	// LocalBranch returns the tip of refs/heads/<name>.
	LocalBranch(ctx context.Context, name string) (gitlib.Hash, bool, error)
	// Upstream returns the full tracking ref name and tip of a local branch.
	Upstream(ctx context.Context, name string) (string, gitlib.Hash, bool, error)
	// ResolveRef resolves a short or full ref name.
	ResolveRef(ctx context.Context, name string) (gitlib.Hash, bool, error)
}

// BranchLister enumerates local branches.
type BranchLister interface {
	LocalBranchNames(ctx context.Context) ([]string, error)
}

// VirtualBranches looks up virtual branch state by name.
type VirtualBranches interface {
	Lookup(name string) (vbranch.Branch, bool)
	Names() []string
}

// Resolver maps branch names to Refs. Virtual branches shadow real branches
// of the same name.
type Resolver struct {
	refs    RefSource
	virtual VirtualBranches
	remotes []string
}

// NewResolver returns a resolver. virtual may be nil when no virtual branch
// state exists. remotes are searched, in order, for remote-tracking branches
// named like the request when no local branch matches.
func NewResolver(refs RefSource, virtual VirtualBranches, remotes []string) *Resolver {
	return &Resolver{refs: refs, virtual: virtual, remotes: remotes}
}

// Resolve looks name up as a virtual branch, then a local branch, then a
// remote-tracking branch on one of the configured remotes.
func (r *Resolver) Resolve(ctx context.Context, name string) (Ref, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return Ref{}, err
	}

	if r.virtual != nil {
		if branch, ok := r.virtual.Lookup(name); ok {
			return VirtualRef(name, branch.Head, branch.IntegrationPoint), nil
		}
	}

	tip, ok, err := r.refs.LocalBranch(ctx, name)
	if err != nil {
		return Ref{}, fmt.Errorf("branch %s: %w", name, err)
	}

	if ok {
		upstream, upstreamTip, tracked, upErr := r.refs.Upstream(ctx, name)
		if upErr != nil {
			return Ref{}, fmt.Errorf("upstream of %s: %w", name, upErr)
		}

		if !tracked {
			return RealRef(name, tip, "", gitlib.Hash{}), nil
		}

		return RealRef(name, tip, upstream, upstreamTip), nil
	}

	for _, remote := range r.remotes {
		remoteTip, found, remoteErr := r.refs.ResolveRef(ctx, gitlib.RemoteBranchPrefix+remote+"/"+name)
		if remoteErr != nil {
			return Ref{}, fmt.Errorf("remote branch %s/%s: %w", remote, name, remoteErr)
		}

		if found {
			return RealRef(name, remoteTip, "", gitlib.Hash{}), nil
		}
	}

	return Ref{}, fmt.Errorf("%w: %s", ErrUnresolvedBranch, name)
}

// AllNames returns every virtual branch name followed by every local branch
// name not shadowed by a virtual branch.
func AllNames(ctx context.Context, lister BranchLister, virtual VirtualBranches) ([]string, error) {
	var names []string

	seen := make(map[string]struct{})

	if virtual != nil {
		for _, name := range virtual.Names() {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	local, err := lister.LocalBranchNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list local branches: %w", err)
	}

	for _, name := range local {
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	return names, nil
}
