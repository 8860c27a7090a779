// Package branches computes listing details for virtual and real branches:
// commit count, line totals, touched files and authors, each relative to the
// base the branch is measured against.
package branches

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/branchstat/pkg/gitlib"
)

// Sentinel errors.
var (
	// ErrUnresolvedBranch is returned when a name is neither a virtual nor a real branch.
	ErrUnresolvedBranch = errors.New("unresolved branch")
	// ErrInvalidIdentity is returned for empty branch names.
	ErrInvalidIdentity = errors.New("invalid branch identity")
	// ErrNoTarget is returned when a real branch needs the target branch and it cannot be resolved.
	ErrNoTarget = errors.New("target branch not found")
	// ErrUnknownStrategy is returned by ParseBaseStrategy.
	ErrUnknownStrategy = errors.New("unknown base strategy")
)

// Kind tags a Ref.
type Kind int

// Branch kinds.
const (
	KindVirtual Kind = iota + 1
	KindReal
)

func (k Kind) String() string {
	switch k {
	case KindVirtual:
		return "virtual"
	case KindReal:
		return "real"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Ref is a resolved branch. Which fields are meaningful depends on Kind:
// virtual branches carry Head and IntegrationPoint, real branches carry Tip
// and, when tracked, Upstream and UpstreamTip.
type Ref struct {
	Name string
	Kind Kind

	Head             gitlib.Hash
	IntegrationPoint gitlib.Hash

	Tip         gitlib.Hash
	Upstream    string
	UpstreamTip gitlib.Hash
}

// VirtualRef builds a virtual branch reference. A zero head means the branch
// has no commits yet.
func VirtualRef(name string, head, integrationPoint gitlib.Hash) Ref {
	return Ref{Name: name, Kind: KindVirtual, Head: head, IntegrationPoint: integrationPoint}
}

// RealRef builds a real branch reference. upstream is the full tracking ref
// name, empty when the branch has none.
func RealRef(name string, tip gitlib.Hash, upstream string, upstreamTip gitlib.Hash) Ref {
	return Ref{Name: name, Kind: KindReal, Tip: tip, Upstream: upstream, UpstreamTip: upstreamTip}
}

// HasUpstream reports whether a real branch has a tracking ref.
func (r Ref) HasUpstream() bool {
	return r.Kind == KindReal && r.Upstream != ""
}

// NormalizeName strips a refs/heads/ prefix and surrounding whitespace.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, gitlib.LocalBranchPrefix)

	if name == "" {
		return "", ErrInvalidIdentity
	}

	return name, nil
}

// BaseStrategy names how a real branch's base is chosen.
type BaseStrategy string

// Base strategies.
const (
	// StrategyPreferUpstream measures a branch against its tracking ref when
	// it has one, and against the target branch otherwise.
	StrategyPreferUpstream BaseStrategy = "prefer-upstream"
	// StrategyTarget always measures against the target branch.
	StrategyTarget BaseStrategy = "target"
)

// DefaultBaseStrategy is used when none is configured.
const DefaultBaseStrategy = StrategyPreferUpstream

// ParseBaseStrategy validates a strategy name. Empty selects the default.
func ParseBaseStrategy(s string) (BaseStrategy, error) {
	switch BaseStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultBaseStrategy, nil
	case StrategyPreferUpstream:
		return StrategyPreferUpstream, nil
	case StrategyTarget:
		return StrategyTarget, nil
	default:
		return "", fmt.Errorf("%w: %q (want %s or %s)", ErrUnknownStrategy, s, StrategyPreferUpstream, StrategyTarget)
	}
}

func (s BaseStrategy) String() string {
	return string(s)
}
