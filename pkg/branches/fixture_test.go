package branches_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/branchstat/pkg/branches"
	"github.com/Sumatoshi-tech/branchstat/pkg/gitlib"
	"github.com/Sumatoshi-tech/branchstat/pkg/memstore"
	"github.com/Sumatoshi-tech/branchstat/pkg/revgraph"
	"github.com/Sumatoshi-tech/branchstat/pkg/vbranch"
)

const originMain = "refs/remotes/origin/main"

var author = revgraph.Author{Name: "author", Email: "author@example.com"}

// repo is a memstore with one root commit published as origin/main.
type repo struct {
	*memstore.Store

	base    gitlib.Hash
	virtual []vbranch.Branch
}

func newRepo(t *testing.T) *repo {
	t.Helper()

	store := memstore.New()
	base := store.AddCommit(memstore.CommitSpec{Author: author, Files: map[string]string{"README.md": "readme\n"}})
	store.SetRef(originMain, base)

	return &repo{Store: store, base: base}
}

func (r *repo) addVirtual(name string, head, integrationPoint gitlib.Hash) {
	r.virtual = append(r.virtual, vbranch.Branch{Name: name, Head: head, IntegrationPoint: integrationPoint})
}

func (r *repo) virtualStore(t *testing.T) *vbranch.Store {
	t.Helper()

	store, err := vbranch.NewStore(r.virtual...)
	require.NoError(t, err)

	return store
}

func (r *repo) assembler(t *testing.T, cfg branches.Config, opts ...branches.Option) *branches.Assembler {
	t.Helper()

	if cfg.Target == "" {
		cfg.Target = branches.DefaultTarget
	}

	return branches.NewAssembler(r.Store, r.Store, r.Store, r.virtualStore(t), cfg, opts...)
}
