// Package vbranch reads virtual branch state: branches that live on top of
// the workspace as a head commit plus the integration point they started
// from, rather than as plain refs.
//
// State is stored as YAML, by default in .git/branchstat/virtual_branches.yaml:
//
//	branches:
//	  - name: feature
//	    head: 3f1c...            # empty while the branch has no commits
//	    integration_point: 9ab2...
package vbranch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/branchstat/pkg/gitlib"
)

// DefaultStatePath is the state file location relative to the .git directory.
const DefaultStatePath = "branchstat/virtual_branches.yaml"

// Sentinel errors.
var (
	ErrEmptyName     = errors.New("virtual branch name is empty")
	ErrDuplicateName = errors.New("duplicate virtual branch name")
	ErrParse         = errors.New("parse virtual branch state")
)

// Branch is one virtual branch.
type Branch struct {
	ID               string      `yaml:"id,omitempty"`
	Name             string      `yaml:"name"`
	Head             gitlib.Hash `yaml:"head"`
	IntegrationPoint gitlib.Hash `yaml:"integration_point"`
	InWorkspace      bool        `yaml:"in_workspace"`
}

// HasCommits reports whether the branch has moved past its integration point.
func (b Branch) HasCommits() bool {
	return !b.Head.IsZero() && b.Head != b.IntegrationPoint
}

type stateFile struct {
	Branches []Branch `yaml:"branches"`
}

// Store is an immutable, name-indexed set of virtual branches. It is safe
// for concurrent reads.
type Store struct {
	byName map[string]Branch
	names  []string
}

// NewStore indexes branches by name.
func NewStore(branches ...Branch) (*Store, error) {
	store := &Store{byName: make(map[string]Branch, len(branches))}

	for _, branch := range branches {
		if branch.Name == "" {
			return nil, ErrEmptyName
		}

		if _, dup := store.byName[branch.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, branch.Name)
		}

		store.byName[branch.Name] = branch
		store.names = append(store.names, branch.Name)
	}

	sort.Strings(store.names)

	return store, nil
}

// Parse decodes a YAML state document.
func Parse(data []byte) (*Store, error) {
	var state stateFile

	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	return NewStore(state.Branches...)
}

// Load reads the state file at path. A missing file is an empty store.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewStore()
	}

	if err != nil {
		return nil, fmt.Errorf("read virtual branch state: %w", err)
	}

	store, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return store, nil
}

// StatePath returns where the state file lives for a repository. A relative
// configured path is taken relative to gitDir; an empty one is the default.
func StatePath(gitDir, configured string) string {
	if configured == "" {
		configured = DefaultStatePath
	}

	if filepath.IsAbs(configured) {
		return configured
	}

	return filepath.Join(gitDir, configured)
}

// Lookup returns the branch with the given name.
func (s *Store) Lookup(name string) (Branch, bool) {
	branch, ok := s.byName[name]

	return branch, ok
}

// Names returns all branch names, sorted.
func (s *Store) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of branches.
func (s *Store) Len() int {
	return len(s.names)
}

// Marshal encodes the store back to the state file format.
func (s *Store) Marshal() ([]byte, error) {
	state := stateFile{Branches: make([]Branch, 0, len(s.names))}

	for _, name := range s.names {
		state.Branches = append(state.Branches, s.byName[name])
	}

	data, err := yaml.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode virtual branch state: %w", err)
	}

	return data, nil
}
