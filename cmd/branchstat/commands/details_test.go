package commands_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/branchstat/cmd/branchstat/commands"
	"github.com/Sumatoshi-tech/branchstat/pkg/branches"
	"github.com/Sumatoshi-tech/branchstat/pkg/gitlib"
	"github.com/Sumatoshi-tech/branchstat/pkg/gitlib/gittest"
)

// fixture builds a repository where main tracks origin/main, origin/main is
// one commit ahead of the root, main two and topic four.
func fixture(t *testing.T) string {
	t.Helper()

	tr := gittest.New(t)
	root := tr.Commit(gittest.CommitSpec{Files: map[string]string{"README.md": "readme\n"}})
	remote := tr.Chain(root, 1, "remote.txt", gittest.DefaultAuthor())
	main := tr.Chain(root, 2, "main.txt", gittest.DefaultAuthor())
	topic := tr.Chain(root, 4, "topic.txt", gitlib.Signature{Name: "Jane", Email: "jane@example.com"})

	tr.AddRemote("origin")
	tr.SetRef("refs/remotes/origin/main", remote)
	tr.Branch("main", main)
	tr.Branch("topic", topic)
	tr.SetUpstream("main", "origin/main")
	tr.SetHead("main")

	return tr.Path
}

func emptyConfig(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "branchstat.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	return path
}

func runDetails(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := commands.NewDetailsCommand()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func decode(t *testing.T, out string) branches.Report {
	t.Helper()

	var report branches.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	return report
}

func TestDetailsCommand_Flags(t *testing.T) {
	t.Parallel()

	cmd := commands.NewDetailsCommand()

	for _, name := range []string{
		"repo", "config", "target", "base-strategy", "format", "workers",
		"virtual-branches", "remote", "log-level", "log-json",
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag %s", name)
	}

	assert.Equal(t, "origin/main", cmd.Flags().Lookup("target").DefValue)
	assert.Equal(t, "table", cmd.Flags().Lookup("format").DefValue)
}

func TestDetailsCommand_AllBranchesJSON(t *testing.T) {
	path := fixture(t)

	out, err := runDetails(t, "--repo", path, "--config", emptyConfig(t), "--format", "json")
	require.NoError(t, err)

	report := decode(t, out)
	require.Len(t, report.Details, 2)
	assert.Equal(t, "main", report.Details[0].Name)
	assert.Equal(t, "topic", report.Details[1].Name)

	// main is measured against its upstream, topic against origin/main.
	assert.Equal(t, 2, report.Details[0].NumberOfCommits)
	assert.Equal(t, 4, report.Details[1].NumberOfCommits)
	assert.Equal(t, int64(4), report.Details[1].LinesAdded)
}

func TestDetailsCommand_TargetStrategy(t *testing.T) {
	path := fixture(t)

	out, err := runDetails(t, "main",
		"--repo", path, "--config", emptyConfig(t),
		"--format", "json", "--target", "topic", "--base-strategy", "target")
	require.NoError(t, err)

	report := decode(t, out)
	require.Len(t, report.Details, 1)
	assert.Equal(t, 2, report.Details[0].NumberOfCommits)
}

func TestDetailsCommand_Table(t *testing.T) {
	path := fixture(t)

	out, err := runDetails(t, "topic", "--repo", path, "--config", emptyConfig(t))
	require.NoError(t, err)

	assert.Contains(t, out, "topic")
	assert.Contains(t, out, "Jane")
	assert.Contains(t, out, "1 branches")
}

func TestDetailsCommand_YAMLFromConfigFile(t *testing.T) {
	path := fixture(t)

	cfgPath := filepath.Join(t.TempDir(), "branchstat.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output:\n  format: yaml\n"), 0o600))

	out, err := runDetails(t, "topic", "--repo", path, "--config", cfgPath)
	require.NoError(t, err)

	assert.Contains(t, out, "name: topic")
	assert.Contains(t, out, "number_of_commits: 4")
}

func TestDetailsCommand_FlagsFixInvalidConfigFile(t *testing.T) {
	path := fixture(t)

	cfgPath := filepath.Join(t.TempDir(), "branchstat.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("workers: -1\noutput:\n  format: csv\n"), 0o600))

	_, err := runDetails(t, "topic", "--repo", path, "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")

	out, err := runDetails(t, "topic", "--repo", path, "--config", cfgPath, "--workers", "2", "--format", "json")
	require.NoError(t, err)

	report := decode(t, out)
	require.Len(t, report.Details, 1)
	assert.Equal(t, 4, report.Details[0].NumberOfCommits)
}

func TestDetailsCommand_FailedBranch(t *testing.T) {
	path := fixture(t)

	out, err := runDetails(t, "topic", "ghost",
		"--repo", path, "--config", emptyConfig(t), "--format", "json")
	require.ErrorIs(t, err, commands.ErrBranchesFailed)

	report := decode(t, out)
	require.Len(t, report.Details, 1)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "ghost", report.Failures[0].Name)
}

func TestDetailsCommand_InvalidFlags(t *testing.T) {
	path := fixture(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "format", args: []string{"--format", "xml"}},
		{name: "strategy", args: []string{"--base-strategy", "sideways"}},
		{name: "workers", args: []string{"--workers=-1"}},
		{name: "log level", args: []string{"--log-level", "loud"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"--repo", path, "--config", emptyConfig(t)}, tc.args...)

			_, err := runDetails(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validate config")
		})
	}
}

func TestDetailsCommand_MissingRepository(t *testing.T) {
	_, err := runDetails(t, "--repo", filepath.Join(t.TempDir(), "absent"), "--config", emptyConfig(t))
	require.Error(t, err)
}

func TestDetailsCommand_MissingConfig(t *testing.T) {
	path := fixture(t)

	_, err := runDetails(t, "--repo", path, "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
