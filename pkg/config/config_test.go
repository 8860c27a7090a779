package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/branchstat/pkg/branches"
	"github.com/Sumatoshi-tech/branchstat/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".branchstat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, branches.StrategyPreferUpstream, cfg.Strategy())
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
}

func TestLoadConfig_FromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
target: upstream/develop
remotes: [upstream, origin]
base:
  strategy: target
workers: 4
diff_cache_size: 100
diff_cache_files: 500
virtual_branches:
  path: /tmp/state.yaml
output:
  format: json
log:
  level: debug
  json: true
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "upstream/develop", cfg.Target)
	assert.Equal(t, []string{"upstream", "origin"}, cfg.Remotes)
	assert.Equal(t, branches.StrategyTarget, cfg.Strategy())
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 100, cfg.DiffCacheSize)
	assert.Equal(t, int64(500), cfg.DiffCacheFiles)
	assert.Equal(t, "/tmp/state.yaml", cfg.VirtualBranches.Path)
	assert.Equal(t, config.FormatJSON, cfg.Output.Format)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
	assert.True(t, cfg.Log.JSON)

	assert.Equal(t, branches.Config{
		Target:   "upstream/develop",
		Strategy: branches.StrategyTarget,
		Remotes:  []string{"upstream", "origin"},
		Workers:  4,
	}, cfg.Engine())
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("BRANCHSTAT_TARGET", "origin/trunk")
	t.Setenv("BRANCHSTAT_BASE_STRATEGY", "target")
	t.Setenv("BRANCHSTAT_WORKERS", "3")
	t.Setenv("BRANCHSTAT_OUTPUT_FORMAT", "yaml")

	cfg, err := config.LoadConfig(writeConfig(t, "target: origin/main\n"))
	require.NoError(t, err)

	assert.Equal(t, "origin/trunk", cfg.Target)
	assert.Equal(t, branches.StrategyTarget, cfg.Strategy())
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, config.FormatYAML, cfg.Output.Format)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_InvalidValuesLeftToValidate(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, "workers: -1\noutput:\n  format: csv\n"))
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Workers)
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalidWorkers)

	cfg.Workers = 2
	cfg.Output.Format = config.FormatJSON
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr error
	}{
		{name: "defaults", mutate: func(*config.Config) {}},
		{name: "empty target", mutate: func(c *config.Config) { c.Target = " " }, wantErr: config.ErrEmptyTarget},
		{name: "empty remote", mutate: func(c *config.Config) { c.Remotes = []string{""} }, wantErr: config.ErrEmptyRemote},
		{name: "unknown strategy", mutate: func(c *config.Config) { c.Base.Strategy = "nearest" }, wantErr: branches.ErrUnknownStrategy},
		{name: "negative workers", mutate: func(c *config.Config) { c.Workers = -2 }, wantErr: config.ErrInvalidWorkers},
		{name: "negative cache", mutate: func(c *config.Config) { c.DiffCacheSize = -1 }, wantErr: config.ErrInvalidCacheSize},
		{name: "negative cache files", mutate: func(c *config.Config) { c.DiffCacheFiles = -1 }, wantErr: config.ErrInvalidCacheSize},
		{name: "unknown format", mutate: func(c *config.Config) { c.Output.Format = "xml" }, wantErr: config.ErrInvalidFormat},
		{name: "upper case format", mutate: func(c *config.Config) { c.Output.Format = "JSON" }},
		{name: "unknown log level", mutate: func(c *config.Config) { c.Log.Level = "chatty" }, wantErr: config.ErrInvalidLogLevel},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}
