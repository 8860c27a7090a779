package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	configName = ".branchstat"
	configType = "yaml"
	envPrefix  = "BRANCHSTAT"
)

// LoadConfig reads configuration from configPath, or from .branchstat.yaml in
// the working directory or $HOME when configPath is empty. A missing file in
// the search path is not an error; an explicit path must exist. Values are
// not validated here so callers can apply overrides first; call Validate.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	if err := viperCfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config

	if err := viperCfg.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Target:          DefaultTarget,
		Remotes:         []string{DefaultRemote},
		Base:            BaseConfig{Strategy: DefaultBaseStrategy},
		Workers:         DefaultWorkers,
		DiffCacheSize:   DefaultDiffCacheSize,
		DiffCacheFiles:  DefaultDiffCacheFiles,
		VirtualBranches: VirtualConfig{Path: DefaultVirtualPath},
		Output:          OutputConfig{Format: DefaultFormat},
		Log:             LogConfig{Level: DefaultLogLevel, JSON: DefaultLogJSON},
	}
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("target", DefaultTarget)
	viperCfg.SetDefault("remotes", []string{DefaultRemote})
	viperCfg.SetDefault("base.strategy", DefaultBaseStrategy)
	viperCfg.SetDefault("workers", DefaultWorkers)
	viperCfg.SetDefault("diff_cache_size", DefaultDiffCacheSize)
	viperCfg.SetDefault("diff_cache_files", DefaultDiffCacheFiles)
	viperCfg.SetDefault("virtual_branches.path", DefaultVirtualPath)
	viperCfg.SetDefault("output.format", DefaultFormat)
	viperCfg.SetDefault("log.level", DefaultLogLevel)
	viperCfg.SetDefault("log.json", DefaultLogJSON)
}
