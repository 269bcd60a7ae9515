package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".diffreel"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for diffreel settings.
const envPrefix = "DIFFREEL"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

// CommitTimeout parses the configured per-commit timeout.
func (c *Config) CommitTimeout() (time.Duration, error) {
	if c.Pipeline.CommitTimeout == "" {
		return 0, nil
	}

	timeout, err := time.ParseDuration(c.Pipeline.CommitTimeout)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCommitTimeout, c.Pipeline.CommitTimeout)
	}

	return timeout, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("range.base", DefaultRangeBase)
	viperCfg.SetDefault("range.mode", DefaultRangeMode)

	viperCfg.SetDefault("diff.max_files", DefaultDiffMaxFiles)
	viperCfg.SetDefault("diff.file_line_ceiling", DefaultFileLineCeiling)
	viperCfg.SetDefault("diff.commit_line_ceiling", DefaultCommitLineCeiling)
	viperCfg.SetDefault("diff.exclude_patterns", []string{})

	viperCfg.SetDefault("render.width", DefaultRenderWidth)
	viperCfg.SetDefault("render.rows_per_page", DefaultRenderRowsPerPage)
	viperCfg.SetDefault("render.tab_width", DefaultRenderTabWidth)

	viperCfg.SetDefault("pipeline.workers", DefaultPipelineWorkers)
	viperCfg.SetDefault("pipeline.commit_timeout", DefaultCommitTimeout)

	viperCfg.SetDefault("output.dir", DefaultOutputDir)
	viperCfg.SetDefault("output.image_dir", DefaultOutputImageDir)
	viperCfg.SetDefault("output.title", "")
}
