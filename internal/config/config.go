// Package config reads run settings from defaults, a config file, the
// environment, and bound command line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	code_dataset "github.com/wbrown/code_dataset"
	"github.com/wbrown/code_dataset/tokenizer"
)

const (
	AppName   = "code_dataset"
	EnvPrefix = "CODE_DATASET"
)

type Config struct {
	Input      string          `mapstructure:"input"`
	Sanitize   bool            `mapstructure:"sanitize"`
	Truncation string          `mapstructure:"truncation"`
	Tokenizer  TokenizerConfig `mapstructure:"tokenizer"`
	Split      SplitConfig     `mapstructure:"split"`
	Output     OutputConfig    `mapstructure:"output"`
	Log        LogConfig       `mapstructure:"log"`
}

type TokenizerConfig struct {
	Id        string `mapstructure:"id"`
	Backend   string `mapstructure:"backend"`
	PadToken  string `mapstructure:"pad_token"`
	MaxLength int    `mapstructure:"max_length"`
	CacheDir  string `mapstructure:"cache_dir"`
	AuthToken string `mapstructure:"auth_token"`
}

type SplitConfig struct {
	TestSize float64 `mapstructure:"test_size"`
	Seed     uint64  `mapstructure:"seed"`
}

type OutputConfig struct {
	Dir    string `mapstructure:"dir"`
	JSON   bool   `mapstructure:"json"`
	Text   bool   `mapstructure:"text"`
	Binary bool   `mapstructure:"binary"`
	Out32  bool   `mapstructure:"out32"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// New returns a viper instance with every key defaulted and environment
// lookups enabled, e.g. CODE_DATASET_SPLIT_TEST_SIZE for split.test_size.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("input", code_dataset.DefaultInput)
	v.SetDefault("sanitize", false)
	v.SetDefault("truncation", string(code_dataset.TruncateWarn))
	v.SetDefault("tokenizer.id", tokenizer.DefaultId)
	v.SetDefault("tokenizer.backend", tokenizer.BackendAuto)
	v.SetDefault("tokenizer.pad_token", "")
	v.SetDefault("tokenizer.max_length", 0)
	v.SetDefault("tokenizer.cache_dir", "")
	v.SetDefault("tokenizer.auth_token", "")
	v.SetDefault("split.test_size", code_dataset.DefaultTestSize)
	v.SetDefault("split.seed", code_dataset.DefaultSeed)
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.json", true)
	v.SetDefault("output.text", true)
	v.SetDefault("output.binary", false)
	v.SetDefault("output.out32", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("tokenizer.auth_token",
		EnvPrefix+"_TOKENIZER_AUTH_TOKEN", "HF_TOKEN")
	return v
}

// Load reads configPath, or `code_dataset.yaml` from the working directory
// or the user config directory when configPath is empty, and unmarshals the
// merged settings. A missing default config file is not an error.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(AppName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", AppName))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) Validate() error {
	if _, err := code_dataset.ParsePolicy(cfg.Truncation); err != nil {
		return err
	}
	if cfg.Split.TestSize < 0 || cfg.Split.TestSize >= 1 {
		return fmt.Errorf("%w: got %v", code_dataset.ErrTestSize,
			cfg.Split.TestSize)
	}
	switch cfg.Tokenizer.Backend {
	case tokenizer.BackendAuto, tokenizer.BackendBPE, tokenizer.BackendHF:
	default:
		return fmt.Errorf("%w: %q", tokenizer.ErrUnknownBackend,
			cfg.Tokenizer.Backend)
	}
	if cfg.Tokenizer.MaxLength < 0 {
		return fmt.Errorf("tokenizer.max_length must not be negative, "+
			"got %d", cfg.Tokenizer.MaxLength)
	}
	return nil
}

// Pipeline converts the settings into a pipeline configuration.
func (cfg *Config) Pipeline() code_dataset.Config {
	policy, _ := code_dataset.ParsePolicy(cfg.Truncation)
	return code_dataset.Config{
		Input:    cfg.Input,
		Sanitize: cfg.Sanitize,
		Tokenizer: tokenizer.Config{
			Id:        cfg.Tokenizer.Id,
			Backend:   cfg.Tokenizer.Backend,
			PadToken:  cfg.Tokenizer.PadToken,
			MaxLength: cfg.Tokenizer.MaxLength,
			CacheDir:  cfg.Tokenizer.CacheDir,
			AuthToken: cfg.Tokenizer.AuthToken,
		},
		Truncation: policy,
		TestSize:   cfg.Split.TestSize,
		Seed:       cfg.Split.Seed,
		Output: code_dataset.SaveOptions{
			OutputDir: cfg.Output.Dir,
			JSON:      cfg.Output.JSON,
			Text:      cfg.Output.Text,
			Binary:    cfg.Output.Binary,
			Out32:     cfg.Output.Out32,
		},
	}
}
