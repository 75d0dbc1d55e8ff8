package config

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mrz1836/fhekit/internal/constants"
	"github.com/mrz1836/fhekit/internal/errors"
)

// newViperInstance creates a new Viper instance with the FHEKIT_ environment
// prefix, key replacer and defaults.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// isConfigNotFoundError returns true if the error is a viper config file not found error.
func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

// unmarshalAndValidate unmarshals viper config into Config struct and validates it.
func unmarshalAndValidate(ctx context.Context, v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Str("relay.url", cfg.Relay.URL).
		Str("storage.backend", cfg.Storage.Backend).
		Uint64("chain.chain_id", cfg.Chain.ChainID).
		Msg("configuration loaded and unmarshaled")

	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// Load reads configuration from all available sources with proper precedence.
// Configuration is loaded in the following order (highest precedence first):
//  1. Environment variables (FHEKIT_* prefix)
//  2. Project config (.fhekit/config.yaml)
//  3. Global config (~/.fhekit/config.yaml)
//  4. Built-in defaults
//
// For CLI flag overrides, use LoadWithOverrides instead. Missing config
// files are not an error.
func Load(ctx context.Context) (*Config, error) {
	v := newViperInstance()

	if err := loadGlobalConfig(v); err != nil {
		return nil, err
	}
	if err := loadProjectConfig(v); err != nil {
		return nil, err
	}
	return unmarshalAndValidate(ctx, v)
}

// loadGlobalConfig attempts to load the global config file (~/.fhekit/config.yaml).
// Returns nil if the file doesn't exist or home directory cannot be determined.
func loadGlobalConfig(v *viper.Viper) error {
	globalConfigPath, ok := getGlobalConfigPathIfExists()
	if !ok {
		return nil
	}

	v.SetConfigFile(globalConfigPath)
	if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read global config file")
	}
	return nil
}

// getGlobalConfigPathIfExists returns the global config path if it exists.
func getGlobalConfigPathIfExists() (string, bool) {
	globalDir, err := GlobalConfigDir()
	if err != nil {
		return "", false
	}

	globalConfigPath := filepath.Join(globalDir, constants.GlobalConfigName)
	if _, err := os.Stat(globalConfigPath); err != nil {
		return "", false
	}

	return globalConfigPath, true
}

// loadProjectConfig attempts to load the project config file (.fhekit/config.yaml).
// Returns nil if the file doesn't exist.
func loadProjectConfig(v *viper.Viper) error {
	projectConfigPath := ProjectConfigPath()
	if !fileExists(projectConfigPath) {
		return nil
	}

	v.SetConfigFile(projectConfigPath)
	if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read project config file")
	}
	return nil
}

// fileExists returns true if the file at path exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadWithOverrides loads configuration and applies CLI flag overrides.
// When configFile is non-empty it replaces the project config layer.
// Only non-zero values in overrides are applied.
func LoadWithOverrides(ctx context.Context, configFile string, overrides *Config) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if configFile != "" {
		globalPath, _ := getGlobalConfigPathIfExists()
		cfg, err = LoadFromPaths(ctx, configFile, globalPath)
	} else {
		cfg, err = Load(ctx)
	}
	if err != nil {
		return nil, err
	}

	if overrides != nil {
		applyOverrides(cfg, overrides)
	}

	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration after overrides")
	}
	return cfg, nil
}

// LoadFromPaths loads configuration from specific file paths.
//
// projectConfigPath is the path to project-level config (higher priority).
// globalConfigPath is the path to global config (lower priority).
// Either path can be empty to skip that level.
func LoadFromPaths(ctx context.Context, projectConfigPath, globalConfigPath string) (*Config, error) {
	v := newViperInstance()

	if globalConfigPath != "" {
		v.SetConfigFile(globalConfigPath)
		if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read global config: %s", globalConfigPath)
		}
	}

	if projectConfigPath != "" {
		v.SetConfigFile(projectConfigPath)
		if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read project config: %s", projectConfigPath)
		}
	}

	return unmarshalAndValidate(ctx, v)
}

// setDefaults configures all default values on the Viper instance.
// Keys must match the YAML tag names exactly for proper mapping.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("relay.url", d.Relay.URL)
	v.SetDefault("relay.timeout", d.Relay.Timeout.String())
	v.SetDefault("relay.listen_addr", d.Relay.ListenAddr)

	v.SetDefault("engine.bundle_url", "")
	v.SetDefault("engine.bundle_path", "")
	v.SetDefault("engine.load_timeout", d.Engine.LoadTimeout.String())

	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.chain_id", 0)
	v.SetDefault("chain.mock_chain_ids", d.Chain.MockChainIDs)
	v.SetDefault("chain.decryption_contract", d.Chain.DecryptionContract)

	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.redis_url", "")
	v.SetDefault("storage.key_cache_size", d.Storage.KeyCacheSize)

	v.SetDefault("signature.duration_days", d.Signature.DurationDays)
	v.SetDefault("signature.confirm", d.Signature.Confirm)

	v.SetDefault("wallet.key_path", "")
}

// applyOverrides merges non-zero override values into the config.
//
// Boolean fields (Signature.Confirm) cannot be overridden to false here
// because false is indistinguishable from unset. The CLI handles those
// with cmd.Flags().Changed.
func applyOverrides(cfg, overrides *Config) {
	if overrides.Relay.URL != "" {
		cfg.Relay.URL = overrides.Relay.URL
	}
	if overrides.Relay.ListenAddr != "" {
		cfg.Relay.ListenAddr = overrides.Relay.ListenAddr
	}
	if overrides.Chain.RPCURL != "" {
		cfg.Chain.RPCURL = overrides.Chain.RPCURL
	}
	if overrides.Chain.ChainID != 0 {
		cfg.Chain.ChainID = overrides.Chain.ChainID
	}
	if len(overrides.Chain.MockChainIDs) > 0 {
		cfg.Chain.MockChainIDs = overrides.Chain.MockChainIDs
	}
	if overrides.Storage.Backend != "" {
		cfg.Storage.Backend = overrides.Storage.Backend
	}
	if overrides.Storage.Path != "" {
		cfg.Storage.Path = overrides.Storage.Path
	}
	if overrides.Wallet.KeyPath != "" {
		cfg.Wallet.KeyPath = overrides.Wallet.KeyPath
	}
}

// viperDecoderOption returns the decoder options for Viper unmarshal:
// durations from strings and comma separated lists from environment values.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)
}
