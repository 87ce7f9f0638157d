package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the main configuration file looked up in the config directory.
const ConfigFileName = "promptforge.yaml"

// rawConfig mirrors Config for YAML decoding. Booleans are pointers so that an
// explicit `false` in user YAML is distinguishable from "not set" when the
// built-in defaults are merged in.
type rawConfig struct {
	Server   ServerConfig  `yaml:"server"`
	LLM      LLMConfig     `yaml:"llm"`
	Storage  rawStorage    `yaml:"storage"`
	Breaker  BreakerConfig `yaml:"circuit_breaker"`
	Pool     PoolConfig    `yaml:"example_pool"`
	Strategy rawStrategy   `yaml:"strategy"`
	Gates    rawGates      `yaml:"gates"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

type rawStrategy struct {
	DeadlineSeconds int   `yaml:"deadline_seconds"`
	MaxIters        *int  `yaml:"max_iters,omitempty"`
	ComplexEnabled  *bool `yaml:"complex_enabled,omitempty"`
}

type rawStorage struct {
	Enabled       *bool  `yaml:"enabled,omitempty"`
	DBPath        string `yaml:"db_path"`
	WALMode       *bool  `yaml:"wal_mode,omitempty"`
	RetentionDays int    `yaml:"retention_days"`
}

type rawGates struct {
	RejectOnFail      *bool                   `yaml:"reject_on_fail,omitempty"`
	SeverityOverrides map[string]GateSeverity `yaml:"severity_overrides,omitempty"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load promptforge.yaml from configDir (missing file → built-in defaults)
//  2. Expand environment variables in the YAML content
//  3. Merge built-in defaults under the user configuration
//  4. Apply environment overrides (SQLITE_DB_PATH, LLM_PROVIDER, ...)
//  5. Validate the resolved configuration
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	log.Info("Configuration initialized successfully",
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"storage_enabled", cfg.Storage.Enabled,
		"pool_path", cfg.Pool.Path)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	defaults := Defaults()

	path := filepath.Join(configDir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Configuration file not found, using built-in defaults", "path", path)
			cfg := defaults
			return &cfg, nil
		}
		return nil, NewLoadError(ConfigFileName, err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(ExpandEnv(data), &raw); err != nil {
		return nil, NewLoadError(ConfigFileName, fmt.Errorf("%w: %w", ErrInvalidYAML, err))
	}

	cfg := resolveRaw(raw, defaults)

	// Fill every remaining zero field from the built-in defaults. The
	// pointer-resolved fields are definitive already and are re-applied
	// afterwards so that an explicit false/zero survives the merge.
	storageEnabled, walMode := cfg.Storage.Enabled, cfg.Storage.WALMode
	rejectOnFail := cfg.Gates.RejectOnFail
	maxIters, complexEnabled := cfg.Strategy.MaxIters, cfg.Strategy.ComplexEnabled
	if err := mergo.Merge(&cfg, defaults); err != nil {
		return nil, NewLoadError(ConfigFileName, err)
	}
	cfg.Storage.Enabled = storageEnabled
	cfg.Storage.WALMode = walMode
	cfg.Gates.RejectOnFail = rejectOnFail
	cfg.Strategy.MaxIters = maxIters
	cfg.Strategy.ComplexEnabled = complexEnabled

	return &cfg, nil
}

// resolveRaw converts the YAML mirror into a Config, resolving pointer
// booleans against the defaults.
func resolveRaw(raw rawConfig, defaults Config) Config {
	cfg := Config{
		Server:  raw.Server,
		LLM:     raw.LLM,
		Breaker: raw.Breaker,
		Pool:    raw.Pool,
		Metrics: raw.Metrics,
	}

	cfg.Strategy = StrategyConfig{
		DeadlineSeconds: raw.Strategy.DeadlineSeconds,
		MaxIters:        resolveInt(raw.Strategy.MaxIters, defaults.Strategy.MaxIters),
		ComplexEnabled:  resolveBool(raw.Strategy.ComplexEnabled, defaults.Strategy.ComplexEnabled),
	}

	cfg.Storage = StorageConfig{
		Enabled:       resolveBool(raw.Storage.Enabled, defaults.Storage.Enabled),
		DBPath:        raw.Storage.DBPath,
		WALMode:       resolveBool(raw.Storage.WALMode, defaults.Storage.WALMode),
		RetentionDays: raw.Storage.RetentionDays,
	}
	cfg.Gates = GatesConfig{
		RejectOnFail:      resolveBool(raw.Gates.RejectOnFail, defaults.Gates.RejectOnFail),
		SeverityOverrides: raw.Gates.SeverityOverrides,
	}
	return cfg
}

func resolveBool(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func resolveInt(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// applyEnvOverrides applies the flat environment surface on top of the
// resolved configuration. Environment wins over YAML.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = ProviderType(strings.ToLower(v))
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	// Per-provider credential fallbacks.
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case ProviderGemini:
			cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		case ProviderAnthropic:
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if v, ok := envFloat("TEMPERATURE_DEFAULT"); ok {
		cfg.LLM.Temperature = &v
	}
	if v, ok := envBool("SQLITE_ENABLED"); ok {
		cfg.Storage.Enabled = v
	}
	if v := os.Getenv("SQLITE_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v, ok := envBool("SQLITE_WAL_MODE"); ok {
		cfg.Storage.WALMode = v
	}
	if v, ok := envInt("SQLITE_RETENTION_DAYS"); ok {
		cfg.Storage.RetentionDays = v
	}
	if v, ok := envInt("CIRCUIT_BREAKER_MAX_FAILURES"); ok {
		cfg.Breaker.MaxFailures = v
	}
	if v, ok := envInt("CIRCUIT_BREAKER_TIMEOUT_SECONDS"); ok {
		cfg.Breaker.TimeoutSeconds = v
	}
	if v := os.Getenv("EXAMPLE_POOL_PATH"); v != "" {
		cfg.Pool.Path = v
	}
	if v, ok := envInt("KNN_DEFAULT_K"); ok {
		cfg.Pool.DefaultK = v
	}
	if v, ok := envInt("STRATEGY_DEADLINE_SECONDS"); ok {
		cfg.Strategy.DeadlineSeconds = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Ignoring non-integer environment override", "key", key, "value", v)
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("Ignoring non-numeric environment override", "key", key, "value", v)
		return 0, false
	}
	return f, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("Ignoring non-boolean environment override", "key", key, "value", v)
		return false, false
	}
	return b, true
}

// validate checks the resolved configuration for consistency.
func validate(cfg *Config) error {
	if !cfg.LLM.Provider.IsValid() {
		return NewValidationError("llm", "provider",
			fmt.Errorf("%w: %q", ErrInvalidValue, cfg.LLM.Provider))
	}
	if cfg.LLM.Model == "" {
		return NewValidationError("llm", "model", fmt.Errorf("%w: empty", ErrInvalidValue))
	}
	if cfg.LLM.Provider != ProviderStub && cfg.LLM.APIKey == "" {
		return NewValidationError("llm", "api_key",
			fmt.Errorf("%w: required for provider %q", ErrInvalidValue, cfg.LLM.Provider))
	}
	if cfg.LLM.Temperature != nil && (*cfg.LLM.Temperature < 0 || *cfg.LLM.Temperature > 2) {
		return NewValidationError("llm", "temperature",
			fmt.Errorf("%w: %v outside [0,2]", ErrInvalidValue, *cfg.LLM.Temperature))
	}
	if cfg.Storage.Enabled && cfg.Storage.DBPath == "" {
		return NewValidationError("storage", "db_path", fmt.Errorf("%w: empty", ErrInvalidValue))
	}
	if cfg.Breaker.MaxFailures < 1 {
		return NewValidationError("circuit_breaker", "max_failures",
			fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if cfg.Breaker.TimeoutSeconds < 0 {
		return NewValidationError("circuit_breaker", "timeout_seconds",
			fmt.Errorf("%w: cannot be negative", ErrInvalidValue))
	}
	if cfg.Pool.DefaultK < 1 {
		return NewValidationError("example_pool", "default_k",
			fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if cfg.Strategy.DeadlineSeconds < 1 {
		return NewValidationError("strategy", "deadline_seconds",
			fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if cfg.Strategy.MaxIters < 0 {
		return NewValidationError("strategy", "max_iters",
			fmt.Errorf("%w: cannot be negative", ErrInvalidValue))
	}
	if s := cfg.Metrics.Weights.Sum(); s < 0.99 || s > 1.01 {
		return NewValidationError("metrics", "weights",
			fmt.Errorf("%w: must sum to 1, got %.3f", ErrInvalidValue, s))
	}
	for id, sev := range cfg.Gates.SeverityOverrides {
		if !sev.IsValid() {
			return NewValidationError("gates", "severity_overrides",
				fmt.Errorf("%w: gate %q has severity %q", ErrInvalidValue, id, sev))
		}
	}
	return nil
}
