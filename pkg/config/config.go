// Package config provides the typed configuration surface of the service:
// YAML loading with environment-variable expansion, built-in defaults,
// environment overrides and validation.
package config

// Config is the fully resolved, validated process configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Storage  StorageConfig  `yaml:"storage"`
	Breaker  BreakerConfig  `yaml:"circuit_breaker"`
	Pool     PoolConfig     `yaml:"example_pool"`
	Strategy StrategyConfig `yaml:"strategy"`
	Gates    GatesConfig    `yaml:"gates"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
	// ShutdownGraceSeconds bounds how long in-flight handlers may run after
	// a shutdown signal.
	ShutdownGraceSeconds int `yaml:"shutdown_grace_seconds"`
}

// LLMConfig selects and parameterizes the LLM adapter.
type LLMConfig struct {
	Provider ProviderType `yaml:"provider"`
	Model    string       `yaml:"model"`
	APIKey   string       `yaml:"api_key"`
	// Temperature overrides the per-provider default when set.
	Temperature *float64 `yaml:"temperature,omitempty"`
	// CallTimeoutSeconds bounds a single adapter call.
	CallTimeoutSeconds int `yaml:"call_timeout_seconds"`
}

// ResolvedTemperature returns the configured temperature or the per-provider default.
func (c LLMConfig) ResolvedTemperature() float64 {
	if c.Temperature != nil {
		return *c.Temperature
	}
	return c.Provider.DefaultTemperature()
}

// StorageConfig controls the SQLite persistence layer.
type StorageConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	WALMode       bool   `yaml:"wal_mode"`
	RetentionDays int    `yaml:"retention_days"` // 0 disables the sweep
}

// BreakerConfig controls the circuit breaker guarding background saves.
type BreakerConfig struct {
	MaxFailures    int `yaml:"max_failures"`
	TimeoutSeconds int `yaml:"timeout_seconds"` // 0 means "never open"
}

// PoolConfig locates and parameterizes the example pool.
type PoolConfig struct {
	Path     string `yaml:"path"`
	DefaultK int    `yaml:"default_k"`
}

// StrategyConfig bounds strategy execution.
type StrategyConfig struct {
	DeadlineSeconds int `yaml:"deadline_seconds"`
	MaxIters        int `yaml:"max_iters"`
	// ComplexEnabled gates the iterative complex strategy; when false the
	// selector downgrades to few-shot.
	ComplexEnabled bool `yaml:"complex_enabled"`
}

// GatesConfig tunes quality-gate evaluation.
type GatesConfig struct {
	// RejectOnFail turns failing FAIL-severity gates into a 422 rejection of
	// the final response instead of returning the best candidate with flags.
	RejectOnFail bool `yaml:"reject_on_fail"`
	// SeverityOverrides remaps the severity of individual gates by gate id.
	SeverityOverrides map[string]GateSeverity `yaml:"severity_overrides,omitempty"`
}

// MetricsConfig holds the quality-composite weights.
type MetricsConfig struct {
	Weights QualityWeights `yaml:"weights"`
}

// QualityWeights are the relative weights of the four quality sub-scores.
// They must sum to 1.
type QualityWeights struct {
	Coherence    float64 `yaml:"coherence"`
	Relevance    float64 `yaml:"relevance"`
	Completeness float64 `yaml:"completeness"`
	Clarity      float64 `yaml:"clarity"`
}

// Sum returns the weight total.
func (w QualityWeights) Sum() float64 {
	return w.Coherence + w.Relevance + w.Completeness + w.Clarity
}

// Stats summarizes resolved configuration for the health endpoint.
type Stats struct {
	Provider       string
	Model          string
	StorageEnabled bool
	PoolPath       string
}

// Stats returns a summary of the resolved configuration.
func (c *Config) Stats() Stats {
	return Stats{
		Provider:       string(c.LLM.Provider),
		Model:          c.LLM.Model,
		StorageEnabled: c.Storage.Enabled,
		PoolPath:       c.Pool.Path,
	}
}
