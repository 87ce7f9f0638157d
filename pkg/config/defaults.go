package config

// Defaults returns the built-in configuration. User YAML and environment
// overrides are applied on top of this.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:                 8080,
			ShutdownGraceSeconds: 15,
		},
		LLM: LLMConfig{
			Provider:           ProviderGemini,
			Model:              "gemini-2.5-flash",
			CallTimeoutSeconds: 30,
		},
		Storage: StorageConfig{
			Enabled:       true,
			DBPath:        "./data/promptforge.db",
			WALMode:       true,
			RetentionDays: 0,
		},
		Breaker: BreakerConfig{
			MaxFailures:    5,
			TimeoutSeconds: 60,
		},
		Pool: PoolConfig{
			Path:     "./deploy/config/example-pool.json",
			DefaultK: 3,
		},
		Strategy: StrategyConfig{
			DeadlineSeconds: 60,
			MaxIters:        3,
			ComplexEnabled:  true,
		},
		Gates: GatesConfig{
			RejectOnFail: false,
		},
		Metrics: MetricsConfig{
			Weights: QualityWeights{
				Coherence:    0.25,
				Relevance:    0.30,
				Completeness: 0.25,
				Clarity:      0.20,
			},
		},
	}
}
