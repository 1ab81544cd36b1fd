package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Anthropic     AnthropicConfig     `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity    PerplexityConfig    `yaml:"perplexity" mapstructure:"perplexity"`
	OpenRouter    OpenRouterConfig    `yaml:"openrouter" mapstructure:"openrouter"`
	PriceCharting PriceChartingConfig `yaml:"pricecharting" mapstructure:"pricecharting"`
	Ebay          EbayConfig          `yaml:"ebay" mapstructure:"ebay"`
	Providers     ProvidersConfig     `yaml:"providers" mapstructure:"providers"`
	Category      CategoryConfig      `yaml:"category" mapstructure:"category"`
	Evidence      EvidenceConfig      `yaml:"evidence" mapstructure:"evidence"`
	Consensus     ConsensusConfig     `yaml:"consensus" mapstructure:"consensus"`
	Tiebreaker    TiebreakerConfig    `yaml:"tiebreaker" mapstructure:"tiebreaker"`
	Benchmark     BenchmarkConfig     `yaml:"benchmark" mapstructure:"benchmark"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// PersistTimeoutSecs bounds the synchronous save that runs before a
	// response is returned in serverless-style deployments.
	PersistTimeoutSecs int `yaml:"persist_timeout_secs" mapstructure:"persist_timeout_secs"`
	// CapabilityTTLMins is how long "this column is unsupported" results are
	// cached before the schema is probed again.
	CapabilityTTLMins int `yaml:"capability_ttl_mins" mapstructure:"capability_ttl_mins"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	AppraisalModel  string `yaml:"appraisal_model" mapstructure:"appraisal_model"`
	TiebreakerModel string `yaml:"tiebreaker_model" mapstructure:"tiebreaker_model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// OpenRouterConfig holds OpenRouter API settings for the second independent
// web-search provider.
type OpenRouterConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// PriceChartingConfig holds the authority price-guide API settings.
type PriceChartingConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// EbayConfig holds marketplace browse API settings.
type EbayConfig struct {
	Token       string `yaml:"token" mapstructure:"token"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	MaxListings int    `yaml:"max_listings" mapstructure:"max_listings"`
}

// ProviderWeight configures one registered provider.
type ProviderWeight struct {
	BaseWeight float64 `yaml:"base_weight" mapstructure:"base_weight"`
	Specialty  string  `yaml:"specialty" mapstructure:"specialty"`
}

// ProvidersConfig holds the provider registry's static weights and the
// multipliers applied by the vote factory.
type ProvidersConfig struct {
	Weights map[string]ProviderWeight `yaml:"weights" mapstructure:"weights"`

	// DefaultBaseWeight applies to unregistered providers.
	DefaultBaseWeight float64 `yaml:"default_base_weight" mapstructure:"default_base_weight"`

	PricingSpecialtyMultiplier float64 `yaml:"pricing_specialty_multiplier" mapstructure:"pricing_specialty_multiplier"`
	MarketSearchMultiplier     float64 `yaml:"market_search_multiplier" mapstructure:"market_search_multiplier"`
	TiebreakerMultiplier       float64 `yaml:"tiebreaker_multiplier" mapstructure:"tiebreaker_multiplier"`
	TiebreakerConfidenceFactor float64 `yaml:"tiebreaker_confidence_factor" mapstructure:"tiebreaker_confidence_factor"`
	EmergencyConfidenceFactor  float64 `yaml:"emergency_confidence_factor" mapstructure:"emergency_confidence_factor"`

	// RetryMaxAttempts and RetryBackoffMs tune provider API call retries.
	RetryMaxAttempts int `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryBackoffMs   int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`

	// BreakerThreshold consecutive failures sit a provider out for
	// BreakerResetSecs.
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// CategoryConfig configures the category detector.
type CategoryConfig struct {
	// OverridesPath optionally points at a YAML file of name-pattern
	// override rules merged on top of the built-in set.
	OverridesPath string `yaml:"overrides_path" mapstructure:"overrides_path"`
}

// EvidenceConfig configures the evidence fetcher and price sanitizer.
type EvidenceConfig struct {
	TimeoutSecs          int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	WebSearchTimeoutSecs int `yaml:"web_search_timeout_secs" mapstructure:"web_search_timeout_secs"`

	// SuspiciousDefaults are round-number prices models tend to confabulate
	// (heuristic MSRPs). Matching prices are always flagged suspect.
	SuspiciousDefaults []float64 `yaml:"suspicious_defaults" mapstructure:"suspicious_defaults"`

	// RatioHigh/RatioLow bound a price's plausible ratio to the anchor.
	RatioHigh float64 `yaml:"ratio_high" mapstructure:"ratio_high"`
	RatioLow  float64 `yaml:"ratio_low" mapstructure:"ratio_low"`

	// SuspectConfidenceFactor halves a source's derived vote confidence when
	// every price it returned was flagged; SuspectConfidenceFloor bounds it.
	SuspectConfidenceFactor float64 `yaml:"suspect_confidence_factor" mapstructure:"suspect_confidence_factor"`
	SuspectConfidenceFloor  float64 `yaml:"suspect_confidence_floor" mapstructure:"suspect_confidence_floor"`
}

// ConsensusConfig configures tallying and consensus blending. The blend
// ratios and disagreement cutoffs are heuristics, not derived from data;
// they are kept overridable here rather than inlined.
type ConsensusConfig struct {
	CloseVoteThreshold float64 `yaml:"close_vote_threshold" mapstructure:"close_vote_threshold"`

	// AuthorityBlend is the authority share of the estimate when the vote
	// swarm roughly agrees with the authority price.
	AuthorityBlend float64 `yaml:"authority_blend" mapstructure:"authority_blend"`
	// DisagreementBlend is the authority share when the swarm is far off.
	DisagreementBlend float64 `yaml:"disagreement_blend" mapstructure:"disagreement_blend"`
	// DisagreementRatioHigh/Low define "far off": weighted-mean over
	// authority outside [low, high].
	DisagreementRatioHigh float64 `yaml:"disagreement_ratio_high" mapstructure:"disagreement_ratio_high"`
	DisagreementRatioLow  float64 `yaml:"disagreement_ratio_low" mapstructure:"disagreement_ratio_low"`
}

// TiebreakerConfig configures when arbitration triggers.
type TiebreakerConfig struct {
	// SplitThreshold triggers arbitration when the weighted BUY/SELL split is
	// strictly within this many percentage points (0.15 = 15 points).
	SplitThreshold float64 `yaml:"split_threshold" mapstructure:"split_threshold"`
	// DivergenceThreshold triggers arbitration when (max-min)/min across
	// vote values exceeds it.
	DivergenceThreshold float64 `yaml:"divergence_threshold" mapstructure:"divergence_threshold"`
}

// BenchmarkConfig configures vote scoring and weekly aggregation.
type BenchmarkConfig struct {
	// AccurateBandPct is the relative error within which a vote counts as
	// directionally accurate.
	AccurateBandPct float64 `yaml:"accurate_band_pct" mapstructure:"accurate_band_pct"`
	// QueueSize bounds the fire-and-forget recorder's buffer.
	QueueSize int `yaml:"queue_size" mapstructure:"queue_size"`
	// AggregateCron schedules weekly scorecard aggregation in serve mode.
	AggregateCron string `yaml:"aggregate_cron" mapstructure:"aggregate_cron"`
	// MinCategoryVotes gates best/worst category flags.
	MinCategoryVotes int `yaml:"min_category_votes" mapstructure:"min_category_votes"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// EvidenceTimeout returns the overall evidence stage budget.
func (c EvidenceConfig) EvidenceTimeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// WebSearchTimeout returns the per-web-search-call budget.
func (c EvidenceConfig) WebSearchTimeout() time.Duration {
	return time.Duration(c.WebSearchTimeoutSecs) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("APPRAISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "appraisal.db")
	v.SetDefault("store.persist_timeout_secs", 3)
	v.SetDefault("store.capability_ttl_mins", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.appraisal_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.tiebreaker_model", "claude-haiku-4-5-20251001")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "google/gemini-2.5-flash")
	v.SetDefault("pricecharting.base_url", "https://www.pricecharting.com/api")
	v.SetDefault("ebay.base_url", "https://api.ebay.com/buy/browse/v1")
	v.SetDefault("ebay.max_listings", 50)
	v.SetDefault("providers.default_base_weight", 0.75)
	v.SetDefault("providers.pricing_specialty_multiplier", 1.3)
	v.SetDefault("providers.market_search_multiplier", 1.2)
	v.SetDefault("providers.tiebreaker_multiplier", 0.6)
	v.SetDefault("providers.tiebreaker_confidence_factor", 0.8)
	v.SetDefault("providers.emergency_confidence_factor", 0.5)
	v.SetDefault("providers.retry_max_attempts", 3)
	v.SetDefault("providers.retry_backoff_ms", 400)
	v.SetDefault("providers.breaker_threshold", 3)
	v.SetDefault("providers.breaker_reset_secs", 60)
	v.SetDefault("evidence.timeout_secs", 20)
	v.SetDefault("evidence.web_search_timeout_secs", 12)
	v.SetDefault("evidence.suspicious_defaults", []float64{19.99, 20, 25, 50, 100, 120})
	v.SetDefault("evidence.ratio_high", 3.0)
	v.SetDefault("evidence.ratio_low", 0.33)
	v.SetDefault("evidence.suspect_confidence_factor", 0.5)
	v.SetDefault("evidence.suspect_confidence_floor", 0.3)
	v.SetDefault("consensus.close_vote_threshold", 0.15)
	v.SetDefault("consensus.authority_blend", 0.4)
	v.SetDefault("consensus.disagreement_blend", 0.6)
	v.SetDefault("consensus.disagreement_ratio_high", 3.0)
	v.SetDefault("consensus.disagreement_ratio_low", 0.33)
	v.SetDefault("tiebreaker.split_threshold", 0.15)
	v.SetDefault("tiebreaker.divergence_threshold", 0.5)
	v.SetDefault("benchmark.accurate_band_pct", 0.10)
	v.SetDefault("benchmark.queue_size", 256)
	v.SetDefault("benchmark.aggregate_cron", "0 4 * * MON")
	v.SetDefault("benchmark.min_category_votes", 3)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
