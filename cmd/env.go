package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/flipscout/appraisal-cli/internal/benchmark"
	"github.com/flipscout/appraisal-cli/internal/category"
	"github.com/flipscout/appraisal-cli/internal/consensus"
	"github.com/flipscout/appraisal-cli/internal/engine"
	"github.com/flipscout/appraisal-cli/internal/evidence"
	"github.com/flipscout/appraisal-cli/internal/provider"
	"github.com/flipscout/appraisal-cli/internal/resilience"
	"github.com/flipscout/appraisal-cli/internal/store"
	"github.com/flipscout/appraisal-cli/internal/vote"
	anthropicpkg "github.com/flipscout/appraisal-cli/pkg/anthropic"
	"github.com/flipscout/appraisal-cli/pkg/ebay"
	"github.com/flipscout/appraisal-cli/pkg/openrouter"
	"github.com/flipscout/appraisal-cli/pkg/perplexity"
	"github.com/flipscout/appraisal-cli/pkg/pricecharting"
)

func initStore(ctx context.Context) (store.Store, error) {
	ttl := time.Duration(cfg.Store.CapabilityTTLMins) * time.Minute
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	caps := store.NewCapabilityCache(ttl)

	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "appraisal.db"
		}
		return store.NewSQLite(dsn, caps)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil, caps)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// appEnv is everything a command needs to run appraisals.
type appEnv struct {
	Store    store.Store
	Engine   *engine.Engine
	Recorder *benchmark.Recorder
	DLQ      *resilience.DLQ
}

func (e *appEnv) Close() {
	if e.Recorder != nil {
		e.Recorder.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEngine wires the full appraisal pipeline from config: store, external
// clients, provider registry, evidence fetcher, tiebreaker, benchmark
// recorder.
func initEngine(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	if cfg.Anthropic.Key == "" {
		_ = st.Close()
		return nil, eris.New("anthropic API key is required (APPRAISE_ANTHROPIC_KEY)")
	}
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	retryCfg := resilience.ProviderRetry(cfg.Providers.RetryMaxAttempts, cfg.Providers.RetryBackoffMs)
	breakers := resilience.NewServiceBreakers(
		resilience.ProviderBreaker(cfg.Providers.BreakerThreshold, cfg.Providers.BreakerResetSecs))
	registry := provider.NewRegistry(cfg.Providers)

	primary := provider.WithBreaker(
		provider.NewAnthropicProvider("claude", anthropicClient, cfg.Anthropic.AppraisalModel, retryCfg),
		breakers.Get("claude"))
	registry.Register(primary, cfg.Providers)
	primaries := []provider.Provider{primary}

	var web []provider.Provider
	if cfg.Perplexity.Key != "" {
		client := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model))
		p := provider.WithBreaker(
			provider.NewPerplexityProvider("perplexity", client, cfg.Perplexity.Model),
			breakers.Get("perplexity"))
		registry.Register(p, cfg.Providers)
		web = append(web, p)
	}
	if cfg.OpenRouter.Key != "" {
		client := openrouter.NewClient(cfg.OpenRouter.Key,
			openrouter.WithBaseURL(cfg.OpenRouter.BaseURL),
			openrouter.WithModel(cfg.OpenRouter.Model))
		p := provider.WithBreaker(
			provider.NewOpenRouterProvider("openrouter", client, cfg.OpenRouter.Model),
			breakers.Get("openrouter"))
		registry.Register(p, cfg.Providers)
		web = append(web, p)
	}

	var authority pricecharting.Client
	if cfg.PriceCharting.Key != "" {
		authority = pricecharting.NewClient(cfg.PriceCharting.Key,
			pricecharting.WithBaseURL(cfg.PriceCharting.BaseURL))
	}
	var marketplace ebay.Client
	if cfg.Ebay.Token != "" {
		marketplace = ebay.NewClient(cfg.Ebay.Token, ebay.WithBaseURL(cfg.Ebay.BaseURL))
	}

	overrides, err := category.LoadOverrides(cfg.Category.OverridesPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	recorder := benchmark.NewRecorder(st, cfg.Benchmark)
	recorder.Start()
	dlq := resilience.NewDLQ(3)

	// The emergency fallback reuses the cheaper tiebreaker model.
	emergency := provider.NewAnthropicProvider("claude-emergency", anthropicClient, cfg.Anthropic.TiebreakerModel, retryCfg)

	eng := engine.New(cfg, engine.Deps{
		Detector:   category.NewDetector(overrides),
		Registry:   registry,
		Fetcher:    evidence.NewFetcher(authority, marketplace, web, cfg.Evidence, cfg.Ebay.MaxListings),
		Factory:    vote.NewFactory(cfg.Providers, cfg.Evidence),
		Calculator: consensus.NewCalculator(cfg.Consensus),
		Tiebreaker: consensus.NewTiebreaker(anthropicClient, cfg.Anthropic.TiebreakerModel, cfg.Tiebreaker),
		Primaries:  primaries,
		Emergency:  emergency,
		Store:      st,
		Scorer:     benchmark.NewScorer(cfg.Benchmark),
		Recorder:   recorder,
		DLQ:        dlq,
	})

	return &appEnv{Store: st, Engine: eng, Recorder: recorder, DLQ: dlq}, nil
}
