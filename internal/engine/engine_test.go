package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipscout/appraisal-cli/internal/benchmark"
	"github.com/flipscout/appraisal-cli/internal/category"
	"github.com/flipscout/appraisal-cli/internal/config"
	"github.com/flipscout/appraisal-cli/internal/consensus"
	"github.com/flipscout/appraisal-cli/internal/evidence"
	"github.com/flipscout/appraisal-cli/internal/model"
	"github.com/flipscout/appraisal-cli/internal/provider"
	"github.com/flipscout/appraisal-cli/internal/resilience"
	"github.com/flipscout/appraisal-cli/internal/store"
	"github.com/flipscout/appraisal-cli/internal/vote"
	"github.com/flipscout/appraisal-cli/pkg/anthropic"
)

func testConfig() *config.Config {
	return &config.Config{
		Store: config.StoreConfig{PersistTimeoutSecs: 3},
		Providers: config.ProvidersConfig{
			DefaultBaseWeight:          0.75,
			PricingSpecialtyMultiplier: 1.3,
			MarketSearchMultiplier:     1.2,
			TiebreakerMultiplier:       0.6,
			TiebreakerConfidenceFactor: 0.8,
			EmergencyConfidenceFactor:  0.5,
		},
		Evidence: config.EvidenceConfig{
			TimeoutSecs:             5,
			WebSearchTimeoutSecs:    3,
			SuspiciousDefaults:      []float64{19.99, 20, 25, 50, 100, 120},
			RatioHigh:               3.0,
			RatioLow:                0.33,
			SuspectConfidenceFactor: 0.5,
			SuspectConfidenceFloor:  0.3,
		},
		Consensus: config.ConsensusConfig{
			CloseVoteThreshold:    0.15,
			AuthorityBlend:        0.4,
			DisagreementBlend:     0.6,
			DisagreementRatioHigh: 3.0,
			DisagreementRatioLow:  0.33,
		},
		Tiebreaker: config.TiebreakerConfig{SplitThreshold: 0.15, DivergenceThreshold: 0.5},
		Benchmark:  config.BenchmarkConfig{AccurateBandPct: 0.10, QueueSize: 16, MinCategoryVotes: 3},
	}
}

type stubProvider struct {
	id   string
	caps provider.Capabilities
	appr model.Appraisal
	err  error
}

func (s *stubProvider) ID() string                          { return s.id }
func (s *stubProvider) Capabilities() provider.Capabilities { return s.caps }

func (s *stubProvider) Appraise(ctx context.Context, item provider.ItemContext) (*model.Appraisal, error) {
	if s.err != nil {
		return nil, s.err
	}
	a := s.appr
	if a.ItemName == "" {
		a.ItemName = item.ItemName
	}
	return &a, nil
}

// memStore is an in-memory Store capturing what the engine persists.
type memStore struct {
	mu      sync.Mutex
	saved   []*model.AnalysisResult
	benches [][]model.BenchmarkRecord
	saveErr error
}

func (m *memStore) SaveAnalysis(_ context.Context, result *model.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, result)
	return nil
}

func (m *memStore) GetAnalysis(context.Context, string) (*model.AnalysisResult, error) {
	return nil, nil
}

func (m *memStore) ListAnalyses(context.Context, store.AnalysisFilter) ([]model.AnalysisResult, error) {
	return nil, nil
}

func (m *memStore) SaveBenchmarkRecords(_ context.Context, records []model.BenchmarkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.benches = append(m.benches, records)
	return nil
}

func (m *memStore) ListBenchmarkRecords(context.Context, string, time.Time, time.Time) ([]model.BenchmarkRecord, error) {
	return nil, nil
}

func (m *memStore) ListBenchmarkProviders(context.Context, time.Time, time.Time) ([]string, error) {
	return nil, nil
}

func (m *memStore) SaveScorecards(context.Context, []model.WeeklyScorecard) error { return nil }

func (m *memStore) ListScorecards(context.Context, time.Time) ([]model.WeeklyScorecard, error) {
	return nil, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

// verdictClient answers every arbitration request with a fixed verdict.
type verdictClient struct {
	verdict model.TiebreakerVerdict
}

func (c *verdictClient) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	body, _ := json.Marshal(c.verdict)
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: string(body)}},
	}, nil
}

func newTestEngine(cfg *config.Config, primaries []provider.Provider, web []provider.Provider, deps Deps) *Engine {
	deps.Detector = category.NewDetector(category.DefaultOverrides())
	deps.Fetcher = evidence.NewFetcher(nil, nil, web, cfg.Evidence, 0)
	deps.Factory = vote.NewFactory(cfg.Providers, cfg.Evidence)
	deps.Calculator = consensus.NewCalculator(cfg.Consensus)
	deps.Primaries = primaries
	return New(cfg, deps)
}

func TestAnalyze_RejectsEmptyItemName(t *testing.T) {
	cfg := testConfig()
	eng := newTestEngine(cfg, nil, nil, Deps{})

	_, err := eng.Analyze(context.Background(), model.AnalysisRequest{})
	require.ErrorIs(t, err, model.ErrMissingItemName)
}

func TestAnalyze_ConsensusFromPrimaries(t *testing.T) {
	cfg := testConfig()
	primaries := []provider.Provider{
		&stubProvider{id: "claude", appr: model.Appraisal{
			Category: "video_games", Value: 48, Decision: model.DecisionBuy, Confidence: 0.9,
			Explanation: "strong recent comps",
		}},
		&stubProvider{id: "gpt", appr: model.Appraisal{
			Category: "video_games", Value: 55, Decision: model.DecisionBuy, Confidence: 0.8,
		}},
	}
	st := &memStore{}
	eng := newTestEngine(cfg, primaries, nil, Deps{Store: st})

	result, err := eng.Analyze(context.Background(), model.AnalysisRequest{ItemName: "Pokemon Red Game Boy"})
	require.NoError(t, err)

	assert.NotEmpty(t, result.ID)
	require.Len(t, result.Votes, 2)
	assert.Equal(t, model.DecisionBuy, result.Consensus.Decision)
	assert.Greater(t, result.Consensus.EstimatedValue, 0.0)
	assert.Equal(t, model.RolePrimary, result.Votes[0].Role)

	// The votes' category outranks the keyword tier.
	assert.Equal(t, "video_games", result.Detection.Category)
	assert.Equal(t, model.SourceAIVote, result.Detection.Source)

	require.Len(t, st.saved, 1)
	assert.Equal(t, result.ID, st.saved[0].ID)
}

func TestAnalyze_MarketSearchVotesFromWebFindings(t *testing.T) {
	cfg := testConfig()
	web := []provider.Provider{
		&stubProvider{
			id:   "perplexity",
			caps: provider.Capabilities{WebSearch: true},
			appr: model.Appraisal{
				Category: "lego", Value: 45, Decision: model.DecisionBuy, Confidence: 0.8,
				WebPrices: []float64{42, 47},
			},
		},
	}
	eng := newTestEngine(cfg, nil, web, Deps{})

	result, err := eng.Analyze(context.Background(), model.AnalysisRequest{ItemName: "LEGO 75192 Millennium Falcon"})
	require.NoError(t, err)

	require.Len(t, result.Votes, 1)
	v := result.Votes[0]
	assert.Equal(t, model.RoleMarketSearch, v.Role)
	// base 0.75 * confidence 0.8 * market-search 1.2
	assert.InDelta(t, 0.72, v.Weight, 1e-9)
	require.NotNil(t, result.Evidence)
	require.NotNil(t, result.Evidence.WebPrices)
	assert.InDelta(t, 42, result.Evidence.WebPrices.Low, 1e-9)
}

func TestAnalyze_EmergencyFallback(t *testing.T) {
	cfg := testConfig()
	primaries := []provider.Provider{
		&stubProvider{id: "claude", err: assert.AnError},
	}
	emergency := &stubProvider{id: "claude-emergency", appr: model.Appraisal{
		Value: 30, Decision: model.DecisionSell, Confidence: 0.9,
	}}
	eng := newTestEngine(cfg, primaries, nil, Deps{Emergency: emergency})

	result, err := eng.Analyze(context.Background(), model.AnalysisRequest{ItemName: "mystery lot"})
	require.NoError(t, err)

	require.Len(t, result.Votes, 1)
	v := result.Votes[0]
	assert.Equal(t, model.RoleEmergency, v.Role)
	assert.InDelta(t, 0.45, v.Confidence, 1e-9) // 0.9 halved by the emergency factor
	assert.Equal(t, model.DecisionSell, result.Consensus.Decision)
}

func TestAnalyze_ZeroVotesYieldsFailedSentinel(t *testing.T) {
	cfg := testConfig()
	primaries := []provider.Provider{
		&stubProvider{id: "claude", err: assert.AnError},
	}
	st := &memStore{}
	eng := newTestEngine(cfg, primaries, nil, Deps{Store: st})

	result, err := eng.Analyze(context.Background(), model.AnalysisRequest{ItemName: "unsellable"})
	require.NoError(t, err)

	assert.Empty(t, result.Votes)
	assert.Equal(t, model.QualityFailed, result.Consensus.Quality)
	assert.Equal(t, model.DecisionSell, result.Consensus.Decision)
	assert.Equal(t, 0, result.Consensus.Confidence)
	assert.Zero(t, result.Consensus.EstimatedValue)

	// Failed runs are still persisted for audit.
	require.Len(t, st.saved, 1)
}

func TestAnalyze_FailedRunQueuedForRetry(t *testing.T) {
	cfg := testConfig()
	primaries := []provider.Provider{
		&stubProvider{id: "claude", err: assert.AnError},
	}
	dlq := resilience.NewDLQ(3)
	eng := newTestEngine(cfg, primaries, nil, Deps{DLQ: dlq})

	result, err := eng.Analyze(context.Background(), model.AnalysisRequest{ItemName: "all providers down"})
	require.NoError(t, err)
	assert.Equal(t, model.QualityFailed, result.Consensus.Quality)

	entries := dlq.List(resilience.DLQFilter{})
	require.Len(t, entries, 1)
	assert.Equal(t, result.ID, entries[0].Request.ID)
}

func TestAnalyze_TiebreakerOnSplitVote(t *testing.T) {
	cfg := testConfig()
	primaries := []provider.Provider{
		&stubProvider{id: "claude", appr: model.Appraisal{
			Value: 50, Decision: model.DecisionBuy, Confidence: 0.8,
		}},
		&stubProvider{id: "gpt", appr: model.Appraisal{
			Value: 52, Decision: model.DecisionSell, Confidence: 0.8,
		}},
	}
	tb := consensus.NewTiebreaker(&verdictClient{verdict: model.TiebreakerVerdict{
		SelectedIndex: 0,
		Confidence:    0.9,
		Reasoning:     "buy-side comps are stronger",
	}}, "test-model", cfg.Tiebreaker)
	eng := newTestEngine(cfg, primaries, nil, Deps{Tiebreaker: tb})

	result, err := eng.Analyze(context.Background(), model.AnalysisRequest{ItemName: "split decision item"})
	require.NoError(t, err)

	require.Len(t, result.Votes, 3)
	arbiter := result.Votes[2]
	assert.Equal(t, model.RoleTiebreaker, arbiter.Role)
	assert.InDelta(t, 0.72, arbiter.Confidence, 1e-9) // 0.9 * tiebreaker factor 0.8
	assert.Equal(t, model.DecisionBuy, result.Consensus.Decision)
}

func TestAnalyze_NoTiebreakerWhenDecisive(t *testing.T) {
	cfg := testConfig()
	primaries := []provider.Provider{
		&stubProvider{id: "claude", appr: model.Appraisal{
			Value: 50, Decision: model.DecisionBuy, Confidence: 0.9,
		}},
		&stubProvider{id: "gpt", appr: model.Appraisal{
			Value: 52, Decision: model.DecisionBuy, Confidence: 0.3,
		}},
	}
	tb := consensus.NewTiebreaker(&verdictClient{verdict: model.TiebreakerVerdict{
		SelectedIndex: 0, Confidence: 0.9, Reasoning: "should not be consulted",
	}}, "test-model", cfg.Tiebreaker)
	eng := newTestEngine(cfg, primaries, nil, Deps{Tiebreaker: tb})

	result, err := eng.Analyze(context.Background(), model.AnalysisRequest{ItemName: "clear winner"})
	require.NoError(t, err)
	assert.Len(t, result.Votes, 2)
}

func TestAnalyze_PersistFailureDegrades(t *testing.T) {
	cfg := testConfig()
	primaries := []provider.Provider{
		&stubProvider{id: "claude", appr: model.Appraisal{
			Value: 40, Decision: model.DecisionBuy, Confidence: 0.9,
		}},
	}
	st := &memStore{saveErr: assert.AnError}
	eng := newTestEngine(cfg, primaries, nil, Deps{Store: st})

	result, err := eng.Analyze(context.Background(), model.AnalysisRequest{ItemName: "flaky storage item"})
	require.NoError(t, err)
	assert.Equal(t, model.DecisionBuy, result.Consensus.Decision)
}

func TestAnalyze_BenchmarksRecordedWhenAnchored(t *testing.T) {
	cfg := testConfig()
	primaries := []provider.Provider{
		&stubProvider{id: "claude", appr: model.Appraisal{
			Value: 40, Decision: model.DecisionBuy, Confidence: 0.9,
		}},
	}
	web := []provider.Provider{
		&stubProvider{
			id:   "perplexity",
			caps: provider.Capabilities{WebSearch: true},
			appr: model.Appraisal{
				Value: 42, Decision: model.DecisionBuy, Confidence: 0.7,
				WebPrices: []float64{41, 43},
			},
		},
	}
	st := &memStore{}
	recorder := benchmark.NewRecorder(st, cfg.Benchmark)
	recorder.Start()
	eng := newTestEngine(cfg, primaries, web, Deps{
		Store:    st,
		Scorer:   benchmark.NewScorer(cfg.Benchmark),
		Recorder: recorder,
	})

	// No marketplace or authority anchor: votes are not graded.
	result, err := eng.Analyze(context.Background(), model.AnalysisRequest{ItemName: "unanchored item"})
	require.NoError(t, err)
	require.NotNil(t, result.Evidence)
	assert.Zero(t, result.Evidence.AnchorPrice())

	recorder.Close()
	assert.Empty(t, st.benches)
}

func TestAnalyze_RequestTimeoutHonored(t *testing.T) {
	cfg := testConfig()
	eng := newTestEngine(cfg, nil, nil, Deps{})

	start := time.Now()
	_, err := eng.Analyze(context.Background(), model.AnalysisRequest{
		ItemName: "fast path",
		Timeout:  50 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
