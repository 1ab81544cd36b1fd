// Package engine orchestrates one appraisal run end to end: category
// detection, evidence gathering, the provider vote fan-out, optional
// arbitration, consensus, and persistence. The engine degrades instead of
// failing: the only synchronous rejection is invalid input.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

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
)

// Deps bundles the engine's collaborators. Fetcher, Factory, Calculator and
// Detector are required; everything else is optional and its absence only
// narrows what a run produces.
type Deps struct {
	Detector   *category.Detector
	Registry   *provider.Registry
	Fetcher    *evidence.Fetcher
	Factory    *vote.Factory
	Calculator *consensus.Calculator
	Tiebreaker *consensus.Tiebreaker

	// Primaries are the item-analysis providers fanned out for primary votes.
	Primaries []provider.Provider
	// Emergency is a last-resort provider consulted only when every primary
	// and market-search vote failed to materialize.
	Emergency provider.Provider

	Store    store.Store
	Scorer   *benchmark.Scorer
	Recorder *benchmark.Recorder

	// DLQ queues requests whose runs produced no votes at all, so they can
	// be retried once providers recover.
	DLQ *resilience.DLQ
}

// errNoVotes is the DLQ cause recorded when every provider failed.
var errNoVotes = eris.New("engine: no votes were cast")

// Engine runs appraisal requests. Safe for concurrent use.
type Engine struct {
	cfg  *config.Config
	deps Deps
}

// New creates an engine.
func New(cfg *config.Config, deps Deps) *Engine {
	return &Engine{cfg: cfg, deps: deps}
}

// Analyze runs one appraisal. Provider failures, evidence gaps, arbitration
// errors and persistence problems all degrade the result rather than failing
// the run; the returned error is non-nil only for invalid input.
func (e *Engine) Analyze(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	detection := e.deps.Detector.Detect(req.ItemName, req.CategoryHint, "")

	ev := e.deps.Fetcher.Fetch(ctx, req.ItemName, detection.Category, req.Context)

	votes := e.collectVotes(ctx, req, detection, ev)

	// A model that recognized the item outranks name heuristics; refine the
	// detection once the votes are in.
	detection = e.refineDetection(req, detection, votes)

	if len(votes) == 0 {
		if v, ok := e.emergencyVote(ctx, req, detection, ev); ok {
			votes = append(votes, v)
		}
	}

	if v, ok := e.arbitrate(ctx, req, votes); ok {
		votes = append(votes, v)
	}

	var authorityPrice float64
	if ev.Summary.Authority != nil {
		authorityPrice = ev.Summary.Authority.Price
	}
	result := &model.AnalysisResult{
		ID:        req.ID,
		Request:   req,
		Detection: detection,
		Evidence:  ev.Summary,
		Votes:     votes,
		Consensus: *e.deps.Calculator.Consensus(votes, authorityPrice),
		CreatedAt: time.Now().UTC(),
	}

	e.persist(ctx, result)
	e.recordBenchmarks(result, ev.Summary)

	if result.Consensus.Quality == model.QualityFailed && e.deps.DLQ != nil {
		entry := e.deps.DLQ.Add(req, errNoVotes, "votes")
		zap.L().Warn("engine: request queued for retry",
			zap.String("id", req.ID), zap.String("dlq_entry", entry.ID))
	}

	zap.L().Info("engine: analysis complete",
		zap.String("id", result.ID),
		zap.String("item", req.ItemName),
		zap.String("category", detection.Category),
		zap.String("decision", string(result.Consensus.Decision)),
		zap.Float64("value", result.Consensus.EstimatedValue),
		zap.String("quality", string(result.Consensus.Quality)),
		zap.Int("votes", len(votes)),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

// collectVotes fans out the primary providers concurrently and converts the
// evidence stage's web findings into market-search votes. Individual provider
// failures are logged and skipped.
func (e *Engine) collectVotes(ctx context.Context, req model.AnalysisRequest, detection model.CategoryDetection, ev *evidence.Evidence) []model.Vote {
	snap := e.snapshot()

	var (
		mu    sync.Mutex
		votes []model.Vote
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range e.deps.Primaries {
		p := p
		g.Go(func() error {
			start := time.Now()
			appraisal, err := p.Appraise(gctx, provider.ItemContext{
				ItemName:         req.ItemName,
				Category:         detection.Category,
				ImageDescription: req.ImageDescription,
				Extra:            req.Context,
				EvidenceBlock:    ev.Summary.FormattedBlock,
			})
			latency := time.Since(start)
			if err != nil {
				zap.L().Warn("engine: primary vote skipped",
					zap.String("provider", p.ID()),
					zap.Duration("latency", latency), zap.Error(err))
				return nil
			}
			v := e.deps.Factory.Create(snap, p.ID(), appraisal, latency, vote.Options{Role: model.RolePrimary})
			mu.Lock()
			votes = append(votes, v)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, finding := range ev.Web {
		v := e.deps.Factory.Create(snap, finding.Provider, finding.Appraisal, finding.Result.Latency, vote.Options{
			Role:             model.RoleMarketSearch,
			SourceAllSuspect: finding.Result.AllSuspect,
		})
		votes = append(votes, v)
	}

	return votes
}

// refineDetection re-runs the cascade with the heaviest vote's category as
// the model suggestion, when that would outrank the current detection tier.
func (e *Engine) refineDetection(req model.AnalysisRequest, detection model.CategoryDetection, votes []model.Vote) model.CategoryDetection {
	if detection.Source == model.SourceOverride {
		return detection
	}
	suggested := ""
	best := -1.0
	for _, v := range votes {
		if v.Raw == nil || v.Raw.Category == "" {
			continue
		}
		if v.Weight > best {
			best = v.Weight
			suggested = v.Raw.Category
		}
	}
	if suggested == "" {
		return detection
	}
	refined := e.deps.Detector.Detect(req.ItemName, req.CategoryHint, suggested)
	if refined.Confidence > detection.Confidence {
		return refined
	}
	return detection
}

// emergencyVote makes one last-resort appraisal attempt when the run produced
// no votes at all.
func (e *Engine) emergencyVote(ctx context.Context, req model.AnalysisRequest, detection model.CategoryDetection, ev *evidence.Evidence) (model.Vote, bool) {
	if e.deps.Emergency == nil {
		return model.Vote{}, false
	}

	zap.L().Warn("engine: all providers failed, attempting emergency vote",
		zap.String("item", req.ItemName))

	start := time.Now()
	appraisal, err := e.deps.Emergency.Appraise(ctx, provider.ItemContext{
		ItemName:         req.ItemName,
		Category:         detection.Category,
		ImageDescription: req.ImageDescription,
		Extra:            req.Context,
		EvidenceBlock:    ev.Summary.FormattedBlock,
	})
	latency := time.Since(start)
	if err != nil {
		zap.L().Error("engine: emergency vote failed",
			zap.String("item", req.ItemName), zap.Error(err))
		return model.Vote{}, false
	}

	snap := e.snapshot()
	return e.deps.Factory.Create(snap, e.deps.Emergency.ID(), appraisal, latency, vote.Options{Role: model.RoleEmergency}), true
}

// arbitrate runs the tiebreaker when the tally is close or the values are
// divergent. A failed arbitration leaves the votes as they are.
func (e *Engine) arbitrate(ctx context.Context, req model.AnalysisRequest, votes []model.Vote) (model.Vote, bool) {
	if e.deps.Tiebreaker == nil {
		return model.Vote{}, false
	}

	tally := consensus.Tally(votes, e.cfg.Consensus.CloseVoteThreshold)
	if !e.deps.Tiebreaker.ShouldArbitrate(votes, tally) {
		return model.Vote{}, false
	}

	verdict, latency, err := e.deps.Tiebreaker.Arbitrate(ctx, votes, req.ItemName)
	if err != nil {
		zap.L().Warn("engine: arbitration failed, proceeding without tiebreaker",
			zap.String("item", req.ItemName), zap.Error(err))
		return model.Vote{}, false
	}

	appraisal := consensus.Resolve(votes, verdict)
	snap := e.snapshot()
	selected := votes[verdict.SelectedIndex]
	return e.deps.Factory.Create(snap, selected.Provider, appraisal, latency, vote.Options{Role: model.RoleTiebreaker}), true
}

// persist saves the result synchronously under a hard deadline. A slow or
// failed save degrades to a log line; the caller still gets the result.
func (e *Engine) persist(ctx context.Context, result *model.AnalysisResult) {
	if e.deps.Store == nil {
		return
	}

	timeout := time.Duration(e.cfg.Store.PersistTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	// The save must survive request cancellation up to its own deadline.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := e.deps.Store.SaveAnalysis(saveCtx, result); err != nil {
		zap.L().Warn("engine: analysis not persisted",
			zap.String("id", result.ID), zap.Error(err))
	}
}

// recordBenchmarks grades the votes against the market-anchored estimate and
// hands the batch to the recorder. Fire and forget; never blocks the caller.
func (e *Engine) recordBenchmarks(result *model.AnalysisResult, summary *model.EvidenceSummary) {
	if e.deps.Scorer == nil || e.deps.Recorder == nil {
		return
	}
	// Grading is only meaningful against a market-anchored estimate.
	if summary == nil || summary.AnchorPrice() <= 0 {
		return
	}
	if result.Consensus.Quality == model.QualityFailed {
		return
	}

	truth := benchmark.GroundTruth{
		Value:    result.Consensus.EstimatedValue,
		Source:   "market_blend",
		Decision: result.Consensus.Decision,
	}
	e.deps.Recorder.Record(e.deps.Scorer.Score(result.ID, result.Votes, truth))
}

func (e *Engine) snapshot() *provider.Snapshot {
	if e.deps.Registry != nil {
		return e.deps.Registry.Snapshot()
	}
	return &provider.Snapshot{DefaultBaseWeight: e.cfg.Providers.DefaultBaseWeight}
}
