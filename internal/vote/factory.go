// Package vote turns provider appraisals into weighted votes. All weighting
// policy lives here; providers never set their own weight.
package vote

import (
	"time"

	"github.com/flipscout/appraisal-cli/internal/config"
	"github.com/flipscout/appraisal-cli/internal/model"
	"github.com/flipscout/appraisal-cli/internal/provider"
)

// Options adjusts how a single vote is weighted.
type Options struct {
	Role model.VoteRole
	// SourceAllSuspect is set when every web price from the originating
	// source was flagged suspect; the vote's confidence is halved, floored.
	SourceAllSuspect bool
}

// Factory creates votes from appraisals using the registry's base weights
// and the configured role multipliers.
type Factory struct {
	cfg      config.ProvidersConfig
	evidence config.EvidenceConfig
}

// NewFactory creates a vote factory.
func NewFactory(cfg config.ProvidersConfig, evidence config.EvidenceConfig) *Factory {
	return &Factory{cfg: cfg, evidence: evidence}
}

// Create builds one immutable vote. Confidence discounts (tiebreaker,
// emergency, all-suspect source) apply before the weight formula runs, so a
// discounted vote is lighter through both channels.
func (f *Factory) Create(snap *provider.Snapshot, providerID string, a *model.Appraisal, latency time.Duration, opts Options) model.Vote {
	role := opts.Role
	if role == "" {
		role = model.RolePrimary
	}

	confidence := a.Confidence
	switch role {
	case model.RoleTiebreaker:
		confidence *= f.cfg.TiebreakerConfidenceFactor
	case model.RoleEmergency:
		confidence *= f.cfg.EmergencyConfidenceFactor
	}
	if opts.SourceAllSuspect {
		confidence *= f.evidence.SuspectConfidenceFactor
		if confidence < f.evidence.SuspectConfidenceFloor {
			confidence = f.evidence.SuspectConfidenceFloor
		}
	}

	weight := snap.BaseWeight(providerID) * confidence
	if snap.SpecialtyOf(providerID) == provider.SpecialtyPricing {
		weight *= f.cfg.PricingSpecialtyMultiplier
	}
	switch role {
	case model.RoleMarketSearch:
		weight *= f.cfg.MarketSearchMultiplier
	case model.RoleTiebreaker:
		weight *= f.cfg.TiebreakerMultiplier
	}

	return model.Vote{
		Provider:   providerID,
		ItemName:   a.ItemName,
		Category:   a.Category,
		Value:      a.Value,
		Decision:   a.Decision,
		Confidence: confidence,
		Latency:    latency,
		Weight:     weight,
		Role:       role,
		Raw:        a,
	}
}
