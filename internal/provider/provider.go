// Package provider defines the uniform boundary every evidence/vote source
// sits behind: submit item context, receive a validated structured appraisal.
// Provider-specific protocol details (auth, endpoint shape) stay inside the
// adapters and are not part of the engine's contract.
package provider

import (
	"context"

	"github.com/flipscout/appraisal-cli/internal/model"
)

// Specialty tags what a provider is unusually good at; the vote factory
// boosts pricing specialists.
type Specialty string

const (
	SpecialtyPricing Specialty = "pricing"
	SpecialtyGeneral Specialty = "general"
)

// Capabilities describes what a provider can do.
type Capabilities struct {
	WebSearch bool      `json:"web_search"`
	Specialty Specialty `json:"specialty"`
}

// ItemContext is the uniform input shape submitted to every provider.
type ItemContext struct {
	ItemName         string `json:"item_name"`
	Category         string `json:"category"`
	ImageDescription string `json:"image_description,omitempty"`
	Extra            string `json:"extra,omitempty"`
	// EvidenceBlock is the formatted market evidence handed to vote
	// providers so their estimates are anchored on real data.
	EvidenceBlock string `json:"evidence_block,omitempty"`
}

// Provider is one appraisal source addressed by a string id.
type Provider interface {
	ID() string
	Capabilities() Capabilities
	Appraise(ctx context.Context, item ItemContext) (*model.Appraisal, error)
}
