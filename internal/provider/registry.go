package provider

import (
	"sync"

	"github.com/flipscout/appraisal-cli/internal/config"
)

// Entry is a registered provider plus its static scoring parameters.
type Entry struct {
	Provider   Provider
	BaseWeight float64
	Specialty  Specialty
}

// Snapshot is an immutable view of the registry taken at the start of a
// request. Weight evolution lands in a new snapshot version; nothing mutates
// mid-flight.
type Snapshot struct {
	Version           int
	Entries           []Entry
	DefaultBaseWeight float64
}

// BaseWeight returns the base weight for a provider id; unregistered
// providers get the default.
func (s *Snapshot) BaseWeight(id string) float64 {
	for _, e := range s.Entries {
		if e.Provider.ID() == id {
			return e.BaseWeight
		}
	}
	return s.DefaultBaseWeight
}

// SpecialtyOf returns the registered specialty for a provider id.
func (s *Snapshot) SpecialtyOf(id string) Specialty {
	for _, e := range s.Entries {
		if e.Provider.ID() == id {
			return e.Specialty
		}
	}
	return SpecialtyGeneral
}

// Registry holds the configured providers. Read-only at request time:
// requests take a Snapshot and never observe later registrations.
type Registry struct {
	mu                sync.RWMutex
	version           int
	entries           []Entry
	defaultBaseWeight float64
}

// NewRegistry creates a registry with the configured default base weight.
func NewRegistry(cfg config.ProvidersConfig) *Registry {
	w := cfg.DefaultBaseWeight
	if w <= 0 {
		w = 0.75
	}
	return &Registry{defaultBaseWeight: w}
}

// Register adds a provider, applying any configured weight override.
func (r *Registry) Register(p Provider, cfg config.ProvidersConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := Entry{
		Provider:   p,
		BaseWeight: r.defaultBaseWeight,
		Specialty:  p.Capabilities().Specialty,
	}
	if pw, ok := cfg.Weights[p.ID()]; ok {
		if pw.BaseWeight > 0 {
			e.BaseWeight = pw.BaseWeight
		}
		if pw.Specialty != "" {
			e.Specialty = Specialty(pw.Specialty)
		}
	}

	r.entries = append(r.entries, e)
	r.version++
}

// Snapshot returns a versioned, immutable view of the current registrations.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return &Snapshot{
		Version:           r.version,
		Entries:           entries,
		DefaultBaseWeight: r.defaultBaseWeight,
	}
}
