package setups

import (
	"fmt"
	"sort"

	"MarketSweep/internal/domain/models"
	"MarketSweep/internal/services/features"
)

// Setup is one rule-based trading pattern. Implementations are stateless:
// Detect is a pure predicate over a symbol's feature rows.
type Setup interface {
	Name() string

	// Defaults returns the parameter values used when the caller omits them.
	Defaults() models.ParameterSet

	// Space declares valid parameter ranges. Parameter sets outside the space
	// are rejected up front, never clamped.
	Space() models.ParameterSpace

	// PreFilter returns the cheap pass-A gate for the given parameters.
	PreFilter(ps models.ParameterSet) features.PreFilter

	// Detect scans warm rows and returns every occurrence, in row order.
	Detect(rows []models.FeatureRow, ps models.ParameterSet) []models.Signal
}

// Registry resolves setup types by name.
type Registry struct {
	setups map[string]Setup
}

// NewRegistry returns a registry with the built-in setups installed.
func NewRegistry() *Registry {
	r := &Registry{setups: make(map[string]Setup)}
	r.Register(&SMAPullback{})
	r.Register(&EMACloudBreakout{})
	r.Register(&ATRBandReversal{})
	return r
}

// Register adds a setup. Later registrations with the same name win.
func (r *Registry) Register(s Setup) {
	r.setups[s.Name()] = s
}

// Get resolves a setup by name.
func (r *Registry) Get(name string) (Setup, error) {
	s, ok := r.setups[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownSetup, name)
	}
	return s, nil
}

// Names lists the registered setup names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.setups))
	for name := range r.setups {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Resolve merges the caller's parameters over the setup's defaults and
// validates the result against the declared space.
func Resolve(s Setup, ps models.ParameterSet) (models.ParameterSet, error) {
	merged := s.Defaults().Clone()
	for k, v := range ps {
		merged[k] = v
	}
	if err := s.Space().Validate(merged); err != nil {
		return nil, err
	}
	return merged, nil
}
