// Package embedpipeline implements the embedding provider registry and
// the per-tenant background worker that turns queued writes into vectors.
package embedpipeline

import (
	"context"
	"sync"

	"github.com/nucleus/remdb/pkg/remerr"
)

// Metric names the similarity function a provider's vectors are scored
// with, matching the vector index's metric selection.
type Metric string

const (
	MetricCosine       Metric = "cosine"
	MetricInnerProduct Metric = "inner_product"
)

// Descriptor is the immutable, registered shape of one embedding provider.
type Descriptor struct {
	Name          string
	Dimension     int
	Metric        Metric
	PreNormalized bool
}

// Provider turns text into a vector. Implementations are pluggable: REM
// ships a local deterministic provider for tests and embedded use, and any
// external model-serving client can implement the same interface.
type Provider interface {
	Describe() Descriptor
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ProviderRegistry is the embedding provider table, immutable once
// constructed. Registration happens during process start-up; Freeze rejects
// further registration so the rest of the system can treat the table as
// read-only.
type ProviderRegistry struct {
	mu     sync.RWMutex
	byName map[string]Provider
	frozen bool
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{byName: make(map[string]Provider)}
}

// Register adds a provider. Returns an error once the registry is frozen.
func (r *ProviderRegistry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return remerr.New(remerr.CodeProviderUnavailable, "embedding provider registry is frozen")
	}
	d := p.Describe()
	if d.Name == "" {
		return remerr.New(remerr.CodeProviderUnavailable, "provider must declare a name")
	}
	if d.Dimension <= 0 {
		return remerr.New(remerr.CodeDimensionMismatch, "provider %q must declare a positive dimension", d.Name)
	}
	r.byName[d.Name] = p
	return nil
}

// Freeze stops further registration. Call once at start-up after all
// providers are registered.
func (r *ProviderRegistry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

func (r *ProviderRegistry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	if !ok {
		return nil, remerr.New(remerr.CodeProviderUnavailable, "embedding provider %q is not registered", name)
	}
	return p, nil
}

func (r *ProviderRegistry) Describe(name string) (Descriptor, error) {
	p, err := r.Get(name)
	if err != nil {
		return Descriptor{}, err
	}
	return p.Describe(), nil
}

// CheckDimension enforces that every populated embedding field's vector
// length matches its provider's registered dimension.
func (r *ProviderRegistry) CheckDimension(providerName string, vec []float32) error {
	d, err := r.Describe(providerName)
	if err != nil {
		return err
	}
	if len(vec) != d.Dimension {
		return remerr.New(remerr.CodeDimensionMismatch, "vector length %d does not match provider %q dimension %d", len(vec), providerName, d.Dimension)
	}
	return nil
}
