package embedpipeline

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// LocalProvider is a dependency-free, deterministic embedding provider:
// it hashes whitespace tokens into a fixed-width bucket vector and
// L2-normalizes the result. It exists so REM is runnable without a network
// embedding service configured; a vector is always produced so the vector
// index has something to index against in tests and embedded deployments.
type LocalProvider struct {
	name      string
	dimension int
	metric    Metric
}

// NewLocalProvider returns a LocalProvider of the given dimension, scored
// by cosine similarity.
func NewLocalProvider(name string, dimension int) *LocalProvider {
	return &LocalProvider{name: name, dimension: dimension, metric: MetricCosine}
}

func (p *LocalProvider) Describe() Descriptor {
	return Descriptor{Name: p.name, Dimension: p.dimension, Metric: p.metric, PreNormalized: false}
}

func (p *LocalProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dimension)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		bucket := int(h.Sum32()) % p.dimension
		if bucket < 0 {
			bucket += p.dimension
		}
		vec[bucket]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec, nil
}
