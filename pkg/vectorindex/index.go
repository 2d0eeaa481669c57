// Package vectorindex wraps github.com/coder/hnsw into one graph per
// (schema, embedding_field). Graphs are
// kept in process memory only; nothing is written to the storage engine's
// "h" column family. On restart, entitystore.Rehydrate re-inserts the
// vectors stored on entity bodies, so no re-embedding is needed.
package vectorindex

import (
	"sync"

	"github.com/coder/hnsw"

	"github.com/nucleus/remdb/pkg/embedpipeline"
	"github.com/nucleus/remdb/pkg/remerr"
)

// rebuildTombstoneRatio is the fraction of deleted-but-retained nodes that
// triggers a lazy full rebuild of a graph.
const rebuildTombstoneRatio = 0.2

// graphKey identifies one HNSW graph.
type graphKey struct {
	Schema string
	Field  string
}

// graph is one schema+field's HNSW index plus its tombstone accounting.
// coder/hnsw has no native delete-by-tombstone bookkeeping, so entries are
// physically removed via Graph.Delete and we separately count how many
// removals have happened since the last rebuild to decide when a full
// re-insertion pass is worth it for search-quality/graph-density reasons.
type graph struct {
	mu        sync.RWMutex
	g         *hnsw.Graph[string]
	metric    embedpipeline.Metric
	live      map[string][]float32 // id -> vector, kept so rebuild can re-insert
	deletions int
}

func newGraph(metric embedpipeline.Metric) *graph {
	g := hnsw.NewGraph[string]()
	switch metric {
	case embedpipeline.MetricInnerProduct:
		// coder/hnsw does not expose a raw dot-product distance function.
		// Inner-product providers in this system are required to emit
		// pre-normalized vectors, for which cosine distance and
		// inner-product ranking agree, so cosine is used for both metrics.
		g.Distance = hnsw.CosineDistance
	default:
		g.Distance = hnsw.CosineDistance
	}
	return &graph{g: g, metric: metric, live: make(map[string][]float32)}
}

func (gr *graph) insert(id string, vec []float32) {
	gr.mu.Lock()
	defer gr.mu.Unlock()
	gr.g.Add(hnsw.MakeNode(id, vec))
	gr.live[id] = vec
}

func (gr *graph) delete(id string) {
	gr.mu.Lock()
	defer gr.mu.Unlock()
	if _, ok := gr.live[id]; !ok {
		return
	}
	gr.g.Delete(id)
	delete(gr.live, id)
	gr.deletions++
	if gr.shouldRebuildLocked() {
		gr.rebuildLocked()
	}
}

func (gr *graph) shouldRebuildLocked() bool {
	total := len(gr.live) + gr.deletions
	if total == 0 {
		return false
	}
	return float64(gr.deletions)/float64(total) >= rebuildTombstoneRatio
}

func (gr *graph) rebuildLocked() {
	fresh := hnsw.NewGraph[string]()
	fresh.Distance = gr.g.Distance
	for id, vec := range gr.live {
		fresh.Add(hnsw.MakeNode(id, vec))
	}
	gr.g = fresh
	gr.deletions = 0
}

// Match is one search hit: an entity id and its distance from the query.
type Match struct {
	ID       string
	Distance float32
}

func (gr *graph) search(query []float32, k int) []Match {
	gr.mu.RLock()
	defer gr.mu.RUnlock()
	nodes := gr.g.Search(query, k)
	out := make([]Match, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Match{ID: n.Key, Distance: gr.g.Distance(query, n.Value)})
	}
	return out
}

// Index is the process-wide collection of per-(schema,field) HNSW graphs.
type Index struct {
	mu     sync.RWMutex
	graphs map[graphKey]*graph
}

func New() *Index {
	return &Index{graphs: make(map[graphKey]*graph)}
}

func (idx *Index) graphFor(schema, field string, metric embedpipeline.Metric) *graph {
	key := graphKey{Schema: schema, Field: field}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	g, ok := idx.graphs[key]
	if !ok {
		g = newGraph(metric)
		idx.graphs[key] = g
	}
	return g
}

// Upsert inserts or replaces id's vector in the (schema, field) graph.
func (idx *Index) Upsert(schema, field string, metric embedpipeline.Metric, id string, vec []float32) error {
	if len(vec) == 0 {
		return remerr.New(remerr.CodeDimensionMismatch, "empty vector for %s.%s", schema, field)
	}
	idx.graphFor(schema, field, metric).insert(id, vec)
	return nil
}

// Delete removes id from the (schema, field) graph, if present.
func (idx *Index) Delete(schema, field string, id string) {
	idx.mu.RLock()
	g, ok := idx.graphs[graphKey{Schema: schema, Field: field}]
	idx.mu.RUnlock()
	if !ok {
		return
	}
	g.delete(id)
}

// Search runs an approximate k-nearest-neighbor search and, when allowed
// is non-nil, filters hits post-ANN to ids present in allowed, used when a
// SEARCH carries an additional predicate on an indexed field.
func (idx *Index) Search(schema, field string, metric embedpipeline.Metric, query []float32, k int, allowed map[string]struct{}) []Match {
	idx.mu.RLock()
	g, ok := idx.graphs[graphKey{Schema: schema, Field: field}]
	idx.mu.RUnlock()
	if !ok {
		return nil
	}

	fetch := k
	if allowed != nil {
		// over-fetch since filtering happens after the ANN pass
		fetch = k * 4
		if fetch < k {
			fetch = k
		}
	}
	matches := g.search(query, fetch)
	if allowed == nil {
		if len(matches) > k {
			matches = matches[:k]
		}
		return matches
	}

	out := make([]Match, 0, k)
	for _, m := range matches {
		if _, ok := allowed[m.ID]; ok {
			out = append(out, m)
			if len(out) == k {
				break
			}
		}
	}
	return out
}

// Len reports the live node count of a (schema, field) graph, for tests.
func (idx *Index) Len(schema, field string) int {
	idx.mu.RLock()
	g, ok := idx.graphs[graphKey{Schema: schema, Field: field}]
	idx.mu.RUnlock()
	if !ok {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.live)
}
