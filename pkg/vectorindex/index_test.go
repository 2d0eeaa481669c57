package vectorindex

import (
	"testing"

	"github.com/nucleus/remdb/pkg/embedpipeline"
)

func TestUpsertAndSearch(t *testing.T) {
	idx := New()
	vecs := map[string][]float32{
		"a": {1, 0, 0},
		"b": {0, 1, 0},
		"c": {0.9, 0.1, 0},
	}
	for id, v := range vecs {
		if err := idx.Upsert("doc", "embedding", embedpipeline.MetricCosine, id, v); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	matches := idx.Search("doc", "embedding", embedpipeline.MetricCosine, []float32{1, 0, 0}, 2, nil)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != "a" {
		t.Fatalf("expected closest match to be 'a', got %q", matches[0].ID)
	}
}

func TestSearchWithAllowedFilter(t *testing.T) {
	idx := New()
	_ = idx.Upsert("doc", "embedding", embedpipeline.MetricCosine, "a", []float32{1, 0, 0})
	_ = idx.Upsert("doc", "embedding", embedpipeline.MetricCosine, "b", []float32{0.95, 0.05, 0})
	_ = idx.Upsert("doc", "embedding", embedpipeline.MetricCosine, "c", []float32{0, 1, 0})

	allowed := map[string]struct{}{"c": {}}
	matches := idx.Search("doc", "embedding", embedpipeline.MetricCosine, []float32{1, 0, 0}, 1, allowed)
	if len(matches) != 1 || matches[0].ID != "c" {
		t.Fatalf("expected filtered match 'c', got %+v", matches)
	}
}

func TestDeleteTriggersRebuild(t *testing.T) {
	idx := New()
	ids := []string{"a", "b", "c", "d", "e"}
	for i, id := range ids {
		idx.Upsert("doc", "embedding", embedpipeline.MetricCosine, id, []float32{float32(i), 0, 0})
	}
	idx.Delete("doc", "embedding", "a")
	if got := idx.Len("doc", "embedding"); got != 4 {
		t.Fatalf("expected 4 live nodes after delete, got %d", got)
	}
	// 1 deletion out of 5 nodes reaches the 0.2 ratio, so the graph is
	// rebuilt and its deletion count reset.
	if g := idx.graphs[graphKey{Schema: "doc", Field: "embedding"}]; g.deletions != 0 {
		t.Fatalf("expected a rebuild to reset the deletion count, got %d", g.deletions)
	}
}

func TestUpsertRejectsEmptyVector(t *testing.T) {
	idx := New()
	if err := idx.Upsert("doc", "embedding", embedpipeline.MetricCosine, "a", nil); err == nil {
		t.Fatal("expected error for empty vector")
	}
}
