package graphtraverse

import (
	"context"
	"testing"

	"github.com/nucleus/remdb/pkg/entitystore"
)

type fakeStore struct {
	entities map[string]*entitystore.Entity
}

func (f *fakeStore) Get(_ string, id string) (*entitystore.Entity, error) {
	e, ok := f.entities[id]
	if !ok {
		return nil, errNotFound(id)
	}
	return e, nil
}

func (f *fakeStore) Scan(_ string, _ string, _ entitystore.ScanOptions) ([]*entitystore.Entity, error) {
	var out []*entitystore.Entity
	for _, e := range f.entities {
		out = append(out, e)
	}
	return out, nil
}

type errNotFound string

func (e errNotFound) Error() string { return "not found: " + string(e) }

type fakeLister struct{ names []string }

func (f *fakeLister) SchemaNames() []string { return f.names }

func chain(t *testing.T) *fakeStore {
	t.Helper()
	return &fakeStore{entities: map[string]*entitystore.Entity{
		"a": {ID: "a", Edges: []entitystore.Edge{{Src: "a", Dst: "b", RelType: "X"}}},
		"b": {ID: "b", Edges: []entitystore.Edge{{Src: "b", Dst: "c", RelType: "X"}}},
		"c": {ID: "c"},
	}}
}

func TestTraverseDepthTwoVisitsAllThree(t *testing.T) {
	store := chain(t)
	result, err := Traverse(context.Background(), store, &fakeLister{}, "t1", "a", Options{Depth: 2, Direction: DirectionOut, RelType: "X"})
	if err != nil {
		t.Fatalf("traverse: %v", err)
	}
	if want := []string{"a", "b", "c"}; !sameOrder(result.IDs, want) {
		t.Fatalf("expected %v, got %v", want, result.IDs)
	}
	if got := result.Paths["c"]; !sameOrder(got, []string{"a", "b", "c"}) {
		t.Fatalf("expected path a->b->c, got %v", got)
	}
}

func TestTraverseDepthOneStopsAtImmediateNeighbor(t *testing.T) {
	store := chain(t)
	result, err := Traverse(context.Background(), store, &fakeLister{}, "t1", "a", Options{Depth: 1, Direction: DirectionOut, RelType: "X"})
	if err != nil {
		t.Fatalf("traverse: %v", err)
	}
	if want := []string{"a", "b"}; !sameOrder(result.IDs, want) {
		t.Fatalf("expected %v, got %v", want, result.IDs)
	}
}

func TestTraverseZeroDepthReturnsOnlyStart(t *testing.T) {
	store := chain(t)
	result, err := Traverse(context.Background(), store, &fakeLister{}, "t1", "a", Options{Depth: 0, Direction: DirectionOut})
	if err != nil {
		t.Fatalf("traverse: %v", err)
	}
	if len(result.IDs) != 1 || result.IDs[0] != "a" {
		t.Fatalf("expected only the start node at depth 0, got %v", result.IDs)
	}
}

func TestTraverseUnknownRelTypeFindsNothing(t *testing.T) {
	store := chain(t)
	result, err := Traverse(context.Background(), store, &fakeLister{}, "t1", "a", Options{Depth: 2, Direction: DirectionOut, RelType: "other"})
	if err != nil {
		t.Fatalf("traverse: %v", err)
	}
	if len(result.IDs) != 1 {
		t.Fatalf("expected only the start node, got %v", result.IDs)
	}
}

func sameOrder(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
