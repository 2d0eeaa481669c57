package queryexec

import (
	"context"
	"testing"
	"time"

	"github.com/nucleus/remdb/pkg/embedpipeline"
	"github.com/nucleus/remdb/pkg/entitystore"
	"github.com/nucleus/remdb/pkg/queryplanner"
	"github.com/nucleus/remdb/pkg/remerr"
	"github.com/nucleus/remdb/pkg/schemareg"
	"github.com/nucleus/remdb/pkg/storage"
)

func newTestExecutor(t *testing.T) (*Executor, *entitystore.Store) {
	t.Helper()
	eng, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })

	reg := schemareg.NewRegistry()
	if err := reg.RegisterBuiltins(); err != nil {
		t.Fatalf("register builtins: %v", err)
	}

	providers := embedpipeline.NewProviderRegistry()
	_ = providers.Register(embedpipeline.NewLocalProvider("default", 32))
	providers.Freeze()

	store := entitystore.New(eng, reg, providers, "peer-a")
	t.Cleanup(store.Close)

	return New(store, reg, reg), store
}

func TestRunSQLSelectFiltersByIndexedField(t *testing.T) {
	ex, store := newTestExecutor(t)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, []entitystore.Record{
		{TenantID: "t1", Schema: "resources", Properties: map[string]any{"uri": "doc://1", "content": "rust systems programming", "category": "tutorial"}},
		{TenantID: "t1", Schema: "resources", Properties: map[string]any{"uri": "doc://2", "content": "python data science", "category": "reference"}},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	res, err := ex.RunSQL(ctx, "t1", "SELECT * FROM resources WHERE category = 'tutorial'")
	if err != nil {
		t.Fatalf("run sql: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].Entity.Properties["uri"] != "doc://1" {
		t.Fatalf("expected exactly doc://1, got %+v", res.Results)
	}
}

func TestRunSQLLookupByKeyField(t *testing.T) {
	ex, store := newTestExecutor(t)
	ctx := context.Background()

	ids, err := store.Upsert(ctx, []entitystore.Record{
		{TenantID: "t1", Schema: "resources", Properties: map[string]any{"uri": "doc://3", "content": "hello"}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	res, err := ex.RunSQL(ctx, "t1", "LOOKUP 'doc://3'")
	if err != nil {
		t.Fatalf("run sql: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].Entity.ID != ids[0] {
		t.Fatalf("expected lookup to resolve the derived id, got %+v", res.Results)
	}
}

func TestRunSQLSearchRanksByScore(t *testing.T) {
	ex, store := newTestExecutor(t)
	ctx := context.Background()

	ids, err := store.Upsert(ctx, []entitystore.Record{
		{TenantID: "t1", Schema: "resources", Properties: map[string]any{"uri": "doc://rust", "content": "rust systems programming memory safety"}},
		{TenantID: "t1", Schema: "resources", Properties: map[string]any{"uri": "doc://py", "content": "python data science pandas"}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	for i, id := range ids {
		text := "rust systems programming memory safety"
		if i == 1 {
			text = "python data science pandas"
		}
		if err := store.EnqueueEmbedding(ctx, "t1", "resources", id, "embedding", text); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if err := store.WaitForWorker(time.Second); err != nil {
		t.Fatalf("wait for worker: %v", err)
	}

	res, err := ex.RunSQL(ctx, "t1", "SEARCH 'memory safety in systems languages' IN resources LIMIT 1")
	if err != nil {
		t.Fatalf("run sql: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].Entity.Properties["uri"] != "doc://rust" {
		t.Fatalf("expected the rust doc to rank first, got %+v", res.Results)
	}
}

func TestRunAppliesFallbackOnEmptyPrimary(t *testing.T) {
	ex, store := newTestExecutor(t)
	ctx := context.Background()

	ids, err := store.Upsert(ctx, []entitystore.Record{
		{TenantID: "t1", Schema: "resources", Properties: map[string]any{"uri": "doc://only", "content": "hello world"}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	plan := &queryplanner.QueryPlan{
		QueryType:     queryplanner.QueryTypeLookup,
		Confidence:    0.45,
		PrimaryQuery:  queryplanner.Query{Dialect: "rem-sql", QueryString: "LOOKUP 'nonexistent-key'"},
		ExecutionMode: queryplanner.ModeMultiStage,
		Reasoning:     "test",
		Explanation:   "below threshold for test purposes",
		FallbackQueries: []queryplanner.Fallback{{
			Query:   queryplanner.Query{Dialect: "rem-sql", QueryString: "LOOKUP 'doc://only'"},
			Trigger: queryplanner.TriggerNoResults,
		}},
	}

	res, err := ex.Run(ctx, "t1", plan)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.FallbackUsed {
		t.Fatal("expected fallback to be used")
	}
	if len(res.Results) != 1 || res.Results[0].Entity.ID != ids[0] {
		t.Fatalf("expected fallback lookup to resolve doc://only, got %+v", res.Results)
	}
}

func TestRunSQLRejectsPredicateOnNonIndexedField(t *testing.T) {
	ex, _ := newTestExecutor(t)
	_, err := ex.RunSQL(context.Background(), "t1", "SELECT * FROM resources WHERE content = 'x'")
	if remerr.CodeOf(err) != remerr.CodeQueryParseError {
		t.Fatalf("expected QueryParseError, got %v", err)
	}
}
