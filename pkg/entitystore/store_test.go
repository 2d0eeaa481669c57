package entitystore

import (
	"context"
	"testing"
	"time"

	"github.com/nucleus/remdb/pkg/embedpipeline"
	"github.com/nucleus/remdb/pkg/remerr"
	"github.com/nucleus/remdb/pkg/schemareg"
	"github.com/nucleus/remdb/pkg/storage"
	"github.com/nucleus/remdb/pkg/wal"
)

func newTestStore(t *testing.T) *Store {
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
	_ = providers.Register(embedpipeline.NewLocalProvider("default", 16))
	providers.Freeze()

	s := New(eng, reg, providers, "peer-a")
	t.Cleanup(s.Close)
	return s
}

func TestUpsertIsIdempotentOnKeyField(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids1, err := s.Upsert(ctx, []Record{{
		TenantID: "t1", Schema: "sessions",
		Properties: map[string]any{"session_id": "s1", "user_id": "u1"},
	}})
	if err != nil {
		t.Fatalf("upsert 1: %v", err)
	}

	ids2, err := s.Upsert(ctx, []Record{{
		TenantID: "t1", Schema: "sessions",
		Properties: map[string]any{"session_id": "s1", "user_id": "u2"},
	}})
	if err != nil {
		t.Fatalf("upsert 2: %v", err)
	}
	if ids1[0] != ids2[0] {
		t.Fatalf("expected stable id across upserts, got %q then %q", ids1[0], ids2[0])
	}

	got, err := s.Get("t1", ids2[0])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Properties["user_id"] != "u2" {
		t.Fatalf("expected final properties to reflect second upsert, got %v", got.Properties)
	}
	if got.CreatedAt.After(got.ModifiedAt) {
		t.Fatal("expected created_at <= modified_at")
	}

	entries, err := wal.Since(s.eng, "t1", "system.sessions", 0)
	if err != nil {
		t.Fatalf("wal since: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected exactly two WAL entries for two upserts, got %d", len(entries))
	}
	if entries[0].Key != entries[1].Key {
		t.Fatalf("expected both WAL entries to carry the same key, got %q and %q", entries[0].Key, entries[1].Key)
	}
	if entries[1].SeqNum <= entries[0].SeqNum {
		t.Fatal("expected strictly increasing seq numbers")
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("t1", "nope")
	if remerr.CodeOf(err) != remerr.CodeNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestDeleteSoftDeletesAndHidesFromScan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids, err := s.Upsert(ctx, []Record{{
		TenantID: "t1", Schema: "sessions",
		Properties: map[string]any{"session_id": "s2", "user_id": "u1"},
	}})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := s.Delete(ctx, "t1", ids[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := s.Get("t1", ids[0])
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if !got.IsDeleted() {
		t.Fatal("expected deleted_at to be set")
	}

	rows, err := s.Scan("t1", "sessions", ScanOptions{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for _, e := range rows {
		if e.ID == ids[0] {
			t.Fatal("expected tombstoned entity to be elided from default scan")
		}
	}

	rows, err = s.Scan("t1", "sessions", ScanOptions{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("scan with tombstones: %v", err)
	}
	found := false
	for _, e := range rows {
		if e.ID == ids[0] {
			found = true
		}
	}
	if !found {
		t.Fatal("expected tombstoned entity to be visible with IncludeDeleted")
	}
}

func TestScanUsesSecondaryIndexForIndexedPredicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Upsert(ctx, []Record{
		{TenantID: "t1", Schema: "sessions", Properties: map[string]any{"session_id": "a", "agent": "x"}},
		{TenantID: "t1", Schema: "sessions", Properties: map[string]any{"session_id": "b", "agent": "y"}},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rows, err := s.Scan("t1", "sessions", ScanOptions{
		Predicate: &Predicate{Field: "agent", Op: OpEqual, Value: []byte("x")},
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(rows) != 1 || rows[0].Properties["session_id"] != "a" {
		t.Fatalf("expected exactly the session with agent=x, got %+v", rows)
	}
}

func TestScanRejectsPredicateOnNonIndexedField(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Scan("t1", "sessions", ScanOptions{
		Predicate: &Predicate{Field: "query", Op: OpEqual, Value: []byte("x")},
	})
	if remerr.CodeOf(err) != remerr.CodeQueryParseError {
		t.Fatalf("expected QueryParseError for predicate on non-indexed field, got %v", err)
	}
}

func TestEnqueueEmbeddingAppliesVectorAfterWait(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids, err := s.Upsert(ctx, []Record{{
		TenantID: "t1", Schema: "resources",
		Properties: map[string]any{"uri": "doc://1", "content": "rust systems programming"},
	}})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := s.EnqueueEmbedding(ctx, "t1", "resources", ids[0], "embedding", "rust systems programming"); err != nil {
		t.Fatalf("enqueue embedding: %v", err)
	}
	if err := s.WaitForWorker(time.Second); err != nil {
		t.Fatalf("wait for worker: %v", err)
	}

	got, err := s.Get("t1", ids[0])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	vec, ok := toFloat32Slice(got.Properties["embedding"])
	if !ok || len(vec) != 16 {
		t.Fatalf("expected a 16-dim embedding to be written back, got %v", got.Properties["embedding"])
	}
	if s.Vectors().Len("system.resources", "embedding") != 1 {
		t.Fatal("expected vector index to have one entry")
	}
}
