package entitystore

import (
	"context"
	"testing"

	"github.com/nucleus/remdb/pkg/remerr"
	"github.com/nucleus/remdb/pkg/wal"
)

func TestCompactHardDeletesTombstonesBehindWatermark(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids, err := s.Upsert(ctx, []Record{
		{TenantID: "t1", Schema: "sessions", Properties: map[string]any{"session_id": "keep"}},
		{TenantID: "t1", Schema: "sessions", Properties: map[string]any{"session_id": "drop"}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Delete(ctx, "t1", ids[1]); err != nil {
		t.Fatalf("delete: %v", err)
	}

	mark, err := wal.MinWatermark(s.eng, "t1", "system.sessions")
	if err != nil {
		t.Fatalf("min watermark: %v", err)
	}
	if mark == 0 {
		t.Fatal("expected a non-zero high-water mark after writes")
	}

	n, err := s.Compact(ctx, "t1", "sessions", mark)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row compacted, got %d", n)
	}

	if _, err := s.Get("t1", ids[1]); remerr.CodeOf(err) != remerr.CodeNotFound {
		t.Fatalf("expected hard-deleted entity to be NotFound, got %v", err)
	}
	if _, err := s.Get("t1", ids[0]); err != nil {
		t.Fatalf("expected the live entity to survive compaction: %v", err)
	}

	entries, err := wal.Since(s.eng, "t1", "system.sessions", 0)
	if err != nil {
		t.Fatalf("wal since: %v", err)
	}
	for _, e := range entries {
		if e.Operation == wal.OpDelete {
			t.Fatalf("expected the consumed DELETE entry to be pruned, found seq=%d", e.SeqNum)
		}
	}
}

func TestCompactLeavesTombstonesAheadOfWatermark(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids, err := s.Upsert(ctx, []Record{{
		TenantID: "t1", Schema: "sessions",
		Properties: map[string]any{"session_id": "lagging"},
	}})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Delete(ctx, "t1", ids[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// A peer stuck at seq 1 has not replayed the delete yet.
	n, err := s.Compact(ctx, "t1", "sessions", 1)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no rows compacted behind a lagging watermark, got %d", n)
	}
	got, err := s.Get("t1", ids[0])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsDeleted() {
		t.Fatal("expected the tombstone to remain")
	}
}
