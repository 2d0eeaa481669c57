package wal

import (
	"testing"

	"github.com/nucleus/remdb/pkg/storage"
)

func TestAppendAssignsIncreasingSeqNumbers(t *testing.T) {
	eng, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer eng.Close()

	log := NewLog(eng)
	b := eng.NewBatch()
	e1, err := log.Append(b, "t1", "entities", OpPut, "k1", []byte("v1"), "peer-a")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	e2, err := log.Append(b, "t1", "entities", OpPut, "k2", []byte("v2"), "peer-a")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	_ = b.Close()

	if e1.SeqNum != 1 || e2.SeqNum != 2 {
		t.Fatalf("expected seq 1,2 got %d,%d", e1.SeqNum, e2.SeqNum)
	}
}

func TestSeqNumbersSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	eng, err := storage.Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	log := NewLog(eng)
	b := eng.NewBatch()
	if _, err := log.Append(b, "t1", "entities", OpPut, "k1", []byte("v1"), "peer-a"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	_ = b.Close()
	_ = eng.Close()

	eng2, err := storage.Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer eng2.Close()

	log2 := NewLog(eng2)
	b2 := eng2.NewBatch()
	e2, err := log2.Append(b2, "t1", "entities", OpPut, "k2", []byte("v2"), "peer-a")
	if err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if err := b2.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	_ = b2.Close()

	if e2.SeqNum != 2 {
		t.Fatalf("expected seq to continue at 2 after reopen, got %d", e2.SeqNum)
	}
}

func TestSinceReturnsEntriesAfterWatermark(t *testing.T) {
	eng, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer eng.Close()

	log := NewLog(eng)
	b := eng.NewBatch()
	for i := 0; i < 3; i++ {
		if _, err := log.Append(b, "t1", "entities", OpPut, "k", []byte("v"), "peer-a"); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	_ = b.Close()

	entries, err := Since(eng, "t1", "entities", 1)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after seq 1, got %d", len(entries))
	}
}
