package storage

import "testing"

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestBatchPutAndGet(t *testing.T) {
	eng := openTestEngine(t)
	key := EntityKey("t1", "resource", "e1")

	b := eng.NewBatch()
	if err := b.Put(key, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	_ = b.Close()

	v, ok, err := eng.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected key to be present")
	}
	if string(v) != `{"a":1}` {
		t.Fatalf("unexpected value %q", v)
	}
}

func TestGetMissingKey(t *testing.T) {
	eng := openTestEngine(t)
	_, ok, err := eng.Get(EntityKey("t1", "resource", "missing"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected key to be absent")
	}
}

func TestPrefixIteratorScansOnlyMatchingSchema(t *testing.T) {
	eng := openTestEngine(t)
	b := eng.NewBatch()
	_ = b.Put(EntityKey("t1", "resource", "e1"), []byte("1"))
	_ = b.Put(EntityKey("t1", "resource", "e2"), []byte("2"))
	_ = b.Put(EntityKey("t1", "moment", "m1"), []byte("3"))
	if err := b.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	_ = b.Close()

	it, err := eng.NewPrefixIterator(SchemaPrefix("t1", "resource"))
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	defer it.Close()

	count := 0
	for it.Valid() {
		count++
		it.Next()
	}
	if count != 2 {
		t.Fatalf("expected 2 keys under resource schema, got %d", count)
	}
}

func TestDelete(t *testing.T) {
	eng := openTestEngine(t)
	key := EntityKey("t1", "resource", "e1")
	b := eng.NewBatch()
	_ = b.Put(key, []byte("1"))
	if err := b.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	_ = b.Close()

	b = eng.NewBatch()
	_ = b.Delete(key)
	if err := b.Commit(); err != nil {
		t.Fatalf("commit delete: %v", err)
	}
	_ = b.Close()

	_, ok, err := eng.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected key to be gone after delete")
	}
}
