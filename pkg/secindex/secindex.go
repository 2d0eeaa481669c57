// Package secindex implements the secondary (non-vector) index over
// indexed_fields: an inverted field-value -> entity-id posting list,
// persisted through pkg/storage's "s" column family and cached in process
// memory as compressed bitmaps.
package secindex

import (
	"bytes"
	"sync"

	roaring "github.com/RoaringBitmap/roaring/v2"

	"github.com/nucleus/remdb/pkg/storage"
)

// Index holds the in-memory posting lists for one engine. Entity ids are
// mapped to dense uint32 handles because roaring bitmaps operate on
// integers; the handle table is the index's own allocation, not derived
// from entity content, and is refilled from storage by Rebuild.
type Index struct {
	mu       sync.RWMutex
	postings map[string]*roaring.Bitmap // "tenant/schema/field/value" -> ids
	handles  map[string]uint32          // entity id -> handle
	ids      map[uint32]string          // handle -> entity id
	next     uint32
}

func New() *Index {
	return &Index{
		postings: make(map[string]*roaring.Bitmap),
		handles:  make(map[string]uint32),
		ids:      make(map[uint32]string),
	}
}

func postingMapKey(tenant, schema, field string, value []byte) string {
	return tenant + "\x00" + schema + "\x00" + field + "\x00" + string(value)
}

func (idx *Index) handleFor(id string) uint32 {
	if h, ok := idx.handles[id]; ok {
		return h
	}
	h := idx.next
	idx.next++
	idx.handles[id] = h
	idx.ids[h] = id
	return h
}

// Add records that entity id has value for (tenant, schema, field).
func (idx *Index) Add(tenant, schema, field string, value []byte, id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	key := postingMapKey(tenant, schema, field, value)
	bm, ok := idx.postings[key]
	if !ok {
		bm = roaring.New()
		idx.postings[key] = bm
	}
	bm.Add(idx.handleFor(id))
}

// Remove deletes the (field, value) -> id posting, used when a value
// changes or the entity is hard-deleted.
func (idx *Index) Remove(tenant, schema, field string, value []byte, id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	key := postingMapKey(tenant, schema, field, value)
	bm, ok := idx.postings[key]
	if !ok {
		return
	}
	if h, ok := idx.handles[id]; ok {
		bm.Remove(h)
	}
	if bm.IsEmpty() {
		delete(idx.postings, key)
	}
}

// GetIDs returns every entity id with the exact (field, value).
func (idx *Index) GetIDs(tenant, schema, field string, value []byte) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	bm, ok := idx.postings[postingMapKey(tenant, schema, field, value)]
	if !ok {
		return nil
	}
	return idx.resolveLocked(bm)
}

// GetIDsRange returns every entity id whose (field) value falls in
// [lower, upper) under byte-lexicographic order. Values are expected to
// already be order-preserving encoded (storage.EncodeUint64/EncodeInt64
// for numeric fields, raw bytes for strings/timestamps), resolving Open
// Question 2 ("do posting lists support range predicates?") in favor of
// range support rather than requiring a full scan fallback.
func (idx *Index) GetIDsRange(tenant, schema, field string, lower, upper []byte) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	prefix := tenant + "\x00" + schema + "\x00" + field + "\x00"
	out := roaring.New()
	for key, bm := range idx.postings {
		if !hasPrefix(key, prefix) {
			continue
		}
		value := []byte(key[len(prefix):])
		if lower != nil && bytes.Compare(value, lower) < 0 {
			continue
		}
		if upper != nil && bytes.Compare(value, upper) >= 0 {
			continue
		}
		out.Or(bm)
	}
	return idx.resolveLocked(out)
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// Intersect ANDs together the posting lists for a set of exact
// (field, value) predicates, used to satisfy a SELECT with multiple
// equality filters, or to build the "allowed" set passed into a HYBRID
// vector search.
func (idx *Index) Intersect(tenant, schema string, predicates map[string][]byte) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var result *roaring.Bitmap
	for field, value := range predicates {
		bm, ok := idx.postings[postingMapKey(tenant, schema, field, value)]
		if !ok {
			return nil
		}
		if result == nil {
			result = bm.Clone()
		} else {
			result.And(bm)
		}
	}
	if result == nil {
		return nil
	}
	return idx.resolveLocked(result)
}

func (idx *Index) resolveLocked(bm *roaring.Bitmap) []string {
	out := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		h := it.Next()
		if id, ok := idx.ids[h]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Rebuild scans a tenant/schema/field's persisted postings back into
// memory, used at process start-up (storage.PostingPrefix scan).
func Rebuild(idx *Index, eng *storage.Engine, tenant, schema, field string) error {
	it, err := eng.NewPrefixIterator(storage.PostingPrefix(tenant, schema, field))
	if err != nil {
		return err
	}
	defer it.Close()

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for it.Valid() {
		value, id, ok := splitPostingKey(it.Key(), tenant, schema, field)
		if ok {
			key := postingMapKey(tenant, schema, field, value)
			bm, ok := idx.postings[key]
			if !ok {
				bm = roaring.New()
				idx.postings[key] = bm
			}
			bm.Add(idx.handleFor(id))
		}
		it.Next()
	}
	return nil
}

// splitPostingKey recovers (value, id) from a raw storage.PostingKey,
// given the fixed tenant/schema/field prefix that produced it.
func splitPostingKey(key []byte, tenant, schema, field string) (value []byte, id string, ok bool) {
	prefix := storage.PostingPrefix(tenant, schema, field)
	if !bytes.HasPrefix(key, prefix) {
		return nil, "", false
	}
	rest := key[len(prefix):]
	idx := bytes.LastIndexByte(rest, '/')
	if idx < 0 {
		return nil, "", false
	}
	return rest[:idx], string(rest[idx+1:]), true
}
