package entitystore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nucleus/remdb/pkg/embedpipeline"
	"github.com/nucleus/remdb/pkg/remerr"
	"github.com/nucleus/remdb/pkg/schemareg"
	"github.com/nucleus/remdb/pkg/secindex"
	"github.com/nucleus/remdb/pkg/storage"
	"github.com/nucleus/remdb/pkg/vectorindex"
	"github.com/nucleus/remdb/pkg/wal"
)

// idNamespace seeds the deterministic key_field hash over
// (tenant, schema, key_value). A fixed namespace UUID keeps the
// derivation pinned across restarts instead of drifting with uuid.Nil's
// handling in different uuid package versions.
var idNamespace = uuid.MustParse("6f6e0f2e-2c0d-4e61-9f6c-9a9f2b6d9a10")

// Store implements the entity store component, wiring the
// storage engine, schema registry, secondary index, vector index, WAL and
// embedding pipeline together behind upsert/get/scan/delete.
type Store struct {
	eng       *storage.Engine
	schemas   *schemareg.Registry
	secondary *secindex.Index
	vectors   *vectorindex.Index
	providers *embedpipeline.ProviderRegistry
	wal       *wal.Log
	worker    *embedpipeline.Worker
	peerID    string
	replica   Replicator

	writeMu sync.Mutex
	tenantW map[string]*sync.Mutex // per-tenant write serialization
}

// Replicator receives every WAL entry this store commits, so pkg/replication
// can broadcast it to the peer mesh. Entity store writes succeed whether or not a replicator is
// attached; broadcasting is fire-and-forget from the writer's perspective.
type Replicator interface {
	Broadcast(entry wal.Entry)
}

// SetReplicator attaches the replication manager. Call once at startup;
// nil is a valid (no-op) value for single-node use.
func (s *Store) SetReplicator(r Replicator) { s.replica = r }

func (s *Store) broadcast(entry wal.Entry) {
	if s.replica != nil {
		s.replica.Broadcast(entry)
	}
}

// New wires a Store over an already-open storage engine and registries.
// peerID tags every WAL entry this node produces.
func New(eng *storage.Engine, schemas *schemareg.Registry, providers *embedpipeline.ProviderRegistry, peerID string) *Store {
	s := &Store{
		eng:       eng,
		schemas:   schemas,
		secondary: secindex.New(),
		vectors:   vectorindex.New(),
		providers: providers,
		wal:       wal.NewLog(eng),
		peerID:    peerID,
		tenantW:   make(map[string]*sync.Mutex),
	}
	s.worker = embedpipeline.NewWorker(providers, s.applyEmbeddingResult, 5)
	return s
}

// Close stops the embedding worker. The storage engine outlives the store
// and is closed separately by whoever opened it.
func (s *Store) Close() { s.worker.Close() }

// Secondary exposes the in-memory posting-list index for the query
// executor's predicate lookups.
func (s *Store) Secondary() *secindex.Index { return s.secondary }

// Vectors exposes the HNSW collection for the query executor's SEARCH
// dispatch.
func (s *Store) Vectors() *vectorindex.Index { return s.vectors }

// Providers exposes the embedding provider registry, e.g. for the query
// builder to check a SEARCH schema's dimension before embedding a query.
func (s *Store) Providers() *embedpipeline.ProviderRegistry { return s.providers }

// WaitForWorker blocks until every tenant's embedding queue has drained, or
// timeout elapses.
func (s *Store) WaitForWorker(timeout time.Duration) error { return s.worker.WaitForWorker(timeout) }

func (s *Store) tenantLock(tenant string) *sync.Mutex {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	m, ok := s.tenantW[tenant]
	if !ok {
		m = &sync.Mutex{}
		s.tenantW[tenant] = m
	}
	return m
}

// Upsert validates, derives ids, and persists records. Writes
// within a tenant are serialized so WAL seq numbers stay strictly
// monotonic and the secondary/vector indexes never observe a body
// write without its index diff, or vice versa.
func (s *Store) Upsert(ctx context.Context, records []Record) ([]string, error) {
	ids := make([]string, len(records))
	for i, rec := range records {
		id, err := s.upsertOne(ctx, rec)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func (s *Store) upsertOne(ctx context.Context, rec Record) (string, error) {
	schema, err := s.schemas.Get(rec.Schema)
	if err != nil {
		return "", err
	}
	if err := s.schemas.Validate(schema.Name, rec.Properties); err != nil {
		return "", err
	}

	lock := s.tenantLock(rec.TenantID)
	lock.Lock()
	defer lock.Unlock()

	id, keyValue, err := s.deriveID(schema, rec)
	if err != nil {
		return "", err
	}

	existing, found, err := s.getLocked(rec.TenantID, id)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	createdAt := now
	if found {
		createdAt = existing.CreatedAt
	}

	edges := make([]Edge, len(rec.Edges))
	for i, e := range rec.Edges {
		if e.RelType == "" {
			return "", remerr.New(remerr.CodeSchemaViolation, "edge %d has empty rel_type", i).WithField("edges")
		}
		e.Src = id // an edge's src always equals the containing entity's id
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		edges[i] = e
	}

	entity := &Entity{
		ID:         id,
		TenantID:   rec.TenantID,
		Schema:     schema.Name,
		Properties: rec.Properties,
		Edges:      edges,
		CreatedAt:  createdAt,
		ModifiedAt: now,
	}

	raw, err := json.Marshal(entity)
	if err != nil {
		return "", remerr.Wrap(remerr.CodeStorageFatal, err, "marshal entity %s", id)
	}

	b := s.eng.NewBatch()
	defer b.Close()

	if err := b.Put(storage.EntityKey(rec.TenantID, schema.Name, id), raw); err != nil {
		return "", remerr.Wrap(remerr.CodeStorageFatal, err, "put entity body")
	}
	if err := b.Put(storage.IDIndexKey(rec.TenantID, id), []byte(schema.Name)); err != nil {
		return "", remerr.Wrap(remerr.CodeStorageFatal, err, "put id index")
	}
	if keyValue != "" {
		if err := b.Put(storage.KeyIndexKey(rec.TenantID, keyValue), []byte(id)); err != nil {
			return "", remerr.Wrap(remerr.CodeStorageFatal, err, "put key index")
		}
	}

	indexDiffs := s.diffIndexedFields(schema, existing, found, entity)
	for _, d := range indexDiffs {
		if d.remove {
			if err := b.Delete(storage.PostingKey(rec.TenantID, schema.Name, d.field, d.value, id)); err != nil {
				return "", remerr.Wrap(remerr.CodeStorageFatal, err, "remove posting")
			}
		} else {
			if err := b.Put(storage.PostingKey(rec.TenantID, schema.Name, d.field, d.value, id), []byte{1}); err != nil {
				return "", remerr.Wrap(remerr.CodeStorageFatal, err, "put posting")
			}
		}
	}

	entry, err := s.wal.Append(b, rec.TenantID, schema.Name, wal.OpPut, string(storage.EntityKey(rec.TenantID, schema.Name, id)), raw, s.peerID)
	if err != nil {
		return "", err
	}

	if err := b.Commit(); err != nil {
		return "", err
	}
	s.broadcast(entry)

	for _, d := range indexDiffs {
		if d.remove {
			s.secondary.Remove(rec.TenantID, schema.Name, d.field, d.value, id)
		} else {
			s.secondary.Add(rec.TenantID, schema.Name, d.field, d.value, id)
		}
	}

	if err := s.reindexEmbeddingFields(schema, entity); err != nil {
		return "", err
	}

	return id, nil
}

// deriveID resolves the entity's id: deterministic from the schema's
// key_field when declared (idempotent upserts), otherwise random. It also returns the raw key value string used for the key_index
// posting, empty when the schema has no key_field.
func (s *Store) deriveID(schema *schemareg.Schema, rec Record) (id string, keyValue string, err error) {
	if schema.KeyField == "" {
		return uuid.New().String(), "", nil
	}
	raw, ok := rec.Properties[schema.KeyField]
	if !ok {
		return "", "", remerr.New(remerr.CodeSchemaViolation, "missing key_field %q", schema.KeyField).WithField(schema.KeyField)
	}
	keyValue = fmt.Sprint(raw)
	if keyValue == "" {
		return "", "", remerr.New(remerr.CodeSchemaViolation, "key_field %q must not be empty", schema.KeyField).WithField(schema.KeyField)
	}
	seed := rec.TenantID + "/" + schema.Name + "/" + keyValue
	return uuid.NewSHA1(idNamespace, []byte(seed)).String(), keyValue, nil
}

type indexDiff struct {
	field  string
	value  []byte
	remove bool
}

// diffIndexedFields computes the posting-list adds/removes needed to move
// an entity from its previous indexed values to its new ones.
func (s *Store) diffIndexedFields(schema *schemareg.Schema, existing *Entity, found bool, next *Entity) []indexDiff {
	var diffs []indexDiff
	for _, field := range schema.IndexedFields {
		var oldVal, newVal []byte
		var hadOld bool
		if found && !existing.IsDeleted() {
			if v, ok := existing.Properties[field]; ok {
				oldVal = encodeIndexValue(v)
				hadOld = true
			}
		}
		newRaw, hasNew := next.Properties[field]
		if hasNew {
			newVal = encodeIndexValue(newRaw)
		}
		if hadOld && (!hasNew || string(oldVal) != string(newVal)) {
			diffs = append(diffs, indexDiff{field: field, value: oldVal, remove: true})
		}
		if hasNew && (!hadOld || string(oldVal) != string(newVal)) {
			diffs = append(diffs, indexDiff{field: field, value: newVal})
		}
	}
	return diffs
}

// EncodeIndexValue exposes encodeIndexValue's numeric encoding to callers
// outside the package (pkg/queryexec, building WHERE predicates from
// REM-SQL's string-typed literals) so comparisons against postings written
// by Upsert agree.
func EncodeIndexValue(v any) []byte { return encodeIndexValue(v) }

// encodeIndexValue produces an order-preserving posting-list value:
// big-endian for numbers so range predicates compare correctly, raw
// UTF-8 bytes otherwise.
func encodeIndexValue(v any) []byte {
	switch t := v.(type) {
	case float64:
		return storage.EncodeInt64(int64(t))
	case int:
		return storage.EncodeInt64(int64(t))
	case int64:
		return storage.EncodeInt64(t)
	case bool:
		if t {
			return []byte{1}
		}
		return []byte{0}
	case string:
		return []byte(t)
	default:
		return []byte(fmt.Sprint(t))
	}
}

// Get resolves an entity by id alone, returning tombstoned entities
// with deleted_at set. A missing id is a NotFound error.
func (s *Store) Get(tenant, id string) (*Entity, error) {
	e, found, err := s.getLocked(tenant, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, remerr.New(remerr.CodeNotFound, "entity %q not found", id)
	}
	return e, nil
}

func (s *Store) getLocked(tenant, id string) (*Entity, bool, error) {
	schemaName, found, err := s.eng.Get(storage.IDIndexKey(tenant, id))
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	raw, found, err := s.eng.Get(storage.EntityKey(tenant, string(schemaName), id))
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	var e Entity
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, remerr.Wrap(remerr.CodeStorageFatal, err, "unmarshal entity %s", id)
	}
	return &e, true, nil
}

// ResolveKey resolves a LOOKUP key value: first through the key_index CF
// (a schema's key_field value), falling back to treating the literal as
// an id directly, matching REM-SQL's "LOOKUP" cross-schema semantics
//.
func (s *Store) ResolveKey(tenant, key string) (*Entity, error) {
	if idBytes, found, err := s.eng.Get(storage.KeyIndexKey(tenant, key)); err != nil {
		return nil, err
	} else if found {
		return s.Get(tenant, string(idBytes))
	}
	return s.Get(tenant, key)
}

// Delete soft-deletes an entity by setting deleted_at. Its postings are removed so scans and
// predicate lookups stop returning it: a posting never outlives its row.
func (s *Store) Delete(ctx context.Context, tenant, id string) error {
	lock := s.tenantLock(tenant)
	lock.Lock()
	defer lock.Unlock()

	e, found, err := s.getLocked(tenant, id)
	if err != nil {
		return err
	}
	if !found {
		return remerr.New(remerr.CodeNotFound, "entity %q not found", id)
	}
	if e.IsDeleted() {
		return nil
	}

	schema, err := s.schemas.Get(e.Schema)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	e.DeletedAt = &now
	e.ModifiedAt = now
	raw, err := json.Marshal(e)
	if err != nil {
		return remerr.Wrap(remerr.CodeStorageFatal, err, "marshal tombstoned entity %s", id)
	}

	b := s.eng.NewBatch()
	defer b.Close()
	if err := b.Put(storage.EntityKey(tenant, e.Schema, id), raw); err != nil {
		return remerr.Wrap(remerr.CodeStorageFatal, err, "put tombstoned entity")
	}
	var removed []indexDiff
	for _, field := range schema.IndexedFields {
		if v, ok := e.Properties[field]; ok {
			val := encodeIndexValue(v)
			if err := b.Delete(storage.PostingKey(tenant, e.Schema, field, val, id)); err != nil {
				return remerr.Wrap(remerr.CodeStorageFatal, err, "remove posting on delete")
			}
			removed = append(removed, indexDiff{field: field, value: val, remove: true})
		}
	}
	entry, err := s.wal.Append(b, tenant, e.Schema, wal.OpDelete, string(storage.EntityKey(tenant, e.Schema, id)), raw, s.peerID)
	if err != nil {
		return err
	}
	if err := b.Commit(); err != nil {
		return err
	}
	s.broadcast(entry)
	for _, d := range removed {
		s.secondary.Remove(tenant, e.Schema, d.field, d.value, id)
	}
	for _, f := range schema.EmbeddingFields {
		s.vectors.Delete(schema.Name, f.Field, id)
	}
	return nil
}

// reindexEmbeddingFields indexes any embedding-field values that are
// already present on the entity as numeric vectors (the synchronous path
// used by callers that computed embeddings themselves, e.g. replayed WAL
// entries or pre-embedded bulk loads). Text-triggered embedding generation
// goes through EnqueueEmbedding / the worker instead.
func (s *Store) reindexEmbeddingFields(schema *schemareg.Schema, entity *Entity) error {
	for _, f := range schema.EmbeddingFields {
		raw, ok := entity.Properties[f.Field]
		if !ok {
			continue
		}
		vec, ok := toFloat32Slice(raw)
		if !ok || len(vec) == 0 {
			continue
		}
		provider := f.Provider
		if err := s.providers.CheckDimension(provider, vec); err != nil {
			return err
		}
		descriptor, err := s.providers.Describe(provider)
		if err != nil {
			return err
		}
		if err := s.vectors.Upsert(schema.Name, f.Field, descriptor.Metric, entity.ID, vec); err != nil {
			return err
		}
	}
	return nil
}

func toFloat32Slice(v any) ([]float32, bool) {
	switch t := v.(type) {
	case []float32:
		return t, true
	case []float64:
		out := make([]float32, len(t))
		for i, f := range t {
			out[i] = float32(f)
		}
		return out, true
	case []any:
		out := make([]float32, len(t))
		for i, e := range t {
			f, ok := e.(float64)
			if !ok {
				return nil, false
			}
			out[i] = float32(f)
		}
		return out, true
	default:
		return nil, false
	}
}

// EnqueueEmbedding submits a text-to-vector job for one of the schema's
// declared embedding fields. Callers (typically Database.InsertWithEmbedding)
// choose the source text; the result lands back on the entity and vector
// index asynchronously via applyEmbeddingResult.
func (s *Store) EnqueueEmbedding(ctx context.Context, tenant, schemaName, id, field, text string) error {
	schema, err := s.schemas.Get(schemaName)
	if err != nil {
		return err
	}
	spec, ok := schema.EmbeddingField(field)
	if !ok {
		return remerr.New(remerr.CodeSchemaViolation, "schema %q has no embedding field %q", schemaName, field)
	}
	return s.worker.Enqueue(ctx, embedpipeline.Item{
		Tenant: tenant, Schema: schema.Name, EntityID: id, Field: field,
		Text: text, Provider: spec.Provider,
	})
}

// applyEmbeddingResult is the embedding worker's ApplyFunc: on
// success it writes the vector back into the entity body and vector index
// in one atomic batch; on permanent failure it stamps the entity's
// embedding_error property without blocking other writes.
func (s *Store) applyEmbeddingResult(ctx context.Context, r embedpipeline.Result) {
	lock := s.tenantLock(r.Item.Tenant)
	lock.Lock()
	defer lock.Unlock()

	e, found, err := s.getLocked(r.Item.Tenant, r.Item.EntityID)
	if err != nil || !found {
		return
	}

	if r.Err != nil {
		if e.Properties == nil {
			e.Properties = map[string]any{}
		}
		e.Properties["embedding_error"] = r.Err.Error()
	} else {
		if e.Properties == nil {
			e.Properties = map[string]any{}
		}
		e.Properties[r.Item.Field] = r.Vector
		delete(e.Properties, "embedding_error")
	}
	e.ModifiedAt = time.Now().UTC()

	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	b := s.eng.NewBatch()
	defer b.Close()
	if err := b.Put(storage.EntityKey(r.Item.Tenant, e.Schema, e.ID), raw); err != nil {
		return
	}
	entry, err := s.wal.Append(b, r.Item.Tenant, e.Schema, wal.OpPut, string(storage.EntityKey(r.Item.Tenant, e.Schema, e.ID)), raw, s.peerID)
	if err != nil {
		return
	}
	if err := b.Commit(); err != nil {
		return
	}
	s.broadcast(entry)

	if r.Err == nil {
		descriptor, derr := s.providers.Describe(r.Item.Provider)
		if derr == nil {
			_ = s.vectors.Upsert(e.Schema, r.Item.Field, descriptor.Metric, e.ID, r.Vector)
		}
	}
}

// ApplyReplicated applies a remote peer's WAL entry to local storage,
// maintaining the same body + id-index + secondary-index + vector-index
// invariants as a local write, but without re-numbering the local WAL: the
// entry already carries its origin's seq_num, and pkg/replication suppresses
// re-broadcasting it (source_peer_id loop suppression). Conflicts
// are resolved last-write-wins on modified_at, ties broken by source_peer_id
// lexicographic order so every peer converges on the same winner.
func (s *Store) ApplyReplicated(tenant string, remote *Entity, sourcePeerID string) (applied bool, err error) {
	lock := s.tenantLock(tenant)
	lock.Lock()
	defer lock.Unlock()

	schema, err := s.schemas.Get(remote.Schema)
	if err != nil {
		return false, err
	}

	existing, found, err := s.getLocked(tenant, remote.ID)
	if err != nil {
		return false, err
	}

	if found {
		win, err := s.resolveConflict(tenant, remote, existing, sourcePeerID)
		if err != nil {
			return false, err
		}
		if !win {
			return false, nil
		}
	}

	raw, err := json.Marshal(remote)
	if err != nil {
		return false, remerr.Wrap(remerr.CodeStorageFatal, err, "marshal replicated entity %s", remote.ID)
	}

	b := s.eng.NewBatch()
	defer b.Close()
	if err := b.Put(storage.EntityKey(tenant, remote.Schema, remote.ID), raw); err != nil {
		return false, remerr.Wrap(remerr.CodeStorageFatal, err, "put replicated entity body")
	}
	if err := b.Put(storage.IDIndexKey(tenant, remote.ID), []byte(remote.Schema)); err != nil {
		return false, remerr.Wrap(remerr.CodeStorageFatal, err, "put replicated id index")
	}
	if schema.KeyField != "" {
		if kv, ok := remote.Properties[schema.KeyField]; ok {
			if keyValue := fmt.Sprint(kv); keyValue != "" {
				if err := b.Put(storage.KeyIndexKey(tenant, keyValue), []byte(remote.ID)); err != nil {
					return false, remerr.Wrap(remerr.CodeStorageFatal, err, "put replicated key index")
				}
			}
		}
	}

	diffs := s.diffIndexedFields(schema, existing, found, remote)
	for _, d := range diffs {
		if d.remove {
			if err := b.Delete(storage.PostingKey(tenant, remote.Schema, d.field, d.value, remote.ID)); err != nil {
				return false, remerr.Wrap(remerr.CodeStorageFatal, err, "remove replicated posting")
			}
		} else {
			if err := b.Put(storage.PostingKey(tenant, remote.Schema, d.field, d.value, remote.ID), []byte{1}); err != nil {
				return false, remerr.Wrap(remerr.CodeStorageFatal, err, "put replicated posting")
			}
		}
	}

	lwwRaw, err := json.Marshal(lwwRecord{ModifiedAtUnixMicro: remote.ModifiedAt.UnixMicro(), SourcePeerID: sourcePeerID})
	if err != nil {
		return false, remerr.Wrap(remerr.CodeStorageFatal, err, "marshal lww record")
	}
	if err := b.Put(storage.LWWKey(string(storage.EntityKey(tenant, remote.Schema, remote.ID))), lwwRaw); err != nil {
		return false, remerr.Wrap(remerr.CodeStorageFatal, err, "put lww record")
	}

	if err := b.Commit(); err != nil {
		return false, err
	}

	for _, d := range diffs {
		if d.remove {
			s.secondary.Remove(tenant, remote.Schema, d.field, d.value, remote.ID)
		} else {
			s.secondary.Add(tenant, remote.Schema, d.field, d.value, remote.ID)
		}
	}

	if remote.IsDeleted() {
		for _, f := range schema.EmbeddingFields {
			s.vectors.Delete(schema.Name, f.Field, remote.ID)
		}
	} else if err := s.reindexEmbeddingFields(schema, remote); err != nil {
		return false, err
	}

	return true, nil
}

// lwwRecord is the conflict-resolution bookkeeping stored per entity key
// under storage.LWWKey, so later replicated writes (or replays after a
// restart) can re-derive the last-write-wins decision.
type lwwRecord struct {
	ModifiedAtUnixMicro int64  `json:"modified_at_us"`
	SourcePeerID        string `json:"source_peer_id"`
}

// resolveConflict reports whether remote should overwrite existing, per
// last-write-wins on modified_at with source_peer_id as the tiebreak. It prefers the persisted lwwRecord over existing.ModifiedAt when
// both are present, since the local copy may itself be a replicated write
// whose true origin timestamp differs from when this node applied it.
func (s *Store) resolveConflict(tenant string, remote, existing *Entity, sourcePeerID string) (bool, error) {
	prevRaw, found, err := s.eng.Get(storage.LWWKey(string(storage.EntityKey(tenant, existing.Schema, existing.ID))))
	if err != nil {
		return false, err
	}
	var prevModified int64
	var prevPeer string
	if found {
		var prev lwwRecord
		if err := json.Unmarshal(prevRaw, &prev); err != nil {
			return false, remerr.Wrap(remerr.CodeStorageFatal, err, "unmarshal lww record")
		}
		prevModified, prevPeer = prev.ModifiedAtUnixMicro, prev.SourcePeerID
	} else {
		prevModified = existing.ModifiedAt.UnixMicro()
	}

	remoteModified := remote.ModifiedAt.UnixMicro()
	if remoteModified > prevModified {
		return true, nil
	}
	if remoteModified < prevModified {
		return false, nil
	}
	return sourcePeerID > prevPeer, nil
}

// TextSourceFor picks the text an embedding job runs on: the schema's
// "content" property when present, else the concatenation of every
// string-valued property that isn't itself an embedding field.
func TextSourceFor(schema *schemareg.Schema, properties map[string]any) string {
	if v, ok := properties["content"]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	embedFields := make(map[string]bool, len(schema.EmbeddingFields))
	for _, f := range schema.EmbeddingFields {
		embedFields[f.Field] = true
	}
	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		if embedFields[k] {
			continue
		}
		if s, ok := properties[k].(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
