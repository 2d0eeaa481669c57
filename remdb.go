// Package remdb is the embedded, multi-tenant REM database: a
// Pebble-backed store organizing data as Resources, Entities and Moments,
// with JSON-Schema validation, secondary-index predicate lookup, HNSW
// vector search, a natural-language query planner, a REM-SQL executor,
// graph traversal over inline edges, and gRPC peer replication driven by
// the write-ahead log.
//
// Open returns a Database scoped to one tenant; every operation on it is
// confined to that tenant's keyspace.
package remdb

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nucleus/remdb/pkg/embedpipeline"
	"github.com/nucleus/remdb/pkg/entitystore"
	"github.com/nucleus/remdb/pkg/graphtraverse"
	"github.com/nucleus/remdb/pkg/queryexec"
	"github.com/nucleus/remdb/pkg/queryplanner"
	"github.com/nucleus/remdb/pkg/remerr"
	"github.com/nucleus/remdb/pkg/replication"
	"github.com/nucleus/remdb/pkg/schemareg"
	"github.com/nucleus/remdb/pkg/storage"
	"github.com/nucleus/remdb/pkg/wal"
)

// DefaultProviderName is the embedding provider the built-in system
// schemas bind their embedding fields to. Open registers a deterministic
// local provider under this name unless WithProvider supplied one first.
const DefaultProviderName = "default"

// DefaultProviderDimension is the local provider's vector width.
const DefaultProviderDimension = 384

// Option configures Open.
type Option func(*options)

type options struct {
	enableEmbeddings bool
	peerID           string
	providers        []embedpipeline.Provider
	plannerLLM       queryplanner.LLMBackend
	edgeLLM          EdgeLLM
	replication      *replication.Config
}

// WithEmbeddings toggles the background embedding worker. Disabled, text
// writes never enqueue embedding jobs and SEARCH only sees vectors the
// caller supplied inline.
func WithEmbeddings(enabled bool) Option {
	return func(o *options) { o.enableEmbeddings = enabled }
}

// WithPeerID fixes this node's peer id (WAL source_peer_id). Defaults to a
// random UUID per Open.
func WithPeerID(id string) Option {
	return func(o *options) { o.peerID = id }
}

// WithProvider registers an embedding provider before the registry is
// frozen. Registering one named DefaultProviderName replaces the built-in
// local provider.
func WithProvider(p embedpipeline.Provider) Option {
	return func(o *options) { o.providers = append(o.providers, p) }
}

// WithPlannerLLM plugs a model-backed planner behind the rule engine.
func WithPlannerLLM(llm queryplanner.LLMBackend) Option {
	return func(o *options) { o.plannerLLM = llm }
}

// WithEdgeLLM plugs a model-backed edge extractor behind ExtractEdges'
// rule-based fallback.
func WithEdgeLLM(llm EdgeLLM) Option {
	return func(o *options) { o.edgeLLM = llm }
}

// WithReplication configures the peer mesh. PeerID and TenantID are filled
// from the database's own values when left empty.
func WithReplication(cfg replication.Config) Option {
	return func(o *options) { o.replication = &cfg }
}

// Database is the embedded REM database handle for one tenant.
type Database struct {
	tenant    string
	eng       *storage.Engine
	schemas   *schemareg.Registry
	providers *embedpipeline.ProviderRegistry
	store     *entitystore.Store
	planner   *queryplanner.Planner
	exec      *queryexec.Executor
	repl      *replication.Manager
	edgeLLM   EdgeLLM

	embeddingsEnabled bool
}

// Open opens (creating if absent) the tenant's database rooted at path,
// registers the built-in system schemas and embedding providers, and
// rebuilds the in-memory indexes from the persisted entity bodies.
func Open(tenantID, path string, opts ...Option) (*Database, error) {
	if tenantID == "" {
		return nil, remerr.New(remerr.CodeSchemaViolation, "tenant id is required")
	}

	o := options{enableEmbeddings: true}
	for _, fn := range opts {
		fn(&o)
	}
	if o.peerID == "" {
		o.peerID = uuid.New().String()
	}

	eng, err := storage.Open(path)
	if err != nil {
		return nil, err
	}

	schemas := schemareg.NewRegistry()
	if err := schemas.RegisterBuiltins(); err != nil {
		_ = eng.Close()
		return nil, err
	}

	providers := embedpipeline.NewProviderRegistry()
	haveDefault := false
	for _, p := range o.providers {
		if err := providers.Register(p); err != nil {
			_ = eng.Close()
			return nil, err
		}
		if p.Describe().Name == DefaultProviderName {
			haveDefault = true
		}
	}
	if !haveDefault {
		if err := providers.Register(embedpipeline.NewLocalProvider(DefaultProviderName, DefaultProviderDimension)); err != nil {
			_ = eng.Close()
			return nil, err
		}
	}
	providers.Freeze()

	store := entitystore.New(eng, schemas, providers, o.peerID)

	db := &Database{
		tenant:            tenantID,
		eng:               eng,
		schemas:           schemas,
		providers:         providers,
		store:             store,
		planner:           &queryplanner.Planner{Schemas: schemas, LLM: o.plannerLLM},
		edgeLLM:           o.edgeLLM,
		embeddingsEnabled: o.enableEmbeddings,
	}
	db.exec = queryexec.New(store, schemas, schemas)

	for _, name := range schemas.SchemaNames() {
		if err := store.Rehydrate(tenantID, name); err != nil {
			store.Close()
			_ = eng.Close()
			return nil, err
		}
	}

	if o.replication != nil {
		cfg := *o.replication
		if cfg.PeerID == "" {
			cfg.PeerID = o.peerID
		}
		if cfg.TenantID == "" {
			cfg.TenantID = tenantID
		}
		mgr, err := replication.New(cfg, eng, store)
		if err != nil {
			store.Close()
			_ = eng.Close()
			return nil, err
		}
		db.repl = mgr
	}

	return db, nil
}

// Close stops the embedding worker and replication mesh and closes the
// storage engine.
func (db *Database) Close() error {
	if db.repl != nil {
		db.repl.Stop()
	}
	db.store.Close()
	return db.eng.Close()
}

// Tenant reports the tenant id this handle is scoped to.
func (db *Database) Tenant() string { return db.tenant }

// Replication exposes the replication manager for the server binary to
// register on its gRPC server and start. Nil when Open was called without
// WithReplication.
func (db *Database) Replication() *replication.Manager { return db.repl }

// Schemas exposes the schema registry.
func (db *Database) Schemas() *schemareg.Registry { return db.schemas }

// RegisterSchema registers a user schema and rehydrates its indexes from
// any entities already persisted under it (a reopened database re-registers
// its user schemas before touching their data).
func (db *Database) RegisterSchema(name string, jsonSchema map[string]any, opts SchemaOptions) error {
	short := opts.ShortName
	if short == "" {
		short = name
	}
	s := &schemareg.Schema{
		Name:                     name,
		ShortName:                short,
		KeyField:                 opts.KeyField,
		IndexedFields:            opts.IndexedFields,
		EmbeddingFields:          opts.EmbeddingFields,
		DefaultEmbeddingProvider: opts.DefaultEmbeddingProvider,
		JSONSchema:               jsonSchema,
		Category:                 schemareg.CategoryUser,
	}
	if s.DefaultEmbeddingProvider == "" && len(s.EmbeddingFields) > 0 {
		s.DefaultEmbeddingProvider = DefaultProviderName
	}
	for _, f := range s.EmbeddingFields {
		if _, err := db.providers.Describe(f.Provider); err != nil {
			return err
		}
	}
	if err := db.schemas.Register(s); err != nil {
		return err
	}
	return db.store.Rehydrate(db.tenant, s.Name)
}

// SchemaOptions carries the registry-facing descriptors that sit beside a
// schema's JSON Schema document.
type SchemaOptions struct {
	ShortName                string
	KeyField                 string
	IndexedFields            []string
	EmbeddingFields          []schemareg.EmbeddingFieldSpec
	DefaultEmbeddingProvider string
}

// Insert validates and persists one record, returning its id. Idempotent
// when the schema declares a key_field.
func (db *Database) Insert(ctx context.Context, schema string, record map[string]any) (string, error) {
	ids, err := db.Upsert(ctx, []Record{{Schema: schema, Properties: record}})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// Record is one Upsert payload.
type Record struct {
	Schema     string
	Properties map[string]any
	Edges      []entitystore.Edge
}

// Upsert validates, derives ids and persists records in order, each as one
// atomic batch covering the body, index diffs and WAL entry.
func (db *Database) Upsert(ctx context.Context, records []Record) ([]string, error) {
	recs := make([]entitystore.Record, len(records))
	for i, r := range records {
		recs[i] = entitystore.Record{
			TenantID:   db.tenant,
			Schema:     r.Schema,
			Properties: r.Properties,
			Edges:      r.Edges,
		}
	}
	return db.store.Upsert(ctx, recs)
}

// InsertWithEmbedding persists the record, then enqueues an embedding job
// per declared embedding field whose vector the record didn't already
// carry. The write returns immediately; the vectors land asynchronously
// (WaitForWorker blocks until they have).
func (db *Database) InsertWithEmbedding(ctx context.Context, schema string, record map[string]any) (string, error) {
	id, err := db.Insert(ctx, schema, record)
	if err != nil {
		return "", err
	}
	if !db.embeddingsEnabled {
		return id, nil
	}
	sch, err := db.schemas.Get(schema)
	if err != nil {
		return "", err
	}
	text := entitystore.TextSourceFor(sch, record)
	if text == "" {
		return id, nil
	}
	for _, f := range sch.EmbeddingFields {
		if _, ok := record[f.Field]; ok {
			continue
		}
		if err := db.store.EnqueueEmbedding(ctx, db.tenant, sch.Name, id, f.Field, text); err != nil {
			return id, err
		}
	}
	return id, nil
}

// Get resolves an entity by id. Tombstoned entities are returned with
// deleted_at set; a missing id is a NotFound error.
func (db *Database) Get(id string) (*entitystore.Entity, error) {
	return db.store.Get(db.tenant, id)
}

// Scan lists a schema's live entities; pass schemareg short names or FQNs.
func (db *Database) Scan(schema string, opts entitystore.ScanOptions) ([]*entitystore.Entity, error) {
	return db.store.Scan(db.tenant, schema, opts)
}

// Delete soft-deletes an entity; it stays readable by Get until compaction.
func (db *Database) Delete(ctx context.Context, id string) error {
	return db.store.Delete(ctx, db.tenant, id)
}

// WaitForWorker blocks until the embedding queue has drained or timeout
// elapses, for callers needing read-your-embeddings freshness.
func (db *Database) WaitForWorker(timeout time.Duration) error {
	return db.store.WaitForWorker(timeout)
}

// PlanQuery turns a natural-language query into a validated QueryPlan.
func (db *Database) PlanQuery(nl, schemaHint string) (*queryplanner.QueryPlan, error) {
	return db.planner.Plan(nl, schemaHint)
}

// Query plans nl and executes the plan, fallbacks included.
func (db *Database) Query(ctx context.Context, nl, schemaHint string) (*queryexec.QueryResult, error) {
	plan, err := db.PlanQuery(nl, schemaHint)
	if err != nil {
		return nil, err
	}
	return db.exec.Run(ctx, db.tenant, plan)
}

// SQL executes one REM-SQL statement directly.
func (db *Database) SQL(ctx context.Context, query string) (*queryexec.QueryResult, error) {
	return db.exec.RunSQL(ctx, db.tenant, query)
}

// SearchHit is one semantic-search result.
type SearchHit struct {
	Entity *entitystore.Entity
	Score  float64
}

// Search embeds query and runs an HNSW search over schema's first
// embedding field, returning up to topK hits in non-increasing score
// order with scores in [0,1].
func (db *Database) Search(ctx context.Context, query, schema string, topK int) ([]SearchHit, error) {
	if topK <= 0 {
		topK = 10
	}
	stmt := "SEARCH " + quoteLiteral(query) + " IN " + schema + " LIMIT " + strconv.Itoa(topK)
	res, err := db.SQL(ctx, stmt)
	if err != nil {
		return nil, err
	}
	hits := make([]SearchHit, len(res.Results))
	for i, r := range res.Results {
		hits[i] = SearchHit{Entity: r.Entity, Score: r.Score}
	}
	return hits, nil
}

// Compact hard-deletes tombstoned rows whose DELETE WAL entry every
// recorded watermark has advanced past, schema by schema, pruning the
// consumed WAL entries as it goes. Run periodically by the server binary;
// safe to call concurrently with writes.
func (db *Database) Compact(ctx context.Context) (int, error) {
	total := 0
	for _, name := range db.schemas.SchemaNames() {
		mark, err := wal.MinWatermark(db.eng, db.tenant, name)
		if err != nil {
			return total, err
		}
		if mark == 0 {
			continue
		}
		n, err := db.store.Compact(ctx, db.tenant, name, mark)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Traverse runs a BFS from startID up to depth hops. relType empty matches every edge type.
func (db *Database) Traverse(ctx context.Context, startID string, depth int, direction graphtraverse.Direction, relType string) (*graphtraverse.Result, error) {
	return graphtraverse.Traverse(ctx, db.store, db.schemas, db.tenant, startID, graphtraverse.Options{
		Depth:     depth,
		Direction: direction,
		RelType:   relType,
	})
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
