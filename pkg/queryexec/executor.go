// Package queryexec executes queries: it takes a queryplanner.QueryPlan
// (or a raw REM-SQL string), parses it through pkg/querylang, and
// dispatches the resulting typed AST to the point-lookup, secondary-index,
// vector-search and graph-traversal layers, composing results with the
// plan's fallback chain when the primary stage's trigger condition fires.
package queryexec

import (
	"context"
	"strconv"
	"time"

	"github.com/nucleus/remdb/pkg/embedpipeline"
	"github.com/nucleus/remdb/pkg/entitystore"
	"github.com/nucleus/remdb/pkg/graphtraverse"
	"github.com/nucleus/remdb/pkg/querylang"
	"github.com/nucleus/remdb/pkg/queryplanner"
	"github.com/nucleus/remdb/pkg/remerr"
	"github.com/nucleus/remdb/pkg/schemareg"
	"github.com/nucleus/remdb/pkg/secindex"
	"github.com/nucleus/remdb/pkg/vectorindex"
)

// Row is one result row: an entity plus the relevance score a SEARCH or
// HYBRID stage ranked it with (zero for plain LOOKUP/SELECT/TRAVERSE rows).
type Row struct {
	Entity *entitystore.Entity `json:"entity"`
	Score  float64             `json:"score,omitempty"`
}

// StageResult records how many rows one stage (primary or a fallback)
// produced, for QueryResult.StageResults.
type StageResult struct {
	Query string `json:"query"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}

// QueryResult is the executor's output.
type QueryResult struct {
	Results       []Row                      `json:"results"`
	Query         string                     `json:"query"`
	QueryType     queryplanner.QueryType     `json:"query_type"`
	Confidence    float64                    `json:"confidence"`
	Stages        int                        `json:"stages"`
	StageResults  []StageResult              `json:"stage_results"`
	TotalTimeMS   int64                      `json:"total_time_ms"`
	ExecutionMode queryplanner.ExecutionMode `json:"execution_mode"`
	Reasoning     string                     `json:"reasoning"`
	FallbackUsed  bool                       `json:"fallback_used"`
	NextSteps     []string                   `json:"next_steps,omitempty"`
}

// EntityStore is the subset of entitystore.Store the executor dispatches
// to, narrowed to an interface so tests can substitute a fake.
type EntityStore interface {
	Get(tenant, id string) (*entitystore.Entity, error)
	ResolveKey(tenant, key string) (*entitystore.Entity, error)
	Scan(tenant, schema string, opts entitystore.ScanOptions) ([]*entitystore.Entity, error)
	Secondary() *secindex.Index
	Vectors() *vectorindex.Index
	Providers() *embedpipeline.ProviderRegistry
}

// Executor dispatches parsed REM-SQL statements to the storage, index,
// search and traversal components.
type Executor struct {
	Store   EntityStore
	Schemas *schemareg.Registry
	Lister  graphtraverse.SchemaLister
}

// New constructs an Executor. lister satisfies graphtraverse's inbound-edge
// scan; schemas is typically the same registry wired into store.
func New(store EntityStore, schemas *schemareg.Registry, lister graphtraverse.SchemaLister) *Executor {
	return &Executor{Store: store, Schemas: schemas, Lister: lister}
}

// Run executes a validated QueryPlan end to end: the primary
// query runs first; for multi_stage/adaptive execution modes, a fallback
// is tried in order when the primary's trigger condition fires (empty
// result set, a raised error, or, for adaptive plans, the plan's own
// confidence already below the low-confidence threshold).
func (ex *Executor) Run(ctx context.Context, tenant string, plan *queryplanner.QueryPlan) (*QueryResult, error) {
	if err := queryplanner.Validate(plan); err != nil {
		return nil, err
	}
	start := time.Now()
	result := &QueryResult{
		QueryType:     plan.QueryType,
		Confidence:    plan.Confidence,
		ExecutionMode: plan.ExecutionMode,
		Reasoning:     plan.Reasoning,
		NextSteps:     plan.NextSteps,
	}

	rows, stage, runErr := ex.runQuery(ctx, tenant, plan.PrimaryQuery)
	result.Stages++
	result.StageResults = append(result.StageResults, stage)
	result.Query = plan.PrimaryQuery.QueryString

	trigger := triggerFor(rows, runErr)
	// 0.6 is the planner's low-confidence cutoff (the one below which a
	// plan must carry an explanation).
	if trigger == "" && plan.ExecutionMode == queryplanner.ModeAdaptive && plan.Confidence < 0.6 {
		trigger = queryplanner.TriggerLowConfidence
	}
	useFallbacks := plan.ExecutionMode == queryplanner.ModeMultiStage || plan.ExecutionMode == queryplanner.ModeAdaptive
	if trigger != "" && useFallbacks {
		for _, fb := range plan.FallbackQueries {
			if fb.Trigger != trigger {
				continue
			}
			fbRows, fbStage, fbErr := ex.runQuery(ctx, tenant, fb.Query)
			result.Stages++
			result.StageResults = append(result.StageResults, fbStage)
			if fbErr == nil && len(fbRows) > 0 {
				rows = fbRows
				runErr = nil
				result.Query = fb.Query.QueryString
				result.FallbackUsed = true
				break
			}
		}
	}

	if runErr != nil && len(rows) == 0 {
		result.TotalTimeMS = time.Since(start).Milliseconds()
		return result, runErr
	}

	result.Results = toRows(rows)
	result.TotalTimeMS = time.Since(start).Milliseconds()
	return result, nil
}

// RunSQL parses and executes a single REM-SQL string directly, bypassing
// the planner, for callers that already hold a query string.
func (ex *Executor) RunSQL(ctx context.Context, tenant, query string) (*QueryResult, error) {
	rows, stage, err := ex.runQuery(ctx, tenant, queryplanner.Query{Dialect: "rem-sql", QueryString: query})
	result := &QueryResult{
		Query:        query,
		Stages:       1,
		StageResults: []StageResult{stage},
	}
	if err != nil {
		return result, err
	}
	result.Results = toRows(rows)
	return result, nil
}

func triggerFor(rows []scoredRow, err error) queryplanner.FallbackTrigger {
	if err != nil {
		return queryplanner.TriggerError
	}
	if len(rows) == 0 {
		return queryplanner.TriggerNoResults
	}
	return ""
}

type scoredRow struct {
	entity *entitystore.Entity
	score  float64
}

func toRows(rows []scoredRow) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = Row{Entity: r.entity, Score: r.score}
	}
	return out
}

// runQuery parses q.QueryString and dispatches it, recording a StageResult
// regardless of outcome so Run/RunSQL can report stage_results even on
// failure.
func (ex *Executor) runQuery(ctx context.Context, tenant string, q queryplanner.Query) ([]scoredRow, StageResult, error) {
	stmt, err := querylang.Parse(q.QueryString)
	if err != nil {
		return nil, StageResult{Query: q.QueryString, Error: err.Error()}, remerr.Wrap(remerr.CodeQueryParseError, err, "parse %q", q.QueryString)
	}

	rows, err := ex.dispatch(ctx, tenant, stmt)
	stage := StageResult{Query: q.QueryString, Rows: len(rows)}
	if err != nil {
		stage.Error = err.Error()
		return rows, stage, err
	}
	return rows, stage, nil
}

func (ex *Executor) dispatch(ctx context.Context, tenant string, stmt querylang.Statement) ([]scoredRow, error) {
	switch s := stmt.(type) {
	case *querylang.LookupStmt:
		return ex.execLookup(tenant, s)
	case *querylang.SearchStmt:
		return ex.execSearch(ctx, tenant, s)
	case *querylang.TraverseStmt:
		return ex.execTraverse(ctx, tenant, s)
	case *querylang.SelectStmt:
		return ex.execSelect(tenant, s)
	default:
		return nil, remerr.New(remerr.CodeQueryParseError, "unknown statement type %T", stmt)
	}
}

func (ex *Executor) execLookup(tenant string, s *querylang.LookupStmt) ([]scoredRow, error) {
	e, err := ex.Store.ResolveKey(tenant, s.Key)
	if err != nil {
		if remerr.Is(err, remerr.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if e.IsDeleted() {
		return nil, nil
	}
	return []scoredRow{{entity: e}}, nil
}

func (ex *Executor) execSearch(ctx context.Context, tenant string, s *querylang.SearchStmt) ([]scoredRow, error) {
	schema, err := ex.Schemas.Get(s.Schema)
	if err != nil {
		return nil, err
	}
	if len(schema.EmbeddingFields) == 0 {
		return nil, remerr.New(remerr.CodeQueryParseError, "schema %q has no embedding_fields to SEARCH", s.Schema)
	}
	field := schema.EmbeddingFields[0]
	provider, err := ex.Store.Providers().Get(field.Provider)
	if err != nil {
		return nil, err
	}
	vec, err := provider.Embed(ctx, s.Text)
	if err != nil {
		return nil, remerr.Wrap(remerr.CodeProviderUnavailable, err, "embed search text")
	}
	if err := ex.Store.Providers().CheckDimension(field.Provider, vec); err != nil {
		return nil, err
	}

	var allowed map[string]struct{}
	if s.Where != nil {
		if !schema.IsIndexed(s.Where.Field) {
			return nil, remerr.New(remerr.CodeQueryParseError, "field %q is not indexed on schema %q", s.Where.Field, s.Schema)
		}
		ids, err := idsForWhere(ex.Store.Secondary(), tenant, schema.Name, s.Where)
		if err != nil {
			return nil, err
		}
		allowed = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			allowed[id] = struct{}{}
		}
	}

	limit := s.Limit
	if limit <= 0 {
		limit = 10
	}
	descriptor, err := ex.Store.Providers().Describe(field.Provider)
	if err != nil {
		return nil, err
	}
	matches := ex.Store.Vectors().Search(schema.Name, field.Field, descriptor.Metric, vec, limit, allowed)

	out := make([]scoredRow, 0, len(matches))
	for _, m := range matches {
		e, err := ex.Store.Get(tenant, m.ID)
		if err != nil || e.IsDeleted() {
			continue
		}
		out = append(out, scoredRow{entity: e, score: normalizeScore(m.Distance)})
	}
	return out, nil
}

// normalizeScore maps an HNSW cosine distance in [0,2] to a similarity
// score in [0,1].
func normalizeScore(distance float32) float64 {
	score := 1 - float64(distance)/2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func (ex *Executor) execTraverse(ctx context.Context, tenant string, s *querylang.TraverseStmt) ([]scoredRow, error) {
	result, err := graphtraverse.Traverse(ctx, ex.Store, ex.Lister, tenant, s.StartID, graphtraverse.Options{
		Depth:     s.Depth,
		Direction: graphtraverse.Direction(s.Direction),
		RelType:   s.RelType,
	})
	if err != nil {
		return nil, err
	}
	out := make([]scoredRow, 0, len(result.IDs))
	for _, id := range result.IDs {
		e, err := ex.Store.Get(tenant, id)
		if err != nil {
			continue
		}
		out = append(out, scoredRow{entity: e})
	}
	return out, nil
}

func (ex *Executor) execSelect(tenant string, s *querylang.SelectStmt) ([]scoredRow, error) {
	opts := entitystore.ScanOptions{
		OrderBy:    s.OrderBy,
		Descending: s.Descending,
		Limit:      s.Limit,
		Offset:     s.Offset,
	}
	if s.Where != nil {
		pred, err := wherePredicate(s.Where)
		if err != nil {
			return nil, err
		}
		opts.Predicate = pred
	}
	entities, err := ex.Store.Scan(tenant, s.Schema, opts)
	if err != nil {
		return nil, err
	}
	out := make([]scoredRow, len(entities))
	for i, e := range entities {
		out[i] = scoredRow{entity: e}
	}
	return out, nil
}

// wherePredicate converts a querylang.WhereClause into an
// entitystore.Predicate, encoding comparison values the same way the
// entity store encodes indexed field postings (numbers big-endian) so
// range/equality comparisons agree with what Upsert wrote.
func wherePredicate(w *querylang.WhereClause) (*entitystore.Predicate, error) {
	switch w.Op {
	case "=":
		return &entitystore.Predicate{Field: w.Field, Op: entitystore.OpEqual, Value: encodeWhereValue(w.Value)}, nil
	case "IN":
		values := make([][]byte, len(w.Values))
		for i, v := range w.Values {
			values[i] = encodeWhereValue(v)
		}
		return &entitystore.Predicate{Field: w.Field, Op: entitystore.OpIn, Values: values}, nil
	case "BETWEEN":
		return &entitystore.Predicate{Field: w.Field, Op: entitystore.OpRange, Low: encodeWhereValue(w.Low), High: encodeWhereValue(w.High)}, nil
	case ">", ">=":
		low := encodeWhereValue(w.Value)
		if w.Op == ">" {
			low = append(append([]byte{}, low...), 0x00)
		}
		return &entitystore.Predicate{Field: w.Field, Op: entitystore.OpRange, Low: low, High: nil}, nil
	case "<", "<=":
		high := encodeWhereValue(w.Value)
		if w.Op == "<=" {
			high = append(append([]byte{}, high...), 0x00)
		}
		return &entitystore.Predicate{Field: w.Field, Op: entitystore.OpRange, Low: nil, High: high}, nil
	default:
		return nil, remerr.New(remerr.CodeQueryParseError, "unsupported WHERE operator %q", w.Op)
	}
}

func encodeWhereValue(v string) []byte {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return entitystore.EncodeIndexValue(n)
	}
	return []byte(v)
}

func idsForWhere(idx *secindex.Index, tenant, schema string, w *querylang.WhereClause) ([]string, error) {
	pred, err := wherePredicate(w)
	if err != nil {
		return nil, err
	}
	switch pred.Op {
	case entitystore.OpEqual:
		return idx.GetIDs(tenant, schema, pred.Field, pred.Value), nil
	case entitystore.OpIn:
		seen := make(map[string]bool)
		var ids []string
		for _, v := range pred.Values {
			for _, id := range idx.GetIDs(tenant, schema, pred.Field, v) {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
		return ids, nil
	case entitystore.OpRange:
		return idx.GetIDsRange(tenant, schema, pred.Field, pred.Low, pred.High), nil
	default:
		return nil, remerr.New(remerr.CodeQueryParseError, "unsupported predicate operator %q", pred.Op)
	}
}
