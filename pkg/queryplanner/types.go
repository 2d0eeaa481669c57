// Package queryplanner turns a natural-language query into a typed,
// validated QueryPlan. The default implementation is rule-driven; an
// LLM-backed Planner can be substituted behind the same interface, and
// every plan, however produced, is re-validated against the same rules
// before use.
package queryplanner

// QueryType names the REM-SQL statement family a plan resolves to.
type QueryType string

const (
	QueryTypeLookup   QueryType = "LOOKUP"
	QueryTypeSearch   QueryType = "SEARCH"
	QueryTypeSQL      QueryType = "SQL"
	QueryTypeTraverse QueryType = "TRAVERSE"
	QueryTypeHybrid   QueryType = "HYBRID"
)

// ExecutionMode tells the executor how to run primary_query relative to
// fallback_queries.
type ExecutionMode string

const (
	ModeSinglePass ExecutionMode = "single_pass"
	ModeMultiStage ExecutionMode = "multi_stage"
	ModeAdaptive   ExecutionMode = "adaptive"
)

// FallbackTrigger names the condition that promotes a fallback query.
type FallbackTrigger string

const (
	TriggerNoResults     FallbackTrigger = "no_results"
	TriggerError         FallbackTrigger = "error"
	TriggerLowConfidence FallbackTrigger = "low_confidence"
)

// Query is one dialect/string/parameters triple, either the primary
// query or one fallback.
type Query struct {
	Dialect    string         `json:"dialect"`
	QueryString string        `json:"query_string"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Fallback is one entry in a QueryPlan's ordered fallback chain.
type Fallback struct {
	Query      Query           `json:"query"`
	Trigger    FallbackTrigger `json:"trigger"`
	Confidence float64         `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
}

// Metadata carries the planner's estimates and provenance notes.
type Metadata struct {
	EstimatedRows     *int     `json:"estimated_rows,omitempty"`
	EstimatedTimeMS   *int     `json:"estimated_time_ms,omitempty"`
	RequiresEmbedding bool     `json:"requires_embedding"`
	UsesIndex         bool     `json:"uses_index"`
	SchemasSearched   []string `json:"schemas_searched,omitempty"`
}

// QueryPlan is the planner's typed, validated output.
type QueryPlan struct {
	QueryType       QueryType     `json:"query_type"`
	Confidence      float64       `json:"confidence"`
	PrimaryQuery    Query         `json:"primary_query"`
	FallbackQueries []Fallback    `json:"fallback_queries,omitempty"`
	ExecutionMode   ExecutionMode `json:"execution_mode"`
	SchemaHints     []string      `json:"schema_hints,omitempty"`
	Reasoning       string        `json:"reasoning"`
	Explanation     string        `json:"explanation,omitempty"`
	NextSteps       []string      `json:"next_steps,omitempty"`
	Metadata        Metadata      `json:"metadata"`
}

// lowConfidenceThreshold is the cutoff below which a plan must carry a
// non-empty explanation.
const lowConfidenceThreshold = 0.6
