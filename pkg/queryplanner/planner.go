package queryplanner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nucleus/remdb/pkg/remerr"
	"github.com/nucleus/remdb/pkg/schemareg"
)

var (
	uuidPattern     = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	dashCodePattern = regexp.MustCompile(`^[A-Za-z0-9]+(-[A-Za-z0-9]+){1,}$`)
	digitsPattern   = regexp.MustCompile(`^[0-9]+$`)

	traverseHint = regexp.MustCompile(`(?i)\b(traverse|path (from|between)|connected to|related to)\b`)
)

const defaultSearchLimit = 10

// Planner produces QueryPlans from natural-language input. The
// zero value is a ready-to-use rule-driven planner; set LLM to delegate
// the rule-miss case to a model instead.
type Planner struct {
	Schemas *schemareg.Registry

	// LLM, when set, is consulted for queries the rule engine can't
	// confidently classify. Every plan it returns is re-validated with
	// the same Validate rules as a rule-driven plan.
	LLM LLMBackend
}

// LLMBackend is the pluggable NL-understanding backend. REM ships no
// default implementation; without one, Plan falls back to the rule
// engine's best guess (a low-confidence LOOKUP/SEARCH with fallbacks).
type LLMBackend interface {
	Plan(nl string, schemaHint string, schemaNames []string) (*QueryPlan, error)
}

// New constructs a Planner bound to a schema registry.
func New(schemas *schemareg.Registry) *Planner {
	return &Planner{Schemas: schemas}
}

// Plan classifies nl into a validated QueryPlan.
func (p *Planner) Plan(nl string, schemaHint string) (*QueryPlan, error) {
	trimmed := strings.TrimSpace(nl)

	if isIdentifier(trimmed) {
		plan := &QueryPlan{
			QueryType:     QueryTypeLookup,
			Confidence:    1.0,
			PrimaryQuery:  Query{Dialect: "rem-sql", QueryString: fmt.Sprintf("LOOKUP %s", quote(trimmed))},
			ExecutionMode: ModeSinglePass,
			Reasoning:     "input matches a known identifier pattern (uuid, dash-separated code, or digits)",
			Metadata:      Metadata{UsesIndex: true},
		}
		if schemaHint != "" {
			plan.SchemaHints = []string{schemaHint}
		}
		return p.finish(plan)
	}

	if isSQL(trimmed) {
		return p.finish(p.planSQL(trimmed, schemaHint))
	}

	if traverseHint.MatchString(trimmed) {
		return p.finish(p.planTraverse(trimmed, schemaHint))
	}

	if schemaHint != "" {
		return p.finish(p.planSearch(trimmed, schemaHint))
	}

	// The rules above found no confident classification: ask the LLM
	// backend when one is configured, keeping the rule plan below if it
	// fails or returns nothing.
	if p.LLM != nil {
		if llmPlan, err := p.LLM.Plan(trimmed, schemaHint, p.allSchemaNames()); err == nil && llmPlan != nil {
			return p.finish(llmPlan)
		}
	}

	// Without a schema hint, prefer schema-agnostic LOOKUP over
	// SEARCH, chained with a SEARCH fallback across every schema.
	plan := &QueryPlan{
		QueryType:     QueryTypeLookup,
		Confidence:    0.45,
		PrimaryQuery:  Query{Dialect: "rem-sql", QueryString: fmt.Sprintf("LOOKUP %s", quote(trimmed))},
		ExecutionMode: ModeMultiStage,
		Reasoning:     "no schema hint given; trying a schema-agnostic key lookup before falling back to semantic search",
		Explanation:   "confidence is below 0.6 because the input isn't a recognized identifier and no schema hint narrows the search",
		NextSteps:     []string{"supply a schema hint to search a specific schema directly"},
		Metadata:      Metadata{SchemasSearched: p.allSchemaNames()},
	}
	plan.FallbackQueries = p.searchFallbacks(trimmed, p.allSchemaNames())
	return p.finish(plan)
}

func (p *Planner) planSQL(nl string, schemaHint string) *QueryPlan {
	plan := &QueryPlan{
		QueryType:     QueryTypeSQL,
		Confidence:    0.9,
		PrimaryQuery:  Query{Dialect: "rem-sql", QueryString: nl},
		ExecutionMode: ModeSinglePass,
		Reasoning:     "input is already a SELECT statement in the REM-SQL dialect",
		Metadata:      Metadata{UsesIndex: true},
	}
	if schemaHint != "" {
		plan.SchemaHints = []string{schemaHint}
		if field, ok := whereField(nl); ok {
			if schema, err := p.Schemas.Get(schemaHint); err == nil && !schema.IsIndexed(field) {
				plan.Confidence = 0.5
				plan.Explanation = fmt.Sprintf("WHERE references %q, which schema %q does not declare indexed; the executor will reject the predicate", field, schemaHint)
			}
		}
	}
	return plan
}

func (p *Planner) planTraverse(nl string, schemaHint string) *QueryPlan {
	if id := firstIdentifierToken(nl); id != "" {
		return &QueryPlan{
			QueryType:     QueryTypeTraverse,
			Confidence:    0.85,
			PrimaryQuery:  Query{Dialect: "rem-sql", QueryString: fmt.Sprintf("TRAVERSE FROM %s DEPTH 3 DIRECTION both", quote(id))},
			ExecutionMode: ModeSinglePass,
			Reasoning:     "traversal intent detected and the start id resolved directly from the input",
			Metadata:      Metadata{UsesIndex: true},
		}
	}

	// Only a name was supplied, not a resolved id, so the plan must
	// begin with a LOOKUP fallback chain before any TRAVERSE can run.
	plan := &QueryPlan{
		QueryType:     QueryTypeLookup,
		Confidence:    0.4,
		PrimaryQuery:  Query{Dialect: "rem-sql", QueryString: fmt.Sprintf("LOOKUP %s", quote(nl))},
		ExecutionMode: ModeMultiStage,
		Reasoning:     "traversal intent detected but no id was resolvable; looking up a start node by name first",
		Explanation:   "confidence is below 0.6 because the traversal start must be resolved by name before any graph hop can run",
	}
	if schemaHint != "" {
		plan.SchemaHints = []string{schemaHint}
	}
	plan.FallbackQueries = append(plan.FallbackQueries, Fallback{
		Query:      Query{Dialect: "rem-sql", QueryString: fmt.Sprintf("SEARCH %s IN %s LIMIT %d", quote(nl), firstNonEmpty(schemaHint, "resources"), defaultSearchLimit)},
		Trigger:    TriggerNoResults,
		Confidence: 0.3,
		Reasoning:  "fall back to semantic search for the start node if the direct lookup misses",
	})
	return plan
}

func (p *Planner) planSearch(nl string, schemaHint string) *QueryPlan {
	return &QueryPlan{
		QueryType:     QueryTypeSearch,
		Confidence:    0.75,
		PrimaryQuery:  Query{Dialect: "rem-sql", QueryString: fmt.Sprintf("SEARCH %s IN %s LIMIT %d", quote(nl), schemaHint, defaultSearchLimit)},
		ExecutionMode: ModeSinglePass,
		SchemaHints:   []string{schemaHint},
		Reasoning:     fmt.Sprintf("schema hint %q given; running a semantic search directly", schemaHint),
		Metadata:      Metadata{RequiresEmbedding: true, SchemasSearched: []string{schemaHint}},
	}
}

func (p *Planner) searchFallbacks(nl string, schemas []string) []Fallback {
	out := make([]Fallback, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, Fallback{
			Query:      Query{Dialect: "rem-sql", QueryString: fmt.Sprintf("SEARCH %s IN %s LIMIT %d", quote(nl), s, defaultSearchLimit)},
			Trigger:    TriggerNoResults,
			Confidence: 0.5,
			Reasoning:  fmt.Sprintf("fall back to semantic search over %q if the key lookup finds nothing", s),
		})
	}
	return out
}

func (p *Planner) allSchemaNames() []string {
	if p.Schemas == nil {
		return nil
	}
	var names []string
	for _, s := range p.Schemas.List("") {
		names = append(names, s.ShortName)
	}
	return names
}

// finish re-validates every plan before returning it: an LLM-produced
// plan is untrusted input exactly like a rule-based one.
func (p *Planner) finish(plan *QueryPlan) (*QueryPlan, error) {
	if err := Validate(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Validate enforces the structural rules a QueryPlan must satisfy
// regardless of how it was produced.
func Validate(plan *QueryPlan) error {
	if plan.Confidence < 0 || plan.Confidence > 1 {
		return remerr.New(remerr.CodePlanValidationError, "confidence %f out of [0,1]", plan.Confidence)
	}
	if plan.Confidence < lowConfidenceThreshold && strings.TrimSpace(plan.Explanation) == "" {
		return remerr.New(remerr.CodePlanValidationError, "confidence %.2f < 0.6 requires a non-empty explanation", plan.Confidence)
	}
	if strings.Contains(strings.ToUpper(plan.PrimaryQuery.QueryString), "JOIN") {
		return remerr.New(remerr.CodePlanValidationError, "REM-SQL never emits JOINs; relationships are expressed as TRAVERSE stages")
	}
	for _, fb := range plan.FallbackQueries {
		if strings.Contains(strings.ToUpper(fb.Query.QueryString), "JOIN") {
			return remerr.New(remerr.CodePlanValidationError, "fallback query must not contain a JOIN")
		}
	}
	return nil
}

func isIdentifier(s string) bool {
	return uuidPattern.MatchString(s) || dashCodePattern.MatchString(s) || digitsPattern.MatchString(s)
}

func isSQL(s string) bool {
	return len(s) >= 6 && strings.EqualFold(s[:6], "select")
}

var whereFieldPattern = regexp.MustCompile(`(?i)where\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*(=|>|<|>=|<=|in\b)`)

func whereField(sql string) (string, bool) {
	m := whereFieldPattern.FindStringSubmatch(sql)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func firstIdentifierToken(s string) string {
	for _, tok := range strings.Fields(s) {
		tok = strings.Trim(tok, ".,;:'\"")
		if isIdentifier(tok) {
			return tok
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
