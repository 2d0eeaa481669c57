package querylang

import "github.com/nucleus/remdb/pkg/queryplanner"

// FromPlan parses a QueryPlan's primary query string into a typed
// Statement, the bridge between the planner's text output and the
// executor's typed dispatch. Fallback queries are parsed the same way by
// the executor as it walks plan.FallbackQueries.
func FromPlan(plan *queryplanner.QueryPlan) (Statement, error) {
	return Parse(plan.PrimaryQuery.QueryString)
}

// FromQuery parses one queryplanner.Query (primary or fallback) into a
// Statement.
func FromQuery(q queryplanner.Query) (Statement, error) {
	return Parse(q.QueryString)
}
