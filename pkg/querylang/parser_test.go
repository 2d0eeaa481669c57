package querylang

import (
	"reflect"
	"testing"

	"github.com/nucleus/remdb/pkg/queryplanner"
)

func TestParseLookup(t *testing.T) {
	stmt, err := Parse("LOOKUP '550e8400-e29b-41d4-a716-446655440000'")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	lookup, ok := stmt.(*LookupStmt)
	if !ok {
		t.Fatalf("expected *LookupStmt, got %T", stmt)
	}
	if lookup.Key != "550e8400-e29b-41d4-a716-446655440000" {
		t.Fatalf("unexpected key: %q", lookup.Key)
	}
}

func TestParseSearchWithWhereAndLimit(t *testing.T) {
	stmt, err := Parse("SEARCH 'rust concurrency' IN resources WHERE category = 'docs' LIMIT 5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	search, ok := stmt.(*SearchStmt)
	if !ok {
		t.Fatalf("expected *SearchStmt, got %T", stmt)
	}
	if search.Schema != "resources" || search.Limit != 5 {
		t.Fatalf("unexpected search: %+v", search)
	}
	if search.Where == nil || search.Where.Field != "category" || search.Where.Op != "=" || search.Where.Value != "docs" {
		t.Fatalf("unexpected where clause: %+v", search.Where)
	}
}

func TestParseTraverseWithTypeAndDirection(t *testing.T) {
	stmt, err := Parse("TRAVERSE FROM 'a' DEPTH 2 DIRECTION both TYPE 'owns'")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tr, ok := stmt.(*TraverseStmt)
	if !ok {
		t.Fatalf("expected *TraverseStmt, got %T", stmt)
	}
	if tr.StartID != "a" || tr.Depth != 2 || tr.Direction != DirectionBoth || tr.RelType != "owns" {
		t.Fatalf("unexpected traverse: %+v", tr)
	}
}

func TestParseSelectWithOrderAndOffset(t *testing.T) {
	stmt, err := Parse("SELECT uri, category FROM resources WHERE category = 'docs' ORDER BY uri DESC LIMIT 10 OFFSET 20")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sel, ok := stmt.(*SelectStmt)
	if !ok {
		t.Fatalf("expected *SelectStmt, got %T", stmt)
	}
	if !reflect.DeepEqual(sel.Fields, []string{"uri", "category"}) {
		t.Fatalf("unexpected fields: %v", sel.Fields)
	}
	if !sel.Descending || sel.Limit != 10 || sel.Offset != 20 {
		t.Fatalf("unexpected select: %+v", sel)
	}
}

func TestParseRejectsJoin(t *testing.T) {
	if _, err := Parse("SELECT * FROM resources JOIN entities"); err == nil {
		t.Fatal("expected JOIN to fail to parse; REM-SQL has no JOIN production")
	}
}

func TestRoundTripStringThenParse(t *testing.T) {
	cases := []Statement{
		&LookupStmt{Key: "it's a key"},
		&SearchStmt{Text: "rust", Schema: "resources", Limit: 3, Where: &WhereClause{Field: "category", Op: "=", Value: "docs"}},
		&TraverseStmt{StartID: "a", Depth: 3, Direction: DirectionIn, RelType: "owns"},
		&SelectStmt{Fields: []string{"uri"}, Schema: "resources", Where: &WhereClause{Field: "category", Op: "IN", Values: []string{"a", "b"}}, Limit: 1},
	}
	for _, want := range cases {
		text := want.String()
		got, err := Parse(text)
		if err != nil {
			t.Fatalf("parse(%q): %v", text, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round trip mismatch for %q:\n got  %+v\n want %+v", text, got, want)
		}
	}
}

func TestFromPlanParsesPlannerOutput(t *testing.T) {
	plan := &queryplanner.QueryPlan{
		PrimaryQuery: queryplanner.Query{Dialect: "rem-sql", QueryString: "LOOKUP '550e8400-e29b-41d4-a716-446655440000'"},
	}
	stmt, err := FromPlan(plan)
	if err != nil {
		t.Fatalf("from plan: %v", err)
	}
	if _, ok := stmt.(*LookupStmt); !ok {
		t.Fatalf("expected *LookupStmt, got %T", stmt)
	}
}
