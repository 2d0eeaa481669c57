// Package querylang implements the REM-SQL dialect: LOOKUP, SEARCH,
// TRAVERSE and a JOIN-less SELECT, parsed into a typed AST and rendered
// back to text. The grammar is small and fixed, so the tokenizer and
// recursive-descent parser are hand-written.
package querylang

import "fmt"

// Statement is any parsed REM-SQL command.
type Statement interface {
	fmt.Stringer
	isStatement()
}

// WhereClause restricts a SEARCH or SELECT to one predicate on one field
//.
type WhereClause struct {
	Field  string
	Op     string   // "=", ">", "<", ">=", "<=", "IN", "BETWEEN"
	Value  string   // "=", ">", "<", ">=", "<="
	Values []string // "IN"
	Low    string   // "BETWEEN" lower bound
	High   string   // "BETWEEN" upper bound
}

// LookupStmt is "LOOKUP '<key>'": a direct key_field or id resolution.
type LookupStmt struct {
	Key string
}

func (*LookupStmt) isStatement() {}
func (s *LookupStmt) String() string {
	return fmt.Sprintf("LOOKUP %s", quote(s.Key))
}

// SearchStmt is "SEARCH '<text>' IN <schema> [WHERE ...] [LIMIT n]": a
// semantic vector search scoped to one schema.
type SearchStmt struct {
	Text   string
	Schema string
	Where  *WhereClause
	Limit  int
}

func (*SearchStmt) isStatement() {}
func (s *SearchStmt) String() string {
	out := fmt.Sprintf("SEARCH %s IN %s", quote(s.Text), s.Schema)
	if s.Where != nil {
		out += " WHERE " + renderWhere(s.Where)
	}
	if s.Limit > 0 {
		out += fmt.Sprintf(" LIMIT %d", s.Limit)
	}
	return out
}

// Direction mirrors graphtraverse.Direction without importing it, keeping
// querylang free of a dependency on the executor-side packages.
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// TraverseStmt is "TRAVERSE FROM '<id>' DEPTH n DIRECTION in|out|both
// [TYPE '<rel>']": the only way REM-SQL expresses a relationship; REM-SQL
// never emits JOINs.
type TraverseStmt struct {
	StartID   string
	Depth     int
	Direction Direction
	RelType   string // "" means every rel_type
}

func (*TraverseStmt) isStatement() {}
func (s *TraverseStmt) String() string {
	out := fmt.Sprintf("TRAVERSE FROM %s DEPTH %d DIRECTION %s", quote(s.StartID), s.Depth, s.Direction)
	if s.RelType != "" {
		out += " TYPE " + quote(s.RelType)
	}
	return out
}

// SelectStmt is "SELECT <fields> FROM <schema> [WHERE ...] [ORDER BY ...]
// [LIMIT n] [OFFSET n]": field-level retrieval with no JOINs.
type SelectStmt struct {
	Fields     []string // ["*"] for all
	Schema     string
	Where      *WhereClause
	OrderBy    string
	Descending bool
	Limit      int
	Offset     int
}

func (*SelectStmt) isStatement() {}
func (s *SelectStmt) String() string {
	out := fmt.Sprintf("SELECT %s FROM %s", renderFields(s.Fields), s.Schema)
	if s.Where != nil {
		out += " WHERE " + renderWhere(s.Where)
	}
	if s.OrderBy != "" {
		out += " ORDER BY " + s.OrderBy
		if s.Descending {
			out += " DESC"
		}
	}
	if s.Limit > 0 {
		out += fmt.Sprintf(" LIMIT %d", s.Limit)
	}
	if s.Offset > 0 {
		out += fmt.Sprintf(" OFFSET %d", s.Offset)
	}
	return out
}

func renderFields(fields []string) string {
	if len(fields) == 0 {
		return "*"
	}
	out := fields[0]
	for _, f := range fields[1:] {
		out += ", " + f
	}
	return out
}

func renderWhere(w *WhereClause) string {
	switch w.Op {
	case "IN":
		out := w.Field + " IN (" + quote(w.Values[0])
		for _, v := range w.Values[1:] {
			out += ", " + quote(v)
		}
		return out + ")"
	case "BETWEEN":
		return fmt.Sprintf("%s BETWEEN %s AND %s", w.Field, quote(w.Low), quote(w.High))
	default:
		return fmt.Sprintf("%s %s %s", w.Field, w.Op, quote(w.Value))
	}
}

func quote(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	out = append(out, '\'')
	return string(out)
}
