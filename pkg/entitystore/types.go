// Package entitystore implements upsert/get/scan/delete of Resources,
// Entities, Moments and their specializations, keeping entity bodies,
// secondary postings, vectors and the WAL consistent on every write.
package entitystore

import "time"

// Edge is owned by its source entity; dst is a weak reference, never
// ownership.
type Edge struct {
	Src        string         `json:"src"`
	Dst        string         `json:"dst"`
	RelType    string         `json:"rel_type"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Entity is the universal record.
type Entity struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	Schema     string         `json:"schema"`
	Properties map[string]any `json:"properties"`
	Edges      []Edge         `json:"edges,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	ModifiedAt time.Time      `json:"modified_at"`
	DeletedAt  *time.Time     `json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the entity carries a tombstone.
func (e *Entity) IsDeleted() bool { return e.DeletedAt != nil }

// Record is the caller-supplied payload for Upsert: everything the
// schema's key_field and indexed/embedding fields can be derived from.
type Record struct {
	TenantID   string
	Schema     string
	Properties map[string]any
	Edges      []Edge
}

// ScanOptions configures Store.Scan.
type ScanOptions struct {
	Predicate      *Predicate
	OrderBy        string // property name; "" means id order
	Descending     bool
	Limit          int
	Offset         int
	IncludeDeleted bool
}

// PredicateOp names a scan/SELECT comparison operator.
type PredicateOp string

const (
	OpEqual PredicateOp = "eq"
	OpIn    PredicateOp = "in"
	OpRange PredicateOp = "range"
)

// Predicate restricts a scan to entities matching one indexed field, used
// to route the scan through pkg/secindex instead of a full schema-prefix
// scan.
type Predicate struct {
	Field  string
	Op     PredicateOp
	Value  []byte   // OpEqual
	Values [][]byte // OpIn
	Low    []byte   // OpRange, inclusive
	High   []byte   // OpRange, exclusive
}
