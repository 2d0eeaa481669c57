package schemareg

import (
	"testing"

	"github.com/nucleus/remdb/pkg/remerr"
)

func testSchema() *Schema {
	return &Schema{
		Name:          "doc.note",
		ShortName:     "note",
		KeyField:      "title",
		IndexedFields: []string{"status"},
		Category:      CategoryUser,
		JSONSchema: map[string]any{
			"type":     "object",
			"required": []any{"title"},
			"properties": map[string]any{
				"title":  map[string]any{"type": "string"},
				"status": map[string]any{"type": "string"},
			},
		},
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testSchema()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Get("doc.note"); err != nil {
		t.Fatalf("get by fqn: %v", err)
	}
	if _, err := r.Get("note"); err != nil {
		t.Fatalf("get by short name: %v", err)
	}
}

func TestRegisterRejectsConflictingShortName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testSchema()); err != nil {
		t.Fatalf("register: %v", err)
	}
	other := testSchema()
	other.Name = "doc.other"
	if err := r.Register(other); err == nil {
		t.Fatal("expected conflicting short name to be rejected")
	}
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testSchema()); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := r.Validate("note", map[string]any{"status": "active"})
	if err == nil {
		t.Fatal("expected validation error for missing title")
	}
	if remerr.CodeOf(err) != remerr.CodeSchemaViolation {
		t.Fatalf("expected SchemaViolation, got %v", remerr.CodeOf(err))
	}
}

func TestValidateAcceptsConformingDocument(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testSchema()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Validate("note", map[string]any{"title": "hello", "status": "active"}); err != nil {
		t.Fatalf("expected valid document to pass, got %v", err)
	}
}

func TestGetUnknownSchema(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("nope"); remerr.CodeOf(err) != remerr.CodeNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterBuiltins(); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	for _, short := range []string{"resources", "entities", "agents", "sessions", "messages"} {
		s, err := r.Get(short)
		if err != nil {
			t.Fatalf("get builtin %q: %v", short, err)
		}
		if s.Category != CategorySystem {
			t.Fatalf("expected builtin %q to be category system, got %q", short, s.Category)
		}
	}
}
