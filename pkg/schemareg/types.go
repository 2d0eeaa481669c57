// Package schemareg registers and validates JSON-Schema-extended record
// types and derives the descriptors the rest of REM needs from them
// (indexed fields, embedding fields, key field).
package schemareg

// Category records a schema's provenance: shipped with the system or
// registered by a caller.
type Category string

const (
	CategorySystem Category = "system"
	CategoryUser   Category = "user"
)

// EmbeddingFieldSpec binds one schema field to an embedding provider.
type EmbeddingFieldSpec struct {
	Field    string `yaml:"field" json:"field"`
	Provider string `yaml:"provider" json:"provider"`
}

// Schema is the registered descriptor for one record type.
type Schema struct {
	Name                     string               `yaml:"name" json:"name"`
	ShortName                string               `yaml:"short_name" json:"short_name"`
	KeyField                 string               `yaml:"key_field" json:"key_field,omitempty"`
	IndexedFields            []string             `yaml:"indexed_fields" json:"indexed_fields,omitempty"`
	EmbeddingFields          []EmbeddingFieldSpec `yaml:"embedding_fields" json:"embedding_fields,omitempty"`
	DefaultEmbeddingProvider string               `yaml:"default_embedding_provider" json:"default_embedding_provider,omitempty"`
	JSONSchema               map[string]any       `yaml:"json_schema" json:"json_schema"`
	Category                 Category             `yaml:"category" json:"category"`
}

// IsIndexed reports whether field is one of the schema's indexed_fields.
func (s *Schema) IsIndexed(field string) bool {
	for _, f := range s.IndexedFields {
		if f == field {
			return true
		}
	}
	return false
}

// EmbeddingField returns the provider binding for field, if the schema
// embeds it.
func (s *Schema) EmbeddingField(field string) (EmbeddingFieldSpec, bool) {
	for _, f := range s.EmbeddingFields {
		if f.Field == field {
			return f, true
		}
	}
	return EmbeddingFieldSpec{}, false
}
