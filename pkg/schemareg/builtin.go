package schemareg

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// builtinManifest mirrors Schema's shape for YAML decoding; kept separate
// so YAML tags don't leak into the JSON-facing Schema struct's wire shape.
type builtinManifest struct {
	Name                     string               `yaml:"name"`
	ShortName                string               `yaml:"short_name"`
	KeyField                 string               `yaml:"key_field"`
	Category                 string               `yaml:"category"`
	IndexedFields            []string             `yaml:"indexed_fields"`
	EmbeddingFields          []EmbeddingFieldSpec `yaml:"embedding_fields"`
	DefaultEmbeddingProvider string               `yaml:"default_embedding_provider"`
	JSONSchema               map[string]any       `yaml:"json_schema"`
}

// builtinNames lists the manifests in a fixed order so registration is
// deterministic regardless of filesystem directory order.
var builtinNames = []string{
	"resources.yaml",
	"entities.yaml",
	"agents.yaml",
	"sessions.yaml",
	"messages.yaml",
}

// RegisterBuiltins loads and registers the system schemas (resources,
// entities, agents, sessions, messages) with category=system.
func (r *Registry) RegisterBuiltins() error {
	for _, name := range builtinNames {
		raw, err := builtinFS.ReadFile("builtin/" + name)
		if err != nil {
			return fmt.Errorf("read builtin schema %s: %w", name, err)
		}
		var m builtinManifest
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("parse builtin schema %s: %w", name, err)
		}
		s := &Schema{
			Name:                     m.Name,
			ShortName:                m.ShortName,
			KeyField:                 m.KeyField,
			IndexedFields:            m.IndexedFields,
			EmbeddingFields:          m.EmbeddingFields,
			DefaultEmbeddingProvider: m.DefaultEmbeddingProvider,
			JSONSchema:               m.JSONSchema,
			Category:                 CategorySystem,
		}
		if m.Category != "" {
			s.Category = Category(m.Category)
		}
		if err := r.Register(s); err != nil {
			return fmt.Errorf("register builtin schema %s: %w", name, err)
		}
	}
	return nil
}
