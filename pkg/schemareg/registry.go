package schemareg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nucleus/remdb/pkg/remerr"
)

// Registry holds every registered Schema, keyed by FQN and short name, and
// the compiled JSON Schema validator for each.
type Registry struct {
	mu        sync.RWMutex
	byName    map[string]*Schema
	byShort   map[string]*Schema
	compiled  map[string]*jsonschema.Schema
	resources int // monotonic counter for unique compiler resource URLs
}

// NewRegistry returns an empty registry. Call RegisterBuiltins to load the
// system schemas.
func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]*Schema),
		byShort:  make(map[string]*Schema),
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// Register validates and compiles s's JSON Schema, then adds it to the
// registry. A conflicting FQN or short name is rejected.
func (r *Registry) Register(s *Schema) error {
	if s.Name == "" {
		return remerr.New(remerr.CodeSchemaViolation, "schema name is required")
	}
	if s.ShortName == "" {
		return remerr.New(remerr.CodeSchemaViolation, "schema short_name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[s.Name]; ok && existing.ShortName != s.ShortName {
		return remerr.New(remerr.CodeSchemaViolation, "schema %q already registered under a different short name", s.Name)
	}
	if existing, ok := r.byShort[s.ShortName]; ok && existing.Name != s.Name {
		return remerr.New(remerr.CodeSchemaViolation, "short name %q already bound to schema %q", s.ShortName, existing.Name)
	}

	compiled, err := r.compile(s)
	if err != nil {
		return remerr.Wrap(remerr.CodeSchemaViolation, err, "compile json schema for %q", s.Name)
	}

	r.byName[s.Name] = s
	r.byShort[s.ShortName] = s
	r.compiled[s.Name] = compiled
	return nil
}

func (r *Registry) compile(s *Schema) (*jsonschema.Schema, error) {
	doc, err := json.Marshal(s.JSONSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal json schema: %w", err)
	}
	r.resources++
	url := fmt.Sprintf("mem://remdb/schema/%d", r.resources)
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	return c.Compile(url)
}

// Get resolves a schema by FQN or short name.
func (r *Registry) Get(nameOrShort string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byName[nameOrShort]; ok {
		return s, nil
	}
	if s, ok := r.byShort[nameOrShort]; ok {
		return s, nil
	}
	return nil, remerr.New(remerr.CodeNotFound, "schema %q is not registered", nameOrShort)
}

// List returns every registered schema, optionally filtered by category.
func (r *Registry) List(category Category) []*Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Schema, 0, len(r.byName))
	for _, s := range r.byName {
		if category != "" && s.Category != category {
			continue
		}
		out = append(out, s)
	}
	return out
}

// SchemaNames lists every registered schema's FQN, satisfying
// graphtraverse.SchemaLister for inbound-edge traversal.
func (r *Registry) SchemaNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	return out
}

// Validate checks properties against the schema's compiled JSON Schema,
// returning a SchemaViolation naming the offending field and constraint on
// failure.
func (r *Registry) Validate(nameOrShort string, properties map[string]any) error {
	s, err := r.Get(nameOrShort)
	if err != nil {
		return err
	}
	r.mu.RLock()
	compiled := r.compiled[s.Name]
	r.mu.RUnlock()
	if compiled == nil {
		return remerr.New(remerr.CodeStorageFatal, "schema %q has no compiled validator", s.Name)
	}

	// jsonschema validates against any decoded via encoding/json, so round
	// trip properties through JSON to normalize numeric/slice types.
	raw, err := json.Marshal(properties)
	if err != nil {
		return remerr.Wrap(remerr.CodeSchemaViolation, err, "marshal properties for %q", s.Name)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return remerr.Wrap(remerr.CodeSchemaViolation, err, "unmarshal properties for %q", s.Name)
	}

	if err := compiled.Validate(doc); err != nil {
		field, reason := firstViolation(err)
		return remerr.New(remerr.CodeSchemaViolation, "%s", reason).WithField(field)
	}
	return nil
}

// firstViolation walks a jsonschema.ValidationError tree to the first leaf
// cause and reports its instance path and message.
func firstViolation(err error) (field, reason string) {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return "", err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	field = strings.TrimPrefix(ve.InstanceLocation, "/")
	field = strings.ReplaceAll(field, "/", ".")
	return field, ve.Message
}
