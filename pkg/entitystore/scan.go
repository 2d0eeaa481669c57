package entitystore

import (
	"encoding/json"
	"sort"

	"github.com/nucleus/remdb/pkg/remerr"
	"github.com/nucleus/remdb/pkg/secindex"
	"github.com/nucleus/remdb/pkg/storage"
)

// Scan returns every entity of schema matching opts. When the
// predicate targets an indexed_field it is satisfied from the secondary
// index; otherwise the full schema-prefix range is scanned and filtered
// in process. Tombstoned rows are elided unless IncludeDeleted is set;
// only explicit debug/admin paths pass it.
func (s *Store) Scan(tenant, schemaName string, opts ScanOptions) ([]*Entity, error) {
	schema, err := s.schemas.Get(schemaName)
	if err != nil {
		return nil, err
	}

	var candidates []*Entity
	if opts.Predicate != nil && schema.IsIndexed(opts.Predicate.Field) {
		candidates, err = s.scanViaIndex(tenant, schema.Name, opts.Predicate)
	} else {
		if opts.Predicate != nil {
			return nil, remerr.New(remerr.CodeQueryParseError, "field %q is not indexed on schema %q", opts.Predicate.Field, schema.Name)
		}
		candidates, err = s.scanPrefix(tenant, schema.Name)
	}
	if err != nil {
		return nil, err
	}

	out := make([]*Entity, 0, len(candidates))
	for _, e := range candidates {
		if e.IsDeleted() && !opts.IncludeDeleted {
			continue
		}
		out = append(out, e)
	}

	sortEntities(out, opts.OrderBy, opts.Descending)

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *Store) scanPrefix(tenant, schemaName string) ([]*Entity, error) {
	it, err := s.eng.NewPrefixIterator(storage.SchemaPrefix(tenant, schemaName))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []*Entity
	for it.Valid() {
		var e Entity
		if err := json.Unmarshal(it.Value(), &e); err != nil {
			return nil, remerr.Wrap(remerr.CodeStorageFatal, err, "unmarshal scanned entity")
		}
		out = append(out, &e)
		it.Next()
	}
	return out, nil
}

func (s *Store) scanViaIndex(tenant, schemaName string, pred *Predicate) ([]*Entity, error) {
	var ids []string
	switch pred.Op {
	case OpEqual:
		ids = s.secondary.GetIDs(tenant, schemaName, pred.Field, pred.Value)
	case OpIn:
		seen := make(map[string]bool)
		for _, v := range pred.Values {
			for _, id := range s.secondary.GetIDs(tenant, schemaName, pred.Field, v) {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
	case OpRange:
		ids = s.secondary.GetIDsRange(tenant, schemaName, pred.Field, pred.Low, pred.High)
	default:
		return nil, remerr.New(remerr.CodeQueryParseError, "unsupported predicate operator %q", pred.Op)
	}

	out := make([]*Entity, 0, len(ids))
	for _, id := range ids {
		e, found, err := s.getLocked(tenant, id)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, e)
		}
	}
	return out, nil
}

// Rehydrate rebuilds the in-memory indexes for one schema at open time:
// posting lists are reloaded from the persisted secondary CF keys
// (secindex.Rebuild), HNSW vectors are re-inserted from the embedding
// values stored on live entity bodies.
func (s *Store) Rehydrate(tenant, schemaName string) error {
	schema, err := s.schemas.Get(schemaName)
	if err != nil {
		return err
	}
	for _, field := range schema.IndexedFields {
		if err := secindex.Rebuild(s.secondary, s.eng, tenant, schema.Name, field); err != nil {
			return err
		}
	}
	if len(schema.EmbeddingFields) == 0 {
		return nil
	}
	entities, err := s.scanPrefix(tenant, schema.Name)
	if err != nil {
		return err
	}
	for _, e := range entities {
		if e.IsDeleted() {
			continue
		}
		if err := s.reindexEmbeddingFields(schema, e); err != nil {
			return err
		}
	}
	return nil
}

func sortEntities(entities []*Entity, orderBy string, descending bool) {
	less := func(i, j int) bool {
		a, b := entities[i], entities[j]
		if orderBy == "" || orderBy == "id" {
			if descending {
				return a.ID > b.ID
			}
			return a.ID < b.ID
		}
		av, aok := a.Properties[orderBy]
		bv, bok := b.Properties[orderBy]
		cmp := compareOrderValues(av, aok, bv, bok)
		if cmp == 0 {
			// tie-break on id so equal order keys sort stably
			if descending {
				return a.ID > b.ID
			}
			return a.ID < b.ID
		}
		if descending {
			return cmp > 0
		}
		return cmp < 0
	}
	sort.SliceStable(entities, less)
}

// compareOrderValues compares two scan order-key values, treating a
// missing property as sorting last regardless of direction.
func compareOrderValues(a any, aok bool, b any, bok bool) int {
	if !aok && !bok {
		return 0
	}
	if !aok {
		return 1
	}
	if !bok {
		return -1
	}
	af, aIsNum := a.(float64)
	bf, bIsNum := b.(float64)
	if aIsNum && bIsNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := toComparableString(a), toComparableString(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func toComparableString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, _ := json.Marshal(v)
	return string(raw)
}
