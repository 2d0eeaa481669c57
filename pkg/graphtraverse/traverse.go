// Package graphtraverse implements BFS traversal over the edges stored
// inline on entity bodies; there is no separate edge table.
package graphtraverse

import (
	"context"

	"github.com/nucleus/remdb/pkg/entitystore"
	"github.com/nucleus/remdb/pkg/remerr"
)

// Direction restricts which edges a traversal follows relative to the
// current node.
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// DefaultDepth bounds fan-out when a caller doesn't specify a depth.
const DefaultDepth = 3

// Store is the subset of entitystore.Store a traversal needs: resolving a
// node by id and, for the "in" direction, every entity in a schema whose
// edges point at a given destination (there is no separate edge table, so
// "in" is answered by scanning candidate schemas' entity bodies).
type Store interface {
	Get(tenant, id string) (*entitystore.Entity, error)
	Scan(tenant, schema string, opts entitystore.ScanOptions) ([]*entitystore.Entity, error)
}

// SchemaLister names every schema a traversal should consider when
// resolving inbound edges, since entity bodies don't carry a reverse
// index. Backed by schemareg.Registry.List in practice.
type SchemaLister interface {
	SchemaNames() []string
}

// Result is what Traverse returns: the visited ids in BFS order and the
// path taken to reach each one.
type Result struct {
	IDs   []string            `json:"ids"`
	Paths map[string][]string `json:"paths"`
}

// Options configures a traversal.
type Options struct {
	Depth     int
	Direction Direction
	RelType   string // empty matches every rel_type
}

type queueItem struct {
	id    string
	depth int
	path  []string
}

// Traverse runs a BFS from start up to opts.Depth hops, following edges
// that match opts.Direction and opts.RelType. Cycles are
// broken by a visited set keyed on entity id.
func Traverse(ctx context.Context, store Store, lister SchemaLister, tenant, start string, opts Options) (*Result, error) {
	// Zero is a meaningful depth (visit only the start node); only a
	// negative value means "unspecified".
	if opts.Depth < 0 {
		opts.Depth = DefaultDepth
	}
	if opts.Direction == "" {
		opts.Direction = DirectionOut
	}

	startEntity, err := store.Get(tenant, start)
	if err != nil {
		return nil, err
	}
	if startEntity.IsDeleted() {
		return nil, remerr.New(remerr.CodeNotFound, "start entity %q is deleted", start)
	}

	visited := map[string]bool{start: true}
	result := &Result{IDs: []string{start}, Paths: map[string][]string{start: {start}}}
	queue := []queueItem{{id: start, depth: 0, path: []string{start}}}

	for i := 0; i < len(queue); i++ {
		item := queue[i]
		if item.depth >= opts.Depth {
			continue
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		neighbors, err := neighborsOf(store, lister, tenant, item.id, opts)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if visited[n] {
				continue
			}
			visited[n] = true
			path := append(append([]string{}, item.path...), n)
			result.IDs = append(result.IDs, n)
			result.Paths[n] = path
			queue = append(queue, queueItem{id: n, depth: item.depth + 1, path: path})
		}
	}

	return result, nil
}

// neighborsOf returns every id reachable from id in one hop honoring
// direction and rel_type. Outbound edges are read straight off the
// entity's own Edges slice. Inbound edges have no reverse index, so every registered
// schema is scanned for entities whose outbound edges point at id. This
// stays bounded: REM has few schemas and traversal depth is itself
// bounded.
func neighborsOf(store Store, lister SchemaLister, tenant, id string, opts Options) ([]string, error) {
	var out []string
	if opts.Direction == DirectionOut || opts.Direction == DirectionBoth {
		e, err := store.Get(tenant, id)
		if err != nil {
			return nil, err
		}
		for _, edge := range e.Edges {
			if opts.RelType != "" && edge.RelType != opts.RelType {
				continue
			}
			out = append(out, edge.Dst)
		}
	}
	if opts.Direction == DirectionIn || opts.Direction == DirectionBoth {
		for _, schema := range lister.SchemaNames() {
			rows, err := store.Scan(tenant, schema, entitystore.ScanOptions{})
			if err != nil {
				continue // schema may not apply to this tenant's data; skip rather than fail the whole traversal
			}
			for _, e := range rows {
				for _, edge := range e.Edges {
					if edge.Dst != id {
						continue
					}
					if opts.RelType != "" && edge.RelType != opts.RelType {
						continue
					}
					out = append(out, e.ID)
				}
			}
		}
	}
	return out, nil
}
