package remdb

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/nucleus/remdb/pkg/entitystore"
	"github.com/nucleus/remdb/pkg/remerr"
)

// EdgeExtraction is ExtractEdges' advisory output: candidate edges the
// caller may attach to an entity via Upsert, plus a one-line summary of
// what was found. Nothing is persisted by extraction itself.
type EdgeExtraction struct {
	Edges   []entitystore.Edge `json:"edges"`
	Summary string             `json:"summary"`
}

// EdgeLLM is the pluggable model backend for ExtractEdges. Without one,
// extraction falls back to the identifier-pattern rules below.
type EdgeLLM interface {
	ExtractEdges(ctx context.Context, text, contextHint string) (*EdgeExtraction, error)
}

var identifierToken = regexp.MustCompile(`\b([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}|[A-Za-z0-9]+(?:-[A-Za-z0-9]+)+)\b`)

// ExtractEdges proposes typed edges from free text. With an EdgeLLM
// configured the model's proposal is taken, minus any edge with an empty
// rel_type, src or dst; otherwise a rule pass finds identifier-shaped tokens that
// resolve to stored entities and links them in mention order: the first
// resolvable mention becomes the source, each later one a "references"
// edge from it. The result is advisory either way.
func (db *Database) ExtractEdges(ctx context.Context, text, contextHint string) (*EdgeExtraction, error) {
	if strings.TrimSpace(text) == "" {
		return nil, remerr.New(remerr.CodeSchemaViolation, "extract_edges requires non-empty text")
	}

	if db.edgeLLM != nil {
		out, err := db.edgeLLM.ExtractEdges(ctx, text, contextHint)
		if err != nil {
			return nil, remerr.Wrap(remerr.CodeProviderUnavailable, err, "edge extraction model")
		}
		kept := out.Edges[:0]
		for _, e := range out.Edges {
			if e.RelType == "" || e.Src == "" || e.Dst == "" {
				continue
			}
			kept = append(kept, e)
		}
		out.Edges = kept
		return out, nil
	}

	var resolved []string
	seen := map[string]bool{}
	for _, tok := range identifierToken.FindAllString(text, -1) {
		e, err := db.store.ResolveKey(db.tenant, tok)
		if err != nil {
			continue
		}
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		resolved = append(resolved, e.ID)
	}

	out := &EdgeExtraction{}
	if len(resolved) < 2 {
		out.Summary = "no linkable entity pairs found"
		return out, nil
	}
	src := resolved[0]
	for _, dst := range resolved[1:] {
		out.Edges = append(out.Edges, entitystore.Edge{Src: src, Dst: dst, RelType: "references"})
	}
	out.Summary = strings.TrimSpace(contextHint + " " + fmt.Sprintf("%d reference edge(s) proposed", len(out.Edges)))
	return out, nil
}
