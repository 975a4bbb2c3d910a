package build

import (
	"log/slog"

	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/tag"
)

// ResolveReferences runs the second phase: every collected Ref is
// matched against the definition index and becomes a USES edge.
//
// Resolution order is same-file first, then a global first-writer-wins
// index. The index is deterministic because results arrive in sorted
// path order. Names with no definition anywhere get one placeholder
// node each and keep a dangling USES edge.
func ResolveReferences(g *graph.Graph, results []*FileResult) (resolved, unresolved int) {
	global := make(map[string]string)
	local := make(map[string]map[string]string) // relPath -> name -> node ID
	for _, fr := range results {
		perFile := make(map[string]string)
		local[fr.RelPath] = perFile
		for _, n := range fr.Nodes {
			if n.Kind == tag.KindFile {
				continue
			}
			if _, ok := perFile[n.Name]; !ok {
				perFile[n.Name] = n.ID
			}
			if _, ok := global[n.Name]; !ok {
				global[n.Name] = n.ID
			}
		}
	}

	placeholders := 0
	for _, fr := range results {
		for _, ref := range fr.Refs {
			target, ok := local[fr.RelPath][ref.Name]
			if !ok {
				target, ok = global[ref.Name]
			}
			if ok {
				if target == ref.FromID {
					continue // a definition mentioning its own name
				}
				g.AddEdge(graph.Edge{Source: ref.FromID, Target: target, Type: graph.EdgeUses})
				resolved++
				continue
			}

			pid := graph.PlaceholderID(ref.Name)
			if g.Node(pid) == nil {
				g.AddNode(graph.NewPlaceholderNode(ref.Name))
				placeholders++
			}
			g.AddEdge(graph.Edge{Source: ref.FromID, Target: pid, Type: graph.EdgeUses})
			unresolved++
		}
	}

	if unresolved > 0 {
		slog.Debug("build.resolve.dangling", "references", unresolved, "placeholders", placeholders)
	}
	return resolved, unresolved
}
