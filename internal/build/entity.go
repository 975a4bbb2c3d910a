package build

import (
	"bytes"
	"log/slog"
	"sort"

	"github.com/codeatlas/codeatlas/internal/extract"
	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/tag"
)

// Ref is a use site waiting for resolution: a name plus the
// definition node it was seen inside.
type Ref struct {
	Name   string
	FromID string
}

// FileResult is the output of one file's parse+extract+build, merged
// into the graph after the parallel phase.
type FileResult struct {
	RelPath     string
	ContentHash string
	Nodes       []*graph.Node
	Edges       []graph.Edge
	Refs        []Ref
	Err         error
}

// entityOptions tune the per-file entity build.
type entityOptions struct {
	maxDepth int
	skipData bool
}

// buildFileEntities turns one file's captures into nodes and edges.
// Definitions arrive sorted (start byte asc, end byte desc), so a
// single stack pass reconstructs the containment hierarchy; references
// are attributed to the nearest enclosing definition by replaying the
// same stack.
func buildFileEntities(relPath, contentHash string, source []byte, captures []extract.Capture, opts entityOptions) *FileResult {
	res := &FileResult{RelPath: relPath, ContentHash: contentHash}

	fileNode := graph.NewFileNode(relPath, contentHash, uint(len(source)),
		bytes.Count(source, []byte("\n"))+1)
	res.Nodes = append(res.Nodes, fileNode)

	var defs, refs []extract.Capture
	for _, c := range captures {
		if c.Tag.Category == tag.Reference {
			refs = append(refs, c)
		} else {
			defs = append(defs, c)
		}
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].NameStart < refs[j].NameStart })

	byID := make(map[string]*graph.Node)
	var ctx graph.ContainmentContext

	di, ri := 0, 0
	for di < len(defs) || ri < len(refs) {
		// References interleave with definitions in byte order so the
		// stack reflects the enclosing scope at each site.
		if di >= len(defs) || (ri < len(refs) && refs[ri].NameStart < defs[di].StartByte) {
			r := refs[ri]
			ri++
			ctx.Update(r.NameStart)
			if r.Name == "" {
				continue
			}
			from := ctx.Parent()
			if from == "" {
				from = fileNode.ID
			}
			res.Refs = append(res.Refs, Ref{Name: r.Name, FromID: from})
			continue
		}

		c := defs[di]
		di++
		ctx.Update(c.StartByte)

		if opts.skipData && c.Tag.NodeType == tag.Data {
			continue
		}
		if ctx.Depth() >= opts.maxDepth {
			slog.Warn("build.depth.skip",
				"file", relPath, "name", c.Name, "depth", ctx.Depth())
			continue
		}

		id := graph.NodeID(relPath, ctx.Path(), c.Name, c.StartLine)
		node := &graph.Node{
			ID:        id,
			NodeType:  c.Tag.NodeType,
			Kind:      c.Tag.Kind,
			Subtype:   c.Tag.Subtype,
			Name:      c.Name,
			FilePath:  relPath,
			StartByte: c.StartByte,
			EndByte:   c.EndByte,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Metadata:  c.Metadata,
		}
		res.Nodes = append(res.Nodes, node)
		byID[id] = node

		parentID := ctx.Parent()
		if parentID == "" {
			parentID = fileNode.ID
		}
		res.Edges = append(res.Edges, graph.Edge{
			Source: parentID, Target: id, Type: graph.EdgeContains,
		})

		// A callable or type defines the data entities inside it
		// (function to parameter, class to field); callables and nested
		// containers themselves stay plain CONTAINS children.
		if c.Tag.NodeType == tag.Data {
			if p, ok := byID[parentID]; ok &&
				(p.NodeType == tag.Callable || (p.NodeType == tag.Container && p.Kind != tag.KindFile)) {
				res.Edges = append(res.Edges, graph.Edge{
					Source: parentID, Target: id, Type: graph.EdgeDefines,
				})
			}
		}

		if c.Tag.NodeType == tag.Container || c.Tag.NodeType == tag.Callable {
			ctx.Push(id, c.Name, c.EndByte)
		}
	}

	return res
}
