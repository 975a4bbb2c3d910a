package build

import (
	"bytes"
	"log/slog"
	"os"
	"path"

	"github.com/codeatlas/codeatlas/internal/extract"
	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/merkle"
)

// builtComponent ties a component node to the manifest that declared
// it, for workspace membership matching.
type builtComponent struct {
	node        *graph.Node
	manifestDir string
	members     []string // workspace member patterns, relative to manifestDir
}

// processManifests parses each discovered manifest, adding a file node,
// a component node, and dependency edges to the graph. A manifest that
// fails to parse is logged and skipped; it never fails the build.
func processManifests(g *graph.Graph, repoID string, manifests []ManifestFile, leaves map[string]string) []*builtComponent {
	var comps []*builtComponent

	for _, mf := range manifests {
		source, err := os.ReadFile(mf.Path)
		if err != nil {
			slog.Warn("build.manifest.read", "path", mf.RelPath, "err", err)
			continue
		}
		info, err := extract.Manifest(mf.Kind, mf.Path, source)
		if err != nil {
			slog.Warn("build.manifest.parse", "path", mf.RelPath, "err", err)
			continue
		}

		hash := merkle.HashBytes(source)
		leaves[mf.RelPath] = hash
		fileNode := graph.NewFileNode(mf.RelPath, hash, uint(len(source)),
			bytes.Count(source, []byte("\n"))+1)
		g.AddNode(fileNode)
		g.AddEdge(graph.Edge{Source: repoID, Target: fileNode.ID, Type: graph.EdgeContains})

		if info.Name == "" {
			continue
		}

		comp := graph.NewComponentNode(info.Name, info.Version, mf.RelPath)
		g.AddNode(comp)
		g.AddEdge(graph.Edge{Source: fileNode.ID, Target: comp.ID, Type: graph.EdgeContains})

		for _, dep := range info.Dependencies {
			depID := "component:" + dep.Name
			if g.Node(depID) == nil {
				ext := graph.NewComponentNode(dep.Name, "", "")
				ext.Subtype = "external"
				g.AddNode(ext)
			}
			g.AddEdge(graph.Edge{
				Source: comp.ID, Target: depID,
				Type: graph.EdgeDependsOn, Scope: dep.Scope,
			})
		}

		comps = append(comps, &builtComponent{
			node:        comp,
			manifestDir: path.Dir(mf.RelPath),
			members:     info.WorkspaceMembers,
		})
	}

	linkWorkspaceMembers(g, comps)
	return comps
}

// linkWorkspaceMembers adds CONTAINS edges from a workspace root
// component to the member components whose manifest directory matches
// one of its member patterns.
func linkWorkspaceMembers(g *graph.Graph, comps []*builtComponent) {
	for _, root := range comps {
		if len(root.members) == 0 {
			continue
		}
		for _, member := range comps {
			if member == root {
				continue
			}
			rel := relDir(root.manifestDir, member.manifestDir)
			if rel == "" {
				continue
			}
			for _, pattern := range root.members {
				if matched, _ := path.Match(pattern, rel); matched {
					g.AddEdge(graph.Edge{
						Source: root.node.ID, Target: member.node.ID,
						Type: graph.EdgeContains,
					})
					break
				}
			}
		}
	}
}

// relDir returns child relative to parent, or "" when child is not
// beneath parent. Both are slash-separated, "." for the root.
func relDir(parent, child string) string {
	if parent == "." {
		return child
	}
	if child == parent {
		return "."
	}
	if len(child) > len(parent) && child[:len(parent)] == parent && child[len(parent)] == '/' {
		return child[len(parent)+1:]
	}
	return ""
}
