package extract

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/lang"
	"github.com/codeatlas/codeatlas/internal/parser"
)

// metadataFor derives semantic flags from a definition's AST node.
// Visibility conventions differ per language; modifier and decorator
// detection reads the node's immediate structure only.
func metadataFor(l lang.Language, node *tree_sitter.Node, name string, source []byte) graph.Metadata {
	var md graph.Metadata

	switch l {
	case lang.Python, lang.Ruby:
		if strings.HasPrefix(name, "_") {
			md.Visibility = "private"
		} else {
			md.Visibility = "public"
		}
	case lang.Go:
		if name != "" && name[0] >= 'A' && name[0] <= 'Z' {
			md.Visibility = "public"
		} else {
			md.Visibility = "private"
		}
	case lang.Java, lang.CSharp, lang.CPP:
		md.Visibility = modifierVisibility(node, source)
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "async":
			md.IsAsync = true
		case "modifiers", "modifier":
			text := parser.NodeText(child, source)
			if strings.Contains(text, "static") {
				md.IsStatic = true
			}
			if strings.Contains(text, "abstract") {
				md.IsAbstract = true
			}
			if strings.Contains(text, "async") {
				md.IsAsync = true
			}
		case "static":
			md.IsStatic = true
		case "abstract":
			md.IsAbstract = true
		}
	}

	md.Decorators = decorators(node, source)
	return md
}

// modifierVisibility scans a declaration's modifiers for an access
// keyword. Java and C# members default to package/internal visibility;
// both are reported as "private" for the public/private split.
func modifierVisibility(node *tree_sitter.Node, source []byte) string {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.Kind() == "modifiers" || child.Kind() == "modifier" {
			text := parser.NodeText(child, source)
			if strings.Contains(text, "public") {
				return "public"
			}
			if strings.Contains(text, "private") || strings.Contains(text, "protected") {
				return "private"
			}
		}
	}
	return "private"
}

// decorators collects decorator/annotation names attached to a
// definition: Python decorators on a wrapping decorated_definition,
// Java/C# annotations inside the modifiers list.
func decorators(node *tree_sitter.Node, source []byte) []string {
	var out []string

	collect := func(n *tree_sitter.Node) {
		switch n.Kind() {
		case "decorator":
			text := strings.TrimPrefix(parser.NodeText(n, source), "@")
			if i := strings.IndexByte(text, '('); i > 0 {
				text = text[:i]
			}
			out = append(out, strings.TrimSpace(text))
		case "marker_annotation", "annotation", "attribute":
			text := strings.TrimPrefix(parser.NodeText(n, source), "@")
			if i := strings.IndexByte(text, '('); i > 0 {
				text = text[:i]
			}
			out = append(out, strings.TrimSpace(text))
		}
	}

	if p := node.Parent(); p != nil && p.Kind() == "decorated_definition" {
		for i := uint(0); i < p.ChildCount(); i++ {
			if c := p.Child(i); c != nil {
				collect(c)
			}
		}
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.Kind() == "modifiers" || child.Kind() == "attribute_list" {
			for j := uint(0); j < child.ChildCount(); j++ {
				if c := child.Child(j); c != nil {
					collect(c)
				}
			}
		}
	}
	return out
}
