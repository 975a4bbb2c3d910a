// Package extract runs query catalogs against parsed syntax trees and
// produces raw captures for the entity builder.
package extract

import (
	"log/slog"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codeatlas/codeatlas/internal/catalog"
	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/lang"
	"github.com/codeatlas/codeatlas/internal/parser"
	"github.com/codeatlas/codeatlas/internal/tag"
)

// Capture is one raw extraction result: a tagged name plus the byte and
// line extent of the definition (or reference site) it belongs to.
type Capture struct {
	Tag  tag.Tag
	Name string

	// Extent of the whole definition (for references, the site itself).
	StartByte uint
	EndByte   uint
	StartLine int
	EndLine   int

	// Site of the name identifier, used to merge overlapping patterns.
	NameStart uint

	Metadata graph.Metadata
}

// Extract runs a language catalog against one file's tree and returns
// merged captures. When several patterns tag the same name site (a
// generic pattern plus a narrower override, or a scope overlay), the
// last one wins on identity and scope annotations merge in; overlay
// matches with no base entity at their site are discarded.
func Extract(cat *catalog.Catalog, tree *tree_sitter.Tree, source []byte) []Capture {
	type slot struct {
		cap     Capture
		hasBase bool
		scope   string
		order   int
	}
	defs := make(map[uint]*slot)
	var defOrder []uint
	var refs []Capture

	names := cat.Query.CaptureNames()
	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()

	seq := 0
	matches := qc.Matches(cat.Query, tree.RootNode(), source)
	for m := matches.Next(); m != nil; m = matches.Next() {
		for _, qcap := range m.Captures {
			raw := names[qcap.Index]
			if !strings.HasPrefix(raw, "name.") {
				continue
			}
			t, err := tag.Parse(raw[len("name."):])
			if err != nil {
				// Catalog validation makes this unreachable; keep the
				// guard for queries loaded outside the embedded set.
				slog.Warn("extract.tag.skip", "tag", raw, "err", err)
				continue
			}

			node := &qcap.Node
			c := buildCapture(t, node, cat.Language, source)

			if t.Category == tag.Reference {
				refs = append(refs, c)
				continue
			}

			seq++
			s, ok := defs[c.NameStart]
			if !ok {
				s = &slot{}
				defs[c.NameStart] = s
				defOrder = append(defOrder, c.NameStart)
			}
			if t.Scope != "" {
				// Overlay: annotates, never creates.
				s.scope = t.Scope
				if !s.hasBase {
					s.order = seq
				}
				continue
			}
			s.cap = c
			s.hasBase = true
			s.order = seq
		}
	}

	out := make([]Capture, 0, len(defOrder)+len(refs))
	for _, off := range defOrder {
		s := defs[off]
		if !s.hasBase {
			slog.Debug("extract.overlay.discard", "offset", off, "scope", s.scope)
			continue
		}
		if s.scope != "" {
			s.cap.Tag.Scope = s.scope
			s.cap.Metadata.Scope = s.scope
		}
		out = append(out, s.cap)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartByte != out[j].StartByte {
			return out[i].StartByte < out[j].StartByte
		}
		return out[i].EndByte > out[j].EndByte
	})
	return append(out, refs...)
}

// buildCapture derives the definition extent from the capture node. The
// catalogs capture the name identifier; its parent node is the
// declaration whose range drives containment nesting.
func buildCapture(t tag.Tag, node *tree_sitter.Node, l lang.Language, source []byte) Capture {
	name := parser.NodeText(node, source)

	extent := node
	if t.Category == tag.Definition {
		if p := node.Parent(); p != nil {
			extent = p
			// Climb one more step for declaration wrappers so the
			// extent covers the full construct (e.g. a decorated
			// definition, or a declarator inside a declaration).
			if pp := p.Parent(); pp != nil && wrapperKinds[pp.Kind()] {
				extent = pp
			}
		}
	}

	c := Capture{
		Tag:       t,
		Name:      name,
		StartByte: extent.StartByte(),
		EndByte:   extent.EndByte(),
		StartLine: int(extent.StartPosition().Row) + 1,
		EndLine:   int(extent.EndPosition().Row) + 1,
		NameStart: node.StartByte(),
	}
	if t.Category == tag.Definition {
		c.Metadata = metadataFor(l, extent, name, source)
	}
	return c
}

// wrapperKinds are declaration wrappers worth climbing past when
// computing a definition's extent.
var wrapperKinds = map[string]bool{
	"decorated_definition":   true,
	"function_declarator":    true,
	"type_declaration":       true,
	"const_declaration":      true,
	"var_declaration":        true,
	"variable_declaration":   true,
	"lexical_declaration":    true,
	"export_statement":       true,
	"field_declaration":      true,
	"declaration":            true,
	"template_declaration":   true,
	"attributed_declaration": true,
}
