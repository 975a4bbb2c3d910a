// Package tag parses the dot-delimited tag strings emitted by query
// catalogs into the node taxonomy. Parsing is purely syntactic; which
// tags exist for a given language is decided entirely by that
// language's catalog.
package tag

import (
	"fmt"
	"strings"
)

// Category is the first tag segment.
type Category string

const (
	Definition Category = "definition"
	Reference  Category = "reference"
)

// NodeType partitions all entities into three roles.
type NodeType string

const (
	Container NodeType = "container"
	Callable  NodeType = "callable"
	Data      NodeType = "data"
	// File is the pseudo-type produced by the "definition.file" tag.
	File NodeType = "file"
)

// Container kinds.
const (
	KindWorkspace  = "workspace"
	KindRepository = "repository"
	KindFile       = "file"
	KindNamespace  = "namespace"
	KindModule     = "module"
	KindPackage    = "package"
	KindType       = "type"
	KindComponent  = "component"
)

// Callable kinds.
const (
	KindFunction    = "function"
	KindMethod      = "method"
	KindConstructor = "constructor"
	KindMacro       = "macro"
)

// Data kinds.
const (
	KindConstant  = "constant"
	KindValue     = "value"
	KindField     = "field"
	KindProperty  = "property"
	KindParameter = "parameter"
	KindLocal     = "local"
)

var containerKinds = map[string]bool{
	KindWorkspace: true, KindRepository: true, KindFile: true,
	KindNamespace: true, KindModule: true, KindPackage: true,
	KindType: true, KindComponent: true,
}

var callableKinds = map[string]bool{
	KindFunction: true, KindMethod: true, KindConstructor: true, KindMacro: true,
}

var dataKinds = map[string]bool{
	KindConstant: true, KindValue: true, KindField: true,
	KindProperty: true, KindParameter: true, KindLocal: true,
}

// ValidKind reports whether kind is a member of the closed kind set for
// the given node type.
func ValidKind(nt NodeType, kind string) bool {
	switch nt {
	case Container:
		return containerKinds[kind]
	case Callable:
		return callableKinds[kind]
	case Data:
		return dataKinds[kind]
	case File:
		return kind == ""
	}
	return false
}

// Tag is a parsed tag string.
type Tag struct {
	Category Category
	NodeType NodeType
	Kind     string // empty for File, or when the kind was unrecognized
	Subtype  string
	Scope    string // from a trailing ".scope.<value>" suffix
}

// ParseError reports why a tag string could not be parsed.
type ParseError struct {
	Tag    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("tag %q: %s", e.Tag, e.Reason)
}

// Parse errors, distinguishable via errors.As + Reason.
const (
	ReasonTooShort        = "too few segments"
	ReasonUnknownCategory = "unknown category"
	ReasonUnknownNodeType = "unknown node type"
	ReasonUnknownKind     = "unknown kind"
)

// Parse parses a tag string like "definition.container.type.struct" or
// "reference.callable.function". The leading "@" of a raw capture name
// is stripped. An unknown kind for a known node type is not an error
// here (Kind comes back empty) so catalogs can introduce kinds ahead of
// readers; strict validation is the catalog loader's job via ParseStrict.
func Parse(raw string) (Tag, error) {
	s := strings.TrimPrefix(raw, "@")
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return Tag{}, &ParseError{Tag: raw, Reason: ReasonTooShort}
	}

	var t Tag
	switch parts[0] {
	case string(Definition):
		t.Category = Definition
	case string(Reference):
		t.Category = Reference
	default:
		return Tag{}, &ParseError{Tag: raw, Reason: ReasonUnknownCategory}
	}

	// "definition.file" short-circuits to the FILE pseudo-type.
	if parts[1] == "file" {
		t.NodeType = File
		return t, nil
	}

	switch parts[1] {
	case string(Container):
		t.NodeType = Container
	case string(Callable):
		t.NodeType = Callable
	case string(Data):
		t.NodeType = Data
	default:
		return Tag{}, &ParseError{Tag: raw, Reason: ReasonUnknownNodeType}
	}

	rest := parts[2:]
	if len(rest) > 0 && rest[0] != "scope" {
		if ValidKind(t.NodeType, rest[0]) {
			t.Kind = rest[0]
		}
		// Unknown kind: leave Kind empty, still consume the segment.
		rest = rest[1:]
	}

	t.Subtype, t.Scope = parseSubtypeAndScope(rest)
	return t, nil
}

// ParseStrict is Parse with closed-set kind checking, used when
// validating catalogs at load time.
func ParseStrict(raw string) (Tag, error) {
	t, err := Parse(raw)
	if err != nil {
		return Tag{}, err
	}
	if t.NodeType != File && t.Kind == "" {
		return Tag{}, &ParseError{Tag: raw, Reason: ReasonUnknownKind}
	}
	return t, nil
}

// parseSubtypeAndScope splits trailing segments into an optional subtype
// followed by an optional "scope.<value>" pair.
func parseSubtypeAndScope(parts []string) (subtype, scope string) {
	for i := 0; i < len(parts); i++ {
		if parts[i] == "scope" && i+1 < len(parts) {
			return strings.Join(parts[:i], "."), parts[i+1]
		}
	}
	return strings.Join(parts, "."), ""
}

// String reassembles the canonical tag form.
func (t Tag) String() string {
	var sb strings.Builder
	sb.WriteString(string(t.Category))
	sb.WriteByte('.')
	if t.NodeType == File {
		sb.WriteString("file")
		return sb.String()
	}
	sb.WriteString(string(t.NodeType))
	if t.Kind != "" {
		sb.WriteByte('.')
		sb.WriteString(t.Kind)
	}
	if t.Subtype != "" {
		sb.WriteByte('.')
		sb.WriteString(t.Subtype)
	}
	if t.Scope != "" {
		sb.WriteString(".scope.")
		sb.WriteString(t.Scope)
	}
	return sb.String()
}
