package extract

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"golang.org/x/mod/modfile"

	"github.com/codeatlas/codeatlas/internal/catalog"
	"github.com/codeatlas/codeatlas/internal/lang"
	"github.com/codeatlas/codeatlas/internal/parser"
	"github.com/codeatlas/codeatlas/internal/tag"
)

// Dependency is one declared dependency of a component.
type Dependency struct {
	Name  string
	Scope string // "", "dev", or "build"
}

// ManifestInfo is the extracted content of one manifest file.
type ManifestInfo struct {
	Name             string
	Version          string
	Dependencies     []Dependency
	WorkspaceMembers []string
}

var manifestGrammars = map[lang.ManifestKind]lang.Language{
	lang.ManifestJSON: parser.GrammarJSON,
	lang.ManifestTOML: parser.GrammarTOML,
	lang.ManifestXML:  parser.GrammarXML,
}

// Manifest extracts component information from a manifest file.
func Manifest(kind lang.ManifestKind, path string, source []byte) (*ManifestInfo, error) {
	switch kind {
	case lang.ManifestGoMod:
		return goModManifest(path, source)
	case lang.ManifestCMake:
		return cmakeManifest(source), nil
	}

	grammar, ok := manifestGrammars[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported manifest kind %q", kind)
	}
	cat, err := catalog.LoadManifest(kind)
	if err != nil {
		return nil, err
	}
	tree, err := parser.Parse(grammar, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	info := &ManifestInfo{}
	names := cat.Query.CaptureNames()
	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()

	matches := qc.Matches(cat.Query, tree.RootNode(), source)
	for m := matches.Next(); m != nil; m = matches.Next() {
		for _, qcap := range m.Captures {
			raw := names[qcap.Index]
			if !tag.IsManifestTag(raw) {
				continue
			}
			mt, err := tag.ParseManifest(raw)
			if err != nil {
				continue
			}
			text := unquote(parser.NodeText(&qcap.Node, source))
			switch mt.Element {
			case tag.ManifestComponentName:
				if info.Name == "" {
					info.Name = text
				}
			case tag.ManifestComponentVersion:
				if info.Version == "" {
					info.Version = text
				}
			case tag.ManifestDependency:
				info.Dependencies = append(info.Dependencies, Dependency{Name: text, Scope: mt.Scope})
			case tag.ManifestWorkspaceMember:
				info.WorkspaceMembers = append(info.WorkspaceMembers, text)
			}
		}
	}
	return info, nil
}

// unquote strips one layer of surrounding quotes left on TOML string
// and XML attribute captures.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func goModManifest(path string, source []byte) (*ManifestInfo, error) {
	f, err := modfile.Parse(path, source, nil)
	if err != nil {
		return nil, fmt.Errorf("parse go.mod: %w", err)
	}
	info := &ManifestInfo{}
	if f.Module != nil {
		info.Name = f.Module.Mod.Path
	}
	if f.Go != nil {
		info.Version = f.Go.Version
	}
	for _, r := range f.Require {
		if r == nil {
			continue
		}
		info.Dependencies = append(info.Dependencies, Dependency{Name: r.Mod.Path})
	}
	return info, nil
}

// cmakeManifest scans CMakeLists.txt line by line. CMake has no
// tree-sitter grammar with Go bindings; project(), find_package() and
// add_subdirectory() cover the manifest surface this graph needs.
func cmakeManifest(source []byte) *ManifestInfo {
	info := &ManifestInfo{}
	sc := bufio.NewScanner(bytes.NewReader(source))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "project("):
			args := callArgs(line)
			if len(args) > 0 && info.Name == "" {
				info.Name = args[0]
			}
			for i := 0; i+1 < len(args); i++ {
				if strings.EqualFold(args[i], "VERSION") {
					info.Version = args[i+1]
				}
			}
		case strings.HasPrefix(lower, "find_package("):
			if args := callArgs(line); len(args) > 0 {
				info.Dependencies = append(info.Dependencies, Dependency{Name: args[0], Scope: "build"})
			}
		case strings.HasPrefix(lower, "add_subdirectory("):
			if args := callArgs(line); len(args) > 0 {
				info.WorkspaceMembers = append(info.WorkspaceMembers, args[0])
			}
		}
	}
	return info
}

// callArgs returns the whitespace-separated arguments of a single-line
// cmake command invocation.
func callArgs(line string) []string {
	open := strings.IndexByte(line, '(')
	if open < 0 {
		return nil
	}
	inner := line[open+1:]
	if close := strings.IndexByte(inner, ')'); close >= 0 {
		inner = inner[:close]
	}
	return strings.Fields(inner)
}
