package catalog

import (
	"fmt"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codeatlas/codeatlas/internal/lang"
	"github.com/codeatlas/codeatlas/internal/parser"
	"github.com/codeatlas/codeatlas/internal/tag"
)

// manifest catalogs are keyed by grammar, not language: package.json
// and vcpkg.json share the json catalog.
var manifestGrammar = map[lang.ManifestKind]lang.Language{
	lang.ManifestJSON: parser.GrammarJSON,
	lang.ManifestTOML: parser.GrammarTOML,
	lang.ManifestXML:  parser.GrammarXML,
}

var (
	manifestMu       sync.Mutex
	manifestCatalogs = map[lang.ManifestKind]*Catalog{}
)

// LoadManifest returns the compiled manifest catalog for a manifest
// kind. Go modules and CMake lists have purpose-built extractors and no
// tree-sitter catalog.
func LoadManifest(kind lang.ManifestKind) (*Catalog, error) {
	manifestMu.Lock()
	defer manifestMu.Unlock()
	if c, ok := manifestCatalogs[kind]; ok {
		return c, nil
	}

	grammar, ok := manifestGrammar[kind]
	if !ok {
		return nil, fmt.Errorf("no manifest catalog for kind %q", kind)
	}
	data, err := queryFS.ReadFile(fmt.Sprintf("queries/manifests/%s-manifest-tags.scm", kind))
	if err != nil {
		return nil, &ValidationError{Language: grammar, Err: err}
	}
	tsLang, err := parser.GetLanguage(grammar)
	if err != nil {
		return nil, &ValidationError{Language: grammar, Err: err}
	}
	q, qerr := tree_sitter.NewQuery(tsLang, string(data))
	if qerr != nil {
		return nil, &ValidationError{Language: grammar, Err: qerr}
	}
	if err := validateManifestCaptures(grammar, q.CaptureNames()); err != nil {
		q.Close()
		return nil, err
	}
	c := &Catalog{Language: grammar, Source: string(data), Query: q}
	manifestCatalogs[kind] = c
	return c, nil
}

func validateManifestCaptures(grammar lang.Language, names []string) error {
	for _, name := range names {
		if len(name) > 0 && name[0] == '_' {
			continue
		}
		if !tag.IsManifestTag(name) {
			return &ValidationError{
				Language: grammar,
				Capture:  name,
				Err:      fmt.Errorf("capture must be manifest.<element> or a _helper"),
			}
		}
		if _, err := tag.ParseManifest(name); err != nil {
			return &ValidationError{Language: grammar, Capture: name, Err: err}
		}
	}
	return nil
}
