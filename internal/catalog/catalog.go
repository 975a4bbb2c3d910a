// Package catalog loads the per-language query catalogs: declarative
// tree-sitter patterns whose capture names carry the tag grammar. Each
// language has one base catalog plus zero or more overlay catalogs
// (scope-only annotations) applied in sorted filename order, so the
// "last overlay wins" tie-break is deterministic.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codeatlas/codeatlas/internal/lang"
	"github.com/codeatlas/codeatlas/internal/parser"
	"github.com/codeatlas/codeatlas/internal/tag"
)

//go:embed queries
var queryFS embed.FS

// ValidationError is a malformed catalog: bad tag grammar or a query
// that does not compile. Fatal for its language at load time; other
// languages continue.
type ValidationError struct {
	Language lang.Language
	Capture  string
	Err      error
}

func (e *ValidationError) Error() string {
	if e.Capture != "" {
		return fmt.Sprintf("catalog %s: capture @%s: %v", e.Language, e.Capture, e.Err)
	}
	return fmt.Sprintf("catalog %s: %v", e.Language, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Catalog is a compiled per-language catalog (base + overlays).
type Catalog struct {
	Language lang.Language
	Source   string
	Query    *tree_sitter.Query
}

var (
	mu       sync.Mutex
	catalogs = map[lang.Language]*Catalog{}
)

// Load returns the compiled catalog for a language, loading and
// validating it on first use. TSX shares the typescript catalog source
// but compiles against the TSX grammar.
func Load(l lang.Language) (*Catalog, error) {
	mu.Lock()
	defer mu.Unlock()
	if c, ok := catalogs[l]; ok {
		return c, nil
	}
	c, err := load(l)
	if err != nil {
		return nil, err
	}
	catalogs[l] = c
	return c, nil
}

func load(l lang.Language) (*Catalog, error) {
	source, err := Source(l)
	if err != nil {
		return nil, err
	}
	tsLang, err := parser.GetLanguage(l)
	if err != nil {
		return nil, &ValidationError{Language: l, Err: err}
	}
	q, qerr := tree_sitter.NewQuery(tsLang, source)
	if qerr != nil {
		return nil, &ValidationError{Language: l, Err: qerr}
	}
	if err := validateCaptures(l, q.CaptureNames()); err != nil {
		q.Close()
		return nil, err
	}
	return &Catalog{Language: l, Source: source, Query: q}, nil
}

// Source returns the concatenated catalog text for a language: the base
// catalog followed by overlays in sorted filename order.
func Source(l lang.Language) (string, error) {
	name := l.CatalogName()
	base, err := queryFS.ReadFile("queries/" + name + "-tags.scm")
	if err != nil {
		return "", &ValidationError{Language: l, Err: fmt.Errorf("no base catalog: %w", err)}
	}

	overlays, _ := fs.Glob(queryFS, "queries/overlays/"+name+"-*.scm")
	sort.Strings(overlays)

	var sb strings.Builder
	sb.Write(base)
	for _, path := range overlays {
		data, err := queryFS.ReadFile(path)
		if err != nil {
			return "", &ValidationError{Language: l, Err: err}
		}
		sb.WriteString("\n\n")
		sb.Write(data)
	}
	return sb.String(), nil
}

// validateCaptures checks every capture name against the tag grammar.
// Entity captures must be "name.<tag>" with a strictly valid tag;
// helper captures used only by predicates must start with "_".
// An unrecognized tag segment is a hard error here, never deferred to
// extraction time.
func validateCaptures(l lang.Language, names []string) error {
	for _, name := range names {
		switch {
		case strings.HasPrefix(name, "_"):
			// predicate helper, carries no tag
		case strings.HasPrefix(name, "name."):
			if _, err := tag.ParseStrict(name[len("name."):]); err != nil {
				return &ValidationError{Language: l, Capture: name, Err: err}
			}
		default:
			return &ValidationError{
				Language: l,
				Capture:  name,
				Err:      fmt.Errorf("capture must be name.<tag> or a _helper"),
			}
		}
	}
	return nil
}

// LoadAll loads every language catalog. A language whose catalog fails
// validation is reported in errs and skipped; the rest load normally.
func LoadAll() (loaded map[lang.Language]*Catalog, errs map[lang.Language]error) {
	loaded = make(map[lang.Language]*Catalog)
	errs = make(map[lang.Language]error)
	for _, l := range lang.All() {
		c, err := Load(l)
		if err != nil {
			errs[l] = err
			continue
		}
		loaded[l] = c
	}
	return loaded, errs
}
