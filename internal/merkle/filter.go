package merkle

import (
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// defaultExcludeDirs are directory names never worth hashing.
var defaultExcludeDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true, ".idea": true, ".vscode": true,
	"__pycache__": true, ".mypy_cache": true, ".pytest_cache": true,
	".ruff_cache": true, ".tox": true, ".venv": true, "venv": true,
	"node_modules": true, "bower_components": true, ".yarn": true,
	"target": true, "build": true, "dist": true, "out": true, "bin": true,
	"obj": true, "vendor": true, "coverage": true, "htmlcov": true,
	".cache": true, "tmp": true, ".tmp": true,
}

// defaultExcludeExtensions are binary or derived file extensions.
var defaultExcludeExtensions = map[string]bool{
	".pyc": true, ".pyo": true, ".o": true, ".a": true, ".so": true,
	".dll": true, ".dylib": true, ".exe": true, ".class": true,
	".jar": true, ".war": true, ".zip": true, ".tar": true, ".gz": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".pdf": true, ".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".min.js": true, ".lock": true, ".bin": true, ".dat": true,
}

// ExclusionFilter decides which directories and files participate in
// hashing and extraction. Custom patterns use gitignore syntax.
type ExclusionFilter struct {
	patterns *ignore.GitIgnore
}

// NewExclusionFilter compiles gitignore-style patterns on top of the
// built-in exclusions. A nil or empty pattern list keeps defaults only.
func NewExclusionFilter(patterns []string) *ExclusionFilter {
	f := &ExclusionFilter{}
	if len(patterns) > 0 {
		f.patterns = ignore.CompileIgnoreLines(patterns...)
	}
	return f
}

// SkipDir reports whether a directory should be pruned from the walk.
func (f *ExclusionFilter) SkipDir(name, relPath string) bool {
	if defaultExcludeDirs[name] {
		return true
	}
	if strings.HasPrefix(name, ".") && name != "." {
		return true
	}
	return f.patterns != nil && f.patterns.MatchesPath(relPath)
}

// SkipFile reports whether a file should be excluded.
func (f *ExclusionFilter) SkipFile(relPath string) bool {
	name := filepath.Base(relPath)
	if strings.HasSuffix(name, "~") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	if defaultExcludeExtensions[ext] {
		return true
	}
	if strings.HasSuffix(name, ".min.js") {
		return true
	}
	return f.patterns != nil && f.patterns.MatchesPath(relPath)
}
