package lang

import "path/filepath"

// Language identifies a supported source language.
type Language string

const (
	C          Language = "c"
	CPP        Language = "cpp"
	CSharp     Language = "c-sharp"
	Go         Language = "go"
	Java       Language = "java"
	JavaScript Language = "javascript"
	Python     Language = "python"
	Ruby       Language = "ruby"
	Rust       Language = "rust"
	TypeScript Language = "typescript"
	TSX        Language = "tsx"
)

// All returns every language with a query catalog. TSX shares the
// typescript catalog so it is not listed separately.
func All() []Language {
	return []Language{C, CPP, CSharp, Go, Java, JavaScript, Python, Ruby, Rust, TypeScript}
}

// CatalogName returns the catalog file stem for a language. TSX reuses
// the typescript catalog; everything else maps to itself.
func (l Language) CatalogName() string {
	if l == TSX {
		return string(TypeScript)
	}
	return string(l)
}

// Valid reports whether l names a supported language, including TSX.
func Valid(l Language) bool {
	if l == TSX {
		return true
	}
	for _, known := range All() {
		if l == known {
			return true
		}
	}
	return false
}

// extensions maps file extensions to languages.
var extensions = map[string]Language{
	".c":   C,
	".h":   C,
	".cc":  CPP,
	".cpp": CPP,
	".cxx": CPP,
	".hpp": CPP,
	".hxx": CPP,
	".cs":  CSharp,
	".go":  Go,
	".java": Java,
	".js":  JavaScript,
	".jsx": JavaScript,
	".mjs": JavaScript,
	".cjs": JavaScript,
	".py":  Python,
	".pyi": Python,
	".rb":  Ruby,
	".rs":  Rust,
	".ts":  TypeScript,
	".mts": TypeScript,
	".cts": TypeScript,
	".tsx": TSX,
}

// ForExtension returns the language for a file extension (e.g. ".go").
func ForExtension(ext string) (Language, bool) {
	l, ok := extensions[ext]
	return l, ok
}

// ForPath returns the language for a file path.
func ForPath(path string) (Language, bool) {
	return ForExtension(filepath.Ext(path))
}
