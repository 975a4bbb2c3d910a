package lang

import (
	"path/filepath"
	"strings"
)

// ManifestKind identifies the format of a build/package manifest file.
type ManifestKind string

const (
	ManifestJSON  ManifestKind = "json"   // package.json, vcpkg.json
	ManifestTOML  ManifestKind = "toml"   // Cargo.toml, pyproject.toml
	ManifestGoMod ManifestKind = "gomod"  // go.mod
	ManifestXML   ManifestKind = "xml"    // *.csproj
	ManifestCMake ManifestKind = "cmake"  // CMakeLists.txt
)

// manifestNames maps exact manifest filenames to their kind.
var manifestNames = map[string]ManifestKind{
	"package.json":   ManifestJSON,
	"vcpkg.json":     ManifestJSON,
	"Cargo.toml":     ManifestTOML,
	"pyproject.toml": ManifestTOML,
	"go.mod":         ManifestGoMod,
	"CMakeLists.txt": ManifestCMake,
}

// ManifestForPath reports whether path is a recognized manifest file.
func ManifestForPath(path string) (ManifestKind, bool) {
	name := filepath.Base(path)
	if k, ok := manifestNames[name]; ok {
		return k, true
	}
	if strings.HasSuffix(name, ".csproj") {
		return ManifestXML, true
	}
	return "", false
}
