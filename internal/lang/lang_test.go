package lang

import "testing"

func TestForExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want Language
		ok   bool
	}{
		{".go", Go, true},
		{".py", Python, true},
		{".pyi", Python, true},
		{".ts", TypeScript, true},
		{".tsx", TSX, true},
		{".rs", Rust, true},
		{".cs", CSharp, true},
		{".hpp", CPP, true},
		{".rb", Ruby, true},
		{".txt", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ForExtension(tt.ext)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ForExtension(%q) = %q, %v; want %q, %v", tt.ext, got, ok, tt.want, tt.ok)
		}
	}
}

func TestForPath(t *testing.T) {
	if l, ok := ForPath("src/core/engine.cpp"); !ok || l != CPP {
		t.Errorf("ForPath(engine.cpp) = %q, %v", l, ok)
	}
	if _, ok := ForPath("README.md"); ok {
		t.Error("ForPath(README.md) should not match")
	}
}

func TestManifestForPath(t *testing.T) {
	tests := []struct {
		path string
		want ManifestKind
		ok   bool
	}{
		{"package.json", ManifestJSON, true},
		{"services/api/package.json", ManifestJSON, true},
		{"vcpkg.json", ManifestJSON, true},
		{"Cargo.toml", ManifestTOML, true},
		{"pyproject.toml", ManifestTOML, true},
		{"go.mod", ManifestGoMod, true},
		{"src/App.csproj", ManifestXML, true},
		{"CMakeLists.txt", ManifestCMake, true},
		{"config.toml", "", false},
		{"notes.json", "", false},
	}
	for _, tt := range tests {
		got, ok := ManifestForPath(tt.path)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ManifestForPath(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCatalogName(t *testing.T) {
	if TSX.CatalogName() != "typescript" {
		t.Errorf("TSX catalog = %q", TSX.CatalogName())
	}
	if Go.CatalogName() != "go" {
		t.Errorf("Go catalog = %q", Go.CatalogName())
	}
}
