package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/codeatlas/codeatlas/internal/lang"
)

func TestLoadAllLanguages(t *testing.T) {
	loaded, errs := LoadAll()
	for l, err := range errs {
		t.Errorf("catalog %s failed to load: %v", l, err)
	}
	for _, l := range lang.All() {
		c, ok := loaded[l]
		if !ok {
			continue
		}
		if c.Query == nil {
			t.Errorf("catalog %s: nil query", l)
		}
		if !strings.Contains(c.Source, "definition") {
			t.Errorf("catalog %s: no definition patterns", l)
		}
	}
}

func TestTSXSharesTypescriptSource(t *testing.T) {
	tsSrc, err := Source(lang.TypeScript)
	if err != nil {
		t.Fatal(err)
	}
	tsxSrc, err := Source(lang.TSX)
	if err != nil {
		t.Fatal(err)
	}
	if tsSrc != tsxSrc {
		t.Error("tsx should reuse the typescript catalog source")
	}
}

func TestOverlaysAppendAfterBase(t *testing.T) {
	src, err := Source(lang.Python)
	if err != nil {
		t.Fatal(err)
	}
	base := strings.Index(src, "definition.callable.function")
	overlay := strings.Index(src, "scope.test")
	if base < 0 || overlay < 0 {
		t.Fatal("expected base and overlay patterns in concatenated source")
	}
	if overlay < base {
		t.Error("overlay patterns must come after the base catalog")
	}
}

func TestValidateCapturesRejectsBadTags(t *testing.T) {
	tests := []struct {
		name     string
		captures []string
		wantErr  bool
	}{
		{"valid", []string{"name.definition.callable.function", "_helper"}, false},
		{"valid scoped", []string{"name.definition.callable.method.scope.test"}, false},
		{"unknown kind", []string{"name.definition.callable.lambda"}, true},
		{"unknown node type", []string{"name.definition.widget.thing"}, true},
		{"unprefixed", []string{"definition.callable.function"}, true},
		{"bare helper ok", []string{"_attr"}, false},
	}
	for _, tt := range tests {
		err := validateCaptures(lang.Go, tt.captures)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil {
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("%s: want ValidationError, got %T", tt.name, err)
			}
		}
	}
}

func TestLoadManifestCatalogs(t *testing.T) {
	for _, kind := range []lang.ManifestKind{lang.ManifestJSON, lang.ManifestTOML, lang.ManifestXML} {
		c, err := LoadManifest(kind)
		if err != nil {
			t.Errorf("LoadManifest(%s): %v", kind, err)
			continue
		}
		if !strings.Contains(c.Source, "manifest.component") {
			t.Errorf("manifest catalog %s missing component patterns", kind)
		}
		if !strings.Contains(c.Source, "manifest.dependency") {
			t.Errorf("manifest catalog %s missing dependency patterns", kind)
		}
	}
}

func TestLoadManifestUnsupportedKind(t *testing.T) {
	// go.mod and CMake use purpose-built extractors, not catalogs.
	if _, err := LoadManifest(lang.ManifestGoMod); err == nil {
		t.Error("expected error for gomod manifest catalog")
	}
	if _, err := LoadManifest(lang.ManifestCMake); err == nil {
		t.Error("expected error for cmake manifest catalog")
	}
}
