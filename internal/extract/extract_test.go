package extract

import (
	"testing"

	"github.com/codeatlas/codeatlas/internal/catalog"
	"github.com/codeatlas/codeatlas/internal/lang"
	"github.com/codeatlas/codeatlas/internal/parser"
	"github.com/codeatlas/codeatlas/internal/tag"
)

func extractSource(t *testing.T, l lang.Language, source string) []Capture {
	t.Helper()
	cat, err := catalog.Load(l)
	if err != nil {
		t.Fatalf("Load(%s): %v", l, err)
	}
	tree, err := parser.Parse(l, []byte(source))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer tree.Close()
	return Extract(cat, tree, []byte(source))
}

func findDef(caps []Capture, name string) *Capture {
	for i := range caps {
		if caps[i].Tag.Category == tag.Definition && caps[i].Name == name {
			return &caps[i]
		}
	}
	return nil
}

func TestExtractGoFunctions(t *testing.T) {
	caps := extractSource(t, lang.Go, `package demo

func Render(width int) string {
	return helper()
}

func helper() string { return "" }
`)

	render := findDef(caps, "Render")
	if render == nil {
		t.Fatal("Render not captured")
	}
	if render.Tag.NodeType != tag.Callable || render.Tag.Kind != tag.KindFunction {
		t.Errorf("Render tag = %+v", render.Tag)
	}
	if render.Metadata.Visibility != "public" {
		t.Errorf("Render visibility = %q", render.Metadata.Visibility)
	}
	if h := findDef(caps, "helper"); h == nil || h.Metadata.Visibility != "private" {
		t.Errorf("helper visibility wrong: %+v", h)
	}
	if p := findDef(caps, "width"); p == nil || p.Tag.Kind != tag.KindParameter {
		t.Errorf("width parameter not captured: %+v", p)
	}

	// helper() call site inside Render.
	var ref *Capture
	for i := range caps {
		if caps[i].Tag.Category == tag.Reference && caps[i].Name == "helper" {
			ref = &caps[i]
		}
	}
	if ref == nil {
		t.Fatal("helper reference not captured")
	}
}

func TestExtractGoStructSubtypeOverridesGeneric(t *testing.T) {
	caps := extractSource(t, lang.Go, `package demo

type Engine struct {
	rpm int
}
`)
	engine := findDef(caps, "Engine")
	if engine == nil {
		t.Fatal("Engine not captured")
	}
	// The generic container.type pattern and the struct-specific one
	// both match; the narrower tag must win.
	if engine.Tag.Subtype != "struct" {
		t.Errorf("Engine subtype = %q, want struct", engine.Tag.Subtype)
	}
	if f := findDef(caps, "rpm"); f == nil || f.Tag.Kind != tag.KindField {
		t.Errorf("rpm field not captured: %+v", f)
	}
}

func TestExtractPythonScenarioA(t *testing.T) {
	caps := extractSource(t, lang.Python, `class TestBar:
    def test_foo(self):
        pass
`)
	cls := findDef(caps, "TestBar")
	if cls == nil {
		t.Fatal("TestBar not captured")
	}
	if cls.Tag.NodeType != tag.Container || cls.Tag.Kind != tag.KindType {
		t.Errorf("TestBar tag = %+v", cls.Tag)
	}
	if cls.Metadata.Scope != "test" {
		t.Errorf("TestBar scope = %q, want test", cls.Metadata.Scope)
	}

	m := findDef(caps, "test_foo")
	if m == nil {
		t.Fatal("test_foo not captured")
	}
	if m.Tag.Kind != tag.KindMethod {
		t.Errorf("test_foo kind = %q, want method (class override beats function)", m.Tag.Kind)
	}
	if m.Metadata.Scope != "test" {
		t.Errorf("test_foo scope = %q, want test", m.Metadata.Scope)
	}
}

func TestExtractPythonConstructorAndDecorators(t *testing.T) {
	caps := extractSource(t, lang.Python, `class Widget:
    def __init__(self, size):
        self.size = size

@cached
def build():
    pass
`)
	init := findDef(caps, "__init__")
	if init == nil {
		t.Fatal("__init__ not captured")
	}
	if init.Tag.Kind != tag.KindConstructor {
		t.Errorf("__init__ kind = %q, want constructor", init.Tag.Kind)
	}
	if init.Metadata.Visibility != "private" {
		t.Errorf("__init__ visibility = %q", init.Metadata.Visibility)
	}

	b := findDef(caps, "build")
	if b == nil {
		t.Fatal("build not captured")
	}
	if len(b.Metadata.Decorators) != 1 || b.Metadata.Decorators[0] != "cached" {
		t.Errorf("build decorators = %v", b.Metadata.Decorators)
	}
}

func TestExtractDefinitionExtentCoversBody(t *testing.T) {
	src := `def outer():
    def inner():
        pass
    return inner
`
	caps := extractSource(t, lang.Python, src)
	outer := findDef(caps, "outer")
	inner := findDef(caps, "inner")
	if outer == nil || inner == nil {
		t.Fatal("outer/inner not captured")
	}
	if !(outer.StartByte <= inner.StartByte && inner.EndByte <= outer.EndByte) {
		t.Errorf("inner extent [%d,%d) not inside outer [%d,%d)",
			inner.StartByte, inner.EndByte, outer.StartByte, outer.EndByte)
	}
}

func TestExtractBrokenSyntaxStillYieldsPrefix(t *testing.T) {
	caps := extractSource(t, lang.Python, `def ok():
    pass

x = "unterminated
`)
	if findDef(caps, "ok") == nil {
		t.Error("recovered portion should still capture ok()")
	}
}

func TestExtractDefinitionsSortedForContainment(t *testing.T) {
	caps := extractSource(t, lang.Python, `class A:
    def m(self):
        pass

def f():
    pass
`)
	var lastStart uint
	for _, c := range caps {
		if c.Tag.Category != tag.Definition {
			continue
		}
		if c.StartByte < lastStart {
			t.Fatalf("definitions not sorted by start byte: %d after %d", c.StartByte, lastStart)
		}
		lastStart = c.StartByte
	}
}
