package extract

import (
	"testing"

	"github.com/codeatlas/codeatlas/internal/lang"
)

func TestManifestPackageJSON(t *testing.T) {
	src := []byte(`{
  "name": "my-app",
  "version": "2.1.0",
  "dependencies": {
    "react": "^18.0.0",
    "express": "^4.18.0"
  },
  "devDependencies": {
    "jest": "^29.0.0"
  },
  "workspaces": ["packages/core", "packages/ui"]
}`)
	info, err := Manifest(lang.ManifestJSON, "package.json", src)
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	if info.Name != "my-app" || info.Version != "2.1.0" {
		t.Errorf("component = %q@%q", info.Name, info.Version)
	}

	deps := map[string]string{}
	for _, d := range info.Dependencies {
		deps[d.Name] = d.Scope
	}
	if deps["react"] != "" || deps["express"] != "" {
		t.Errorf("runtime deps = %v", deps)
	}
	if deps["jest"] != "dev" {
		t.Errorf("jest scope = %q, want dev", deps["jest"])
	}
	if len(info.WorkspaceMembers) != 2 || info.WorkspaceMembers[0] != "packages/core" {
		t.Errorf("workspace members = %v", info.WorkspaceMembers)
	}
}

func TestManifestCargoToml(t *testing.T) {
	src := []byte(`[package]
name = "prism"
version = "0.4.2"

[dependencies]
serde = "1.0"
tokio = { version = "1", features = ["full"] }

[dev-dependencies]
criterion = "0.5"
`)
	info, err := Manifest(lang.ManifestTOML, "Cargo.toml", src)
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	if info.Name != "prism" || info.Version != "0.4.2" {
		t.Errorf("component = %q@%q", info.Name, info.Version)
	}
	deps := map[string]string{}
	for _, d := range info.Dependencies {
		deps[d.Name] = d.Scope
	}
	if _, ok := deps["serde"]; !ok {
		t.Error("serde missing")
	}
	if deps["criterion"] != "dev" {
		t.Errorf("criterion scope = %q", deps["criterion"])
	}
}

func TestManifestGoMod(t *testing.T) {
	src := []byte(`module example.com/widgets

go 1.22

require (
	github.com/spf13/cobra v1.8.1
	golang.org/x/sync v0.17.0
)
`)
	info, err := Manifest(lang.ManifestGoMod, "go.mod", src)
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	if info.Name != "example.com/widgets" {
		t.Errorf("name = %q", info.Name)
	}
	if len(info.Dependencies) != 2 {
		t.Fatalf("deps = %v", info.Dependencies)
	}
	if info.Dependencies[0].Name != "github.com/spf13/cobra" {
		t.Errorf("dep[0] = %+v", info.Dependencies[0])
	}
}

func TestManifestCMake(t *testing.T) {
	src := []byte(`cmake_minimum_required(VERSION 3.20)
project(Render VERSION 1.2.0)

find_package(Boost REQUIRED)
add_subdirectory(core)
add_subdirectory(tools)
`)
	info, err := Manifest(lang.ManifestCMake, "CMakeLists.txt", src)
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	if info.Name != "Render" || info.Version != "1.2.0" {
		t.Errorf("component = %q@%q", info.Name, info.Version)
	}
	if len(info.Dependencies) != 1 || info.Dependencies[0].Name != "Boost" || info.Dependencies[0].Scope != "build" {
		t.Errorf("deps = %v", info.Dependencies)
	}
	if len(info.WorkspaceMembers) != 2 {
		t.Errorf("members = %v", info.WorkspaceMembers)
	}
}
