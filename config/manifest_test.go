package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "demo"

[source]
entry = "src/main.ni"

[build]
target = "debug"
output = "build/demo.nir"
`
	if err := os.WriteFile(filepath.Join(dir, "nitro.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "demo" {
		t.Errorf("project name = %q, want demo", m.Project.Name)
	}
	if m.Source.Entry != "src/main.ni" {
		t.Errorf("source entry = %q, want src/main.ni", m.Source.Entry)
	}
	if m.Build.Target != "debug" {
		t.Errorf("build target = %q, want debug", m.Build.Target)
	}
	if m.Build.Output != "build/demo.nir" {
		t.Errorf("build output = %q, want build/demo.nir", m.Build.Output)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "nitro.toml"), []byte(`[project]
name = "demo"
`), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Source.Entry != "main.ni" {
		t.Errorf("default entry = %q, want main.ni", m.Source.Entry)
	}
	if m.Build.Target != "debug" {
		t.Errorf("default target = %q, want debug", m.Build.Target)
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "nitro.toml"), []byte(`[project]
name = "demo"
`), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil manifest")
	}
	if m.Project.Name != "demo" {
		t.Errorf("project name = %q, want demo", m.Project.Name)
	}
}

func TestFindAndLoadReturnsNilWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Errorf("manifest = %v, want nil", m)
	}
}
