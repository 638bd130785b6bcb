package pattern

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const overlayYAML = `
name: "site-exceptions"
version: "1.0.0"
exceptions:
  - prefix: "hola"
    pattern: "caps"
`

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()
	if registry == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if registry.Count() != 0 {
		t.Errorf("Count() = %d, want 0", registry.Count())
	}
	if registry.Catalog() != Default() {
		t.Error("Catalog() should start as the built-in catalog")
	}
}

func TestRegistryLoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "site.yaml")
	if err := os.WriteFile(path, []byte(overlayYAML), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	registry := NewRegistry()
	before := registry.Catalog()
	if err := registry.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if registry.Count() != 1 {
		t.Errorf("Count() = %d, want 1", registry.Count())
	}
	if got, _ := registry.Catalog().Detect("hola"); got != "caps" {
		t.Errorf("Detect(hola) = %q, want caps", got)
	}
	if got, _ := before.Detect("hola"); got != "" {
		t.Errorf("previous snapshot was mutated: %q", got)
	}
}

func TestRegistryLoadFileInvalidKeepsCatalog(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bad.yaml")
	content := `
name: "bad"
version: "1.0.0"
exceptions:
  - prefix: "x"
    pattern: "does-not-exist"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	registry := NewRegistry()
	if err := registry.LoadFile(path); err == nil {
		t.Error("LoadFile() should fail for an unknown pattern")
	}
	if registry.Count() != 0 {
		t.Errorf("Count() = %d, want 0", registry.Count())
	}
}

func TestRegistryLoadDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	files := map[string]string{
		"a.yaml": overlayYAML,
		"b.yml": `
name: "later"
version: "1.0.0"
exceptions:
  - prefix: "hola"
    pattern: "roman"
`,
		"notes.txt": "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", name, err)
		}
	}

	registry, err := NewRegistryWithDirectory(tmpDir)
	if err != nil {
		t.Fatalf("NewRegistryWithDirectory() error = %v", err)
	}
	if registry.Count() != 2 {
		t.Errorf("Count() = %d, want 2", registry.Count())
	}
	// Files apply in path order, so b.yml wins.
	if got, _ := registry.Catalog().Detect("hola"); got != "roman" {
		t.Errorf("Detect(hola) = %q, want roman", got)
	}
}

func TestRegistryLoadDirectoryNonExistent(t *testing.T) {
	registry := NewRegistry()
	if err := registry.LoadDirectory("/nonexistent/path"); err != nil {
		t.Errorf("LoadDirectory() error = %v, want nil", err)
	}
}

func TestRegistryUnload(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "site.yaml")
	if err := os.WriteFile(path, []byte(overlayYAML), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	registry, err := NewRegistryWithDirectory(tmpDir)
	if err != nil {
		t.Fatalf("NewRegistryWithDirectory() error = %v", err)
	}

	if err := registry.Unload(path); err != nil {
		t.Fatalf("Unload() error = %v", err)
	}
	if _, ok := registry.Catalog().Detect("hola"); ok {
		t.Error("exception should be gone after Unload()")
	}
	if err := registry.Unload(path); err == nil {
		t.Error("second Unload() should fail")
	}
}

func TestRegistryReload(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "site.yaml")
	if err := os.WriteFile(path, []byte(overlayYAML), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	registry, err := NewRegistryWithDirectory(tmpDir)
	if err != nil {
		t.Fatalf("NewRegistryWithDirectory() error = %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := registry.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if registry.Count() != 0 {
		t.Errorf("Count() = %d, want 0", registry.Count())
	}
}

func TestRegistryReloadNoDirectory(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Reload(); err == nil {
		t.Error("Reload() without directory should return error")
	}
}

func TestRegistryWatch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping watch test in short mode")
	}

	tmpDir := t.TempDir()
	registry, err := NewRegistryWithDirectory(tmpDir)
	if err != nil {
		t.Fatalf("NewRegistryWithDirectory() error = %v", err)
	}

	changed := make(chan string, 4)
	registry.SetOnChange(func(event string, path string) {
		select {
		case changed <- event:
		default:
		}
	})

	if err := registry.Watch(); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer registry.StopWatch()

	// Give the watcher time to initialize
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(tmpDir, "site.yaml"), []byte(overlayYAML), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case <-changed:
		time.Sleep(100 * time.Millisecond)
	case <-time.After(3 * time.Second):
		// File watching can be flaky in CI environments, so we just log
		t.Log("Watch() did not detect file change within timeout (may be CI environment)")
		return
	}

	if got, _ := registry.Catalog().Detect("hola"); got != "caps" {
		t.Errorf("Detect(hola) = %q, want caps", got)
	}
}

func TestRegistryWatchNoDirectory(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Watch(); err == nil {
		t.Error("Watch() without directory should return error")
	}
}
