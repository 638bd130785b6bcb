package pattern

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/fsnotify.v1"
)

// Registry holds the active catalog: the built-in definition overlaid with
// the YAML files of a directory. Readers get an immutable snapshot, so a
// reload never disturbs a structuring call in progress.
type Registry struct {
	mu       sync.RWMutex
	base     *CatalogFile
	files    map[string]*CatalogFile
	catalog  *Catalog
	dir      string
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	onChange func(event string, path string)
	logger   *slog.Logger
}

// NewRegistry creates a registry serving the built-in catalog.
func NewRegistry() *Registry {
	return &Registry{
		base:    DefaultFile(),
		files:   make(map[string]*CatalogFile),
		catalog: Default(),
		logger:  slog.Default(),
	}
}

// NewRegistryWithDirectory creates a registry and loads the overlays found
// in dir.
func NewRegistryWithDirectory(dir string) (*Registry, error) {
	r := NewRegistry()
	if err := r.LoadDirectory(dir); err != nil {
		return nil, err
	}
	return r, nil
}

// SetLogger sets the logger used to report reload failures while watching.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if logger != nil {
		r.logger = logger
	}
}

// Catalog returns the current catalog snapshot.
func (r *Registry) Catalog() *Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.catalog
}

// Files returns the paths of the loaded overlays, sorted.
func (r *Registry) Files() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, len(r.files))
	for p := range r.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Count returns the number of loaded overlays.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files)
}

// LoadDirectory loads all YAML overlay files from a directory.
func (r *Registry) LoadDirectory(dir string) error {
	r.mu.Lock()
	r.dir = dir
	r.mu.Unlock()

	// Check if directory exists
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			// Directory doesn't exist, nothing to load
			return nil
		}
		return fmt.Errorf("checking directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var loadErrors []string
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := r.LoadFile(path); err != nil {
			loadErrors = append(loadErrors, fmt.Sprintf("%s: %v", entry.Name(), err))
		}
	}

	if len(loadErrors) > 0 {
		return fmt.Errorf("errors loading catalogs: %s", strings.Join(loadErrors, "; "))
	}
	return nil
}

// LoadFile loads or replaces a single overlay file. The catalog is rebuilt
// and swapped in only if the result is valid.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	f, err := ParseCatalogFile(data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	files := make(map[string]*CatalogFile, len(r.files)+1)
	for k, v := range r.files {
		files[k] = v
	}
	files[path] = f
	return r.rebuildLocked(files)
}

// Unload drops an overlay file.
func (r *Registry) Unload(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.files[path]; !ok {
		return fmt.Errorf("catalog file %q not loaded", path)
	}
	files := make(map[string]*CatalogFile, len(r.files))
	for k, v := range r.files {
		if k != path {
			files[k] = v
		}
	}
	return r.rebuildLocked(files)
}

// Reload reloads all overlays from the configured directory.
func (r *Registry) Reload() error {
	r.mu.Lock()
	dir := r.dir
	if dir == "" {
		r.mu.Unlock()
		return fmt.Errorf("no directory configured for reload")
	}
	r.files = make(map[string]*CatalogFile)
	r.catalog = Default()
	r.mu.Unlock()

	return r.LoadDirectory(dir)
}

// rebuildLocked applies overlays in path order. r.mu must be held.
func (r *Registry) rebuildLocked(files map[string]*CatalogFile) error {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	overlays := make([]*CatalogFile, len(paths))
	for i, p := range paths {
		overlays[i] = files[p]
	}
	c, err := Build(r.base, overlays...)
	if err != nil {
		return fmt.Errorf("building catalog: %w", err)
	}
	r.files = files
	r.catalog = c
	return nil
}

// SetOnChange sets a callback function that is called after the catalog
// changes because of a watched file.
func (r *Registry) SetOnChange(fn func(event string, path string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Watch starts watching the overlay directory for changes.
func (r *Registry) Watch() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dir == "" {
		return fmt.Errorf("no directory configured for watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching directory %s: %w", r.dir, err)
	}

	r.watcher = watcher
	r.stopChan = make(chan struct{})
	go r.watchLoop(watcher, r.stopChan)
	return nil
}

func (r *Registry) watchLoop(watcher *fsnotify.Watcher, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isYAML(event.Name) {
				continue
			}

			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				r.handleFileChange(event.Name, "create")
			case event.Op&fsnotify.Write == fsnotify.Write:
				r.handleFileChange(event.Name, "modify")
			case event.Op&fsnotify.Remove == fsnotify.Remove,
				event.Op&fsnotify.Rename == fsnotify.Rename:
				r.handleFileRemove(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.log().Warn("catalog watcher error", "error", err)
		}
	}
}

func (r *Registry) handleFileChange(path, eventType string) {
	if err := r.LoadFile(path); err != nil {
		r.log().Warn("keeping previous catalog", "file", path, "error", err)
		return
	}
	r.log().Info("catalog reloaded", "file", path, "event", eventType)
	r.notify(eventType, path)
}

func (r *Registry) handleFileRemove(path string) {
	if err := r.Unload(path); err != nil {
		r.log().Debug("ignoring removal", "file", path, "error", err)
		return
	}
	r.log().Info("catalog overlay removed", "file", path)
	r.notify("remove", path)
}

func (r *Registry) notify(event, path string) {
	r.mu.RLock()
	fn := r.onChange
	r.mu.RUnlock()
	if fn != nil {
		fn(event, path)
	}
}

func (r *Registry) log() *slog.Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logger
}

// StopWatch stops watching the overlay directory.
func (r *Registry) StopWatch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopChan != nil {
		close(r.stopChan)
		r.stopChan = nil
	}
	if r.watcher != nil {
		r.watcher.Close()
		r.watcher = nil
	}
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
