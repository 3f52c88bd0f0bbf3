package catalog

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/kitchenstock/scanner/internal/domain"
)

// FileCatalog serves the product catalog from a YAML or JSON file.
// Snapshot always returns a private copy, so a reload never changes a scan in flight.
type FileCatalog struct {
	path    string
	mu      sync.RWMutex
	entries []domain.ProductCatalogEntry
}

// Load reads the catalog file at path
func Load(path string) (*FileCatalog, error) {
	c := &FileCatalog{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Static wraps an in-memory list of entries, mostly for tests and one-off scans
func Static(entries []domain.ProductCatalogEntry) *FileCatalog {
	return &FileCatalog{entries: append([]domain.ProductCatalogEntry(nil), entries...)}
}

// Snapshot returns a copy of the current entries in file order
func (c *FileCatalog) Snapshot() []domain.ProductCatalogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.ProductCatalogEntry(nil), c.entries...)
}

// Len returns the number of products currently loaded
func (c *FileCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Reload re-reads the file. On error the previous entries are kept.
func (c *FileCatalog) Reload() error {
	if c.path == "" {
		return fmt.Errorf("%w: no catalog file configured", domain.ErrCatalogUnavailable)
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}

	entries, err := Decode(data)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", c.path, err)
	}
	// A file caught mid-write reads as empty
	if len(entries) == 0 {
		return fmt.Errorf("%w: %s has no products", domain.ErrCatalogUnavailable, c.path)
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	log.Printf("[CATALOG] Loaded %d products from %s", len(entries), c.path)
	return nil
}

// Decode parses catalog entries from YAML or JSON. Entries need an id and a
// name, and ids must be unique.
func Decode(data []byte) ([]domain.ProductCatalogEntry, error) {
	var entries []domain.ProductCatalogEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		// Also accept {"products": [...]}
		var wrapped struct {
			Products []domain.ProductCatalogEntry `yaml:"products"`
		}
		if err2 := yaml.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("%w: cannot decode catalog: %v", domain.ErrInvalidRequest, err)
		}
		entries = wrapped.Products
	}

	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		entries[i].ID = strings.TrimSpace(e.ID)
		entries[i].Name = strings.TrimSpace(e.Name)
		if entries[i].ID == "" || entries[i].Name == "" {
			return nil, fmt.Errorf("%w: catalog entry %d needs an id and a name", domain.ErrInvalidRequest, i)
		}
		if seen[entries[i].ID] {
			return nil, fmt.Errorf("%w: duplicate catalog id %q", domain.ErrInvalidRequest, entries[i].ID)
		}
		seen[entries[i].ID] = true
	}

	return entries, nil
}

// Watch reloads the catalog whenever the file is written or replaced, until
// ctx is done. It watches the parent directory so editors that swap files
// atomically are picked up too.
func (c *FileCatalog) Watch(ctx context.Context) error {
	if c.path == "" {
		return fmt.Errorf("%w: no catalog file to watch", domain.ErrCatalogUnavailable)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create catalog watcher: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(c.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if err := c.Reload(); err != nil {
					log.Printf("[CATALOG] Reload failed, keeping previous catalog: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[CATALOG] Watcher error: %v", err)
			}
		}
	}()

	log.Printf("[CATALOG] Watching %s for changes", c.path)
	return nil
}
