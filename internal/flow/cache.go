package flow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fiapx/fiapx-slowmo-service/internal/frames"
)

// Cache persists flow fields under a project directory:
//
//	{ProjectDir}/cache/oFlowOrig/forward-0-1-orig.sVflow
//	{ProjectDir}/cache/oFlowSmall/backward-1-0-small.sVflow
//
// Entries are immutable once written. A file that exists is assumed valid.
type Cache struct {
	mu         sync.RWMutex
	projectDir string
}

func cacheDir(projectDir string, res frames.Resolution) string {
	if res == frames.Small {
		return filepath.Join(projectDir, "cache", "oFlowSmall")
	}
	return filepath.Join(projectDir, "cache", "oFlowOrig")
}

// NewCache creates the per-resolution directories under projectDir.
func NewCache(projectDir string) (*Cache, error) {
	c := &Cache{projectDir: projectDir}
	if err := c.createDirectories(projectDir); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) createDirectories(projectDir string) error {
	for _, res := range []frames.Resolution{frames.Original, frames.Small} {
		if err := os.MkdirAll(cacheDir(projectDir, res), 0755); err != nil {
			return fmt.Errorf("create flow cache dir: %w", err)
		}
	}
	return nil
}

// ProjectDir returns the current cache root.
func (c *Cache) ProjectDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.projectDir
}

// Relocate moves the cache to a new project directory. Directories are recreated
// there; entries under the old location are not migrated and are only deleted
// when removeOld is set.
func (c *Cache) Relocate(projectDir string, removeOld bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if projectDir == c.projectDir {
		return c.createDirectories(projectDir)
	}
	if err := c.createDirectories(projectDir); err != nil {
		return err
	}
	old := c.projectDir
	c.projectDir = projectDir
	if removeOld && old != "" {
		for _, res := range []frames.Resolution{frames.Original, frames.Small} {
			if err := os.RemoveAll(cacheDir(old, res)); err != nil {
				return fmt.Errorf("remove old flow cache: %w", err)
			}
		}
	}
	return nil
}

// Path is the file a key is cached in.
func (c *Cache) Path(key Key) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return filepath.Join(cacheDir(c.projectDir, key.Resolution), key.FileName())
}

func (c *Cache) Has(key Key) (bool, error) {
	_, err := os.Stat(c.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checking flow cache entry: %w", err)
	}
	return true, nil
}

// Load returns the cached field, or (nil, nil) when there is no entry.
func (c *Cache) Load(key Key) (*Field, error) {
	f, err := Load(c.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return f, nil
}

// Store writes the entry to a temp file beside its final path and renames it
// into place, so readers never observe a partial file.
func (c *Cache) Store(key Key, f *Field) error {
	if f == nil {
		return fmt.Errorf("flow field is nil")
	}
	path := c.Path(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create flow cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, key.FileName()+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp flow file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := Write(tmp, f); err != nil {
		return fmt.Errorf("write flow file: %w", err)
	}
	_ = tmp.Sync()
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close flow file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("commit flow file: %w", err)
	}
	committed = true
	return nil
}
