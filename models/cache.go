package models

import (
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
)

type cacheEntry struct {
	bundle  *Bundle
	modTime time.Time
}

// Cache keeps recently loaded bundles in memory. An entry is reloaded when
// its file changes on disk.
type Cache struct {
	entries *lru.Cache[string, cacheEntry]
	logger  log.Logger
}

// NewCache creates a cache holding at most size bundles.
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, errors.Wrap(err, "create bundle cache")
	}
	return &Cache{entries: entries, logger: log.GetLoggerWithName("models")}, nil
}

// Load returns the bundle at path, from memory when it is up to date.
func (c *Cache) Load(path string) (*Bundle, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		key = path
	}
	info, err := os.Stat(key)
	if err != nil {
		c.entries.Remove(key)
		return nil, errors.Wrapf(err, "load bundle %s", path)
	}

	if e, ok := c.entries.Get(key); ok && e.modTime.Equal(info.ModTime()) {
		c.logger.Debug("Bundle cache hit", log.PathKey, key)
		return e.bundle, nil
	}

	b, err := LoadBundle(key)
	if err != nil {
		return nil, err
	}
	c.entries.Add(key, cacheEntry{bundle: b, modTime: info.ModTime()})
	c.logger.Debug("Bundle loaded", log.PathKey, key, log.ModelNameKey, b.Metadata.Name)
	return b, nil
}

// Invalidate drops path from the cache.
func (c *Cache) Invalidate(path string) {
	if key, err := filepath.Abs(path); err == nil {
		path = key
	}
	c.entries.Remove(path)
}

// Len returns the number of cached bundles.
func (c *Cache) Len() int {
	return c.entries.Len()
}
