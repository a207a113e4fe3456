package server

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/berrythewa/datalibrary/internal/library"
	"github.com/berrythewa/datalibrary/pkg/utils"
)

// Loader opens the library stored at path.
type Loader func(path string) (*library.Library, error)

// LibraryCache holds at most one open library. A request for a different
// library closes the cached one and loads the new one in its place.
type LibraryCache struct {
	mu      sync.Mutex
	load    Loader
	current *library.Library
	logger  *zap.Logger
}

// NewLibraryCache returns an empty cache using load to open libraries.
func NewLibraryCache(load Loader, logger *zap.Logger) *LibraryCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LibraryCache{load: load, logger: logger}
}

// Get returns the library at path, reusing the cached handle when its
// identifier matches.
func (c *LibraryCache) Get(path string) (*library.Library, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := utils.NormalizePath(path)
	if c.current != nil && c.current.Identifier() == key {
		return c.current, nil
	}

	lib, err := c.load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load library %q: %w", path, err)
	}

	if c.current != nil {
		c.logger.Debug("Replacing cached library",
			zap.String("old", c.current.Identifier()),
			zap.String("new", lib.Identifier()))
		if err := c.current.Close(); err != nil {
			c.logger.Warn("Failed to close library", zap.String("library", c.current.Identifier()), zap.Error(err))
		}
	}
	c.current = lib
	return lib, nil
}

// Current returns the cached library or nil.
func (c *LibraryCache) Current() *library.Library {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Close closes and forgets the cached library.
func (c *LibraryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil
	}
	err := c.current.Close()
	c.current = nil
	return err
}
