// Package cache implements FileHandlerCache: a process-wide mapping from
// virtual path to a live handler with reference counting, exposed as an
// explicit, independently constructible object rather than ambient
// singleton state.
package cache

import (
	"os"
	"sync"

	"github.com/kjhall/convolvefs/internal/handler"
	"github.com/kjhall/convolvefs/internal/logger"
)

type entry struct {
	handler  handler.FileHandler
	refcount int
}

// Cache is the open-handler map. It must be constructed explicitly via
// New (never as a package-level singleton), so each process — or each
// test — owns its own independent instance.
type Cache struct {
	mu            sync.Mutex
	entries       map[string]*entry
	handlerConfig handler.Config
	log           logger.Logger
}

// Config carries the settings CreateHandler needs to build a
// SndFileHandler: where filter-*.conf files live, the optional
// fragment-size clamp, and the dynamic size-estimate constants, all
// sourced from EngineConfig.
type Config struct {
	ConfigDir             string
	FragmentOverride      int
	SizeEstimateThreshold float64
	SizeEstimatePad       int64
	Logger                logger.Logger
}

// New constructs an empty cache.
func New(cfg Config) *Cache {
	log := logger.OrNop(cfg.Logger)
	return &Cache{
		entries: make(map[string]*entry),
		handlerConfig: handler.Config{
			ConfigDir:             cfg.ConfigDir,
			FragmentOverride:      cfg.FragmentOverride,
			SizeEstimateThreshold: cfg.SizeEstimateThreshold,
			SizeEstimatePad:       cfg.SizeEstimatePad,
			Log:                   log,
		},
		log: log,
	}
}

// CreateHandler opens underlyingPath read-only and returns a handler for
// it, reusing an existing live handler for fsPath if one is already
// open (bumping its refcount) rather than opening the file twice.
// Otherwise it tries SndFileHandler first, falling back to
// PassThroughHandler on any recoverable construction error
// (NotASoundFile, NoFilterConfigured).
func (c *Cache) CreateHandler(fsPath, underlyingPath string) (handler.FileHandler, error) {
	c.mu.Lock()
	if e, ok := c.entries[fsPath]; ok {
		e.refcount++
		h := e.handler
		c.mu.Unlock()
		return h, nil
	}
	c.mu.Unlock()

	fd, err := os.OpenFile(underlyingPath, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}

	h, err := buildHandler(fd, c.handlerConfig)
	if err != nil {
		fd.Close()
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[fsPath]; ok {
		// Lost the race: another goroutine inserted fsPath while we were
		// opening the file. Discard our handler and join theirs.
		e.refcount++
		h2 := e.handler
		c.closeHandlerUnlocked(h)
		return h2, nil
	}
	c.entries[fsPath] = &entry{handler: h, refcount: 1}
	return h, nil
}

// buildHandler tries SndFileHandler first; any construction failure
// (unrecognized container, no filter configured, or a runtime error
// opening the encoder) falls back to a PassThroughHandler over the same
// descriptor.
func buildHandler(fd *os.File, cfg handler.Config) (handler.FileHandler, error) {
	h, err := handler.Create(fd, cfg)
	if err == nil {
		return h, nil
	}

	if _, err := fd.Seek(0, 0); err != nil {
		return nil, err
	}
	return handler.NewPassThroughHandler(fd), nil
}

// StatByFilename delegates to the open handler's dynamic Stat if fsPath
// is currently open, signaling "not open" (ok=false) otherwise so the
// caller can fall back to a direct underlying-file stat.
func (c *Cache) StatByFilename(fsPath string) (os.FileInfo, bool, error) {
	c.mu.Lock()
	e, ok := c.entries[fsPath]
	c.mu.Unlock()
	if !ok {
		return nil, false, nil
	}

	info, err := e.handler.Stat()
	return info, true, err
}

// Close decrements fsPath's refcount, closing and removing the handler
// once it reaches zero. Race-safe against a concurrent CreateHandler
// racing to reopen the same path.
func (c *Cache) Close(fsPath string) error {
	c.mu.Lock()
	e, ok := c.entries[fsPath]
	if !ok {
		c.mu.Unlock()
		return nil
	}

	e.refcount--
	if e.refcount > 0 {
		c.mu.Unlock()
		return nil
	}

	delete(c.entries, fsPath)
	c.mu.Unlock()

	return e.handler.Close()
}

func (c *Cache) closeHandlerUnlocked(h handler.FileHandler) {
	if err := h.Close(); err != nil {
		c.log.Warning("cache: closing discarded duplicate handler: %v", err)
	}
}

// Len reports the number of currently open entries, for tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
