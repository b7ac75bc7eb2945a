// Package fsfacade exposes the engine's external surface — Initialize,
// CreateHandler, Read, StatByFilename, Close — the calls a FUSE bridge
// registers as its request handlers. CreateHandler opens a file once
// and hands back an opaque Handler; Read takes that same Handler back on
// every subsequent call for the same open file, rather than re-deriving
// it, so a single open file is decoded, convolved, and re-encoded once
// and served across however many reads the bridge issues before
// release. Close takes the fsPath, not the Handler.
package fsfacade

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/kjhall/convolvefs/internal/cache"
	"github.com/kjhall/convolvefs/internal/handler"
	"github.com/kjhall/convolvefs/internal/logger"
)

// Handler is the opaque per-open-file value CreateHandler returns and
// Read accepts, re-exported from internal/handler so a bridge package
// never needs to import internal/handler directly.
type Handler = handler.FileHandler

// Config carries the EngineConfig settings Initialize needs: where
// filter-*.conf files live, the optional fragment-size clamp, and the
// dynamic size-estimate constants.
type Config struct {
	ConfigDir             string
	FragmentOverride      int
	SizeEstimateThreshold float64
	SizeEstimatePad       int64
	Logger                logger.Logger
}

// Facade is the process-wide entry point a bridging layer holds onto
// after Initialize. It closes over one cache.Cache, constructed
// explicitly here rather than reached for as ambient global state.
type Facade struct {
	cache *cache.Cache
	log   logger.Logger
}

// Initialize is the one-shot call at process start: it builds the cache
// against cfg.ConfigDir, the directory holding
// filter-<rate>-<bits>-<channels>.conf files.
func Initialize(cfg Config) *Facade {
	log := logger.OrNop(cfg.Logger)
	return &Facade{
		cache: cache.New(cache.Config{
			ConfigDir:             cfg.ConfigDir,
			FragmentOverride:      cfg.FragmentOverride,
			SizeEstimateThreshold: cfg.SizeEstimateThreshold,
			SizeEstimatePad:       cfg.SizeEstimatePad,
			Logger:                log,
		}),
		log: log,
	}
}

// CreateHandler opens underlyingPath and returns a Handler keyed by
// fsPath, for the bridge to hold and pass back into Read and Close.
// errno is the negated POSIX error code a FUSE open callback would
// return; it is 0 on success.
func (f *Facade) CreateHandler(fsPath, underlyingPath string) (h Handler, errno int, err error) {
	h, err = f.cache.CreateHandler(fsPath, underlyingPath)
	if err != nil {
		return nil, errnoFor(err), err
	}
	return h, 0, nil
}

// Read serves size bytes at offset into buf using h, the Handler a
// prior CreateHandler call for this same open file returned. It does
// not touch the cache: the handler stays open and reusable across as
// many Read calls as the bridge issues between CreateHandler and
// Close.
func (f *Facade) Read(h Handler, buf []byte, offset int64) (int, error) {
	n, err := h.Read(buf, offset)
	if err != nil {
		return errnoFor(err), err
	}
	return n, nil
}

// StatByFilename reports the dynamic size for an already-open fsPath, or
// falls back to a direct stat of underlyingPath if it is not open.
func (f *Facade) StatByFilename(fsPath, underlyingPath string) (os.FileInfo, error) {
	if info, ok, err := f.cache.StatByFilename(fsPath); ok {
		if err != nil {
			return nil, err
		}
		return info, nil
	}
	return os.Stat(underlyingPath)
}

// Close releases the Handler held for fsPath, corresponding to the
// bridge's release callback. It decrements the cache's reference count
// and only actually closes the handler once every CreateHandler call
// for fsPath has had a matching Close.
func (f *Facade) Close(fsPath string) error {
	return f.cache.Close(fsPath)
}

// errnoFor maps a Go error to a negated POSIX error code, following the
// negated-errno convention FUSE bridges expect.
func errnoFor(err error) int {
	switch {
	case os.IsNotExist(err):
		return -int(unix.ENOENT)
	case os.IsPermission(err):
		return -int(unix.EACCES)
	default:
		return -int(unix.EIO)
	}
}
