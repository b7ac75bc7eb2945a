// Package handler implements the per-open file handler abstraction and
// its two variants: PassThroughHandler, which delegates straight to the
// underlying descriptor, and SndFileHandler, which decodes, convolves,
// re-encodes, and serves the result through a ConversionBuffer.
package handler

import (
	"errors"
	"os"
)

// FileHandler is the abstract handler the filesystem façade drives:
// positional Read, Stat, and Close.
type FileHandler interface {
	Read(buf []byte, offset int64) (int, error)
	Stat() (os.FileInfo, error)
	Close() error
}

// Error kinds that callers use to decide whether to fall back to a
// simpler handler.
var (
	// ErrNotASoundFile means the codec library could not open the
	// descriptor as any recognized container; the caller falls back to
	// PassThrough.
	ErrNotASoundFile = errors.New("handler: not a sound file")

	// ErrNoFilterConfigured means the (rate,bits,channels) filter config
	// is missing or unreadable; the caller falls back to PassThrough.
	ErrNoFilterConfigured = errors.New("handler: no filter configured for this format")
)
