package handler

import (
	"io"
	"os"
)

// PassThroughHandler serves the underlying file's bytes unchanged: Read
// delegates to a positional read on the descriptor, Stat to a
// descriptor-stat, Close to a descriptor-close.
type PassThroughHandler struct {
	fd *os.File
}

// NewPassThroughHandler wraps fd, an already-opened read-only descriptor.
func NewPassThroughHandler(fd *os.File) *PassThroughHandler {
	return &PassThroughHandler{fd: fd}
}

func (h *PassThroughHandler) Read(buf []byte, offset int64) (int, error) {
	n, err := h.fd.ReadAt(buf, offset)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (h *PassThroughHandler) Stat() (os.FileInfo, error) {
	return h.fd.Stat()
}

func (h *PassThroughHandler) Close() error {
	return h.fd.Close()
}
