// Package convbuf implements ConversionBuffer: a monotonically-growing
// in-memory byte log fed by a pull-driven producer and read at arbitrary
// offsets by consumers. It is the bridge between the strictly sequential
// encoder side of the pipeline and the random-access read contract the
// filesystem side needs.
package convbuf

import (
	"sync"
)

// SoundSource is the producer contract a ConversionBuffer drives when a
// reader overshoots the buffer's current size. AddMoreSoundData returns
// false once the stream is exhausted. The interface has no encoder hook:
// the buffer never learns which encoder feeds it, and the owner points
// its encoder at the buffer itself.
type SoundSource interface {
	AddMoreSoundData() bool
}

// ConversionBuffer is an append-only byte log: B only grows, concurrent
// readers always see a consistent prefix, and at most one producer
// advance (AddMoreSoundData call) is ever in flight.
type ConversionBuffer struct {
	mu   sync.Mutex
	cond *sync.Cond

	b      []byte
	source SoundSource

	sndfileWritesEnabled bool
	headerFinished       bool

	producing bool
	exhausted bool
}

// New creates a ConversionBuffer driven by source. source may be nil
// initially and supplied later via SetSource, since the handler acting
// as the SoundSource is typically built after the buffer it will drive.
func New(source SoundSource) *ConversionBuffer {
	cb := &ConversionBuffer{source: source}
	cb.cond = sync.NewCond(&cb.mu)
	return cb
}

// SetSource attaches the producer once it is fully constructed.
func (cb *ConversionBuffer) SetSource(source SoundSource) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.source = source
}

// Append adds bytes to B unconditionally, for direct writes such as a
// hand-spliced FLAC header.
func (cb *ConversionBuffer) Append(p []byte) (int, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.b = append(cb.b, p...)
	cb.cond.Broadcast()
	return len(p), nil
}

// SndfileWriteCallback appends only while sndfile writes are enabled,
// silently dropping bytes otherwise. This is how a codec library's own
// header emission is suppressed while a hand-crafted header is spliced
// in via Append instead.
func (cb *ConversionBuffer) SndfileWriteCallback(p []byte) (int, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.sndfileWritesEnabled {
		return len(p), nil
	}
	cb.b = append(cb.b, p...)
	cb.cond.Broadcast()
	return len(p), nil
}

// EnableSndfileWrites flips the gate SndfileWriteCallback checks.
func (cb *ConversionBuffer) EnableSndfileWrites() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.sndfileWritesEnabled = true
}

// FileSize returns the current length of B.
func (cb *ConversionBuffer) FileSize() int64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return int64(len(cb.b))
}

// HeaderFinished is the one-shot barrier marking that the audio payload
// starts at the current size.
func (cb *ConversionBuffer) HeaderFinished() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.headerFinished = true
	cb.cond.Broadcast()
}

// IsHeaderFinished reports whether HeaderFinished has fired.
func (cb *ConversionBuffer) IsHeaderFinished() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.headerFinished
}

// Read serves bytes from B at offset. If offset+len(buf) exceeds the
// current size, it drives the producer — at most one AddMoreSoundData
// call in flight at a time, with concurrent callers blocking on cond
// until either enough bytes exist or the stream is exhausted. Reads
// past the exhausted end return only what is available, never an error.
func (cb *ConversionBuffer) Read(buf []byte, offset int64) (int, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	want := offset + int64(len(buf))
	for int64(len(cb.b)) < want && !cb.exhausted {
		if cb.producing {
			cb.cond.Wait()
			continue
		}

		cb.producing = true
		cb.mu.Unlock()
		more := cb.source.AddMoreSoundData()
		cb.mu.Lock()
		cb.producing = false
		if !more {
			cb.exhausted = true
		}
		cb.cond.Broadcast()
	}

	if offset >= int64(len(cb.b)) {
		return 0, nil
	}
	end := want
	if end > int64(len(cb.b)) {
		end = int64(len(cb.b))
	}
	n := copy(buf, cb.b[offset:end])
	return n, nil
}
