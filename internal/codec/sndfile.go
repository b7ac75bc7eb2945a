package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotASoundFile is returned by OpenDecoder when the file's magic bytes
// do not match any recognized container.
var ErrNotASoundFile = errors.New("codec: not a recognized sound file")

// ErrOggDecodeUnavailable is returned when an Ogg container is recognized
// by its magic and identification header but no PCM decode path exists
// for it. This is distinct from ErrNotASoundFile: the file genuinely is
// an Ogg stream, decoding it is just unsupported.
var ErrOggDecodeUnavailable = errors.New("codec: ogg vorbis decode not available")

// Decoder streams interleaved PCM frames out of a sound file, one
// fragment's worth at a time. Implementations wrap a concrete library
// (go-audio/wav, drgolem/go-flac).
type Decoder interface {
	// Format returns the format of the decoded stream.
	Format() AudioFormat

	// TotalFrames returns the number of PCM frames in the stream, or -1
	// if unknown ahead of decode.
	TotalFrames() int64

	// ReadFrames decodes up to len(out)/channels frames into out,
	// interleaved, returning the number of frames decoded. Returns
	// io.EOF once no frames remain.
	ReadFrames(out []float64) (int, error)

	Close() error
}

// Encoder accepts interleaved PCM frames and produces encoded container
// bytes, delivered to a sink as they become available rather than
// buffered wholesale, so callers can forward them into a growable
// append-only buffer as soon as each fragment is ready.
type Encoder interface {
	// WriteFrames encodes the given interleaved frames and forwards any
	// resulting bytes to the sink supplied at construction.
	WriteFrames(frames []float64) error

	// Finish flushes any buffered encoder state (e.g. FLAC's trailing
	// frame and verify pass) and forwards the remaining bytes.
	Finish() error

	// Close releases any native resources held by the encoder. It must
	// be called even if Finish already ran, and is the only release
	// path at all when the encoder is torn down before Finish runs.
	// Safe to call more than once.
	Close() error
}

// Sink receives encoded bytes as an Encoder produces them.
type Sink interface {
	Append(p []byte) (int, error)
}

const sniffLen = 12

// Sniff identifies the container format of f by its leading bytes,
// without consuming the file's read position for callers that reopen
// it afterward.
func Sniff(f *os.File) (Envelope, error) {
	buf := make([]byte, sniffLen)
	if _, err := f.ReadAt(buf, 0); err != nil && err != io.EOF {
		return EnvelopeUnknown, err
	}

	switch {
	case bytes.Equal(buf[0:4], []byte("RIFF")) && bytes.Equal(buf[8:12], []byte("WAVE")):
		return EnvelopeWAV, nil
	case bytes.Equal(buf[0:4], []byte("fLaC")):
		return EnvelopeFLAC, nil
	case bytes.Equal(buf[0:4], []byte("OggS")):
		return EnvelopeOGG, nil
	default:
		return EnvelopeUnknown, nil
	}
}

// OpenDecoder sniffs f's container and returns a Decoder for it. It
// returns ErrNotASoundFile for unrecognized magic. Ogg containers
// construct successfully with an accurate Format(), since the identification
// header is enough to sniff sample rate and channel count, but every
// ReadFrames call on them fails with ErrOggDecodeUnavailable.
func OpenDecoder(f *os.File) (Decoder, error) {
	env, err := Sniff(f)
	if err != nil {
		return nil, err
	}

	switch env {
	case EnvelopeWAV:
		return newWavDecoder(f)
	case EnvelopeFLAC:
		return newFlacDecoder(f)
	case EnvelopeOGG:
		rate, channels, err := sniffOggVorbis(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotASoundFile, err)
		}
		// The file is a genuine Ogg Vorbis stream: construction succeeds
		// so the handler is built, but every decode attempt fails since
		// no Vorbis decoder exists in this build (see ogg.go).
		return &oggDecoder{
			format: AudioFormat{
				SampleRate: rate,
				Channels:   channels,
				Subtype:    SubtypePCM16,
				Envelope:   EnvelopeOGG,
			},
		}, nil
	default:
		return nil, ErrNotASoundFile
	}
}

// NewEncoder builds an Encoder for the given output format, forwarding
// encoded bytes to sink as they are produced. totalFrames, when known,
// lets the encoder emit an accurate header/STREAMINFO up front. tags,
// if non-nil, is a raw WAV LIST/INFO chunk (see ExtractInfoChunk) to
// carry into a WAV output header; FLAC output ignores it, since its
// header is spliced separately from the source's own metadata chain.
func NewEncoder(format AudioFormat, totalFrames int64, sink Sink, tags []byte) (Encoder, error) {
	switch format.Envelope {
	case EnvelopeWAV:
		return newWavEncoder(format, totalFrames, sink, tags)
	case EnvelopeFLAC:
		return newFlacEncoder(format, totalFrames, sink)
	default:
		return nil, fmt.Errorf("codec: unsupported output envelope %s", format.Envelope)
	}
}
