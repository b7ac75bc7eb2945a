// Package codec is the seam between the engine and the underlying
// sound-codec libraries. It reads 16/24/32-bit PCM WAV and FLAC, writes
// WAV (16/24/32-bit PCM or 32-bit float) and PCM FLAC, and has no float
// FLAC subtype. Decode is backed by github.com/go-audio/wav (WAV) and
// github.com/drgolem/go-flac (FLAC); Ogg input is recognized structurally
// but not decoded, see ogg.go.
package codec

import "fmt"

// Envelope identifies the container format of a sound file.
type Envelope int

const (
	EnvelopeUnknown Envelope = iota
	EnvelopeWAV
	EnvelopeFLAC
	EnvelopeOGG
)

func (e Envelope) String() string {
	switch e {
	case EnvelopeWAV:
		return "WAV"
	case EnvelopeFLAC:
		return "FLAC"
	case EnvelopeOGG:
		return "OGG"
	default:
		return "unknown"
	}
}

// Subtype identifies the sample container of a sound file.
type Subtype int

const (
	SubtypeUnknown Subtype = iota
	SubtypePCM16
	SubtypePCM24
	SubtypePCM32
	SubtypeFloat32
)

// BitDepth returns the bit depth used, together with sample rate and
// channel count, to select a filter config file.
func (s Subtype) BitDepth() int {
	switch s {
	case SubtypePCM16:
		return 16
	case SubtypePCM24:
		return 24
	case SubtypePCM32, SubtypeFloat32:
		return 32
	default:
		return 0
	}
}

func (s Subtype) IsFloat() bool { return s == SubtypeFloat32 }

// AudioFormat describes a decoded or encoded PCM stream's shape.
type AudioFormat struct {
	SampleRate int
	Channels   int
	Subtype    Subtype
	Envelope   Envelope
}

// FilterConfigName returns the filter-<rate>-<bits>-<channels>.conf name
// for this format.
func (f AudioFormat) FilterConfigName() string {
	return fmt.Sprintf("filter-%d-%d-%d.conf", f.SampleRate, f.Subtype.BitDepth(), f.Channels)
}
