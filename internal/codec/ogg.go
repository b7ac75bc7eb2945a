package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// oggDecoder satisfies Decoder for a recognized Ogg Vorbis stream whose
// PCM payload this build cannot actually decode. Format() is accurate
// (taken from the identification header); ReadFrames always fails.
type oggDecoder struct {
	format AudioFormat
}

func (d *oggDecoder) Format() AudioFormat { return d.format }
func (d *oggDecoder) TotalFrames() int64  { return -1 }
func (d *oggDecoder) Close() error        { return nil }

func (d *oggDecoder) ReadFrames(out []float64) (int, error) {
	return 0, ErrOggDecodeUnavailable
}

// sniffOggVorbis confirms f is a genuine Ogg Vorbis stream and extracts
// its sample rate and channel count from the identification header
// (the first packet of the first Ogg page), without decoding any audio.
// No Vorbis decoder is available to this build.
func sniffOggVorbis(f *os.File) (rate, channels int, err error) {
	page := make([]byte, 58) // Ogg page header (27+) plus enough of segment 1 to reach the Vorbis ident header
	if _, err := f.ReadAt(page, 0); err != nil && err != io.EOF {
		return 0, 0, err
	}

	if !bytes.Equal(page[0:4], []byte("OggS")) {
		return 0, 0, fmt.Errorf("codec: missing OggS capture pattern")
	}

	numSegments := int(page[26])
	headerLen := 27 + numSegments
	if len(page) < headerLen+30 {
		more := make([]byte, headerLen+30)
		if _, err := f.ReadAt(more, 0); err != nil && err != io.EOF {
			return 0, 0, err
		}
		page = more
	}

	packet := page[headerLen:]
	if len(packet) < 30 || packet[0] != 1 || !bytes.Equal(packet[1:7], []byte("vorbis")) {
		return 0, 0, fmt.Errorf("codec: not a vorbis identification header")
	}

	channels = int(packet[11])
	rate = int(binary.LittleEndian.Uint32(packet[12:16]))
	return rate, channels, nil
}
