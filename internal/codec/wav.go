package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavDecoder wraps go-audio/wav.Decoder, normalizing integer PCM to
// float64 in [-1, 1] the way internal/soundproc expects.
type wavDecoder struct {
	f      *os.File
	dec    *wav.Decoder
	format AudioFormat
	buf    *audio.IntBuffer
	scale  float64
}

func newWavDecoder(f *os.File) (Decoder, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid WAV header", ErrNotASoundFile)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, err
	}

	bitDepth := int(dec.BitDepth)
	subtype, err := subtypeForBitDepth(bitDepth)
	if err != nil {
		return nil, err
	}

	const framesPerBlock = 1024
	nchannels := int(dec.NumChans)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: nchannels,
			SampleRate:  int(dec.SampleRate),
		},
		Data:           make([]int, framesPerBlock*nchannels),
		SourceBitDepth: bitDepth,
	}

	return &wavDecoder{
		f:   f,
		dec: dec,
		format: AudioFormat{
			SampleRate: int(dec.SampleRate),
			Channels:   nchannels,
			Subtype:    subtype,
			Envelope:   EnvelopeWAV,
		},
		buf:   buf,
		scale: 1.0 / float64(int64(1)<<(uint(bitDepth)-1)),
	}, nil
}

func subtypeForBitDepth(bits int) (Subtype, error) {
	switch bits {
	case 16:
		return SubtypePCM16, nil
	case 24:
		return SubtypePCM24, nil
	case 32:
		return SubtypePCM32, nil
	default:
		return SubtypeUnknown, fmt.Errorf("codec: unsupported WAV bit depth %d", bits)
	}
}

func (d *wavDecoder) Format() AudioFormat { return d.format }

func (d *wavDecoder) TotalFrames() int64 {
	dur, err := d.dec.Duration()
	if err != nil || d.format.SampleRate == 0 {
		return -1
	}
	return int64(dur.Seconds() * float64(d.format.SampleRate))
}

func (d *wavDecoder) ReadFrames(out []float64) (int, error) {
	channels := d.format.Channels
	wantFrames := len(out) / channels
	if wantFrames == 0 {
		return 0, nil
	}

	if cap(d.buf.Data) < wantFrames*channels {
		d.buf.Data = make([]int, wantFrames*channels)
	}
	d.buf.Data = d.buf.Data[:wantFrames*channels]

	n, err := d.dec.PCMBuffer(d.buf)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}

	for i := 0; i < n; i++ {
		out[i] = float64(d.buf.Data[i]) * d.scale
	}
	return n / channels, nil
}

func (d *wavDecoder) Close() error { return nil }

// ExtractInfoChunk walks f's RIFF chunk list looking for a LIST chunk
// whose form type is INFO (the conventional home for title/artist/
// comment tags in a WAV file) and returns its raw bytes verbatim,
// chunk ID through the even-padded payload. Returns nil, nil if the
// file has no such chunk. f's read position is left wherever the walk
// stopped; callers that need f positioned elsewhere afterward must
// save and restore it themselves.
func ExtractInfoChunk(f *os.File) ([]byte, error) {
	if _, err := f.Seek(12, io.SeekStart); err != nil {
		return nil, err
	}

	hdr := make([]byte, 8)
	for {
		if _, err := io.ReadFull(f, hdr); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, nil
			}
			return nil, err
		}

		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])
		padded := int64(size)
		if size%2 == 1 {
			padded++
		}

		if id != "LIST" {
			if _, err := f.Seek(padded, io.SeekCurrent); err != nil {
				return nil, err
			}
			continue
		}

		payload := make([]byte, padded)
		if _, err := io.ReadFull(f, payload); err != nil {
			return nil, err
		}
		if len(payload) < 4 || string(payload[0:4]) != "INFO" {
			continue
		}

		chunk := make([]byte, 8+len(payload))
		copy(chunk[0:8], hdr)
		copy(chunk[8:], payload)
		return chunk, nil
	}
}

// wavEncoder hand-writes the WAV container rather than using
// go-audio/wav.Encoder, whose Close() seeks back to patch the RIFF and
// data chunk sizes. That requires an io.WriteSeeker and buffering the
// entire file before any byte is final, which defeats the
// append-only, serve-as-decoded streaming contract of
// internal/convbuf.ConversionBuffer. Because this engine never
// resamples, the output frame count always equals the input frame
// count, so the header's sizes are
// known before the first sample is written and can be emitted once,
// correctly, up front.
type wavEncoder struct {
	sink       Sink
	format     AudioFormat
	bytesPerSample int
	headerDone bool
}

func newWavEncoder(format AudioFormat, totalFrames int64, sink Sink, tags []byte) (Encoder, error) {
	if totalFrames < 0 {
		return nil, fmt.Errorf("codec: WAV encoder requires a known frame count")
	}
	bitDepth := format.Subtype.BitDepth()
	if bitDepth == 0 {
		return nil, fmt.Errorf("codec: unsupported WAV output subtype")
	}

	e := &wavEncoder{
		sink:           sink,
		format:         format,
		bytesPerSample: bitDepth / 8,
	}

	dataBytes := totalFrames * int64(format.Channels) * int64(e.bytesPerSample)
	if err := e.writeHeader(dataBytes, tags); err != nil {
		return nil, err
	}
	return e, nil
}

// writeHeader emits the fmt chunk followed by tags verbatim, if any
// (the source's own LIST/INFO chunk, see ExtractInfoChunk), then the
// data chunk header. riffSize accounts for tags' length so the file
// stays well-formed.
func (e *wavEncoder) writeHeader(dataBytes int64, tags []byte) error {
	blockAlign := e.format.Channels * e.bytesPerSample
	byteRate := e.format.SampleRate * blockAlign
	riffSize := uint32(36 + int64(len(tags)) + dataBytes)

	hdr := make([]byte, 44+len(tags))
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], riffSize)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	formatTag := uint16(1) // PCM
	if e.format.Subtype.IsFloat() {
		formatTag = 3 // IEEE float
	}
	binary.LittleEndian.PutUint16(hdr[20:22], formatTag)
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(e.format.Channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(e.format.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(hdr[34:36], uint16(e.format.Subtype.BitDepth()))

	pos := 36
	if len(tags) > 0 {
		copy(hdr[pos:], tags)
		pos += len(tags)
	}
	copy(hdr[pos:pos+4], "data")
	binary.LittleEndian.PutUint32(hdr[pos+4:pos+8], uint32(dataBytes))

	_, err := e.sink.Append(hdr)
	e.headerDone = true
	return err
}

func (e *wavEncoder) WriteFrames(frames []float64) error {
	peak := int64(1) << (uint(e.format.Subtype.BitDepth()) - 1)
	buf := make([]byte, len(frames)*e.bytesPerSample)

	for i, sample := range frames {
		v := int64(sample * float64(peak))
		if v > peak-1 {
			v = peak - 1
		}
		if v < -peak {
			v = -peak
		}
		off := i * e.bytesPerSample
		switch e.bytesPerSample {
		case 2:
			binary.LittleEndian.PutUint16(buf[off:], uint16(int16(v)))
		case 3:
			buf[off] = byte(v)
			buf[off+1] = byte(v >> 8)
			buf[off+2] = byte(v >> 16)
		case 4:
			if e.format.Subtype.IsFloat() {
				binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(sample)))
			} else {
				binary.LittleEndian.PutUint32(buf[off:], uint32(int32(v)))
			}
		}
	}

	_, err := e.sink.Append(buf)
	return err
}

func (e *wavEncoder) Finish() error { return nil }

// Close is a no-op: wavEncoder holds no native resources.
func (e *wavEncoder) Close() error { return nil }
