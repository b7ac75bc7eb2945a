package codec

import (
	"fmt"
	"io"
	"os"

	goflac "github.com/drgolem/go-flac/flac"
)

// flacDecoder wraps drgolem/go-flac's FlacDecoder, which decodes by
// filename rather than from an already-open handle, so it reopens its
// own C-side file descriptor against f.Name().
type flacDecoder struct {
	dec      *goflac.FlacDecoder
	format   AudioFormat
	pcmBuf   []byte
	bps      int
	channels int
}

func newFlacDecoder(f *os.File) (Decoder, error) {
	dec, err := goflac.NewFlacFrameDecoder(32)
	if err != nil {
		return nil, err
	}
	if err := dec.Open(f.Name()); err != nil {
		_ = dec.Delete()
		return nil, fmt.Errorf("%w: %v", ErrNotASoundFile, err)
	}

	rate, channels, bps := dec.GetFormat()
	subtype, err := subtypeForBitDepth(bps)
	if err != nil {
		_ = dec.Delete()
		return nil, err
	}

	return &flacDecoder{
		dec:      dec,
		bps:      bps,
		channels: channels,
		format: AudioFormat{
			SampleRate: rate,
			Channels:   channels,
			Subtype:    subtype,
			Envelope:   EnvelopeFLAC,
		},
	}, nil
}

func (d *flacDecoder) Format() AudioFormat { return d.format }

func (d *flacDecoder) TotalFrames() int64 { return d.dec.TotalSamples() }

func (d *flacDecoder) ReadFrames(out []float64) (int, error) {
	channels := d.channels
	wantFrames := len(out) / channels
	if wantFrames == 0 {
		return 0, nil
	}

	bytesPerSample := d.bps / 8
	needed := wantFrames * channels * bytesPerSample
	if cap(d.pcmBuf) < needed {
		d.pcmBuf = make([]byte, needed)
	}
	d.pcmBuf = d.pcmBuf[:needed]

	n, err := d.dec.DecodeSamples(wantFrames, d.pcmBuf)
	if err != nil && err != io.EOF {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}

	peak := float64(int64(1) << (uint(d.bps) - 1))
	for i := 0; i < n*channels; i++ {
		off := i * bytesPerSample
		var v int32
		switch bytesPerSample {
		case 2:
			v = int32(int16(uint16(d.pcmBuf[off]) | uint16(d.pcmBuf[off+1])<<8))
		case 3:
			v = int32(uint32(d.pcmBuf[off]) | uint32(d.pcmBuf[off+1])<<8 | uint32(d.pcmBuf[off+2])<<16)
			if v&0x800000 != 0 {
				v |= ^0xFFFFFF
			}
		case 4:
			v = int32(uint32(d.pcmBuf[off]) | uint32(d.pcmBuf[off+1])<<8 | uint32(d.pcmBuf[off+2])<<16 | uint32(d.pcmBuf[off+3])<<24)
		}
		out[i] = float64(v) / peak
	}
	if err == io.EOF {
		return n, nil
	}
	return n, nil
}

func (d *flacDecoder) Close() error {
	if err := d.dec.Close(); err != nil {
		return err
	}
	return d.dec.Delete()
}

// flacEncoder wraps drgolem/go-flac's FlacEncoder in stream mode. The
// container header that goes into the output is a splice built by
// internal/handler from the source file's own metadata blocks, not the
// encoder's native header: InitStream() is drained once and its bytes
// discarded before any caller-visible WriteFrames call, matching the
// handler's write-enabled gate.
type flacEncoder struct {
	enc      *goflac.FlacEncoder
	sink     Sink
	channels int
	bps      int
	pcmBuf   []int32
	closed   bool
}

func newFlacEncoder(format AudioFormat, totalFrames int64, sink Sink) (Encoder, error) {
	bitDepth := format.Subtype.BitDepth()
	if bitDepth == 0 {
		return nil, fmt.Errorf("codec: unsupported FLAC output subtype")
	}

	enc, err := goflac.NewFlacEncoder(format.SampleRate, format.Channels, bitDepth)
	if err != nil {
		return nil, err
	}
	if totalFrames >= 0 {
		if err := enc.SetTotalSamplesEstimate(totalFrames); err != nil {
			return nil, err
		}
	}
	if err := enc.InitStream(); err != nil {
		return nil, err
	}
	// Discard the encoder's own header; the caller splices its own.
	_ = enc.TakeBytes()

	return &flacEncoder{
		enc:      enc,
		sink:     sink,
		channels: format.Channels,
		bps:      bitDepth,
	}, nil
}

func (e *flacEncoder) WriteFrames(frames []float64) error {
	numSamples := len(frames) / e.channels
	if numSamples == 0 {
		return nil
	}

	if cap(e.pcmBuf) < len(frames) {
		e.pcmBuf = make([]int32, len(frames))
	}
	e.pcmBuf = e.pcmBuf[:len(frames)]

	peak := float64(int64(1) << (uint(e.bps) - 1))
	for i, s := range frames {
		v := int64(s * peak)
		if v > int64(peak)-1 {
			v = int64(peak) - 1
		}
		if v < -int64(peak) {
			v = -int64(peak)
		}
		e.pcmBuf[i] = int32(v)
	}

	if err := e.enc.ProcessInterleaved(e.pcmBuf, numSamples); err != nil {
		return err
	}

	if b := e.enc.TakeBytes(); len(b) > 0 {
		if _, err := e.sink.Append(b); err != nil {
			return err
		}
	}
	return nil
}

func (e *flacEncoder) Finish() error {
	if err := e.enc.Finish(); err != nil {
		return err
	}
	if b := e.enc.TakeBytes(); len(b) > 0 {
		if _, err := e.sink.Append(b); err != nil {
			return err
		}
	}
	return e.Close()
}

// Close releases the encoder's C resources (FLAC__StreamEncoder and its
// cgo.Handle). Finish already calls it on natural stream exhaustion;
// Close is idempotent so a caller tearing down early (or tearing down
// after Finish already ran) never double-releases.
func (e *flacEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.enc.Close()
	return nil
}
