package handler

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/kjhall/convolvefs/internal/codec"
	"github.com/kjhall/convolvefs/internal/convbuf"
	"github.com/kjhall/convolvefs/internal/logger"
	"github.com/kjhall/convolvefs/internal/soundproc"
)

// defaultSizeEstimateThreshold and defaultSizeEstimatePad mirror
// EngineConfig's documented defaults, used when Config leaves either
// field at its zero value (e.g. callers that predate the config
// threading, or tests that only care about other fields).
const (
	defaultSizeEstimateThreshold = 0.4
	defaultSizeEstimatePad       = 16384
)

// Config carries everything Create needs beyond the open descriptor:
// where filter-*.conf files live, the optional fragment-size clamp, and
// the dynamic size-estimate constants from EngineConfig.
type Config struct {
	ConfigDir             string
	FragmentOverride      int
	SizeEstimateThreshold float64 // fraction of original size; 0 means defaultSizeEstimateThreshold
	SizeEstimatePad       int64   // bytes; 0 means defaultSizeEstimatePad
	Log                   logger.Logger
}

// outputFormatFor chooses the output container and subtype for a given
// input format: OGG always re-encodes to 16-bit PCM FLAC; WAV at 16-bit
// PCM stays WAV/PCM16; WAV at any other subtype becomes WAV/float (the
// 24-bit PCM WAV encode path is deliberately avoided as unreliable);
// everything else (including FLAC) keeps its own envelope and subtype.
func outputFormatFor(in codec.AudioFormat) codec.AudioFormat {
	out := in
	switch in.Envelope {
	case codec.EnvelopeOGG:
		out.Envelope = codec.EnvelopeFLAC
		out.Subtype = codec.SubtypePCM16
	case codec.EnvelopeWAV:
		if in.Subtype != codec.SubtypePCM16 {
			out.Subtype = codec.SubtypeFloat32
		}
	}
	return out
}

// SndFileHandler decodes a sound file, runs it through a SoundProcessor,
// re-encodes the result, and serves the output bytes through a
// ConversionBuffer.
type SndFileHandler struct {
	fd  *os.File
	dec codec.Decoder
	enc codec.Encoder

	configPath string
	inFormat   codec.AudioFormat
	outFormat  codec.AudioFormat

	cb *convbuf.ConversionBuffer

	mu              sync.Mutex
	proc            *soundproc.SoundProcessor
	fragmentOverride int

	totalFrames     int64 // T
	framesRemaining int64 // R

	originalStat          os.FileInfo
	sizeEstimateThreshold int64
	sizeEstimatePad       int64
	reportedSize          int64

	errorFlag bool

	log logger.Logger
}

// Create opens fd as a sound file, chooses the output format, wires up
// the ConversionBuffer and encoder, and splices or flushes the output
// header. It returns ErrNotASoundFile if the codec library cannot open
// fd at all, and ErrNoFilterConfigured if no filter-*.conf exists for
// the file's (rate,bits,channels) triple — both signal the caller to
// fall back to a PassThroughHandler.
func Create(fd *os.File, cfg Config) (*SndFileHandler, error) {
	log := logger.OrNop(cfg.Log)

	dec, err := codec.OpenDecoder(fd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotASoundFile, err)
	}

	inFormat := dec.Format()
	configPath := filepath.Join(cfg.ConfigDir, inFormat.FilterConfigName())
	if _, err := os.Stat(configPath); err != nil {
		_ = dec.Close()
		return nil, fmt.Errorf("%w: %v", ErrNoFilterConfigured, err)
	}

	stat, err := fd.Stat()
	if err != nil {
		_ = dec.Close()
		return nil, err
	}

	thresholdFraction := cfg.SizeEstimateThreshold
	if thresholdFraction == 0 {
		thresholdFraction = defaultSizeEstimateThreshold
	}
	pad := cfg.SizeEstimatePad
	if pad == 0 {
		pad = defaultSizeEstimatePad
	}

	h := &SndFileHandler{
		fd:                    fd,
		dec:                   dec,
		configPath:            configPath,
		inFormat:              inFormat,
		outFormat:             outputFormatFor(inFormat),
		fragmentOverride:      cfg.FragmentOverride,
		totalFrames:           dec.TotalFrames(),
		originalStat:          stat,
		sizeEstimateThreshold: int64(thresholdFraction * float64(stat.Size())),
		sizeEstimatePad:       pad,
		reportedSize:          stat.Size(),
		log:                   log,
	}
	h.framesRemaining = h.totalFrames

	h.cb = convbuf.New(h)

	// FLAC frames are routed through the gated SndfileWriteCallback, the
	// mechanism convbuf uses for suppressing a codec library's own header
	// emission: writeHeader splices a hand-crafted header via
	// the ungated Append and only then enables the gate, so any bytes the
	// encoder produced before that point (already discarded inside
	// internal/codec's FLAC adapter) could never have reached the buffer
	// even if the discard step above it were removed. WAV's header is
	// hand-written directly via Append at construction, since there is no
	// library-owned header to suppress for it.
	var sink codec.Sink = h.cb
	if h.outFormat.Envelope == codec.EnvelopeFLAC {
		sink = gatedSink{cb: h.cb}
	}

	tags := sourceTagsForOutput(fd, h.outFormat)
	enc, err := codec.NewEncoder(h.outFormat, h.totalFrames, sink, tags)
	if err != nil {
		_ = dec.Close()
		h.errorFlag = true
		return nil, fmt.Errorf("handler: opening encoder: %w", err)
	}
	h.enc = enc

	if err := h.writeHeader(); err != nil {
		h.errorFlag = true
		h.log.Error("handler: writing output header for %s: %v", fd.Name(), err)
	}

	return h, nil
}

// sourceTagsForOutput best-effort extracts a WAV LIST/INFO chunk from
// fd to carry into a WAV output header. A FLAC output's tags come along
// for free through spliceFlacHeader, which copies the source's
// VORBIS_COMMENT metadata block verbatim, so this only applies when the
// chosen output container is itself WAV. Any read failure is treated as
// "no tags" rather than failing Create: losing tags is not worth losing
// the file.
func sourceTagsForOutput(fd *os.File, outFormat codec.AudioFormat) []byte {
	if outFormat.Envelope != codec.EnvelopeWAV {
		return nil
	}

	pos, err := fd.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil
	}
	defer fd.Seek(pos, io.SeekStart)

	tags, err := codec.ExtractInfoChunk(fd)
	if err != nil {
		return nil
	}
	return tags
}

// writeHeader handles the FLAC case by splicing the source's metadata
// chain (zeroing STREAMINFO's MD5 and dropping SEEKTABLE) or, for every
// other envelope, simply marks the header complete once the encoder has
// written its own (the WAV encoder writes its header synchronously at
// construction; see internal/codec/wav.go).
func (h *SndFileHandler) writeHeader() error {
	if h.inFormat.Envelope != codec.EnvelopeFLAC {
		h.cb.EnableSndfileWrites()
		h.cb.HeaderFinished()
		return nil
	}

	src, err := os.Open(h.fd.Name())
	if err != nil {
		return err
	}
	defer src.Close()

	if err := spliceFlacHeader(src, h.cb.Append); err != nil {
		return err
	}

	h.cb.EnableSndfileWrites()
	h.cb.HeaderFinished()
	return nil
}

// Read short-circuits to an error when the handler is flagged failed,
// serves zeroes for the end-of-file skip shortcut (a read that starts
// past the bytes produced so far and ends exactly at the reported size),
// and otherwise delegates to the ConversionBuffer, which pulls more
// audio on demand.
func (h *SndFileHandler) Read(buf []byte, offset int64) (int, error) {
	h.mu.Lock()
	failed := h.errorFlag
	h.mu.Unlock()
	if failed {
		return 0, fmt.Errorf("handler: %s is in error state", h.fd.Name())
	}

	reportedSize := h.reportedSizeAtomic()
	if offset > h.cb.FileSize() && offset+int64(len(buf)) == reportedSize {
		for i := range buf {
			buf[i] = 0
		}
		return len(buf), nil
	}

	return h.cb.Read(buf, offset)
}

// AddMoreSoundData is the convbuf.SoundSource implementation, the
// producer step that fills more of the output. It lazily creates the
// SoundProcessor on first call, reads up to F frames from the decoder
// (zero-filling any short tail before convolving), and writes as many
// convolved frames to the encoder as were read. It produces nothing once
// the handler is flagged failed or closed.
func (h *SndFileHandler) AddMoreSoundData() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.framesRemaining == 0 || h.errorFlag {
		return false
	}

	if h.proc == nil {
		h.proc = soundproc.Create(h.configPath, h.inFormat.Channels, h.fragmentOverride)
		if h.proc == nil {
			h.errorFlag = true
			h.log.Error("handler: %s: SoundProcessor.Create failed after successful filter-config stat", h.fd.Name())
			return false
		}
	}

	n, err := h.proc.FillBuffer(h.dec)
	if err != nil && err != io.EOF {
		h.errorFlag = true
		h.log.Error("handler: %s: decode error: %v", h.fd.Name(), err)
		h.framesRemaining = 0
		return false
	}

	if err := h.proc.WriteProcessed(h.enc, n); err != nil {
		h.errorFlag = true
		h.log.Error("handler: %s: encode error: %v", h.fd.Name(), err)
		h.framesRemaining = 0
		return false
	}

	h.framesRemaining -= int64(n)
	if h.framesRemaining <= 0 {
		h.framesRemaining = 0
		if err := h.enc.Finish(); err != nil {
			h.log.Error("handler: %s: finishing encoder: %v", h.fd.Name(), err)
		}
	}

	h.updateReportedSize()
	return h.framesRemaining != 0
}

// updateReportedSize computes the dynamic size estimate. Once the output
// has grown past the size-estimate threshold and some frames have been
// produced, report est = (T / (T-R)) * FileSize() + 16384, monotonically
// maxed against the previous reported size. The formula conflates
// input-frame progress with output-byte progress and is known to be
// optimistic for variable-bitrate outputs; kept as-is rather than
// "fixed", since over-reporting is less harmful to readers than
// under-reporting.
func (h *SndFileHandler) updateReportedSize() {
	fileSize := h.cb.FileSize()
	if fileSize <= h.sizeEstimateThreshold {
		return
	}
	framesDone := h.totalFrames - h.framesRemaining
	if framesDone <= 0 {
		return
	}

	est := int64((float64(h.totalFrames)/float64(framesDone))*float64(fileSize)) + h.sizeEstimatePad
	if est > h.reportedSize {
		h.reportedSize = est
	}
}

func (h *SndFileHandler) reportedSizeAtomic() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reportedSize
}

// Stat reports the originally-opened file's stat, with its size field
// overridden by the monotonically non-decreasing dynamic estimate.
func (h *SndFileHandler) Stat() (os.FileInfo, error) {
	return sizeOverrideFileInfo{FileInfo: h.originalStat, size: h.reportedSizeAtomic()}, nil
}

// Close disables further encoder writes, closes the decoder, encoder,
// and descriptor. The processor and conversion buffer are released with
// the handler itself. Closing the encoder here is required even when it
// already reached Finish (e.g. a FLAC encoder releases its cgo
// resources in Close, not Finish) and is the only release path at all
// when the stream is torn down before reaching end of input.
func (h *SndFileHandler) Close() error {
	h.mu.Lock()
	h.errorFlag = true
	h.mu.Unlock()

	if err := h.dec.Close(); err != nil {
		h.log.Warning("handler: %s: closing decoder: %v", h.fd.Name(), err)
	}
	if h.enc != nil {
		if err := h.enc.Close(); err != nil {
			h.log.Warning("handler: %s: closing encoder: %v", h.fd.Name(), err)
		}
	}
	return h.fd.Close()
}

// sizeOverrideFileInfo wraps an os.FileInfo, replacing only Size().
type sizeOverrideFileInfo struct {
	os.FileInfo
	size int64
}

func (s sizeOverrideFileInfo) Size() int64 { return s.size }

// gatedSink routes encoder output through ConversionBuffer's
// sndfile_writes_enabled gate rather than appending unconditionally.
type gatedSink struct {
	cb *convbuf.ConversionBuffer
}

func (g gatedSink) Append(p []byte) (int, error) {
	return g.cb.SndfileWriteCallback(p)
}
