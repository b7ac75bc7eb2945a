// Package soundproc implements SoundProcessor, the fragment-based
// partitioned-convolution stage that sits between a sound decoder and a
// sound encoder: fill a fragment of interleaved input, run it through the
// configured convolver, drain a fragment of interleaved output.
package soundproc

import (
	"fmt"
	"time"

	"github.com/kjhall/convolvefs/internal/codec"
	"github.com/kjhall/convolvefs/internal/convolver"
)

// outCursorNeedsProcess is the sentinel value for out meaning "no
// processed output is available; Process() must run before
// WriteProcessed can drain anything".
const outCursorNeedsProcess = -1

// SoundProcessor owns a configured convolver instance, a fixed fragment
// size F, and an interleaved float scratch buffer shared by both the
// fill and drain halves of its cursor protocol.
type SoundProcessor struct {
	engine *convolver.Engine

	fragmentSize int
	inChannels   int
	outChannels  int

	scratch []float64

	inputPlanes  [][]float64
	outputPlanes [][]float64

	in  int // fill cursor, in [0, F]
	out int // drain cursor, in {-1} union [0, F]

	peak float64

	configPath    string
	configModTime time.Time
}

// Create builds a SoundProcessor from the filter config at configPath,
// validating that the config's input channel count matches channels (the
// channel count of the file actually being processed). Returns nil on
// any load failure or channel mismatch; the handler, which calls Create
// lazily on its first producer step, then flags itself failed.
//
// The config load (convolver.Load) runs under internal/convolver's
// process-wide planning mutex; steady-state Process() is not subject to
// it.
func Create(configPath string, channels int, fragmentOverride int) *SoundProcessor {
	engine, modTime, err := convolver.Load(configPath, fragmentOverride)
	if err != nil {
		return nil
	}
	if engine.InputChannels() != channels {
		return nil
	}

	f := engine.FragmentSize()
	ci, co := engine.InputChannels(), engine.OutputChannels()
	maxCh := ci
	if co > maxCh {
		maxCh = co
	}

	inputPlanes := make([][]float64, ci)
	outputPlanes := make([][]float64, co)
	for i := range inputPlanes {
		inputPlanes[i] = make([]float64, f)
	}
	for i := range outputPlanes {
		outputPlanes[i] = make([]float64, f)
	}

	return &SoundProcessor{
		engine:        engine,
		fragmentSize:  f,
		inChannels:    ci,
		outChannels:   co,
		scratch:       make([]float64, f*maxCh),
		inputPlanes:   inputPlanes,
		outputPlanes:  outputPlanes,
		in:            0,
		out:           outCursorNeedsProcess,
		configPath:    configPath,
		configModTime: modTime,
	}
}

func (p *SoundProcessor) FragmentSize() int   { return p.fragmentSize }
func (p *SoundProcessor) InputChannels() int  { return p.inChannels }
func (p *SoundProcessor) OutputChannels() int { return p.outChannels }
func (p *SoundProcessor) PeakAmplitude() float64 { return p.peak }

// FillBuffer reads up to F-in interleaved frames directly from dec into
// the scratch buffer at offset in*Ci, advances in, and invalidates any
// pending processed output (sets out to the needs-process sentinel).
// Precondition: in < F.
func (p *SoundProcessor) FillBuffer(dec codec.Decoder) (int, error) {
	if p.in >= p.fragmentSize {
		panic("soundproc: FillBuffer called with in == F")
	}

	want := p.fragmentSize - p.in
	offset := p.in * p.inChannels
	region := p.scratch[offset : offset+want*p.inChannels]

	n, err := dec.ReadFrames(region)
	p.in += n
	p.out = outCursorNeedsProcess
	return n, err
}

// WriteProcessed writes n interleaved frames of processed output into
// enc, running Process() first if no processed output is pending.
// Precondition: n <= F - out (after any implicit Process()).
func (p *SoundProcessor) WriteProcessed(enc codec.Encoder, n int) error {
	if p.out == outCursorNeedsProcess {
		p.Process()
	}
	if p.out+n > p.fragmentSize {
		panic("soundproc: WriteProcessed would overrun the fragment")
	}

	offset := p.out * p.outChannels
	frames := p.scratch[offset : offset+n*p.outChannels]
	if err := enc.WriteFrames(frames); err != nil {
		return err
	}

	p.out += n
	if p.out == p.fragmentSize {
		p.in = 0
	}
	return nil
}

// Process zero-fills any unfilled tail of the fragment, deinterleaves
// the scratch into the convolver's per-channel input planes, invokes the
// convolver, and re-interleaves the Co output planes back into the
// scratch. Observes the running peak absolute output sample value.
func (p *SoundProcessor) Process() {
	if p.in < p.fragmentSize {
		tailStart := p.in * p.inChannels
		for i := tailStart; i < p.fragmentSize*p.inChannels; i++ {
			p.scratch[i] = 0
		}
	}

	for ch := 0; ch < p.inChannels; ch++ {
		plane := p.inputPlanes[ch]
		for i := 0; i < p.in; i++ {
			plane[i] = p.scratch[i*p.inChannels+ch]
		}
		for i := p.in; i < p.fragmentSize; i++ {
			plane[i] = 0
		}
	}

	if err := p.engine.ProcessFragment(p.inputPlanes, p.outputPlanes); err != nil {
		// The convolver boundary is assumed infallible once constructed:
		// a route failure here means malformed state that Create should
		// have rejected, so fail loudly rather than serve silence that
		// looks like valid audio.
		panic(fmt.Sprintf("soundproc: Process: %v", err))
	}

	for ch := 0; ch < p.outChannels; ch++ {
		plane := p.outputPlanes[ch]
		for i := 0; i < p.fragmentSize; i++ {
			v := plane[i]
			p.scratch[i*p.outChannels+ch] = v
			if v < 0 {
				v = -v
			}
			if v > p.peak {
				p.peak = v
			}
		}
	}

	p.out = 0
}

// Reset resets the convolver, the fill/drain cursors, and the peak
// observation, ready to process a fresh stream.
func (p *SoundProcessor) Reset() {
	p.engine.Reset()
	p.in = 0
	p.out = outCursorNeedsProcess
	p.peak = 0
}

// ConfigStillUpToDate reports whether the filter config's modification
// time still matches the one captured at construction. This is an
// extension point for a future processor pool; the handler path
// deliberately does not call it.
func (p *SoundProcessor) ConfigStillUpToDate() bool {
	info, err := statConfig(p.configPath)
	if err != nil {
		return false
	}
	return info.ModTime().Equal(p.configModTime)
}
