package convolver

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cwbudde/algo-dsp/dsp/conv"
)

const (
	defaultMinBlockOrder = 6  // 64-sample latency
	defaultMaxBlockOrder = 13 // 8192-sample max partition
)

// planMu is the process-wide mutex required around convolver
// construction: algo-dsp's FFT planner is not reentrant, so every
// *conv.PartitionedConvolution build across every Engine in the process
// must be serialized behind this single lock. It is deliberately
// package-level and disjoint from internal/cache's mutex.
var planMu sync.Mutex

// Engine is the concrete partitioned-FIR convolver SoundProcessor drives.
// It owns one *conv.PartitionedConvolution per route, accumulating
// route outputs into shared output-channel planes.
type Engine struct {
	fragmentSize   int
	inputChannels  int
	outputChannels int

	routes []compiledRoute
}

type compiledRoute struct {
	inputChannel  int
	outputChannel int
	gain          float64
	conv          *conv.PartitionedConvolution
	scratch       []float64
}

// Load builds an Engine from the filter config at path. fragmentOverride,
// when non-zero, caps the fragment size that the loaded config may
// request (EngineConfig.FragmentSizeOverride). Load holds planMu for
// its entire duration.
func Load(path string, fragmentOverride int) (*Engine, time.Time, error) {
	planMu.Lock()
	defer planMu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, err
	}

	cfg, err := readFilterConfig(path)
	if err != nil {
		return nil, time.Time{}, err
	}

	fragmentSize := cfg.FragmentSize
	if fragmentOverride > 0 && fragmentOverride < fragmentSize {
		fragmentSize = fragmentOverride
	}

	routes := make([]compiledRoute, 0, len(cfg.Routes))
	for _, r := range cfg.Routes {
		kernel, err := loadImpulseResponse(r.ImpulseResponsePath)
		if err != nil {
			return nil, time.Time{}, err
		}

		minOrder, maxOrder := r.MinBlockOrder, r.MaxBlockOrder
		if minOrder <= 0 {
			minOrder = defaultMinBlockOrder
		}
		if maxOrder <= 0 {
			maxOrder = defaultMaxBlockOrder
		}

		pc, err := conv.NewPartitionedConvolution(kernel, minOrder, maxOrder)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("convolver: building route %s -> %d: %w", r.ImpulseResponsePath, r.OutputChannel, err)
		}

		gain := r.Gain
		if gain == 0 {
			gain = 1.0
		}

		routes = append(routes, compiledRoute{
			inputChannel:  r.InputChannel,
			outputChannel: r.OutputChannel,
			gain:          gain,
			conv:          pc,
			scratch:       make([]float64, fragmentSize),
		})
	}

	e := &Engine{
		fragmentSize:   fragmentSize,
		inputChannels:  cfg.InputChannels,
		outputChannels: cfg.OutputChannels,
		routes:         routes,
	}
	return e, info.ModTime(), nil
}

// FragmentSize, InputChannels, OutputChannels report the engine's
// negotiated dimensions, needed by SoundProcessor to size its scratch
// buffer and cursors.
func (e *Engine) FragmentSize() int    { return e.fragmentSize }
func (e *Engine) InputChannels() int   { return e.inputChannels }
func (e *Engine) OutputChannels() int  { return e.outputChannels }

// ProcessFragment convolves inputPlanes (InputChannels() slices of
// FragmentSize() samples each) and writes the result into outputPlanes
// (OutputChannels() slices of FragmentSize() samples each). The output
// planes are cleared here before the routes accumulate into them.
func (e *Engine) ProcessFragment(inputPlanes, outputPlanes [][]float64) error {
	if len(inputPlanes) != e.inputChannels {
		return fmt.Errorf("convolver: expected %d input planes, got %d", e.inputChannels, len(inputPlanes))
	}
	if len(outputPlanes) != e.outputChannels {
		return fmt.Errorf("convolver: expected %d output planes, got %d", e.outputChannels, len(outputPlanes))
	}

	for ch := range outputPlanes {
		clear(outputPlanes[ch])
	}

	for _, r := range e.routes {
		if err := r.conv.ProcessBlock(inputPlanes[r.inputChannel], r.scratch); err != nil {
			return fmt.Errorf("convolver: route %d -> %d: %w", r.inputChannel, r.outputChannel, err)
		}
		out := outputPlanes[r.outputChannel]
		for i, v := range r.scratch {
			out[i] += v * r.gain
		}
	}
	return nil
}

// Reset clears every route's convolver state, ready for a fresh stream.
func (e *Engine) Reset() {
	for _, r := range e.routes {
		r.conv.Reset()
	}
}
