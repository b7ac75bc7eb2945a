// Package convolver is the seam between the engine and the partitioned FIR
// convolution library: a black box that consumes and produces per-channel
// float blocks of a fixed fragment size. It is concretely backed by
// github.com/cwbudde/algo-dsp/dsp/conv's non-uniformly partitioned
// overlap-add convolver (UPOLA).
package convolver

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// ConvolverRoute is one row of a filter config's per-channel routing
// table: convolve InputChannel's samples with ImpulseResponsePath, scale
// by Gain, and accumulate into OutputChannel.
type ConvolverRoute struct {
	InputChannel        int     `yaml:"input_channel"`
	OutputChannel       int     `yaml:"output_channel"`
	ImpulseResponsePath string  `yaml:"impulse_response"`
	Gain                float64 `yaml:"gain"`
	MinBlockOrder       int     `yaml:"min_block_order"`
	MaxBlockOrder       int     `yaml:"max_block_order"`
}

// FilterConfig is the parsed form of a filter-<rate>-<bits>-<channels>.conf
// file: the fragment size the routes were designed around, plus the route
// table itself.
type FilterConfig struct {
	FragmentSize   int              `yaml:"fragment_size"`
	InputChannels  int              `yaml:"input_channels"`
	OutputChannels int              `yaml:"output_channels"`
	Routes         []ConvolverRoute `yaml:"routes"`
}

func readFilterConfig(path string) (*FilterConfig, error) {
	// #nosec G304 -- path is composed by the caller from a configured directory and the sniffed AudioFormat.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg FilterConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("convolver: malformed filter config %s: %w", path, err)
	}

	if cfg.FragmentSize <= 0 {
		return nil, fmt.Errorf("convolver: filter config %s has no positive fragment_size", path)
	}
	if len(cfg.Routes) == 0 {
		return nil, fmt.Errorf("convolver: filter config %s declares no routes", path)
	}
	for i, r := range cfg.Routes {
		if r.InputChannel < 0 || r.InputChannel >= cfg.InputChannels {
			return nil, fmt.Errorf("convolver: route %d input_channel %d out of range [0,%d)", i, r.InputChannel, cfg.InputChannels)
		}
		if r.OutputChannel < 0 || r.OutputChannel >= cfg.OutputChannels {
			return nil, fmt.Errorf("convolver: route %d output_channel %d out of range [0,%d)", i, r.OutputChannel, cfg.OutputChannels)
		}
		if r.ImpulseResponsePath == "" {
			return nil, fmt.Errorf("convolver: route %d has no impulse_response", i)
		}
	}

	return &cfg, nil
}
