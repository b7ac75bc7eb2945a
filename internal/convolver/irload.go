package convolver

import (
	"fmt"
	"io"
	"os"

	"github.com/kjhall/convolvefs/internal/codec"
)

// loadImpulseResponse reads a mono or interleaved-multichannel WAV file
// and returns channel 0's samples as a float64 kernel, per spec §6's
// framing of the convolution config's impulse-response paths.
func loadImpulseResponse(path string) ([]float64, error) {
	// #nosec G304 -- path originates from a filter config under the configured filter directory.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("convolver: opening impulse response %s: %w", path, err)
	}
	defer f.Close()

	dec, err := codec.OpenDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("convolver: decoding impulse response %s: %w", path, err)
	}
	defer dec.Close()

	format := dec.Format()
	const chunkFrames = 4096
	chunk := make([]float64, chunkFrames*format.Channels)

	var kernel []float64
	for {
		n, err := dec.ReadFrames(chunk)
		for i := 0; i < n; i++ {
			kernel = append(kernel, chunk[i*format.Channels])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("convolver: reading impulse response %s: %w", path, err)
		}
	}

	if len(kernel) == 0 {
		return nil, fmt.Errorf("convolver: impulse response %s is empty", path)
	}
	return kernel, nil
}
