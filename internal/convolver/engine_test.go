package convolver

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// writeMonoWavFixture writes a minimal mono 16-bit PCM WAV file so
// loadImpulseResponse has something real to decode.
func writeMonoWavFixture(t *testing.T, path string, samples []float64) {
	t.Helper()
	buf := make([]byte, 44+len(samples)*2)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(samples)*2))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], 44100)
	binary.LittleEndian.PutUint32(buf[28:32], 44100*2)
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(samples)*2))
	for i, s := range samples {
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(v))
	}
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		t.Fatalf("writing WAV fixture: %v", err)
	}
}

func peakAbs(xs []float64) float64 {
	var p float64
	for _, x := range xs {
		if a := math.Abs(x); a > p {
			p = a
		}
	}
	return p
}

func TestEngine_SilenceAfterImpulseDecaysToZero(t *testing.T) {
	dir := t.TempDir()
	irPath := filepath.Join(dir, "ir.wav")

	const kernelLen = 48
	kernel := make([]float64, kernelLen)
	for i := range kernel {
		kernel[i] = 1.0 / float64(i+1)
	}
	writeMonoWavFixture(t, irPath, kernel)

	const fragmentSize = 16
	configPath := filepath.Join(dir, "filter.conf")
	body := "fragment_size: " + strconv.Itoa(fragmentSize) + "\n" +
		"input_channels: 1\n" +
		"output_channels: 1\n" +
		"routes:\n" +
		"  - input_channel: 0\n" +
		"    output_channel: 0\n" +
		"    impulse_response: " + irPath + "\n" +
		"    gain: 1.0\n"
	if err := os.WriteFile(configPath, []byte(body), 0o600); err != nil {
		t.Fatalf("writing filter config: %v", err)
	}

	engine, _, err := Load(configPath, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	in := [][]float64{make([]float64, fragmentSize)}
	out := [][]float64{make([]float64, fragmentSize)}

	in[0][0] = 1.0
	if err := engine.ProcessFragment(in, out); err != nil {
		t.Fatalf("ProcessFragment (impulse): %v", err)
	}

	fragmentsToDrain := kernelLen/fragmentSize + 4
	for i := 0; i < fragmentsToDrain; i++ {
		clear(in[0])
		if err := engine.ProcessFragment(in, out); err != nil {
			t.Fatalf("ProcessFragment (silence %d): %v", i, err)
		}
	}

	if got := peakAbs(out[0]); got > 1e-6 {
		t.Errorf("expected decayed output near zero after draining tail, got peak %v", got)
	}
}
