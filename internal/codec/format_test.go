package codec

import "testing"

func TestAudioFormat_FilterConfigName(t *testing.T) {
	tests := []struct {
		name   string
		format AudioFormat
		want   string
	}{
		{"44.1kHz 16-bit stereo", AudioFormat{SampleRate: 44100, Channels: 2, Subtype: SubtypePCM16}, "filter-44100-16-2.conf"},
		{"48kHz float mono", AudioFormat{SampleRate: 48000, Channels: 1, Subtype: SubtypeFloat32}, "filter-48000-32-1.conf"},
		{"96kHz 24-bit 6ch", AudioFormat{SampleRate: 96000, Channels: 6, Subtype: SubtypePCM24}, "filter-96000-24-6.conf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.format.FilterConfigName(); got != tt.want {
				t.Errorf("FilterConfigName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubtype_BitDepth(t *testing.T) {
	if SubtypePCM16.BitDepth() != 16 {
		t.Errorf("PCM16 bit depth = %d, want 16", SubtypePCM16.BitDepth())
	}
	if SubtypeUnknown.BitDepth() != 0 {
		t.Errorf("unknown subtype bit depth = %d, want 0", SubtypeUnknown.BitDepth())
	}
}
