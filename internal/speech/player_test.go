package speech

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

// buildWAV assembles a minimal RIFF/WAVE file. extra chunks are inserted
// between "fmt " and "data"; dataSize overrides the declared data length
// when non-zero.
func buildWAV(rate, channels, bits int, pcm []byte, dataSize uint32, extra ...[]byte) []byte {
	le16 := func(v int) []byte { return binary.LittleEndian.AppendUint16(nil, uint16(v)) }
	le32 := func(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }

	var b []byte
	b = append(b, "RIFF"...)
	b = append(b, le32(0xFFFFFFFF)...)
	b = append(b, "WAVE"...)

	b = append(b, "fmt "...)
	b = append(b, le32(16)...)
	b = append(b, le16(1)...)
	b = append(b, le16(channels)...)
	b = append(b, le32(uint32(rate))...)
	b = append(b, le32(uint32(rate*channels*bits/8))...)
	b = append(b, le16(channels*bits/8)...)
	b = append(b, le16(bits)...)

	for _, c := range extra {
		b = append(b, c...)
	}

	if dataSize == 0 {
		dataSize = uint32(len(pcm))
	}
	b = append(b, "data"...)
	b = append(b, le32(dataSize)...)
	return append(b, pcm...)
}

func TestParseWAV(t *testing.T) {
	pcm := make([]byte, SampleRate*2/10) // 100 ms
	clip, err := parseWAV(buildWAV(SampleRate, 1, 16, pcm, 0))
	if err != nil {
		t.Fatalf("parseWAV: %v", err)
	}
	if len(clip.pcm) != len(pcm) {
		t.Errorf("pcm = %d bytes, want %d", len(clip.pcm), len(pcm))
	}
	if err := clip.matches(SampleRate, ChannelCount, BitDepth); err != nil {
		t.Errorf("matches: %v", err)
	}
	if got := clip.duration(); got != 100*time.Millisecond {
		t.Errorf("duration = %s, want 100ms", got)
	}
}

func TestParseWAVStreamedSize(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	list := append([]byte("LIST"), 3, 0, 0, 0, 'a', 'b', 'c', 0) // odd size, padded
	clip, err := parseWAV(buildWAV(SampleRate, 1, 16, pcm, 0xFFFFFFFF, list))
	if err != nil {
		t.Fatalf("parseWAV: %v", err)
	}
	if string(clip.pcm) != string(pcm) {
		t.Errorf("pcm = %v, want %v", clip.pcm, pcm)
	}
}

func TestParseWAVRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not riff", []byte("OggS0000WAVEfmt ")},
		{"no data", buildWAV(SampleRate, 1, 16, nil, 0)[:36]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseWAV(tt.data); !errors.Is(err, ErrUnsupportedAudio) {
				t.Errorf("err = %v, want ErrUnsupportedAudio", err)
			}
		})
	}
}

func TestWAVFormatMismatch(t *testing.T) {
	clip, err := parseWAV(buildWAV(44100, 2, 16, []byte{0, 0, 0, 0}, 0))
	if err != nil {
		t.Fatalf("parseWAV: %v", err)
	}
	if err := clip.matches(SampleRate, ChannelCount, BitDepth); !errors.Is(err, ErrUnsupportedAudio) {
		t.Errorf("matches = %v, want ErrUnsupportedAudio", err)
	}
}
