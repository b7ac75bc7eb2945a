package handler

import (
	"bytes"
	"testing"
)

func block(last bool, blockType byte, payload []byte) []byte {
	length := len(payload)
	hdr := []byte{
		flacBlockHeaderByte(last, blockType),
		byte(length >> 16),
		byte(length >> 8),
		byte(length),
	}
	return append(hdr, payload...)
}

func streamInfoPayload(md5Byte byte) []byte {
	p := make([]byte, 34)
	for i := range p[:18] {
		p[i] = byte(i + 1)
	}
	for i := 18; i < 34; i++ {
		p[i] = md5Byte
	}
	return p
}

func splice(t *testing.T, src []byte) []byte {
	t.Helper()
	var out bytes.Buffer
	if err := spliceFlacHeader(bytes.NewReader(src), func(p []byte) (int, error) {
		return out.Write(p)
	}); err != nil {
		t.Fatalf("spliceFlacHeader: %v", err)
	}
	return out.Bytes()
}

func TestSpliceFlacHeader_ZeroesMD5(t *testing.T) {
	var src bytes.Buffer
	src.WriteString("fLaC")
	src.Write(block(true, flacBlockTypeStreamInfo, streamInfoPayload(0xAB)))

	out := splice(t, src.Bytes())

	if !bytes.HasPrefix(out, []byte("fLaC")) {
		t.Fatalf("output does not start with fLaC marker: %x", out[:4])
	}

	streamInfo := out[8:42]
	for i, b := range streamInfo[18:34] {
		if b != 0 {
			t.Fatalf("MD5 byte %d not zeroed: %x", i, b)
		}
	}
	for i, b := range streamInfo[:18] {
		if b != byte(i+1) {
			t.Fatalf("STREAMINFO byte %d corrupted: got %x want %x", i, b, i+1)
		}
	}
}

func TestSpliceFlacHeader_DropsSeekTable(t *testing.T) {
	var src bytes.Buffer
	src.WriteString("fLaC")
	src.Write(block(false, flacBlockTypeStreamInfo, streamInfoPayload(0)))
	src.Write(block(false, flacBlockTypeSeekTable, make([]byte, 18)))
	src.Write(block(true, 4, []byte("VORBIS_COMMENT placeholder")))

	out := splice(t, src.Bytes())

	types := parseBlockTypes(t, out)
	for _, bt := range types {
		if bt == flacBlockTypeSeekTable {
			t.Fatalf("output still contains a SEEKTABLE block: %v", types)
		}
	}
}

func TestSpliceFlacHeader_SynthesizesPaddingWhenSeekTableWasLast(t *testing.T) {
	var src bytes.Buffer
	src.WriteString("fLaC")
	src.Write(block(false, flacBlockTypeStreamInfo, streamInfoPayload(0)))
	src.Write(block(true, flacBlockTypeSeekTable, make([]byte, 18)))

	out := splice(t, src.Bytes())

	types, lastFlags := parseBlocksWithLastFlag(t, out)
	lastCount := 0
	for i, bt := range types {
		if bt == flacBlockTypeSeekTable {
			t.Fatalf("SEEKTABLE leaked into output: %v", types)
		}
		if lastFlags[i] {
			lastCount++
		}
	}
	if lastCount != 1 {
		t.Fatalf("expected exactly one last-block-flagged block, got %d: %v", lastCount, types)
	}
	if types[len(types)-1] != flacBlockTypePadding {
		t.Fatalf("expected synthesized PADDING as final block, got type %d", types[len(types)-1])
	}
}

func parseBlockTypes(t *testing.T, data []byte) []byte {
	types, _ := parseBlocksWithLastFlag(t, data)
	return types
}

func parseBlocksWithLastFlag(t *testing.T, data []byte) ([]byte, []bool) {
	t.Helper()
	if !bytes.HasPrefix(data, []byte("fLaC")) {
		t.Fatalf("missing fLaC marker")
	}
	pos := 4
	var types []byte
	var lastFlags []bool
	for pos < len(data) {
		hdr := data[pos : pos+4]
		last := hdr[0]&0x80 != 0
		bt := hdr[0] & 0x7f
		length := int(hdr[1])<<16 | int(hdr[2])<<8 | int(hdr[3])
		pos += 4 + length
		types = append(types, bt)
		lastFlags = append(lastFlags, last)
		if last {
			break
		}
	}
	return types, lastFlags
}
