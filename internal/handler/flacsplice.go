package handler

import (
	"fmt"
	"io"
)

const (
	flacBlockTypeStreamInfo = 0
	flacBlockTypeSeekTable  = 3
	flacBlockTypePadding    = 1

	flacStreamInfoLen = 34
	flacBlockHeaderLen = 4
)

// spliceFlacHeader writes the literal "fLaC" marker followed by src's
// metadata block chain to sink:
//   - STREAMINFO: first 18 bytes kept, MD5 (last 16 bytes) zeroed.
//   - SEEKTABLE: dropped; if it carried the last-block flag, a trailing
//     empty PADDING block with the last-block flag is synthesized so the
//     chain stays well-formed.
//   - everything else: copied verbatim.
//
// src must be positioned at the start of the FLAC file (the "fLaC"
// magic has not yet been consumed).
func spliceFlacHeader(src io.Reader, sink func([]byte) (int, error)) error {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(src, magic); err != nil {
		return fmt.Errorf("handler: reading FLAC magic: %w", err)
	}
	if string(magic) != "fLaC" {
		return fmt.Errorf("handler: source is not a FLAC stream")
	}
	if _, err := sink(magic); err != nil {
		return err
	}

	droppedSeekTableWasLast := false

	for {
		header := make([]byte, flacBlockHeaderLen)
		if _, err := io.ReadFull(src, header); err != nil {
			return fmt.Errorf("handler: reading FLAC block header: %w", err)
		}

		last := header[0]&0x80 != 0
		blockType := header[0] & 0x7f
		length := int(header[1])<<16 | int(header[2])<<8 | int(header[3])

		payload := make([]byte, length)
		if _, err := io.ReadFull(src, payload); err != nil {
			return fmt.Errorf("handler: reading FLAC block payload: %w", err)
		}

		switch blockType {
		case flacBlockTypeStreamInfo:
			if length != flacStreamInfoLen {
				return fmt.Errorf("handler: STREAMINFO block has unexpected length %d", length)
			}
			zeroed := make([]byte, flacStreamInfoLen)
			copy(zeroed[:18], payload[:18])
			if _, err := sink(header); err != nil {
				return err
			}
			if _, err := sink(zeroed); err != nil {
				return err
			}
		case flacBlockTypeSeekTable:
			droppedSeekTableWasLast = last
		default:
			if _, err := sink(header); err != nil {
				return err
			}
			if _, err := sink(payload); err != nil {
				return err
			}
			droppedSeekTableWasLast = false
		}

		if last {
			break
		}
	}

	if droppedSeekTableWasLast {
		padHeader := []byte{0x80 | flacBlockTypePadding, 0, 0, 0}
		if _, err := sink(padHeader); err != nil {
			return err
		}
	}

	return nil
}

// flacBlockHeaderByte packs a last-block flag and block type into the
// leading header byte, exposed for tests constructing synthetic FLAC
// metadata chains.
func flacBlockHeaderByte(last bool, blockType byte) byte {
	b := blockType & 0x7f
	if last {
		b |= 0x80
	}
	return b
}
