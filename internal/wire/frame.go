// Package wire implements the length-prefixed framing and JSON-tagged
// message union the dashboard session speaks over a single TCP connection.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ProtocolMagic is written once by the client before the first framed
// message — the only unframed bytes on the wire.
var ProtocolMagic = [4]byte{'m', 'o', 'i', 'r'}

// MaxFrameSize bounds a single frame's payload per the default codec.
const MaxFrameSize = 8 * 1024 * 1024

// ErrFrameTooLarge is returned when a length prefix exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("wire: frame exceeds maximum payload size")

// ErrBadMagic is returned when the session's opening bytes don't match ProtocolMagic.
var ErrBadMagic = errors.New("wire: invalid protocol magic")

// WriteMagic writes the protocol magic bytes, the only unframed data on the wire.
func WriteMagic(w io.Writer) error {
	_, err := w.Write(ProtocolMagic[:])
	return err
}

// ReadMagic reads and validates the protocol magic.
func ReadMagic(r io.Reader) error {
	var got [4]byte
	if _, err := io.ReadFull(r, got[:]); err != nil {
		return fmt.Errorf("wire: reading magic: %w", err)
	}
	if got != ProtocolMagic {
		return ErrBadMagic
	}
	return nil
}

// WriteFrame writes a u32 big-endian length prefix followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("wire: writing frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: writing frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame, rejecting oversize payloads
// before allocating a buffer for them.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("wire: reading frame length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("wire: reading frame payload: %w", err)
	}
	return payload, nil
}
