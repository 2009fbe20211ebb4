package sio

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrame is the largest frame ReadFrame will accept.
var MaxFrame = 16 << 20

// WriteFrame writes a 4-byte big-endian length followed by bs.
func WriteFrame(w io.Writer, bs []byte) error {
	if MaxFrame < len(bs) {
		return fmt.Errorf("frame of %d bytes exceeds %d", len(bs), MaxFrame)
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(bs)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(bs)
	return err
}

// ReadFrame reads one frame written by WriteFrame.
//
// Returns io.EOF only if the stream ended cleanly between frames.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if uint32(MaxFrame) < n {
		return nil, fmt.Errorf("frame of %d bytes exceeds %d", n, MaxFrame)
	}
	bs := make([]byte, n)
	if _, err := io.ReadFull(r, bs); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return bs, nil
}
