package sio

import (
	"bytes"
	"io"
	"testing"
)

func TestFrames(t *testing.T) {
	var buf bytes.Buffer
	for _, s := range []string{"queso", "", "chips"} {
		if err := WriteFrame(&buf, []byte(s)); err != nil {
			t.Fatal(err)
		}
	}
	for _, s := range []string{"queso", "", "chips"} {
		bs, err := ReadFrame(&buf)
		if err != nil {
			t.Fatal(err)
		}
		if string(bs) != s {
			t.Fatalf("%q != %q", bs, s)
		}
	}
	if _, err := ReadFrame(&buf); err != io.EOF {
		t.Fatal(err)
	}
}

func TestFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("queso")); err != nil {
		t.Fatal(err)
	}
	bs := buf.Bytes()[:6]
	if _, err := ReadFrame(bytes.NewReader(bs)); err != io.ErrUnexpectedEOF {
		t.Fatal(err)
	}
}

func TestFrameTooBig(t *testing.T) {
	if _, err := ReadFrame(bytes.NewReader([]byte{0xff, 0, 0, 0})); err == nil {
		t.Fatal("didn't protest")
	}
	saved := MaxFrame
	MaxFrame = 4
	defer func() { MaxFrame = saved }()
	if err := WriteFrame(&bytes.Buffer{}, []byte("queso")); err == nil {
		t.Fatal("didn't protest")
	}
}
