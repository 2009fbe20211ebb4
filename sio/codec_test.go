package sio

import (
	"bytes"
	"testing"

	"github.com/Comcast/xcall/core"
)

func TestJSONIntegers(t *testing.T) {
	var w WireValue
	if err := (JSONCodec{}).Unmarshal([]byte(`{"t":"p","v":9007199254740993}`), &w); err != nil {
		t.Fatal(err)
	}
	v, err := DecodeValue(&w)
	if err != nil {
		t.Fatal(err)
	}
	if p := v.(core.Primitive); p.V != int64(9007199254740993) {
		t.Fatalf("%#v", p.V)
	}
}

func TestCBORCanonical(t *testing.T) {
	a := &Response{ID: "a", Error: &WireError{Kind: "NoSuchMethod", Message: "m"}}
	b := &Response{Error: &WireError{Message: "m", Kind: "NoSuchMethod"}, ID: "a"}

	x, err := CBORCodec{}.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	y, err := CBORCodec{}.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(x, y) {
		t.Fatal("not canonical")
	}
}

func TestCBORBytes(t *testing.T) {
	w, err := EncodeValue(core.Primitive{V: []byte{0, 1, 2}})
	if err != nil {
		t.Fatal(err)
	}
	bs, err := CBORCodec{}.Marshal(w)
	if err != nil {
		t.Fatal(err)
	}
	var got WireValue
	if err = (CBORCodec{}).Unmarshal(bs, &got); err != nil {
		t.Fatal(err)
	}
	v, err := DecodeValue(&got)
	if err != nil {
		t.Fatal(err)
	}
	if p := v.(core.Primitive); !bytes.Equal(p.V.([]byte), []byte{0, 1, 2}) {
		t.Fatalf("%#v", p.V)
	}
}

func TestFindCodec(t *testing.T) {
	for _, name := range []string{"json", "cbor"} {
		c, err := FindCodec(name)
		if err != nil {
			t.Fatal(err)
		}
		if c.Name() != name {
			t.Fatal(c.Name())
		}
		if CodecFor(c.ContentType()).Name() != name {
			t.Fatal(c.ContentType())
		}
	}
	if _, err := FindCodec("xml"); err == nil {
		t.Fatal("didn't protest")
	}
}
