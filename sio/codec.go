package sio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Codec converts Requests and Responses to and from bytes.
type Codec interface {
	Name() string
	ContentType() string
	Marshal(x interface{}) ([]byte, error)
	Unmarshal(bs []byte, x interface{}) error
}

// JSONCodec decodes numbers as json.Number so that integers survive.
type JSONCodec struct{}

func (JSONCodec) Name() string {
	return "json"
}

func (JSONCodec) ContentType() string {
	return "application/json"
}

func (JSONCodec) Marshal(x interface{}) ([]byte, error) {
	return json.Marshal(x)
}

func (JSONCodec) Unmarshal(bs []byte, x interface{}) error {
	d := json.NewDecoder(bytes.NewReader(bs))
	d.UseNumber()
	return d.Decode(x)
}

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("sio: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	// Each level of Command nesting is three levels of CBOR.
	dm, err := cbor.DecOptions{
		MaxNestedLevels: 256,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("sio: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

// CBORCodec uses canonical CBOR, so equal messages encode to equal
// bytes.
type CBORCodec struct{}

func (CBORCodec) Name() string {
	return "cbor"
}

func (CBORCodec) ContentType() string {
	return "application/cbor"
}

func (CBORCodec) Marshal(x interface{}) ([]byte, error) {
	return cborEncMode.Marshal(x)
}

func (CBORCodec) Unmarshal(bs []byte, x interface{}) error {
	return cborDecMode.Unmarshal(bs, x)
}

// Codecs are the available Codecs by name.
var Codecs = map[string]Codec{
	"json": JSONCodec{},
	"cbor": CBORCodec{},
}

// CodecFor returns the Codec for an HTTP Content-Type.  Anything
// other than application/cbor is JSON.
func CodecFor(contentType string) Codec {
	if strings.HasPrefix(contentType, "application/cbor") {
		return CBORCodec{}
	}
	return JSONCodec{}
}

// FindCodec returns the named Codec.
func FindCodec(name string) (Codec, error) {
	c, have := Codecs[name]
	if !have {
		names := make([]string, 0, len(Codecs))
		for n := range Codecs {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown codec '%s' (not one of %v)", name, names)
	}
	return c, nil
}
