/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sio

import (
	"encoding/base64"
	"encoding/json"
	"math"

	"github.com/Comcast/xcall/core"
)

// Value tags on the wire.
const (
	TagPrimitive = "p"
	TagBytes     = "bytes"
	TagRef       = "ref"
	TagCommand   = "cmd"
)

// WireValue is the tagged encoding of a core.Value.
//
//	{"t":"p","v":42}
//	{"t":"bytes","v":"cXVlc28="}
//	{"t":"ref","ref":1}
//	{"t":"cmd","cmd":{"kind":"GetType","payload":[...]}}
//
// In JSON, bytes are base64.  In CBOR, they are a byte string.
type WireValue struct {
	T   string       `json:"t" cbor:"t" yaml:"t"`
	V   interface{}  `json:"v,omitempty" cbor:"v,omitempty" yaml:"v,omitempty"`
	Ref uint64       `json:"ref,omitempty" cbor:"ref,omitempty" yaml:"ref,omitempty"`
	Cmd *WireCommand `json:"cmd,omitempty" cbor:"cmd,omitempty" yaml:"cmd,omitempty"`
}

// WireCommand is the encoding of a core.Command.  The Kind is its
// name.
type WireCommand struct {
	Kind    string       `json:"kind" cbor:"kind" yaml:"kind"`
	Payload []*WireValue `json:"payload" cbor:"payload" yaml:"payload"`
}

// Request is one call across the boundary.
type Request struct {
	// ID is echoed in the Response.  A Request without one gets
	// a fresh UUID.
	ID string `json:"id,omitempty" cbor:"id,omitempty" yaml:"id,omitempty"`

	Command *WireCommand `json:"command" cbor:"command" yaml:"command"`

	// ReplyTo optionally names where the Response should go (an
	// MQTT topic, for example).
	ReplyTo string `json:"replyTo,omitempty" cbor:"replyTo,omitempty" yaml:"replyTo,omitempty"`
}

// WireError is the encoding of a *core.Error.
type WireError struct {
	Kind    string `json:"kind" cbor:"kind" yaml:"kind"`
	Message string `json:"message" cbor:"message" yaml:"message"`
}

// Response has either a Result or an Error.
type Response struct {
	ID     string     `json:"id" cbor:"id" yaml:"id"`
	Result *WireValue `json:"result,omitempty" cbor:"result,omitempty" yaml:"result,omitempty"`
	Error  *WireError `json:"error,omitempty" cbor:"error,omitempty" yaml:"error,omitempty"`
}

// Err returns the Response's error as a *core.Error (or nil).
func (r *Response) Err() error {
	if r.Error == nil {
		return nil
	}
	k, _ := core.ParseErrorKind(r.Error.Kind)
	return &core.Error{
		Kind: k,
		Msg:  r.Error.Message,
	}
}

// EncodeError converts any error into a WireError.  An error that
// isn't a *core.Error is reported as an InvocationError.
func EncodeError(err error) *WireError {
	e := core.Wrap(core.InvocationError, err, "")
	return &WireError{
		Kind:    e.Kind.String(),
		Message: e.Msg,
	}
}

// EncodeCommand converts a Command tree for the wire.
func EncodeCommand(c *core.Command) (*WireCommand, error) {
	if c == nil {
		return nil, core.Malformed("nil command")
	}
	if !c.Kind.Valid() {
		return nil, core.Malformed("unknown kind %d", uint8(c.Kind))
	}
	wc := &WireCommand{
		Kind:    c.Kind.String(),
		Payload: make([]*WireValue, len(c.Payload)),
	}
	for i, v := range c.Payload {
		w, err := EncodeValue(v)
		if err != nil {
			return nil, err
		}
		wc.Payload[i] = w
	}
	return wc, nil
}

// EncodeValue converts a Value for the wire.  HostObjects can't
// cross the boundary.
func EncodeValue(v core.Value) (*WireValue, error) {
	switch vv := v.(type) {
	case core.Primitive:
		switch x := vv.V.(type) {
		case []byte:
			return &WireValue{T: TagBytes, V: x}, nil
		case nil, bool, string, int64, float64:
			return &WireValue{T: TagPrimitive, V: x}, nil
		default:
			p, err := normalize(x)
			if err != nil {
				return nil, err
			}
			return &WireValue{T: TagPrimitive, V: p}, nil
		}
	case core.Reference:
		return &WireValue{T: TagRef, Ref: vv.ID}, nil
	case *core.Command:
		wc, err := EncodeCommand(vv)
		if err != nil {
			return nil, err
		}
		return &WireValue{T: TagCommand, Cmd: wc}, nil
	case core.HostObject:
		return nil, core.Malformed("a host object can't be encoded")
	default:
		return nil, core.Malformed("can't encode %T", v)
	}
}

// DecodeCommand converts a wire command into a Command tree.
func DecodeCommand(wc *WireCommand) (*core.Command, error) {
	if wc == nil {
		return nil, core.Malformed("no command")
	}
	k, err := core.ParseKind(wc.Kind)
	if err != nil {
		return nil, err
	}
	c := &core.Command{
		Kind:    k,
		Payload: make([]core.Value, len(wc.Payload)),
	}
	for i, w := range wc.Payload {
		v, err := DecodeValue(w)
		if err != nil {
			return nil, err
		}
		c.Payload[i] = v
	}
	return c, nil
}

// DecodeValue converts a wire value into a Value.
func DecodeValue(w *WireValue) (core.Value, error) {
	if w == nil {
		return nil, core.Malformed("null payload value")
	}
	switch w.T {
	case TagPrimitive:
		p, err := normalize(w.V)
		if err != nil {
			return nil, err
		}
		return core.Primitive{V: p}, nil
	case TagBytes:
		switch x := w.V.(type) {
		case []byte:
			return core.Primitive{V: x}, nil
		case string:
			bs, err := base64.StdEncoding.DecodeString(x)
			if err != nil {
				return nil, core.Malformed("bad bytes: %s", err)
			}
			return core.Primitive{V: bs}, nil
		case nil:
			return core.Primitive{V: []byte{}}, nil
		default:
			return nil, core.Malformed("bad bytes value %T", x)
		}
	case TagRef:
		if w.Ref == 0 {
			return nil, core.Malformed("reference without an id")
		}
		return core.Reference{ID: w.Ref}, nil
	case TagCommand:
		return DecodeCommand(w.Cmd)
	default:
		return nil, core.Malformed("unknown value tag '%s'", w.T)
	}
}

// normalize makes numbers int64 or float64.  Anything other than a
// scalar is rejected.
func normalize(x interface{}) (interface{}, error) {
	switch vv := x.(type) {
	case nil, bool, string, int64, float64:
		return x, nil
	case json.Number:
		if n, err := vv.Int64(); err == nil {
			return n, nil
		}
		f, err := vv.Float64()
		if err != nil {
			return nil, core.Malformed("bad number %s", vv)
		}
		return f, nil
	case int:
		return int64(vv), nil
	case int8:
		return int64(vv), nil
	case int16:
		return int64(vv), nil
	case int32:
		return int64(vv), nil
	case uint8:
		return int64(vv), nil
	case uint16:
		return int64(vv), nil
	case uint32:
		return int64(vv), nil
	case uint:
		return normalize(uint64(vv))
	case uint64:
		if vv > math.MaxInt64 {
			return nil, core.Malformed("integer %d out of range", vv)
		}
		return int64(vv), nil
	case float32:
		return float64(vv), nil
	default:
		return nil, core.Malformed("a %T isn't a primitive", x)
	}
}
