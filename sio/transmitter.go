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
	"context"
	"time"

	"github.com/Comcast/xcall/core"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transmitter sits between the bytes of a coupling and an
// Interpreter.
//
// A Transmitter is safe for concurrent use.
type Transmitter struct {
	Interpreter *core.Interpreter

	// Codec is used by Transmit.  If nil, JSONCodec.
	Codec Codec

	// Logger, if not nil, gets a line per request.
	Logger *zap.Logger
}

// NewTransmitter makes a Transmitter with the given Codec.
func NewTransmitter(i *core.Interpreter, codec Codec, logger *zap.Logger) *Transmitter {
	return &Transmitter{
		Interpreter: i,
		Codec:       codec,
		Logger:      logger,
	}
}

func (t *Transmitter) codec() Codec {
	if t.Codec == nil {
		return JSONCodec{}
	}
	return t.Codec
}

func failed(id string, err error) *Response {
	return &Response{
		ID:    id,
		Error: EncodeError(err),
	}
}

// Do runs one Request.  Every failure is reported in the Response.
func (t *Transmitter) Do(ctx context.Context, req *Request) *Response {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	then := time.Now()

	r := t.do(ctx, id, req)

	if t.Logger != nil {
		fields := []zap.Field{
			zap.String("id", id),
			zap.Duration("elapsed", time.Since(then)),
		}
		if req.Command != nil {
			fields = append(fields, zap.String("kind", req.Command.Kind))
		}
		if r.Error != nil {
			fields = append(fields,
				zap.String("error", r.Error.Kind),
				zap.String("message", r.Error.Message))
		}
		t.Logger.Info("request", fields...)
	}

	return r
}

func (t *Transmitter) do(ctx context.Context, id string, req *Request) *Response {
	c, err := DecodeCommand(req.Command)
	if err != nil {
		return failed(id, err)
	}

	v, err := t.Interpreter.Interpret(ctx, c)
	if err != nil {
		return failed(id, err)
	}

	w, err := EncodeValue(v)
	if err != nil {
		return failed(id, core.NewError(core.InvocationError, "can't encode result: %s", err))
	}

	return &Response{
		ID:     id,
		Result: w,
	}
}

// Decode decodes a Request with the given Codec.  A failure is
// returned as a Response.
func (t *Transmitter) Decode(codec Codec, bs []byte) (*Request, *Response) {
	var req Request
	if err := codec.Unmarshal(bs, &req); err != nil {
		return nil, failed("", core.Malformed("can't decode request: %s", err))
	}
	return &req, nil
}

// Transmit decodes a Request, runs it, and encodes the Response.
//
// The only error returned is a failure to encode the Response.
func (t *Transmitter) Transmit(ctx context.Context, bs []byte) ([]byte, error) {
	return t.TransmitWith(ctx, t.codec(), bs)
}

// TransmitWith is Transmit with a specific Codec.
func (t *Transmitter) TransmitWith(ctx context.Context, codec Codec, bs []byte) ([]byte, error) {
	req, r := t.Decode(codec, bs)
	if req != nil {
		r = t.Do(ctx, req)
	}
	return codec.Marshal(r)
}
