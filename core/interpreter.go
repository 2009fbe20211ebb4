/* Copyright 2018 Comcast Cable Communications Management, LLC
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

package core

import (
	"context"

	"go.uber.org/zap"
)

// DefaultMaxDepth is used when an Interpreter's MaxDepth is zero.
var DefaultMaxDepth = 64

// Interpreter resolves Command trees and dispatches them to a
// Registry.
//
// An Interpreter has no state of its own beyond its configuration;
// any number of goroutines can call Interpret concurrently.  The
// shared state lives in the Cache that the Registry's Handlers use.
type Interpreter struct {
	Registry *Registry

	// MaxDepth limits nesting.  Zero means DefaultMaxDepth.
	MaxDepth int

	// Logger, if not nil, gets debug-level dispatch logs.
	Logger *zap.Logger
}

// NewInterpreter makes an Interpreter with the standard handlers for
// the given Runtime and Cache.
func NewInterpreter(rt Runtime, cache *Cache) *Interpreter {
	return &Interpreter{
		Registry: StandardRegistry(rt, cache),
	}
}

// Interpret resolves c and returns its value.
//
// Nested Commands are resolved depth-first, left to right.  Each one
// completes, including its effects on the Cache, before the next
// sibling starts.  The first error stops everything and is returned
// unchanged.
//
// Any error returned is an *Error.
func (i *Interpreter) Interpret(ctx context.Context, c *Command) (Value, error) {
	return i.resolve(ctx, c, 0)
}

func (i *Interpreter) maxDepth() int {
	if i.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return i.MaxDepth
}

func (i *Interpreter) resolve(ctx context.Context, c *Command, depth int) (Value, error) {
	if c == nil {
		return nil, Malformed("nil command")
	}
	if i.maxDepth() < depth {
		return nil, Malformed("commands nested deeper than %d", i.maxDepth())
	}

	// We copy the payload only if something in it needs
	// resolution.  The given Command is left alone.
	var payload []Value
	for j, x := range c.Payload {
		switch vv := x.(type) {
		case nil:
			return nil, Malformed("%s: nil payload value at position %d", c.Kind, j)
		case *Command:
			v, err := i.resolve(ctx, vv, depth+1)
			if err != nil {
				return nil, err
			}
			if payload == nil {
				payload = make([]Value, len(c.Payload))
				copy(payload, c.Payload)
			}
			payload[j] = v
		}
	}

	resolved := c
	if payload != nil {
		resolved = &Command{
			Kind:    c.Kind,
			Payload: payload,
		}
	}

	v, err := i.Registry.Process(ctx, resolved)

	if i.Logger != nil {
		if err != nil {
			i.Logger.Debug("process",
				zap.Stringer("command", resolved),
				zap.Int("depth", depth),
				zap.Error(err))
		} else {
			i.Logger.Debug("process",
				zap.Stringer("command", resolved),
				zap.Int("depth", depth),
				zap.String("value", ValueString(v)))
		}
	}

	return v, err
}
