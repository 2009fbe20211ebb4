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
	"fmt"
	"strings"
)

// Value is an element of a Command's payload and also what a Command
// resolves to.
//
// The implementations are Primitive, Reference, HostObject, and
// *Command.  No others.
type Value interface {
	value()
}

// Primitive is plain data: string, int64, float64, bool, []byte, or
// nil.
type Primitive struct {
	V interface{}
}

// Reference names an entry in a Cache.
type Reference struct {
	ID uint64
}

// HostObject is a live object from the host runtime.
//
// A HostObject never arrives from or leaves via a codec.
type HostObject struct {
	V interface{}
}

// Command is a request for one operation.  Payload elements that are
// themselves Commands are resolved before the operation runs.
//
// A Command should be treated as immutable.  The Interpreter doesn't
// modify the Commands it's given.
type Command struct {
	Kind    Kind
	Payload []Value
}

func (Primitive) value()  {}
func (Reference) value()  {}
func (HostObject) value() {}
func (*Command) value()   {}

// Void is the result of operations that don't return anything.
var Void = Primitive{}

// NewCommand is a convenience constructor.  Arguments that aren't
// already Values are wrapped as Primitives.
func NewCommand(k Kind, payload ...interface{}) *Command {
	c := &Command{
		Kind:    k,
		Payload: make([]Value, len(payload)),
	}
	for i, x := range payload {
		c.Payload[i] = AsValue(x)
	}
	return c
}

// AsValue returns x if it's a Value and otherwise wraps it in a
// Primitive.
//
// Go ints are widened to int64 and float32 to float64 so that
// primitives have one numeric representation per flavor.
func AsValue(x interface{}) Value {
	switch vv := x.(type) {
	case Value:
		return vv
	case int:
		return Primitive{int64(vv)}
	case int32:
		return Primitive{int64(vv)}
	case uint32:
		return Primitive{int64(vv)}
	case float32:
		return Primitive{float64(vv)}
	default:
		return Primitive{x}
	}
}

// IsTerminal reports whether v needs no further resolution.
func IsTerminal(v Value) bool {
	switch v.(type) {
	case Primitive, Reference, HostObject:
		return true
	}
	return false
}

// Walk calls f on c and then on every nested Command, in resolution
// order (post-order, left to right).  Stops at the first error.
func (c *Command) Walk(f func(c *Command, depth int) error) error {
	return c.walk(f, 0)
}

func (c *Command) walk(f func(*Command, int) error, depth int) error {
	for _, x := range c.Payload {
		if sub, is := x.(*Command); is && sub != nil {
			if err := sub.walk(f, depth+1); err != nil {
				return err
			}
		}
	}
	return f(c, depth)
}

func (c *Command) String() string {
	if c == nil {
		return "<nil>"
	}
	acc := make([]string, len(c.Payload))
	for i, x := range c.Payload {
		acc[i] = ValueString(x)
	}
	return c.Kind.String() + "(" + strings.Join(acc, ", ") + ")"
}

// ValueString renders a Value for logs and diagnostics.
func ValueString(v Value) string {
	switch vv := v.(type) {
	case nil:
		return "<nil>"
	case Primitive:
		switch p := vv.V.(type) {
		case string:
			return fmt.Sprintf("%q", p)
		case []byte:
			return fmt.Sprintf("bytes[%d]", len(p))
		case nil:
			return "null"
		default:
			return fmt.Sprintf("%v", p)
		}
	case Reference:
		return fmt.Sprintf("ref#%d", vv.ID)
	case HostObject:
		return fmt.Sprintf("host<%T>", vv.V)
	case *Command:
		return vv.String()
	default:
		return fmt.Sprintf("%#v", v)
	}
}
