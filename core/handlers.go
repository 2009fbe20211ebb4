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
	"fmt"
	"math"
	"strings"
)

// handlers implements the standard Handlers against a Runtime and a
// Cache.
type handlers struct {
	rt    Runtime
	cache *Cache
}

// StandardHandlers returns a Handler for every Kind.
//
// The map is new on each call, so a caller can replace entries before
// giving it to NewRegistry.
func StandardHandlers(rt Runtime, cache *Cache) map[Kind]Handler {
	h := &handlers{
		rt:    rt,
		cache: cache,
	}
	return map[Kind]Handler{
		CreateInstance:       HandlerFunc(h.createInstance),
		InvokeInstanceMethod: HandlerFunc(h.invokeInstanceMethod),
		InvokeStaticMethod:   HandlerFunc(h.invokeStaticMethod),
		InvokeGlobalMethod:   HandlerFunc(h.invokeGlobalMethod),
		GetInstanceField:     HandlerFunc(h.getInstanceField),
		SetInstanceField:     HandlerFunc(h.setInstanceField),
		GetStaticField:       HandlerFunc(h.getStaticField),
		SetStaticField:       HandlerFunc(h.setStaticField),
		GetGlobalField:       HandlerFunc(h.getGlobalField),
		GetType:              HandlerFunc(h.getType),
		ArrayGetItem:         HandlerFunc(h.arrayGetItem),
		ArraySetItem:         HandlerFunc(h.arraySetItem),
		ArrayGetSize:         HandlerFunc(h.arrayGetSize),
		DestructReference:    HandlerFunc(h.destructReference),
		Cast:                 HandlerFunc(cast),
	}
}

// StandardRegistry is NewRegistry(StandardHandlers(rt, cache)).
func StandardRegistry(rt Runtime, cache *Cache) *Registry {
	r, err := NewRegistry(StandardHandlers(rt, cache))
	if err != nil {
		// StandardHandlers is complete by construction.
		panic(err)
	}
	return r
}

// guard runs f, converting a panic or a plain error into an *Error
// of kind k.
func guard(k ErrorKind, what string, f func() (interface{}, error)) (x interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			x = nil
			err = NewError(k, "%s: %v", what, r)
		}
	}()
	if x, err = f(); err != nil {
		return nil, Wrap(k, err, what)
	}
	return x, nil
}

// settle turns a raw host value into a result Value.
//
// Objects (per the Runtime) go into the Cache and come back as
// References.  Everything else is exported as a Primitive.
func (h *handlers) settle(x interface{}) (Value, error) {
	if h.rt.IsObject(x) {
		return Reference{ID: h.cache.Insert(x)}, nil
	}
	p, err := guard(InvocationError, "export", func() (interface{}, error) {
		return h.rt.Export(x)
	})
	if err != nil {
		return nil, err
	}
	return Primitive{V: p}, nil
}

// object returns the live object named by the payload element at i.
func (h *handlers) object(c *Command, i int, what string) (interface{}, error) {
	switch vv := c.Payload[i].(type) {
	case Reference:
		return h.cache.Get(vv.ID)
	case HostObject:
		return vv.V, nil
	default:
		return nil, Malformed("%s: %s (position %d) isn't a reference: %s",
			c.Kind, what, i, ValueString(vv))
	}
}

// str returns the string Primitive at i.
func str(c *Command, i int, what string) (string, error) {
	if p, is := c.Payload[i].(Primitive); is {
		if s, is := p.V.(string); is {
			return s, nil
		}
	}
	return "", Malformed("%s: %s (position %d) isn't a string: %s",
		c.Kind, what, i, ValueString(c.Payload[i]))
}

// typ returns a type descriptor from either a type name or a
// reference to a descriptor.
func (h *handlers) typ(ctx context.Context, c *Command, i int) (interface{}, string, error) {
	switch vv := c.Payload[i].(type) {
	case Reference, HostObject:
		x, err := h.object(c, i, "type")
		return x, ValueString(vv), err
	}
	name, err := str(c, i, "type")
	if err != nil {
		return nil, "", err
	}
	x, err := guard(TypeNotFound, "type "+name, func() (interface{}, error) {
		return h.rt.ResolveType(ctx, name)
	})
	return x, name, err
}

// arg converts a terminal Value into a runtime value.
func (h *handlers) arg(v Value) (interface{}, error) {
	switch vv := v.(type) {
	case Primitive:
		return h.rt.Import(vv.V), nil
	case Reference:
		return h.cache.Get(vv.ID)
	case HostObject:
		return vv.V, nil
	default:
		return nil, Malformed("unresolved payload value %s", ValueString(v))
	}
}

// args converts payload elements from position i on.
func (h *handlers) args(c *Command, i int) ([]interface{}, error) {
	acc := make([]interface{}, 0, len(c.Payload)-i)
	for _, v := range c.Payload[i:] {
		x, err := h.arg(v)
		if err != nil {
			return nil, err
		}
		acc = append(acc, x)
	}
	return acc, nil
}

// indices converts payload elements from position i on into array
// indices.
func indices(c *Command, i int) ([]int, error) {
	acc := make([]int, 0, len(c.Payload)-i)
	for j, v := range c.Payload[i:] {
		n, ok := asIndex(v)
		if !ok {
			return nil, Malformed("%s: index (position %d) isn't an integer: %s",
				c.Kind, i+j, ValueString(v))
		}
		acc = append(acc, n)
	}
	return acc, nil
}

func asIndex(v Value) (int, bool) {
	p, is := v.(Primitive)
	if !is {
		return 0, false
	}
	switch n := p.V.(type) {
	case int64:
		return int(n), true
	case int:
		return n, true
	case uint64:
		if n <= math.MaxInt32 {
			return int(n), true
		}
	case float64:
		if n == math.Trunc(n) && math.Abs(n) <= math.MaxInt32 {
			return int(n), true
		}
	}
	return 0, false
}

// splitPath splits a dotted path into segments.
func splitPath(path string) ([]string, error) {
	segments := strings.Split(path, ".")
	for _, s := range segments {
		if s == "" {
			return nil, Malformed("bad path %q", path)
		}
	}
	return segments, nil
}

func (h *handlers) createInstance(ctx context.Context, c *Command) (Value, error) {
	typ, name, err := h.typ(ctx, c, 0)
	if err != nil {
		return nil, err
	}
	args, err := h.args(c, 1)
	if err != nil {
		return nil, err
	}
	x, err := guard(ConstructionError, "construct "+name, func() (interface{}, error) {
		return h.rt.Construct(ctx, typ, args)
	})
	if err != nil {
		return nil, err
	}
	return Reference{ID: h.cache.Insert(x)}, nil
}

func (h *handlers) invokeInstanceMethod(ctx context.Context, c *Command) (Value, error) {
	obj, err := h.object(c, 0, "instance")
	if err != nil {
		return nil, err
	}
	method, err := str(c, 1, "method")
	if err != nil {
		return nil, err
	}
	args, err := h.args(c, 2)
	if err != nil {
		return nil, err
	}
	x, err := guard(InvocationError, "invoke "+method, func() (interface{}, error) {
		return h.rt.Invoke(ctx, obj, method, args)
	})
	if err != nil {
		return nil, err
	}
	return h.settle(x)
}

func (h *handlers) invokeStaticMethod(ctx context.Context, c *Command) (Value, error) {
	typ, name, err := h.typ(ctx, c, 0)
	if err != nil {
		return nil, err
	}
	method, err := str(c, 1, "method")
	if err != nil {
		return nil, err
	}
	args, err := h.args(c, 2)
	if err != nil {
		return nil, err
	}
	x, err := guard(InvocationError, "invoke "+name+"."+method, func() (interface{}, error) {
		return h.rt.InvokeStatic(ctx, typ, method, args)
	})
	if err != nil {
		return nil, err
	}
	return h.settle(x)
}

func (h *handlers) invokeGlobalMethod(ctx context.Context, c *Command) (Value, error) {
	path, err := str(c, 0, "path")
	if err != nil {
		return nil, err
	}
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	args, err := h.args(c, 1)
	if err != nil {
		return nil, err
	}
	// The whole path must resolve, so a missing method is
	// SymbolNotFound like any other missing segment.
	if _, err = guard(SymbolNotFound, path, func() (interface{}, error) {
		return h.rt.ResolveGlobalPath(ctx, segments)
	}); err != nil {
		return nil, err
	}
	last := len(segments) - 1
	recv, err := guard(SymbolNotFound, path, func() (interface{}, error) {
		return h.rt.ResolveGlobalPath(ctx, segments[:last])
	})
	if err != nil {
		return nil, err
	}
	x, err := guard(InvocationError, "invoke "+path, func() (interface{}, error) {
		return h.rt.Invoke(ctx, recv, segments[last], args)
	})
	if err != nil {
		return nil, err
	}
	return h.settle(x)
}

func (h *handlers) getInstanceField(ctx context.Context, c *Command) (Value, error) {
	obj, err := h.object(c, 0, "instance")
	if err != nil {
		return nil, err
	}
	name, err := str(c, 1, "field")
	if err != nil {
		return nil, err
	}
	x, err := guard(InvocationError, "get "+name, func() (interface{}, error) {
		return h.rt.GetField(ctx, obj, name)
	})
	if err != nil {
		return nil, err
	}
	return h.settle(x)
}

func (h *handlers) setInstanceField(ctx context.Context, c *Command) (Value, error) {
	obj, err := h.object(c, 0, "instance")
	if err != nil {
		return nil, err
	}
	name, err := str(c, 1, "field")
	if err != nil {
		return nil, err
	}
	v, err := h.arg(c.Payload[2])
	if err != nil {
		return nil, err
	}
	_, err = guard(InvocationError, "set "+name, func() (interface{}, error) {
		return nil, h.rt.SetField(ctx, obj, name, v)
	})
	return Void, err
}

func (h *handlers) getStaticField(ctx context.Context, c *Command) (Value, error) {
	typ, tname, err := h.typ(ctx, c, 0)
	if err != nil {
		return nil, err
	}
	name, err := str(c, 1, "field")
	if err != nil {
		return nil, err
	}
	x, err := guard(InvocationError, "get "+tname+"."+name, func() (interface{}, error) {
		return h.rt.GetField(ctx, typ, name)
	})
	if err != nil {
		return nil, err
	}
	return h.settle(x)
}

func (h *handlers) setStaticField(ctx context.Context, c *Command) (Value, error) {
	typ, tname, err := h.typ(ctx, c, 0)
	if err != nil {
		return nil, err
	}
	name, err := str(c, 1, "field")
	if err != nil {
		return nil, err
	}
	v, err := h.arg(c.Payload[2])
	if err != nil {
		return nil, err
	}
	_, err = guard(InvocationError, "set "+tname+"."+name, func() (interface{}, error) {
		return nil, h.rt.SetField(ctx, typ, name, v)
	})
	return Void, err
}

func (h *handlers) getGlobalField(ctx context.Context, c *Command) (Value, error) {
	segments := make([]string, 0, len(c.Payload))
	for i := range c.Payload {
		s, err := str(c, i, "segment")
		if err != nil {
			return nil, err
		}
		segments = append(segments, s)
	}
	if len(segments) == 1 {
		var err error
		if segments, err = splitPath(segments[0]); err != nil {
			return nil, err
		}
	}
	path := strings.Join(segments, ".")
	x, err := guard(SymbolNotFound, path, func() (interface{}, error) {
		return h.rt.ResolveGlobalPath(ctx, segments)
	})
	if err != nil {
		return nil, err
	}
	return h.settle(x)
}

func (h *handlers) getType(ctx context.Context, c *Command) (Value, error) {
	name, err := str(c, 0, "name")
	if err != nil {
		return nil, err
	}
	x, err := guard(TypeNotFound, "type "+name, func() (interface{}, error) {
		return h.rt.ResolveType(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return h.settle(x)
}

func (h *handlers) arrayGetItem(ctx context.Context, c *Command) (Value, error) {
	arr, err := h.object(c, 0, "array")
	if err != nil {
		return nil, err
	}
	is, err := indices(c, 1)
	if err != nil {
		return nil, err
	}
	x, err := guard(InvocationError, fmt.Sprintf("get item %v", is), func() (interface{}, error) {
		return h.rt.ArrayGet(ctx, arr, is)
	})
	if err != nil {
		return nil, err
	}
	return h.settle(x)
}

func (h *handlers) arraySetItem(ctx context.Context, c *Command) (Value, error) {
	arr, err := h.object(c, 0, "array")
	if err != nil {
		return nil, err
	}
	v, err := h.arg(c.Payload[1])
	if err != nil {
		return nil, err
	}
	is, err := indices(c, 2)
	if err != nil {
		return nil, err
	}
	_, err = guard(InvocationError, fmt.Sprintf("set item %v", is), func() (interface{}, error) {
		return nil, h.rt.ArraySet(ctx, arr, is, v)
	})
	return Void, err
}

func (h *handlers) arrayGetSize(ctx context.Context, c *Command) (Value, error) {
	arr, err := h.object(c, 0, "array")
	if err != nil {
		return nil, err
	}
	x, err := guard(InvocationError, "array length", func() (interface{}, error) {
		return h.rt.ArrayLength(ctx, arr)
	})
	if err != nil {
		return nil, err
	}
	return Primitive{V: int64(x.(int))}, nil
}

func (h *handlers) destructReference(ctx context.Context, c *Command) (Value, error) {
	ref, is := c.Payload[0].(Reference)
	if !is {
		return nil, Malformed("DestructReference wants a reference, not %s", ValueString(c.Payload[0]))
	}
	x, err := h.cache.Delete(ref.ID)
	if err != nil {
		return nil, err
	}
	if r, is := h.rt.(Releaser); is {
		// The entry is gone either way.
		_, err = guard(InvocationError, "release", func() (interface{}, error) {
			r.Release(x)
			return nil, nil
		})
	}
	return Void, err
}

func cast(ctx context.Context, c *Command) (Value, error) {
	return nil, NewError(UnsupportedOperation, "Cast isn't meaningful for a dynamically typed host")
}
