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
	"errors"
	"reflect"
	"testing"
)

// recorder is a Handler that counts calls and remembers what it saw.
type recorder struct {
	calls int
	saw   []Value
}

func (p *recorder) Process(ctx context.Context, c *Command) (Value, error) {
	p.calls++
	p.saw = append([]Value{}, c.Payload...)
	return Void, nil
}

// recorded makes an Interpreter whose Cast handler is replaced by a
// recorder.
func recorded(t *testing.T) (*Interpreter, *recorder, *Cache) {
	var (
		cache = NewCache()
		p     = &recorder{}
		hs    = StandardHandlers(newTestRuntime(), cache)
	)
	hs[Cast] = p
	r, err := NewRegistry(hs)
	if err != nil {
		t.Fatal(err)
	}
	return &Interpreter{Registry: r}, p, cache
}

func TestLeftToRight(t *testing.T) {
	ctx := context.Background()

	var (
		a = NewCommand(CreateInstance, "Counter")
		b = NewCommand(InvokeInstanceMethod, Reference{ID: 1}, "increment")
	)

	t.Run("ordered", func(t *testing.T) {
		i, p, _ := recorded(t)
		if _, err := i.Interpret(ctx, NewCommand(Cast, a, b)); err != nil {
			t.Fatal(err)
		}
		want := []Value{Reference{ID: 1}, Primitive{int64(1)}}
		if !reflect.DeepEqual(p.saw, want) {
			t.Fatalf("saw %v", p.saw)
		}
	})

	t.Run("reversed", func(t *testing.T) {
		i, p, cache := recorded(t)
		_, err := i.Interpret(ctx, NewCommand(Cast, b, a))
		if !IsKind(err, UnknownReference) {
			t.Fatalf("wanted UnknownReference, got %v", err)
		}
		if p.calls != 0 {
			t.Fatalf("outer handler called %d times", p.calls)
		}
		// a never ran.
		if n := cache.Len(); n != 0 {
			t.Fatalf("cache has %d entries", n)
		}
	})
}

func TestShortCircuit(t *testing.T) {
	i, p, cache := recorded(t)

	root := NewCommand(Cast,
		NewCommand(GetType, "Nope"),
		NewCommand(CreateInstance, "Counter"))

	_, err := i.Interpret(context.Background(), root)
	if !IsKind(err, TypeNotFound) {
		t.Fatalf("wanted TypeNotFound, got %v", err)
	}
	if p.calls != 0 {
		t.Fatalf("outer handler called %d times", p.calls)
	}
	if cache.Len() != 0 {
		t.Fatal("second payload value was resolved")
	}
}

func TestCompletedSubcommandsNotRolledBack(t *testing.T) {
	i, _, cache := recorded(t)

	root := NewCommand(Cast,
		NewCommand(CreateInstance, "Counter"),
		NewCommand(GetType, "Nope"))

	if _, err := i.Interpret(context.Background(), root); err == nil {
		t.Fatal("didn't fail")
	}
	if cache.Len() != 1 {
		t.Fatalf("cache has %d entries", cache.Len())
	}
}

func TestNested(t *testing.T) {
	i := NewInterpreter(newTestRuntime(), NewCache())
	ctx := context.Background()

	// InvokeInstanceMethod(CreateInstance("Counter", 41), "increment")
	root := NewCommand(InvokeInstanceMethod,
		NewCommand(CreateInstance, "Counter", 41),
		"increment")

	v, err := i.Interpret(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	if v != (Primitive{int64(42)}) {
		t.Fatalf("got %s", ValueString(v))
	}
}

func TestInputNotMutated(t *testing.T) {
	i := NewInterpreter(newTestRuntime(), NewCache())

	inner := NewCommand(CreateInstance, "Counter")
	root := NewCommand(InvokeInstanceMethod, inner, "increment")

	if _, err := i.Interpret(context.Background(), root); err != nil {
		t.Fatal(err)
	}
	if root.Payload[0] != Value(inner) {
		t.Fatalf("payload replaced with %s", ValueString(root.Payload[0]))
	}
}

func TestMaxDepth(t *testing.T) {
	i := NewInterpreter(newTestRuntime(), NewCache())
	i.MaxDepth = 3

	var c *Command = NewCommand(GetGlobalField, "Math.PI")
	for n := 0; n < 5; n++ {
		c = NewCommand(Cast, c)
	}
	if _, err := i.Interpret(context.Background(), c); !IsKind(err, MalformedCommand) {
		t.Fatalf("wanted MalformedCommand, got %v", err)
	}
}

func TestNilCommand(t *testing.T) {
	i := NewInterpreter(newTestRuntime(), NewCache())
	ctx := context.Background()

	if _, err := i.Interpret(ctx, nil); !IsKind(err, MalformedCommand) {
		t.Fatalf("wanted MalformedCommand, got %v", err)
	}

	c := &Command{
		Kind:    ArrayGetSize,
		Payload: []Value{nil},
	}
	if _, err := i.Interpret(ctx, c); !IsKind(err, MalformedCommand) {
		t.Fatalf("wanted MalformedCommand, got %v", err)
	}
}

func TestUntypedHandlerErrors(t *testing.T) {
	hs := StandardHandlers(newTestRuntime(), NewCache())
	hs[Cast] = HandlerFunc(func(ctx context.Context, c *Command) (Value, error) {
		return nil, errors.New("plain")
	})
	hs[GetType] = HandlerFunc(func(ctx context.Context, c *Command) (Value, error) {
		panic("oops")
	})
	r, err := NewRegistry(hs)
	if err != nil {
		t.Fatal(err)
	}
	i := &Interpreter{Registry: r}
	ctx := context.Background()

	if _, err = i.Interpret(ctx, NewCommand(Cast)); !IsKind(err, InvocationError) {
		t.Fatalf("wanted InvocationError, got %v", err)
	}
	if _, err = i.Interpret(ctx, NewCommand(GetType, "x")); !IsKind(err, InvocationError) {
		t.Fatalf("wanted InvocationError, got %v", err)
	}
}

func TestRegistryIncomplete(t *testing.T) {
	hs := StandardHandlers(newTestRuntime(), NewCache())
	delete(hs, ArraySetItem)
	if _, err := NewRegistry(hs); err == nil {
		t.Fatal("didn't protest")
	}

	hs = StandardHandlers(newTestRuntime(), NewCache())
	hs[NumKinds] = HandlerFunc(cast)
	if _, err := NewRegistry(hs); err == nil {
		t.Fatal("didn't protest")
	}
}

func TestUnknownKind(t *testing.T) {
	i := NewInterpreter(newTestRuntime(), NewCache())
	c := &Command{Kind: NumKinds + 3}
	if _, err := i.Interpret(context.Background(), c); !IsKind(err, MalformedCommand) {
		t.Fatalf("wanted MalformedCommand, got %v", err)
	}
}
