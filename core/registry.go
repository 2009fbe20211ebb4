package core

import (
	"context"
	"fmt"
	"strings"
)

// Handler executes one Kind of Command.
//
// The Command given to Process is already resolved: every payload
// element is terminal.
type Handler interface {
	Process(ctx context.Context, c *Command) (Value, error)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctx context.Context, c *Command) (Value, error)

func (f HandlerFunc) Process(ctx context.Context, c *Command) (Value, error) {
	return f(ctx, c)
}

// Registry maps every Kind to exactly one Handler.
//
// A Registry is immutable once made.
type Registry struct {
	handlers [NumKinds]Handler
}

// NewRegistry makes a Registry from the given map, which must have a
// Handler for every Kind.
func NewRegistry(hs map[Kind]Handler) (*Registry, error) {
	r := &Registry{}
	for k, h := range hs {
		if !k.Valid() {
			return nil, fmt.Errorf("registry: invalid kind %d", uint8(k))
		}
		r.handlers[k] = h
	}
	var missing []string
	for k, h := range r.handlers {
		if h == nil {
			missing = append(missing, Kind(k).String())
		}
	}
	if 0 < len(missing) {
		return nil, fmt.Errorf("registry: no handler for %s", strings.Join(missing, ", "))
	}
	return r, nil
}

// Handler returns the Handler for k.
func (r *Registry) Handler(k Kind) (Handler, error) {
	if !k.Valid() {
		return nil, Malformed("unknown kind %d", uint8(k))
	}
	return r.handlers[k], nil
}

// Process dispatches c to its Handler.
//
// A panic in the Handler, or an error that isn't an *Error, comes
// back as an InvocationError.  A nil Value comes back as Void.
func (r *Registry) Process(ctx context.Context, c *Command) (v Value, err error) {
	h, err := r.Handler(c.Kind)
	if err != nil {
		return nil, err
	}
	if err = checkArity(c); err != nil {
		return nil, err
	}

	defer func() {
		if x := recover(); x != nil {
			v = nil
			err = NewError(InvocationError, "%s handler panicked: %v", c.Kind, x)
		}
	}()

	if v, err = h.Process(ctx, c); err != nil {
		return nil, Wrap(InvocationError, err, c.Kind.String())
	}
	if v == nil {
		v = Void
	}
	return v, nil
}

func checkArity(c *Command) error {
	s := c.Kind.Spec()
	n := len(c.Payload)
	if n < s.MinArity || (0 <= s.MaxArity && s.MaxArity < n) {
		return Malformed("%s wants (%s), got %d payload values", s.Name, s.Payload, n)
	}
	return nil
}
