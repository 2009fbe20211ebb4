package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// testRuntime is a small, scripted Runtime for exercising the
// handlers without a real language runtime.
type testRuntime struct {
	sync.Mutex

	globals *namespace

	// visited records every global path segment looked up.
	visited []string

	released []interface{}
}

type namespace struct {
	members map[string]interface{}
}

type typeDesc struct {
	name    string
	ctor    func(args []interface{}) (interface{}, error)
	statics map[string]interface{}
}

type counter struct {
	n int64
}

type array struct {
	items []interface{}
}

type boom struct{}

func newTestRuntime() *testRuntime {
	counterType := &typeDesc{
		name: "Counter",
		ctor: func(args []interface{}) (interface{}, error) {
			c := &counter{}
			if 0 < len(args) {
				n, ok := args[0].(int64)
				if !ok {
					return nil, fmt.Errorf("Counter wants an integer, not %T", args[0])
				}
				c.n = n
			}
			return c, nil
		},
		statics: map[string]interface{}{
			"instances": int64(0),
		},
	}
	arrayType := &typeDesc{
		name: "Array",
		ctor: func(args []interface{}) (interface{}, error) {
			return &array{items: append([]interface{}{}, args...)}, nil
		},
	}
	boomType := &typeDesc{
		name: "Boom",
		ctor: func(args []interface{}) (interface{}, error) {
			panic("kaboom")
		},
	}
	math := &namespace{
		members: map[string]interface{}{
			"PI": 3.14159,
			"max": func(args []interface{}) (interface{}, error) {
				var biggest int64
				for _, x := range args {
					if n, ok := x.(int64); ok && biggest < n {
						biggest = n
					}
				}
				return biggest, nil
			},
		},
	}
	return &testRuntime{
		globals: &namespace{
			members: map[string]interface{}{
				"Math":    math,
				"Counter": counterType,
				"Array":   arrayType,
				"Boom":    boomType,
			},
		},
	}
}

func (r *testRuntime) ResolveType(ctx context.Context, name string) (interface{}, error) {
	x, have := r.globals.members[name]
	if !have {
		return nil, NewError(TypeNotFound, "no type %s", name)
	}
	t, is := x.(*typeDesc)
	if !is {
		return nil, NewError(TypeNotFound, "%s isn't a type", name)
	}
	return t, nil
}

func (r *testRuntime) Construct(ctx context.Context, typ interface{}, args []interface{}) (interface{}, error) {
	t, is := typ.(*typeDesc)
	if !is {
		return nil, fmt.Errorf("not a type: %T", typ)
	}
	return t.ctor(args)
}

func (r *testRuntime) Invoke(ctx context.Context, obj interface{}, method string, args []interface{}) (interface{}, error) {
	switch vv := obj.(type) {
	case *counter:
		switch method {
		case "increment":
			vv.n++
			return vv.n, nil
		case "fail":
			return nil, errors.New("counter refused")
		case "self":
			return vv, nil
		}
	case *namespace:
		if f, is := vv.members[method].(func([]interface{}) (interface{}, error)); is {
			return f(args)
		}
	}
	return nil, NewError(NoSuchMethod, "no method %s on %T", method, obj)
}

func (r *testRuntime) InvokeStatic(ctx context.Context, typ interface{}, method string, args []interface{}) (interface{}, error) {
	return nil, NewError(NoSuchMethod, "no static method %s", method)
}

func (r *testRuntime) GetField(ctx context.Context, obj interface{}, name string) (interface{}, error) {
	switch vv := obj.(type) {
	case *counter:
		if name == "n" {
			return vv.n, nil
		}
	case *typeDesc:
		if x, have := vv.statics[name]; have {
			return x, nil
		}
	}
	return nil, NewError(SymbolNotFound, "no field %s", name)
}

func (r *testRuntime) SetField(ctx context.Context, obj interface{}, name string, v interface{}) error {
	switch vv := obj.(type) {
	case *counter:
		if name == "n" {
			n, ok := v.(int64)
			if !ok {
				return fmt.Errorf("n wants an integer")
			}
			vv.n = n
			return nil
		}
	case *typeDesc:
		if _, have := vv.statics[name]; have {
			vv.statics[name] = v
			return nil
		}
	}
	return NewError(SymbolNotFound, "no field %s", name)
}

func (r *testRuntime) ResolveGlobalPath(ctx context.Context, segments []string) (interface{}, error) {
	r.Lock()
	defer r.Unlock()
	var at interface{} = r.globals
	for _, s := range segments {
		r.visited = append(r.visited, s)
		ns, is := at.(*namespace)
		if !is {
			return nil, NewError(SymbolNotFound, "%s", s)
		}
		x, have := ns.members[s]
		if !have {
			return nil, NewError(SymbolNotFound, "%s", s)
		}
		at = x
	}
	return at, nil
}

func (r *testRuntime) walk(arr interface{}, indices []int) (*array, int, error) {
	a, is := arr.(*array)
	if !is {
		return nil, 0, fmt.Errorf("not an array: %T", arr)
	}
	for d, i := range indices {
		if i < 0 || len(a.items) <= i {
			return nil, 0, NewError(IndexOutOfRange, "index %d not in [0,%d)", i, len(a.items))
		}
		if d == len(indices)-1 {
			return a, i, nil
		}
		if a, is = a.items[i].(*array); !is {
			return nil, 0, NewError(IndexOutOfRange, "too many indices")
		}
	}
	return nil, 0, errors.New("no indices")
}

func (r *testRuntime) ArrayGet(ctx context.Context, arr interface{}, indices []int) (interface{}, error) {
	a, i, err := r.walk(arr, indices)
	if err != nil {
		return nil, err
	}
	return a.items[i], nil
}

func (r *testRuntime) ArraySet(ctx context.Context, arr interface{}, indices []int, v interface{}) error {
	a, i, err := r.walk(arr, indices)
	if err != nil {
		return err
	}
	a.items[i] = v
	return nil
}

func (r *testRuntime) ArrayLength(ctx context.Context, arr interface{}) (int, error) {
	a, is := arr.(*array)
	if !is {
		return 0, fmt.Errorf("not an array: %T", arr)
	}
	return len(a.items), nil
}

func (r *testRuntime) Import(x interface{}) interface{} {
	return x
}

func (r *testRuntime) Export(v interface{}) (interface{}, error) {
	switch v.(type) {
	case nil, string, int64, float64, bool, []byte:
		return v, nil
	}
	return nil, fmt.Errorf("can't export %T", v)
}

func (r *testRuntime) IsObject(v interface{}) bool {
	switch v.(type) {
	case *counter, *array, *typeDesc, *namespace, *boom:
		return true
	}
	return false
}

func (r *testRuntime) Release(obj interface{}) {
	r.Lock()
	r.released = append(r.released, obj)
	r.Unlock()
}
