package goja

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Comcast/xcall/core"

	"github.com/dop251/goja"
)

// toValue converts a Go value into a Goja value.  Must be called
// with the lock held.
func (r *Runtime) toValue(x interface{}) goja.Value {
	switch vv := x.(type) {
	case goja.Value:
		if vv == nil {
			return goja.Null()
		}
		return vv
	case nil:
		return goja.Null()
	case []byte:
		return r.vm.ToValue(r.vm.NewArrayBuffer(append([]byte{}, vv...)))
	default:
		return r.vm.ToValue(x)
	}
}

func (r *Runtime) values(xs []interface{}) []goja.Value {
	acc := make([]goja.Value, len(xs))
	for i, x := range xs {
		acc[i] = r.toValue(x)
	}
	return acc
}

// object coerces x to an object.  Must be called with the lock held.
func (r *Runtime) object(x interface{}) (*goja.Object, error) {
	v := r.toValue(x)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, fmt.Errorf("%s has no properties", v)
	}
	return v.ToObject(r.vm), nil
}

var identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// lexical returns the value of a top-level let, const, or class
// binding, or nil.  Those bindings aren't properties of the global
// object.  Must be called with the lock held.
func (r *Runtime) lexical(name string) goja.Value {
	if !identifier.MatchString(name) {
		return nil
	}
	v, err := r.vm.RunString(`typeof ` + name + ` === "undefined" ? undefined : ` + name)
	if err != nil || v == nil || goja.IsUndefined(v) {
		return nil
	}
	return v
}

// global gets a name from the global object or, failing that, from
// the global lexical scope.
func (r *Runtime) global(name string) goja.Value {
	if v := r.vm.GlobalObject().Get(name); v != nil {
		return v
	}
	return r.lexical(name)
}

// resolve walks the global namespace.  A missing segment is an error
// of the given kind that names that segment.
func (r *Runtime) resolve(segments []string, kind core.ErrorKind) (goja.Value, error) {
	var at goja.Value = r.vm.GlobalObject()
	for i, s := range segments {
		if goja.IsUndefined(at) || goja.IsNull(at) {
			return nil, core.NewError(kind, "%s: %s is %s", s, strings.Join(segments[:i], "."), at)
		}
		var v goja.Value
		if i == 0 {
			v = r.global(s)
		} else {
			v = at.ToObject(r.vm).Get(s)
		}
		if v == nil {
			if i == 0 {
				return nil, core.NewError(kind, "%s not found", s)
			}
			return nil, core.NewError(kind, "%s not found in %s", s, strings.Join(segments[:i], "."))
		}
		at = v
	}
	return at, nil
}

func (r *Runtime) ResolveType(ctx context.Context, name string) (interface{}, error) {
	segments := strings.Split(name, ".")
	return r.run(ctx, func() (interface{}, error) {
		v, err := r.resolve(segments, core.TypeNotFound)
		if err != nil {
			return nil, err
		}
		if _, is := goja.AssertConstructor(v); !is {
			return nil, core.NewError(core.TypeNotFound, "%s isn't a constructor", name)
		}
		return v, nil
	})
}

func (r *Runtime) ResolveGlobalPath(ctx context.Context, segments []string) (interface{}, error) {
	return r.run(ctx, func() (interface{}, error) {
		return r.resolve(segments, core.SymbolNotFound)
	})
}

func (r *Runtime) Construct(ctx context.Context, typ interface{}, args []interface{}) (interface{}, error) {
	return r.run(ctx, func() (interface{}, error) {
		c := r.toValue(typ)
		if _, is := goja.AssertConstructor(c); !is {
			return nil, core.NewError(core.TypeNotFound, "%s isn't a constructor", c)
		}
		o, err := r.vm.New(c, r.values(args)...)
		if err != nil {
			return nil, err
		}
		return o, nil
	})
}

func (r *Runtime) invoke(ctx context.Context, target interface{}, method string, args []interface{}) (interface{}, error) {
	return r.run(ctx, func() (interface{}, error) {
		o, err := r.object(target)
		if err != nil {
			return nil, err
		}
		m := o.Get(method)
		if m == nil && o == r.vm.GlobalObject() {
			m = r.lexical(method)
		}
		if m == nil || goja.IsUndefined(m) {
			return nil, core.NewError(core.NoSuchMethod, "no method %s", method)
		}
		f, is := goja.AssertFunction(m)
		if !is {
			return nil, core.NewError(core.NoSuchMethod, "%s isn't a function", method)
		}
		v, err := f(o, r.values(args)...)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}

func (r *Runtime) Invoke(ctx context.Context, obj interface{}, method string, args []interface{}) (interface{}, error) {
	return r.invoke(ctx, obj, method, args)
}

// InvokeStatic calls a method on the constructor itself.
func (r *Runtime) InvokeStatic(ctx context.Context, typ interface{}, method string, args []interface{}) (interface{}, error) {
	return r.invoke(ctx, typ, method, args)
}

func (r *Runtime) GetField(ctx context.Context, obj interface{}, name string) (interface{}, error) {
	return r.run(ctx, func() (interface{}, error) {
		o, err := r.object(obj)
		if err != nil {
			return nil, err
		}
		v := o.Get(name)
		if v == nil {
			return nil, core.NewError(core.SymbolNotFound, "no property %s", name)
		}
		return v, nil
	})
}

func (r *Runtime) SetField(ctx context.Context, obj interface{}, name string, x interface{}) error {
	_, err := r.run(ctx, func() (interface{}, error) {
		o, err := r.object(obj)
		if err != nil {
			return nil, err
		}
		return nil, o.Set(name, r.toValue(x))
	})
	return err
}

func (r *Runtime) length(o *goja.Object) (int, error) {
	l := o.Get("length")
	if l == nil || goja.IsUndefined(l) || goja.IsNull(l) {
		return 0, fmt.Errorf("a %s isn't an array", o.ClassName())
	}
	return int(l.ToInteger()), nil
}

// locate walks nested arrays to the container of the last index.
func (r *Runtime) locate(arr interface{}, indices []int) (*goja.Object, string, error) {
	if len(indices) == 0 {
		return nil, "", core.Malformed("no indices")
	}
	o, err := r.object(arr)
	if err != nil {
		return nil, "", err
	}
	last := len(indices) - 1
	for d, i := range indices {
		n, err := r.length(o)
		if err != nil {
			return nil, "", err
		}
		if i < 0 || n <= i {
			return nil, "", core.NewError(core.IndexOutOfRange, "index %d (dimension %d) not in [0,%d)", i, d, n)
		}
		k := strconv.Itoa(i)
		if d == last {
			return o, k, nil
		}
		next, is := o.Get(k).(*goja.Object)
		if !is {
			return nil, "", core.NewError(core.IndexOutOfRange, "too many indices: element %d (dimension %d) isn't an array", i, d)
		}
		o = next
	}
	// Not reached.
	return nil, "", errors.New("no element")
}

func (r *Runtime) ArrayGet(ctx context.Context, arr interface{}, indices []int) (interface{}, error) {
	return r.run(ctx, func() (interface{}, error) {
		o, k, err := r.locate(arr, indices)
		if err != nil {
			return nil, err
		}
		v := o.Get(k)
		if v == nil {
			return goja.Undefined(), nil
		}
		return v, nil
	})
}

func (r *Runtime) ArraySet(ctx context.Context, arr interface{}, indices []int, x interface{}) error {
	_, err := r.run(ctx, func() (interface{}, error) {
		o, k, err := r.locate(arr, indices)
		if err != nil {
			return nil, err
		}
		return nil, o.Set(k, r.toValue(x))
	})
	return err
}

func (r *Runtime) ArrayLength(ctx context.Context, arr interface{}) (int, error) {
	x, err := r.run(ctx, func() (interface{}, error) {
		o, err := r.object(arr)
		if err != nil {
			return nil, err
		}
		return r.length(o)
	})
	if err != nil {
		return 0, err
	}
	return x.(int), nil
}

// Import converts a Primitive's value into a Goja value.
func (r *Runtime) Import(x interface{}) interface{} {
	r.lock()
	defer r.unlock()
	return r.toValue(x)
}

// Export converts a Goja primitive into a Go primitive.  An
// ArrayBuffer becomes []byte.
func (r *Runtime) Export(x interface{}) (interface{}, error) {
	v, is := x.(goja.Value)
	if !is {
		switch x.(type) {
		case nil, bool, string, int64, float64, []byte:
			return x, nil
		}
		return nil, fmt.Errorf("can't export a %T", x)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}

	r.lock()
	defer r.unlock()

	switch vv := v.Export().(type) {
	case goja.ArrayBuffer:
		return append([]byte{}, vv.Bytes()...), nil
	case nil, bool, string, int64, float64:
		return vv, nil
	default:
		return nil, fmt.Errorf("can't export a %T as a primitive", vv)
	}
}

// IsObject reports whether x is a Goja object other than an
// ArrayBuffer.
func (r *Runtime) IsObject(x interface{}) bool {
	o, is := x.(*goja.Object)
	if !is || o == nil {
		return false
	}
	r.lock()
	defer r.unlock()
	return o.ClassName() != "ArrayBuffer"
}
