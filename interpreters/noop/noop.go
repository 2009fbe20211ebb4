// Package noop provides a core.Runtime with nothing in it.
package noop

import (
	"context"
	"fmt"

	"github.com/Comcast/xcall/core"
	"github.com/Comcast/xcall/util"

	"go.uber.org/zap"
)

// Global is the (empty) global namespace.
type Global struct{}

// Runtime is a core.Runtime with an empty namespace: every lookup
// fails with the appropriate error.
type Runtime struct {
	// Silent, if false, will log a warning on each lookup.
	Silent bool
}

func NewRuntime() *Runtime {
	return &Runtime{}
}

func (r *Runtime) warn(op, name string) {
	if !r.Silent {
		util.Logger().Warn("noop runtime", zap.String("op", op), zap.String("name", name))
	}
}

func (r *Runtime) ResolveType(ctx context.Context, name string) (interface{}, error) {
	r.warn("ResolveType", name)
	return nil, core.NewError(core.TypeNotFound, "no type %s", name)
}

func (r *Runtime) ResolveGlobalPath(ctx context.Context, segments []string) (interface{}, error) {
	if len(segments) == 0 {
		return Global{}, nil
	}
	r.warn("ResolveGlobalPath", segments[0])
	return nil, core.NewError(core.SymbolNotFound, "%s not found", segments[0])
}

func (r *Runtime) Construct(ctx context.Context, typ interface{}, args []interface{}) (interface{}, error) {
	return nil, core.NewError(core.TypeNotFound, "%T isn't a type", typ)
}

func (r *Runtime) Invoke(ctx context.Context, obj interface{}, method string, args []interface{}) (interface{}, error) {
	r.warn("Invoke", method)
	return nil, core.NewError(core.NoSuchMethod, "no method %s", method)
}

func (r *Runtime) InvokeStatic(ctx context.Context, typ interface{}, method string, args []interface{}) (interface{}, error) {
	return r.Invoke(ctx, typ, method, args)
}

func (r *Runtime) GetField(ctx context.Context, obj interface{}, name string) (interface{}, error) {
	r.warn("GetField", name)
	return nil, core.NewError(core.SymbolNotFound, "no field %s", name)
}

func (r *Runtime) SetField(ctx context.Context, obj interface{}, name string, v interface{}) error {
	r.warn("SetField", name)
	return core.NewError(core.SymbolNotFound, "no field %s", name)
}

func notArray(arr interface{}) error {
	return fmt.Errorf("a %T isn't an array", arr)
}

func (r *Runtime) ArrayGet(ctx context.Context, arr interface{}, indices []int) (interface{}, error) {
	return nil, notArray(arr)
}

func (r *Runtime) ArraySet(ctx context.Context, arr interface{}, indices []int, v interface{}) error {
	return notArray(arr)
}

func (r *Runtime) ArrayLength(ctx context.Context, arr interface{}) (int, error) {
	return 0, notArray(arr)
}

func (r *Runtime) Import(x interface{}) interface{} {
	return x
}

func (r *Runtime) Export(v interface{}) (interface{}, error) {
	switch v.(type) {
	case nil, bool, string, int64, float64, []byte:
		return v, nil
	}
	return nil, fmt.Errorf("can't export a %T", v)
}

func (r *Runtime) IsObject(v interface{}) bool {
	_, is := v.(Global)
	return is
}
