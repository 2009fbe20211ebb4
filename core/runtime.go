package core

import (
	"context"
)

// Runtime is the host runtime adapter: the capability that actually
// constructs objects, calls methods, and touches fields and arrays in
// some concrete language runtime.
//
// Values passed in and out are the runtime's own representations.
// Handlers obtain them from Import (for Primitives) or from the Cache
// (for References), and settle results with IsObject and Export.
//
// An implementation may return an *Error to classify a failure
// (SymbolNotFound, NoSuchMethod, IndexOutOfRange, ...).  Any other
// error is treated as a fault raised by the target.  A Runtime may
// block; it should honor ctx if it can.
type Runtime interface {
	// Construct makes a new instance of typ, which came from
	// ResolveType.
	Construct(ctx context.Context, typ interface{}, args []interface{}) (interface{}, error)

	Invoke(ctx context.Context, obj interface{}, method string, args []interface{}) (interface{}, error)

	InvokeStatic(ctx context.Context, typ interface{}, method string, args []interface{}) (interface{}, error)

	GetField(ctx context.Context, obj interface{}, name string) (interface{}, error)

	SetField(ctx context.Context, obj interface{}, name string, v interface{}) error

	// ResolveGlobalPath walks segments from the global namespace.
	// No segments means the global namespace itself.  The first
	// missing segment is reported as SymbolNotFound.
	ResolveGlobalPath(ctx context.Context, segments []string) (interface{}, error)

	// ResolveType returns a type descriptor or TypeNotFound.
	ResolveType(ctx context.Context, name string) (interface{}, error)

	ArrayGet(ctx context.Context, arr interface{}, indices []int) (interface{}, error)

	ArraySet(ctx context.Context, arr interface{}, indices []int, v interface{}) error

	ArrayLength(ctx context.Context, arr interface{}) (int, error)

	// Import converts a Primitive's payload to a runtime value.
	Import(x interface{}) interface{}

	// Export converts a runtime value that isn't an object to a
	// Primitive payload.
	Export(v interface{}) (interface{}, error)

	// IsObject decides whether a value is cached (and returned as
	// a Reference) or exported as a Primitive.
	IsObject(v interface{}) bool
}

// Releaser is optionally implemented by a Runtime that wants to know
// when an object is no longer referenced from the Cache.
type Releaser interface {
	Release(obj interface{})
}
