package goja

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Comcast/xcall/core"
	"github.com/Comcast/xcall/storage"
	"github.com/Comcast/xcall/util/testutil"
)

var counterSrc = `
function Counter(n) { this.n = n || 0; }
Counter.prototype.increment = function() { return ++this.n; };
Counter.prototype.fail = function() { throw new Error("counter refused"); };
Counter.instances = 0;
Counter.create = function(n) { Counter.instances++; return new Counter(n); };

function Grumpy() { throw new Error("no"); }

function same(x) { return x; }

function spin() { for (;;) {} }

var grid = [[1, 2], [3, 4]];
var xs = [1, 2, 3];
`

func setup(t *testing.T) (*core.Interpreter, *Runtime) {
	t.Helper()

	rt := NewRuntime()
	rt.Testing = true

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rt.Load(ctx, "counter.js", counterSrc); err != nil {
		t.Fatal(err)
	}
	return core.NewInterpreter(rt, core.NewCache()), rt
}

func interpret(t *testing.T, i *core.Interpreter, c *core.Command) core.Value {
	t.Helper()
	v, err := i.Interpret(context.Background(), c)
	if err != nil {
		t.Fatalf("%s: %v", c, err)
	}
	return v
}

func TestRuntimeImpl(t *testing.T) {
	var _ core.Runtime = NewRuntime()
}

func TestConstructThenInvoke(t *testing.T) {
	i, _ := setup(t)
	ctx := context.Background()

	ref := interpret(t, i, core.NewCommand(core.CreateInstance, "Counter"))
	if ref != (core.Reference{ID: 1}) {
		t.Fatalf("got %s", core.ValueString(ref))
	}

	inc := core.NewCommand(core.InvokeInstanceMethod, ref, "increment")
	for want := int64(1); want <= 2; want++ {
		if v := interpret(t, i, inc); v != (core.Primitive{V: want}) {
			t.Fatalf("wanted %d, got %s", want, core.ValueString(v))
		}
	}

	interpret(t, i, core.NewCommand(core.DestructReference, ref))

	if _, err := i.Interpret(ctx, inc); !core.IsKind(err, core.UnknownReference) {
		t.Fatalf("wanted UnknownReference, got %v", err)
	}
}

var tallySrc = `
class Tally {
  constructor(n) { this.n = n || 0; }
  increment() { return ++this.n; }
  static zero() { return new Tally(0); }
}
const Limit = 3;
let label = "tally";
const double = (x) => 2 * x;
`

func TestLexicalGlobals(t *testing.T) {
	rt := NewRuntime()
	ctx := context.Background()
	if err := rt.Load(ctx, "tally.js", tallySrc); err != nil {
		t.Fatal(err)
	}
	i := core.NewInterpreter(rt, core.NewCache())

	ref := interpret(t, i, core.NewCommand(core.CreateInstance, "Tally", 4))
	inc := core.NewCommand(core.InvokeInstanceMethod, ref, "increment")
	if v := interpret(t, i, inc); v != (core.Primitive{V: int64(5)}) {
		t.Fatalf("got %s", core.ValueString(v))
	}
	interpret(t, i, core.NewCommand(core.DestructReference, ref))
	if _, err := i.Interpret(ctx, inc); !core.IsKind(err, core.UnknownReference) {
		t.Fatalf("wanted UnknownReference, got %v", err)
	}

	zero := interpret(t, i, core.NewCommand(core.InvokeStaticMethod, "Tally", "zero"))
	if v := interpret(t, i, core.NewCommand(core.GetInstanceField, zero, "n")); v != (core.Primitive{V: int64(0)}) {
		t.Fatalf("got %s", core.ValueString(v))
	}
	if v := interpret(t, i, core.NewCommand(core.GetGlobalField, "Limit")); v != (core.Primitive{V: int64(3)}) {
		t.Fatalf("got %s", core.ValueString(v))
	}
	if v := interpret(t, i, core.NewCommand(core.GetGlobalField, "label", "length")); v != (core.Primitive{V: int64(5)}) {
		t.Fatalf("got %s", core.ValueString(v))
	}
	if v := interpret(t, i, core.NewCommand(core.InvokeGlobalMethod, "double", 21)); v != (core.Primitive{V: int64(42)}) {
		t.Fatalf("got %s", core.ValueString(v))
	}
	if v := interpret(t, i, core.NewCommand(core.InvokeGlobalMethod, "Tally.zero")); v == core.Void {
		t.Fatalf("got %s", core.ValueString(v))
	}

	for _, name := range []string{"Nope", "Limit; 1", "1x"} {
		if _, err := i.Interpret(ctx, core.NewCommand(core.GetGlobalField, name)); !core.IsKind(err, core.SymbolNotFound) {
			t.Fatalf("%s: wanted SymbolNotFound, got %v", name, err)
		}
	}
	if _, err := i.Interpret(ctx, core.NewCommand(core.GetType, "Limit")); !core.IsKind(err, core.TypeNotFound) {
		t.Fatalf("wanted TypeNotFound, got %v", err)
	}
}

func TestNested(t *testing.T) {
	i, _ := setup(t)

	c := core.NewCommand(core.InvokeInstanceMethod,
		core.NewCommand(core.CreateInstance, "Counter", 41),
		"increment")

	if v := interpret(t, i, c); v != (core.Primitive{V: int64(42)}) {
		t.Fatalf("got %s", core.ValueString(v))
	}
}

func TestFields(t *testing.T) {
	i, _ := setup(t)

	ref := interpret(t, i, core.NewCommand(core.CreateInstance, "Counter", 7))
	interpret(t, i, core.NewCommand(core.SetInstanceField, ref, "n", 10))
	if v := interpret(t, i, core.NewCommand(core.GetInstanceField, ref, "n")); v != (core.Primitive{V: int64(10)}) {
		t.Fatalf("got %s", core.ValueString(v))
	}

	_, err := i.Interpret(context.Background(), core.NewCommand(core.GetInstanceField, ref, "nope"))
	if !core.IsKind(err, core.SymbolNotFound) {
		t.Fatalf("wanted SymbolNotFound, got %v", err)
	}

	interpret(t, i, core.NewCommand(core.InvokeStaticMethod, "Counter", "create", 3))
	if v := interpret(t, i, core.NewCommand(core.GetStaticField, "Counter", "instances")); v != (core.Primitive{V: int64(1)}) {
		t.Fatalf("got %s", core.ValueString(v))
	}
	interpret(t, i, core.NewCommand(core.SetStaticField, "Counter", "instances", 10))
	if v := interpret(t, i, core.NewCommand(core.GetGlobalField, "Counter.instances")); v != (core.Primitive{V: int64(10)}) {
		t.Fatalf("got %s", core.ValueString(v))
	}
}

func TestArrays(t *testing.T) {
	i, _ := setup(t)
	ctx := context.Background()

	xs := interpret(t, i, core.NewCommand(core.GetGlobalField, "xs"))
	if _, is := xs.(core.Reference); !is {
		t.Fatalf("got %s", core.ValueString(xs))
	}

	_, err := i.Interpret(ctx, core.NewCommand(core.ArraySetItem, xs, 42, 5))
	if !core.IsKind(err, core.IndexOutOfRange) {
		t.Fatalf("wanted IndexOutOfRange, got %v", err)
	}
	if v := interpret(t, i, core.NewCommand(core.ArrayGetSize, xs)); v != (core.Primitive{V: int64(3)}) {
		t.Fatalf("array grew to %s", core.ValueString(v))
	}

	interpret(t, i, core.NewCommand(core.ArraySetItem, xs, "x", 2))
	if v := interpret(t, i, core.NewCommand(core.ArrayGetItem, xs, 2)); v != (core.Primitive{V: "x"}) {
		t.Fatalf("got %s", core.ValueString(v))
	}

	grid := interpret(t, i, core.NewCommand(core.GetGlobalField, "grid"))
	if v := interpret(t, i, core.NewCommand(core.ArrayGetItem, grid, 1, 0)); v != (core.Primitive{V: int64(3)}) {
		t.Fatalf("got %s", core.ValueString(v))
	}
	if _, err = i.Interpret(ctx, core.NewCommand(core.ArrayGetItem, grid, 0, 2)); !core.IsKind(err, core.IndexOutOfRange) {
		t.Fatalf("wanted IndexOutOfRange, got %v", err)
	}
	if _, err = i.Interpret(ctx, core.NewCommand(core.ArrayGetItem, grid, 0, 0, 0)); !core.IsKind(err, core.IndexOutOfRange) {
		t.Fatalf("wanted IndexOutOfRange, got %v", err)
	}

	// A Counter has no length.
	ref := interpret(t, i, core.NewCommand(core.CreateInstance, "Counter"))
	if _, err = i.Interpret(ctx, core.NewCommand(core.ArrayGetSize, ref)); !core.IsKind(err, core.InvocationError) {
		t.Fatalf("wanted InvocationError, got %v", err)
	}
}

func TestGlobalPath(t *testing.T) {
	i, _ := setup(t)

	v := interpret(t, i, core.NewCommand(core.GetGlobalField, "Math", "PI"))
	if p, is := v.(core.Primitive); !is || p.V != 3.141592653589793 {
		t.Fatalf("got %s", core.ValueString(v))
	}

	_, err := i.Interpret(context.Background(), core.NewCommand(core.GetGlobalField, "Math", "Nope", "X"))
	if !core.IsKind(err, core.SymbolNotFound) {
		t.Fatalf("wanted SymbolNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "Nope") {
		t.Fatalf("error %q doesn't name the segment", err)
	}

	if v = interpret(t, i, core.NewCommand(core.InvokeGlobalMethod, "Math.max", 3, 9, 4)); v != (core.Primitive{V: int64(9)}) {
		t.Fatalf("got %s", core.ValueString(v))
	}
}

func TestTypes(t *testing.T) {
	i, _ := setup(t)
	ctx := context.Background()

	typ := interpret(t, i, core.NewCommand(core.GetType, "Counter"))
	ref := interpret(t, i, core.NewCommand(core.CreateInstance, typ, 5))
	if v := interpret(t, i, core.NewCommand(core.InvokeInstanceMethod, ref, "increment")); v != (core.Primitive{V: int64(6)}) {
		t.Fatalf("got %s", core.ValueString(v))
	}

	for _, name := range []string{"Math", "Nope", "Counter.nope", "xs"} {
		if _, err := i.Interpret(ctx, core.NewCommand(core.GetType, name)); !core.IsKind(err, core.TypeNotFound) {
			t.Fatalf("%s: wanted TypeNotFound, got %v", name, err)
		}
	}
}

func TestFaults(t *testing.T) {
	i, _ := setup(t)
	ctx := context.Background()

	_, err := i.Interpret(ctx, core.NewCommand(core.CreateInstance, "Grumpy"))
	if !core.IsKind(err, core.ConstructionError) {
		t.Fatalf("wanted ConstructionError, got %v", err)
	}

	ref := interpret(t, i, core.NewCommand(core.CreateInstance, "Counter"))
	_, err = i.Interpret(ctx, core.NewCommand(core.InvokeInstanceMethod, ref, "fail"))
	if !core.IsKind(err, core.InvocationError) {
		t.Fatalf("wanted InvocationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "counter refused") {
		t.Fatalf("lost the host's message: %v", err)
	}

	for _, method := range []string{"nope", "n"} {
		_, err = i.Interpret(ctx, core.NewCommand(core.InvokeInstanceMethod, ref, method))
		if !core.IsKind(err, core.NoSuchMethod) {
			t.Fatalf("%s: wanted NoSuchMethod, got %v", method, err)
		}
	}

	_, err = i.Interpret(ctx, core.NewCommand(core.Cast, ref, "Counter"))
	if !core.IsKind(err, core.UnsupportedOperation) {
		t.Fatalf("wanted UnsupportedOperation, got %v", err)
	}
}

func TestBytes(t *testing.T) {
	i, _ := setup(t)

	bs := []byte("queso")
	v := interpret(t, i, core.NewCommand(core.InvokeGlobalMethod, "same", bs))
	p, is := v.(core.Primitive)
	if !is {
		t.Fatalf("got %s", core.ValueString(v))
	}
	got, is := p.V.([]byte)
	if !is || !bytes.Equal(got, bs) {
		t.Fatalf("got %#v", p.V)
	}

	if v = interpret(t, i, core.NewCommand(core.InvokeGlobalMethod, "same", nil)); v != core.Void {
		t.Fatalf("got %s", core.ValueString(v))
	}
}

func TestInterrupt(t *testing.T) {
	i, _ := setup(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := i.Interpret(ctx, core.NewCommand(core.InvokeGlobalMethod, "spin"))
	if !core.IsKind(err, core.InvocationError) {
		t.Fatalf("wanted InvocationError, got %v", err)
	}
	if !errors.Is(err, Interrupted) {
		t.Fatalf("wanted Interrupted, got %v", err)
	}

	// The interrupt doesn't stick.
	if v := interpret(t, i, core.NewCommand(core.InvokeGlobalMethod, "same", 1)); v != (core.Primitive{V: int64(1)}) {
		t.Fatalf("got %s", core.ValueString(v))
	}
}

func TestSleepInterrupted(t *testing.T) {
	rt := NewRuntime()
	rt.Testing = true

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := rt.Load(ctx, "sleepy", `for (;;) { _.sleep(10); }`)
	if !errors.Is(err, Interrupted) {
		t.Fatalf("wanted Interrupted, got %v", err)
	}
}

func TestCronNext(t *testing.T) {
	i, _ := setup(t)

	v := interpret(t, i, core.NewCommand(core.InvokeGlobalMethod, "_.cronNext", "* 0 * * *"))
	p, is := v.(core.Primitive)
	if !is {
		t.Fatalf("got %s", core.ValueString(v))
	}
	s, is := p.V.(string)
	if !is {
		t.Fatalf("got %#v", p.V)
	}
	if _, err := time.Parse(time.RFC3339Nano, s); err != nil {
		t.Fatal(err)
	}

	_, err := i.Interpret(context.Background(), core.NewCommand(core.InvokeGlobalMethod, "_.cronNext", "bad"))
	if !core.IsKind(err, core.InvocationError) {
		t.Fatalf("wanted InvocationError, got %v", err)
	}
}

func TestEsc(t *testing.T) {
	i, _ := setup(t)

	v := interpret(t, i, core.NewCommand(core.InvokeGlobalMethod, "_.esc", "chips & queso"))
	if v != (core.Primitive{V: "chips+%26+queso"}) {
		t.Fatalf("got %s", core.ValueString(v))
	}
}

func TestStringify(t *testing.T) {
	i, _ := setup(t)

	ref := interpret(t, i, core.NewCommand(core.CreateInstance, "Counter", int64(3)))
	v := interpret(t, i, core.NewCommand(core.InvokeGlobalMethod, "JSON.stringify", ref))
	p, is := v.(core.Primitive)
	if !is {
		t.Fatalf("got %s", core.ValueString(v))
	}
	want := testutil.JS(map[string]interface{}{"n": 3})
	if !reflect.DeepEqual(testutil.Dwimjs(p.V), testutil.Dwimjs(want)) {
		t.Fatalf("wanted %s, got %s", want, testutil.JS(p.V))
	}
}

func TestRequireStore(t *testing.T) {
	var (
		ctx = context.Background()
		s   = storage.NewMemStore()
	)
	if err := s.Put(ctx, &storage.Library{Name: "counter", Source: counterSrc}); err != nil {
		t.Fatal(err)
	}

	rt := NewRuntime()
	rt.LibraryProvider = MakeStoreLibraryProvider(s, MakeMapLibraryProvider(map[string]string{
		"double": `function double(x) { return 2*x; }`,
	}))

	src := `
require("store://counter");
require("double");
var c = new Counter(double(21));
`
	if err := rt.Load(ctx, "main", src); err != nil {
		t.Fatal(err)
	}

	i := core.NewInterpreter(rt, core.NewCache())
	if v := interpret(t, i, core.NewCommand(core.GetGlobalField, "c.n")); v != (core.Primitive{V: int64(42)}) {
		t.Fatalf("got %s", core.ValueString(v))
	}

	if err := rt.Load(ctx, "missing", `require("store://nope");`); !errors.Is(err, storage.NotFound) {
		t.Fatalf("wanted NotFound, got %v", err)
	}
}

func TestRequireHTTP(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `
function foo() { return "queso"; }
`)
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	rt := NewRuntime()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rt.Require(ctx, server.URL+"/foo.js"); err != nil {
		t.Fatal(err)
	}

	i := core.NewInterpreter(rt, core.NewCache())
	if v := interpret(t, i, core.NewCommand(core.InvokeGlobalMethod, "foo")); v != (core.Primitive{V: "queso"}) {
		t.Fatalf("got %s", core.ValueString(v))
	}
}

func TestFileLibraryProviderDots(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "..lib.js"), []byte("var dots = 1;"), 0644); err != nil {
		t.Fatal(err)
	}
	p := MakeFileLibraryProvider(dir)
	src, err := p(context.Background(), nil, "file://..lib.js")
	if err != nil {
		t.Fatal(err)
	}
	if src != "var dots = 1;" {
		t.Fatalf("got %q", src)
	}
}

func TestFileLibraryProviderConfined(t *testing.T) {
	p := MakeFileLibraryProvider(t.TempDir())
	for _, name := range []string{"file://../etc/passwd", "file://..", "file://a/../../b.js", "file:///etc/passwd", "ftp://x", "plain"} {
		if _, err := p(context.Background(), nil, name); err == nil {
			t.Fatalf("%s: didn't protest", name)
		}
	}
}
