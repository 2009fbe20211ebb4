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

// Package goja provides a core.Runtime backed by Goja, which is a Go
// implementation of ECMAScript 5.1+.
//
// See https://github.com/dop251/goja.
package goja

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/Comcast/xcall/core"
	"github.com/Comcast/xcall/util"

	"github.com/dop251/goja"
	"github.com/gorhill/cronexpr"
	"go.uber.org/zap"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is the cause of an error from a call that was
	// interrupted by its context.
	Interrupted = errors.New(InterruptedMessage)
)

// Runtime implements core.Runtime with a single Goja VM.
//
// The VM isn't safe for concurrent use, so every call takes the
// Runtime's lock.  A context that's done while a call is running
// interrupts the VM.
//
// Types are constructor functions, found by (dotted) global path.
// Arrays are any objects with a numeric "length".
type Runtime struct {

	// Testing is used to expose or hide some runtime
	// capabilities.  Set it before the first call.
	Testing bool

	// LibraryProvider resolves the names given to require().  If
	// nil, DefaultLibraryProvider is used.
	LibraryProvider LibraryProvider

	mu sync.Mutex
	vm *goja.Runtime
}

// NewRuntime makes a new Runtime.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// lock takes the lock and makes the VM if necessary.
func (r *Runtime) lock() {
	r.mu.Lock()
	if r.vm == nil {
		r.vm = goja.New()
		r.install()
	}
}

func (r *Runtime) unlock() {
	r.mu.Unlock()
}

func protest(o *goja.Runtime, x interface{}) {
	panic(o.ToValue(x))
}

// install sets up the global "_", which has these properties:
//
//	gensym(): generate a random string.
//	esc(s): URL query-escape the given string.
//	cronNext(s): Return a string representing (RFC3999Nano) the
//	  next time for the given crontab expression.
//	log(x): Log the given value (as JSON) at info level.
//
// For testing only:
//
//	sleep(ms): sleep for the given number of milliseconds.
//
// The Testing flag must be set to see sleep().
func (r *Runtime) install() {
	o := r.vm
	env := map[string]interface{}{}

	env["gensym"] = func() interface{} {
		return core.Gensym(32)
	}

	env["esc"] = func(x interface{}) interface{} {
		switch vv := x.(type) {
		case goja.Value:
			x = vv.Export()
		}
		s, is := x.(string)
		if !is {
			protest(o, "not a string")
		}
		return url.QueryEscape(s)
	}

	// cronNext parses the given string as a crontab expression
	// using github.com/gorhill/cronexpr.
	env["cronNext"] = func(x interface{}) interface{} {
		switch vv := x.(type) {
		case goja.Value:
			x = vv.Export()
		}
		cronExpr, is := x.(string)
		if !is {
			protest(o, "not a string")
		}

		c, err := cronexpr.Parse(cronExpr)
		if err != nil {
			protest(o, err.Error())
		}
		return c.Next(time.Now()).UTC().Format(time.RFC3339Nano)
	}

	env["log"] = func(x interface{}) interface{} {
		switch vv := x.(type) {
		case goja.Value:
			x = vv.Export()
		}
		js, err := json.Marshal(&x)
		if err != nil {
			util.Logger().Warn("goja.log", zap.String("unmarshalable", fmt.Sprintf("%#v", x)), zap.Error(err))
		} else {
			util.Logger().Info("goja.log", zap.String("value", string(js)))
		}
		return x
	}

	if r.Testing {
		env["sleep"] = func(n interface{}) interface{} {
			switch vv := n.(type) {
			case goja.Value:
				n = vv.Export()
			}
			ms, is := n.(int64)
			if !is {
				protest(o, fmt.Sprintf("a %T is not an %T", n, ms))
			}
			time.Sleep(time.Duration(ms) * time.Millisecond)
			return nil
		}
	}

	o.Set("_", env)
}

// run calls f with the lock held.
//
// If ctx is done before f returns, the VM is interrupted.  The
// interrupt is always cleared before run returns, so a late
// cancellation doesn't affect the next call.
func (r *Runtime) run(ctx context.Context, f func() (interface{}, error)) (x interface{}, err error) {
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	r.lock()
	defer r.unlock()

	var (
		done   = make(chan struct{})
		exited = make(chan struct{})
	)
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			r.vm.Interrupt(InterruptedMessage)
		case <-done:
		}
	}()

	defer func() {
		close(done)
		<-exited
		r.vm.ClearInterrupt()

		if p := recover(); p != nil {
			x = nil
			err = panicked(p)
		}
	}()

	x, err = f()
	if err != nil {
		x = nil
		var ie *goja.InterruptedError
		if errors.As(err, &ie) {
			err = Interrupted
		}
	}
	return x, err
}

// panicked converts a recovered panic into an error.
func panicked(p interface{}) error {
	switch vv := p.(type) {
	case *goja.InterruptedError:
		return Interrupted
	case error:
		return vv
	case goja.Value:
		return errors.New(vv.String())
	default:
		return fmt.Errorf("%v", p)
	}
}

// ProvideLibrary resolves the library name into source.
func (r *Runtime) ProvideLibrary(ctx context.Context, name string) (string, error) {
	if r.LibraryProvider != nil {
		return r.LibraryProvider(ctx, r, name)
	}
	return DefaultLibraryProvider(ctx, r, name)
}

// Load runs the given script after InlineRequires.
//
// Anything the script defines globally is then available to
// Commands.  Fetching required libraries happens before the lock is
// taken.
func (r *Runtime) Load(ctx context.Context, name, src string) error {
	code, err := InlineRequires(ctx, src, r.ProvideLibrary)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	p, err := goja.Compile(name, code, false)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	if _, err = r.run(ctx, func() (interface{}, error) {
		return r.vm.RunProgram(p)
	}); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	util.Logger().Debug("loaded", zap.String("library", name))

	return nil
}

// Require loads the named library via ProvideLibrary.
func (r *Runtime) Require(ctx context.Context, name string) error {
	src, err := r.ProvideLibrary(ctx, name)
	if err != nil {
		return err
	}
	return r.Load(ctx, name, src)
}
