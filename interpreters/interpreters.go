// Package interpreters collects the available host runtimes.
package interpreters

import (
	"fmt"
	"sort"

	"github.com/Comcast/xcall/core"
	"github.com/Comcast/xcall/interpreters/goja"
	"github.com/Comcast/xcall/interpreters/noop"
)

// Factory makes a fresh Runtime.
type Factory func() core.Runtime

// Standard returns the standard runtimes by name.
func Standard() map[string]Factory {
	js := func() core.Runtime {
		return goja.NewRuntime()
	}
	return map[string]Factory{
		"goja":       js,
		"ecmascript": js,
		"noop": func() core.Runtime {
			return noop.NewRuntime()
		},
	}
}

// Names returns the standard runtime names in order.
func Names() []string {
	acc := make([]string, 0, 4)
	for name := range Standard() {
		acc = append(acc, name)
	}
	sort.Strings(acc)
	return acc
}

// Find makes a Runtime by name.
func Find(name string) (core.Runtime, error) {
	f, have := Standard()[name]
	if !have {
		return nil, fmt.Errorf("unknown runtime '%s' (not one of %v)", name, Names())
	}
	return f(), nil
}
