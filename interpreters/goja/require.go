package goja

import (
	"context"
	"fmt"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// InlineRequires generates new source code that replaces top-level
// require("name") statements with the code that those statements
// reference.
//
// Libraries can require other libraries.  Each library is inlined at
// most once: a later require of the same name (including a cycle)
// is just dropped.
//
// The rewrite is based on the source's AST but works on the source
// text, since Goja can't (easily) combine modified ASTs or Programs.
// Inlining (rather than a runtime require() function) means no eval
// is needed and the result can be compiled once.
func InlineRequires(ctx context.Context, src string, provider func(context.Context, string) (string, error)) (string, error) {
	return inline(ctx, src, provider, make(map[string]bool))
}

type required struct {
	from, to int
	name     string
}

// requires finds the top-level require statements in src.  Offsets
// are into src.
func requires(src string) ([]required, error) {
	p, err := parser.ParseFile(nil, "", src, 0)
	if err != nil {
		return nil, err
	}

	acc := make([]required, 0, 8)

	for _, s := range p.Body {
		exps, is := s.(*ast.ExpressionStatement)
		if !is {
			continue
		}

		call, is := exps.Expression.(*ast.CallExpression)
		if !is {
			continue
		}

		id, is := call.Callee.(*ast.Identifier)
		if !is {
			continue
		}
		if id.Name != "require" {
			continue
		}
		if len(call.ArgumentList) != 1 {
			return nil, fmt.Errorf("bad require args: %#v", call.ArgumentList)
		}

		arg := call.ArgumentList[0]
		lit, is := arg.(*ast.StringLiteral)
		if !is {
			return nil, fmt.Errorf("bad require arg: %#v", arg)
		}

		// File indexes are 1-based.
		r := required{
			from: int(exps.Idx0()) - 1,
			to:   int(exps.Idx1()) - 1,
			name: string(lit.Value),
		}
		if r.to < len(src) && src[r.to] == ';' {
			r.to++
		}
		acc = append(acc, r)
	}

	return acc, nil
}

func inline(ctx context.Context, src string, provider func(context.Context, string) (string, error), seen map[string]bool) (string, error) {
	rs, err := requires(src)
	if err != nil {
		return "", err
	}
	if len(rs) == 0 {
		return src, nil
	}

	var (
		acc  = make([]byte, 0, len(src))
		last = 0
	)
	for _, r := range rs {
		acc = append(acc, src[last:r.from]...)
		last = r.to

		if seen[r.name] {
			continue
		}
		seen[r.name] = true

		lib, err := provider(ctx, r.name)
		if err != nil {
			return "", fmt.Errorf("require %s: %w", r.name, err)
		}
		if lib, err = inline(ctx, lib, provider, seen); err != nil {
			return "", fmt.Errorf("require %s: %w", r.name, err)
		}
		acc = append(acc, '\n')
		acc = append(acc, lib...)
		acc = append(acc, '\n')
	}
	acc = append(acc, src[last:]...)

	return string(acc), nil
}
