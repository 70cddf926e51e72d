package compiler

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/codewriter/compiler/flatten"
	"github.com/slowlang/codewriter/compiler/format"
	"github.com/slowlang/codewriter/compiler/gossa"
	"github.com/slowlang/codewriter/compiler/ir"
	"github.com/slowlang/codewriter/compiler/regalloc"
	"github.com/slowlang/codewriter/compiler/ssa"
)

func CompileFile(ctx context.Context, name string, opts flatten.Options) (text []byte, err error) {
	src, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(src), "name", name)

	return Compile(ctx, name, src, opts)
}

// Compile lowers every function of a Go source file and returns
// their listings, each preceded by a # name line.
func Compile(ctx context.Context, name string, src []byte, opts flatten.Options) (text []byte, err error) {
	gs, err := gossa.Load(ctx, name, src)
	if err != nil {
		return nil, errors.Wrap(err, "load")
	}

	for _, g := range gs {
		r, err := Flatten(ctx, g, opts)
		if err != nil {
			return nil, errors.Wrap(err, "flatten %v", g.Name)
		}

		if len(text) != 0 {
			text = append(text, '\n')
		}

		text = append(text, "# "...)
		text = append(text, g.Name...)
		text = append(text, '\n')

		text, err = format.Format(text, r)
		if err != nil {
			return nil, errors.Wrap(err, "format %v", g.Name)
		}
	}

	return text, nil
}

// Flatten lowers g. A fresh Sequential allocator is used if opts has none.
func Flatten(ctx context.Context, g *ir.Graph, opts flatten.Options) (*ssa.Repr, error) {
	if opts.Regs == nil {
		opts.Regs = regalloc.NewSequential()
	}

	return flatten.Flatten(ctx, g, opts)
}

// Reformat parses a listing, checks its labels and prints it canonically.
func Reformat(ctx context.Context, name string, text []byte) (_ []byte, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "reformat", "name", name, "size", len(text))
	defer tr.Finish("err", &err)

	r, err := format.Parse(name, string(text))
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}

	err = r.Finalize()
	if err != nil {
		return nil, errors.Wrap(err, "finalize")
	}

	return format.Format(nil, r)
}
