package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/codewriter/compiler"
	"github.com/slowlang/codewriter/compiler/flatten"
)

func main() {
	goCmd := &cli.Command{
		Name:        "go",
		Description: "lower functions of go source files",
		Action:      goAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("fuse", true, "fold single-use comparisons into branches"),
			cli.NewFlag("guard-switch", false, "emit int_guard_value before equality chains"),
			cli.NewFlag("switch-min", 0, "lower dispatches with at least that many cases to switch (0 is never)"),
		},
	}

	fmtCmd := &cli.Command{
		Name:        "fmt",
		Description: "check and reprint listings",
		Action:      fmtAct,
		Args:        cli.Args{},
	}

	reorderCmd := &cli.Command{
		Name:        "reorder",
		Description: "sequence a parallel copy: reorder 1,2,3 3,1,2",
		Action:      reorderAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "flat",
		Description: "flat lowers block graphs into linear register code",
		Flags: []*cli.Flag{
			cli.NewFlag("v", "", "verbosity topics"),
			cli.HelpFlag,
		},
		Before: before,
		Commands: []*cli.Command{
			goCmd,
			fmtCmd,
			reorderCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) error {
	tlog.SetVerbosity(c.String("v"))

	return nil
}

func goAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	opts := flatten.Options{
		FuseBranches: c.Bool("fuse"),
		GuardSwitch:  c.Bool("guard-switch"),
	}

	if n := c.Int("switch-min"); n > 0 {
		opts.Switch = flatten.MinCases(n)
	}

	for _, a := range c.Args {
		text, err := compiler.CompileFile(ctx, a, opts)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		fmt.Printf("%s", text)
	}

	return nil
}

func fmtAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		text, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "read %v", a)
		}

		text, err = compiler.Reformat(ctx, a, text)
		if err != nil {
			return errors.Wrap(err, "reformat %v", a)
		}

		fmt.Printf("%s", text)
	}

	return nil
}

func reorderAct(c *cli.Command) (err error) {
	if len(c.Args) != 2 {
		return errors.New("expected 2 arguments: sources and targets")
	}

	from, err := ints(c.Args[0])
	if err != nil {
		return errors.Wrap(err, "sources")
	}

	to, err := ints(c.Args[1])
	if err != nil {
		return errors.Wrap(err, "targets")
	}

	res, err := flatten.Reorder(from, to)
	if err != nil {
		return err
	}

	for _, x := range res {
		fmt.Printf("%v -> %v\n", slot(x.From), slot(x.To))
	}

	return nil
}

func ints(s string) (r []int, err error) {
	if s == "" {
		return nil, nil
	}

	for _, f := range strings.Split(s, ",") {
		x, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}

		r = append(r, x)
	}

	return r, nil
}

func slot(s flatten.Slot[int]) string {
	if s.Scratch {
		return "scratch"
	}

	return strconv.Itoa(s.Val)
}
