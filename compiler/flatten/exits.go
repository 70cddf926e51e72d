package flatten

import (
	"tlog.app/go/errors"

	"github.com/slowlang/codewriter/compiler/ir"
	"github.com/slowlang/codewriter/compiler/ssa"
)

// exits emits the branching at the end of b and returns the link
// which falls through, if any. fused is the comparison folded into
// a boolean exit.
func (f *flattener) exits(b *ir.Block, fused *ir.Op) (*ir.Link, error) {
	switch {
	case len(b.Exits) == 0:
		if last := b.Last(); last == nil || !last.Code.IsTerminal() {
			return nil, errors.Wrap(ErrBadExit, "no exits and no terminal")
		}

		return nil, nil
	case len(b.Exits) == 1:
		if b.Exits[0].Case == ir.Default {
			return nil, ErrEmptySwitch
		}

		return b.Exits[0], nil
	case b.Switch == ir.LastException:
		return f.excExits(b)
	case isBool(b):
		return f.boolExits(b, fused)
	default:
		return f.switchExits(b)
	}
}

func isBool(b *ir.Block) bool {
	if len(b.Exits) != 2 {
		return false
	}

	_, ok0 := b.Exits[0].Case.(bool)
	_, ok1 := b.Exits[1].Case.(bool)

	return ok0 && ok1
}

func (f *flattener) boolExits(b *ir.Block, fused *ir.Op) (*ir.Link, error) {
	lfalse, ltrue := b.Exits[0], b.Exits[1]
	if lfalse.Case == true {
		lfalse, ltrue = ltrue, lfalse
	}

	if lfalse.Case != false || ltrue.Case != true {
		return nil, errors.Wrap(ErrBadExit, "boolean exit cases %v, %v", lfalse.Case, ltrue.Case)
	}

	lab, back := f.direct(lfalse)
	if !back {
		lab = f.r.NewLabel()
	}

	name := "goto_if_not"
	args := []any{lab}
	cond := []any{b.Switch}

	if fused != nil {
		if fused.Code != ir.OpIntIsTrue {
			name += "_" + fused.Code.String()
		}

		cond = fused.Args
	}

	args, err := f.operands(args, cond)
	if err != nil {
		return nil, errors.Wrap(err, "condition")
	}

	if len(args) == 1 {
		return nil, errors.Wrap(ErrBadExit, "void condition")
	}

	f.r.Emit(name, args...)

	if !back {
		f.jobs.Push(job{label: lab, kind: jobLink, link: lfalse})
	}

	return ltrue, nil
}

// fusable returns the last op of b if it only computes the condition of
// the boolean exit of b.
func (f *flattener) fusable(b *ir.Block) *ir.Op {
	if !f.FuseBranches || !isBool(b) {
		return nil
	}

	cond, ok := b.Switch.(*ir.Var)
	if !ok {
		return nil
	}

	last := b.Last()
	if last == nil || last.Result != cond || !last.Code.IsComparison() || last.CanRaise {
		return nil
	}

	if f.uses[cond] != 1 {
		return nil
	}

	return last
}

func (f *flattener) excExits(b *ir.Block) (*ir.Link, error) {
	last := b.Last()
	if last == nil {
		return nil, errors.Wrap(ErrBadExit, "exception exits without an op")
	}

	if b.Exits[0].Case != nil {
		return nil, errors.Wrap(ErrBadExit, "exception exits: first exit has case %v", b.Exits[0].Case)
	}

	if !last.CanRaise && !f.AllExcLinks {
		return b.Exits[0], nil
	}

	lab := f.r.NewLabel()

	f.r.Emit("catch_exception", lab)

	f.jobs.Push(job{label: lab, kind: jobHandler, block: b, next: 1})

	return b.Exits[0], nil
}

// handler emits the test for exception clause i of b, queues the rest
// of the chain and returns the clause link.
func (f *flattener) handler(b *ir.Block, i int) (*ir.Link, error) {
	if i == len(b.Exits) {
		f.r.Emit("reraise")

		return nil, nil
	}

	l := b.Exits[i]

	c, ok := l.Case.(ir.Catch)
	if !ok {
		return nil, errors.Wrap(ErrBadExit, "handler %d: case %T", i, l.Case)
	}

	if c.All || c.Overflow && b.Last().Code.IsOvf() {
		return l, nil
	}

	if c.Class.Val == nil {
		return nil, errors.Wrap(ErrUnknownException, "handler %d", i)
	}

	next := f.r.NewLabel()

	f.r.Emit("goto_if_exception_mismatch", c.Class, next)

	f.jobs.Push(job{label: next, kind: jobHandler, block: b, next: i + 1})

	return l, nil
}

func (f *flattener) switchExits(b *ir.Block) (*ir.Link, error) {
	v, ok := b.Switch.(*ir.Var)
	if !ok || v.K != ir.Int {
		return nil, errors.Wrap(ErrBadExit, "switch on %v", b.Switch)
	}

	var cases []*ir.Link
	var def *ir.Link

	seen := map[int64]bool{}

	for i, l := range b.Exits {
		switch c := l.Case.(type) {
		case int64:
			if seen[c] {
				return nil, errors.Wrap(ErrBadExit, "switch exit %d: duplicate case %d", i, c)
			}

			seen[c] = true
			cases = append(cases, l)
		default:
			if l.Case != ir.Default || i != len(b.Exits)-1 {
				return nil, errors.Wrap(ErrBadExit, "switch exit %d: case %v", i, l.Case)
			}

			def = l
		}
	}

	if len(cases) == 0 {
		return nil, ErrEmptySwitch
	}

	var d *ssa.SwitchDict
	if f.Switch != nil {
		d = f.Switch.NewSwitchDict(v, len(cases))
	}

	if d == nil {
		if f.GuardSwitch {
			r := f.reg(v)
			f.r.Emit("int_guard_value", r, r)
		}

		return f.switchCase(b, 0)
	}

	labs := make([]ssa.Label, len(cases))
	back := make([]bool, len(cases))

	for i, l := range cases {
		labs[i], back[i] = f.direct(l)
		if !back[i] {
			labs[i] = f.r.NewLabel()
		}

		d.Add(l.Case.(int64), labs[i])
	}

	f.r.Emit("switch", f.reg(v), d)

	for i := len(cases) - 1; i >= 0; i-- {
		if !back[i] {
			f.jobs.Push(job{label: labs[i], kind: jobLink, link: cases[i]})
		}
	}

	if def == nil {
		f.r.Emit("unreachable")

		return nil, nil
	}

	return def, nil
}

// switchCase emits the equality test for case i of the dispatch in b,
// queues the remaining tests behind the miss label and returns the case link.
func (f *flattener) switchCase(b *ir.Block, i int) (*ir.Link, error) {
	var cases []*ir.Link
	var def *ir.Link

	for _, l := range b.Exits {
		if l.Case == ir.Default {
			def = l
		} else {
			cases = append(cases, l)
		}
	}

	if i == len(cases) {
		if def == nil {
			f.r.Emit("unreachable")
		}

		return def, nil
	}

	l := cases[i]
	miss := f.r.NewLabel()

	f.r.Emit("goto_if_not_int_eq", miss, f.reg(b.Switch.(*ir.Var)), ir.IntConst(l.Case.(int64)))

	f.jobs.Push(job{label: miss, kind: jobCase, block: b, next: i + 1})

	return l, nil
}
