package flatten

import (
	"sort"

	"tlog.app/go/errors"

	"github.com/slowlang/codewriter/compiler/ir"
	"github.com/slowlang/codewriter/compiler/set"
	"github.com/slowlang/codewriter/compiler/ssa"
)

// operand resolves a graph operand. ok is false for void values,
// which are left out of the instruction.
func (f *flattener) operand(x any) (_ any, ok bool, err error) {
	switch x := x.(type) {
	case *ir.Var:
		if x == nil || x.K == ir.Void {
			return nil, false, nil
		}

		return f.reg(x), true, nil
	case ir.Const:
		if x.K == ir.Void {
			return nil, false, nil
		}

		return x, true, nil
	case ir.ListOfKind:
		l := ssa.ListOfKind{Kind: x.K, Items: make([]any, 0, len(x.Items))}

		for i, y := range x.Items {
			y, ok, err := f.operand(y)
			if err != nil {
				return nil, false, errors.Wrap(err, "item %d", i)
			}

			if !ok {
				continue
			}

			l.Items = append(l.Items, y)
		}

		return l, true, nil
	case ir.Descr:
		return x, true, nil
	case nil:
		return nil, false, nil
	default:
		return nil, false, errors.New("unsupported operand: %T", x)
	}
}

func (f *flattener) reg(v *ir.Var) ssa.Register {
	return ssa.Register{Kind: v.K, Color: f.Regs.ColorOf(v.K, v)}
}

func (f *flattener) operands(b []any, args []any) (_ []any, err error) {
	for i, a := range args {
		x, ok, err := f.operand(a)
		if err != nil {
			return nil, errors.Wrap(err, "arg %d", i)
		}

		if ok {
			b = append(b, x)
		}
	}

	return b, nil
}

func (f *flattener) serializeOp(op *ir.Op) (err error) {
	name, ok := op.Code.Name()
	if !ok {
		return errors.Wrap(ErrNotImplemented, "opcode %v", op.Code)
	}

	if op.CanRaise {
		name = "G_" + name
	}

	f.liveMarker(op)

	args, err := f.operands(nil, op.Args)
	if err != nil {
		return errors.Wrap(err, "%v", name)
	}

	if op.Result != nil && op.Result.K != ir.Void {
		args = append(args, f.reg(op.Result))
	}

	f.r.Emit(name, args...)

	return nil
}

// liveMarker emits -live- before a possible collection point.
func (f *flattener) liveMarker(op *ir.Op) {
	if f.Live == nil || !(op.Code.IsCall() || op.CanRaise) {
		return
	}

	live, ok := f.Live.LiveBefore(op)
	if !ok {
		return
	}

	var regs [4]set.Bits[int]

	for _, r := range live {
		regs[r.Kind].Set(r.Color)
	}

	args := make([]any, 0, len(live))

	for _, k := range ir.Kinds {
		regs[k].Range(func(c int) bool {
			args = append(args, ssa.Register{Kind: k, Color: c})

			return true
		})
	}

	f.r.Emit("-live-", args...)
}

// lastExc materializes the pending exception for a handler link.
func (f *flattener) lastExc(l *ir.Link) {
	if l.LastException == nil && l.LastExcValue == nil {
		return
	}

	for _, a := range l.Args {
		if v, ok := a.(*ir.Var); ok && v != nil && v == l.LastException {
			f.r.Emit("last_exception", f.reg(v))
			break
		}
	}

	for _, a := range l.Args {
		if v, ok := a.(*ir.Var); ok && v != nil && v == l.LastExcValue {
			f.r.Emit("last_exc_value", f.reg(v))
			break
		}
	}
}

type renaming struct {
	from any
	to   ssa.Register
}

// renamings emits copies realizing the parallel assignment of l,
// sequenced separately per kind.
func (f *flattener) renamings(l *ir.Link, t *ir.Block) error {
	lst := make([]renaming, 0, len(l.Args))

	for i, a := range l.Args {
		w := t.Inputs[i]

		v, ok, err := f.operand(a)
		if err != nil {
			return errors.Wrap(err, "arg %d", i)
		}

		if !ok || w.K == ir.Void {
			continue
		}

		lst = append(lst, renaming{from: v, to: f.reg(w)})
	}

	sort.SliceStable(lst, func(i, j int) bool {
		return lst[i].to.Color < lst[j].to.Color
	})

	for _, k := range ir.Kinds {
		var from, to []any

		for _, r := range lst {
			if r.to.Kind != k || r.from == any(r.to) {
				continue
			}

			from = append(from, r.from)
			to = append(to, r.to)
		}

		if len(from) == 0 {
			continue
		}

		res, err := Reorder(from, to)
		if err != nil {
			return errors.Wrap(err, "%v", k)
		}

		f.tr.V("flatten_rename").Printw("renamings", "kind", k, "copies", res)

		for _, c := range res {
			switch {
			case c.To.Scratch:
				f.r.Emit(k.String()+"_push", c.From.Val)
			case c.From.Scratch:
				f.r.Emit(k.String()+"_pop", c.To.Val)
			default:
				f.r.Emit(ir.CopyOp(k).String(), c.From.Val, c.To.Val)
			}
		}
	}

	return nil
}
