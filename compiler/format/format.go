package format

import (
	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"

	"github.com/slowlang/codewriter/compiler/ir"
	"github.com/slowlang/codewriter/compiler/ssa"
)

type namer struct {
	names map[ssa.Label]int
}

// Format renders r one instruction or label per line.
// Labels are named L1, L2, ... in order of first appearance.
func Format(b []byte, r *ssa.Repr) (_ []byte, err error) {
	n := namer{names: map[ssa.Label]int{}}

	for i, x := range r.Insns {
		b, err = n.insn(b, x)
		if err != nil {
			return nil, errors.Wrap(err, "insn %d", i)
		}
	}

	return b, nil
}

func String(r *ssa.Repr) (string, error) {
	b, err := Format(nil, r)

	return string(b), err
}

func (n *namer) insn(b []byte, x ssa.Insn) (_ []byte, err error) {
	if x.IsLabel() {
		b = n.label(b, x.Def)
		b = append(b, ":\n"...)

		return b, nil
	}

	b = append(b, x.Op...)

	for i, a := range x.Args {
		if i == 0 {
			b = append(b, ' ')
		} else {
			b = append(b, ", "...)
		}

		b, err = n.operand(b, a)
		if err != nil {
			return nil, errors.Wrap(err, "%v arg %d", x.Op, i)
		}
	}

	b = append(b, '\n')

	return b, nil
}

func (n *namer) operand(b []byte, x any) (_ []byte, err error) {
	switch x := x.(type) {
	case ssa.Register:
		b = hfmt.Appendf(b, "%%%s%d", x.Kind.Letter(), x.Color)
	case ir.Const:
		b = append(b, '$')
		b = append(b, x.String()...)
	case ssa.Label:
		b = n.label(b, x)
	case ssa.ListOfKind:
		b = append(b, x.Kind.Letter()[0]-'a'+'A', '[')

		for i, y := range x.Items {
			if i != 0 {
				b = append(b, ", "...)
			}

			b, err = n.operand(b, y)
			if err != nil {
				return nil, errors.Wrap(err, "item %d", i)
			}
		}

		b = append(b, ']')
	case *ssa.SwitchDict:
		b = append(b, "<SwitchDictDescr"...)

		for i, c := range x.Cases {
			if i == 0 {
				b = append(b, ' ')
			} else {
				b = append(b, ", "...)
			}

			b = hfmt.Appendf(b, "%d:", c.Value)
			b = n.label(b, c.Label)
		}

		b = append(b, '>')
	case ir.Descr:
		b = append(b, x.String()...)
	default:
		return nil, errors.New("unsupported operand: %T", x)
	}

	return b, nil
}

func (n *namer) label(b []byte, l ssa.Label) []byte {
	id, ok := n.names[l]
	if !ok {
		id = len(n.names) + 1
		n.names[l] = id
	}

	return hfmt.Appendf(b, "L%d", id)
}
