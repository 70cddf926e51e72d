package ssa

import (
	"strconv"

	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/codewriter/compiler/ir"
)

type (
	// Register is a physical slot. Colors are numbered per kind.
	Register struct {
		Kind  ir.Kind
		Color int
	}

	// Label is a jump target. The zero Label is not a label.
	Label int

	// ListOfKind is a resolved argument group of Registers and ir.Consts.
	ListOfKind struct {
		Kind  ir.Kind
		Items []any
	}

	// SwitchDict is a multi-way dispatch table. Values not listed fall through.
	SwitchDict struct {
		Cases []SwitchCase
	}

	SwitchCase struct {
		Value int64
		Label Label
	}

	// Opaque is a descriptor known only by its text.
	Opaque string

	// Insn is an instruction, or a label definition if Op is empty.
	// Args hold Register, ir.Const, Label, ListOfKind, *SwitchDict or ir.Descr.
	Insn struct {
		Op   string
		Args []any
		Def  Label
	}
)

func (r Register) String() string {
	return "%" + r.Kind.Letter() + strconv.Itoa(r.Color)
}

func (r Register) Less(x Register) bool {
	if r.Kind != x.Kind {
		return r.Kind < x.Kind
	}

	return r.Color < x.Color
}

func (r Register) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, r.String())
}

func (l Label) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	if l == 0 {
		return e.AppendNil(b)
	}

	return e.AppendFormat(b, "label_%d", int(l))
}

func (d *SwitchDict) Add(v int64, l Label) {
	d.Cases = append(d.Cases, SwitchCase{Value: v, Label: l})
}

func (d *SwitchDict) Lookup(v int64) (Label, bool) {
	for _, c := range d.Cases {
		if c.Value == v {
			return c.Label, true
		}
	}

	return 0, false
}

func (o Opaque) String() string { return string(o) }

func (x Insn) IsLabel() bool { return x.Op == "" }

// Labels calls f for every label the instruction refers to.
func (x Insn) Labels(f func(l Label)) {
	for _, a := range x.Args {
		switch a := a.(type) {
		case Label:
			f(a)
		case *SwitchDict:
			for _, c := range a.Cases {
				f(c.Label)
			}
		}
	}
}
