package ssa

import (
	"tlog.app/go/errors"
)

// Repr is a flat instruction stream with label definitions in between.
type Repr struct {
	Name  string
	Insns []Insn

	// Pos maps a label to the index of its definition in Insns.
	// It is filled by Finalize.
	Pos map[Label]int

	nlabels int
}

var (
	ErrUndefinedLabel = errors.New("undefined label")
	ErrDuplicateLabel = errors.New("duplicate label definition")
)

func New(name string) *Repr {
	return &Repr{Name: name}
}

func (r *Repr) NewLabel() Label {
	r.nlabels++

	return Label(r.nlabels)
}

func (r *Repr) Emit(op string, args ...any) {
	r.Insns = append(r.Insns, Insn{Op: op, Args: args})
}

func (r *Repr) Define(l Label) {
	r.Insns = append(r.Insns, Insn{Def: l})
}

// Finalize drops definitions of labels nothing refers to, checks that
// every referenced label is defined exactly once and resolves positions.
func (r *Repr) Finalize() (err error) {
	used := map[Label]bool{}

	for _, x := range r.Insns {
		x.Labels(func(l Label) { used[l] = true })
	}

	code := r.Insns[:0]
	defs := map[Label]int{}

	for _, x := range r.Insns {
		if x.IsLabel() {
			if !used[x.Def] {
				continue
			}

			if _, ok := defs[x.Def]; ok {
				return errors.Wrap(ErrDuplicateLabel, "label %d", x.Def)
			}

			defs[x.Def] = len(code)
		}

		code = append(code, x)
	}

	r.Insns = code

	for i, x := range code {
		x.Labels(func(l Label) {
			if _, ok := defs[l]; !ok && err == nil {
				err = errors.Wrap(ErrUndefinedLabel, "label %d at %d", l, i)
			}
		})
	}

	if err != nil {
		return err
	}

	r.Pos = defs

	return nil
}
