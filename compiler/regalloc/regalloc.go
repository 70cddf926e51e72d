package regalloc

import (
	"tlog.app/go/tlog"

	"github.com/slowlang/codewriter/compiler/ir"
)

type (
	// Sequential colors variables in the order they are first asked about,
	// independently per kind.
	Sequential struct {
		colors map[*ir.Var]int
		next   [4]int
	}

	// Table holds explicit colors. Variables not listed panic.
	Table map[*ir.Var]int
)

func NewSequential() *Sequential {
	return &Sequential{colors: map[*ir.Var]int{}}
}

func (s *Sequential) ColorOf(k ir.Kind, v *ir.Var) int {
	if c, ok := s.colors[v]; ok {
		return c
	}

	if s.colors == nil {
		s.colors = map[*ir.Var]int{}
	}

	c := s.next[k]
	s.next[k]++

	s.colors[v] = c

	tlog.V("regalloc").Printw("color", "var", v, "kind", k, "color", c)

	return c
}

// Len is the number of colors used for kind k.
func (s *Sequential) Len(k ir.Kind) int {
	return s.next[k]
}

func (t Table) ColorOf(k ir.Kind, v *ir.Var) int {
	c, ok := t[v]
	if !ok {
		panic("regalloc: no color for " + v.String())
	}

	return c
}
