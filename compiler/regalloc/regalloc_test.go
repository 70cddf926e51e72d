package regalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slowlang/codewriter/compiler/ir"
)

func TestSequential(t *testing.T) {
	s := NewSequential()

	a, b := ir.NewVar("a", ir.Int), ir.NewVar("b", ir.Int)
	r := ir.NewVar("r", ir.Ref)

	assert.Equal(t, 0, s.ColorOf(ir.Int, a))
	assert.Equal(t, 0, s.ColorOf(ir.Ref, r))
	assert.Equal(t, 1, s.ColorOf(ir.Int, b))
	assert.Equal(t, 0, s.ColorOf(ir.Int, a))

	assert.Equal(t, 2, s.Len(ir.Int))
	assert.Equal(t, 1, s.Len(ir.Ref))
	assert.Equal(t, 0, s.Len(ir.Float))

	var z Sequential
	assert.Equal(t, 0, z.ColorOf(ir.Float, ir.NewVar("f", ir.Float)))
}

func TestTable(t *testing.T) {
	a := ir.NewVar("a", ir.Int)
	tab := Table{a: 4}

	assert.Equal(t, 4, tab.ColorOf(ir.Int, a))
	assert.Panics(t, func() { tab.ColorOf(ir.Int, ir.NewVar("b", ir.Int)) })
}
