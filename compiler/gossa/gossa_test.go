package gossa

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/codewriter/compiler/ir"
)

const src = `package p

func add(n int) int { return n + 10 }

func loop(a, b int) int {
	for a > 0 {
		b += a
		a--
	}

	return b
}

func sq(x float64) float64 { return x * x }

func use(i int, f float64) float64 { return sq(f) + float64(i) }
`

func TestLoad(t *testing.T) {
	gs, err := Load(context.Background(), "p.go", []byte(src))
	require.NoError(t, err)

	var names []string
	for _, g := range gs {
		names = append(names, g.Name)
	}

	assert.Equal(t, []string{"add", "loop", "sq", "use"}, names)

	add := gs[0]
	require.Len(t, add.Blocks, 1)

	b := add.Blocks[0]
	require.Len(t, b.Inputs, 1)
	assert.Equal(t, ir.Int, b.Inputs[0].K)
	require.Len(t, b.Ops, 2)
	assert.Equal(t, ir.OpIntAdd, b.Ops[0].Code)
	assert.Equal(t, ir.IntConst(10), b.Ops[0].Args[1])
	assert.Equal(t, ir.OpIntReturn, b.Ops[1].Code)

	loop := gs[1]

	var phis, ifs int

	for _, b := range loop.Blocks {
		if len(b.Exits) == 2 {
			ifs++
		}

		for _, l := range b.Exits {
			assert.Len(t, l.Args, len(loop.Block(l.Target).Inputs))
		}

		if b != loop.Blocks[loop.Start] {
			phis += len(b.Inputs)
		}
	}

	assert.Equal(t, 1, ifs)
	assert.Equal(t, 2, phis)

	use := gs[3]
	op := use.Blocks[0].Ops[0]

	assert.Equal(t, ir.OpResidualCallIRFF, op.Code)
	assert.Equal(t, ir.SymConst("fn", "sq"), op.Args[0])
	assert.Equal(t, CallDescr{Sig: "func(x float64) float64"}, op.Args[1])
	assert.Len(t, op.Args, 5)
}

func TestLoadNotImplemented(t *testing.T) {
	_, err := Load(context.Background(), "m.go", []byte(`package m

func m(x map[int]int) int { return x[1] }
`))
	assert.ErrorIs(t, err, ErrNotImplemented)

	_, err = Load(context.Background(), "s.go", []byte(`package s

func s(a, b string) bool { return a < b }
`))
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestLoadNumeric(t *testing.T) {
	gs, err := Load(context.Background(), "w.go", []byte(`package w

func widen(x int32, y uint8) int64 { return int64(x) + int64(y) }

func udiv(a, b uint) uint { return a / b }

func ufloat(x uint32) float64 { return float64(x) }

func big(x uint64) bool { return x > 1<<63 }

func less(a, b int8) bool { return a < b }
`))
	require.NoError(t, err)
	require.Len(t, gs, 5)

	codes := func(g *ir.Graph) (r []ir.Opcode) {
		for _, b := range g.Blocks {
			for _, op := range b.Ops {
				r = append(r, op.Code)
			}
		}

		return r
	}

	assert.Equal(t, []ir.Opcode{ir.OpUintGt, ir.OpIntReturn}, codes(gs[0]))
	assert.Equal(t, ir.IntConst(-1<<63), gs[0].Blocks[0].Ops[0].Args[1])

	assert.Equal(t, []ir.Opcode{ir.OpIntLt, ir.OpIntReturn}, codes(gs[1]))
	assert.Equal(t, []ir.Opcode{ir.OpUintFloorDiv, ir.OpIntReturn}, codes(gs[2]))
	assert.Equal(t, []ir.Opcode{ir.OpCastIntToFloat, ir.OpFloatReturn}, codes(gs[3]))
	assert.Equal(t, []ir.Opcode{ir.OpIntCopy, ir.OpIntCopy, ir.OpIntAdd, ir.OpIntReturn}, codes(gs[4]))
}

func TestLoadInexactNumeric(t *testing.T) {
	for _, tc := range []struct {
		name, body string
	}{
		{"narrow", `func f(x int64) int64 { return int64(int8(x)) }`},
		{"sign_change", `func f(x uint8) int8 { return int8(x) }`},
		{"signed_to_short_unsigned", `func f(x int8) uint16 { return uint16(x) }`},
		{"urem", `func f(a, b uint) uint { return a % b }`},
		{"uint64_to_float", `func f(x uint64) float64 { return float64(x) }`},
		{"float_to_uint64", `func f(x float64) uint64 { return uint64(x) }`},
		{"int_to_float32", `func f(x int) float32 { return float32(x) }`},
		{"float64_to_float32", `func f(x float64) float32 { return float32(x) }`},
		{"int8_add", `func f(a, b int8) int8 { return a + b }`},
		{"uint16_neg", `func f(a uint16) uint16 { return -a }`},
		{"float32_mul", `func f(a, b float32) float32 { return a * b }`},
		{"string_bytes", `func f(s string) []byte { return []byte(s) }`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(context.Background(), "f.go", []byte("package f\n\n"+tc.body+"\n"))
			assert.ErrorIs(t, err, ErrNotImplemented)
		})
	}
}

func TestLoadSwitch(t *testing.T) {
	gs, err := Load(context.Background(), "s.go", []byte(`package s

func sw(x int) int {
	switch x {
	case 1:
		return 10
	case 2:
		return 20
	case 5:
		return 50
	}

	return 0
}

func dup(x int) int {
	if x == 1 {
		return 1
	} else if x == 1 {
		return 2
	}

	return 0
}
`))
	require.NoError(t, err)
	require.Len(t, gs, 2)

	count := func(g *ir.Graph, code ir.Opcode) (n int) {
		for _, b := range g.Blocks {
			for _, op := range b.Ops {
				if op.Code == code {
					n++
				}
			}
		}

		return n
	}

	sw := gs[1]
	assert.Equal(t, 0, count(sw, ir.OpIntEq))

	head := sw.Block(sw.Start)
	require.Len(t, head.Exits, 4)
	assert.Same(t, head.Inputs[0], head.Switch)

	var cases []any
	for _, l := range head.Exits {
		cases = append(cases, l.Case)
		assert.NotEmpty(t, sw.Block(l.Target).Ops)
	}

	assert.Equal(t, []any{int64(1), int64(2), int64(5), ir.Default}, cases)

	dup := gs[0]
	assert.Equal(t, 2, count(dup, ir.OpIntEq))

	for _, b := range dup.Blocks {
		assert.LessOrEqual(t, len(b.Exits), 2)
	}
}

func TestLoadSyntaxError(t *testing.T) {
	_, err := Load(context.Background(), "e.go", []byte("package e\nfunc {"))
	assert.Error(t, err)
}
