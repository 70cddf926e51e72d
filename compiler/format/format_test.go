package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/codewriter/compiler/ir"
	"github.com/slowlang/codewriter/compiler/ssa"
)

func TestFormat(t *testing.T) {
	r := ssa.New("f")

	l1, l2, l3 := r.NewLabel(), r.NewLabel(), r.NewLabel()

	d := &ssa.SwitchDict{}
	d.Add(1, l3)
	d.Add(2, l2)

	r.Define(l2)
	r.Emit("switch", ssa.Register{Kind: ir.Int, Color: 3}, d)
	r.Emit("residual_call_irf_f", ir.SymConst("fn", "g"), ssa.Opaque("<Descr>"),
		ssa.ListOfKind{Kind: ir.Int, Items: []any{ssa.Register{Kind: ir.Int}, ir.IntConst(5)}},
		ssa.ListOfKind{Kind: ir.Ref},
		ssa.ListOfKind{Kind: ir.Float, Items: []any{ir.FloatConst(1)}},
		ssa.Register{Kind: ir.Float, Color: 2})
	r.Emit("goto", l1)
	r.Define(l3)
	r.Emit("-live-")
	r.Define(l1)
	r.Emit("ref_return", ir.StrConst("a, b"))

	s, err := String(r)
	require.NoError(t, err)

	assert.Equal(t, `L1:
switch %i3, <SwitchDictDescr 1:L2, 2:L1>
residual_call_irf_f $<* fn g>, <Descr>, I[%i0, $5], R[], F[$1.0], %f2
goto L3
L2:
-live-
L3:
ref_return $"a, b"
`, s)

	r.Emit("bad", struct{}{})

	_, err = String(r)
	assert.Error(t, err)
}

func TestParseRoundTrip(t *testing.T) {
	for _, text := range []string{
		`int_copy %i0, %i2
int_copy %i1, %i3
L1:
goto_if_not_int_gt L2, %i2, $0
int_add %i3, %i2, %i3
goto L1
L2:
int_return %i3
`,
		`switch %i0, <SwitchDictDescr 1:L1, 2:L2>
int_return $-1
L1:
int_return $61
L2:
float_return $0.25
`,
		`-live- %i1, %r0
G_residual_call_ir_i $<* fn g>, <Descr>, I[%i0, %i1], R[], %i2
catch_exception L1
int_return %i2
L1:
goto_if_exception_mismatch $<* struct object_vtable>, L2
last_exc_value %r0
ref_return $"x, y"
L2:
int_push %i1
int_pop %i0
ref_return $None
`,
		`goto_if_not L1, %i0
int_return $False
L1:
int_return $True
`,
	} {
		r, err := Parse("rt", text)
		require.NoError(t, err)

		require.NoError(t, r.Finalize())

		s, err := String(r)
		require.NoError(t, err)

		assert.Equal(t, text, s)
	}
}

func TestParseOperands(t *testing.T) {
	r, err := Parse("ops", `
		# comment
		start:
		foo %f7, $1.5, $7, $True, $<* fn g>, $"s", $None, $weird, I[], hi_there!, start
	`)
	require.NoError(t, err)
	require.Len(t, r.Insns, 2)

	x := r.Insns[1]
	assert.Equal(t, "foo", x.Op)
	assert.Equal(t, []any{
		ssa.Register{Kind: ir.Float, Color: 7},
		ir.FloatConst(1.5),
		ir.IntConst(7),
		ir.BoolConst(true),
		ir.SymConst("fn", "g"),
		ir.StrConst("s"),
		ir.NilConst(),
		ir.Const{K: ir.Ref, Val: ssa.Opaque("weird")},
		ssa.ListOfKind{Kind: ir.Int, Items: []any{}},
		ssa.Opaque("hi_there!"),
		r.Insns[0].Def,
	}, x.Args)
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{
		"L1:\nL1:\n",
		"foo %x1\n",
		"foo %i\n",
		"foo %i-1\n",
		`foo $"unterminated` + "\n",
		"switch %i0, <SwitchDictDescr x:L1>\nL1:\n",
		"foo a, , b\n",
	} {
		_, err := Parse("bad", text)
		assert.Error(t, err, "%q", text)
	}

	for _, text := range []string{
		"goto L7\n",
		"switch %i0, <SwitchDictDescr 1:L9>\n",
	} {
		r, err := Parse("undef", text)
		require.NoError(t, err)
		assert.ErrorIs(t, r.Finalize(), ssa.ErrUndefinedLabel, "%q", text)
	}
}

func TestCompare(t *testing.T) {
	assert.NoError(t, Compare("a\n  b c\n\n", "\n\ta\n\tb c\n"))

	err := Compare("a\nb c\n", "a\nb d\n")
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "line 2")
		assert.Contains(t, err.Error(), "  ^^^^")
	}

	err = Compare("a\nb\n", "a\n")
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "unexpected")
	}

	err = Compare("a\n", "a\nb\n")
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "missing")
	}
}
