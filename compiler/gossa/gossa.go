package gossa

import (
	"context"
	"go/ast"
	"go/constant"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"sort"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/codewriter/compiler/ir"
)

type (
	// CallDescr describes the signature of a residual call.
	CallDescr struct {
		Sig string
	}

	converter struct {
		fn *ssa.Function
		g  *ir.Graph

		vars   map[ssa.Value]*ir.Var
		blocks map[*ssa.BasicBlock]ir.BlockID

		// if-chains merged into a dispatch at their head
		chains map[*ssa.BasicBlock][]*ssa.BasicBlock
		merged map[*ssa.BasicBlock]bool
		skip   map[*ssa.BinOp]bool
	}

	// eqTest is a block ending in "if v == k" where the comparison
	// has no other use.
	eqTest struct {
		cmp *ssa.BinOp
		v   ssa.Value
		k   int64
	}
)

var ErrNotImplemented = errors.New("not implemented")

// Registers hold one 64-bit word. Narrower integers are kept sign or
// zero extended, so only operations preserving that are lowered.
var sizes = types.SizesFor("gc", "amd64")

// Load type-checks a single Go source file and converts its functions
// into block graphs, sorted by name.
func Load(ctx context.Context, name string, src []byte) (gs []*ir.Graph, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "load go", "name", name)
	defer tr.Finish("err", &err)

	fset := token.NewFileSet()

	f, err := parser.ParseFile(fset, name, src, parser.AllErrors)
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}

	pkg := types.NewPackage(f.Name.Name, f.Name.Name)
	conf := &types.Config{Importer: importer.Default()}

	spkg, _, err := ssautil.BuildPackage(conf, fset, pkg, []*ast.File{f}, ssa.SanityCheckFunctions)
	if err != nil {
		return nil, errors.Wrap(err, "build ssa")
	}

	var fns []*ssa.Function

	for _, m := range spkg.Members {
		fn, ok := m.(*ssa.Function)
		if !ok || fn.Synthetic != "" || len(fn.Blocks) == 0 {
			continue
		}

		fns = append(fns, fn)
	}

	sort.Slice(fns, func(i, j int) bool {
		return fns[i].Name() < fns[j].Name()
	})

	for _, fn := range fns {
		g, err := Graph(ctx, fn)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", fn.Name())
		}

		gs = append(gs, g)
	}

	return gs, nil
}

// Graph converts one function. Phi nodes become block inputs and
// the edges feeding them become link arguments.
// Chains of equality tests of one integer against distinct constants
// become a single integer dispatch.
func Graph(ctx context.Context, fn *ssa.Function) (g *ir.Graph, err error) {
	tr := tlog.SpanFromContext(ctx)

	c := &converter{
		fn:     fn,
		g:      ir.NewGraph(fn.Name()),
		vars:   map[ssa.Value]*ir.Var{},
		blocks: map[*ssa.BasicBlock]ir.BlockID{},
		chains: map[*ssa.BasicBlock][]*ssa.BasicBlock{},
		merged: map[*ssa.BasicBlock]bool{},
		skip:   map[*ssa.BinOp]bool{},
	}

	c.mergeChains()

	for _, b := range fn.Blocks {
		if c.merged[b] {
			continue
		}

		var in []*ir.Var

		if b.Index == 0 {
			for _, p := range fn.Params {
				v, err := c.newVar(p)
				if err != nil {
					return nil, errors.Wrap(err, "param %v", p.Name())
				}

				in = append(in, v)
			}
		}

		for _, x := range b.Instrs {
			phi, ok := x.(*ssa.Phi)
			if !ok {
				break
			}

			v, err := c.newVar(phi)
			if err != nil {
				return nil, errors.Wrap(err, "phi %v", phi.Name())
			}

			in = append(in, v)
		}

		c.blocks[b] = c.g.NewBlock(in...)
	}

	for _, b := range fn.Blocks {
		if c.merged[b] {
			continue
		}

		err = c.block(b)
		if err != nil {
			return nil, errors.Wrap(err, "block %d", b.Index)
		}
	}

	if tr.If("dump_graph") {
		for id, b := range c.g.Blocks {
			tr.Printw("block", "id", id, "inputs", b.Inputs, "ops", len(b.Ops), "exits", len(b.Exits))
		}
	}

	return c.g, nil
}

func (c *converter) block(sb *ssa.BasicBlock) (err error) {
	b := c.g.Block(c.blocks[sb])

	for _, x := range sb.Instrs {
		switch x := x.(type) {
		case *ssa.Phi, *ssa.DebugRef:
		case *ssa.BinOp:
			if c.skip[x] {
				break
			}

			err = c.binOp(b, x)
		case *ssa.UnOp:
			err = c.unOp(b, x)
		case *ssa.Convert:
			err = c.convert(b, x)
		case *ssa.Call:
			err = c.call(b, x)
		case *ssa.If:
			if chain := c.chains[sb]; chain != nil {
				err = c.dispatch(b, chain)
				break
			}

			var cond any

			cond, err = c.operand(x.Cond)
			if err != nil {
				break
			}

			var then, els *ir.Link

			then, err = c.link(sb, sb.Succs[0])
			if err != nil {
				break
			}

			els, err = c.link(sb, sb.Succs[1])
			if err != nil {
				break
			}

			b.If(cond, then, els)
		case *ssa.Jump:
			var l *ir.Link

			l, err = c.link(sb, sb.Succs[0])
			if err != nil {
				break
			}

			b.Switch = nil
			b.Exits = []*ir.Link{l}
		case *ssa.Return:
			err = c.ret(b, x)
		case *ssa.Panic:
			var v any

			v, err = c.operand(x.X)
			if err != nil {
				break
			}

			b.Add(ir.OpRaise, nil, v)
		default:
			err = errors.Wrap(ErrNotImplemented, "instruction %T: %v", x, x)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func (c *converter) mergeChains() {
	for _, b := range c.fn.Blocks {
		t, ok := eqTestOf(b)
		if !ok || follows(b) {
			continue
		}

		chain := []*ssa.BasicBlock{b}
		seen := map[int64]bool{t.k: true}

		for n := b.Succs[1]; follows(n); n = n.Succs[1] {
			nt, _ := eqTestOf(n)
			if seen[nt.k] {
				break
			}

			seen[nt.k] = true
			chain = append(chain, n)
		}

		if len(chain) < 2 {
			continue
		}

		c.chains[b] = chain
		c.skip[t.cmp] = true

		for _, n := range chain[1:] {
			c.merged[n] = true
		}
	}
}

// dispatch sets the exits of b to one case per test of the chain
// and the final else branch as the default.
func (c *converter) dispatch(b *ir.Block, chain []*ssa.BasicBlock) error {
	t, _ := eqTestOf(chain[0])

	sw, err := c.operand(t.v)
	if err != nil {
		return errors.Wrap(err, "switch value")
	}

	b.Switch = sw
	b.Exits = b.Exits[:0]

	for _, sb := range chain {
		t, _ := eqTestOf(sb)

		l, err := c.link(sb, sb.Succs[0])
		if err != nil {
			return errors.Wrap(err, "case %d", t.k)
		}

		l.Case = t.k
		b.Exits = append(b.Exits, l)
	}

	last := chain[len(chain)-1]

	l, err := c.link(last, last.Succs[1])
	if err != nil {
		return errors.Wrap(err, "default")
	}

	l.Case = ir.Default
	b.Exits = append(b.Exits, l)

	return nil
}

func eqTestOf(b *ssa.BasicBlock) (t eqTest, ok bool) {
	if len(b.Instrs) == 0 {
		return t, false
	}

	br, ok := b.Instrs[len(b.Instrs)-1].(*ssa.If)
	if !ok {
		return t, false
	}

	cmp, ok := br.Cond.(*ssa.BinOp)
	if !ok || cmp.Op != token.EQL || cmp.Block() != b || len(*cmp.Referrers()) != 1 {
		return t, false
	}

	x, y := cmp.X, cmp.Y
	if _, ok := x.(*ssa.Const); ok {
		x, y = y, x
	}

	if _, ok := x.(*ssa.Const); ok {
		return t, false
	}

	kc, ok := y.(*ssa.Const)
	if !ok || kc.Value == nil || kc.Value.Kind() != constant.Int {
		return t, false
	}

	if k, err := kindOf(x.Type()); err != nil || k != ir.Int {
		return t, false
	}

	v, err := constOf(kc)
	if err != nil {
		return t, false
	}

	return eqTest{cmp: cmp, v: x, k: v.Val.(int64)}, true
}

// follows reports whether b is nothing but the next test of the chain
// its only predecessor belongs to.
func follows(b *ssa.BasicBlock) bool {
	if len(b.Preds) != 1 || len(b.Instrs) != 2 {
		return false
	}

	p := b.Preds[0]
	if p == b || p.Succs[1] != b {
		return false
	}

	t, ok := eqTestOf(b)
	pt, pok := eqTestOf(p)

	return ok && pok && t.v == pt.v
}

func (c *converter) link(from, to *ssa.BasicBlock) (*ir.Link, error) {
	pred := -1

	for i, p := range to.Preds {
		if p == from {
			pred = i
			break
		}
	}

	var args []any

	for _, x := range to.Instrs {
		phi, ok := x.(*ssa.Phi)
		if !ok {
			break
		}

		a, err := c.operand(phi.Edges[pred])
		if err != nil {
			return nil, errors.Wrap(err, "phi %v", phi.Name())
		}

		args = append(args, a)
	}

	return ir.Jump(c.blocks[to], args...), nil
}

func (c *converter) binOp(b *ir.Block, x *ssa.BinOp) error {
	k, err := kindOf(x.X.Type())
	if err != nil {
		return err
	}

	t := x.X.Type()

	code := binOpcode(x.Op, k, isUnsigned(t))
	if code == ir.OpInvalid || isString(t) || narrow(t) && !code.IsComparison() {
		return errors.Wrap(ErrNotImplemented, "binop %v on %v", x.Op, t)
	}

	return c.add(b, code, x, x.X, x.Y)
}

func (c *converter) unOp(b *ir.Block, x *ssa.UnOp) error {
	k, err := kindOf(x.X.Type())
	if err != nil {
		return err
	}

	code := ir.OpInvalid

	switch {
	case x.Op == token.SUB && k == ir.Int:
		code = ir.OpIntNeg
	case x.Op == token.SUB && k == ir.Float:
		code = ir.OpFloatNeg
	case x.Op == token.XOR && k == ir.Int:
		code = ir.OpIntInvert
	case x.Op == token.NOT:
		code = ir.OpIntIsZero
	}

	if code == ir.OpInvalid || code != ir.OpIntIsZero && code != ir.OpFloatNeg && narrow(x.X.Type()) {
		return errors.Wrap(ErrNotImplemented, "unop %v on %v", x.Op, x.X.Type())
	}

	return c.add(b, code, x, x.X)
}

func (c *converter) convert(b *ir.Block, x *ssa.Convert) error {
	from, err := kindOf(x.X.Type())
	if err != nil {
		return err
	}

	to, err := kindOf(x.Type())
	if err != nil {
		return err
	}

	ft, tt := x.X.Type(), x.Type()
	code := ir.OpInvalid

	switch {
	case from == ir.Int && to == ir.Float:
		if !narrow(tt) && !(isUnsigned(ft) && sizes.Sizeof(ft) == 8) {
			code = ir.OpCastIntToFloat
		}
	case from == ir.Float && to == ir.Int:
		if !(isUnsigned(tt) && sizes.Sizeof(tt) == 8) {
			code = ir.OpCastFloatToInt
		}
	case from == ir.Int && to == ir.Int:
		if widens(ft, tt) {
			code = ir.OpIntCopy
		}
	case from == ir.Float && to == ir.Float:
		if !narrow(tt) || narrow(ft) {
			code = ir.OpFloatCopy
		}
	case from == ir.Ref && to == ir.Ref:
		if isPointer(ft) && isPointer(tt) {
			code = ir.OpRefCopy
		}
	}

	if code == ir.OpInvalid {
		return errors.Wrap(ErrNotImplemented, "convert %v to %v", x.X.Type(), x.Type())
	}

	return c.add(b, code, x, x.X)
}

// call lowers a static call to a residual call with arguments grouped by kind.
func (c *converter) call(b *ir.Block, x *ssa.Call) error {
	callee := x.Call.StaticCallee()
	if callee == nil {
		return errors.Wrap(ErrNotImplemented, "dynamic call %v", x)
	}

	res, err := kindOf(x.Type())
	if err != nil {
		return err
	}

	lists := map[ir.Kind]*ir.ListOfKind{}
	for _, k := range ir.Kinds {
		lists[k] = &ir.ListOfKind{K: k, Items: []any{}}
	}

	for i, a := range x.Call.Args {
		k, err := kindOf(a.Type())
		if err != nil {
			return errors.Wrap(err, "arg %d", i)
		}

		if k == ir.Void {
			continue
		}

		v, err := c.operand(a)
		if err != nil {
			return errors.Wrap(err, "arg %d", i)
		}

		lists[k].Items = append(lists[k].Items, v)
	}

	args := []any{
		ir.SymConst("fn", callee.Name()),
		CallDescr{Sig: callee.Signature.String()},
	}

	classes := "r"

	switch {
	case len(lists[ir.Float].Items) != 0:
		classes = "irf"
		args = append(args, *lists[ir.Int], *lists[ir.Ref], *lists[ir.Float])
	case len(lists[ir.Int].Items) != 0:
		classes = "ir"
		args = append(args, *lists[ir.Int], *lists[ir.Ref])
	default:
		args = append(args, *lists[ir.Ref])
	}

	var v *ir.Var

	if res != ir.Void {
		v, err = c.newVar(x)
		if err != nil {
			return err
		}
	}

	b.Add(ir.ResidualCall(classes, res), v, args...)

	return nil
}

func (c *converter) ret(b *ir.Block, x *ssa.Return) error {
	switch len(x.Results) {
	case 0:
		b.Return(nil)
	case 1:
		v, err := c.operand(x.Results[0])
		if err != nil {
			return err
		}

		b.Return(v)
	default:
		return errors.Wrap(ErrNotImplemented, "%d results", len(x.Results))
	}

	return nil
}

func (c *converter) add(b *ir.Block, code ir.Opcode, res ssa.Value, args ...ssa.Value) error {
	ops := make([]any, len(args))

	for i, a := range args {
		v, err := c.operand(a)
		if err != nil {
			return errors.Wrap(err, "arg %d", i)
		}

		ops[i] = v
	}

	v, err := c.newVar(res)
	if err != nil {
		return err
	}

	b.Add(code, v, ops...)

	return nil
}

func (c *converter) operand(x ssa.Value) (any, error) {
	switch x := x.(type) {
	case *ssa.Const:
		return constOf(x)
	case *ssa.Function:
		return ir.SymConst("fn", x.Name()), nil
	}

	if v, ok := c.vars[x]; ok {
		return v, nil
	}

	return c.newVar(x)
}

func (c *converter) newVar(x ssa.Value) (*ir.Var, error) {
	if v, ok := c.vars[x]; ok {
		return v, nil
	}

	k, err := kindOf(x.Type())
	if err != nil {
		return nil, errors.Wrap(err, "value %v", x.Name())
	}

	v := ir.NewVar(x.Name(), k)
	c.vars[x] = v

	return v, nil
}

func constOf(x *ssa.Const) (ir.Const, error) {
	if x.Value == nil {
		return ir.NilConst(), nil
	}

	switch x.Value.Kind() {
	case constant.Bool:
		return ir.BoolConst(constant.BoolVal(x.Value)), nil
	case constant.Int:
		if v, ok := constant.Int64Val(x.Value); ok {
			return ir.IntConst(v), nil
		}

		if v, ok := constant.Uint64Val(x.Value); ok {
			return ir.IntConst(int64(v)), nil
		}

		return ir.Const{}, errors.New("int constant overflows: %v", x.Value)
	case constant.Float:
		v, _ := constant.Float64Val(x.Value)

		return ir.FloatConst(v), nil
	case constant.String:
		return ir.StrConst(constant.StringVal(x.Value)), nil
	}

	return ir.Const{}, errors.Wrap(ErrNotImplemented, "constant %v", x.Value)
}

func kindOf(t types.Type) (ir.Kind, error) {
	switch t := t.Underlying().(type) {
	case *types.Basic:
		switch {
		case t.Info()&(types.IsInteger|types.IsBoolean) != 0:
			return ir.Int, nil
		case t.Info()&types.IsFloat != 0:
			return ir.Float, nil
		case t.Info()&types.IsString != 0, t.Kind() == types.UnsafePointer, t.Kind() == types.UntypedNil:
			return ir.Ref, nil
		}
	case *types.Pointer, *types.Slice, *types.Map, *types.Chan, *types.Interface, *types.Signature:
		return ir.Ref, nil
	case *types.Tuple:
		if t.Len() == 0 {
			return ir.Void, nil
		}

		if t.Len() == 1 {
			return kindOf(t.At(0).Type())
		}
	}

	return ir.Void, errors.Wrap(ErrNotImplemented, "type %v", t)
}

func isString(t types.Type) bool {
	b, ok := t.Underlying().(*types.Basic)

	return ok && b.Info()&types.IsString != 0
}

func isUnsigned(t types.Type) bool {
	b, ok := t.Underlying().(*types.Basic)

	return ok && b.Info()&types.IsUnsigned != 0
}

func isPointer(t types.Type) bool {
	switch t := t.Underlying().(type) {
	case *types.Pointer:
		return true
	case *types.Basic:
		return t.Kind() == types.UnsafePointer
	}

	return false
}

// narrow reports numbers shorter than a register, except booleans.
func narrow(t types.Type) bool {
	b, ok := t.Underlying().(*types.Basic)
	if !ok || b.Info()&types.IsNumeric == 0 {
		return false
	}

	return sizes.Sizeof(t) < 8
}

// widens reports whether an integer conversion keeps an extended
// value extended without masking.
func widens(from, to types.Type) bool {
	fs, ts := sizes.Sizeof(from), sizes.Sizeof(to)

	switch {
	case ts == 8:
		return true
	case ts > fs:
		return isUnsigned(from) || !isUnsigned(to)
	case ts == fs:
		return isUnsigned(from) == isUnsigned(to)
	}

	return false
}

func binOpcode(op token.Token, k ir.Kind, unsigned bool) ir.Opcode {
	switch k {
	case ir.Int:
		if unsigned {
			switch op {
			case token.REM:
				return ir.OpInvalid
			case token.QUO:
				return ir.OpUintFloorDiv
			case token.SHR:
				return ir.OpUintRshift
			case token.LSS:
				return ir.OpUintLt
			case token.LEQ:
				return ir.OpUintLe
			case token.GTR:
				return ir.OpUintGt
			case token.GEQ:
				return ir.OpUintGe
			}
		}

		switch op {
		case token.ADD:
			return ir.OpIntAdd
		case token.SUB:
			return ir.OpIntSub
		case token.MUL:
			return ir.OpIntMul
		case token.QUO:
			return ir.OpIntFloorDiv
		case token.REM:
			return ir.OpIntMod
		case token.AND:
			return ir.OpIntAnd
		case token.OR:
			return ir.OpIntOr
		case token.XOR:
			return ir.OpIntXor
		case token.SHL:
			return ir.OpIntLshift
		case token.SHR:
			return ir.OpIntRshift
		case token.EQL:
			return ir.OpIntEq
		case token.NEQ:
			return ir.OpIntNe
		case token.LSS:
			return ir.OpIntLt
		case token.LEQ:
			return ir.OpIntLe
		case token.GTR:
			return ir.OpIntGt
		case token.GEQ:
			return ir.OpIntGe
		}
	case ir.Float:
		switch op {
		case token.ADD:
			return ir.OpFloatAdd
		case token.SUB:
			return ir.OpFloatSub
		case token.MUL:
			return ir.OpFloatMul
		case token.QUO:
			return ir.OpFloatTrueDiv
		case token.EQL:
			return ir.OpFloatEq
		case token.NEQ:
			return ir.OpFloatNe
		case token.LSS:
			return ir.OpFloatLt
		case token.LEQ:
			return ir.OpFloatLe
		case token.GTR:
			return ir.OpFloatGt
		case token.GEQ:
			return ir.OpFloatGe
		}
	case ir.Ref:
		switch op {
		case token.EQL:
			return ir.OpPtrEq
		case token.NEQ:
			return ir.OpPtrNe
		}
	}

	return ir.OpInvalid
}

func (d CallDescr) String() string {
	return "<calldescr " + d.Sig + ">"
}
