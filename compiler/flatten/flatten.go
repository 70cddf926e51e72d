package flatten

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/codewriter/compiler/ir"
	"github.com/slowlang/codewriter/compiler/set"
	"github.com/slowlang/codewriter/compiler/ssa"
)

type flattener struct {
	Options

	g *ir.Graph
	r *ssa.Repr

	seen   set.Bits[ir.BlockID]
	labels map[ir.BlockID]ssa.Label
	uses   map[*ir.Var]int

	jobs jobs

	tr tlog.Span
}

// Flatten lowers g into a linear instruction stream.
// The returned Repr has its labels resolved.
func Flatten(ctx context.Context, g *ir.Graph, opts Options) (r *ssa.Repr, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "flatten graph", "name", g.Name, "blocks", len(g.Blocks))
	defer tr.Finish("err", &err)

	if opts.Regs == nil {
		return nil, errors.New("no register allocator")
	}

	if g.Block(g.Start) == nil {
		return nil, errors.New("no start block %v", g.Start)
	}

	f := &flattener{
		Options: opts,
		g:       g,
		r:       ssa.New(g.Name),
		labels:  map[ir.BlockID]ssa.Label{},
		jobs:    newJobs(),
		tr:      tr,
	}

	if f.FuseBranches {
		f.uses = g.Uses()
	}

	err = f.run()
	if err != nil {
		return nil, err
	}

	err = f.r.Finalize()
	if err != nil {
		return nil, errors.Wrap(err, "finalize")
	}

	if tr.If("dump_ssa") {
		for i, x := range f.r.Insns {
			tr.Printw("insn", "i", i, "op", x.Op, "args", x.Args, "def", x.Def)
		}
	}

	return f.r, nil
}

func (f *flattener) run() (err error) {
	start := f.g.Block(f.g.Start)

	// inputs of the start block take the lowest colors
	for _, v := range start.Inputs {
		f.operand(v)
	}

	err = f.follow(f.g.Start, nil)
	if err != nil {
		return errors.Wrap(err, "block %v", f.g.Start)
	}

	for f.jobs.Len() != 0 {
		j := f.jobs.Pop()

		f.tr.V("flatten_job").Printw("job start", "job", j)

		if j.label != 0 {
			f.r.Define(j.label)
		}

		l := j.link

		switch j.kind {
		case jobLink:
		case jobHandler:
			l, err = f.handler(j.block, j.next)
		case jobCase:
			l, err = f.switchCase(j.block, j.next)
		default:
			panic(j.kind)
		}

		if err == nil && l != nil {
			err = f.follow(l.Target, l)
		}

		if err != nil {
			return errors.Wrap(err, "job %d", j.seq)
		}
	}

	return nil
}

// follow emits the path starting at l (or at block id if l is nil),
// inlining unvisited blocks until the path ends in a terminal or a jump.
func (f *flattener) follow(id ir.BlockID, l *ir.Link) (err error) {
	for {
		if l != nil {
			id = l.Target

			done, err := f.link(l)
			if err != nil {
				return errors.Wrap(err, "link to %v", id)
			}

			if done {
				return nil
			}
		}

		if f.seen.IsSet(id) {
			f.r.Emit("goto", f.labels[id])

			return nil
		}

		l, err = f.block(id)
		if err != nil {
			return errors.Wrap(err, "block %v", id)
		}

		if l == nil {
			return nil
		}
	}
}

// block linearizes ops and exits of a block.
// It returns the exit to inline next or nil.
func (f *flattener) block(id ir.BlockID) (next *ir.Link, err error) {
	b := f.g.Block(id)
	if b == nil {
		return nil, errors.New("no block %v", id)
	}

	f.seen.Set(id)

	lab := f.r.NewLabel()
	f.labels[id] = lab
	f.r.Define(lab)

	f.tr.V("flatten_block").Printw("block", "id", id, "label", lab, "ops", len(b.Ops), "exits", len(b.Exits))

	ops := b.Ops

	fused := f.fusable(b)
	if fused != nil {
		ops = ops[:len(ops)-1]
	}

	for i, op := range ops {
		err = f.serializeOp(op)
		if err != nil {
			return nil, errors.Wrap(err, "op %d", i)
		}
	}

	return f.exits(b, fused)
}

// link emits what happens on the way through l: either the whole target
// when it is a bare terminal (done is true), or the renamings.
func (f *flattener) link(l *ir.Link) (done bool, err error) {
	t := f.g.Block(l.Target)
	if t == nil {
		return false, errors.New("no block %v", l.Target)
	}

	if len(l.Args) != len(t.Inputs) {
		return false, errors.Wrap(ErrRenameLength, "%d args, %d inputs", len(l.Args), len(t.Inputs))
	}

	done, err = f.shortcut(l, t)
	if done || err != nil {
		return done, err
	}

	f.lastExc(l)

	err = f.renamings(l, t)
	if err != nil {
		return false, err
	}

	return false, nil
}

// shortcut emits the terminal of t with link args substituted,
// if t consists of nothing but that terminal.
func (f *flattener) shortcut(l *ir.Link, t *ir.Block) (bool, error) {
	if len(t.Exits) != 0 || len(t.Ops) != 1 || !t.Ops[0].Code.IsTerminal() {
		return false, nil
	}

	for _, a := range l.Args {
		if v, ok := a.(*ir.Var); ok && v != nil && (v == l.LastException || v == l.LastExcValue) {
			if f.reraises(l, t) {
				f.r.Emit("reraise")

				return true, nil
			}

			return false, nil
		}
	}

	term := t.Ops[0]
	op := *term
	op.Args = make([]any, len(term.Args))

	for i, a := range term.Args {
		op.Args[i] = a

		v, ok := a.(*ir.Var)
		if !ok {
			continue
		}

		j := inputIndex(t, v)
		if j < 0 {
			return false, nil
		}

		op.Args[i] = l.Args[j]
	}

	return true, f.serializeOp(&op)
}

// reraises is true if l forwards the pending exception as is
// to a block that raises it again.
func (f *flattener) reraises(l *ir.Link, t *ir.Block) bool {
	if len(l.Args) != 2 || l.Args[0] != any(l.LastException) || l.Args[1] != any(l.LastExcValue) {
		return false
	}

	term := t.Ops[0]
	if term.Code == ir.OpReraise {
		return true
	}

	return term.Code == ir.OpRaise && len(term.Args) == 1 && term.Args[0] == any(t.Inputs[1])
}

// direct returns the label of an already emitted target of l
// if taking l needs no code of its own.
func (f *flattener) direct(l *ir.Link) (ssa.Label, bool) {
	if !f.seen.IsSet(l.Target) || l.LastException != nil || l.LastExcValue != nil {
		return 0, false
	}

	t := f.g.Block(l.Target)
	if t == nil || len(l.Args) != len(t.Inputs) {
		return 0, false
	}

	for i, a := range l.Args {
		w := t.Inputs[i]
		if w.K == ir.Void {
			continue
		}

		v, ok := a.(*ir.Var)
		if !ok || v == nil || v.K != w.K || f.reg(v) != f.reg(w) {
			return 0, false
		}
	}

	return f.labels[l.Target], true
}

func inputIndex(b *ir.Block, v *ir.Var) int {
	for i, in := range b.Inputs {
		if in == v {
			return i
		}
	}

	return -1
}
