package ir

import "tlog.app/go/tlog/tlwire"

type (
	BlockID int

	// Op is one typed operation. Args are *Var, Const, ListOfKind or Descr.
	// A nil or void Result means the op produces nothing.
	Op struct {
		Code   Opcode
		Args   []any
		Result *Var

		// CanRaise marks ops whose exceptions are routed to the block's
		// exception exits. Such ops are emitted with a G_ prefix.
		CanRaise bool
	}

	// Block is a straight-line sequence of ops ending in zero or more exits.
	//
	// Exit shapes:
	//	no exits        the last op is a terminal
	//	one exit        unconditional
	//	Switch == LastException   Exits[0] is the normal path, the rest are handlers
	//	two exits with bool cases  Switch is the condition
	//	otherwise       integer dispatch on Switch, int64 cases and an optional Default
	Block struct {
		Inputs []*Var
		Ops    []*Op

		Switch any
		Exits  []*Link
	}

	// Link renames Args at the exit of a block to the Inputs of Target.
	// The renaming is parallel.
	Link struct {
		Args   []any
		Target BlockID

		// Case is nil, bool, int64, Default or Catch.
		Case any

		// Set on exception links when Args refer to the pending exception.
		LastException *Var
		LastExcValue  *Var
	}

	// Catch is the case of an exception handler link.
	Catch struct {
		Class    Const
		All      bool
		Overflow bool
	}

	defaultCase struct{}

	excSwitch struct{}

	Graph struct {
		Name   string
		Start  BlockID
		Blocks []*Block
	}
)

var (
	// Default is the case of the fallback link of an integer dispatch.
	Default any = defaultCase{}

	// LastException as Block.Switch marks exception exits.
	LastException any = excSwitch{}
)

func NewGraph(name string) *Graph {
	return &Graph{Name: name}
}

// NewBlock adds an empty block to the graph.
func (g *Graph) NewBlock(in ...*Var) BlockID {
	id := BlockID(len(g.Blocks))
	g.Blocks = append(g.Blocks, &Block{Inputs: in})

	return id
}

func (g *Graph) Block(id BlockID) *Block {
	if id < 0 || int(id) >= len(g.Blocks) {
		return nil
	}

	return g.Blocks[id]
}

// Uses counts how many times each variable is read anywhere in the graph.
func (g *Graph) Uses() map[*Var]int {
	uses := make(map[*Var]int)

	var add func(x any)
	add = func(x any) {
		switch x := x.(type) {
		case *Var:
			uses[x]++
		case ListOfKind:
			for _, y := range x.Items {
				add(y)
			}
		}
	}

	for _, b := range g.Blocks {
		for _, op := range b.Ops {
			for _, a := range op.Args {
				add(a)
			}
		}

		add(b.Switch)

		for _, l := range b.Exits {
			for _, a := range l.Args {
				add(a)
			}
		}
	}

	return uses
}

func (b *Block) Add(code Opcode, res *Var, args ...any) *Op {
	op := &Op{Code: code, Args: args, Result: res}
	b.Ops = append(b.Ops, op)

	return op
}

// Goto sets a single unconditional exit.
func (b *Block) Goto(to BlockID, args ...any) *Link {
	l := Jump(to, args...)
	b.Switch = nil
	b.Exits = []*Link{l}

	return l
}

// If sets a boolean exit on cond.
func (b *Block) If(cond any, then, els *Link) {
	then.Case = true
	els.Case = false

	b.Switch = cond
	b.Exits = []*Link{els, then}
}

// Return terminates the block with a kind-specific return of x.
func (b *Block) Return(x any) *Op {
	if x == nil {
		return b.Add(OpVoidReturn, nil)
	}

	k := Void

	switch x := x.(type) {
	case *Var:
		k = x.K
	case Const:
		k = x.K
	}

	if k == Void {
		return b.Add(OpVoidReturn, nil)
	}

	return b.Add(ReturnOp(k), nil, x)
}

// Last is the last op of the block or nil.
func (b *Block) Last() *Op {
	if len(b.Ops) == 0 {
		return nil
	}

	return b.Ops[len(b.Ops)-1]
}

func Jump(to BlockID, args ...any) *Link {
	return &Link{Target: to, Args: args}
}

func CaseLink(c any, to BlockID, args ...any) *Link {
	return &Link{Target: to, Args: args, Case: c}
}

func (id BlockID) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendInt(b, int(id))
}
