package flatten

import (
	"tlog.app/go/errors"

	"github.com/slowlang/codewriter/compiler/ir"
	"github.com/slowlang/codewriter/compiler/ssa"
)

type (
	// RegAllocs colors variables. Answers must be stable for one Flatten call.
	RegAllocs interface {
		ColorOf(k ir.Kind, v *ir.Var) int
	}

	// LivenessOracle reports registers live across a possible collection point.
	// ok is false if op is not one.
	LivenessOracle interface {
		LiveBefore(op *ir.Op) (live []ssa.Register, ok bool)
	}

	// SwitchDictBuilder decides whether an integer dispatch is lowered to a
	// single switch. It returns nil to fall back to an equality chain.
	SwitchDictBuilder interface {
		NewSwitchDict(v *ir.Var, ncases int) *ssa.SwitchDict
	}

	Options struct {
		Regs   RegAllocs
		Live   LivenessOracle
		Switch SwitchDictBuilder

		// AllExcLinks keeps exception exits even if the last op is not marked CanRaise.
		AllExcLinks bool

		// FuseBranches folds a single-use comparison into the following branch.
		FuseBranches bool

		// GuardSwitch emits int_guard_value before an equality chain.
		GuardSwitch bool
	}

	// MinCases builds a SwitchDict for dispatches with at least that many cases.
	MinCases int

	// LiveTable is a precomputed LivenessOracle.
	LiveTable map[*ir.Op][]ssa.Register
)

var (
	ErrNotImplemented   = errors.New("not implemented")
	ErrRenameLength     = errors.New("renaming length mismatch")
	ErrEmptySwitch      = errors.New("switch without cases")
	ErrUnknownException = errors.New("handler without exception class")
	ErrBadExit          = errors.New("malformed block exit")
)

func (n MinCases) NewSwitchDict(v *ir.Var, ncases int) *ssa.SwitchDict {
	if ncases < int(n) {
		return nil
	}

	return &ssa.SwitchDict{}
}

func (t LiveTable) LiveBefore(op *ir.Op) ([]ssa.Register, bool) {
	l, ok := t[op]

	return l, ok
}
