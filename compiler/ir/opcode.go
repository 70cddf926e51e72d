package ir

import "strconv"

type Opcode int

const (
	OpInvalid Opcode = iota

	OpIntAdd
	OpIntSub
	OpIntMul
	OpIntFloorDiv
	OpIntMod
	OpIntAnd
	OpIntOr
	OpIntXor
	OpIntLshift
	OpIntRshift
	OpUintRshift
	OpUintFloorDiv
	OpIntNeg
	OpIntInvert

	OpIntAddOvf
	OpIntSubOvf
	OpIntMulOvf
	OpIntFloorDivOvfZer
	OpIntModOvfZer

	OpIntIsTrue
	OpIntIsZero
	OpIntLt
	OpIntLe
	OpIntEq
	OpIntNe
	OpIntGt
	OpIntGe
	OpUintLt
	OpUintLe
	OpUintGt
	OpUintGe

	OpFloatAdd
	OpFloatSub
	OpFloatMul
	OpFloatTrueDiv
	OpFloatNeg
	OpFloatAbs
	OpFloatLt
	OpFloatLe
	OpFloatEq
	OpFloatNe
	OpFloatGt
	OpFloatGe

	OpCastIntToFloat
	OpCastFloatToInt

	OpPtrEq
	OpPtrNe
	OpPtrIsZero
	OpPtrNonZero

	OpIntCopy
	OpRefCopy
	OpFloatCopy

	OpIntGuardValue
	OpRefGuardValue
	OpFloatGuardValue

	OpGetFieldGcI
	OpGetFieldGcR
	OpGetFieldGcF
	OpSetFieldGcI
	OpSetFieldGcR
	OpSetFieldGcF
	OpGetArrayItemGcI
	OpGetArrayItemGcR
	OpGetArrayItemGcF
	OpSetArrayItemGcI
	OpSetArrayItemGcR
	OpSetArrayItemGcF
	OpArrayLenGc
	OpStrLen
	OpStrGetItem

	OpNew
	OpNewWithVtable
	OpNewArray

	OpDirectCall
	OpResidualCallRI
	OpResidualCallRR
	OpResidualCallRF
	OpResidualCallRV
	OpResidualCallIRI
	OpResidualCallIRR
	OpResidualCallIRF
	OpResidualCallIRV
	OpResidualCallIRFI
	OpResidualCallIRFR
	OpResidualCallIRFF
	OpResidualCallIRFV

	OpIntReturn
	OpRefReturn
	OpFloatReturn
	OpVoidReturn
	OpRaise
	OpReraise
	OpUnreachable

	opMax
)

type opFlags uint8

const (
	fCall opFlags = 1 << iota
	fCmp
	fTerm
	fOvf
)

var opTable = [opMax]struct {
	name  string
	flags opFlags
}{
	OpIntAdd:       {"int_add", 0},
	OpIntSub:       {"int_sub", 0},
	OpIntMul:       {"int_mul", 0},
	OpIntFloorDiv:  {"int_floordiv", 0},
	OpIntMod:       {"int_mod", 0},
	OpIntAnd:       {"int_and", 0},
	OpIntOr:        {"int_or", 0},
	OpIntXor:       {"int_xor", 0},
	OpIntLshift:    {"int_lshift", 0},
	OpIntRshift:    {"int_rshift", 0},
	OpUintRshift:   {"uint_rshift", 0},
	OpUintFloorDiv: {"uint_floordiv", 0},
	OpIntNeg:       {"int_neg", 0},
	OpIntInvert:    {"int_invert", 0},

	OpIntAddOvf:         {"int_add_ovf", fOvf},
	OpIntSubOvf:         {"int_sub_ovf", fOvf},
	OpIntMulOvf:         {"int_mul_ovf", fOvf},
	OpIntFloorDivOvfZer: {"int_floordiv_ovf_zer", fOvf},
	OpIntModOvfZer:      {"int_mod_ovf_zer", fOvf},

	OpIntIsTrue: {"int_is_true", fCmp},
	OpIntIsZero: {"int_is_zero", fCmp},
	OpIntLt:     {"int_lt", fCmp},
	OpIntLe:     {"int_le", fCmp},
	OpIntEq:     {"int_eq", fCmp},
	OpIntNe:     {"int_ne", fCmp},
	OpIntGt:     {"int_gt", fCmp},
	OpIntGe:     {"int_ge", fCmp},
	OpUintLt:    {"uint_lt", fCmp},
	OpUintLe:    {"uint_le", fCmp},
	OpUintGt:    {"uint_gt", fCmp},
	OpUintGe:    {"uint_ge", fCmp},

	OpFloatAdd:     {"float_add", 0},
	OpFloatSub:     {"float_sub", 0},
	OpFloatMul:     {"float_mul", 0},
	OpFloatTrueDiv: {"float_truediv", 0},
	OpFloatNeg:     {"float_neg", 0},
	OpFloatAbs:     {"float_abs", 0},
	OpFloatLt:      {"float_lt", fCmp},
	OpFloatLe:      {"float_le", fCmp},
	OpFloatEq:      {"float_eq", fCmp},
	OpFloatNe:      {"float_ne", fCmp},
	OpFloatGt:      {"float_gt", fCmp},
	OpFloatGe:      {"float_ge", fCmp},

	OpCastIntToFloat: {"cast_int_to_float", 0},
	OpCastFloatToInt: {"cast_float_to_int", 0},

	OpPtrEq:      {"ptr_eq", fCmp},
	OpPtrNe:      {"ptr_ne", fCmp},
	OpPtrIsZero:  {"ptr_iszero", fCmp},
	OpPtrNonZero: {"ptr_nonzero", fCmp},

	OpIntCopy:   {"int_copy", 0},
	OpRefCopy:   {"ref_copy", 0},
	OpFloatCopy: {"float_copy", 0},

	OpIntGuardValue:   {"int_guard_value", 0},
	OpRefGuardValue:   {"ref_guard_value", 0},
	OpFloatGuardValue: {"float_guard_value", 0},

	OpGetFieldGcI:     {"getfield_gc_i", 0},
	OpGetFieldGcR:     {"getfield_gc_r", 0},
	OpGetFieldGcF:     {"getfield_gc_f", 0},
	OpSetFieldGcI:     {"setfield_gc_i", 0},
	OpSetFieldGcR:     {"setfield_gc_r", 0},
	OpSetFieldGcF:     {"setfield_gc_f", 0},
	OpGetArrayItemGcI: {"getarrayitem_gc_i", 0},
	OpGetArrayItemGcR: {"getarrayitem_gc_r", 0},
	OpGetArrayItemGcF: {"getarrayitem_gc_f", 0},
	OpSetArrayItemGcI: {"setarrayitem_gc_i", 0},
	OpSetArrayItemGcR: {"setarrayitem_gc_r", 0},
	OpSetArrayItemGcF: {"setarrayitem_gc_f", 0},
	OpArrayLenGc:      {"arraylen_gc", 0},
	OpStrLen:          {"strlen", 0},
	OpStrGetItem:      {"strgetitem", 0},

	OpNew:           {"new", fCall},
	OpNewWithVtable: {"new_with_vtable", fCall},
	OpNewArray:      {"new_array", fCall},

	OpDirectCall:       {"direct_call", fCall},
	OpResidualCallRI:   {"residual_call_r_i", fCall},
	OpResidualCallRR:   {"residual_call_r_r", fCall},
	OpResidualCallRF:   {"residual_call_r_f", fCall},
	OpResidualCallRV:   {"residual_call_r_v", fCall},
	OpResidualCallIRI:  {"residual_call_ir_i", fCall},
	OpResidualCallIRR:  {"residual_call_ir_r", fCall},
	OpResidualCallIRF:  {"residual_call_ir_f", fCall},
	OpResidualCallIRV:  {"residual_call_ir_v", fCall},
	OpResidualCallIRFI: {"residual_call_irf_i", fCall},
	OpResidualCallIRFR: {"residual_call_irf_r", fCall},
	OpResidualCallIRFF: {"residual_call_irf_f", fCall},
	OpResidualCallIRFV: {"residual_call_irf_v", fCall},

	OpIntReturn:   {"int_return", fTerm},
	OpRefReturn:   {"ref_return", fTerm},
	OpFloatReturn: {"float_return", fTerm},
	OpVoidReturn:  {"void_return", fTerm},
	OpRaise:       {"raise", fTerm},
	OpReraise:     {"reraise", fTerm},
	OpUnreachable: {"unreachable", fTerm},
}

// Name returns the emitted opcode name.
// ok is false for codes with no lowering rule.
func (c Opcode) Name() (name string, ok bool) {
	if c <= OpInvalid || c >= opMax {
		return "", false
	}

	name = opTable[c].name

	return name, name != ""
}

func (c Opcode) String() string {
	if n, ok := c.Name(); ok {
		return n
	}

	return "opcode(" + strconv.Itoa(int(c)) + ")"
}

func (c Opcode) IsCall() bool       { return c.flag(fCall) }
func (c Opcode) IsComparison() bool { return c.flag(fCmp) }
func (c Opcode) IsTerminal() bool   { return c.flag(fTerm) }
func (c Opcode) IsOvf() bool        { return c.flag(fOvf) }

func (c Opcode) flag(f opFlags) bool {
	if c <= OpInvalid || c >= opMax {
		return false
	}

	return opTable[c].flags&f != 0
}

// LookupOpcode finds an opcode by its emitted name.
func LookupOpcode(name string) (Opcode, bool) {
	for c := OpInvalid + 1; c < opMax; c++ {
		if opTable[c].name == name {
			return c, true
		}
	}

	return OpInvalid, false
}

// CopyOp is the kind-specific register copy.
func CopyOp(k Kind) Opcode {
	switch k {
	case Int:
		return OpIntCopy
	case Ref:
		return OpRefCopy
	case Float:
		return OpFloatCopy
	}

	return OpInvalid
}

// ReturnOp is the kind-specific return.
func ReturnOp(k Kind) Opcode {
	switch k {
	case Int:
		return OpIntReturn
	case Ref:
		return OpRefReturn
	case Float:
		return OpFloatReturn
	case Void:
		return OpVoidReturn
	}

	return OpInvalid
}

// ResidualCall picks the residual call opcode for the given argument classes
// ("r", "ir" or "irf") and result kind.
func ResidualCall(classes string, res Kind) Opcode {
	var base Opcode

	switch classes {
	case "r":
		base = OpResidualCallRI
	case "ir":
		base = OpResidualCallIRI
	case "irf":
		base = OpResidualCallIRFI
	default:
		return OpInvalid
	}

	switch res {
	case Int:
		return base
	case Ref:
		return base + 1
	case Float:
		return base + 2
	case Void:
		return base + 3
	}

	return OpInvalid
}
