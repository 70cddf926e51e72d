package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"tlog.app/go/tlog/tlwire"
)

type (
	Kind int8

	// Var is produced by exactly one Op or is a Block input.
	// Vars are compared by identity.
	Var struct {
		Name string
		K    Kind
	}

	// Const is an immediate literal. Val is one of int64, float64, bool, string,
	// nil or any comparable value with its own String method (Symbol, descriptors).
	Const struct {
		K   Kind
		Val any
	}

	// Symbol is a pointer-like reference to a function, type or object.
	Symbol struct {
		Class string
		Name  string
	}

	// Descr is an opaque descriptor operand. It is rendered by its own String
	// and never looked into.
	Descr interface {
		String() string
	}

	// ListOfKind is a group of same-kind call arguments.
	ListOfKind struct {
		K     Kind
		Items []any
	}
)

const (
	Void Kind = iota
	Int
	Ref
	Float
)

// Kinds lists register kinds in the order they are processed.
var Kinds = [...]Kind{Int, Ref, Float}

func NewVar(name string, k Kind) *Var {
	return &Var{Name: name, K: k}
}

func (v *Var) Kind() Kind { return v.K }

func (v *Var) String() string {
	if v == nil {
		return "<nil>"
	}

	return v.Name
}

func (v *Var) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	if v == nil {
		return e.AppendNil(b)
	}

	return e.AppendString(b, v.K.Letter()+":"+v.Name)
}

func IntConst(x int64) Const     { return Const{K: Int, Val: x} }
func BoolConst(x bool) Const     { return Const{K: Int, Val: x} }
func FloatConst(x float64) Const { return Const{K: Float, Val: x} }
func StrConst(x string) Const    { return Const{K: Ref, Val: x} }
func NilConst() Const            { return Const{K: Ref} }

func SymConst(class, name string) Const {
	return Const{K: Ref, Val: Symbol{Class: class, Name: name}}
}

func (c Const) Kind() Kind { return c.K }

func (c Const) String() string {
	switch x := c.Val.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}

		return "False"
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return formatFloat(x)
	case string:
		return strconv.Quote(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

func (s Symbol) String() string {
	return "<* " + s.Class + " " + s.Name + ">"
}

func NewList(k Kind, items ...any) ListOfKind {
	return ListOfKind{K: k, Items: items}
}

func (k Kind) String() string {
	switch k {
	case Void:
		return "void"
	case Int:
		return "int"
	case Ref:
		return "ref"
	case Float:
		return "float"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Letter is the one-letter kind code used in register names.
func (k Kind) Letter() string {
	return k.String()[:1]
}

func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(s) {
	case "i", "int":
		return Int, true
	case "r", "ref":
		return Ref, true
	case "f", "float":
		return Float, true
	case "v", "void":
		return Void, true
	}

	return Void, false
}

func formatFloat(x float64) string {
	switch {
	case math.IsInf(x, 1):
		return "inf"
	case math.IsInf(x, -1):
		return "-inf"
	case math.IsNaN(x):
		return "nan"
	}

	s := strconv.FormatFloat(x, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}

	return s
}
