// Package types models the operational types of asm.js values.
//
// asm.js has no type annotations. Every value's type is pinned by a small
// coercion idiom around it:
// - x|0 is an int
// - +x is a double
// - Math_fround(x) is a float
// - SIMD_float32x4(x) and SIMD_int32x4(x) are the vector types
//
// Detect recovers a type from an expression's shape, and Coerce and
// VarDefault build the idioms back.
package types

import (
	"errors"
	"math"

	"github.com/HugoDaniel/asmopt/internal/ast"
)

// Type is the operational type of an asm.js value.
type Type uint8

const (
	Int Type = iota
	Double
	Float
	Float32x4
	Int32x4
	// None is an unknown or invalid type.
	None
)

// All lists the concrete types in declaration order.
var All = []Type{Int, Double, Float, Float32x4, Int32x4}

func (t Type) String() string {
	switch t {
	case Int:
		return "int"
	case Double:
		return "double"
	case Float:
		return "float"
	case Float32x4:
		return "float32x4"
	case Int32x4:
		return "int32x4"
	default:
		return "none"
	}
}

// Names of the coercion functions and special globals.
const (
	Fround        = "Math_fround"
	SIMDFloat32x4 = "SIMD_float32x4"
	SIMDInt32x4   = "SIMD_int32x4"
	TempRet0      = "tempRet0"
	Inf           = "inf"
	NaN           = "nan"
)

// ----------------------------------------------------------------------------
// Float Zero Sentinel
// ----------------------------------------------------------------------------

// ErrFloatZeroConflict is returned when two different global names are used
// as the frozen float zero constant.
var ErrFloatZeroConflict = errors.New("conflicting float zero constants")

// FloatZero records the global constant that holds Math_fround(0) once the
// program has hoisted it, as in "var f = f0". The first bare name seen as a
// var initializer freezes it for the run.
type FloatZero struct {
	name string
}

// Name returns the sentinel, or "" if none has been seen.
func (z *FloatZero) Name() string {
	if z == nil {
		return ""
	}
	return z.name
}

// Observe records name as the sentinel, failing if a different one is frozen.
func (z *FloatZero) Observe(name string) error {
	if z.name == "" {
		z.name = name
		return nil
	}
	if z.name != name {
		return ErrFloatZeroConflict
	}
	return nil
}

// ----------------------------------------------------------------------------
// Detection
// ----------------------------------------------------------------------------

// Scope resolves the declared type of local names.
type Scope interface {
	LocalType(name string) Type
}

// Detect returns the type implied by an expression's shape. Local names are
// resolved through scope, which may be nil. Shapes that pin no type yield
// None.
func Detect(node *ast.Node, scope Scope) Type {
	t, _ := detect(node, scope, nil)
	return t
}

// DetectInit returns the type of a var initializer. A bare global name is
// taken to be the frozen float zero and recorded in zero.
func DetectInit(node *ast.Node, zero *FloatZero) (Type, error) {
	return detect(node, nil, zero)
}

func detect(node *ast.Node, scope Scope, zero *FloatZero) (Type, error) {
	switch node.Tag() {
	case ast.Num:
		if IsInteger(node.At(1).Num()) {
			return Int, nil
		}
		return Double, nil

	case ast.Name:
		name := node.At(1).Str()
		if scope != nil {
			if t := scope.LocalType(name); t != None {
				return t, nil
			}
		}
		switch name {
		case Inf, NaN:
			return Double, nil
		case TempRet0:
			return Int, nil
		}
		if zero == nil {
			return None, nil
		}
		if err := zero.Observe(name); err != nil {
			return None, err
		}
		return Float, nil

	case ast.UnaryPrefix:
		switch node.At(1).Str() {
		case "+":
			return Double, nil
		case "-":
			return detect(node.At(2), scope, zero)
		case "!", "~":
			return Int, nil
		}

	case ast.Call:
		if target := node.At(1); target.Is(ast.Name) {
			switch target.At(1).Str() {
			case Fround:
				return Float, nil
			case SIMDFloat32x4:
				return Float32x4, nil
			case SIMDInt32x4:
				return Int32x4, nil
			}
		}

	case ast.Conditional, ast.Seq:
		return detect(node.At(2), scope, zero)

	case ast.Binary:
		op := node.At(1).Str()
		if op == "" {
			break
		}
		switch op[0] {
		case '+', '-', '*', '/', '%':
			return detect(node.At(2), scope, zero)
		case '|', '&', '^', '<', '>', '=', '!':
			return Int, nil
		}
	}
	return None, nil
}

// IsInteger reports whether x has no fractional part.
func IsInteger(x float64) bool {
	return math.Mod(x, 1) == 0
}

// IsInteger32 reports whether x is an integer representable as a signed or
// unsigned 32-bit value.
func IsInteger32(x float64) bool {
	return IsInteger(x) && x >= math.MinInt32 && x <= math.MaxUint32
}

// ----------------------------------------------------------------------------
// Construction
// ----------------------------------------------------------------------------

// Coerce wraps node in the coercion idiom for t. None leaves node as is.
func Coerce(a *ast.Arena, node *ast.Node, t Type) *ast.Node {
	switch t {
	case Int:
		return a.Binary(node, "|", a.Num(0))
	case Double:
		return a.Unary("+", node)
	case Float:
		return a.Call(a.Name(Fround), node)
	case Float32x4:
		return a.Call(a.Name(SIMDFloat32x4), node)
	case Int32x4:
		return a.Call(a.Name(SIMDInt32x4), node)
	}
	return node
}

// VarDefault builds the zero initializer for a local of type t. Floats use
// the frozen float zero when one has been seen.
func VarDefault(a *ast.Arena, t Type, zero *FloatZero) *ast.Node {
	switch t {
	case Int:
		return a.Num(0)
	case Double:
		return a.Unary("+", a.Num(0))
	case Float:
		if name := zero.Name(); name != "" {
			return a.Name(name)
		}
		return a.Call(a.Name(Fround), a.Num(0))
	case Float32x4:
		return a.Call(a.Name(SIMDFloat32x4), a.Num(0), a.Num(0), a.Num(0), a.Num(0))
	case Int32x4:
		return a.Call(a.Name(SIMDInt32x4), a.Num(0), a.Num(0), a.Num(0), a.Num(0))
	}
	return nil
}
