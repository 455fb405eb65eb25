// Package builtins describes the globals that asm.js modules import from
// their environment: typed heap views, the Math_ library and the special
// helper globals emitted by the compiler.
//
// The optimizer never sees declarations for these names. What it knows
// about them (element width of a heap view, whether a call can have side
// effects) comes from the naming conventions recorded here.
package builtins

import (
	"strconv"
	"strings"

	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/types"
)

// BuiltinKind identifies categories of imported globals.
type BuiltinKind uint8

const (
	BuiltinHeap     BuiltinKind = iota // Typed array views of the heap
	BuiltinMath                        // Math_ library functions
	BuiltinCoercion                    // Functions used as type coercions
	BuiltinSpecial                     // Compiler helper globals
)

// Builtin describes a known imported global.
type Builtin struct {
	Name string
	Kind BuiltinKind
	// Pure is set for functions whose calls have no side effects.
	Pure bool
}

// Table maps well-known imported names to their descriptions. Names outside
// the table are classified by prefix (see IsMathFunc, ParseHeap).
var Table = make(map[string]*Builtin)

func init() {
	registerHeaps()
	registerMath()
	registerSpecials()
}

func register(name string, kind BuiltinKind, pure bool) {
	Table[name] = &Builtin{Name: name, Kind: kind, Pure: pure}
}

func registerHeaps() {
	for _, name := range []string{
		HEAP8, HEAP16, HEAP32, HEAPU8, HEAPU16, HEAPU32, HEAPF32, HEAPF64,
	} {
		register(name, BuiltinHeap, false)
	}
}

func registerMath() {
	for _, name := range []string{
		"Math_abs", "Math_ceil", "Math_floor", "Math_sqrt", "Math_imul",
		"Math_min", "Math_max", "Math_sin", "Math_cos", "Math_tan",
		"Math_asin", "Math_acos", "Math_atan", "Math_atan2", "Math_exp",
		"Math_log", "Math_pow", "Math_clz32",
	} {
		register(name, BuiltinMath, true)
	}
	register(types.Fround, BuiltinCoercion, true)
	register(types.SIMDFloat32x4, BuiltinCoercion, false)
	register(types.SIMDInt32x4, BuiltinCoercion, false)
}

func registerSpecials() {
	register(TempDoublePtr, BuiltinSpecial, false)
	register(types.TempRet0, BuiltinSpecial, false)
	register(StackTop, BuiltinSpecial, false)
}

// Lookup returns the description of a well-known global.
func Lookup(name string) (*Builtin, bool) {
	b, ok := Table[name]
	return b, ok
}

// ----------------------------------------------------------------------------
// Heap Views
// ----------------------------------------------------------------------------

// Heap view names.
const (
	HEAP8   = "HEAP8"
	HEAP16  = "HEAP16"
	HEAP32  = "HEAP32"
	HEAPU8  = "HEAPU8"
	HEAPU16 = "HEAPU16"
	HEAPU32 = "HEAPU32"
	HEAPF32 = "HEAPF32"
	HEAPF64 = "HEAPF64"
)

// HeapView describes a typed heap view decoded from its name.
type HeapView struct {
	Valid    bool
	Unsigned bool
	Float    bool
	Bits     int
	Type     types.Type
}

// ParseHeap decodes names of the form HEAP<bits>, HEAPU<bits>, HEAPF<bits>.
func ParseHeap(name string) HeapView {
	rest, ok := strings.CutPrefix(name, "HEAP")
	if !ok || rest == "" {
		return HeapView{}
	}
	var view HeapView
	switch rest[0] {
	case 'U':
		view.Unsigned = true
		rest = rest[1:]
	case 'F':
		view.Float = true
		rest = rest[1:]
	}
	bits, err := strconv.Atoi(rest)
	if err != nil {
		return HeapView{}
	}
	view.Valid = true
	view.Bits = bits
	switch {
	case !view.Float:
		view.Type = types.Int
	case bits == 64:
		view.Type = types.Double
	default:
		view.Type = types.Float
	}
	return view
}

// HeapName returns the integer view name for a width and signedness.
func HeapName(bits int, unsigned bool) string {
	switch bits {
	case 8:
		if unsigned {
			return HEAPU8
		}
		return HEAP8
	case 16:
		if unsigned {
			return HEAPU16
		}
		return HEAP16
	case 32:
		if unsigned {
			return HEAPU32
		}
		return HEAP32
	}
	return ""
}

// ----------------------------------------------------------------------------
// Functions
// ----------------------------------------------------------------------------

// Special globals emitted by the compiler.
const (
	TempDoublePtr = "tempDoublePtr"
	StackTop      = "STACKTOP"
	FunctionTable = "FUNCTION_TABLE"
	mathPrefix    = "Math_"
)

// IsMathFunc reports whether name belongs to the Math_ library. These are
// the only callees treated as free of side effects.
func IsMathFunc(name string) bool {
	return strings.HasPrefix(name, mathPrefix)
}

// IsFunctionTable reports whether name is an indirect call table.
func IsFunctionTable(name string) bool {
	return strings.HasPrefix(name, FunctionTable)
}

// IsPureFunc reports whether calling name has no side effects.
func IsPureFunc(name string) bool {
	if b, ok := Table[name]; ok {
		return b.Pure
	}
	return IsMathFunc(name)
}

// CallHasSideEffects reports whether invoking the callee of a call node may
// have side effects, ignoring its arguments. Any callee that is not a Math_
// function is assumed to.
func CallHasSideEffects(call *ast.Node) bool {
	target := call.At(1)
	return !(target.Is(ast.Name) && IsPureFunc(target.At(1).Str()))
}

// IsTempDoublePtrAccess reports whether a sub node indexes through
// tempDoublePtr. Such accesses implement bitcasts and do not touch program
// memory.
func IsTempDoublePtrAccess(sub *ast.Node) bool {
	index := sub.At(2)
	if index.IsName(TempDoublePtr) {
		return true
	}
	return index.Is(ast.Binary) && (index.At(2).IsName(TempDoublePtr) || index.At(3).IsName(TempDoublePtr))
}
