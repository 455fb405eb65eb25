package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/types"
)

func TestParseHeap(t *testing.T) {
	cases := []struct {
		name string
		want HeapView
	}{
		{"HEAP8", HeapView{Valid: true, Bits: 8, Type: types.Int}},
		{"HEAPU16", HeapView{Valid: true, Unsigned: true, Bits: 16, Type: types.Int}},
		{"HEAPF32", HeapView{Valid: true, Float: true, Bits: 32, Type: types.Float}},
		{"HEAPF64", HeapView{Valid: true, Float: true, Bits: 64, Type: types.Double}},
		{"HEAP", HeapView{}},
		{"HEAPX", HeapView{}},
		{"STACKTOP", HeapView{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseHeap(tc.name))
		})
	}
}

func TestHeapName(t *testing.T) {
	assert.Equal(t, "HEAP8", HeapName(8, false))
	assert.Equal(t, "HEAPU16", HeapName(16, true))
	assert.Equal(t, "HEAP32", HeapName(32, false))
	assert.Equal(t, "", HeapName(64, false))
}

func TestCallHasSideEffects(t *testing.T) {
	a := ast.NewArena()

	assert.False(t, CallHasSideEffects(a.Call(a.Name("Math_abs"), a.Name("x"))))
	assert.False(t, CallHasSideEffects(a.Call(a.Name("Math_someFutureFunction"))))
	assert.False(t, CallHasSideEffects(a.Call(a.Name(types.Fround), a.Num(0))))
	assert.True(t, CallHasSideEffects(a.Call(a.Name("_malloc"), a.Num(8))))
	assert.True(t, CallHasSideEffects(a.Call(a.Name(types.SIMDInt32x4), a.Num(0))))
	assert.True(t, CallHasSideEffects(a.Call(a.Sub(a.Name("FUNCTION_TABLE_ii"), a.Name("x")))))
}

func TestIsTempDoublePtrAccess(t *testing.T) {
	a := ast.NewArena()

	assert.True(t, IsTempDoublePtrAccess(a.Sub(a.Name("HEAP32"), a.Name(TempDoublePtr))))
	assert.True(t, IsTempDoublePtrAccess(a.Sub(a.Name("HEAP32"), a.Binary(a.Name(TempDoublePtr), ">>", a.Num(2)))))
	assert.False(t, IsTempDoublePtrAccess(a.Sub(a.Name("HEAP32"), a.Name("p"))))
}

func TestLookup(t *testing.T) {
	b, ok := Lookup("HEAPU8")
	assert.True(t, ok)
	assert.Equal(t, BuiltinHeap, b.Kind)

	_, ok = Lookup("_main")
	assert.False(t, ok)
	assert.True(t, IsFunctionTable("FUNCTION_TABLE_vi"))
}
