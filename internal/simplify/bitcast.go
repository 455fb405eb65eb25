package simplify

import (
	"github.com/HugoDaniel/asmopt/internal/asm"
	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/builtins"
	"github.com/HugoDaniel/asmopt/internal/types"
)

// isTempDoublePtrStore reports whether node is HEAP32[tempDoublePtr ...] = v
// or HEAPF32[tempDoublePtr ...] = v.
func isTempDoublePtrStore(node *ast.Node) bool {
	if !node.Is(ast.Assign) {
		return false
	}
	target := node.At(2)
	if !target.Is(ast.Sub) || !isBitcastHeap(target.At(1)) {
		return false
	}
	index := target.At(2)
	return index.Is(ast.Binary) && index.At(2).IsName(builtins.TempDoublePtr)
}

func isBitcastHeap(node *ast.Node) bool {
	return node.IsName(builtins.HEAP32) || node.IsName(builtins.HEAPF32)
}

// removeBitcasts drops round trips through tempDoublePtr that reinterpret a
// 32-bit value between the int and float heaps.
func (s *simplifier) removeBitcasts() {
	f := asm.MustParse(s.ctx, s.fun)
	a := s.a

	ast.TraversePre(s.fun, func(node *ast.Node) {
		switch node.Tag() {
		case ast.Assign:
			// HEAP32[p] = (HEAPF32[tempDoublePtr >> 2] = v, HEAP32[tempDoublePtr >> 2] | 0)
			// stores v through HEAPF32[p] directly.
			target, value := node.At(2), node.At(3)
			if !node.At(1).IsBool() || !target.Is(ast.Sub) || !target.At(1).IsName(builtins.HEAP32) {
				return
			}
			if value.Is(ast.Seq) && isTempDoublePtrStore(value.At(1)) && value.At(1).At(2).At(1).IsName(builtins.HEAPF32) {
				target.At(1).At(1).SetStr(builtins.HEAPF32)
				node.SetAt(3, value.At(1).At(3))
			}

		case ast.Seq:
			// (HEAP32[tempDoublePtr >> 2] = HEAP32[p], +HEAPF32[tempDoublePtr >> 2])
			// reads +HEAPF32[p]. A longer sequence is an alignment fix for
			// doubles and stays.
			store := node.At(1)
			if !isTempDoublePtrStore(store) || node.At(2).Is(ast.Seq) {
				return
			}
			load := store.At(3)
			if !load.Is(ast.Sub) || !isBitcastHeap(load.At(1)) {
				return
			}
			if store.At(2).At(1).IsName(builtins.HEAP32) {
				load.At(1).At(1).SetStr(builtins.HEAPF32)
				node.CopyFrom(types.Coerce(a, load, types.Detect(node.At(2), f)))
			} else {
				load.At(1).At(1).SetStr(builtins.HEAP32)
				node.CopyFrom(a.Binary(load, "|", a.Num(0)))
			}
		}
	})

	// A local whose every definition is a bitcast from one heap and whose
	// every use is a store to the other can hold the value in the other type
	// and skip the round trip.
	type bitcastVar struct {
		defineInt, defineFloat int
		useInt, useFloat       int
		namings                int
		defines, uses          []*ast.Node
	}
	vars := make(map[string]*bitcastVar)
	ast.TraversePre(s.fun, func(node *ast.Node) {
		if !node.Is(ast.Assign) || !node.At(1).IsBool() || !node.At(2).Is(ast.Name) {
			return
		}
		value := node.At(3)
		if !value.Is(ast.Seq) || !isTempDoublePtrStore(value.At(1)) {
			return
		}
		name := node.At(2).At(1).Str()
		v := vars[name]
		if v == nil {
			v = &bitcastVar{}
			vars[name] = v
		}
		if value.At(1).At(2).At(1).IsName(builtins.HEAP32) {
			v.defineInt++
		} else {
			v.defineFloat++
		}
		v.defines = append(v.defines, node)
	})
	if len(vars) == 0 {
		f.Denormalize()
		return
	}
	ast.TraversePre(s.fun, func(node *ast.Node) {
		switch {
		case node.Is(ast.Name):
			if v := vars[node.At(1).Str()]; v != nil {
				v.namings++
			}
		case node.Is(ast.Assign) && node.At(1).IsBool() && node.At(3).Is(ast.Name):
			v := vars[node.At(3).At(1).Str()]
			target := node.At(2)
			if v == nil || !target.Is(ast.Sub) || !isBitcastHeap(target.At(1)) {
				return
			}
			if target.At(1).IsName(builtins.HEAP32) {
				v.useInt++
			} else {
				v.useFloat++
			}
			v.uses = append(v.uses, node)
		}
	})

	floatType := types.Double
	if s.ctx.PreciseF32 {
		floatType = types.Float
	}
	for name, v := range vars {
		defines, uses := v.defineInt+v.defineFloat, v.useInt+v.useFloat
		if v.defineInt*v.defineFloat != 0 || v.useInt*v.useFloat != 0 ||
			defines == 0 || uses == 0 ||
			v.defineInt*v.useInt != 0 || v.defineFloat*v.useFloat != 0 ||
			!f.IsLocal(name) || v.namings != defines+uses {
			continue
		}
		correct := builtins.HEAP32
		if v.useInt > 0 {
			correct = builtins.HEAPF32
		}
		for _, def := range v.defines {
			value := def.At(3).At(1).At(3)
			if correct == builtins.HEAP32 {
				def.SetAt(3, a.Binary(value, "|", a.Num(0)))
			} else {
				def.SetAt(3, types.Coerce(a, value, floatType))
			}
		}
		for _, use := range v.uses {
			use.At(2).At(1).At(1).SetStr(correct)
		}
		switch f.Type(name) {
		case types.Int:
			f.SetType(name, floatType)
		case types.Float, types.Double:
			f.SetType(name, types.Int)
		}
	}
	f.Denormalize()
}
