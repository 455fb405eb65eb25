package eliminator

import (
	"slices"

	"github.com/HugoDaniel/asmopt/internal/asm"
	"github.com/HugoDaniel/asmopt/internal/ast"
	"github.com/HugoDaniel/asmopt/internal/diagnostic"
)

// loopTempSuffix names the temporary that keeps an overlapping looper's old
// value alive.
const loopTempSuffix = "$looptemp"

// fuseLoopHelpers removes self-assignments left over by elimination and
// merges loop helpers into loop variables. A loop ending in
//
//	if (cond) { ...; break; } else { i = i$next; j = j$next; }
//
// assigns its loopers from helpers once per iteration. When a helper is
// defined once and nothing reads the looper in a way the merge would miss,
// every reference to the helper is renamed to the looper and the copy is
// dropped.
func (e *functionEliminator) fuseLoopHelpers() {
	l := &loopFuser{
		e:            e,
		seenUses:     make(map[string]int),
		replacements: make(map[string]string),
	}
	ast.TraversePrePost(e.fun, l.removeSelfAssign, l.post)
}

type loopFuser struct {
	e            *functionEliminator
	seenUses     map[string]int
	replacements map[string]string
}

func isPlainAssign(node *ast.Node) bool {
	return node.Is(ast.Assign) && node.At(1).IsBool() && node.At(1).Bool()
}

// removeSelfAssign blanks x = x, which elimination can produce.
func (l *loopFuser) removeSelfAssign(node *ast.Node) {
	if isPlainAssign(node) && node.At(2).Is(ast.Name) && node.At(3).Is(ast.Name) &&
		node.At(2).At(1).Str() == node.At(3).At(1).Str() {
		l.e.ctx.Arena.MakeEmpty(node)
	}
}

func (l *loopFuser) post(node *ast.Node) {
	switch node.Tag() {
	case ast.Name:
		name := node.At(1).Str()
		if to, ok := l.replacements[name]; ok {
			node.At(1).SetStr(to)
			return
		}
		// Counted in post order so uses inside a loop are seen before the
		// loop itself.
		l.seenUses[name]++
	case ast.While:
		l.fuse(node)
	}
}

// removePair drops the looper/helper pair in which name appears.
func removePair(loopers, helpers []string, name string) ([]string, []string) {
	i := slices.Index(loopers, name)
	if i < 0 {
		i = slices.Index(helpers, name)
	}
	if i < 0 {
		return loopers, helpers
	}
	return slices.Delete(loopers, i, i+1), slices.Delete(helpers, i, i+1)
}

func (l *loopFuser) fuse(loop *ast.Node) {
	e := l.e
	body := loop.At(2)
	if !body.Is(ast.Block) {
		return
	}
	stats := body.At(1)
	last := stats.Last()
	if !last.Is(ast.If) || !last.At(2).Is(ast.Block) || !last.Maybe(3).Is(ast.Block) {
		return
	}
	ifTrue, ifFalse := last.At(2), last.At(3)
	ast.ClearEmptyNodes(ifTrue.At(1))
	ast.ClearEmptyNodes(ifFalse.At(1))
	flip := false
	if ifFalse.At(1).Last().Is(ast.Break) {
		// Canonicalize the break into the true arm.
		ifTrue, ifFalse = ifFalse, ifTrue
		flip = true
	}
	if !ifTrue.At(1).Last().Is(ast.Break) {
		return
	}

	assigns := ifFalse.At(1)
	ast.ClearEmptyNodes(assigns)
	var loopers, helpers []string
	for _, stat := range assigns.Items() {
		if !stat.Is(ast.Stat) || !isPlainAssign(stat.At(1)) {
			continue
		}
		assign := stat.At(1)
		if !assign.At(2).Is(ast.Name) || !assign.At(3).Is(ast.Name) {
			continue
		}
		looper := assign.At(2).At(1).Str()
		helper := assign.At(3).At(1).Str()
		_, helperReplaced := l.replacements[helper]
		_, looperReplaced := l.replacements[looper]
		if e.definitions[helper] == 1 && l.seenUses[looper] == e.namings[looper] &&
			!helperReplaced && !looperReplaced {
			loopers = append(loopers, looper)
			helpers = append(helpers, helper)
		}
	}

	// Loop variables read elsewhere in the else arm cannot be merged.
	for _, stat := range assigns.Items() {
		if !stat.Is(ast.Stat) || !stat.At(1).Is(ast.Assign) {
			continue
		}
		assign := stat.At(1)
		if isPlainAssign(assign) && assign.At(2).Is(ast.Name) && assign.At(3).Is(ast.Name) &&
			slices.Contains(loopers, assign.At(2).At(1).Str()) {
			continue
		}
		ast.TraversePre(assign, func(node *ast.Node) {
			if node.Is(ast.Name) {
				loopers, helpers = removePair(loopers, helpers, node.At(1).Str())
			}
		})
	}
	// Nor can those read in the breaking arm.
	ast.TraversePre(ifTrue, func(node *ast.Node) {
		if node.Is(ast.Name) {
			loopers, helpers = removePair(loopers, helpers, node.At(1).Str())
		}
	})
	if len(loopers) == 0 {
		return
	}

	for i, looper := range loopers {
		if !l.separate(stats, last, looper, helpers[i], helpers) {
			return
		}
	}

	for i := range helpers {
		for j := range helpers {
			if i != j && helpers[i] == helpers[j] {
				// A shared helper is not worth the bookkeeping.
				return
			}
		}
	}

	for i, looper := range loopers {
		helper := helpers[i]
		e.varsToRemove[helper] = removed
		ast.TraversePre(loop, func(node *ast.Node) {
			if node.IsName(helper) {
				node.At(1).SetStr(looper)
			}
		})
		l.replacements[helper] = looper
		// The counts are stale for the looper now; never fuse it again.
		l.replacements[looper] = looper
	}

	if flip {
		last.SetAt(1, asm.FlipCondition(e.ctx.Arena, last.At(1)))
		then, otherwise := last.At(2), last.At(3)
		last.SetAt(2, otherwise)
		last.SetAt(3, then)
	}
	if len(loopers) == assigns.Len() {
		last.Truncate(3)
		return
	}
	elseStats := last.At(3).At(1)
	for i, stat := range elseStats.Items() {
		node := ast.DeStat(stat)
		if node.Is(ast.Assign) && node.At(2).Is(ast.Name) && slices.Contains(loopers, node.At(2).At(1).Str()) {
			elseStats.SetAt(i, e.ctx.Arena.Empty())
		}
	}
}

// separate makes sure the looper is no longer read once its helper has been
// assigned, either by moving the helper's definition past the looper's last
// read or by saving the looper in a temporary. It reports false when the
// helper's definition cannot be found.
func (l *loopFuser) separate(stats, last *ast.Node, looper, helper string, helpers []string) bool {
	e := l.e
	a := e.ctx.Arena

	found := -1
	for i := stats.Len() - 2; i >= 0; i-- {
		curr := stats.At(i)
		if curr.Is(ast.Stat) && isPlainAssign(curr.At(1)) && curr.At(1).At(2).IsName(helper) {
			found = i
			break
		}
	}
	if found < 0 {
		return false
	}

	// On the last line only the loop condition matters.
	line := func(i int) *ast.Node {
		if i < stats.Len()-1 {
			return stats.At(i)
		}
		return last.At(1)
	}

	firstLooperUsage, lastLooperUsage, firstHelperUsage := -1, -1, -1
	for i := found + 1; i < stats.Len(); i++ {
		ast.TraversePre(line(i), func(node *ast.Node) {
			if !node.Is(ast.Name) {
				return
			}
			name := node.At(1).Str()
			if name == looper {
				if firstLooperUsage < 0 {
					firstLooperUsage = i
				}
				lastLooperUsage = i
			} else if slices.Contains(helpers, name) && firstHelperUsage < 0 {
				firstHelperUsage = i
			}
		})
	}
	if firstLooperUsage < 0 {
		return true
	}

	if (firstHelperUsage < 0 || firstHelperUsage > lastLooperUsage) &&
		lastLooperUsage+1 < stats.Len() &&
		e.f.TriviallySafeToMove(stats.At(found)) &&
		l.seenUses[helper] == e.namings[helper] {
		// No overlap: define the helper after the looper's last read.
		stats.Insert(lastLooperUsage+1, stats.At(found))
		stats.Splice(found, 1)
		return true
	}

	temp := looper + loopTempSuffix
	diagnostic.Assert(!e.f.IsLocal(temp), e.fun, nil, "%s already exists", temp)
	var toTemp func(*ast.Node) bool
	toTemp = func(node *ast.Node) bool {
		switch {
		case node.Is(ast.Name):
			if node.At(1).Str() == looper {
				node.At(1).SetStr(temp)
			}
		case node.Is(ast.Assign) && node.At(2).Is(ast.Name):
			// Assignments to the looper itself must stay.
			ast.TraversePrePostConditional(node.At(3), toTemp, func(*ast.Node) {})
			return false
		}
		return true
	}
	for i := firstLooperUsage; i <= lastLooperUsage; i++ {
		ast.TraversePrePostConditional(line(i), toTemp, func(*ast.Node) {})
	}
	e.f.AddVar(temp, e.f.Type(looper))
	stats.Insert(found, a.Stat(a.Assign(a.Name(temp), a.Name(looper))))
	e.ctx.Diag.AddNote(diagnostic.CodeLoopFusion, e.fun, "introduced %s to keep %s alive", temp, looper)
	return true
}
