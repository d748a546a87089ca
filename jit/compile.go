/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package jit

import "fmt"
import "math"
import "github.com/launix-de/treec/tree"

/*
evaluator code shape (x86-64, Go internal ABI):

	MOV RDI, RAX            ; data pointer argument
	SUB RSP, 16             ; x87 scratch slot
	                        ; per switch:
	XOR ECX, ECX            ;   condition vector
	  MOVSS XMM0, [RDI+4f]  ;   per node: load feature
	  (SQRTSS/FYL2X)        ;   apply operation
	  MOV EDX, bias; MOVD XMM1, EDX
	  UCOMISS + SETA DL     ;   ordered compare (NaN → 0)
	  MOVZX; SHL; OR RCX    ;   accumulate bit
	LEA R11, [RIP-module]   ;   module base
	MOV EDX, [R11+RCX*4+table]
	ADD RDX, R11
	JMP RDX                 ;   dense jump table, one entry per vector value
	  ...case blocks: nested switch or MOV RAX, leafIdx; JMP join
	  ...table (data, one int32 module offset per vector value)
	join:
	ADD RSP, 16
	RET

register use stays clear of R14 (goroutine) and X15 (zero register).
*/

// moduleEmitter generates evaluator functions into a Module.
type moduleEmitter struct {
	m    *Module
	tree *tree.DecisionTree
}

// emitSingleNodeEvaluation leaves the node's boolean outcome (0/1) in RDX.
func (e *moduleEmitter) emitSingleNodeEvaluation(node *tree.TreeNode) {
	w := &e.m.W
	w.emitMovssLoad(RegX0, RegRDI, int32(4*node.FeatureIdx))
	switch node.Op {
	case tree.Sqrt:
		w.emitSqrtss(RegX0, RegX0)
	case tree.Ln:
		w.emitLnX87(RegX0)
	}
	w.emitMovReg32Imm32(RegRDX, math.Float32bits(node.Bias))
	w.emitMovdXmmGpr32(RegX1, RegRDX)
	if node.Comp == tree.LessThan {
		// w < bias  ⇔  bias above w; unordered sets CF and ZF, so SETA gives 0
		w.emitUcomiss(RegX1, RegX0)
	} else {
		w.emitUcomiss(RegX0, RegX1)
	}
	w.EmitSetcc(RegRDX, CcA)
}

// emitComputeConditionVector evaluates all internal nodes of the subtree
// and accumulates their outcomes into RCX; bit i is the outcome of the
// subtree's i-th node in breadth-first order. Fills bitOffsets with the
// node index → bit offset assignment for the path-bitmap builder.
func (e *moduleEmitter) emitComputeConditionVector(rootNodeIdx int64, numNodes int64, bitOffsets map[int64]uint) {
	w := &e.m.W
	w.emitXorReg(RegRCX)
	for bitOffset := uint(0); bitOffset < uint(numNodes); bitOffset++ {
		if bitOffset >= 64 {
			panic("jit: condition vector bit offset out of machine word")
		}
		nodeIdx := NodeIdxForSubtreeBitOffset(rootNodeIdx, bitOffset)
		bitOffsets[nodeIdx] = bitOffset

		e.emitSingleNodeEvaluation(&e.tree.Nodes[nodeIdx])
		if bitOffset > 0 {
			w.EmitShlRegImm8(RegRDX, uint8(bitOffset))
		}
		w.emitOrRegReg(RegRCX, RegRDX)
	}
}

// emitSubtreeSwitches emits one condition-vector switch for the subtree
// rooted at switchRootNodeIdx and recurses into nested switches while
// nestedSwitches > 0. Control reaches the join label, placed at the end
// of the emitted code, with the continuation node index in RAX.
func (e *moduleEmitter) emitSubtreeSwitches(switchRootNodeIdx int64, switchLevels int, nestedSwitches int) {
	w := &e.m.W
	numNodes := tree.TreeNodes(switchLevels)
	numContinuations := tree.PowerOf2(switchLevels)

	bitOffsets := make(map[int64]uint, numNodes)
	e.emitComputeConditionVector(switchRootNodeIdx, numNodes, bitOffsets)

	w.emitLeaModuleBase(RegR11)
	tableLabel := w.ReserveLabel()
	w.emitLoadJumpTableEntry(RegRDX, RegR11, RegRCX, tableLabel)
	w.emitAddRegReg(RegRDX, RegR11)
	w.emitJmpReg(RegRDX)
	joinLabel := w.ReserveLabel()

	leafPaths := buildLeafPaths(switchRootNodeIdx, switchLevels, bitOffsets)
	if int64(len(leafPaths)) != numContinuations {
		panic(fmt.Sprintf("jit: %d leaf paths for %d continuations", len(leafPaths), numContinuations))
	}

	// default: the join block. Every representable vector value is
	// covered by exactly one variant set, so this stays unreachable.
	blocks := make([]int, int64(1)<<uint(numNodes))
	for i := range blocks {
		blocks[i] = joinLabel
	}

	for _, leaf := range leafPaths {
		blockLabel := w.DefineLabel()
		if nestedSwitches > 0 {
			e.emitSubtreeSwitches(leaf.NodeIdx, switchLevels, nestedSwitches-1)
		} else {
			w.EmitMovRegImm64(RegRAX, uint64(leaf.NodeIdx))
		}
		w.EmitJmp(joinLabel)

		template := fixedConditionVectorTemplate(leaf.Bits)
		for _, variant := range conditionVectorVariants(numNodes, template, leaf.Bits) {
			blocks[variant] = blockLabel
		}
	}

	w.MarkLabel(tableLabel)
	tableStart := w.Pos()
	for _, blockLabel := range blocks {
		w.AddFixup(blockLabel, 4, false)
		w.emitU32(0) // placeholder
	}
	e.m.markData(tableStart, w.Pos())
	w.MarkLabel(joinLabel)
}

// emitSubtreeEvaluation evaluates subtreeLevels levels below rootNodeIdx
// through subtreeLevels/switchLevels nested switches.
func (e *moduleEmitter) emitSubtreeEvaluation(rootNodeIdx int64, subtreeLevels, switchLevels int) {
	if subtreeLevels%switchLevels != 0 {
		panic("jit: function depth must be a multiple of switch depth")
	}
	e.emitSubtreeSwitches(rootNodeIdx, switchLevels, subtreeLevels/switchLevels-1)
}

// EmitEvaluatorFunction emits the evaluator for the subtree rooted at
// nodeIdx and registers its symbol. The function advances a traversal by
// functionDepth levels: it returns the node index reached, a leaf index
// once the tree is exhausted.
func (e *moduleEmitter) EmitEvaluatorFunction(nodeIdx int64, functionDepth, switchDepth int) {
	w := &e.m.W
	e.m.AddSymbol(EvaluatorName(nodeIdx), w.Pos())

	w.emitMovRegReg(RegRDI, RegRAX)
	w.emitSubRspImm8(16)
	e.emitSubtreeEvaluation(nodeIdx, functionDepth, switchDepth)
	w.emitAddRspImm8(16)
	w.emitRet()
}

// EvaluatorName returns the external symbol name of a subtree evaluator.
func EvaluatorName(nodeIdx int64) string {
	return fmt.Sprintf("nodeEvaluator_%d", nodeIdx)
}
