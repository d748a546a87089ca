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

import "math"
import "unsafe"
import "github.com/launix-de/treec/tree"

// makeClosureEvaluator builds a Go closure with the same per-subtree
// contract as a compiled evaluator: advance the traversal by `levels`
// levels below rootNodeIdx and return the node index reached. Used on
// hosts without a native backend; the closure reads through the raw
// data pointer just like the machine code does, without bounds checks.
func makeClosureEvaluator(t *tree.DecisionTree, rootNodeIdx int64, levels int) Evaluator {
	nodes := t.Nodes
	return func(data *float32) int64 {
		idx := rootNodeIdx
		for l := 0; l < levels; l++ {
			n := &nodes[idx]
			v := *(*float32)(unsafe.Add(unsafe.Pointer(data), uintptr(n.FeatureIdx)*4))
			switch n.Op {
			case tree.Sqrt:
				v = float32(math.Sqrt(float64(v)))
			case tree.Ln:
				v = float32(math.Log(float64(v)))
			}
			var cond bool
			if n.Comp == tree.LessThan {
				cond = v < n.Bias
			} else {
				cond = v > n.Bias
			}
			if cond {
				idx = 2*idx + 2
			} else {
				idx = 2*idx + 1
			}
		}
		return idx
	}
}
