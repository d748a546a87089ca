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
package tree

import "math"

// EvalNode computes the boolean outcome of a single node for the input.
// NaN comparison results take the false branch.
func (n *TreeNode) EvalNode(input []float32) bool {
	v := input[n.FeatureIdx]
	switch n.Op {
	case Sqrt:
		v = float32(math.Sqrt(float64(v)))
	case Ln:
		v = float32(math.Log(float64(v)))
	}
	if n.Comp == LessThan {
		return v < n.Bias
	}
	return v > n.Bias
}

// Resolve walks the tree interpretively and returns the leaf index
// reached, in [NumNodes, NumNodes+2^Depth). This is the reference
// against which the compiled evaluators are checked.
func (t *DecisionTree) Resolve(input []float32) int64 {
	idx := int64(0)
	first := t.NumNodes()
	for idx < first {
		if t.Nodes[idx].EvalNode(input) {
			idx = 2*idx + 2
		} else {
			idx = 2*idx + 1
		}
	}
	return idx
}
