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
import "math/rand"

// MakeBalancedBias returns the bias that splits the expected input range
// [0, 1) into two halves of equal probability under the given operation.
func MakeBalancedBias(op OperationType) float32 {
	switch op {
	case Sqrt:
		return float32(math.Sqrt(0.5))
	case Ln:
		return float32(math.Log(0.5))
	}
	return 0.5
}

// NewRandomNode draws a random predicate over `features` input features.
func NewRandomNode(rnd *rand.Rand, features int) TreeNode {
	op := OperationType(rnd.Intn(3))
	return TreeNode{
		Bias:       MakeBalancedBias(op),
		Op:         op,
		Comp:       ComparatorType(rnd.Intn(2)),
		FeatureIdx: int64(rnd.Intn(features)),
	}
}

// NewRandomTree builds a perfect decision tree of the given depth with
// random predicates. The same seed reproduces the same tree.
func NewRandomTree(depth int, features int, seed int64) *DecisionTree {
	rnd := rand.New(rand.NewSource(seed))
	t := &DecisionTree{
		Depth:    depth,
		Features: features,
		Nodes:    make([]TreeNode, TreeNodes(depth)),
	}
	for i := range t.Nodes {
		t.Nodes[i] = NewRandomNode(rnd, features)
	}
	t.Validate()
	return t
}
