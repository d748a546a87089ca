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

import "github.com/launix-de/treec/tree"

// NodeIdxForSubtreeBitOffset maps a bit offset inside a subtree to the
// global node index. Bit offsets number the subtree's internal nodes
// 0..2^levels-2 in breadth-first order. On global level L(root)+l the
// 2^l subtree nodes occupy a contiguous block starting at offset
// rootOffset * 2^l within the level.
func NodeIdxForSubtreeBitOffset(subtreeRootIdx int64, bitOffset uint) int64 {
	subtreeRootLevel := tree.Log2(subtreeRootIdx + 1)
	nodeLevelInSubtree := tree.Log2(int64(bitOffset) + 1)

	firstIdxOnRootLevel := tree.TreeNodes(subtreeRootLevel)
	firstIdxOnNodeLevel := tree.TreeNodes(subtreeRootLevel + nodeLevelInSubtree)

	subtreeRootIdxOffset := subtreeRootIdx - firstIdxOnRootLevel
	numSubtreeNodesOnLevel := tree.PowerOf2(nodeLevelInSubtree)
	firstSubtreeIdxOnNodeLevel := firstIdxOnNodeLevel + subtreeRootIdxOffset*numSubtreeNodesOnLevel

	nodeOffsetInSubtreeLevel := int64(bitOffset) - (numSubtreeNodesOnLevel - 1)
	return firstSubtreeIdxOnNodeLevel + nodeOffsetInSubtreeLevel
}
