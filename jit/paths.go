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

// LeafPath describes one leaf of a k-level subtree: the leaf's global
// node index plus, for every subtree-internal ancestor on the path, the
// condition-vector bit value that routes to this leaf.
type LeafPath struct {
	NodeIdx int64
	Bits    map[uint]bool
}

// buildLeafPaths enumerates the 2^remaining leaves below nodeIdx in
// true-first order. Each recursion level returns its leaf list and the
// caller annotates it with the bit of the branching node, so no shared
// accumulator is mutated during recursive growth.
func buildLeafPaths(nodeIdx int64, remaining int, bitOffsets map[int64]uint) []LeafPath {
	if remaining == 0 {
		return []LeafPath{{NodeIdx: nodeIdx, Bits: make(map[uint]bool)}}
	}
	thisBitOffset := bitOffsets[nodeIdx]

	result := buildLeafPaths(2*nodeIdx+2, remaining-1, bitOffsets)
	for i := range result {
		result[i].Bits[thisBitOffset] = true
	}
	falsePaths := buildLeafPaths(2*nodeIdx+1, remaining-1, bitOffsets)
	for i := range falsePaths {
		falsePaths[i].Bits[thisBitOffset] = false
	}
	return append(result, falsePaths...)
}
