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

// fixedConditionVectorTemplate packs the bits a leaf path forces into an
// integer; all other bits stay 0.
func fixedConditionVectorTemplate(pathBits map[uint]bool) uint64 {
	var fixedBitsVector uint64
	for bitOffset, bit := range pathBits {
		if bit {
			fixedBitsVector |= uint64(1) << bitOffset
		}
	}
	return fixedBitsVector
}

// conditionVectorVariants expands a leaf's fixed template into every
// condition-vector value that routes to the leaf: bits not on the path
// are don't-cares, so each combination of them yields one variant.
func conditionVectorVariants(numNodes int64, fixedBitsTemplate uint64, pathBits map[uint]bool) []uint64 {
	variableBitOffsets := make([]uint, 0, numNodes)
	for i := uint(0); i < uint(numNodes); i++ {
		if _, onPath := pathBits[i]; !onPath {
			variableBitOffsets = append(variableBitOffsets, i)
		}
	}
	if len(variableBitOffsets) == 0 {
		return []uint64{fixedBitsTemplate}
	}
	result := make([]uint64, 0, int64(1)<<len(variableBitOffsets))
	return appendVariants(result, fixedBitsTemplate, variableBitOffsets, 0)
}

func appendVariants(result []uint64, conditionVector uint64, variableBitOffsets []uint, bitToVaryIdx int) []uint64 {
	if bitToVaryIdx >= len(variableBitOffsets) {
		return append(result, conditionVector)
	}
	vectorTrueBit := uint64(1) << variableBitOffsets[bitToVaryIdx]
	// the bit must still be in its default zero state
	if conditionVector&vectorTrueBit != 0 {
		panic("jit: variant bit already set")
	}
	result = appendVariants(result, conditionVector|vectorTrueBit, variableBitOffsets, bitToVaryIdx+1)
	result = appendVariants(result, conditionVector, variableBitOffsets, bitToVaryIdx+1)
	return result
}
