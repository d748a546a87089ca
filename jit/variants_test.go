package jit

import (
	"testing"

	"github.com/launix-de/treec/tree"
)

func TestFixedConditionVectorTemplate(t *testing.T) {
	if fixedConditionVectorTemplate(map[uint]bool{0: true, 1: false, 2: true}) != 0b101 {
		t.Error("template packs wrong bits")
	}
	if fixedConditionVectorTemplate(map[uint]bool{}) != 0 {
		t.Error("empty template must be zero")
	}
}

func TestVariantCount(t *testing.T) {
	// a leaf path fixing k of numNodes bits has 2^(numNodes-k) variants
	pathBits := map[uint]bool{0: true, 1: true}
	variants := conditionVectorVariants(3, fixedConditionVectorTemplate(pathBits), pathBits)
	if len(variants) != 2 {
		t.Fatalf("%d variants, expected 2", len(variants))
	}
	// bit 2 is the don't-care: 0b011 and 0b111
	seen := map[uint64]bool{}
	for _, v := range variants {
		seen[v] = true
	}
	if !seen[0b011] || !seen[0b111] {
		t.Errorf("wrong variants: %v", variants)
	}
}

func TestVariantExhaustiveness(t *testing.T) {
	// across all leaves of a k-level subtree the variant sets partition
	// the full condition vector range {0 .. 2^numNodes - 1}
	for _, levels := range []int{1, 2, 3} {
		numNodes := tree.TreeNodes(levels)
		bitOffsets := subtreeBitOffsets(0, levels)
		paths := buildLeafPaths(0, levels, bitOffsets)

		owner := make(map[uint64]int64)
		total := 0
		for _, p := range paths {
			template := fixedConditionVectorTemplate(p.Bits)
			for _, v := range conditionVectorVariants(numNodes, template, p.Bits) {
				if prev, taken := owner[v]; taken {
					t.Fatalf("levels %d: vector %b routes to both %d and %d", levels, v, prev, p.NodeIdx)
				}
				owner[v] = p.NodeIdx
				total++
			}
		}
		want := int(int64(1) << uint(numNodes))
		if total != want || len(owner) != want {
			t.Fatalf("levels %d: %d variants cover %d vectors, expected %d", levels, total, len(owner), want)
		}
	}
}

func TestVariantRouting(t *testing.T) {
	// every variant of a leaf, read back through the path bits, routes
	// to that leaf
	levels := 2
	numNodes := tree.TreeNodes(levels)
	bitOffsets := subtreeBitOffsets(0, levels)
	for _, p := range buildLeafPaths(0, levels, bitOffsets) {
		template := fixedConditionVectorTemplate(p.Bits)
		for _, v := range conditionVectorVariants(numNodes, template, p.Bits) {
			for bitOffset, expected := range p.Bits {
				if (v>>bitOffset)&1 == 1 != expected {
					t.Fatalf("variant %b of leaf %d breaks path bit %d", v, p.NodeIdx, bitOffset)
				}
			}
		}
	}
}
