package tree

import (
	"math"
	"testing"
)

func TestHelpers(t *testing.T) {
	if TreeNodes(0) != 0 || TreeNodes(1) != 1 || TreeNodes(2) != 3 || TreeNodes(4) != 15 {
		t.Error("TreeNodes is broken")
	}
	if PowerOf2(0) != 1 || PowerOf2(5) != 32 {
		t.Error("PowerOf2 is broken")
	}
	for _, c := range []struct {
		v int64
		l int
	}{{1, 0}, {2, 1}, {3, 1}, {4, 2}, {7, 2}, {8, 3}, {1023, 9}, {1024, 10}} {
		if Log2(c.v) != c.l {
			t.Errorf("Log2(%d) = %d, expected %d", c.v, Log2(c.v), c.l)
		}
	}
	if !IsPowerOf2(1) || !IsPowerOf2(64) || IsPowerOf2(0) || IsPowerOf2(3) {
		t.Error("IsPowerOf2 is broken")
	}
}

// gradientTree is the depth-2 scenario: root splits feature 0 at 0.5,
// the children split at 0.25 and 0.75. With GreaterThan comparators the
// smaller value always takes the false branch, so leaf indices increase
// with the input value.
func gradientTree() *DecisionTree {
	return &DecisionTree{
		Depth:    2,
		Features: 1,
		Nodes: []TreeNode{
			{Bias: 0.5, Op: Bypass, Comp: GreaterThan, FeatureIdx: 0},
			{Bias: 0.25, Op: Bypass, Comp: GreaterThan, FeatureIdx: 0},
			{Bias: 0.75, Op: Bypass, Comp: GreaterThan, FeatureIdx: 0},
		},
	}
}

// distinctTree reads feature i at node i, each against 0.5.
func distinctTree() *DecisionTree {
	return &DecisionTree{
		Depth:    2,
		Features: 3,
		Nodes: []TreeNode{
			{Bias: 0.5, Op: Bypass, Comp: GreaterThan, FeatureIdx: 0},
			{Bias: 0.5, Op: Bypass, Comp: GreaterThan, FeatureIdx: 1},
			{Bias: 0.5, Op: Bypass, Comp: GreaterThan, FeatureIdx: 2},
		},
	}
}

func assertResolve(t *testing.T, tr *DecisionTree, input []float32, expected int64) {
	t.Helper()
	if got := tr.Resolve(input); got != expected {
		t.Errorf("Resolve(%v) = %d, expected %d", input, got, expected)
	}
}

func TestResolveGradient(t *testing.T) {
	tr := gradientTree()
	tr.Validate()
	assertResolve(t, tr, []float32{0.125}, 3)
	assertResolve(t, tr, []float32{0.375}, 4)
	assertResolve(t, tr, []float32{0.625}, 5)
	assertResolve(t, tr, []float32{0.875}, 6)
}

func TestResolveDistinctFeatures(t *testing.T) {
	tr := distinctTree()
	tr.Validate()
	// false branch first: leaves enumerate the (root, child) outcome product
	assertResolve(t, tr, []float32{0, 0, 0}, 3)
	assertResolve(t, tr, []float32{0, 1, 0}, 4)
	assertResolve(t, tr, []float32{1, 0, 0}, 5)
	assertResolve(t, tr, []float32{1, 0, 1}, 6)
}

func TestResolveNaN(t *testing.T) {
	nan := float32(math.NaN())
	tr := gradientTree()
	// NaN compares false on every node: false branches all the way down
	assertResolve(t, tr, []float32{nan}, 3)

	// also with LessThan comparators
	for i := range tr.Nodes {
		tr.Nodes[i].Comp = LessThan
	}
	assertResolve(t, tr, []float32{nan}, 3)
}

func TestResolveOps(t *testing.T) {
	// sqrt(0.64) = 0.8 > 0.5; ln(0.25) < -0.69
	tr := &DecisionTree{
		Depth:    1,
		Features: 1,
		Nodes:    []TreeNode{{Bias: 0.5, Op: Sqrt, Comp: GreaterThan, FeatureIdx: 0}},
	}
	assertResolve(t, tr, []float32{0.64}, 2)
	assertResolve(t, tr, []float32{0.04}, 1)

	tr.Nodes[0] = TreeNode{Bias: -0.69, Op: Ln, Comp: LessThan, FeatureIdx: 0}
	assertResolve(t, tr, []float32{0.25}, 2)
	assertResolve(t, tr, []float32{0.9}, 1)
	// ln of a negative value is NaN: false branch
	assertResolve(t, tr, []float32{-1}, 1)
}

func TestLeafRange(t *testing.T) {
	tr := NewRandomTree(4, 5, 42)
	n := tr.NumNodes()
	for i := 0; i < 1000; i++ {
		input := []float32{float32(i) / 1000, float32(i%7) / 7, 0.3, 0.8, 0.05}
		leaf := tr.Resolve(input)
		if leaf < n || leaf >= n+tr.NumLeaves() {
			t.Fatalf("leaf %d outside [%d, %d)", leaf, n, n+tr.NumLeaves())
		}
	}
}

func TestRandomTreeReproducible(t *testing.T) {
	a := NewRandomTree(3, 4, 7)
	b := NewRandomTree(3, 4, 7)
	if len(a.Nodes) != 7 || len(b.Nodes) != 7 {
		t.Fatal("wrong node count")
	}
	for i := range a.Nodes {
		if a.Nodes[i] != b.Nodes[i] {
			t.Errorf("node %d differs between equally seeded trees", i)
		}
	}
}

func TestBalancedBias(t *testing.T) {
	if MakeBalancedBias(Bypass) != 0.5 {
		t.Error("bypass bias")
	}
	if MakeBalancedBias(Sqrt) != float32(math.Sqrt(0.5)) {
		t.Error("sqrt bias")
	}
	if MakeBalancedBias(Ln) != float32(math.Log(0.5)) {
		t.Error("ln bias")
	}
}

func TestValidatePanics(t *testing.T) {
	cases := []*DecisionTree{
		{Depth: 2, Features: 1, Nodes: make([]TreeNode, 4)},  // not perfect
		{Depth: 3, Features: 1, Nodes: make([]TreeNode, 3)},  // depth mismatch
		{Depth: 1, Features: 0, Nodes: make([]TreeNode, 1)},  // no features
		{Depth: 1, Features: 1, Nodes: []TreeNode{{FeatureIdx: 1}}}, // feature out of range
	}
	for i, tr := range cases {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("case %d: expected a panic", i)
				}
			}()
			tr.Validate()
		}()
	}
}
