package jit

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/launix-de/treec/tree"
)

// useTempCache points the object cache at a fresh directory.
func useTempCache(t *testing.T, disable bool) {
	t.Helper()
	old := Settings
	Settings.CacheDir = t.TempDir()
	Settings.DisableCache = disable
	t.Cleanup(func() { Settings = old })
}

// gradient depth-2 tree: leaf index increases with the input value
func gradientTree() *tree.DecisionTree {
	return &tree.DecisionTree{
		Depth:    2,
		Features: 1,
		Nodes: []tree.TreeNode{
			{Bias: 0.5, Op: tree.Bypass, Comp: tree.GreaterThan, FeatureIdx: 0},
			{Bias: 0.25, Op: tree.Bypass, Comp: tree.GreaterThan, FeatureIdx: 0},
			{Bias: 0.75, Op: tree.Bypass, Comp: tree.GreaterThan, FeatureIdx: 0},
		},
	}
}

func distinctTree() *tree.DecisionTree {
	return &tree.DecisionTree{
		Depth:    2,
		Features: 3,
		Nodes: []tree.TreeNode{
			{Bias: 0.5, Op: tree.Bypass, Comp: tree.GreaterThan, FeatureIdx: 0},
			{Bias: 0.5, Op: tree.Bypass, Comp: tree.GreaterThan, FeatureIdx: 1},
			{Bias: 0.5, Op: tree.Bypass, Comp: tree.GreaterThan, FeatureIdx: 2},
		},
	}
}

func assertRun(t *testing.T, r *Resolver, input []float32, expected int64) {
	t.Helper()
	if got := r.Run(input); got != expected {
		t.Errorf("Run(%v) = %d, expected %d", input, got, expected)
	}
}

func TestRunGradient(t *testing.T) {
	useTempCache(t, true)
	for _, cfg := range [][2]int{{1, 1}, {2, 1}, {2, 2}} {
		r := NewResolver(gradientTree(), cfg[0], cfg[1])
		assertRun(t, r, []float32{0.125}, 3)
		assertRun(t, r, []float32{0.375}, 4)
		assertRun(t, r, []float32{0.625}, 5)
		assertRun(t, r, []float32{0.875}, 6)
		r.Close()
	}
}

func TestRunDistinctFeatures(t *testing.T) {
	useTempCache(t, true)
	r := NewResolver(distinctTree(), 2, 2)
	defer r.Close()
	assertRun(t, r, []float32{0, 0, 0}, 3)
	assertRun(t, r, []float32{0, 1, 0}, 4)
	assertRun(t, r, []float32{1, 0, 0}, 5)
	assertRun(t, r, []float32{1, 0, 1}, 6)
}

func TestRunNaN(t *testing.T) {
	useTempCache(t, true)
	tr := gradientTree()
	r := NewResolver(tr, 2, 2)
	defer r.Close()
	nan := float32(math.NaN())
	// ordered comparison: NaN takes the false branch on every node
	assertRun(t, r, []float32{nan}, tr.Resolve([]float32{nan}))
	assertRun(t, r, []float32{nan}, 3)
}

func TestRunMatchesInterpreter(t *testing.T) {
	useTempCache(t, true)
	tr := tree.NewRandomTree(4, 5, 12345)
	for _, cfg := range [][2]int{{1, 1}, {2, 1}, {2, 2}, {4, 1}, {4, 2}, {4, 4}} {
		r := NewResolver(tr, cfg[0], cfg[1])
		rnd := rand.New(rand.NewSource(1))
		for i := 0; i < 10000; i++ {
			input := make([]float32, 5)
			for j := range input {
				input[j] = rnd.Float32()
			}
			want := tr.Resolve(input)
			got := r.Run(input)
			if got != want {
				t.Fatalf("fd=%d sd=%d input %v: compiled %d, interpreter %d", cfg[0], cfg[1], input, got, want)
			}
		}
		r.Close()
	}
}

func TestRunLeafRangeAndDeterminism(t *testing.T) {
	useTempCache(t, true)
	tr := tree.NewRandomTree(4, 5, 777)
	r := NewResolver(tr, 2, 2)
	defer r.Close()
	n := tr.NumNodes()
	rnd := rand.New(rand.NewSource(2))
	for i := 0; i < 1000; i++ {
		input := make([]float32, 5)
		for j := range input {
			input[j] = rnd.Float32()
		}
		leaf := r.Run(input)
		if leaf < n || leaf >= n+tr.NumLeaves() {
			t.Fatalf("leaf %d outside [%d, %d)", leaf, n, n+tr.NumLeaves())
		}
		for k := 0; k < 3; k++ {
			if again := r.Run(input); again != leaf {
				t.Fatalf("input %v: %d then %d", input, leaf, again)
			}
		}
	}
}

func TestRunConcurrent(t *testing.T) {
	useTempCache(t, true)
	tr := tree.NewRandomTree(4, 5, 31)
	r := NewResolver(tr, 2, 2)
	defer r.Close()

	inputs := make([][]float32, 512)
	expected := make([]int64, len(inputs))
	rnd := rand.New(rand.NewSource(3))
	for i := range inputs {
		input := make([]float32, 5)
		for j := range input {
			input[j] = rnd.Float32()
		}
		inputs[i] = input
		expected[i] = tr.Resolve(input)
	}

	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, input := range inputs {
				if got := r.Run(input); got != expected[i] {
					t.Errorf("input %d: %d, expected %d", i, got, expected[i])
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestEvaluatorCount(t *testing.T) {
	if getNumCompiledEvaluators(4, 2) != 1+4 {
		t.Error("depth 4, fd 2")
	}
	if getNumCompiledEvaluators(4, 1) != 1+2+4+8 {
		t.Error("depth 4, fd 1")
	}
	if getNumCompiledEvaluators(4, 4) != 1 {
		t.Error("depth 4, fd 4")
	}
	useTempCache(t, true)
	tr := tree.NewRandomTree(4, 5, 8)
	r := NewResolver(tr, 2, 2)
	defer r.Close()
	if int64(r.NumEvaluators()) != getNumCompiledEvaluators(4, 2) {
		t.Errorf("%d evaluators, expected %d", r.NumEvaluators(), getNumCompiledEvaluators(4, 2))
	}
}

func TestCacheRoundTrip(t *testing.T) {
	useTempCache(t, false)
	tr := tree.NewRandomTree(4, 5, 555)

	first := NewResolver(tr, 2, 2)
	if !first.Native() {
		first.Close()
		t.Skip("no native backend on this host")
	}
	if first.Composed() == 0 {
		t.Fatal("first instantiation must generate code")
	}
	input := []float32{0.1, 0.9, 0.4, 0.6, 0.2}
	want := first.Run(input)
	first.Close()

	second := NewResolver(tr, 2, 2)
	defer second.Close()
	if second.Composed() != 0 {
		t.Error("second instantiation must not generate code")
	}
	if got := second.Run(input); got != want {
		t.Errorf("cached run %d, fresh run %d", got, want)
	}
	if got := second.Run(input); got != tr.Resolve(input) {
		t.Error("cached run diverges from the interpreter")
	}
}

func TestCacheStaleTree(t *testing.T) {
	useTempCache(t, false)
	a := tree.NewRandomTree(4, 5, 1)
	first := NewResolver(a, 2, 2)
	if !first.Native() {
		first.Close()
		t.Skip("no native backend on this host")
	}
	first.Close()

	// same shape, different predicates: the tree file mismatch must
	// force a recompilation
	b := tree.NewRandomTree(4, 5, 2)
	second := NewResolver(b, 2, 2)
	defer second.Close()
	if second.Composed() == 0 {
		t.Error("a different tree must not hit the cache")
	}
	input := []float32{0.3, 0.3, 0.3, 0.3, 0.3}
	if second.Run(input) != b.Resolve(input) {
		t.Error("recompiled resolver diverges from the interpreter")
	}
}

func TestClosureBackendMatchesInterpreter(t *testing.T) {
	// the closure backend is always available; pin the whole pipeline
	// on it regardless of the host architecture
	tr := tree.NewRandomTree(4, 5, 99)
	for _, cfg := range [][2]int{{1, 1}, {2, 2}, {4, 2}} {
		rnd := rand.New(rand.NewSource(4))
		evals := make(map[int64]Evaluator)
		for level := 0; level < tr.Depth; level += cfg[0] {
			first := tree.TreeNodes(level)
			next := tree.TreeNodes(level + 1)
			for nodeIdx := first; nodeIdx < next; nodeIdx++ {
				evals[nodeIdx] = makeClosureEvaluator(tr, nodeIdx, cfg[0])
			}
		}
		for i := 0; i < 1000; i++ {
			input := make([]float32, 5)
			for j := range input {
				input[j] = rnd.Float32()
			}
			idx := int64(0)
			for idx < tr.NumNodes() {
				idx = evals[idx](&input[0])
			}
			if want := tr.Resolve(input); idx != want {
				t.Fatalf("fd=%d: closure run %d, interpreter %d", cfg[0], idx, want)
			}
		}
	}
}

func TestNewResolverValidation(t *testing.T) {
	useTempCache(t, true)
	cases := []struct {
		fd, sd int
	}{
		{3, 1}, // fd does not divide depth 4
		{2, 0}, // sd not positive
		{4, 3}, // sd does not divide fd
		{0, 1}, // fd not positive
	}
	tr := tree.NewRandomTree(4, 5, 5)
	for _, c := range cases {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("fd=%d sd=%d: expected a panic", c.fd, c.sd)
				}
			}()
			NewResolver(tr, c.fd, c.sd)
		}()
	}
}
