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
import "runtime"
import "time"
import "github.com/docker/go-units"
import "github.com/launix-de/NonLockingReadMap"
import "github.com/launix-de/treec/tree"

// Evaluator advances a traversal by functionDepth levels below its root
// node and returns the node index reached: an internal index if another
// evaluator continues, a leaf index once the tree is exhausted. Compiled
// evaluators read at most max(featureIdx)+1 floats from data and perform
// no allocation, locking or I/O.
type Evaluator func(data *float32) int64

// maxSwitchDepth bounds the dense jump table lowering: a switch over k
// levels covers 2^(2^k-1) vector values.
const maxSwitchDepth = 4

type evaluatorEntry struct {
	nodeIdx int64
	fn      Evaluator
}

func (e evaluatorEntry) GetKey() int64 { return e.nodeIdx }
func (e evaluatorEntry) ComputeSize() uint {
	return 32
}

// Resolver owns the compiled evaluators of one decision tree. Built
// single-threaded; once constructed, Run may be called from any number
// of goroutines concurrently (the evaluator map is written once and
// read lock-free). Function pointers are borrows from the resolver and
// dangle after Close.
type Resolver struct {
	tree          *tree.DecisionTree
	functionDepth int
	switchDepth   int
	evaluators    NonLockingReadMap.NonLockingReadMap[evaluatorEntry, int64]
	code          *execBuf
	native        bool
	composed      int64
}

// NewResolver compiles (or loads from the object cache) the evaluators
// for the given partition parameters. The tree depth must be a multiple
// of functionDepth and functionDepth a multiple of switchDepth;
// violations are programming errors and panic.
func NewResolver(t *tree.DecisionTree, functionDepth, switchDepth int) *Resolver {
	t.Validate()
	if functionDepth < 1 || t.Depth%functionDepth != 0 {
		panic(fmt.Sprintf("jit: function depth %d does not divide tree depth %d", functionDepth, t.Depth))
	}
	if switchDepth < 1 || functionDepth%switchDepth != 0 {
		panic(fmt.Sprintf("jit: switch depth %d does not divide function depth %d", switchDepth, functionDepth))
	}
	if switchDepth > maxSwitchDepth {
		panic(fmt.Sprintf("jit: switch depth %d exceeds maximum %d", switchDepth, maxSwitchDepth))
	}

	r := &Resolver{
		tree:          t,
		functionDepth: functionDepth,
		switchDepth:   switchDepth,
		evaluators:    NonLockingReadMap.New[evaluatorEntry, int64](),
		native:        nativeSupported(),
	}

	cachedTreeFile := cachePath(TreeFileName(t.Depth, t.Features))
	cachedObjFile := cachePath(ObjFileName(t.Depth, t.Features, functionDepth, switchDepth))

	if r.native && !Settings.DisableCache &&
		isFileInCache(cachedTreeFile) && isFileInCache(cachedObjFile) &&
		treeFileMatches(cachedTreeFile, t) {
		if r.loadEvaluators(cachedObjFile) {
			return r
		}
		// stale cache: fall through to a fresh compilation
	}
	if r.native {
		r.compileEvaluators(cachedTreeFile, cachedObjFile)
	} else {
		r.closureEvaluators()
	}
	return r
}

// getNumCompiledEvaluators returns the number of evaluator functions for
// a partition: one per internal node on every functionDepth-th level.
func getNumCompiledEvaluators(treeDepth, functionDepth int) int64 {
	var expectedEvaluators int64
	evaluatorDepth := (treeDepth + functionDepth - 1) / functionDepth
	for i := 0; i < evaluatorDepth; i++ {
		expectedEvaluators += tree.PowerOf2(functionDepth * i)
	}
	return expectedEvaluators
}

// evaluatorRoots walks the root node of every compiled subtree, level
// band by level band.
func (r *Resolver) evaluatorRoots(fn func(nodeIdx int64)) {
	for level := 0; level < r.tree.Depth; level += r.functionDepth {
		firstIdxOnLevel := tree.TreeNodes(level)
		firstIdxOnNextLevel := tree.TreeNodes(level + 1)
		for nodeIdx := firstIdxOnLevel; nodeIdx < firstIdxOnNextLevel; nodeIdx++ {
			fn(nodeIdx)
		}
	}
}

// loadEvaluators maps a cached object file; returns false on any
// staleness so the caller recompiles.
func (r *Resolver) loadEvaluators(objFile string) bool {
	expectedEvaluators := getNumCompiledEvaluators(r.tree.Depth, r.functionDepth)

	img, err := loadObjectFile(objFile, r.tree.Depth, r.tree.Features, r.functionDepth, r.switchDepth)
	if err != nil {
		fmt.Println("stale evaluator cache:", err)
		return false
	}
	fmt.Printf("Loading %d evaluators for %d nodes from file %s\n", expectedEvaluators, len(r.tree.Nodes), objFile)

	buf, err := allocExec(len(img.Code))
	if err != nil {
		panic(err) // no executable memory: the host cannot run compiled code
	}
	if err := buf.install(img.Code); err != nil {
		panic(err)
	}

	count := int64(0)
	ok := true
	r.evaluatorRoots(func(nodeIdx int64) {
		offset, found := img.Symbols[EvaluatorName(nodeIdx)]
		if !found {
			ok = false
			return
		}
		r.evaluators.Set(&evaluatorEntry{nodeIdx: nodeIdx, fn: buf.funcAt(offset)})
		count++
	})
	if !ok || count != expectedEvaluators {
		fmt.Println("stale evaluator cache: missing symbols in", objFile)
		buf.release()
		r.evaluators = NonLockingReadMap.New[evaluatorEntry, int64]()
		return false
	}
	r.code = buf
	return true
}

// compileEvaluators emits, verifies, installs and caches the module.
func (r *Resolver) compileEvaluators(cachedTreeFile, cachedObjFile string) {
	expectedEvaluators := getNumCompiledEvaluators(r.tree.Depth, r.functionDepth)
	fmt.Printf("Generating %d evaluators for %d nodes and cache it in file %s", expectedEvaluators, len(r.tree.Nodes), cachedObjFile)

	m := NewModule("file:" + cachedObjFile)
	e := &moduleEmitter{m: m, tree: r.tree}

	type funcRange struct {
		nodeIdx  int64
		from, to int32
	}
	var processedNodes []funcRange
	{
		fmt.Print("\nComposing...")
		done := tracePhase(m.Name, "compose")
		start := time.Now()

		r.evaluatorRoots(func(nodeIdx int64) {
			from := m.W.Pos()
			e.EmitEvaluatorFunction(nodeIdx, r.functionDepth, r.switchDepth)
			processedNodes = append(processedNodes, funcRange{nodeIdx, from, m.W.Pos()})
			r.composed++
		})
		m.W.ResolveFixups()
		for _, f := range processedNodes {
			if err := m.VerifyRange(f.from, f.to); err != nil {
				panic(err) // emitter bug
			}
		}

		done()
		fmt.Printf(" took %v", time.Since(start).Round(time.Millisecond))
	}

	if Settings.Verbose {
		fmt.Println("\n\nWe just constructed this module:")
		fmt.Println(m.Disassemble())
	}

	{
		fmt.Print("\nCompiling...")
		done := tracePhase(m.Name, "compile")
		start := time.Now()

		buf, err := allocExec(len(m.W.Buf))
		if err != nil {
			panic(err) // no executable memory: the host cannot run compiled code
		}
		if err := buf.install(m.W.Buf); err != nil {
			panic(err)
		}
		r.code = buf

		done()
		fmt.Printf(" %s of code took %v", units.HumanSize(float64(len(m.W.Buf))), time.Since(start).Round(time.Millisecond))
	}

	if !Settings.DisableCache {
		// cache errors are not fatal: future runs just recompile
		if err := writeObjectFile(cachedObjFile, m, r.tree.Depth, r.tree.Features, r.functionDepth, r.switchDepth); err != nil {
			fmt.Println("\ncannot cache evaluators:", err)
		} else if err := writeTreeFile(cachedTreeFile, r.tree); err != nil {
			fmt.Println("\ncannot cache tree data:", err)
		}
	}

	{
		fmt.Print("\nCollecting...")
		done := tracePhase(m.Name, "collect")

		for _, f := range processedNodes {
			offset, ok := m.Lookup(EvaluatorName(f.nodeIdx))
			if !ok {
				panic("jit: missing evaluator symbol " + EvaluatorName(f.nodeIdx))
			}
			r.evaluators.Set(&evaluatorEntry{nodeIdx: f.nodeIdx, fn: r.code.funcAt(offset)})
		}

		done()
	}
	fmt.Printf("\n\n")

	if int64(len(processedNodes)) != expectedEvaluators {
		panic("jit: evaluator count mismatch")
	}
}

// closureEvaluators is the backend for hosts without native code
// support: same partition, same per-subtree contract, Go closures.
func (r *Resolver) closureEvaluators() {
	fmt.Printf("no native backend for %s/%s, using closure evaluators\n", runtime.GOOS, runtime.GOARCH)
	r.evaluatorRoots(func(nodeIdx int64) {
		r.evaluators.Set(&evaluatorEntry{
			nodeIdx: nodeIdx,
			fn:      makeClosureEvaluator(r.tree, nodeIdx, r.functionDepth),
		})
	})
}

// Run resolves one input vector to its leaf index. The input must hold
// at least max(featureIdx)+1 floats; no bounds checks are performed.
// Safe for concurrent use once the resolver is constructed.
func (r *Resolver) Run(input []float32) int64 {
	idx := int64(0)
	firstResultIdx := r.tree.NumNodes()
	data := &input[0]
	for idx < firstResultIdx {
		idx = r.evaluators.Get(idx).fn(data)
	}
	return idx
}

// Native reports whether compiled machine code is in use (as opposed to
// the closure backend).
func (r *Resolver) Native() bool {
	return r.native
}

// Composed returns the number of evaluator functions this instance
// emitted; zero after a cache hit.
func (r *Resolver) Composed() int64 {
	return r.composed
}

// NumEvaluators returns the number of resolved evaluators.
func (r *Resolver) NumEvaluators() int {
	return len(r.evaluators.GetAll())
}

// Close releases the executable pages. All evaluator function pointers
// obtained from this resolver become invalid.
func (r *Resolver) Close() {
	if r.code != nil {
		r.code.release()
		r.code = nil
	}
	r.evaluators = NonLockingReadMap.New[evaluatorEntry, int64]()
}
