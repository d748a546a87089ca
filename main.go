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
/*
	treec - a JIT specializing compiler for perfect binary decision trees

	compiles a tree into native subtree evaluators and resolves input
	vectors to leaf indices; caches compiled code on disk
*/
package main

import "os"
import "fmt"
import "flag"
import "time"
import "sync"
import "syscall"
import "strconv"
import "math/rand"
import "os/signal"
import "runtime/pprof"
import cryptorand "crypto/rand"
import "github.com/google/uuid"
import "github.com/fsnotify/fsnotify"
import "github.com/launix-de/treec/jit"
import "github.com/launix-de/treec/tree"

var resolverLock sync.Mutex
var resolver *jit.Resolver
var activeTree *tree.DecisionTree

func buildResolver(t *tree.DecisionTree, functionDepth, switchDepth int) {
	resolverLock.Lock()
	defer resolverLock.Unlock()
	if resolver != nil {
		resolver.Close()
	}
	activeTree = t
	resolver = jit.NewResolver(t, functionDepth, switchDepth)
}

// watchTreeFile rebuilds the resolver whenever the tree file changes.
func watchTreeFile(filename string, functionDepth, switchDepth int) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		panic(err)
	}
	go func() {
		for {
			select {
			case <-watcher.Events:
				// flush all other events
				for {
					time.Sleep(10 * time.Millisecond) // delay a bit, so we don't read empty files
					select {
					case <-watcher.Events:
						// ignore
					default:
						goto to_reload
					}
				}
			to_reload:
				func() {
					defer func() {
						if err := recover(); err != nil {
							// error happens during reload: log to console
							fmt.Println(err)
						}
					}()
					t, err := tree.LoadTree(filename)
					if err != nil {
						fmt.Println(err)
						return
					}
					fmt.Println("tree file changed, recompiling " + filename)
					buildResolver(t, functionDepth, switchDepth)
				}()
				watcher.Add(filename) // text editors rename, so we have to rewatch
			}
		}
	}()
	err = watcher.Add(filename)
	if err != nil {
		panic(err)
	}
}

// bench measures the interpreted vs the compiled traversal over random
// inputs; the compiled side runs on two goroutines to exercise the
// concurrent read path.
func bench(n int) {
	if resolver == nil || activeTree == nil {
		fmt.Println("no tree compiled")
		return
	}
	if n < 2 {
		n = 2
	}
	t := activeTree
	inputs := make([][]float32, n)
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := range inputs {
		input := make([]float32, t.Features)
		for j := range input {
			input[j] = rnd.Float32()
		}
		inputs[i] = input
	}

	start := time.Now()
	var interpSum int64
	for _, input := range inputs {
		interpSum += t.Resolve(input)
	}
	interpDur := time.Since(start)

	start = time.Now()
	sums := make([]int64, 2)
	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			var sum int64
			for i := w; i < n; i += 2 {
				sum += resolver.Run(inputs[i])
			}
			sums[w] = sum
		}(w)
	}
	wg.Wait()
	compiledDur := time.Since(start)

	if interpSum != sums[0]+sums[1] {
		fmt.Println("WARNING: compiled result diverges from interpreter")
	}
	fmt.Printf("interpreted: %d runs in %v (%v/run)\n", n, interpDur, interpDur/time.Duration(n))
	fmt.Printf("compiled:    %d runs in %v (%v/run, 2 threads)\n", n, compiledDur, compiledDur/time.Duration(n))
}

func evalInput(args []string) {
	if resolver == nil || activeTree == nil {
		fmt.Println("no tree compiled")
		return
	}
	input := make([]float32, activeTree.Features)
	if len(args) != len(input) {
		fmt.Printf("expected %d features, got %d values\n", len(input), len(args))
		return
	}
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 32)
		if err != nil {
			fmt.Println(err)
			return
		}
		input[i] = float32(v)
	}
	leaf := resolver.Run(input)
	fmt.Printf("leaf %d (interpreter says %d)\n", leaf, activeTree.Resolve(input))
}

func info() {
	if resolver == nil || activeTree == nil {
		fmt.Println("no tree compiled")
		return
	}
	fmt.Printf("tree: depth %d, %d features, %d internal nodes, leaves [%d, %d)\n",
		activeTree.Depth, activeTree.Features, activeTree.NumNodes(),
		activeTree.NumNodes(), activeTree.NumNodes()+activeTree.NumLeaves())
	fmt.Printf("evaluators: %d, native: %v\n", resolver.NumEvaluators(), resolver.Native())
}

func exitroutine() {
	resolverLock.Lock()
	if resolver != nil {
		resolver.Close()
		resolver = nil
	}
	resolverLock.Unlock()
}

func main() {
	fmt.Print(`treec Copyright (C) 2026   Carl-Philip Hänsch
    This program comes with ABSOLUTELY NO WARRANTY;
    This is free software, and you are welcome to redistribute it
    under certain conditions;

`)

	// init random generator for UUIDs
	uuid.SetRand(cryptorand.Reader)

	// parse command line options
	treefile := ""
	flag.StringVar(&treefile, "tree", "", "Tree text file to compile (also .xz/.gz)")

	depth := 4
	flag.IntVar(&depth, "depth", 4, "Depth of the randomly generated tree (when no -tree is given)")

	features := 5
	flag.IntVar(&features, "features", 5, "Feature count of the randomly generated tree")

	seed := int64(1)
	flag.Int64Var(&seed, "seed", 1, "Seed for the randomly generated tree")

	functionDepth := 2
	flag.IntVar(&functionDepth, "fd", 2, "Tree levels compiled into one evaluator function")

	switchDepth := 2
	flag.IntVar(&switchDepth, "sd", 2, "Tree levels collapsed into one condition-vector switch")

	flag.StringVar(&jit.Settings.CacheDir, "data", ".", "Folder for the evaluator object cache")
	flag.BoolVar(&jit.Settings.DisableCache, "nocache", false, "Do not read or write the object cache")
	flag.BoolVar(&jit.Settings.Verbose, "v", false, "Dump the disassembled module after composing")
	flag.BoolVar(&jit.Settings.Trace, "trace", false, "Write a compile phase trace file")

	benchN := 0
	flag.IntVar(&benchN, "bench", 0, "Run N random inputs through interpreter and compiled code, then exit")

	watch := false
	flag.BoolVar(&watch, "watch", false, "Watch the tree file and recompile on change")

	repl := false
	flag.BoolVar(&repl, "repl", false, "Start the interactive shell")

	profile := ""
	flag.StringVar(&profile, "profile", "", "Write a CPU profile to this file")

	flag.Parse()

	jit.InitSettings()

	var t *tree.DecisionTree
	if treefile != "" {
		var err error
		t, err = tree.LoadTree(treefile)
		if err != nil {
			panic(err)
		}
	} else {
		fmt.Printf("generating random tree: depth %d, %d features, seed %d\n", depth, features, seed)
		t = tree.NewRandomTree(depth, features, seed)
	}

	// install exit handler
	cancelChan := make(chan os.Signal, 1)
	signal.Notify(cancelChan, syscall.SIGTERM, syscall.SIGINT)
	go (func() {
		<-cancelChan
		exitroutine()
		os.Exit(1)
	})()

	// init profiling
	if profile != "" {
		f, err := os.Create(profile)
		if err != nil {
			panic(err)
		}
		defer f.Close()
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	buildResolver(t, functionDepth, switchDepth)

	if watch && treefile != "" {
		watchTreeFile(treefile, functionDepth, switchDepth)
	}

	if benchN > 0 {
		bench(benchN)
	}

	if repl || benchN == 0 && !watch {
		fmt.Print(`
    Type help to show a command overview

`)
		Repl()
	} else if watch {
		select {} // keep watching until killed
	}

	exitroutine()
}
