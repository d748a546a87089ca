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

import "encoding/binary"
import "fmt"
import "io"
import "os"
import "path/filepath"
import "runtime"
import "github.com/google/uuid"
import "github.com/pierrec/lz4/v4"
import "github.com/launix-de/treec/tree"

/*
object cache

the first compilation of a parameter set writes the post-codegen module
image next to a record of the tree's node data; later instantiations
with the same key skip code generation and map the image directly. both
files must be present and the tree record must match the live tree,
otherwise the cache is stale and we recompile. the cache is keyed by
machine too (arch string in the header) but not shared across machines.

image layout, inside an lz4 frame:

	"TJT1" | arch | depth features functionDepth switchDepth |
	code bytes | symbol table (name → module offset)
*/

var objMagic = [4]byte{'T', 'J', 'T', '1'}

// TreeFileName returns the cache file recording the tree's node data.
func TreeFileName(treeDepth, dataSetFeatures int) string {
	return fmt.Sprintf("tree_d%d_f%d.t", treeDepth, dataSetFeatures)
}

// ObjFileName returns the cache file holding the compiled module image.
func ObjFileName(treeDepth, dataSetFeatures, functionDepth, switchDepth int) string {
	return fmt.Sprintf("tree_d%d_f%d_fd%d_sd%d.o", treeDepth, dataSetFeatures, functionDepth, switchDepth)
}

func isFileInCache(path string) bool {
	stat, err := os.Stat(path)
	return err == nil && stat.Size() > 0
}

// writeFileAtomic writes via a uuid-named temp file and renames, so a
// concurrent reader never sees a torn cache file.
func writeFileAtomic(path string, write func(w io.Writer) error) error {
	id, _ := uuid.NewRandom()
	tmp := path + "." + id.String() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeString(w io.Writer, s string) error {
	var lenbuf [2]byte
	binary.LittleEndian.PutUint16(lenbuf[:], uint16(len(s)))
	if _, err := w.Write(lenbuf[:]); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var lenbuf [2]byte
	if _, err := io.ReadFull(r, lenbuf[:]); err != nil {
		return "", err
	}
	buf := make([]byte, binary.LittleEndian.Uint16(lenbuf[:]))
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// objectImage is a loaded cache file: enough to install and resolve
// evaluators without any code generation.
type objectImage struct {
	Code    []byte
	Symbols map[string]int32
}

// writeObjectFile serializes the compiled module.
func writeObjectFile(path string, m *Module, treeDepth, features, functionDepth, switchDepth int) error {
	return writeFileAtomic(path, func(f io.Writer) error {
		w := lz4.NewWriter(f)
		if _, err := w.Write(objMagic[:]); err != nil {
			return err
		}
		if err := writeString(w, runtime.GOARCH); err != nil {
			return err
		}
		for _, v := range []int{treeDepth, features, functionDepth, switchDepth} {
			if err := writeU32(w, uint32(v)); err != nil {
				return err
			}
		}
		if err := writeU32(w, uint32(len(m.W.Buf))); err != nil {
			return err
		}
		if _, err := w.Write(m.W.Buf); err != nil {
			return err
		}
		if err := writeU32(w, uint32(m.NumSymbols())); err != nil {
			return err
		}
		var symErr error
		m.Symbols(func(name string, offset int32) {
			if symErr != nil {
				return
			}
			if symErr = writeString(w, name); symErr != nil {
				return
			}
			symErr = writeU32(w, uint32(offset))
		})
		if symErr != nil {
			return symErr
		}
		return w.Close()
	})
}

// loadObjectFile reads a cache file back; any mismatch makes the cache
// stale (error → recompile, never fatal).
func loadObjectFile(path string, treeDepth, features, functionDepth, switchDepth int) (*objectImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := lz4.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, err
	}
	if magic != objMagic {
		return nil, fmt.Errorf("jit: %s is not an evaluator object file", path)
	}
	arch, err := readString(r)
	if err != nil {
		return nil, err
	}
	if arch != runtime.GOARCH {
		return nil, fmt.Errorf("jit: object file %s was compiled for %s", path, arch)
	}
	for _, want := range []int{treeDepth, features, functionDepth, switchDepth} {
		got, err := readU32(r)
		if err != nil {
			return nil, err
		}
		if int(got) != want {
			return nil, fmt.Errorf("jit: object file %s has mismatching parameters", path)
		}
	}
	codeLen, err := readU32(r)
	if err != nil {
		return nil, err
	}
	img := &objectImage{Code: make([]byte, codeLen), Symbols: make(map[string]int32)}
	if _, err := io.ReadFull(r, img.Code); err != nil {
		return nil, err
	}
	numSyms, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < numSyms; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		offset, err := readU32(r)
		if err != nil {
			return nil, err
		}
		img.Symbols[name] = int32(offset)
	}
	return img, nil
}

// writeTreeFile records the tree's node data next to the object file.
func writeTreeFile(path string, t *tree.DecisionTree) error {
	return writeFileAtomic(path, func(f io.Writer) error {
		_, err := f.Write(t.MarshalRecord())
		return err
	})
}

// treeFileMatches reports whether the recorded tree equals the live one.
func treeFileMatches(path string, t *tree.DecisionTree) bool {
	jsonbytes, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return t.MatchesRecord(jsonbytes)
}

func cachePath(name string) string {
	return filepath.Join(Settings.CacheDir, name)
}
