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

import "bytes"
import "compress/gzip"
import "encoding/json"
import "fmt"
import "io"
import "os"
import "strings"
import "github.com/ulikunitz/xz"

// LoadTree reads a tree text file. Files ending in .xz or .gz are
// decompressed transparently.
func LoadTree(filename string) (*DecisionTree, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var stream io.Reader = f
	if strings.HasSuffix(filename, ".xz") {
		stream, err = xz.NewReader(stream)
		if err != nil {
			return nil, err
		}
	} else if strings.HasSuffix(filename, ".gz") {
		stream, err = gzip.NewReader(stream)
		if err != nil {
			return nil, err
		}
	}
	src, err := io.ReadAll(stream)
	if err != nil {
		return nil, err
	}
	return ParseTree(string(src))
}

// MarshalRecord serializes the tree's node data for the cache tree file.
func (t *DecisionTree) MarshalRecord() []byte {
	jsonbytes, err := json.Marshal(t)
	if err != nil {
		panic(err)
	}
	return jsonbytes
}

// UnmarshalRecord reads a cache tree file record back.
func UnmarshalRecord(jsonbytes []byte) (*DecisionTree, error) {
	t := new(DecisionTree)
	if err := json.Unmarshal(jsonbytes, t); err != nil {
		return nil, err
	}
	if int64(len(t.Nodes)) != TreeNodes(t.Depth) {
		return nil, fmt.Errorf("tree: record claims depth %d but has %d nodes", t.Depth, len(t.Nodes))
	}
	return t, nil
}

// MatchesRecord reports whether the serialized record describes exactly
// this tree. Used for the cache staleness check.
func (t *DecisionTree) MatchesRecord(jsonbytes []byte) bool {
	return bytes.Equal(jsonbytes, t.MarshalRecord())
}
