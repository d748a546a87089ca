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
import "strings"
import "github.com/google/btree"
import "golang.org/x/arch/x86/x86asm"

type symbolEntry struct {
	Name   string
	Offset int32
}

type span struct {
	from, to int32
}

// Module is an evaluator module under construction: the code image, the
// symbol table and the jump-table data ranges embedded in the code.
// Once the image is installed into executable pages it must not be
// modified again; the symbol table stays readable for resolution.
type Module struct {
	Name string
	W    Writer
	syms *btree.BTreeG[symbolEntry]
	data []span
}

// NewModule creates an empty module. The name carries the object cache
// key ("file:<objFileName>").
func NewModule(name string) *Module {
	return &Module{
		Name: name,
		syms: btree.NewG[symbolEntry](8, func(a, b symbolEntry) bool {
			return a.Name < b.Name
		}),
	}
}

// AddSymbol registers an externally resolvable function at offset.
func (m *Module) AddSymbol(name string, offset int32) {
	m.syms.ReplaceOrInsert(symbolEntry{Name: name, Offset: offset})
}

// Lookup resolves a symbol name to its module offset.
func (m *Module) Lookup(name string) (int32, bool) {
	e, ok := m.syms.Get(symbolEntry{Name: name})
	return e.Offset, ok
}

// Symbols calls fn for every symbol in name order.
func (m *Module) Symbols(fn func(name string, offset int32)) {
	m.syms.Ascend(func(e symbolEntry) bool {
		fn(e.Name, e.Offset)
		return true
	})
}

// NumSymbols returns the number of registered evaluator symbols.
func (m *Module) NumSymbols() int {
	return m.syms.Len()
}

// markData records [from, to) as embedded data (jump tables), excluded
// from verification and disassembly.
func (m *Module) markData(from, to int32) {
	m.data = append(m.data, span{from, to})
}

func (m *Module) dataSpanAt(pos int32) (span, bool) {
	for _, s := range m.data {
		if pos >= s.from && pos < s.to {
			return s, true
		}
	}
	return span{}, false
}

// VerifyRange decodes the emitted bytes of [from, to) and fails on the
// first byte sequence that is not a valid instruction. Jump tables are
// skipped. A failure here is an emitter bug, not bad runtime data.
func (m *Module) VerifyRange(from, to int32) error {
	code := m.W.Buf
	pos := from
	for pos < to {
		if s, ok := m.dataSpanAt(pos); ok {
			pos = s.to
			continue
		}
		inst, err := x86asm.Decode(code[pos:to], 64)
		if err != nil {
			return fmt.Errorf("module %s: undecodable instruction at offset %d: %v", m.Name, pos, err)
		}
		pos += int32(inst.Len)
	}
	return nil
}

// Verify checks the whole module.
func (m *Module) Verify() error {
	return m.VerifyRange(0, m.W.Pos())
}

// Disassemble renders the module for the verbose dump; jump tables are
// summarized instead of decoded.
func (m *Module) Disassemble() string {
	var sb strings.Builder
	offsets := make(map[int32]string)
	m.Symbols(func(name string, offset int32) {
		offsets[offset] = name
	})
	code := m.W.Buf
	pos := int32(0)
	for pos < int32(len(code)) {
		if name, ok := offsets[pos]; ok {
			fmt.Fprintf(&sb, "\n%s:\n", name)
		}
		if s, ok := m.dataSpanAt(pos); ok {
			fmt.Fprintf(&sb, "0x%04x: jump table, %d entries\n", pos, (s.to-s.from)/4)
			pos = s.to
			continue
		}
		inst, err := x86asm.Decode(code[pos:], 64)
		if err != nil {
			fmt.Fprintf(&sb, "0x%04x: db 0x%02x\n", pos, code[pos])
			pos++
			continue
		}
		var hexBytes []string
		for i := 0; i < inst.Len; i++ {
			hexBytes = append(hexBytes, fmt.Sprintf("%02x", code[pos+int32(i)]))
		}
		fmt.Fprintf(&sb, "0x%04x: %-24s %s\n", pos, strings.Join(hexBytes, " "), inst.String())
		pos += int32(inst.Len)
	}
	return sb.String()
}
