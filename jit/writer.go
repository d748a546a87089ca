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

// Fixup records a forward reference to be patched by ResolveFixups.
// Relative fixups patch a rel32 jump displacement; absolute fixups write
// the label's module offset (used for jump table entries and table
// displacements, which are resolved against the module base register).
type Fixup struct {
	CodePos  int32
	Label    int
	Size     uint8
	Relative bool
}

// Writer emits machine code into a growing byte buffer. All label
// positions are module-relative, so the emitted image can be copied into
// executable memory or serialized to the object cache unchanged.
type Writer struct {
	Buf    []byte
	Labels []int32
	Fixups []Fixup
}

// Pos returns the current write position.
func (w *Writer) Pos() int32 {
	return int32(len(w.Buf))
}

// DefineLabel allocates a new label at the current write position.
func (w *Writer) DefineLabel() int {
	w.Labels = append(w.Labels, w.Pos())
	return len(w.Labels) - 1
}

// ReserveLabel allocates a label ID for later placement via MarkLabel.
func (w *Writer) ReserveLabel() int {
	w.Labels = append(w.Labels, -1)
	return len(w.Labels) - 1
}

// MarkLabel sets the position of a previously reserved label.
func (w *Writer) MarkLabel(id int) {
	w.Labels[id] = w.Pos()
}

// AddFixup records a reference to be patched once all labels are placed.
// The caller emits the placeholder bytes right after.
func (w *Writer) AddFixup(label int, size uint8, relative bool) {
	w.Fixups = append(w.Fixups, Fixup{
		CodePos:  w.Pos(),
		Label:    label,
		Size:     size,
		Relative: relative,
	})
}

// ResolveFixups patches all recorded references after code generation.
func (w *Writer) ResolveFixups() {
	for _, f := range w.Fixups {
		targetPos := w.Labels[f.Label]
		if targetPos < 0 {
			panic("jit: undefined label")
		}
		if f.Size != 4 {
			panic("jit: unsupported fixup size")
		}
		var v int32
		if f.Relative {
			v = targetPos - (f.CodePos + int32(f.Size))
		} else {
			v = targetPos
		}
		binary.LittleEndian.PutUint32(w.Buf[f.CodePos:], uint32(v))
	}
	w.Fixups = w.Fixups[:0]
}

func (w *Writer) emitByte(b byte) {
	w.Buf = append(w.Buf, b)
}

func (w *Writer) emitBytes(bs ...byte) {
	w.Buf = append(w.Buf, bs...)
}

func (w *Writer) emitU32(v uint32) {
	w.Buf = binary.LittleEndian.AppendUint32(w.Buf, v)
}

func (w *Writer) emitU64(v uint64) {
	w.Buf = binary.LittleEndian.AppendUint64(w.Buf, v)
}
