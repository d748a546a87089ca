package jit

import (
	"encoding/binary"
	"testing"
)

func TestWriterLabels(t *testing.T) {
	var w Writer
	w.emitBytes(0x90, 0x90) // two NOPs
	l := w.DefineLabel()
	if w.Labels[l] != 2 {
		t.Errorf("label at %d, expected 2", w.Labels[l])
	}
	r := w.ReserveLabel()
	w.emitByte(0x90)
	w.MarkLabel(r)
	if w.Labels[r] != 3 {
		t.Errorf("reserved label at %d, expected 3", w.Labels[r])
	}
}

func TestWriterRelativeFixup(t *testing.T) {
	var w Writer
	target := w.ReserveLabel()
	w.EmitJmp(target) // 5 bytes: E9 rel32
	w.emitBytes(0x90, 0x90, 0x90)
	w.MarkLabel(target)
	w.ResolveFixups()

	rel := int32(binary.LittleEndian.Uint32(w.Buf[1:5]))
	if rel != 3 {
		t.Errorf("rel32 = %d, expected 3", rel)
	}
}

func TestWriterBackwardFixup(t *testing.T) {
	var w Writer
	target := w.DefineLabel()
	w.emitBytes(0x90, 0x90)
	w.EmitJmp(target)
	w.ResolveFixups()

	rel := int32(binary.LittleEndian.Uint32(w.Buf[3:7]))
	if rel != -7 {
		t.Errorf("rel32 = %d, expected -7", rel)
	}
}

func TestWriterAbsoluteFixup(t *testing.T) {
	var w Writer
	w.emitBytes(0x90, 0x90, 0x90, 0x90)
	target := w.DefineLabel()
	w.emitByte(0xC3)
	w.AddFixup(target, 4, false)
	w.emitU32(0)
	w.ResolveFixups()

	abs := int32(binary.LittleEndian.Uint32(w.Buf[5:9]))
	if abs != 4 {
		t.Errorf("absolute fixup = %d, expected 4", abs)
	}
}

func TestWriterUndefinedLabelPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic on an unmarked label")
		}
	}()
	var w Writer
	l := w.ReserveLabel()
	w.EmitJmp(l)
	w.ResolveFixups()
}
