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

// x86-64 register constants.
//
// Go register ABI (amd64): first argument in RAX, result in RAX.
// R14 holds the current goroutine and X15 the zero register; both are
// left untouched by emitted code.
type Reg uint8

const (
	RegRAX Reg = 0
	RegRCX Reg = 1
	RegRDX Reg = 2
	RegRBX Reg = 3
	RegRSP Reg = 4
	RegRBP Reg = 5
	RegRSI Reg = 6
	RegRDI Reg = 7
	RegR8  Reg = 8
	RegR9  Reg = 9
	RegR10 Reg = 10
	RegR11 Reg = 11
	RegR12 Reg = 12
	RegR13 Reg = 13
	RegR14 Reg = 14
	RegR15 Reg = 15
	// XMM registers start at 16
	RegX0 Reg = 16
	RegX1 Reg = 17
	RegX2 Reg = 18
)

// Condition code constants for EmitSetcc / EmitJcc.
const (
	CcE  byte = 0x04 // JE  / JZ  (ZF=1)
	CcNE byte = 0x05 // JNE / JNZ (ZF=0)
	CcB  byte = 0x02 // JB  (unsigned <)
	CcAE byte = 0x03 // JAE (unsigned >=)
	CcA  byte = 0x07 // JA  (unsigned >, also: ordered float compare true)
)

// --- GPR MOV/ALU ---

// emitMovRegReg emits MOV dst, src (64-bit GPR to GPR)
func (w *Writer) emitMovRegReg(dst, src Reg) {
	rex := byte(0x48)
	if src >= 8 {
		rex |= 0x04 // REX.R
	}
	if dst >= 8 {
		rex |= 0x01 // REX.B
	}
	modrm := byte(0xC0) | (byte(src&7) << 3) | byte(dst&7)
	w.emitBytes(rex, 0x89, modrm)
}

// EmitMovRegImm64 emits MOV reg, imm64
func (w *Writer) EmitMovRegImm64(dst Reg, imm uint64) {
	rex := byte(0x48)
	if dst >= 8 {
		rex |= 0x01 // REX.B
	}
	w.emitBytes(rex, 0xB8|byte(dst&7))
	w.emitU64(imm)
}

// emitMovReg32Imm32 emits MOV r32, imm32 (zeroes the upper half)
func (w *Writer) emitMovReg32Imm32(dst Reg, imm uint32) {
	if dst >= 8 {
		w.emitByte(0x41)
	}
	w.emitByte(0xB8 | byte(dst&7))
	w.emitU32(imm)
}

// emitXorReg emits XOR r32, r32 (zeros a 64-bit register via 32-bit op)
func (w *Writer) emitXorReg(r Reg) {
	if r >= 8 {
		w.emitBytes(0x45, 0x31, 0xC0|(byte(r&7)<<3)|byte(r&7))
	} else {
		w.emitBytes(0x31, 0xC0|(byte(r)<<3)|byte(r))
	}
}

// emitAluRegReg emits a REX.W ALU op: <opcode> r/m64, r64
// opcode: 0x01=ADD, 0x29=SUB, 0x39=CMP, 0x09=OR, 0x21=AND, 0x31=XOR
func (w *Writer) emitAluRegReg(opcode byte, dst, src Reg) {
	rex := byte(0x48)
	if src >= 8 {
		rex |= 0x04
	}
	if dst >= 8 {
		rex |= 0x01
	}
	modrm := byte(0xC0) | (byte(src&7) << 3) | byte(dst&7)
	w.emitBytes(rex, opcode, modrm)
}

// emitOrRegReg emits OR dst, src (64-bit)
func (w *Writer) emitOrRegReg(dst, src Reg) {
	w.emitAluRegReg(0x09, dst, src)
}

// emitAddRegReg emits ADD dst, src (64-bit)
func (w *Writer) emitAddRegReg(dst, src Reg) {
	w.emitAluRegReg(0x01, dst, src)
}

// EmitShlRegImm8 emits SHL r64, imm8
func (w *Writer) EmitShlRegImm8(dst Reg, imm uint8) {
	rex := byte(0x48)
	if dst >= 8 {
		rex |= 0x01
	}
	modrm := byte(0xE0) | byte(dst&7) // /4 = SHL
	w.emitBytes(rex, 0xC1, modrm, imm)
}

// emitSubRspImm8 / emitAddRspImm8 adjust the stack for the x87 scratch slot.
func (w *Writer) emitSubRspImm8(imm uint8) {
	w.emitBytes(0x48, 0x83, 0xEC, imm)
}

func (w *Writer) emitAddRspImm8(imm uint8) {
	w.emitBytes(0x48, 0x83, 0xC4, imm)
}

// EmitSetcc emits SETcc r/m8 + MOVZX r32, r8 → zero-extended 0 or 1
func (w *Writer) EmitSetcc(dst Reg, cc byte) {
	dstEnc := byte(dst & 7)
	if dst >= 8 {
		w.emitBytes(0x41, 0x0F, 0x90|cc, 0xC0|dstEnc)
	} else if dst >= 4 {
		w.emitBytes(0x40, 0x0F, 0x90|cc, 0xC0|dstEnc) // REX for SIL/DIL/BPL/SPL
	} else {
		w.emitBytes(0x0F, 0x90|cc, 0xC0|dstEnc)
	}
	modrm := byte(0xC0) | (dstEnc << 3) | dstEnc
	if dst >= 8 {
		w.emitBytes(0x45, 0x0F, 0xB6, modrm)
	} else if dst >= 4 {
		w.emitBytes(0x40, 0x0F, 0xB6, modrm)
	} else {
		w.emitBytes(0x0F, 0xB6, modrm)
	}
}

// --- jumps ---

// EmitJmp emits an unconditional JMP rel32 to a label.
func (w *Writer) EmitJmp(label int) {
	w.emitByte(0xE9)
	w.AddFixup(label, 4, true)
	w.emitU32(0) // placeholder
}

// EmitJcc emits a conditional jump with a rel32 fixup.
func (w *Writer) EmitJcc(cc byte, label int) {
	w.emitBytes(0x0F, 0x80|cc)
	w.AddFixup(label, 4, true)
	w.emitU32(0) // placeholder
}

// emitJmpReg emits JMP reg (indirect).
func (w *Writer) emitJmpReg(r Reg) {
	if r >= 8 {
		w.emitByte(0x41)
	}
	w.emitBytes(0xFF, 0xE0|byte(r&7))
}

func (w *Writer) emitRet() {
	w.emitByte(0xC3)
}

// emitLeaModuleBase emits LEA dst, [RIP+disp] with a displacement that
// resolves to the module's first byte. All labels are module-relative,
// so base+offset arithmetic recovers absolute block addresses without
// any load-time relocation.
func (w *Writer) emitLeaModuleBase(dst Reg) {
	rex := byte(0x48)
	if dst >= 8 {
		rex |= 0x04 // REX.R
	}
	modrm := byte(0x05) | (byte(dst&7) << 3) // mod=00 rm=101 → RIP-relative
	w.emitBytes(rex, 0x8D, modrm)
	w.emitU32(uint32(-(w.Pos() + 4)))
}

// emitLoadJumpTableEntry emits MOV r32(dst), [base + idx*4 + tableLabel]
// loading the module-relative block offset for the condition vector in idx.
func (w *Writer) emitLoadJumpTableEntry(dst, base, idx Reg, tableLabel int) {
	rex := byte(0)
	if dst >= 8 {
		rex |= 0x44 // REX.R
	}
	if idx >= 8 {
		rex |= 0x42 // REX.X
	}
	if base >= 8 {
		rex |= 0x41 // REX.B
	}
	if rex != 0 {
		w.emitByte(rex)
	}
	modrm := byte(0x80) | (byte(dst&7) << 3) | 0x04 // mod=10 rm=100 → SIB+disp32
	sib := byte(0x80) | (byte(idx&7) << 3) | byte(base&7)
	w.emitBytes(0x8B, modrm, sib)
	w.AddFixup(tableLabel, 4, false)
	w.emitU32(0) // placeholder
}

// --- SSE scalar float ---

// emitMemOperand encodes the ModRM/SIB/disp bytes for [base + disp].
// The caller has already emitted mandatory prefixes, REX and opcode.
func (w *Writer) emitMemOperand(regField byte, base Reg, disp int32) {
	baseEnc := byte(base & 7)
	if disp == 0 && baseEnc != 5 { // RBP/R13 always needs a displacement
		modrm := (regField << 3) | baseEnc
		if baseEnc == 4 { // RSP/R12 needs SIB
			w.emitBytes(modrm, 0x24)
		} else {
			w.emitBytes(modrm)
		}
	} else if disp >= -128 && disp <= 127 {
		modrm := 0x40 | (regField << 3) | baseEnc
		if baseEnc == 4 {
			w.emitBytes(modrm, 0x24, byte(int8(disp)))
		} else {
			w.emitBytes(modrm, byte(int8(disp)))
		}
	} else {
		modrm := 0x80 | (regField << 3) | baseEnc
		if baseEnc == 4 {
			w.emitBytes(modrm, 0x24)
		} else {
			w.emitBytes(modrm)
		}
		w.emitU32(uint32(disp))
	}
}

func sseRex(xmm byte, base Reg) byte {
	rex := byte(0)
	if xmm >= 8 {
		rex = 0x44
	}
	if base >= 8 {
		rex |= 0x41
	}
	return rex
}

// emitMovssLoad emits MOVSS xmm, [base + disp] (F3 0F 10 /r)
func (w *Writer) emitMovssLoad(xmm, base Reg, disp int32) {
	x := byte(xmm - 16)
	w.emitByte(0xF3)
	if rex := sseRex(x, base); rex != 0 {
		w.emitByte(rex)
	}
	w.emitBytes(0x0F, 0x10)
	w.emitMemOperand(x&7, base, disp)
}

// emitMovssStore emits MOVSS [base + disp], xmm (F3 0F 11 /r)
func (w *Writer) emitMovssStore(base Reg, disp int32, xmm Reg) {
	x := byte(xmm - 16)
	w.emitByte(0xF3)
	if rex := sseRex(x, base); rex != 0 {
		w.emitByte(rex)
	}
	w.emitBytes(0x0F, 0x11)
	w.emitMemOperand(x&7, base, disp)
}

// emitSqrtss emits SQRTSS dst, src (F3 0F 51 /r)
func (w *Writer) emitSqrtss(dst, src Reg) {
	d := byte(dst - 16)
	s := byte(src - 16)
	w.emitByte(0xF3)
	if d >= 8 || s >= 8 {
		rex := byte(0x40)
		if d >= 8 {
			rex |= 0x04
		}
		if s >= 8 {
			rex |= 0x01
		}
		w.emitByte(rex)
	}
	w.emitBytes(0x0F, 0x51, 0xC0|(d&7)<<3|(s&7))
}

// emitUcomiss emits UCOMISS a, b (0F 2E /r): sets CF/ZF/PF from the
// ordered compare of a against b; unordered sets all three.
func (w *Writer) emitUcomiss(a, b Reg) {
	x := byte(a - 16)
	y := byte(b - 16)
	if x >= 8 || y >= 8 {
		rex := byte(0x40)
		if x >= 8 {
			rex |= 0x04
		}
		if y >= 8 {
			rex |= 0x01
		}
		w.emitByte(rex)
	}
	w.emitBytes(0x0F, 0x2E, 0xC0|(x&7)<<3|(y&7))
}

// emitMovdXmmGpr32 emits MOVD xmm, r32 (66 0F 6E /r)
func (w *Writer) emitMovdXmmGpr32(xmm, gpr Reg) {
	x := byte(xmm - 16)
	w.emitByte(0x66)
	if x >= 8 || gpr >= 8 {
		rex := byte(0x40)
		if x >= 8 {
			rex |= 0x04
		}
		if gpr >= 8 {
			rex |= 0x01
		}
		w.emitByte(rex)
	}
	w.emitBytes(0x0F, 0x6E, 0xC0|(x&7)<<3|byte(gpr&7))
}

// --- x87 (natural log) ---
//
// There is no SSE instruction for ln; the x87 FYL2X sequence computes
// ln2 * log2(x) = ln(x) with the same NaN/-inf edge behavior as libm:
// x < 0 → NaN, x == 0 → -inf. The value travels through a scratch slot
// at [RSP].

// emitLnX87 computes xmm = ln(xmm) via the x87 stack.
func (w *Writer) emitLnX87(xmm Reg) {
	w.emitMovssStore(RegRSP, 0, xmm)
	w.emitBytes(0xD9, 0xED)       // FLDLN2
	w.emitBytes(0xD9, 0x04, 0x24) // FLD dword [RSP]
	w.emitBytes(0xD9, 0xF1)       // FYL2X
	w.emitBytes(0xD9, 0x1C, 0x24) // FSTP dword [RSP]
	w.emitMovssLoad(xmm, RegRSP, 0)
}
