package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RasmusJin/risc-v-sim/rvgo/riscv"
)

func TestSignExtend(t *testing.T) {
	require.Equal(t, uint32(0xFFFF_FFFF), SignExtend(0xFFF, 12))
	require.Equal(t, uint32(0x7FF), SignExtend(0x7FF, 12))
	require.Equal(t, uint32(0xFFFF_F800), SignExtend(0x800, 12))
	require.Equal(t, uint32(0xFFFF_FF80), SignExtend(0x80, 8))
	require.Equal(t, uint32(0x7F), SignExtend(0x7F, 8))
	require.Equal(t, uint32(0xFFFF_8000), SignExtend(0x8000, 16))
	// bits above the width are ignored
	require.Equal(t, uint32(1), SignExtend(0xABC001, 12))

	t.Run("round trip", func(t *testing.T) {
		for _, bits := range []uint{8, 12, 13, 16, 21} {
			mask := uint32(1)<<bits - 1
			lo := -(int32(1) << (bits - 1))
			hi := int32(1)<<(bits-1) - 1
			for _, v := range []int32{lo, lo + 1, -2, -1, 0, 1, 2, hi - 1, hi} {
				pattern := uint32(v) & mask
				ext := SignExtend(pattern, bits)
				require.Equal(t, pattern, ext&mask, "bits %d value %d", bits, v)
				require.Equal(t, v, int32(ext), "bits %d value %d", bits, v)
			}
		}
	})
}

func TestParseFields(t *testing.T) {
	instr := encR(riscv.OpReg, 7, 5, 12, 31, 0x20) // sra x7, x12, x31
	require.Equal(t, uint32(riscv.OpReg), parseOpcode(instr))
	require.Equal(t, uint32(7), parseRd(instr))
	require.Equal(t, uint32(5), parseFunct3(instr))
	require.Equal(t, uint32(12), parseRs1(instr))
	require.Equal(t, uint32(31), parseRs2(instr))
	require.Equal(t, uint32(0x20), parseFunct7(instr))
}

func TestParseImmediates(t *testing.T) {
	for _, imm := range []int32{-2048, -1, 0, 1, 42, 2047} {
		require.Equal(t, uint32(imm), parseImmTypeI(encI(riscv.OpImm, 1, 0, 2, imm)), "I %d", imm)
		require.Equal(t, uint32(imm), parseImmTypeS(encS(2, 1, 2, imm)), "S %d", imm)
	}
	for _, imm := range []int32{-4096, -4, -2, 0, 2, 8, 4094} {
		require.Equal(t, uint32(imm), parseImmTypeB(encB(0, 1, 2, imm)), "B %d", imm)
	}
	for _, imm := range []int32{-1 << 20, -4, 0, 2, 2048, 1<<20 - 2} {
		require.Equal(t, uint32(imm), parseImmTypeJ(encJ(1, imm)), "J %d", imm)
	}
	require.Equal(t, uint32(0xABCDE000), parseImmTypeU(encU(riscv.OpLUI, 3, 0xABCDE)))
	require.Equal(t, uint32(0x80000000), parseImmTypeU(encU(riscv.OpLUI, 3, 0x80000)))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		instr uint32
		class Class
		asm   string
	}{
		{0x00100093, ClassOpImm, "addi x1, x0, 1"},
		{0x00100513, ClassOpImm, "addi x10, x0, 1"},
		{encI(riscv.OpLoad, 5, 2, 2, -4), ClassLoad, "lw x5, -4(x2)"},
		{encI(riscv.OpLoad, 5, 4, 2, 3), ClassLoad, "lbu x5, 3(x2)"},
		{encS(1, 2, 6, 8), ClassStore, "sh x6, 8(x2)"},
		{encR(riscv.OpReg, 3, 0, 1, 2, 0x20), ClassOp, "sub x3, x1, x2"},
		{encR(riscv.OpReg, 3, 7, 1, 2, 0), ClassOp, "and x3, x1, x2"},
		{encI(riscv.OpImm, 4, 5, 4, 0x400|3), ClassOpImm, "srai x4, x4, 3"},
		{encI(riscv.OpImm, 4, 1, 4, 31), ClassOpImm, "slli x4, x4, 31"},
		{encU(riscv.OpLUI, 2, 0x100), ClassLUI, "lui x2, 0x100"},
		{encU(riscv.OpAUIPC, 2, 0x1), ClassAUIPC, "auipc x2, 0x1"},
		{encB(0, 0, 0, -4), ClassBranch, "beq x0, x0, -4"},
		{encB(7, 3, 4, 16), ClassBranch, "bgeu x3, x4, 16"},
		{encJ(1, 2048), ClassJAL, "jal x1, 2048"},
		{encI(riscv.OpJALR, 0, 0, 1, 0), ClassJALR, "jalr x0, 0(x1)"},
		{ecall, ClassSystem, "ecall"},
		{0x00100073, ClassSystem, "ebreak"},
		{0x0000000F, ClassFence, "fence"},
		{0x0000007F, ClassUnknown, "unknown(opcode=0x7f funct3=0 funct7=0x0)"},
		{encR(riscv.OpReg, 3, 0, 1, 2, 1), ClassOp, "unknown(opcode=0x33 funct3=0 funct7=0x1)"},
	}
	for _, tc := range tests {
		t.Run(tc.asm, func(t *testing.T) {
			in := Decode(tc.instr)
			require.Equal(t, tc.class, in.Class)
			require.Equal(t, tc.instr, in.Raw)
			require.Equal(t, tc.asm, in.String())
		})
	}
}

func TestDecodeScenarioWord(t *testing.T) {
	// image bytes 13 05 10 00, little-endian
	in := Decode(0x00100513)
	require.Equal(t, uint32(0x13), in.Opcode)
	require.Equal(t, uint32(1), in.Imm)
	require.Equal(t, uint32(0), in.Rs1)
	require.Equal(t, uint32(10), in.Rd)
	require.True(t, in.WritesRd())

	require.False(t, Decode(addi(0, 0, 0)).WritesRd(), "nop writes x0")
	require.False(t, Decode(encS(2, 1, 2, 0)).WritesRd())
}
