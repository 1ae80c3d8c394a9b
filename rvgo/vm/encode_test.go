package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RasmusJin/risc-v-sim/rvgo/riscv"
)

// R-type
func encR(op, rd, f3, rs1, rs2, f7 uint32) uint32 {
	return (f7 << 25) | (rs2 << 20) | (rs1 << 15) | (f3 << 12) | (rd << 7) | op
}

// I-type (imm is 12-bit signed)
func encI(op, rd, f3, rs1 uint32, imm int32) uint32 {
	u := uint32(imm) & 0xFFF
	return (u << 20) | (rs1 << 15) | (f3 << 12) | (rd << 7) | op
}

// S-type (imm is 12-bit signed)
func encS(f3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm) & 0xFFF
	return ((u >> 5) << 25) | (rs2 << 20) | (rs1 << 15) | (f3 << 12) | ((u & 0x1F) << 7) | riscv.OpStore
}

// B-type (imm is 13-bit signed, multiple of 2)
func encB(f3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>12)&1)<<31 | ((u>>5)&0x3F)<<25 | (rs2 << 20) | (rs1 << 15) |
		(f3 << 12) | ((u>>1)&0xF)<<8 | ((u>>11)&1)<<7 | riscv.OpBranch
}

// U-type (imm20 is the upper 20 bits)
func encU(op, rd, imm20 uint32) uint32 {
	return (imm20 << 12) | (rd << 7) | op
}

// J-type (imm is 21-bit signed, multiple of 2)
func encJ(rd uint32, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>20)&1)<<31 | ((u>>1)&0x3FF)<<21 | ((u>>11)&1)<<20 | ((u>>12)&0xFF)<<12 | (rd << 7) | riscv.OpJAL
}

func addi(rd, rs1 uint32, imm int32) uint32 { return encI(riscv.OpImm, rd, 0, rs1, imm) }

const ecall = uint32(0x00000073)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MemorySize = 64 * 1024
	return cfg
}

// newTestVM places the program at address 0.
func newTestVM(t *testing.T, cfg Config, program ...uint32) *InstrumentedState {
	t.Helper()
	state := NewVMState(cfg)
	for i, w := range program {
		require.NoError(t, state.Memory.Store32(uint32(i*4), w))
	}
	return NewInstrumentedState(state, cfg, nil)
}

func step(t *testing.T, us *InstrumentedState) {
	t.Helper()
	_, err := us.Step(false)
	require.NoError(t, err)
}

func steps(t *testing.T, us *InstrumentedState, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		step(t, us)
	}
}
