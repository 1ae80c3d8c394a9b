package vm

import (
	"fmt"

	"github.com/RasmusJin/risc-v-sim/rvgo/riscv"
)

type Config struct {
	// MemorySize is the capacity of the address space in bytes.
	MemorySize uint32
	// Alignment is applied to halfword and word loads and stores. Instruction
	// fetch always requires a word-aligned PC.
	Alignment AlignmentPolicy
	// CallConvention enables the call/return overlay on JAL with rd=ra and
	// JALR with rs1=ra: a 16-byte frame holding ra is pushed and popped on sp.
	CallConvention bool
	// AUIPC executes opcode 0x17 as rd = pc + imm. When disabled the opcode is
	// treated like any other unrecognized opcode.
	AUIPC bool
	// InitStackPointer sets sp to the top of memory before the first step.
	InitStackPointer bool
}

func DefaultConfig() Config {
	return Config{
		MemorySize: riscv.MemorySize,
		Alignment:  AlignStrict,
	}
}

func (c Config) Check() error {
	if err := checkMemorySize(c.MemorySize); err != nil {
		return err
	}
	if c.Alignment > AlignSplit {
		return fmt.Errorf("unknown alignment policy %s", c.Alignment)
	}
	return nil
}
