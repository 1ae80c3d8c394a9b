package vm

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/RasmusJin/risc-v-sim/rvgo/riscv"
)

type VMState struct {
	Memory *Memory `json:"memory"`

	PC uint32 `json:"pc"`

	// Fault is 0 after a clean halt (ECALL), or one of the riscv.Err* codes after a fatal fault.
	Fault  uint32 `json:"fault"`
	Exited bool   `json:"exited"`

	Step uint64 `json:"step"`

	Registers [riscv.RegisterCount]uint32 `json:"registers"`
}

// NewVMState creates a zeroed machine: PC 0, all registers 0, memory of cfg.MemorySize bytes.
func NewVMState(cfg Config) *VMState {
	state := &VMState{
		Memory: NewMemory(cfg.MemorySize),
	}
	state.Memory.SetAlignmentPolicy(cfg.Alignment)
	if cfg.InitStackPointer {
		state.Registers[riscv.RegSP] = cfg.MemorySize
	}
	return state
}

// Running is the inverse of Exited.
func (state *VMState) Running() bool {
	return !state.Exited
}

func (state *VMState) loadRegister(reg uint32) uint32 {
	return state.Registers[reg&0x1F]
}

// writeRegister discards writes to x0.
func (state *VMState) writeRegister(reg uint32, v uint32) {
	if reg == riscv.RegZero {
		return
	}
	state.Registers[reg&0x1F] = v
}

// Instr returns the instruction word at PC, or 0 if PC does not point at a valid word.
func (state *VMState) Instr() uint32 {
	v, err := state.Memory.Load32(state.PC)
	if err != nil {
		return 0
	}
	return v
}

// WriteRegisters dumps the register file as 32 little-endian words, in index order.
func (state *VMState) WriteRegisters(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, state.Registers)
}

func (state *VMState) WriteRegistersFile(path string, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to open register dump %q: %w", path, err)
	}
	if err := state.WriteRegisters(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write register dump %q: %w", path, err)
	}
	return f.Close()
}

// ReadRegisters parses a register dump produced by WriteRegisters.
func ReadRegisters(r io.Reader) (regs [riscv.RegisterCount]uint32, err error) {
	err = binary.Read(r, binary.LittleEndian, &regs)
	return
}
