package vm

import (
	"errors"
	"fmt"

	"github.com/RasmusJin/risc-v-sim/rvgo/riscv"
)

// Fault is a fatal condition raised while executing an instruction.
// It halts the machine; the instruction has no other effect.
type Fault struct {
	Code  uint32
	PC    uint32
	Instr uint32
	Err   error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault %08x at pc %08x (insn %08x): %v", f.Code, f.PC, f.Instr, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// memFaultCode maps a memory error to a fault code, oobCode for bounds violations.
func memFaultCode(err error, oobCode uint32) uint32 {
	if errors.Is(err, ErrMisaligned) {
		return riscv.ErrNotAlignedAddr
	}
	return oobCode
}

func (m *InstrumentedState) riscvStep() (outErr error) {
	s := m.state
	if s.Exited {
		return nil
	}
	defer func() {
		if err := recover(); err != nil {
			outErr = fmt.Errorf("err: %v", err)
		}
	}()

	pc := s.PC
	if pc%riscv.InstrSize != 0 {
		// independent of the alignment policy, which only covers data accesses
		m.halt(&Fault{Code: riscv.ErrNotAlignedAddr, PC: pc, Err: fmt.Errorf("fetch: %w: pc %08x", ErrMisaligned, pc)})
		return nil
	}
	instr, err := m.loadMem(pc, riscv.InstrSize) // raw instruction
	if err != nil {
		m.halt(&Fault{Code: memFaultCode(err, riscv.ErrFetchOutOfBounds), PC: pc, Err: fmt.Errorf("fetch: %w", err)})
		return nil
	}

	in := Decode(instr)
	pcSet, fault := m.execute(in)
	s.Step++
	if fault != nil {
		fault.PC = pc
		fault.Instr = instr
		m.halt(fault)
		return nil
	}
	if !pcSet {
		s.PC = pc + riscv.InstrSize
	}

	if in.WritesRd() {
		m.log.Trace("step", "step", s.Step, "pc", HexU32(pc), "insn", HexU32(instr), "asm", in,
			"rd", in.Rd, "value", HexU32(s.loadRegister(in.Rd)), "next", HexU32(s.PC))
	} else {
		m.log.Trace("step", "step", s.Step, "pc", HexU32(pc), "insn", HexU32(instr), "asm", in, "next", HexU32(s.PC))
	}
	if s.Exited {
		m.log.Info("halted", "step", s.Step, "pc", HexU32(pc), "asm", in)
	}
	return nil
}

// halt stops the machine on a fatal fault. PC stays on the faulting instruction.
func (m *InstrumentedState) halt(f *Fault) {
	m.state.Exited = true
	m.state.Fault = f.Code
	m.lastFault = f
	m.log.Error("fault", "step", m.state.Step, "pc", HexU32(f.PC), "insn", HexU32(f.Instr),
		"code", HexU32(f.Code), "err", f.Err)
}

func (m *InstrumentedState) unrecognized(in Instruction) {
	m.log.Warn("unrecognized instruction", "pc", HexU32(m.state.PC), "insn", HexU32(in.Raw),
		"class", in.Class, "opcode", in.Opcode, "funct3", in.Funct3, "funct7", in.Funct7)
}

// execute dispatches on the instruction class. pcSet is true when the handler
// already moved PC, in which case the default advance must not be applied.
func (m *InstrumentedState) execute(in Instruction) (pcSet bool, fault *Fault) {
	switch in.Class {
	case ClassLoad:
		return false, m.execLoad(in)
	case ClassStore:
		return false, m.execStore(in)
	case ClassOpImm:
		return false, m.execOpImm(in)
	case ClassOp:
		m.execOp(in)
		return false, nil
	case ClassLUI:
		m.state.writeRegister(in.Rd, in.Imm)
		return false, nil
	case ClassAUIPC:
		if !m.cfg.AUIPC {
			m.unrecognized(in)
			return false, nil
		}
		m.state.writeRegister(in.Rd, add32(m.state.PC, in.Imm))
		return false, nil
	case ClassBranch:
		return m.execBranch(in), nil
	case ClassJAL:
		return m.execJAL(in)
	case ClassJALR:
		return m.execJALR(in)
	case ClassSystem:
		// ECALL and EBREAK both end the simulation, PC stays on the instruction
		m.state.Exited = true
		return true, nil
	case ClassFence:
		// no pipeline, no other harts: nothing to order
		return false, nil
	default:
		m.unrecognized(in)
		return false, nil
	}
}

// 000_0011: memory loading
// LB, LH, LW, LBU, LHU
func (m *InstrumentedState) execLoad(in Instruction) *Fault {
	if in.Rd == riscv.RegZero {
		// the load is skipped entirely: no access, no fault
		return nil
	}
	switch in.Funct3 {
	case 0, 1, 2, 4, 5:
	default:
		m.unrecognized(in)
		return nil
	}
	signed := iszero32(and32(in.Funct3, 4)) // 4 = 100 -> bitflag
	size := shl32(and32(in.Funct3, 3), 1)   // 3 = 11 -> 1, 2, 4 bytes size
	addr := add32(m.state.loadRegister(in.Rs1), in.Imm)
	v, err := m.loadMem(addr, size)
	if err != nil {
		return &Fault{Code: memFaultCode(err, riscv.ErrLoadOutOfBounds), Err: fmt.Errorf("load: %w", err)}
	}
	if signed && size < 4 {
		v = SignExtend(v, uint(size*8))
	}
	m.state.writeRegister(in.Rd, v)
	return nil
}

// 010_0011: memory storing
// SB, SH, SW
func (m *InstrumentedState) execStore(in Instruction) *Fault {
	if in.Funct3 > 2 {
		m.unrecognized(in)
		return nil
	}
	size := shl32(in.Funct3, 1)
	addr := add32(m.state.loadRegister(in.Rs1), in.Imm)
	if err := m.storeMem(addr, size, m.state.loadRegister(in.Rs2)); err != nil {
		return &Fault{Code: memFaultCode(err, riscv.ErrStoreOutOfBounds), Err: fmt.Errorf("store: %w", err)}
	}
	return nil
}

// 001_0011: immediate arithmetic and logic
func (m *InstrumentedState) execOpImm(in Instruction) *Fault {
	rs1Value := m.state.loadRegister(in.Rs1)
	imm := in.Imm
	shamt := in.Rs2 // low 5 bits of the immediate
	var rdValue uint32
	switch in.Funct3 {
	case 0: // 000 = ADDI
		rdValue = add32(rs1Value, imm)
		if m.cfg.CallConvention && in.Rd == riscv.RegSP && rdValue%riscv.StackAlign != 0 {
			return &Fault{Code: riscv.ErrStackNotAligned, Err: fmt.Errorf("stack pointer %08x not %d-byte aligned", rdValue, riscv.StackAlign)}
		}
	case 1: // 001 = SLLI
		if in.Funct7 != riscv.Funct7Base {
			m.unrecognized(in)
			return nil
		}
		rdValue = shl32(shamt, rs1Value)
	case 2: // 010 = SLTI
		rdValue = slt32(rs1Value, imm)
	case 3: // 011 = SLTIU
		rdValue = lt32(rs1Value, imm)
	case 4: // 100 = XORI
		rdValue = xor32(rs1Value, imm)
	case 5: // 101 = SR~
		switch in.Funct7 { // top 7 bits select the shift type
		case riscv.Funct7Base: // 0000000 = SRLI
			rdValue = shr32(shamt, rs1Value)
		case riscv.Funct7Alt: // 0100000 = SRAI
			rdValue = sar32(shamt, rs1Value)
		default:
			m.unrecognized(in)
			return nil
		}
	case 6: // 110 = ORI
		rdValue = or32(rs1Value, imm)
	case 7: // 111 = ANDI
		rdValue = and32(rs1Value, imm)
	}
	m.state.writeRegister(in.Rd, rdValue)
	return nil
}

// 011_0011: register arithmetic and logic
func (m *InstrumentedState) execOp(in Instruction) {
	rs1Value := m.state.loadRegister(in.Rs1)
	rs2Value := m.state.loadRegister(in.Rs2)
	var rdValue uint32
	switch in.Funct7 {
	case riscv.Funct7Base:
		switch in.Funct3 {
		case 0: // 000 = ADD
			rdValue = add32(rs1Value, rs2Value)
		case 1: // 001 = SLL
			rdValue = shl32(rs2Value, rs1Value)
		case 2: // 010 = SLT
			rdValue = slt32(rs1Value, rs2Value)
		case 3: // 011 = SLTU
			rdValue = lt32(rs1Value, rs2Value)
		case 4: // 100 = XOR
			rdValue = xor32(rs1Value, rs2Value)
		case 5: // 101 = SRL
			rdValue = shr32(rs2Value, rs1Value) // logical: fill with zeroes
		case 6: // 110 = OR
			rdValue = or32(rs1Value, rs2Value)
		case 7: // 111 = AND
			rdValue = and32(rs1Value, rs2Value)
		}
	case riscv.Funct7Alt:
		switch in.Funct3 {
		case 0: // 000 = SUB
			rdValue = sub32(rs1Value, rs2Value)
		case 5: // 101 = SRA
			rdValue = sar32(rs2Value, rs1Value) // arithmetic: sign bit is extended
		default:
			m.unrecognized(in)
			return
		}
	default: // includes the M extension (funct7 = 1), which is not supported
		m.unrecognized(in)
		return
	}
	m.state.writeRegister(in.Rd, rdValue)
}

// 110_0011: branching
func (m *InstrumentedState) execBranch(in Instruction) (taken bool) {
	rs1Value := m.state.loadRegister(in.Rs1)
	rs2Value := m.state.loadRegister(in.Rs2)
	var branchHit uint32
	switch in.Funct3 {
	case 0: // 000 = BEQ
		branchHit = eq32(rs1Value, rs2Value)
	case 1: // 001 = BNE
		branchHit = eq32(rs1Value, rs2Value) ^ 1
	case 4: // 100 = BLT
		branchHit = slt32(rs1Value, rs2Value)
	case 5: // 101 = BGE
		branchHit = slt32(rs1Value, rs2Value) ^ 1
	case 6: // 110 = BLTU
		branchHit = lt32(rs1Value, rs2Value)
	case 7: // 111 = BGEU
		branchHit = lt32(rs1Value, rs2Value) ^ 1
	default:
		m.unrecognized(in)
		return false
	}
	if iszero32(branchHit) {
		return false
	}
	// imm is a signed offset, in multiples of 2 bytes.
	m.state.PC = add32(m.state.PC, in.Imm)
	return true
}

// 110_1111: JAL = Jump and link
func (m *InstrumentedState) execJAL(in Instruction) (bool, *Fault) {
	s := m.state
	link := add32(s.PC, riscv.InstrSize)
	if m.cfg.CallConvention && in.Rd == riscv.RegRA {
		// call: push a frame holding the return address
		sp := sub32(s.loadRegister(riscv.RegSP), riscv.CallFrameSize)
		if err := m.storeMem(sp, 4, link); err != nil {
			return false, &Fault{Code: memFaultCode(err, riscv.ErrStoreOutOfBounds), Err: fmt.Errorf("call frame push: %w", err)}
		}
		s.writeRegister(riscv.RegSP, sp)
	}
	s.writeRegister(in.Rd, link)
	s.PC = add32(s.PC, in.Imm)
	return true, nil
}

// 110_0111: JALR = Jump and link register
func (m *InstrumentedState) execJALR(in Instruction) (bool, *Fault) {
	s := m.state
	link := add32(s.PC, riscv.InstrSize)
	if m.cfg.CallConvention && in.Rs1 == riscv.RegRA {
		// return: pop the frame and jump to the saved return address
		sp := s.loadRegister(riscv.RegSP)
		ra, err := m.loadMem(sp, 4)
		if err != nil {
			return false, &Fault{Code: memFaultCode(err, riscv.ErrLoadOutOfBounds), Err: fmt.Errorf("call frame pop: %w", err)}
		}
		s.writeRegister(in.Rd, link)
		s.writeRegister(riscv.RegRA, ra)
		s.writeRegister(riscv.RegSP, add32(sp, riscv.CallFrameSize))
		s.PC = ra
		return true, nil
	}
	target := and32(add32(s.loadRegister(in.Rs1), in.Imm), ^uint32(1)) // least significant bit is set to 0
	s.writeRegister(in.Rd, link)
	s.PC = target
	return true, nil
}
