package vm

import (
	"fmt"

	"github.com/RasmusJin/risc-v-sim/rvgo/riscv"
)

// Class is the instruction class selected by the opcode.
type Class uint8

const (
	ClassUnknown Class = iota
	ClassLoad
	ClassStore
	ClassOpImm
	ClassOp
	ClassLUI
	ClassAUIPC
	ClassBranch
	ClassJAL
	ClassJALR
	ClassSystem
	ClassFence
)

var classNames = [...]string{
	ClassUnknown: "unknown",
	ClassLoad:    "load",
	ClassStore:   "store",
	ClassOpImm:   "op-imm",
	ClassOp:      "op",
	ClassLUI:     "lui",
	ClassAUIPC:   "auipc",
	ClassBranch:  "branch",
	ClassJAL:     "jal",
	ClassJALR:    "jalr",
	ClassSystem:  "system",
	ClassFence:   "fence",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// Instruction is a decoded instruction word. Imm holds the sign-extended
// immediate of the format used by Class, and is zero for R-type.
type Instruction struct {
	Raw    uint32
	Class  Class
	Opcode uint32
	Rd     uint32
	Rs1    uint32
	Rs2    uint32
	Funct3 uint32
	Funct7 uint32
	Imm    uint32
}

// Decode splits an instruction word into its fields.
func Decode(instr uint32) Instruction {
	in := Instruction{
		Raw:    instr,
		Opcode: parseOpcode(instr),
		Rd:     parseRd(instr),
		Rs1:    parseRs1(instr),
		Rs2:    parseRs2(instr),
		Funct3: parseFunct3(instr),
		Funct7: parseFunct7(instr),
	}
	switch in.Opcode {
	case riscv.OpLoad:
		in.Class = ClassLoad
		in.Imm = parseImmTypeI(instr)
	case riscv.OpStore:
		in.Class = ClassStore
		in.Imm = parseImmTypeS(instr)
	case riscv.OpImm:
		in.Class = ClassOpImm
		in.Imm = parseImmTypeI(instr)
	case riscv.OpReg:
		in.Class = ClassOp
	case riscv.OpLUI:
		in.Class = ClassLUI
		in.Imm = parseImmTypeU(instr)
	case riscv.OpAUIPC:
		in.Class = ClassAUIPC
		in.Imm = parseImmTypeU(instr)
	case riscv.OpBranch:
		in.Class = ClassBranch
		in.Imm = parseImmTypeB(instr)
	case riscv.OpJAL:
		in.Class = ClassJAL
		in.Imm = parseImmTypeJ(instr)
	case riscv.OpJALR:
		in.Class = ClassJALR
		in.Imm = parseImmTypeI(instr)
	case riscv.OpSystem:
		in.Class = ClassSystem
		in.Imm = parseImmTypeI(instr)
	case riscv.OpFence:
		in.Class = ClassFence
	default:
		in.Class = ClassUnknown
	}
	return in
}

// WritesRd reports whether executing the instruction may change register rd.
func (in Instruction) WritesRd() bool {
	switch in.Class {
	case ClassLoad, ClassOpImm, ClassOp, ClassLUI, ClassAUIPC, ClassJAL, ClassJALR:
		return in.Rd != riscv.RegZero
	default:
		return false
	}
}

// Mnemonic returns the assembler name of the instruction, or "" if the
// encoding is not recognized.
func (in Instruction) Mnemonic() string {
	switch in.Class {
	case ClassLoad:
		switch in.Funct3 {
		case 0:
			return "lb"
		case 1:
			return "lh"
		case 2:
			return "lw"
		case 4:
			return "lbu"
		case 5:
			return "lhu"
		}
	case ClassStore:
		switch in.Funct3 {
		case 0:
			return "sb"
		case 1:
			return "sh"
		case 2:
			return "sw"
		}
	case ClassOpImm:
		switch in.Funct3 {
		case 0:
			return "addi"
		case 1:
			if in.Funct7 == riscv.Funct7Base {
				return "slli"
			}
		case 2:
			return "slti"
		case 3:
			return "sltiu"
		case 4:
			return "xori"
		case 5:
			switch in.Funct7 {
			case riscv.Funct7Base:
				return "srli"
			case riscv.Funct7Alt:
				return "srai"
			}
		case 6:
			return "ori"
		case 7:
			return "andi"
		}
	case ClassOp:
		switch in.Funct7 {
		case riscv.Funct7Base:
			return [8]string{"add", "sll", "slt", "sltu", "xor", "srl", "or", "and"}[in.Funct3]
		case riscv.Funct7Alt:
			switch in.Funct3 {
			case 0:
				return "sub"
			case 5:
				return "sra"
			}
		}
	case ClassLUI:
		return "lui"
	case ClassAUIPC:
		return "auipc"
	case ClassBranch:
		switch in.Funct3 {
		case 0:
			return "beq"
		case 1:
			return "bne"
		case 4:
			return "blt"
		case 5:
			return "bge"
		case 6:
			return "bltu"
		case 7:
			return "bgeu"
		}
	case ClassJAL:
		return "jal"
	case ClassJALR:
		return "jalr"
	case ClassSystem:
		if in.Raw>>20 == 1 {
			return "ebreak"
		}
		return "ecall"
	case ClassFence:
		return "fence"
	}
	return ""
}

// String disassembles the instruction.
func (in Instruction) String() string {
	m := in.Mnemonic()
	if m == "" {
		return fmt.Sprintf("unknown(opcode=%#x funct3=%d funct7=%#x)", in.Opcode, in.Funct3, in.Funct7)
	}
	imm := int32(in.Imm)
	switch in.Class {
	case ClassLoad:
		return fmt.Sprintf("%s x%d, %d(x%d)", m, in.Rd, imm, in.Rs1)
	case ClassStore:
		return fmt.Sprintf("%s x%d, %d(x%d)", m, in.Rs2, imm, in.Rs1)
	case ClassOpImm:
		if in.Funct3 == 1 || in.Funct3 == 5 {
			return fmt.Sprintf("%s x%d, x%d, %d", m, in.Rd, in.Rs1, in.Rs2)
		}
		return fmt.Sprintf("%s x%d, x%d, %d", m, in.Rd, in.Rs1, imm)
	case ClassOp:
		return fmt.Sprintf("%s x%d, x%d, x%d", m, in.Rd, in.Rs1, in.Rs2)
	case ClassLUI, ClassAUIPC:
		return fmt.Sprintf("%s x%d, %#x", m, in.Rd, in.Imm>>12)
	case ClassBranch:
		return fmt.Sprintf("%s x%d, x%d, %d", m, in.Rs1, in.Rs2, imm)
	case ClassJAL:
		return fmt.Sprintf("%s x%d, %d", m, in.Rd, imm)
	case ClassJALR:
		return fmt.Sprintf("%s x%d, %d(x%d)", m, in.Rd, imm, in.Rs1)
	default:
		return m
	}
}
