package vm

// Bit-field extraction. Fields are ignored by the caller if not applicable to the instruction format.

func parseOpcode(instr uint32) uint32 {
	return instr & 0x7F
}

func parseRd(instr uint32) uint32 {
	return (instr >> 7) & 0x1F
}

func parseFunct3(instr uint32) uint32 {
	return (instr >> 12) & 0x7
}

func parseRs1(instr uint32) uint32 {
	return (instr >> 15) & 0x1F
}

func parseRs2(instr uint32) uint32 {
	return (instr >> 20) & 0x1F
}

func parseFunct7(instr uint32) uint32 {
	return instr >> 25
}

// imm[11:0] = inst[31:20]
func parseImmTypeI(instr uint32) uint32 {
	return SignExtend(instr>>20, 12)
}

// imm[11:5] = inst[31:25], imm[4:0] = inst[11:7]
func parseImmTypeS(instr uint32) uint32 {
	return SignExtend((instr>>25)<<5|(instr>>7)&0x1F, 12)
}

// imm[12|10:5] = inst[31:25], imm[4:1|11] = inst[11:7]
func parseImmTypeB(instr uint32) uint32 {
	imm := (instr>>31)<<12 |
		((instr>>7)&1)<<11 |
		((instr>>25)&0x3F)<<5 |
		((instr>>8)&0xF)<<1
	return SignExtend(imm, 13)
}

// imm[31:12] = inst[31:12], already top-aligned
func parseImmTypeU(instr uint32) uint32 {
	return instr & 0xFFFF_F000
}

// imm[20|10:1|11|19:12] = inst[31:12]
func parseImmTypeJ(instr uint32) uint32 {
	imm := (instr>>31)<<20 |
		((instr>>21)&0x3FF)<<1 |
		((instr>>20)&1)<<11 |
		((instr>>12)&0xFF)<<12
	return SignExtend(imm, 21)
}
