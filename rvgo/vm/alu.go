package vm

// 32-bit ALU primitives. Shift helpers take the shift amount first.

// SignExtend treats the low bits of v as a two's-complement value and widens it to 32 bits.
func SignExtend(v uint32, bits uint) uint32 {
	shift := 32 - bits
	return uint32(int32(v<<shift) >> shift)
}

func add32(x, y uint32) uint32 {
	return x + y
}

func sub32(x, y uint32) uint32 {
	return x - y
}

func and32(x, y uint32) uint32 {
	return x & y
}

func or32(x, y uint32) uint32 {
	return x | y
}

func xor32(x, y uint32) uint32 {
	return x ^ y
}

// only the low 5 bits of the shift amount are considered in RV32I
func shl32(shamt, x uint32) uint32 {
	return x << (shamt & 0x1F)
}

func shr32(shamt, x uint32) uint32 {
	return x >> (shamt & 0x1F)
}

func sar32(shamt, x uint32) uint32 {
	return uint32(int32(x) >> (shamt & 0x1F))
}

func eq32(x, y uint32) uint32 {
	if x == y {
		return 1
	}
	return 0
}

func lt32(x, y uint32) uint32 {
	if x < y {
		return 1
	}
	return 0
}

func slt32(x, y uint32) uint32 {
	if int32(x) < int32(y) {
		return 1
	}
	return 0
}

func iszero32(v uint32) bool {
	return v == 0
}
