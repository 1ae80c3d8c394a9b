package riscv

const (
	// MemorySize is the default capacity of the flat address space: 1 MiB.
	MemorySize = 1 << 20
	// MaxMemorySize bounds configured and restored address spaces: 1 GiB.
	MaxMemorySize = 1 << 30

	RegisterCount = 32
	InstrSize     = 4

	RegZero = 0
	RegRA   = 1
	RegSP   = 2

	// CallFrameSize is the stack frame pushed by the call/return overlay.
	CallFrameSize = 16
	StackAlign    = 16

	OpLoad   = 0x03 // 000_0011
	OpFence  = 0x0F // 000_1111
	OpImm    = 0x13 // 001_0011
	OpAUIPC  = 0x17 // 001_0111
	OpStore  = 0x23 // 010_0011
	OpReg    = 0x33 // 011_0011
	OpLUI    = 0x37 // 011_0111
	OpBranch = 0x63 // 110_0011
	OpJALR   = 0x67 // 110_0111
	OpJAL    = 0x6F // 110_1111
	OpSystem = 0x73 // 111_0011

	Funct7Base = 0x00
	Funct7Alt  = 0x20 // SUB, SRA, SRAI

	ErrFetchOutOfBounds = uint32(0xbad0fe7c)
	ErrLoadOutOfBounds  = uint32(0xbad010ad)
	ErrStoreOutOfBounds = uint32(0xbad05702)
	ErrNotAlignedAddr   = uint32(0xbad10ad0)
	ErrStackNotAligned  = uint32(0xbad05ac0)
)
