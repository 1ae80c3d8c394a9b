package vm

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/RasmusJin/risc-v-sim/rvgo/riscv"
)

// Pages are only used for the JSON encoding: all-zero pages are omitted.
const (
	PageAddrSize = 12
	PageSize     = 1 << PageAddrSize
)

var (
	ErrOutOfBounds = errors.New("memory access out of bounds")
	ErrMisaligned  = errors.New("misaligned memory access")
)

// AlignmentPolicy decides how halfword and word data accesses at addresses
// that are not a multiple of the access size are handled. A misaligned
// halfword store is rejected under every policy.
type AlignmentPolicy uint8

const (
	// AlignStrict rejects any misaligned access with ErrMisaligned.
	AlignStrict AlignmentPolicy = iota
	// AlignSplit decomposes misaligned loads and word stores into single byte
	// accesses, little-endian.
	AlignSplit
)

func (p AlignmentPolicy) String() string {
	switch p {
	case AlignStrict:
		return "strict"
	case AlignSplit:
		return "split"
	default:
		return fmt.Sprintf("alignment(%d)", uint8(p))
	}
}

func (p AlignmentPolicy) MarshalText() ([]byte, error) {
	if p > AlignSplit {
		return nil, fmt.Errorf("unknown alignment policy %s", p)
	}
	return []byte(p.String()), nil
}

func (p *AlignmentPolicy) UnmarshalText(text []byte) error {
	v, err := ParseAlignmentPolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func ParseAlignmentPolicy(s string) (AlignmentPolicy, error) {
	switch strings.ToLower(s) {
	case "strict", "":
		return AlignStrict, nil
	case "split":
		return AlignSplit, nil
	default:
		return 0, fmt.Errorf("unknown alignment policy %q, expected strict or split", s)
	}
}

// checkMemorySize validates the capacity of an address space.
func checkMemorySize(size uint32) error {
	if size < riscv.InstrSize {
		return fmt.Errorf("memory size %d is too small to hold an instruction", size)
	}
	if size%riscv.InstrSize != 0 {
		return fmt.Errorf("memory size %d is not a multiple of %d", size, riscv.InstrSize)
	}
	if size > riscv.MaxMemorySize {
		return fmt.Errorf("memory size %d exceeds the maximum of %d", size, riscv.MaxMemorySize)
	}
	return nil
}

// Memory is a flat, byte-addressable, little-endian address space of fixed capacity.
type Memory struct {
	data   []byte
	policy AlignmentPolicy
}

func NewMemory(size uint32) *Memory {
	return &Memory{data: make([]byte, size)}
}

func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

func (m *Memory) SetAlignmentPolicy(p AlignmentPolicy) {
	m.policy = p
}

func (m *Memory) AlignmentPolicy() AlignmentPolicy {
	return m.policy
}

// check validates an access of size bytes at addr: all of addr..addr+size-1 must be in range.
func (m *Memory) check(addr uint32, size uint32, write bool) error {
	switch size {
	case 1, 2, 4:
	default:
		panic(fmt.Errorf("invalid memory access size: %d", size))
	}
	if uint64(addr)+uint64(size) > uint64(len(m.data)) {
		return fmt.Errorf("%w: %d bytes at %08x, capacity %08x", ErrOutOfBounds, size, addr, len(m.data))
	}
	if addr%size != 0 && (m.policy == AlignStrict || (write && size == 2)) {
		return fmt.Errorf("%w: %d bytes at %08x", ErrMisaligned, size, addr)
	}
	return nil
}

// Load reads a 1, 2 or 4 byte little-endian value, zero-extended to 32 bits.
func (m *Memory) Load(addr uint32, size uint32) (uint32, error) {
	if err := m.check(addr, size, false); err != nil {
		return 0, err
	}
	if addr%size != 0 {
		// split into byte reads
		var v uint32
		for i := uint32(0); i < size; i++ {
			v |= uint32(m.data[addr+i]) << (8 * i)
		}
		return v, nil
	}
	switch size {
	case 1:
		return uint32(m.data[addr]), nil
	case 2:
		return uint32(binary.LittleEndian.Uint16(m.data[addr:])), nil
	default:
		return binary.LittleEndian.Uint32(m.data[addr:]), nil
	}
}

// Store writes the low size bytes of value, little-endian.
// Nothing is written if the access is rejected.
func (m *Memory) Store(addr uint32, size uint32, value uint32) error {
	if err := m.check(addr, size, true); err != nil {
		return err
	}
	if addr%size != 0 {
		// split into byte writes
		for i := uint32(0); i < size; i++ {
			m.data[addr+i] = byte(value >> (8 * i))
		}
		return nil
	}
	switch size {
	case 1:
		m.data[addr] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(m.data[addr:], uint16(value))
	default:
		binary.LittleEndian.PutUint32(m.data[addr:], value)
	}
	return nil
}

func (m *Memory) Load8(addr uint32) (uint8, error) {
	v, err := m.Load(addr, 1)
	return uint8(v), err
}

func (m *Memory) Load16(addr uint32) (uint16, error) {
	v, err := m.Load(addr, 2)
	return uint16(v), err
}

func (m *Memory) Load32(addr uint32) (uint32, error) {
	return m.Load(addr, 4)
}

func (m *Memory) Store8(addr uint32, v uint8) error {
	return m.Store(addr, 1, uint32(v))
}

func (m *Memory) Store16(addr uint32, v uint16) error {
	return m.Store(addr, 2, uint32(v))
}

func (m *Memory) Store32(addr uint32, v uint32) error {
	return m.Store(addr, 4, v)
}

// SetRange copies the contents of r into memory starting at addr.
// Data past the end of memory is ignored. It returns the number of bytes copied.
func (m *Memory) SetRange(addr uint32, r io.Reader) (int, error) {
	if uint64(addr) > uint64(len(m.data)) {
		return 0, fmt.Errorf("%w: range start %08x, capacity %08x", ErrOutOfBounds, addr, len(m.data))
	}
	n, err := io.ReadFull(r, m.data[addr:])
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = nil
	}
	return n, err
}

// GetRange returns a copy of count bytes starting at addr.
func (m *Memory) GetRange(addr uint32, count uint32) ([]byte, error) {
	if uint64(addr)+uint64(count) > uint64(len(m.data)) {
		return nil, fmt.Errorf("%w: range %08x+%d, capacity %08x", ErrOutOfBounds, addr, count, len(m.data))
	}
	out := make([]byte, count)
	copy(out, m.data[addr:])
	return out, nil
}

// Hash is the Keccak-256 hash of the full memory contents.
func (m *Memory) Hash() common.Hash {
	return crypto.Keccak256Hash(m.data)
}

func (m *Memory) PageCount() int {
	return (len(m.data) + PageSize - 1) / PageSize
}

// Usage returns the number of pages holding at least one non-zero byte.
func (m *Memory) Usage() int {
	used := 0
	for i := 0; i < m.PageCount(); i++ {
		if !isZero(m.page(i)) {
			used++
		}
	}
	return used
}

func (m *Memory) page(i int) []byte {
	start := i * PageSize
	end := start + PageSize
	if end > len(m.data) {
		end = len(m.data)
	}
	return m.data[start:end]
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

type pageEntry struct {
	Index uint32        `json:"index"`
	Data  hexutil.Bytes `json:"data"`
}

type memoryJSON struct {
	Size      uint32          `json:"size"`
	Alignment AlignmentPolicy `json:"alignment"`
	Pages     []pageEntry     `json:"pages"`
}

func (m *Memory) MarshalJSON() ([]byte, error) {
	out := memoryJSON{Size: m.Size(), Alignment: m.policy, Pages: make([]pageEntry, 0)}
	for i := 0; i < m.PageCount(); i++ {
		p := m.page(i)
		if isZero(p) {
			continue
		}
		out.Pages = append(out.Pages, pageEntry{Index: uint32(i), Data: p})
	}
	return json.Marshal(out)
}

func (m *Memory) UnmarshalJSON(data []byte) error {
	var in memoryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if err := checkMemorySize(in.Size); err != nil {
		return fmt.Errorf("invalid memory: %w", err)
	}
	m.data = make([]byte, in.Size)
	m.policy = in.Alignment
	seen := make(map[uint32]struct{}, len(in.Pages))
	for i, p := range in.Pages {
		if _, ok := seen[p.Index]; ok {
			return fmt.Errorf("cannot load duplicate page, entry %d, page index %d", i, p.Index)
		}
		seen[p.Index] = struct{}{}
		start := uint64(p.Index) * PageSize
		if start+uint64(len(p.Data)) > uint64(in.Size) || len(p.Data) > PageSize {
			return fmt.Errorf("page %d (entry %d) of %d bytes does not fit in memory of size %d", p.Index, i, len(p.Data), in.Size)
		}
		copy(m.data[start:], p.Data)
	}
	return nil
}
