package vm

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RasmusJin/risc-v-sim/rvgo/riscv"
)

func TestRegisterDump(t *testing.T) {
	state := NewVMState(testConfig())
	for i := range state.Registers {
		state.Registers[i] = uint32(i) * 0x01010101
	}
	state.Registers[31] = 0xCAFEBABE

	var buf bytes.Buffer
	require.NoError(t, state.WriteRegisters(&buf))
	require.Equal(t, 4*riscv.RegisterCount, buf.Len())
	dump := buf.Bytes()
	require.Equal(t, []byte{0, 0, 0, 0}, dump[0:4])
	require.Equal(t, []byte{1, 1, 1, 1}, dump[4:8])
	require.Equal(t, []byte{0xBE, 0xBA, 0xFE, 0xCA}, dump[124:128])

	regs, err := ReadRegisters(bytes.NewReader(dump))
	require.NoError(t, err)
	require.Equal(t, state.Registers, regs)

	_, err = ReadRegisters(bytes.NewReader(dump[:100]))
	require.Error(t, err)
}

func TestRegisterDumpAfterRun(t *testing.T) {
	img := []byte{
		0x13, 0x05, 0x10, 0x00, // addi x10, x0, 1
		0x73, 0x00, 0x00, 0x00, // ecall
	}
	state, n, err := LoadImage(bytes.NewReader(img), testConfig())
	require.NoError(t, err)
	require.Equal(t, len(img), n)
	us := NewInstrumentedState(state, testConfig(), nil)
	steps(t, us, 2)
	require.True(t, state.Exited)

	path := filepath.Join(t.TempDir(), "output.bin")
	require.NoError(t, state.WriteRegistersFile(path, 0o644))
	dump, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, dump, 128)
	require.Equal(t, uint32(1), binary.LittleEndian.Uint32(dump[40:44]))
	for i := 0; i < 32; i++ {
		if i != 10 {
			require.Zero(t, binary.LittleEndian.Uint32(dump[i*4:]), "x%d", i)
		}
	}
}

func TestLoadImage(t *testing.T) {
	cfg := testConfig()
	cfg.MemorySize = 8
	state, n, err := LoadImage(bytes.NewReader(bytes.Repeat([]byte{0xAB}, 12)), cfg)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, uint32(8), state.Memory.Size())
	require.Equal(t, uint32(0), state.PC)
	require.False(t, state.Exited)

	cfg.MemorySize = 6
	_, _, err = LoadImage(bytes.NewReader(nil), cfg)
	require.ErrorContains(t, err, "invalid config")

	_, _, err = LoadImageFile(filepath.Join(t.TempDir(), "missing.bin"), testConfig())
	require.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "prog.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x93, 0x00, 0x10, 0x00}, 0o644))
	state, n, err = LoadImageFile(path, testConfig())
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, uint32(0x00100093), state.Instr())
}

func TestNewVMState(t *testing.T) {
	cfg := testConfig()
	state := NewVMState(cfg)
	require.Zero(t, state.Registers[riscv.RegSP])
	require.True(t, state.Running())

	cfg.InitStackPointer = true
	cfg.Alignment = AlignSplit
	state = NewVMState(cfg)
	require.Equal(t, cfg.MemorySize, state.Registers[riscv.RegSP])
	require.Equal(t, AlignSplit, state.Memory.AlignmentPolicy())

	state.PC = cfg.MemorySize
	require.Zero(t, state.Instr())
}

func TestConfigCheck(t *testing.T) {
	require.NoError(t, DefaultConfig().Check())
	require.Equal(t, uint32(riscv.MemorySize), DefaultConfig().MemorySize)

	cfg := DefaultConfig()
	cfg.MemorySize = 0
	require.Error(t, cfg.Check())
	cfg.MemorySize = 4097
	require.Error(t, cfg.Check())
	cfg.MemorySize = riscv.MaxMemorySize + 4
	require.ErrorContains(t, cfg.Check(), "exceeds the maximum")
	cfg = DefaultConfig()
	cfg.Alignment = AlignmentPolicy(7)
	require.Error(t, cfg.Check())
}

func TestStateWitness(t *testing.T) {
	state := NewVMState(testConfig())
	wit := state.EncodeWitness()
	require.Len(t, wit, StateWitnessSize)
	require.Equal(t, wit, NewVMState(testConfig()).EncodeWitness(), "encoding is deterministic")

	h1, err := wit.StateHash()
	require.NoError(t, err)

	state.Registers[5] = 1
	h2, err := state.EncodeWitness().StateHash()
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)

	state.Registers[5] = 0
	require.NoError(t, state.Memory.Store8(0x40, 1))
	h3, err := state.EncodeWitness().StateHash()
	require.NoError(t, err)
	require.NotEqual(t, h1, h3)

	_, err = StateWitness(wit[:10]).StateHash()
	require.Error(t, err)
}

func TestStateJSON(t *testing.T) {
	cfg := testConfig()
	us := newTestVM(t, cfg, addi(1, 0, 42), encS(2, 0, 1, 0x100), ecall)
	steps(t, us, 3)
	state := us.State()

	dat, err := json.Marshal(state)
	require.NoError(t, err)
	var out VMState
	require.NoError(t, json.Unmarshal(dat, &out))
	require.Equal(t, state.PC, out.PC)
	require.Equal(t, state.Exited, out.Exited)
	require.Equal(t, state.Step, out.Step)
	require.Equal(t, state.Fault, out.Fault)
	require.Equal(t, state.Registers, out.Registers)
	require.Equal(t, state.Memory.Hash(), out.Memory.Hash())
	require.Equal(t, state.EncodeWitness(), out.EncodeWitness())
}

func TestHexU32(t *testing.T) {
	v := HexU32(0xbad010ad)
	require.Equal(t, "bad010ad", v.String())
	txt, err := v.MarshalText()
	require.NoError(t, err)
	var out HexU32
	require.NoError(t, out.UnmarshalText(txt))
	require.Equal(t, v, out)
	require.Error(t, out.UnmarshalText([]byte("xyz")))
}
