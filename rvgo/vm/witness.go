package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// memory hash, pc, fault, exited, step, registers
const StateWitnessSize = 32 + 4 + 4 + 1 + 8 + 32*4

type StateWitness []byte

func (sw StateWitness) StateHash() (common.Hash, error) {
	if len(sw) != StateWitnessSize {
		return common.Hash{}, fmt.Errorf("invalid state witness length %d, expected %d", len(sw), StateWitnessSize)
	}
	return crypto.Keccak256Hash(sw), nil
}

func (state *VMState) EncodeWitness() StateWitness {
	out := make([]byte, 0, StateWitnessSize)
	memRoot := state.Memory.Hash()
	out = append(out, memRoot[:]...)
	out = binary.BigEndian.AppendUint32(out, state.PC)
	out = binary.BigEndian.AppendUint32(out, state.Fault)
	if state.Exited {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = binary.BigEndian.AppendUint64(out, state.Step)
	for _, r := range state.Registers {
		out = binary.BigEndian.AppendUint32(out, r)
	}
	return out
}

// MemAccess is a single memory access made while executing a step.
type MemAccess struct {
	Addr  HexU32 `json:"addr"`
	Size  uint32 `json:"size"`
	Value HexU32 `json:"value"`
	Write bool   `json:"write"`
}

type StepWitness struct {
	// encoded pre-state witness
	State StateWitness

	// instruction fetch, then data accesses, in execution order
	MemAccess []MemAccess
}

// HasMemAccess reports whether the step touched memory beyond the instruction fetch.
func (wit *StepWitness) HasMemAccess() bool {
	return len(wit.MemAccess) > 1
}

// EncodeMemAccess packs the accesses as addr, size, value (big-endian uint32s) and a write flag byte.
func (wit *StepWitness) EncodeMemAccess() hexutil.Bytes {
	out := make([]byte, 0, len(wit.MemAccess)*13)
	for _, a := range wit.MemAccess {
		out = binary.BigEndian.AppendUint32(out, uint32(a.Addr))
		out = binary.BigEndian.AppendUint32(out, a.Size)
		out = binary.BigEndian.AppendUint32(out, uint32(a.Value))
		if a.Write {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	}
	return out
}
