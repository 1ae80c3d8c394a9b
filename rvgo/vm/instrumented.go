package vm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
)

var ErrStepLimit = errors.New("step limit reached")

// InstrumentedState runs the fetch-execute loop over a VMState, with optional
// memory-access tracking for step witnesses and per-step trace logging.
type InstrumentedState struct {
	state *VMState
	cfg   Config
	log   log.Logger

	memAccessEnabled bool
	memAccess        []MemAccess

	lastFault *Fault
}

func NewInstrumentedState(state *VMState, cfg Config, l log.Logger) *InstrumentedState {
	if l == nil {
		l = log.Root()
	}
	state.Memory.SetAlignmentPolicy(cfg.Alignment)
	return &InstrumentedState{
		state: state,
		cfg:   cfg,
		log:   l,
	}
}

func (m *InstrumentedState) State() *VMState {
	return m.state
}

// LastFault returns the fault that halted the machine, or nil.
func (m *InstrumentedState) LastFault() *Fault {
	return m.lastFault
}

// Step runs a single instruction. With proof enabled, the returned witness holds
// the pre-state and every memory access of the step.
// Note: faults are not returned as errors, they halt the machine; errors are only
// returned for internal failures.
func (m *InstrumentedState) Step(proof bool) (wit *StepWitness, err error) {
	m.memAccessEnabled = proof
	m.memAccess = m.memAccess[:0]

	if proof {
		wit = &StepWitness{
			State: m.state.EncodeWitness(), // we need the pre-state as wit-ness
		}
	}

	err = m.riscvStep()

	if proof {
		wit.MemAccess = append(make([]MemAccess, 0, len(m.memAccess)), m.memAccess...)
	}
	return
}

// Run steps until the machine halts. A zero maxSteps means no limit.
func (m *InstrumentedState) Run(ctx context.Context, maxSteps uint64) error {
	start := m.state.Step
	for !m.state.Exited {
		if m.state.Step%100 == 0 { // don't do the ctx err check too often
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if maxSteps != 0 && m.state.Step-start >= maxSteps {
			return fmt.Errorf("%w: %d steps, pc %08x", ErrStepLimit, maxSteps, m.state.PC)
		}
		if _, err := m.Step(false); err != nil {
			return fmt.Errorf("failed at step %d (PC: %08x): %w", m.state.Step, m.state.PC, err)
		}
	}
	return nil
}

func (m *InstrumentedState) loadMem(addr uint32, size uint32) (uint32, error) {
	v, err := m.state.Memory.Load(addr, size)
	if err != nil {
		return 0, err
	}
	m.trackMemAccess(addr, size, v, false)
	return v, nil
}

func (m *InstrumentedState) storeMem(addr uint32, size uint32, v uint32) error {
	if err := m.state.Memory.Store(addr, size, v); err != nil {
		return err
	}
	m.trackMemAccess(addr, size, v, true)
	return nil
}

func (m *InstrumentedState) trackMemAccess(addr uint32, size uint32, v uint32, write bool) {
	if !m.memAccessEnabled {
		return
	}
	m.memAccess = append(m.memAccess, MemAccess{Addr: HexU32(addr), Size: size, Value: HexU32(v), Write: write})
}
