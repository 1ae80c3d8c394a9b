package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/RasmusJin/risc-v-sim/rvgo/vm"
)

type StepMatcher func(st *vm.VMState) bool

// StepMatcherFlag parses "never", "always", "=N" (exactly step N) and "%N" (every N steps).
type StepMatcherFlag struct {
	repr    string
	matcher StepMatcher
}

var _ cli.Generic = (*StepMatcherFlag)(nil)

func MustStepMatcherFlag(pattern string) *StepMatcherFlag {
	out := new(StepMatcherFlag)
	if err := out.Set(pattern); err != nil {
		panic(err)
	}
	return out
}

func (m *StepMatcherFlag) Set(value string) error {
	m.repr = value
	switch {
	case value == "" || value == "never":
		m.matcher = func(st *vm.VMState) bool {
			return false
		}
	case value == "always":
		m.matcher = func(st *vm.VMState) bool {
			return true
		}
	case strings.HasPrefix(value, "="):
		when, err := strconv.ParseUint(value[1:], 0, 64)
		if err != nil {
			return fmt.Errorf("failed to parse step number: %w", err)
		}
		m.matcher = func(st *vm.VMState) bool {
			return st.Step == when
		}
	case strings.HasPrefix(value, "%"):
		when, err := strconv.ParseUint(value[1:], 0, 64)
		if err != nil {
			return fmt.Errorf("failed to parse step interval number: %w", err)
		}
		if when == 0 {
			return fmt.Errorf("step interval must not be zero")
		}
		m.matcher = func(st *vm.VMState) bool {
			return st.Step%when == 0
		}
	default:
		return fmt.Errorf("unrecognized step matcher: %q", value)
	}
	return nil
}

func (m *StepMatcherFlag) String() string {
	return m.repr
}

func (m *StepMatcherFlag) Matcher() StepMatcher {
	if m.matcher == nil { // Set(value) is not called for omitted inputs, default to never matching.
		return func(st *vm.VMState) bool {
			return false
		}
	}
	return m.matcher
}
