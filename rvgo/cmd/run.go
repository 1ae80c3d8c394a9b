package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/pkg/profile"

	"github.com/ethereum-optimism/optimism/op-service/jsonutil"

	"github.com/RasmusJin/risc-v-sim/rvgo/vm"
)

type Proof struct {
	Step uint64 `json:"step"`

	Pre  common.Hash `json:"pre"`
	Post common.Hash `json:"post"`

	StateData hexutil.Bytes `json:"state-data"`
	ProofData hexutil.Bytes `json:"proof-data"`

	MemAccess []vm.MemAccess `json:"mem-access"`
}

var OutFilePerm = os.FileMode(0o644)

// loadState reads the starting state: a JSON state when --state is set, a raw image otherwise.
// A restored state keeps its saved alignment policy unless --alignment is given.
func loadState(ctx *cli.Context, cfg *vm.Config, l log.Logger) (*vm.VMState, error) {
	statePath := ctx.Path(RunStateFlag.Name)
	inputPath := ctx.Path(RunInputFlag.Name)
	switch {
	case statePath != "" && inputPath != "":
		return nil, fmt.Errorf("--%s and --%s are mutually exclusive", RunStateFlag.Name, RunInputFlag.Name)
	case statePath != "":
		state, err := jsonutil.LoadJSON[vm.VMState](statePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load state: %w", err)
		}
		if state.Memory == nil {
			return nil, fmt.Errorf("state %q has no memory", statePath)
		}
		if saved := state.Memory.AlignmentPolicy(); !ctx.IsSet(RunAlignmentFlag.Name) {
			cfg.Alignment = saved
		} else if saved != cfg.Alignment {
			l.Warn("alignment policy differs from the saved state", "saved", saved, "using", cfg.Alignment)
		}
		l.Info("loaded state", "path", statePath, "step", state.Step, "pc", vm.HexU32(state.PC), "memory", state.Memory.Size(), "alignment", cfg.Alignment)
		return state, nil
	case inputPath != "":
		state, n, err := vm.LoadImageFile(inputPath, *cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load program image: %w", err)
		}
		l.Info("loaded image", "path", inputPath, "bytes", n, "memory", state.Memory.Size())
		return state, nil
	default:
		return nil, errors.New("no program: --input or --state is required")
	}
}

func Run(ctx *cli.Context) error {
	if ctx.Bool(RunPProfCPU.Name) {
		defer profile.Start(profile.NoShutdownHook, profile.ProfilePath("."), profile.CPUProfile).Stop()
	}

	l, err := loggerFromFlags(ctx)
	if err != nil {
		return err
	}
	cfg, err := configFromFlags(ctx)
	if err != nil {
		return err
	}
	state, err := loadState(ctx, &cfg, l)
	if err != nil {
		return err
	}

	stopAt := ctx.Generic(RunStopAtFlag.Name).(*StepMatcherFlag).Matcher()
	proofAt := ctx.Generic(RunProofAtFlag.Name).(*StepMatcherFlag).Matcher()
	snapshotAt := ctx.Generic(RunSnapshotAtFlag.Name).(*StepMatcherFlag).Matcher()
	infoAt := ctx.Generic(RunInfoAtFlag.Name).(*StepMatcherFlag).Matcher()
	maxSteps := ctx.Uint64(RunMaxStepsFlag.Name)

	us := vm.NewInstrumentedState(state, cfg, l)
	proofFmt := ctx.String(RunProofFmtFlag.Name)
	snapshotFmt := ctx.String(RunSnapshotFmtFlag.Name)

	start := time.Now()
	startStep := state.Step

	for !state.Exited {
		if state.Step%100 == 0 { // don't do the ctx err check (includes lock) too often
			if err := ctx.Context.Err(); err != nil {
				return err
			}
		}

		step := state.Step

		if infoAt(state) {
			delta := time.Since(start)
			l.Info("processing",
				"step", step,
				"pc", vm.HexU32(state.PC),
				"insn", vm.HexU32(state.Instr()),
				"asm", vm.Decode(state.Instr()),
				"ips", float64(step-startStep)/(float64(delta)/float64(time.Second)),
				"pages", state.Memory.PageCount(),
				"mem", state.Memory.Usage(),
			)
		}

		if stopAt(state) {
			l.Info("stopping at step", "step", step)
			break
		}
		if maxSteps != 0 && step-startStep >= maxSteps {
			l.Warn("step limit reached", "steps", maxSteps, "pc", vm.HexU32(state.PC))
			break
		}

		if snapshotAt(state) {
			if err := jsonutil.WriteJSON(fmt.Sprintf(snapshotFmt, step), state, OutFilePerm); err != nil {
				return fmt.Errorf("failed to write state snapshot: %w", err)
			}
		}

		if proofAt(state) {
			witness, err := us.Step(true)
			if err != nil {
				return fmt.Errorf("failed at proof-gen step %d (PC: %08x): %w", step, state.PC, err)
			}
			preStateHash, err := witness.State.StateHash()
			if err != nil {
				return fmt.Errorf("failed to hash prestate witness: %w", err)
			}
			postStateHash, err := state.EncodeWitness().StateHash()
			if err != nil {
				return fmt.Errorf("failed to hash poststate witness: %w", err)
			}
			proof := &Proof{
				Step:      step,
				Pre:       preStateHash,
				Post:      postStateHash,
				StateData: hexutil.Bytes(witness.State),
				ProofData: witness.EncodeMemAccess(),
				MemAccess: witness.MemAccess,
			}
			if err := jsonutil.WriteJSON(fmt.Sprintf(proofFmt, step), proof, OutFilePerm); err != nil {
				return fmt.Errorf("failed to write proof data: %w", err)
			}
		} else {
			_, err = us.Step(false)
			if err != nil {
				return fmt.Errorf("failed at step %d (PC: %08x): %w", step, state.PC, err)
			}
		}
	}

	switch {
	case us.LastFault() != nil:
		l.Error("program faulted", "step", state.Step, "err", us.LastFault())
		l.Debug("fault detail", "insn", vm.Decode(us.LastFault().Instr), "dump", spew.Sdump(us.LastFault()))
	case state.Exited && state.Fault != 0:
		l.Error("program faulted", "step", state.Step, "pc", vm.HexU32(state.PC), "code", vm.HexU32(state.Fault))
	case state.Exited:
		l.Info("program exited", "step", state.Step, "pc", vm.HexU32(state.PC))
	}
	LogRegisters(l, state)

	if out := ctx.Path(RunOutputFlag.Name); out != "" {
		if err := state.WriteRegistersFile(out, OutFilePerm); err != nil {
			return err
		}
	}
	if out := ctx.Path(RunStateOutputFlag.Name); out != "" {
		if err := jsonutil.WriteJSON(out, state, OutFilePerm); err != nil {
			return fmt.Errorf("failed to write state output: %w", err)
		}
	}
	return nil
}

var RunCommand = &cli.Command{
	Name:        "run",
	Usage:       "Run an RV32I program until it halts",
	Description: "Run an RV32I program until it halts, then dump the register file. See flags to match when to output a proof, a snapshot, or to stop early.",
	Action:      Run,
	Flags: []cli.Flag{
		RunInputFlag,
		RunStateFlag,
		RunOutputFlag,
		RunStateOutputFlag,
		RunMaxStepsFlag,
		RunProofAtFlag,
		RunProofFmtFlag,
		RunSnapshotAtFlag,
		RunSnapshotFmtFlag,
		RunStopAtFlag,
		RunInfoAtFlag,
		RunAlignmentFlag,
		RunCallConventionFlag,
		RunAUIPCFlag,
		RunInitSPFlag,
		RunMemorySizeFlag,
		RunPProfCPU,
	},
}
