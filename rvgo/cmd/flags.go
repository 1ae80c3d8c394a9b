package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/RasmusJin/risc-v-sim/rvgo/riscv"
	"github.com/RasmusJin/risc-v-sim/rvgo/vm"
)

const envPrefix = "RVSIM_"

func prefixEnvVars(name string) []string {
	return []string{envPrefix + name}
}

var (
	LogLevelFlag = &cli.StringFlag{
		Name:    "log.level",
		Usage:   "The lowest log level that will be output: trace, debug, info, warn, error or crit",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Value:   "info",
	}

	LoadBinPathFlag = &cli.PathFlag{
		Name:      "path",
		Usage:     "Path to the raw RV32I program image, loaded at address 0",
		TakesFile: true,
		Required:  true,
	}
	LoadBinOutFlag = &cli.PathFlag{
		Name:     "out",
		Usage:    "Output path to write JSON state to. Not written if empty.",
		Value:    "state.json",
		Required: false,
	}

	RunInputFlag = &cli.PathFlag{
		Name:      "input",
		Usage:     "Path of the raw program image to run",
		EnvVars:   prefixEnvVars("INPUT"),
		TakesFile: true,
	}
	RunStateFlag = &cli.PathFlag{
		Name:      "state",
		Usage:     "Path of a JSON state to resume from, instead of a raw image",
		EnvVars:   prefixEnvVars("STATE"),
		TakesFile: true,
	}
	RunOutputFlag = &cli.PathFlag{
		Name:    "output",
		Usage:   "Path of the binary register dump written when the run ends. Not written if empty.",
		EnvVars: prefixEnvVars("OUTPUT"),
		Value:   "output.bin",
	}
	RunStateOutputFlag = &cli.PathFlag{
		Name:    "state.output",
		Usage:   "Path of the JSON state written when the run ends. Not written if empty.",
		EnvVars: prefixEnvVars("STATE_OUTPUT"),
	}
	RunMaxStepsFlag = &cli.Uint64Flag{
		Name:    "max-steps",
		Usage:   "Stop after this many steps, 0 for no limit",
		EnvVars: prefixEnvVars("MAX_STEPS"),
	}
	RunProofAtFlag = &cli.GenericFlag{
		Name:    "proof-at",
		Usage:   "step pattern to output proof at: 'never' (default), 'always', '=123' at exactly step 123, '%123' for every 123 steps",
		EnvVars: prefixEnvVars("PROOF_AT"),
		Value:   MustStepMatcherFlag("never"),
	}
	RunProofFmtFlag = &cli.StringFlag{
		Name:    "proof-fmt",
		Usage:   "format for proof data output file names.",
		EnvVars: prefixEnvVars("PROOF_FMT"),
		Value:   "proof-%d.json",
	}
	RunSnapshotAtFlag = &cli.GenericFlag{
		Name:    "snapshot-at",
		Usage:   "step pattern to output snapshots at: 'never' (default), 'always', '=123' at exactly step 123, '%123' for every 123 steps",
		EnvVars: prefixEnvVars("SNAPSHOT_AT"),
		Value:   MustStepMatcherFlag("never"),
	}
	RunSnapshotFmtFlag = &cli.StringFlag{
		Name:    "snapshot-fmt",
		Usage:   "format for snapshot output file names.",
		EnvVars: prefixEnvVars("SNAPSHOT_FMT"),
		Value:   "state-%d.json",
	}
	RunStopAtFlag = &cli.GenericFlag{
		Name:    "stop-at",
		Usage:   "step pattern to stop at: 'never' (default), 'always', '=123' at exactly step 123, '%123' for every 123 steps",
		EnvVars: prefixEnvVars("STOP_AT"),
		Value:   MustStepMatcherFlag("never"),
	}
	RunInfoAtFlag = &cli.GenericFlag{
		Name:    "info-at",
		Usage:   "step pattern to print info at: 'never', 'always', '=123' at exactly step 123, '%123' for every 123 steps (default '%100000')",
		EnvVars: prefixEnvVars("INFO_AT"),
		Value:   MustStepMatcherFlag("%100000"),
	}
	RunAlignmentFlag = &cli.StringFlag{
		Name:    "alignment",
		Usage:   "Handling of misaligned loads and stores: 'strict' faults, 'split' falls back to byte accesses for loads and word stores (halfword stores always fault). Defaults to the saved policy when resuming from --state",
		EnvVars: prefixEnvVars("ALIGNMENT"),
		Value:   vm.AlignStrict.String(),
	}
	RunCallConventionFlag = &cli.BoolFlag{
		Name:    "abi-emulation",
		Usage:   "Emulate call frames: JAL with rd=ra pushes ra on the stack, JALR with rs1=ra pops it, sp must stay 16-byte aligned",
		EnvVars: prefixEnvVars("ABI_EMULATION"),
	}
	RunAUIPCFlag = &cli.BoolFlag{
		Name:    "auipc",
		Usage:   "Execute AUIPC (opcode 0x17) instead of treating it as an unrecognized no-op",
		EnvVars: prefixEnvVars("AUIPC"),
	}
	RunInitSPFlag = &cli.BoolFlag{
		Name:    "init-sp",
		Usage:   "Set sp (x2) to the top of memory before the first step",
		EnvVars: prefixEnvVars("INIT_SP"),
	}
	RunMemorySizeFlag = &cli.UintFlag{
		Name:    "memory-size",
		Usage:   "Size of the address space in bytes, ignored when resuming from a JSON state",
		EnvVars: prefixEnvVars("MEMORY_SIZE"),
		Value:   riscv.MemorySize,
	}
	RunPProfCPU = &cli.BoolFlag{
		Name:    "pprof.cpu",
		Usage:   "enable pprof cpu profiling",
		EnvVars: prefixEnvVars("PPROF_CPU"),
	}

	WitnessInputFlag = &cli.PathFlag{
		Name:      "input",
		Usage:     "path of input JSON state.",
		TakesFile: true,
		Required:  true,
	}
	WitnessOutputFlag = &cli.PathFlag{
		Name:      "output",
		Usage:     "path to write the witness JSON to. Not written if empty.",
		TakesFile: true,
	}
)

// configFromFlags collects the machine configuration of the run command.
func configFromFlags(ctx *cli.Context) (vm.Config, error) {
	alignment, err := vm.ParseAlignmentPolicy(ctx.String(RunAlignmentFlag.Name))
	if err != nil {
		return vm.Config{}, err
	}
	memSize := ctx.Uint(RunMemorySizeFlag.Name)
	if uint64(memSize) > riscv.MaxMemorySize {
		return vm.Config{}, fmt.Errorf("memory size %d exceeds the maximum of %d", memSize, riscv.MaxMemorySize)
	}
	cfg := vm.Config{
		MemorySize:       uint32(memSize),
		Alignment:        alignment,
		CallConvention:   ctx.Bool(RunCallConventionFlag.Name),
		AUIPC:            ctx.Bool(RunAUIPCFlag.Name),
		InitStackPointer: ctx.Bool(RunInitSPFlag.Name),
	}
	if err := cfg.Check(); err != nil {
		return vm.Config{}, err
	}
	return cfg, nil
}
