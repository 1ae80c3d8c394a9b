package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/op-service/jsonutil"

	"github.com/RasmusJin/risc-v-sim/rvgo/vm"
)

func LoadBin(ctx *cli.Context) error {
	cfg, err := configFromFlags(ctx)
	if err != nil {
		return err
	}
	l, err := loggerFromFlags(ctx)
	if err != nil {
		return err
	}
	binPath := ctx.Path(LoadBinPathFlag.Name)
	state, n, err := vm.LoadImageFile(binPath, cfg)
	if err != nil {
		return fmt.Errorf("failed to load program image: %w", err)
	}
	if fi, err := os.Stat(binPath); err == nil && fi.Size() > int64(n) {
		l.Warn("image truncated to memory size", "path", binPath, "size", fi.Size(), "loaded", n)
	}
	l.Info("loaded image", "path", binPath, "bytes", n, "memory", state.Memory.Size(), "pages", state.Memory.Usage())
	out := ctx.Path(LoadBinOutFlag.Name)
	if out == "" {
		return nil
	}
	if err := jsonutil.WriteJSON(out, state, OutFilePerm); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

var LoadBinCommand = &cli.Command{
	Name:        "load-bin",
	Usage:       "Load a raw program image into a JSON VM state",
	Description: "Load a raw RV32I program image into a JSON VM state, placed at address 0 with PC 0 and all registers zero",
	Action:      LoadBin,
	Flags: []cli.Flag{
		LoadBinPathFlag,
		LoadBinOutFlag,
		RunMemorySizeFlag,
		RunInitSPFlag,
	},
}
