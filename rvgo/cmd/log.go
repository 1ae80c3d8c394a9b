package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/RasmusJin/risc-v-sim/rvgo/vm"
)

func Logger(w io.Writer, lvl slog.Level) log.Logger {
	return log.NewLogger(log.LogfmtHandlerWithLevel(w, lvl))
}

// loggerFromFlags builds the command logger on the app error writer.
func loggerFromFlags(ctx *cli.Context) (log.Logger, error) {
	lvl, err := ParseLevel(ctx.String(LogLevelFlag.Name))
	if err != nil {
		return nil, err
	}
	return Logger(ctx.App.ErrWriter, lvl), nil
}

// ParseLevel accepts the slog level names plus "trace" and "crit".
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return log.LevelTrace, nil
	case "crit":
		return log.LevelCrit, nil
	case "":
		return log.LevelInfo, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// LogRegisters writes the register file as a single record, one attribute per register.
func LogRegisters(l log.Logger, state *vm.VMState) {
	attrs := make([]any, 0, 2*len(state.Registers)+4)
	attrs = append(attrs, "pc", vm.HexU32(state.PC), "step", state.Step)
	for i, r := range state.Registers {
		attrs = append(attrs, fmt.Sprintf("x%d", i), vm.HexU32(r))
	}
	l.Info("registers", attrs...)
}
