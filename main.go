package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/RasmusJin/risc-v-sim/rvgo/cmd"
)

func main() {
	app := cli.NewApp()
	app.Name = "rvsim"
	app.Usage = "RV32I instruction set simulator"
	app.Description = "Runs raw RV32I program images and dumps the final register file"
	app.Flags = []cli.Flag{
		cmd.LogLevelFlag,
	}
	app.Commands = []*cli.Command{
		cmd.LoadBinCommand,
		cmd.RunCommand,
		cmd.WitnessCommand,
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for {
			<-c
			cancel()
			fmt.Println("\r\nExiting...")
		}
	}()

	err := app.RunContext(ctx, os.Args)
	if err != nil {
		if errors.Is(err, ctx.Err()) {
			_, _ = fmt.Fprintf(os.Stderr, "command interrupted\n")
			os.Exit(130)
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}
