package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/urfave/cli/v3"
)

func newVersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(_ context.Context, cmd *cli.Command) error {
			fmt.Fprintf(cmd.Root().Writer, "imefeed %s\n", Version)
			fmt.Fprintf(cmd.Root().Writer, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(cmd.Root().Writer, "  Platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(cmd.Root().Writer, "  Go version: %s\n", runtime.Version())
			return nil
		},
	}
}
