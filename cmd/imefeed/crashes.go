package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"imefeed/internal/logging"
)

func newCrashesCommand() *cli.Command {
	return &cli.Command{
		Name:  "crashes",
		Usage: "List crash reports written by serve",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Crash report directory",
				Value: logging.DefaultCrashDir(),
			},
			&cli.BoolFlag{
				Name:  "stack",
				Usage: "Print the stack trace of the latest report",
			},
		},
		Action: runCrashes,
	}
}

func runCrashes(_ context.Context, cmd *cli.Command) error {
	h := logging.NewCrashHandler(&logging.CrashHandlerConfig{CrashDir: cmd.String("dir")})
	reports, err := h.Reports()
	if err != nil {
		return fmt.Errorf("read crash reports: %w", err)
	}
	out := cmd.Root().Writer
	if len(reports) == 0 {
		fmt.Fprintln(out, "No crash reports.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tVERSION\tCOMPONENT\tPANIC")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.Timestamp.Local().Format(time.DateTime),
			r.Version,
			r.Component,
			r.PanicValue,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if cmd.Bool("stack") {
		fmt.Fprintf(out, "\n%s\n", reports[len(reports)-1].StackTrace)
	}
	return nil
}
