package main

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"imefeed/internal/ime"
)

func newSampleCommand() *cli.Command {
	return &cli.Command{
		Name:  "sample",
		Usage: "Query the input state once and print the wire line",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "human",
				Usage: "Print a readable status instead of the wire line",
			},
		},
		Action: runSample,
	}
}

func runSample(_ context.Context, cmd *cli.Command) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	provider, err := ime.NewProvider(cfg.ProviderConfig())
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}
	if c, ok := provider.(io.Closer); ok {
		defer c.Close()
	}

	status := ime.NewSampler(provider, ime.WithLogger(logger.WithComponent("ime"))).Sample()
	logger.Debug("sampled", "backend", provider.Name(), "status", status.String())
	if cmd.Bool("human") {
		fmt.Fprintf(cmd.Root().Writer, "%s (%s)\n", status, provider.Name())
		return nil
	}
	_, err = cmd.Root().Writer.Write(status.Line())
	return err
}
