package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"imefeed/internal/config"
)

func newConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show or create the configuration file",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format: toml, json, yaml or yml",
						Value: "toml",
						Validator: func(f string) error {
							if !slices.Contains(config.SupportedConfigFormats(), "."+strings.ToLower(f)) {
								return fmt.Errorf("unsupported format %q", f)
							}
							return nil
						},
					},
				},
				Action: runConfigShow,
			},
			{
				Name:  "init",
				Usage: "Write a default configuration file",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: runConfigInit,
			},
			{
				Name:   "path",
				Usage:  "Print the configuration file path",
				Action: runConfigPath,
			},
		},
		DefaultCommand: "show",
	}
}

func runConfigShow(_ context.Context, cmd *cli.Command) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := config.Encode(cfg, "."+cmd.String("format"))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	_, err = cmd.Root().Writer.Write(data)
	return err
}

func runConfigInit(_ context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "Wrote %s\n", filepath.Clean(path))
	return nil
}

func runConfigPath(_ context.Context, cmd *cli.Command) error {
	fmt.Fprintln(cmd.Root().Writer, cmd.String("config"))
	return nil
}
