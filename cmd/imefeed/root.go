package main

import (
	"fmt"

	"github.com/urfave/cli/v3"

	"imefeed/internal/config"
	"imefeed/internal/logging"
)

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:    "imefeed",
		Usage:   "Stream IME and Caps Lock state over a named pipe",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			newServeCommand(),
			newSampleCommand(),
			newWatchCommand(),
			newSessionsCommand(),
			newCrashesCommand(),
			newConfigCommand(),
			newVersionCommand(),
		},
		DefaultCommand: "serve",
	}
}

// loadConfig reads the file named by --config.
func loadConfig(cmd *cli.Command) (*config.Loader, *config.Config, error) {
	loader := config.NewLoader(cmd.String("config"))
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return loader, cfg, nil
}

// newLogger builds the logger from cfg, honoring --debug, and installs it
// as the default.
func newLogger(cmd *cli.Command, cfg *config.Config) (*logging.Logger, error) {
	lc := cfg.LoggerConfig()
	if cmd.Bool("debug") {
		lc.Level = logging.LevelDebug
	}
	logger, err := logging.New(lc)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	logging.SetDefault(logger)
	return logger, nil
}
