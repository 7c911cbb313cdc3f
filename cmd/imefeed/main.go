// imefeed samples the IME and Caps Lock state of the focused window and
// streams it to one consumer over a local named pipe.
//
// Usage:
//
//	imefeed [serve]          Run the feed (default)
//	imefeed sample           Print one status line
//	imefeed watch            Attach to a running feed and print statuses
//	imefeed sessions         List recorded consumer sessions
//	imefeed config show      Print the effective configuration
//	imefeed config init      Write a default configuration file
//	imefeed version          Print version information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Set at build time with -ldflags "-X main.Version=...".
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
