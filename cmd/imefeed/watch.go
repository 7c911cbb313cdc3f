package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v3"

	"imefeed/internal/ime"
	"imefeed/internal/ipc"
)

// reconnectDelay is the wait between attempts while no feed is running.
const reconnectDelay = time.Second

func newWatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Attach to a running feed and print status changes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "pipe",
				Usage: "Pipe name (defaults to the configured one)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Print every status line, not only changes",
			},
		},
		Action: runWatch,
	}
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	name := cfg.Pipe.Name
	if cmd.IsSet("pipe") {
		name = cmd.String("pipe")
	}

	w := &watcher{
		name:  name,
		out:   cmd.Root().Writer,
		all:   cmd.Bool("all"),
		retry: reconnectDelay,
	}
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// watcher is the consumer side of the feed. It reconnects whenever the
// feed goes away.
type watcher struct {
	name  string
	out   io.Writer
	all   bool
	retry time.Duration

	last *ime.InputStatus
}

// Run attaches and prints until ctx is done.
func (w *watcher) Run(ctx context.Context) error {
	waiting := false
	for {
		conn, err := ipc.Dial(ctx, w.name)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !errors.Is(err, ipc.ErrNoEndpoint) {
				return err
			}
			if !waiting {
				fmt.Fprintf(w.out, "waiting for %s\n", ipc.PipePath(w.name))
				waiting = true
			}
			if err := sleepCtx(ctx, w.retry); err != nil {
				return err
			}
			continue
		}

		waiting = false
		fmt.Fprintf(w.out, "connected to %s\n", ipc.PipePath(w.name))
		err = w.read(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprintf(w.out, "disconnected: %v\n", err)
		w.last = nil
	}
}

func (w *watcher) read(ctx context.Context, conn io.ReadCloser) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	buf := make([]byte, ipc.MinBufferSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		for _, line := range bytes.Split(bytes.TrimRight(buf[:n], "\n"), []byte("\n")) {
			if len(line) == 0 {
				continue
			}
			status, err := ime.ParseLine(string(line))
			if err != nil {
				fmt.Fprintf(w.out, "skipping: %v\n", err)
				continue
			}
			w.print(status)
		}
	}
}

func (w *watcher) print(s ime.InputStatus) {
	if !w.all && w.last != nil && *w.last == s {
		return
	}
	w.last = &s
	fmt.Fprintf(w.out, "%s %s\n", time.Now().Format("15:04:05.000"), s)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
