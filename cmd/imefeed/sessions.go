package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"imefeed/internal/store"
)

func newSessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Inspect the session journal",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent consumer sessions",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Number of sessions to show",
						Value:   20,
					},
				},
				Action: runSessionsList,
			},
			{
				Name:      "show",
				Usage:     "Show one session",
				ArgsUsage: "<id>",
				Action:    runSessionsShow,
			},
			{
				Name:   "stats",
				Usage:  "Show journal totals",
				Action: runSessionsStats,
			},
		},
		DefaultCommand: "list",
	}
}

// openJournal opens the configured journal without creating it.
func openJournal(ctx context.Context, cmd *cli.Command) (*store.Store, error) {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.Journal.Path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no journal at %s (enable [journal] and run serve)", cfg.Journal.Path)
	}
	return store.Open(ctx, cfg.Journal.Path)
}

func runSessionsList(ctx context.Context, cmd *cli.Command) error {
	j, err := openJournal(ctx, cmd)
	if err != nil {
		return err
	}
	defer j.Close()

	list, err := j.Recent(ctx, int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.Root().Writer, "No sessions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCONNECTED\tDURATION\tMESSAGES\tREASON")
	for _, s := range list {
		duration, reason := "-", s.CloseReason
		if s.Open() {
			reason = "open"
		} else {
			duration = s.Duration().Truncate(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			s.ID,
			s.ConnectedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			s.Messages,
			reason,
		)
	}
	return w.Flush()
}

func runSessionsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: imefeed sessions show <id>")
	}

	j, err := openJournal(ctx, cmd)
	if err != nil {
		return err
	}
	defer j.Close()

	s, err := j.Session(ctx, id)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", s.ID)
	fmt.Fprintf(w, "Endpoint:\t%s\n", s.Endpoint)
	fmt.Fprintf(w, "Server PID:\t%d\n", s.ServerPID)
	fmt.Fprintf(w, "Connected:\t%s\n", s.ConnectedAt.Local().Format(time.RFC3339))
	if s.Open() {
		fmt.Fprintf(w, "Disconnected:\t-\n")
	} else {
		fmt.Fprintf(w, "Disconnected:\t%s\n", s.DisconnectedAt.Local().Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:\t%s\n", s.Duration().Truncate(time.Millisecond))
	}
	fmt.Fprintf(w, "Messages:\t%d\n", s.Messages)
	reason := s.CloseReason
	if s.Open() {
		reason = "open"
	}
	fmt.Fprintf(w, "Reason:\t%s\n", reason)
	return w.Flush()
}

func runSessionsStats(ctx context.Context, cmd *cli.Command) error {
	j, err := openJournal(ctx, cmd)
	if err != nil {
		return err
	}
	defer j.Close()

	st, err := j.Stats(ctx)
	if err != nil {
		return fmt.Errorf("journal stats: %w", err)
	}
	fmt.Fprintf(cmd.Root().Writer, "Sessions: %d\nMessages: %d\nOpen:     %d\n", st.Sessions, st.Messages, st.Open)
	return nil
}
