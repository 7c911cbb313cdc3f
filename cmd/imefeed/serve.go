package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"imefeed/internal/config"
	"imefeed/internal/health"
	"imefeed/internal/ime"
	"imefeed/internal/ipc"
	"imefeed/internal/logging"
	"imefeed/internal/metrics"
	"imefeed/internal/store"
)

// providerFailureThreshold is the number of consecutive failed samples
// after which the provider reports degraded.
const providerFailureThreshold = 50

const crashReportMaxAge = 30 * 24 * time.Hour

func newServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the status feed until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "pipe",
				Usage: "Pipe name (overrides config)",
			},
			&cli.IntFlag{
				Name:  "interval-ms",
				Usage: "Milliseconds between status lines (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "no-watch",
				Usage: "Do not reload the config file when it changes",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	loader, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Flag overrides stay out of the loader's copy so reloads compare
	// file against file.
	cfg = cfg.Clone()
	if cmd.IsSet("pipe") {
		cfg.Pipe.Name = cmd.String("pipe")
	}
	if cmd.IsSet("interval-ms") {
		cfg.Sampling.IntervalMs = int(cmd.Int("interval-ms"))
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	d, err := newDaemon(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	d.onConfigChange(loader)
	if !cmd.Bool("no-watch") {
		d.watchConfig(ctx, loader)
	}
	defer loader.Close()
	d.reloadOnHangup(ctx, loader)

	crash := logging.NewCrashHandler(&logging.CrashHandlerConfig{
		Version: Version,
		Logger:  logger,
	})
	if err := crash.Cleanup(crashReportMaxAge); err != nil {
		logger.Debug("crash report cleanup", "dir", crash.Dir(), "error", err)
	}
	if reports, err := crash.Reports(); err == nil && len(reports) > 0 {
		logger.Warn("previous crash reports found", "count", len(reports), "dir", crash.Dir())
	}
	return crash.Guard(map[string]any{"command": "serve"}, func() error {
		return d.Run(ctx)
	})
}

// daemon wires the feed and its supporting services.
type daemon struct {
	cfg    *config.Config
	logger *logging.Logger

	provider    ime.Provider
	sampler     *ime.Sampler
	metrics     *metrics.FeedMetrics
	health      *health.Checker
	journal     *store.Store
	broadcaster *ipc.Broadcaster
	httpServer  *http.Server
}

func newDaemon(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*daemon, error) {
	d := &daemon{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewFeedMetrics(nil),
		health:  health.NewChecker(),
	}

	provider, err := ime.NewProvider(cfg.ProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}
	d.provider = provider
	logger.Info("input state provider ready", "backend", provider.Name())

	d.sampler = ime.NewSampler(provider,
		ime.WithLogger(logger.WithComponent("ime")),
		ime.WithErrorHook(func(string, error) { d.metrics.SampleErrorsTotal.Inc() }),
		ime.WithDurationHook(d.metrics.SampleDuration.ObserveDuration),
	)

	opts := []ipc.Option{
		ipc.WithInterval(cfg.Interval()),
		ipc.WithLogger(logger.WithComponent("ipc")),
		ipc.WithMetrics(d.metrics),
		ipc.WithStateHook(d.onState),
	}

	if cfg.Journal.Enabled {
		j, err := store.Open(ctx, cfg.Journal.Path)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("open journal: %w", err)
		}
		d.journal = j
		jlog := logger.WithComponent("journal")
		if n, err := j.CloseAbandoned(ctx, time.Now()); err != nil {
			jlog.Warn("close abandoned sessions", "error", err)
		} else if n > 0 {
			jlog.Info("closed abandoned sessions", "count", n)
		}
		opts = append(opts, ipc.WithJournal(j))
	}

	endpoint := ipc.NewPipeEndpoint(cfg.EndpointConfig())
	d.broadcaster = ipc.NewBroadcaster(endpoint, d.sampler, opts...)

	d.health.RegisterFunc("endpoint", true,
		health.StateCheck(d.broadcaster.State, ipc.StateListening, ipc.StateStreaming))
	d.health.RegisterFunc("provider", false,
		health.FailureStreakCheck(d.sampler.ConsecutiveFailures, providerFailureThreshold))
	if d.journal != nil {
		d.health.RegisterFunc("journal", false, health.CustomCheck(func() error {
			pctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return d.journal.Ping(pctx)
		}))
	}

	return d, nil
}

func (d *daemon) onState(s ipc.State) {
	switch s {
	case ipc.StateListening:
		d.health.SetReady(true)
	case ipc.StateClosed:
		d.health.SetReady(false)
	}
}

// onConfigChange applies reloadable settings after every successful reload.
func (d *daemon) onConfigChange(loader *config.Loader) {
	log := d.logger.WithComponent("config")
	loader.OnChange(func(old, cur *config.Config) {
		if cur.Sampling.IntervalMs != old.Sampling.IntervalMs {
			d.broadcaster.SetInterval(cur.Interval())
			log.Info("interval changed", "interval", cur.Interval())
		}
		if cur.Logging.Level != old.Logging.Level {
			if lvl, err := logging.ParseLevel(cur.Logging.Level); err == nil {
				d.logger.SetLevel(lvl)
				log.Info("log level changed", "level", cur.Logging.Level)
			}
		}
		if cur.Pipe != old.Pipe || cur.Provider != old.Provider ||
			cur.Metrics != old.Metrics || cur.Journal != old.Journal {
			log.Warn("config change requires a restart to take effect")
		}
	})
}

// reloadOnHangup re-reads the config file on SIGHUP until ctx is done.
// Windows never delivers the signal.
func (d *daemon) reloadOnHangup(ctx context.Context, loader *config.Loader) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		defer signal.Stop(hup)
		d.reloadOn(ctx, loader, hup)
	}()
}

func (d *daemon) reloadOn(ctx context.Context, loader *config.Loader, sig <-chan os.Signal) {
	log := d.logger.WithComponent("config")
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			if err := loader.Reload(); err != nil {
				log.Warn("config reload rejected", "error", err)
				continue
			}
			log.Info("config reloaded", "path", loader.Path(), "interval", loader.Config().Interval())
		}
	}
}

// watchConfig reloads the config file when it changes on disk.
func (d *daemon) watchConfig(ctx context.Context, loader *config.Loader) {
	log := d.logger.WithComponent("config")
	if err := loader.Watch(); err != nil {
		log.Warn("config watch disabled", "path", loader.Path(), "error", err)
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-loader.Errors():
				if !ok {
					return
				}
				log.Warn("config reload rejected", "error", err)
			}
		}
	}()
}

// Run serves metrics when enabled and runs the broadcaster until ctx is
// done.
func (d *daemon) Run(ctx context.Context) error {
	if d.cfg.Metrics.Enabled {
		if err := d.startHTTP(); err != nil {
			return err
		}
	}

	go d.tickUptime(ctx)

	if err := d.broadcaster.Run(ctx); err != nil {
		d.logger.Error("feed stopped", "error", err)
		return err
	}
	d.logger.Info("shutting down")
	return nil
}

func (d *daemon) tickUptime(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.metrics.UpdateUptime()
		}
	}
}

func (d *daemon) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.metrics.Registry().HTTPHandler())
	mux.Handle("/healthz", d.health.HealthHandler())
	mux.Handle("/readyz", d.health.ReadinessHandler())
	mux.Handle("/livez", d.health.LivenessHandler())
	return mux
}

func (d *daemon) startHTTP() error {
	ln, err := net.Listen("tcp", d.cfg.Metrics.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen metrics: %w", err)
	}
	d.httpServer = &http.Server{
		Handler:           d.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log := d.logger.WithComponent("http")
	log.Info("metrics listening", "addr", ln.Addr().String())

	go func() {
		if err := d.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", "error", err)
		}
	}()
	return nil
}

// Close releases everything newDaemon acquired.
func (d *daemon) Close() error {
	var errs []error
	if d.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		errs = append(errs, d.httpServer.Shutdown(ctx))
		cancel()
	}
	if d.journal != nil {
		errs = append(errs, d.journal.Close())
	}
	if c, ok := d.provider.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
