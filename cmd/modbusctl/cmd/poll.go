// cmd/modbusctl/cmd/poll.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tamzrod/modbus-client/internal/bridge"
	"github.com/tamzrod/modbus-client/internal/client"
	"github.com/tamzrod/modbus-client/internal/config"
	"github.com/tamzrod/modbus-client/internal/httpapi"
	"github.com/tamzrod/modbus-client/internal/ingest"
	"github.com/tamzrod/modbus-client/internal/metrics"
	"github.com/tamzrod/modbus-client/internal/poller"
	"github.com/tamzrod/modbus-client/internal/status"
)

var quiet bool

func init() {
	pollCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print state changes")
	rootCmd.AddCommand(pollCmd)
}

var pollCmd = &cobra.Command{
	Use:   "poll <config.yaml>",
	Short: "Poll tags from a device and deliver them",
	Long: `Run the tag poller described by a YAML config until interrupted.

Readings go to the ingest endpoint when one is configured, otherwise to
the log. The optional status block mirrors client health into the
device's holding registers, and the optional HTTP API serves /healthz,
/status, /readings, /metrics and the /events websocket.

Examples:
  modbusctl poll plant.yaml
  modbusctl poll plant.yaml -q`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(args[0])
		if err != nil {
			return err
		}

		// flags win when set explicitly
		level, format := cfg.Log.Level, cfg.Log.Format
		if cmd.Flags().Changed("log-level") {
			level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			format = logFormat
		}
		logger, err := newLogger(level, format)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runPoll(ctx, cfg, logger)
	},
}

func runPoll(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if len(cfg.Tags) == 0 {
		return errors.New("config defines no tags")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// --------------------
	// Metrics
	// --------------------

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(metrics.Config{Registry: reg})

	// --------------------
	// Client
	// --------------------

	opts := cfg.Client.Options()
	c, err := client.New(opts, client.WithLogger(logger), client.WithObserver(m))
	if err != nil {
		return err
	}
	defer c.Close()
	m.TrackDroppedEvents(opts.ClientID, c.DroppedEvents)

	if !quiet {
		unsubscribe := c.Subscribe(printEvent)
		defer unsubscribe()
	}

	if err := c.Connect(ctx); err != nil {
		// polling keeps trying through the client's reconnect policy
		logger.Warn().Err(err).Msg("initial connect failed")
	}

	// --------------------
	// Poller -> bridge -> sink
	// --------------------

	p, err := poller.Build(*cfg, c, c.Codec(), logger, m)
	if err != nil {
		return fmt.Errorf("poller build failed: %w", err)
	}

	sink, err := buildSink(cfg, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	var mirror *bridge.StatusMirror
	if cfg.Status != nil {
		mirror = bridge.NewStatusMirror(c, cfg.Status.Slot, cfg.Device.Name)
	}
	b := bridge.New(bridge.Config{WriteTimeout: opts.RequestTimeout}, sink, c, mirror, logger, m)

	out := make(chan poller.PollResult)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		p.Run(ctx, out)
	}()
	go func() {
		defer wg.Done()
		b.Run(ctx, out)
	}()

	// --------------------
	// HTTP API (optional)
	// --------------------

	errc := make(chan error, 1)
	if cfg.HTTP.Listen != "" {
		srv := httpapi.New(httpapi.Config{Listen: cfg.HTTP.Listen, Gatherer: reg}, c, b, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				errc <- fmt.Errorf("http api: %w", err)
			}
		}()
	}

	logger.Info().
		Str("device", cfg.Device.ID).
		Int("tags", len(cfg.Tags)).
		Int("blocks", len(p.Blocks())).
		Dur("interval", time.Duration(cfg.Poll.IntervalMs)*time.Millisecond).
		Msg("polling")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
		cancel()
	}

	// aborts a poll blocked in backoff
	c.Disconnect()
	wg.Wait()
	return runErr
}

func buildSink(cfg *config.Config, logger zerolog.Logger) (ingest.Sink, error) {
	if cfg.Ingest == nil {
		return ingest.NewLogSink(logger), nil
	}
	return ingest.NewEndpointClient(ingest.Config{
		Endpoint: cfg.Ingest.Endpoint,
		Timeout:  time.Duration(cfg.Ingest.TimeoutMs) * time.Millisecond,
	})
}

func printEvent(ev status.Event) {
	state := ev.Current.String()
	switch ev.Current {
	case status.Connected:
		state = okFmt(state)
	case status.Reconnecting:
		state = warnFmt(state)
	case status.Faulted:
		state = errFmt(state)
	case status.Disconnected, status.Connecting:
		state = labelFmt(state)
	}

	line := fmt.Sprintf("%s %s -> %s", dimFmt(ev.At.Format(time.TimeOnly)), ev.Previous, state)
	if ev.Attempt > 0 {
		line += fmt.Sprintf(" attempt=%d delay=%s", ev.Attempt, ev.Delay.Round(time.Millisecond))
	}
	if ev.Err != nil {
		line += " " + dimFmt(ev.Err.Error())
	}
	fmt.Fprintln(os.Stderr, line)
}
