// Package main implements adcp-receiver, which connects to an ADCP
// instrument, tracks its conversational state, decodes PD0 ensembles and
// forwards them to NATS.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/adcpstream/config"
	"github.com/c360/adcpstream/health"
	"github.com/c360/adcpstream/metric"
	"github.com/c360/adcpstream/natsclient"
	"github.com/c360/adcpstream/publish"
	"github.com/c360/adcpstream/receiver"
	"github.com/c360/adcpstream/source"
	"github.com/c360/adcpstream/transcript"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "adcp-receiver"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	cli, err := parseFlags(fs, args)
	if err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return fmt.Errorf("parse flags: %w", err)
	}
	if err := validateFlags(cli); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cli.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cli.ShowHelp {
		printDetailedHelp(fs)
		return nil
	}

	logger := setupLogger(os.Stdout, cli.LogLevel, cli.LogFormat)
	slog.SetDefault(logger)

	cfg, err := config.NewLoader().LoadFile(cli.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cli.Validate {
		slog.Info("Configuration is valid", "config_path", cli.ConfigPath)
		slog.Debug("Effective configuration", "config", cfg.String())
		return nil
	}

	slog.Info("Starting adcp-receiver",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cli.ConfigPath,
		"instrument", cfg.Instrument.Address,
		"executor", cfg.ExecutorMode().String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var out io.Writer
	if cli.Echo {
		out = os.Stderr
	}
	return runReceiver(ctx, cfg, logger, out, cli.ShutdownTimeout)
}

// runReceiver wires and runs one receiver until ctx is cancelled or the
// instrument connection ends. echoOut, when set, receives state transitions.
func runReceiver(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	echoOut io.Writer,
	shutdownTimeout time.Duration,
) error {
	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()

	publisher, closeNATS, err := setupPublisher(ctx, cfg, logger, registry, monitor)
	if err != nil {
		return err
	}
	defer closeNATS()

	rc := cfg.ReceiverConfig()
	rc.Logger = logger
	rc.MetricsRegistry = registry
	if publisher != nil {
		rc.Listener = publisher.Listener()
	}
	if echoOut != nil {
		rc.OnTransition = newEcho(echoOut, rc.Name).transition
	}

	if cfg.Transcript.Path != "" {
		tw, err := transcript.OpenRotating(cfg.RotateConfig(), cfg.Transcript.PrefixState)
		if err != nil {
			return fmt.Errorf("open transcript: %w", err)
		}
		defer func() {
			if err := tw.Close(); err != nil {
				slog.Warn("Transcript close failed", "error", err)
			}
		}()
		rc.TranscriptWriter = tw
	}

	sc := cfg.SourceConfig()
	sc.Logger = logger
	conn, err := source.Dial(ctx, sc)
	if err != nil {
		return fmt.Errorf("connect to instrument: %w", err)
	}
	defer conn.Close()
	slog.Info("Connected to instrument", "address", sc.Address)

	builder := receiver.NewBuilder(cfg.ExecutorMode())
	rcv, err := builder.Build(conn, rc)
	if err != nil {
		return fmt.Errorf("build receiver: %w", err)
	}
	monitor.Watch("receiver", rcv.Health)

	if publisher != nil {
		publisher.Bind(rcv)
		if err := publisher.Start(ctx); err != nil {
			return fmt.Errorf("start publisher: %w", err)
		}
		defer func() {
			if err := publisher.Stop(shutdownTimeout); err != nil {
				slog.Warn("Publisher stop failed", "error", err)
			}
		}()
	}

	if cfg.Metrics.Enabled {
		srv := metric.NewServer(cfg.Metrics.Address, cfg.Metrics.Path, registry, func() health.Status {
			return monitor.AggregateHealth(appName)
		})
		if err := srv.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Stop(stopCtx)
		}()
	}

	if err := rcv.Start(); err != nil {
		return fmt.Errorf("start receiver: %w", err)
	}
	slog.Info("Receiver started", "receiver", rcv.Name(), "id", rcv.ID())

	go func() {
		select {
		case <-ctx.Done():
			slog.Info("Received shutdown signal")
			rcv.End()
		case <-rcv.Done():
		}
	}()

	// A cooperative executor runs the read loop here until it ends.
	if exec, ok := builder.Executor.(*receiver.CooperativeExecutor); ok {
		exec.RunPending()
	}

	<-rcv.Done()
	if err := rcv.Err(); err != nil {
		slog.Warn("Receiver ended with error", "receiver", rcv.Name(), "error", err)
	}
	slog.Info("adcp-receiver shutdown complete",
		"receiver", rcv.Name(),
		"lines", len(rcv.Lines()),
		"final_state", rcv.State().String())
	return nil
}

// setupPublisher connects to NATS and creates the ensemble publisher when
// nats.url is set. The returned close function is always safe to call.
func setupPublisher(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
	monitor *health.Monitor,
) (*publish.Publisher, func(), error) {
	noop := func() {}
	if cfg.NATS.URL == "" {
		slog.Info("NATS forwarding disabled")
		return nil, noop, nil
	}

	opts := append(cfg.NATSOptions(),
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(registry),
	)
	client, err := natsclient.NewClient(cfg.NATS.URL, opts...)
	if err != nil {
		return nil, noop, fmt.Errorf("create NATS client: %w", err)
	}
	closeNATS := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			slog.Warn("NATS close failed", "error", err)
		}
	}

	slog.Info("Connecting to NATS", "url", cfg.NATS.URL)
	if err := client.Connect(ctx); err != nil {
		closeNATS()
		return nil, noop, fmt.Errorf("connect to NATS: %w", err)
	}
	monitor.Watch("nats", client.Health)

	if cfg.NATS.JetStream {
		if _, err := client.EnsureStream(ctx, cfg.NATS.Stream, []string{cfg.NATS.Subject}); err != nil {
			closeNATS()
			return nil, noop, fmt.Errorf("ensure stream %s: %w", cfg.NATS.Stream, err)
		}
	}

	pc := cfg.PublishConfig()
	pc.Logger = logger
	pc.MetricsRegistry = registry
	publisher, err := publish.New(client, pc)
	if err != nil {
		closeNATS()
		return nil, noop, fmt.Errorf("create publisher: %w", err)
	}
	monitor.Watch("publisher", publisher.Health)

	return publisher, closeNATS, nil
}
