// Command writer creates the shared memory segment and produces records
// into the ring buffer until it is interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/FerroO2000/shmring/internal"
	"github.com/FerroO2000/shmring/internal/otlp"
	"github.com/FerroO2000/shmring/internal/rb"
	"github.com/FerroO2000/shmring/internal/writer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "writer:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := writer.DefaultConfig()

	backend := cfg.Backend.String()
	otlpEndpoint := ""
	logLevel := "info"

	flag.StringVar(&cfg.Segment.Name, "name", cfg.Segment.Name, "name of the shared memory segment")
	flag.StringVar(&cfg.Segment.Dir, "dir", cfg.Segment.Dir, "directory backing the shared memory segments")
	flag.StringVar(&backend, "backend", backend, "ring buffer backend (spsc, rwlock)")
	flag.StringVar(&cfg.Message, "message", cfg.Message, "text stored in every record")
	flag.DurationVar(&cfg.MinDelay, "min-delay", cfg.MinDelay, "minimum pause between two records")
	flag.DurationVar(&cfg.MaxDelay, "max-delay", cfg.MaxDelay, "maximum pause between two records")
	flag.BoolVar(&cfg.Trace, "trace", cfg.Trace, "log the content of the buffer after every record")
	flag.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "address of the health and metrics endpoint")
	flag.StringVar(&otlpEndpoint, "otlp", otlpEndpoint, "address of the OTLP collector")
	flag.StringVar(&logLevel, "log-level", logLevel, "log level (debug, info, warn, error)")
	flag.Parse()

	internal.SetupLogging(internal.ParseLevel(logLevel), os.Stderr)

	kind, err := rb.ParseBufferKind(backend)
	if err != nil {
		return err
	}
	cfg.Backend = kind

	ctx := context.Background()
	providers := initExport(ctx, otlpEndpoint)

	w := writer.New(cfg)
	if err := w.Init(ctx); err != nil {
		if providers != nil {
			_ = providers.Close()
		}
		return err
	}

	// Flushed by the teardown, also when a signal terminates the process
	if providers != nil {
		w.Controller().AddCloser(providers)
	}

	return w.Run(ctx)
}

func initExport(ctx context.Context, endpoint string) *otlp.Providers {
	if endpoint == "" {
		return nil
	}

	providers, err := otlp.Init(ctx, &otlp.Config{
		Endpoint:    endpoint,
		ServiceName: "shm-writer",
		TraceRatio:  0.05,
	})
	if err != nil {
		slog.Warn("telemetry export disabled", "endpoint", endpoint, "error", err)
		return nil
	}

	return providers
}
