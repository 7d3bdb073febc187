// Command reader attaches to the segment created by the writer and consumes
// its records until the writer is gone.
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
	"github.com/FerroO2000/shmring/internal/reader"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "reader:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := reader.DefaultConfig()

	backend := cfg.Backend.String()
	otlpEndpoint := ""
	logLevel := "info"

	flag.StringVar(&cfg.Segment.Name, "name", cfg.Segment.Name, "name of the shared memory segment")
	flag.StringVar(&cfg.Segment.Dir, "dir", cfg.Segment.Dir, "directory backing the shared memory segments")
	flag.StringVar(&backend, "backend", backend, "ring buffer backend (spsc, rwlock)")
	flag.BoolVar(&cfg.Wait, "wait", cfg.Wait, "wait for the writer instead of failing when the segment is missing")
	flag.BoolVar(&cfg.Drain, "drain", cfg.Drain, "consume the queued records before exiting once the writer is gone")
	flag.DurationVar(&cfg.MinDelay, "min-delay", cfg.MinDelay, "minimum pause between two polls")
	flag.DurationVar(&cfg.MaxDelay, "max-delay", cfg.MaxDelay, "maximum pause between two polls")
	flag.StringVar(&cfg.Bench.Path, "bench", cfg.Bench.Path, "CSV file receiving the latency of every read")
	flag.StringVar(&cfg.Bench.QuestDBAddress, "bench-questdb", cfg.Bench.QuestDBAddress, "QuestDB HTTP address receiving the latency of every read")
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

	r := reader.New(cfg)
	if err := r.Init(ctx); err != nil {
		if providers != nil {
			_ = providers.Close()
		}
		return err
	}

	if providers != nil {
		r.Controller().AddCloser(providers)
	}

	return r.Run(ctx)
}

func initExport(ctx context.Context, endpoint string) *otlp.Providers {
	if endpoint == "" {
		return nil
	}

	providers, err := otlp.Init(ctx, &otlp.Config{
		Endpoint:    endpoint,
		ServiceName: "shm-reader",
		TraceRatio:  0.05,
	})
	if err != nil {
		slog.Warn("telemetry export disabled", "endpoint", endpoint, "error", err)
		return nil
	}

	return providers
}
