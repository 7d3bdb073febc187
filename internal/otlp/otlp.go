// Package otlp installs the OpenTelemetry providers exporting traces and metrics
// to an OTLP collector over gRPC.
package otlp

import (
	"context"
	"errors"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ErrCollectorUnreachable is returned when the collector does not accept connections.
var ErrCollectorUnreachable = errors.New("otlp: collector not reachable")

const (
	dialTimeout    = 2 * time.Second
	exportInterval = time.Second
	serviceVersion = "0.1.0"
)

// Config is the configuration of the exporters.
type Config struct {
	// Endpoint is the address of the collector (host:port).
	Endpoint string
	// ServiceName is the name reported in the resource.
	ServiceName string
	// TraceRatio is the fraction of sampled traces.
	TraceRatio float64
}

// Providers holds the installed providers.
type Providers struct {
	conn           *grpc.ClientConn
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// Init creates the exporters and installs them as the global providers.
// It fails fast with [ErrCollectorUnreachable] if the collector cannot be dialed.
func Init(ctx context.Context, cfg *Config) (*Providers, error) {
	if !isCollectorReachable(cfg.Endpoint) {
		return nil, ErrCollectorUnreachable
	}

	conn, err := grpc.NewClient(cfg.Endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, cfg.ServiceName)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	metricExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	p := &Providers{
		conn:           conn,
		tracerProvider: newTracerProvider(res, traceExporter, cfg.TraceRatio),
		meterProvider:  newMeterProvider(res, metricExporter),
	}

	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	otel.SetMeterProvider(p.meterProvider)

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(exportInterval)); err != nil {
		return nil, errors.Join(err, p.Shutdown(ctx))
	}

	return p, nil
}

// Shutdown flushes and stops the providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.tracerProvider.Shutdown(ctx),
		p.meterProvider.Shutdown(ctx),
		p.conn.Close(),
	)
}

// Close shuts down the providers with a bounded timeout.
func (p *Providers) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	return p.Shutdown(ctx)
}

func isCollectorReachable(endpoint string) bool {
	conn, err := net.DialTimeout("tcp", endpoint, dialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func newResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
}

func newTracerProvider(res *resource.Resource, exporter *otlptrace.Exporter, ratio float64) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(ratio)),
	)
}

func newMeterProvider(res *resource.Resource, exporter sdkmetric.Exporter) *sdkmetric.MeterProvider {
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval)),
		),
	)
}
