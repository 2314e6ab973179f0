// Package tracing is the warden telemetry module. It exports agent
// turn spans over OTLP/HTTP and registers a tracer other modules pick
// up through the service registry. With no endpoint configured the
// module registers a no-op tracer and exports nothing.
package tracing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wardenproj/warden/internal/core"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// instrumentationName identifies spans produced by this module.
const instrumentationName = "github.com/wardenproj/warden"

// Module wires an OTLP trace exporter into the app.
type Module struct {
	config   Config
	logger   *slog.Logger
	provider *sdktrace.TracerProvider
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "telemetry.tracing",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return err
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The tracer is registered here
// so modules resolving it during their own Start always find it.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Endpoint == "" {
		ctx.RegisterService("telemetry.tracer", noop.NewTracerProvider().Tracer(instrumentationName))
		return nil
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(m.config.Endpoint),
	}
	if m.config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return fmt.Errorf("tracing: create exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(m.config.ServiceName),
		),
	)
	if err != nil {
		return fmt.Errorf("tracing: build resource: %w", err)
	}

	m.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(m.sampler()),
	)

	ctx.RegisterService("telemetry.tracer", m.provider.Tracer(instrumentationName))
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start implements core.Starter.
func (m *Module) Start() error {
	if m.provider == nil {
		m.logger.Debug("tracing disabled, no endpoint configured")
		return nil
	}
	m.logger.Info("tracing enabled",
		"endpoint", m.config.Endpoint,
		"sample_ratio", m.config.SampleRatio,
	)
	return nil
}

// Stop implements core.Stopper. Flushes buffered spans.
func (m *Module) Stop(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// sampler maps the configured ratio onto an SDK sampler. Child spans
// always follow their parent's decision.
func (m *Module) sampler() sdktrace.Sampler {
	switch {
	case m.config.SampleRatio >= 1:
		return sdktrace.AlwaysSample()
	case m.config.SampleRatio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(m.config.SampleRatio))
	}
}

// Tracer returns the registered tracer, for tests.
func (m *Module) Tracer() trace.Tracer {
	if m.provider == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return m.provider.Tracer(instrumentationName)
}
