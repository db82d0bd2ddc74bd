// Package telemetry bootstraps OpenTelemetry tracing (Google Cloud Trace) and the
// OpenTelemetry to Prometheus metric bridge.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/detectors/gcp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/tasklist/internal/config"
)

// Handle is the process-wide telemetry state returned by Start.
type Handle struct {
	logger           *zap.Logger
	diag             *zap.Logger
	grpc             *GRPCInstrumentation
	instrumentations Instrumentations
	traceProv        *sdktrace.TracerProvider
	meterProv        *metric.MeterProvider
	shutdownFuncs    []func(context.Context) error
}

// Option customizes Start.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	exporter   sdktrace.SpanExporter
}

// WithRegisterer sets the Prometheus registry the metric bridge registers with.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithSpanExporter replaces the Cloud Trace exporter.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.exporter = exp }
}

// Start initializes tracing in a fixed order: OpenTelemetry diagnostics, then gRPC
// instrumentation, then the instrumentation bundle, then the SDK. It must run before
// any gRPC client is built. Failures are logged and leave tracing disabled; Start
// never aborts the process.
func Start(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) *Handle {
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	h := &Handle{
		logger:           logger,
		diag:             newDiagLogger(cfg.Telemetry.OTelLogLevel),
		grpc:             NewGRPCInstrumentation(),
		instrumentations: DefaultInstrumentations(),
	}
	installDiagnostics(h.diag)

	if !cfg.Telemetry.Enabled {
		h.instrumentations.Disabled[InstrumentationHTTP] = true
		logger.Info("telemetry disabled")
		return h
	}
	h.grpc.Enable()

	if err := h.startSDK(ctx, cfg, o); err != nil {
		logger.Error("error initializing OpenTelemetry SDK", zap.Error(err))
		return h
	}
	logger.Info("OpenTelemetry instrumentation started",
		zap.String("service", cfg.Application.ServiceName),
		zap.String("project_id", cfg.Application.ProjectID),
	)
	return h
}

func (h *Handle) startSDK(ctx context.Context, cfg config.Config, o options) error {
	res, err := newResource(ctx, cfg)
	if err != nil {
		return err
	}

	exporter := o.exporter
	if exporter == nil {
		if cfg.Application.ProjectID == "" {
			h.logger.Info("project ID not set, falling back to ADC for trace exporter")
		}
		exporter, err = newCloudTraceExporter(cfg.Application.ProjectID)
		if err != nil {
			h.logger.Warn("failed to create google trace exporter, spans will not be exported", zap.Error(err))
		}
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Telemetry.SampleRatio))),
	}
	if exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	promExporter, err := otelprom.New(otelprom.WithRegisterer(o.registerer))
	if err != nil {
		return errors.Join(fmt.Errorf("failed to create prometheus exporter: %w", err), tp.Shutdown(ctx))
	}
	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(promExporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
	)

	h.traceProv = tp
	h.meterProv = mp
	h.shutdownFuncs = append(h.shutdownFuncs, tp.Shutdown, mp.Shutdown)
	return nil
}

// newCloudTraceExporter builds the Cloud Trace exporter. An empty project id lets
// the exporter resolve the project from application default credentials.
var newCloudTraceExporter = func(projectID string) (sdktrace.SpanExporter, error) {
	var opts []texporter.Option
	if projectID != "" {
		opts = append(opts, texporter.WithProjectID(projectID))
	}
	exp, err := texporter.New(opts...)
	if err != nil {
		return nil, err
	}
	return exp, nil
}

func newResource(ctx context.Context, cfg config.Config) (*resource.Resource, error) {
	opts := []resource.Option{
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.Application.ServiceName),
			semconv.ServiceVersion(cfg.Application.Version),
			semconv.CloudProviderGCP,
		),
	}
	if cfg.Application.Region != "" {
		opts = append(opts, resource.WithAttributes(semconv.CloudRegion(cfg.Application.Region)))
	}
	opts = append(opts, resource.WithDetectors(gcp.NewDetector()))
	res, err := resource.New(ctx, opts...)
	if errors.Is(err, resource.ErrPartialResource) {
		otel.Handle(err)
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// GRPCClientOptions returns the options every Google gRPC client must be built with.
func (h *Handle) GRPCClientOptions() []option.ClientOption {
	return h.grpc.ClientOptions()
}

// Instrumentations returns the active instrumentation bundle.
func (h *Handle) Instrumentations() Instrumentations {
	return h.instrumentations
}

// TracerProvider returns the SDK provider, or nil when tracing did not start.
func (h *Handle) TracerProvider() *sdktrace.TracerProvider {
	return h.traceProv
}

// Shutdown flushes pending spans and stops the providers. Failures are logged and
// returned; callers treat them as non-fatal.
func (h *Handle) Shutdown(ctx context.Context) error {
	var err error
	for _, fn := range h.shutdownFuncs {
		err = errors.Join(err, fn(ctx))
	}
	h.shutdownFuncs = nil
	if err != nil {
		h.logger.Error("error terminating OpenTelemetry SDK", zap.Error(err))
	} else {
		h.logger.Info("OpenTelemetry SDK terminated")
	}
	_ = h.diag.Sync()
	return err
}
