// Package observability installs the process-wide OpenTelemetry tracer
// provider. Payment traffic is rare and high value, so spans for webhook
// deliveries and reconciliation are always sampled while the rest of the
// storefront follows the configured ratio.
package observability

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"google.golang.org/grpc/credentials"

	"github.com/tbourn/retro-storefront/internal/config"
)

// ---- TEST SEAMS (signatures exactly match what tests will assign) ----
var (
	newOTLPClient = otlptracegrpc.NewClient

	// No exporter options exposed here -> stable for tests.
	newOTLPExporterFn = func(ctx context.Context, client otlptrace.Client) (*otlptrace.Exporter, error) {
		return otlptrace.New(ctx, client)
	}

	newServiceResourceFn = func(ctx context.Context, serviceName, version string) (*resource.Resource, error) {
		return resource.New(
			ctx,
			resource.WithAttributes(
				semconv.ServiceName(serviceName),
				semconv.ServiceVersion(version),
			),
		)
	}
)

// ---------------------------------------------------------------------

// SetupOTel configures OpenTelemetry tracing and returns a shutdown function.
func SetupOTel(ctx context.Context, cfg config.OTELConfig, version string) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	// Build OTLP gRPC client options
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		creds := credentials.NewClientTLSFromCert(nil, "")
		opts = append(opts, otlptracegrpc.WithTLSCredentials(creds))
	}

	// Exporter via seam
	client := newOTLPClient(opts...)
	exp, err := newOTLPExporterFn(ctx, client)
	if err != nil {
		return nil, err
	}

	// Resource via seam
	res, err := newServiceResourceFn(ctx, cfg.ServiceName, version)
	if err != nil {
		return nil, err
	}

	// Tracer provider
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(PaymentSampler(cfg.SampleRatio, PaymentSpanMarkers...))),
		sdktrace.WithResource(res),
	)

	// Globals
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	// Shutdown
	return tp.Shutdown, nil
}

// PaymentSpanMarkers identify spans that must never be dropped: the webhook
// route (server spans) and the reconcile service.
var PaymentSpanMarkers = []string{"/webhooks/stripe", "Reconcile"}

// routeKeys are the span attributes that may carry the matched route.
var routeKeys = []attribute.Key{"http.route", "url.path", "http.target"}

// PaymentSampler samples every span whose name or route contains one of
// markers and delegates the rest to a TraceIDRatioBased sampler.
func PaymentSampler(ratio float64, markers ...string) sdktrace.Sampler {
	return paymentSampler{fallback: sdktrace.TraceIDRatioBased(ratio), markers: markers}
}

type paymentSampler struct {
	fallback sdktrace.Sampler
	markers  []string
}

func (s paymentSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if s.matches(p) {
		return sdktrace.AlwaysSample().ShouldSample(p)
	}
	return s.fallback.ShouldSample(p)
}

func (s paymentSampler) Description() string {
	return "PaymentSampler{" + s.fallback.Description() + "}"
}

func (s paymentSampler) matches(p sdktrace.SamplingParameters) bool {
	for _, m := range s.markers {
		if strings.Contains(p.Name, m) {
			return true
		}
		for _, kv := range p.Attributes {
			for _, k := range routeKeys {
				if kv.Key == k && strings.Contains(kv.Value.Emit(), m) {
					return true
				}
			}
		}
	}
	return false
}
