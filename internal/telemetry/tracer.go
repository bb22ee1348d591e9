// Package telemetry wires the process-wide TracerProvider, grounded on
// runtime/telemetry.Tracer/NewTracerProvider's split between "resolve a
// tracer" and "build a provider". The teacher's provider exports spans via
// OTLP/HTTP with an AWS X-Ray propagator; neither the otlptracehttp
// exporter nor the X-Ray contrib propagator is a teacher dependency the
// pack carries, so this provider registers no exporter — spans are
// created, sampled, and ended (exercising otel/otel-sdk/otel-trace
// throughout the gateway and pipeline) but dropped at Shutdown rather than
// shipped to a collector. Swapping in a concrete exporter later only
// touches NewTracerProvider.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the OTel instrumentation scope name, matching the
// teacher's runtime/telemetry convention of scoping it to the module path.
const InstrumentationName = "github.com/hivetechs-collective/Hive-sub013"

// Tracer returns a named tracer from tp. A nil tp falls back to whatever
// provider is registered globally (otel.GetTracerProvider()), same as
// runtime/telemetry.Tracer.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(InstrumentationName)
}

// NewTracerProvider builds a TracerProvider tagged with serviceName. The
// caller is responsible for calling Shutdown on the returned provider and
// for calling otel.SetTracerProvider to make it the process default —
// internal/gateway and internal/consensus resolve their tracers lazily
// against whatever is registered there.
func NewTracerProvider(ctx context.Context, serviceName string) (*sdktrace.TracerProvider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(sdktrace.WithResource(res)), nil
}
