// Package tracing wires OpenTelemetry for the CLI. Export is enabled by the standard
// OTEL_EXPORTER_OTLP_ENDPOINT variable; without it spans go to the no-op provider.
package tracing

import (
	"context"
	"os"
	"strings"

	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	EnvEndpoint        = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvServiceName     = "OTEL_SERVICE_NAME"
	DefaultServiceName = "offerforge"
	TracerName         = "github.com/go-go-golems/offerforge"
	RunSpanName        = "offerforge.run"
)

type ShutdownFunc func(ctx context.Context) error

// Setup installs a global TracerProvider exporting over OTLP/HTTP when an endpoint is
// configured. The returned shutdown flushes pending spans and is always non-nil.
func Setup(ctx context.Context) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }
	endpoint := strings.TrimSpace(os.Getenv(EnvEndpoint))
	if endpoint == "" {
		return noop, nil
	}

	// The exporter reads the endpoint and headers from the environment itself.
	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return noop, errors.Wrap(err, "create otlp exporter")
	}

	serviceName := os.Getenv(EnvServiceName)
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	otel.SetTracerProvider(provider)
	log.Debug().Str("endpoint", endpoint).Str("service", serviceName).Msg("otlp tracing enabled")

	return func(ctx context.Context) error {
		return errors.Wrap(provider.Shutdown(ctx), "shutdown tracer provider")
	}, nil
}

func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// StartRun opens the parent span of an automated run; step spans started from the
// returned context nest under it.
func StartRun(ctx context.Context, tracer trace.Tracer, steps []runner.Step) (context.Context, trace.Span) {
	ids := make([]string, 0, len(steps))
	for _, s := range steps {
		if s.Enabled {
			ids = append(ids, string(s.ID))
		}
	}
	return tracer.Start(ctx, RunSpanName, trace.WithAttributes(
		attribute.StringSlice("offerforge.steps", ids),
	))
}

func EndRun(span trace.Span, out runner.Outcome, err error) {
	span.SetAttributes(
		attribute.String("offerforge.run.id", out.RunID),
		attribute.String("offerforge.run.state", string(out.State)),
		attribute.Int("offerforge.run.progress", out.Progress),
	)
	if err == nil && out.Failed != nil {
		err = errors.Errorf("step %s failed: %s", out.Failed.ID, out.Failed.Error)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
	}
	span.End()
}

// StepMiddleware records one span per step attempt, named step.<id>.
func StepMiddleware(tracer trace.Tracer) runner.Middleware {
	return func(step runner.Step, next runner.Action) runner.Action {
		return func(ctx context.Context) (any, error) {
			ctx, span := tracer.Start(ctx, "step."+string(step.ID), trace.WithAttributes(
				attribute.String("step.id", string(step.ID)),
				attribute.String("step.title", step.Title),
			))
			defer span.End()

			res, err := next(ctx)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
				return nil, err
			}
			return res, nil
		}
	}
}
