package telemetry

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// HTTPInstrumentationName names the HTTP tracer and meter
	HTTPInstrumentationName = "github.com/stacklok/record-sync/http"

	unknownRoute = "unknown_route"
)

// HTTPMiddleware returns middleware that traces each request and records
// duration and count by chi route pattern. Nil providers disable the
// respective signal.
func HTTPMiddleware(tp trace.TracerProvider, mp metric.MeterProvider) (func(http.Handler) http.Handler, error) {
	var (
		tracer   trace.Tracer
		duration metric.Float64Histogram
		total    metric.Int64Counter
	)

	if tp != nil {
		tracer = tp.Tracer(HTTPInstrumentationName)
	}
	if mp != nil {
		meter := mp.Meter(HTTPInstrumentationName)
		var err error
		duration, err = meter.Float64Histogram(
			"record_sync_http_request_duration_seconds",
			metric.WithDescription("Duration of status API requests in seconds"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1),
		)
		if err != nil {
			return nil, err
		}
		total, err = meter.Int64Counter(
			"record_sync_http_requests_total",
			metric.WithDescription("Total number of status API requests"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			return nil, err
		}
	}

	if tracer == nil && duration == nil {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	propagator := otel.GetTextMapPropagator()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			var span trace.Span
			if tracer != nil {
				ctx = propagator.Extract(ctx, propagation.HeaderCarrier(r.Header))
				ctx, span = tracer.Start(ctx, fmt.Sprintf("%s %s", r.Method, r.URL.Path),
					trace.WithSpanKind(trace.SpanKindServer),
					trace.WithAttributes(
						semconv.HTTPRequestMethodKey.String(r.Method),
						semconv.URLPath(r.URL.Path),
					),
				)
				defer span.End()
			}

			next.ServeHTTP(ww, r.WithContext(ctx))

			// chi fills the pattern in during routing, so read it afterwards
			route := routePattern(r)
			status := ww.Status()

			if span != nil {
				span.SetName(fmt.Sprintf("%s %s", r.Method, route))
				span.SetAttributes(
					semconv.HTTPRouteKey.String(route),
					semconv.HTTPResponseStatusCode(status),
				)
				if status >= 400 {
					span.SetStatus(codes.Error, http.StatusText(status))
				} else {
					span.SetStatus(codes.Ok, "")
				}
			}

			if duration != nil {
				attrs := metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("route", route),
					attribute.String("status_code", strconv.Itoa(status)),
				)
				duration.Record(ctx, time.Since(start).Seconds(), attrs)
				total.Add(ctx, 1, attrs)
			}
		})
	}, nil
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return unknownRoute
}
