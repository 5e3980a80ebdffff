package middleware

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/broady/tsrpc"
)

const instrumentationName = "github.com/broady/tsrpc"

// Tracing returns an interceptor that starts a server span per call.
// Parent trace context is extracted from the HTTP request headers with the
// global propagator. A nil provider uses otel.GetTracerProvider().
func Tracing(tp trace.TracerProvider) tsrpc.UnaryInterceptor {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(instrumentationName)

	return func(ctx *tsrpc.Context, params any, next tsrpc.HandlerFunc) (any, error) {
		parent := ctx.Context
		attrs := []attribute.KeyValue{
			attribute.String("rpc.system", "tsrpc"),
			attribute.String("rpc.method", ctx.Endpoint()),
		}
		if r := ctx.HTTPRequest(); r != nil {
			parent = otel.GetTextMapPropagator().Extract(parent, propagation.HeaderCarrier(r.Header))
			if ua := r.UserAgent(); ua != "" {
				attrs = append(attrs, attribute.String("user_agent.original", ua))
			}
		}

		spanCtx, span := tracer.Start(parent, "tsrpc/"+ctx.Endpoint(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...))
		defer span.End()

		call := *ctx
		call.Context = spanCtx
		res, err := next(&call, params)

		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
			span.SetAttributes(attribute.String("rpc.tsrpc.error_code", codeOf(err)))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return res, err
	}
}
