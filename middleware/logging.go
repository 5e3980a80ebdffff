package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/broady/tsrpc"
)

// RequestIDHeader carries the request id. An incoming value is reused;
// otherwise a new one is generated. The id is echoed on the response.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestID returns the id assigned by Logging.
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

// Logging returns an interceptor that logs the start and end of each call,
// including duration, error code and a per-call request id.
// A nil logger uses the API's logger.
func Logging(logger *slog.Logger) tsrpc.UnaryInterceptor {
	return func(ctx *tsrpc.Context, params any, next tsrpc.HandlerFunc) (any, error) {
		log := logger
		if log == nil {
			log = ctx.Logger()
		}

		id := ""
		if r := ctx.HTTPRequest(); r != nil {
			id = r.Header.Get(RequestIDHeader)
		}
		if id == "" {
			id = uuid.NewString()
		}
		tsrpc.SetHeader(ctx, RequestIDHeader, id)

		log = log.With(
			slog.String("endpoint", ctx.Endpoint()),
			slog.String("request_id", id))

		start := time.Now()
		log.DebugContext(ctx, "call started")

		res, err := next(context.WithValue(ctx, requestIDKey{}, id), params)
		duration := time.Since(start)

		if err != nil {
			log.ErrorContext(ctx, "call failed",
				slog.Duration("duration", duration),
				slog.String("code", codeOf(err)),
				slog.Any("error", err))
		} else {
			log.InfoContext(ctx, "call completed",
				slog.Duration("duration", duration))
		}
		return res, err
	}
}
