package tsrpc

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey struct {
	name string
}

var callKey = &contextKey{"tsrpc"}

// Context carries per-call metadata through interceptors and into the
// endpoint function. It implements context.Context, so handlers that only
// need the standard interface can ignore the extra methods.
type Context struct {
	context.Context

	endpoint string
	request  *http.Request
	writer   http.ResponseWriter

	errorTransformer   ErrorTransformer
	maskInternalErrors bool
	interceptors       []UnaryInterceptor
	logger             *slog.Logger
	maxRequestBodySize uint64
}

func newContext(parent context.Context, w http.ResponseWriter, r *http.Request, endpoint string) *Context {
	ctx := &Context{
		endpoint: endpoint,
		request:  r,
		writer:   w,
	}
	ctx.Context = context.WithValue(parent, callKey, ctx)
	return ctx
}

// NewContext creates a call Context for endpoint outside of an HTTP request.
// It is intended for testing interceptors.
func NewContext(parent context.Context, endpoint string) *Context {
	return newContext(parent, nil, nil, endpoint)
}

// Endpoint returns the name of the endpoint being called.
func (c *Context) Endpoint() string { return c.endpoint }

// HTTPRequest returns the underlying HTTP request.
func (c *Context) HTTPRequest() *http.Request { return c.request }

// HTTPWriter returns the underlying response writer.
func (c *Context) HTTPWriter() http.ResponseWriter { return c.writer }

// Logger returns the API logger, or slog.Default if none was configured.
func (c *Context) Logger() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// FromContext extracts the call Context from ctx, which may have been
// wrapped by interceptors.
func FromContext(ctx context.Context) (*Context, bool) {
	if c, ok := ctx.(*Context); ok {
		return c, true
	}
	c, ok := ctx.Value(callKey).(*Context)
	return c, ok
}

// EndpointFromContext returns the name of the endpoint being called.
func EndpointFromContext(ctx context.Context) (string, bool) {
	c, ok := FromContext(ctx)
	if !ok {
		return "", false
	}
	return c.endpoint, true
}

// RequestFromContext returns the HTTP request from the context.
func RequestFromContext(ctx context.Context) *http.Request {
	if c, ok := FromContext(ctx); ok {
		return c.request
	}
	return nil
}

// SetHeader sets an HTTP response header.
// It is a no-op outside a call served by an API.
func SetHeader(ctx context.Context, key, value string) {
	if c, ok := FromContext(ctx); ok && c.writer != nil {
		c.writer.Header().Set(key, value)
	}
}
