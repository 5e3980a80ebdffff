// Package middleware provides interceptors and HTTP middleware for a
// tsrpc.API.
//
// Interceptors see every call after its parameters are decoded:
//
//	metrics := middleware.NewMetrics(reg)
//	api := tsrpc.NewAPI().
//	    WithUnaryInterceptor(middleware.Logging(logger)).
//	    WithUnaryInterceptor(middleware.Tracing(nil)).
//	    WithUnaryInterceptor(metrics.Interceptor())
//
// HTTP middleware wraps the whole handler:
//
//	gz, _ := middleware.Compress(1024)
//	api.WithMiddleware(middleware.CORS(nil)).WithMiddleware(gz)
package middleware

import "github.com/broady/tsrpc"

// codeOf returns the error code label for err, or "ok".
func codeOf(err error) string {
	if err == nil {
		return "ok"
	}
	if e := tsrpc.DefaultErrorTransformer(err); e != nil {
		return string(e.Code)
	}
	return string(tsrpc.CodeInternal)
}
