package tsrpc

import (
	"context"
)

// HandlerFunc represents the next handler in an interceptor chain.
type HandlerFunc func(ctx context.Context, params any) (res any, err error)

// UnaryInterceptor wraps endpoint execution.
//
//	func timing(ctx *tsrpc.Context, params any, next tsrpc.HandlerFunc) (any, error) {
//	    start := time.Now()
//	    res, err := next(ctx, params)
//	    ctx.Logger().Info("call", "endpoint", ctx.Endpoint(), "took", time.Since(start))
//	    return res, err
//	}
//
// params is the decoded parameter struct. Interceptors may inspect it,
// short-circuit by returning an error, or add values to the context before
// calling next. They must not replace params with a value of another type.
type UnaryInterceptor func(ctx *Context, params any, next HandlerFunc) (res any, err error)

// chainInterceptors combines multiple interceptors into a single one.
// The first interceptor in the slice is the outer-most one.
func chainInterceptors(interceptors []UnaryInterceptor) UnaryInterceptor {
	if len(interceptors) == 0 {
		return nil
	}
	if len(interceptors) == 1 {
		return interceptors[0]
	}
	return func(ctx *Context, params any, handler HandlerFunc) (any, error) {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			current := interceptors[i]
			next := chain
			chain = func(c context.Context, params any) (any, error) {
				callCtx, ok := c.(*Context)
				if !ok {
					// An interceptor wrapped the context; keep the wrapper so
					// its values reach the endpoint.
					base, _ := FromContext(c)
					if base == nil {
						base = ctx
					}
					wrapped := *base
					wrapped.Context = c
					callCtx = &wrapped
				}
				return current(callCtx, params, next)
			}
		}
		return chain(ctx, params)
	}
}
