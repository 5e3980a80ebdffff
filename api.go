package tsrpc

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
)

// API is the registration surface for live endpoints. It tracks which
// declared endpoints have been activated, routes POST /<name> to them and
// applies middleware, interceptors and error handling.
//
// Use Handler() to get an http.Handler for use with http.ListenAndServe.
type API struct {
	mu                 sync.RWMutex
	registry           *Registry
	active             map[string]struct{}
	routes             map[string]Bindable
	errorTransformer   ErrorTransformer
	maskInternalErrors bool
	interceptors       []UnaryInterceptor
	middlewares        []func(http.Handler) http.Handler
	logger             *slog.Logger
	maxRequestBodySize uint64
}

// Bindable is an endpoint that can be served by an API. It is implemented
// by *Endpoint and cannot be implemented outside this package.
type Bindable interface {
	Name() string
	Descriptor() *Descriptor
	serveHTTP(ctx *Context)
}

// NewAPI returns an API that reads descriptors from the default registry.
func NewAPI() *API {
	return &API{
		active:             make(map[string]struct{}),
		routes:             make(map[string]Bindable),
		maxRequestBodySize: 1 << 20, // 1MB default
	}
}

// WithRegistry sets the registry the client generator reads from.
// Endpoints created with DeclareIn should use the same registry.
func (a *API) WithRegistry(r *Registry) *API {
	a.registry = r
	return a
}

// WithErrorTransformer adds a custom error transformer.
func (a *API) WithErrorTransformer(fn ErrorTransformer) *API {
	a.errorTransformer = fn
	return a
}

// WithMaskInternalErrors replaces the message of internal errors with a
// generic one. The original error is still visible to interceptors.
func (a *API) WithMaskInternalErrors() *API {
	a.maskInternalErrors = true
	return a
}

// WithUnaryInterceptor adds a global interceptor. Global interceptors run
// before endpoint interceptors, in the order they were added.
func (a *API) WithUnaryInterceptor(i UnaryInterceptor) *API {
	a.interceptors = append(a.interceptors, i)
	return a
}

// WithMiddleware adds an HTTP middleware to wrap the API.
// Middleware is applied in the order added (first added is outermost).
func (a *API) WithMiddleware(mw func(http.Handler) http.Handler) *API {
	a.middlewares = append(a.middlewares, mw)
	return a
}

// WithLogger sets a custom logger. If not set, slog.Default() is used.
func (a *API) WithLogger(logger *slog.Logger) *API {
	a.logger = logger
	return a
}

// WithMaxRequestBodySize sets the default maximum request body size.
// A value of 0 means no limit. Default is 1MB (1 << 20).
func (a *API) WithMaxRequestBodySize(size uint64) *API {
	a.maxRequestBodySize = size
	return a
}

// Registry returns the registry the API's endpoints were declared in.
func (a *API) Registry() *Registry {
	if a.registry == nil {
		return DefaultRegistry()
	}
	return a.registry
}

func (a *API) log() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}

// Activate marks name as bound to a live handler. It fails with
// ErrDuplicateActivation if name is already active.
func (a *API) Activate(name string) error {
	if name == "" {
		return errors.New("tsrpc: empty endpoint name")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activateLocked(name)
}

func (a *API) activateLocked(name string) error {
	if _, exists := a.active[name]; exists {
		a.log().Warn("duplicate activation", slog.String("endpoint", name))
		return fmt.Errorf("%w: %q", ErrDuplicateActivation, name)
	}
	a.active[name] = struct{}{}
	return nil
}

// ActivatedNames returns the names of all activated endpoints, sorted.
func (a *API) ActivatedNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Sorted(maps.Keys(a.active))
}

// IsActive reports whether name has been activated.
func (a *API) IsActive(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.active[name]
	return ok
}

// Bind activates the endpoint and routes POST /<name> to it.
// The route is not installed if activation fails.
func (a *API) Bind(ep Bindable) error {
	name := ep.Name()
	if name == "" {
		return errors.New("tsrpc: empty endpoint name")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.activateLocked(name); err != nil {
		return err
	}
	a.routes[name] = ep
	return nil
}

// MustBind is like Bind but panics on error. It is meant for startup code
// where a duplicate name is a programming error.
func (a *API) MustBind(eps ...Bindable) *API {
	for _, ep := range eps {
		if err := a.Bind(ep); err != nil {
			panic(err.Error())
		}
	}
	return a
}

// Handler returns an http.Handler that includes all configured middleware.
//
//	api := tsrpc.NewAPI().WithMiddleware(cors)
//	http.ListenAndServe(":8080", api.Handler())
func (a *API) Handler() http.Handler {
	var h http.Handler = http.HandlerFunc(a.serveHTTP)
	for i := len(a.middlewares) - 1; i >= 0; i-- {
		h = a.middlewares[i](h)
	}
	return h
}

func (a *API) serveHTTP(w http.ResponseWriter, req *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			a.log().Error("PANIC recovered",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			msg := fmt.Sprintf("internal server error (panic): %v", rec)
			if a.maskInternalErrors {
				msg = "internal server error"
			}
			writeError(w, NewError(CodeInternal, msg), a.logger)
		}
	}()

	name := strings.TrimPrefix(req.URL.Path, "/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, NewError(CodeNotFound, "route not found"), a.logger)
		return
	}

	a.mu.RLock()
	ep, ok := a.routes[name]
	a.mu.RUnlock()
	if !ok {
		writeError(w, NewError(CodeNotFound, "route not found"), a.logger)
		return
	}

	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, Errorf(CodeMethodNotAllowed, "method %s not allowed, expected POST", req.Method), a.logger)
		return
	}

	ctx := newContext(req.Context(), w, req, name)
	ctx.errorTransformer = a.errorTransformer
	ctx.maskInternalErrors = a.maskInternalErrors
	ctx.interceptors = a.interceptors
	ctx.logger = a.logger
	ctx.maxRequestBodySize = a.maxRequestBodySize

	ep.serveHTTP(ctx)
}
