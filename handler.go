package tsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report failures by parameter name, which is what clients see.
	v.RegisterTagNameFunc(paramName)
	return v
}

// Endpoint is a declared remote function. P is a struct whose exported
// fields are the positional parameters; R is the response.
type Endpoint[P any, R any] struct {
	desc               *Descriptor
	fn                 func(context.Context, P) (R, error)
	fields             [][]int // struct field index per positional parameter
	interceptors       []UnaryInterceptor
	maxRequestBodySize *uint64
	skipValidation     bool
}

// Name returns the endpoint name.
func (e *Endpoint[P, R]) Name() string { return e.desc.Name }

// Descriptor returns a copy of the endpoint's descriptor.
func (e *Endpoint[P, R]) Descriptor() *Descriptor { return e.desc.clone() }

// WithUnaryInterceptor adds an interceptor that runs after the API's global
// interceptors.
func (e *Endpoint[P, R]) WithUnaryInterceptor(i UnaryInterceptor) *Endpoint[P, R] {
	e.interceptors = append(e.interceptors, i)
	return e
}

// WithMaxRequestBodySize overrides the API's body size limit for this
// endpoint. A value of 0 means no limit.
func (e *Endpoint[P, R]) WithMaxRequestBodySize(size uint64) *Endpoint[P, R] {
	e.maxRequestBodySize = &size
	return e
}

// WithSkipValidation disables validate tag checking for this endpoint.
func (e *Endpoint[P, R]) WithSkipValidation() *Endpoint[P, R] {
	e.skipValidation = true
	return e
}

func (e *Endpoint[P, R]) serveHTTP(ctx *Context) {
	params, err := e.decode(ctx)
	if err != nil {
		handleError(ctx, err)
		return
	}

	all := make([]UnaryInterceptor, 0, len(ctx.interceptors)+len(e.interceptors))
	all = append(all, ctx.interceptors...)
	all = append(all, e.interceptors...)

	final := func(c context.Context, p any) (any, error) {
		typed, ok := p.(P)
		if !ok {
			return nil, Errorf(CodeInternal, "interceptor replaced parameters with %T", p)
		}
		return e.fn(c, typed)
	}

	var res any
	if chain := chainInterceptors(all); chain != nil {
		res, err = chain(ctx, params, final)
	} else {
		res, err = final(ctx, params)
	}
	if err != nil {
		handleError(ctx, err)
		return
	}

	ctx.writer.Header().Set("Content-Type", "application/json")
	if err := encodeResponse(ctx.writer, res); err != nil {
		// Response may be partially written.
		ctx.Logger().Error("failed to encode response",
			slog.String("endpoint", e.desc.Name),
			slog.Any("error", err))
	}
}

// decode reads the JSON array body and assigns element i to parameter i.
func (e *Endpoint[P, R]) decode(ctx *Context) (P, error) {
	var params P

	var raw []json.RawMessage
	if body := ctx.request.Body; body != nil && body != http.NoBody {
		limit := ctx.maxRequestBodySize
		if e.maxRequestBodySize != nil {
			limit = *e.maxRequestBodySize
		}
		if limit > 0 {
			body = http.MaxBytesReader(ctx.writer, body, int64(limit))
		}
		dec := json.NewDecoder(body)
		var maxBytes *http.MaxBytesError
		switch err := dec.Decode(&raw); {
		case err == nil:
			// The array must be the whole body.
			if _, err := dec.Token(); !errors.Is(err, io.EOF) {
				if errors.As(err, &maxBytes) {
					return params, err
				}
				return params, NewError(CodeInvalidArgument, "unexpected data after parameter array")
			}
		case errors.As(err, &maxBytes):
			return params, err
		case !errors.Is(err, io.EOF):
			return params, Errorf(CodeInvalidArgument, "failed to decode body: %v", err)
		}
	}

	if len(raw) != len(e.fields) {
		return params, Errorf(CodeInvalidArgument, "expected %d parameters, got %d", len(e.fields), len(raw)).
			WithDetail("params", e.desc.ParamNames())
	}

	v := reflect.ValueOf(&params).Elem()
	for i, index := range e.fields {
		dst := v.FieldByIndex(index).Addr().Interface()
		if err := json.Unmarshal(raw[i], dst); err != nil {
			name := e.desc.Params[i].Name
			return params, Errorf(CodeInvalidArgument, "parameter %s: %v", name, err).
				WithDetail("param", name)
		}
	}

	if !e.skipValidation {
		if err := validate.Struct(params); err != nil {
			return params, err
		}
	}
	return params, nil
}
