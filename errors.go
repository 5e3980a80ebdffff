package tsrpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrDuplicateActivation is returned by Activate and Bind when the name is
// already active. Every generated function shares one flat namespace, so
// each name may be bound to exactly one live handler.
var ErrDuplicateActivation = errors.New("tsrpc: duplicate activation")

// ErrorCode is the machine-readable code in an error envelope.
type ErrorCode string

// Codes produced by the binding itself. Handlers may return any of them, or
// a code of their own, which is served as 500.
const (
	// CodeInvalidArgument: malformed body, wrong arity or failed validation.
	CodeInvalidArgument ErrorCode = "invalid_argument"
	// CodeUnauthenticated is for handlers and interceptors that reject a caller.
	CodeUnauthenticated ErrorCode = "unauthenticated"
	// CodeNotFound: no endpoint is active under the requested path.
	CodeNotFound ErrorCode = "not_found"
	// CodeMethodNotAllowed: the request was not a POST.
	CodeMethodNotAllowed ErrorCode = "method_not_allowed"
	// CodeResourceExhausted: the body exceeded the size limit.
	CodeResourceExhausted ErrorCode = "resource_exhausted"
	// CodeCanceled: the caller went away before the handler finished.
	CodeCanceled ErrorCode = "canceled"
	// CodeDeadlineExceeded: the call's deadline passed.
	CodeDeadlineExceeded ErrorCode = "deadline_exceeded"
	// CodeInternal covers every error that maps to nothing more specific.
	CodeInternal ErrorCode = "internal"
)

var codeStatus = map[ErrorCode]int{
	CodeInvalidArgument:   http.StatusBadRequest,
	CodeUnauthenticated:   http.StatusUnauthorized,
	CodeNotFound:          http.StatusNotFound,
	CodeMethodNotAllowed:  http.StatusMethodNotAllowed,
	CodeResourceExhausted: http.StatusRequestEntityTooLarge,
	CodeCanceled:          499, // nginx "client closed request"
	CodeDeadlineExceeded:  http.StatusGatewayTimeout,
	CodeInternal:          http.StatusInternalServerError,
}

// HTTPStatus returns the response status for c. Unknown codes are 500.
func (c ErrorCode) HTTPStatus() int {
	if s, ok := codeStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is the JSON error envelope returned to clients.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewError returns an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf is NewError with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WithDetail returns a copy of e with key set in its details.
func (e *Error) WithDetail(key string, value any) *Error {
	return e.WithDetails(map[string]any{key: value})
}

// WithDetails returns a copy of e with details merged in. The receiver is
// returned unchanged when details is empty.
func (e *Error) WithDetails(details map[string]any) *Error {
	if len(details) == 0 {
		return e
	}
	merged := maps.Clone(e.Details)
	if merged == nil {
		merged = make(map[string]any, len(details))
	}
	maps.Copy(merged, details)
	return &Error{Code: e.Code, Message: e.Message, Details: merged}
}

// ErrorTransformer maps an application error to an envelope.
// If it returns nil, DefaultErrorTransformer is applied.
type ErrorTransformer func(error) *Error

// DefaultErrorTransformer maps the errors the binding and the standard
// library produce to envelopes. Anything unrecognised is internal.
func DefaultErrorTransformer(err error) *Error {
	if err == nil {
		return nil
	}

	var (
		rpcErr   *Error
		maxBytes *http.MaxBytesError
		valErrs  validator.ValidationErrors
	)
	switch {
	case errors.As(err, &rpcErr):
		return rpcErr
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(CodeDeadlineExceeded, "request timeout")
	case errors.Is(err, context.Canceled):
		return NewError(CodeCanceled, "context canceled")
	case errors.As(err, &maxBytes):
		return Errorf(CodeResourceExhausted, "request body exceeds %d bytes", maxBytes.Limit)
	case errors.As(err, &valErrs):
		return validationError(valErrs)
	}

	if u, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := u.Unwrap(); len(errs) > 0 {
			return joinedError(errs)
		}
	}
	return NewError(CodeInternal, err.Error())
}

// validationError reports every failed parameter, keyed by parameter name
// in the details.
func validationError(errs validator.ValidationErrors) *Error {
	details := make(map[string]any, len(errs))
	messages := make([]string, 0, len(errs))
	for _, fe := range errs {
		msg := validationMessage(fe)
		details[fe.Field()] = msg
		messages = append(messages, fe.Field()+": "+msg)
	}
	return &Error{
		Code:    CodeInvalidArgument,
		Message: strings.Join(messages, "; "),
		Details: details,
	}
}

// joinedError takes its code and details from the first error and its
// message from all of them.
func joinedError(errs []error) *Error {
	first := DefaultErrorTransformer(errs[0])
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return &Error{Code: first.Code, Message: strings.Join(msgs, "; "), Details: first.Details}
}

// validationMessage describes a failed constraint. Size bounds are phrased
// by what they measure, so min=3 reads as characters on a string and as
// items on a slice.
func validationMessage(fe validator.FieldError) string {
	unit := ""
	switch fe.Kind() {
	case reflect.String:
		unit = " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		unit = " items"
	}

	switch fe.Tag() {
	case "required":
		return "required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param() + unit
	case "max", "lte":
		return "must be at most " + fe.Param() + unit
	case "len":
		return "must be exactly " + fe.Param() + unit
	case "gt":
		return "must be greater than " + fe.Param() + unit
	case "lt":
		return "must be less than " + fe.Param() + unit
	}
	if fe.Param() != "" {
		return fmt.Sprintf("failed %s=%s validation", fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

// handleError transforms err with the call's configuration and writes it.
func handleError(ctx *Context, err error) {
	var rpcErr *Error
	if ctx.errorTransformer != nil {
		rpcErr = ctx.errorTransformer(err)
	}
	if rpcErr == nil {
		rpcErr = DefaultErrorTransformer(err)
	}
	if ctx.maskInternalErrors && rpcErr.Code == CodeInternal {
		rpcErr = NewError(CodeInternal, "internal server error")
	}
	writeError(ctx.writer, rpcErr, ctx.logger)
}

func writeError(w http.ResponseWriter, rpcErr *Error, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rpcErr.Code.HTTPStatus())
	if err := encodeErrorResponse(w, rpcErr); err != nil {
		// Headers already sent.
		logger.Error("failed to encode error response",
			slog.String("code", string(rpcErr.Code)),
			slog.String("message", rpcErr.Message),
			slog.Any("error", err))
	}
}
