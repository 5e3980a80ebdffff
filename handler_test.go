package tsrpc

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/broady/tsrpc/testutil"
)

type TestResponse struct {
	Message string `json:"message"`
	ID      int    `json:"id"`
}

type greetParams struct {
	Name  string `param:"name" validate:"required,min=3"`
	Email string `param:"email" validate:"required,email"`
}

func greetHandler(t *testing.T, api *API) http.Handler {
	t.Helper()
	ep := DeclareIn(NewRegistry(), "greet", func(ctx context.Context, p greetParams) (TestResponse, error) {
		return TestResponse{Message: "hello " + p.Name, ID: 123}, nil
	})
	if err := api.Bind(ep); err != nil {
		t.Fatal(err)
	}
	return api.Handler()
}

func TestEndpoint_Success(t *testing.T) {
	h := greetHandler(t, NewAPI())

	w := testutil.Call("greet", "John", "john@example.com").Serve(h)

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, TestResponse{Message: "hello John", ID: 123})
}

func TestEndpoint_DecodeErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode ErrorCode
		wantMsg  string
	}{
		{"object instead of array", `{"name":"John"}`, CodeInvalidArgument, "failed to decode body"},
		{"too few", `["John"]`, CodeInvalidArgument, "expected 2 parameters, got 1"},
		{"too many", `["John","john@example.com",1]`, CodeInvalidArgument, "expected 2 parameters, got 3"},
		{"empty body", ``, CodeInvalidArgument, "expected 2 parameters, got 0"},
		{"null body", `null`, CodeInvalidArgument, "expected 2 parameters, got 0"},
		{"wrong element type", `[1,"john@example.com"]`, CodeInvalidArgument, "parameter name"},
		{"malformed json", `["John",`, CodeInvalidArgument, "failed to decode body"},
		{"trailing garbage", `["John","john@example.com"] junk`, CodeInvalidArgument, "unexpected data after parameter array"},
		{"second array", `["John","john@example.com"]["Jane","jane@example.com"]`, CodeInvalidArgument, "unexpected data after parameter array"},
	}

	h := greetHandler(t, NewAPI())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutil.NewRequest().POST("/greet").WithBody(tt.body).Serve(h)

			testutil.AssertStatus(t, w, tt.wantCode.HTTPStatus())
			errResp := testutil.AssertJSONError(t, w, string(tt.wantCode))
			if !strings.Contains(errResp.Message, tt.wantMsg) {
				t.Errorf("message = %q, want it to contain %q", errResp.Message, tt.wantMsg)
			}
		})
	}
}

func TestEndpoint_TrailingWhitespace(t *testing.T) {
	h := greetHandler(t, NewAPI())

	w := testutil.NewRequest().POST("/greet").WithBody("[\"John\",\"john@example.com\"]\n\t ").Serve(h)

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, TestResponse{Message: "hello John", ID: 123})
}

func TestEndpoint_Validation(t *testing.T) {
	h := greetHandler(t, NewAPI())

	w := testutil.Call("greet", "Jo", "not-an-email").Serve(h)

	testutil.AssertStatus(t, w, http.StatusBadRequest)
	errResp := testutil.AssertJSONError(t, w, string(CodeInvalidArgument))
	if errResp.Details["name"] != "must be at least 3 characters" {
		t.Errorf("name detail = %v", errResp.Details["name"])
	}
	if errResp.Details["email"] != "must be a valid email address" {
		t.Errorf("email detail = %v", errResp.Details["email"])
	}
}

func TestEndpoint_NestedValidation(t *testing.T) {
	api := NewAPI()
	if err := api.Bind(DeclareIn(NewRegistry(), "login", login)); err != nil {
		t.Fatal(err)
	}

	w := testutil.Call("login", "a@example.com", Password{Password: "short"}).Serve(api.Handler())
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	w = testutil.Call("login", "a@example.com", Password{Password: "long-enough"}).Serve(api.Handler())
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, "token-for-a@example.com")
}

func TestEndpoint_SkipValidation(t *testing.T) {
	api := NewAPI()
	ep := DeclareIn(NewRegistry(), "greet", func(ctx context.Context, p greetParams) (string, error) {
		return p.Name, nil
	}).WithSkipValidation()
	if err := api.Bind(ep); err != nil {
		t.Fatal(err)
	}

	w := testutil.Call("greet", "", "").Serve(api.Handler())
	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestEndpoint_ZeroParams(t *testing.T) {
	api := NewAPI()
	ep := DeclareIn(NewRegistry(), "ping", func(ctx context.Context, p struct{}) (string, error) {
		return "pong", nil
	})
	if err := api.Bind(ep); err != nil {
		t.Fatal(err)
	}

	for _, body := range []string{"", "[]"} {
		w := testutil.NewRequest().POST("/ping").WithBody(body).Serve(api.Handler())
		testutil.AssertStatus(t, w, http.StatusOK)
		testutil.AssertJSONResponse(t, w, "pong")
	}
}

func TestEndpoint_Routing(t *testing.T) {
	h := greetHandler(t, NewAPI())

	tests := []struct {
		name       string
		req        *testutil.RequestBuilder
		wantStatus int
		wantCode   ErrorCode
	}{
		{"unknown endpoint", testutil.Call("missing"), http.StatusNotFound, CodeNotFound},
		{"root", testutil.NewRequest().POST("/"), http.StatusNotFound, CodeNotFound},
		{"nested path", testutil.Call("greet/extra"), http.StatusNotFound, CodeNotFound},
		{"GET", testutil.NewRequest().GET("/greet"), http.StatusMethodNotAllowed, CodeMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tt.req.Serve(h)
			testutil.AssertStatus(t, w, tt.wantStatus)
			testutil.AssertJSONError(t, w, string(tt.wantCode))
		})
	}
}

func TestEndpoint_HandlerError(t *testing.T) {
	api := NewAPI()
	ep := DeclareIn(NewRegistry(), "fail", func(ctx context.Context, p struct{}) (string, error) {
		return "", NewError(CodeNotFound, "no such user").WithDetail("user", "bob")
	})
	if err := api.Bind(ep); err != nil {
		t.Fatal(err)
	}

	w := testutil.Call("fail").Serve(api.Handler())
	testutil.AssertStatus(t, w, http.StatusNotFound)
	errResp := testutil.AssertJSONError(t, w, string(CodeNotFound))
	if errResp.Details["user"] != "bob" {
		t.Errorf("details = %v", errResp.Details)
	}
}

func TestEndpoint_MaskInternalErrors(t *testing.T) {
	api := NewAPI().WithMaskInternalErrors()
	ep := DeclareIn(NewRegistry(), "boom", func(ctx context.Context, p struct{}) (string, error) {
		return "", errors.New("database password is hunter2")
	})
	if err := api.Bind(ep); err != nil {
		t.Fatal(err)
	}

	w := testutil.Call("boom").Serve(api.Handler())
	testutil.AssertStatus(t, w, http.StatusInternalServerError)
	errResp := testutil.AssertJSONError(t, w, string(CodeInternal))
	if errResp.Message != "internal server error" {
		t.Errorf("message = %q, want masked message", errResp.Message)
	}
}

func TestEndpoint_ErrorTransformer(t *testing.T) {
	errNotFound := errors.New("not found")
	api := NewAPI().WithErrorTransformer(func(err error) *Error {
		if errors.Is(err, errNotFound) {
			return NewError(CodeNotFound, "resource not found")
		}
		return nil
	})
	ep := DeclareIn(NewRegistry(), "find", func(ctx context.Context, p struct{}) (string, error) {
		return "", errNotFound
	})
	if err := api.Bind(ep); err != nil {
		t.Fatal(err)
	}

	w := testutil.Call("find").Serve(api.Handler())
	testutil.AssertStatus(t, w, http.StatusNotFound)
	testutil.AssertJSONError(t, w, string(CodeNotFound))
}

func TestEndpoint_PanicRecovery(t *testing.T) {
	var logs bytes.Buffer
	api := NewAPI().WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	ep := DeclareIn(NewRegistry(), "panics", func(ctx context.Context, p struct{}) (string, error) {
		panic("boom")
	})
	if err := api.Bind(ep); err != nil {
		t.Fatal(err)
	}

	w := testutil.Call("panics").Serve(api.Handler())
	testutil.AssertStatus(t, w, http.StatusInternalServerError)
	testutil.AssertJSONError(t, w, string(CodeInternal))
	if !strings.Contains(logs.String(), "PANIC recovered") {
		t.Errorf("expected panic log, got %q", logs.String())
	}
}

func TestEndpoint_MaxRequestBodySize(t *testing.T) {
	big := strings.Repeat("x", 256)

	t.Run("api limit", func(t *testing.T) {
		h := greetHandler(t, NewAPI().WithMaxRequestBodySize(64))
		w := testutil.Call("greet", big, "a@example.com").Serve(h)
		testutil.AssertStatus(t, w, http.StatusRequestEntityTooLarge)
		testutil.AssertJSONError(t, w, string(CodeResourceExhausted))
	})

	t.Run("endpoint override", func(t *testing.T) {
		api := NewAPI().WithMaxRequestBodySize(64)
		ep := DeclareIn(NewRegistry(), "greet", func(ctx context.Context, p greetParams) (string, error) {
			return p.Name, nil
		}).WithMaxRequestBodySize(0).WithSkipValidation()
		if err := api.Bind(ep); err != nil {
			t.Fatal(err)
		}
		w := testutil.Call("greet", big, "a@example.com").Serve(api.Handler())
		testutil.AssertStatus(t, w, http.StatusOK)
	})
}

func TestEndpoint_ContextAccess(t *testing.T) {
	api := NewAPI()
	ep := DeclareIn(NewRegistry(), "whoami", func(ctx context.Context, p struct{}) (string, error) {
		name, ok := EndpointFromContext(ctx)
		if !ok {
			return "", errors.New("no call context")
		}
		SetHeader(ctx, "X-Endpoint", name)
		return RequestFromContext(ctx).Header.Get("X-User"), nil
	})
	if err := api.Bind(ep); err != nil {
		t.Fatal(err)
	}

	w := testutil.Call("whoami").WithHeader("X-User", "alice").Serve(api.Handler())
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertHeader(t, w, "X-Endpoint", "whoami")
	testutil.AssertJSONResponse(t, w, "alice")
}

func TestEndpoint_OutcomeResponse(t *testing.T) {
	api := NewAPI()
	ep := DeclareIn(NewRegistry(), "check", func(ctx context.Context, p struct {
		N int `param:"n"`
	}) (Outcome[int, string], error) {
		if p.N < 0 {
			return Fail[int]("negative"), nil
		}
		return Ok[int, string](p.N * 2), nil
	})
	if err := api.Bind(ep); err != nil {
		t.Fatal(err)
	}

	w := testutil.Call("check", 21).Serve(api.Handler())
	testutil.AssertJSONResponse(t, w, map[string]any{"result": "Ok", "value": 42})

	w = testutil.Call("check", -1).Serve(api.Handler())
	testutil.AssertJSONResponse(t, w, map[string]any{"result": "Err", "value": "negative"})
}

func TestEndpoint_Middleware(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := greetHandler(t, NewAPI().WithMiddleware(mw("outer")).WithMiddleware(mw("inner")))

	testutil.Call("greet", "John", "john@example.com").Serve(h)
	if strings.Join(order, ",") != "outer,inner" {
		t.Errorf("middleware order = %v", order)
	}
}
