package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/broady/tsrpc"
	"github.com/broady/tsrpc/middleware"
)

// Password is sent as an object so the generated client has a named type
// to qualify.
type Password struct {
	Password string `json:"password" validate:"required,min=8"`
}

type LoginParams struct {
	Email    string   `param:"email" validate:"required,email"`
	Password Password `param:"password"`
}

type RegisterParams struct {
	Email       string   `param:"email" validate:"required,email"`
	Password    Password `param:"password"`
	DisplayName string   `param:"displayName" validate:"max=64"`
}

type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// RegisterProblem explains why a registration was refused.
type RegisterProblem struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type account struct {
	user     User
	password string
}

// userStore is an in-memory account table keyed by lower-cased email.
type userStore struct {
	mu       sync.Mutex
	accounts map[string]account
	sessions map[string]string // token -> user id
}

func newUserStore() *userStore {
	return &userStore{
		accounts: make(map[string]account),
		sessions: make(map[string]string),
	}
}

func (s *userStore) register(ctx context.Context, p RegisterParams) (tsrpc.Outcome[User, []RegisterProblem], error) {
	key := strings.ToLower(p.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	var problems []RegisterProblem
	if _, exists := s.accounts[key]; exists {
		problems = append(problems, RegisterProblem{Field: "email", Reason: "already registered"})
	}
	if strings.EqualFold(p.Password.Password, p.Email) {
		problems = append(problems, RegisterProblem{Field: "password", Reason: "must differ from email"})
	}
	if len(problems) > 0 {
		return tsrpc.Fail[User](problems), nil
	}

	u := User{ID: uuid.NewString(), Email: p.Email, DisplayName: p.DisplayName}
	s.accounts[key] = account{user: u, password: p.Password.Password}
	if call, ok := tsrpc.FromContext(ctx); ok {
		call.Logger().InfoContext(ctx, "user registered", slog.String("user_id", u.ID))
	}
	return tsrpc.Ok[User, []RegisterProblem](u), nil
}

// login returns a session token.
func (s *userStore) login(ctx context.Context, p LoginParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[strings.ToLower(p.Email)]
	if !ok || acct.password != p.Password.Password {
		return "", tsrpc.NewError(tsrpc.CodeUnauthenticated, "invalid email or password")
	}
	token := uuid.NewString()
	s.sessions[token] = acct.user.ID
	return token, nil
}

// newAPI declares the demo endpoints in a fresh registry and binds them.
func newAPI(store *userStore, logger *slog.Logger, metrics prometheus.Registerer) *tsrpc.API {
	reg := tsrpc.NewRegistry()
	login := tsrpc.DeclareIn(reg, "login", store.login)
	register := tsrpc.DeclareIn(reg, "register", store.register)

	return tsrpc.NewAPI().
		WithRegistry(reg).
		WithLogger(logger).
		WithMaskInternalErrors().
		WithUnaryInterceptor(middleware.Tracing(nil)).
		WithUnaryInterceptor(middleware.Logging(nil)).
		WithUnaryInterceptor(middleware.NewMetrics(metrics).Interceptor()).
		MustBind(login, register)
}
