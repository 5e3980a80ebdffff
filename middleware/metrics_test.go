package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/broady/tsrpc/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	h := newTestAPI(t, m.Interceptor()).Handler()

	testutil.Call("echo", "a").Serve(h)
	testutil.Call("echo", "b").Serve(h)
	testutil.Call("fail").Serve(h)
	// Rejected before the interceptor chain runs.
	testutil.Call("echo").Serve(h)

	if got := promtest.ToFloat64(m.calls.WithLabelValues("echo", "ok")); got != 2 {
		t.Errorf("echo ok calls = %v, want 2", got)
	}
	if got := promtest.ToFloat64(m.calls.WithLabelValues("fail", "not_found")); got != 1 {
		t.Errorf("fail not_found calls = %v, want 1", got)
	}
	if got := promtest.CollectAndCount(m.duration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
	if got := promtest.ToFloat64(m.inFlight.WithLabelValues("echo")); got != 0 {
		t.Errorf("in-flight = %v, want 0", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	testutil.Call("echo", "x").Serve(newTestAPI(t, m.Interceptor()).Handler())

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`tsrpc_calls_total{code="ok",endpoint="echo"} 1`,
		"tsrpc_call_duration_seconds_bucket",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on second registration")
		}
	}()
	NewMetrics(reg)
}
