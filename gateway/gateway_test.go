package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	perrors "github.com/jmgilman/go/errors"

	"github.com/jonwraymond/railops/apierr"
	"github.com/jonwraymond/railops/observe"
	"github.com/jonwraymond/railops/resilience"
	"github.com/jonwraymond/railops/upstream"
)

type timetable struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// scriptedServer answers with the given statuses in order, then 200.
func scriptedServer(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1))
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			return
		}
		_, _ = io.WriteString(w, `{"from":"BPK","to":"SZOB"}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func fetch(c *upstream.Client) func(context.Context) (timetable, error) {
	return func(ctx context.Context) (timetable, error) {
		var tt timetable
		err := c.GetJSON(ctx, "/timetable", nil, &tt)
		return tt, err
	}
}

func fastRetry() PolicyConfig {
	return PolicyConfig{
		Rate:         1000,
		Burst:        100,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		MaxFailures:  5,
	}
}

func TestCall_RetryThenSucceed(t *testing.T) {
	srv, hits := scriptedServer(t, http.StatusServiceUnavailable, http.StatusServiceUnavailable)
	g := New(Config{Policies: map[string]PolicyConfig{"getTimetable": fastRetry()}})

	got, err := Call(context.Background(), g, "getTimetable", fetch(upstream.New(upstream.Config{BaseURL: srv.URL})))
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got.From != "BPK" || got.To != "SZOB" {
		t.Errorf("Call() = %+v", got)
	}
	if hits.Load() != 3 {
		t.Errorf("upstream hits = %d, want 3", hits.Load())
	}

	breaker := g.Policy("getTimetable").Breaker()
	if breaker.State() != resilience.StateClosed {
		t.Errorf("breaker state = %s, want closed", breaker.State())
	}
	if m := breaker.Metrics(); m.Failures != 0 {
		t.Errorf("breaker recorded %d failures, want 0", m.Failures)
	}
}

func TestCall_RetriesUnclassifiedTransientErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"refused dial", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}},
		{"deadline exceeded", context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(Config{Policies: map[string]PolicyConfig{"getTimetable": fastRetry()}})

			var invoked atomic.Int32
			got, err := Call(context.Background(), g, "getTimetable", func(context.Context) (int, error) {
				if invoked.Add(1) <= 2 {
					return 0, tt.err
				}
				return 42, nil
			})
			if err != nil {
				t.Fatalf("Call() error = %v", err)
			}
			if got != 42 {
				t.Errorf("Call() = %d, want 42", got)
			}
			if invoked.Load() != 3 {
				t.Errorf("raw invoked %d times, want 3", invoked.Load())
			}
		})
	}
}

func TestCall_CanceledIsNotRetried(t *testing.T) {
	g := New(Config{Policies: map[string]PolicyConfig{"getTimetable": fastRetry()}})

	var invoked atomic.Int32
	_, err := Call(context.Background(), g, "getTimetable", func(context.Context) (int, error) {
		invoked.Add(1)
		return 0, context.Canceled
	})

	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Kind != apierr.KindInternal {
		t.Fatalf("error = %v", err)
	}
	if invoked.Load() != 1 {
		t.Errorf("raw invoked %d times, want 1", invoked.Load())
	}
}

func TestCall_ClientErrorIsNotRetried(t *testing.T) {
	srv, hits := scriptedServer(t, http.StatusBadRequest)
	g := New(Config{Policies: map[string]PolicyConfig{"getTimetable": fastRetry()}})

	_, err := Call(context.Background(), g, "getTimetable", fetch(upstream.New(upstream.Config{BaseURL: srv.URL})))

	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *apierr.Error, got %T: %v", err, err)
	}
	if ae.Kind != apierr.KindExternal || ae.Status != http.StatusBadRequest {
		t.Errorf("error = %+v", ae)
	}
	if ae.URL != srv.URL+"/timetable" {
		t.Errorf("URL = %q", ae.URL)
	}
	if hits.Load() != 1 {
		t.Errorf("upstream hits = %d, want 1", hits.Load())
	}
	if g.Policy("getTimetable").Breaker().Metrics().Failures != 0 {
		t.Error("client error counted against the breaker")
	}
}

func TestCall_RetriesExhausted(t *testing.T) {
	srv, hits := scriptedServer(t, 502, 502, 502, 502)
	g := New(Config{Policies: map[string]PolicyConfig{"getTimetable": fastRetry()}})

	_, err := Call(context.Background(), g, "getTimetable", fetch(upstream.New(upstream.Config{BaseURL: srv.URL})))

	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Kind != apierr.KindExternal || ae.Status != 502 {
		t.Fatalf("error = %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("upstream hits = %d, want 3", hits.Load())
	}
	if apierr.HTTPStatus(err) != http.StatusBadGateway {
		t.Errorf("HTTPStatus = %d", apierr.HTTPStatus(err))
	}
}

func TestCall_RateLimited(t *testing.T) {
	g := New(Config{Policies: map[string]PolicyConfig{
		"getCoordinates": {Rate: 0.001, Burst: 1, Endpoint: "https://maps.example.org"},
	}})

	var invoked atomic.Int32
	raw := func(context.Context) (int, error) {
		invoked.Add(1)
		return 1, nil
	}

	if _, err := Call(context.Background(), g, "getCoordinates", raw); err != nil {
		t.Fatalf("first call: %v", err)
	}
	_, err := Call(context.Background(), g, "getCoordinates", raw)

	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *apierr.Error, got %v", err)
	}
	if ae.Kind != apierr.KindInternal || ae.Message != apierr.MessageRateLimitExceeded {
		t.Errorf("error = %+v", ae)
	}
	if ae.URL != "https://maps.example.org" {
		t.Errorf("URL = %q", ae.URL)
	}
	if ae.Code() != perrors.CodeRateLimit {
		t.Errorf("code = %s", ae.Code())
	}
	if invoked.Load() != 1 {
		t.Errorf("raw invoked %d times, want 1", invoked.Load())
	}
}

func TestCall_CircuitOpen(t *testing.T) {
	g := New(Config{Policies: map[string]PolicyConfig{
		"getWeatherInfo": {MaxFailures: 1, MaxAttempts: 1, ResetTimeout: time.Hour},
	}})

	var invoked atomic.Int32
	raw := func(context.Context) (string, error) {
		invoked.Add(1)
		return "", perrors.New(perrors.CodeUnavailable, "weather provider down")
	}

	if _, err := Call(context.Background(), g, "getWeatherInfo", raw); err == nil {
		t.Fatal("first call should fail")
	}
	_, err := Call(context.Background(), g, "getWeatherInfo", raw)

	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Message != apierr.MessageCircuitOpen {
		t.Fatalf("error = %v", err)
	}
	if apierr.HTTPStatus(err) != http.StatusServiceUnavailable {
		t.Errorf("HTTPStatus = %d", apierr.HTTPStatus(err))
	}
	if invoked.Load() != 1 {
		t.Errorf("raw invoked %d times, want 1", invoked.Load())
	}
}

func TestCall_AttemptTimeout(t *testing.T) {
	g := New(Config{Policies: map[string]PolicyConfig{
		"getTimetable": {MaxAttempts: 2, InitialDelay: time.Millisecond, AttemptTimeout: 10 * time.Millisecond},
	}})

	var invoked atomic.Int32
	_, err := Call(context.Background(), g, "getTimetable", func(ctx context.Context) (int, error) {
		invoked.Add(1)
		<-ctx.Done()
		return 0, ctx.Err()
	})

	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Message != apierr.MessageTimeout {
		t.Fatalf("error = %v", err)
	}
	if ae.Code() != perrors.CodeTimeout {
		t.Errorf("code = %s", ae.Code())
	}
	if invoked.Load() != 2 {
		t.Errorf("raw invoked %d times, want 2", invoked.Load())
	}
}

func TestCall_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	mw := observe.NewMiddleware(nil, nil, observe.NewLoggerWithWriter("info", &buf))
	g := New(Config{Middleware: mw, Default: PolicyConfig{MaxAttempts: 1}})

	_, _ = Call(context.Background(), g, "getTimetable", func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})

	if !bytes.Contains(buf.Bytes(), []byte(`"op":"getTimetable"`)) {
		t.Errorf("missing op in log output: %s", buf.String())
	}
}

func TestGateway_PolicyShared(t *testing.T) {
	g := New(Config{
		Default:  PolicyConfig{Rate: 7, MaxAttempts: 4},
		Policies: map[string]PolicyConfig{"getTimetable": {Rate: 2}},
	})

	a := g.Policy("getTimetable")
	b := g.Policy("getTimetable")
	if a != b {
		t.Fatal("Policy() returned distinct instances for one name")
	}
	if cfg := a.Config(); cfg.Rate != 2 || cfg.MaxAttempts != 4 {
		t.Errorf("merged config = %+v", cfg)
	}
	if g.Policy("other").Config().Rate != 7 {
		t.Error("unconfigured policy did not inherit defaults")
	}

	names := []string{}
	for _, p := range g.Policies() {
		names = append(names, p.Name())
	}
	if len(names) != 2 || names[0] != "getTimetable" || names[1] != "other" {
		t.Errorf("Policies() = %v", names)
	}
}

func TestGateway_Warm(t *testing.T) {
	g := New(Config{Policies: map[string]PolicyConfig{"a": {}, "b": {}}})
	g.Warm()
	if len(g.Policies()) != 2 {
		t.Errorf("Policies() = %d, want 2", len(g.Policies()))
	}
}
