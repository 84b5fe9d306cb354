package health

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/railops/observe"
)

func fixed(name string, r Result) Checker {
	return NewCheckerFunc(name, func(context.Context) Result { return r })
}

func TestNewAggregator_Defaults(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	if agg.config.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", agg.config.Timeout)
	}
}

func TestAggregator_Register(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register(fixed("redis", Healthy("ok")))
	agg.Register(fixed("gateway", Healthy("ok")))
	agg.Register(fixed("redis", Degraded("slow")))

	names := agg.CheckerNames()
	if len(names) != 2 || names[0] != "redis" || names[1] != "gateway" {
		t.Fatalf("CheckerNames() = %v", names)
	}

	r, err := agg.Check(context.Background(), "redis")
	if err != nil || r.Status != StatusDegraded {
		t.Errorf("Check(redis) = %v, %v; want the replacement checker", r.Status, err)
	}
}

func TestAggregator_CheckNotFound(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	if _, err := agg.Check(context.Background(), "missing"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("Check() error = %v, want ErrCheckerNotFound", err)
	}
}

func TestAggregator_CheckAll(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register(fixed("a", Healthy("ok")))
	agg.Register(fixed("b", Degraded("open")))

	results := agg.CheckAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results["b"].Status != StatusDegraded {
		t.Errorf("b = %v", results["b"].Status)
	}
	if results["a"].Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestAggregator_CheckAllTimeout(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	agg.Register(NewCheckerFunc("stuck", func(ctx context.Context) Result {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return Healthy("late")
	}))

	r := agg.CheckAll(context.Background())["stuck"]
	if r.Status != StatusUnhealthy || !errors.Is(r.Error, ErrCheckTimeout) {
		t.Errorf("result = %+v, want timeout", r)
	}
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]Result
		want    Status
	}{
		{name: "empty", results: nil, want: StatusHealthy},
		{name: "all healthy", results: map[string]Result{"a": Healthy(""), "b": Healthy("")}, want: StatusHealthy},
		{name: "one degraded", results: map[string]Result{"a": Healthy(""), "b": Degraded("")}, want: StatusDegraded},
		{name: "unhealthy wins", results: map[string]Result{"a": Degraded(""), "b": Unhealthy("", nil)}, want: StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overall(tt.results); got != tt.want {
				t.Errorf("Overall() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAggregator_LogsTransitions(t *testing.T) {
	var buf bytes.Buffer
	agg := NewAggregator(AggregatorConfig{Logger: observe.NewLoggerWithWriter("info", &buf)})

	status := Degraded("circuit open")
	agg.Register(NewCheckerFunc("gateway", func(context.Context) Result { return status }))

	agg.CheckAll(context.Background())
	agg.CheckAll(context.Background())
	status = Healthy("closed")
	agg.CheckAll(context.Background())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"warn"`) || !strings.Contains(lines[0], "degraded") {
		t.Errorf("first line = %s", lines[0])
	}
	if !strings.Contains(lines[1], `"info"`) {
		t.Errorf("second line = %s", lines[1])
	}
}

func TestStatus_String(t *testing.T) {
	tests := map[Status]string{
		StatusHealthy:   "healthy",
		StatusDegraded:  "degraded",
		StatusUnhealthy: "unhealthy",
		Status(42):      "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
