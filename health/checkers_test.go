package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/railops/gateway"
)

func TestGatewayChecker(t *testing.T) {
	gw := gateway.New(gateway.Config{Policies: map[string]gateway.PolicyConfig{
		"getWeatherInfo": {MaxFailures: 1, MaxAttempts: 1, ResetTimeout: time.Hour},
	}})
	gw.Policy("getTimetable")
	c := NewGatewayChecker(gw)

	if r := c.Check(context.Background()); r.Status != StatusHealthy {
		t.Fatalf("fresh gateway = %v: %s", r.Status, r.Message)
	}

	_, _ = gateway.Call(context.Background(), gw, "getWeatherInfo", func(context.Context) (int, error) {
		return 0, errors.New("weather provider down")
	})

	r := c.Check(context.Background())
	if r.Status != StatusDegraded {
		t.Fatalf("Status = %v, want degraded", r.Status)
	}
	if r.Details["getWeatherInfo"] != "open" || r.Details["getTimetable"] != "closed" {
		t.Errorf("Details = %v", r.Details)
	}
}

func TestRedisChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewRedisChecker("redis", rdb)

	if r := c.Check(context.Background()); r.Status != StatusHealthy {
		t.Fatalf("Status = %v, want healthy", r.Status)
	}

	mr.Close()
	r := c.Check(context.Background())
	if r.Status != StatusUnhealthy || r.Error == nil {
		t.Errorf("after close: %+v, want unhealthy", r)
	}
}

type fakeBacklog struct {
	pending int
	oldest  time.Duration
}

func (f fakeBacklog) Name() string          { return "coordinates" }
func (f fakeBacklog) Pending() int          { return f.pending }
func (f fakeBacklog) Oldest() time.Duration { return f.oldest }

func TestBacklogChecker(t *testing.T) {
	tests := []struct {
		name    string
		backlog fakeBacklog
		want    Status
	}{
		{name: "idle", backlog: fakeBacklog{}, want: StatusHealthy},
		{name: "busy but fresh", backlog: fakeBacklog{pending: 10, oldest: time.Second}, want: StatusHealthy},
		{name: "too many", backlog: fakeBacklog{pending: 11, oldest: time.Second}, want: StatusDegraded},
		{name: "too old", backlog: fakeBacklog{pending: 1, oldest: time.Minute}, want: StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewBacklogChecker(tt.backlog, BacklogConfig{MaxPending: 10, MaxAge: 30 * time.Second})
			r := c.Check(context.Background())
			if r.Status != tt.want {
				t.Errorf("Status = %v, want %v (%s)", r.Status, tt.want, r.Message)
			}
			if r.Details["pending"] != tt.backlog.pending {
				t.Errorf("Details = %v", r.Details)
			}
		})
	}

	if name := NewBacklogChecker(fakeBacklog{}, BacklogConfig{}).Name(); name != "backlog.coordinates" {
		t.Errorf("Name() = %q", name)
	}
}
