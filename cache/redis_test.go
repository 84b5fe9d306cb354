package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisCache_Contract(t *testing.T) {
	_, rdb := newTestRedis(t)
	testCacheContract(t, NewRedisCache(rdb, WithRedisPrefix("test:")))
}

func TestRedisCache_TTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	c := NewRedisCache(rdb)
	ctx := context.Background()

	if err := c.Set(ctx, "weather:BPK", []byte("{}"), time.Hour); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("railops:cache:weather:BPK"); ttl != time.Hour {
		t.Errorf("TTL = %s, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, ok := c.Get(ctx, "weather:BPK"); ok {
		t.Error("value survived its TTL")
	}
}

func TestRedisCache_FlushOnlyOwnKeys(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	coords := NewRedisCache(rdb, WithRedisPrefix("railops:coordinates"))
	weather := NewRedisCache(rdb, WithRedisPrefix("railops:weather"))

	_ = coords.Set(ctx, "BPK", []byte("1"), 0)
	_ = weather.Set(ctx, "BPK", []byte("2"), 0)
	mr.Set("unrelated", "x")

	if err := coords.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if _, ok := coords.Get(ctx, "BPK"); ok {
		t.Error("coordinates entry survived Flush")
	}
	if _, ok := weather.Get(ctx, "BPK"); !ok {
		t.Error("weather entry removed by coordinates Flush")
	}
	if !mr.Exists("unrelated") {
		t.Error("unrelated key removed by Flush")
	}
	if mr.Exists("railops:coordinates:__keys") {
		t.Error("tracking set not removed")
	}
}

func TestRedisCache_Unavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	c := NewRedisCache(rdb)
	mr.Close()

	ctx := context.Background()
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Get on closed server returned a value")
	}
	if err := c.Set(ctx, "k", []byte("v"), 0); err == nil {
		t.Error("Set on closed server returned nil error")
	}
	if err := c.Ping(ctx); err == nil {
		t.Error("Ping on closed server returned nil error")
	}
}
