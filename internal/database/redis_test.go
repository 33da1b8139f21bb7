package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func restoreRedisSeams(t *testing.T) {
	t.Helper()
	origNew := redisNewClient
	origPing := redisPingFn
	t.Cleanup(func() {
		redisNewClient = origNew
		redisPingFn = origPing
	})
}

func TestNewRedisDBPingError(t *testing.T) {
	restoreRedisSeams(t)

	pingErr := errors.New("connection refused")
	redisNewClient = func(*redis.Options) *redis.Client {
		return &redis.Client{}
	}
	redisPingFn = func(context.Context, *redis.Client) error {
		return pingErr
	}

	db, err := NewRedisDB("localhost:6379", "", 0)
	if db != nil {
		t.Fatal("expected nil db on ping failure")
	}
	if !errors.Is(err, pingErr) {
		t.Fatalf("expected wrapped ping error, got %v", err)
	}
	if !strings.Contains(err.Error(), "pinging redis") {
		t.Errorf("error missing ping context: %v", err)
	}
}

func TestNewRedisDBClientOptions(t *testing.T) {
	restoreRedisSeams(t)

	var got *redis.Options
	redisNewClient = func(opts *redis.Options) *redis.Client {
		got = opts
		return &redis.Client{}
	}
	redisPingFn = func(context.Context, *redis.Client) error {
		return nil
	}

	db, err := NewRedisDB("cache:6380", "hunter2", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db == nil || db.Client == nil {
		t.Fatal("expected db with client")
	}

	if got.Addr != "cache:6380" {
		t.Errorf("Addr = %q, want cache:6380", got.Addr)
	}
	if got.Password != "hunter2" {
		t.Errorf("Password = %q, want hunter2", got.Password)
	}
	if got.DB != 3 {
		t.Errorf("DB = %d, want 3", got.DB)
	}
	if got.DialTimeout != 5*time.Second {
		t.Errorf("DialTimeout = %v, want 5s", got.DialTimeout)
	}
	if got.ReadTimeout != 3*time.Second {
		t.Errorf("ReadTimeout = %v, want 3s", got.ReadTimeout)
	}
	if got.WriteTimeout != 3*time.Second {
		t.Errorf("WriteTimeout = %v, want 3s", got.WriteTimeout)
	}
	if got.PoolSize != 10 {
		t.Errorf("PoolSize = %d, want 10", got.PoolSize)
	}
	if got.MinIdleConns != 2 {
		t.Errorf("MinIdleConns = %d, want 2", got.MinIdleConns)
	}
}

func TestRedisDBHealth(t *testing.T) {
	restoreRedisSeams(t)

	healthErr := errors.New("loading dataset")
	redisPingFn = func(context.Context, *redis.Client) error {
		return healthErr
	}

	db := &RedisDB{Client: &redis.Client{}}
	if err := db.Health(context.Background()); !errors.Is(err, healthErr) {
		t.Fatalf("expected health error, got %v", err)
	}

	redisPingFn = func(context.Context, *redis.Client) error {
		return nil
	}
	if err := db.Health(context.Background()); err != nil {
		t.Fatalf("unexpected health error: %v", err)
	}
}

func TestRedisDBCloseNilClient(t *testing.T) {
	if err := (&RedisDB{}).Close(); err != nil {
		t.Fatalf("Close on nil client should be a no-op, got %v", err)
	}
}
