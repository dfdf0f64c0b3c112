package creds

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

var redisTestClient *redis.Client

func mustStartRedisContainer() (func(context.Context) error, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return nil, err
	}

	uri, err := container.ConnectionString(context.Background())
	if err != nil {
		return container.Terminate, err
	}

	opts, err := redis.ParseURL(uri)
	if err != nil {
		return container.Terminate, err
	}
	redisTestClient = redis.NewClient(opts)

	return container.Terminate, nil
}

func TestMain(m *testing.M) {
	// Skip integration tests if SKIP_INTEGRATION env var is set
	if os.Getenv("SKIP_INTEGRATION") != "" {
		os.Exit(m.Run())
	}

	if os.Getenv("CI") == "" && !isDockerAvailable() {
		os.Exit(m.Run())
	}

	teardown, err := mustStartRedisContainer()
	if err != nil {
		os.Exit(m.Run())
	}

	code := m.Run()

	if teardown != nil {
		teardown(context.Background())
	}

	os.Exit(code)
}

func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.DaemonHost(ctx)
	return err == nil
}

func TestRedis_RoundTrip(t *testing.T) {
	if redisTestClient == nil {
		t.Skip("redis container not available")
	}

	s := NewRedisWithClient(redisTestClient)

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !got.Empty() {
		t.Errorf("Load() after Clear() = %+v, want empty", got)
	}

	want := Tokens{Access: "acc-r", Refresh: "ref-r"}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err = s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestRedis_ClearRemovesBothKeys(t *testing.T) {
	if redisTestClient == nil {
		t.Skip("redis container not available")
	}

	s := NewRedisWithClient(redisTestClient)

	if err := s.Save(Tokens{Access: "a", Refresh: "r"}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !got.Empty() {
		t.Errorf("Load() = %+v, want empty", got)
	}
}
