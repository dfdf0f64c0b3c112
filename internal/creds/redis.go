package creds

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fixed storage keys for the token pair.
const (
	redisKeyAccess  = "punter:session:access"
	redisKeyRefresh = "punter:session:refresh"
)

// Redis persists tokens in a Redis instance. Useful for headless deployments
// (bots, monitors) where several processes share one session.
type Redis struct {
	client *redis.Client
}

var (
	redisAddr     = getEnv("REDIS_URL", "localhost:6379")
	redisPassword = getEnv("REDIS_PASSWORD", "")
	redisDB       = getEnvAsInt("REDIS_DB", 0)
)

// NewRedis connects using REDIS_URL / REDIS_PASSWORD / REDIS_DB and returns
// nil if the instance is unreachable, so callers can fall back to a file
// store.
func NewRedis() *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     redisPassword,
		DB:           redisDB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Printf("[CREDS] Redis connection failed: %v", err)
		return nil
	}

	return &Redis{client: client}
}

// NewRedisWithClient wraps an existing client, used by integration tests.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Load() (Tokens, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	vals, err := r.client.MGet(ctx, redisKeyAccess, redisKeyRefresh).Result()
	if err != nil {
		return Tokens{}, err
	}

	var t Tokens
	if s, ok := vals[0].(string); ok {
		t.Access = s
	}
	if s, ok := vals[1].(string); ok {
		t.Refresh = s
	}
	return t, nil
}

func (r *Redis) Save(t Tokens) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, redisKeyAccess, t.Access, 0)
	pipe.Set(ctx, redisKeyRefresh, t.Refresh, 0)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	return r.client.Del(ctx, redisKeyAccess, redisKeyRefresh).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
