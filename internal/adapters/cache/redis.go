package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the redis connection settings read from the
// environment. Redis is optional: when Host is empty the service runs
// without the pending-goals cache and without the rate limiter.
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (c Config) Enabled() bool {
	return c.Host != ""
}

// Connect opens a client and verifies it with a short ping so a bad
// address fails at startup, not on the first cached read.
func Connect(cfg Config) (*redis.Client, error) {
	port := cfg.Port
	if port == "" {
		port = "6379"
	}
	addr := fmt.Sprintf("%s:%s", cfg.Host, port)

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return rdb, nil
}
