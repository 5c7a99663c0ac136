package cache

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/escola-backoffice/pkg/config"
)

const defaultTimeout = 3 * time.Second

// Options maps the redis section of the config onto client options.
func Options(cfg config.RedisConfig) *redis.Options {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
}

// NewRedis returns a connected client. Callers treat an error as "run without cache".
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	opts := Options(cfg)
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	return client, nil
}
