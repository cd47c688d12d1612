package database

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/config"
)

// NewRedisClient connects the shared locator cache. It returns a nil client
// and no error when Redis is not configured, leaving the locator process-local.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:       net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password:   cfg.Password,
		DB:         cfg.DB,
		ClientName: defaultApplicationName,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach Redis at %s: %w", client.Options().Addr, err)
	}
	return client, nil
}
