// Package redis builds the shared go-redis client used by the template
// cache, the sweep lock, and the diary event stream consumer.
package redis

import (
	"context"
	"time"

	goRedis "github.com/redis/go-redis/v9"

	"github.com/moodlog/backend/internal/config"
)

const pingTimeout = 5 * time.Second

// NewClient parses the configured URL, applies the password/DB overrides and
// verifies connectivity before handing the client out. A worker that cannot
// reach Redis at boot is misconfigured and should fail fast rather than run
// without its sweep lock.
func NewClient(cfg config.RedisConfig) (*goRedis.Client, error) {
	opts, err := goRedis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	client := goRedis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
