package cache

import (
	"context"
	"fmt"
	"time"

	"bankledger/internal/config"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// OpenRedis returns a client that answered a PING. The same client backs
// the shared-ledger mailbox and the per-customer locks.
func OpenRedis(cfg *config.RedisConfig, log zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	log.Info().Str("addr", client.Options().Addr).Msg("redis connected")
	return client, nil
}
