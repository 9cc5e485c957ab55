package notify

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RedisPublisher struct {
	Client *redis.Client
}

func (p RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.Client.Publish(ctx, channel, payload).Err()
}

// NopPublisher is used when no Redis is configured.
type NopPublisher struct {
	Logger zerolog.Logger
}

func (p NopPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	p.Logger.Debug().Str("channel", channel).Msg("realtime disabled, publish skipped")
	return nil
}
