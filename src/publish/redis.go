package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"alphatrak-observer/src/interfaces"
	"alphatrak-observer/src/logger"
	"alphatrak-observer/src/models"

	"github.com/redis/go-redis/v9"
)

var _ interfaces.ISnapshotPublisher = (*RedisPublisher)(nil)

// LatestTTL bounds how long a pet's last result stays readable once the
// observer stops publishing.
const LatestTTL = 24 * time.Hour

// redisClient is the part of *redis.Client the publisher uses.
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// -----------------------------------------------------------------------------

// RedisPublisher publishes every cycle result on a channel and keeps the
// latest one per pet under "<channel>:latest:<pet id>".
type RedisPublisher struct {
	client  redisClient
	channel string
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

// NewRedisPublisher connects and pings the configured server.
func NewRedisPublisher(ctx context.Context, cfg models.MRedisConfig, log *logger.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	log.Info("Publishing cycle results to redis %s channel %q", cfg.Addr, cfg.Channel)
	return newRedisPublisher(client, cfg.Channel, log), nil
}

func newRedisPublisher(client redisClient, channel string, log *logger.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, Logger: log}
}

// -----------------------------------------------------------------------------

func (p *RedisPublisher) LatestKey(petID int64) string {
	return fmt.Sprintf("%s:latest:%d", p.channel, petID)
}

// -----------------------------------------------------------------------------

func (p *RedisPublisher) Publish(ctx context.Context, result models.MCycleResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding cycle result: %w", err)
	}

	if err := p.client.Set(ctx, p.LatestKey(result.PetID), payload, LatestTTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	receivers, err := p.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	p.Logger.Debug("Published result for pet %d to %d subscribers", result.PetID, receivers)
	return nil
}

// -----------------------------------------------------------------------------

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
