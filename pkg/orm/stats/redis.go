package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// recordTimeout bounds a single push
const recordTimeout = 2 * time.Second

// RedisConfig holds Redis sink configuration
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Key is the list the records are pushed to
	Key string
	// MaxLen caps the list length; older records are trimmed
	MaxLen int64
}

// DefaultRedisConfig returns a default Redis sink configuration
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		Key:    "entitydao:stats",
		MaxLen: 10000,
	}
}

// RedisSink pushes JSON encoded records onto a capped Redis list, newest
// first, so several processes can share one telemetry stream.
type RedisSink struct {
	client *redis.Client
	config RedisConfig
	logger *zap.Logger
}

// NewRedisSink connects to Redis and verifies the connection.
func NewRedisSink(config RedisConfig, logger *zap.Logger) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("stats redis %s: %w", config.Addr, err)
	}

	return NewRedisSinkWithClient(client, config, logger), nil
}

// NewRedisSinkWithClient creates a sink over an existing client
func NewRedisSinkWithClient(client *redis.Client, config RedisConfig, logger *zap.Logger) *RedisSink {
	defaults := DefaultRedisConfig()
	if config.Key == "" {
		config.Key = defaults.Key
	}
	if config.MaxLen <= 0 {
		config.MaxLen = defaults.MaxLen
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSink{client: client, config: config, logger: logger}
}

// Record implements Sink. Failures are logged, never returned.
//
// The push outlives cancellation of ctx: a statement that failed because
// its context was cancelled is still recorded.
func (s *RedisSink) Record(ctx context.Context, rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Error("encode stats record", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.config.Key, data)
	pipe.LTrim(ctx, s.config.Key, 0, s.config.MaxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("push stats record",
			zap.String("key", s.config.Key),
			zap.Error(err),
		)
	}
}

// Recent implements Reader.
func (s *RedisSink) Recent(ctx context.Context, n int) ([]Record, error) {
	stop := int64(n) - 1
	if n <= 0 {
		stop = -1
	}

	values, err := s.client.LRange(ctx, s.config.Key, 0, stop).Result()
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(values))
	for _, v := range values {
		var rec Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			s.logger.Warn("skip undecodable stats record", zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close closes the Redis connection
func (s *RedisSink) Close() error {
	return s.client.Close()
}
