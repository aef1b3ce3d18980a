package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	URL            string        `yaml:"url" mapstructure:"url"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	TTL            time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
}

// Redis persists mapping records as JSON values in Redis. Expiry is delegated
// to Redis' native TTL, so an expired record is simply absent.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis creates the Redis backend and verifies connectivity.
func NewRedis(cfg RedisConfig, logger *zap.Logger) (*Redis, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse redis URL: %v", ErrStorage, err)
	}
	if cfg.MaxConnections > 0 {
		opts.PoolSize = cfg.MaxConnections
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: failed to connect to redis: %v", ErrStorage, err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "anonproxy"
	}

	logger.Debug("Redis storage initialized",
		zap.String("key_prefix", prefix),
		zap.Duration("ttl", cfg.TTL),
	)

	return &Redis{client: client, prefix: prefix, ttl: cfg.TTL, logger: logger}, nil
}

func (r *Redis) key(id string) string {
	return fmt.Sprintf("%s:mapping:%s", r.prefix, id)
}

// Store marshals data and writes it with the configured TTL.
func (r *Redis) Store(ctx context.Context, id string, data *MappingData) error {
	if id == "" {
		return fmt.Errorf("%w: empty mapping id", ErrStorage)
	}
	if data == nil {
		return fmt.Errorf("%w: nil mapping data", ErrStorage)
	}

	record := data.Clone()
	record.ID = id
	record.CreatedAt = time.Now()

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal mapping: %v", ErrStorage, err)
	}

	if err := r.client.Set(ctx, r.key(id), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set failed: %v", ErrStorage, err)
	}
	return nil
}

// Retrieve reads and unmarshals the record under id.
func (r *Redis) Retrieve(ctx context.Context, id string) (*MappingData, error) {
	payload, err := r.client.Get(ctx, r.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis get failed: %v", ErrStorage, err)
	}

	var record MappingData
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		// A corrupted record is unusable; drop it so it reads as absent.
		r.client.Del(ctx, r.key(id))
		return nil, fmt.Errorf("%w: corrupted mapping record for %s", ErrStorage, id)
	}
	return &record, nil
}

// Delete removes the record under id; absent ids are a no-op.
func (r *Redis) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: redis del failed: %v", ErrStorage, err)
	}
	return nil
}

// Clear scans for every key under our prefix and deletes them in batches.
func (r *Redis) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+":mapping:*", 0).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: redis scan failed: %v", ErrStorage, err)
	}

	const batchSize = 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := r.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			return fmt.Errorf("%w: redis del failed: %v", ErrStorage, err)
		}
	}
	return nil
}

// HealthCheck pings the server.
func (r *Redis) HealthCheck(ctx context.Context) bool {
	return r.client.Ping(ctx).Err() == nil
}

// Close closes the client connection pool.
func (r *Redis) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
