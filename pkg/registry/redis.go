package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis for multi-instance deployments:
// trainers publish artifacts, predictor replicas load them. Artifacts do
// not expire; the registry is the system of record for trained models.
//
// Each artifact lives under "{prefix}:artifact:{runID}" with the run id
// additionally indexed in a sorted set scored by creation time, which makes
// Latest and List single round trips.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	mu        sync.RWMutex
}

// NewRedisStore connects to Redis and verifies the connection. An empty
// keyPrefix defaults to "payband".
func NewRedisStore(addr, password string, db int, keyPrefix string) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}
	if keyPrefix == "" {
		keyPrefix = "payband"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisStore{client: client, keyPrefix: keyPrefix}, nil
}

func (s *RedisStore) artifactKey(runID string) string {
	return fmt.Sprintf("%s:artifact:%s", s.keyPrefix, runID)
}

func (s *RedisStore) indexKey() string {
	return s.keyPrefix + ":artifacts"
}

func (s *RedisStore) Put(ctx context.Context, artifact Artifact) error {
	if err := validRunID(artifact.RunID); err != nil {
		return err
	}

	data, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.artifactKey(artifact.RunID), data, 0)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(artifact.CreatedAt.UnixNano()),
		Member: artifact.RunID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store artifact in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, runID string) (Artifact, bool, error) {
	if err := validRunID(runID); err != nil {
		return Artifact{}, false, err
	}

	data, err := s.client.Get(ctx, s.artifactKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Artifact{}, false, nil
		}
		return Artifact{}, false, fmt.Errorf("failed to get artifact from redis: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return Artifact{}, false, fmt.Errorf("failed to unmarshal artifact %s: %w", runID, err)
	}
	return artifact, true, nil
}

func (s *RedisStore) Latest(ctx context.Context) (Artifact, bool, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, 0).Result()
	if err != nil {
		return Artifact{}, false, fmt.Errorf("failed to read artifact index: %w", err)
	}
	if len(ids) == 0 {
		return Artifact{}, false, nil
	}
	return s.Get(ctx, ids[0])
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact index: %w", err)
	}
	return ids, nil
}

// Close closes the Redis client connection. It is safe to call multiple
// times.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}

	err := s.client.Close()
	s.client = nil
	if err != nil && err.Error() == "redis: client is closed" {
		return nil
	}
	return err
}

// Ping checks the Redis connection health.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
