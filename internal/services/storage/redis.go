package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ai-content-optimizer-go/internal/config"
	"github.com/ai-content-optimizer-go/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisStorage implements storage using Redis
type RedisStorage struct {
	client *redis.Client
	prefix string
	logger *logrus.Logger
}

func NewRedisStorage(cfg *config.RedisConfig, logger *logrus.Logger) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStorage{
		client: client,
		prefix: cfg.KeyPrefix,
		logger: logger,
	}, nil
}

func (r *RedisStorage) key(format string, args ...interface{}) string {
	return r.prefix + fmt.Sprintf(format, args...)
}

func (r *RedisStorage) GetSettings(ctx context.Context) (*models.Settings, error) {
	data, err := r.client.Get(ctx, r.key("settings")).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var settings models.Settings
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	return &settings, nil
}

func (r *RedisStorage) SaveSettings(ctx context.Context, settings *models.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, r.key("settings"), data, 0).Err()
}

func (r *RedisStorage) GetUsage(ctx context.Context) (int, error) {
	used, err := r.client.Get(ctx, r.key("used_requests")).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return used, err
}

func (r *RedisStorage) IncrementUsage(ctx context.Context) (int, error) {
	used, err := r.client.Incr(ctx, r.key("used_requests")).Result()
	if err != nil {
		return 0, err
	}
	return int(used), nil
}

func (r *RedisStorage) ResetUsage(ctx context.Context) error {
	return r.client.Set(ctx, r.key("used_requests"), 0, 0).Err()
}

func (r *RedisStorage) GetSuggestion(ctx context.Context, itemID int64) (*models.Suggestion, error) {
	data, err := r.client.Get(ctx, r.key("suggestion:%d", itemID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var suggestion models.Suggestion
	if err := json.Unmarshal([]byte(data), &suggestion); err != nil {
		return nil, fmt.Errorf("failed to decode suggestion: %w", err)
	}

	return &suggestion, nil
}

func (r *RedisStorage) SaveSuggestion(ctx context.Context, suggestion *models.Suggestion) error {
	data, err := json.Marshal(suggestion)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, r.key("suggestion:%d", suggestion.ItemID), data, 0).Err()
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
