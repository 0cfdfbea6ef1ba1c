package storage

import (
	"context"
	"fmt"

	"github.com/ai-content-optimizer-go/internal/models"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	memorySettingsKey = "settings"
	memoryUsageKey    = "used_requests"
)

// MemoryStorage implements storage using in-memory cache. Nothing expires;
// state is lost on restart.
type MemoryStorage struct {
	options     *cache.Cache
	suggestions *cache.Cache
	logger      *logrus.Logger
}

func NewMemoryStorage(logger *logrus.Logger) *MemoryStorage {
	return &MemoryStorage{
		options:     cache.New(cache.NoExpiration, cache.NoExpiration),
		suggestions: cache.New(cache.NoExpiration, cache.NoExpiration),
		logger:      logger,
	}
}

func (m *MemoryStorage) GetSettings(ctx context.Context) (*models.Settings, error) {
	if val, found := m.options.Get(memorySettingsKey); found {
		settings := val.(models.Settings)
		return &settings, nil
	}
	return nil, nil
}

func (m *MemoryStorage) SaveSettings(ctx context.Context, settings *models.Settings) error {
	m.options.Set(memorySettingsKey, *settings, cache.NoExpiration)
	return nil
}

func (m *MemoryStorage) GetUsage(ctx context.Context) (int, error) {
	if val, found := m.options.Get(memoryUsageKey); found {
		return val.(int), nil
	}
	return 0, nil
}

func (m *MemoryStorage) IncrementUsage(ctx context.Context) (int, error) {
	// Add fails when the key exists, which is fine
	_ = m.options.Add(memoryUsageKey, 0, cache.NoExpiration)
	used, err := m.options.IncrementInt(memoryUsageKey, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to increment usage: %w", err)
	}
	return used, nil
}

func (m *MemoryStorage) ResetUsage(ctx context.Context) error {
	m.options.Set(memoryUsageKey, 0, cache.NoExpiration)
	return nil
}

func (m *MemoryStorage) GetSuggestion(ctx context.Context, itemID int64) (*models.Suggestion, error) {
	key := fmt.Sprintf("suggestion:%d", itemID)
	if val, found := m.suggestions.Get(key); found {
		suggestion := val.(models.Suggestion)
		return &suggestion, nil
	}
	return nil, nil
}

func (m *MemoryStorage) SaveSuggestion(ctx context.Context, suggestion *models.Suggestion) error {
	key := fmt.Sprintf("suggestion:%d", suggestion.ItemID)
	m.suggestions.Set(key, *suggestion, cache.NoExpiration)
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
