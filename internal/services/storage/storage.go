package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ai-content-optimizer-go/internal/config"
	"github.com/ai-content-optimizer-go/internal/middleware"
	"github.com/ai-content-optimizer-go/internal/models"
	"github.com/sirupsen/logrus"
)

// Storage interface defines storage operations
type Storage interface {
	// Settings operations. GetSettings returns nil, nil when nothing was saved yet.
	GetSettings(ctx context.Context) (*models.Settings, error)
	SaveSettings(ctx context.Context, settings *models.Settings) error

	// Usage counter operations
	GetUsage(ctx context.Context) (int, error)
	IncrementUsage(ctx context.Context) (int, error)
	ResetUsage(ctx context.Context) error

	// Suggestion operations. GetSuggestion returns nil, nil for an unknown item.
	GetSuggestion(ctx context.Context, itemID int64) (*models.Suggestion, error)
	SaveSuggestion(ctx context.Context, suggestion *models.Suggestion) error

	Close() error
}

// Manager manages different storage backends
type Manager struct {
	storage Storage
	metrics *middleware.Metrics
	logger  *logrus.Logger
}

// NewManager creates a new storage manager
func NewManager(cfg *config.Config, metrics *middleware.Metrics, logger *logrus.Logger) (*Manager, error) {
	var storage Storage

	switch cfg.Storage.Type {
	case "redis":
		redisStorage, err := NewRedisStorage(&cfg.Storage.Redis, logger)
		if err != nil {
			return nil, err
		}
		storage = redisStorage
	case "sqlite":
		sqliteStorage, err := NewSQLiteStorage(&cfg.Storage.SQLite, logger)
		if err != nil {
			return nil, err
		}
		storage = sqliteStorage
	case "memory":
		storage = NewMemoryStorage(logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	logger.WithField("type", cfg.Storage.Type).Info("Storage initialized")

	return NewManagerWithStorage(storage, metrics, logger), nil
}

// NewManagerWithStorage wraps an existing backend
func NewManagerWithStorage(storage Storage, metrics *middleware.Metrics, logger *logrus.Logger) *Manager {
	return &Manager{
		storage: storage,
		metrics: metrics,
		logger:  logger,
	}
}

func (m *Manager) observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		m.logger.WithError(err).WithField("operation", operation).Error("Storage operation failed")
	}
	m.metrics.RecordStorageOperation(operation, status, time.Since(start))
}

// Delegate methods to underlying storage
func (m *Manager) GetSettings(ctx context.Context) (settings *models.Settings, err error) {
	defer func(start time.Time) { m.observe("get_settings", start, err) }(time.Now())
	return m.storage.GetSettings(ctx)
}

func (m *Manager) SaveSettings(ctx context.Context, settings *models.Settings) (err error) {
	defer func(start time.Time) { m.observe("save_settings", start, err) }(time.Now())
	return m.storage.SaveSettings(ctx, settings)
}

func (m *Manager) GetUsage(ctx context.Context) (used int, err error) {
	defer func(start time.Time) { m.observe("get_usage", start, err) }(time.Now())
	return m.storage.GetUsage(ctx)
}

func (m *Manager) IncrementUsage(ctx context.Context) (used int, err error) {
	defer func(start time.Time) {
		m.observe("increment_usage", start, err)
		if err == nil {
			m.metrics.SetUsedRequests(used)
		}
	}(time.Now())
	return m.storage.IncrementUsage(ctx)
}

func (m *Manager) ResetUsage(ctx context.Context) (err error) {
	defer func(start time.Time) {
		m.observe("reset_usage", start, err)
		if err == nil {
			m.metrics.SetUsedRequests(0)
			m.logger.Info("Usage counter reset")
		}
	}(time.Now())
	return m.storage.ResetUsage(ctx)
}

func (m *Manager) GetSuggestion(ctx context.Context, itemID int64) (suggestion *models.Suggestion, err error) {
	defer func(start time.Time) { m.observe("get_suggestion", start, err) }(time.Now())
	return m.storage.GetSuggestion(ctx, itemID)
}

func (m *Manager) SaveSuggestion(ctx context.Context, suggestion *models.Suggestion) (err error) {
	defer func(start time.Time) { m.observe("save_suggestion", start, err) }(time.Now())
	return m.storage.SaveSuggestion(ctx, suggestion)
}

// Close releases the backend
func (m *Manager) Close() error {
	return m.storage.Close()
}
