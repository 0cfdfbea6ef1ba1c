package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ai-content-optimizer-go/internal/config"
	"github.com/ai-content-optimizer-go/internal/models"
	"github.com/ai-content-optimizer-go/internal/services/storage"
	"github.com/sirupsen/logrus"
)

// ErrInvalidSettings is wrapped by every validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Store is the part of the storage layer the settings service needs.
type Store interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	SaveSettings(ctx context.Context, settings *models.Settings) error
	GetUsage(ctx context.Context) (int, error)
	ResetUsage(ctx context.Context) error
}

var _ Store = (*storage.Manager)(nil)

// Patch is a partial settings update. Nil fields are left unchanged.
type Patch struct {
	APIKey            *string `json:"api_key,omitempty"`
	Model             *string `json:"model,omitempty"`
	MaxTokens         *int    `json:"max_tokens,omitempty"`
	DailyRequestLimit *int    `json:"daily_request_limit,omitempty"`
}

// Service manages the plugin settings and the usage counter
type Service struct {
	store     Store
	cfg       *config.Config
	logger    *logrus.Logger
	mu        sync.RWMutex
	listeners []func(models.Settings)
}

// NewService creates a new settings service
func NewService(store Store, cfg *config.Config, logger *logrus.Logger) *Service {
	return &Service{
		store:     store,
		cfg:       cfg,
		logger:    logger,
		listeners: make([]func(models.Settings), 0),
	}
}

// Defaults returns the settings used until the form is saved once.
func (s *Service) Defaults() models.Settings {
	return models.Settings{
		APIKey:            s.cfg.Defaults.APIKey,
		Model:             s.cfg.Defaults.Model,
		MaxTokens:         s.cfg.Defaults.MaxTokens,
		DailyRequestLimit: s.cfg.Defaults.DailyRequestLimit,
	}
}

// Get returns the stored settings with unset fields filled from the defaults.
func (s *Service) Get(ctx context.Context) (*models.Settings, error) {
	stored, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	current := s.Defaults()
	if stored == nil {
		return &current, nil
	}

	if stored.APIKey != "" {
		current.APIKey = stored.APIKey
	}
	if stored.Model != "" {
		current.Model = stored.Model
	}
	if stored.MaxTokens > 0 {
		current.MaxTokens = stored.MaxTokens
	}
	if stored.DailyRequestLimit > 0 {
		current.DailyRequestLimit = stored.DailyRequestLimit
	}
	return &current, nil
}

// Save validates and stores a complete settings value.
func (s *Service) Save(ctx context.Context, settings *models.Settings) error {
	if err := s.Validate(settings); err != nil {
		return err
	}

	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"model":               settings.Model,
		"max_tokens":          settings.MaxTokens,
		"daily_request_limit": settings.DailyRequestLimit,
		"api_key_set":         settings.APIKey != "",
	}).Info("Settings saved")

	s.notifyChange(*settings)
	return nil
}

// Update applies a patch on top of the current settings.
func (s *Service) Update(ctx context.Context, patch Patch) (*models.Settings, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	if patch.APIKey != nil {
		current.APIKey = *patch.APIKey
	}
	if patch.Model != nil {
		current.Model = *patch.Model
	}
	if patch.MaxTokens != nil {
		current.MaxTokens = *patch.MaxTokens
	}
	if patch.DailyRequestLimit != nil {
		current.DailyRequestLimit = *patch.DailyRequestLimit
	}

	if err := s.Save(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

// Validate checks a settings value against the form constraints.
func (s *Service) Validate(settings *models.Settings) error {
	if !s.cfg.IsSupportedModel(settings.Model) {
		return fmt.Errorf("%w: unsupported model %q", ErrInvalidSettings, settings.Model)
	}
	if settings.MaxTokens < 1 || settings.MaxTokens > config.MaxTokensCeiling {
		return fmt.Errorf("%w: max_tokens must be between 1 and %d", ErrInvalidSettings, config.MaxTokensCeiling)
	}
	if settings.DailyRequestLimit < 1 {
		return fmt.Errorf("%w: daily_request_limit must be at least 1", ErrInvalidSettings)
	}
	return nil
}

// Usage returns the request counter together with the current limit.
func (s *Service) Usage(ctx context.Context) (*models.Usage, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	used, err := s.store.GetUsage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage: %w", err)
	}
	return &models.Usage{UsedRequests: used, DailyRequestLimit: current.DailyRequestLimit}, nil
}

// ResetUsage sets the request counter back to zero.
func (s *Service) ResetUsage(ctx context.Context) error {
	if err := s.store.ResetUsage(ctx); err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}
	return nil
}

// OnChange registers a callback run after every successful save
func (s *Service) OnChange(listener func(models.Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

func (s *Service) notifyChange(settings models.Settings) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, listener := range s.listeners {
		listener(settings)
	}
}
