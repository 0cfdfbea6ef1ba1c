package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ai-content-optimizer-go/internal/models"
	"github.com/ai-content-optimizer-go/internal/services/ai"
	"github.com/ai-content-optimizer-go/internal/services/cache"
	"github.com/ai-content-optimizer-go/pkg/logger"
	"github.com/ai-content-optimizer-go/pkg/markdown"
	"github.com/sirupsen/logrus"
)

// ErrNoContent is returned for empty or whitespace-only content.
var ErrNoContent = errors.New("no content available to analyze")

// Requester produces suggestion text for content
type Requester interface {
	Request(ctx context.Context, content string) ai.Suggestion
}

// SettingsProvider exposes the configured model for cache lookups
type SettingsProvider interface {
	Get(ctx context.Context) (*models.Settings, error)
}

// SuggestionStore persists the latest suggestion per content item
type SuggestionStore interface {
	GetSuggestion(ctx context.Context, itemID int64) (*models.Suggestion, error)
	SaveSuggestion(ctx context.Context, suggestion *models.Suggestion) error
}

// Service runs content through the requester and the converter and keeps
// the result as the item's latest suggestion.
type Service struct {
	requester Requester
	converter markdown.Converter
	settings  SettingsProvider
	store     SuggestionStore
	cache     cache.Service
	logger    *logrus.Logger
	now       func() time.Time
}

// NewService creates a new analysis service
func NewService(
	requester Requester,
	converter markdown.Converter,
	settings SettingsProvider,
	store SuggestionStore,
	cache cache.Service,
	logger *logrus.Logger,
) *Service {
	return &Service{
		requester: requester,
		converter: converter,
		settings:  settings,
		store:     store,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
}

// Analyze requests suggestions for content, converts them to HTML and stores
// them under itemID. Failure messages are converted and stored like answers.
func (s *Service) Analyze(ctx context.Context, itemID int64, content string) (*models.Suggestion, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrNoContent
	}

	log := logger.WithItem(s.logger, itemID)

	result, cached := s.fromCache(ctx, content)
	if !cached {
		result = s.requester.Request(ctx, content)
		if result.Cacheable() {
			if err := s.cache.Set(ctx, content, result.Model, result.Text); err != nil {
				log.WithError(err).Warn("Failed to cache suggestion")
			}
		}
	}

	suggestion := &models.Suggestion{
		ItemID:    itemID,
		Text:      result.Text,
		HTML:      s.converter.Convert(result.Text),
		Kind:      result.Kind(),
		Model:     result.Model,
		CreatedAt: s.now(),
	}

	if err := s.store.SaveSuggestion(ctx, suggestion); err != nil {
		log.WithError(err).Error("Failed to save suggestion")
	}

	logger.WithSuggestion(s.logger, itemID, suggestion.Model, suggestion.Kind).
		WithField("cached", cached).
		Info("Content analyzed")

	return suggestion, nil
}

func (s *Service) fromCache(ctx context.Context, content string) (ai.Suggestion, bool) {
	settings, err := s.settings.Get(ctx)
	if err != nil || settings.APIKey == "" {
		return ai.Suggestion{}, false
	}

	text, found := s.cache.Get(ctx, content, settings.Model)
	if !found {
		return ai.Suggestion{}, false
	}
	return ai.Suggestion{Text: text, Model: settings.Model}, true
}

// Latest returns the stored suggestion of an item, or nil if there is none.
func (s *Service) Latest(ctx context.Context, itemID int64) (*models.Suggestion, error) {
	return s.store.GetSuggestion(ctx, itemID)
}

// ClearCache drops cached answers, typically after a settings change.
func (s *Service) ClearCache(ctx context.Context) {
	if err := s.cache.Clear(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to clear suggestion cache")
	}
}
