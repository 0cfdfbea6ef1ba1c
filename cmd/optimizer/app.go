package main

import (
	"context"
	"fmt"

	"github.com/ai-content-optimizer-go/internal/config"
	"github.com/ai-content-optimizer-go/internal/i18n"
	"github.com/ai-content-optimizer-go/internal/middleware"
	"github.com/ai-content-optimizer-go/internal/models"
	"github.com/ai-content-optimizer-go/internal/services/ai"
	"github.com/ai-content-optimizer-go/internal/services/analysis"
	"github.com/ai-content-optimizer-go/internal/services/cache"
	"github.com/ai-content-optimizer-go/internal/services/settings"
	"github.com/ai-content-optimizer-go/internal/services/storage"
	"github.com/ai-content-optimizer-go/pkg/markdown"
	"github.com/sirupsen/logrus"
)

// app holds the services shared by all commands
type app struct {
	metrics   *middleware.Metrics
	storage   *storage.Manager
	localizer *i18n.Localizer
	settings  *settings.Service
	requester *ai.Requester
	analysis  *analysis.Service
}

func newApp(cfg *config.Config, log *logrus.Logger) (*app, error) {
	metrics := middleware.NewMetrics()

	storageManager, err := storage.NewManager(cfg, metrics, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize i18n: %w", err)
	}

	settingsService := settings.NewService(storageManager, cfg, log)
	requester := ai.NewRequester(&cfg.OpenAI, settingsService, storageManager, localizer, metrics, log)
	cacheService := cache.NewCache(&cfg.Cache, metrics, log)
	analysisService := analysis.NewService(
		requester,
		markdown.New(cfg.Markdown.Renderer),
		settingsService,
		storageManager,
		cacheService,
		log,
	)

	// Answers cached under the old key or limits must not outlive a settings change
	settingsService.OnChange(func(models.Settings) {
		analysisService.ClearCache(context.Background())
	})

	return &app{
		metrics:   metrics,
		storage:   storageManager,
		localizer: localizer,
		settings:  settingsService,
		requester: requester,
		analysis:  analysisService,
	}, nil
}

func (a *app) Close() error {
	return a.storage.Close()
}
