package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ai-content-optimizer-go/internal/config"
	"github.com/ai-content-optimizer-go/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Option is a row of the key-value options table
type Option struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

// SuggestionRecord is the latest suggestion of one content item
type SuggestionRecord struct {
	ItemID     int64 `gorm:"primaryKey;autoIncrement:false"`
	Text       string
	HTML       string
	Kind       string
	Model      string
	AnalyzedAt time.Time
}

const (
	optionSettings     = "aico_settings"
	optionUsedRequests = "aico_used_requests"
)

// SQLiteStorage implements storage on an SQLite file through gorm
type SQLiteStorage struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewSQLiteStorage(cfg *config.SQLiteConfig, logger *logrus.Logger) (*SQLiteStorage, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One writer keeps the read-modify-write of the counter serialized.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Option{}, &SuggestionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}

	return &SQLiteStorage{db: db, logger: logger}, nil
}

func (s *SQLiteStorage) getOption(tx *gorm.DB, key string) (string, bool, error) {
	var opt Option
	err := tx.Where("key = ?", key).First(&opt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return opt.Value, true, nil
}

func (s *SQLiteStorage) setOption(tx *gorm.DB, key, value string) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Option{Key: key, Value: value}).Error
}

func (s *SQLiteStorage) GetSettings(ctx context.Context) (*models.Settings, error) {
	value, found, err := s.getOption(s.db.WithContext(ctx), optionSettings)
	if err != nil || !found {
		return nil, err
	}

	var settings models.Settings
	if err := json.Unmarshal([]byte(value), &settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &settings, nil
}

func (s *SQLiteStorage) SaveSettings(ctx context.Context, settings *models.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return s.setOption(s.db.WithContext(ctx), optionSettings, string(data))
}

func (s *SQLiteStorage) GetUsage(ctx context.Context) (int, error) {
	return s.usage(s.db.WithContext(ctx))
}

func (s *SQLiteStorage) usage(tx *gorm.DB) (int, error) {
	value, found, err := s.getOption(tx, optionUsedRequests)
	if err != nil || !found {
		return 0, err
	}
	used, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid usage counter %q: %w", value, err)
	}
	return used, nil
}

func (s *SQLiteStorage) IncrementUsage(ctx context.Context) (int, error) {
	var used int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.usage(tx)
		if err != nil {
			return err
		}
		used = current + 1
		return s.setOption(tx, optionUsedRequests, strconv.Itoa(used))
	})
	if err != nil {
		return 0, err
	}
	return used, nil
}

func (s *SQLiteStorage) ResetUsage(ctx context.Context) error {
	return s.setOption(s.db.WithContext(ctx), optionUsedRequests, "0")
}

func (s *SQLiteStorage) GetSuggestion(ctx context.Context, itemID int64) (*models.Suggestion, error) {
	var rec SuggestionRecord
	err := s.db.WithContext(ctx).Where("item_id = ?", itemID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.Suggestion{
		ItemID:    rec.ItemID,
		Text:      rec.Text,
		HTML:      rec.HTML,
		Kind:      rec.Kind,
		Model:     rec.Model,
		CreatedAt: rec.AnalyzedAt,
	}, nil
}

func (s *SQLiteStorage) SaveSuggestion(ctx context.Context, suggestion *models.Suggestion) error {
	rec := SuggestionRecord{
		ItemID:     suggestion.ItemID,
		Text:       suggestion.Text,
		HTML:       suggestion.HTML,
		Kind:       suggestion.Kind,
		Model:      suggestion.Model,
		AnalyzedAt: suggestion.CreatedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

func (s *SQLiteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
