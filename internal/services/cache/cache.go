package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ai-content-optimizer-go/internal/config"
	"github.com/ai-content-optimizer-go/internal/middleware"
	"github.com/ai-content-optimizer-go/internal/models"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Service defines response cache operations
type Service interface {
	Get(ctx context.Context, content, model string) (string, bool)
	Set(ctx context.Context, content, model, answer string) error
	Clear(ctx context.Context) error
}

// Cache keeps successful suggestions keyed by model and content
type Cache struct {
	enabled bool
	cache   *cache.Cache
	metrics *middleware.Metrics
	logger  *logrus.Logger
	maxSize int
	now     func() time.Time
}

// NewCache creates a new cache service. A disabled cache misses every lookup.
func NewCache(cfg *config.CacheConfig, metrics *middleware.Metrics, logger *logrus.Logger) *Cache {
	if !cfg.Enabled {
		return &Cache{enabled: false}
	}

	return &Cache{
		enabled: true,
		cache:   cache.New(cfg.TTL, cfg.TTL*2),
		metrics: metrics,
		logger:  logger,
		maxSize: cfg.MaxSize,
		now:     time.Now,
	}
}

// Get retrieves a cached suggestion
func (c *Cache) Get(ctx context.Context, content, model string) (string, bool) {
	if !c.enabled {
		return "", false
	}

	key := c.generateKey(content, model)
	if val, found := c.cache.Get(key); found {
		entry := val.(*models.CacheEntry)
		c.metrics.RecordCacheHit()
		c.logger.WithFields(logrus.Fields{
			"content_length": len(content),
			"model":          model,
			"age":            c.now().Sub(entry.CreatedAt),
		}).Debug("Cache hit")
		return entry.Answer, true
	}

	c.metrics.RecordCacheMiss()
	return "", false
}

// Set stores a suggestion in cache
func (c *Cache) Set(ctx context.Context, content, model, answer string) error {
	if !c.enabled {
		return nil
	}

	if c.cache.ItemCount() >= c.maxSize {
		c.logger.Warn("Cache size limit reached, clearing old entries")
		c.cache.DeleteExpired()
		if c.cache.ItemCount() >= c.maxSize {
			return nil
		}
	}

	key := c.generateKey(content, model)
	entry := &models.CacheEntry{
		Content:   content,
		Answer:    answer,
		Model:     model,
		CreatedAt: c.now(),
	}

	c.cache.SetDefault(key, entry)
	c.logger.WithFields(logrus.Fields{
		"content_length": len(content),
		"model":          model,
	}).Debug("Suggestion cached")

	return nil
}

// Clear removes all cached entries
func (c *Cache) Clear(ctx context.Context) error {
	if !c.enabled {
		return nil
	}

	c.cache.Flush()
	c.logger.Info("Cache cleared")
	return nil
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	if !c.enabled {
		return 0
	}
	return c.cache.ItemCount()
}

func (c *Cache) generateKey(content, model string) string {
	data := fmt.Sprintf("%s:%s", model, content)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
