package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ai-content-optimizer-go/internal/config"
	"github.com/ai-content-optimizer-go/internal/middleware"
	"github.com/ai-content-optimizer-go/internal/models"
	"github.com/ai-content-optimizer-go/pkg/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()
	log := logger.NewNopLogger()

	mr := miniredis.RunT(t)
	redisStorage, err := NewRedisStorage(&config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "test:"}, log)
	require.NoError(t, err)

	sqliteStorage, err := NewSQLiteStorage(&config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "db", "test.db")}, log)
	require.NoError(t, err)

	all := map[string]Storage{
		"memory": NewMemoryStorage(log),
		"redis":  redisStorage,
		"sqlite": sqliteStorage,
	}
	t.Cleanup(func() {
		for _, s := range all {
			s.Close()
		}
	})
	return all
}

func TestStorage_Settings(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			got, err := s.GetSettings(ctx)
			require.NoError(t, err)
			assert.Nil(t, got)

			want := &models.Settings{APIKey: "sk-1", Model: "gpt-4o", MaxTokens: 900, DailyRequestLimit: 20}
			require.NoError(t, s.SaveSettings(ctx, want))

			got, err = s.GetSettings(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			want.MaxTokens = 100
			require.NoError(t, s.SaveSettings(ctx, want))
			got, err = s.GetSettings(ctx)
			require.NoError(t, err)
			assert.Equal(t, 100, got.MaxTokens)
		})
	}
}

func TestStorage_Usage(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			used, err := s.GetUsage(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, used)

			for i := 1; i <= 3; i++ {
				used, err = s.IncrementUsage(ctx)
				require.NoError(t, err)
				assert.Equal(t, i, used)
			}

			used, err = s.GetUsage(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, used)

			require.NoError(t, s.ResetUsage(ctx))
			used, err = s.GetUsage(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, used)

			used, err = s.IncrementUsage(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, used)
		})
	}
}

func TestStorage_SuggestionLatestWins(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			got, err := s.GetSuggestion(ctx, 42)
			require.NoError(t, err)
			assert.Nil(t, got)

			first := &models.Suggestion{ItemID: 42, Text: "first", HTML: "first", Kind: "ok", Model: "gpt-4o",
				CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
			require.NoError(t, s.SaveSuggestion(ctx, first))

			second := &models.Suggestion{ItemID: 42, Text: "**second**", HTML: "<strong>second</strong>", Kind: "ok", Model: "gpt-4o",
				CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}
			require.NoError(t, s.SaveSuggestion(ctx, second))

			got, err = s.GetSuggestion(ctx, 42)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "<strong>second</strong>", got.HTML)
			assert.Equal(t, "**second**", got.Text)
			assert.True(t, second.CreatedAt.Equal(got.CreatedAt))

			other, err := s.GetSuggestion(ctx, 7)
			require.NoError(t, err)
			assert.Nil(t, other)
		})
	}
}

func TestManager_DelegatesAndCloses(t *testing.T) {
	m := NewManagerWithStorage(NewMemoryStorage(logger.NewNopLogger()), middleware.NewMetrics(), logger.NewNopLogger())
	ctx := context.Background()

	used, err := m.IncrementUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, used)

	require.NoError(t, m.ResetUsage(ctx))
	used, err = m.GetUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, used)

	assert.NoError(t, m.Close())
}

func TestNewManager_UnsupportedType(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Type: "etcd"}}
	_, err := NewManager(cfg, middleware.NewMetrics(), logger.NewNopLogger())
	assert.Error(t, err)
}
