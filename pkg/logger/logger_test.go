package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ai-content-optimizer-go/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	log, err := NewLogger(&config.LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "optimizer.log")
	log, err := NewLogger(&config.LoggingConfig{
		Level:  "info",
		Output: "file",
		File:   config.FileConfig{Path: path, MaxSize: 1},
	})
	require.NoError(t, err)
	assert.DirExists(t, filepath.Dir(path))
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestNewLogger_BadLevel(t *testing.T) {
	_, err := NewLogger(&config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestNewLogger_Outputs(t *testing.T) {
	log, err := NewLogger(&config.LoggingConfig{Level: "info", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, os.Stderr, log.Out)

	log, err = NewLogger(&config.LoggingConfig{Level: "info"})
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, log.Out)

	_, err = NewLogger(&config.LoggingConfig{Level: "info", Output: "syslog"})
	assert.Error(t, err)

	_, err = NewLogger(&config.LoggingConfig{Level: "info", Output: "file"})
	assert.Error(t, err)
}

func TestWithSuggestion(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&config.LoggingConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	log.SetOutput(&buf)

	WithSuggestion(log, 42, "gpt-4o", "quota").Info("Content analyzed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Content analyzed", entry["message"])
	assert.Equal(t, float64(42), entry["item_id"])
	assert.Equal(t, "gpt-4o", entry["model"])
	assert.Equal(t, "quota", entry["kind"])
	assert.Contains(t, entry, "timestamp")
}
