package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ai-content-optimizer-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalizer_Builtin(t *testing.T) {
	l, err := NewLocalizer(&config.I18nConfig{DefaultLanguage: "en", Languages: []string{"en"}})
	require.NoError(t, err)

	assert.Equal(t, "API key is missing. Please add it in the plugin settings.", l.Default(MsgMissingAPIKey, nil))
	assert.Equal(t, "Daily request limit exceeded. Please try again tomorrow.", l.Default(MsgLimitExceeded, nil))
	assert.Equal(t, "The model gpt-4o does not exist, or you do not have access to it.",
		l.Default(MsgModelUnavailable, map[string]interface{}{"Model": "gpt-4o"}))
	assert.Equal(t, "OpenAI API Error: boom <b>", l.Default(MsgAPIError, map[string]interface{}{"Message": "boom <b>"}))
	assert.Equal(t, "unknown_id", l.Default("unknown_id", nil))
}

func TestLocalizer_LanguageFileFallsBackToEnglish(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "de.json"),
		[]byte(`{"connect_failed": "Verbindung zur OpenAI API fehlgeschlagen."}`), 0o600))

	l, err := NewLocalizer(&config.I18nConfig{DefaultLanguage: "de", Languages: []string{"en", "de"}, Directory: dir})
	require.NoError(t, err)

	assert.Equal(t, "de", l.DefaultLanguage())
	assert.Equal(t, "Verbindung zur OpenAI API fehlgeschlagen.", l.Default(MsgConnectFailed, nil))
	assert.Equal(t, "No suggestions available.", l.Default(MsgNoSuggestions, nil))
	assert.Equal(t, "Failed to connect to OpenAI API.", l.Get("en", MsgConnectFailed, nil))
}

func TestLocalizer_UnknownDefaultLanguage(t *testing.T) {
	l, err := NewLocalizer(&config.I18nConfig{DefaultLanguage: "fr"})
	require.NoError(t, err)
	assert.Equal(t, "en", l.DefaultLanguage())
}
