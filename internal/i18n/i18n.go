package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ai-content-optimizer-go/internal/config"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var builtin embed.FS

// Localizer manages internationalization
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer creates a new localizer. English ships with the binary;
// other languages are read from cfg.Directory as <lang>.json.
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	if _, err := bundle.LoadMessageFileFS(builtin, "locales/en.json"); err != nil {
		return nil, fmt.Errorf("failed to load builtin messages: %w", err)
	}

	languages := append([]string{"en"}, cfg.Languages...)
	for _, lang := range cfg.Languages {
		if lang == "en" || cfg.Directory == "" {
			continue
		}
		path := filepath.Join(cfg.Directory, fmt.Sprintf("%s.json", lang))
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if _, err := bundle.LoadMessageFile(path); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", lang, err)
		}
	}

	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range languages {
		localizers[lang] = i18n.NewLocalizer(bundle, lang, "en")
	}

	defaultLanguage := cfg.DefaultLanguage
	if _, ok := localizers[defaultLanguage]; !ok {
		defaultLanguage = "en"
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: defaultLanguage,
		localizers:      localizers,
	}, nil
}

// Get returns localized message
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	// go-i18n reports a fallback to English as an error but still returns the text
	if err != nil && msg == "" {
		return messageID // Fallback to message ID
	}

	return msg
}

// Default returns the message in the configured default language.
func (l *Localizer) Default(messageID string, data map[string]interface{}) string {
	return l.Get(l.defaultLanguage, messageID, data)
}

// DefaultLanguage returns the configured default language.
func (l *Localizer) DefaultLanguage() string {
	return l.defaultLanguage
}

// Message IDs
const (
	MsgMissingAPIKey       = "missing_api_key"
	MsgLimitExceeded       = "limit_exceeded"
	MsgConnectFailed       = "connect_failed"
	MsgModelUnavailable    = "model_unavailable"
	MsgAPIError            = "api_error"
	MsgNoSuggestions       = "no_suggestions"
	MsgSettingsUnavailable = "settings_unavailable"
	MsgNoContent           = "no_content"
	MsgNoSavedSuggestions  = "no_saved_suggestions"
	MsgNonceFailed         = "nonce_failed"
	MsgContentTooLong      = "content_too_long"
	MsgWelcome             = "welcome"
	MsgHelp                = "help"
	MsgUsage               = "usage"
	MsgUnknownCommand      = "unknown_command"
	MsgAnalyzing           = "analyzing"
)
