package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Defaults   DefaultsConfig   `mapstructure:"defaults"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Security   SecurityConfig   `mapstructure:"security"`
	Usage      UsageConfig      `mapstructure:"usage"`
	Bot        BotConfig        `mapstructure:"bot"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
	Markdown   MarkdownConfig   `mapstructure:"markdown"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// OpenAIConfig describes the chat-completion endpoint. The credentials and
// the model live in the plugin settings, not here.
type OpenAIConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	SupportedModels []string      `mapstructure:"supported_models"`
}

// DefaultsConfig seeds the plugin settings until they are saved once.
type DefaultsConfig struct {
	APIKey            string `mapstructure:"api_key"`
	Model             string `mapstructure:"model"`
	MaxTokens         int    `mapstructure:"max_tokens"`
	DailyRequestLimit int    `mapstructure:"daily_request_limit"`
}

type StorageConfig struct {
	Type   string       `mapstructure:"type"`
	Redis  RedisConfig  `mapstructure:"redis"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
}

type SecurityConfig struct {
	NonceSecret string        `mapstructure:"nonce_secret"`
	NonceTTL    time.Duration `mapstructure:"nonce_ttl"`
	MaxContent  int           `mapstructure:"max_content"`
}

type UsageConfig struct {
	// ResetSchedule is a cron expression. Empty disables scheduled resets.
	ResetSchedule string `mapstructure:"reset_schedule"`
}

type BotConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Token         string `mapstructure:"token"`
	UpdateTimeout int    `mapstructure:"update_timeout"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
	Directory       string   `mapstructure:"directory"`
}

type MarkdownConfig struct {
	// Renderer is "basic" (fixed substitutions) or "blackfriday".
	Renderer string `mapstructure:"renderer"`
}

// MaxTokensCeiling is the largest max_tokens value the settings accept.
const MaxTokensCeiling = 4096

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.timeout", 15*time.Second)
	v.SetDefault("openai.retry_backoff", 10*time.Second)
	v.SetDefault("openai.supported_models", []string{"gpt-3.5-turbo", "gpt-4-turbo", "gpt-4o", "gpt-4o-mini"})

	v.SetDefault("defaults.model", "gpt-3.5-turbo")
	v.SetDefault("defaults.max_tokens", 700)
	v.SetDefault("defaults.daily_request_limit", 10000)

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.key_prefix", "aico:")
	v.SetDefault("storage.sqlite.path", "data/optimizer.db")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.max_size", 1000)

	v.SetDefault("security.nonce_ttl", 24*time.Hour)
	v.SetDefault("security.max_content", 100000)

	v.SetDefault("bot.update_timeout", 60)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file.path", "logs/optimizer.log")
	v.SetDefault("logging.file.max_size", 100)
	v.SetDefault("logging.file.max_backups", 3)
	v.SetDefault("logging.file.max_age", 28)

	v.SetDefault("monitoring.metrics.port", 9090)
	v.SetDefault("monitoring.metrics.path", "/metrics")

	v.SetDefault("i18n.default_language", "en")
	v.SetDefault("i18n.languages", []string{"en"})

	v.SetDefault("markdown.renderer", "basic")
}

// LoadConfig loads configuration from file and environment variables.
// A missing file is not an error; defaults and the environment still apply.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AICO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("defaults.api_key", "AICO_DEFAULTS_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("bot.token", "AICO_BOT_TOKEN", "BOT_TOKEN")
	v.BindEnv("storage.redis.password", "AICO_STORAGE_REDIS_PASSWORD", "REDIS_PASSWORD")
	v.BindEnv("security.nonce_secret", "AICO_SECURITY_NONCE_SECRET", "NONCE_SECRET")

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Handle Redis address special case
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		redisPort := os.Getenv("REDIS_PORT")
		if redisPort == "" {
			redisPort = "6379"
		}
		config.Storage.Redis.Addr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server address is required")
	}
	if cfg.OpenAI.BaseURL == "" {
		return fmt.Errorf("openai base URL is required")
	}
	if cfg.OpenAI.Timeout <= 0 {
		return fmt.Errorf("openai timeout must be positive")
	}
	if cfg.OpenAI.RetryBackoff < 0 {
		return fmt.Errorf("openai retry backoff must not be negative")
	}
	if len(cfg.OpenAI.SupportedModels) == 0 {
		return fmt.Errorf("at least one supported model is required")
	}
	if !cfg.IsSupportedModel(cfg.Defaults.Model) {
		return fmt.Errorf("default model %q is not a supported model", cfg.Defaults.Model)
	}
	if cfg.Defaults.MaxTokens < 1 || cfg.Defaults.MaxTokens > MaxTokensCeiling {
		return fmt.Errorf("default max_tokens must be between 1 and %d", MaxTokensCeiling)
	}
	if cfg.Defaults.DailyRequestLimit < 1 {
		return fmt.Errorf("default daily_request_limit must be positive")
	}
	switch cfg.Storage.Type {
	case "memory", "redis", "sqlite":
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
	switch cfg.Markdown.Renderer {
	case "basic", "blackfriday":
	default:
		return fmt.Errorf("unsupported markdown renderer: %s", cfg.Markdown.Renderer)
	}
	if cfg.Bot.Enabled && cfg.Bot.Token == "" {
		return fmt.Errorf("bot token is required when the bot is enabled")
	}
	return nil
}

// IsSupportedModel reports whether model is one of the configured model identifiers.
func (c *Config) IsSupportedModel(model string) bool {
	for _, m := range c.OpenAI.SupportedModels {
		if m == model {
			return true
		}
	}
	return false
}
