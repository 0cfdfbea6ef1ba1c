package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ai-content-optimizer-go/internal/config"
	"github.com/ai-content-optimizer-go/internal/i18n"
	"github.com/ai-content-optimizer-go/internal/middleware"
	"github.com/ai-content-optimizer-go/internal/models"
	"github.com/sirupsen/logrus"
	openai "github.com/sashabaranov/go-openai"
)

var rateLimitPattern = regexp.MustCompile(`(?i)\b429\b|too many requests|rate limit`)

// SettingsProvider loads the settings for one request cycle.
type SettingsProvider interface {
	Get(ctx context.Context) (*models.Settings, error)
}

// UsageCounter is the persisted request counter.
type UsageCounter interface {
	GetUsage(ctx context.Context) (int, error)
	IncrementUsage(ctx context.Context) (int, error)
}

// Requester sends content to the chat-completion endpoint and turns the
// outcome into display text.
type Requester struct {
	cfg        *config.OpenAIConfig
	settings   SettingsProvider
	usage      UsageCounter
	localizer  *i18n.Localizer
	metrics    *middleware.Metrics
	logger     *logrus.Logger
	clock      Clock
	httpClient *http.Client
	throttle   *throttle
}

// Option configures a Requester
type Option func(*Requester)

// WithClock replaces the wall clock used for throttling and backoff.
func WithClock(clock Clock) Option {
	return func(r *Requester) {
		r.clock = clock
	}
}

// WithHTTPClient replaces the HTTP client used for provider calls.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Requester) {
		r.httpClient = client
	}
}

// NewRequester creates a new requester
func NewRequester(
	cfg *config.OpenAIConfig,
	settings SettingsProvider,
	usage UsageCounter,
	localizer *i18n.Localizer,
	metrics *middleware.Metrics,
	logger *logrus.Logger,
	opts ...Option,
) *Requester {
	r := &Requester{
		cfg:       cfg,
		settings:  settings,
		usage:     usage,
		localizer: localizer,
		metrics:   metrics,
		logger:    logger,
		clock:     realClock{},
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.httpClient = withErrorBodyDetection(r.httpClient)
	r.throttle = newThrottle(r.clock)
	return r
}

// GetSuggestions returns display text for content: the provider's answer or
// a fixed message describing why there is none.
func (r *Requester) GetSuggestions(ctx context.Context, content string) string {
	return r.Request(ctx, content).Text
}

// Request runs one request cycle. It never fails; failures are reported
// through Suggestion.Err with Text set to the user-facing message.
func (r *Requester) Request(ctx context.Context, content string) Suggestion {
	suggestion := r.request(ctx, content)
	r.metrics.RecordSuggestion(suggestion.Kind())
	return suggestion
}

func (r *Requester) request(ctx context.Context, content string) Suggestion {
	settings, err := r.settings.Get(ctx)
	if err != nil {
		r.logger.WithError(err).Error("Failed to load settings")
		return r.fail("", KindConfig, "", r.localizer.Default(i18n.MsgSettingsUnavailable, nil))
	}

	if settings.APIKey == "" {
		return r.fail(settings.Model, KindConfig, "", r.localizer.Default(i18n.MsgMissingAPIKey, nil))
	}

	used, err := r.usage.GetUsage(ctx)
	if err != nil {
		r.logger.WithError(err).Error("Failed to load usage counter")
		return r.fail(settings.Model, KindConfig, "", r.localizer.Default(i18n.MsgSettingsUnavailable, nil))
	}
	if used >= settings.DailyRequestLimit {
		r.logger.WithFields(logrus.Fields{
			"used":  used,
			"limit": settings.DailyRequestLimit,
		}).Warn("Daily request limit exceeded")
		return r.fail(settings.Model, KindQuota, "", r.localizer.Default(i18n.MsgLimitExceeded, nil))
	}

	waited, err := r.throttle.Wait(ctx, settings.DailyRequestLimit)
	if err != nil {
		r.logger.WithError(err).Warn("Request cancelled while throttled")
		return r.fail(settings.Model, KindTransport, "", r.localizer.Default(i18n.MsgConnectFailed, nil))
	}
	if waited > 0 {
		r.metrics.RecordThrottleWait(waited)
		r.logger.WithField("wait", waited).Debug("Throttled request")
	}

	client := r.newClient(settings.APIKey)
	req := buildRequest(settings.Model, settings.MaxTokens, content)

	resp, err := r.send(ctx, client, req)
	if err != nil && isRateLimitTransportError(err) {
		r.metrics.RecordRetry()
		r.logger.WithFields(logrus.Fields{
			"model":   settings.Model,
			"backoff": r.cfg.RetryBackoff,
		}).Warn("Rate limited by transport, retrying once")

		if sleepErr := r.clock.Sleep(ctx, r.cfg.RetryBackoff); sleepErr != nil {
			return r.fail(settings.Model, KindTransport, "", r.localizer.Default(i18n.MsgConnectFailed, nil))
		}
		resp, err = r.send(ctx, client, req)
	}
	if err != nil {
		if !isMalformedBody(err) {
			return r.classify(settings.Model, err)
		}
		resp = openai.ChatCompletionResponse{}
	}

	if _, err := r.usage.IncrementUsage(ctx); err != nil {
		r.logger.WithError(err).Error("Failed to increment usage counter")
	}

	// An empty content string is an answer; only a missing choice falls back.
	if len(resp.Choices) == 0 {
		return r.fail(settings.Model, KindMalformed, "", r.localizer.Default(i18n.MsgNoSuggestions, nil))
	}

	return Suggestion{Text: resp.Choices[0].Message.Content, Model: settings.Model}
}

func (r *Requester) newClient(apiKey string) *openai.Client {
	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = strings.TrimSuffix(r.cfg.BaseURL, "/")
	clientConfig.HTTPClient = r.httpClient
	return openai.NewClientWithConfig(clientConfig)
}

func (r *Requester) send(ctx context.Context, client *openai.Client, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	start := time.Now()
	resp, err := client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	fields := logrus.Fields{
		"model":    req.Model,
		"duration": duration,
	}
	if err != nil {
		r.metrics.RecordAIRequest(req.Model, "error", duration)
		r.logger.WithFields(fields).WithError(err).Error("OpenAI API request failed")
		return resp, err
	}

	r.metrics.RecordAIRequest(req.Model, "success", duration)
	fields["choices"] = len(resp.Choices)
	fields["total_tokens"] = resp.Usage.TotalTokens
	r.logger.WithFields(fields).Info("OpenAI API response received")
	return resp, nil
}

// classify maps a failed call onto the error taxonomy.
func (r *Requester) classify(model string, err error) Suggestion {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := errorCode(apiErr)
		switch {
		case code == "model_not_found",
			(code == "invalid_request_error" || apiErr.Type == "invalid_request_error") &&
				strings.Contains(apiErr.Message, "The model"):
			return r.fail(model, KindProvider, code, r.localizer.Default(i18n.MsgModelUnavailable, map[string]interface{}{
				"Model": model,
			}))
		case code == "insufficient_quota":
			return r.fail(model, KindProvider, code, apiErr.Message)
		default:
			return r.fail(model, KindProvider, code, r.localizer.Default(i18n.MsgAPIError, map[string]interface{}{
				"Message": apiErr.Message,
			}))
		}
	}

	return r.fail(model, KindTransport, "", r.localizer.Default(i18n.MsgConnectFailed, nil))
}

func (r *Requester) fail(model string, kind Kind, code, message string) Suggestion {
	return Suggestion{
		Text:  message,
		Model: model,
		Err:   &Error{Kind: kind, Code: code, Message: message},
	}
}

// ListModels returns the model IDs the key can access, sorted.
func (r *Requester) ListModels(ctx context.Context, apiKey string) ([]string, error) {
	if apiKey == "" {
		return nil, &Error{Kind: KindConfig, Message: r.localizer.Default(i18n.MsgMissingAPIKey, nil)}
	}

	list, err := r.newClient(apiKey).ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func errorCode(apiErr *openai.APIError) string {
	switch code := apiErr.Code.(type) {
	case nil:
		return ""
	case string:
		return code
	case int:
		// a null code decodes as zero
		if code == 0 {
			return ""
		}
		return fmt.Sprint(code)
	default:
		return fmt.Sprint(code)
	}
}

// isRateLimitTransportError matches a 429 that came back without a structured
// error body, or a transport failure that mentions rate limiting.
func isRateLimitTransportError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return false
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}

	return rateLimitPattern.MatchString(err.Error())
}

// isMalformedBody matches a success status whose body is not a completion.
// The provider still answered, so the call counts against the quota.
func isMalformedBody(err error) bool {
	var urlErr *url.Error
	var reqErr *openai.RequestError
	if errors.As(err, &urlErr) || errors.As(err, &reqErr) {
		return false
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) ||
		errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
