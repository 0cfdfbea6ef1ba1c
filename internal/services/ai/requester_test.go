package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ai-content-optimizer-go/internal/config"
	"github.com/ai-content-optimizer-go/internal/i18n"
	"github.com/ai-content-optimizer-go/internal/middleware"
	"github.com/ai-content-optimizer-go/internal/models"
	"github.com/ai-content-optimizer-go/internal/services/storage"
	"github.com/ai-content-optimizer-go/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type staticSettings struct {
	settings *models.Settings
	err      error
}

func (s *staticSettings) Get(ctx context.Context) (*models.Settings, error) {
	if s.err != nil {
		return nil, s.err
	}
	copied := *s.settings
	return &copied, nil
}

type harness struct {
	requester *Requester
	usage     *storage.MemoryStorage
	settings  *staticSettings
	clock     *fakeClock
	server    *httptest.Server
	calls     int32
}

func newHarness(t *testing.T, handler http.HandlerFunc) *harness {
	t.Helper()

	h := &harness{
		usage: storage.NewMemoryStorage(logger.NewNopLogger()),
		settings: &staticSettings{settings: &models.Settings{
			APIKey:            "sk-test",
			Model:             "gpt-4o",
			MaxTokens:         700,
			DailyRequestLimit: 10000,
		}},
		clock: newFakeClock(),
	}

	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&h.calls, 1)
		handler(w, r)
	}))
	t.Cleanup(h.server.Close)

	localizer, err := i18n.NewLocalizer(&config.I18nConfig{DefaultLanguage: "en"})
	require.NoError(t, err)

	cfg := &config.OpenAIConfig{
		BaseURL:      h.server.URL + "/v1",
		Timeout:      5 * time.Second,
		RetryBackoff: 10 * time.Second,
	}
	h.requester = NewRequester(cfg, h.settings, h.usage, localizer, middleware.NewMetrics(),
		logger.NewNopLogger(), WithClock(h.clock))
	return h
}

func (h *harness) Calls() int {
	return int(atomic.LoadInt32(&h.calls))
}

func (h *harness) Used(t *testing.T) int {
	t.Helper()
	used, err := h.usage.GetUsage(context.Background())
	require.NoError(t, err)
	return used
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func completion(content string) string {
	return `{"id":"chatcmpl-1","object":"chat.completion","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":` +
		mustJSON(content) + `},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`
}

func mustJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

func okHandler(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, completion(content))
	}
}

func TestRequest_MissingAPIKey(t *testing.T) {
	h := newHarness(t, okHandler("Hello"))
	h.settings.settings.APIKey = ""

	got := h.requester.Request(context.Background(), "My post")

	assert.Equal(t, "API key is missing. Please add it in the plugin settings.", got.Text)
	require.NotNil(t, got.Err)
	assert.Equal(t, KindConfig, got.Err.Kind)
	assert.Equal(t, 0, h.Calls())
	assert.Equal(t, 0, h.Used(t))
}

func TestRequest_SettingsUnavailable(t *testing.T) {
	h := newHarness(t, okHandler("Hello"))
	h.settings.err = errors.New("redis down")

	got := h.requester.Request(context.Background(), "My post")

	require.NotNil(t, got.Err)
	assert.Equal(t, KindConfig, got.Err.Kind)
	assert.Equal(t, "Plugin settings are unavailable. Please try again later.", got.Text)
	assert.Equal(t, 0, h.Calls())
}

func TestRequest_DailyLimitReached(t *testing.T) {
	h := newHarness(t, okHandler("Hello"))
	h.settings.settings.DailyRequestLimit = 2
	for i := 0; i < 2; i++ {
		_, err := h.usage.IncrementUsage(context.Background())
		require.NoError(t, err)
	}

	got := h.requester.Request(context.Background(), "My post")

	assert.Equal(t, "Daily request limit exceeded. Please try again tomorrow.", got.Text)
	require.NotNil(t, got.Err)
	assert.Equal(t, KindQuota, got.Err.Kind)
	assert.Equal(t, 0, h.Calls())
	assert.Equal(t, 2, h.Used(t))
}

func TestRequest_Success(t *testing.T) {
	var captured struct {
		method, path, auth, contentType string
		body                            map[string]interface{}
	}
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		captured.contentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&captured.body)
		writeJSON(w, http.StatusOK, completion("Hello"))
	})

	got := h.requester.Request(context.Background(), "My post")

	assert.Nil(t, got.Err)
	assert.Equal(t, "Hello", got.Text)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, 1, h.Used(t))

	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "/v1/chat/completions", captured.path)
	assert.Equal(t, "Bearer sk-test", captured.auth)
	assert.Contains(t, captured.contentType, "application/json")

	assert.Equal(t, "gpt-4o", captured.body["model"])
	assert.EqualValues(t, 700, captured.body["max_tokens"])
	assert.InDelta(t, 0.7, captured.body["temperature"], 0.0001)

	messages, ok := captured.body["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)
	system := messages[0].(map[string]interface{})
	user := messages[1].(map[string]interface{})
	assert.Equal(t, "system", system["role"])
	assert.Contains(t, system["content"], "expert in SEO")
	assert.Equal(t, "user", user["role"])
	assert.True(t, strings.HasSuffix(user["content"].(string), "Content to analyze: My post"))
	assert.Contains(t, user["content"], "**Meta Description**")
}

func TestGetSuggestions_ReturnsText(t *testing.T) {
	h := newHarness(t, okHandler("**Keywords**: [\"go\"]"))

	assert.Equal(t, "**Keywords**: [\"go\"]", h.requester.GetSuggestions(context.Background(), "My post"))
}

func TestRequest_NoChoices(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"chatcmpl-1","object":"chat.completion","choices":[]}`)
	})

	got := h.requester.Request(context.Background(), "My post")

	assert.Equal(t, "No suggestions available.", got.Text)
	require.NotNil(t, got.Err)
	assert.Equal(t, KindMalformed, got.Err.Kind)
	assert.Equal(t, 1, h.Used(t))
}

func TestRequest_MalformedBody(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `not json`)
	})

	got := h.requester.Request(context.Background(), "My post")

	assert.Equal(t, "No suggestions available.", got.Text)
	require.NotNil(t, got.Err)
	assert.Equal(t, KindMalformed, got.Err.Kind)
	assert.Equal(t, 1, h.Used(t))
}

func TestRequest_EmptyContentPassesThrough(t *testing.T) {
	h := newHarness(t, okHandler(""))

	got := h.requester.Request(context.Background(), "My post")

	assert.Equal(t, "", got.Text)
	assert.Nil(t, got.Err)
	assert.Equal(t, 1, h.Used(t))
}

func TestRequest_ErrorObjectWithSuccessStatus(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","param":null,"code":"insufficient_quota"}}`)
	})

	got := h.requester.Request(context.Background(), "My post")

	assert.Equal(t, "You exceeded your current quota", got.Text)
	require.NotNil(t, got.Err)
	assert.Equal(t, KindProvider, got.Err.Kind)
	assert.Equal(t, "insufficient_quota", got.Err.Code)
	assert.Equal(t, 0, h.Used(t))
	assert.Equal(t, 1, h.Calls())
	assert.Empty(t, h.clock.Sleeps())
}

func TestHasErrorObject(t *testing.T) {
	assert.True(t, hasErrorObject([]byte(`{"error":{"message":"boom"}}`)))
	assert.False(t, hasErrorObject([]byte(`{"error":null,"choices":[]}`)))
	assert.False(t, hasErrorObject([]byte(`{"error":"boom"}`)))
	assert.False(t, hasErrorObject([]byte(`not json`)))
	assert.False(t, hasErrorObject([]byte(completion("Hello"))))
}

func TestRequest_InsufficientQuotaVerbatim(t *testing.T) {
	const message = "You exceeded your current quota, please check your plan and billing details."
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests,
			`{"error":{"message":"`+message+`","type":"insufficient_quota","param":null,"code":"insufficient_quota"}}`)
	})

	got := h.requester.Request(context.Background(), "My post")

	assert.Equal(t, message, got.Text)
	require.NotNil(t, got.Err)
	assert.Equal(t, KindProvider, got.Err.Kind)
	assert.Equal(t, "insufficient_quota", got.Err.Code)
	assert.Equal(t, 1, h.Calls())
	assert.Empty(t, h.clock.Sleeps())
	assert.Equal(t, 0, h.Used(t))
}

func TestRequest_ProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
		code   string
	}{
		{
			name:   "model not found",
			status: http.StatusNotFound,
			body:   `{"error":{"message":"The model ` + "`gpt-4o`" + ` does not exist or you do not have access to it.","type":"invalid_request_error","param":null,"code":"model_not_found"}}`,
			want:   "The model gpt-4o does not exist, or you do not have access to it.",
			code:   "model_not_found",
		},
		{
			name:   "legacy invalid request code",
			status: http.StatusBadRequest,
			body:   `{"error":{"message":"The model does not exist","type":"invalid_request_error","code":"invalid_request_error"}}`,
			want:   "The model gpt-4o does not exist, or you do not have access to it.",
			code:   "invalid_request_error",
		},
		{
			name:   "invalid request about something else",
			status: http.StatusBadRequest,
			body:   `{"error":{"message":"max_tokens is too large","type":"invalid_request_error","code":null}}`,
			want:   "OpenAI API Error: max_tokens is too large",
		},
		{
			name:   "structured rate limit is not retried",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"Rate limit reached for requests","type":"requests","code":"rate_limit_exceeded"}}`,
			want:   "OpenAI API Error: Rate limit reached for requests",
			code:   "rate_limit_exceeded",
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"error":{"message":"The server had an error while processing your request.","type":"server_error"}}`,
			want:   "OpenAI API Error: The server had an error while processing your request.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			got := h.requester.Request(context.Background(), "My post")

			assert.Equal(t, tt.want, got.Text)
			require.NotNil(t, got.Err)
			assert.Equal(t, KindProvider, got.Err.Kind)
			assert.Equal(t, tt.code, got.Err.Code)
			assert.Equal(t, 1, h.Calls())
			assert.Empty(t, h.clock.Sleeps())
			assert.Equal(t, 0, h.Used(t))
		})
	}
}

func TestRequest_RateLimitTransportErrorRetriedOnce(t *testing.T) {
	var attempts int32
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, "Too Many Requests")
			return
		}
		writeJSON(w, http.StatusOK, completion("Hello"))
	})

	got := h.requester.Request(context.Background(), "My post")

	assert.Nil(t, got.Err)
	assert.Equal(t, "Hello", got.Text)
	assert.Equal(t, 2, h.Calls())
	assert.Equal(t, []time.Duration{10 * time.Second}, h.clock.Sleeps())
	assert.Equal(t, 1, h.Used(t))
}

func TestRequest_RateLimitRetryAlsoFails(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, "Too Many Requests")
	})

	got := h.requester.Request(context.Background(), "My post")

	assert.Equal(t, "Failed to connect to OpenAI API.", got.Text)
	require.NotNil(t, got.Err)
	assert.Equal(t, KindTransport, got.Err.Kind)
	assert.Equal(t, 2, h.Calls())
	assert.Equal(t, 0, h.Used(t))
}

func TestRequest_UnstructuredServerErrorNotRetried(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "<html>bad gateway</html>")
	})

	got := h.requester.Request(context.Background(), "My post")

	assert.Equal(t, "Failed to connect to OpenAI API.", got.Text)
	require.NotNil(t, got.Err)
	assert.Equal(t, KindTransport, got.Err.Kind)
	assert.Equal(t, 0, h.Used(t))
	assert.Equal(t, 1, h.Calls())
	assert.Empty(t, h.clock.Sleeps())
}

func TestRequest_ConnectionFailure(t *testing.T) {
	h := newHarness(t, okHandler("Hello"))
	h.server.Close()

	got := h.requester.Request(context.Background(), "My post")

	assert.Equal(t, "Failed to connect to OpenAI API.", got.Text)
	require.NotNil(t, got.Err)
	assert.Equal(t, KindTransport, got.Err.Kind)
	assert.Equal(t, 0, h.Used(t))
}

func TestRequest_ThrottleWaitsRemainingInterval(t *testing.T) {
	h := newHarness(t, okHandler("Hello"))
	h.settings.settings.DailyRequestLimit = 60

	ctx := context.Background()
	first := h.requester.Request(ctx, "one")
	require.Nil(t, first.Err)
	assert.Empty(t, h.clock.Sleeps())

	second := h.requester.Request(ctx, "two")
	require.Nil(t, second.Err)
	assert.Equal(t, []time.Duration{time.Second}, h.clock.Sleeps())

	// a gap longer than the interval needs no wait
	h.clock.mu.Lock()
	h.clock.now = h.clock.now.Add(5 * time.Second)
	h.clock.mu.Unlock()

	third := h.requester.Request(ctx, "three")
	require.Nil(t, third.Err)
	assert.Len(t, h.clock.Sleeps(), 1)
	assert.Equal(t, 3, h.Used(t))
}

func TestInterval(t *testing.T) {
	assert.Equal(t, time.Second, interval(60))
	assert.Equal(t, 6*time.Millisecond, interval(10000))
	assert.Equal(t, time.Minute, interval(0))
}

func TestIsRateLimitTransportError(t *testing.T) {
	assert.True(t, isRateLimitTransportError(errors.New("unexpected status 429")))
	assert.True(t, isRateLimitTransportError(errors.New("Too Many Requests")))
	assert.True(t, isRateLimitTransportError(errors.New("upstream rate limit hit")))
	assert.False(t, isRateLimitTransportError(errors.New("dial tcp 127.0.0.1:54291: connection refused")))
	assert.False(t, isRateLimitTransportError(errors.New("timeout")))
}

func TestListModels(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, "Bearer sk-other", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{"object":"list","data":[{"id":"gpt-4o","object":"model"},{"id":"gpt-3.5-turbo","object":"model"}]}`)
	})

	ids, err := h.requester.ListModels(context.Background(), "sk-other")
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-3.5-turbo", "gpt-4o"}, ids)
	assert.Equal(t, 0, h.Used(t))

	_, err = h.requester.ListModels(context.Background(), "")
	var aiErr *Error
	require.ErrorAs(t, err, &aiErr)
	assert.Equal(t, KindConfig, aiErr.Kind)
}
