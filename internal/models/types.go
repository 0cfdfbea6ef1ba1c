package models

import (
	"time"
)

// Settings is the plugin configuration produced by the settings form.
type Settings struct {
	APIKey            string `json:"api_key"`
	Model             string `json:"model"`
	MaxTokens         int    `json:"max_tokens"`
	DailyRequestLimit int    `json:"daily_request_limit"`
}

// MaskedAPIKey returns the key with everything but the last four characters hidden.
func (s *Settings) MaskedAPIKey() string {
	if s.APIKey == "" {
		return ""
	}
	if len(s.APIKey) <= 4 {
		return "****"
	}
	return "****" + s.APIKey[len(s.APIKey)-4:]
}

// Usage represents the request counter against the daily limit
type Usage struct {
	UsedRequests      int `json:"used_requests"`
	DailyRequestLimit int `json:"daily_request_limit"`
}

// Suggestion is the latest analysis stored for a content item.
// A new analysis overwrites it.
type Suggestion struct {
	ItemID    int64     `json:"item_id"`
	Text      string    `json:"text"`
	HTML      string    `json:"html"`
	Kind      string    `json:"kind"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// CacheEntry represents a cached response
type CacheEntry struct {
	Content   string
	Answer    string
	Model     string
	CreatedAt time.Time
}
