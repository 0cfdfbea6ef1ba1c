package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/ai-content-optimizer-go/internal/config"
	"github.com/ai-content-optimizer-go/internal/i18n"
	"github.com/ai-content-optimizer-go/internal/middleware"
	"github.com/ai-content-optimizer-go/internal/models"
	"github.com/ai-content-optimizer-go/internal/services/analysis"
	"github.com/ai-content-optimizer-go/internal/services/settings"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	// SessionCookie binds nonces to a browser session
	SessionCookie = "aico_session"
	// NonceHeader carries the nonce on JSON endpoints
	NonceHeader = "X-AICO-Nonce"
)

// ModelLister lists the models an API key can access
type ModelLister interface {
	ListModels(ctx context.Context, apiKey string) ([]string, error)
}

// APIHandler serves the editor-facing HTTP API
type APIHandler struct {
	config    *config.Config
	analysis  *analysis.Service
	settings  *settings.Service
	models    ModelLister
	nonces    *middleware.NonceManager
	security  *middleware.SecurityMiddleware
	localizer *i18n.Localizer
	logger    *logrus.Logger
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(
	cfg *config.Config,
	analysisService *analysis.Service,
	settingsService *settings.Service,
	models ModelLister,
	nonces *middleware.NonceManager,
	security *middleware.SecurityMiddleware,
	localizer *i18n.Localizer,
	logger *logrus.Logger,
) *APIHandler {
	return &APIHandler{
		config:    cfg,
		analysis:  analysisService,
		settings:  settingsService,
		models:    models,
		nonces:    nonces,
		security:  security,
		localizer: localizer,
		logger:    logger,
	}
}

// Router builds the API routes
func (h *APIHandler) Router(metrics *middleware.Metrics) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger(h.logger, metrics))

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/nonce", h.handleNonce).Methods(http.MethodGet)
	api.HandleFunc("/analyze", h.handleAnalyze).Methods(http.MethodPost)
	api.HandleFunc("/suggestions/{id:[0-9]+}", h.handleSuggestion).Methods(http.MethodGet)
	api.HandleFunc("/settings", h.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", h.handleUpdateSettings).Methods(http.MethodPut)
	api.HandleFunc("/usage/reset", h.handleResetUsage).Methods(http.MethodPost)
	api.HandleFunc("/models", h.handleModels).Methods(http.MethodGet)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	return router
}

// session returns the session ID from the cookie, creating one if needed
func (h *APIHandler) session(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func sessionFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (h *APIHandler) verifyNonce(w http.ResponseWriter, r *http.Request, nonce, action string) bool {
	if err := h.nonces.Verify(nonce, sessionFromRequest(r), action); err != nil {
		h.logger.WithError(err).WithField("action", action).Warn("Nonce verification failed")
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"data":    h.localizer.Default(i18n.MsgNonceFailed, nil),
		})
		return false
	}
	return true
}

func (h *APIHandler) handleNonce(w http.ResponseWriter, r *http.Request) {
	var action string
	switch r.URL.Query().Get("action") {
	case "", "analyze":
		action = middleware.ActionAnalyze
	case "settings":
		action = middleware.ActionSettings
	default:
		writeError(w, http.StatusBadRequest, "unknown nonce action")
		return
	}

	nonce, err := h.nonces.Issue(h.session(w, r), action)
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue nonce")
		writeError(w, http.StatusInternalServerError, "failed to issue nonce")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"action": action,
		"nonce":  nonce,
	})
}

type analyzeRequest struct {
	Content string `json:"content"`
	ItemID  int64  `json:"content_item_id"`
	Nonce   string `json:"_ajax_nonce"`
}

func parseAnalyzeRequest(r *http.Request) (*analyzeRequest, error) {
	var req analyzeRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, fmt.Errorf("failed to decode request: %w", err)
		}
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	req.Content = r.PostFormValue("content")
	req.Nonce = r.PostFormValue("_ajax_nonce")

	itemID := r.PostFormValue("content_item_id")
	if itemID == "" {
		itemID = r.PostFormValue("post_id")
	}
	if itemID != "" {
		id, err := strconv.ParseInt(itemID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid content item id %q: %w", itemID, err)
		}
		req.ItemID = id
	}
	return &req, nil
}

func (h *APIHandler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, err := parseAnalyzeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.verifyNonce(w, r, req.Nonce, middleware.ActionAnalyze) {
		return
	}

	if err := h.security.ValidateInput(req.Content); err != nil {
		writeHTML(w, http.StatusRequestEntityTooLarge, paragraph(h.localizer.Default(i18n.MsgContentTooLong, nil)))
		return
	}

	content := h.security.SanitizeInput(req.Content)
	suggestion, err := h.analysis.Analyze(r.Context(), req.ItemID, content)
	if errors.Is(err, analysis.ErrNoContent) {
		writeHTML(w, http.StatusOK, paragraph(h.localizer.Default(i18n.MsgNoContent, nil)))
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to analyze content")
		writeError(w, http.StatusInternalServerError, "failed to analyze content")
		return
	}

	writeHTML(w, http.StatusOK, h.security.SanitizeOutput(suggestion.HTML))
}

func (h *APIHandler) handleSuggestion(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid content item id")
		return
	}

	suggestion, err := h.analysis.Latest(r.Context(), itemID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load suggestion")
		return
	}
	if suggestion == nil || suggestion.HTML == "" {
		writeHTML(w, http.StatusOK, paragraph(h.localizer.Default(i18n.MsgNoSavedSuggestions, nil)))
		return
	}

	writeHTML(w, http.StatusOK, h.security.SanitizeOutput(suggestion.HTML))
}

type settingsView struct {
	APIKey            string   `json:"api_key"`
	Model             string   `json:"model"`
	MaxTokens         int      `json:"max_tokens"`
	DailyRequestLimit int      `json:"daily_request_limit"`
	UsedRequests      int      `json:"used_requests"`
	SupportedModels   []string `json:"supported_models"`
	UsageText         string   `json:"usage_text"`
}

func (h *APIHandler) settingsView(ctx context.Context, current *models.Settings) (*settingsView, error) {
	usage, err := h.settings.Usage(ctx)
	if err != nil {
		return nil, err
	}

	return &settingsView{
		APIKey:            current.MaskedAPIKey(),
		Model:             current.Model,
		MaxTokens:         current.MaxTokens,
		DailyRequestLimit: current.DailyRequestLimit,
		UsedRequests:      usage.UsedRequests,
		SupportedModels:   h.config.OpenAI.SupportedModels,
		UsageText: h.localizer.Default(i18n.MsgUsage, map[string]interface{}{
			"Used":  usage.UsedRequests,
			"Limit": usage.DailyRequestLimit,
		}),
	}, nil
}

func (h *APIHandler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	current, err := h.settings.Get(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load settings")
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	view, err := h.settingsView(r.Context(), current)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load usage")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *APIHandler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	if !h.verifyNonce(w, r, r.Header.Get(NonceHeader), middleware.ActionSettings) {
		return
	}

	var patch settings.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings payload")
		return
	}

	updated, err := h.settings.Update(r.Context(), patch)
	if errors.Is(err, settings.ErrInvalidSettings) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to update settings")
		writeError(w, http.StatusInternalServerError, "failed to update settings")
		return
	}

	view, err := h.settingsView(r.Context(), updated)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load usage")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *APIHandler) handleResetUsage(w http.ResponseWriter, r *http.Request) {
	if !h.verifyNonce(w, r, r.Header.Get(NonceHeader), middleware.ActionSettings) {
		return
	}

	if err := h.settings.ResetUsage(r.Context()); err != nil {
		h.logger.WithError(err).Error("Failed to reset usage")
		writeError(w, http.StatusInternalServerError, "failed to reset usage")
		return
	}

	usage, err := h.settings.Usage(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load usage")
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func (h *APIHandler) handleModels(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"supported": h.config.OpenAI.SupportedModels,
	}

	current, err := h.settings.Get(r.Context())
	if err == nil && current.APIKey != "" {
		available, err := h.models.ListModels(r.Context(), current.APIKey)
		if err != nil {
			h.logger.WithError(err).Warn("Failed to list provider models")
		} else {
			response["available"] = available
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func paragraph(text string) string {
	return "<p>" + html.EscapeString(text) + "</p>"
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
