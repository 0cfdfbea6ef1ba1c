package handlers

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ai-content-optimizer-go/internal/i18n"
	"github.com/ai-content-optimizer-go/internal/services/analysis"
	"github.com/ai-content-optimizer-go/internal/services/settings"
	"github.com/ai-content-optimizer-go/pkg/markdown"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Sender is the part of tgbotapi.BotAPI the command handler uses
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// CommandHandler handles telegram commands
type CommandHandler struct {
	bot       Sender
	analysis  *analysis.Service
	settings  *settings.Service
	localizer *i18n.Localizer
	logger    *logrus.Logger
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(
	bot Sender,
	analysisService *analysis.Service,
	settingsService *settings.Service,
	localizer *i18n.Localizer,
	logger *logrus.Logger,
) *CommandHandler {
	return &CommandHandler{
		bot:       bot,
		analysis:  analysisService,
		settings:  settingsService,
		localizer: localizer,
		logger:    logger,
	}
}

// Run dispatches updates until the channel closes or ctx is done, handling
// each one in its own goroutine. It returns once every handler has finished.
func (h *CommandHandler) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := h.HandleUpdate(ctx, &update); err != nil {
					h.logger.WithError(err).Error("Failed to handle update")
				}
			}()
		}
	}
}

// HandleUpdate processes one update. Only commands are answered.
func (h *CommandHandler) HandleUpdate(ctx context.Context, update *tgbotapi.Update) error {
	if update.Message == nil || !update.Message.IsCommand() {
		return nil
	}
	return h.HandleCommand(ctx, update.Message)
}

// HandleCommand processes telegram commands
func (h *CommandHandler) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	lang := h.localizer.DefaultLanguage()
	if message.From != nil && message.From.LanguageCode != "" {
		lang = message.From.LanguageCode
	}

	switch message.Command() {
	case "start":
		return h.sendText(chatID, h.localizer.Get(lang, i18n.MsgWelcome, nil))
	case "help":
		return h.sendText(chatID, h.localizer.Get(lang, i18n.MsgHelp, nil))
	case "usage":
		return h.handleUsage(ctx, chatID, lang)
	case "analyze":
		return h.handleAnalyze(ctx, message, lang)
	case "suggestion":
		return h.handleSuggestion(ctx, message, lang)
	default:
		return h.sendText(chatID, h.localizer.Get(lang, i18n.MsgUnknownCommand, nil))
	}
}

func (h *CommandHandler) handleUsage(ctx context.Context, chatID int64, lang string) error {
	usage, err := h.settings.Usage(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load usage")
		return h.sendText(chatID, h.localizer.Get(lang, i18n.MsgSettingsUnavailable, nil))
	}

	return h.sendText(chatID, h.localizer.Get(lang, i18n.MsgUsage, map[string]interface{}{
		"Used":  usage.UsedRequests,
		"Limit": usage.DailyRequestLimit,
	}))
}

// handleAnalyze analyzes the command arguments, or the replied-to message
// when there are none. The analyzed message ID is the content item ID.
func (h *CommandHandler) handleAnalyze(ctx context.Context, message *tgbotapi.Message, lang string) error {
	chatID := message.Chat.ID
	content := strings.TrimSpace(message.CommandArguments())
	itemID := int64(message.MessageID)
	if content == "" && message.ReplyToMessage != nil {
		content = message.ReplyToMessage.Text
		itemID = int64(message.ReplyToMessage.MessageID)
	}

	if strings.TrimSpace(content) == "" {
		return h.sendText(chatID, h.localizer.Get(lang, i18n.MsgNoContent, nil))
	}

	thinking := tgbotapi.NewMessage(chatID, h.localizer.Get(lang, i18n.MsgAnalyzing, nil))
	thinking.ReplyToMessageID = message.MessageID
	sent, err := h.bot.Send(thinking)
	if err != nil {
		return err
	}

	suggestion, err := h.analysis.Analyze(ctx, itemID, content)
	if errors.Is(err, analysis.ErrNoContent) {
		return h.editText(chatID, sent.MessageID, h.localizer.Get(lang, i18n.MsgNoContent, nil))
	}
	if err != nil {
		return err
	}

	return h.sendResponse(chatID, sent.MessageID, suggestion.Text)
}

func (h *CommandHandler) handleSuggestion(ctx context.Context, message *tgbotapi.Message, lang string) error {
	chatID := message.Chat.ID
	itemID := int64(message.MessageID)
	if message.ReplyToMessage != nil {
		itemID = int64(message.ReplyToMessage.MessageID)
	}

	latest, err := h.analysis.Latest(ctx, itemID)
	if err != nil {
		return err
	}
	if latest == nil || latest.Text == "" {
		return h.sendText(chatID, h.localizer.Get(lang, i18n.MsgNoSavedSuggestions, nil))
	}

	html := markdown.ToTelegramHTML(latest.Text)
	msg := tgbotapi.NewMessage(chatID, html)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyToMessageID = message.MessageID
	_, err = h.bot.Send(msg)
	return err
}

func (h *CommandHandler) sendText(chatID int64, text string) error {
	_, err := h.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (h *CommandHandler) editText(chatID int64, messageID int, text string) error {
	_, err := h.bot.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	return err
}

func (h *CommandHandler) sendResponse(chatID int64, messageID int, response string) error {
	editMsg := tgbotapi.NewEditMessageText(chatID, messageID, markdown.ToTelegramHTML(response))
	editMsg.ParseMode = tgbotapi.ModeHTML

	if _, err := h.bot.Send(editMsg); err != nil {
		// If HTML parsing fails, try plain text
		h.logger.WithError(err).Warn("Failed to send HTML response, trying plain text")
		editMsg.ParseMode = ""
		editMsg.Text = response
		_, err = h.bot.Send(editMsg)
		return err
	}
	return nil
}
