// Package telegram is the bot-transport adapter: it maps Telegram updates
// onto the application state machine and the moderator gateway, and carries
// outbound notifications back over the Bot API. It holds no workflow state
// of its own.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"voicegate-backend/internal/config"
	"voicegate-backend/internal/domain"
	"voicegate-backend/internal/logger"
	"voicegate-backend/internal/service"
)

var callbackPattern = regexp.MustCompile(`^(approve|reject)_(\d+)$`)

type Bot struct {
	api        *tgbotapi.BotAPI
	cfg        config.TelegramConfig
	appSvc     service.ApplicationService
	modSvc     service.ModerationService
	maxBytes   int64
	httpClient *http.Client
}

func NewBot(
	api *tgbotapi.BotAPI,
	cfg config.TelegramConfig,
	appSvc service.ApplicationService,
	modSvc service.ModerationService,
	maxDownloadBytes int64,
) *Bot {
	return &Bot{
		api:        api,
		cfg:        cfg,
		appSvc:     appSvc,
		modSvc:     modSvc,
		maxBytes:   maxDownloadBytes,
		httpClient: http.DefaultClient,
	}
}

// Run consumes updates until the context is canceled. Updates are handled
// sequentially; per-update failures are logged and never stop the loop.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "callback_query", "chat_join_request"}

	updates := b.api.GetUpdatesChan(u)
	logger.Info("Telegram update loop started", "bot", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			logger.Info("Telegram update loop stopped")
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("Telegram update channel closed")
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Update handler panicked", "update_id", update.UpdateID, "panic", r)
		}
	}()

	switch {
	case update.ChatJoinRequest != nil:
		b.handleJoinRequest(ctx, update.ChatJoinRequest)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Chat.IsPrivate():
		b.handlePrivateMessage(ctx, update.Message)
	}
}

func (b *Bot) handleJoinRequest(ctx context.Context, req *tgbotapi.ChatJoinRequest) {
	if req.Chat.ID != b.cfg.GroupID {
		return
	}
	if err := b.appSvc.HandleJoinRequest(ctx, req.From.ID, req.From.FirstName, req.From.UserName); err != nil {
		logger.Error("Failed to handle join request", "applicant_id", req.From.ID, "error", err)
	}
}

func (b *Bot) handlePrivateMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Voice != nil {
		b.handleVoice(ctx, msg)
		return
	}
	if msg.IsCommand() && msg.Command() == "start" {
		b.handleStart(ctx, msg)
	}
}

func (b *Bot) handleVoice(ctx context.Context, msg *tgbotapi.Message) {
	applicantID := msg.From.ID

	if int64(msg.Voice.FileSize) > b.maxBytes {
		b.reply(msg.Chat.ID, "❌ The voice note is too large to process. Please send a shorter one.")
		return
	}

	audio, err := b.downloadVoice(ctx, msg.Voice.FileID)
	if err != nil {
		logger.Error("Failed to download voice note", "applicant_id", applicantID, "error", err)
		b.reply(msg.Chat.ID, "❌ The voice note could not be downloaded. Please try again.")
		return
	}

	// The service replies to the applicant and posts the review request;
	// the transport only moves the bytes. The file ID travels along so the
	// moderation channel can replay the note.
	if _, _, err := b.appSvc.HandleVoiceSubmission(ctx, applicantID, audio, msg.Voice.FileID); err != nil {
		logger.Error("Failed to handle voice submission", "applicant_id", applicantID, "error", err)
	}
}

// handleStart serves the /start deep link. "approve_<id>" gives moderators
// a shortcut decision prompt; anything else gets the onboarding hint.
func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	args := msg.CommandArguments()
	if strings.HasPrefix(args, "approve_") {
		applicantID, err := strconv.ParseInt(strings.TrimPrefix(args, "approve_"), 10, 64)
		if err != nil {
			return
		}
		if !b.modSvc.IsModerator(msg.From.ID) {
			b.reply(msg.Chat.ID, notAuthorizedMessage)
			return
		}
		prompt := tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf("Decision shortcut for applicant `%d`", applicantID))
		prompt.ParseMode = tgbotapi.ModeMarkdown
		prompt.ReplyMarkup = decisionKeyboard(applicantID)
		if _, err := b.api.Send(prompt); err != nil {
			logger.Warn("Failed to send decision shortcut", "error", err)
		}
		return
	}
	b.reply(msg.Chat.ID, startPrivateMessage)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	match := callbackPattern.FindStringSubmatch(cq.Data)
	if match == nil {
		b.answerCallback(cq.ID, "")
		return
	}

	decision := domain.DecisionApprove
	if match[1] == "reject" {
		decision = domain.DecisionReject
	}
	applicantID, err := strconv.ParseInt(match[2], 10, 64)
	if err != nil {
		b.answerCallback(cq.ID, "")
		return
	}

	status, err := b.modSvc.Decide(ctx, cq.From.ID, applicantID, decision)
	switch {
	case errors.Is(err, domain.ErrNotAuthorized):
		b.answerCallback(cq.ID, notAuthorizedMessage)
		return
	case errors.Is(err, domain.ErrNotFound):
		b.answerCallback(cq.ID, "No application found for this user.")
		return
	case errors.Is(err, domain.ErrNoSubmission):
		b.answerCallback(cq.ID, "This applicant has not submitted a voice note yet.")
		return
	case err != nil:
		logger.Error("Decision via callback failed", "applicant_id", applicantID, "error", err)
		b.answerCallback(cq.ID, "❌ Failed: "+err.Error())
		return
	}

	b.answerCallback(cq.ID, "Done")

	outcome := fmt.Sprintf("%s `%d` by %d", decisionLabel(status), applicantID, cq.From.ID)
	if cq.Message != nil {
		edit := tgbotapi.NewEditMessageText(cq.Message.Chat.ID, cq.Message.MessageID, outcome)
		edit.ParseMode = tgbotapi.ModeMarkdown
		if _, err := b.api.Send(edit); err != nil {
			logger.Warn("Failed to edit review message", "error", err)
		}
	}
}

func decisionLabel(status domain.ApplicationStatus) string {
	switch status {
	case domain.ApplicationStatusApproved:
		return "✅ Approved"
	case domain.ApplicationStatusRejected:
		return "❌ Rejected"
	default:
		return "ℹ️ Already settled: " + string(status)
	}
}

func (b *Bot) downloadVoice(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch voice note: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voice note fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, b.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > b.maxBytes {
		return nil, fmt.Errorf("voice note exceeds %d bytes", b.maxBytes)
	}
	return data, nil
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		logger.Warn("Failed to send reply", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) answerCallback(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		logger.Warn("Failed to answer callback", "error", err)
	}
}
