package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"voicegate-backend/internal/config"
	"voicegate-backend/internal/domain"
	"voicegate-backend/internal/logger"
	"voicegate-backend/internal/voice"
)

// Notifier delivers applicant DMs and moderation-channel posts over the Bot
// API. It also acts as the access granter: approving an application approves
// the underlying chat join request.
type Notifier struct {
	api    *tgbotapi.BotAPI
	cfg    config.TelegramConfig
	window time.Duration
}

func NewNotifier(api *tgbotapi.BotAPI, cfg config.TelegramConfig, window time.Duration) *Notifier {
	return &Notifier{api: api, cfg: cfg, window: window}
}

func (n *Notifier) SendJoinInstructions(ctx context.Context, app *domain.Application) error {
	text := fmt.Sprintf(welcomeTemplate, escapeMarkdown(app.DisplayName), n.window.String())
	return n.sendMarkdown(app.ApplicantID, text)
}

func (n *Notifier) SendReminder(ctx context.Context, app *domain.Application) error {
	return n.sendMarkdown(app.ApplicantID, fmt.Sprintf(reminderTemplate, escapeMarkdown(app.DisplayName)))
}

func (n *Notifier) SendExpiryNotice(ctx context.Context, app *domain.Application) error {
	return n.sendPlain(app.ApplicantID, expiredMessage)
}

func (n *Notifier) SendSubmissionReply(ctx context.Context, applicantID int64, verdict voice.Verdict) error {
	if verdict.OK {
		return n.sendPlain(applicantID, submissionAcceptedMessage)
	}
	return n.sendPlain(applicantID, submissionRejectedMessage(verdict))
}

func (n *Notifier) SendDecisionNotice(ctx context.Context, applicantID int64, decision domain.Decision) error {
	if decision == domain.DecisionApprove {
		return n.sendPlain(applicantID, fmt.Sprintf(approvedTemplate, n.destinationLink()))
	}
	return n.sendPlain(applicantID, rejectedMessage)
}

func (n *Notifier) AnnounceJoinRequest(ctx context.Context, app *domain.Application) error {
	return n.sendMarkdown(n.cfg.ModlogChatID, announceText(app))
}

// RequestReview posts the voice note itself to the moderation channel, with
// the applicant details as caption and the decision buttons attached, so
// moderators can listen before deciding. The submission ref is the Telegram
// file ID recorded at submission time.
func (n *Notifier) RequestReview(ctx context.Context, app *domain.Application, verdict voice.Verdict) error {
	caption := reviewCaption(app, verdict)

	if app.SubmissionRef == nil || *app.SubmissionRef == "" {
		return fmt.Errorf("application %d has no submission ref to post for review", app.ApplicantID)
	}
	msg := tgbotapi.NewVoice(n.cfg.ModlogChatID, tgbotapi.FileID(*app.SubmissionRef))
	msg.Caption = caption
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = decisionKeyboard(app.ApplicantID)
	_, err := n.api.Send(msg)
	return err
}

func (n *Notifier) NotifyModerators(ctx context.Context, text string) error {
	return n.sendPlain(n.cfg.ModlogChatID, "⚠️ "+text)
}

// GrantAccess approves the pending chat join request, admitting the
// applicant to the gated group.
func (n *Notifier) GrantAccess(ctx context.Context, applicantID int64) error {
	return n.joinRequestCall("approveChatJoinRequest", applicantID)
}

// DenyAccess declines the pending chat join request so it does not linger
// in the group's queue.
func (n *Notifier) DenyAccess(ctx context.Context, applicantID int64) error {
	return n.joinRequestCall("declineChatJoinRequest", applicantID)
}

// joinRequestCall uses MakeRequest directly; the library has no config
// types for the join-request methods.
func (n *Notifier) joinRequestCall(method string, applicantID int64) error {
	params := tgbotapi.Params{
		"chat_id": strconv.FormatInt(n.cfg.GroupID, 10),
		"user_id": strconv.FormatInt(applicantID, 10),
	}
	logger.ExternalServiceCall("telegram", method, "applicant_id", applicantID)
	resp, err := n.api.MakeRequest(method, params)
	if err != nil {
		logger.ExternalServiceResult("telegram", method, err)
		return fmt.Errorf("%s failed: %w", method, err)
	}
	if !resp.Ok {
		err := fmt.Errorf("%s failed: %s", method, resp.Description)
		logger.ExternalServiceResult("telegram", method, err)
		return err
	}
	logger.ExternalServiceResult("telegram", method, nil)
	return nil
}

func (n *Notifier) destinationLink() string {
	if n.cfg.InviteLink != "" {
		return n.cfg.InviteLink
	}
	// Private supergroup IDs carry a -100 prefix that the t.me/c form drops.
	group := strconv.FormatInt(n.cfg.GroupID, 10)
	if len(group) > 4 {
		group = group[4:]
	}
	if n.cfg.TopicID != 0 {
		return fmt.Sprintf("https://t.me/c/%s/%d", group, n.cfg.TopicID)
	}
	return fmt.Sprintf("https://t.me/c/%s", group)
}

func (n *Notifier) sendMarkdown(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := n.api.Send(msg)
	return err
}

func (n *Notifier) sendPlain(chatID int64, text string) error {
	_, err := n.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func decisionKeyboard(applicantID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", fmt.Sprintf("approve_%d", applicantID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", fmt.Sprintf("reject_%d", applicantID)),
		),
	)
}
