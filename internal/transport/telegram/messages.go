package telegram

import (
	"fmt"
	"strings"
	"time"

	"voicegate-backend/internal/domain"
	"voicegate-backend/internal/voice"
)

// Message copy lives here so the rest of the system never embeds
// transport-facing text.

const welcomeTemplate = `👋 Hello, %s!

You have applied to join the community.

✅ To continue, send one **voice note** telling us your name, where you found the invite link, and why you want to join.
🚫 Unsuitable applications are rejected.
⏱️ If no voice note arrives within %s, the application is rejected automatically.`

const reminderTemplate = `⏰ Hello, %s!

You have not sent your voice note yet. The window is still open, but your application will be rejected automatically when it closes.

Please send it now.`

const expiredMessage = `❌ Your application was rejected automatically because no voice note arrived in time. You can apply again by requesting to join once more.`

const approvedTemplate = `🎉 Congratulations! You have been accepted.
👉 Join here: %s`

const rejectedMessage = `❌ Your application has been rejected.`

const submissionAcceptedMessage = `✅ Voice note received. A moderator will review it shortly.`

const startPrivateMessage = `🛡️ This bot handles the community join process. Request to join the group and you will receive instructions here.`

const notAuthorizedMessage = `🚫 You are not authorized to do that.`

var reasonText = map[voice.Reason]string{
	voice.ReasonUndecodable: "the recording could not be read",
	voice.ReasonTooShort:    "the recording is too short",
	voice.ReasonSilent:      "the recording is silent",
	voice.ReasonRobotic:     "the recording sounds synthetic",
}

func announceText(app *domain.Application) string {
	return fmt.Sprintf(
		"*📩 Join Request Received*\n"+
			"• Name: [%s](tg://user?id=%d)\n"+
			"• Username: %s\n"+
			"• ID: `%d`\n"+
			"• Status: Awaiting voice note",
		escapeMarkdown(app.DisplayName), app.ApplicantID, usernameText(app.Username), app.ApplicantID)
}

func reviewCaption(app *domain.Application, verdict voice.Verdict) string {
	return fmt.Sprintf(
		"*🎤 Voice note received* — %s\n• ID: `%d`\n• Duration: %s",
		escapeMarkdown(app.DisplayName), app.ApplicantID, verdict.Duration.Round(time.Second))
}

// usernameText renders an optional @-handle for markdown interpolation.
func usernameText(username string) string {
	if username == "" {
		return "N/A"
	}
	return "@" + escapeMarkdown(username)
}

func submissionRejectedMessage(verdict voice.Verdict) string {
	var reasons []string
	for _, r := range verdict.Reasons {
		if text, ok := reasonText[r]; ok {
			reasons = append(reasons, text)
		}
	}
	return fmt.Sprintf("❌ Your voice note was not accepted: %s. Please record a clear voice note and send it again.",
		strings.Join(reasons, ", "))
}

// escapeMarkdown neutralizes user-controlled text interpolated into
// markdown messages.
func escapeMarkdown(s string) string {
	if s == "" {
		return "N/A"
	}
	for _, c := range `\_*[]()~` + "`" + `>#+-=|{}.!` {
		s = strings.ReplaceAll(s, string(c), `\`+string(c))
	}
	return s
}
