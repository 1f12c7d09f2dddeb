package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"voicegate-backend/internal/domain"
	"voicegate-backend/internal/voice"
)

func TestAnnounceText_EscapesUsername(t *testing.T) {
	app := &domain.Application{ApplicantID: 42, DisplayName: "Alice_B", Username: "alice_the_great"}

	text := announceText(app)

	// Unescaped underscores toggle italics and break the whole send.
	assert.Contains(t, text, `@alice\_the\_great`)
	assert.Contains(t, text, `Alice\_B`)
	assert.NotContains(t, text, "@alice_the_great")
}

func TestAnnounceText_MissingUsername(t *testing.T) {
	app := &domain.Application{ApplicantID: 42, DisplayName: "Alice"}

	assert.Contains(t, announceText(app), "• Username: N/A")
}

func TestReviewCaption(t *testing.T) {
	app := &domain.Application{ApplicantID: 42, DisplayName: "Alice"}
	verdict := voice.Verdict{OK: true, Duration: 4700 * time.Millisecond}

	caption := reviewCaption(app, verdict)

	assert.Contains(t, caption, "`42`")
	assert.Contains(t, caption, "5s")
}

func TestSubmissionRejectedMessage(t *testing.T) {
	msg := submissionRejectedMessage(voice.Verdict{
		Reasons: []voice.Reason{voice.ReasonTooShort, voice.ReasonSilent},
	})

	assert.Contains(t, msg, "too short")
	assert.Contains(t, msg, "silent")
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `a\_b\*c`, escapeMarkdown("a_b*c"))
	assert.Equal(t, "N/A", escapeMarkdown(""))
}
