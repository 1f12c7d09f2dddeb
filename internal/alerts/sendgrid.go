// Package alerts mirrors operational warnings to the moderators' inbox so
// delivery failures inside Telegram are still seen somewhere.
package alerts

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"voicegate-backend/internal/logger"
	"voicegate-backend/internal/service"
)

type sendGridAlertService struct {
	apiKey         string
	fromEmail      string
	fromName       string
	moderatorEmail string
}

func NewSendGridAlertService(apiKey, fromEmail, fromName, moderatorEmail string) service.AlertService {
	return &sendGridAlertService{
		apiKey:         apiKey,
		fromEmail:      fromEmail,
		fromName:       fromName,
		moderatorEmail: moderatorEmail,
	}
}

func (s *sendGridAlertService) SendModeratorAlert(ctx context.Context, subject, body string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail("Moderators", s.moderatorEmail)
	message := mail.NewSingleEmail(from, subject, recipient, body, "")

	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}

type disabledAlertService struct{}

// NewDisabledAlertService returns an alert sink that only logs. Used when
// alerts are switched off in config.
func NewDisabledAlertService() service.AlertService {
	return disabledAlertService{}
}

func (disabledAlertService) SendModeratorAlert(ctx context.Context, subject, body string) error {
	logger.Debug("Alerts disabled, dropping moderator alert", "subject", subject)
	return nil
}
