// Package email provides SMTP delivery of security alert notifications.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Riareddie/CHAKSHU-sub001/internal/infrastructure/config"
)

// Service sends alert notifications via SMTP.
type Service struct {
	cfg        *config.EmailConfig
	recipients []string
}

// NewService creates a new email service for the configured recipients.
func NewService(cfg *config.EmailConfig, recipients []string) *Service {
	return &Service{cfg: cfg, recipients: recipients}
}

// SendAlert delivers a security alert to every configured recipient.
func (s *Service) SendAlert(ctx context.Context, ruleName, severity, detail string) error {
	if len(s.recipients) == 0 {
		log.Warn().Str("rule", ruleName).Msg("No alert recipients configured; alert not emailed")
		return nil
	}

	subject := fmt.Sprintf("Security Alert [%s]: %s", strings.ToUpper(severity), ruleName)
	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #b91c1c;">Security Alert</h2>
  <p>Rule <strong>%s</strong> fired with severity <strong>%s</strong>.</p>
  <div style="background: #f4f4f4; padding: 16px; margin: 16px 0; border-radius: 8px;">
    <pre style="white-space: pre-wrap; font-size: 13px;">%s</pre>
  </div>
  <p style="color: #666; font-size: 12px;">Review the audit trail for the full event context.</p>
</body>
</html>`, ruleName, severity, detail)

	var errs []string
	for _, to := range s.recipients {
		if err := s.send(ctx, to, subject, body); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to deliver alert to %d recipient(s): %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

func (s *Service) send(_ context.Context, to, subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	headers := map[string]string{
		"From":         fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromAddress),
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
	}

	var msg strings.Builder
	for k, v := range headers {
		fmt.Fprintf(&msg, "%s: %s\r\n", k, v)
	}
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	// Auth is optional; local relays accept unauthenticated mail.
	var auth smtp.Auth
	if s.cfg.SMTPUser != "" && s.cfg.SMTPPassword != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.FromAddress, []string{to}, []byte(msg.String())); err != nil {
		log.Error().Err(err).Str("to", to).Str("subject", subject).Msg("Failed to send alert email")
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	log.Info().Str("to", to).Str("subject", subject).Msg("Alert email sent")
	return nil
}
