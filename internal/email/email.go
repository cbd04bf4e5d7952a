package email

import (
	"context"

	"cftracker/internal/config"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// Sender delivers mail over SMTP. With no SMTP host configured it degrades
// to logging the message instead of failing sync pipelines.
type Sender struct {
	cfg    *config.Config
	logger zerolog.Logger
}

func NewSender(cfg *config.Config, logger zerolog.Logger) *Sender {
	if cfg.SMTPHost == "" {
		logger.Warn().Msg("SMTP not configured, reminder emails will be logged only")
	}
	return &Sender{cfg: cfg, logger: logger}
}

func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	if s.cfg.SMTPHost == "" {
		s.logger.Info().Str("to", to).Str("subject", subject).Msg("email delivery skipped (no SMTP host)")
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(s.cfg.EmailFrom); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(s.cfg.SMTPHost,
		mail.WithPort(s.cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.SMTPUsername),
		mail.WithPassword(s.cfg.SMTPPassword),
	)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}
