package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"

	"github.com/phrazzld/stack-api/internal/config"
)

// ErrEmailsDisabled is returned by senders when SMTP is not configured.
var ErrEmailsDisabled = errors.New("no provided configuration for email variables")

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns an SMTPSender when cfg has enough settings to send mail,
// and a DisabledSender otherwise.
func NewSender(cfg config.SMTPConfig, logger *slog.Logger) Sender {
	if !cfg.EmailsEnabled() {
		logger.Info("emails disabled: smtp host or from address not configured")
		return DisabledSender{}
	}
	return &SMTPSender{cfg: cfg, logger: logger.With("component", "smtp_sender")}
}

// DisabledSender refuses to send anything.
type DisabledSender struct{}

// Send always returns ErrEmailsDisabled.
func (DisabledSender) Send(context.Context, Message) error {
	return ErrEmailsDisabled
}

// SMTPSender sends messages through the configured SMTP server, opening one
// connection per message.
type SMTPSender struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

// Send delivers msg as an HTML email.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.buildMsg(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		s.logger.Error("failed to send email",
			"error", err,
			"subject", msg.Subject)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent", "subject", msg.Subject)
	return nil
}

func (s *SMTPSender) buildMsg(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(s.cfg.FromName, s.cfg.FromEmail); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return m, nil
}

// clientOptions maps the SMTP settings onto go-mail options. TLS means
// STARTTLS is mandatory, SSL means implicit TLS; TLS wins when both are set.
func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{mail.WithPort(s.cfg.Port)}

	switch {
	case s.cfg.TLS:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	case s.cfg.SSL:
		opts = append(opts, mail.WithSSL())
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.User),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}
