package email

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/stack-api/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSender(t *testing.T) {
	t.Parallel()

	disabled := NewSender(config.SMTPConfig{Host: "smtp.example.com"}, discardLogger())
	assert.IsType(t, DisabledSender{}, disabled)

	enabled := NewSender(config.SMTPConfig{
		Host:      "smtp.example.com",
		Port:      587,
		FromEmail: "noreply@example.com",
	}, discardLogger())
	assert.IsType(t, &SMTPSender{}, enabled)
}

func TestDisabledSender(t *testing.T) {
	t.Parallel()

	err := DisabledSender{}.Send(context.Background(), Message{To: "a@example.com"})
	assert.ErrorIs(t, err, ErrEmailsDisabled)
}

func TestSMTPSenderBuildMsg(t *testing.T) {
	t.Parallel()

	s := &SMTPSender{
		cfg: config.SMTPConfig{
			FromEmail: "noreply@example.com",
			FromName:  "Stack",
		},
		logger: discardLogger(),
	}

	m, err := s.buildMsg(Message{
		To:      "user@example.com",
		Subject: "Stack - Test email",
		HTML:    "<p>hello</p>",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "Subject: Stack - Test email")
	assert.Contains(t, raw, "user@example.com")
	assert.Contains(t, raw, "noreply@example.com")
	assert.Contains(t, raw, "text/html")

	_, err = s.buildMsg(Message{To: "not an address"})
	assert.Error(t, err)
}

func TestSMTPSenderClientOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.SMTPConfig
		want int
	}{
		{name: "starttls without auth", cfg: config.SMTPConfig{Port: 587, TLS: true}, want: 2},
		{name: "ssl with auth", cfg: config.SMTPConfig{Port: 465, SSL: true, User: "u", Password: "p"}, want: 5},
		{name: "plain", cfg: config.SMTPConfig{Port: 25}, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := &SMTPSender{cfg: tt.cfg, logger: discardLogger()}
			assert.Len(t, s.clientOptions(), tt.want)
		})
	}
}

func TestSMTPSenderSendFailsWithoutServer(t *testing.T) {
	t.Parallel()

	s := &SMTPSender{
		cfg: config.SMTPConfig{
			Host:      "127.0.0.1",
			Port:      1,
			FromEmail: "noreply@example.com",
			FromName:  "Stack",
		},
		logger: discardLogger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.Send(ctx, Message{To: "user@example.com", Subject: "s", HTML: "<p>x</p>"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send email")
}
