package email

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephennewman/contextmemo-sub002/internal/common/config"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
)

func newSMTPSenderForTest() *SMTPSender {
	cfg := &config.Config{}
	cfg.Integrations.SMTP.Host = "localhost"
	cfg.Integrations.SMTP.Port = 1025
	cfg.Integrations.SMTP.DefaultFrom = "no-reply@contextmemo.dev"
	return NewSMTPSender(cfg, logger.NewNoOpLogger())
}

func TestSMTPSendRejectsInvalidRecipient(t *testing.T) {
	sender := newSMTPSenderForTest()

	err := sender.Send(context.Background(), &Message{
		To:      "not-an-address",
		Subject: "hi",
		Body:    "body",
		Kind:    "invite",
	})
	require.Error(t, err)

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)
}

func TestBuildMessageHeaders(t *testing.T) {
	sender := newSMTPSenderForTest()

	plain := string(sender.buildMessage(&Message{
		To:      "a@b.co",
		Subject: "Your invite",
		Body:    "join us",
	}))
	assert.Contains(t, plain, "From: no-reply@contextmemo.dev\r\n")
	assert.Contains(t, plain, "To: a@b.co\r\n")
	assert.Contains(t, plain, "Subject: Your invite\r\n")
	assert.NotContains(t, plain, "Content-Type: text/html")
	assert.Contains(t, plain, "\r\n\r\njoin us")

	html := string(sender.buildMessage(&Message{
		To:      "a@b.co",
		Subject: "Your invite",
		Body:    "<p>join us</p>",
		IsHTML:  true,
	}))
	assert.Contains(t, html, "MIME-Version: 1.0\r\n")
	assert.Contains(t, html, "Content-Type: text/html; charset=UTF-8\r\n")
}
