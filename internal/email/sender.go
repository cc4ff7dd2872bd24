// Package email delivers transactional mail (invites, access codes) via SES
// with an SMTP fallback for environments without AWS credentials.
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	awsclient "github.com/stephennewman/contextmemo-sub002/internal/common/aws"
	"github.com/stephennewman/contextmemo-sub002/internal/common/config"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/common/metrics"
	"github.com/stephennewman/contextmemo-sub002/internal/common/validation"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
	IsHTML  bool
	Kind    string // metrics label: invite | pitch_code
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// SESSender sends through AWS SES.
type SESSender struct {
	client    *awsclient.SESClient
	fromEmail string
	logger    logger.Logger
}

func NewSESSender(client *awsclient.SESClient, fromEmail string, log logger.Logger) *SESSender {
	return &SESSender{
		client:    client,
		fromEmail: fromEmail,
		logger:    log.WithFields(map[string]interface{}{"component": "email", "provider": "ses"}),
	}
}

func (s *SESSender) Send(ctx context.Context, msg *Message) error {
	if !validation.ValidateEmail(msg.To) {
		return apperrors.NewValidationError(fmt.Sprintf("invalid recipient address: %s", msg.To))
	}

	body := &types.Body{}
	if msg.IsHTML {
		body.Html = &types.Content{Data: aws.String(msg.Body)}
	} else {
		body.Text = &types.Content{Data: aws.String(msg.Body)}
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject)},
			Body:    body,
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		metrics.EmailsSentTotal.WithLabelValues(msg.Kind, "error").Inc()
		return apperrors.NewEmailSendFailedError(err)
	}

	s.logger.Info("email sent", map[string]interface{}{
		"to":      msg.To,
		"subject": msg.Subject,
		"kind":    msg.Kind,
	})
	metrics.EmailsSentTotal.WithLabelValues(msg.Kind, "success").Inc()
	return nil
}

// SMTPSender sends through a plain SMTP relay.
type SMTPSender struct {
	host        string
	port        int
	username    string
	password    string
	useTLS      bool
	defaultFrom string
	logger      logger.Logger
}

func NewSMTPSender(cfg *config.Config, log logger.Logger) *SMTPSender {
	smtpCfg := cfg.Integrations.SMTP
	return &SMTPSender{
		host:        smtpCfg.Host,
		port:        smtpCfg.Port,
		username:    smtpCfg.Username,
		password:    smtpCfg.Password,
		useTLS:      smtpCfg.UseTLS,
		defaultFrom: smtpCfg.DefaultFrom,
		logger:      log.WithFields(map[string]interface{}{"component": "email", "provider": "smtp"}),
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if !validation.ValidateEmail(msg.To) {
		return apperrors.NewValidationError(fmt.Sprintf("invalid recipient address: %s", msg.To))
	}

	message := s.buildMessage(msg)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	done := make(chan error, 1)
	go func() {
		done <- s.dial(addr, msg.To, message)
	}()

	select {
	case err := <-done:
		if err != nil {
			metrics.EmailsSentTotal.WithLabelValues(msg.Kind, "error").Inc()
			return apperrors.NewEmailSendFailedError(err)
		}
	case <-ctx.Done():
		metrics.EmailsSentTotal.WithLabelValues(msg.Kind, "error").Inc()
		return apperrors.NewEmailSendFailedError(ctx.Err())
	}

	s.logger.Info("email sent", map[string]interface{}{
		"to":      msg.To,
		"subject": msg.Subject,
		"kind":    msg.Kind,
	})
	metrics.EmailsSentTotal.WithLabelValues(msg.Kind, "success").Inc()
	return nil
}

func (s *SMTPSender) dial(addr, to string, message []byte) error {
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if !s.useTLS {
		return smtp.SendMail(addr, auth, s.defaultFrom, []string{to}, message)
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.host})
	if err != nil {
		return fmt.Errorf("tls dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.defaultFrom); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(message); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (s *SMTPSender) buildMessage(msg *Message) []byte {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", s.defaultFrom))
	b.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	b.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	if msg.IsHTML {
		b.WriteString("MIME-Version: 1.0\r\n")
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}
