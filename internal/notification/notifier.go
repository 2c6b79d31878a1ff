// Package notification delivers operator alerts raised by the allocation
// service.
package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Notifier sends a plain-text message to a recipient.
type Notifier interface {
	Send(ctx context.Context, recipient, message string) error
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier sends notifications through an SMTP relay.
type EmailNotifier struct {
	host string
	port string
	from string

	sendMail sendMailFunc
}

func NewEmailNotifier(host, port, from string) *EmailNotifier {
	return &EmailNotifier{
		host:     host,
		port:     port,
		from:     from,
		sendMail: smtp.SendMail,
	}
}

func (n *EmailNotifier) Send(ctx context.Context, recipient, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%s", n.host, n.port)
	msg := buildMessage(n.from, recipient, subjectFor(message), message)
	if err := n.sendMail(addr, nil, n.from, []string{recipient}, msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", recipient, err)
	}
	return nil
}

func subjectFor(message string) string {
	if first, _, ok := strings.Cut(message, "\n"); ok {
		return first
	}
	return message
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body))
}

// LogNotifier writes notifications to the log. Used when no SMTP relay is
// configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, recipient, message string) error {
	n.logger.Info("notification",
		zap.String("recipient", recipient),
		zap.String("message", message),
	)
	return nil
}
