// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

// Package mail delivers password reset tokens to users.
package mail

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/samber/oops"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/ian-yc-kim/tst-auth-svc/internal/auth"
	"github.com/ian-yc-kim/tst-auth-svc/internal/config"
)

const resetSubject = "Password reset request"

// sender is the part of the SendGrid client the notifier uses.
type sender interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// SendGridNotifier emails reset tokens through SendGrid.
type SendGridNotifier struct {
	client   sender
	fromAddr string
	fromName string
}

var _ auth.ResetNotifier = (*SendGridNotifier)(nil)

// NewSendGridNotifier creates a notifier from mail settings. The API key and
// sender address are required.
func NewSendGridNotifier(cfg config.MailConfig) (*SendGridNotifier, error) {
	if cfg.SendGridAPIKey == "" {
		return nil, oops.Code("MAIL_INVALID_CONFIG").With("field", "sendgrid_api_key").Errorf("SendGrid API key is required")
	}
	if cfg.FromAddress == "" {
		return nil, oops.Code("MAIL_INVALID_CONFIG").With("field", "from_address").Errorf("sender address is required")
	}
	return &SendGridNotifier{
		client:   sendgrid.NewSendClient(cfg.SendGridAPIKey),
		fromAddr: cfg.FromAddress,
		fromName: cfg.FromName,
	}, nil
}

// NotifyReset implements auth.ResetNotifier.
func (n *SendGridNotifier) NotifyReset(ctx context.Context, user *auth.User, token string) error {
	from := sgmail.NewEmail(n.fromName, n.fromAddr)
	to := sgmail.NewEmail(user.Username, user.Email)
	plain, html := resetBody(user.Username, token)
	message := sgmail.NewSingleEmail(from, resetSubject, to, plain, html)

	resp, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if resp.StatusCode >= 300 {
		return oops.Code("MAIL_SEND_REJECTED").
			With("user_id", user.ID.String()).
			With("status", resp.StatusCode).
			Errorf("SendGrid returned status %d: %s", resp.StatusCode, resp.Body)
	}

	slog.InfoContext(ctx, "reset token emailed", "user_id", user.ID.String())
	return nil
}

func resetBody(username, token string) (plain, htmlBody string) {
	plain = fmt.Sprintf("Hello %s,\n\nUse this token to reset your password:\n\n%s\n\nIf you did not request a reset you can ignore this message.\n",
		username, token)
	htmlBody = fmt.Sprintf("<p>Hello %s,</p><p>Use this token to reset your password:</p><p><code>%s</code></p><p>If you did not request a reset you can ignore this message.</p>",
		html.EscapeString(username), html.EscapeString(token))
	return plain, htmlBody
}

// LogNotifier records that a reset token was issued without delivering it.
// It is used when no mail provider is configured.
type LogNotifier struct {
	logger *slog.Logger
}

var _ auth.ResetNotifier = (*LogNotifier)(nil)

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// NotifyReset implements auth.ResetNotifier. The token itself is never logged.
func (n *LogNotifier) NotifyReset(ctx context.Context, user *auth.User, _ string) error {
	n.logger.InfoContext(ctx, "reset token issued; no mail provider configured",
		"user_id", user.ID.String())
	return nil
}

// FromConfig picks the SendGrid notifier when an API key is configured and
// the log notifier otherwise.
func FromConfig(cfg config.MailConfig) (auth.ResetNotifier, error) {
	if cfg.SendGridAPIKey == "" {
		return NewLogNotifier(nil), nil
	}
	return NewSendGridNotifier(cfg)
}
