// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package mail dispatches account emails. The SMTP sender is used in
// production; the log sender is the development and test fallback.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/oops"
	gomail "gopkg.in/gomail.v2"
)

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends mail through an SMTP relay using gomail.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates an SMTPSender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("smtp host and from address are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{cfg: cfg}, nil
}

// SendVerification sends the email-verification message.
func (s *SMTPSender) SendVerification(_ context.Context, to, nickname, token string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Verify your email address")

	greeting := "Hello"
	if nickname != "" {
		greeting = "Hello " + nickname
	}
	m.SetBody("text/plain", fmt.Sprintf(
		"%s,\n\nYour email verification code is: %s\n\nIf you did not register, ignore this message.\n",
		greeting, token))

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("operation", "dial and send").
			Wrap(err)
	}
	return nil
}

// LogSender logs instead of sending. It never logs the token itself.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// SendVerification records that a verification mail would have been sent.
func (s *LogSender) SendVerification(ctx context.Context, to, _, token string) error {
	s.logger.InfoContext(ctx, "verification mail suppressed (log sender)",
		"to", to,
		"token_len", len(token))
	return nil
}
