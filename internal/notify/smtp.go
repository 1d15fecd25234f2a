// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package notify

import (
	"context"

	"github.com/samber/oops"
	"github.com/wneessen/go-mail"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "Change password"

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPNotifier sends messages through an SMTP relay.
type SMTPNotifier struct {
	sender  mailSender
	from    string
	subject string
}

var _ auth.Notifier = (*SMTPNotifier)(nil)

// NewSMTPNotifier creates an SMTPNotifier. Authentication is enabled when
// a username is set. STARTTLS is used when the server offers it.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, oops.Code("SMTP_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, oops.Code("SMTP_CONFIG_INVALID").With("host", cfg.Host).Errorf("from address is required")
	}

	opts := []mail.Option{mail.WithTLSPolicy(mail.TLSOpportunistic)}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, oops.Code("SMTP_CONFIG_INVALID").With("host", cfg.Host).With("port", cfg.Port).Wrap(err)
	}

	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	return &SMTPNotifier{sender: client, from: cfg.From, subject: subject}, nil
}

// Deliver sends htmlBody to address.
func (n *SMTPNotifier) Deliver(ctx context.Context, address, htmlBody string) error {
	msg, err := n.message(address, htmlBody)
	if err != nil {
		return err
	}
	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return oops.Code("SMTP_SEND_FAILED").With("to", address).Wrap(err)
	}
	return nil
}

func (n *SMTPNotifier) message(address, htmlBody string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, oops.Code("SMTP_ADDRESS_INVALID").With("from", n.from).Wrap(err)
	}
	if err := msg.To(address); err != nil {
		return nil, oops.Code("SMTP_ADDRESS_INVALID").With("to", address).Wrap(err)
	}
	msg.Subject(n.subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)
	return msg, nil
}
