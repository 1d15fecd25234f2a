// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package notify delivers password reset emails.
package notify

import (
	"context"
	"log/slog"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// LogNotifier writes messages to the log instead of sending them.
// Used in development when no SMTP host is configured.
type LogNotifier struct {
	logger *slog.Logger
}

var _ auth.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Deliver logs the message.
func (n *LogNotifier) Deliver(ctx context.Context, address, htmlBody string) error {
	n.logger.InfoContext(ctx, "email not sent, no smtp host configured",
		"to", address,
		"body", htmlBody,
	)
	return nil
}

type hookNotifier struct {
	next    auth.Notifier
	onError func(error)
}

// WithFailureHook calls onError for every failed delivery of next, then
// returns the error unchanged.
func WithFailureHook(next auth.Notifier, onError func(error)) auth.Notifier {
	if onError == nil {
		return next
	}
	return &hookNotifier{next: next, onError: onError}
}

func (h *hookNotifier) Deliver(ctx context.Context, address, htmlBody string) error {
	err := h.next.Deliver(ctx, address, htmlBody)
	if err != nil {
		h.onError(err)
	}
	return err
}
