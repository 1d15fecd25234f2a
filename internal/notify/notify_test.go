// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"go.uber.org/goleak"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSender struct {
	sent []*mail.Msg
	err  error
}

func (f *fakeSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	f.sent = append(f.sent, messages...)
	return f.err
}

type fakeNotifier struct{ err error }

func (f fakeNotifier) Deliver(context.Context, string, string) error { return f.err }

func TestNewSMTPNotifier_Validation(t *testing.T) {
	_, err := NewSMTPNotifier(SMTPConfig{From: "noreply@example.com"})
	errutil.AssertErrorCode(t, err, "SMTP_CONFIG_INVALID")

	_, err = NewSMTPNotifier(SMTPConfig{Host: "smtp.example.com"})
	errutil.AssertErrorCode(t, err, "SMTP_CONFIG_INVALID")

	n, err := NewSMTPNotifier(SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "mailer",
		Password: "hunter2",
		From:     "noreply@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultSubject, n.subject)
}

func TestSMTPNotifier_Deliver(t *testing.T) {
	sender := &fakeSender{}
	n := &SMTPNotifier{sender: sender, from: "noreply@example.com", subject: "Change password"}
	body := auth.ResetEmailBody(auth.DefaultResetURL, "abc123")

	require.NoError(t, n.Deliver(context.Background(), "alice@example.com", body))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, []string{"<noreply@example.com>"}, msg.GetFromString())
	assert.Equal(t, []string{"<alice@example.com>"}, msg.GetToString())
	assert.Equal(t, []string{"Change password"}, msg.GetGenHeader(mail.HeaderSubject))

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/html")
	assert.Contains(t, buf.String(), "change-password/abc123")
}

func TestSMTPNotifier_DeliverErrors(t *testing.T) {
	t.Run("bad recipient", func(t *testing.T) {
		sender := &fakeSender{}
		n := &SMTPNotifier{sender: sender, from: "noreply@example.com", subject: "s"}
		err := n.Deliver(context.Background(), "not an address", "<p>x</p>")
		errutil.AssertErrorCode(t, err, "SMTP_ADDRESS_INVALID")
		assert.Empty(t, sender.sent)
	})

	t.Run("relay failure", func(t *testing.T) {
		n := &SMTPNotifier{sender: &fakeSender{err: errors.New("connection refused")}, from: "noreply@example.com", subject: "s"}
		err := n.Deliver(context.Background(), "alice@example.com", "<p>x</p>")
		errutil.AssertErrorCode(t, err, "SMTP_SEND_FAILED")
		errutil.AssertErrorContext(t, err, "to", "alice@example.com")
	})
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, n.Deliver(context.Background(), "alice@example.com", "<a>link</a>"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "alice@example.com", record["to"])
	assert.Equal(t, "<a>link</a>", record["body"])
}

func TestWithFailureHook(t *testing.T) {
	var seen []error
	hook := func(err error) { seen = append(seen, err) }

	require.NoError(t, WithFailureHook(fakeNotifier{}, hook).Deliver(context.Background(), "a@x", "b"))
	assert.Empty(t, seen)

	boom := errors.New("boom")
	err := WithFailureHook(fakeNotifier{err: boom}, hook).Deliver(context.Background(), "a@x", "b")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []error{boom}, seen)

	plain := fakeNotifier{}
	assert.Equal(t, plain, WithFailureHook(plain, nil))
}
