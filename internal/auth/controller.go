// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gatekeep/gatekeep/pkg/errutil"
)

var tracer = otel.Tracer("github.com/gatekeep/gatekeep/internal/auth")

// dummyPasswordHash is verified when no account matches, so that lookups for
// unknown identifiers cost the same as wrong passwords.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// AccountResult is the outcome of a mutating operation. Exactly one of
// Account and Errors is set.
type AccountResult struct {
	Account *Account
	Errors  []FieldError
}

func rejected(fe FieldError) *AccountResult {
	return &AccountResult{Errors: []FieldError{fe}}
}

// ControllerConfig wires a Controller. Logger and ResetURL are optional.
type ControllerConfig struct {
	Accounts AccountRepository
	Sessions SessionStore
	Resets   ResetTokenStore
	Hasher   PasswordHasher
	Notifier Notifier
	Logger   *slog.Logger
	ResetURL string
}

// Controller orchestrates the account flows.
type Controller struct {
	accounts AccountRepository
	sessions SessionStore
	resets   ResetTokenStore
	hasher   PasswordHasher
	notifier Notifier
	logger   *slog.Logger
	resetURL string
}

// NewController creates a Controller, rejecting missing dependencies.
func NewController(cfg ControllerConfig) (*Controller, error) {
	switch {
	case cfg.Accounts == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("account repository is required")
	case cfg.Sessions == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session store is required")
	case cfg.Resets == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("reset token store is required")
	case cfg.Hasher == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	case cfg.Notifier == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("notifier is required")
	}

	c := &Controller{
		accounts: cfg.Accounts,
		sessions: cfg.Sessions,
		resets:   cfg.Resets,
		hasher:   cfg.Hasher,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		resetURL: cfg.ResetURL,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.resetURL == "" {
		c.resetURL = DefaultResetURL
	}
	return c, nil
}

// Register creates an account and signs the caller in as it.
func (c *Controller) Register(ctx context.Context, h SessionHandle, in RegisterInput) (res *AccountResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.Register")
	defer func() { endSpan(span, res, err) }()

	if fe := ValidateRegistration(in); fe != nil {
		return rejected(*fe), nil
	}

	hash, err := c.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	account := NewAccount(in.Username, in.Email, hash)
	if err := c.accounts.Create(ctx, account); err != nil {
		var dup *DuplicateError
		if errors.As(err, &dup) {
			return rejected(duplicateFieldError(dup.Field)), nil
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "create account").Wrap(err)
	}

	if err := c.establish(ctx, h, account); err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "establish session").Wrap(err)
	}
	return &AccountResult{Account: account}, nil
}

// Login verifies credentials and signs the caller in. Unknown identifiers and
// wrong passwords produce the same result.
func (c *Controller) Login(ctx context.Context, h SessionHandle, identifier, password string) (res *AccountResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer func() { endSpan(span, res, err) }()

	account, err := c.accounts.GetByUsernameOrEmail(ctx, identifier)
	target := dummyPasswordHash
	switch {
	case err == nil:
		target = account.PasswordHash
	case errors.Is(err, ErrNotFound):
		account = nil
	default:
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "get account").Wrap(err)
	}

	if !c.hasher.Verify(password, target) || account == nil {
		return rejected(FieldError{Field: FieldPassword, Message: MsgInvalidCredentials}), nil
	}

	account = c.upgradeHash(ctx, account, password)

	if err := c.establish(ctx, h, account); err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "establish session").Wrap(err)
	}
	return &AccountResult{Account: account}, nil
}

// Me returns the caller's account, or nil when the caller has no live session.
func (c *Controller) Me(ctx context.Context, h SessionHandle) (*Account, error) {
	ctx, span := tracer.Start(ctx, "auth.Me")
	defer span.End()

	key := h.Key()
	if key == "" {
		return nil, nil
	}

	accountID, err := c.sessions.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		span.SetStatus(codes.Error, "session lookup failed")
		return nil, oops.Code("AUTH_ME_FAILED").With("operation", "get session").Wrap(err)
	}

	account, err := c.accounts.GetByID(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		span.SetStatus(codes.Error, "account lookup failed")
		return nil, oops.Code("AUTH_ME_FAILED").With("operation", "get account").Wrap(err)
	}
	return account, nil
}

// Logout destroys the caller's session. The client handle is cleared even when
// the store fails, in which case Logout returns false.
func (c *Controller) Logout(ctx context.Context, h SessionHandle) bool {
	ctx, span := tracer.Start(ctx, "auth.Logout")
	defer span.End()
	defer h.Clear()

	key := h.Key()
	if key == "" {
		return true
	}
	if err := c.sessions.Destroy(ctx, key); err != nil {
		span.SetStatus(codes.Error, "destroy session failed")
		errutil.LogErrorContext(ctx, c.logger, "logout failed",
			oops.Code("AUTH_LOGOUT_FAILED").With("operation", "destroy session").Wrap(err))
		return false
	}
	return true
}

// ForgotPassword emails a reset link to the account registered under email.
// It returns true whether or not such an account exists.
func (c *Controller) ForgotPassword(ctx context.Context, email string) (bool, error) {
	ctx, span := tracer.Start(ctx, "auth.ForgotPassword")
	defer span.End()

	account, err := c.accounts.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return true, nil
	}
	if err != nil {
		span.SetStatus(codes.Error, "account lookup failed")
		return false, oops.Code("AUTH_FORGOT_PASSWORD_FAILED").With("operation", "get account by email").Wrap(err)
	}

	token, err := GenerateResetToken()
	if err != nil {
		return false, oops.Code("AUTH_FORGOT_PASSWORD_FAILED").With("operation", "generate reset token").Wrap(err)
	}
	if err := c.resets.Put(ctx, token, account.ID, ResetTokenTTL); err != nil {
		span.SetStatus(codes.Error, "store reset token failed")
		return false, oops.Code("AUTH_FORGOT_PASSWORD_FAILED").With("operation", "store reset token").Wrap(err)
	}

	if err := c.notifier.Deliver(ctx, account.Email, ResetEmailBody(c.resetURL, token)); err != nil {
		errutil.LogWarnContext(ctx, c.logger, "reset email not delivered",
			oops.Code("AUTH_NOTIFY_FAILED").
				With("operation", "deliver reset email").
				With("account_id", account.ID.String()).
				Wrap(err))
	}
	return true, nil
}

// ResetTokenValid reports whether token can still be used, without consuming it.
func (c *Controller) ResetTokenValid(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	_, err := c.resets.Get(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("AUTH_RESET_CHECK_FAILED").With("operation", "get reset token").Wrap(err)
	}
	return true, nil
}

// ChangePassword consumes a reset token, sets the new password and signs the
// caller in as the token's account.
func (c *Controller) ChangePassword(ctx context.Context, h SessionHandle, token, newPassword string) (res *AccountResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.ChangePassword")
	defer func() { endSpan(span, res, err) }()

	if fe := ValidatePassword(FieldNewPassword, newPassword); fe != nil {
		return rejected(*fe), nil
	}
	if token == "" {
		return rejected(FieldError{Field: FieldToken, Message: MsgTokenExpired}), nil
	}

	grant, err := c.resets.Consume(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return rejected(FieldError{Field: FieldToken, Message: MsgTokenExpired}), nil
	}
	if err != nil {
		return nil, oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "consume reset token").Wrap(err)
	}

	account, err := c.accounts.GetByID(ctx, grant.AccountID)
	if errors.Is(err, ErrNotFound) {
		return rejected(FieldError{Field: FieldToken, Message: MsgAccountGone}), nil
	}
	if err != nil {
		c.restoreToken(ctx, token, grant)
		return nil, oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "get account").Wrap(err)
	}

	hash, err := c.hasher.Hash(newPassword)
	if err != nil {
		c.restoreToken(ctx, token, grant)
		return nil, oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "hash password").Wrap(err)
	}

	updated, err := c.accounts.UpdatePassword(ctx, account.ID, hash)
	if errors.Is(err, ErrNotFound) {
		return rejected(FieldError{Field: FieldToken, Message: MsgAccountGone}), nil
	}
	if err != nil {
		c.restoreToken(ctx, token, grant)
		return nil, oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "update password").Wrap(err)
	}

	if err := c.establish(ctx, h, updated); err != nil {
		return nil, oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "establish session").Wrap(err)
	}
	return &AccountResult{Account: updated}, nil
}

// establish creates a session for account and hands it to the client. A
// session the client already held is destroyed best-effort.
func (c *Controller) establish(ctx context.Context, h SessionHandle, account *Account) error {
	key, err := c.sessions.Create(ctx, account.ID)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").With("account_id", account.ID.String()).Wrap(err)
	}

	previous := h.Key()
	if err := h.Establish(key); err != nil {
		c.destroyBestEffort(ctx, key, "discard unissued session")
		return oops.Code("SESSION_ISSUE_FAILED").With("account_id", account.ID.String()).Wrap(err)
	}
	if previous != "" && previous != key {
		c.destroyBestEffort(ctx, previous, "destroy replaced session")
	}
	return nil
}

func (c *Controller) destroyBestEffort(ctx context.Context, key, operation string) {
	if err := c.sessions.Destroy(ctx, key); err != nil {
		c.logger.WarnContext(ctx, "best-effort session cleanup failed",
			"operation", operation,
			"error", err,
		)
	}
}

// upgradeHash re-hashes legacy digests after a successful login. Failures
// leave the old digest in place.
func (c *Controller) upgradeHash(ctx context.Context, account *Account, password string) *Account {
	if !c.hasher.NeedsUpgrade(account.PasswordHash) {
		return account
	}
	hash, err := c.hasher.Hash(password)
	if err == nil {
		var updated *Account
		updated, err = c.accounts.UpdatePassword(ctx, account.ID, hash)
		if err == nil {
			return updated
		}
	}
	c.logger.WarnContext(ctx, "best-effort password hash upgrade failed",
		"operation", "upgrade password hash",
		"account_id", account.ID.String(),
		"error", err,
	)
	return account
}

// restoreToken puts a consumed token back after a failure that left the
// password unchanged.
func (c *Controller) restoreToken(ctx context.Context, token string, grant ResetGrant) {
	if grant.Remaining <= 0 {
		return
	}
	if err := c.resets.Put(ctx, token, grant.AccountID, grant.Remaining); err != nil {
		c.logger.WarnContext(ctx, "best-effort reset token restore failed",
			"operation", "restore reset token",
			"account_id", grant.AccountID.String(),
			"error", err,
		)
	}
}

func endSpan(span trace.Span, res *AccountResult, err error) {
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	case res != nil && len(res.Errors) > 0:
		span.SetAttributes(attribute.String("auth.rejected_field", res.Errors[0].Field))
	}
	span.End()
}
