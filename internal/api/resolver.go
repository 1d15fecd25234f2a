// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package api

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/observability"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// Authenticator is the set of auth operations the API exposes.
// *auth.Controller implements it.
type Authenticator interface {
	Register(ctx context.Context, h auth.SessionHandle, in auth.RegisterInput) (*auth.AccountResult, error)
	Login(ctx context.Context, h auth.SessionHandle, identifier, password string) (*auth.AccountResult, error)
	Me(ctx context.Context, h auth.SessionHandle) (*auth.Account, error)
	Logout(ctx context.Context, h auth.SessionHandle) bool
	ForgotPassword(ctx context.Context, email string) (bool, error)
	ResetTokenValid(ctx context.Context, token string) (bool, error)
	ChangePassword(ctx context.Context, h auth.SessionHandle, token, newPassword string) (*auth.AccountResult, error)
}

var _ Authenticator = (*auth.Controller)(nil)

// Recorder counts auth operations. *observability.Metrics implements it.
type Recorder interface {
	RecordAuthOperation(operation string, outcome observability.Outcome)
}

type noopRecorder struct{}

func (noopRecorder) RecordAuthOperation(string, observability.Outcome) {}

// internalError is what clients see for any failure that is not a field
// error. The code extension identifies the failure in the logs.
type internalError struct {
	code string
}

func (e *internalError) Error() string { return "internal error" }

func (e *internalError) Extensions() map[string]any {
	code := e.code
	if code == "" {
		code = "INTERNAL"
	}
	return map[string]any{"code": code}
}

// Resolver is the GraphQL root resolver for queries and mutations.
type Resolver struct {
	auth    Authenticator
	metrics Recorder
	logger  *slog.Logger
}

func (r *Resolver) fail(ctx context.Context, operation string, err error) error {
	r.metrics.RecordAuthOperation(operation, observability.OutcomeError)
	errutil.LogErrorContext(ctx, r.logger, "graphql operation failed", err)
	return &internalError{code: errutil.Code(err)}
}

func (r *Resolver) respond(ctx context.Context, operation string, res *auth.AccountResult, err error) (*accountResponseResolver, error) {
	if err != nil {
		return nil, r.fail(ctx, operation, err)
	}
	outcome := observability.OutcomeOK
	if len(res.Errors) > 0 {
		outcome = observability.OutcomeRejected
	}
	r.metrics.RecordAuthOperation(operation, outcome)
	return &accountResponseResolver{res: res}, nil
}

// Me resolves the account of the current session.
func (r *Resolver) Me(ctx context.Context) (*accountResolver, error) {
	account, err := r.auth.Me(ctx, sessionFrom(ctx))
	if err != nil {
		return nil, r.fail(ctx, "me", err)
	}
	r.metrics.RecordAuthOperation("me", observability.OutcomeOK)
	if account == nil {
		return nil, nil
	}
	return &accountResolver{account: account}, nil
}

// ResetTokenValid reports whether a reset token can still be used.
func (r *Resolver) ResetTokenValid(ctx context.Context, args struct{ Token string }) (bool, error) {
	ok, err := r.auth.ResetTokenValid(ctx, args.Token)
	if err != nil {
		return false, r.fail(ctx, "resetTokenValid", err)
	}
	outcome := observability.OutcomeOK
	if !ok {
		outcome = observability.OutcomeRejected
	}
	r.metrics.RecordAuthOperation("resetTokenValid", outcome)
	return ok, nil
}

type registerArgs struct {
	Options struct {
		Username string
		Email    string
		Password string
	}
}

// Register creates an account and logs it in.
func (r *Resolver) Register(ctx context.Context, args registerArgs) (*accountResponseResolver, error) {
	res, err := r.auth.Register(ctx, sessionFrom(ctx), auth.RegisterInput{
		Username: args.Options.Username,
		Email:    args.Options.Email,
		Password: args.Options.Password,
	})
	return r.respond(ctx, "register", res, err)
}

// Login authenticates by username or email.
func (r *Resolver) Login(ctx context.Context, args struct {
	UsernameOrEmail string
	Password        string
},
) (*accountResponseResolver, error) {
	res, err := r.auth.Login(ctx, sessionFrom(ctx), args.UsernameOrEmail, args.Password)
	return r.respond(ctx, "login", res, err)
}

// Logout ends the current session.
func (r *Resolver) Logout(ctx context.Context) bool {
	ok := r.auth.Logout(ctx, sessionFrom(ctx))
	outcome := observability.OutcomeOK
	if !ok {
		outcome = observability.OutcomeError
	}
	r.metrics.RecordAuthOperation("logout", outcome)
	return ok
}

// ForgotPassword emails a reset link when the address is registered.
func (r *Resolver) ForgotPassword(ctx context.Context, args struct{ Email string }) (bool, error) {
	ok, err := r.auth.ForgotPassword(ctx, args.Email)
	if err != nil {
		return false, r.fail(ctx, "forgotPassword", err)
	}
	r.metrics.RecordAuthOperation("forgotPassword", observability.OutcomeOK)
	return ok, nil
}

// ChangePassword redeems a reset token.
func (r *Resolver) ChangePassword(ctx context.Context, args struct {
	Token       string
	NewPassword string
},
) (*accountResponseResolver, error) {
	res, err := r.auth.ChangePassword(ctx, sessionFrom(ctx), args.Token, args.NewPassword)
	return r.respond(ctx, "changePassword", res, err)
}

type accountResolver struct {
	account *auth.Account
}

func (a *accountResolver) ID() graphql.ID { return graphql.ID(a.account.ID.String()) }
func (a *accountResolver) Username() string { return a.account.Username }
func (a *accountResolver) Email() string { return a.account.Email }
func (a *accountResolver) CreatedAt() string { return timestamp(a.account.CreatedAt) }
func (a *accountResolver) UpdatedAt() string { return timestamp(a.account.UpdatedAt) }

// timestamp renders t as milliseconds since the Unix epoch.
func timestamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

type fieldErrorResolver struct {
	fe auth.FieldError
}

func (f *fieldErrorResolver) Field() string   { return f.fe.Field }
func (f *fieldErrorResolver) Message() string { return f.fe.Message }

type accountResponseResolver struct {
	res *auth.AccountResult
}

func (a *accountResponseResolver) Errors() *[]*fieldErrorResolver {
	if len(a.res.Errors) == 0 {
		return nil
	}
	out := make([]*fieldErrorResolver, len(a.res.Errors))
	for i, fe := range a.res.Errors {
		out[i] = &fieldErrorResolver{fe: fe}
	}
	return &out
}

func (a *accountResponseResolver) Account() *accountResolver {
	if a.res.Account == nil {
		return nil
	}
	return &accountResolver{account: a.res.Account}
}
