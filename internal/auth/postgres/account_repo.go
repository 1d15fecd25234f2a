// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package postgres implements auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// Unique constraints on the accounts table, mapped to the input field they guard.
var uniqueConstraintFields = map[string]string{
	"accounts_username_key": auth.FieldUsername,
	"accounts_email_key":    auth.FieldEmail,
}

const accountColumns = `id, username, email, password_hash, created_at, updated_at`

// poolIface is the subset of pgxpool.Pool used by repositories.
// pgxmock.PgxPoolIface satisfies it in unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool poolIface
}

var _ auth.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		account.ID.String(),
		account.Username,
		account.Email,
		account.PasswordHash,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err == nil {
		return nil
	}

	if field, ok := duplicateField(err); ok {
		return oops.Code("ACCOUNT_DUPLICATE").
			With("field", field).
			Wrap(&auth.DuplicateError{Field: field})
	}
	return oops.Code("ACCOUNT_CREATE_FAILED").
		With("operation", "insert account").
		With("username", account.Username).
		Wrap(err)
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id.String())
	return r.get(row, "get account by id", "id", id.String())
}

// GetByUsernameOrEmail matches on email when identifier contains "@",
// on username otherwise.
func (r *AccountRepository) GetByUsernameOrEmail(ctx context.Context, identifier string) (*auth.Account, error) {
	if auth.IsEmailIdentifier(identifier) {
		return r.GetByEmail(ctx, identifier)
	}
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = $1`, identifier)
	return r.get(row, "get account by username", "username", identifier)
}

// GetByEmail retrieves an account by email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return r.get(row, "get account by email", "email", email)
}

// UpdatePassword replaces the password hash and returns the updated account.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE accounts SET
			password_hash = $2,
			updated_at = $3
		WHERE id = $1
		RETURNING `+accountColumns,
		id.String(),
		passwordHash,
		time.Now().UTC(),
	)
	return r.get(row, "update password", "id", id.String())
}

func (r *AccountRepository) get(row pgx.Row, operation, key, value string) (*auth.Account, error) {
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With(key, value).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").
			With("operation", operation).
			With(key, value).
			Wrap(err)
	}
	return account, nil
}

func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		account auth.Account
		idStr   string
	)
	if err := row.Scan(
		&idStr,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller with operation context
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	account.ID = id
	return &account, nil
}

// duplicateField reports which account field a unique violation refers to.
func duplicateField(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return "", false
	}
	field, ok := uniqueConstraintFields[pgErr.ConstraintName]
	return field, ok
}
