// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package postgres implements the auth repositories on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/auth"
)

// DB is the subset of pgxpool.Pool used by the repositories. It is
// satisfied by *pgxpool.Pool and by pgxmock.PgxPoolIface in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates an AccountRepository on the given pool.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, email, nickname, password_hash, role, verified,
	failed_logins, locked, bio, github_url, linkedin_url, avatar_url,
	created_at, updated_at`

// Create stores a new account. A unique violation on the email index is
// mapped to auth.ErrDuplicateEmail.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (
			id, email, nickname, password_hash, role, verified,
			failed_logins, locked, bio, github_url, linkedin_url, avatar_url,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		account.ID.String(),
		account.Email,
		account.Nickname,
		account.PasswordHash,
		string(account.Role),
		account.Verified,
		account.FailedLogins,
		account.Locked,
		account.Bio,
		account.GitHubURL,
		account.LinkedInURL,
		account.AvatarURL,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("ACCOUNT_CREATE_CONFLICT").
				With("email", account.Email).
				Wrap(auth.ErrDuplicateEmail)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id.String())

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by id").
			Wrap(err)
	}
	return account, nil
}

// GetByEmail retrieves an account by email, case-insensitively.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE LOWER(email) = LOWER($1)
	`, email)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}
	return account, nil
}

// Update persists mutated account state.
func (r *AccountRepository) Update(ctx context.Context, account *auth.Account) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET
			email = $2, nickname = $3, password_hash = $4, role = $5,
			verified = $6, failed_logins = $7, locked = $8, bio = $9,
			github_url = $10, linkedin_url = $11, avatar_url = $12,
			updated_at = $13
		WHERE id = $1
	`,
		account.ID.String(),
		account.Email,
		account.Nickname,
		account.PasswordHash,
		string(account.Role),
		account.Verified,
		account.FailedLogins,
		account.Locked,
		account.Bio,
		account.GitHubURL,
		account.LinkedInURL,
		account.AvatarURL,
		account.UpdatedAt,
	)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", account.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// RecordAttempt applies fn to the account under a row lock so concurrent
// logins serialize their read-modify-write of the failure counter.
func (r *AccountRepository) RecordAttempt(ctx context.Context, id ulid.ULID, fn func(*auth.Account)) (*auth.Account, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, oops.Code("ACCOUNT_ATTEMPT_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer func() { _ = tx.Rollback(ctx) }() //nolint:errcheck // no-op after commit

	row := tx.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, id.String())

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_ATTEMPT_FAILED").
			With("operation", "lock account row").
			Wrap(err)
	}

	fn(account)

	_, err = tx.Exec(ctx, `
		UPDATE accounts SET
			failed_logins = $2, locked = $3, updated_at = $4
		WHERE id = $1
	`,
		account.ID.String(),
		account.FailedLogins,
		account.Locked,
		account.UpdatedAt,
	)
	if err != nil {
		return nil, oops.Code("ACCOUNT_ATTEMPT_FAILED").
			With("operation", "write attempt outcome").
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, oops.Code("ACCOUNT_ATTEMPT_FAILED").
			With("operation", "commit").
			Wrap(err)
	}
	return account, nil
}

// List returns accounts ordered by creation time, oldest first.
func (r *AccountRepository) List(ctx context.Context, offset, limit int) ([]*auth.Account, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		ORDER BY created_at, id
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "list accounts").
			Wrap(err)
	}
	defer rows.Close()

	var accounts []*auth.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, oops.Code("ACCOUNT_LIST_FAILED").
				With("operation", "scan account row").
				Wrap(err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "iterate accounts").
			Wrap(err)
	}
	return accounts, nil
}

// Count returns the total number of accounts.
func (r *AccountRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count)
	if err != nil {
		return 0, oops.Code("ACCOUNT_COUNT_FAILED").
			With("operation", "count accounts").
			Wrap(err)
	}
	return count, nil
}

// Delete removes an account. Deletion is terminal.
func (r *AccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanAccount scans a row in accountColumns order.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var a auth.Account
	var id, role string
	err := row.Scan(
		&id, &a.Email, &a.Nickname, &a.PasswordHash, &role, &a.Verified,
		&a.FailedLogins, &a.Locked, &a.Bio, &a.GitHubURL, &a.LinkedInURL,
		&a.AvatarURL, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	parsed, err := ulid.Parse(id)
	if err != nil {
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "parse account id").
			Wrap(err)
	}
	a.ID = parsed
	a.Role = auth.Role(role)
	return &a, nil
}
