// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/auth"
)

// VerificationRepository implements auth.VerificationRepository using
// PostgreSQL. One pending verification per account; creating a new one
// replaces the old.
type VerificationRepository struct {
	db DB
}

// NewVerificationRepository creates a VerificationRepository.
func NewVerificationRepository(db DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Create stores a pending verification, upserting on account ID.
func (r *VerificationRepository) Create(ctx context.Context, v *auth.Verification) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO email_verifications (account_id, token_hash, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id)
		DO UPDATE SET token_hash = EXCLUDED.token_hash, created_at = EXCLUDED.created_at
	`, v.AccountID.String(), v.TokenHash, v.CreatedAt)
	if err != nil {
		return oops.Code("VERIFICATION_CREATE_FAILED").
			With("operation", "upsert verification").
			Wrap(err)
	}
	return nil
}

// GetByAccount retrieves the pending verification for an account.
func (r *VerificationRepository) GetByAccount(ctx context.Context, accountID ulid.ULID) (*auth.Verification, error) {
	row := r.db.QueryRow(ctx, `
		SELECT account_id, token_hash, created_at
		FROM email_verifications
		WHERE account_id = $1
	`, accountID.String())

	var v auth.Verification
	var id string
	err := row.Scan(&id, &v.TokenHash, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("VERIFICATION_NOT_FOUND").
			With("account_id", accountID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("VERIFICATION_GET_FAILED").
			With("operation", "get verification").
			Wrap(err)
	}
	parsed, err := ulid.Parse(id)
	if err != nil {
		return nil, oops.Code("VERIFICATION_GET_FAILED").
			With("operation", "parse account id").
			Wrap(err)
	}
	v.AccountID = parsed
	return &v, nil
}

// Delete removes the pending verification for an account.
func (r *VerificationRepository) Delete(ctx context.Context, accountID ulid.ULID) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM email_verifications WHERE account_id = $1
	`, accountID.String())
	if err != nil {
		return oops.Code("VERIFICATION_DELETE_FAILED").
			With("operation", "delete verification").
			Wrap(err)
	}
	return nil
}
