// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accountd/accountd/internal/auth"
	"github.com/accountd/accountd/internal/auth/postgres"
)

func TestVerificationRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := postgres.NewVerificationRepository(mock)

	v := &auth.Verification{
		AccountID: ulid.Make(),
		TokenHash: "deadbeef",
		CreatedAt: time.Now(),
	}

	mock.ExpectExec(`INSERT INTO email_verifications (.+) ON CONFLICT \(account_id\)`).
		WithArgs(v.AccountID.String(), v.TokenHash, v.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(ctx, v))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepository_GetByAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the pending verification", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewVerificationRepository(mock)
		id := ulid.Make()
		created := time.Now().UTC().Truncate(time.Microsecond)

		mock.ExpectQuery(`SELECT account_id, token_hash, created_at\s+FROM email_verifications`).
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows([]string{"account_id", "token_hash", "created_at"}).
				AddRow(id.String(), "deadbeef", created))

		got, err := repo.GetByAccount(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, got.AccountID)
		assert.Equal(t, "deadbeef", got.TokenHash)
	})

	t.Run("absent is not found", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewVerificationRepository(mock)
		id := ulid.Make()

		mock.ExpectQuery(`SELECT account_id, token_hash, created_at\s+FROM email_verifications`).
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows([]string{"account_id", "token_hash", "created_at"}))

		_, err := repo.GetByAccount(ctx, id)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestVerificationRepository_Delete(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := postgres.NewVerificationRepository(mock)
	id := ulid.Make()

	mock.ExpectExec(`DELETE FROM email_verifications WHERE account_id = \$1`).
		WithArgs(id.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	assert.NoError(t, repo.Delete(ctx, id))
}
