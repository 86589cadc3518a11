// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package avatar

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/auth"
)

// MaxUploadBytes caps avatar payload size.
const MaxUploadBytes = 5 << 20 // 5 MiB

// Service validates avatar uploads, stores them, and records the URL on
// the account.
type Service struct {
	store    Store
	accounts auth.AccountRepository
}

// NewService creates an avatar Service.
func NewService(store Store, accounts auth.AccountRepository) (*Service, error) {
	if store == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("avatar store is required")
	}
	if accounts == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("accounts repository is required")
	}
	return &Service{store: store, accounts: accounts}, nil
}

// StorageKey returns a fresh object key for an avatar upload.
func StorageKey() string {
	return "avatars/" + uuid.NewString()
}

// Upload sniffs the payload against the content allow-list, stores it,
// and persists the resulting URL on the account.
func (s *Service) Upload(ctx context.Context, accountID ulid.ULID, data []byte) (string, error) {
	if len(data) == 0 {
		return "", oops.Code(auth.CodeValidationFailed).Errorf("avatar payload is empty")
	}
	if len(data) > MaxUploadBytes {
		return "", oops.Code(auth.CodeValidationFailed).
			With("max_bytes", MaxUploadBytes).
			Errorf("avatar payload too large")
	}

	contentType, err := SniffContentType(data)
	if err != nil {
		return "", err
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return "", err
		}
		return "", oops.Code(auth.CodeInternal).With("operation", "get account").Wrap(err)
	}

	url, err := s.store.Store(ctx, data, StorageKey(), contentType)
	if err != nil {
		return "", err
	}

	account.AvatarURL = &url
	account.UpdatedAt = time.Now()
	if err := s.accounts.Update(ctx, account); err != nil {
		return "", oops.Code(auth.CodeInternal).With("operation", "record avatar url").Wrap(err)
	}
	return url, nil
}
