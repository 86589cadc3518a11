// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package mocks provides hand-maintained testify mocks for the auth
// package interfaces.
package mocks

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/accountd/accountd/internal/auth"
)

// MockAccountRepository mocks auth.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

// NewMockAccountRepository creates a mock that asserts its expectations
// at test cleanup.
func NewMockAccountRepository(t *testing.T) *MockAccountRepository {
	m := &MockAccountRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAccountRepository) Create(ctx context.Context, account *auth.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	args := m.Called(ctx, id)
	if a := args.Get(0); a != nil {
		return a.(*auth.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	args := m.Called(ctx, email)
	if a := args.Get(0); a != nil {
		return a.(*auth.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountRepository) Update(ctx context.Context, account *auth.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockAccountRepository) RecordAttempt(ctx context.Context, id ulid.ULID, fn func(*auth.Account)) (*auth.Account, error) {
	args := m.Called(ctx, id, fn)
	if a := args.Get(0); a != nil {
		acct := a.(*auth.Account)
		fn(acct)
		return acct, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountRepository) List(ctx context.Context, offset, limit int) ([]*auth.Account, error) {
	args := m.Called(ctx, offset, limit)
	if a := args.Get(0); a != nil {
		return a.([]*auth.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

// MockVerificationRepository mocks auth.VerificationRepository.
type MockVerificationRepository struct {
	mock.Mock
}

func NewMockVerificationRepository(t *testing.T) *MockVerificationRepository {
	m := &MockVerificationRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockVerificationRepository) Create(ctx context.Context, v *auth.Verification) error {
	return m.Called(ctx, v).Error(0)
}

func (m *MockVerificationRepository) GetByAccount(ctx context.Context, accountID ulid.ULID) (*auth.Verification, error) {
	args := m.Called(ctx, accountID)
	if v := args.Get(0); v != nil {
		return v.(*auth.Verification), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockVerificationRepository) Delete(ctx context.Context, accountID ulid.ULID) error {
	return m.Called(ctx, accountID).Error(0)
}

// MockPasswordHasher mocks auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

func NewMockPasswordHasher(t *testing.T) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, digest string) (bool, error) {
	args := m.Called(password, digest)
	return args.Bool(0), args.Error(1)
}

// MockMailer mocks auth.Mailer.
type MockMailer struct {
	mock.Mock
}

func NewMockMailer(t *testing.T) *MockMailer {
	m := &MockMailer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockMailer) SendVerification(ctx context.Context, to, nickname, token string) error {
	return m.Called(ctx, to, nickname, token).Error(0)
}
