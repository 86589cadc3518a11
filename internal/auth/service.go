// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/access"
)

// dummyDigest is verified when the email does not resolve to an account,
// keeping response time consistent with the wrong-password path. It is
// not a real credential and matches no password.
//
//nolint:gosec // G101: intentionally fake digest for timing consistency, not a credential.
const dummyDigest = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// NicknameFunc produces a generated display nickname for new accounts.
type NicknameFunc func() string

// Service composes the hasher, token service, lock policy, and access
// policy into the registration, login, and authorization flows.
type Service struct {
	accounts      AccountRepository
	verifications VerificationRepository
	hasher        PasswordHasher
	tokens        *TokenService
	authorizer    access.Authorizer
	mailer        Mailer
	lock          LockPolicy
	passwords     PasswordPolicy
	nickname      NicknameFunc
	logger        *slog.Logger
}

// ServiceConfig bundles the Service dependencies. Accounts, Hasher, and
// Tokens are required; the rest default sensibly.
type ServiceConfig struct {
	Accounts      AccountRepository
	Verifications VerificationRepository
	Hasher        PasswordHasher
	Tokens        *TokenService
	Authorizer    access.Authorizer
	Mailer        Mailer
	Lock          LockPolicy
	Passwords     PasswordPolicy
	Nickname      NicknameFunc
	Logger        *slog.Logger
}

// NewService creates a Service, validating required dependencies.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Accounts == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("accounts repository is required")
	}
	if cfg.Hasher == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("password hasher is required")
	}
	if cfg.Tokens == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("token service is required")
	}
	if cfg.Authorizer == nil {
		cfg.Authorizer = access.NewRoleTable()
	}
	if cfg.Nickname == nil {
		cfg.Nickname = func() string { return "" }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		accounts:      cfg.Accounts,
		verifications: cfg.Verifications,
		hasher:        cfg.Hasher,
		tokens:        cfg.Tokens,
		authorizer:    cfg.Authorizer,
		mailer:        cfg.Mailer,
		lock:          cfg.Lock,
		passwords:     cfg.Passwords,
		nickname:      cfg.Nickname,
		logger:        cfg.Logger,
	}, nil
}

// Register creates an unverified AUTHENTICATED account with a hashed
// credential and a pending email verification. Self-registration never
// assigns an elevated role; that requires an administrator through
// CreateAccount or ChangeRole.
//
// The very first account becomes a verified ADMIN so a fresh deployment
// has a working administrator.
func (s *Service) Register(ctx context.Context, email, password string) (*Account, error) {
	account, err := s.buildAccount(email, password, RoleAuthenticated)
	if err != nil {
		return nil, err
	}

	count, err := s.accounts.Count(ctx)
	if err != nil {
		return nil, oops.Code(CodeInternal).With("operation", "count accounts").Wrap(err)
	}
	if count == 0 {
		account.Role = RoleAdmin
		account.Verified = true
	}

	if err := s.insertAccount(ctx, account); err != nil {
		return nil, err
	}

	if !account.Verified {
		s.beginVerification(ctx, account)
	}

	return account, nil
}

// CreateAccount provisions an account on behalf of an administrator,
// with the requested role. An empty role defaults to AUTHENTICATED. The
// account starts unverified and receives a verification mail like any
// other; the owner still has to prove the mailbox before logging in.
func (s *Service) CreateAccount(ctx context.Context, email, password string, role Role) (*Account, error) {
	if role == "" {
		role = RoleAuthenticated
	}
	if !role.Assignable() {
		return nil, oops.Code(CodeValidationFailed).
			With("role", string(role)).
			Errorf("role is not assignable to an account")
	}

	account, err := s.buildAccount(email, password, role)
	if err != nil {
		return nil, err
	}
	if err := s.insertAccount(ctx, account); err != nil {
		return nil, err
	}

	s.beginVerification(ctx, account)

	return account, nil
}

// buildAccount validates the credentials and assembles a new unverified
// account without persisting it.
func (s *Service) buildAccount(email, password string, role Role) (*Account, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := s.passwords.Validate(password); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Account{
		ID:           ulid.Make(),
		Email:        email,
		Nickname:     s.nickname(),
		PasswordHash: digest,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *Service) insertAccount(ctx context.Context, account *Account) error {
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return oops.Code(CodeDuplicateEmail).
				With("email", account.Email).
				Wrap(err)
		}
		return oops.Code(CodeInternal).With("operation", "create account").Wrap(err)
	}
	return nil
}

// beginVerification stores a verification token and dispatches the mail.
// Both are best effort: registration already succeeded and the token can
// be re-requested.
func (s *Service) beginVerification(ctx context.Context, account *Account) {
	if s.verifications == nil {
		return
	}
	token, hash, err := NewVerificationToken()
	if err != nil {
		s.logger.Error("verification token generation failed",
			"account_id", account.ID.String(), "error", err)
		return
	}
	v := &Verification{AccountID: account.ID, TokenHash: hash, CreatedAt: time.Now()}
	if err := s.verifications.Create(ctx, v); err != nil {
		s.logger.Error("verification persist failed",
			"account_id", account.ID.String(), "error", err)
		return
	}
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendVerification(ctx, account.Email, account.Nickname, token); err != nil {
		s.logger.Warn("verification mail dispatch failed",
			"account_id", account.ID.String(), "error", err)
	}
}

// Login authenticates by email and password and issues a bearer token
// carrying the account's current role.
//
// Outcome order: unknown email and wrong password both yield
// AUTH_INVALID_CREDENTIALS (enumeration resistance); a locked account is
// rejected before the password is checked, so the correct password does
// not slip through a lock; an unverified account is rejected after the
// lock check. Failed password checks increment the failure counter under
// the repository's row lock.
func (s *Service) Login(ctx context.Context, email, password string) (*Account, string, error) {
	account, err := s.accounts.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Burn a verification anyway so timing does not reveal
			// whether the account exists.
			_, _ = s.hasher.Verify(password, dummyDigest) //nolint:errcheck // timing filler
			return nil, "", s.invalidCredentials()
		}
		return nil, "", oops.Code(CodeInternal).With("operation", "get account by email").Wrap(err)
	}

	if account.IsLocked() {
		return nil, "", oops.Code(CodeAccountLocked).
			Errorf("account locked due to too many failed login attempts")
	}
	if !account.Verified {
		return nil, "", oops.Code(CodeAccountUnverified).
			Errorf("email address has not been verified")
	}

	valid, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return nil, "", oops.Code(CodeInternal).With("operation", "verify password").Wrap(err)
	}
	if !valid {
		if _, recErr := s.accounts.RecordAttempt(ctx, account.ID, s.lock.RecordFailure); recErr != nil {
			s.logger.Error("failed login bookkeeping failed",
				"account_id", account.ID.String(), "error", recErr)
		}
		return nil, "", s.invalidCredentials()
	}

	account, err = s.accounts.RecordAttempt(ctx, account.ID, s.lock.RecordSuccess)
	if err != nil {
		return nil, "", oops.Code(CodeInternal).With("operation", "reset failure counter").Wrap(err)
	}

	token, err := s.tokens.Issue(account.ID.String(), account.Role)
	if err != nil {
		return nil, "", err
	}
	return account, token, nil
}

func (s *Service) invalidCredentials() error {
	// Same code and message for unknown email and wrong password.
	return oops.Code(CodeInvalidCredentials).Errorf("incorrect email or password")
}

// Authorize decodes a bearer token, resolves the caller, and consults
// the access policy for the operation. The role used for the decision is
// the token's role claim, a snapshot taken at issuance.
func (s *Service) Authorize(ctx context.Context, tokenString, operation string, resourceOwnerID ulid.ULID) (*Account, error) {
	claims, err := s.tokens.Decode(tokenString)
	if err != nil {
		return nil, oops.Code(CodeUnauthenticated).Wrap(err)
	}

	callerID, err := ulid.Parse(claims.Subject)
	if err != nil {
		return nil, oops.Code(CodeUnauthenticated).Errorf("invalid token subject")
	}

	caller, err := s.accounts.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Token decoded fine but the account is gone (e.g. deleted
			// within the token's lifetime).
			return nil, oops.Code(CodeUnauthenticated).Errorf("account no longer exists")
		}
		return nil, oops.Code(CodeInternal).With("operation", "get caller account").Wrap(err)
	}

	var owner string
	if resourceOwnerID != (ulid.ULID{}) {
		owner = resourceOwnerID.String()
	}
	if !s.authorizer.Authorize(claims.Role, operation, owner, callerID.String()) {
		return nil, oops.Code(CodeForbidden).
			With("operation", operation).
			Errorf("operation not permitted")
	}
	return caller, nil
}

// VerifyEmail marks an account verified when presented its pending
// verification token.
func (s *Service) VerifyEmail(ctx context.Context, accountID ulid.ULID, token string) error {
	if s.verifications == nil {
		return oops.Code(CodeInternal).Errorf("verification store not configured")
	}
	v, err := s.verifications.GetByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeValidationFailed).Errorf("no pending verification")
		}
		return oops.Code(CodeInternal).With("operation", "get verification").Wrap(err)
	}
	if !MatchVerificationToken(token, v.TokenHash) {
		return oops.Code(CodeValidationFailed).Errorf("invalid verification token")
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return oops.Code(CodeInternal).With("operation", "get account").Wrap(err)
	}
	account.Verified = true
	account.UpdatedAt = time.Now()
	if err := s.accounts.Update(ctx, account); err != nil {
		return oops.Code(CodeInternal).With("operation", "mark verified").Wrap(err)
	}

	if err := s.verifications.Delete(ctx, accountID); err != nil {
		s.logger.Warn("verification cleanup failed",
			"account_id", accountID.String(), "error", err)
	}
	return nil
}

// Get returns an account by ID.
func (s *Service) Get(ctx context.Context, id ulid.ULID) (*Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, oops.Code(CodeInternal).With("operation", "get account").Wrap(err)
	}
	return account, nil
}

// List returns a page of accounts ordered by creation time.
func (s *Service) List(ctx context.Context, offset, limit int) ([]*Account, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	accounts, err := s.accounts.List(ctx, offset, limit)
	if err != nil {
		return nil, oops.Code(CodeInternal).With("operation", "list accounts").Wrap(err)
	}
	return accounts, nil
}

// UpdateProfile applies self-service profile field changes.
func (s *Service) UpdateProfile(ctx context.Context, id ulid.ULID, update ProfileUpdate) (*Account, error) {
	if update.GitHubURL != nil {
		if err := validateProfileURL("github_url", *update.GitHubURL); err != nil {
			return nil, err
		}
	}
	if update.LinkedInURL != nil {
		if err := validateProfileURL("linkedin_url", *update.LinkedInURL); err != nil {
			return nil, err
		}
	}

	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, oops.Code(CodeInternal).With("operation", "get account").Wrap(err)
	}

	if update.Nickname != nil && *update.Nickname != "" {
		account.Nickname = *update.Nickname
	}
	if update.Bio != nil {
		account.Bio = update.Bio
	}
	if update.GitHubURL != nil {
		account.GitHubURL = update.GitHubURL
	}
	if update.LinkedInURL != nil {
		account.LinkedInURL = update.LinkedInURL
	}
	account.UpdatedAt = time.Now()

	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, oops.Code(CodeInternal).With("operation", "update profile").Wrap(err)
	}
	return account, nil
}

// ChangeRole sets an account's role. Outstanding tokens keep their old
// role claim until they expire.
func (s *Service) ChangeRole(ctx context.Context, id ulid.ULID, role Role) (*Account, error) {
	if !role.Assignable() {
		return nil, oops.Code(CodeValidationFailed).
			With("role", string(role)).
			Errorf("role is not assignable to an account")
	}
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, oops.Code(CodeInternal).With("operation", "get account").Wrap(err)
	}
	account.Role = role
	account.UpdatedAt = time.Now()
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, oops.Code(CodeInternal).With("operation", "change role").Wrap(err)
	}
	return account, nil
}

// Unlock clears a sticky lock. This is the only transition out of the
// locked state.
func (s *Service) Unlock(ctx context.Context, id ulid.ULID) (*Account, error) {
	account, err := s.accounts.RecordAttempt(ctx, id, func(a *Account) { a.Unlock() })
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, oops.Code(CodeInternal).With("operation", "unlock account").Wrap(err)
	}
	return account, nil
}

// Delete removes an account permanently.
func (s *Service) Delete(ctx context.Context, id ulid.ULID) error {
	if err := s.accounts.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return oops.Code(CodeInternal).With("operation", "delete account").Wrap(err)
	}
	return nil
}
