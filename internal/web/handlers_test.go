// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accountd/accountd/internal/auth"
	"github.com/accountd/accountd/internal/avatar"
	"github.com/accountd/accountd/internal/web"
)

// memAccounts is an in-memory auth.AccountRepository for handler tests.
type memAccounts struct {
	mu   sync.Mutex
	byID map[ulid.ULID]*auth.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: make(map[ulid.ULID]*auth.Account)}
}

func cloneAccount(a *auth.Account) *auth.Account {
	c := *a
	return &c
}

func (m *memAccounts) Create(_ context.Context, account *auth.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if strings.EqualFold(existing.Email, account.Email) {
			return auth.ErrDuplicateEmail
		}
	}
	m.byID[account.ID] = cloneAccount(account)
	return nil
}

func (m *memAccounts) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if strings.EqualFold(a.Email, email) {
			return cloneAccount(a), nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memAccounts) Update(_ context.Context, account *auth.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[account.ID]; !ok {
		return auth.ErrNotFound
	}
	m.byID[account.ID] = cloneAccount(account)
	return nil
}

func (m *memAccounts) RecordAttempt(_ context.Context, id ulid.ULID, fn func(*auth.Account)) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	fn(a)
	return cloneAccount(a), nil
}

func (m *memAccounts) List(_ context.Context, offset, limit int) ([]*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*auth.Account, 0, len(m.byID))
	for _, a := range m.byID {
		all = append(all, cloneAccount(a))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *memAccounts) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byID)), nil
}

func (m *memAccounts) Delete(_ context.Context, id ulid.ULID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return auth.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

// memVerifications is an in-memory auth.VerificationRepository.
type memVerifications struct {
	mu        sync.Mutex
	byAccount map[ulid.ULID]*auth.Verification
}

func newMemVerifications() *memVerifications {
	return &memVerifications{byAccount: make(map[ulid.ULID]*auth.Verification)}
}

func (m *memVerifications) Create(_ context.Context, v *auth.Verification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byAccount[v.AccountID] = v
	return nil
}

func (m *memVerifications) GetByAccount(_ context.Context, accountID ulid.ULID) (*auth.Verification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.byAccount[accountID]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return v, nil
}

func (m *memVerifications) Delete(_ context.Context, accountID ulid.ULID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byAccount, accountID)
	return nil
}

// captureMailer remembers the last verification token sent.
type captureMailer struct {
	mu    sync.Mutex
	token string
}

func (c *captureMailer) SendVerification(_ context.Context, _, _, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	return nil
}

func (c *captureMailer) lastToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// avatarStore is a fixed-URL avatar.Store.
type avatarStore struct{}

func (avatarStore) Store(_ context.Context, _ []byte, key, _ string) (string, error) {
	return "https://cdn.example.com/" + key, nil
}

type apiFixture struct {
	ts       *httptest.Server
	accounts *memAccounts
	mailer   *captureMailer
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	accounts := newMemAccounts()
	mailer := &captureMailer{}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: []byte("handler-test-secret"),
		TTL:    time.Hour,
	})
	require.NoError(t, err)

	service, err := auth.NewService(auth.ServiceConfig{
		Accounts:      accounts,
		Verifications: newMemVerifications(),
		Hasher:        auth.NewArgon2idHasher(),
		Tokens:        tokens,
		Mailer:        mailer,
		Lock:          auth.LockPolicy{Threshold: 5},
		Passwords:     auth.DefaultPasswordPolicy(),
		Nickname:      func() string { return "testy_lemur_007" },
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	avatars, err := avatar.NewService(avatarStore{}, accounts)
	require.NoError(t, err)

	server, err := web.NewServer(web.Config{
		Service: service,
		Avatars: avatars,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &apiFixture{ts: ts, accounts: accounts, mailer: mailer}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, f.ts.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

// register creates an account and returns its id. The first account in a
// fixture becomes the verified admin.
func (f *apiFixture) register(t *testing.T, email, password string) string {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

func (f *apiFixture) login(t *testing.T, email, password string) string {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body["access_token"].(string)
}

// verify marks the account verified through the verification endpoint
// using the token captured from the mailer.
func (f *apiFixture) verify(t *testing.T, id string) {
	t.Helper()
	resp, _ := f.do(t, http.MethodPost, "/api/accounts/"+id+"/verify", "", map[string]string{
		"token": f.mailer.lastToken(),
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRegisterEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("creates the bootstrap admin", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/api/register", "", map[string]string{
			"email":    "admin@example.com",
			"password": "Password1",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "ADMIN", body["role"])
		assert.Equal(t, true, body["verified"])
		assert.Equal(t, "testy_lemur_007", body["nickname"])
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/api/register", "", map[string]string{
			"email":    "Admin@Example.com",
			"password": "Password1",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, auth.CodeDuplicateEmail, body["code"])
	})

	t.Run("weak password is a bad request", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/register", "", map[string]string{
			"email":    "weak@example.com",
			"password": "short",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/register", "", []byte("{not json"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("requested role in the body is ignored", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/api/register", "", map[string]string{
			"email":    "sneaky@example.com",
			"password": "Password1",
			"role":     "ADMIN",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "AUTHENTICATED", body["role"])
		assert.Equal(t, false, body["verified"])
	})
}

func TestAdminCreateEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "admin@example.com", "Password1")
	adminToken := f.login(t, "admin@example.com", "Password1")
	userID := f.register(t, "user@example.com", "Password1")
	f.verify(t, userID)
	userToken := f.login(t, "user@example.com", "Password1")

	t.Run("missing token is unauthorized", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/accounts", "", map[string]string{
			"email":    "new@example.com",
			"password": "Password1",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("regular user cannot create accounts", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/api/accounts", userToken, map[string]string{
			"email":    "new@example.com",
			"password": "Password1",
			"role":     "MANAGER",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, auth.CodeForbidden, body["code"])
	})

	t.Run("admin provisions a manager", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/api/accounts", adminToken, map[string]string{
			"email":    "lead@example.com",
			"password": "Password1",
			"role":     "MANAGER",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "MANAGER", body["role"])
		assert.Equal(t, false, body["verified"], "provisioned accounts still verify their mailbox")
	})

	t.Run("admin rejects an unassignable role", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/accounts", adminToken, map[string]string{
			"email":    "nobody@example.com",
			"password": "Password1",
			"role":     "ANONYMOUS",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLoginEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "admin@example.com", "Password1")

	t.Run("issues a bearer token", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/api/login", "", map[string]string{
			"email":    "admin@example.com",
			"password": "Password1",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "bearer", body["token_type"])
		assert.NotEmpty(t, body["access_token"])
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/api/login", "", map[string]string{
			"email":    "admin@example.com",
			"password": "Wrong1234",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "incorrect email or password", body["error"])
	})

	t.Run("unknown email reads the same as wrong password", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/api/login", "", map[string]string{
			"email":    "ghost@example.com",
			"password": "Password1",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "incorrect email or password", body["error"])
	})
}

func TestEmailVerificationFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "admin@example.com", "Password1")
	userID := f.register(t, "user@example.com", "Password1")

	t.Run("unverified login is forbidden", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/api/login", "", map[string]string{
			"email":    "user@example.com",
			"password": "Password1",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, auth.CodeAccountUnverified, body["code"])
	})

	t.Run("wrong verification token is rejected", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/accounts/"+userID+"/verify", "", map[string]string{
			"token": "bogus",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("verify then login", func(t *testing.T) {
		f.verify(t, userID)
		f.login(t, "user@example.com", "Password1")
	})
}

func TestLockoutFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "admin@example.com", "Password1")
	adminToken := f.login(t, "admin@example.com", "Password1")
	userID := f.register(t, "user@example.com", "Password1")
	f.verify(t, userID)

	// Four failures leave the account usable.
	for i := 0; i < 4; i++ {
		resp, _ := f.do(t, http.MethodPost, "/api/login", "", map[string]string{
			"email":    "user@example.com",
			"password": fmt.Sprintf("Wrong%d", i),
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	f.login(t, "user@example.com", "Password1")

	// The success reset the counter, so five fresh failures lock it.
	for i := 0; i < 5; i++ {
		resp, _ := f.do(t, http.MethodPost, "/api/login", "", map[string]string{
			"email":    "user@example.com",
			"password": fmt.Sprintf("Wrong%d", i),
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	t.Run("locked account rejects even the correct password", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/api/login", "", map[string]string{
			"email":    "user@example.com",
			"password": "Password1",
		})
		assert.Equal(t, http.StatusLocked, resp.StatusCode)
		assert.Equal(t, auth.CodeAccountLocked, body["code"])
	})

	t.Run("admin unlock restores access", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/api/accounts/"+userID+"/unlock", adminToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, false, body["locked"])

		f.login(t, "user@example.com", "Password1")
	})
}

func TestAccountAccessControl(t *testing.T) {
	f := newAPIFixture(t)
	adminID := f.register(t, "admin@example.com", "Password1")
	adminToken := f.login(t, "admin@example.com", "Password1")
	userID := f.register(t, "user@example.com", "Password1")
	f.verify(t, userID)
	userToken := f.login(t, "user@example.com", "Password1")

	t.Run("missing token is unauthorized", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/accounts/"+userID, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("user reads own account", func(t *testing.T) {
		resp, body := f.do(t, http.MethodGet, "/api/accounts/"+userID, userToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "user@example.com", body["email"])
	})

	t.Run("user cannot read another account", func(t *testing.T) {
		resp, body := f.do(t, http.MethodGet, "/api/accounts/"+adminID, userToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, auth.CodeForbidden, body["code"])
	})

	t.Run("user cannot list accounts", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/accounts", userToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin lists accounts", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/accounts", adminToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("user updates own profile", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPatch, "/api/accounts/"+userID, userToken, map[string]string{
			"bio":        "likes databases",
			"github_url": "https://github.com/someone",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "likes databases", body["bio"])
	})

	t.Run("user cannot change roles", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPut, "/api/accounts/"+userID+"/role", userToken, map[string]string{
			"role": "MANAGER",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin promotes to manager", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPut, "/api/accounts/"+userID+"/role", adminToken, map[string]string{
			"role": "manager",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "MANAGER", body["role"])
	})

	t.Run("manager lists accounts after a fresh login", func(t *testing.T) {
		// The old token still carries the AUTHENTICATED claim.
		resp, _ := f.do(t, http.MethodGet, "/api/accounts", userToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		managerToken := f.login(t, "user@example.com", "Password1")
		resp, _ = f.do(t, http.MethodGet, "/api/accounts", managerToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("admin rejects an unknown role", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPut, "/api/accounts/"+userID+"/role", adminToken, map[string]string{
			"role": "SUPERUSER",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("admin deletes the account", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodDelete, "/api/accounts/"+userID, adminToken, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = f.do(t, http.MethodGet, "/api/accounts/"+userID, adminToken, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("deleted account's token no longer authenticates", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/accounts/"+userID, userToken, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAvatarEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	userID := f.register(t, "admin@example.com", "Password1")
	token := f.login(t, "admin@example.com", "Password1")

	png := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, []byte("img")...)

	t.Run("uploads a png", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/api/accounts/"+userID+"/avatar", token, png)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		url, _ := body["avatar_url"].(string)
		assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/avatars/"))

		resp, account := f.do(t, http.MethodGet, "/api/accounts/"+userID, token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, url, account["avatar_url"])
	})

	t.Run("rejects non-image content", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/api/accounts/"+userID+"/avatar", token, []byte("plain text"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, avatar.CodeUnsupportedType, body["code"])
	})
}
