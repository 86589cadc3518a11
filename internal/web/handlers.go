// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/access"
	"github.com/accountd/accountd/internal/auth"
	"github.com/accountd/accountd/internal/avatar"
)

// maxBodyBytes caps JSON request bodies. Avatar uploads have their own
// limit.
const maxBodyBytes = 1 << 20

type accountResponse struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Nickname     string    `json:"nickname"`
	Role         string    `json:"role"`
	Verified     bool      `json:"verified"`
	Locked       bool      `json:"locked"`
	FailedLogins int       `json:"failed_logins"`
	Bio          *string   `json:"bio,omitempty"`
	GitHubURL    *string   `json:"github_url,omitempty"`
	LinkedInURL  *string   `json:"linkedin_url,omitempty"`
	AvatarURL    *string   `json:"avatar_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toAccountResponse(a *auth.Account) accountResponse {
	return accountResponse{
		ID:           a.ID.String(),
		Email:        a.Email,
		Nickname:     a.Nickname,
		Role:         string(a.Role),
		Verified:     a.Verified,
		Locked:       a.Locked,
		FailedLogins: a.FailedLogins,
		Bio:          a.Bio,
		GitHubURL:    a.GitHubURL,
		LinkedInURL:  a.LinkedInURL,
		AvatarURL:    a.AvatarURL,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return oops.Code(auth.CodeValidationFailed).Errorf("malformed request body")
	}
	return nil
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", oops.Code(auth.CodeUnauthenticated).Errorf("missing bearer token")
	}
	return header[len(prefix):], nil
}

// authorize resolves the caller from the request's bearer token and
// checks the access policy for operation against the resource owner.
func (s *Server) authorize(r *http.Request, operation string, owner ulid.ULID) (*auth.Account, error) {
	token, err := bearerToken(r)
	if err != nil {
		return nil, err
	}
	caller, err := s.service.Authorize(r.Context(), token, operation, owner)
	if s.metrics != nil {
		outcome := "allow"
		if err != nil {
			outcome = "deny"
		}
		s.metrics.AccessDecisions.WithLabelValues(outcome).Inc()
	}
	return caller, err
}

func pathID(r *http.Request) (ulid.ULID, error) {
	id, err := ulid.Parse(r.PathValue("id"))
	if err != nil {
		return ulid.ULID{}, oops.Code(auth.CodeValidationFailed).
			With("field", "id").
			Errorf("invalid account id")
	}
	return id, nil
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleRegister is the public self-registration endpoint. The request
// carries no role; anything beyond AUTHENTICATED is provisioned by an
// administrator through handleCreateAccount.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	account, err := s.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.recordRegistration(registrationOutcome(err))
		s.writeError(w, err)
		return
	}

	s.recordRegistration("created")
	s.writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

type createAccountRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	if _, err := s.authorize(r, access.OpAccountCreate, ulid.ULID{}); err != nil {
		s.writeError(w, err)
		return
	}

	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	var role auth.Role
	if req.Role != "" {
		parsed, err := auth.ParseRole(req.Role)
		if err != nil {
			s.writeError(w, err)
			return
		}
		role = parsed
	}

	account, err := s.service.CreateAccount(r.Context(), req.Email, req.Password, role)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (s *Server) recordRegistration(outcome string) {
	if s.metrics != nil {
		s.metrics.Registrations.WithLabelValues(outcome).Inc()
	}
}

func registrationOutcome(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		switch oopsErr.Code() {
		case auth.CodeDuplicateEmail:
			return "duplicate"
		case auth.CodeValidationFailed:
			return "invalid"
		}
	}
	return "error"
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	Account     accountResponse `json:"account"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	account, token, err := s.service.Login(r.Context(), req.Email, req.Password)
	if s.metrics != nil {
		s.metrics.LoginAttempts.WithLabelValues(loginOutcome(err)).Inc()
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		Account:     toAccountResponse(account),
	})
}

func loginOutcome(err error) string {
	if err == nil {
		return "success"
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		switch oopsErr.Code() {
		case auth.CodeInvalidCredentials:
			return "invalid_credentials"
		case auth.CodeAccountLocked:
			return "locked"
		case auth.CodeAccountUnverified:
			return "unverified"
		}
	}
	return "error"
}

type verifyRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.service.VerifyEmail(r.Context(), id, req.Token); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if _, err := s.authorize(r, access.OpAccountList, ulid.ULID{}); err != nil {
		s.writeError(w, err)
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	accounts, err := s.service.List(r.Context(), offset, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.authorize(r, access.OpAccountRead, id); err != nil {
		s.writeError(w, err)
		return
	}

	account, err := s.service.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toAccountResponse(account))
}

type profileRequest struct {
	Nickname    *string `json:"nickname"`
	Bio         *string `json:"bio"`
	GitHubURL   *string `json:"github_url"`
	LinkedInURL *string `json:"linkedin_url"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.authorize(r, access.OpAccountUpdate, id); err != nil {
		s.writeError(w, err)
		return
	}

	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	account, err := s.service.UpdateProfile(r.Context(), id, auth.ProfileUpdate{
		Nickname:    req.Nickname,
		Bio:         req.Bio,
		GitHubURL:   req.GitHubURL,
		LinkedInURL: req.LinkedInURL,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.authorize(r, access.OpAccountDelete, id); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.service.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type roleRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.authorize(r, access.OpRoleChange, id); err != nil {
		s.writeError(w, err)
		return
	}

	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		s.writeError(w, err)
		return
	}

	account, err := s.service.ChangeRole(r.Context(), id, role)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.authorize(r, access.OpAccountUnlock, id); err != nil {
		s.writeError(w, err)
		return
	}

	account, err := s.service.Unlock(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toAccountResponse(account))
}

type avatarResponse struct {
	AvatarURL string `json:"avatar_url"`
}

func (s *Server) handleAvatarUpload(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.authorize(r, access.OpAvatarUpload, id); err != nil {
		s.writeError(w, err)
		return
	}

	if s.avatars == nil {
		s.writeError(w, oops.Code(auth.CodeInternal).Errorf("avatar storage not configured"))
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, avatar.MaxUploadBytes+1))
	if err != nil {
		s.writeError(w, oops.Code(auth.CodeValidationFailed).Errorf("unreadable avatar payload"))
		return
	}

	url, err := s.avatars.Upload(r.Context(), id, data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, avatarResponse{AvatarURL: url})
}
