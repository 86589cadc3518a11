// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/auth"
	"github.com/accountd/accountd/internal/avatar"
	"github.com/accountd/accountd/pkg/errutil"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// statusFor maps domain error codes onto HTTP status codes.
func statusFor(err error) (int, string) {
	if errors.Is(err, auth.ErrNotFound) {
		return http.StatusNotFound, ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return http.StatusInternalServerError, ""
	}

	code, _ := oopsErr.Code().(string)
	switch code {
	case auth.CodeValidationFailed, avatar.CodeUnsupportedType:
		return http.StatusBadRequest, code
	case auth.CodeDuplicateEmail:
		return http.StatusConflict, code
	case auth.CodeInvalidCredentials, auth.CodeInvalidToken, auth.CodeUnauthenticated:
		return http.StatusUnauthorized, code
	case auth.CodeAccountLocked:
		return http.StatusLocked, code
	case auth.CodeAccountUnverified, auth.CodeForbidden:
		return http.StatusForbidden, code
	default:
		return http.StatusInternalServerError, code
	}
}

// writeError translates err into a JSON error response. Internal
// failures get a generic message so repository details never leak to
// clients.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		errutil.LogError(s.logger, "request failed", err)
		message = "internal server error"
	} else if oopsErr, ok := oops.AsOops(err); ok {
		// Surface the public message without wrap prefixes.
		message = oopsErr.Error()
	}
	if errors.Is(err, auth.ErrNotFound) {
		message = "account not found"
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response already committed
	json.NewEncoder(w).Encode(errorBody{Error: message, Code: code})
}

// writeJSON serializes v with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encoding failed", "error", err)
	}
}
