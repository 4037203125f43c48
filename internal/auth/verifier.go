/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"errors"
	"strings"
)

// ErrUnauthenticated is returned for missing, invalid or expired identity tokens.
var ErrUnauthenticated = errors.New("unauthenticated")

// Verifier resolves identity tokens to owner ids. It fails closed: every error, and a
// verifier without a signing key, yields ErrUnauthenticated.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for HS256 tokens signed with secret.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// Enabled reports whether the verifier can accept any token.
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// Verify returns the owner id carried by token.
func (v *Verifier) Verify(token string) (string, error) {
	claims, err := v.claims(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (v *Verifier) claims(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if !v.Enabled() || token == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := Parse(v.secret, token)
	if err != nil || claims == nil || strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}
