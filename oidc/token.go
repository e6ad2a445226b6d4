package oidc

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// AccessToken is an oauth access_token
type AccessToken string

// RedactedAccessToken is the redacted string or json for an oauth access_token
const RedactedAccessToken = "[REDACTED: access_token]"

// String will redact the token
func (t AccessToken) String() string {
	return RedactedAccessToken
}

// MarshalJSON will redact the token
func (t AccessToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedAccessToken)
}

// RefreshToken is an oauth refresh_token
type RefreshToken string

// RedactedRefreshToken is the redacted string or json for an oauth refresh_token
const RedactedRefreshToken = "[REDACTED: refresh_token]"

// String will redact the token
func (t RefreshToken) String() string {
	return RedactedRefreshToken
}

// MarshalJSON will redact the token
func (t RefreshToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedRefreshToken)
}

// IDToken is an oidc id_token
type IDToken string

// RedactedIDToken is the redacted string or json for an oidc id_token
const RedactedIDToken = "[REDACTED: id_token]"

// String will redact the token
func (t IDToken) String() string {
	return RedactedIDToken
}

// MarshalJSON will redact the token
func (t IDToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedIDToken)
}

// Payload decodes the id_token's payload segment (the middle segment of its
// three-part dot-delimited structure) and returns the raw claim bytes.  No
// signature verification is performed.
func (t IDToken) Payload() ([]byte, error) {
	const op = "IDToken.Payload"
	if t == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	parts := strings.Split(string(t), ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%s: malformed id_token: %w", op, ErrInvalidParameter)
	}
	payload, err := jwt.NewParser().DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%s: unable to decode id_token payload: %w", op, err)
	}
	return payload, nil
}

// Claims unmarshals the id_token's payload into the claims provided.
func (t IDToken) Claims(claims interface{}) error {
	const op = "IDToken.Claims"
	if claims == nil {
		return fmt.Errorf("%s: claims interface is nil: %w", op, ErrNilParameter)
	}
	payload, err := t.Payload()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(payload, claims); err != nil {
		return fmt.Errorf("%s: unable to unmarshal claims: %w", op, err)
	}
	return nil
}

const expirySkew = 10 * time.Second

// Token is the transient result of one authorization code exchange.  The
// AccessToken is always set; the remaining fields depend on the provider.
type Token struct {
	AccessToken  AccessToken
	RefreshToken RefreshToken
	IDToken      IDToken
	Expiry       time.Time
}

// NewToken creates a Token from an oauth2 token endpoint response.  The
// id_token, when the provider returned one, is lifted out of the response's
// extra fields.
func NewToken(t *oauth2.Token) (*Token, error) {
	const op = "oidc.NewToken"
	if t == nil {
		return nil, fmt.Errorf("%s: token is nil: %w", op, ErrNilParameter)
	}
	if t.AccessToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingAccessToken)
	}
	tk := &Token{
		AccessToken:  AccessToken(t.AccessToken),
		RefreshToken: RefreshToken(t.RefreshToken),
		Expiry:       t.Expiry,
	}
	if idToken, ok := t.Extra("id_token").(string); ok {
		tk.IDToken = IDToken(idToken)
	}
	return tk, nil
}

// Expired returns true if the token's access token is expired.  Tokens
// without an expiry never expire.
func (t *Token) Expired() bool {
	if t.Expiry.IsZero() {
		return false
	}
	return t.Expiry.Round(0).Before(time.Now().Add(expirySkew))
}

// Valid returns true if the token has an access token which hasn't expired.
func (t *Token) Valid() bool {
	if t == nil {
		return false
	}
	if t.AccessToken == "" {
		return false
	}
	return !t.Expired()
}
