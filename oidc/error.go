package oidc

import (
	"errors"
)

var (
	ErrInvalidParameter         = errors.New("invalid parameter")
	ErrNilParameter             = errors.New("nil parameter")
	ErrInvalidConfig            = errors.New("invalid provider config")
	ErrInvalidCACert            = errors.New("invalid CA certificate")
	ErrIDGeneratorFailed        = errors.New("id generation failed")
	ErrAuthorizationCancelled   = errors.New("authorization cancelled")
	ErrMissingAuthCode          = errors.New("authorization code is missing")
	ErrInvalidCallbackState     = errors.New("callback state is invalid")
	ErrTokenExchangeFailed      = errors.New("token exchange failed")
	ErrMissingAccessToken       = errors.New("access_token is missing")
	ErrIdentityResolutionFailed = errors.New("identity resolution failed")
	ErrRoleMappingFailed        = errors.New("could not map user data to a role")
)
