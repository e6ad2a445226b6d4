package oidc

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// Exchange will request tokens from the provider's token endpoint, using the
// authorizationCode it received from an earlier successful authorization
// response.  It performs a single application/x-www-form-urlencoded POST
// (client_id, code, grant_type=authorization_code, redirect_uri, and
// client_secret only when the config supplies one) and never retries: any
// non-success status, transport failure or malformed response body is
// reported as ErrTokenExchangeFailed and the caller decides what to do with
// it.
func Exchange(ctx context.Context, c *Config, authorizationCode string) (*Token, error) {
	const op = "oidc.Exchange"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if authorizationCode == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}

	client, err := c.HTTPClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}

	oauth2Config := oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: string(c.ClientSecret),
		RedirectURL:  c.RedirectURL,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			TokenURL: c.TokenURL,
			// in-params auth keeps the request body on the wire format
			// providers expect and omits an empty client_secret entirely
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	oauth2Token, err := oauth2Config.Exchange(HTTPClientContext(ctx, client), authorizationCode)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange authorization code: %v: %w", op, err, ErrTokenExchangeFailed)
	}

	t, err := NewToken(oauth2Token)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrTokenExchangeFailed)
	}
	return t, nil
}
