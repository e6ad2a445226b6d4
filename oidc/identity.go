package oidc

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-multierror"
)

// ResolveIdentity produces the raw identity claim bytes for a token.
//
// When the token carries an id_token whose payload segment decodes, those
// bytes are returned and no network call is made.  Otherwise a single
// bearer-authenticated GET is issued to the config's user info endpoint and
// a 200 response body is returned verbatim.  The precedence matters: OIDC
// providers that embed claims in the id_token avoid an extra round trip,
// while pure-OAuth providers fall back to the user info endpoint.
func ResolveIdentity(ctx context.Context, c *Config, t *Token) ([]byte, error) {
	const op = "oidc.ResolveIdentity"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if t == nil {
		return nil, fmt.Errorf("%s: token is nil: %w", op, ErrNilParameter)
	}

	var decodeErr error
	if t.IDToken != "" {
		payload, err := t.IDToken.Payload()
		if err == nil {
			return payload, nil
		}
		// fall through to the user info endpoint, keeping the decode
		// failure so it isn't lost if the fallback fails too
		decodeErr = err
	}

	payload, err := userInfo(ctx, c, t.AccessToken)
	if err != nil {
		if decodeErr != nil {
			err = multierror.Append(decodeErr, err)
		}
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrIdentityResolutionFailed)
	}
	return payload, nil
}

// userInfo issues one bearer-authenticated GET to the user info endpoint.
func userInfo(ctx context.Context, c *Config, accessToken AccessToken) ([]byte, error) {
	const op = "oidc.userInfo"
	if c.UserInfoURL == "" {
		return nil, fmt.Errorf("%s: no user info endpoint configured: %w", op, ErrInvalidConfig)
	}
	client, err := c.HTTPClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create user info request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+string(accessToken))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: user info request failed: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read user info response: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: user info endpoint returned status %d", op, resp.StatusCode)
	}
	return body, nil
}
