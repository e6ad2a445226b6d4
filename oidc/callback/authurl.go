package callback

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-authflow/authflow/oidc"
)

// AuthURL builds the URL the user's browser is sent to in order to kick off
// the authorization code flow.  It appends the client_id, redirect_uri,
// response_type=code, scope and state query parameters to the config's
// authorization endpoint.
func AuthURL(c *oidc.Config, state string) (string, error) {
	const op = "callback.AuthURL"
	if c == nil {
		return "", fmt.Errorf("%s: provider config is nil: %w", op, oidc.ErrNilParameter)
	}
	if state == "" {
		return "", fmt.Errorf("%s: state is empty: %w", op, oidc.ErrInvalidParameter)
	}
	u, err := url.Parse(c.AuthorizationURL)
	if err != nil {
		return "", fmt.Errorf("%s: authorization URL %q is invalid: %v: %w", op, c.AuthorizationURL, err, oidc.ErrInvalidConfig)
	}
	q := u.Query()
	q.Set("client_id", c.ClientID)
	q.Set("redirect_uri", c.RedirectURL)
	q.Set("response_type", "code")
	if len(c.Scopes) > 0 {
		q.Set("scope", strings.Join(c.Scopes, " "))
	}
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
