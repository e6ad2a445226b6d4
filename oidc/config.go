package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-authflow/authflow/internal/httpclient"
)

type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// Config represents the configuration for one provider in a typical 3-legged
// OAuth2/OIDC authorization code flow.
type Config struct {
	// AuthorizationURL is the provider's authorization endpoint, where the
	// user's browser is sent to grant consent.
	AuthorizationURL string

	// TokenURL is the provider's token endpoint, where an authorization code
	// is exchanged for tokens.
	TokenURL string

	// UserInfoURL is the provider's user info endpoint.  It's optional and
	// only consulted when a token response carries no id_token.
	UserInfoURL string

	// ClientID is the relying party id
	ClientID string

	// ClientSecret is the relying party secret.  It's optional and when empty
	// it is never sent to the provider.
	ClientSecret ClientSecret

	// RedirectURL is the URL the provider redirects the user's browser back
	// to once consent is granted.  Its scheme determines how the callback is
	// captured.
	RedirectURL string

	// Scopes is a list of oidc scopes to request of the provider.
	Scopes []string

	// ProviderCA is an optional CA cert to use when sending requests to the provider.
	ProviderCA string
}

// NewConfig composes a new config for a provider.
// Supported options:
//
//	WithClientSecret
//	WithUserInfoURL
//	WithScopes
//	WithProviderCA
func NewConfig(authorizationURL string, tokenURL string, clientID string, redirectURL string, opt ...Option) (*Config, error) {
	const op = "oidc.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		AuthorizationURL: authorizationURL,
		TokenURL:         tokenURL,
		UserInfoURL:      opts.withUserInfoURL,
		ClientID:         clientID,
		ClientSecret:     opts.withClientSecret,
		RedirectURL:      redirectURL,
		Scopes:           opts.withScopes,
		ProviderCA:       opts.withProviderCA,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// Validate the provider configuration.  Among other validations, it verifies
// the endpoints are parseable http or https URLs and that a callback scheme
// can be derived from the redirect URL.  It doesn't verify the endpoints are
// reachable.
func (c *Config) Validate() error {
	const op = "oidc.Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidConfig)
	}
	if err := validEndpoint("authorization URL", c.AuthorizationURL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := validEndpoint("token URL", c.TokenURL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if c.UserInfoURL != "" {
		if _, err := url.Parse(c.UserInfoURL); err != nil {
			return fmt.Errorf("%s: user info URL %q is invalid: %v: %w", op, c.UserInfoURL, err, ErrInvalidConfig)
		}
	}
	if c.RedirectURL == "" {
		return fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidConfig)
	}
	if _, err := c.CallbackScheme(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func validEndpoint(name string, endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("%s is empty: %w", name, ErrInvalidConfig)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%s %q is invalid: %v: %w", name, endpoint, err, ErrInvalidConfig)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s %q scheme is not http or https: %w", name, endpoint, ErrInvalidConfig)
	}
	return nil
}

// CallbackScheme derives the scheme the provider's callback will arrive on
// by parsing the config's redirect URL.
func (c *Config) CallbackScheme() (string, error) {
	const op = "Config.CallbackScheme"
	if c == nil {
		return "", fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	u, err := url.Parse(c.RedirectURL)
	if err != nil {
		return "", fmt.Errorf("%s: redirect URL %q is invalid: %v: %w", op, c.RedirectURL, err, ErrInvalidConfig)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("%s: no scheme in redirect URL %q: %w", op, c.RedirectURL, ErrInvalidConfig)
	}
	return u.Scheme, nil
}

// HTTPClient is a helper function that creates a new http client for the
// provider configured
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "Config.HTTPClient"
	client, err := httpclient.New(c.ProviderCA)
	if err != nil {
		if errors.Is(err, httpclient.ErrInvalidCertificatePEM) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}

// HTTPClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func HTTPClientContext(ctx context.Context, client *http.Client) context.Context {
	// simple to implement as a wrapper for the coreos package
	return oidc.ClientContext(ctx, client)
}

// configOptions is the set of available options
type configOptions struct {
	withClientSecret ClientSecret
	withUserInfoURL  string
	withScopes       []string
	withProviderCA   string
}

// configDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func configDefaults() configOptions {
	return configOptions{}
}

// getConfigOpts gets the defaults and applies the opt overrides passed in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithClientSecret provides an optional client secret for the provider's config
func WithClientSecret(secret ClientSecret) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withClientSecret = secret
		}
	}
}

// WithUserInfoURL provides an optional user info endpoint for the provider's
// config.  It's only consulted when a token response carries no id_token.
func WithUserInfoURL(userInfoURL string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withUserInfoURL = userInfoURL
		}
	}
}

// WithScopes provides an optional list of scopes for the provider's config
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withScopes = scopes
		}
	}
}

// WithProviderCA provides an optional CA cert for the provider's config
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}
