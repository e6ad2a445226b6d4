package oidc

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-authflow/authflow/internal/httpclient"
)

// DiscoverConfig builds a Config from an OIDC issuer's discovery document
// (its .well-known/openid-configuration).  The issuer must serve a document
// whose issuer claim matches exactly.
//
// Supported options: WithClientSecret, WithScopes, WithProviderCA.  The
// user info endpoint is taken from the discovery document, so the
// WithUserInfoURL option is ignored here.
func DiscoverConfig(ctx context.Context, issuer string, clientID string, redirectURL string, opt ...Option) (*Config, error) {
	const op = "oidc.DiscoverConfig"
	if issuer == "" {
		return nil, fmt.Errorf("%s: issuer is empty: %w", op, ErrInvalidParameter)
	}
	if clientID == "" {
		return nil, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}

	opts := getConfigOpts(opt...)
	client, err := httpclient.New(opts.withProviderCA)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, client), issuer)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to discover provider %s: %w", op, issuer, err)
	}

	var doc struct {
		AuthorizationEndpoint string `json:"authorization_endpoint"`
		TokenEndpoint         string `json:"token_endpoint"`
		UserInfoEndpoint      string `json:"userinfo_endpoint"`
	}
	if err := provider.Claims(&doc); err != nil {
		return nil, fmt.Errorf("%s: unable to read discovery document: %w", op, err)
	}

	discovered := make([]Option, 0, len(opt)+1)
	discovered = append(discovered, opt...)
	if doc.UserInfoEndpoint != "" {
		discovered = append(discovered, WithUserInfoURL(doc.UserInfoEndpoint))
	}
	return NewConfig(doc.AuthorizationEndpoint, doc.TokenEndpoint, clientID, redirectURL, discovered...)
}
