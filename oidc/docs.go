/*
oidc is a package for writing clients that authenticate against an OAuth2 or
OIDC provider using the 3-legged authorization code flow.

Primary types provided by the package

* Config: the static description of one provider: authorization, token and
user info endpoints, client id/secret, redirect URL and requested scopes.
Configs are immutable once constructed and validated.

* Token: the result of an authorization code exchange: an OAuth2
access_token, along with an optional OIDC id_token, refresh_token and the
access_token expiry. The token string types redact themselves when printed
or marshaled, so they are safe to log.

Primary operations provided by the package

* Exchange: exchanges an authorization code for a Token at the provider's
token endpoint. It performs a single POST and never retries.

* ResolveIdentity: produces the raw identity claims for a Token. When the
Token carries an id_token the claims are decoded from its payload segment
without any network call; otherwise a single bearer-authenticated request is
made to the provider's user info endpoint.

* DiscoverConfig: builds a Config from an OIDC issuer's discovery document.

The oidc/callback package provides a redirect coordinator which owns the
interactive leg of the flow: it serves the redirect URL on a loopback
listener, opens the system browser at the authorization URL and waits for
the provider to deliver exactly one callback.
*/
package oidc
