// authflow provides a collection of related packages which implement a
// client-side OAuth2 / OIDC authorization code flow: a redirect coordinator
// that captures the provider callback, a token exchanger, an identity
// resolver, a persistent credential store, and a role-aware session that
// orchestrates them.
//
// See README.md
package authflow
