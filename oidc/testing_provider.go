package oidc

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// TestProvider is a local server that supports test provider capabilities
// which make writing tests much easier.  It serves the authorization, token
// and user info endpoints of one provider, plus an OIDC discovery document,
// and it counts the requests made to each endpoint so tests can assert which
// network calls a flow did (or didn't) make.
type TestProvider struct {
	httpServer *httptest.Server

	mu                  sync.Mutex
	clientID            string
	clientSecret        string
	expectedAuthCode    string
	accessToken         string
	replySubject        string
	replyUserinfo       map[string]interface{}
	customClaims        map[string]interface{}
	omitIDToken         bool
	tokenReplyStatus    int
	userinfoReplyStatus int
	authorizeCount      int
	tokenCount          int
	userinfoCount       int
	lastTokenForm       url.Values

	privKey *ecdsa.PrivateKey

	t *testing.T
}

// StartTestProvider creates a disposable TestProvider.  The server is
// stopped when the test completes.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(err)

	p := &TestProvider{
		clientID:         "test-client-id",
		clientSecret:     "fido",
		expectedAuthCode: "test-code",
		accessToken:      "notarealtoken",
		replySubject:     "alice@example.com",
		replyUserinfo: map[string]interface{}{
			"sub":   "alice@example.com",
			"email": "alice@example.com",
			"name":  "alice smith",
		},
		privKey: privKey,
		t:       t,
	}
	p.httpServer = httptest.NewServer(p)
	t.Cleanup(p.httpServer.Close)
	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the provider's base URL, which also serves as its issuer.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// AuthorizationURL returns the provider's authorization endpoint.
func (p *TestProvider) AuthorizationURL() string { return p.httpServer.URL + "/authorize" }

// TokenURL returns the provider's token endpoint.
func (p *TestProvider) TokenURL() string { return p.httpServer.URL + "/token" }

// UserInfoURL returns the provider's user info endpoint.
func (p *TestProvider) UserInfoURL() string { return p.httpServer.URL + "/userinfo" }

// TestConfig composes a Config wired to the provider's endpoints.
func (p *TestProvider) TestConfig(redirectURL string, opt ...Option) *Config {
	p.t.Helper()
	p.mu.Lock()
	clientID, clientSecret := p.clientID, p.clientSecret
	p.mu.Unlock()
	opts := append([]Option{
		WithClientSecret(ClientSecret(clientSecret)),
		WithUserInfoURL(p.UserInfoURL()),
	}, opt...)
	c, err := NewConfig(p.AuthorizationURL(), p.TokenURL(), clientID, redirectURL, opts...)
	require.NoError(p.t, err)
	return c
}

// SetClientCreds sets the client id/secret the provider requires.
func (p *TestProvider) SetClientCreds(id, secret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID, p.clientSecret = id, secret
}

// SetExpectedAuthCode sets the authorization code the provider hands out and
// the token endpoint requires.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetOmitIDToken omits the id_token from token endpoint responses, which
// forces clients onto their user info fallback.
func (p *TestProvider) SetOmitIDToken(omit bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = omit
}

// SetCustomClaims sets additional claims carried in the id_token payload.
func (p *TestProvider) SetCustomClaims(claims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = claims
}

// SetUserInfoReply sets the user info endpoint's response document.
func (p *TestProvider) SetUserInfoReply(doc map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyUserinfo = doc
}

// SetTokenReplyStatus forces the token endpoint to reply with the status
// given.  Zero restores normal behavior.
func (p *TestProvider) SetTokenReplyStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenReplyStatus = status
}

// SetUserInfoReplyStatus forces the user info endpoint to reply with the
// status given.  Zero restores normal behavior.
func (p *TestProvider) SetUserInfoReplyStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userinfoReplyStatus = status
}

// AuthorizeCount returns the number of authorization endpoint requests seen.
func (p *TestProvider) AuthorizeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authorizeCount
}

// TokenCount returns the number of token endpoint requests seen.
func (p *TestProvider) TokenCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenCount
}

// UserInfoCount returns the number of user info endpoint requests seen.
func (p *TestProvider) UserInfoCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userinfoCount
}

// LastTokenForm returns the form values of the last token endpoint request,
// so tests can assert on the exact wire format sent.
func (p *TestProvider) LastTokenForm() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTokenForm
}

// testSignIDToken bundles the standard and custom claims into a signed
// id_token.  Callers must hold p.mu.
func (p *TestProvider) testSignIDToken() string {
	p.t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": p.Addr(),
		"sub": p.replySubject,
		"aud": []string{p.clientID},
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
	}
	for k, v := range p.customClaims {
		claims[k] = v
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(p.privKey)
	require.NoError(p.t, err)
	return signed
}

// ServeHTTP implements the test provider's http endpoints.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		p.writeJSON(w, http.StatusOK, map[string]interface{}{
			"issuer":                 p.Addr(),
			"authorization_endpoint": p.Addr() + "/authorize",
			"token_endpoint":         p.Addr() + "/token",
			"userinfo_endpoint":      p.Addr() + "/userinfo",
			"jwks_uri":               p.Addr() + "/.well-known/jwks.json",
			"id_token_signing_alg_values_supported": []string{"ES256"},
		})
	case "/authorize":
		p.authorizeCount++
		p.handleAuthorize(w, req)
	case "/token":
		p.tokenCount++
		p.handleToken(w, req)
	case "/userinfo":
		p.userinfoCount++
		p.handleUserInfo(w, req)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *TestProvider) handleAuthorize(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	switch {
	case q.Get("response_type") != "code":
		p.writeAuthorizeError(w, q, "unsupported_response_type")
		return
	case q.Get("client_id") != p.clientID:
		p.writeAuthorizeError(w, q, "unauthorized_client")
		return
	}
	redirect, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || redirect.Scheme == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	loc := redirect.Query()
	loc.Set("code", p.expectedAuthCode)
	if state := q.Get("state"); state != "" {
		loc.Set("state", state)
	}
	redirect.RawQuery = loc.Encode()
	http.Redirect(w, req, redirect.String(), http.StatusFound)
}

func (p *TestProvider) writeAuthorizeError(w http.ResponseWriter, q url.Values, authErr string) {
	redirect, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || redirect.Scheme == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	loc := redirect.Query()
	loc.Set("error", authErr)
	if state := q.Get("state"); state != "" {
		loc.Set("state", state)
	}
	redirect.RawQuery = loc.Encode()
	w.Header().Set("Location", redirect.String())
	w.WriteHeader(http.StatusFound)
}

func (p *TestProvider) handleToken(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := req.ParseForm(); err != nil {
		p.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid_request"})
		return
	}
	p.lastTokenForm = req.PostForm

	if p.tokenReplyStatus != 0 {
		p.writeJSON(w, p.tokenReplyStatus, map[string]interface{}{"error": "invalid_client"})
		return
	}
	switch {
	case req.PostForm.Get("grant_type") != "authorization_code",
		req.PostForm.Get("client_id") != p.clientID,
		p.clientSecret != "" && req.PostForm.Get("client_secret") != p.clientSecret,
		req.PostForm.Get("code") != p.expectedAuthCode:
		p.writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"error": "invalid_grant"})
		return
	}

	reply := map[string]interface{}{
		"access_token": p.accessToken,
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if !p.omitIDToken {
		reply["id_token"] = p.testSignIDToken()
	}
	p.writeJSON(w, http.StatusOK, reply)
}

func (p *TestProvider) handleUserInfo(w http.ResponseWriter, req *http.Request) {
	if p.userinfoReplyStatus != 0 {
		p.writeJSON(w, p.userinfoReplyStatus, map[string]interface{}{"error": "server_error"})
		return
	}
	if req.Header.Get("Authorization") != fmt.Sprintf("Bearer %s", p.accessToken) {
		p.writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"error": "invalid_token"})
		return
	}
	p.writeJSON(w, http.StatusOK, p.replyUserinfo)
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, status int, doc interface{}) {
	p.t.Helper()
	body, err := json.Marshal(doc)
	require.NoError(p.t, err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
