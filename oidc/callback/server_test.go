package callback

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-authflow/authflow/oidc"
)

// testFreePort grabs a free loopback port for a callback listener.
func testFreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// testBrowser returns an opener that drives the URL it's given like a
// user's browser would: it follows the provider's redirect back to the
// callback listener.
func testBrowser(t *testing.T) func(string) error {
	t.Helper()
	return func(u string) error {
		go func() {
			resp, err := http.Get(u)
			if err == nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
			}
		}()
		return nil
	}
}

func TestServer_BeginAuthorization(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		p := oidc.StartTestProvider(t)
		p.SetExpectedAuthCode("abc123")
		redirectURL := fmt.Sprintf("http://127.0.0.1:%d/callback", testFreePort(t))
		c := p.TestConfig(redirectURL)

		s := NewServer(WithOpenURL(testBrowser(t)))
		code, err := s.BeginAuthorization(ctx, c)
		require.NoError(err)
		assert.Equal("abc123", code)
		assert.Equal(1, p.AuthorizeCount())
	})
	t.Run("provider-returns-error-param", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		redirectURL := fmt.Sprintf("http://127.0.0.1:%d/callback", testFreePort(t))
		c, err := oidc.NewConfig("https://idp.test/authorize", "https://idp.test/token", "client-id", redirectURL)
		require.NoError(err)

		// the scripted browser goes straight back to the callback with the
		// provider's access_denied error
		opener := func(u string) error {
			go func() {
				resp, err := http.Get(redirectURL + "?error=access_denied&error_description=user+cancelled")
				if err == nil {
					_ = resp.Body.Close()
				}
			}()
			return nil
		}

		s := NewServer(WithOpenURL(opener))
		_, err = s.BeginAuthorization(ctx, c)
		require.Error(err)
		assert.ErrorIs(err, oidc.ErrAuthorizationCancelled)
		assert.Contains(err.Error(), "access_denied")
	})
	t.Run("callback-without-code", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		p := oidc.StartTestProvider(t)
		p.SetExpectedAuthCode("")
		redirectURL := fmt.Sprintf("http://127.0.0.1:%d/callback", testFreePort(t))
		c := p.TestConfig(redirectURL)

		s := NewServer(WithOpenURL(testBrowser(t)))
		_, err := s.BeginAuthorization(ctx, c)
		require.Error(err)
		assert.ErrorIs(err, oidc.ErrMissingAuthCode)
	})
	t.Run("callback-state-mismatch", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		redirectURL := fmt.Sprintf("http://127.0.0.1:%d/callback", testFreePort(t))
		c, err := oidc.NewConfig("https://idp.test/authorize", "https://idp.test/token", "client-id", redirectURL)
		require.NoError(err)

		opener := func(u string) error {
			go func() {
				resp, err := http.Get(redirectURL + "?code=abc123&state=bogus")
				if err == nil {
					_ = resp.Body.Close()
				}
			}()
			return nil
		}

		s := NewServer(WithOpenURL(opener))
		_, err = s.BeginAuthorization(ctx, c)
		require.Error(err)
		assert.ErrorIs(err, oidc.ErrInvalidCallbackState)
	})
	t.Run("unusable-callback-scheme", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		c := &oidc.Config{
			AuthorizationURL: "https://idp.test/authorize",
			TokenURL:         "https://idp.test/token",
			ClientID:         "client-id",
			RedirectURL:      "myapp://callback",
		}
		s := NewServer(WithOpenURL(func(string) error { return nil }))
		_, err := s.BeginAuthorization(ctx, c)
		require.Error(err)
		assert.ErrorIs(err, oidc.ErrInvalidConfig)
	})
	t.Run("no-callback-scheme", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		c := &oidc.Config{
			AuthorizationURL: "https://idp.test/authorize",
			TokenURL:         "https://idp.test/token",
			ClientID:         "client-id",
			RedirectURL:      "127.0.0.1:8000/callback",
		}
		s := NewServer(WithOpenURL(func(string) error { return nil }))
		_, err := s.BeginAuthorization(ctx, c)
		require.Error(err)
		assert.ErrorIs(err, oidc.ErrInvalidConfig)
	})
	t.Run("browser-launch-failure", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		redirectURL := fmt.Sprintf("http://127.0.0.1:%d/callback", testFreePort(t))
		c, err := oidc.NewConfig("https://idp.test/authorize", "https://idp.test/token", "client-id", redirectURL)
		require.NoError(err)

		s := NewServer(WithOpenURL(func(string) error { return fmt.Errorf("no browser installed") }))
		_, err = s.BeginAuthorization(ctx, c)
		require.Error(err)
		assert.ErrorIs(err, oidc.ErrAuthorizationCancelled)
	})
	t.Run("ctx-cancelled-while-waiting", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		redirectURL := fmt.Sprintf("http://127.0.0.1:%d/callback", testFreePort(t))
		c, err := oidc.NewConfig("https://idp.test/authorize", "https://idp.test/token", "client-id", redirectURL)
		require.NoError(err)

		waitCtx, cancel := context.WithCancel(ctx)
		s := NewServer(WithOpenURL(func(string) error {
			cancel()
			return nil
		}))
		_, err = s.BeginAuthorization(waitCtx, c)
		require.Error(err)
		assert.ErrorIs(err, oidc.ErrAuthorizationCancelled)
	})
	t.Run("timeout-while-waiting", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		redirectURL := fmt.Sprintf("http://127.0.0.1:%d/callback", testFreePort(t))
		c, err := oidc.NewConfig("https://idp.test/authorize", "https://idp.test/token", "client-id", redirectURL)
		require.NoError(err)

		s := NewServer(
			WithOpenURL(func(string) error { return nil }),
			WithTimeout(20*time.Millisecond),
		)
		_, err = s.BeginAuthorization(ctx, c)
		require.Error(err)
		assert.ErrorIs(err, oidc.ErrAuthorizationCancelled)
		assert.Contains(err.Error(), "timed out")
	})
}

func TestAuthURL(t *testing.T) {
	t.Parallel()

	c, err := oidc.NewConfig(
		"https://idp.test/authorize",
		"https://idp.test/token",
		"client-id",
		"http://127.0.0.1:8000/callback",
		oidc.WithScopes("openid", "email"),
	)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		got, err := AuthURL(c, "st_1234")
		require.NoError(err)
		assert.Contains(got, "https://idp.test/authorize?")
		assert.Contains(got, "client_id=client-id")
		assert.Contains(got, "response_type=code")
		assert.Contains(got, "redirect_uri=http%3A%2F%2F127.0.0.1%3A8000%2Fcallback")
		assert.Contains(got, "scope=openid+email")
		assert.Contains(got, "state=st_1234")
	})
	t.Run("missing-state", func(t *testing.T) {
		t.Parallel()
		_, err := AuthURL(c, "")
		require.ErrorIs(t, err, oidc.ErrInvalidParameter)
	})
	t.Run("nil-config", func(t *testing.T) {
		t.Parallel()
		_, err := AuthURL(nil, "st_1234")
		require.ErrorIs(t, err, oidc.ErrNilParameter)
	})
}
