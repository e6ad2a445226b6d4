package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-authflow/authflow/oidc"
	"github.com/go-authflow/authflow/util"
)

// result carries the terminal outcome of one interactive authorization.
type result struct {
	code string
	err  error
}

// Server coordinates the interactive leg of the authorization code flow.
// It is stateless between calls and safe to reuse: every BeginAuthorization
// call owns its own loopback listener, state value and result channel.
type Server struct {
	openURL func(string) error
	timeout time.Duration
	succHTM string
	failHTM string
}

// NewServer creates a redirect coordinator.
// Supported options:
//
//	WithOpenURL
//	WithTimeout
//	WithResponseHTML
func NewServer(opt ...Option) *Server {
	opts := getServerOpts(opt...)
	return &Server{
		openURL: opts.withOpenURL,
		timeout: opts.withTimeout,
		succHTM: opts.withSuccessHTML,
		failHTM: opts.withErrorHTML,
	}
}

// BeginAuthorization runs one interactive authorization and resolves exactly
// once: with the authorization code the provider called back with, or with
// an error.
//
// It derives the callback scheme from the config's redirect URL
// (ErrInvalidConfig when none can be extracted), listens on the redirect
// URL's host, opens the system browser at the authorization URL, and
// suspends until the provider redirects the browser back.  A callback
// carrying an error parameter, a cancelled ctx, a failed browser launch or
// an elapsed timeout all resolve to ErrAuthorizationCancelled; a callback
// without a code parameter resolves to ErrMissingAuthCode.
func (s *Server) BeginAuthorization(ctx context.Context, c *oidc.Config) (string, error) {
	const op = "callback.BeginAuthorization"
	if c == nil {
		return "", fmt.Errorf("%s: provider config is nil: %w", op, oidc.ErrNilParameter)
	}
	scheme, err := c.CallbackScheme()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%s: callback scheme %q is not a loopback scheme: %w", op, scheme, oidc.ErrInvalidConfig)
	}

	state, err := oidc.NewID("st")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	authURL, err := AuthURL(c, state)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	redirect, err := url.Parse(c.RedirectURL)
	if err != nil {
		return "", fmt.Errorf("%s: redirect URL %q is invalid: %v: %w", op, c.RedirectURL, err, oidc.ErrInvalidConfig)
	}
	callbackPath := redirect.Path
	if callbackPath == "" {
		callbackPath = "/"
	}

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return "", fmt.Errorf("%s: unable to listen on %s: %v: %w", op, redirect.Host, err, oidc.ErrAuthorizationCancelled)
	}

	resultCh := make(chan result, 1)
	var once sync.Once

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, req *http.Request) {
		var r result
		delivered := false
		once.Do(func() {
			delivered = true
			r = s.readCallback(op, state, req)
		})
		if !delivered {
			// a second browser request after the flow resolved (a reload,
			// a favicon fetch on the same path)
			w.WriteHeader(http.StatusGone)
			return
		}
		if r.err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(s.failHTM))
		} else {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s.succHTM))
		}
		resultCh <- r
	})

	srv := &http.Server{Handler: mux}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	serveErrCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
	}()

	if err := s.openURL(authURL); err != nil {
		return "", fmt.Errorf("%s: unable to open browser: %v: %w", op, err, oidc.ErrAuthorizationCancelled)
	}

	var timeoutCh <-chan time.Time
	if s.timeout > 0 {
		timer := time.NewTimer(s.timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case r := <-resultCh:
		return r.code, r.err
	case err := <-serveErrCh:
		return "", fmt.Errorf("%s: callback server failed: %v: %w", op, err, oidc.ErrAuthorizationCancelled)
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %v: %w", op, ctx.Err(), oidc.ErrAuthorizationCancelled)
	case <-timeoutCh:
		return "", fmt.Errorf("%s: timed out waiting for the provider callback: %w", op, oidc.ErrAuthorizationCancelled)
	}
}

// readCallback parses the provider's callback request into a terminal
// result.  The code parameter is required; its absence is a failure, not a
// silent retry.
func (s *Server) readCallback(op string, state string, req *http.Request) result {
	// get parameters from either the body or query parameters.
	// FormValue prioritizes body values, if found
	if authErr := req.FormValue("error"); authErr != "" {
		msg := authErr
		if desc := req.FormValue("error_description"); desc != "" {
			msg = fmt.Sprintf("%s: %s", authErr, desc)
		}
		return result{err: fmt.Errorf("%s: %s: %w", op, msg, oidc.ErrAuthorizationCancelled)}
	}
	if reqState := req.FormValue("state"); reqState != state {
		return result{err: fmt.Errorf("%s: callback state and authorization state are not equal: %w", op, oidc.ErrInvalidCallbackState)}
	}
	code := req.FormValue("code")
	if code == "" {
		return result{err: fmt.Errorf("%s: callback has no code parameter: %w", op, oidc.ErrMissingAuthCode)}
	}
	return result{code: code}
}

// DefaultSuccessHTML is the page shown to the user once the provider's
// callback delivered an authorization code.
const DefaultSuccessHTML = `<!DOCTYPE html><html><body>
<p>Signed in. You can close this window and return to the application.</p>
</body></html>`

// DefaultErrorHTML is the page shown to the user when the provider's
// callback did not deliver an authorization code.
const DefaultErrorHTML = `<!DOCTYPE html><html><body>
<p>Sign in failed. You can close this window and retry from the application.</p>
</body></html>`

// serverOptions is the set of available options for Server functions
type serverOptions struct {
	withOpenURL     func(string) error
	withTimeout     time.Duration
	withSuccessHTML string
	withErrorHTML   string
}

// serverDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func serverDefaults() serverOptions {
	return serverOptions{
		withOpenURL:     util.OpenURL,
		withSuccessHTML: DefaultSuccessHTML,
		withErrorHTML:   DefaultErrorHTML,
	}
}

// getServerOpts gets the server defaults and applies the opt overrides
// passed in
func getServerOpts(opt ...Option) serverOptions {
	opts := serverDefaults()
	oidc.ApplyOpts(&opts, opt...)
	return opts
}

// Option defines a common functional options type for the callback package
type Option = oidc.Option

// WithOpenURL overrides how the coordinator launches the user's browser.
// It's how tests substitute a scripted browser for the real one.
func WithOpenURL(openURL func(string) error) Option {
	return func(o interface{}) {
		if o, ok := o.(*serverOptions); ok && openURL != nil {
			o.withOpenURL = openURL
		}
	}
}

// WithTimeout bounds the wait for the provider callback.  The default is no
// timeout: the interactive step is bounded only by the user and the ctx
// passed to BeginAuthorization.
func WithTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*serverOptions); ok {
			o.withTimeout = d
		}
	}
}

// WithResponseHTML overrides the pages written to the user's browser on
// success and on failure.
func WithResponseHTML(successHTML, errorHTML string) Option {
	return func(o interface{}) {
		if o, ok := o.(*serverOptions); ok {
			if successHTML != "" {
				o.withSuccessHTML = successHTML
			}
			if errorHTML != "" {
				o.withErrorHTML = errorHTML
			}
		}
	}
}
