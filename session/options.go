package session

import (
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/go-authflow/authflow/oidc"
)

// Option defines a common functional options type for the session package
type Option = oidc.Option

// sessionOptions is the set of available options for Session functions
type sessionOptions struct {
	withLogger       hclog.Logger
	withLoginTimeout time.Duration
}

// sessionDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func sessionDefaults() sessionOptions {
	return sessionOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

// getSessionOpts gets the session defaults and applies the opt overrides
// passed in
func getSessionOpts(opt ...Option) sessionOptions {
	opts := sessionDefaults()
	oidc.ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger for the session.  The default
// discards everything.
func WithLogger(logger hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*sessionOptions); ok && logger != nil {
			o.withLogger = logger
		}
	}
}

// WithLoginTimeout bounds an entire login attempt, including the interactive
// redirect wait.  The default is no timeout, matching the interactive step
// being bounded only by the user.
func WithLoginTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*sessionOptions); ok {
			o.withLoginTimeout = d
		}
	}
}
