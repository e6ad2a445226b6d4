package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/go-authflow/authflow/oidc"
	"github.com/go-authflow/authflow/store"
)

// Authorizer owns the interactive leg of the authorization code flow.  Given
// a provider config it must resolve exactly once per invocation: with the
// authorization code the provider called back with, or with an error
// (oidc.ErrAuthorizationCancelled when the user or the transport aborted the
// interactive step).
//
// callback.Server is the package's loopback-listener implementation; tests
// substitute a scripted one.
type Authorizer interface {
	BeginAuthorization(ctx context.Context, c *oidc.Config) (authorizationCode string, err error)
}

// Session is the owner of a user's client-side authentication state.  It
// sequences the authorizer, the token exchange, identity resolution and the
// caller's role mapper, and persists/restores itself through the credential
// store.  One Session instance per process is assumed; all methods are safe
// for concurrent use.
type Session[R comparable] struct {
	store      store.Store
	authorizer Authorizer
	codec      RoleCodec[R]
	logger     hclog.Logger
	timeout    time.Duration

	mu          sync.Mutex
	state       State[R]
	accessToken oidc.AccessToken
	inFlight    bool
	observers   []func(State[R])
}

// New creates a Session and synchronously restores any prior session from
// the credential store: a stored token logs the session back in, and a
// stored role that deserializes becomes the current role.  A token with an
// unreadable role restores a logged-in session under the guest role.  No
// network call is made.
//
// Supported options:
//
//	WithLogger
//	WithLoginTimeout
func New[R comparable](s store.Store, authorizer Authorizer, codec RoleCodec[R], opt ...Option) (*Session[R], error) {
	const op = "session.New"
	if s == nil {
		return nil, fmt.Errorf("%s: store is nil: %w", op, oidc.ErrNilParameter)
	}
	if authorizer == nil {
		return nil, fmt.Errorf("%s: authorizer is nil: %w", op, oidc.ErrNilParameter)
	}
	if codec == nil {
		return nil, fmt.Errorf("%s: role codec is nil: %w", op, oidc.ErrNilParameter)
	}
	opts := getSessionOpts(opt...)
	sess := &Session[R]{
		store:      s,
		authorizer: authorizer,
		codec:      codec,
		logger:     opts.withLogger,
		timeout:    opts.withLoginTimeout,
		state:      State[R]{Role: codec.Guest()},
	}
	sess.restore()
	return sess, nil
}

// restore rebuilds in-memory state from the credential store.  It runs once,
// during construction, before any observer can subscribe.
func (s *Session[R]) restore() {
	token, err := s.store.Get(store.KeyToken)
	if err != nil || token == "" {
		return
	}
	s.state.LoggedIn = true
	s.accessToken = oidc.AccessToken(token)

	raw, err := s.store.Get(store.KeyRole)
	if err == nil {
		if role, err := s.codec.UnmarshalRole(raw); err == nil {
			s.state.Role = role
			s.logger.Debug("restored session")
			return
		}
	}
	// token present but role unresolvable: stay logged in under guest
	s.logger.Debug("restored session without a readable role, continuing as guest")
}

// Login runs one authorization code flow and resolves it into the session's
// observable state: authorizer, token exchange, identity resolution, then
// the caller's role mapper.  Observers see Loading true before any network
// activity begins and exactly one terminal update per attempt, with Loading
// false at that point.
//
// A failure at any stage sets LastError and leaves LoggedIn (and the
// persisted record) untouched; in particular a mapper returning no role does
// not log an authenticated user out.  The stage error is also returned for
// callers who prefer a return value over observing state.
//
// A second Login while one is in flight is rejected with ErrLoginInProgress.
func (s *Session[R]) Login(ctx context.Context, c *oidc.Config, mapper RoleMapper[R]) error {
	const op = "Session.Login"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, oidc.ErrNilParameter)
	}
	if mapper == nil {
		return fmt.Errorf("%s: role mapper is nil: %w", op, oidc.ErrNilParameter)
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrLoginInProgress)
	}
	s.inFlight = true
	s.state.Loading = true
	s.state.LastError = ""
	st, observers := s.state, s.observersLocked()
	s.mu.Unlock()
	// observers see Loading before any network activity begins
	notify(observers, st)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	role, token, err := s.run(ctx, c, mapper)

	s.mu.Lock()
	s.inFlight = false
	s.state.Loading = false
	if err != nil {
		s.state.LastError = err.Error()
	} else {
		s.state.LoggedIn = true
		s.state.Role = role
		s.accessToken = token
	}
	st, observers = s.state, s.observersLocked()
	s.mu.Unlock()
	// the one terminal update for this attempt
	notify(observers, st)

	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// run sequences the login pipeline.  The stages are strictly sequential: no
// two of them ever run concurrently for one attempt, and each failure is
// reported with its stage's prefix.
func (s *Session[R]) run(ctx context.Context, c *oidc.Config, mapper RoleMapper[R]) (R, oidc.AccessToken, error) {
	var zero R

	code, err := s.authorizer.BeginAuthorization(ctx, c)
	if err != nil {
		return zero, "", fmt.Errorf("authorization failed: %w", err)
	}
	s.logger.Debug("authorization code received")

	token, err := oidc.Exchange(ctx, c, code)
	if err != nil {
		return zero, "", fmt.Errorf("token exchange failed: %w", err)
	}
	s.logger.Debug("authorization code exchanged")

	identity, err := oidc.ResolveIdentity(ctx, c, token)
	if err != nil {
		return zero, "", fmt.Errorf("identity resolution failed: %w", err)
	}
	s.logger.Debug("identity resolved", "bytes", len(identity))

	role, ok := mapper(identity)
	if !ok {
		return zero, "", oidc.ErrRoleMappingFailed
	}
	s.logger.Debug("identity mapped to role")

	s.persist(role, token.AccessToken)
	return role, token.AccessToken, nil
}

// persist writes the session record to the credential store.  Persistence
// failures don't fail the login: the in-memory session is authoritative
// until the next restart, so they are only logged.
func (s *Session[R]) persist(role R, token oidc.AccessToken) {
	if err := s.store.Put(store.KeyToken, string(token)); err != nil {
		s.logger.Warn("unable to persist session token", "error", err)
		return
	}
	serialized, err := s.codec.MarshalRole(role)
	if err != nil {
		s.logger.Warn("unable to serialize role, session will restore as guest", "error", err)
		return
	}
	if err := s.store.Put(store.KeyRole, serialized); err != nil {
		s.logger.Warn("unable to persist session role", "error", err)
	}
}

// Logout synchronously clears the session: LoggedIn, the in-memory access
// token and the current role (back to guest), and deletes the persisted
// record.  It's idempotent and makes no network call.
func (s *Session[R]) Logout() error {
	const op = "Session.Logout"
	s.mu.Lock()
	s.state.LoggedIn = false
	s.state.Role = s.codec.Guest()
	s.accessToken = ""
	st, observers := s.state, s.observersLocked()
	s.mu.Unlock()
	notify(observers, st)

	if err := s.store.DeleteAll(); err != nil {
		return fmt.Errorf("%s: unable to delete persisted session: %w", op, err)
	}
	return nil
}

// HasRole reports whether the session's current role equals the target.
// It's a pure read and safe to call in any state, including while a login
// attempt is loading.
func (s *Session[R]) HasRole(target R) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Role == target
}

// HasAnyRole reports whether the session's current role equals any of the
// targets.
func (s *Session[R]) HasAnyRole(targets ...R) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range targets {
		if s.state.Role == t {
			return true
		}
	}
	return false
}

// State returns a snapshot of the session's observable state.
func (s *Session[R]) State() State[R] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers an observer which is called with a state snapshot on
// every state change.  Observers are called synchronously and in
// registration order, outside the session's lock; a slow observer delays the
// session.
func (s *Session[R]) Subscribe(fn func(State[R])) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// observersLocked snapshots the observer list.  Callers must hold s.mu.
func (s *Session[R]) observersLocked() []func(State[R]) {
	observers := make([]func(State[R]), len(s.observers))
	copy(observers, s.observers)
	return observers
}

func notify[R comparable](observers []func(State[R]), st State[R]) {
	for _, fn := range observers {
		fn(st)
	}
}
