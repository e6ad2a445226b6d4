package session

// State is the observable authentication state of a Session.  It's a value
// snapshot: mutating a State has no effect on the session that produced it.
//
// The session's access token is deliberately not part of State; it never
// leaves the session except for persistence in the credential store.
type State[R comparable] struct {
	// LoggedIn reports whether the session holds an authenticated user.
	// When true the session also holds a non-empty access token.
	LoggedIn bool

	// Loading reports that a login attempt is in flight.
	Loading bool

	// LastError is the human-readable message of the last failed login
	// attempt.  It's cleared at the start of every new attempt and empty
	// when the last attempt succeeded.
	LastError string

	// Role is the session's current role; the codec's guest value when
	// unauthenticated.
	Role R
}
