package session

// RoleCodec describes the three capabilities the session requires of an
// application-defined role type: a distinguished guest value used as the
// default/unauthenticated state, and a stable serialization to and from the
// credential store's string values.  Equality comes from the role type's
// comparability.
type RoleCodec[R comparable] interface {
	// Guest returns the role's distinguished default value.
	Guest() R

	// MarshalRole serializes a role for the credential store.
	MarshalRole(r R) (string, error)

	// UnmarshalRole deserializes a stored role.
	UnmarshalRole(data string) (R, error)
}

// RoleMapper translates the raw identity claim bytes produced by a login
// into an application role.  Returning ok == false is a first-class,
// expected failure mode (an unexpected identity payload), not an
// exceptional one.
type RoleMapper[R comparable] func(identity []byte) (r R, ok bool)
