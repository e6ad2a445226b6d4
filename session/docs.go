/*
session provides the authentication session: the single owner of a user's
client-side login state for the authorization code flow.

A Session is parameterized over an application-defined role type.  The
application supplies a RoleCodec describing its role's three required
capabilities (a guest default, and a stable serialization both ways), and a
RoleMapper translating the raw identity claim bytes produced by a login into
one of its roles.  The session never inspects role semantics beyond that.

Construction restores any prior session from the credential store without a
network call.  Login sequences the redirect coordinator, the token exchange,
identity resolution and the role mapper, persists the result, and exposes
the outcome through an observable State: exactly one terminal state update
per attempt, with Loading false at that point.  A failed attempt never logs
an already-authenticated user out; only Logout does.
*/
package session
