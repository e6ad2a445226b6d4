/*
callback provides the redirect coordinator for the 3-legged authorization
code flow: the interactive leg where the user grants consent in a browser
and the provider redirects back with a one-time authorization code.

The package's Server serves the configured redirect URL on a loopback
listener, opens the system browser at the provider's authorization URL and
suspends until the provider delivers exactly one of: a callback carrying the
authorization code, a user cancellation, or an error.  It is a one-shot
coordinator: each BeginAuthorization call owns its own listener and state
value, and resolves exactly once.
*/
package callback
