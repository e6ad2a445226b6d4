// store provides the credential store used to persist an authenticated
// session across process restarts: an opaque durable key-value store holding
// a bearer token and a serialized role under two fixed keys.
package store

import (
	"errors"
)

const (
	// KeyToken is the fixed key the session's bearer token is stored under.
	KeyToken = "token"

	// KeyRole is the fixed key the session's serialized role is stored under.
	KeyRole = "role"
)

var ErrNotFound = errors.New("not found")

// Store is an opaque persistent key-value credential store.  Values are
// opaque strings; the session is the store's only reader and writer.
type Store interface {
	// Put stores the value under the key, overwriting any prior value.
	Put(key string, value string) error

	// Get returns the value stored under the key, or ErrNotFound.
	Get(key string) (string, error)

	// DeleteAll deletes the store's record wholesale.
	DeleteAll() error
}
