package store

import (
	"fmt"

	"github.com/patrickmn/go-cache"
)

// InMem is an in-memory Store.  It satisfies the Store contract without
// surviving a process restart, which makes it the right store for tests and
// for applications that don't want persistent sessions.
type InMem struct {
	c *cache.Cache
}

// ensure that InMem implements the Store interface
var _ Store = (*InMem)(nil)

// NewInMem creates an empty in-memory store.
func NewInMem() *InMem {
	return &InMem{
		c: cache.New(cache.NoExpiration, 0),
	}
}

// Put stores the value under the key, overwriting any prior value.
func (s *InMem) Put(key string, value string) error {
	s.c.Set(key, value, cache.NoExpiration)
	return nil
}

// Get returns the value stored under the key, or ErrNotFound.
func (s *InMem) Get(key string) (string, error) {
	const op = "InMem.Get"
	v, ok := s.c.Get(key)
	if !ok {
		return "", fmt.Errorf("%s: %q: %w", op, key, ErrNotFound)
	}
	return v.(string), nil
}

// DeleteAll deletes every stored value.
func (s *InMem) DeleteAll() error {
	s.c.Flush()
	return nil
}
