package session

import (
	"errors"
)

var (
	// ErrLoginInProgress is returned when Login is called while another
	// login attempt on the same session is still in flight.
	ErrLoginInProgress = errors.New("login already in progress")
)
