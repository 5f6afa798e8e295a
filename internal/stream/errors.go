package stream

import (
	"errors"

	"github.com/e7canasta/stream-buffer/internal/sorteddeque"
)

var (
	// ErrOrderViolation is returned when an item key does not increase.
	// It ends the producer loop generation.
	ErrOrderViolation = sorteddeque.ErrOrderViolation

	// ErrNotFound is returned by cursor and range queries with no
	// qualifying item, unless the query ignores it.
	ErrNotFound = sorteddeque.ErrNotFound

	// ErrInsufficientItems is returned by strict reads that find fewer
	// than the requested number of items.
	ErrInsufficientItems = errors.New("streambuffer: fewer items available than requested")

	// ErrNotStarted is returned when a reader is requested while no
	// generation is running.
	ErrNotStarted = errors.New("streambuffer: stream buffer not started")

	// ErrSource wraps failures of the producer's Open and Read.
	ErrSource = errors.New("streambuffer: source error")

	// ErrAutoDropEnabled is returned by Drop when eviction is automatic.
	ErrAutoDropEnabled = errors.New("streambuffer: manual drop requires auto drop disabled")

	// ErrInvalidConfig is returned for unusable options.
	ErrInvalidConfig = errors.New("streambuffer: invalid configuration")
)
