package source

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable is returned when a provider call fails or yields no rows.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrIncompleteMetadata is returned when deployment fields are missing,
	// meaning the provider only holds placeholder data for the pool.
	ErrIncompleteMetadata = fmt.Errorf("incomplete metadata: %w", ErrDataUnavailable)

	// ErrMalformedResponse is returned when a response does not have the expected shape.
	ErrMalformedResponse = fmt.Errorf("malformed response: %w", ErrDataUnavailable)
)

// Unavailable wraps err so that it matches ErrDataUnavailable.
func Unavailable(op string, err error) error {
	if errors.Is(err, ErrDataUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrDataUnavailable, err)
}
