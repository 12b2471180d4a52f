package embedding

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrResponseMismatch is returned when a provider returns a different
	// number of embeddings than inputs.
	ErrResponseMismatch = errors.New("embedding: response size does not match request")

	// ErrUnknownProvider is returned by Registry.New for an unregistered type.
	ErrUnknownProvider = errors.New("embedding: unknown provider type")
)

// TransientError marks a failure worth retrying: rate limiting, server
// errors and network faults.
type TransientError struct {
	// StatusCode is the HTTP status, or zero for transport failures.
	StatusCode int
	// RetryAfter is the delay the provider asked for, if any.
	RetryAfter time.Duration
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient embedding failure (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient embedding failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// EmptyResponseError is returned when a provider answers a non-empty batch
// with zero embeddings. It is a contract violation and not retried.
type EmptyResponseError struct {
	Inputs int
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("embedding: empty response for %d inputs", e.Inputs)
}

// IsTransient reports whether err is or wraps a *TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
