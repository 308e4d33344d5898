package helpers

import (
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type TrackerError struct {
	Message string
	Cause   error
}

func (e *TrackerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TrackerError) Unwrap() error {
	return e.Cause
}

// Distinct error types per failure domain, matched with errors.As at the
// call sites that care which loop to stop.
type ConfigurationError struct{ TrackerError }
type NetworkError struct{ TrackerError }
type StreamError struct{ TrackerError }
type DatabaseError struct{ TrackerError }

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times with exponential backoff.
func RetryWithBackoff(operation string, maxRetries int, baseDelay time.Duration, fn func() (interface{}, error)) (interface{}, error) {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		fmt.Printf("Warning: Attempt %d/%d failed for %s: %v. Retrying in %v\n", attempt+1, maxRetries, operation, err, delay)
		time.Sleep(delay)
	}

	return nil, lastErr
}

// -----------------------------------------------------------------------------

// RetryFixed attempts the operation up to maxAttempts times with a constant
// delay between attempts. Used for subscriber/stream reconnection where the
// contract is a bounded number of evenly spaced tries.
func RetryFixed(operation string, maxAttempts int, delay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == maxAttempts-1 {
			break
		}
		time.Sleep(delay)
	}

	return &TrackerError{
		Message: fmt.Sprintf("%s failed after %d attempts", operation, maxAttempts),
		Cause:   lastErr,
	}
}
