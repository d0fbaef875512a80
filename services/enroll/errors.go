package enroll

import (
	"errors"
	"fmt"
)

// Typed errors surfaced to controllers. Synchronous callers get these
// mapped to HTTP codes; the webhook path only ever propagates
// ErrRetryable so the gateway redelivers.
var (
	ErrCourseNotFound     = errors.New("course not found")
	ErrCourseNotPublished = errors.New("course is not published")
	ErrAlreadyEnrolled    = errors.New("user already enrolled in this course")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrAlreadyRefunded    = errors.New("enrollment already refunded")
	ErrInvalidStatus      = errors.New("invalid enrollment status")
	ErrProgressOutOfRange = errors.New("progress must be between 0 and 100")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrRetryable marks a store failure the payment gateway should
	// repair by redelivering the webhook.
	ErrRetryable = errors.New("transient store failure")
)

func retryable(err error) error {
	return fmt.Errorf("%w: %w", ErrRetryable, err)
}

// IsRetryable reports whether the webhook endpoint should ask the
// gateway for redelivery instead of acknowledging.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}
