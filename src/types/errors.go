package types

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrPropertyNotFound = errors.New("property not found or inactive")
	ErrBookingNotFound  = errors.New("booking not found")

	// ErrUnavailable is the availability-race loser's error: another
	// confirmed booking holds an overlapping date range.
	ErrUnavailable = errors.New("property is not available for the selected dates")

	ErrInvalidDateRange = errors.New("check-out date must be after check-in date")
	ErrGuestLimit       = errors.New("guest count exceeds property capacity")
	ErrWrongMethod      = errors.New("operation does not match the booking payment method")
	ErrAlreadyPaid      = errors.New("booking has already been paid")
	ErrAlreadyCancelled = errors.New("booking is already cancelled")
	ErrNotCancellable   = errors.New("booking can no longer be cancelled")
	ErrNotPending       = errors.New("booking is not awaiting payment")
	ErrProofMissing     = errors.New("no proof of payment has been submitted")
)

// GatewayError wraps an upstream payment-provider failure. It is retryable
// and never alters booking state, which is what distinguishes it from
// ErrUnavailable.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s failed: %s", e.Op, e.Err.Error())
}

func (e *GatewayError) Unwrap() error { return e.Err }

// RefundFailure records a refund call that failed after the booking was
// already rolled back. The booking is cancelled regardless; this error is
// for the operational alert, since it represents money owed to a guest.
type RefundFailure struct {
	BookingID uint
	Reference string
	Err       error
}

func (e *RefundFailure) Error() string {
	return fmt.Sprintf("refund for booking %d (ref %s) failed: %s", e.BookingID, e.Reference, e.Err.Error())
}

func (e *RefundFailure) Unwrap() error { return e.Err }

// ErrorStatus maps the error taxonomy to an HTTP status code.
func ErrorStatus(err error) int {
	var gwErr *GatewayError
	switch {
	case errors.Is(err, ErrPropertyNotFound), errors.Is(err, ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrAlreadyCancelled), errors.Is(err, ErrNotCancellable):
		return http.StatusConflict
	case errors.Is(err, ErrWrongMethod), errors.Is(err, ErrAlreadyPaid), errors.Is(err, ErrNotPending), errors.Is(err, ErrProofMissing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidDateRange), errors.Is(err, ErrGuestLimit):
		return http.StatusBadRequest
	case errors.As(err, &gwErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
