package reservation

import (
	"errors"
	"fmt"
)

// RequestError is a non-success upstream response other than payment-required.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("reservation: upstream returned %d: %s", e.Status, e.Body)
}

// ErrPaymentRequired means the commit call came back 402: the booking cannot
// complete through this channel and must be finished out-of-band.
var ErrPaymentRequired = errors.New("reservation: payment or card on file required")

// ErrVenueNotInResponse is returned in strict mode when the availability
// response carries no entry for the requested venue id.
var ErrVenueNotInResponse = errors.New("reservation: availability response has no entry for venue")
