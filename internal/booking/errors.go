package booking

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoSession       = errors.New("sign in to book a slot")
	ErrNoDate          = errors.New("select a date")
	ErrNoSlot          = errors.New("select a time slot")
	ErrSlotUnavailable = errors.New("the selected time slot is already booked")
	ErrStale           = errors.New("result superseded by a newer date selection")
)

// SelectionError rejects a submission before any network call is made.
type SelectionError struct {
	Err error
}

func (e SelectionError) Error() string {
	if e.Err == nil {
		return "invalid selection"
	}
	return e.Err.Error()
}

func (e SelectionError) Unwrap() error {
	return e.Err
}

// SubmissionError is returned when the booking API rejects a request or
// cannot be reached. Reason carries the message the backend sent, if any.
type SubmissionError struct {
	Status int
	Reason string
	Err    error
}

func (e SubmissionError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("booking failed: %s", e.Reason)
	case e.Status != 0:
		return fmt.Sprintf("booking failed: %s", http.StatusText(e.Status))
	case e.Err != nil:
		return fmt.Sprintf("booking failed: %v", e.Err)
	default:
		return "booking failed"
	}
}

func (e SubmissionError) Unwrap() error {
	return e.Err
}

// Conflict reports whether the backend rejected the slot as already taken.
func (e SubmissionError) Conflict() bool {
	return e.Status == http.StatusConflict
}
