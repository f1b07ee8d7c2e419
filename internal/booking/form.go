// Package booking holds the client side of making a booking: the slot a user
// has selected, the local checks run before anything is sent, and the
// request handed to the booking API.
package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/quickcourt/quickcourt/internal/availability"
)

const DateLayout = "2006-01-02"

// Session identifies the signed-in user. A nil session or one without a
// token means nobody is signed in.
type Session struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email,omitempty"`
	Token  string `json:"token"`
}

func (s *Session) Valid() bool {
	return s != nil && strings.TrimSpace(s.Token) != ""
}

// Request is the payload sent to POST /bookings.
type Request struct {
	FacilityID  int64     `json:"facilityId"`
	Date        string    `json:"date"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	TotalAmount float64   `json:"totalAmount"`
	Notes       string    `json:"notes,omitempty"`
}

// Booking is a booking as returned by the API.
type Booking struct {
	ID          int64     `json:"id"`
	Reference   string    `json:"reference"`
	FacilityID  int64     `json:"facilityId"`
	UserID      int64     `json:"userId"`
	Date        string    `json:"date"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	TotalAmount float64   `json:"totalAmount"`
	Notes       string    `json:"notes,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Creator submits booking requests. Implementations return a SubmissionError
// when the backend rejects the request.
type Creator interface {
	CreateBooking(ctx context.Context, req Request) (*Booking, error)
}

// Form tracks the date and the single slot a user has picked for one
// facility. It is not safe for concurrent use.
type Form struct {
	facilityID int64
	date       time.Time
	selected   *availability.TimeSlot
}

func NewForm(facilityID int64) *Form {
	return &Form{facilityID: facilityID}
}

func (f *Form) FacilityID() int64 {
	return f.facilityID
}

// SetDate changes the selected date. Changing to a different day clears the
// selected slot, since its availability was computed for the old day.
func (f *Form) SetDate(date time.Time) {
	if !f.date.IsZero() && sameDay(f.date, date) {
		return
	}
	f.date = date
	f.selected = nil
}

func (f *Form) Date() (time.Time, bool) {
	return f.date, !f.date.IsZero()
}

// Select replaces the selected slot. Unavailable slots cannot be selected.
func (f *Form) Select(slot availability.TimeSlot) error {
	if !slot.Available {
		return SelectionError{Err: ErrSlotUnavailable}
	}
	f.selected = &slot
	return nil
}

func (f *Form) Selected() (availability.TimeSlot, bool) {
	if f.selected == nil {
		return availability.TimeSlot{}, false
	}
	return *f.selected, true
}

func (f *Form) ClearSelection() {
	f.selected = nil
}

// Request validates the form and builds the API payload. Every failure is a
// SelectionError.
func (f *Form) Request(session *Session, notes string) (Request, error) {
	if !session.Valid() {
		return Request{}, SelectionError{Err: ErrNoSession}
	}
	if f.date.IsZero() {
		return Request{}, SelectionError{Err: ErrNoDate}
	}
	if f.selected == nil {
		return Request{}, SelectionError{Err: ErrNoSlot}
	}

	start, end, err := f.selected.Bounds(f.date)
	if err != nil {
		return Request{}, SelectionError{Err: err}
	}

	return Request{
		FacilityID:  f.facilityID,
		Date:        f.date.Format(DateLayout),
		StartTime:   start,
		EndTime:     end,
		TotalAmount: f.selected.Price,
		Notes:       strings.TrimSpace(notes),
	}, nil
}

// Submit validates the form and hands the request to creator. Selection
// problems are returned without calling creator. Any creator failure comes
// back as a SubmissionError. A successful submission clears the selection.
func (f *Form) Submit(ctx context.Context, session *Session, creator Creator, notes string) (*Booking, error) {
	req, err := f.Request(session, notes)
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, SubmissionError{Err: errors.New("booking client not configured")}
	}

	created, err := creator.CreateBooking(ctx, req)
	if err != nil {
		var subErr SubmissionError
		if errors.As(err, &subErr) {
			return nil, subErr
		}
		return nil, SubmissionError{Err: err}
	}

	f.selected = nil
	return created, nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
