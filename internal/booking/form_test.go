package booking

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/quickcourt/quickcourt/internal/availability"
)

type fakeCreator struct {
	calls   int
	lastReq Request
	err     error
}

func (f *fakeCreator) CreateBooking(ctx context.Context, req Request) (*Booking, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &Booking{
		ID:          1,
		FacilityID:  req.FacilityID,
		Date:        req.Date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		TotalAmount: req.TotalAmount,
		Status:      "pending",
	}, nil
}

var (
	testDate    = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	testSession = &Session{UserID: 7, Token: "token"}
	openSlot    = availability.TimeSlot{StartTime: "07:00", EndTime: "08:00", Available: true, Price: 30}
)

func TestFormSubmit_RejectsLocally(t *testing.T) {
	tests := []struct {
		name    string
		session *Session
		date    time.Time
		slot    *availability.TimeSlot
		wantErr error
	}{
		{"no session", nil, testDate, &openSlot, ErrNoSession},
		{"empty token", &Session{UserID: 7}, testDate, &openSlot, ErrNoSession},
		{"no date", testSession, time.Time{}, nil, ErrNoDate},
		{"no slot", testSession, testDate, nil, ErrNoSlot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := NewForm(3)
			if !tt.date.IsZero() {
				form.SetDate(tt.date)
			}
			if tt.slot != nil {
				if err := form.Select(*tt.slot); err != nil {
					t.Fatalf("select: %v", err)
				}
			}
			creator := &fakeCreator{}

			_, err := form.Submit(context.Background(), tt.session, creator, "")

			var selErr SelectionError
			if !errors.As(err, &selErr) {
				t.Fatalf("expected SelectionError, got %v", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if creator.calls != 0 {
				t.Fatalf("expected no network call, got %d", creator.calls)
			}
		})
	}
}

func TestFormSubmit_BuildsRequest(t *testing.T) {
	form := NewForm(3)
	form.SetDate(testDate)
	if err := form.Select(openSlot); err != nil {
		t.Fatalf("select: %v", err)
	}
	creator := &fakeCreator{}

	created, err := form.Submit(context.Background(), testSession, creator, "  bring balls ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	req := creator.lastReq
	if req.FacilityID != 3 || req.Date != "2026-10-19" {
		t.Fatalf("unexpected request %+v", req)
	}
	if !req.StartTime.Equal(time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)) ||
		!req.EndTime.Equal(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected interval %s - %s", req.StartTime, req.EndTime)
	}
	if req.TotalAmount != 30 || req.Notes != "bring balls" {
		t.Fatalf("unexpected amount/notes %+v", req)
	}
	if created == nil || created.Status != "pending" {
		t.Fatalf("unexpected booking %+v", created)
	}
	if _, ok := form.Selected(); ok {
		t.Fatal("selection should be cleared after a successful submission")
	}
}

func TestFormSubmit_WrapsCreatorFailure(t *testing.T) {
	form := NewForm(3)
	form.SetDate(testDate)
	_ = form.Select(openSlot)

	creator := &fakeCreator{err: errors.New("connection refused")}
	_, err := form.Submit(context.Background(), testSession, creator, "")

	var subErr SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if _, ok := form.Selected(); !ok {
		t.Fatal("selection should survive a failed submission")
	}

	creator.err = SubmissionError{Status: http.StatusConflict, Reason: "slot already booked"}
	_, err = form.Submit(context.Background(), testSession, creator, "")
	if !errors.As(err, &subErr) || !subErr.Conflict() {
		t.Fatalf("expected conflict SubmissionError, got %v", err)
	}
	if subErr.Error() != "booking failed: slot already booked" {
		t.Fatalf("unexpected message %q", subErr.Error())
	}
}

func TestFormSelect_RejectsUnavailableSlot(t *testing.T) {
	form := NewForm(3)
	taken := openSlot
	taken.Available = false

	err := form.Select(taken)
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestFormSetDate_ClearsSelectionOnNewDay(t *testing.T) {
	form := NewForm(3)
	form.SetDate(testDate)
	_ = form.Select(openSlot)

	form.SetDate(testDate.Add(3 * time.Hour))
	if _, ok := form.Selected(); !ok {
		t.Fatal("same day should keep the selection")
	}

	form.SetDate(testDate.AddDate(0, 0, 1))
	if _, ok := form.Selected(); ok {
		t.Fatal("new day should clear the selection")
	}
}
