package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/quickcourt/quickcourt/internal/availability"
)

type fetchCall struct {
	date    time.Time
	release chan struct{}
}

// gatedFetcher blocks each fetch until the test releases it.
type gatedFetcher struct {
	mu       sync.Mutex
	bookings map[string][]availability.Booking
	calls    chan fetchCall
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		bookings: make(map[string][]availability.Booking),
		calls:    make(chan fetchCall, 4),
	}
}

func (f *gatedFetcher) ListBookings(ctx context.Context, facilityID int64, date time.Time) ([]availability.Booking, error) {
	release := make(chan struct{})
	f.calls <- fetchCall{date: date, release: release}
	<-release

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bookings[date.Format(DateLayout)], nil
}

func boardFacility() availability.Facility {
	return availability.Facility{
		OperatingHours: `{"default":{"open":"06:00","close":"09:00"}}`,
		PricePerHour:   "20",
	}
}

func TestBoardLoad_AppliesBookings(t *testing.T) {
	fetcher := newGatedFetcher()
	fetcher.bookings["2026-10-19"] = []availability.Booking{{
		StartTime: time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC),
	}}
	board := NewBoard(1, boardFacility(), fetcher)

	go func() {
		call := <-fetcher.calls
		close(call.release)
	}()

	snapshot, err := board.Load(context.Background(), testDate)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snapshot.Loading || len(snapshot.Slots) != 3 || snapshot.Slots[1].Available {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func TestBoardLoad_LatestSelectionWins(t *testing.T) {
	fetcher := newGatedFetcher()
	first := testDate
	second := testDate.AddDate(0, 0, 1)
	fetcher.bookings[first.Format(DateLayout)] = []availability.Booking{{
		StartTime: time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	}}
	board := NewBoard(1, boardFacility(), fetcher)

	var applied []Snapshot
	var appliedMu sync.Mutex
	board.OnChange(func(s Snapshot) {
		appliedMu.Lock()
		applied = append(applied, s)
		appliedMu.Unlock()
	})

	firstErr := make(chan error, 1)
	go func() {
		_, err := board.Load(context.Background(), first)
		firstErr <- err
	}()
	firstCall := <-fetcher.calls

	secondErr := make(chan error, 1)
	go func() {
		_, err := board.Load(context.Background(), second)
		secondErr <- err
	}()
	secondCall := <-fetcher.calls

	// The newer fetch resolves first; the older one resolves afterwards.
	close(secondCall.release)
	if err := <-secondErr; err != nil {
		t.Fatalf("second load: %v", err)
	}
	close(firstCall.release)
	if err := <-firstErr; !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale for first load, got %v", err)
	}

	snapshot := board.Snapshot()
	if !snapshot.Date.Equal(second) {
		t.Fatalf("board date = %s, want %s", snapshot.Date, second)
	}
	for _, slot := range snapshot.Slots {
		if !slot.Available {
			t.Fatalf("stale bookings applied to %s: %+v", second.Format(DateLayout), snapshot.Slots)
		}
	}

	appliedMu.Lock()
	defer appliedMu.Unlock()
	if len(applied) != 1 || !applied[0].Date.Equal(second) {
		t.Fatalf("expected exactly one applied snapshot for the second date, got %+v", applied)
	}
}

func TestBoardLoad_CancelsSupersededFetch(t *testing.T) {
	ctxSeen := make(chan context.Context, 1)
	fetcher := fetcherFunc(func(ctx context.Context, facilityID int64, date time.Time) ([]availability.Booking, error) {
		if date.Equal(testDate) {
			ctxSeen <- ctx
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, nil
	})
	board := NewBoard(1, boardFacility(), fetcher)

	done := make(chan error, 1)
	go func() {
		_, err := board.Load(context.Background(), testDate)
		done <- err
	}()
	<-ctxSeen

	if _, err := board.Load(context.Background(), testDate.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
}

func TestBoardLoad_FetchErrorKeepsSlotsWithoutBookings(t *testing.T) {
	fetcher := fetcherFunc(func(ctx context.Context, facilityID int64, date time.Time) ([]availability.Booking, error) {
		return nil, errors.New("backend unavailable")
	})
	board := NewBoard(1, boardFacility(), fetcher)

	snapshot, err := board.Load(context.Background(), testDate)
	if err == nil {
		t.Fatal("expected fetch error")
	}
	if snapshot.Err == nil || snapshot.Loading || len(snapshot.Slots) != 3 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func TestBoardSetFacility_RecomputesSlots(t *testing.T) {
	fetcher := fetcherFunc(func(ctx context.Context, facilityID int64, date time.Time) ([]availability.Booking, error) {
		return nil, nil
	})
	board := NewBoard(1, boardFacility(), fetcher)
	if _, err := board.Load(context.Background(), testDate); err != nil {
		t.Fatalf("load: %v", err)
	}

	snapshot := board.SetFacility(availability.Facility{OperatingHours: `{"monday":{"closed":true}}`})
	if len(snapshot.Slots) != 0 {
		t.Fatalf("expected no slots after closing Monday, got %d", len(snapshot.Slots))
	}
}

type fetcherFunc func(ctx context.Context, facilityID int64, date time.Time) ([]availability.Booking, error)

func (f fetcherFunc) ListBookings(ctx context.Context, facilityID int64, date time.Time) ([]availability.Booking, error) {
	return f(ctx, facilityID, date)
}
