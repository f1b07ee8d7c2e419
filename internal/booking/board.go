package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/quickcourt/quickcourt/internal/availability"
)

// Fetcher loads the bookings already made for a facility on a date.
type Fetcher interface {
	ListBookings(ctx context.Context, facilityID int64, date time.Time) ([]availability.Booking, error)
}

// Snapshot is the board's state for the currently selected date.
type Snapshot struct {
	Date    time.Time
	Slots   []availability.TimeSlot
	Loading bool
	Err     error
}

// Board keeps the slot list for one facility in step with the selected date.
// Each date selection fetches that day's bookings; when selections overlap,
// only the latest one is applied and earlier fetches are cancelled and their
// results discarded.
type Board struct {
	facilityID int64
	fetcher    Fetcher

	mu       sync.Mutex
	facility availability.Facility
	seq      uint64
	date     time.Time
	bookings []availability.Booking
	loading  bool
	err      error
	cancel   context.CancelFunc
	onChange func(Snapshot)
}

func NewBoard(facilityID int64, facility availability.Facility, fetcher Fetcher) *Board {
	return &Board{
		facilityID: facilityID,
		facility:   facility,
		fetcher:    fetcher,
	}
}

// OnChange registers fn to receive every applied snapshot. fn runs on the
// goroutine that resolved the fetch.
func (b *Board) OnChange(fn func(Snapshot)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// SetFacility replaces the facility's hours and price; slots for the current
// date are recomputed from the bookings already loaded.
func (b *Board) SetFacility(facility availability.Facility) Snapshot {
	b.mu.Lock()
	b.facility = facility
	snapshot := b.snapshotLocked()
	notify := b.onChange
	b.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
	return snapshot
}

// Load selects date and fetches its bookings. It returns ErrStale when
// another selection was made before the fetch resolved; the board then
// reflects the newer selection only.
func (b *Board) Load(ctx context.Context, date time.Time) (Snapshot, error) {
	fetchCtx, seq := b.begin(ctx, date)
	if b.fetcher == nil {
		return b.resolve(seq, nil, errors.New("bookings fetcher not configured"))
	}
	bookings, err := b.fetcher.ListBookings(fetchCtx, b.facilityID, date)
	return b.resolve(seq, bookings, err)
}

// SelectDate is the asynchronous form of Load. Results reach the OnChange
// callback; stale results are dropped silently.
func (b *Board) SelectDate(ctx context.Context, date time.Time) {
	go func() {
		_, _ = b.Load(ctx, date)
	}()
}

// Snapshot returns the current state.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Board) begin(ctx context.Context, date time.Time) (context.Context, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.seq++
	b.date = date
	b.bookings = nil
	b.loading = true
	b.err = nil
	return fetchCtx, b.seq
}

func (b *Board) resolve(seq uint64, bookings []availability.Booking, fetchErr error) (Snapshot, error) {
	b.mu.Lock()
	if seq != b.seq {
		b.mu.Unlock()
		return Snapshot{}, ErrStale
	}

	b.cancel()
	b.cancel = nil
	b.loading = false
	if fetchErr != nil {
		b.err = fetchErr
		b.bookings = nil
	} else {
		b.bookings = bookings
	}
	snapshot := b.snapshotLocked()
	notify := b.onChange
	b.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
	return snapshot, fetchErr
}

func (b *Board) snapshotLocked() Snapshot {
	bookings := make([]availability.Booking, len(b.bookings))
	copy(bookings, b.bookings)
	return Snapshot{
		Date:    b.date,
		Slots:   availability.Calculate(b.facility, b.date, bookings),
		Loading: b.loading,
		Err:     b.err,
	}
}
