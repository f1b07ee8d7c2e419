package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/quickcourt/quickcourt/internal/db"
	"github.com/quickcourt/quickcourt/internal/testutil"
)

func TestServiceScheduleValidation(t *testing.T) {
	svc, err := New()
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	svc.Start()
	t.Cleanup(func() { _ = svc.Stop() })

	noop := func(context.Context) error { return nil }

	if _, err := svc.Schedule(Job{Name: " ", Cron: "* * * * *", Run: noop}); !errors.Is(err, ErrEmptyJobName) {
		t.Fatalf("expected ErrEmptyJobName, got %v", err)
	}
	if _, err := svc.Schedule(Job{Name: "job", Run: noop}); !errors.Is(err, ErrEmptyCronExpr) {
		t.Fatalf("expected ErrEmptyCronExpr, got %v", err)
	}
	if _, err := svc.Schedule(Job{Name: "job", Cron: "* * * * *"}); !errors.Is(err, ErrNilJobFunc) {
		t.Fatalf("expected ErrNilJobFunc, got %v", err)
	}
	if _, err := svc.Schedule(Job{Name: "job", Cron: "not a cron", Run: noop}); err == nil {
		t.Fatal("expected invalid cron error")
	}
	job, err := svc.Schedule(Job{Name: "job", Cron: "*/5 * * * *", Run: noop})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if job.Name() != "job" {
		t.Fatalf("job name = %q", job.Name())
	}
}

func TestNilServiceReturnsNotInitialized(t *testing.T) {
	var svc *Service
	if _, err := svc.Schedule(Job{Name: "job", Cron: "* * * * *", Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := svc.Stop(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestRunWithTimeoutCancelsContext(t *testing.T) {
	var deadline time.Time
	err := runWithTimeout(zerolog.Nop(), Job{
		Name:    "probe",
		Timeout: 50 * time.Millisecond,
		Run: func(ctx context.Context) error {
			deadline, _ = ctx.Deadline()
			<-ctx.Done()
			return ctx.Err()
		},
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if deadline.IsZero() {
		t.Fatal("expected job context to carry a deadline")
	}
}

func TestRegisterExpiryJobsRequiresDatabase(t *testing.T) {
	svc, err := New()
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	svc.Start()
	t.Cleanup(func() { _ = svc.Stop() })

	if err := svc.RegisterExpiryJobs(nil, "*/15 * * * *"); err == nil {
		t.Fatal("expected error without database")
	}

	database := testutil.NewTestDB(t)
	if err := svc.RegisterExpiryJobs(database, "*/15 * * * *"); err != nil {
		t.Fatalf("register: %v", err)
	}
	jobs := svc.scheduler.Jobs()
	if len(jobs) != 1 || jobs[0].Name() != ExpiryJobName {
		t.Fatalf("unexpected jobs %v", jobs)
	}
}

func TestExpirePendingBookings(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()

	owner := testutil.SeedUser(t, database, "owner@example.com", db.RoleOwner)
	player := testutil.SeedUser(t, database, "player@example.com", db.RoleUser)
	facility := testutil.SeedFacility(t, database, owner.ID, "", "20")

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	create := func(ref string, start time.Time) db.Booking {
		t.Helper()
		booking, err := database.Queries.CreateBooking(ctx, db.CreateBookingParams{
			Reference:   ref,
			FacilityID:  facility.ID,
			UserID:      player.ID,
			BookingDate: start.Format("2006-01-02"),
			StartTime:   start,
			EndTime:     start.Add(time.Hour),
			TotalAmount: 20,
		})
		if err != nil {
			t.Fatalf("create booking: %v", err)
		}
		return booking
	}

	past := create("past", now.Add(-2*time.Hour))
	future := create("future", now.Add(2*time.Hour))
	confirmed := create("confirmed", now.Add(-3*time.Hour))
	if _, err := database.Queries.UpdateBookingStatus(ctx, confirmed.ID, db.BookingConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	expired, err := ExpirePendingBookings(ctx, database.Queries, now)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired booking, got %d", expired)
	}

	for id, want := range map[int64]string{
		past.ID:      db.BookingExpired,
		future.ID:    db.BookingPending,
		confirmed.ID: db.BookingConfirmed,
	} {
		got, err := database.Queries.GetBookingByID(ctx, id)
		if err != nil {
			t.Fatalf("get booking %d: %v", id, err)
		}
		if got.Status != want {
			t.Fatalf("booking %d status = %q, want %q", id, got.Status, want)
		}
	}
}
