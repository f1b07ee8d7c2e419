package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/quickcourt/quickcourt/internal/apiclient"
	"github.com/quickcourt/quickcourt/internal/availability"
	"github.com/quickcourt/quickcourt/internal/booking"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usageError{msg: err.Error()}
	}
	if fs.NArg() > 0 {
		return usageError{msg: fmt.Sprintf("unexpected argument %q", fs.Arg(0))}
	}
	return nil
}

func parseDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local), nil
	}
	date, err := time.ParseInLocation(booking.DateLayout, strings.TrimSpace(raw), time.Local)
	if err != nil {
		return time.Time{}, usageError{msg: fmt.Sprintf("invalid -date %q: want YYYY-MM-DD", raw)}
	}
	return date, nil
}

func runLogin(ctx context.Context, env environment, args []string, out io.Writer) error {
	fs := newFlagSet("login")
	emailAddr := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *emailAddr == "" || *password == "" {
		return usageError{msg: "login requires -email and -password"}
	}

	client, err := apiclient.New(env.APIURL)
	if err != nil {
		return err
	}
	session, err := client.Login(ctx, *emailAddr, *password)
	if err != nil {
		return err
	}
	if err := saveSession(env.SessionFile, session); err != nil {
		return err
	}

	fmt.Fprintf(out, "Signed in as %s\n", session.Email)
	return nil
}

// loadSlots fetches the facility and the day's bookings in parallel and
// computes that day's slots locally.
func loadSlots(ctx context.Context, client *apiclient.Client, facilityID int64, date time.Time) (apiclient.Facility, booking.Snapshot, error) {
	var (
		facility apiclient.Facility
		existing []availability.Booking
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		facility, err = client.GetFacility(gctx, facilityID)
		if err != nil {
			return fmt.Errorf("load facility %d: %w", facilityID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		existing, err = client.ListBookings(gctx, facilityID, date)
		if err != nil {
			return fmt.Errorf("load bookings: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return apiclient.Facility{}, booking.Snapshot{}, err
	}

	log.Ctx(ctx).Debug().
		Int64("facility_id", facilityID).
		Str("date", date.Format(booking.DateLayout)).
		Int("bookings", len(existing)).
		Msg("Loaded facility and bookings")

	board := booking.NewBoard(facilityID, facility.Availability(), preloaded{bookings: existing})
	snapshot, err := board.Load(ctx, date)
	if err != nil {
		return apiclient.Facility{}, booking.Snapshot{}, err
	}
	return facility, snapshot, nil
}

// preloaded serves bookings that were already fetched.
type preloaded struct {
	bookings []availability.Booking
}

func (p preloaded) ListBookings(context.Context, int64, time.Time) ([]availability.Booking, error) {
	return p.bookings, nil
}

func runSlots(ctx context.Context, env environment, args []string, out io.Writer) error {
	fs := newFlagSet("slots")
	facilityID := fs.Int64("facility", 0, "facility ID")
	rawDate := fs.String("date", "", "date (YYYY-MM-DD), default today")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *facilityID <= 0 {
		return usageError{msg: "slots requires -facility"}
	}
	date, err := parseDate(*rawDate)
	if err != nil {
		return err
	}

	client, err := apiclient.New(env.APIURL)
	if err != nil {
		return err
	}
	if session, err := loadSession(env.SessionFile); err == nil {
		client.SetSession(session)
	}

	facility, snapshot, err := loadSlots(ctx, client, *facilityID, date)
	if err != nil {
		return err
	}

	printSlots(out, facility, snapshot)
	return nil
}

func printSlots(out io.Writer, facility apiclient.Facility, snapshot booking.Snapshot) {
	fmt.Fprintf(out, "%s on %s\n", facility.Name, snapshot.Date.Format("Mon Jan 2, 2006"))
	if len(snapshot.Slots) == 0 {
		fmt.Fprintln(out, "  no slots")
		return
	}
	for _, slot := range snapshot.Slots {
		status := "open"
		if !slot.Available {
			status = "booked"
		}
		fmt.Fprintf(out, "  %s-%s  $%.2f  %s\n", slot.StartTime, slot.EndTime, slot.Price, status)
	}
}

func runBook(ctx context.Context, env environment, args []string, out io.Writer) error {
	fs := newFlagSet("book")
	facilityID := fs.Int64("facility", 0, "facility ID")
	rawDate := fs.String("date", "", "date (YYYY-MM-DD)")
	slotStart := fs.String("slot", "", "slot start time (HH:MM)")
	notes := fs.String("notes", "", "optional notes")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *facilityID <= 0 || *rawDate == "" || *slotStart == "" {
		return usageError{msg: "book requires -facility, -date and -slot"}
	}
	date, err := parseDate(*rawDate)
	if err != nil {
		return err
	}

	session, err := loadSession(env.SessionFile)
	if err != nil {
		return err
	}

	form := booking.NewForm(*facilityID)
	form.SetDate(date)
	// Without a session nothing is fetched; Submit reports the missing sign-in.
	if !session.Valid() {
		_, err := form.Submit(ctx, session, nil, *notes)
		return err
	}

	client, err := apiclient.New(env.APIURL, apiclient.WithSession(session))
	if err != nil {
		return err
	}

	_, snapshot, err := loadSlots(ctx, client, *facilityID, date)
	if err != nil {
		return err
	}

	slot, ok := availability.Find(snapshot.Slots, *slotStart)
	if !ok {
		return fmt.Errorf("no %s slot on %s", *slotStart, date.Format(booking.DateLayout))
	}
	if err := form.Select(slot); err != nil {
		return err
	}

	created, err := form.Submit(ctx, session, client, *notes)
	if err != nil {
		var subErr booking.SubmissionError
		if errors.As(err, &subErr) && subErr.Conflict() {
			return fmt.Errorf("%s %s was just taken; run slots again to pick another time", date.Format(booking.DateLayout), slot.StartTime)
		}
		return err
	}

	fmt.Fprintf(out, "Booked %s %s-%s (reference %s, status %s)\n",
		date.Format(booking.DateLayout), slot.StartTime, slot.EndTime, created.Reference, created.Status)
	return nil
}
