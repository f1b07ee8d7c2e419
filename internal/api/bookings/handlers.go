// internal/api/bookings/handlers.go
package bookings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quickcourt/quickcourt/internal/api/apiutil"
	"github.com/quickcourt/quickcourt/internal/api/authz"
	"github.com/quickcourt/quickcourt/internal/api/facilities"
	"github.com/quickcourt/quickcourt/internal/availability"
	"github.com/quickcourt/quickcourt/internal/booking"
	"github.com/quickcourt/quickcourt/internal/db"
	"github.com/quickcourt/quickcourt/internal/email"
	"github.com/quickcourt/quickcourt/internal/ratelimit"
)

const (
	bookingQueryTimeout = 5 * time.Second
	maxNotesLength      = 500
)

var (
	database    *db.DB
	emailSender email.EmailSender
	throttle    *ratelimit.Throttle
	initOnce    sync.Once
)

// InitHandlers must be called during server startup before handling
// requests. sender may be nil, in which case no emails are sent.
func InitHandlers(d *db.DB, sender email.EmailSender, submissionsPerMinute int) {
	if d == nil {
		return
	}
	initOnce.Do(func() {
		database = d
		emailSender = sender
		throttle = ratelimit.NewThrottle(submissionsPerMinute, nil)
	})
}

func loadDB() *db.DB {
	return database
}

// POST /api/v1/bookings
func HandleBookingCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d := loadDB()
	if d == nil {
		logger.Error().Msg("Database not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	user := apiutil.RequireUser(w, r)
	if user == nil {
		return
	}

	if result := throttle.Allow("booking:user:" + strconv.FormatInt(user.ID, 10)); !result.Allowed {
		logger.Warn().Int64("user_id", user.ID).Dur("retry_after", result.RetryAfter).Msg("Booking submissions throttled")
		w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
		http.Error(w, "Too many booking requests. Try again shortly.", http.StatusTooManyRequests)
		return
	}

	var req booking.Request
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	date, err := validateRequest(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	scoped := logger.With().Int64("facility_id", req.FacilityID).Str("date", req.Date).Logger()
	logger = &scoped

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	var (
		created  db.Booking
		facility db.Facility
	)
	err = d.RunInTx(ctx, func(txdb *db.DB) error {
		qtx := txdb.Queries

		var err error
		facility, err = qtx.GetFacilityByID(ctx, req.FacilityID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apiutil.HandlerError{Status: http.StatusNotFound, Message: "Facility not found", Err: err}
			}
			return apiutil.HandlerError{Status: http.StatusInternalServerError, Message: "Failed to load facility", Err: err}
		}
		if facility.Status != db.FacilityApproved {
			return apiutil.HandlerError{Status: http.StatusNotFound, Message: "Facility not found"}
		}

		slot, err := ensureSlotBookable(ctx, qtx, facility, date, req)
		if err != nil {
			return err
		}

		overlapping, err := qtx.CountOverlappingBookings(ctx, facility.ID, req.StartTime, req.EndTime)
		if err != nil {
			return apiutil.HandlerError{Status: http.StatusInternalServerError, Message: "Failed to check availability", Err: err}
		}
		if overlapping > 0 {
			return apiutil.HandlerError{Status: http.StatusConflict, Message: "Time slot is no longer available", Err: booking.ErrSlotUnavailable}
		}

		created, err = qtx.CreateBooking(ctx, db.CreateBookingParams{
			Reference:   newReference(),
			FacilityID:  facility.ID,
			UserID:      user.ID,
			BookingDate: req.Date,
			StartTime:   req.StartTime,
			EndTime:     req.EndTime,
			TotalAmount: slot.Price,
			Notes:       strings.TrimSpace(req.Notes),
		})
		if err != nil {
			return apiutil.HandlerError{Status: http.StatusInternalServerError, Message: "Failed to create booking", Err: err}
		}
		return nil
	})
	if err != nil {
		apiutil.WriteHandlerError(logger.WithContext(r.Context()), w, err, "Failed to create booking")
		return
	}

	logger.Info().Int64("booking_id", created.ID).Str("reference", created.Reference).Msg("Booking created")

	email.SendAsync(r.Context(), emailSender, user.Email, email.BuildBookingConfirmation(bookingDetails(facility, created)))

	if err := apiutil.WriteJSON(w, http.StatusCreated, created); err != nil {
		logger.Error().Err(err).Int64("booking_id", created.ID).Msg("Failed to write booking response")
	}
}

// validateRequest checks the payload shape and returns the booking day.
func validateRequest(req booking.Request) (time.Time, error) {
	if req.FacilityID <= 0 {
		return time.Time{}, apiutil.FieldError{Field: "facilityId", Reason: "is required"}
	}
	date, err := apiutil.ParseDate(req.Date, "date")
	if err != nil {
		return time.Time{}, err
	}
	if req.StartTime.IsZero() {
		return time.Time{}, apiutil.FieldError{Field: "startTime", Reason: "is required"}
	}
	if req.EndTime.IsZero() {
		return time.Time{}, apiutil.FieldError{Field: "endTime", Reason: "is required"}
	}
	if !req.StartTime.Before(req.EndTime) {
		return time.Time{}, apiutil.FieldError{Field: "endTime", Reason: "must be after startTime"}
	}
	if req.TotalAmount < 0 || math.IsNaN(req.TotalAmount) || math.IsInf(req.TotalAmount, 0) {
		return time.Time{}, apiutil.FieldError{Field: "totalAmount", Reason: "must be 0 or greater"}
	}
	if len(req.Notes) > maxNotesLength {
		return time.Time{}, apiutil.FieldError{Field: "notes", Reason: fmt.Sprintf("must be at most %d characters", maxNotesLength)}
	}
	return date, nil
}

// ensureSlotBookable requires the requested interval to be exactly one of
// the facility's available slots on date, priced at the facility's rate.
func ensureSlotBookable(ctx context.Context, q *db.Queries, facility db.Facility, date time.Time, req booking.Request) (availability.TimeSlot, error) {
	timeSlots, err := facilities.CalculateSlots(ctx, q, facility, date)
	if err != nil {
		return availability.TimeSlot{}, apiutil.HandlerError{Status: http.StatusInternalServerError, Message: "Failed to calculate availability", Err: err}
	}

	start := req.StartTime.In(date.Location())
	end := req.EndTime.In(date.Location())
	slot, ok := availability.Find(timeSlots, start.Format("15:04"))
	if !ok {
		return availability.TimeSlot{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Requested time is not a bookable slot"}
	}
	slotStart, slotEnd, err := slot.Bounds(date)
	if err != nil || !slotStart.Equal(start) || !slotEnd.Equal(end) {
		return availability.TimeSlot{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Requested time is not a bookable slot", Err: err}
	}
	if !slot.Available {
		return availability.TimeSlot{}, apiutil.HandlerError{Status: http.StatusConflict, Message: "Time slot is no longer available", Err: booking.ErrSlotUnavailable}
	}
	if math.Abs(slot.Price-req.TotalAmount) > 0.005 {
		return availability.TimeSlot{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "totalAmount does not match the facility price"}
	}
	return slot, nil
}

// GET /api/v1/bookings/mine
func HandleMyBookings(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d := loadDB()
	if d == nil {
		logger.Error().Msg("Database not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	user := apiutil.RequireUser(w, r)
	if user == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	bookings, err := d.Queries.ListBookingsByUser(ctx, user.ID)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to list bookings")
		http.Error(w, "Failed to list bookings", http.StatusInternalServerError)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"bookings": bookings}); err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to write bookings response")
	}
}

// POST /api/v1/bookings/{id}/cancel
func HandleBookingCancel(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d := loadDB()
	if d == nil {
		logger.Error().Msg("Database not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	user := apiutil.RequireUser(w, r)
	if user == nil {
		return
	}

	bookingID, err := apiutil.PathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	scoped := logger.With().Int64("booking_id", bookingID).Logger()
	logger = &scoped

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	var (
		cancelled db.Booking
		facility  db.Facility
	)
	err = d.RunInTx(ctx, func(txdb *db.DB) error {
		qtx := txdb.Queries

		existing, err := qtx.GetBookingByID(ctx, bookingID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apiutil.HandlerError{Status: http.StatusNotFound, Message: "Booking not found", Err: err}
			}
			return apiutil.HandlerError{Status: http.StatusInternalServerError, Message: "Failed to load booking", Err: err}
		}

		facility, err = qtx.GetFacilityByID(ctx, existing.FacilityID)
		if err != nil {
			return apiutil.HandlerError{Status: http.StatusInternalServerError, Message: "Failed to load facility", Err: err}
		}

		if existing.UserID != user.ID {
			if err := authz.RequireFacilityManager(ctx, facility.OwnerID); err != nil {
				// Hide other users' bookings.
				return apiutil.HandlerError{Status: http.StatusNotFound, Message: "Booking not found", Err: err}
			}
		}
		if !existing.IsActive() {
			return apiutil.HandlerError{Status: http.StatusConflict, Message: "Booking is already " + existing.Status}
		}

		cancelled, err = qtx.UpdateBookingStatus(ctx, existing.ID, db.BookingCancelled)
		if err != nil {
			return apiutil.HandlerError{Status: http.StatusInternalServerError, Message: "Failed to cancel booking", Err: err}
		}
		return nil
	})
	if err != nil {
		apiutil.WriteHandlerError(logger.WithContext(r.Context()), w, err, "Failed to cancel booking")
		return
	}

	logger.Info().Msg("Booking cancelled")

	recipient := user.Email
	if cancelled.UserID != user.ID {
		recipient = ""
		if booker, err := d.Queries.GetUserByID(r.Context(), cancelled.UserID); err != nil {
			logger.Warn().Err(err).Int64("user_id", cancelled.UserID).Msg("Failed to load booking user for cancellation email")
		} else {
			recipient = booker.Email
		}
	}
	email.SendAsync(r.Context(), emailSender, recipient, email.BuildBookingCancellation(bookingDetails(facility, cancelled)))

	if err := apiutil.WriteJSON(w, http.StatusOK, cancelled); err != nil {
		logger.Error().Err(err).Msg("Failed to write booking response")
	}
}

func bookingDetails(facility db.Facility, b db.Booking) email.BookingDetails {
	return email.BookingDetails{
		Reference:    b.Reference,
		FacilityName: facility.Name,
		Location:     facility.Location,
		Start:        b.StartTime.In(time.Local),
		End:          b.EndTime.In(time.Local),
		TotalAmount:  b.TotalAmount,
		Notes:        b.Notes,
	}
}

func newReference() string {
	return "QC-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}
