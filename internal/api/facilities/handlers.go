// internal/api/facilities/handlers.go
package facilities

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quickcourt/quickcourt/internal/api/apiutil"
	"github.com/quickcourt/quickcourt/internal/api/authz"
	"github.com/quickcourt/quickcourt/internal/api/htmx"
	"github.com/quickcourt/quickcourt/internal/availability"
	"github.com/quickcourt/quickcourt/internal/db"
	slotstempl "github.com/quickcourt/quickcourt/internal/templates/components/slots"
)

const facilityQueryTimeout = 5 * time.Second

var (
	queries     *db.Queries
	queriesOnce sync.Once
)

type createFacilityRequest struct {
	Name           string                      `json:"name"`
	Sport          string                      `json:"sport"`
	Location       string                      `json:"location"`
	OperatingHours availability.OperatingHours `json:"operatingHours"`
	PricePerHour   string                      `json:"pricePerHour"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type slotsResponse struct {
	FacilityID int64                   `json:"facilityId"`
	Date       string                  `json:"date"`
	Slots      []availability.TimeSlot `json:"slots"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *db.Queries) {
	if q == nil {
		return
	}
	queriesOnce.Do(func() {
		queries = q
	})
}

func loadQueries() *db.Queries {
	return queries
}

// GET /api/v1/facilities
func HandleFacilityList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), facilityQueryTimeout)
	defer cancel()

	facilities, err := q.ListFacilitiesByStatus(ctx, db.FacilityApproved)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list facilities")
		http.Error(w, "Failed to list facilities", http.StatusInternalServerError)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"facilities": facilities}); err != nil {
		logger.Error().Err(err).Msg("Failed to write facilities response")
	}
}

// GET /api/v1/facilities/{id}
func HandleFacilityGet(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	facility, ok := loadVisibleFacility(w, r, q)
	if !ok {
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, facility); err != nil {
		logger.Error().Err(err).Int64("facility_id", facility.ID).Msg("Failed to write facility response")
	}
}

// POST /api/v1/facilities
func HandleFacilityCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := authz.RequireRole(r.Context(), authz.RoleOwner); err != nil {
		apiutil.WriteAuthzError(w, r, err)
		return
	}
	user := authz.UserFromContext(r.Context())

	var req createFacilityRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	params, err := validateCreateFacility(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	params.OwnerID = user.ID
	params.Status = db.FacilityPending

	ctx, cancel := context.WithTimeout(r.Context(), facilityQueryTimeout)
	defer cancel()

	facility, err := q.CreateFacility(ctx, params)
	if err != nil {
		logger.Error().Err(err).Int64("owner_id", user.ID).Msg("Failed to create facility")
		http.Error(w, "Failed to create facility", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("facility_id", facility.ID).Int64("owner_id", user.ID).Msg("Facility created")
	if err := apiutil.WriteJSON(w, http.StatusCreated, facility); err != nil {
		logger.Error().Err(err).Int64("facility_id", facility.ID).Msg("Failed to write facility response")
	}
}

func validateCreateFacility(req createFacilityRequest) (db.CreateFacilityParams, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return db.CreateFacilityParams{}, apiutil.FieldError{Field: "name", Reason: "is required"}
	}

	price := strings.TrimSpace(req.PricePerHour)
	if _, err := availability.ParsePrice(price); err != nil {
		return db.CreateFacilityParams{}, err
	}
	if price == "" {
		price = "0"
	}

	hours := req.OperatingHours
	if len(hours) == 0 {
		hours = availability.DefaultOperatingHours()
	}
	lowered := make(availability.OperatingHours, len(hours))
	for key, entry := range hours {
		lowered[strings.ToLower(strings.TrimSpace(key))] = entry
	}
	if err := lowered.Validate(); err != nil {
		return db.CreateFacilityParams{}, err
	}

	return db.CreateFacilityParams{
		Name:           name,
		Sport:          strings.TrimSpace(req.Sport),
		Location:       strings.TrimSpace(req.Location),
		OperatingHours: lowered.Normalized().String(),
		PricePerHour:   price,
	}, nil
}

// PUT /api/v1/admin/facilities/{id}/status
func HandleFacilityStatusUpdate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := authz.RequireRole(r.Context(), authz.RoleAdmin); err != nil {
		apiutil.WriteAuthzError(w, r, err)
		return
	}

	facilityID, err := apiutil.PathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req statusRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	switch status {
	case db.FacilityPending, db.FacilityApproved, db.FacilityRejected:
	default:
		http.Error(w, "status must be pending, approved, or rejected", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), facilityQueryTimeout)
	defer cancel()

	facility, err := q.UpdateFacilityStatus(ctx, facilityID, status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Facility not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Int64("facility_id", facilityID).Msg("Failed to update facility status")
		http.Error(w, "Failed to update facility status", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("facility_id", facilityID).Str("status", status).Msg("Facility status updated")
	if err := apiutil.WriteJSON(w, http.StatusOK, facility); err != nil {
		logger.Error().Err(err).Int64("facility_id", facilityID).Msg("Failed to write facility response")
	}
}

// GET /api/v1/facilities/{id}/bookings?date=YYYY-MM-DD
func HandleFacilityBookings(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	facility, ok := loadVisibleFacility(w, r, q)
	if !ok {
		return
	}
	date, err := apiutil.DateFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), facilityQueryTimeout)
	defer cancel()

	intervals, err := ActiveBookings(ctx, q, facility.ID, date)
	if err != nil {
		logger.Error().Err(err).Int64("facility_id", facility.ID).Msg("Failed to list bookings")
		http.Error(w, "Failed to list bookings", http.StatusInternalServerError)
		return
	}

	// The response is a bare array of {startTime, endTime}.
	if err := apiutil.WriteJSON(w, http.StatusOK, intervals); err != nil {
		logger.Error().Err(err).Int64("facility_id", facility.ID).Msg("Failed to write bookings response")
	}
}

// GET /api/v1/facilities/{id}/slots?date=YYYY-MM-DD
func HandleFacilitySlots(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	facility, ok := loadVisibleFacility(w, r, q)
	if !ok {
		return
	}
	date, err := apiutil.DateFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), facilityQueryTimeout)
	defer cancel()

	timeSlots, err := CalculateSlots(ctx, q, facility, date)
	if err != nil {
		logger.Error().Err(err).Int64("facility_id", facility.ID).Msg("Failed to calculate slots")
		http.Error(w, "Failed to load slots", http.StatusInternalServerError)
		return
	}

	if htmx.IsRequest(r) {
		component := slotstempl.SlotPicker(slotstempl.SlotPickerData{
			FacilityID:   facility.ID,
			FacilityName: facility.Name,
			Date:         date,
			Slots:        slotstempl.NewSlotOptions(timeSlots),
		})
		headers := htmx.FragmentHeaders("slotsLoaded", map[string]any{
			"facilityId": facility.ID,
			"date":       date.Format(apiutil.DateLayout),
		})
		apiutil.RenderHTMLComponent(r.Context(), w, component, headers, "Failed to render slot picker", "Failed to render slots")
		return
	}

	resp := slotsResponse{FacilityID: facility.ID, Date: date.Format(apiutil.DateLayout), Slots: timeSlots}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Int64("facility_id", facility.ID).Msg("Failed to write slots response")
	}
}

// ActiveBookings returns the pending and confirmed booking intervals of
// facilityID on date, expressed in date's location.
func ActiveBookings(ctx context.Context, q *db.Queries, facilityID int64, date time.Time) ([]availability.Booking, error) {
	bookings, err := q.ListActiveBookingsForDate(ctx, facilityID, date.Format(apiutil.DateLayout))
	if err != nil {
		return nil, err
	}

	intervals := make([]availability.Booking, 0, len(bookings))
	for _, booking := range bookings {
		intervals = append(intervals, availability.Booking{
			StartTime: booking.StartTime.In(date.Location()),
			EndTime:   booking.EndTime.In(date.Location()),
		})
	}
	return intervals, nil
}

// CalculateSlots runs the slot calculator over facility's active bookings on date.
func CalculateSlots(ctx context.Context, q *db.Queries, facility db.Facility, date time.Time) ([]availability.TimeSlot, error) {
	intervals, err := ActiveBookings(ctx, q, facility.ID, date)
	if err != nil {
		return nil, err
	}

	return availability.Calculate(availability.Facility{
		OperatingHours: facility.OperatingHours,
		PricePerHour:   facility.PricePerHour,
	}, date, intervals), nil
}

// loadVisibleFacility loads {id}. Facilities that are not approved are only
// visible to their owner and admins.
func loadVisibleFacility(w http.ResponseWriter, r *http.Request, q *db.Queries) (db.Facility, bool) {
	facilityID, err := apiutil.PathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return db.Facility{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), facilityQueryTimeout)
	defer cancel()

	facility, err := q.GetFacilityByID(ctx, facilityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Facility not found", http.StatusNotFound)
			return db.Facility{}, false
		}
		log.Ctx(r.Context()).Error().Err(err).Int64("facility_id", facilityID).Msg("Failed to load facility")
		http.Error(w, "Failed to load facility", http.StatusInternalServerError)
		return db.Facility{}, false
	}

	if facility.Status != db.FacilityApproved {
		if err := authz.RequireFacilityManager(r.Context(), facility.OwnerID); err != nil {
			http.Error(w, "Facility not found", http.StatusNotFound)
			return db.Facility{}, false
		}
	}
	return facility, true
}
