// internal/api/operatinghours/handlers.go
package operatinghours

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quickcourt/quickcourt/internal/api/apiutil"
	"github.com/quickcourt/quickcourt/internal/api/authz"
	"github.com/quickcourt/quickcourt/internal/availability"
	"github.com/quickcourt/quickcourt/internal/db"
)

const (
	operatingHoursQueryTimeout = 5 * time.Second
	facilityIDParam            = "id"
	dayParam                   = "day"
)

var (
	queries     *db.Queries
	queriesOnce sync.Once
)

type dayHoursRequest struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed"`
}

type operatingHoursResponse struct {
	FacilityID     int64                       `json:"facilityId"`
	OperatingHours availability.OperatingHours `json:"operatingHours"`
	Effective      availability.OperatingHours `json:"effective"`
	Malformed      bool                        `json:"malformed,omitempty"`
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

// GET /api/v1/facilities/{id}/operating-hours
func HandleOperatingHoursGet(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	facilityID, err := apiutil.PathID(r, facilityIDParam)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), operatingHoursQueryTimeout)
	defer cancel()

	facility, err := q.GetFacilityByID(ctx, facilityID)
	if err != nil {
		writeFacilityLoadError(w, r, facilityID, err)
		return
	}
	if facility.Status != db.FacilityApproved {
		if err := authz.RequireFacilityManager(r.Context(), facility.OwnerID); err != nil {
			http.Error(w, "Facility not found", http.StatusNotFound)
			return
		}
	}

	hours, parseErr := availability.ParseOperatingHours(facility.OperatingHours)
	if err := apiutil.WriteJSON(w, http.StatusOK, newOperatingHoursResponse(facilityID, hours, parseErr != nil)); err != nil {
		logger.Error().Err(err).Int64("facility_id", facilityID).Msg("Failed to write operating hours response")
	}
}

// PUT /api/v1/facilities/{id}/operating-hours
func HandleOperatingHoursReplace(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	facilityID, err := apiutil.PathID(r, facilityIDParam)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var hours availability.OperatingHours
	if err := apiutil.DecodeJSON(r, &hours); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if len(hours) == 0 {
		http.Error(w, "operating hours must include at least one day", http.StatusBadRequest)
		return
	}
	lowered := make(availability.OperatingHours, len(hours))
	for key, entry := range hours {
		lowered[strings.ToLower(strings.TrimSpace(key))] = entry
	}

	ctx, cancel := context.WithTimeout(r.Context(), operatingHoursQueryTimeout)
	defer cancel()

	facility, ok := loadManagedFacility(ctx, w, r, q, facilityID)
	if !ok {
		return
	}

	saveOperatingHours(ctx, w, r, q, facility.ID, lowered)
}

// PUT /api/v1/facilities/{id}/operating-hours/{day}
func HandleOperatingHoursUpdate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	facilityID, err := apiutil.PathID(r, facilityIDParam)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	day, err := dayFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req dayHoursRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), operatingHoursQueryTimeout)
	defer cancel()

	facility, ok := loadManagedFacility(ctx, w, r, q, facilityID)
	if !ok {
		return
	}

	// A malformed stored value is replaced starting from the defaults.
	hours, _ := availability.ParseOperatingHours(facility.OperatingHours)

	entry := availability.DayHours{Closed: req.Closed}
	if !req.Closed {
		entry.Open = strings.TrimSpace(req.Open)
		entry.Close = strings.TrimSpace(req.Close)
		if entry.Open == "" && entry.Close == "" {
			current := hours.ForWeekday(weekdayFor(day))
			if current.Closed {
				entry.Open = availability.DefaultOpensAt
				entry.Close = availability.DefaultClosesAt
			} else {
				entry.Open, entry.Close = current.Open, current.Close
			}
		}
	}
	hours[day] = entry

	saveOperatingHours(ctx, w, r, q, facility.ID, hours)
}

func saveOperatingHours(ctx context.Context, w http.ResponseWriter, r *http.Request, q *db.Queries, facilityID int64, hours availability.OperatingHours) {
	logger := log.Ctx(r.Context())

	if err := hours.Validate(); err != nil {
		var cfgErr availability.ConfigurationError
		if errors.As(err, &cfgErr) {
			http.Error(w, cfgErr.Error(), http.StatusBadRequest)
			return
		}
		logger.Error().Err(err).Int64("facility_id", facilityID).Msg("Failed to validate operating hours")
		http.Error(w, "Failed to update operating hours", http.StatusInternalServerError)
		return
	}
	hours = hours.Normalized()

	updated, err := q.UpdateFacilityOperatingHours(ctx, facilityID, hours.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Facility not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Int64("facility_id", facilityID).Msg("Failed to update operating hours")
		http.Error(w, "Failed to update operating hours", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("facility_id", facilityID).Str("operating_hours", updated.OperatingHours).Msg("Operating hours updated")
	if err := apiutil.WriteJSON(w, http.StatusOK, newOperatingHoursResponse(facilityID, hours, false)); err != nil {
		logger.Error().Err(err).Int64("facility_id", facilityID).Msg("Failed to write operating hours response")
	}
}

func loadManagedFacility(ctx context.Context, w http.ResponseWriter, r *http.Request, q *db.Queries, facilityID int64) (db.Facility, bool) {
	if _, err := authz.RequireUser(r.Context()); err != nil {
		apiutil.WriteAuthzError(w, r, err)
		return db.Facility{}, false
	}

	facility, err := q.GetFacilityByID(ctx, facilityID)
	if err != nil {
		writeFacilityLoadError(w, r, facilityID, err)
		return db.Facility{}, false
	}

	if err := authz.RequireFacilityManager(r.Context(), facility.OwnerID); err != nil {
		apiutil.WriteAuthzError(w, r, err)
		return db.Facility{}, false
	}
	return facility, true
}

func writeFacilityLoadError(w http.ResponseWriter, r *http.Request, facilityID int64, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Facility not found", http.StatusNotFound)
		return
	}
	log.Ctx(r.Context()).Error().Err(err).Int64("facility_id", facilityID).Msg("Failed to load facility")
	http.Error(w, "Failed to load facility", http.StatusInternalServerError)
}

func newOperatingHoursResponse(facilityID int64, hours availability.OperatingHours, malformed bool) operatingHoursResponse {
	effective := make(availability.OperatingHours, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		effective[availability.WeekdayKey(day)] = hours.ForWeekday(day)
	}
	return operatingHoursResponse{
		FacilityID:     facilityID,
		OperatingHours: hours,
		Effective:      effective,
		Malformed:      malformed,
	}
}

func dayFromRequest(r *http.Request) (string, error) {
	raw := strings.ToLower(strings.TrimSpace(r.PathValue(dayParam)))
	if raw == availability.DefaultKey {
		return raw, nil
	}
	for day := time.Sunday; day <= time.Saturday; day++ {
		if availability.WeekdayKey(day) == raw {
			return raw, nil
		}
	}
	return "", fmt.Errorf("day must be a weekday name or %q", availability.DefaultKey)
}

// weekdayFor maps a key back to its weekday; the default key resolves like Monday.
func weekdayFor(key string) time.Weekday {
	for day := time.Sunday; day <= time.Saturday; day++ {
		if availability.WeekdayKey(day) == key {
			return day
		}
	}
	return time.Monday
}
