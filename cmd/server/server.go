// cmd/server/server.go
package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/quickcourt/quickcourt/internal/api"
	"github.com/quickcourt/quickcourt/internal/api/auth"
	"github.com/quickcourt/quickcourt/internal/api/bookings"
	"github.com/quickcourt/quickcourt/internal/api/facilities"
	"github.com/quickcourt/quickcourt/internal/api/operatinghours"
	"github.com/quickcourt/quickcourt/internal/config"
)

func newServer(cfg *config.Config) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithAuth,
		api.WithRecovery,
		api.WithRequestID,
	)

	registerRoutes(router)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Auth routes
	mux.HandleFunc("POST /api/v1/auth/register", auth.HandleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", auth.HandleLogin)
	mux.HandleFunc("POST /api/v1/auth/logout", auth.HandleLogout)
	mux.HandleFunc("GET /api/v1/auth/me", auth.HandleMe)

	// Facility routes
	mux.HandleFunc("GET /api/v1/facilities", facilities.HandleFacilityList)
	mux.HandleFunc("POST /api/v1/facilities", facilities.HandleFacilityCreate)
	mux.HandleFunc("GET /api/v1/facilities/{id}", facilities.HandleFacilityGet)
	mux.HandleFunc("GET /api/v1/facilities/{id}/bookings", facilities.HandleFacilityBookings)
	mux.HandleFunc("GET /api/v1/facilities/{id}/slots", facilities.HandleFacilitySlots)

	// Operating hours routes
	mux.HandleFunc("GET /api/v1/facilities/{id}/operating-hours", operatinghours.HandleOperatingHoursGet)
	mux.HandleFunc("PUT /api/v1/facilities/{id}/operating-hours", operatinghours.HandleOperatingHoursReplace)
	mux.HandleFunc("PUT /api/v1/facilities/{id}/operating-hours/{day}", operatinghours.HandleOperatingHoursUpdate)

	// Booking routes
	mux.HandleFunc("POST /api/v1/bookings", bookings.HandleBookingCreate)
	mux.HandleFunc("GET /api/v1/bookings/mine", bookings.HandleMyBookings)
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", bookings.HandleBookingCancel)

	// Admin routes
	mux.Handle("PUT /api/v1/admin/facilities/{id}/status",
		api.WithAdminAuth(http.HandlerFunc(facilities.HandleFacilityStatusUpdate)))
}
