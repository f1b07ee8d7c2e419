package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickcourt/quickcourt/internal/availability"
	"github.com/quickcourt/quickcourt/internal/booking"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(server.URL+"/api/v1/", WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return client
}

func TestNew_RejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8080", "ftp://example.com"} {
		_, err := New(raw)
		assert.Error(t, err, raw)
	}
}

func TestLogin_StoresSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Password != "secret123" {
			http.Error(w, "Invalid email or password", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":7,"email":"p@example.com"},"token":"tok"}`))
	})
	mux.HandleFunc("GET /api/v1/facilities/3", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":3,"name":"Center Court","operatingHours":"{}","pricePerHour":"20"}`))
	})
	client := newTestClient(t, mux)

	_, err := client.Login(context.Background(), "p@example.com", "wrong")
	var statusErr StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Status)
	assert.Equal(t, "Invalid email or password", statusErr.Message)
	assert.Nil(t, client.Session())

	session, err := client.Login(context.Background(), "p@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, &booking.Session{UserID: 7, Email: "p@example.com", Token: "tok"}, session)

	facility, err := client.GetFacility(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Center Court", facility.Name)
	assert.Equal(t, availability.Facility{OperatingHours: "{}", PricePerHour: "20"}, facility.Availability())
}

func TestListBookings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/facilities/3/bookings", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-10-19", r.URL.Query().Get("date"))
		_, _ = w.Write([]byte(`[{"startTime":"2026-10-19T14:00:00Z","endTime":"2026-10-19T15:00:00Z"}]`))
	})
	client := newTestClient(t, mux)

	date := time.Date(2026, 10, 19, 0, 0, 0, 0, time.Local)
	bookings, err := client.ListBookings(context.Background(), 3, date)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.True(t, bookings[0].StartTime.Equal(time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Local, bookings[0].StartTime.Location())
}

func TestListBookings_ServerError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.ListBookings(context.Background(), 3, time.Now())
	var statusErr StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
}

func TestCreateBooking(t *testing.T) {
	start := time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/bookings", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var req booking.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req.FacilityID {
		case 1:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(booking.Booking{
				ID:         11,
				Reference:  "QC-ABC",
				FacilityID: req.FacilityID,
				StartTime:  req.StartTime,
				EndTime:    req.EndTime,
				Status:     "pending",
			})
		case 2:
			http.Error(w, "Time slot is no longer available", http.StatusConflict)
		default:
			http.Error(w, "Facility not found", http.StatusNotFound)
		}
	})
	client := newTestClient(t, mux)
	client.SetSession(&booking.Session{Token: "tok"})

	created, err := client.CreateBooking(context.Background(), booking.Request{
		FacilityID: 1,
		Date:       "2026-10-19",
		StartTime:  start,
		EndTime:    start.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), created.ID)
	assert.Equal(t, "QC-ABC", created.Reference)
	assert.True(t, created.StartTime.Equal(start))

	_, err = client.CreateBooking(context.Background(), booking.Request{FacilityID: 2})
	var subErr booking.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.True(t, subErr.Conflict())
	assert.Equal(t, "Time slot is no longer available", subErr.Reason)

	_, err = client.CreateBooking(context.Background(), booking.Request{FacilityID: 3})
	require.ErrorAs(t, err, &subErr)
	assert.False(t, subErr.Conflict())
	assert.Equal(t, http.StatusNotFound, subErr.Status)
}

func TestCreateBooking_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	client, err := New(server.URL)
	require.NoError(t, err)
	server.Close()

	_, err = client.CreateBooking(context.Background(), booking.Request{FacilityID: 1})
	var subErr booking.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Zero(t, subErr.Status)
	assert.Error(t, errors.Unwrap(subErr))
}

func TestFormSubmitThroughClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/bookings", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Time slot is no longer available", http.StatusConflict)
	})
	client := newTestClient(t, mux)

	form := booking.NewForm(1)
	form.SetDate(time.Date(2026, 10, 19, 0, 0, 0, 0, time.Local))
	require.NoError(t, form.Select(availability.TimeSlot{StartTime: "07:00", EndTime: "08:00", Available: true}))

	_, err := form.Submit(context.Background(), &booking.Session{Token: "tok"}, client, "")
	var subErr booking.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.True(t, subErr.Conflict())

	_, stillSelected := form.Selected()
	assert.True(t, stillSelected)
}
