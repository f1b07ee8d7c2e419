// Package apiclient talks to the QuickCourt booking API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quickcourt/quickcourt/internal/availability"
	"github.com/quickcourt/quickcourt/internal/booking"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 1 << 12
)

// Facility is the subset of a facility the client needs.
type Facility struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Sport          string `json:"sport"`
	Location       string `json:"location"`
	OperatingHours string `json:"operatingHours"`
	PricePerHour   string `json:"pricePerHour"`
	Status         string `json:"status"`
}

// Availability returns the fields the slot calculator reads.
func (f Facility) Availability() availability.Facility {
	return availability.Facility{
		OperatingHours: f.OperatingHours,
		PricePerHour:   f.PricePerHour,
	}
}

// StatusError is a non-2xx response from a read endpoint.
type StatusError struct {
	Status  int
	Message string
}

func (e StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api returned %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	session    *booking.Session
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithSession(session *booking.Session) Option {
	return func(c *Client) {
		c.session = session
	}
}

// New returns a client for the API rooted at baseURL, e.g.
// "http://localhost:8080/api/v1".
func New(baseURL string, options ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

func (c *Client) Session() *booking.Session {
	return c.session
}

func (c *Client) SetSession(session *booking.Session) {
	c.session = session
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	Token string `json:"token"`
}

// Login signs in and keeps the returned session on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*booking.Session, error) {
	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, loginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("login response carried no token")
	}

	session := &booking.Session{UserID: resp.User.ID, Email: resp.User.Email, Token: resp.Token}
	c.session = session
	return session, nil
}

func (c *Client) GetFacility(ctx context.Context, facilityID int64) (Facility, error) {
	var facility Facility
	err := c.do(ctx, http.MethodGet, "/facilities/"+strconv.FormatInt(facilityID, 10), nil, nil, &facility)
	return facility, err
}

// ListBookings returns the active bookings of facilityID on date.
func (c *Client) ListBookings(ctx context.Context, facilityID int64, date time.Time) ([]availability.Booking, error) {
	var resp []availability.Booking
	query := url.Values{"date": {date.Format(booking.DateLayout)}}
	path := "/facilities/" + strconv.FormatInt(facilityID, 10) + "/bookings"
	if err := c.do(ctx, http.MethodGet, path, query, nil, &resp); err != nil {
		return nil, err
	}

	bookings := make([]availability.Booking, 0, len(resp))
	for _, b := range resp {
		bookings = append(bookings, availability.Booking{
			StartTime: b.StartTime.In(date.Location()),
			EndTime:   b.EndTime.In(date.Location()),
		})
	}
	return bookings, nil
}

// CreateBooking submits req. Rejections come back as booking.SubmissionError
// carrying the status and the server's message.
func (c *Client) CreateBooking(ctx context.Context, req booking.Request) (*booking.Booking, error) {
	var created booking.Booking
	if err := c.do(ctx, http.MethodPost, "/bookings", nil, req, &created); err != nil {
		var statusErr StatusError
		if errors.As(err, &statusErr) {
			return nil, booking.SubmissionError{Status: statusErr.Status, Reason: statusErr.Message}
		}
		return nil, booking.SubmissionError{Err: err}
	}
	return &created, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session.Valid() {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Ctx(ctx).Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Msg("API request failed")
		return StatusError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
