package db

import "time"

const (
	RoleUser  = "user"
	RoleOwner = "owner"
	RoleAdmin = "admin"

	FacilityPending  = "pending"
	FacilityApproved = "approved"
	FacilityRejected = "rejected"

	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
	BookingExpired   = "expired"
)

type User struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Phone        string    `db:"phone" json:"phone,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type Facility struct {
	ID             int64     `db:"id" json:"id"`
	OwnerID        int64     `db:"owner_id" json:"ownerId"`
	Name           string    `db:"name" json:"name"`
	Sport          string    `db:"sport" json:"sport"`
	Location       string    `db:"location" json:"location"`
	OperatingHours string    `db:"operating_hours" json:"operatingHours"`
	PricePerHour   string    `db:"price_per_hour" json:"pricePerHour"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

type Booking struct {
	ID          int64     `db:"id" json:"id"`
	Reference   string    `db:"reference" json:"reference"`
	FacilityID  int64     `db:"facility_id" json:"facilityId"`
	UserID      int64     `db:"user_id" json:"userId"`
	BookingDate string    `db:"booking_date" json:"date"`
	StartTime   time.Time `db:"start_time" json:"startTime"`
	EndTime     time.Time `db:"end_time" json:"endTime"`
	TotalAmount float64   `db:"total_amount" json:"totalAmount"`
	Notes       string    `db:"notes" json:"notes,omitempty"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// IsActive reports whether the booking still holds its interval.
func (b Booking) IsActive() bool {
	return b.Status == BookingPending || b.Status == BookingConfirmed
}
