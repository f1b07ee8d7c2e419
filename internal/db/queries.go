package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

// DBTX is satisfied by both *sqlx.DB and *sqlx.Tx.
type DBTX interface {
	sqlx.ExtContext
}

type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const userColumns = `id, name, email, phone, password_hash, role, created_at`

type CreateUserParams struct {
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Role         string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	id, err := q.insert(ctx,
		`INSERT INTO users (name, email, phone, password_hash, role) VALUES (?, ?, ?, ?, ?)`,
		arg.Name, arg.Email, arg.Phone, arg.PasswordHash, arg.Role,
	)
	if err != nil {
		return User{}, err
	}
	return q.GetUserByID(ctx, id)
}

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	var user User
	err := sqlx.GetContext(ctx, q.db, &user, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return user, err
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := sqlx.GetContext(ctx, q.db, &user, `SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)
	return user, err
}

const facilityColumns = `id, owner_id, name, sport, location, operating_hours, price_per_hour, status, created_at, updated_at`

type CreateFacilityParams struct {
	OwnerID        int64
	Name           string
	Sport          string
	Location       string
	OperatingHours string
	PricePerHour   string
	Status         string
}

func (q *Queries) CreateFacility(ctx context.Context, arg CreateFacilityParams) (Facility, error) {
	id, err := q.insert(ctx,
		`INSERT INTO facilities (owner_id, name, sport, location, operating_hours, price_per_hour, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		arg.OwnerID, arg.Name, arg.Sport, arg.Location, arg.OperatingHours, arg.PricePerHour, arg.Status,
	)
	if err != nil {
		return Facility{}, err
	}
	return q.GetFacilityByID(ctx, id)
}

func (q *Queries) GetFacilityByID(ctx context.Context, id int64) (Facility, error) {
	var facility Facility
	err := sqlx.GetContext(ctx, q.db, &facility, `SELECT `+facilityColumns+` FROM facilities WHERE id = ?`, id)
	return facility, err
}

func (q *Queries) ListFacilitiesByStatus(ctx context.Context, status string) ([]Facility, error) {
	facilities := []Facility{}
	err := sqlx.SelectContext(ctx, q.db, &facilities,
		`SELECT `+facilityColumns+` FROM facilities WHERE status = ? ORDER BY name, id`, status)
	return facilities, err
}

func (q *Queries) UpdateFacilityOperatingHours(ctx context.Context, id int64, operatingHours string) (Facility, error) {
	if err := q.updateOne(ctx,
		`UPDATE facilities SET operating_hours = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		operatingHours, id,
	); err != nil {
		return Facility{}, err
	}
	return q.GetFacilityByID(ctx, id)
}

func (q *Queries) UpdateFacilityStatus(ctx context.Context, id int64, status string) (Facility, error) {
	if err := q.updateOne(ctx,
		`UPDATE facilities SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	); err != nil {
		return Facility{}, err
	}
	return q.GetFacilityByID(ctx, id)
}

const bookingColumns = `id, reference, facility_id, user_id, booking_date, start_time, end_time, total_amount, notes, status, created_at`

type CreateBookingParams struct {
	Reference   string
	FacilityID  int64
	UserID      int64
	BookingDate string
	StartTime   time.Time
	EndTime     time.Time
	TotalAmount float64
	Notes       string
}

// CreateBooking inserts a pending booking. Times are stored in UTC so that
// interval comparisons in SQL order correctly.
func (q *Queries) CreateBooking(ctx context.Context, arg CreateBookingParams) (Booking, error) {
	id, err := q.insert(ctx,
		`INSERT INTO bookings (reference, facility_id, user_id, booking_date, start_time, end_time, total_amount, notes, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending')`,
		arg.Reference, arg.FacilityID, arg.UserID, arg.BookingDate,
		arg.StartTime.UTC(), arg.EndTime.UTC(), arg.TotalAmount, arg.Notes,
	)
	if err != nil {
		return Booking{}, err
	}
	return q.GetBookingByID(ctx, id)
}

func (q *Queries) GetBookingByID(ctx context.Context, id int64) (Booking, error) {
	var booking Booking
	err := sqlx.GetContext(ctx, q.db, &booking, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	return booking, err
}

// ListActiveBookingsForDate returns pending and confirmed bookings for a
// facility on date (YYYY-MM-DD), ordered by start time.
func (q *Queries) ListActiveBookingsForDate(ctx context.Context, facilityID int64, date string) ([]Booking, error) {
	bookings := []Booking{}
	err := sqlx.SelectContext(ctx, q.db, &bookings,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE facility_id = ? AND booking_date = ? AND status IN ('pending', 'confirmed')
		 ORDER BY start_time`,
		facilityID, date,
	)
	return bookings, err
}

func (q *Queries) ListBookingsByUser(ctx context.Context, userID int64) ([]Booking, error) {
	bookings := []Booking{}
	err := sqlx.SelectContext(ctx, q.db, &bookings,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY start_time DESC`, userID)
	return bookings, err
}

// CountOverlappingBookings counts active bookings of facilityID that
// intersect [start, end).
func (q *Queries) CountOverlappingBookings(ctx context.Context, facilityID int64, start, end time.Time) (int64, error) {
	var count int64
	err := sqlx.GetContext(ctx, q.db, &count,
		`SELECT COUNT(*) FROM bookings
		 WHERE facility_id = ? AND status IN ('pending', 'confirmed')
		   AND start_time < ? AND end_time > ?`,
		facilityID, end.UTC(), start.UTC(),
	)
	return count, err
}

func (q *Queries) UpdateBookingStatus(ctx context.Context, id int64, status string) (Booking, error) {
	if err := q.updateOne(ctx, `UPDATE bookings SET status = ? WHERE id = ?`, status, id); err != nil {
		return Booking{}, err
	}
	return q.GetBookingByID(ctx, id)
}

// ExpirePendingBookings marks pending bookings that started before cutoff as
// expired and returns how many were changed.
func (q *Queries) ExpirePendingBookings(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx,
		`UPDATE bookings SET status = 'expired' WHERE status = 'pending' AND start_time < ?`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (q *Queries) insert(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// updateOne runs an UPDATE and returns sql.ErrNoRows when it matched nothing.
func (q *Queries) updateOne(ctx context.Context, query string, args ...any) error {
	result, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
