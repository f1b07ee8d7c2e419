// Package availability derives the bookable one-hour slots of a facility for
// a single day from its operating hours and the bookings already taken.
package availability

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// SlotDuration is the fixed width of every slot.
const SlotDuration = time.Hour

const clockLayout = "15:04"

// Booking is an interval already reserved on the selected date.
type Booking struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// TimeSlot is one bookable hour. Slots are derived on every calculation and
// never stored.
type TimeSlot struct {
	StartTime string  `json:"startTime"`
	EndTime   string  `json:"endTime"`
	Available bool    `json:"available"`
	Price     float64 `json:"price"`
}

// Facility carries the two facility fields the calculator reads, in the
// serialized form the API returns them.
type Facility struct {
	OperatingHours string
	PricePerHour   string
}

// ConfigurationError describes malformed operating hours or pricing. The
// calculator recovers from it locally; it is only returned from parsing and
// validation helpers.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e ConfigurationError) Unwrap() error {
	return e.Err
}

// Calculate returns the slots for facility on date, ordered by start time.
// A zero date yields no slots. Malformed hours degrade to the default
// schedule and a malformed price to zero.
func Calculate(facility Facility, date time.Time, bookings []Booking) []TimeSlot {
	price, err := ParsePrice(facility.PricePerHour)
	if err != nil {
		price = 0
	}
	hours, _ := ParseOperatingHours(facility.OperatingHours)
	return Slots(hours, date, bookings, price)
}

// Slots generates the one-hour slots for date under hours. A trailing
// remainder shorter than SlotDuration is dropped. A slot is unavailable when
// any booking overlaps it.
func Slots(hours OperatingHours, date time.Time, bookings []Booking, pricePerHour float64) []TimeSlot {
	if date.IsZero() {
		return []TimeSlot{}
	}
	entry := hours.ForWeekday(date.Weekday())
	if entry.Closed {
		return []TimeSlot{}
	}

	openAt, closeAt := entry.Window(date)
	if !openAt.Before(closeAt) {
		return []TimeSlot{}
	}

	slots := make([]TimeSlot, 0, int(closeAt.Sub(openAt)/SlotDuration))
	current := openAt
	for {
		slotEnd := current.Add(SlotDuration)
		if slotEnd.After(closeAt) {
			break
		}
		available := true
		for _, booking := range bookings {
			if Overlaps(current, slotEnd, booking.StartTime, booking.EndTime) {
				available = false
			}
		}
		slots = append(slots, TimeSlot{
			StartTime: current.Format(clockLayout),
			EndTime:   slotEnd.Format(clockLayout),
			Available: available,
			Price:     pricePerHour,
		})
		current = slotEnd
	}
	return slots
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Bounds reapplies the slot's wall-clock times to date and returns the
// absolute interval. An end of "00:00" following a later start is read as
// midnight at the end of date.
func (s TimeSlot) Bounds(date time.Time) (time.Time, time.Time, error) {
	startOffset, err := ParseClock(s.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("slot start: %w", err)
	}
	endOffset, err := ParseClock(s.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("slot end: %w", err)
	}
	if endOffset == 0 && startOffset > 0 {
		endOffset = 24 * time.Hour
	}
	start, end := At(date, startOffset), At(date, endOffset)
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("slot %s-%s is empty", s.StartTime, s.EndTime)
	}
	return start, end, nil
}

// Find returns the slot starting at startTime ("HH:MM").
func Find(slots []TimeSlot, startTime string) (TimeSlot, bool) {
	offset, err := ParseClock(startTime)
	if err != nil {
		return TimeSlot{}, false
	}
	for _, slot := range slots {
		slotOffset, err := ParseClock(slot.StartTime)
		if err == nil && slotOffset == offset {
			return slot, true
		}
	}
	return TimeSlot{}, false
}

// ParsePrice parses a facility's hourly rate. Empty means free.
func ParsePrice(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, ConfigurationError{Field: "price_per_hour", Reason: "must be a number", Err: err}
	}
	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, ConfigurationError{Field: "price_per_hour", Reason: "must be 0 or greater"}
	}
	return price, nil
}
