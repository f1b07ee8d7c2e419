package availability

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

// 2026-10-19 is a Monday.
var testMonday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(2026, 10, 19, hour, minute, 0, 0, time.UTC)
}

func TestCalculate_OpenWindowNoBookings(t *testing.T) {
	facility := Facility{
		OperatingHours: `{"monday":{"open":"06:00","close":"09:00"}}`,
		PricePerHour:   "25",
	}

	slots := Calculate(facility, testMonday, nil)

	want := []TimeSlot{
		{StartTime: "06:00", EndTime: "07:00", Available: true, Price: 25},
		{StartTime: "07:00", EndTime: "08:00", Available: true, Price: 25},
		{StartTime: "08:00", EndTime: "09:00", Available: true, Price: 25},
	}
	if !reflect.DeepEqual(slots, want) {
		t.Fatalf("slots = %+v, want %+v", slots, want)
	}
}

func TestCalculate_BookingMarksSlotUnavailable(t *testing.T) {
	facility := Facility{OperatingHours: `{"monday":{"open":"06:00","close":"09:00"}}`}
	bookings := []Booking{{StartTime: at(7, 0), EndTime: at(8, 0)}}

	slots := Calculate(facility, testMonday, bookings)

	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	wantAvailable := []bool{true, false, true}
	for i, slot := range slots {
		if slot.Available != wantAvailable[i] {
			t.Fatalf("slot %s-%s available = %v, want %v", slot.StartTime, slot.EndTime, slot.Available, wantAvailable[i])
		}
	}
}

func TestCalculate_PartialBookingOverlapsBothSlots(t *testing.T) {
	facility := Facility{OperatingHours: `{"monday":{"open":"06:00","close":"09:00"}}`}
	bookings := []Booking{{StartTime: at(6, 30), EndTime: at(7, 30)}}

	slots := Calculate(facility, testMonday, bookings)

	if slots[0].Available || slots[1].Available || !slots[2].Available {
		t.Fatalf("unexpected availability: %+v", slots)
	}
}

func TestCalculate_AdjacentBookingDoesNotOverlap(t *testing.T) {
	facility := Facility{OperatingHours: `{"monday":{"open":"06:00","close":"09:00"}}`}
	bookings := []Booking{
		{StartTime: at(5, 0), EndTime: at(6, 0)},
		{StartTime: at(9, 0), EndTime: at(10, 0)},
	}

	for _, slot := range Calculate(facility, testMonday, bookings) {
		if !slot.Available {
			t.Fatalf("slot %s-%s should be available", slot.StartTime, slot.EndTime)
		}
	}
}

func TestCalculate_MalformedHoursFallBackToDefault(t *testing.T) {
	for _, raw := range []string{"", "not json", "null", "[1,2]"} {
		slots := Calculate(Facility{OperatingHours: raw}, testMonday, nil)
		if len(slots) != 17 {
			t.Fatalf("hours %q: expected 17 slots, got %d", raw, len(slots))
		}
		if slots[0].StartTime != "06:00" || slots[16].EndTime != "23:00" {
			t.Fatalf("hours %q: unexpected window %s-%s", raw, slots[0].StartTime, slots[16].EndTime)
		}
	}
}

func TestCalculate_DefaultScheduleClosedOnSunday(t *testing.T) {
	sunday := testMonday.AddDate(0, 0, -1)
	if slots := Calculate(Facility{}, sunday, nil); len(slots) != 0 {
		t.Fatalf("expected no slots on Sunday, got %d", len(slots))
	}
}

func TestCalculate_ClosedDayIgnoresBookings(t *testing.T) {
	facility := Facility{OperatingHours: `{"monday":{"closed":true},"tuesday":{"open":"08:00","close":"10:00"}}`}
	bookings := []Booking{{StartTime: at(8, 0), EndTime: at(9, 0)}}

	if slots := Calculate(facility, testMonday, bookings); len(slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(slots))
	}
}

func TestCalculate_ZeroDateYieldsNoSlots(t *testing.T) {
	slots := Calculate(Facility{}, time.Time{}, nil)
	if slots == nil || len(slots) != 0 {
		t.Fatalf("expected empty non-nil slots, got %#v", slots)
	}
}

func TestCalculate_OpenNotBeforeCloseYieldsNoSlots(t *testing.T) {
	for _, raw := range []string{
		`{"monday":{"open":"10:00","close":"10:00"}}`,
		`{"monday":{"open":"18:00","close":"09:00"}}`,
	} {
		if slots := Calculate(Facility{OperatingHours: raw}, testMonday, nil); len(slots) != 0 {
			t.Fatalf("hours %s: expected no slots, got %d", raw, len(slots))
		}
	}
}

func TestCalculate_DropsTrailingPartialSlot(t *testing.T) {
	facility := Facility{OperatingHours: `{"monday":{"open":"06:30","close":"09:15"}}`}

	slots := Calculate(facility, testMonday, nil)

	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if slots[1].StartTime != "07:30" || slots[1].EndTime != "08:30" {
		t.Fatalf("unexpected last slot %+v", slots[1])
	}
}

func TestCalculate_SlotCountMatchesWindow(t *testing.T) {
	tests := []struct {
		open, close string
		want        int
	}{
		{"06:00", "07:00", 1},
		{"06:00", "06:59", 0},
		{"08:00", "21:00", 13},
		{"00:00", "24:00", 24},
		{"9:00 AM", "5:30 PM", 8},
	}

	for _, tt := range tests {
		raw := `{"monday":{"open":"` + tt.open + `","close":"` + tt.close + `"}}`
		slots := Calculate(Facility{OperatingHours: raw}, testMonday, nil)
		if len(slots) != tt.want {
			t.Fatalf("%s-%s: expected %d slots, got %d", tt.open, tt.close, tt.want, len(slots))
		}
		for i := 1; i < len(slots); i++ {
			if slots[i].StartTime != slots[i-1].EndTime {
				t.Fatalf("%s-%s: slots %d and %d are not contiguous", tt.open, tt.close, i-1, i)
			}
		}
	}
}

func TestCalculate_WeekdayFallbackOrder(t *testing.T) {
	tuesday := testMonday.AddDate(0, 0, 1)

	tests := []struct {
		name      string
		raw       string
		wantFirst string
		wantCount int
	}{
		{"weekday entry wins", `{"tuesday":{"open":"10:00","close":"12:00"},"default":{"open":"07:00","close":"08:00"}}`, "10:00", 2},
		{"default key before monday", `{"default":{"open":"07:00","close":"08:00"},"monday":{"open":"09:00","close":"12:00"}}`, "07:00", 1},
		{"monday when no default", `{"monday":{"open":"09:00","close":"12:00"}}`, "09:00", 3},
		{"built in hours last", `{"friday":{"open":"09:00","close":"12:00"}}`, "06:00", 17},
		{"keys are case insensitive", `{"Tuesday":{"open":"10:00","close":"11:00"}}`, "10:00", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := Calculate(Facility{OperatingHours: tt.raw}, tuesday, nil)
			if len(slots) != tt.wantCount {
				t.Fatalf("expected %d slots, got %d", tt.wantCount, len(slots))
			}
			if slots[0].StartTime != tt.wantFirst {
				t.Fatalf("first slot starts %s, want %s", slots[0].StartTime, tt.wantFirst)
			}
		})
	}
}

func TestCalculate_UnparseableTimesUseDefaults(t *testing.T) {
	facility := Facility{OperatingHours: `{"monday":{"open":"soon","close":"08:00"}}`}

	slots := Calculate(facility, testMonday, nil)

	if len(slots) != 2 || slots[0].StartTime != "06:00" {
		t.Fatalf("unexpected slots %+v", slots)
	}
}

func TestCalculate_Idempotent(t *testing.T) {
	facility := Facility{OperatingHours: `{"monday":{"open":"06:00","close":"12:00"}}`, PricePerHour: "12.5"}
	bookings := []Booking{{StartTime: at(8, 0), EndTime: at(10, 0)}}

	first := Calculate(facility, testMonday, bookings)
	second := Calculate(facility, testMonday, bookings)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ:\n%+v\n%+v", first, second)
	}
}

func TestCalculate_MalformedPriceIsZero(t *testing.T) {
	slots := Calculate(Facility{OperatingHours: `{"monday":{"open":"06:00","close":"07:00"}}`, PricePerHour: "abc"}, testMonday, nil)
	if slots[0].Price != 0 {
		t.Fatalf("expected price 0, got %v", slots[0].Price)
	}
}

func TestParseOperatingHours_ReportsConfigurationError(t *testing.T) {
	hours, err := ParseOperatingHours("{broken")

	var cfgErr ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if !reflect.DeepEqual(hours, DefaultOperatingHours()) {
		t.Fatalf("expected default hours, got %+v", hours)
	}
}

func TestOperatingHoursValidate(t *testing.T) {
	tests := []struct {
		name    string
		hours   OperatingHours
		wantErr bool
	}{
		{"default schedule", DefaultOperatingHours(), false},
		{"closed entry without times", OperatingHours{"monday": {Closed: true}}, false},
		{"default key", OperatingHours{"default": {Open: "08:00", Close: "20:00"}}, false},
		{"open after close", OperatingHours{"monday": {Open: "20:00", Close: "08:00"}}, true},
		{"missing close", OperatingHours{"monday": {Open: "08:00"}}, true},
		{"unknown key", OperatingHours{"someday": {Open: "08:00", Close: "09:00"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.hours.Validate()
			if tt.wantErr {
				var cfgErr ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("expected ConfigurationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestTimeSlotBounds(t *testing.T) {
	start, end, err := TimeSlot{StartTime: "07:00", EndTime: "08:00"}.Bounds(testMonday)
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if !start.Equal(at(7, 0)) || !end.Equal(at(8, 0)) {
		t.Fatalf("unexpected bounds %s - %s", start, end)
	}

	_, end, err = TimeSlot{StartTime: "23:00", EndTime: "00:00"}.Bounds(testMonday)
	if err != nil {
		t.Fatalf("bounds at midnight: %v", err)
	}
	if !end.Equal(testMonday.AddDate(0, 0, 1)) {
		t.Fatalf("expected end at next midnight, got %s", end)
	}

	if _, _, err := (TimeSlot{StartTime: "bad", EndTime: "08:00"}).Bounds(testMonday); err == nil {
		t.Fatal("expected error for malformed slot")
	}
}

func TestFind(t *testing.T) {
	slots := Calculate(Facility{OperatingHours: `{"monday":{"open":"06:00","close":"09:00"}}`}, testMonday, nil)

	slot, ok := Find(slots, "7:00")
	if !ok || slot.StartTime != "07:00" {
		t.Fatalf("expected 07:00 slot, got %+v (found=%v)", slot, ok)
	}
	if _, ok := Find(slots, "07:30"); ok {
		t.Fatal("expected no slot at 07:30")
	}
}

func TestOperatingHoursNormalized(t *testing.T) {
	hours := OperatingHours{
		"monday":  {Open: "7:30 AM", Close: "9:00 PM"},
		"tuesday": {Open: "06:00:00", Close: "24:00"},
		"sunday":  {Open: "08:00", Close: "12:00", Closed: true},
	}

	got := hours.Normalized()
	want := OperatingHours{
		"monday":  {Open: "07:30", Close: "21:00"},
		"tuesday": {Open: "06:00", Close: "24:00"},
		"sunday":  {Closed: true},
	}
	for key, entry := range want {
		if got[key] != entry {
			t.Fatalf("%s = %+v, want %+v", key, got[key], entry)
		}
	}
	if hours["monday"].Open != "7:30 AM" {
		t.Fatal("Normalized must not modify the receiver")
	}
}
