package availability

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	DefaultOpensAt  = "06:00"
	DefaultClosesAt = "23:00"

	// DefaultKey names an optional entry used for weekdays without their own entry.
	DefaultKey = "default"

	// fallbackDay is consulted after DefaultKey for schedules saved before the default key existed.
	fallbackDay = "monday"
)

// DayHours is one weekday's entry in an operating hours mapping.
type DayHours struct {
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
	Closed bool   `json:"closed,omitempty"`
}

// OperatingHours maps lowercase weekday names ("monday") to their hours.
type OperatingHours map[string]DayHours

var weekdayKeys = map[string]struct{}{
	"sunday":    {},
	"monday":    {},
	"tuesday":   {},
	"wednesday": {},
	"thursday":  {},
	"friday":    {},
	"saturday":  {},
	DefaultKey:  {},
}

// DefaultOperatingHours returns the schedule used when a facility has none:
// 06:00-23:00 every day, closed on Sunday.
func DefaultOperatingHours() OperatingHours {
	hours := make(OperatingHours, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		if day == time.Sunday {
			hours[WeekdayKey(day)] = DayHours{Closed: true}
			continue
		}
		hours[WeekdayKey(day)] = DayHours{Open: DefaultOpensAt, Close: DefaultClosesAt}
	}
	return hours
}

// WeekdayKey returns the mapping key for day.
func WeekdayKey(day time.Weekday) string {
	return strings.ToLower(day.String())
}

// ParseOperatingHours decodes a serialized operating hours mapping. It never
// fails outright: empty or malformed input yields DefaultOperatingHours along
// with a ConfigurationError describing what was wrong, which callers may log
// and otherwise ignore.
func ParseOperatingHours(raw string) (OperatingHours, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultOperatingHours(), ConfigurationError{Field: "operating_hours", Reason: "is empty"}
	}

	var decoded map[string]DayHours
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return DefaultOperatingHours(), ConfigurationError{Field: "operating_hours", Reason: "is not valid JSON", Err: err}
	}
	if decoded == nil {
		return DefaultOperatingHours(), ConfigurationError{Field: "operating_hours", Reason: "is null"}
	}

	hours := make(OperatingHours, len(decoded))
	for key, entry := range decoded {
		hours[strings.ToLower(strings.TrimSpace(key))] = entry
	}
	return hours, nil
}

// ForWeekday resolves the entry for day. Lookup order is the weekday itself,
// the "default" entry, the "monday" entry, then 06:00-23:00.
func (h OperatingHours) ForWeekday(day time.Weekday) DayHours {
	for _, key := range []string{WeekdayKey(day), DefaultKey, fallbackDay} {
		if entry, ok := h[key]; ok {
			return entry
		}
	}
	return DayHours{Open: DefaultOpensAt, Close: DefaultClosesAt}
}

// Validate reports the first problem in the mapping as a ConfigurationError.
// Used when an owner saves hours; the calculator itself never validates.
func (h OperatingHours) Validate() error {
	keys := make([]string, 0, len(h))
	for key := range h {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, ok := weekdayKeys[key]; !ok {
			return ConfigurationError{Field: key, Reason: "is not a weekday"}
		}
		entry := h[key]
		if entry.Closed {
			continue
		}
		openAt, err := ParseClock(entry.Open)
		if err != nil {
			return ConfigurationError{Field: key + ".open", Reason: "must be HH:MM", Err: err}
		}
		closeAt, err := ParseClock(entry.Close)
		if err != nil {
			return ConfigurationError{Field: key + ".close", Reason: "must be HH:MM", Err: err}
		}
		if openAt >= closeAt {
			return ConfigurationError{Field: key, Reason: "open must be before close"}
		}
	}
	return nil
}

// String serializes the mapping in the form stored on the facility.
func (h OperatingHours) String() string {
	encoded, err := json.Marshal(h)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

// Window applies the entry's wall-clock times to date. Missing or unparseable
// times fall back to DefaultOpensAt / DefaultClosesAt.
func (d DayHours) Window(date time.Time) (time.Time, time.Time) {
	openAt, err := ParseClock(d.Open)
	if err != nil {
		openAt, _ = ParseClock(DefaultOpensAt)
	}
	closeAt, err := ParseClock(d.Close)
	if err != nil {
		closeAt, _ = ParseClock(DefaultClosesAt)
	}
	return At(date, openAt), At(date, closeAt)
}

// ParseClock parses a wall-clock time ("15:04", "15:04:05" or "3:04 PM") into
// an offset from midnight. "24:00" is accepted as the end of the day.
func ParseClock(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("time is required")
	}
	if raw == "24:00" {
		return 24 * time.Hour, nil
	}
	for _, layout := range []string{"15:04", "15:04:05", "3:04 PM", "3:04PM"} {
		parsed, err := time.Parse(layout, strings.ToUpper(raw))
		if err == nil {
			return time.Duration(parsed.Hour())*time.Hour +
				time.Duration(parsed.Minute())*time.Minute +
				time.Duration(parsed.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("invalid time %q", raw)
}

// At returns the wall-clock time offset after midnight on date's calendar day,
// in date's location.
func At(date time.Time, offset time.Duration) time.Time {
	hours := int(offset / time.Hour)
	minutes := int((offset % time.Hour) / time.Minute)
	seconds := int((offset % time.Minute) / time.Second)
	return time.Date(date.Year(), date.Month(), date.Day(), hours, minutes, seconds, 0, date.Location())
}

// FormatClock renders an offset from midnight as HH:MM; 24h renders as "24:00".
func FormatClock(offset time.Duration) string {
	minutes := int(offset / time.Minute)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Normalized returns a copy with open entries rewritten in HH:MM form and
// closed entries stripped of times. Call Validate first; unparseable times
// are kept as they are.
func (h OperatingHours) Normalized() OperatingHours {
	out := make(OperatingHours, len(h))
	for key, entry := range h {
		if entry.Closed {
			out[key] = DayHours{Closed: true}
			continue
		}
		if openAt, err := ParseClock(entry.Open); err == nil {
			entry.Open = FormatClock(openAt)
		}
		if closeAt, err := ParseClock(entry.Close); err == nil {
			entry.Close = FormatClock(closeAt)
		}
		out[key] = entry
	}
	return out
}
