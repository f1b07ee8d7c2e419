package email

import (
	"fmt"
	"strings"
	"time"
)

type Message struct {
	Subject string
	Body    string
}

type BookingDetails struct {
	Reference    string
	FacilityName string
	Location     string
	Start        time.Time
	End          time.Time
	TotalAmount  float64
	Notes        string
}

func FormatDateTimeRange(start, end time.Time) (string, string) {
	date := start.Format("Monday, Jan 2, 2006")
	timeRange := fmt.Sprintf("%s - %s %s", start.Format("3:04 PM"), end.Format("3:04 PM"), start.Format("MST"))
	return date, timeRange
}

func BuildBookingConfirmation(details BookingDetails) Message {
	subject := fmt.Sprintf("Booking request received: %s", facilityLabel(details.FacilityName))
	return Message{
		Subject: subject,
		Body:    buildBookingBody("Your booking request has been received.", details),
	}
}

func BuildBookingCancellation(details BookingDetails) Message {
	subject := fmt.Sprintf("Booking cancelled: %s", facilityLabel(details.FacilityName))
	return Message{
		Subject: subject,
		Body:    buildBookingBody("Your booking has been cancelled.", details),
	}
}

func buildBookingBody(intro string, details BookingDetails) string {
	date, timeRange := FormatDateTimeRange(details.Start, details.End)

	var b strings.Builder
	b.WriteString(intro)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Facility: %s\n", facilityLabel(details.FacilityName))
	if location := strings.TrimSpace(details.Location); location != "" {
		fmt.Fprintf(&b, "Location: %s\n", location)
	}
	fmt.Fprintf(&b, "Date: %s\n", date)
	fmt.Fprintf(&b, "Time: %s\n", timeRange)
	fmt.Fprintf(&b, "Total: $%.2f\n", details.TotalAmount)
	if details.Reference != "" {
		fmt.Fprintf(&b, "Reference: %s\n", details.Reference)
	}
	if notes := strings.TrimSpace(details.Notes); notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", notes)
	}
	return b.String()
}

func facilityLabel(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "QuickCourt facility"
	}
	return name
}
