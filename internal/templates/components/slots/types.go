package slots

import (
	"fmt"
	"time"

	"github.com/quickcourt/quickcourt/internal/availability"
)

type SlotOption struct {
	StartTime string
	EndTime   string
	Label     string
	Price     string
	Available bool
}

type SlotPickerData struct {
	FacilityID   int64
	FacilityName string
	Date         time.Time
	Slots        []SlotOption
}

func (d SlotPickerData) DateLabel() string {
	return d.Date.Format("Monday, Jan 2, 2006")
}

func (d SlotPickerData) DateValue() string {
	return d.Date.Format("2006-01-02")
}

func NewSlotOptions(timeSlots []availability.TimeSlot) []SlotOption {
	options := make([]SlotOption, 0, len(timeSlots))
	for _, slot := range timeSlots {
		options = append(options, SlotOption{
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
			Label:     fmt.Sprintf("%s - %s", slot.StartTime, slot.EndTime),
			Price:     fmt.Sprintf("$%.2f", slot.Price),
			Available: slot.Available,
		})
	}
	return options
}
