package slots

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// SlotPicker renders the slot list fragment swapped in by htmx.
func SlotPicker(data SlotPickerData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		fmt.Fprintf(&b, `<section id="slot-picker" class="slot-picker" data-facility-id="%d" data-date="%s">`,
			data.FacilityID, templ.EscapeString(data.DateValue()))
		if data.FacilityName != "" {
			fmt.Fprintf(&b, `<h2>%s</h2>`, templ.EscapeString(data.FacilityName))
		}
		fmt.Fprintf(&b, `<h3>%s</h3>`, templ.EscapeString(data.DateLabel()))

		if len(data.Slots) == 0 {
			b.WriteString(`<p class="slot-picker-empty">No time slots are available on this date.</p>`)
		} else {
			b.WriteString(`<ul class="slot-list">`)
			for _, slot := range data.Slots {
				writeSlot(&b, data, slot)
			}
			b.WriteString(`</ul>`)
		}
		b.WriteString(`</section>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeSlot(b *strings.Builder, data SlotPickerData, slot SlotOption) {
	if !slot.Available {
		fmt.Fprintf(b, `<li class="slot slot-unavailable"><button type="button" disabled>%s</button><span class="slot-status">Booked</span></li>`,
			templ.EscapeString(slot.Label))
		return
	}

	vals := fmt.Sprintf(`{"facilityId":%d,"date":"%s","startTime":"%s","endTime":"%s"}`,
		data.FacilityID, data.DateValue(), slot.StartTime, slot.EndTime)
	fmt.Fprintf(b, `<li class="slot slot-available"><button type="button" name="startTime" value="%s" hx-vals='%s'>%s</button><span class="slot-price">%s</span></li>`,
		templ.EscapeString(slot.StartTime),
		templ.EscapeString(vals),
		templ.EscapeString(slot.Label),
		templ.EscapeString(slot.Price))
}
