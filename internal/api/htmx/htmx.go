package htmx

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	HeaderRequest = "HX-Request"
	HeaderTrigger = "HX-Trigger"
)

func IsRequest(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get(HeaderRequest), "true")
}

// FragmentHeaders returns the headers for an HTML fragment served from a URL
// that also answers JSON. When event is set, htmx fires it on the client
// with detail attached.
func FragmentHeaders(event string, detail map[string]any) map[string]string {
	headers := map[string]string{"Vary": HeaderRequest}
	if event == "" {
		return headers
	}

	payload, err := json.Marshal(map[string]any{event: detail})
	if err != nil {
		headers[HeaderTrigger] = event
		return headers
	}
	headers[HeaderTrigger] = string(payload)
	return headers
}
