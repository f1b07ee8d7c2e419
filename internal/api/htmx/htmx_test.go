package htmx

import (
	"net/http/httptest"
	"testing"
)

func TestIsRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if IsRequest(req) {
		t.Fatal("expected plain request")
	}
	req.Header.Set(HeaderRequest, "TRUE")
	if !IsRequest(req) {
		t.Fatal("expected htmx request")
	}
}

func TestFragmentHeaders(t *testing.T) {
	headers := FragmentHeaders("", nil)
	if headers["Vary"] != HeaderRequest || headers[HeaderTrigger] != "" {
		t.Fatalf("unexpected headers: %v", headers)
	}

	headers = FragmentHeaders("slotsLoaded", map[string]any{"date": "2026-10-19"})
	if got, want := headers[HeaderTrigger], `{"slotsLoaded":{"date":"2026-10-19"}}`; got != want {
		t.Fatalf("expected trigger %s, got %s", want, got)
	}
}
