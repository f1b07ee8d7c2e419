package auth

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		region  string
		want    string
		wantErr bool
	}{
		{"empty", "", "US", "", false},
		{"national US", "(201) 555-0123", "US", "+12015550123", false},
		{"already E164", "+44 121 234 5678", "US", "+441212345678", false},
		{"region default", "201-555-0123", "", "+12015550123", false},
		{"garbage", "not a phone", "US", "", true},
		{"too short", "123", "US", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw, tt.region)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("NormalizePhone(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
