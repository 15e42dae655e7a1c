package notify

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		want      string
		expectErr bool
	}{
		{"bare ten digits", "5551234567", "+15551234567", false},
		{"formatted ten digits", "(555) 123-4567", "+15551234567", false},
		{"eleven digits with country code", "15551234567", "+15551234567", false},
		{"already international", "+15551234567", "+15551234567", false},
		{"international non-domestic", "+447911123456", "+447911123456", false},
		{"plus with formatting", "+1 555 123 4567", "+15551234567", false},
		{"too short", "12345", "", true},
		{"eleven digits wrong prefix", "25551234567", "", true},
		{"no digits", "abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw)
			if tt.expectErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
