package notify

import (
	"fmt"
	"strings"
)

// domesticCountryCode is prefixed onto bare 10-digit numbers and recognized
// at the front of 11-digit ones.
const domesticCountryCode = "1"

// NormalizePhone converts a phone number to a leading +countrycode form
// before dispatch. Numbers lacking a country code are assumed domestic
// (10 digits) or already-prefixed (11 digits starting with the domestic
// code). Anything else is rejected.
func NormalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	hasPlus := strings.HasPrefix(trimmed, "+")

	var digits strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if d == "" {
		return "", fmt.Errorf("phone number %q has no digits", raw)
	}

	if hasPlus {
		return "+" + d, nil
	}
	switch {
	case len(d) == 10:
		return "+" + domesticCountryCode + d, nil
	case len(d) == 11 && strings.HasPrefix(d, domesticCountryCode):
		return "+" + d, nil
	}
	return "", fmt.Errorf("phone number %q is not a recognizable domestic or international form", raw)
}
