package rating

import (
	"regexp"
	"strings"
)

var (
	danishMobile   = regexp.MustCompile(`^[2-9]\d{7}$`)
	phoneCandidate = regexp.MustCompile(`(?:(?:\+|00)45[ \t]?)?[2-9](?:[ \t]?\d){7}`)
)

// ValidatePhoneNumber strips whitespace and an optional +45 or 0045 prefix
// and returns the bare 8-digit Danish mobile number.
func ValidatePhoneNumber(raw string) (string, error) {
	cleaned := strings.Join(strings.Fields(raw), "")
	switch {
	case strings.HasPrefix(cleaned, "+45"):
		cleaned = cleaned[len("+45"):]
	case strings.HasPrefix(cleaned, "0045"):
		cleaned = cleaned[len("0045"):]
	}
	if !danishMobile.MatchString(cleaned) {
		return "", &InvalidPhoneError{Input: raw}
	}
	return cleaned, nil
}

// FormatPhoneNumber renders a number in pairs, "12 34 56 78". Input that
// does not normalise to eight digits is returned unchanged.
func FormatPhoneNumber(raw string) string {
	cleaned := strings.Join(strings.Fields(raw), "")
	cleaned = strings.TrimPrefix(cleaned, "+45")
	if len(cleaned) != 8 {
		return raw
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return raw
		}
	}
	return cleaned[0:2] + " " + cleaned[2:4] + " " + cleaned[4:6] + " " + cleaned[6:8]
}

// ExtractPhoneNumber returns the first valid mobile number found in free
// text, such as OCR output from a MobilePay sign.
func ExtractPhoneNumber(text string) (string, bool) {
	for _, match := range phoneCandidate.FindAllString(text, -1) {
		if number, err := ValidatePhoneNumber(match); err == nil {
			return number, true
		}
	}
	return "", false
}
