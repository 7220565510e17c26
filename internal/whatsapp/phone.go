package whatsapp

import (
	"regexp"
	"strings"
)

var (
	e164Pattern   = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
	digitsPattern = regexp.MustCompile(`^[1-9][0-9]{7,14}$`)
	nonDigits     = regexp.MustCompile(`[^0-9]`)
)

// NormalizeE164 validates input as a strict E.164 number: a leading "+"
// followed by 8–15 digits, the first being 1–9. Separator characters are
// stripped first. Returns "" when invalid.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || !strings.HasPrefix(trimmed, "+") {
		return ""
	}
	candidate := "+" + nonDigits.ReplaceAllString(trimmed[1:], "")
	if !e164Pattern.MatchString(candidate) {
		return ""
	}
	return candidate
}

// NormalizeRecipient accepts either an E.164 number or a bare digit string
// as used by the Cloud API. Returns "" when invalid.
func NormalizeRecipient(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "+") {
		return NormalizeE164(trimmed)
	}
	digits := nonDigits.ReplaceAllString(trimmed, "")
	if !digitsPattern.MatchString(digits) {
		return ""
	}
	return digits
}
