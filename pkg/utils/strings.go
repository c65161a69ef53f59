package utils

import "strings"

// Digits returns s with every non-digit character removed
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MaskEmail keeps the first character of the local part and the domain
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// MaskDigits keeps the last n digits of s
func MaskDigits(s string, n int) string {
	d := Digits(s)
	if len(d) <= n {
		return strings.Repeat("*", len(d))
	}
	return strings.Repeat("*", len(d)-n) + d[len(d)-n:]
}
