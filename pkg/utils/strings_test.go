package utils

import "testing"

func TestDigits(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Formatted phone", "(11) 91234-5678", "11912345678"},
		{"Formatted CPF", "123.456.789-09", "12345678909"},
		{"Already digits", "5511", "5511"},
		{"No digits", "abc-", ""},
		{"Empty", "", ""},
		{"Unicode digits are ignored", "١٢٣4", "4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Digits(tt.input); got != tt.expected {
				t.Errorf("Digits(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ana@example.com", "a***@example.com"},
		{"a@b.com", "a***@b.com"},
		{"@b.com", "***"},
		{"no-at", "***"},
	}
	for _, tt := range tests {
		if got := MaskEmail(tt.input); got != tt.expected {
			t.Errorf("MaskEmail(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestMaskDigits(t *testing.T) {
	tests := []struct {
		input    string
		n        int
		expected string
	}{
		{"123.456.789-09", 2, "*********09"},
		{"(11) 91234-5678", 4, "*******5678"},
		{"12", 4, "**"},
		{"", 2, ""},
	}
	for _, tt := range tests {
		if got := MaskDigits(tt.input, tt.n); got != tt.expected {
			t.Errorf("MaskDigits(%q, %d) = %q, expected %q", tt.input, tt.n, got, tt.expected)
		}
	}
}
