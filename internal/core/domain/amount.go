package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// SanitizeAmount renders an integer amount as a plain base-10 string.
// Scientific notation produced by lossy number formatting ("1.2345e+23") is
// expanded exactly. Fractional or malformed values are rejected.
func SanitizeAmount(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "0", nil
	}
	if isPlainInteger(s) {
		return normalizeInteger(s), nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !d.Equal(d.Truncate(0)) {
		return "", fmt.Errorf("%w: %q is not an integer", ErrInvalidAmount, s)
	}
	return d.Truncate(0).String(), nil
}

func isPlainInteger(s string) bool {
	start := 0
	if s[0] == '-' || s[0] == '+' {
		start = 1
	}
	if start == len(s) {
		return false
	}
	for i := start; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// normalizeInteger strips a leading plus sign and redundant zeros.
func normalizeInteger(s string) string {
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}
	if neg {
		return "-" + s
	}
	return s
}
