// Package sanitize cleans user-supplied order input at the API boundary,
// before typed domain objects are constructed. Nothing downstream of this
// package touches raw request strings.
package sanitize

import (
	"regexp"
	"strings"
)

const (
	maxStringLen    = 1000
	maxNoteLen      = 500
	maxItemNoteLen  = 200
	maxItemQuantity = 100
)

var (
	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)
	vnPhonePattern = regexp.MustCompile(`^(?:0|\+84)[35789][0-9]{8}$`)
)

// String trims, strips null bytes, control characters and HTML tags, and
// caps the length.
func String(input string) string {
	s := strings.TrimSpace(input)
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if r == 0 || r < 0x20 || r == 0x7F {
			return -1
		}
		return r
	}, s)
	return truncate(s, maxStringLen)
}

// Note is String with the shorter order-note cap.
func Note(input string) string {
	return truncate(String(input), maxNoteLen)
}

// ItemNote is String with the per-item note cap.
func ItemNote(input string) string {
	return truncate(String(input), maxItemNoteLen)
}

// Phone keeps only digits and the characters a phone number legitimately
// contains.
func Phone(input string) string {
	s := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		switch r {
		case '+', ' ', '(', ')', '-':
			return r
		}
		return -1
	}, input)
	return truncate(strings.TrimSpace(s), 20)
}

// IsValidVietnamesePhone reports whether the input is a Vietnamese mobile
// number: 0 or +84, then 9 digits starting with 3, 5, 7, 8 or 9.
func IsValidVietnamesePhone(phone string) bool {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)
	return vnPhonePattern.MatchString(cleaned)
}

// Quantity clamps an order-item quantity to [1, 100].
func Quantity(q int) int {
	if q < 1 {
		return 1
	}
	if q > maxItemQuantity {
		return maxItemQuantity
	}
	return q
}

// Amount clamps a currency amount to be non-negative.
func Amount(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
