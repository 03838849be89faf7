package utils

import "strings"

// Masking helpers for customer data in logs and notifications. Raw phone
// numbers and addresses must never appear in log output.

func MaskPhone(phone string) string {
	if len(phone) < 7 {
		return "***"
	}
	return phone[:3] + strings.Repeat("*", len(phone)-6) + phone[len(phone)-3:]
}

func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	if len(local) <= 2 {
		return "**@" + domain
	}
	return local[:1] + strings.Repeat("*", len(local)-2) + local[len(local)-1:] + "@" + domain
}

func MaskAddress(address string) string {
	// rune-wise: addresses are routinely non-ASCII
	r := []rune(address)
	if len(r) < 10 {
		return "***"
	}
	return string(r[:5]) + "..." + string(r[len(r)-5:])
}
