package utils

import "strings"

// MaskPhone reduces a phone number to its masked display form,
// keeping the first three and last two digits: 01712345678 ->
// 017******78. Short values are masked entirely.
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	if len(phone) <= 5 {
		return strings.Repeat("*", len(phone))
	}
	return phone[:3] + strings.Repeat("*", len(phone)-5) + phone[len(phone)-2:]
}
