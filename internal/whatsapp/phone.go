package whatsapp

import (
	"regexp"

	"go.mau.fi/whatsmeow/types"
)

var nonDigits = regexp.MustCompile(`[^0-9]`)

// sanitizePhone removes all non-numeric characters from a phone number.
func sanitizePhone(phone string) string {
	return nonDigits.ReplaceAllString(phone, "")
}

// UserID returns the chat identifier of a phone number, e.g.
// "+254 700 000000" becomes "254700000000@s.whatsapp.net". Empty input
// yields "".
func UserID(phone string) string {
	digits := sanitizePhone(phone)
	if digits == "" {
		return ""
	}
	return types.NewJID(digits, types.DefaultUserServer).String()
}
