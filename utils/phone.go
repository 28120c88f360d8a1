package utils

import (
	"os"
	"strings"

	"github.com/ttacon/libphonenumber"
)

// NormalizePhone formats a contact phone number to E.164 on a best-effort
// basis. Unparseable input is returned unchanged; provider data is too messy
// to reject a record over a phone number.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	region := strings.TrimSpace(os.Getenv("DEFAULT_PHONE_REGION"))
	if region == "" {
		region = "MM"
	}
	num, err := libphonenumber.Parse(raw, region)
	if err != nil {
		return raw
	}
	if !libphonenumber.IsValidNumber(num) {
		return raw
	}
	return libphonenumber.Format(num, libphonenumber.E164)
}
