package util

import (
	"regexp"
	"strings"
)

var nonPhoneChars = regexp.MustCompile(`[^\d+]+`)

// NormalizePhone normalizes user input into the E.164 form the gateway
// expects. Deliberately permissive: anything non-empty gets a best-effort
// "+" form and the gateway stays authoritative on final rejection; only
// empty/whitespace input yields "".
//
//	NormalizePhone("0727374660", "254")   => "+254727374660"
//	NormalizePhone("254727374660", "254") => "+254727374660"
//	NormalizePhone("+254727374660", "254")=> "+254727374660"
func NormalizePhone(raw, defaultCountryCode string) string {
	s := nonPhoneChars.ReplaceAllString(strings.TrimSpace(raw), "")
	if s == "" || s == "+" {
		return ""
	}
	if strings.HasPrefix(s, "+") {
		return s
	}
	// national trunk format, e.g. 0727374660
	if strings.HasPrefix(s, "0") && len(s) == 10 {
		return "+" + defaultCountryCode + s[1:]
	}
	if defaultCountryCode != "" && strings.HasPrefix(s, defaultCountryCode) {
		return "+" + s
	}
	return "+" + s
}
